package wasm

import (
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// Features is a set of optional WebAssembly capabilities. Instructions and
// types governed by a disabled feature fail validation even when they would
// otherwise type-check.
type Features uint64

const (
	FeatureFloats Features = 1 << iota
	FeatureSignExtension
	FeatureSaturatingFloatToInt
	FeatureMultiValue
	FeatureBulkMemory
	FeatureReferenceTypes
	FeatureSIMD
	FeatureRelaxedSIMD
	FeatureThreads
	FeatureTailCall
	FeatureFunctionReferences
	FeatureExceptions
	FeatureMultiMemory
	FeatureMemory64
	FeatureMemoryControl
	FeatureGC
	FeatureExtendedConst

	// FeatureStrictLocalInit requires every declared local, defaultable or
	// not, to be written before it is read.
	FeatureStrictLocalInit
)

const Features20191205 = FeatureFloats

const Features20220419 = Features20191205 |
	FeatureSignExtension |
	FeatureSaturatingFloatToInt |
	FeatureMultiValue |
	FeatureBulkMemory |
	FeatureReferenceTypes |
	FeatureSIMD

const DefaultFeatures = Features20220419 |
	FeatureRelaxedSIMD |
	FeatureThreads |
	FeatureTailCall |
	FeatureFunctionReferences |
	FeatureExceptions |
	FeatureMultiMemory |
	FeatureMemory64 |
	FeatureExtendedConst

var featureNames = []struct {
	f    Features
	name string
}{
	{FeatureFloats, "floats"},
	{FeatureSignExtension, "sign-extension"},
	{FeatureSaturatingFloatToInt, "saturating-float-to-int"},
	{FeatureMultiValue, "multi-value"},
	{FeatureBulkMemory, "bulk-memory"},
	{FeatureReferenceTypes, "reference-types"},
	{FeatureSIMD, "simd"},
	{FeatureRelaxedSIMD, "relaxed-simd"},
	{FeatureThreads, "threads"},
	{FeatureTailCall, "tail-call"},
	{FeatureFunctionReferences, "function-references"},
	{FeatureExceptions, "exceptions"},
	{FeatureMultiMemory, "multi-memory"},
	{FeatureMemory64, "memory64"},
	{FeatureMemoryControl, "memory-control"},
	{FeatureGC, "gc"},
	{FeatureExtendedConst, "extended-const"},
	{FeatureStrictLocalInit, "strict-local-init"},
}

func (f Features) Has(other Features) bool {
	return f&other == other
}

func (f Features) Set(other Features, on bool) Features {
	if on {
		return f | other
	}
	return f &^ other
}

// Require returns an error naming the first feature in other that is not
// enabled in f.
func (f Features) Require(other Features) error {
	for _, fn := range featureNames {
		if other&fn.f != 0 && f&fn.f == 0 {
			return fmt.Errorf("feature %q is disabled", fn.name)
		}
	}
	return nil
}

func (f Features) String() string {
	var names []string
	for _, fn := range featureNames {
		if f&fn.f != 0 {
			names = append(names, fn.name)
		}
	}
	return strings.Join(names, "|")
}

func ParseFeature(name string) (Features, error) {
	for _, fn := range featureNames {
		if fn.name == name {
			return fn.f, nil
		}
	}
	return 0, fmt.Errorf("unknown feature %q", name)
}

// FeatureNames lists every known feature name in declaration order.
func FeatureNames() []string {
	names := make([]string, len(featureNames))
	for i, fn := range featureNames {
		names[i] = fn.name
	}
	return names
}

type featureFile struct {
	Features map[string]bool `yaml:"features"`
}

// LoadFeatures reads a YAML document of the form
//
//	features:
//	  simd: false
//	  gc: true
//
// and applies it on top of base.
func LoadFeatures(r io.Reader, base Features) (Features, error) {
	var ff featureFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&ff); err != nil && err != io.EOF {
		return 0, fmt.Errorf("reading feature config: %w", err)
	}

	res := base
	for name, on := range ff.Features {
		f, err := ParseFeature(name)
		if err != nil {
			return 0, fmt.Errorf("reading feature config: %w", err)
		}
		res = res.Set(f, on)
	}
	return res, nil
}
