package validate

import (
	"strings"

	"github.com/bvisness/wasm-validate/wasm"
)

var (
	coreFloatOps [256]bool
	simdFloatOps [len(wasm.SIMDNames)]bool
)

func init() {
	isFloat := func(name string) bool {
		return strings.Contains(name, "f32") || strings.Contains(name, "f64")
	}
	for i := range coreFloatOps {
		coreFloatOps[i] = isFloat(wasm.Opcode(i).String())
	}
	for i, name := range wasm.SIMDNames {
		simdFloatOps[i] = isFloat(name)
	}
}

// requiredFeatures returns the features an opcode needs before its types
// are even looked at. Features that depend on immediates, such as
// multi-memory or multi-value block types, are checked by the rules.
func requiredFeatures(op wasm.Opcode) wasm.Features {
	var req wasm.Features
	sub := op.Sub()
	switch op.Prefix() {
	case 0:
		if sub < uint32(len(coreFloatOps)) && coreFloatOps[sub] {
			req |= wasm.FeatureFloats
		}
		switch op {
		case wasm.OpI32Extend8S, wasm.OpI32Extend16S, wasm.OpI64Extend8S, wasm.OpI64Extend16S, wasm.OpI64Extend32S:
			req |= wasm.FeatureSignExtension
		case wasm.OpReturnCall, wasm.OpReturnCallIndirect:
			req |= wasm.FeatureTailCall
		case wasm.OpReturnCallRef:
			req |= wasm.FeatureTailCall | wasm.FeatureFunctionReferences
		case wasm.OpCallRef, wasm.OpRefAsNonNull, wasm.OpBrOnNull, wasm.OpBrOnNonNull:
			req |= wasm.FeatureFunctionReferences
		case wasm.OpTry, wasm.OpCatch, wasm.OpThrow, wasm.OpRethrow, wasm.OpDelegate, wasm.OpCatchAll:
			req |= wasm.FeatureExceptions
		case wasm.OpTableGet, wasm.OpTableSet, wasm.OpRefNull, wasm.OpRefIsNull, wasm.OpRefFunc, wasm.OpSelectTyped:
			req |= wasm.FeatureReferenceTypes
		case wasm.OpRefEq:
			req |= wasm.FeatureGC
		}
	case wasm.PrefixGC:
		req |= wasm.FeatureGC
	case wasm.PrefixMisc:
		switch {
		case sub <= 0x07:
			req |= wasm.FeatureSaturatingFloatToInt | wasm.FeatureFloats
		case sub <= 0x0E:
			req |= wasm.FeatureBulkMemory
		case sub <= 0x11:
			req |= wasm.FeatureReferenceTypes
		case op == wasm.OpMemoryDiscard:
			req |= wasm.FeatureMemoryControl
		}
	case wasm.PrefixSIMD:
		req |= wasm.FeatureSIMD
		if sub >= 0x100 {
			req |= wasm.FeatureRelaxedSIMD
		}
		if sub < uint32(len(simdFloatOps)) && simdFloatOps[sub] {
			req |= wasm.FeatureFloats
		}
	case wasm.PrefixAtomic:
		req |= wasm.FeatureThreads
	}
	return req
}

func (v *operatorValidator) checkFeatures(op wasm.Opcode) error {
	if err := v.features.Require(requiredFeatures(op)); err != nil {
		return v.errorf(FeatureDisabled, "%s invalid as %v", op, err)
	}
	return nil
}
