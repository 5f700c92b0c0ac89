package validate

import "github.com/bvisness/wasm-validate/wasm"

func (v *operatorValidator) checkValType(t wasm.ValType) error {
	switch {
	case t.IsNumType():
		if (t == wasm.F32 || t == wasm.F64) && !v.features.Has(wasm.FeatureFloats) {
			return v.errorf(FeatureDisabled, "floating-point support is disabled")
		}
		return nil
	case t.IsVecType():
		if !v.features.Has(wasm.FeatureSIMD) {
			return v.errorf(FeatureDisabled, "SIMD support is not enabled")
		}
		return nil
	case t.IsRefType():
		return v.checkRefType(t.RefType())
	}
	return v.errorf(StructuralError, "invalid value type %s", t)
}

func (v *operatorValidator) checkRefType(rt wasm.RefType) error {
	if !v.features.Has(wasm.FeatureReferenceTypes) {
		return v.errorf(FeatureDisabled, "reference types support is not enabled")
	}
	if !rt.Null && !v.features.Has(wasm.FeatureFunctionReferences) {
		return v.errorf(FeatureDisabled, "function references required for non-nullable types")
	}
	return v.checkHeapType(rt.HT)
}

func (v *operatorValidator) checkHeapType(ht wasm.TypeCode) error {
	switch {
	case ht.IsConcreteHeapType():
		if !v.features.Has(wasm.FeatureFunctionReferences) {
			return v.errorf(FeatureDisabled, "function references required for index reference types")
		}
		if ht.TypeIndex() >= v.res.TypeCount() {
			return v.errorf(UnknownIndex, "unknown type %d: type index out of bounds", ht.TypeIndex())
		}
		return nil
	case ht == wasm.HTFunc, ht == wasm.HTExtern:
		return nil
	case ht == wasm.HTExn, ht == wasm.HTNoExn:
		if !v.features.Has(wasm.FeatureExceptions) {
			return v.errorf(FeatureDisabled, "exception refs not supported without the exceptions feature")
		}
		return nil
	case ht.IsAbstractHeapType():
		if !v.features.Has(wasm.FeatureGC) {
			return v.errorf(FeatureDisabled, "heap types not supported without the gc feature")
		}
		return nil
	}
	return v.errorf(StructuralError, "invalid heap type %s", ht)
}

// matches reports whether a value of type sub may be used where sup is
// expected.
func (v *operatorValidator) matches(sub, sup wasm.ValType) bool {
	if sub == sup {
		return true
	}
	if !sub.IsRefType() || !sup.IsRefType() {
		return false
	}
	return v.refMatches(sub.RefType(), sup.RefType())
}

func (v *operatorValidator) refMatches(sub, sup wasm.RefType) bool {
	if sub.Null && !sup.Null {
		return false
	}
	return v.heapMatches(sub.HT, sup.HT)
}

// heapMatches implements heap subtyping. Concrete types are always function
// types here, so they sit between func and nofunc.
func (v *operatorValidator) heapMatches(sub, sup wasm.TypeCode) bool {
	if sub == sup {
		return true
	}
	switch {
	case sub.IsConcreteHeapType() && sup.IsConcreteHeapType():
		a, ok1 := v.res.FuncType(sub.TypeIndex())
		b, ok2 := v.res.FuncType(sup.TypeIndex())
		return ok1 && ok2 && a.Equal(b)
	case sub.IsConcreteHeapType():
		return sup == wasm.HTFunc
	case sup.IsConcreteHeapType():
		return sub == wasm.HTNoFunc
	}

	switch sub {
	case wasm.HTNone:
		return sup == wasm.HTAny || sup == wasm.HTEq || sup == wasm.HTI31 || sup == wasm.HTStruct || sup == wasm.HTArray
	case wasm.HTI31, wasm.HTStruct, wasm.HTArray:
		return sup == wasm.HTEq || sup == wasm.HTAny
	case wasm.HTEq:
		return sup == wasm.HTAny
	case wasm.HTNoFunc:
		return sup == wasm.HTFunc
	case wasm.HTNoExtern:
		return sup == wasm.HTExtern
	case wasm.HTNoExn:
		return sup == wasm.HTExn
	}
	return false
}

func (v *operatorValidator) funcType(typeIdx uint32) (*wasm.FuncType, error) {
	ft, ok := v.res.FuncType(typeIdx)
	if !ok {
		return nil, v.errorf(UnknownIndex, "unknown type %d: type index out of bounds", typeIdx)
	}
	return ft, nil
}

func (v *operatorValidator) funcTypeOfFunction(funcIdx uint32) (uint32, *wasm.FuncType, error) {
	typeIdx, ok := v.res.TypeOfFunction(funcIdx)
	if !ok {
		return 0, nil, v.errorf(UnknownIndex, "unknown function %d: function index out of bounds", funcIdx)
	}
	ft, err := v.funcType(typeIdx)
	return typeIdx, ft, err
}

func (v *operatorValidator) memory(idx uint32) (wasm.MemType, error) {
	if idx != 0 && !v.features.Has(wasm.FeatureMultiMemory) {
		return wasm.MemType{}, v.errorf(FeatureDisabled, "multi-memory support is not enabled")
	}
	mt, ok := v.res.Memory(idx)
	if !ok {
		return mt, v.errorf(UnknownIndex, "unknown memory %d", idx)
	}
	return mt, nil
}

func (v *operatorValidator) table(idx uint32) (wasm.TableType, error) {
	tt, ok := v.res.Table(idx)
	if !ok {
		return tt, v.errorf(UnknownIndex, "unknown table %d: table index out of bounds", idx)
	}
	return tt, nil
}

func (v *operatorValidator) global(idx uint32) (wasm.GlobalType, error) {
	gt, ok := v.res.Global(idx)
	if !ok {
		return gt, v.errorf(UnknownIndex, "unknown global %d: global index out of bounds", idx)
	}
	return gt, nil
}

func (v *operatorValidator) tag(idx uint32) (*wasm.FuncType, error) {
	ft, ok := v.res.Tag(idx)
	if !ok {
		return nil, v.errorf(UnknownIndex, "unknown tag %d: tag index out of bounds", idx)
	}
	return ft, nil
}

func (v *operatorValidator) elemType(idx uint32) (wasm.RefType, error) {
	rt, ok := v.res.ElementType(idx)
	if !ok {
		return rt, v.errorf(UnknownIndex, "unknown elem segment %d: segment index out of bounds", idx)
	}
	return rt, nil
}

func (v *operatorValidator) checkDataIndex(idx uint32) error {
	count, ok := v.res.DataCount()
	if !ok {
		return v.errorf(StructuralError, "data count section required")
	}
	if idx >= count {
		return v.errorf(UnknownIndex, "unknown data segment %d", idx)
	}
	return nil
}

// Matches reports whether a value of type sub may be used where sup is
// expected, resolving concrete types through res.
func Matches(res Resources, sub, sup wasm.ValType) bool {
	v := operatorValidator{res: res}
	return v.matches(sub, sup)
}

// CheckValType checks that t is well formed for a module outside of any
// function body, such as a global, table or signature type.
func CheckValType(res Resources, features wasm.Features, offset int, t wasm.ValType) error {
	v := operatorValidator{res: res, features: features, offset: offset}
	return v.checkValType(t)
}
