package validate

import "github.com/bvisness/wasm-validate/wasm"

// ConstExprValidator checks an initializer expression, such as a global's
// initial value or a segment offset, which must produce exactly one value of
// a fixed type using only constant instructions.
type ConstExprValidator struct {
	v operatorValidator
}

func NewConstExprValidator(res Resources, features wasm.Features, want wasm.ValType) *ConstExprValidator {
	c := &ConstExprValidator{v: newOperatorValidator(res, features, nil)}
	c.v.constant = true
	c.v.openFrame(FrameBlock, nil, resultsOf(want))
	return c
}

func (c *ConstExprValidator) Op(offset int, in *wasm.Instr) error {
	v := &c.v
	v.offset = offset
	if len(v.control) == 0 {
		return v.errorf(TrailingOrMissingEnd, "operators remaining after end of constant expression")
	}
	if err := v.checkFeatures(in.Op); err != nil {
		return err
	}

	switch in.Op {
	case wasm.OpI32Const, wasm.OpI64Const, wasm.OpF32Const, wasm.OpF64Const, wasm.OpV128Const,
		wasm.OpRefNull, wasm.OpRefFunc, wasm.OpGlobalGet, wasm.OpRefI31, wasm.OpEnd:
	case wasm.OpI32Add, wasm.OpI32Sub, wasm.OpI32Mul, wasm.OpI64Add, wasm.OpI64Sub, wasm.OpI64Mul:
		if !v.features.Has(wasm.FeatureExtendedConst) {
			return v.errorf(FeatureDisabled, "constant expression required: %s requires the extended-const feature", in.Op)
		}
	default:
		return v.errorf(StructuralError, "constant expression required: non-constant operator: %s", in.Op)
	}
	return v.op(in)
}

func (c *ConstExprValidator) Finish(offset int) error {
	return c.v.finish(offset)
}
