package validate

import "github.com/bvisness/wasm-validate/wasm"

func asNonNull(m MaybeType) MaybeType {
	if t, ok := m.Type(); ok {
		return Concrete(wasm.Ref(t.RefType().AsNonNull()))
	}
	return HeapBottom
}

func (v *operatorValidator) refNull(ht wasm.TypeCode) error {
	if err := v.checkHeapType(ht); err != nil {
		return err
	}
	v.push(wasm.Ref(wasm.RefType{Null: true, HT: ht}))
	return nil
}

func (v *operatorValidator) refFunc(funcIdx uint32) error {
	typeIdx, _, err := v.funcTypeOfFunction(funcIdx)
	if err != nil {
		return err
	}
	// Constant expressions are where references get declared, so they are
	// exempt.
	if !v.constant && !v.res.IsFunctionReferenced(funcIdx) {
		return v.errorf(StructuralError, "undeclared function reference")
	}
	v.push(wasm.Ref(wasm.RefType{HT: wasm.ConcreteHeapType(typeIdx)}))
	return nil
}

func (v *operatorValidator) brOnNull(depth uint32) error {
	r, err := v.popRef()
	if err != nil {
		return err
	}
	target, err := v.jump(depth)
	if err != nil {
		return err
	}
	if err := v.popPushLabel(target.labelTypes()); err != nil {
		return err
	}
	v.pushMaybe(asNonNull(r))
	return nil
}

// brOnNonNull branches with the non-null reference as the last label
// operand, and falls through with the reference consumed.
func (v *operatorValidator) brOnNonNull(depth uint32) error {
	target, err := v.jump(depth)
	if err != nil {
		return err
	}
	types := target.labelTypes()
	if len(types) == 0 {
		return v.errorf(TypeMismatch, "type mismatch: br_on_non_null target has no label types")
	}
	last := types[len(types)-1]
	if !last.IsRefType() {
		return v.errorf(TypeMismatch, "type mismatch: br_on_non_null target does not end with heap type")
	}
	if _, err := v.pop(wasm.Ref(last.RefType().AsNullable())); err != nil {
		return err
	}
	return v.popPushLabel(types[:len(types)-1])
}

func (v *operatorValidator) gcOp(in *wasm.Instr) error {
	i31 := wasm.RefType{HT: wasm.HTI31}
	switch in.Op {
	case wasm.OpRefI31:
		return v.convert(wasm.I32, wasm.Ref(i31))
	case wasm.OpI31GetS, wasm.OpI31GetU:
		return v.convert(wasm.Ref(i31.AsNullable()), wasm.I32)
	}
	return v.errorf(StructuralError, "unknown operator %s", in.Op)
}
