package validate

import "github.com/bvisness/wasm-validate/wasm"

// op checks one instruction and applies its effect to the operand and
// control stacks. Most instructions are a single call into one of the
// family helpers below.
func (v *operatorValidator) op(in *wasm.Instr) error {
	switch in.Op.Prefix() {
	case wasm.PrefixGC:
		return v.gcOp(in)
	case wasm.PrefixMisc:
		return v.miscOp(in)
	case wasm.PrefixSIMD:
		return v.simdOp(in)
	case wasm.PrefixAtomic:
		return v.atomicOp(in)
	}

	switch in.Op {
	// Control
	case wasm.OpUnreachable:
		v.unreachable()
		return nil
	case wasm.OpNop:
		return nil
	case wasm.OpBlock:
		return v.block(FrameBlock, in.Block)
	case wasm.OpLoop:
		return v.block(FrameLoop, in.Block)
	case wasm.OpIf:
		if _, err := v.pop(wasm.I32); err != nil {
			return err
		}
		return v.block(FrameIf, in.Block)
	case wasm.OpElse:
		return v.elseOp()
	case wasm.OpEnd:
		return v.end()
	case wasm.OpBr:
		return v.br(in.Idx)
	case wasm.OpBrIf:
		return v.brIf(in.Idx)
	case wasm.OpBrTable:
		return v.brTable(in.Labels, in.Idx)
	case wasm.OpReturn:
		if err := v.popValues(v.control[0].results); err != nil {
			return err
		}
		v.unreachable()
		return nil
	case wasm.OpCall:
		_, ft, err := v.funcTypeOfFunction(in.Idx)
		if err != nil {
			return err
		}
		return v.call(ft)
	case wasm.OpCallIndirect:
		ft, err := v.indirectCallee(in.Idx, in.Idx2)
		if err != nil {
			return err
		}
		return v.call(ft)
	case wasm.OpReturnCall:
		_, ft, err := v.funcTypeOfFunction(in.Idx)
		if err != nil {
			return err
		}
		return v.returnCall(ft)
	case wasm.OpReturnCallIndirect:
		ft, err := v.indirectCallee(in.Idx, in.Idx2)
		if err != nil {
			return err
		}
		return v.returnCall(ft)
	case wasm.OpCallRef:
		ft, err := v.refCallee(in.Idx)
		if err != nil {
			return err
		}
		return v.call(ft)
	case wasm.OpReturnCallRef:
		ft, err := v.refCallee(in.Idx)
		if err != nil {
			return err
		}
		return v.returnCall(ft)

	// Exceptions
	case wasm.OpTry:
		return v.block(FrameTry, in.Block)
	case wasm.OpCatch:
		return v.catch(in.Idx)
	case wasm.OpCatchAll:
		return v.catchAll()
	case wasm.OpThrow:
		return v.throw(in.Idx)
	case wasm.OpRethrow:
		return v.rethrow(in.Idx)
	case wasm.OpDelegate:
		return v.delegate(in.Idx)

	// Parametric
	case wasm.OpDrop:
		_, err := v.popAny()
		return err
	case wasm.OpSelect:
		return v.selectUntyped()
	case wasm.OpSelectTyped:
		return v.selectTyped(in.Types)

	// Variables
	case wasm.OpLocalGet:
		return v.localGet(in.Idx)
	case wasm.OpLocalSet:
		_, err := v.localSet(in.Idx)
		return err
	case wasm.OpLocalTee:
		t, err := v.localSet(in.Idx)
		if err != nil {
			return err
		}
		v.push(t)
		return nil
	case wasm.OpGlobalGet:
		return v.globalGet(in.Idx)
	case wasm.OpGlobalSet:
		gt, err := v.global(in.Idx)
		if err != nil {
			return err
		}
		if !gt.Mut {
			return v.errorf(StructuralError, "global is immutable: cannot modify it with `global.set`")
		}
		_, err = v.pop(gt.T)
		return err

	// Tables
	case wasm.OpTableGet:
		tt, err := v.table(in.Idx)
		if err != nil {
			return err
		}
		if _, err := v.pop(tt.Lim.AT.ValType()); err != nil {
			return err
		}
		v.push(wasm.Ref(tt.ET))
		return nil
	case wasm.OpTableSet:
		tt, err := v.table(in.Idx)
		if err != nil {
			return err
		}
		if _, err := v.pop(wasm.Ref(tt.ET)); err != nil {
			return err
		}
		_, err = v.pop(tt.Lim.AT.ValType())
		return err

	// Memory
	case wasm.OpI32Load:
		return v.load(in.Mem, wasm.I32, 2)
	case wasm.OpI64Load:
		return v.load(in.Mem, wasm.I64, 3)
	case wasm.OpF32Load:
		return v.load(in.Mem, wasm.F32, 2)
	case wasm.OpF64Load:
		return v.load(in.Mem, wasm.F64, 3)
	case wasm.OpI32Load8S, wasm.OpI32Load8U:
		return v.load(in.Mem, wasm.I32, 0)
	case wasm.OpI32Load16S, wasm.OpI32Load16U:
		return v.load(in.Mem, wasm.I32, 1)
	case wasm.OpI64Load8S, wasm.OpI64Load8U:
		return v.load(in.Mem, wasm.I64, 0)
	case wasm.OpI64Load16S, wasm.OpI64Load16U:
		return v.load(in.Mem, wasm.I64, 1)
	case wasm.OpI64Load32S, wasm.OpI64Load32U:
		return v.load(in.Mem, wasm.I64, 2)
	case wasm.OpI32Store:
		return v.store(in.Mem, wasm.I32, 2)
	case wasm.OpI64Store:
		return v.store(in.Mem, wasm.I64, 3)
	case wasm.OpF32Store:
		return v.store(in.Mem, wasm.F32, 2)
	case wasm.OpF64Store:
		return v.store(in.Mem, wasm.F64, 3)
	case wasm.OpI32Store8:
		return v.store(in.Mem, wasm.I32, 0)
	case wasm.OpI32Store16:
		return v.store(in.Mem, wasm.I32, 1)
	case wasm.OpI64Store8:
		return v.store(in.Mem, wasm.I64, 0)
	case wasm.OpI64Store16:
		return v.store(in.Mem, wasm.I64, 1)
	case wasm.OpI64Store32:
		return v.store(in.Mem, wasm.I64, 2)
	case wasm.OpMemorySize:
		mt, err := v.memory(in.Idx)
		if err != nil {
			return err
		}
		v.push(mt.Lim.AT.ValType())
		return nil
	case wasm.OpMemoryGrow:
		mt, err := v.memory(in.Idx)
		if err != nil {
			return err
		}
		return v.unary(mt.Lim.AT.ValType())

	// Constants
	case wasm.OpI32Const:
		v.push(wasm.I32)
		return nil
	case wasm.OpI64Const:
		v.push(wasm.I64)
		return nil
	case wasm.OpF32Const:
		v.push(wasm.F32)
		return nil
	case wasm.OpF64Const:
		v.push(wasm.F64)
		return nil

	// Numeric
	case wasm.OpI32Eqz:
		return v.test(wasm.I32)
	case wasm.OpI32Eq, wasm.OpI32Ne, wasm.OpI32LtS, wasm.OpI32LtU, wasm.OpI32GtS,
		wasm.OpI32GtU, wasm.OpI32LeS, wasm.OpI32LeU, wasm.OpI32GeS, wasm.OpI32GeU:
		return v.compare(wasm.I32)
	case wasm.OpI64Eqz:
		return v.test(wasm.I64)
	case wasm.OpI64Eq, wasm.OpI64Ne, wasm.OpI64LtS, wasm.OpI64LtU, wasm.OpI64GtS,
		wasm.OpI64GtU, wasm.OpI64LeS, wasm.OpI64LeU, wasm.OpI64GeS, wasm.OpI64GeU:
		return v.compare(wasm.I64)
	case wasm.OpF32Eq, wasm.OpF32Ne, wasm.OpF32Lt, wasm.OpF32Gt, wasm.OpF32Le, wasm.OpF32Ge:
		return v.compare(wasm.F32)
	case wasm.OpF64Eq, wasm.OpF64Ne, wasm.OpF64Lt, wasm.OpF64Gt, wasm.OpF64Le, wasm.OpF64Ge:
		return v.compare(wasm.F64)
	case wasm.OpI32Clz, wasm.OpI32Ctz, wasm.OpI32Popcnt, wasm.OpI32Extend8S, wasm.OpI32Extend16S:
		return v.unary(wasm.I32)
	case wasm.OpI32Add, wasm.OpI32Sub, wasm.OpI32Mul, wasm.OpI32DivS, wasm.OpI32DivU,
		wasm.OpI32RemS, wasm.OpI32RemU, wasm.OpI32And, wasm.OpI32Or, wasm.OpI32Xor,
		wasm.OpI32Shl, wasm.OpI32ShrS, wasm.OpI32ShrU, wasm.OpI32Rotl, wasm.OpI32Rotr:
		return v.binary(wasm.I32)
	case wasm.OpI64Clz, wasm.OpI64Ctz, wasm.OpI64Popcnt,
		wasm.OpI64Extend8S, wasm.OpI64Extend16S, wasm.OpI64Extend32S:
		return v.unary(wasm.I64)
	case wasm.OpI64Add, wasm.OpI64Sub, wasm.OpI64Mul, wasm.OpI64DivS, wasm.OpI64DivU,
		wasm.OpI64RemS, wasm.OpI64RemU, wasm.OpI64And, wasm.OpI64Or, wasm.OpI64Xor,
		wasm.OpI64Shl, wasm.OpI64ShrS, wasm.OpI64ShrU, wasm.OpI64Rotl, wasm.OpI64Rotr:
		return v.binary(wasm.I64)
	case wasm.OpF32Abs, wasm.OpF32Neg, wasm.OpF32Ceil, wasm.OpF32Floor,
		wasm.OpF32Trunc, wasm.OpF32Nearest, wasm.OpF32Sqrt:
		return v.unary(wasm.F32)
	case wasm.OpF32Add, wasm.OpF32Sub, wasm.OpF32Mul, wasm.OpF32Div,
		wasm.OpF32Min, wasm.OpF32Max, wasm.OpF32Copysign:
		return v.binary(wasm.F32)
	case wasm.OpF64Abs, wasm.OpF64Neg, wasm.OpF64Ceil, wasm.OpF64Floor,
		wasm.OpF64Trunc, wasm.OpF64Nearest, wasm.OpF64Sqrt:
		return v.unary(wasm.F64)
	case wasm.OpF64Add, wasm.OpF64Sub, wasm.OpF64Mul, wasm.OpF64Div,
		wasm.OpF64Min, wasm.OpF64Max, wasm.OpF64Copysign:
		return v.binary(wasm.F64)

	// Conversions
	case wasm.OpI32WrapI64:
		return v.convert(wasm.I64, wasm.I32)
	case wasm.OpI32TruncF32S, wasm.OpI32TruncF32U, wasm.OpI32ReinterpretF32:
		return v.convert(wasm.F32, wasm.I32)
	case wasm.OpI32TruncF64S, wasm.OpI32TruncF64U:
		return v.convert(wasm.F64, wasm.I32)
	case wasm.OpI64ExtendI32S, wasm.OpI64ExtendI32U:
		return v.convert(wasm.I32, wasm.I64)
	case wasm.OpI64TruncF32S, wasm.OpI64TruncF32U:
		return v.convert(wasm.F32, wasm.I64)
	case wasm.OpI64TruncF64S, wasm.OpI64TruncF64U, wasm.OpI64ReinterpretF64:
		return v.convert(wasm.F64, wasm.I64)
	case wasm.OpF32ConvertI32S, wasm.OpF32ConvertI32U, wasm.OpF32ReinterpretI32:
		return v.convert(wasm.I32, wasm.F32)
	case wasm.OpF32ConvertI64S, wasm.OpF32ConvertI64U:
		return v.convert(wasm.I64, wasm.F32)
	case wasm.OpF32DemoteF64:
		return v.convert(wasm.F64, wasm.F32)
	case wasm.OpF64ConvertI32S, wasm.OpF64ConvertI32U:
		return v.convert(wasm.I32, wasm.F64)
	case wasm.OpF64ConvertI64S, wasm.OpF64ConvertI64U, wasm.OpF64ReinterpretI64:
		return v.convert(wasm.I64, wasm.F64)
	case wasm.OpF64PromoteF32:
		return v.convert(wasm.F32, wasm.F64)

	// References
	case wasm.OpRefNull:
		return v.refNull(in.Heap)
	case wasm.OpRefIsNull:
		if _, err := v.popRef(); err != nil {
			return err
		}
		v.push(wasm.I32)
		return nil
	case wasm.OpRefFunc:
		return v.refFunc(in.Idx)
	case wasm.OpRefEq:
		eqref := wasm.Ref(wasm.RefType{Null: true, HT: wasm.HTEq})
		if _, err := v.pop(eqref); err != nil {
			return err
		}
		return v.convert(eqref, wasm.I32)
	case wasm.OpRefAsNonNull:
		r, err := v.popRef()
		if err != nil {
			return err
		}
		v.pushMaybe(asNonNull(r))
		return nil
	case wasm.OpBrOnNull:
		return v.brOnNull(in.Idx)
	case wasm.OpBrOnNonNull:
		return v.brOnNonNull(in.Idx)
	}
	return v.errorf(StructuralError, "unknown operator %s", in.Op)
}

func (v *operatorValidator) unary(t wasm.ValType) error {
	return v.convert(t, t)
}

func (v *operatorValidator) binary(t wasm.ValType) error {
	if _, err := v.pop(t); err != nil {
		return err
	}
	return v.convert(t, t)
}

func (v *operatorValidator) compare(t wasm.ValType) error {
	if _, err := v.pop(t); err != nil {
		return err
	}
	return v.convert(t, wasm.I32)
}

func (v *operatorValidator) test(t wasm.ValType) error {
	return v.convert(t, wasm.I32)
}

func (v *operatorValidator) convert(from, to wasm.ValType) error {
	if _, err := v.pop(from); err != nil {
		return err
	}
	v.push(to)
	return nil
}

func (v *operatorValidator) block(kind FrameKind, bt wasm.BlockType) error {
	params, results, err := v.blockSig(bt)
	if err != nil {
		return err
	}
	if err := v.popValues(params); err != nil {
		return err
	}
	v.pushCtrl(kind, params, results)
	return nil
}

func (v *operatorValidator) elseOp() error {
	if v.top().kind != FrameIf {
		return v.errorf(StructuralError, "else found outside of an `if` block")
	}
	f, err := v.popCtrl()
	if err != nil {
		return err
	}
	v.pushCtrl(FrameElse, f.params, f.results)
	return nil
}

func (v *operatorValidator) end() error {
	f, err := v.popCtrl()
	if err != nil {
		return err
	}
	// An if without an else behaves as if it had an empty one, which only
	// type-checks when the if's params equal its results.
	if f.kind == FrameIf {
		v.pushCtrl(FrameElse, f.params, f.results)
		if f, err = v.popCtrl(); err != nil {
			return err
		}
	}
	v.pushAll(f.results)
	if len(v.control) == 0 {
		v.endOffset = v.offset
	}
	return nil
}

func (v *operatorValidator) br(depth uint32) error {
	target, err := v.jump(depth)
	if err != nil {
		return err
	}
	if err := v.popValues(target.labelTypes()); err != nil {
		return err
	}
	v.unreachable()
	return nil
}

func (v *operatorValidator) brIf(depth uint32) error {
	if _, err := v.pop(wasm.I32); err != nil {
		return err
	}
	target, err := v.jump(depth)
	if err != nil {
		return err
	}
	return v.popPushLabel(target.labelTypes())
}

func (v *operatorValidator) brTable(labels []uint32, def uint32) error {
	if _, err := v.pop(wasm.I32); err != nil {
		return err
	}
	defTarget, err := v.jump(def)
	if err != nil {
		return err
	}
	defTypes := defTarget.labelTypes()
	for _, depth := range labels {
		target, err := v.jump(depth)
		if err != nil {
			return err
		}
		types := target.labelTypes()
		if len(types) != len(defTypes) {
			return v.errorf(TypeMismatch, "type mismatch: br_table target labels have different number of types")
		}
		v.popped = v.popped[:0]
		for i := len(types) - 1; i >= 0; i-- {
			m, err := v.pop(types[i])
			if err != nil {
				return err
			}
			v.popped = append(v.popped, m)
		}
		for i := len(v.popped) - 1; i >= 0; i-- {
			v.pushMaybe(v.popped[i])
		}
		v.popped = v.popped[:0]
	}
	if err := v.popValues(defTypes); err != nil {
		return err
	}
	v.unreachable()
	return nil
}

func (v *operatorValidator) call(ft *wasm.FuncType) error {
	if err := v.popValues(ft.Params); err != nil {
		return err
	}
	v.pushAll(ft.Results)
	return nil
}

// returnCall checks a tail call: the callee's results must be usable as the
// caller's.
func (v *operatorValidator) returnCall(ft *wasm.FuncType) error {
	if err := v.popValues(ft.Params); err != nil {
		return err
	}
	want := v.control[0].results
	ok := len(ft.Results) == len(want)
	for i := 0; ok && i < len(want); i++ {
		ok = v.matches(ft.Results[i], want[i])
	}
	if !ok {
		return v.errorf(TypeMismatch, "type mismatch: current function requires result type %s but callee returns %s",
			wasm.TypeList(want), wasm.TypeList(ft.Results))
	}
	v.unreachable()
	return nil
}

func (v *operatorValidator) indirectCallee(typeIdx, tableIdx uint32) (*wasm.FuncType, error) {
	if tableIdx != 0 && !v.features.Has(wasm.FeatureReferenceTypes) {
		return nil, v.errorf(FeatureDisabled, "reference-types not enabled: zero byte expected")
	}
	tt, err := v.table(tableIdx)
	if err != nil {
		return nil, err
	}
	if !v.refMatches(tt.ET, wasm.FuncRef.RefType()) {
		return nil, v.errorf(TypeMismatch, "indirect calls must go through a table with type <= funcref")
	}
	ft, err := v.funcType(typeIdx)
	if err != nil {
		return nil, err
	}
	if _, err := v.pop(tt.Lim.AT.ValType()); err != nil {
		return nil, err
	}
	return ft, nil
}

func (v *operatorValidator) refCallee(typeIdx uint32) (*wasm.FuncType, error) {
	ft, err := v.funcType(typeIdx)
	if err != nil {
		return nil, err
	}
	ref := wasm.Ref(wasm.RefType{Null: true, HT: wasm.ConcreteHeapType(typeIdx)})
	if _, err := v.pop(ref); err != nil {
		return nil, err
	}
	return ft, nil
}

func (v *operatorValidator) selectUntyped() error {
	if _, err := v.pop(wasm.I32); err != nil {
		return err
	}
	t1, err := v.popAny()
	if err != nil {
		return err
	}
	t2, err := v.popAny()
	if err != nil {
		return err
	}
	if t1.isRef() || t2.isRef() {
		return v.errorf(TypeMismatch, "type mismatch: select only takes integral types")
	}
	switch {
	case t1.IsBottom():
		v.pushMaybe(t2)
	case t2.IsBottom():
		v.pushMaybe(t1)
	default:
		if t1.t != t2.t {
			return v.errorf(TypeMismatch, "type mismatch: select operands have different types")
		}
		v.pushMaybe(t1)
	}
	return nil
}

func (v *operatorValidator) selectTyped(types []wasm.ValType) error {
	if len(types) != 1 {
		return v.errorf(StructuralError, "invalid result arity")
	}
	t := types[0]
	if err := v.checkValType(t); err != nil {
		return err
	}
	if _, err := v.pop(wasm.I32); err != nil {
		return err
	}
	if _, err := v.pop(t); err != nil {
		return err
	}
	if _, err := v.pop(t); err != nil {
		return err
	}
	v.push(t)
	return nil
}

func (v *operatorValidator) localGet(idx uint32) error {
	t, err := v.localType(idx)
	if err != nil {
		return err
	}
	if !v.localInits[idx] {
		return v.errorf(UninitializedLocal, "uninitialized local: %d", idx)
	}
	v.push(t)
	return nil
}

func (v *operatorValidator) localSet(idx uint32) (wasm.ValType, error) {
	t, err := v.localType(idx)
	if err != nil {
		return t, err
	}
	if _, err := v.pop(t); err != nil {
		return t, err
	}
	if !v.localInits[idx] {
		v.localInits[idx] = true
		v.inits = append(v.inits, idx)
	}
	return t, nil
}

func (v *operatorValidator) globalGet(idx uint32) error {
	gt, err := v.global(idx)
	if err != nil {
		return err
	}
	if v.constant && gt.Mut {
		return v.errorf(StructuralError, "constant expression required: global.get of mutable global")
	}
	v.push(gt.T)
	return nil
}
