package validate

import (
	"math"

	"github.com/bvisness/wasm-validate/wasm"
)

// checkMemarg resolves a memory immediate and returns the type of the
// address operand.
func (v *operatorValidator) checkMemarg(m wasm.MemArg, maxAlign uint32) (wasm.ValType, error) {
	mt, err := v.memory(m.Memory)
	if err != nil {
		return wasm.ValType{}, err
	}
	if m.Align > maxAlign {
		return wasm.ValType{}, v.errorf(StructuralError, "malformed memop alignment: alignment must not be larger than natural")
	}
	if mt.Lim.AT == wasm.ATI32 && m.Offset > math.MaxUint32 {
		return wasm.ValType{}, v.errorf(StructuralError, "offset out of range: must be <= 2**32")
	}
	return mt.Lim.AT.ValType(), nil
}

func (v *operatorValidator) load(m wasm.MemArg, t wasm.ValType, maxAlign uint32) error {
	at, err := v.checkMemarg(m, maxAlign)
	if err != nil {
		return err
	}
	return v.convert(at, t)
}

func (v *operatorValidator) store(m wasm.MemArg, t wasm.ValType, maxAlign uint32) error {
	at, err := v.checkMemarg(m, maxAlign)
	if err != nil {
		return err
	}
	if _, err := v.pop(t); err != nil {
		return err
	}
	_, err = v.pop(at)
	return err
}

// popAll pops each of ts in reverse order, like popValues, for fixed operand
// lists written inline.
func (v *operatorValidator) popAll(ts ...wasm.ValType) error {
	return v.popValues(ts)
}

// smallerAddr is the type of a length spanning two index spaces, which is
// 64-bit only when both are.
func smallerAddr(a, b wasm.AddressType) wasm.ValType {
	if a == wasm.ATI32 || b == wasm.ATI32 {
		return wasm.I32
	}
	return wasm.I64
}

func (v *operatorValidator) miscOp(in *wasm.Instr) error {
	switch in.Op {
	case wasm.OpI32TruncSatF32S, wasm.OpI32TruncSatF32U:
		return v.convert(wasm.F32, wasm.I32)
	case wasm.OpI32TruncSatF64S, wasm.OpI32TruncSatF64U:
		return v.convert(wasm.F64, wasm.I32)
	case wasm.OpI64TruncSatF32S, wasm.OpI64TruncSatF32U:
		return v.convert(wasm.F32, wasm.I64)
	case wasm.OpI64TruncSatF64S, wasm.OpI64TruncSatF64U:
		return v.convert(wasm.F64, wasm.I64)

	case wasm.OpMemoryInit:
		mt, err := v.memory(in.Idx2)
		if err != nil {
			return err
		}
		if err := v.checkDataIndex(in.Idx); err != nil {
			return err
		}
		return v.popAll(mt.Lim.AT.ValType(), wasm.I32, wasm.I32)
	case wasm.OpDataDrop:
		return v.checkDataIndex(in.Idx)
	case wasm.OpMemoryCopy:
		dst, err := v.memory(in.Idx)
		if err != nil {
			return err
		}
		src, err := v.memory(in.Idx2)
		if err != nil {
			return err
		}
		return v.popAll(dst.Lim.AT.ValType(), src.Lim.AT.ValType(), smallerAddr(dst.Lim.AT, src.Lim.AT))
	case wasm.OpMemoryFill:
		mt, err := v.memory(in.Idx)
		if err != nil {
			return err
		}
		at := mt.Lim.AT.ValType()
		return v.popAll(at, wasm.I32, at)
	case wasm.OpMemoryDiscard:
		mt, err := v.memory(in.Idx)
		if err != nil {
			return err
		}
		at := mt.Lim.AT.ValType()
		return v.popAll(at, at)

	case wasm.OpTableInit:
		tt, err := v.table(in.Idx2)
		if err != nil {
			return err
		}
		et, err := v.elemType(in.Idx)
		if err != nil {
			return err
		}
		if !v.refMatches(et, tt.ET) {
			return v.errorf(TypeMismatch, "type mismatch: element segment %s does not match table %s", et, tt.ET)
		}
		return v.popAll(tt.Lim.AT.ValType(), wasm.I32, wasm.I32)
	case wasm.OpElemDrop:
		_, err := v.elemType(in.Idx)
		return err
	case wasm.OpTableCopy:
		dst, err := v.table(in.Idx)
		if err != nil {
			return err
		}
		src, err := v.table(in.Idx2)
		if err != nil {
			return err
		}
		if !v.refMatches(src.ET, dst.ET) {
			return v.errorf(TypeMismatch, "type mismatch: cannot copy %s elements into a table of %s", src.ET, dst.ET)
		}
		return v.popAll(dst.Lim.AT.ValType(), src.Lim.AT.ValType(), smallerAddr(dst.Lim.AT, src.Lim.AT))
	case wasm.OpTableGrow:
		tt, err := v.table(in.Idx)
		if err != nil {
			return err
		}
		at := tt.Lim.AT.ValType()
		if err := v.popAll(wasm.Ref(tt.ET), at); err != nil {
			return err
		}
		v.push(at)
		return nil
	case wasm.OpTableSize:
		tt, err := v.table(in.Idx)
		if err != nil {
			return err
		}
		v.push(tt.Lim.AT.ValType())
		return nil
	case wasm.OpTableFill:
		tt, err := v.table(in.Idx)
		if err != nil {
			return err
		}
		at := tt.Lim.AT.ValType()
		return v.popAll(at, wasm.Ref(tt.ET), at)
	}
	return v.errorf(StructuralError, "unknown operator %s", in.Op)
}
