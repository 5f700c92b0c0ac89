package validate

import "github.com/bvisness/wasm-validate/wasm"

// Every atomic load, store and read-modify-write family comes in the same
// seven widths, in this order.
var atomicWidths = [7]struct {
	t     wasm.ValType
	align uint32
}{
	{wasm.I32, 2}, {wasm.I64, 3},
	{wasm.I32, 0}, {wasm.I32, 1},
	{wasm.I64, 0}, {wasm.I64, 1}, {wasm.I64, 2},
}

const (
	atomicLoadBase    = 0x10
	atomicStoreBase   = 0x17
	atomicRmwBase     = 0x1E
	atomicCmpxchgBase = 0x48
	atomicEnd         = 0x4F
)

// checkAtomicMemarg is checkMemarg with the stricter rule that atomics must
// be naturally aligned.
func (v *operatorValidator) checkAtomicMemarg(m wasm.MemArg, align uint32) (wasm.ValType, error) {
	if m.Align != align {
		if _, err := v.memory(m.Memory); err != nil {
			return wasm.ValType{}, err
		}
		return wasm.ValType{}, v.errorf(StructuralError, "invalid memop alignment: alignment must be equal to natural")
	}
	return v.checkMemarg(m, align)
}

func (v *operatorValidator) atomicOp(in *wasm.Instr) error {
	sub := in.Op.Sub()
	switch {
	case in.Op == wasm.OpMemoryAtomicNotify:
		at, err := v.checkAtomicMemarg(in.Mem, 2)
		if err != nil {
			return err
		}
		if err := v.popAll(at, wasm.I32); err != nil {
			return err
		}
		v.push(wasm.I32)
		return nil
	case in.Op == wasm.OpMemoryAtomicWait32, in.Op == wasm.OpMemoryAtomicWait64:
		t, align := wasm.I32, uint32(2)
		if in.Op == wasm.OpMemoryAtomicWait64 {
			t, align = wasm.I64, 3
		}
		at, err := v.checkAtomicMemarg(in.Mem, align)
		if err != nil {
			return err
		}
		if err := v.popAll(at, t, wasm.I64); err != nil {
			return err
		}
		v.push(wasm.I32)
		return nil
	case in.Op == wasm.OpAtomicFence:
		return nil

	case sub >= atomicLoadBase && sub < atomicStoreBase:
		w := atomicWidths[sub-atomicLoadBase]
		at, err := v.checkAtomicMemarg(in.Mem, w.align)
		if err != nil {
			return err
		}
		return v.convert(at, w.t)
	case sub >= atomicStoreBase && sub < atomicRmwBase:
		w := atomicWidths[sub-atomicStoreBase]
		at, err := v.checkAtomicMemarg(in.Mem, w.align)
		if err != nil {
			return err
		}
		return v.popAll(at, w.t)
	case sub >= atomicRmwBase && sub < atomicCmpxchgBase:
		w := atomicWidths[(sub-atomicRmwBase)%7]
		at, err := v.checkAtomicMemarg(in.Mem, w.align)
		if err != nil {
			return err
		}
		if err := v.popAll(at, w.t); err != nil {
			return err
		}
		v.push(w.t)
		return nil
	case sub >= atomicCmpxchgBase && sub < atomicEnd:
		w := atomicWidths[sub-atomicCmpxchgBase]
		at, err := v.checkAtomicMemarg(in.Mem, w.align)
		if err != nil {
			return err
		}
		if err := v.popAll(at, w.t, w.t); err != nil {
			return err
		}
		v.push(w.t)
		return nil
	}
	return v.errorf(StructuralError, "unknown operator %s", in.Op)
}
