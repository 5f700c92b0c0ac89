package module

import (
	"encoding/binary"
	"fmt"

	"github.com/bvisness/wasm-validate/wasm"
)

// ReadInstr decodes one instruction and its immediates into in, reusing the
// slices already held by in.
func (p *parser) ReadInstr(in *wasm.Instr) error {
	*in = wasm.Instr{Labels: in.Labels[:0], Types: in.Types[:0]}

	at := p.cur
	b, err := p.ReadByte("opcode")
	if err != nil {
		return err
	}

	switch b {
	case wasm.PrefixGC, wasm.PrefixMisc, wasm.PrefixSIMD, wasm.PrefixAtomic:
		sub, err := p.ReadU32("opcode")
		if err != nil {
			return err
		}
		in.Op = wasm.PrefixedOpcode(b, sub)
	default:
		in.Op = wasm.Opcode(b)
	}
	if !in.Op.Known() {
		return fmt.Errorf("instruction at offset %d: illegal opcode: %s", at, in.Op)
	}

	switch in.Op.Prefix() {
	case 0:
		return p.readCoreImmediates(in)
	case wasm.PrefixMisc:
		return p.readMiscImmediates(in)
	case wasm.PrefixSIMD:
		return p.readSIMDImmediates(in)
	case wasm.PrefixAtomic:
		if in.Op == wasm.OpAtomicFence {
			return p.Expect("atomic.fence flags", []byte{0})
		}
		in.Mem, err = p.ReadMemArg("memarg")
		return err
	}
	return nil
}

func (p *parser) readCoreImmediates(in *wasm.Instr) error {
	var err error
	switch op := in.Op; {
	case op == wasm.OpBlock || op == wasm.OpLoop || op == wasm.OpIf || op == wasm.OpTry:
		in.Block, err = p.ReadBlockType("block type")
	case op == wasm.OpBrTable:
		var n uint32
		if n, err = p.ReadCount("br_table targets"); err != nil {
			return err
		}
		for range n {
			label, err := p.ReadU32("br_table target")
			if err != nil {
				return err
			}
			in.Labels = append(in.Labels, label)
		}
		in.Idx, err = p.ReadU32("br_table default")
	case op == wasm.OpCallIndirect || op == wasm.OpReturnCallIndirect:
		if in.Idx, err = p.ReadU32("type index"); err != nil {
			return err
		}
		in.Idx2, err = p.ReadU32("table index")
	case op == wasm.OpSelectTyped:
		var n uint32
		if n, err = p.ReadCount("select types"); err != nil {
			return err
		}
		for range n {
			t, err := p.ReadValType("select type")
			if err != nil {
				return err
			}
			in.Types = append(in.Types, t)
		}
	case op == wasm.OpCatch || op == wasm.OpThrow || op == wasm.OpRethrow || op == wasm.OpDelegate,
		op == wasm.OpBr || op == wasm.OpBrIf || op == wasm.OpBrOnNull || op == wasm.OpBrOnNonNull,
		op == wasm.OpCall || op == wasm.OpReturnCall || op == wasm.OpCallRef || op == wasm.OpReturnCallRef,
		op == wasm.OpRefFunc,
		wasm.OpLocalGet <= op && op <= wasm.OpTableSet,
		op == wasm.OpMemorySize || op == wasm.OpMemoryGrow:
		in.Idx, err = p.ReadU32("index")
	case wasm.OpI32Load <= op && op <= wasm.OpI64Store32:
		in.Mem, err = p.ReadMemArg("memarg")
	case op == wasm.OpI32Const:
		var v int32
		v, err = p.ReadS32("i32 constant")
		in.I64 = int64(v)
	case op == wasm.OpI64Const:
		in.I64, err = p.ReadS64("i64 constant")
	case op == wasm.OpF32Const:
		var b []byte
		if b, err = p.ReadN("f32 constant", 4); err == nil {
			in.Bits = uint64(binary.LittleEndian.Uint32(b))
		}
	case op == wasm.OpF64Const:
		var b []byte
		if b, err = p.ReadN("f64 constant", 8); err == nil {
			in.Bits = binary.LittleEndian.Uint64(b)
		}
	case op == wasm.OpRefNull:
		in.Heap, err = p.ReadHeapType("heap type")
	}
	return err
}

func (p *parser) readMiscImmediates(in *wasm.Instr) error {
	var err error
	switch in.Op {
	case wasm.OpMemoryInit, wasm.OpMemoryCopy, wasm.OpTableInit, wasm.OpTableCopy:
		if in.Idx, err = p.ReadU32("index"); err != nil {
			return err
		}
		in.Idx2, err = p.ReadU32("index")
	case wasm.OpDataDrop, wasm.OpMemoryFill, wasm.OpElemDrop, wasm.OpTableGrow,
		wasm.OpTableSize, wasm.OpTableFill, wasm.OpMemoryDiscard:
		in.Idx, err = p.ReadU32("index")
	}
	return err
}

func (p *parser) readSIMDImmediates(in *wasm.Instr) error {
	var err error
	sub := in.Op.Sub()
	switch {
	case sub <= 0x0B, sub == 0x5C, sub == 0x5D:
		in.Mem, err = p.ReadMemArg("memarg")
	case sub == 0x0C, sub == 0x0D:
		var b []byte
		if b, err = p.ReadN("v128 immediate", 16); err == nil {
			copy(in.V128[:], b)
		}
	case 0x15 <= sub && sub <= 0x22:
		in.Lane, err = p.ReadByte("lane index")
	case 0x54 <= sub && sub <= 0x5B:
		if in.Mem, err = p.ReadMemArg("memarg"); err != nil {
			return err
		}
		in.Lane, err = p.ReadByte("lane index")
	}
	return err
}
