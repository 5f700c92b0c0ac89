package wasm

// MemArg is the memory immediate of loads, stores, atomics and lane
// accesses. Align is the log2 exponent exactly as encoded.
type MemArg struct {
	Align  uint32
	Offset uint64
	Memory uint32
}

// Instr is one decoded instruction. Only the immediates relevant to Op are
// meaningful; the rest stay zero.
//
// Index immediates are laid out as follows:
//
//	local.*, global.*, call, ref.func, throw, catch: Idx
//	br, br_if, br_on_*, rethrow, delegate: Idx (relative depth)
//	br_table: Labels (targets), Idx (default)
//	call_indirect, return_call_indirect: Idx (type), Idx2 (table)
//	call_ref, return_call_ref: Idx (type)
//	table.get/set/size/grow/fill, elem.drop, data.drop: Idx
//	memory.size/grow/fill/discard: Idx (memory)
//	memory.init: Idx (data segment), Idx2 (memory)
//	memory.copy, table.copy: Idx (destination), Idx2 (source)
//	table.init: Idx (element segment), Idx2 (table)
type Instr struct {
	Op     Opcode
	Block  BlockType
	Idx    uint32
	Idx2   uint32
	Labels []uint32
	Mem    MemArg
	Lane   byte
	Types  []ValType
	Heap   TypeCode

	I64  int64    // i32.const and i64.const
	Bits uint64   // f32.const and f64.const, as raw IEEE bits
	V128 [16]byte // v128.const, or the lane indices of i8x16.shuffle
}

func (in *Instr) String() string {
	return in.Op.String()
}
