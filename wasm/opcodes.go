package wasm

import "fmt"

// Opcode identifies one instruction. Single-byte opcodes are their own byte
// value; prefixed opcodes carry the prefix byte in the top eight bits and the
// LEB128 sub-opcode below it.
type Opcode uint32

const (
	PrefixGC     = 0xFB
	PrefixMisc   = 0xFC
	PrefixSIMD   = 0xFD
	PrefixAtomic = 0xFE
)

func PrefixedOpcode(prefix byte, sub uint32) Opcode {
	return Opcode(uint32(prefix)<<24 | sub)
}

func (op Opcode) Prefix() byte {
	return byte(op >> 24)
}

func (op Opcode) Sub() uint32 {
	return uint32(op) & 0xFFFFFF
}

const (
	OpUnreachable        Opcode = 0x00
	OpNop                Opcode = 0x01
	OpBlock              Opcode = 0x02
	OpLoop               Opcode = 0x03
	OpIf                 Opcode = 0x04
	OpElse               Opcode = 0x05
	OpTry                Opcode = 0x06
	OpCatch              Opcode = 0x07
	OpThrow              Opcode = 0x08
	OpRethrow            Opcode = 0x09
	OpEnd                Opcode = 0x0B
	OpBr                 Opcode = 0x0C
	OpBrIf               Opcode = 0x0D
	OpBrTable            Opcode = 0x0E
	OpReturn             Opcode = 0x0F
	OpCall               Opcode = 0x10
	OpCallIndirect       Opcode = 0x11
	OpReturnCall         Opcode = 0x12
	OpReturnCallIndirect Opcode = 0x13
	OpCallRef            Opcode = 0x14
	OpReturnCallRef      Opcode = 0x15
	OpDelegate           Opcode = 0x18
	OpCatchAll           Opcode = 0x19
	OpDrop               Opcode = 0x1A
	OpSelect             Opcode = 0x1B
	OpSelectTyped        Opcode = 0x1C

	OpLocalGet  Opcode = 0x20
	OpLocalSet  Opcode = 0x21
	OpLocalTee  Opcode = 0x22
	OpGlobalGet Opcode = 0x23
	OpGlobalSet Opcode = 0x24
	OpTableGet  Opcode = 0x25
	OpTableSet  Opcode = 0x26

	OpI32Load    Opcode = 0x28
	OpI64Load    Opcode = 0x29
	OpF32Load    Opcode = 0x2A
	OpF64Load    Opcode = 0x2B
	OpI32Load8S  Opcode = 0x2C
	OpI32Load8U  Opcode = 0x2D
	OpI32Load16S Opcode = 0x2E
	OpI32Load16U Opcode = 0x2F
	OpI64Load8S  Opcode = 0x30
	OpI64Load8U  Opcode = 0x31
	OpI64Load16S Opcode = 0x32
	OpI64Load16U Opcode = 0x33
	OpI64Load32S Opcode = 0x34
	OpI64Load32U Opcode = 0x35
	OpI32Store   Opcode = 0x36
	OpI64Store   Opcode = 0x37
	OpF32Store   Opcode = 0x38
	OpF64Store   Opcode = 0x39
	OpI32Store8  Opcode = 0x3A
	OpI32Store16 Opcode = 0x3B
	OpI64Store8  Opcode = 0x3C
	OpI64Store16 Opcode = 0x3D
	OpI64Store32 Opcode = 0x3E
	OpMemorySize Opcode = 0x3F
	OpMemoryGrow Opcode = 0x40

	OpI32Const Opcode = 0x41
	OpI64Const Opcode = 0x42
	OpF32Const Opcode = 0x43
	OpF64Const Opcode = 0x44

	OpI32Eqz Opcode = 0x45
	OpI32Eq  Opcode = 0x46
	OpI32Ne  Opcode = 0x47
	OpI32LtS Opcode = 0x48
	OpI32LtU Opcode = 0x49
	OpI32GtS Opcode = 0x4A
	OpI32GtU Opcode = 0x4B
	OpI32LeS Opcode = 0x4C
	OpI32LeU Opcode = 0x4D
	OpI32GeS Opcode = 0x4E
	OpI32GeU Opcode = 0x4F

	OpI64Eqz Opcode = 0x50
	OpI64Eq  Opcode = 0x51
	OpI64Ne  Opcode = 0x52
	OpI64LtS Opcode = 0x53
	OpI64LtU Opcode = 0x54
	OpI64GtS Opcode = 0x55
	OpI64GtU Opcode = 0x56
	OpI64LeS Opcode = 0x57
	OpI64LeU Opcode = 0x58
	OpI64GeS Opcode = 0x59
	OpI64GeU Opcode = 0x5A

	OpF32Eq Opcode = 0x5B
	OpF32Ne Opcode = 0x5C
	OpF32Lt Opcode = 0x5D
	OpF32Gt Opcode = 0x5E
	OpF32Le Opcode = 0x5F
	OpF32Ge Opcode = 0x60

	OpF64Eq Opcode = 0x61
	OpF64Ne Opcode = 0x62
	OpF64Lt Opcode = 0x63
	OpF64Gt Opcode = 0x64
	OpF64Le Opcode = 0x65
	OpF64Ge Opcode = 0x66

	OpI32Clz    Opcode = 0x67
	OpI32Ctz    Opcode = 0x68
	OpI32Popcnt Opcode = 0x69
	OpI32Add    Opcode = 0x6A
	OpI32Sub    Opcode = 0x6B
	OpI32Mul    Opcode = 0x6C
	OpI32DivS   Opcode = 0x6D
	OpI32DivU   Opcode = 0x6E
	OpI32RemS   Opcode = 0x6F
	OpI32RemU   Opcode = 0x70
	OpI32And    Opcode = 0x71
	OpI32Or     Opcode = 0x72
	OpI32Xor    Opcode = 0x73
	OpI32Shl    Opcode = 0x74
	OpI32ShrS   Opcode = 0x75
	OpI32ShrU   Opcode = 0x76
	OpI32Rotl   Opcode = 0x77
	OpI32Rotr   Opcode = 0x78

	OpI64Clz    Opcode = 0x79
	OpI64Ctz    Opcode = 0x7A
	OpI64Popcnt Opcode = 0x7B
	OpI64Add    Opcode = 0x7C
	OpI64Sub    Opcode = 0x7D
	OpI64Mul    Opcode = 0x7E
	OpI64DivS   Opcode = 0x7F
	OpI64DivU   Opcode = 0x80
	OpI64RemS   Opcode = 0x81
	OpI64RemU   Opcode = 0x82
	OpI64And    Opcode = 0x83
	OpI64Or     Opcode = 0x84
	OpI64Xor    Opcode = 0x85
	OpI64Shl    Opcode = 0x86
	OpI64ShrS   Opcode = 0x87
	OpI64ShrU   Opcode = 0x88
	OpI64Rotl   Opcode = 0x89
	OpI64Rotr   Opcode = 0x8A

	OpF32Abs      Opcode = 0x8B
	OpF32Neg      Opcode = 0x8C
	OpF32Ceil     Opcode = 0x8D
	OpF32Floor    Opcode = 0x8E
	OpF32Trunc    Opcode = 0x8F
	OpF32Nearest  Opcode = 0x90
	OpF32Sqrt     Opcode = 0x91
	OpF32Add      Opcode = 0x92
	OpF32Sub      Opcode = 0x93
	OpF32Mul      Opcode = 0x94
	OpF32Div      Opcode = 0x95
	OpF32Min      Opcode = 0x96
	OpF32Max      Opcode = 0x97
	OpF32Copysign Opcode = 0x98

	OpF64Abs      Opcode = 0x99
	OpF64Neg      Opcode = 0x9A
	OpF64Ceil     Opcode = 0x9B
	OpF64Floor    Opcode = 0x9C
	OpF64Trunc    Opcode = 0x9D
	OpF64Nearest  Opcode = 0x9E
	OpF64Sqrt     Opcode = 0x9F
	OpF64Add      Opcode = 0xA0
	OpF64Sub      Opcode = 0xA1
	OpF64Mul      Opcode = 0xA2
	OpF64Div      Opcode = 0xA3
	OpF64Min      Opcode = 0xA4
	OpF64Max      Opcode = 0xA5
	OpF64Copysign Opcode = 0xA6

	OpI32WrapI64        Opcode = 0xA7
	OpI32TruncF32S      Opcode = 0xA8
	OpI32TruncF32U      Opcode = 0xA9
	OpI32TruncF64S      Opcode = 0xAA
	OpI32TruncF64U      Opcode = 0xAB
	OpI64ExtendI32S     Opcode = 0xAC
	OpI64ExtendI32U     Opcode = 0xAD
	OpI64TruncF32S      Opcode = 0xAE
	OpI64TruncF32U      Opcode = 0xAF
	OpI64TruncF64S      Opcode = 0xB0
	OpI64TruncF64U      Opcode = 0xB1
	OpF32ConvertI32S    Opcode = 0xB2
	OpF32ConvertI32U    Opcode = 0xB3
	OpF32ConvertI64S    Opcode = 0xB4
	OpF32ConvertI64U    Opcode = 0xB5
	OpF32DemoteF64      Opcode = 0xB6
	OpF64ConvertI32S    Opcode = 0xB7
	OpF64ConvertI32U    Opcode = 0xB8
	OpF64ConvertI64S    Opcode = 0xB9
	OpF64ConvertI64U    Opcode = 0xBA
	OpF64PromoteF32     Opcode = 0xBB
	OpI32ReinterpretF32 Opcode = 0xBC
	OpI64ReinterpretF64 Opcode = 0xBD
	OpF32ReinterpretI32 Opcode = 0xBE
	OpF64ReinterpretI64 Opcode = 0xBF

	OpI32Extend8S  Opcode = 0xC0
	OpI32Extend16S Opcode = 0xC1
	OpI64Extend8S  Opcode = 0xC2
	OpI64Extend16S Opcode = 0xC3
	OpI64Extend32S Opcode = 0xC4

	OpRefNull      Opcode = 0xD0
	OpRefIsNull    Opcode = 0xD1
	OpRefFunc      Opcode = 0xD2
	OpRefEq        Opcode = 0xD3
	OpRefAsNonNull Opcode = 0xD4
	OpBrOnNull     Opcode = 0xD5
	OpBrOnNonNull  Opcode = 0xD6
)

const (
	OpRefI31  Opcode = PrefixGC<<24 | 0x1C
	OpI31GetS Opcode = PrefixGC<<24 | 0x1D
	OpI31GetU Opcode = PrefixGC<<24 | 0x1E
)

const (
	OpI32TruncSatF32S Opcode = PrefixMisc<<24 | 0x00
	OpI32TruncSatF32U Opcode = PrefixMisc<<24 | 0x01
	OpI32TruncSatF64S Opcode = PrefixMisc<<24 | 0x02
	OpI32TruncSatF64U Opcode = PrefixMisc<<24 | 0x03
	OpI64TruncSatF32S Opcode = PrefixMisc<<24 | 0x04
	OpI64TruncSatF32U Opcode = PrefixMisc<<24 | 0x05
	OpI64TruncSatF64S Opcode = PrefixMisc<<24 | 0x06
	OpI64TruncSatF64U Opcode = PrefixMisc<<24 | 0x07
	OpMemoryInit      Opcode = PrefixMisc<<24 | 0x08
	OpDataDrop        Opcode = PrefixMisc<<24 | 0x09
	OpMemoryCopy      Opcode = PrefixMisc<<24 | 0x0A
	OpMemoryFill      Opcode = PrefixMisc<<24 | 0x0B
	OpTableInit       Opcode = PrefixMisc<<24 | 0x0C
	OpElemDrop        Opcode = PrefixMisc<<24 | 0x0D
	OpTableCopy       Opcode = PrefixMisc<<24 | 0x0E
	OpTableGrow       Opcode = PrefixMisc<<24 | 0x0F
	OpTableSize       Opcode = PrefixMisc<<24 | 0x10
	OpTableFill       Opcode = PrefixMisc<<24 | 0x11
	OpMemoryDiscard   Opcode = PrefixMisc<<24 | 0x12
)

// Atomic opcodes with irregular shapes. The load, store and read-modify-write
// families are addressed by sub-opcode; see AtomicNames.
const (
	OpMemoryAtomicNotify  Opcode = PrefixAtomic<<24 | 0x00
	OpMemoryAtomicWait32  Opcode = PrefixAtomic<<24 | 0x01
	OpMemoryAtomicWait64  Opcode = PrefixAtomic<<24 | 0x02
	OpAtomicFence         Opcode = PrefixAtomic<<24 | 0x03
	OpI32AtomicLoad       Opcode = PrefixAtomic<<24 | 0x10
	OpI64AtomicLoad       Opcode = PrefixAtomic<<24 | 0x11
	OpI32AtomicLoad8U     Opcode = PrefixAtomic<<24 | 0x12
	OpI32AtomicStore      Opcode = PrefixAtomic<<24 | 0x17
	OpI64AtomicStore      Opcode = PrefixAtomic<<24 | 0x18
	OpI32AtomicRmwAdd     Opcode = PrefixAtomic<<24 | 0x1E
	OpI64AtomicRmw32XchgU Opcode = PrefixAtomic<<24 | 0x47
	OpI32AtomicRmwCmpxchg Opcode = PrefixAtomic<<24 | 0x48
)

// SIMD opcodes whose immediates or shapes are handled individually. The
// remaining vector instructions are regular enough to be described by table.
const (
	OpV128Load          Opcode = PrefixSIMD<<24 | 0x00
	OpV128Load8Splat    Opcode = PrefixSIMD<<24 | 0x07
	OpV128Store         Opcode = PrefixSIMD<<24 | 0x0B
	OpV128Const         Opcode = PrefixSIMD<<24 | 0x0C
	OpI8x16Shuffle      Opcode = PrefixSIMD<<24 | 0x0D
	OpI8x16Swizzle      Opcode = PrefixSIMD<<24 | 0x0E
	OpI8x16Splat        Opcode = PrefixSIMD<<24 | 0x0F
	OpI32x4Splat        Opcode = PrefixSIMD<<24 | 0x11
	OpF64x2Splat        Opcode = PrefixSIMD<<24 | 0x14
	OpI8x16ExtractLaneS Opcode = PrefixSIMD<<24 | 0x15
	OpI8x16ReplaceLane  Opcode = PrefixSIMD<<24 | 0x17
	OpI64x2ExtractLane  Opcode = PrefixSIMD<<24 | 0x1D
	OpF32x4ExtractLane  Opcode = PrefixSIMD<<24 | 0x1F
	OpV128Not           Opcode = PrefixSIMD<<24 | 0x4D
	OpV128Bitselect     Opcode = PrefixSIMD<<24 | 0x52
	OpV128AnyTrue       Opcode = PrefixSIMD<<24 | 0x53
	OpV128Load8Lane     Opcode = PrefixSIMD<<24 | 0x54
	OpV128Load64Lane    Opcode = PrefixSIMD<<24 | 0x57
	OpV128Store32Lane   Opcode = PrefixSIMD<<24 | 0x5A
	OpI8x16Shl          Opcode = PrefixSIMD<<24 | 0x6B
	OpI32x4Add          Opcode = PrefixSIMD<<24 | 0xAE
	OpF32x4Add          Opcode = PrefixSIMD<<24 | 0xE4
	OpF32x4RelaxedMadd  Opcode = PrefixSIMD<<24 | 0x105
)

var coreNames = [256]string{
	0x00: "unreachable", 0x01: "nop", 0x02: "block", 0x03: "loop", 0x04: "if", 0x05: "else",
	0x06: "try", 0x07: "catch", 0x08: "throw", 0x09: "rethrow", 0x0B: "end",
	0x0C: "br", 0x0D: "br_if", 0x0E: "br_table", 0x0F: "return",
	0x10: "call", 0x11: "call_indirect", 0x12: "return_call", 0x13: "return_call_indirect",
	0x14: "call_ref", 0x15: "return_call_ref", 0x18: "delegate", 0x19: "catch_all",
	0x1A: "drop", 0x1B: "select", 0x1C: "select",
	0x20: "local.get", 0x21: "local.set", 0x22: "local.tee", 0x23: "global.get", 0x24: "global.set",
	0x25: "table.get", 0x26: "table.set",
	0x28: "i32.load", 0x29: "i64.load", 0x2A: "f32.load", 0x2B: "f64.load",
	0x2C: "i32.load8_s", 0x2D: "i32.load8_u", 0x2E: "i32.load16_s", 0x2F: "i32.load16_u",
	0x30: "i64.load8_s", 0x31: "i64.load8_u", 0x32: "i64.load16_s", 0x33: "i64.load16_u",
	0x34: "i64.load32_s", 0x35: "i64.load32_u",
	0x36: "i32.store", 0x37: "i64.store", 0x38: "f32.store", 0x39: "f64.store",
	0x3A: "i32.store8", 0x3B: "i32.store16", 0x3C: "i64.store8", 0x3D: "i64.store16", 0x3E: "i64.store32",
	0x3F: "memory.size", 0x40: "memory.grow",
	0x41: "i32.const", 0x42: "i64.const", 0x43: "f32.const", 0x44: "f64.const",
	0x45: "i32.eqz", 0x46: "i32.eq", 0x47: "i32.ne", 0x48: "i32.lt_s", 0x49: "i32.lt_u",
	0x4A: "i32.gt_s", 0x4B: "i32.gt_u", 0x4C: "i32.le_s", 0x4D: "i32.le_u", 0x4E: "i32.ge_s", 0x4F: "i32.ge_u",
	0x50: "i64.eqz", 0x51: "i64.eq", 0x52: "i64.ne", 0x53: "i64.lt_s", 0x54: "i64.lt_u",
	0x55: "i64.gt_s", 0x56: "i64.gt_u", 0x57: "i64.le_s", 0x58: "i64.le_u", 0x59: "i64.ge_s", 0x5A: "i64.ge_u",
	0x5B: "f32.eq", 0x5C: "f32.ne", 0x5D: "f32.lt", 0x5E: "f32.gt", 0x5F: "f32.le", 0x60: "f32.ge",
	0x61: "f64.eq", 0x62: "f64.ne", 0x63: "f64.lt", 0x64: "f64.gt", 0x65: "f64.le", 0x66: "f64.ge",
	0x67: "i32.clz", 0x68: "i32.ctz", 0x69: "i32.popcnt", 0x6A: "i32.add", 0x6B: "i32.sub",
	0x6C: "i32.mul", 0x6D: "i32.div_s", 0x6E: "i32.div_u", 0x6F: "i32.rem_s", 0x70: "i32.rem_u",
	0x71: "i32.and", 0x72: "i32.or", 0x73: "i32.xor", 0x74: "i32.shl", 0x75: "i32.shr_s",
	0x76: "i32.shr_u", 0x77: "i32.rotl", 0x78: "i32.rotr",
	0x79: "i64.clz", 0x7A: "i64.ctz", 0x7B: "i64.popcnt", 0x7C: "i64.add", 0x7D: "i64.sub",
	0x7E: "i64.mul", 0x7F: "i64.div_s", 0x80: "i64.div_u", 0x81: "i64.rem_s", 0x82: "i64.rem_u",
	0x83: "i64.and", 0x84: "i64.or", 0x85: "i64.xor", 0x86: "i64.shl", 0x87: "i64.shr_s",
	0x88: "i64.shr_u", 0x89: "i64.rotl", 0x8A: "i64.rotr",
	0x8B: "f32.abs", 0x8C: "f32.neg", 0x8D: "f32.ceil", 0x8E: "f32.floor", 0x8F: "f32.trunc",
	0x90: "f32.nearest", 0x91: "f32.sqrt", 0x92: "f32.add", 0x93: "f32.sub", 0x94: "f32.mul",
	0x95: "f32.div", 0x96: "f32.min", 0x97: "f32.max", 0x98: "f32.copysign",
	0x99: "f64.abs", 0x9A: "f64.neg", 0x9B: "f64.ceil", 0x9C: "f64.floor", 0x9D: "f64.trunc",
	0x9E: "f64.nearest", 0x9F: "f64.sqrt", 0xA0: "f64.add", 0xA1: "f64.sub", 0xA2: "f64.mul",
	0xA3: "f64.div", 0xA4: "f64.min", 0xA5: "f64.max", 0xA6: "f64.copysign",
	0xA7: "i32.wrap_i64", 0xA8: "i32.trunc_f32_s", 0xA9: "i32.trunc_f32_u", 0xAA: "i32.trunc_f64_s",
	0xAB: "i32.trunc_f64_u", 0xAC: "i64.extend_i32_s", 0xAD: "i64.extend_i32_u", 0xAE: "i64.trunc_f32_s",
	0xAF: "i64.trunc_f32_u", 0xB0: "i64.trunc_f64_s", 0xB1: "i64.trunc_f64_u",
	0xB2: "f32.convert_i32_s", 0xB3: "f32.convert_i32_u", 0xB4: "f32.convert_i64_s", 0xB5: "f32.convert_i64_u",
	0xB6: "f32.demote_f64", 0xB7: "f64.convert_i32_s", 0xB8: "f64.convert_i32_u", 0xB9: "f64.convert_i64_s",
	0xBA: "f64.convert_i64_u", 0xBB: "f64.promote_f32",
	0xBC: "i32.reinterpret_f32", 0xBD: "i64.reinterpret_f64", 0xBE: "f32.reinterpret_i32", 0xBF: "f64.reinterpret_i64",
	0xC0: "i32.extend8_s", 0xC1: "i32.extend16_s", 0xC2: "i64.extend8_s", 0xC3: "i64.extend16_s", 0xC4: "i64.extend32_s",
	0xD0: "ref.null", 0xD1: "ref.is_null", 0xD2: "ref.func", 0xD3: "ref.eq", 0xD4: "ref.as_non_null",
	0xD5: "br_on_null", 0xD6: "br_on_non_null",
}

var gcNames = map[uint32]string{
	0x1C: "ref.i31",
	0x1D: "i31.get_s",
	0x1E: "i31.get_u",
}

var miscNames = [...]string{
	"i32.trunc_sat_f32_s", "i32.trunc_sat_f32_u", "i32.trunc_sat_f64_s", "i32.trunc_sat_f64_u",
	"i64.trunc_sat_f32_s", "i64.trunc_sat_f32_u", "i64.trunc_sat_f64_s", "i64.trunc_sat_f64_u",
	"memory.init", "data.drop", "memory.copy", "memory.fill",
	"table.init", "elem.drop", "table.copy", "table.grow", "table.size", "table.fill",
	"memory.discard",
}

// AtomicNames is indexed by sub-opcode after the 0xFE prefix.
var AtomicNames [0x4F]string

func init() {
	AtomicNames[0x00] = "memory.atomic.notify"
	AtomicNames[0x01] = "memory.atomic.wait32"
	AtomicNames[0x02] = "memory.atomic.wait64"
	AtomicNames[0x03] = "atomic.fence"

	// Loads and stores come in the same seven widths as each rmw family.
	widths := []string{"i32.atomic.%s", "i64.atomic.%s", "i32.atomic.%s8_u", "i32.atomic.%s16_u", "i64.atomic.%s8_u", "i64.atomic.%s16_u", "i64.atomic.%s32_u"}
	for i, w := range widths {
		AtomicNames[0x10+i] = fmt.Sprintf(w, "load")
	}
	storeWidths := []string{"i32.atomic.store", "i64.atomic.store", "i32.atomic.store8", "i32.atomic.store16", "i64.atomic.store8", "i64.atomic.store16", "i64.atomic.store32"}
	for i, name := range storeWidths {
		AtomicNames[0x17+i] = name
	}

	rmwWidths := []string{"i32.atomic.rmw.%s", "i64.atomic.rmw.%s", "i32.atomic.rmw8.%s_u", "i32.atomic.rmw16.%s_u", "i64.atomic.rmw8.%s_u", "i64.atomic.rmw16.%s_u", "i64.atomic.rmw32.%s_u"}
	for f, op := range []string{"add", "sub", "and", "or", "xor", "xchg", "cmpxchg"} {
		for i, w := range rmwWidths {
			AtomicNames[0x1E+7*f+i] = fmt.Sprintf(w, op)
		}
	}
}

func (op Opcode) String() string {
	var name string
	sub := op.Sub()
	switch op.Prefix() {
	case 0:
		if sub < 256 {
			name = coreNames[sub]
		}
	case PrefixGC:
		name = gcNames[sub]
	case PrefixMisc:
		if sub < uint32(len(miscNames)) {
			name = miscNames[sub]
		}
	case PrefixSIMD:
		if sub < uint32(len(SIMDNames)) {
			name = SIMDNames[sub]
		}
	case PrefixAtomic:
		if sub < uint32(len(AtomicNames)) {
			name = AtomicNames[sub]
		}
	}
	if name == "" {
		if op.Prefix() != 0 {
			return fmt.Sprintf("<unknown opcode 0x%02x %d>", op.Prefix(), sub)
		}
		return fmt.Sprintf("<unknown opcode 0x%02x>", sub)
	}
	return name
}

// Known reports whether op names a real instruction.
func (op Opcode) Known() bool {
	return op.String()[0] != '<'
}
