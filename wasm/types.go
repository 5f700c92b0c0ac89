package wasm

import (
	"fmt"
	"strings"
)

type MemType struct {
	Lim    Limits
	Shared bool
}

type TableType struct {
	ET  RefType
	Lim Limits
}

type GlobalType struct {
	Mut bool
	T   ValType
}

type AddressType int

const (
	ATI32 AddressType = iota
	ATI64
)

// ValType is the type of values used to index into a memory or table with
// this address type.
func (at AddressType) ValType() ValType {
	if at == ATI64 {
		return I64
	}
	return I32
}

type Limits struct {
	AT       AddressType
	Min, Max uint64
	HasMax   bool
}

type FuncType struct {
	Params  []ValType
	Results []ValType
}

func (ft *FuncType) Equal(other *FuncType) bool {
	if ft == other {
		return true
	}
	if ft == nil || other == nil {
		return false
	}
	return typesEqual(ft.Params, other.Params) && typesEqual(ft.Results, other.Results)
}

func (ft *FuncType) String() string {
	return fmt.Sprintf("%s -> %s", TypeList(ft.Params), TypeList(ft.Results))
}

func typesEqual(a, b []ValType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// TypeList formats a list of types the way the text format writes result
// and parameter lists.
func TypeList(ts []ValType) string {
	strs := make([]string, len(ts))
	for i, t := range ts {
		strs[i] = t.String()
	}
	return "[" + strings.Join(strs, " ") + "]"
}

type ValType struct {
	isRef        bool
	numOrVecType TypeCode
	refType      RefType
}

var (
	I32  = ValType{numOrVecType: NTI32}
	I64  = ValType{numOrVecType: NTI64}
	F32  = ValType{numOrVecType: NTF32}
	F64  = ValType{numOrVecType: NTF64}
	V128 = ValType{numOrVecType: VTV128}

	FuncRef   = Ref(RefType{Null: true, HT: HTFunc})
	ExternRef = Ref(RefType{Null: true, HT: HTExtern})
	ExnRef    = Ref(RefType{Null: true, HT: HTExn})
)

func Ref(rt RefType) ValType {
	return ValType{isRef: true, refType: rt}
}

// ValTypeOf converts a num or vec type code into a value type.
func ValTypeOf(tc TypeCode) (ValType, bool) {
	if tc.IsNumType() || tc.IsVecType() {
		return ValType{numOrVecType: tc}, true
	}
	return ValType{}, false
}

func (vt ValType) IsNumType() bool {
	return !vt.isRef && vt.numOrVecType.IsNumType()
}

func (vt ValType) IsVecType() bool {
	return !vt.isRef && vt.numOrVecType.IsVecType()
}

func (vt ValType) IsRefType() bool {
	return vt.isRef
}

func (vt ValType) NumType() TypeCode {
	if !vt.IsNumType() {
		panic("valtype was not a numtype")
	}
	return vt.numOrVecType
}

func (vt ValType) VecType() TypeCode {
	if !vt.IsVecType() {
		panic("valtype was not a vectype")
	}
	return vt.numOrVecType
}

func (vt ValType) RefType() RefType {
	if !vt.IsRefType() {
		panic("valtype was not a reftype")
	}
	return vt.refType
}

// IsDefaultable reports whether locals of this type get an implicit initial
// value. Only non-nullable references lack one.
func (vt ValType) IsDefaultable() bool {
	return !vt.isRef || vt.refType.Null
}

func (vt ValType) String() string {
	if vt.isRef {
		return vt.refType.String()
	}
	switch vt.numOrVecType {
	case NTI32:
		return "i32"
	case NTI64:
		return "i64"
	case NTF32:
		return "f32"
	case NTF64:
		return "f64"
	case VTV128:
		return "v128"
	}
	return fmt.Sprintf("<invalid valtype %d>", vt.numOrVecType)
}

type RefType struct {
	Null bool
	HT   TypeCode // may be an abstract heap type or a concrete one, depending on sign
}

func (rt RefType) AsNonNull() RefType {
	return RefType{HT: rt.HT}
}

func (rt RefType) AsNullable() RefType {
	return RefType{Null: true, HT: rt.HT}
}

func (rt RefType) String() string {
	if rt.Null && rt.HT.IsAbstractHeapType() {
		// Shorthands like funcref only exist for nullable abstract types.
		return rt.HT.String() + "ref"
	}
	if rt.Null {
		return fmt.Sprintf("(ref null %s)", rt.HT)
	}
	return fmt.Sprintf("(ref %s)", rt.HT)
}

type TypeCode int

const (
	// The hex bytes in here refer to the number's encoding in SLEB128.

	// numtype
	NT__last  TypeCode = NTI32
	NTI32     TypeCode = -1 // 0x7F
	NTI64     TypeCode = -2 // 0x7E
	NTF32     TypeCode = -3 // 0x7D
	NTF64     TypeCode = -4 // 0x7C
	NT__first TypeCode = NTF64

	// vectype
	VT__last  TypeCode = VTV128
	VTV128    TypeCode = -5 // 0x7B
	VT__first TypeCode = VTV128

	// heaptype (abstract, because non-negative values mean concrete type index)
	HT__last   TypeCode = HTNoExn
	HTNoExn    TypeCode = -12 // 0x74
	HTNoFunc   TypeCode = -13 // 0x73
	HTNoExtern TypeCode = -14 // 0x72
	HTNone     TypeCode = -15 // 0x71
	HTFunc     TypeCode = -16 // 0x70
	HTExtern   TypeCode = -17 // 0x6F
	HTAny      TypeCode = -18 // 0x6E
	HTEq       TypeCode = -19 // 0x6D
	HTI31      TypeCode = -20 // 0x6C
	HTStruct   TypeCode = -21 // 0x6B
	HTArray    TypeCode = -22 // 0x6A
	HTExn      TypeCode = -23 // 0x69
	HT__first  TypeCode = HTExn

	// Sentinel bytes indicating that a ref type's heap type follows.
	RTNonNull TypeCode = -28 // 0x64
	RTNull    TypeCode = -29 // 0x63

	// Block type with no params and no results.
	BTEmpty TypeCode = -64 // 0x40
)

func ConcreteHeapType(typeIdx uint32) TypeCode {
	return TypeCode(typeIdx)
}

func (tc TypeCode) IsNumType() bool {
	return NT__first <= tc && tc <= NT__last
}

func (tc TypeCode) IsVecType() bool {
	return VT__first <= tc && tc <= VT__last
}

func (tc TypeCode) IsHeapType() bool {
	return tc.IsAbstractHeapType() || tc.IsConcreteHeapType()
}

func (tc TypeCode) IsAbstractHeapType() bool {
	return HT__first <= tc && tc <= HT__last
}

func (tc TypeCode) IsConcreteHeapType() bool {
	return tc >= 0
}

func (tc TypeCode) TypeIndex() uint32 {
	if !tc.IsConcreteHeapType() {
		panic("typecode was not a concrete heap type")
	}
	return uint32(tc)
}

var heapTypeNames = map[TypeCode]string{
	HTNoExn:    "noexn",
	HTNoFunc:   "nofunc",
	HTNoExtern: "noextern",
	HTNone:     "none",
	HTFunc:     "func",
	HTExtern:   "extern",
	HTAny:      "any",
	HTEq:       "eq",
	HTI31:      "i31",
	HTStruct:   "struct",
	HTArray:    "array",
	HTExn:      "exn",
}

func (tc TypeCode) String() string {
	if tc.IsConcreteHeapType() {
		return fmt.Sprintf("$%d", tc)
	}
	if name, ok := heapTypeNames[tc]; ok {
		return name
	}
	if vt, ok := ValTypeOf(tc); ok {
		return vt.String()
	}
	return fmt.Sprintf("<typecode %d>", int(tc))
}

type BlockTypeKind int

const (
	BlockEmpty BlockTypeKind = iota
	BlockValue
	BlockFunc
)

// BlockType is the signature of a block, loop, if or try: nothing, a single
// result, or a function type index giving both params and results.
type BlockType struct {
	Kind    BlockTypeKind
	Val     ValType
	TypeIdx uint32
}

func ValueBlock(t ValType) BlockType {
	return BlockType{Kind: BlockValue, Val: t}
}

func FuncBlock(typeIdx uint32) BlockType {
	return BlockType{Kind: BlockFunc, TypeIdx: typeIdx}
}
