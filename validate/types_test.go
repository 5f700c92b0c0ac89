package validate

import (
	"testing"

	"github.com/bvisness/wasm-validate/wasm"
	"github.com/stretchr/testify/assert"
)

type typeTable []*wasm.FuncType

func (tt typeTable) FuncType(idx uint32) (*wasm.FuncType, bool) {
	if int(idx) >= len(tt) {
		return nil, false
	}
	return tt[idx], true
}

func (tt typeTable) TypeCount() uint32 { return uint32(len(tt)) }
func (typeTable) TypeOfFunction(uint32) (uint32, bool) { return 0, false }
func (typeTable) Global(uint32) (wasm.GlobalType, bool) { return wasm.GlobalType{}, false }
func (typeTable) Memory(uint32) (wasm.MemType, bool) { return wasm.MemType{}, false }
func (typeTable) Table(uint32) (wasm.TableType, bool) { return wasm.TableType{}, false }
func (typeTable) Tag(uint32) (*wasm.FuncType, bool) { return nil, false }
func (typeTable) ElementType(uint32) (wasm.RefType, bool) { return wasm.RefType{}, false }
func (typeTable) DataCount() (uint32, bool) { return 0, false }
func (typeTable) IsFunctionReferenced(uint32) bool { return false }

func TestHeapSubtyping(t *testing.T) {
	v := operatorValidator{res: typeTable{
		{Params: []wasm.ValType{wasm.I32}},
		{Params: []wasm.ValType{wasm.I32}},
		{Results: []wasm.ValType{wasm.I32}},
	}}
	c := wasm.ConcreteHeapType

	cases := []struct {
		sub, sup wasm.TypeCode
		ok       bool
	}{
		{wasm.HTFunc, wasm.HTFunc, true},
		{c(0), wasm.HTFunc, true},
		{wasm.HTFunc, c(0), false},
		{wasm.HTNoFunc, c(2), true},
		{c(0), c(1), true},
		{c(0), c(2), false},
		{wasm.HTNone, wasm.HTEq, true},
		{wasm.HTI31, wasm.HTAny, true},
		{wasm.HTStruct, wasm.HTArray, false},
		{wasm.HTEq, wasm.HTI31, false},
		{wasm.HTNoExtern, wasm.HTExtern, true},
		{wasm.HTExtern, wasm.HTAny, false},
		{wasm.HTNoExn, wasm.HTExn, true},
		{wasm.HTNone, wasm.HTFunc, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.ok, v.heapMatches(tc.sub, tc.sup), "%s <: %s", tc.sub, tc.sup)
	}

	nullable := wasm.Ref(wasm.RefType{Null: true, HT: wasm.HTFunc})
	nonNull := wasm.Ref(wasm.RefType{HT: wasm.HTFunc})
	assert.True(t, v.matches(nonNull, nullable))
	assert.False(t, v.matches(nullable, nonNull))
	assert.False(t, v.matches(wasm.I32, wasm.I64))
	assert.False(t, v.matches(wasm.I32, nullable))
}

func TestLocalTable(t *testing.T) {
	var l locals
	assert.True(t, l.define(3, wasm.I32))
	assert.True(t, l.define(0, wasm.F64))
	assert.True(t, l.define(100, wasm.I64))
	assert.Equal(t, uint32(103), l.len())
	assert.Len(t, l.first, maxLocalsToTrack)

	for _, tc := range []struct {
		idx  uint32
		want wasm.ValType
	}{{0, wasm.I32}, {2, wasm.I32}, {3, wasm.I64}, {60, wasm.I64}, {102, wasm.I64}} {
		got, ok := l.get(tc.idx)
		assert.True(t, ok)
		assert.Equal(t, tc.want, got, "local %d", tc.idx)
	}
	_, ok := l.get(103)
	assert.False(t, ok)

	assert.False(t, l.define(MaxLocals, wasm.I32))
	assert.Equal(t, uint32(103), l.len())
}
