package validate_test

import (
	"testing"

	"github.com/bvisness/wasm-validate/validate"
	"github.com/bvisness/wasm-validate/wasm"
	"github.com/stretchr/testify/require"
)

type resources struct {
	types      []*wasm.FuncType
	funcs      []uint32 // type index of each function
	globals    []wasm.GlobalType
	memories   []wasm.MemType
	tables     []wasm.TableType
	tags       []uint32
	elems      []wasm.RefType
	dataCount  *uint32
	referenced map[uint32]bool
}

var _ validate.Resources = &resources{}

func (r *resources) FuncType(idx uint32) (*wasm.FuncType, bool) {
	if int(idx) >= len(r.types) {
		return nil, false
	}
	return r.types[idx], true
}

func (r *resources) TypeCount() uint32 {
	return uint32(len(r.types))
}

func (r *resources) TypeOfFunction(idx uint32) (uint32, bool) {
	if int(idx) >= len(r.funcs) {
		return 0, false
	}
	return r.funcs[idx], true
}

func (r *resources) Global(idx uint32) (wasm.GlobalType, bool) {
	if int(idx) >= len(r.globals) {
		return wasm.GlobalType{}, false
	}
	return r.globals[idx], true
}

func (r *resources) Memory(idx uint32) (wasm.MemType, bool) {
	if int(idx) >= len(r.memories) {
		return wasm.MemType{}, false
	}
	return r.memories[idx], true
}

func (r *resources) Table(idx uint32) (wasm.TableType, bool) {
	if int(idx) >= len(r.tables) {
		return wasm.TableType{}, false
	}
	return r.tables[idx], true
}

func (r *resources) Tag(idx uint32) (*wasm.FuncType, bool) {
	if int(idx) >= len(r.tags) {
		return nil, false
	}
	return r.FuncType(r.tags[idx])
}

func (r *resources) ElementType(idx uint32) (wasm.RefType, bool) {
	if int(idx) >= len(r.elems) {
		return wasm.RefType{}, false
	}
	return r.elems[idx], true
}

func (r *resources) DataCount() (uint32, bool) {
	if r.dataCount == nil {
		return 0, false
	}
	return *r.dataCount, true
}

func (r *resources) IsFunctionReferenced(idx uint32) bool {
	return r.referenced[idx]
}

func ins(op wasm.Opcode) *wasm.Instr {
	return &wasm.Instr{Op: op}
}

func idx(op wasm.Opcode, i uint32) *wasm.Instr {
	return &wasm.Instr{Op: op, Idx: i}
}

func blk(op wasm.Opcode, bt wasm.BlockType) *wasm.Instr {
	return &wasm.Instr{Op: op, Block: bt}
}

func mem(op wasm.Opcode, align uint32, offset uint64) *wasm.Instr {
	return &wasm.Instr{Op: op, Mem: wasm.MemArg{Align: align, Offset: offset}}
}

var (
	i32Const = ins(wasm.OpI32Const)
	i64Const = ins(wasm.OpI64Const)
	f32Const = ins(wasm.OpF32Const)
	end      = ins(wasm.OpEnd)
)

// fixture describes the function under test. Zero fields get defaults: no
// module resources, every default feature, and a [] -> [] signature.
type fixture struct {
	res      *resources
	features wasm.Features
	sig      *wasm.FuncType
	locals   []wasm.ValType
}

func (f fixture) validator(t *testing.T) *validate.FuncValidator {
	t.Helper()
	res := f.res
	if res == nil {
		res = &resources{}
	}
	features := f.features
	if features == 0 {
		features = wasm.DefaultFeatures
	}
	sig := f.sig
	if sig == nil {
		sig = &wasm.FuncType{}
	}
	fv, err := validate.NewFuncValidator(res, features, sig, nil)
	require.NoError(t, err)
	return fv
}

// run feeds body to a fresh validator, stopping at the first error. Each
// instruction's offset is its index in body.
func (f fixture) run(t *testing.T, body ...*wasm.Instr) (*validate.FuncValidator, error) {
	t.Helper()
	fv := f.validator(t)
	for _, l := range f.locals {
		if err := fv.DefineLocals(0, 1, l); err != nil {
			return fv, err
		}
	}
	for i, in := range body {
		if err := fv.Op(i, in); err != nil {
			return fv, err
		}
	}
	return fv, nil
}

// complete validates body as an entire function, adding the final end.
func (f fixture) complete(t *testing.T, body ...*wasm.Instr) error {
	t.Helper()
	body = append(body, end)
	fv, err := f.run(t, body...)
	if err != nil {
		return err
	}
	return fv.Finish(len(body))
}

func top(t *testing.T, fv *validate.FuncValidator) wasm.ValType {
	t.Helper()
	m, ok := fv.Operand(0)
	require.True(t, ok, "operand stack is empty")
	vt, ok := m.Type()
	require.True(t, ok, "top of stack is %s", m)
	return vt
}
