package validate_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/bvisness/wasm-validate/validate"
	"github.com/bvisness/wasm-validate/wasm"
	"github.com/stretchr/testify/require"
)

var i32Block = wasm.ValueBlock(wasm.I32)

func TestScenarios(t *testing.T) {
	t.Run("block result", func(t *testing.T) {
		fv, err := fixture{}.run(t, blk(wasm.OpBlock, i32Block), i32Const, end)
		require.NoError(t, err)
		require.Equal(t, 1, fv.OperandHeight())
		require.Equal(t, wasm.I32, top(t, fv))
	})

	t.Run("block missing result", func(t *testing.T) {
		_, err := fixture{}.run(t, blk(wasm.OpBlock, i32Block), end)
		require.ErrorIs(t, err, validate.TypeMismatch)
	})

	t.Run("if else result", func(t *testing.T) {
		fv, err := fixture{}.run(t,
			i32Const,
			blk(wasm.OpIf, i32Block),
			i32Const,
			ins(wasm.OpElse),
			i32Const,
			end,
		)
		require.NoError(t, err)
		require.Equal(t, wasm.I32, top(t, fv))
	})

	t.Run("if result without else", func(t *testing.T) {
		_, err := fixture{}.run(t, i32Const, blk(wasm.OpIf, i32Block), i32Const, end)
		require.ErrorIs(t, err, validate.TypeMismatch)
	})

	t.Run("unreachable feeds polymorphic operands", func(t *testing.T) {
		fv, err := fixture{}.run(t, ins(wasm.OpUnreachable), ins(wasm.OpI32Add))
		require.NoError(t, err)
		require.Equal(t, wasm.I32, top(t, fv))
	})

	t.Run("uninitialized local", func(t *testing.T) {
		strict := fixture{
			features: wasm.DefaultFeatures | wasm.FeatureStrictLocalInit,
			locals:   []wasm.ValType{wasm.I32},
		}
		_, err := strict.run(t, idx(wasm.OpLocalGet, 0))
		require.ErrorIs(t, err, validate.UninitializedLocal)

		defaulted := fixture{locals: []wasm.ValType{wasm.I32}}
		fv, err := defaulted.run(t, idx(wasm.OpLocalGet, 0))
		require.NoError(t, err)
		require.Equal(t, wasm.I32, top(t, fv))
	})

	t.Run("branch too deep", func(t *testing.T) {
		_, err := fixture{}.run(t,
			blk(wasm.OpBlock, wasm.BlockType{}),
			blk(wasm.OpBlock, wasm.BlockType{}),
			idx(wasm.OpBr, 5),
		)
		require.ErrorIs(t, err, validate.UnknownLabel)
	})
}

func TestStackBalance(t *testing.T) {
	cases := []struct {
		name string
		body []*wasm.Instr
		err  error
	}{
		{
			name: "nested blocks",
			body: []*wasm.Instr{
				blk(wasm.OpBlock, wasm.BlockType{}),
				blk(wasm.OpBlock, i32Block),
				i32Const,
				end,
				ins(wasm.OpDrop),
				end,
			},
		},
		{
			name: "leftover value",
			body: []*wasm.Instr{
				blk(wasm.OpBlock, wasm.BlockType{}),
				i32Const,
				end,
			},
			err: validate.TypeMismatch,
		},
		{
			name: "cannot pop below the frame",
			body: []*wasm.Instr{
				i32Const,
				blk(wasm.OpBlock, wasm.BlockType{}),
				ins(wasm.OpDrop),
				end,
				ins(wasm.OpDrop),
			},
			err: validate.TypeMismatch,
		},
		{
			name: "wrong result type",
			body: []*wasm.Instr{
				blk(wasm.OpBlock, i32Block),
				i64Const,
				end,
				ins(wasm.OpDrop),
			},
			err: validate.TypeMismatch,
		},
		{
			name: "dead code after br",
			body: []*wasm.Instr{
				blk(wasm.OpBlock, i32Block),
				i32Const,
				idx(wasm.OpBr, 0),
				ins(wasm.OpF32Add),
				ins(wasm.OpDrop),
				end,
				ins(wasm.OpDrop),
			},
		},
		{
			name: "dead code after return",
			body: []*wasm.Instr{
				ins(wasm.OpReturn),
				ins(wasm.OpI64Add),
				ins(wasm.OpDrop),
			},
		},
		{
			name: "dead code still checks concrete operands",
			body: []*wasm.Instr{
				ins(wasm.OpUnreachable),
				f32Const,
				ins(wasm.OpI32Add),
			},
			err: validate.TypeMismatch,
		},
		{
			name: "dead code after br_table",
			body: []*wasm.Instr{
				blk(wasm.OpBlock, wasm.BlockType{}),
				i32Const,
				&wasm.Instr{Op: wasm.OpBrTable, Labels: []uint32{0, 0}, Idx: 1},
				ins(wasm.OpI32Eqz),
				ins(wasm.OpDrop),
				end,
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := fixture{}.complete(t, tc.body...)
			if tc.err == nil {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, tc.err)
			}
		})
	}
}

func TestLabelTypes(t *testing.T) {
	// [i32] -> [i64]
	res := &resources{types: []*wasm.FuncType{{Params: []wasm.ValType{wasm.I32}, Results: []wasm.ValType{wasm.I64}}}}
	f := fixture{res: res}

	t.Run("loop takes params", func(t *testing.T) {
		err := f.complete(t,
			i32Const,
			blk(wasm.OpLoop, wasm.FuncBlock(0)),
			idx(wasm.OpBr, 0),
			end,
			ins(wasm.OpDrop),
		)
		require.NoError(t, err)
	})

	t.Run("block takes results", func(t *testing.T) {
		err := f.complete(t,
			i32Const,
			blk(wasm.OpBlock, wasm.FuncBlock(0)),
			idx(wasm.OpBr, 0),
			end,
			ins(wasm.OpDrop),
		)
		require.ErrorIs(t, err, validate.TypeMismatch)
	})

	t.Run("block with results", func(t *testing.T) {
		err := f.complete(t,
			i32Const,
			blk(wasm.OpBlock, wasm.FuncBlock(0)),
			ins(wasm.OpI64ExtendI32U),
			idx(wasm.OpBr, 0),
			end,
			ins(wasm.OpDrop),
		)
		require.NoError(t, err)
	})

	t.Run("function types need multi-value", func(t *testing.T) {
		f := fixture{res: res, features: wasm.Features20191205}
		_, err := f.run(t, i32Const, blk(wasm.OpBlock, wasm.FuncBlock(0)))
		require.ErrorIs(t, err, validate.FeatureDisabled)
	})

	t.Run("unknown block type", func(t *testing.T) {
		_, err := f.run(t, blk(wasm.OpBlock, wasm.FuncBlock(7)))
		require.ErrorIs(t, err, validate.UnknownIndex)
	})
}

func TestLocalInit(t *testing.T) {
	strict := fixture{
		features: wasm.DefaultFeatures | wasm.FeatureStrictLocalInit,
		locals:   []wasm.ValType{wasm.I32},
	}

	t.Run("initialized inside the arm", func(t *testing.T) {
		err := strict.complete(t,
			i32Const,
			blk(wasm.OpIf, wasm.BlockType{}),
			i32Const,
			idx(wasm.OpLocalSet, 0),
			idx(wasm.OpLocalGet, 0),
			ins(wasm.OpDrop),
			end,
		)
		require.NoError(t, err)
	})

	t.Run("reset after the merge", func(t *testing.T) {
		_, err := strict.run(t,
			i32Const,
			blk(wasm.OpIf, wasm.BlockType{}),
			i32Const,
			idx(wasm.OpLocalSet, 0),
			ins(wasm.OpElse),
			end,
			idx(wasm.OpLocalGet, 0),
		)
		require.ErrorIs(t, err, validate.UninitializedLocal)
	})

	t.Run("initialized at function level", func(t *testing.T) {
		err := strict.complete(t,
			i32Const,
			idx(wasm.OpLocalTee, 0),
			ins(wasm.OpDrop),
			blk(wasm.OpBlock, wasm.BlockType{}),
			idx(wasm.OpLocalGet, 0),
			ins(wasm.OpDrop),
			end,
		)
		require.NoError(t, err)
	})

	t.Run("params start initialized", func(t *testing.T) {
		f := strict
		f.sig = &wasm.FuncType{Params: []wasm.ValType{wasm.I64}}
		fv, err := f.run(t, idx(wasm.OpLocalGet, 0))
		require.NoError(t, err)
		require.Equal(t, wasm.I64, top(t, fv))
		require.Equal(t, uint32(2), fv.LocalCount())
	})

	t.Run("non-nullable locals need a write", func(t *testing.T) {
		res := &resources{types: []*wasm.FuncType{{}}}
		f := fixture{res: res, locals: []wasm.ValType{wasm.Ref(wasm.RefType{HT: wasm.HTFunc})}}
		_, err := f.run(t, idx(wasm.OpLocalGet, 0))
		require.ErrorIs(t, err, validate.UninitializedLocal)
	})

	t.Run("unknown local", func(t *testing.T) {
		_, err := fixture{}.run(t, idx(wasm.OpLocalGet, 3))
		require.ErrorIs(t, err, validate.UnknownIndex)
	})

	t.Run("local type", func(t *testing.T) {
		_, err := fixture{locals: []wasm.ValType{wasm.I64}}.run(t, i32Const, idx(wasm.OpLocalSet, 0))
		require.ErrorIs(t, err, validate.TypeMismatch)
	})
}

func TestLocals(t *testing.T) {
	t.Run("many locals", func(t *testing.T) {
		fv := fixture{}.validator(t)
		require.NoError(t, fv.DefineLocals(0, 60, wasm.I32))
		require.NoError(t, fv.DefineLocals(0, 100, wasm.I64))
		require.NoError(t, fv.DefineLocals(0, 1, wasm.F32))

		require.NoError(t, fv.Op(1, idx(wasm.OpLocalGet, 55)))
		require.Equal(t, wasm.I32, top(t, fv))
		require.NoError(t, fv.Op(2, idx(wasm.OpLocalGet, 75)))
		require.Equal(t, wasm.I64, top(t, fv))
		require.NoError(t, fv.Op(3, idx(wasm.OpLocalGet, 160)))
		require.Equal(t, wasm.F32, top(t, fv))

		err := fv.Op(4, idx(wasm.OpLocalGet, 161))
		require.ErrorIs(t, err, validate.UnknownIndex)
	})

	t.Run("too many locals", func(t *testing.T) {
		fv := fixture{}.validator(t)
		require.NoError(t, fv.DefineLocals(0, validate.MaxLocals, wasm.I32))
		require.Error(t, fv.DefineLocals(5, 1, wasm.I32))
		require.Error(t, fixture{}.validator(t).DefineLocals(0, 0xFFFFFFFF, wasm.I32))
	})

	t.Run("local types are feature checked", func(t *testing.T) {
		fv := fixture{features: wasm.Features20191205}.validator(t)
		err := fv.DefineLocals(0, 1, wasm.V128)
		require.ErrorIs(t, err, validate.FeatureDisabled)
	})
}

func TestBranches(t *testing.T) {
	t.Run("br_if keeps the label values", func(t *testing.T) {
		err := fixture{}.complete(t,
			blk(wasm.OpBlock, i32Block),
			i32Const,
			i32Const,
			idx(wasm.OpBrIf, 0),
			end,
			ins(wasm.OpDrop),
		)
		require.NoError(t, err)
	})

	t.Run("br_table arity", func(t *testing.T) {
		_, err := fixture{}.run(t,
			blk(wasm.OpBlock, i32Block),
			blk(wasm.OpBlock, wasm.BlockType{}),
			i32Const,
			i32Const,
			&wasm.Instr{Op: wasm.OpBrTable, Labels: []uint32{0}, Idx: 1},
		)
		require.ErrorIs(t, err, validate.TypeMismatch)
		require.ErrorContains(t, err, "different number of types")
	})

	t.Run("br_table same arity", func(t *testing.T) {
		err := fixture{}.complete(t,
			blk(wasm.OpBlock, i32Block),
			blk(wasm.OpBlock, i32Block),
			i32Const,
			i32Const,
			&wasm.Instr{Op: wasm.OpBrTable, Labels: []uint32{0, 1, 0}, Idx: 1},
			end,
			end,
			ins(wasm.OpDrop),
		)
		require.NoError(t, err)
	})

	t.Run("br_table unknown label", func(t *testing.T) {
		_, err := fixture{}.run(t,
			i32Const,
			&wasm.Instr{Op: wasm.OpBrTable, Labels: []uint32{3}, Idx: 0},
		)
		require.ErrorIs(t, err, validate.UnknownLabel)
	})

	t.Run("branch to function frame", func(t *testing.T) {
		f := fixture{sig: &wasm.FuncType{Results: []wasm.ValType{wasm.I64}}}
		require.NoError(t, f.complete(t, i64Const, idx(wasm.OpBr, 0)))
		require.ErrorIs(t, f.complete(t, i32Const, idx(wasm.OpBr, 0)), validate.TypeMismatch)
	})
}

func TestEndOfFunction(t *testing.T) {
	t.Run("operators after end", func(t *testing.T) {
		_, err := fixture{}.run(t, end, ins(wasm.OpNop))
		require.ErrorIs(t, err, validate.TrailingOrMissingEnd)
	})

	t.Run("missing end", func(t *testing.T) {
		fv, err := fixture{}.run(t, ins(wasm.OpNop))
		require.NoError(t, err)
		require.ErrorIs(t, fv.Finish(1), validate.TrailingOrMissingEnd)
	})

	t.Run("finish offset", func(t *testing.T) {
		fv, err := fixture{}.run(t, ins(wasm.OpNop), end)
		require.NoError(t, err)
		require.ErrorIs(t, fv.Finish(5), validate.TrailingOrMissingEnd)
		require.NoError(t, fv.Finish(2))
	})

	t.Run("results", func(t *testing.T) {
		f := fixture{sig: &wasm.FuncType{Results: []wasm.ValType{wasm.I32, wasm.I64}}}
		require.NoError(t, f.complete(t, i32Const, i64Const))
		require.ErrorIs(t, f.complete(t, i64Const, i32Const), validate.TypeMismatch)
	})
}

func TestSelect(t *testing.T) {
	funcs := &resources{types: []*wasm.FuncType{{}}, funcs: []uint32{0}, referenced: map[uint32]bool{0: true}}

	cases := []struct {
		name string
		body []*wasm.Instr
		want wasm.ValType
		err  error
	}{
		{
			name: "numbers",
			body: []*wasm.Instr{i64Const, i64Const, i32Const, ins(wasm.OpSelect)},
			want: wasm.I64,
		},
		{
			name: "different types",
			body: []*wasm.Instr{i64Const, f32Const, i32Const, ins(wasm.OpSelect)},
			err:  validate.TypeMismatch,
		},
		{
			name: "references need a type",
			body: []*wasm.Instr{idx(wasm.OpRefFunc, 0), idx(wasm.OpRefFunc, 0), i32Const, ins(wasm.OpSelect)},
			err:  validate.TypeMismatch,
		},
		{
			name: "bottom takes the other type",
			body: []*wasm.Instr{ins(wasm.OpUnreachable), f32Const, i32Const, ins(wasm.OpSelect)},
			want: wasm.F32,
		},
		{
			name: "typed references",
			body: []*wasm.Instr{
				idx(wasm.OpRefFunc, 0),
				&wasm.Instr{Op: wasm.OpRefNull, Heap: wasm.HTFunc},
				i32Const,
				&wasm.Instr{Op: wasm.OpSelectTyped, Types: []wasm.ValType{wasm.FuncRef}},
			},
			want: wasm.FuncRef,
		},
		{
			name: "typed arity",
			body: []*wasm.Instr{i32Const, i32Const, i32Const, &wasm.Instr{Op: wasm.OpSelectTyped}},
			err:  validate.StructuralError,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fv, err := fixture{res: funcs}.run(t, tc.body...)
			if tc.err != nil {
				require.ErrorIs(t, err, tc.err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, top(t, fv))
		})
	}
}

func TestFeatureGate(t *testing.T) {
	cases := []struct {
		name     string
		feature  string
		features wasm.Features
		body     []*wasm.Instr
	}{
		{"sign extension", "sign-extension", wasm.Features20191205, []*wasm.Instr{i32Const, ins(wasm.OpI32Extend8S)}},
		{"sign extension on an empty stack", "sign-extension", wasm.Features20191205, []*wasm.Instr{ins(wasm.OpI32Extend8S)}},
		{"floats", "floats", wasm.Features20220419 &^ wasm.FeatureFloats, []*wasm.Instr{f32Const}},
		{"saturating conversions", "saturating-float-to-int", wasm.Features20191205, []*wasm.Instr{f32Const, ins(wasm.OpI32TruncSatF32S)}},
		{"tail calls", "tail-call", wasm.Features20220419, []*wasm.Instr{idx(wasm.OpReturnCall, 0)}},
		{"exceptions", "exceptions", wasm.Features20220419, []*wasm.Instr{blk(wasm.OpTry, wasm.BlockType{})}},
		{"simd", "simd", wasm.Features20191205, []*wasm.Instr{ins(wasm.OpV128Const)}},
		{"relaxed simd", "relaxed-simd", wasm.Features20220419, []*wasm.Instr{ins(wasm.OpF32x4RelaxedMadd)}},
		{"threads", "threads", wasm.Features20220419, []*wasm.Instr{ins(wasm.OpAtomicFence)}},
		{"gc", "gc", wasm.DefaultFeatures, []*wasm.Instr{i32Const, ins(wasm.OpRefI31)}},
		{"memory control", "memory-control", wasm.DefaultFeatures, []*wasm.Instr{i32Const, i32Const, ins(wasm.OpMemoryDiscard)}},
		{"bulk memory", "bulk-memory", wasm.Features20191205, []*wasm.Instr{idx(wasm.OpDataDrop, 0)}},
		{"function references", "function-references", wasm.Features20220419, []*wasm.Instr{ins(wasm.OpRefAsNonNull)}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := fixture{features: tc.features}.run(t, tc.body...)
			require.ErrorIs(t, err, validate.FeatureDisabled)
			require.ErrorContains(t, err, fmt.Sprintf("invalid as feature %q is disabled", tc.feature))
		})
	}
}

func TestErrors(t *testing.T) {
	_, err := fixture{}.run(t, ins(wasm.OpNop), ins(wasm.OpNop), ins(wasm.OpI32Eqz))

	var verr *validate.Error
	require.True(t, errors.As(err, &verr))
	require.Equal(t, 2, verr.Offset)
	require.Equal(t, validate.TypeMismatch, verr.Kind)
	require.Equal(t, "at offset 2: type mismatch: expected i32 but nothing on stack", err.Error())
	require.False(t, errors.Is(err, validate.UnknownIndex))
	require.Equal(t, "unknown label", validate.UnknownLabel.Error())
}

func TestAllocations(t *testing.T) {
	f := fixture{locals: []wasm.ValType{wasm.I32, wasm.I64}}
	fv, err := f.run(t, blk(wasm.OpBlock, wasm.BlockType{}), i32Const, i32Const)
	require.NoError(t, err)
	allocs := fv.IntoAllocations()

	next, err := validate.NewFuncValidator(&resources{}, wasm.DefaultFeatures, &wasm.FuncType{}, allocs)
	require.NoError(t, err)
	require.Equal(t, 0, next.OperandHeight())
	require.Equal(t, 1, next.ControlDepth())
	require.Equal(t, uint32(0), next.LocalCount())

	require.ErrorIs(t, next.Op(0, idx(wasm.OpLocalGet, 0)), validate.UnknownIndex)
	require.NoError(t, next.Op(1, end))
	require.NoError(t, next.Finish(2))
}
