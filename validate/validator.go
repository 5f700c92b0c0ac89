package validate

import "github.com/bvisness/wasm-validate/wasm"

// operatorValidator holds the abstract machine state shared by function
// bodies and constant expressions.
type operatorValidator struct {
	res      Resources
	features wasm.Features
	offset   int // offset of the instruction being checked
	constant bool

	locals     locals
	localInits []bool
	inits      []uint32 // undo log of locals initialized by local.set/tee
	operands   []MaybeType
	control    []frame
	popped     []MaybeType // scratch space for br_table

	endOffset int // offset of the end that emptied the control stack
}

// Allocations holds the buffers of a finished validator so that the next
// validator can reuse them.
type Allocations struct {
	localFirst []wasm.ValType
	localAll   []localRun
	localInits []bool
	inits      []uint32
	operands   []MaybeType
	control    []frame
	popped     []MaybeType
}

func newOperatorValidator(res Resources, features wasm.Features, allocs *Allocations) operatorValidator {
	v := operatorValidator{
		res:       res,
		features:  features,
		endOffset: -1,
	}
	if allocs != nil {
		v.locals.first = allocs.localFirst[:0]
		v.locals.all = allocs.localAll[:0]
		v.localInits = allocs.localInits[:0]
		v.inits = allocs.inits[:0]
		v.operands = allocs.operands[:0]
		v.control = allocs.control[:0]
		v.popped = allocs.popped[:0]
	}
	return v
}

func (v *operatorValidator) intoAllocations() *Allocations {
	clear(v.control) // drop references to signatures
	return &Allocations{
		localFirst: v.locals.first[:0],
		localAll:   v.locals.all[:0],
		localInits: v.localInits[:0],
		inits:      v.inits[:0],
		operands:   v.operands[:0],
		control:    v.control[:0],
		popped:     v.popped[:0],
	}
}

func (v *operatorValidator) defineLocals(count uint32, t wasm.ValType, initialized bool) error {
	if !v.locals.define(count, t) {
		return v.errorf(StructuralError, "too many locals: locals exceed maximum")
	}
	for i := uint32(0); i < count; i++ {
		v.localInits = append(v.localInits, initialized)
	}
	return nil
}

func (v *operatorValidator) resetLocals(height int) {
	for _, idx := range v.inits[height:] {
		v.localInits[idx] = false
	}
	v.inits = v.inits[:height]
}

func (v *operatorValidator) localType(idx uint32) (wasm.ValType, error) {
	t, ok := v.locals.get(idx)
	if !ok {
		return t, v.errorf(UnknownIndex, "unknown local %d: local index out of bounds", idx)
	}
	return t, nil
}

func (v *operatorValidator) finish(offset int) error {
	v.offset = offset
	if len(v.control) != 0 {
		return v.errorf(TrailingOrMissingEnd, "control frames remain at end of function: END opcode expected")
	}
	if offset != v.endOffset+1 {
		return v.errorf(TrailingOrMissingEnd, "operators remaining after end of function")
	}
	return nil
}

// FuncValidator checks one function body, one instruction at a time. It
// rejects instructions whose feature is disabled before checking their
// types.
type FuncValidator struct {
	v operatorValidator
}

// NewFuncValidator starts validating a function of type ty. The function's
// params become its first locals. allocs may be nil.
func NewFuncValidator(res Resources, features wasm.Features, ty *wasm.FuncType, allocs *Allocations) (*FuncValidator, error) {
	fv := &FuncValidator{v: newOperatorValidator(res, features, allocs)}
	for _, p := range ty.Params {
		if err := fv.v.defineLocals(1, p, true); err != nil {
			return nil, err
		}
	}
	fv.v.openFrame(FrameBlock, nil, ty.Results)
	return fv, nil
}

// DefineLocals declares count more locals of type t, as listed at the start
// of a function body.
func (fv *FuncValidator) DefineLocals(offset int, count uint32, t wasm.ValType) error {
	v := &fv.v
	v.offset = offset
	if err := v.checkValType(t); err != nil {
		return err
	}
	initialized := t.IsDefaultable() && !v.features.Has(wasm.FeatureStrictLocalInit)
	return v.defineLocals(count, t, initialized)
}

// Op validates one instruction found at offset.
func (fv *FuncValidator) Op(offset int, in *wasm.Instr) error {
	v := &fv.v
	v.offset = offset
	if len(v.control) == 0 {
		return v.errorf(TrailingOrMissingEnd, "operators remaining after end of function")
	}
	if err := v.checkFeatures(in.Op); err != nil {
		return err
	}
	if err := v.op(in); err != nil {
		return err
	}
	return v.checkStackLimit()
}

// Finish checks that the body ended exactly at offset, one byte past the
// end instruction that closed the function.
func (fv *FuncValidator) Finish(offset int) error {
	return fv.v.finish(offset)
}

// IntoAllocations gives up the validator's buffers for reuse. The validator
// must not be used afterward.
func (fv *FuncValidator) IntoAllocations() *Allocations {
	return fv.v.intoAllocations()
}

// OperandHeight is the current number of operand stack slots.
func (fv *FuncValidator) OperandHeight() int {
	return len(fv.v.operands)
}

// ControlDepth is the current number of open control frames, the function
// frame included.
func (fv *FuncValidator) ControlDepth() int {
	return len(fv.v.control)
}

// Operand returns the operand depth slots below the top of the stack.
func (fv *FuncValidator) Operand(depth int) (MaybeType, bool) {
	if depth < 0 || depth >= len(fv.v.operands) {
		return MaybeType{}, false
	}
	return fv.v.operands[len(fv.v.operands)-1-depth], true
}

// FrameKind returns the kind of the frame depth levels below the innermost.
func (fv *FuncValidator) FrameKind(depth int) (FrameKind, bool) {
	if depth < 0 || depth >= len(fv.v.control) {
		return 0, false
	}
	return fv.v.control[len(fv.v.control)-1-depth].kind, true
}

func (fv *FuncValidator) LocalCount() uint32 {
	return fv.v.locals.len()
}
