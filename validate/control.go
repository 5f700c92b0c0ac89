package validate

import "github.com/bvisness/wasm-validate/wasm"

type FrameKind uint8

const (
	FrameBlock FrameKind = iota
	FrameLoop
	FrameIf
	FrameElse
	FrameTry
	FrameCatch
	FrameCatchAll
)

var frameKindNames = [...]string{"block", "loop", "if", "else", "try", "catch", "catch_all"}

func (k FrameKind) String() string {
	if int(k) < len(frameKindNames) {
		return frameKindNames[k]
	}
	return "<invalid frame>"
}

type frame struct {
	kind        FrameKind
	params      []wasm.ValType
	results     []wasm.ValType
	height      int // operand stack length when the frame was opened
	initHeight  int // init log length when the frame was opened
	unreachable bool
}

// labelTypes are the operands a branch to this frame must supply. A branch
// to a loop goes back to its start, so it takes the loop's params.
func (f *frame) labelTypes() []wasm.ValType {
	if f.kind == FrameLoop {
		return f.params
	}
	return f.results
}

// Single-result slices shared by every value-typed block. They are never
// written to.
var singleResults = map[wasm.ValType][]wasm.ValType{}

func init() {
	for _, t := range []wasm.ValType{wasm.I32, wasm.I64, wasm.F32, wasm.F64, wasm.V128, wasm.FuncRef, wasm.ExternRef, wasm.ExnRef} {
		singleResults[t] = []wasm.ValType{t}
	}
}

func resultsOf(t wasm.ValType) []wasm.ValType {
	if r, ok := singleResults[t]; ok {
		return r
	}
	return []wasm.ValType{t}
}

// blockSig resolves a block type to its params and results.
func (v *operatorValidator) blockSig(bt wasm.BlockType) ([]wasm.ValType, []wasm.ValType, error) {
	switch bt.Kind {
	case wasm.BlockEmpty:
		return nil, nil, nil
	case wasm.BlockValue:
		if err := v.checkValType(bt.Val); err != nil {
			return nil, nil, err
		}
		return nil, resultsOf(bt.Val), nil
	case wasm.BlockFunc:
		if !v.features.Has(wasm.FeatureMultiValue) {
			return nil, nil, v.errorf(FeatureDisabled, "blocks, loops, and ifs may only produce a resulttype when multi-value is not enabled")
		}
		ft, err := v.funcType(bt.TypeIdx)
		if err != nil {
			return nil, nil, err
		}
		return ft.Params, ft.Results, nil
	}
	return nil, nil, v.errorf(StructuralError, "invalid block type")
}

// openFrame starts a new frame at the current stack height without pushing
// anything.
func (v *operatorValidator) openFrame(kind FrameKind, params, results []wasm.ValType) {
	v.control = append(v.control, frame{
		kind:       kind,
		params:     params,
		results:    results,
		height:     len(v.operands),
		initHeight: len(v.inits),
	})
}

// pushCtrl opens a frame and pushes its params, which the block body sees
// as already on the stack.
func (v *operatorValidator) pushCtrl(kind FrameKind, params, results []wasm.ValType) {
	v.openFrame(kind, params, results)
	v.pushAll(params)
}

// popCtrl checks that exactly the frame's results are left on the stack,
// forgets locals initialized inside the frame, and removes it.
func (v *operatorValidator) popCtrl() (frame, error) {
	f := v.control[len(v.control)-1]
	if err := v.popValues(f.results); err != nil {
		return f, err
	}
	if len(v.operands) != f.height {
		return f, v.errorf(TypeMismatch, "type mismatch: values remaining on stack at end of block")
	}
	v.resetLocals(f.initHeight)
	v.control = v.control[:len(v.control)-1]
	return f, nil
}

// unreachable makes the rest of the current frame stack-polymorphic.
func (v *operatorValidator) unreachable() {
	f := &v.control[len(v.control)-1]
	f.unreachable = true
	v.operands = v.operands[:f.height]
}

// jump resolves the target of a branch with the given relative depth.
func (v *operatorValidator) jump(depth uint32) (*frame, error) {
	if len(v.control) == 0 {
		return nil, v.errorf(UnknownLabel, "unknown label: control stack empty")
	}
	if uint64(depth) >= uint64(len(v.control)) {
		return nil, v.errorf(UnknownLabel, "unknown label: branch depth too large")
	}
	return &v.control[len(v.control)-1-int(depth)], nil
}

// popPushLabel checks that a branch's operands are present while leaving
// them in place, as for a branch that may fall through.
func (v *operatorValidator) popPushLabel(ts []wasm.ValType) error {
	if err := v.popValues(ts); err != nil {
		return err
	}
	v.pushAll(ts)
	return nil
}

func (v *operatorValidator) top() *frame {
	return &v.control[len(v.control)-1]
}
