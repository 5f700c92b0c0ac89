package validate

import "github.com/bvisness/wasm-validate/wasm"

// MaxOperandStack bounds the number of operand slots a function body may
// have live at once.
const MaxOperandStack = 1 << 27

type maybeKind uint8

const (
	maybeConcrete maybeKind = iota
	maybeBottom
	maybeHeapBottom
)

// MaybeType is one slot of the operand stack: a concrete value type, or a
// placeholder produced by unreachable code. Bottom stands for any type at
// all; HeapBottom stands for any reference type.
type MaybeType struct {
	kind maybeKind
	t    wasm.ValType
}

var (
	Bottom     = MaybeType{kind: maybeBottom}
	HeapBottom = MaybeType{kind: maybeHeapBottom}
)

func Concrete(t wasm.ValType) MaybeType {
	return MaybeType{t: t}
}

func (m MaybeType) IsBottom() bool { return m.kind == maybeBottom }
func (m MaybeType) IsHeapBottom() bool { return m.kind == maybeHeapBottom }

// Type returns the concrete type of the slot, if it has one.
func (m MaybeType) Type() (wasm.ValType, bool) {
	return m.t, m.kind == maybeConcrete
}

func (m MaybeType) isRef() bool {
	switch m.kind {
	case maybeHeapBottom:
		return true
	case maybeConcrete:
		return m.t.IsRefType()
	}
	return false
}

func (m MaybeType) String() string {
	switch m.kind {
	case maybeBottom:
		return "bot"
	case maybeHeapBottom:
		return "heap type"
	}
	return m.t.String()
}

func (v *operatorValidator) push(t wasm.ValType) {
	v.operands = append(v.operands, MaybeType{t: t})
}

func (v *operatorValidator) pushMaybe(m MaybeType) {
	v.operands = append(v.operands, m)
}

func (v *operatorValidator) pushAll(ts []wasm.ValType) {
	for _, t := range ts {
		v.push(t)
	}
}

// pop removes one operand that must match expected. The common case of an
// exact match above the frame's floor is handled inline; everything else
// goes through popSlow.
func (v *operatorValidator) pop(expected wasm.ValType) (MaybeType, error) {
	if n := len(v.operands); n > 0 {
		top := v.operands[n-1]
		if top.kind == maybeConcrete && top.t == expected && n > v.control[len(v.control)-1].height {
			v.operands = v.operands[:n-1]
			return top, nil
		}
	}
	return v.popSlow(&expected)
}

// popAny removes one operand of any type.
func (v *operatorValidator) popAny() (MaybeType, error) {
	return v.popSlow(nil)
}

func (v *operatorValidator) popSlow(expected *wasm.ValType) (MaybeType, error) {
	ctrl := &v.control[len(v.control)-1]
	var actual MaybeType
	if len(v.operands) == ctrl.height {
		if !ctrl.unreachable {
			if expected != nil {
				return Bottom, v.errorf(TypeMismatch, "type mismatch: expected %s but nothing on stack", *expected)
			}
			return Bottom, v.errorf(TypeMismatch, "type mismatch: expected a type but nothing on stack")
		}
		actual = Bottom
	} else {
		actual = v.operands[len(v.operands)-1]
		v.operands = v.operands[:len(v.operands)-1]
	}

	if expected != nil {
		switch actual.kind {
		case maybeBottom:
		case maybeHeapBottom:
			if !expected.IsRefType() {
				return actual, v.errorf(TypeMismatch, "type mismatch: expected %s, found heap type", *expected)
			}
		default:
			if !v.matches(actual.t, *expected) {
				return actual, v.errorf(TypeMismatch, "type mismatch: expected %s, found %s", *expected, actual.t)
			}
		}
	}
	return actual, nil
}

// popRef removes one operand that must be a reference of some kind. The
// returned slot is Bottom or HeapBottom when nothing concrete is known.
func (v *operatorValidator) popRef() (MaybeType, error) {
	m, err := v.popAny()
	if err != nil {
		return m, err
	}
	switch m.kind {
	case maybeBottom:
		return HeapBottom, nil
	case maybeHeapBottom:
		return m, nil
	}
	if !m.t.IsRefType() {
		return m, v.errorf(TypeMismatch, "type mismatch: expected ref but found %s", m.t)
	}
	return m, nil
}

// popValues pops ts in reverse order, as a callee or branch target would
// consume them.
func (v *operatorValidator) popValues(ts []wasm.ValType) error {
	for i := len(ts) - 1; i >= 0; i-- {
		if _, err := v.pop(ts[i]); err != nil {
			return err
		}
	}
	return nil
}

func (v *operatorValidator) checkStackLimit() error {
	if len(v.operands) > MaxOperandStack {
		return v.errorf(TypeMismatch, "function may have too many stack values: %d", len(v.operands))
	}
	return nil
}

func (v *operatorValidator) errorf(kind ErrorKind, format string, args ...any) error {
	return newError(kind, v.offset, format, args...)
}
