package validate

func (v *operatorValidator) catch(tagIdx uint32) error {
	if k := v.top().kind; k != FrameTry && k != FrameCatch {
		return v.errorf(StructuralError, "catch found outside of a `try` block")
	}
	f, err := v.popCtrl()
	if err != nil {
		return err
	}
	ft, err := v.tag(tagIdx)
	if err != nil {
		return err
	}
	// The handler starts with the exception's payload on the stack.
	v.openFrame(FrameCatch, f.params, f.results)
	v.pushAll(ft.Params)
	return nil
}

func (v *operatorValidator) catchAll() error {
	switch v.top().kind {
	case FrameTry, FrameCatch:
	case FrameCatchAll:
		return v.errorf(StructuralError, "only one catch_all allowed per `try` block")
	default:
		return v.errorf(StructuralError, "catch_all found outside of a `try` block")
	}
	f, err := v.popCtrl()
	if err != nil {
		return err
	}
	v.openFrame(FrameCatchAll, f.params, f.results)
	return nil
}

func (v *operatorValidator) throw(tagIdx uint32) error {
	ft, err := v.tag(tagIdx)
	if err != nil {
		return err
	}
	if len(ft.Results) != 0 {
		return v.errorf(TypeMismatch, "result type expected to be empty for exception")
	}
	if err := v.popValues(ft.Params); err != nil {
		return err
	}
	v.unreachable()
	return nil
}

func (v *operatorValidator) rethrow(depth uint32) error {
	target, err := v.jump(depth)
	if err != nil {
		return err
	}
	if target.kind != FrameCatch && target.kind != FrameCatchAll {
		return v.errorf(StructuralError, "invalid rethrow label: target was not a `catch` block")
	}
	v.unreachable()
	return nil
}

// delegate ends a try block, forwarding its exceptions to an outer label.
// It does not branch.
func (v *operatorValidator) delegate(depth uint32) error {
	if v.top().kind != FrameTry {
		return v.errorf(StructuralError, "delegate found outside of a `try` block")
	}
	f, err := v.popCtrl()
	if err != nil {
		return err
	}
	if _, err := v.jump(depth); err != nil {
		return err
	}
	v.pushAll(f.results)
	return nil
}
