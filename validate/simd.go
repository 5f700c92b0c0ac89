package validate

import "github.com/bvisness/wasm-validate/wasm"

type simdShape uint8

const (
	simdInvalid simdShape = iota
	simdUnary             // v128 -> v128
	simdBinary            // v128 v128 -> v128
	simdTernary           // v128 v128 v128 -> v128
	simdTest              // v128 -> i32
	simdShift             // v128 i32 -> v128
	simdLoad
	simdStore
	simdLoadLane
	simdStoreLane
	simdConst
	simdShuffle
	simdSplat
	simdExtractLane
	simdReplaceLane
)

var simdShapes [len(wasm.SIMDNames)]simdShape

func init() {
	set := func(shape simdShape, subs ...uint32) {
		for _, sub := range subs {
			simdShapes[sub] = shape
		}
	}
	span := func(shape simdShape, first, last uint32) {
		for sub := first; sub <= last; sub++ {
			simdShapes[sub] = shape
		}
	}

	// Everything named is binary unless listed below.
	for sub, name := range wasm.SIMDNames {
		if name != "" {
			simdShapes[sub] = simdBinary
		}
	}

	span(simdLoad, 0x00, 0x0A)
	set(simdLoad, 0x5C, 0x5D)
	set(simdStore, 0x0B)
	set(simdConst, 0x0C)
	set(simdShuffle, 0x0D)
	span(simdSplat, 0x0F, 0x14)
	set(simdExtractLane, 0x15, 0x16, 0x18, 0x19, 0x1B, 0x1D, 0x1F, 0x21)
	set(simdReplaceLane, 0x17, 0x1A, 0x1C, 0x1E, 0x20, 0x22)
	span(simdLoadLane, 0x54, 0x57)
	span(simdStoreLane, 0x58, 0x5B)

	set(simdUnary, 0x4D, 0x5E, 0x5F, 0x60, 0x61, 0x62, 0x74, 0x75, 0x7A, 0x80, 0x81, 0x94,
		0xA0, 0xA1, 0xC0, 0xC1, 0xE0, 0xE1, 0xE3, 0xEC, 0xED, 0xEF)
	span(simdUnary, 0x67, 0x6A)
	span(simdUnary, 0x7C, 0x7F)
	span(simdUnary, 0x87, 0x8A)
	span(simdUnary, 0xA7, 0xAA)
	span(simdUnary, 0xC7, 0xCA)
	span(simdUnary, 0xF8, 0xFF)
	span(simdUnary, 0x101, 0x104)

	set(simdTest, 0x53, 0x63, 0x64, 0x83, 0x84, 0xA3, 0xA4, 0xC3, 0xC4)
	span(simdShift, 0x6B, 0x6D)
	span(simdShift, 0x8B, 0x8D)
	span(simdShift, 0xAB, 0xAD)
	span(simdShift, 0xCB, 0xCD)
	set(simdTernary, 0x52, 0x113)
	span(simdTernary, 0x105, 0x10C)
}

// Natural alignment of plain loads, by sub-opcode.
var simdLoadAlign = map[uint32]uint32{
	0x00: 4,
	0x01: 3, 0x02: 3, 0x03: 3, 0x04: 3, 0x05: 3, 0x06: 3,
	0x07: 0, 0x08: 1, 0x09: 2, 0x0A: 3,
	0x5C: 2, 0x5D: 3,
}

// simdLane describes the scalar side of a lane access.
type simdLane struct {
	t     wasm.ValType
	lanes byte
}

var simdLanes = map[uint32]simdLane{
	0x0F: {wasm.I32, 16}, 0x10: {wasm.I32, 8}, 0x11: {wasm.I32, 4},
	0x12: {wasm.I64, 2}, 0x13: {wasm.F32, 4}, 0x14: {wasm.F64, 2},

	0x15: {wasm.I32, 16}, 0x16: {wasm.I32, 16}, 0x17: {wasm.I32, 16},
	0x18: {wasm.I32, 8}, 0x19: {wasm.I32, 8}, 0x1A: {wasm.I32, 8},
	0x1B: {wasm.I32, 4}, 0x1C: {wasm.I32, 4},
	0x1D: {wasm.I64, 2}, 0x1E: {wasm.I64, 2},
	0x1F: {wasm.F32, 4}, 0x20: {wasm.F32, 4},
	0x21: {wasm.F64, 2}, 0x22: {wasm.F64, 2},
}

func (v *operatorValidator) checkLane(lane, lanes byte) error {
	if lane >= lanes {
		return v.errorf(StructuralError, "SIMD index out of bounds: lane %d of %d", lane, lanes)
	}
	return nil
}

func (v *operatorValidator) simdOp(in *wasm.Instr) error {
	sub := in.Op.Sub()
	var shape simdShape
	if sub < uint32(len(simdShapes)) {
		shape = simdShapes[sub]
	}

	switch shape {
	case simdUnary:
		return v.unary(wasm.V128)
	case simdBinary:
		return v.binary(wasm.V128)
	case simdTernary:
		if err := v.popAll(wasm.V128, wasm.V128, wasm.V128); err != nil {
			return err
		}
		v.push(wasm.V128)
		return nil
	case simdTest:
		return v.test(wasm.V128)
	case simdShift:
		if err := v.popAll(wasm.V128, wasm.I32); err != nil {
			return err
		}
		v.push(wasm.V128)
		return nil
	case simdConst:
		v.push(wasm.V128)
		return nil
	case simdShuffle:
		for _, lane := range in.V128 {
			if err := v.checkLane(lane, 32); err != nil {
				return err
			}
		}
		return v.binary(wasm.V128)
	case simdSplat:
		return v.convert(simdLanes[sub].t, wasm.V128)
	case simdExtractLane:
		l := simdLanes[sub]
		if err := v.checkLane(in.Lane, l.lanes); err != nil {
			return err
		}
		return v.convert(wasm.V128, l.t)
	case simdReplaceLane:
		l := simdLanes[sub]
		if err := v.checkLane(in.Lane, l.lanes); err != nil {
			return err
		}
		if err := v.popAll(wasm.V128, l.t); err != nil {
			return err
		}
		v.push(wasm.V128)
		return nil
	case simdLoad:
		return v.load(in.Mem, wasm.V128, simdLoadAlign[sub])
	case simdStore:
		return v.store(in.Mem, wasm.V128, 4)
	case simdLoadLane, simdStoreLane:
		var align uint32
		if shape == simdLoadLane {
			align = sub - 0x54
		} else {
			align = sub - 0x58
		}
		at, err := v.checkMemarg(in.Mem, align)
		if err != nil {
			return err
		}
		if err := v.checkLane(in.Lane, byte(16>>align)); err != nil {
			return err
		}
		if err := v.popAll(at, wasm.V128); err != nil {
			return err
		}
		if shape == simdLoadLane {
			v.push(wasm.V128)
		}
		return nil
	}
	return v.errorf(StructuralError, "unknown operator %s", in.Op)
}
