package module

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"math"

	"github.com/bvisness/wasm-validate/leb128"
	"github.com/bvisness/wasm-validate/wasm"
)

// parser reads binary-format values while tracking the absolute offset of
// each one, so errors and instructions can point into the input.
type parser struct {
	r   *bufio.Reader
	cur int
}

func newParser(r io.Reader) parser {
	return parser{
		r:   bufio.NewReader(r),
		cur: 0,
	}
}

func newParserFromBytes(b []byte, at int) parser {
	return parser{
		r:   bufio.NewReader(bytes.NewReader(b)),
		cur: at,
	}
}

func (p *parser) AtEnd() bool {
	_, err := p.r.Peek(1)
	return err == io.EOF
}

func (p *parser) ReadN(thing string, n int) ([]byte, error) {
	at := p.cur
	bytes := make([]byte, n)
	nRead, err := io.ReadFull(p.r, bytes)
	if err != nil {
		return nil, fmt.Errorf("%s at offset %d: %w", thing, at, err)
	}
	p.cur += nRead
	return bytes, nil
}

func (p *parser) PeekByte(thing string) (byte, error) {
	at := p.cur
	bytes, err := p.r.Peek(1)
	if err != nil {
		return 0, fmt.Errorf("%s at offset %d: %w", thing, at, err)
	}
	return bytes[0], nil
}

func (p *parser) ReadByte(thing string) (byte, error) {
	at := p.cur
	b, err := p.r.ReadByte()
	if err != nil {
		return 0, fmt.Errorf("%s at offset %d: %w", thing, at, err)
	}
	p.cur += 1
	return b, nil
}

func (p *parser) ReadU32(thing string) (uint32, error) {
	at := p.cur
	v, n, err := leb128.DecodeU32(p.r)
	if err == nil && n == 0 {
		err = io.ErrUnexpectedEOF
	}
	if err != nil {
		return 0, fmt.Errorf("%s at offset %d: %w", thing, at, err)
	}
	p.cur += n
	return v, nil
}

func (p *parser) ReadU64(thing string) (uint64, error) {
	at := p.cur
	v, n, err := leb128.DecodeU64(p.r)
	if err == nil && n == 0 {
		err = io.ErrUnexpectedEOF
	}
	if err != nil {
		return 0, fmt.Errorf("%s at offset %d: %w", thing, at, err)
	}
	p.cur += n
	return v, nil
}

func (p *parser) ReadS32(thing string) (int32, error) {
	at := p.cur
	v, n, err := leb128.DecodeS32(p.r)
	if err == nil && n == 0 {
		err = io.ErrUnexpectedEOF
	}
	if err != nil {
		return 0, fmt.Errorf("%s at offset %d: %w", thing, at, err)
	}
	p.cur += n
	return v, nil
}

// ReadS33 also returns the encoded length, which tells a one-byte type code
// apart from a type index.
func (p *parser) ReadS33(thing string) (int64, int, error) {
	at := p.cur
	v, n, err := leb128.DecodeS33(p.r)
	if err == nil && n == 0 {
		err = io.ErrUnexpectedEOF
	}
	if err != nil {
		return 0, n, fmt.Errorf("%s at offset %d: %w", thing, at, err)
	}
	p.cur += n
	return v, n, nil
}

func (p *parser) ReadS64(thing string) (int64, error) {
	at := p.cur
	v, n, err := leb128.DecodeS64(p.r)
	if err == nil && n == 0 {
		err = io.ErrUnexpectedEOF
	}
	if err != nil {
		return 0, fmt.Errorf("%s at offset %d: %w", thing, at, err)
	}
	p.cur += n
	return v, nil
}

// ReadCount reads a vector length, refusing lengths that could not possibly
// fit in the remaining input.
func (p *parser) ReadCount(thing string) (uint32, error) {
	at := p.cur
	n, err := p.ReadU32(thing)
	if err != nil {
		return 0, err
	}
	if n > math.MaxInt32 {
		return 0, fmt.Errorf("%s at offset %d: count %d too large", thing, at, n)
	}
	return n, nil
}

func (p *parser) ReadName(thing string) (string, error) {
	n, err := p.ReadCount(thing)
	if err != nil {
		return "", err
	}
	name, err := p.ReadN(thing, int(n))
	if err != nil {
		return "", err
	}
	return string(name), nil
}

func (p *parser) ReadTableType(thing string) (wasm.TableType, error) {
	et, err := p.ReadRefType(fmt.Sprintf("element type for %s", thing))
	if err != nil {
		return wasm.TableType{}, err
	}
	at := p.cur
	lim, flags, err := p.ReadLimits(fmt.Sprintf("limits for %s", thing))
	if err != nil {
		return wasm.TableType{}, err
	}
	if flags&0b010 != 0 {
		return wasm.TableType{}, fmt.Errorf("%s at offset %d: tables cannot be shared", thing, at)
	}
	return wasm.TableType{
		ET:  et,
		Lim: lim,
	}, nil
}

func (p *parser) ReadMemType(thing string) (wasm.MemType, error) {
	lim, flags, err := p.ReadLimits(fmt.Sprintf("limits for %s", thing))
	if err != nil {
		return wasm.MemType{}, err
	}
	return wasm.MemType{
		Lim:    lim,
		Shared: flags&0b010 != 0,
	}, nil
}

func (p *parser) ReadGlobalType(thing string) (wasm.GlobalType, error) {
	t, err := p.ReadValType(thing)
	if err != nil {
		return wasm.GlobalType{}, err
	}
	at := p.cur
	mut, err := p.ReadByte(thing)
	if err != nil {
		return wasm.GlobalType{}, err
	}
	if mut > 1 {
		return wasm.GlobalType{}, fmt.Errorf("%s at offset %d: malformed mutability", thing, at)
	}

	return wasm.GlobalType{
		Mut: mut == 0x01,
		T:   t,
	}, nil
}

func (p *parser) ReadTagType(thing string) (uint32, error) {
	at := p.cur
	attr, err := p.ReadByte(thing)
	if err != nil {
		return 0, err
	}
	if attr != 0 {
		return 0, fmt.Errorf("%s at offset %d: invalid tag attribute", thing, at)
	}
	return p.ReadU32(thing)
}

func (p *parser) ReadValType(thing string) (wasm.ValType, error) {
	at := p.cur

	t, err := p.ReadByte(thing)
	if err != nil {
		return wasm.ValType{}, err
	}

	// Type codes are single-byte negative SLEB128 values.
	switch tc := wasm.TypeCode(int8(t<<1) >> 1); tc {
	case wasm.RTNonNull, wasm.RTNull:
		ht, err := p.ReadHeapType(thing)
		if err != nil {
			return wasm.ValType{}, err
		}
		return wasm.Ref(wasm.RefType{
			Null: tc == wasm.RTNull,
			HT:   ht,
		}), nil
	default:
		if vt, ok := wasm.ValTypeOf(tc); ok {
			return vt, nil
		} else if tc.IsAbstractHeapType() {
			return wasm.Ref(wasm.RefType{
				Null: true,
				HT:   tc,
			}), nil
		} else {
			return wasm.ValType{}, fmt.Errorf("%s at offset %d: invalid valtype", thing, at)
		}
	}
}

func (p *parser) ReadRefType(thing string) (wasm.RefType, error) {
	at := p.cur
	vt, err := p.ReadValType(thing)
	if err != nil {
		return wasm.RefType{}, err
	}
	if !vt.IsRefType() {
		return wasm.RefType{}, fmt.Errorf("%s at offset %d: expected a reference type but got %s", thing, at, vt)
	}
	return vt.RefType(), nil
}

func (p *parser) ReadHeapType(thing string) (wasm.TypeCode, error) {
	at := p.cur
	kind, n, err := p.ReadS33(thing)
	if err != nil {
		return 0, err
	}
	if kind < 0 && n != 1 {
		return 0, fmt.Errorf("%s at offset %d: invalid abstract heap type", thing, at)
	}
	ht := wasm.TypeCode(kind)
	if !ht.IsHeapType() {
		return 0, fmt.Errorf("%s at offset %d: invalid heap type", thing, at)
	}
	return ht, nil
}

// ReadLimits returns the raw flags byte too, since memories keep their
// shared bit there.
func (p *parser) ReadLimits(thing string) (wasm.Limits, byte, error) {
	at := p.cur
	flags, err := p.ReadByte("limits flags")
	if err != nil {
		return wasm.Limits{}, 0, err
	}
	if flags > 0b111 {
		return wasm.Limits{}, 0, fmt.Errorf("%s at offset %d: invalid limits flags 0x%02x", thing, at, flags)
	}

	min, err := p.ReadU64("limits min")
	if err != nil {
		return wasm.Limits{}, 0, err
	}

	lim := wasm.Limits{Min: min}
	if flags&0b001 > 0 {
		max, err := p.ReadU64("limits max")
		if err != nil {
			return wasm.Limits{}, 0, err
		}
		lim.HasMax = true
		lim.Max = max
	}
	if flags&0b100 > 0 {
		lim.AT = wasm.ATI64
	}

	return lim, flags, nil
}

func (p *parser) Expect(thing string, bytes []byte) error {
	at := p.cur
	actual, err := p.ReadN(thing, len(bytes))
	if err != nil {
		return err
	}
	if err := p.AssertBytesEqual(at, actual, bytes); err != nil {
		return fmt.Errorf("reading %s: %w", thing, err)
	}
	return nil
}

func (p *parser) AssertBytesEqual(at int, actual, expected []byte) error {
	if !bytes.Equal(actual, expected) {
		return fmt.Errorf("at offset %d: expected bytes %+v but got %+v", at, expected, actual)
	}
	return nil
}

func (p *parser) ReadBlockType(thing string) (wasm.BlockType, error) {
	b, err := p.PeekByte(thing)
	if err != nil {
		return wasm.BlockType{}, err
	}
	if wasm.TypeCode(int8(b<<1)>>1) == wasm.BTEmpty {
		p.ReadByte(thing)
		return wasm.BlockType{Kind: wasm.BlockEmpty}, nil
	}
	if b >= 0x40 && b < 0x80 {
		// A single-byte negative code is a value type.
		t, err := p.ReadValType(thing)
		if err != nil {
			return wasm.BlockType{}, err
		}
		return wasm.ValueBlock(t), nil
	}

	at := p.cur
	idx, _, err := p.ReadS33(thing)
	if err != nil {
		return wasm.BlockType{}, err
	}
	if idx < 0 || idx > math.MaxUint32 {
		return wasm.BlockType{}, fmt.Errorf("%s at offset %d: invalid block type", thing, at)
	}
	return wasm.FuncBlock(uint32(idx)), nil
}

// ReadMemArg reads alignment, an optional memory index flagged by bit 6 of
// the alignment field, and the offset.
func (p *parser) ReadMemArg(thing string) (wasm.MemArg, error) {
	at := p.cur
	align, err := p.ReadU32(thing)
	if err != nil {
		return wasm.MemArg{}, err
	}
	var m wasm.MemArg
	if align&0x40 != 0 {
		align &^= 0x40
		if m.Memory, err = p.ReadU32(thing); err != nil {
			return wasm.MemArg{}, err
		}
	}
	if align >= 0x40 {
		return wasm.MemArg{}, fmt.Errorf("%s at offset %d: malformed memop flags", thing, at)
	}
	m.Align = align
	if m.Offset, err = p.ReadU64(thing); err != nil {
		return wasm.MemArg{}, err
	}
	return m, nil
}
