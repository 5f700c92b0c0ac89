// Package leb128 decodes the variable-length integers used throughout the
// WebAssembly binary format. Decoding goes through jcalabro/leb128, with the
// width limits the format requires checked on top. Every decoder also
// reports how many bytes it consumed, since offsets are what the rest of
// this module reports errors against.
package leb128

import (
	"errors"
	"io"

	jleb128 "github.com/jcalabro/leb128"
)

// ErrOverflow is returned when an encoding runs longer than its integer type
// allows, or when the final byte carries bits that do not fit.
var ErrOverflow = errors.New("leb128: integer overflow")

func EncodeU64(v uint64) []byte {
	return jleb128.EncodeU64(v)
}

func EncodeS64(v int64) []byte {
	return jleb128.EncodeS64(v)
}

// DecodeU64 reads an unsigned LEB128 number of at most 64 bits. Reading from
// an empty stream returns (0, 0, nil); a stream that ends partway through a
// number returns io.ErrUnexpectedEOF.
func DecodeU64(r io.Reader) (uint64, int, error) {
	return decodeUnsigned(r, 64)
}

func DecodeU32(r io.Reader) (uint32, int, error) {
	v, n, err := decodeUnsigned(r, 32)
	return uint32(v), n, err
}

func DecodeS64(r io.Reader) (int64, int, error) {
	return decodeSigned(r, 64)
}

func DecodeS32(r io.Reader) (int32, int, error) {
	v, n, err := decodeSigned(r, 32)
	return int32(v), n, err
}

// DecodeS33 reads the signed 33-bit encoding used by block types, where
// negative values are type codes and non-negative ones are type indices.
func DecodeS33(r io.Reader) (int64, int, error) {
	return decodeSigned(r, 33)
}

func maxBytes(bits uint) int {
	return int((bits + 6) / 7)
}

func decodeUnsigned(r io.Reader, bits uint) (uint64, int, error) {
	c := &byteCounter{r: r, max: maxBytes(bits)}
	v, err := jleb128.DecodeU64(c)
	if err = c.finish(err); err != nil {
		return 0, c.n, err
	}

	if bits == 64 {
		// Only the lowest bit of a tenth byte fits in a uint64.
		if c.n == c.max && c.last > 1 {
			return 0, c.n, ErrOverflow
		}
	} else if v >= 1<<bits {
		return 0, c.n, ErrOverflow
	}
	return v, c.n, nil
}

func decodeSigned(r io.Reader, bits uint) (int64, int, error) {
	c := &byteCounter{r: r, max: maxBytes(bits)}
	v, err := jleb128.DecodeS64(c)
	if err = c.finish(err); err != nil {
		return 0, c.n, err
	}

	if bits == 64 {
		// A tenth byte holds only the sign, so it is all zeroes or all ones.
		if c.n == c.max && c.last != 0x00 && c.last != 0x7f {
			return 0, c.n, ErrOverflow
		}
	} else {
		lo, hi := -(int64(1) << (bits - 1)), int64(1)<<(bits-1)-1
		if v < lo || v > hi {
			return 0, c.n, ErrOverflow
		}
	}
	return v, c.n, nil
}

// byteCounter feeds a decoder one byte at a time, remembering how many bytes
// it handed out and the last one. It refuses to read past max bytes, which
// stops a runaway encoding at the width of its integer type.
type byteCounter struct {
	r    io.Reader
	max  int
	n    int
	last byte
	eof  bool
}

func (c *byteCounter) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if c.n == c.max {
		return 0, ErrOverflow
	}
	b, err := readByte(c.r)
	if err != nil {
		if errors.Is(err, io.EOF) {
			c.eof = true
			return 0, io.EOF
		}
		return 0, err
	}
	p[0] = b
	c.n++
	c.last = b
	return 1, nil
}

// finish turns the decoder's result into this package's errors. The decoder
// treats end of stream as the end of the number, so a number cut short is
// caught here instead.
func (c *byteCounter) finish(err error) error {
	if err != nil {
		return err
	}
	if c.eof {
		return eofError(c.n, io.EOF)
	}
	return nil
}

func readByte(r io.Reader) (byte, error) {
	if br, ok := r.(io.ByteReader); ok {
		return br.ReadByte()
	}
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

func eofError(n int, err error) error {
	if errors.Is(err, io.EOF) {
		if n == 0 {
			return nil
		}
		return io.ErrUnexpectedEOF
	}
	return err
}
