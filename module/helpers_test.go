package module

import (
	"bytes"

	"github.com/bvisness/wasm-validate/leb128"
)

func u32(v uint32) []byte {
	return leb128.EncodeU64(uint64(v))
}

func cat(parts ...[]byte) []byte {
	return bytes.Join(parts, nil)
}

func vec(items ...[]byte) []byte {
	return cat(u32(uint32(len(items))), cat(items...))
}

func name(s string) []byte {
	return cat(u32(uint32(len(s))), []byte(s))
}

func section(id byte, contents ...[]byte) []byte {
	body := cat(contents...)
	return cat([]byte{id}, u32(uint32(len(body))), body)
}

func wasmModule(sections ...[]byte) []byte {
	return cat([]byte{0, 'a', 's', 'm', 1, 0, 0, 0}, cat(sections...))
}

// funcType encodes a type section entry. Each element of params and results
// is one encoded value type, since reference types take more than one byte.
func funcType(params, results [][]byte) []byte {
	return cat([]byte{0x60}, vec(params...), vec(results...))
}

// body encodes a code section entry with no locals.
func body(instrs ...byte) []byte {
	b := cat([]byte{0}, instrs)
	return cat(u32(uint32(len(b))), b)
}

const (
	i32 = 0x7F
	i64 = 0x7E
)

var (
	typeVoid   = funcType(nil, nil)
	typeToI32  = funcType(nil, [][]byte{{i32}})
	typeI32I32 = funcType([][]byte{{i32}}, [][]byte{{i32}})
)

// singleFunc builds a module with one function of type ty and the given
// body, plus any extra sections that belong after the code section.
func singleFunc(ty []byte, b []byte) []byte {
	return wasmModule(
		section(sectionType, vec(ty)),
		section(sectionFunction, vec(u32(0))),
		section(sectionCode, vec(b)),
	)
}
