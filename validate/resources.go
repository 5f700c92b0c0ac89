package validate

import "github.com/bvisness/wasm-validate/wasm"

// Resources is the read-only view of a module's index spaces that function
// bodies are checked against. Implementations must be fully built before
// validation starts; validators never mutate them, so one Resources may be
// shared by validators running on different goroutines.
type Resources interface {
	// FuncType returns the function type at a type index.
	FuncType(typeIdx uint32) (*wasm.FuncType, bool)
	TypeCount() uint32

	// TypeOfFunction returns the type index of a function in the function
	// index space, imports included.
	TypeOfFunction(funcIdx uint32) (uint32, bool)

	Global(idx uint32) (wasm.GlobalType, bool)
	Memory(idx uint32) (wasm.MemType, bool)
	Table(idx uint32) (wasm.TableType, bool)

	// Tag returns the function type describing an exception tag's payload.
	Tag(idx uint32) (*wasm.FuncType, bool)

	ElementType(idx uint32) (wasm.RefType, bool)

	// DataCount returns the number of data segments, or false when the
	// module has no data count section.
	DataCount() (uint32, bool)

	// IsFunctionReferenced reports whether a function is declared outside of
	// function bodies (element segments, exports, global initializers), which
	// is what makes ref.func on it valid.
	IsFunctionReferenced(funcIdx uint32) bool
}
