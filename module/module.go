package module

import (
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/bvisness/wasm-validate/utils"
	"github.com/bvisness/wasm-validate/validate"
	"github.com/bvisness/wasm-validate/wasm"
)

type ExternKind byte

const (
	ExternFunc ExternKind = iota
	ExternTable
	ExternMemory
	ExternGlobal
	ExternTag
)

type SegmentMode int

const (
	SegmentActive SegmentMode = iota
	SegmentPassive
	SegmentDeclarative
)

type Func struct {
	TypeIdx  uint32
	Imported bool

	// Body is the function body without its size prefix. BodyOffset is the
	// offset of its first byte in the module.
	Body       []byte
	BodyOffset int
}

type Export struct {
	Name string
	Kind ExternKind
	Idx  uint32
}

type ElemSegment struct {
	Mode  SegmentMode
	Table uint32
	Type  wasm.RefType
	Count uint32
}

type DataSegment struct {
	Mode   SegmentMode
	Memory uint32
	Size   int
}

// Module is a decoded module whose module-level structure has been checked.
// Function bodies are kept as raw bytes and checked separately by Validate.
//
// Module implements validate.Resources.
type Module struct {
	Features wasm.Features

	Types              []*wasm.FuncType
	Funcs              []Func
	NumImportedFuncs   uint32
	Tables             []wasm.TableType
	Memories           []wasm.MemType
	Globals            []wasm.GlobalType
	NumImportedGlobals uint32
	Tags               []uint32 // type index of each tag
	Exports            []Export
	Start              *uint32
	Elems              []ElemSegment
	Datas              []DataSegment

	dataCount  *uint32
	referenced map[uint32]struct{}
}

var _ validate.Resources = &Module{}

const (
	sectionCustom    = 0
	sectionType      = 1
	sectionImport    = 2
	sectionFunction  = 3
	sectionTable     = 4
	sectionMemory    = 5
	sectionGlobal    = 6
	sectionExport    = 7
	sectionStart     = 8
	sectionElement   = 9
	sectionCode      = 10
	sectionData      = 11
	sectionDataCount = 12
	sectionTag       = 13
)

// Position of each known section in the required order. The tag and data
// count sections sit between their numeric neighbors.
var sectionOrder = map[byte]int{
	sectionType:      1,
	sectionImport:    2,
	sectionFunction:  3,
	sectionTable:     4,
	sectionMemory:    5,
	sectionTag:       6,
	sectionGlobal:    7,
	sectionExport:    8,
	sectionStart:     9,
	sectionElement:   10,
	sectionDataCount: 11,
	sectionCode:      12,
	sectionData:      13,
}

const (
	maxPages32 = 1 << 16
	maxPages64 = 1 << 48
)

// Decode reads a binary module and checks everything outside of function
// bodies: section layout, index spaces, limits, exports and constant
// expressions.
func Decode(r io.Reader, features wasm.Features) (*Module, error) {
	p := newParser(r)

	if err := p.Expect("magic number", []byte{0, 'a', 's', 'm'}); err != nil {
		return nil, err
	}
	if err := p.Expect("version number", []byte{1, 0, 0, 0}); err != nil {
		return nil, err
	}

	m := &Module{
		Features:   features,
		referenced: make(map[uint32]struct{}),
	}

	lastOrder := 0
	codeSeen := false
	for {
		sectionAt := p.cur
		sectionId, err := p.ReadByte("section id")
		if errors.Is(err, io.EOF) {
			break
		} else if err != nil {
			return nil, err
		}
		sectionSize, err := p.ReadU32("section size")
		if err != nil {
			return nil, err
		}
		contentsAt := p.cur
		contents, err := p.ReadN("section contents", int(sectionSize))
		if err != nil {
			return nil, err
		}

		if sectionId != sectionCustom {
			order, ok := sectionOrder[sectionId]
			if !ok {
				return nil, fmt.Errorf("section at offset %d: malformed section id %d", sectionAt, sectionId)
			}
			if order <= lastOrder {
				return nil, fmt.Errorf("section at offset %d: section %d out of order", sectionAt, sectionId)
			}
			lastOrder = order
		}
		codeSeen = codeSeen || sectionId == sectionCode

		sp := newParserFromBytes(contents, contentsAt)
		if err := m.readSection(&sp, sectionId); err != nil {
			return nil, err
		}
		if !sp.AtEnd() {
			return nil, fmt.Errorf("section %d at offset %d: section size mismatch: unexpected data at the end of the section", sectionId, sp.cur)
		}
	}

	if !codeSeen && uint32(len(m.Funcs)) > m.NumImportedFuncs {
		return nil, fmt.Errorf("at offset %d: function and code section have inconsistent lengths", p.cur)
	}
	if m.dataCount != nil && *m.dataCount != uint32(len(m.Datas)) {
		return nil, fmt.Errorf("at offset %d: data count and data section have inconsistent lengths", p.cur)
	}

	return m, nil
}

func (m *Module) readSection(p *parser, id byte) error {
	if id == sectionCustom {
		if _, err := p.ReadName("custom section name"); err != nil {
			return err
		}
		_, err := io.Copy(io.Discard, p.r)
		return err
	}

	if id == sectionStart {
		return m.readStart(p)
	}
	if id == sectionDataCount {
		at := p.cur
		n, err := p.ReadU32("data count")
		if err != nil {
			return err
		}
		if !m.Features.Has(wasm.FeatureBulkMemory) {
			return fmt.Errorf("data count section at offset %d: bulk memory support is not enabled", at)
		}
		m.dataCount = &n
		return nil
	}

	count, err := p.ReadCount("section item count")
	if err != nil {
		return err
	}

	readItem := map[byte]func(p *parser, i uint32) error{
		sectionType:     m.readType,
		sectionImport:   m.readImport,
		sectionFunction: m.readFunction,
		sectionTable:    m.readTable,
		sectionMemory:   m.readMemory,
		sectionGlobal:   m.readGlobal,
		sectionExport:   m.readExport,
		sectionElement:  m.readElem,
		sectionCode:     m.readCode,
		sectionData:     m.readData,
		sectionTag:      m.readTag,
	}[id]

	if id == sectionCode && count != uint32(len(m.Funcs))-m.NumImportedFuncs {
		return fmt.Errorf("code section at offset %d: function and code section have inconsistent lengths", p.cur)
	}

	for i := range count {
		if err := readItem(p, i); err != nil {
			return err
		}
	}

	return nil
}

func (m *Module) readType(p *parser, i uint32) error {
	at := p.cur
	form, err := p.ReadByte("type form")
	if err != nil {
		return err
	}
	if form != 0x60 {
		return fmt.Errorf("type %d at offset %d: invalid leading byte 0x%02x for type definition", i, at, form)
	}
	params, err := p.readValTypes("param types")
	if err != nil {
		return err
	}
	results, err := p.readValTypes("result types")
	if err != nil {
		return err
	}
	if len(results) > 1 && !m.Features.Has(wasm.FeatureMultiValue) {
		return fmt.Errorf("type %d at offset %d: func type returns multiple values but the multi-value feature is not enabled", i, at)
	}
	// Each type may only refer to the types before it.
	for _, ts := range [][]wasm.ValType{params, results} {
		for _, t := range ts {
			if err := validate.CheckValType(m, m.Features, at, t); err != nil {
				return fmt.Errorf("type %d: %w", i, err)
			}
		}
	}
	m.Types = append(m.Types, &wasm.FuncType{Params: params, Results: results})
	return nil
}

func (p *parser) readValTypes(thing string) ([]wasm.ValType, error) {
	n, err := p.ReadCount(thing)
	if err != nil {
		return nil, err
	}
	ts := make([]wasm.ValType, 0, min(n, 1024))
	for range n {
		t, err := p.ReadValType(thing)
		if err != nil {
			return nil, err
		}
		ts = append(ts, t)
	}
	return ts, nil
}

func (m *Module) readImport(p *parser, i uint32) error {
	if _, err := p.ReadName("import module name"); err != nil {
		return err
	}
	if _, err := p.ReadName("import field name"); err != nil {
		return err
	}
	at := p.cur
	kind, err := p.ReadByte("import kind")
	if err != nil {
		return err
	}

	switch ExternKind(kind) {
	case ExternFunc:
		if err := m.readFunction(p, i); err != nil {
			return err
		}
		m.Funcs[len(m.Funcs)-1].Imported = true
		m.NumImportedFuncs++
	case ExternTable:
		tt, err := m.readTableType(p)
		if err != nil {
			return err
		}
		m.Tables = append(m.Tables, tt)
	case ExternMemory:
		return m.readMemory(p, i)
	case ExternGlobal:
		gtAt := p.cur
		gt, err := p.ReadGlobalType("global type")
		if err != nil {
			return err
		}
		if err := validate.CheckValType(m, m.Features, gtAt, gt.T); err != nil {
			return err
		}
		m.Globals = append(m.Globals, gt)
		m.NumImportedGlobals++
	case ExternTag:
		return m.readTag(p, i)
	default:
		return fmt.Errorf("import %d at offset %d: malformed import kind 0x%02x", i, at, kind)
	}
	return nil
}

func (m *Module) readFunction(p *parser, i uint32) error {
	at := p.cur
	typeIdx, err := p.ReadU32("function type index")
	if err != nil {
		return err
	}
	if typeIdx >= uint32(len(m.Types)) {
		return fmt.Errorf("function %d at offset %d: unknown type %d: type index out of bounds", i, at, typeIdx)
	}
	m.Funcs = append(m.Funcs, Func{TypeIdx: typeIdx})
	return nil
}

func (m *Module) readTableType(p *parser) (wasm.TableType, error) {
	at := p.cur
	tt, err := p.ReadTableType("table type")
	if err != nil {
		return tt, err
	}
	if err := validate.CheckValType(m, m.Features, at, wasm.Ref(tt.ET)); err != nil {
		return tt, err
	}
	max := uint64(math.MaxUint32)
	if tt.Lim.AT == wasm.ATI64 {
		if !m.Features.Has(wasm.FeatureMemory64) {
			return tt, fmt.Errorf("table at offset %d: memory64 must be enabled for 64-bit tables", at)
		}
		max = math.MaxUint64
	}
	if err := checkLimits(at, tt.Lim, max); err != nil {
		return tt, err
	}
	return tt, nil
}

func (m *Module) readTable(p *parser, i uint32) error {
	at := p.cur
	b, err := p.PeekByte("table")
	if err != nil {
		return err
	}
	hasInit := b == 0x40
	if hasInit {
		if err := p.Expect("table initializer prefix", []byte{0x40, 0x00}); err != nil {
			return err
		}
	}

	tt, err := m.readTableType(p)
	if err != nil {
		return err
	}
	m.Tables = append(m.Tables, tt)

	if hasInit {
		if !m.Features.Has(wasm.FeatureFunctionReferences) {
			return fmt.Errorf("table %d at offset %d: tables with expression initializers require the function-references feature", i, at)
		}
		if err := m.readConstExpr(p, wasm.Ref(tt.ET), m.visibleGlobals()); err != nil {
			return fmt.Errorf("table %d initializer: %w", i, err)
		}
	} else if !tt.ET.Null {
		return fmt.Errorf("table %d at offset %d: type mismatch: non-defaultable element type %s", i, at, tt.ET)
	}
	return nil
}

func (m *Module) readMemory(p *parser, i uint32) error {
	at := p.cur
	mt, err := p.ReadMemType("memory type")
	if err != nil {
		return err
	}
	if len(m.Memories) > 0 && !m.Features.Has(wasm.FeatureMultiMemory) {
		return fmt.Errorf("memory at offset %d: multiple memories require the multi-memory feature", at)
	}
	maxPages := uint64(maxPages32)
	if mt.Lim.AT == wasm.ATI64 {
		if !m.Features.Has(wasm.FeatureMemory64) {
			return fmt.Errorf("memory at offset %d: memory64 must be enabled for 64-bit memories", at)
		}
		maxPages = maxPages64
	}
	if mt.Shared {
		if !m.Features.Has(wasm.FeatureThreads) {
			return fmt.Errorf("memory at offset %d: threads must be enabled for shared memories", at)
		}
		if !mt.Lim.HasMax {
			return fmt.Errorf("memory at offset %d: shared memory must have maximum size", at)
		}
	}
	if err := checkLimits(at, mt.Lim, maxPages); err != nil {
		return err
	}
	m.Memories = append(m.Memories, mt)
	return nil
}

func checkLimits(at int, lim wasm.Limits, max uint64) error {
	if lim.Min > max {
		return fmt.Errorf("limits at offset %d: minimum size %d exceeds the limit of %d", at, lim.Min, max)
	}
	if lim.HasMax {
		if lim.Max > max {
			return fmt.Errorf("limits at offset %d: maximum size %d exceeds the limit of %d", at, lim.Max, max)
		}
		if lim.Max < lim.Min {
			return fmt.Errorf("limits at offset %d: size minimum must not be greater than maximum", at)
		}
	}
	return nil
}

func (m *Module) readGlobal(p *parser, i uint32) error {
	at := p.cur
	gt, err := p.ReadGlobalType("global type")
	if err != nil {
		return err
	}
	if err := validate.CheckValType(m, m.Features, at, gt.T); err != nil {
		return err
	}
	if err := m.readConstExpr(p, gt.T, m.visibleGlobals()); err != nil {
		return fmt.Errorf("global %d initializer: %w", i, err)
	}
	m.Globals = append(m.Globals, gt)
	return nil
}

func (m *Module) readExport(p *parser, i uint32) error {
	name, err := p.ReadName("export name")
	if err != nil {
		return err
	}
	at := p.cur
	kind, err := p.ReadByte("export kind")
	if err != nil {
		return err
	}
	idx, err := p.ReadU32("export index")
	if err != nil {
		return err
	}

	var count int
	switch ExternKind(kind) {
	case ExternFunc:
		count = len(m.Funcs)
		m.referenced[idx] = struct{}{}
	case ExternTable:
		count = len(m.Tables)
	case ExternMemory:
		count = len(m.Memories)
	case ExternGlobal:
		count = len(m.Globals)
	case ExternTag:
		count = len(m.Tags)
	default:
		return fmt.Errorf("export %d at offset %d: malformed export kind 0x%02x", i, at, kind)
	}
	if uint64(idx) >= uint64(count) {
		return fmt.Errorf("export %d at offset %d: unknown index %d", i, at, idx)
	}
	for _, e := range m.Exports {
		if e.Name == name {
			return fmt.Errorf("export %d at offset %d: duplicate export name %q", i, at, name)
		}
	}
	m.Exports = append(m.Exports, Export{Name: name, Kind: ExternKind(kind), Idx: idx})
	return nil
}

func (m *Module) readStart(p *parser) error {
	at := p.cur
	idx, err := p.ReadU32("start function")
	if err != nil {
		return err
	}
	typeIdx, ok := m.TypeOfFunction(idx)
	if !ok {
		return fmt.Errorf("start function at offset %d: unknown function %d", at, idx)
	}
	if ft := m.Types[typeIdx]; len(ft.Params) != 0 || len(ft.Results) != 0 {
		return fmt.Errorf("start function at offset %d: invalid start function type %s", at, ft)
	}
	m.Start = &idx
	return nil
}

func (m *Module) readElem(p *parser, i uint32) error {
	at := p.cur
	flags, err := p.ReadU32("element segment flags")
	if err != nil {
		return err
	}
	if flags > 7 {
		return fmt.Errorf("element segment %d at offset %d: invalid flags %d", i, at, flags)
	}
	if flags != 0 && !m.Features.Has(wasm.FeatureBulkMemory) {
		return fmt.Errorf("element segment %d at offset %d: bulk memory support is not enabled", i, at)
	}

	// Bit 0 marks passive or declarative segments, bit 1 an explicit table
	// index (or declarative), and bit 2 expressions instead of indices.
	seg := ElemSegment{Type: wasm.FuncRef.RefType()}
	switch {
	case flags&0b001 == 0:
		seg.Mode = SegmentActive
	case flags&0b010 == 0:
		seg.Mode = SegmentPassive
	default:
		seg.Mode = SegmentDeclarative
	}
	usesExprs := flags&0b100 != 0

	var table wasm.TableType
	if seg.Mode == SegmentActive {
		if flags&0b010 != 0 {
			if seg.Table, err = p.ReadU32("table index"); err != nil {
				return err
			}
		}
		var ok bool
		if table, ok = m.Table(seg.Table); !ok {
			return fmt.Errorf("element segment %d at offset %d: unknown table %d: table index out of bounds", i, at, seg.Table)
		}
		if err := m.readConstExpr(p, table.Lim.AT.ValType(), m.visibleGlobals()); err != nil {
			return fmt.Errorf("element segment %d offset: %w", i, err)
		}
	}

	// Every form except the original one names its element kind or type.
	if flags&0b011 != 0 {
		if usesExprs {
			typeAt := p.cur
			if seg.Type, err = p.ReadRefType("element type"); err != nil {
				return err
			}
			if err := validate.CheckValType(m, m.Features, typeAt, wasm.Ref(seg.Type)); err != nil {
				return err
			}
		} else if err := p.Expect("element kind", []byte{0x00}); err != nil {
			return err
		}
	}

	if seg.Mode == SegmentActive && !validate.Matches(m, wasm.Ref(seg.Type), wasm.Ref(table.ET)) {
		return fmt.Errorf("element segment %d at offset %d: type mismatch: invalid element type %s for table type %s", i, at, seg.Type, table.ET)
	}

	if seg.Count, err = p.ReadCount("element count"); err != nil {
		return err
	}
	for j := range seg.Count {
		if usesExprs {
			if err := m.readConstExpr(p, wasm.Ref(seg.Type), m.visibleGlobals()); err != nil {
				return fmt.Errorf("element segment %d item %d: %w", i, j, err)
			}
			continue
		}
		idxAt := p.cur
		funcIdx, err := p.ReadU32("function index")
		if err != nil {
			return err
		}
		if funcIdx >= uint32(len(m.Funcs)) {
			return fmt.Errorf("element segment %d at offset %d: unknown function %d", i, idxAt, funcIdx)
		}
		m.referenced[funcIdx] = struct{}{}
	}

	m.Elems = append(m.Elems, seg)
	return nil
}

func (m *Module) readCode(p *parser, i uint32) error {
	size, err := p.ReadU32("function body size")
	if err != nil {
		return err
	}
	at := p.cur
	body, err := p.ReadN("function body", int(size))
	if err != nil {
		return err
	}
	utils.Assert(int(m.NumImportedFuncs+i) < len(m.Funcs), "code entry %d has no function", i)
	f := &m.Funcs[m.NumImportedFuncs+i]
	f.Body = body
	f.BodyOffset = at
	return nil
}

func (m *Module) readData(p *parser, i uint32) error {
	at := p.cur
	flags, err := p.ReadU32("data segment flags")
	if err != nil {
		return err
	}

	var seg DataSegment
	switch flags {
	case 0:
	case 1:
		seg.Mode = SegmentPassive
	case 2:
		if seg.Memory, err = p.ReadU32("memory index"); err != nil {
			return err
		}
	default:
		return fmt.Errorf("data segment %d at offset %d: invalid flags %d", i, at, flags)
	}
	if flags != 0 && !m.Features.Has(wasm.FeatureBulkMemory) {
		return fmt.Errorf("data segment %d at offset %d: bulk memory support is not enabled", i, at)
	}

	if seg.Mode == SegmentActive {
		mt, ok := m.Memory(seg.Memory)
		if !ok {
			return fmt.Errorf("data segment %d at offset %d: unknown memory %d", i, at, seg.Memory)
		}
		if err := m.readConstExpr(p, mt.Lim.AT.ValType(), m.visibleGlobals()); err != nil {
			return fmt.Errorf("data segment %d offset: %w", i, err)
		}
	}

	n, err := p.ReadCount("data segment size")
	if err != nil {
		return err
	}
	if _, err := p.ReadN("data segment contents", int(n)); err != nil {
		return err
	}
	seg.Size = int(n)
	m.Datas = append(m.Datas, seg)
	return nil
}

func (m *Module) readTag(p *parser, i uint32) error {
	at := p.cur
	if !m.Features.Has(wasm.FeatureExceptions) {
		return fmt.Errorf("tag at offset %d: exceptions proposal not enabled", at)
	}
	typeIdx, err := p.ReadTagType("tag type")
	if err != nil {
		return err
	}
	ft, ok := m.FuncType(typeIdx)
	if !ok {
		return fmt.Errorf("tag at offset %d: unknown type %d: type index out of bounds", at, typeIdx)
	}
	if len(ft.Results) != 0 {
		return fmt.Errorf("tag at offset %d: invalid exception type: non-empty tag result type", at)
	}
	m.Tags = append(m.Tags, typeIdx)
	return nil
}

// visibleGlobals is how many globals a constant expression read now may
// refer to. Without gc only imported globals are visible.
func (m *Module) visibleGlobals() uint32 {
	if m.Features.Has(wasm.FeatureGC) {
		return uint32(len(m.Globals))
	}
	return m.NumImportedGlobals
}

// constResources narrows a module's globals to those a constant expression
// may see.
type constResources struct {
	*Module
	numGlobals uint32
}

func (r constResources) Global(idx uint32) (wasm.GlobalType, bool) {
	if idx >= r.numGlobals {
		return wasm.GlobalType{}, false
	}
	return r.Module.Global(idx)
}

func (m *Module) readConstExpr(p *parser, want wasm.ValType, numGlobals uint32) error {
	c := validate.NewConstExprValidator(constResources{Module: m, numGlobals: numGlobals}, m.Features, want)
	var in wasm.Instr
	for {
		at := p.cur
		if err := p.ReadInstr(&in); err != nil {
			return err
		}
		if err := c.Op(at, &in); err != nil {
			return err
		}
		if in.Op == wasm.OpRefFunc {
			m.referenced[in.Idx] = struct{}{}
		}
		if in.Op == wasm.OpEnd {
			break
		}
	}
	return c.Finish(p.cur)
}

func (m *Module) FuncType(typeIdx uint32) (*wasm.FuncType, bool) {
	if typeIdx >= uint32(len(m.Types)) {
		return nil, false
	}
	return m.Types[typeIdx], true
}

func (m *Module) TypeCount() uint32 {
	return uint32(len(m.Types))
}

func (m *Module) TypeOfFunction(funcIdx uint32) (uint32, bool) {
	if funcIdx >= uint32(len(m.Funcs)) {
		return 0, false
	}
	return m.Funcs[funcIdx].TypeIdx, true
}

func (m *Module) Global(idx uint32) (wasm.GlobalType, bool) {
	if idx >= uint32(len(m.Globals)) {
		return wasm.GlobalType{}, false
	}
	return m.Globals[idx], true
}

func (m *Module) Memory(idx uint32) (wasm.MemType, bool) {
	if idx >= uint32(len(m.Memories)) {
		return wasm.MemType{}, false
	}
	return m.Memories[idx], true
}

func (m *Module) Table(idx uint32) (wasm.TableType, bool) {
	if idx >= uint32(len(m.Tables)) {
		return wasm.TableType{}, false
	}
	return m.Tables[idx], true
}

func (m *Module) Tag(idx uint32) (*wasm.FuncType, bool) {
	if idx >= uint32(len(m.Tags)) {
		return nil, false
	}
	return m.FuncType(m.Tags[idx])
}

func (m *Module) ElementType(idx uint32) (wasm.RefType, bool) {
	if idx >= uint32(len(m.Elems)) {
		return wasm.RefType{}, false
	}
	return m.Elems[idx].Type, true
}

func (m *Module) DataCount() (uint32, bool) {
	if m.dataCount == nil {
		return 0, false
	}
	return *m.dataCount, true
}

func (m *Module) IsFunctionReferenced(funcIdx uint32) bool {
	_, ok := m.referenced[funcIdx]
	return ok
}
