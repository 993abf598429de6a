// Package dat implements the DAT image serializer: a directive-driven
// walk of a DAT block's AST that lowers each initializer to bytes in a
// growable output buffer and records relocations for every address-valued
// datum. One pass, one switch over directive kind, bytes and a parallel
// relocation list (the list itself is pasm.RelocList, shared with the
// assembler rather than reinvented).
package dat

import (
	"os"

	"github.com/totalspectrum/propcore/ast"
	"github.com/totalspectrum/propcore/internal/flex"
	"github.com/totalspectrum/propcore/pasm"
	"github.com/totalspectrum/propcore/typesys"
)

// Label is a data-block label record: hub and cog addresses, the
// type of the following data, the ORG origin it was defined under, and
// its placement flags.
type Label struct {
	Name       string
	HubAddr    int
	CogAddr    int // bytes
	Type       *typesys.Type
	OrgSymbol  string
	UsedInSpin bool
	ExtraAlign bool
	InHub      bool
}

// Serializer walks a DAT block's directive list, emitting bytes to Code
// and recording relocations for address-valued initializers.
type Serializer struct {
	Code   *flex.Buffer
	Relocs pasm.RelocList

	IsP2       bool
	InHub      bool
	Compressed bool // compression enabled relaxes P1-style alignment

	Org       int    // current cog origin, advanced by ORG/ORGH/ORGF
	OrgSymbol string // symbol naming the active origin

	Labels map[string]*Label

	// DataCount is the output byte count, tracked separately from
	// Code.Len() so ORG games cannot skew it.
	DataCount int

	errors   []error
	warnings []error
}

func New() *Serializer {
	return &Serializer{Code: flex.New(256), Labels: make(map[string]*Label)}
}

func (s *Serializer) fail(err error) { s.errors = append(s.errors, err) }
func (s *Serializer) warn(err error) { s.warnings = append(s.warnings, err) }

func (s *Serializer) Errors() []error   { return s.errors }
func (s *Serializer) Warnings() []error { return s.warnings }

func (s *Serializer) count(n int) { s.DataCount += n }

// Emit walks one DAT directive node and appends
// its encoded bytes.
func (s *Serializer) Emit(n *ast.Node) {
	if n == nil {
		return
	}
	switch n.Kind {
	case ast.KindStmtList:
		for _, e := range ast.ListElements(n) {
			s.Emit(e)
		}
	case ast.KindLabel:
		s.defineLabel(n)
	case ast.KindByteList:
		s.emitFixedList(n, 1, false)
	case ast.KindWordList:
		s.alignFor(2)
		s.emitFixedList(n, 2, false)
	case ast.KindLongList:
		s.alignFor(4)
		s.emitFixedList(n, 4, false)
	case ast.KindByteFitList:
		s.emitFixedList(n, 1, true)
	case ast.KindWordFitList:
		s.alignFor(2)
		s.emitFixedList(n, 2, true)
	case ast.KindStringLit:
		s.emitString(n)
	case ast.KindAlign:
		before := s.Code.Len()
		s.Code.AlignTo(int(n.IVal))
		s.count(s.Code.Len() - before)
	case ast.KindOrg:
		s.Org = int(n.IVal)
		s.OrgSymbol = n.SVal
		s.InHub = false
	case ast.KindOrgH:
		s.Org = int(n.IVal)
		s.OrgSymbol = n.SVal
		s.InHub = true
	case ast.KindOrgF:
		s.emitOrgF(int(n.IVal))
	case ast.KindFit:
		s.checkFit(int(n.IVal))
	case ast.KindFile:
		s.emitFile(n.SVal)
	case ast.KindRes:
		// Reserve without storing: advances the origin only (operand is
		// a byte count; front ends scale long counts).
		s.Org += int(n.IVal)
	case ast.KindInstrHolder:
		s.emitInstrHolder(n)
	case ast.KindBrkDebug:
		// The breakpoint number was assigned by the debug compiler; the
		// DAT stream carries a brk placeholder long.
		s.alignFor(4)
		s.writeCounted(n.IVal&0xFF, 4)
		s.Relocs.Add(pasm.Reloc{Kind: pasm.RelocDebug, Offset: s.Code.Len() - 4})
	case ast.KindDeclareVar:
		s.emitDeclareVar(n)
	default:
		s.fail(&UnsupportedDirectiveError{Kind: n.Kind})
	}
}

func (s *Serializer) defineLabel(n *ast.Node) {
	t, _ := n.Data.(*typesys.Type)
	s.Labels[n.SVal] = &Label{
		Name:      n.SVal,
		HubAddr:   s.Code.Len(),
		CogAddr:   s.Org,
		Type:      t,
		OrgSymbol: s.OrgSymbol,
		InHub:     s.InHub,
	}
}

// alignFor enforces word/long alignment before fixed-width data:
// LONG aligns to 4, WORD to 2.
func (s *Serializer) alignFor(width int) {
	before := s.Code.Len()
	s.Code.AlignTo(width)
	pad := s.Code.Len() - before
	s.count(pad)
	s.Org += pad
}

// emitInstrHolder lays a decoded PASM instruction. Alignment rule: on
// P1, or whenever compression is disabled, enforce a 4-byte boundary; on
// P2 enforce it only outside hub blocks.
func (s *Serializer) emitInstrHolder(n *ast.Node) {
	needAlign := true
	if s.IsP2 && s.Compressed && s.InHub {
		needAlign = false
	}
	if needAlign {
		s.alignFor(4)
	}
	word, _ := n.Data.(uint32)
	s.writeCounted(uint64(word), 4)
}

// emitOrgF pads with zero bytes until the origin reaches the given
// target. Origins are tracked in bytes; front
// ends convert cog long counts before building the directive node.
func (s *Serializer) emitOrgF(target int) {
	pad := target - s.Org
	if pad < 0 {
		s.fail(&FitOverflowError{Width: 0, Value: int64(s.Org)})
		return
	}
	if pad == 0 {
		return
	}
	s.Code.Pad(pad)
	s.count(pad)
	s.Org = target
}

// emitFile splats the bytes of a host file into the image.
func (s *Serializer) emitFile(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		s.fail(&FileError{Path: path, Err: err})
		return
	}
	s.Code.Write(data)
	s.count(len(data))
}

func (s *Serializer) emitFixedList(n *ast.Node, width int, mustFit bool) {
	for _, elem := range ast.ListElements(n.Left) {
		if mustFit && elem != nil && !fitsWidth(int64(elem.IVal), width) {
			s.fail(&FitOverflowError{Width: width, Value: int64(elem.IVal)})
			continue
		}
		s.emitScalar(elem, width)
	}
}

// emitScalar lowers one initializer element. Relocatable expressions get
// a zero placeholder plus a Reloc entry; illegal arithmetic on a
// relocatable is an error.
func (s *Serializer) emitScalar(n *ast.Node, width int) {
	switch Relocatability(n) {
	case Relocatable32:
		sym, symOff := relocTarget(n)
		off := s.Code.Len()
		s.Code.Pad(width)
		s.count(width)
		s.Org += width
		s.Relocs.Add(pasm.Reloc{Kind: pasm.RelocAbs32, Offset: off, Symbol: sym, SymbolOffset: symOff})
		return
	case RelocIllegal:
		s.fail(&RelocMathError{})
		return
	}
	v := evalConst(n)
	s.writeCounted(v, width)
}

func (s *Serializer) writeCounted(v uint64, width int) {
	writeLE(s.Code, v, width)
	s.count(width)
	s.Org += width
}

func (s *Serializer) emitString(n *ast.Node) {
	s.Code.Write([]byte(n.SVal))
	s.Code.WriteByte(0)
	s.count(len(n.SVal) + 1)
	s.Org += len(n.SVal) + 1
}

// checkFit asserts PC <= limit.
func (s *Serializer) checkFit(limit int) {
	if s.Org > limit {
		s.fail(&FitOverflowError{Width: 0, Value: int64(s.Org)})
	}
}

// emitDeclareVar lowers a globally initialised variable:
// scalar, array (zero-filled tail, extra-initializer warning), object
// (member walk; unions write the first member only and pad to size;
// bitfield members are skipped), all recursively.
func (s *Serializer) emitDeclareVar(n *ast.Node) {
	ti, _ := n.Data.(*typesys.Type)
	if ti == nil {
		s.emitScalar(n.Left, typesys.LongSize)
		return
	}
	s.emitInitializer(ti, n.Left)
}

func (s *Serializer) emitInitializer(t *typesys.Type, init *ast.Node) {
	switch t.Kind {
	case typesys.KindArray:
		s.emitArrayInit(t, init)
	case typesys.KindObject:
		s.emitObjectInit(t, init)
	case typesys.KindBitfield:
		// Bitfield entries occupy bits in the previous host word, which
		// is already initialised; nothing to emit.
	default:
		if init != nil && Relocatability(init) == NotRelocatable && !isConstExpr(init) {
			s.fail(&NonConstInitError{})
			return
		}
		s.emitScalar(init, typesys.Size(t))
	}
}

func (s *Serializer) emitArrayInit(t *typesys.Type, init *ast.Node) {
	s.alignFor(typesys.Alignment(t.Elem))
	elems := ast.ListElements(init)
	n := t.ArrayLen
	if n < 0 {
		n = len(elems)
	}
	if len(elems) > n {
		s.warn(&ExtraInitializersWarning{Declared: n, Given: len(elems)})
		elems = elems[:n]
	}
	for _, e := range elems {
		s.emitInitializer(t.Elem, e)
	}
	// Zero-fill the tail when fewer initializers than declared length.
	for i := len(elems); i < n; i++ {
		s.emitInitializer(t.Elem, nil)
	}
}

// emitObjectInit iterates the class's final member list in declaration
// order. For a union only the first listed member is written (or the
// member named by an explicit cast initializer), then padding to the
// union's size; objects pad to a long boundary at the end.
func (s *Serializer) emitObjectInit(t *typesys.Type, init *ast.Node) {
	s.alignFor(typesys.LongSize)
	start := s.Code.Len()
	members := objectMembers(t)
	elems := ast.ListElements(init)

	if isUnion(t) {
		memberType := firstUnionMember(members, elems)
		var val *ast.Node
		if len(elems) > 0 {
			val = elems[0]
			if val != nil && val.Kind == ast.KindCast {
				val = val.Right
			}
		}
		if memberType != nil {
			s.emitInitializer(memberType, val)
		}
	} else {
		for i, mt := range members {
			var val *ast.Node
			if i < len(elems) {
				val = elems[i]
			}
			s.emitInitializer(mt, val)
		}
		if len(elems) > len(members) {
			s.warn(&ExtraInitializersWarning{Declared: len(members), Given: len(elems)})
		}
	}

	// Pad to the object's full size, then to a long boundary.
	want := typesys.Size(t)
	written := s.Code.Len() - start
	if written < want {
		s.Code.Pad(want - written)
		s.count(want - written)
		s.Org += want - written
	}
	s.alignFor(typesys.LongSize)
}

// objectMembers returns the declared member types of an object type, in
// declaration order, via the layout the module finalised. The Elems
// field doubles as the member-type list for object types built by the
// front ends.
func objectMembers(t *typesys.Type) []*typesys.Type {
	return t.Elems
}

func isUnion(t *typesys.Type) bool {
	return t.Union
}

// firstUnionMember picks the member a union initializer writes: the type
// named by an explicit cast initializer, else the first listed member.
func firstUnionMember(members []*typesys.Type, elems []*ast.Node) *typesys.Type {
	if len(elems) > 0 && elems[0] != nil && elems[0].Kind == ast.KindCast {
		if ct, ok := elems[0].Data.(*typesys.Type); ok {
			return ct
		}
	}
	if len(members) > 0 {
		return members[0]
	}
	return nil
}

// RelocClass is the tri-state result of Relocatability.
type RelocClass int

const (
	NotRelocatable RelocClass = iota
	Relocatable32
	RelocIllegal
)

// Relocatability classifies an initializer expression: @@@foo is relocatable relative to the DAT base;
// reloc +/- const stays relocatable; reloc - reloc is a compile-time
// constant (not relocatable); any other operation on a relocatable is an
// error.
func Relocatability(n *ast.Node) RelocClass {
	if n == nil {
		return NotRelocatable
	}
	switch n.Kind {
	case ast.KindAbsAddrOf:
		return Relocatable32
	case ast.KindAddrOf:
		// @foo in DAT is a relative offset; no relocation needed.
		return NotRelocatable
	case ast.KindOperator:
		return relocatabilityOp(n)
	default:
		return NotRelocatable
	}
}

func relocatabilityOp(n *ast.Node) RelocClass {
	op := ast.OpKind(n.IVal)
	l := Relocatability(n.Left)
	r := Relocatability(n.Right)
	if l == RelocIllegal || r == RelocIllegal {
		return RelocIllegal
	}
	switch op {
	case ast.OpAdd:
		if l == Relocatable32 && r == Relocatable32 {
			return RelocIllegal
		}
		if l == Relocatable32 || r == Relocatable32 {
			return Relocatable32
		}
		return NotRelocatable
	case ast.OpSub:
		if l == Relocatable32 && r == Relocatable32 {
			return NotRelocatable // reloc - reloc is a constant
		}
		if l == Relocatable32 {
			return Relocatable32 // reloc - const
		}
		if r == Relocatable32 {
			return RelocIllegal // const - reloc
		}
		return NotRelocatable
	default:
		if l == Relocatable32 || r == Relocatable32 {
			return RelocIllegal
		}
		return NotRelocatable
	}
}

// relocTarget extracts the symbol (nil means the DAT base itself) and
// constant offset of a relocatable expression.
func relocTarget(n *ast.Node) (*pasm.Symbol, int) {
	switch n.Kind {
	case ast.KindAbsAddrOf:
		if n.Left != nil && n.Left.SVal != "" {
			return &pasm.Symbol{Name: n.Left.SVal}, 0
		}
		return nil, 0
	case ast.KindOperator:
		op := ast.OpKind(n.IVal)
		if Relocatability(n.Left) == Relocatable32 {
			sym, off := relocTarget(n.Left)
			delta := int(evalConst(n.Right))
			if op == ast.OpSub {
				delta = -delta
			}
			return sym, off + delta
		}
		sym, off := relocTarget(n.Right)
		return sym, off + int(evalConst(n.Left))
	}
	return nil, 0
}

// evalConst folds a constant initializer expression to its value;
// non-constant subtrees contribute 0 (the type checker has already
// diagnosed them).
func evalConst(n *ast.Node) uint64 {
	if n == nil {
		return 0
	}
	switch n.Kind {
	case ast.KindInteger, ast.KindFloat:
		return n.IVal
	case ast.KindOperator:
		l, r := evalConst(n.Left), evalConst(n.Right)
		switch ast.OpKind(n.IVal) {
		case ast.OpAdd:
			return l + r
		case ast.OpSub:
			return l - r
		case ast.OpMul:
			return l * r
		case ast.OpShl:
			return l << (r & 63)
		case ast.OpShr:
			return l >> (r & 63)
		case ast.OpAnd:
			return l & r
		case ast.OpOr:
			return l | r
		case ast.OpXor:
			return l ^ r
		}
	}
	return 0
}

func isConstExpr(n *ast.Node) bool {
	if n == nil {
		return true
	}
	switch n.Kind {
	case ast.KindInteger, ast.KindFloat, ast.KindString:
		return true
	case ast.KindOperator:
		return isConstExpr(n.Left) && isConstExpr(n.Right)
	default:
		return false
	}
}

func fitsWidth(v int64, width int) bool {
	bits := uint(width * 8)
	lo := -(int64(1) << (bits - 1))
	hiU := int64(1)<<bits - 1
	return v >= lo && v <= hiU
}

func writeLE(buf *flex.Buffer, v uint64, width int) {
	for i := 0; i < width; i++ {
		buf.WriteByte(byte(v >> uint(8*i)))
	}
}

// UnsupportedDirectiveError reports a DAT node kind this serializer does
// not know how to lower.
type UnsupportedDirectiveError struct {
	Kind ast.Kind
}

func (e *UnsupportedDirectiveError) Error() string {
	return "dat: unsupported directive kind"
}

// FitOverflowError reports a BYTEFIT/WORDFIT element, or a FIT
// directive's total size, exceeding its declared bound.
type FitOverflowError struct {
	Width int
	Value int64
}

func (e *FitOverflowError) Error() string {
	return "dat: value does not fit declared width"
}

// RelocMathError reports an illegal operation on a relocatable value.
type RelocMathError struct{}

func (e *RelocMathError) Error() string {
	return "dat: illegal arithmetic on a relocatable value"
}

// NonConstInitError reports a non-constant global initializer.
type NonConstInitError struct{}

func (e *NonConstInitError) Error() string {
	return "dat: global initializer must be a constant"
}

// FileError reports a FILE directive whose host file cannot be read.
type FileError struct {
	Path string
	Err  error
}

func (e *FileError) Error() string {
	return "dat: cannot read file " + e.Path + ": " + e.Err.Error()
}

// ExtraInitializersWarning reports more initializers than declared
// elements.
type ExtraInitializersWarning struct {
	Declared, Given int
}

func (e *ExtraInitializersWarning) Error() string {
	return "dat: more initializers than declared elements"
}
