// Package typesys implements the type model. Types are themselves small
// trees; this package gives that tree its own concrete Go shape (*Type)
// rather than routing it back through ast.Node, since none of the
// rewriting passes in ast (DeepCopy/MatchStructural/...) need to know
// about types — only typecheck and the back ends do. A *Type is
// referenced from an ast.Node's Data field wherever a node carries a
// type (casts, declarations, function signatures).
package typesys

import "fmt"

// Kind enumerates the type kinds.
type Kind int

const (
	KindInvalid Kind = iota
	KindInt          // signed integer
	KindUInt         // unsigned integer
	KindFloat
	KindBool // signed or unsigned, 1 or 4 bytes
	KindPointer
	KindReference
	KindCopyReference // pass-by-copy-to-hidden-temp-then-reference
	KindArray
	KindFunction
	KindObject // class/module
	KindTuple  // multi-return
	KindGeneric
	KindVoid
	KindBitfield
)

// Const width/size constants (P1/P2 are 32-bit machines).
const (
	PointerSize = 4
	WordSize    = 2
	ByteSize    = 1
	LongSize    = 4
	Long64Size  = 8
)

// Type is one node in the (small) type tree.
type Type struct {
	Kind Kind

	// Size in bytes, meaningful for Int/UInt/Float/Bool.
	IntSize int

	// Const/volatile modifiers, stripped by RemoveModifiers.
	Const, Volatile bool

	// Pointer/Reference/CopyReference/Array: element type.
	Elem *Type
	// Array: element count. -1 means unknown/flexible.
	ArrayLen int

	// Function: return type and parameters.
	Return *Type
	Params []*Type
	// SendArgs marks a Spin2 variadic "send" modifier on a function type.
	SendArgs bool

	// Object: the module this type names (opaque to typesys; owned by
	// the module package, referenced here only for size/compat queries
	// via the Module interface below). Union marks an object whose
	// members overlay the same storage.
	Module Module
	Union  bool

	// Tuple: component types.
	Elems []*Type

	// Bitfield: width in bits and bit offset within the host word.
	BitWidth, BitOffset int
}

// Module is the minimal surface typesys needs from module.Module to avoid
// an import cycle (module imports typesys for variable/member types).
type Module interface {
	// VarSize returns the module's finalised total variable-block size,
	// finalising member layout first if it is still pending.
	VarSize() int
	// IsSubclassOf reports whether this module's class is the named
	// other module (direct or transitive base).
	IsSubclassOf(other Module) bool
	// ImplementsInterface reports whether this module implements all
	// methods declared by the named interface module.
	ImplementsInterface(iface Module) bool
}

// Int/UInt/Float/Bool constructors for the fixed widths the ISA supports.

func NewInt(size int) *Type   { return &Type{Kind: KindInt, IntSize: size} }
func NewUInt(size int) *Type  { return &Type{Kind: KindUInt, IntSize: size} }
func NewFloat(size int) *Type { return &Type{Kind: KindFloat, IntSize: size} }
func NewBool(signed bool, size int) *Type {
	k := KindBool
	t := &Type{Kind: k, IntSize: size}
	if !signed {
		t.IntSize = -size // sign encoded via negative size, unpacked by callers that care
	}
	return t
}

func NewPointer(elem *Type) *Type      { return &Type{Kind: KindPointer, Elem: elem} }
func NewReference(elem *Type) *Type    { return &Type{Kind: KindReference, Elem: elem} }
func NewCopyReference(elem *Type) *Type { return &Type{Kind: KindCopyReference, Elem: elem} }
func NewArray(elem *Type, length int) *Type {
	return &Type{Kind: KindArray, Elem: elem, ArrayLen: length}
}
func NewFunction(ret *Type, params []*Type, sendArgs bool) *Type {
	return &Type{Kind: KindFunction, Return: ret, Params: params, SendArgs: sendArgs}
}
func NewObject(m Module) *Type { return &Type{Kind: KindObject, Module: m} }
func NewTuple(elems []*Type) *Type { return &Type{Kind: KindTuple, Elems: elems} }
func NewGeneric() *Type        { return &Type{Kind: KindGeneric} }
func NewVoid() *Type           { return &Type{Kind: KindVoid} }
func NewBitfield(width, offset int) *Type {
	return &Type{Kind: KindBitfield, BitWidth: width, BitOffset: offset}
}

// RemoveModifiers strips const/volatile wrappers, returning a type with
// those flags cleared but otherwise identical. The input is not
// mutated.
func RemoveModifiers(t *Type) *Type {
	if t == nil {
		return nil
	}
	cp := *t
	cp.Const = false
	cp.Volatile = false
	return &cp
}

// Size returns the size in bytes of t. Class/object types
// trigger finalisation of the module's member layout if it is pending
// (the Module.VarSize contract handles that).
func Size(t *Type) int {
	if t == nil {
		return 0
	}
	switch t.Kind {
	case KindInt, KindUInt, KindFloat:
		return abs(t.IntSize)
	case KindBool:
		return abs(t.IntSize)
	case KindPointer, KindReference, KindCopyReference:
		return PointerSize
	case KindArray:
		if t.ArrayLen < 0 {
			return PointerSize // decays to pointer when length is unknown
		}
		return Size(t.Elem) * t.ArrayLen
	case KindFunction:
		return PointerSize // a function value is its address
	case KindObject:
		if t.Module != nil {
			return t.Module.VarSize()
		}
		// Synthetic object types (anonymous structs, unions built by a
		// front end without a backing module) carry their member types
		// in Elems: varsize rounds the aligned member layout up to 4,
		// unions round the largest member up to 4.
		if t.Union {
			max := 0
			for _, e := range t.Elems {
				if sz := Size(e); sz > max {
					max = sz
				}
			}
			return roundUp(max, LongSize)
		}
		off := 0
		for _, e := range t.Elems {
			a := Alignment(e)
			off = roundUp(off, a)
			off += Size(e)
		}
		return roundUp(off, LongSize)
	case KindTuple:
		total := 0
		for _, e := range t.Elems {
			total += Size(e)
		}
		return total
	case KindGeneric:
		return LongSize
	case KindVoid:
		return 0
	case KindBitfield:
		return (t.BitWidth + 7) / 8
	}
	return 0
}

// Alignment returns the required alignment in bytes of t.
func Alignment(t *Type) int {
	if t == nil {
		return 1
	}
	switch t.Kind {
	case KindArray:
		return Alignment(t.Elem)
	case KindObject:
		return LongSize
	case KindBitfield:
		return 1
	default:
		sz := Size(t)
		if sz == 0 {
			return 1
		}
		if sz > LongSize {
			return LongSize
		}
		return sz
	}
}

// goesOnStackThreshold is the tunable size above which a value is
// passed by hidden reference instead of by value.
const goesOnStackThreshold = 12

// GoesOnStack reports whether a value of type t is passed by hidden
// reference rather than directly in registers/stack slots: true for
// any type larger than the threshold, or for any non-long-only
// array/object regardless of size.
func GoesOnStack(t *Type) bool {
	if t == nil {
		return false
	}
	if Size(t) > goesOnStackThreshold {
		return true
	}
	switch t.Kind {
	case KindArray:
		return !isLongOnly(t.Elem)
	case KindObject:
		return true
	default:
		return false
	}
}

func isLongOnly(t *Type) bool {
	if t == nil {
		return false
	}
	switch t.Kind {
	case KindInt, KindUInt:
		return t.IntSize == LongSize
	case KindFloat:
		return t.IntSize == LongSize
	default:
		return false
	}
}

// Dereference returns the pointee type of a pointer/reference/array type,
// or an error if t is not dereferenceable.
func Dereference(t *Type) (*Type, error) {
	if t == nil {
		return nil, fmt.Errorf("dereference of nil type")
	}
	switch t.Kind {
	case KindPointer, KindReference, KindCopyReference, KindArray:
		return t.Elem, nil
	default:
		return nil, fmt.Errorf("cannot dereference non-pointer type (kind %d)", t.Kind)
	}
}

// Compatible reports structural compatibility for assignment/comparison
// purposes: two class types are compatible only if one is the
// other's subclass, except that an interface type is compatible with any
// class implementing it.
func Compatible(a, b *Type) bool {
	a, b = RemoveModifiers(a), RemoveModifiers(b)
	if a == nil || b == nil {
		return a == b
	}
	if a.Kind != b.Kind {
		// Generic accepts any 32-bit value.
		if a.Kind == KindGeneric || b.Kind == KindGeneric {
			return true
		}
		return false
	}
	switch a.Kind {
	case KindPointer, KindReference, KindCopyReference, KindArray:
		return Compatible(a.Elem, b.Elem)
	case KindObject:
		if a.Module == nil || b.Module == nil {
			return a.Module == b.Module
		}
		if a.Module.IsSubclassOf(b.Module) || b.Module.IsSubclassOf(a.Module) {
			return true
		}
		if b.Module.ImplementsInterface(a.Module) || a.Module.ImplementsInterface(b.Module) {
			return true
		}
		return false
	case KindFunction:
		if len(a.Params) != len(b.Params) || !Compatible(a.Return, b.Return) {
			return false
		}
		for i := range a.Params {
			if !Compatible(a.Params[i], b.Params[i]) {
				return false
			}
		}
		return true
	case KindTuple:
		if len(a.Elems) != len(b.Elems) {
			return false
		}
		for i := range a.Elems {
			if !Compatible(a.Elems[i], b.Elems[i]) {
				return false
			}
		}
		return true
	default:
		return true
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func roundUp(v, align int) int {
	if align <= 1 {
		return v
	}
	if rem := v % align; rem != 0 {
		return v + align - rem
	}
	return v
}
