// Package module implements the Module/Function model and the
// phase-flag visitor. Module closes the loop with typesys.Module
// (VarSize/IsSubclassOf/ImplementsInterface), anchoring a compiled
// file's symbol table, function list, and superclass chain in one place.
package module

import (
	"github.com/totalspectrum/propcore/ast"
	"github.com/totalspectrum/propcore/symtab"
	"github.com/totalspectrum/propcore/typesys"
)

// Function is one compiled function/method.
type Function struct {
	Name     string
	IsPublic bool
	Decl     *ast.Node // declaration AST
	Type     *typesys.Type
	Body     *ast.Node // statement list, or nil when the function is
	// really a single bytecode opcode (BytecodeOp set).
	BytecodeOp int

	Params   []*symtab.Symbol
	Defaults []*ast.Node
	Locals   []*symtab.Symbol
	Results  []*symtab.Symbol
	NResults int

	LocalScope *symtab.Table
	Module     *Module
	Language   string // front-end language tag, carried for diagnostics

	// Attribute bundle.
	IsStatic          bool
	IsRecursive       bool
	ForceStatic       bool
	CogCode           bool
	UsedAsPtr         bool
	LocalAddressTaken bool
	IsInlineCandidate bool
	IsLeaf            bool
	IsMethod          bool

	// CallSites drives inlining and dead-code elimination; MethodPtrUses
	// exempts a function from DCE regardless of CallSites.
	CallSites     int
	MethodPtrUses int

	// Visited is the worklist flag; BackendData is the per-back-end
	// scratch pointer; Closure is the synthesized closure environment
	// module, when one exists.
	Visited     bool
	BackendData interface{}
	Closure     *Module
}

// Removable reports whether dead-code elimination may drop this
// function.
func (f *Function) Removable() bool {
	return f.CallSites == 0 && f.MethodPtrUses == 0 && !f.UsedAsPtr
}

// Module is one compiled surface file or synthetic container:
// anonymous structs, closure environments, and debug stubs all reuse the
// same shape.
type Module struct {
	Name     string
	Source   string // source text metadata (path of the defining file)
	Language string

	// Declaration blocks, kept as AST until the relevant phase lowers
	// them.
	ConBlock *ast.Node
	DatBlock *ast.Node
	VarBlock *ast.Node
	ObjBlock *ast.Node

	Scope     *symtab.Table
	Functions []*Function
	Fields    []*symtab.Symbol

	Parent     *Module // enclosing module for nested classes/structs
	Super      *Module
	Subclasses []*Module
	Interfaces []*Module

	// IsTop marks the distinguished top-level module; clock and baud
	// constants resolve in its symbol table.
	IsTop bool

	// Visit is the phase bitmask: each phase sets its bit so a
	// recursive walk does not revisit the same module.
	Visit VisitFlag

	layoutDone bool
	size       int
}

func New(name string, parent *symtab.Table) *Module {
	caseSensitive := true
	if parent != nil {
		caseSensitive = parent.CaseSensitive
	}
	return &Module{Name: name, Scope: symtab.NewTable(parent, caseSensitive, name)}
}

// NewNested creates a synthetic nested container (anonymous struct,
// closure environment) scoped under its parent module.
func NewNested(name string, parent *Module) *Module {
	m := New(name, parent.Scope)
	m.Parent = parent
	return m
}

// VarSize implements typesys.Module: total instance storage size.
// Finalises member layout first if it is still pending.
func (m *Module) VarSize() int {
	if !m.layoutDone {
		m.ComputeLayout(defaultSizeOf, defaultAlignOf)
	}
	return m.size
}

func defaultSizeOf(sym *symtab.Symbol) int {
	if t, ok := sym.Payload.(*typesys.Type); ok {
		return typesys.Size(t)
	}
	return typesys.LongSize
}

func defaultAlignOf(sym *symtab.Symbol) int {
	if t, ok := sym.Payload.(*typesys.Type); ok {
		return typesys.Alignment(t)
	}
	return typesys.LongSize
}

// IsSubclassOf implements typesys.Module by walking the Super chain.
func (m *Module) IsSubclassOf(other typesys.Module) bool {
	for s := m.Super; s != nil; s = s.Super {
		if same(s, other) {
			return true
		}
	}
	return false
}

// ImplementsInterface implements typesys.Module by scanning the claimed
// Interfaces list (and the superclass chain's, since an interface
// implemented by a base class is implemented by every subclass).
func (m *Module) ImplementsInterface(other typesys.Module) bool {
	for _, iface := range m.Interfaces {
		if same(iface, other) {
			return true
		}
	}
	if m.Super != nil {
		return m.Super.ImplementsInterface(other)
	}
	return false
}

// ModuleName returns the module's name; typecheck's skeleton naming
// reaches it through a narrow interface assertion rather than a direct
// import, keeping the dependency arrow pointing one way.
func (m *Module) ModuleName() string { return m.Name }

func same(m *Module, other typesys.Module) bool {
	o, ok := other.(*Module)
	return ok && o == m
}

// SetSuper links a superclass and registers m on its subclass chain.
func (m *Module) SetSuper(super *Module) {
	m.Super = super
	if super != nil {
		super.Subclasses = append(super.Subclasses, m)
	}
}

// ComputeLayout assigns each field an offset in declaration order and
// finalises the module's var-size, rounding each field to its own
// alignment and the total up to a long boundary:
// varsize = round_up(sum_of_member_sizes_with_alignment, 4).
func (m *Module) ComputeLayout(sizeOf func(*symtab.Symbol) int, alignOf func(*symtab.Symbol) int) {
	off := 0
	for _, f := range m.Fields {
		if f.Flags&symtab.FlagNoAlloc != 0 {
			continue
		}
		a := alignOf(f)
		if a > 1 {
			if rem := off % a; rem != 0 {
				off += a - rem
			}
		}
		f.Offset = off
		off += sizeOf(f)
	}
	if rem := off % 4; rem != 0 {
		off += 4 - rem
	}
	m.size = off
	m.layoutDone = true
}

// LayoutPending reports whether member layout has not yet been
// finalised.
func (m *Module) LayoutPending() bool { return !m.layoutDone }

// AddFunction appends fn to the module's function list and back-links it.
func (m *Module) AddFunction(fn *Function) {
	fn.Module = m
	m.Functions = append(m.Functions, fn)
}

// Lookup finds a function by name declared directly on this module (not
// inherited; callers wanting inherited lookup walk Super themselves, so
// method resolution order stays explicit at the call site).
func (m *Module) Lookup(name string) *Function {
	for _, fn := range m.Functions {
		if fn.Name == name {
			return fn
		}
	}
	return nil
}

// SubObjects returns the modules instantiated by this module's OBJ
// block, for the visitor's recursive walk. Synthetic nested containers
// are not included.
func (m *Module) SubObjects() []*Module {
	var subs []*Module
	if m.ObjBlock != nil {
		for _, o := range ast.ListElements(m.ObjBlock) {
			if o == nil {
				continue
			}
			if sub, ok := o.Data.(*Module); ok {
				subs = append(subs, sub)
			}
		}
	}
	return subs
}

// RemoveUnusedFunctions drops every function Removable() reports safe,
// returning the number removed (REMOVE_UNUSED_FUNCS).
func (m *Module) RemoveUnusedFunctions() int {
	kept := m.Functions[:0]
	removed := 0
	for _, fn := range m.Functions {
		if fn.Removable() {
			removed++
			continue
		}
		kept = append(kept, fn)
	}
	m.Functions = kept
	return removed
}
