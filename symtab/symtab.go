// Package symtab implements the scoped symbol tables. Tables form a
// linked chain (local -> class/module -> enclosing -> global) of
// arbitrary depth, so nested class and struct scopes are just more links
// in the chain.
package symtab

import "fmt"

// Kind enumerates what a Symbol names.
type Kind int

const (
	KindInvalid Kind = iota
	KindConstant
	KindFloatConstant
	KindVariable
	KindLocalVariable
	KindTempVariable
	KindParameter
	KindResult
	KindLabel
	KindFunction
	KindTypedef
	KindAlias     // maps a name to an arbitrary expression
	KindWeakAlias // maps a name to another name; overridable
	KindHWRegister
	KindReserved
	KindClosure
	KindRedef
)

// Flag is a bitmask of symbol attributes.
type Flag uint8

const (
	FlagPrivate Flag = 1 << iota
	FlagInternal
	FlagGlobal
	FlagNoAlloc
)

// Symbol is one entry in a Table.
type Symbol struct {
	InternalName string // name used for codegen/mangling
	UserName     string // name as written by the programmer
	Kind         Kind
	Payload      interface{} // kind-dependent: *ast.Node, offset info, etc.
	Offset       int         // for variables/parameters
	Flags        Flag

	// Def is the defining AST, kept for diagnostics.
	Def interface{}

	// AliasName/AliasExpr are set for KindAlias/KindWeakAlias: the name (weak
	// alias) or expression payload (alias) being pointed to.
	AliasName string
	AliasExpr interface{}
	CastType  interface{} // optional cast type for a typed alias
}

// DuplicateError is returned by Add when name is already bound to a symbol
// that is not a weak alias (weak aliases are always overridable).
type DuplicateError struct {
	Name     string
	Previous *Symbol
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("redefinition of %q", e.Name)
}

// Table is one scope. Scopes chain via Parent: local -> class/module ->
// enclosing -> global.
type Table struct {
	Parent         *Table
	CaseSensitive  bool
	Name           string // diagnostic label (e.g. module/class name)
	symbols        map[string]*Symbol
	order          []string // insertion order, for deterministic iteration
}

// NewTable creates an empty table chained to parent (nil for the
// outermost/global table).
func NewTable(parent *Table, caseSensitive bool, name string) *Table {
	return &Table{
		Parent:        parent,
		CaseSensitive: caseSensitive,
		Name:          name,
		symbols:       make(map[string]*Symbol),
	}
}

func (t *Table) key(name string) string {
	if t.CaseSensitive {
		return name
	}
	return foldCase(name)
}

// foldCase implements the case-folding used by case-insensitive tables
// (Spin1/Spin2): ASCII upper-to-lower, good enough for the
// identifier character set these front ends accept.
func foldCase(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c - 'A' + 'a'
		}
	}
	return string(b)
}

// Add binds name to a new symbol in t. It fails with *DuplicateError if
// name is already bound in t to something other than a weak alias; a weak
// alias binding is silently replaced.
func (t *Table) Add(name string, kind Kind, payload interface{}, userName string) (*Symbol, error) {
	return t.AddPlaced(name, kind, payload, userName, nil)
}

// AddPlaced is Add plus recording the defining AST for later diagnostics.
func (t *Table) AddPlaced(name string, kind Kind, payload interface{}, userName string, def interface{}) (*Symbol, error) {
	k := t.key(name)
	if existing, ok := t.symbols[k]; ok && existing.Kind != KindWeakAlias {
		return nil, &DuplicateError{Name: name, Previous: existing}
	}
	if _, ok := t.symbols[k]; !ok {
		t.order = append(t.order, k)
	}
	sym := &Symbol{
		InternalName: name,
		UserName:     userName,
		Kind:         kind,
		Payload:      payload,
		Def:          def,
	}
	t.symbols[k] = sym
	return sym, nil
}

// DeclareAlias inserts an alias binding. If oldIsName is true, it's a weak
// alias (newName -> oldNameOrExpr, a name, overridable); otherwise it's an
// alias-to-expression (newName -> an arbitrary expression, e.g. the
// anonymous-struct unified-path trick), optionally carrying a cast
// type.
func (t *Table) DeclareAlias(newName string, oldIsName bool, oldNameOrExpr interface{}, castType interface{}) (*Symbol, error) {
	kind := KindAlias
	if oldIsName {
		kind = KindWeakAlias
	}
	k := t.key(newName)
	if existing, ok := t.symbols[k]; ok && existing.Kind != KindWeakAlias {
		return nil, &DuplicateError{Name: newName, Previous: existing}
	}
	if _, ok := t.symbols[k]; !ok {
		t.order = append(t.order, k)
	}
	sym := &Symbol{InternalName: newName, UserName: newName, Kind: kind, CastType: castType}
	if oldIsName {
		sym.AliasName = oldNameOrExpr.(string)
	} else {
		sym.AliasExpr = oldNameOrExpr
	}
	t.symbols[k] = sym
	return sym, nil
}

// LookupInScope looks up name in t only, not walking Parent. Aliases are
// NOT followed here — use Lookup for alias-transparent resolution.
func (t *Table) LookupInScope(name string) *Symbol {
	return t.symbols[t.key(name)]
}

// Lookup walks the scope chain starting at t, following weak aliases
// transparently. Returns
// nil if name is bound nowhere in the chain.
func (t *Table) Lookup(name string) *Symbol {
	for table := t; table != nil; table = table.Parent {
		if sym := table.LookupInScope(name); sym != nil {
			if sym.Kind == KindWeakAlias {
				if resolved := table.Lookup(sym.AliasName); resolved != nil {
					return resolved
				}
				// Weak alias with an unresolved target: surface the
				// alias symbol itself rather than silently vanishing.
				return sym
			}
			return sym
		}
	}
	return nil
}

// Iterate calls fn for every symbol directly defined in t (not Parent), in
// insertion order.
func (t *Table) Iterate(fn func(name string, sym *Symbol)) {
	for _, k := range t.order {
		if sym, ok := t.symbols[k]; ok {
			fn(k, sym)
		}
	}
}

// Depth returns the number of scopes from t to the outermost table,
// inclusive of t.
func (t *Table) Depth() int {
	d := 0
	for table := t; table != nil; table = table.Parent {
		d++
	}
	return d
}
