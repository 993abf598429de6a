package module

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/totalspectrum/propcore/ast"
	"github.com/totalspectrum/propcore/symtab"
)

func TestComputeLayoutAssignsOffsetsWithAlignment(t *testing.T) {
	m := New("widget", nil)
	b := &symtab.Symbol{UserName: "b"}
	l := &symtab.Symbol{UserName: "l"}
	m.Fields = []*symtab.Symbol{b, l}
	sizeOf := map[*symtab.Symbol]int{b: 1, l: 4}
	alignOf := map[*symtab.Symbol]int{b: 1, l: 4}
	m.ComputeLayout(func(s *symtab.Symbol) int { return sizeOf[s] }, func(s *symtab.Symbol) int { return alignOf[s] })
	assert.Equal(t, 0, b.Offset)
	assert.Equal(t, 4, l.Offset)
	assert.Equal(t, 8, m.VarSize())
}

func TestVarSizeRoundsUpToLong(t *testing.T) {
	m := New("widget", nil)
	b := &symtab.Symbol{UserName: "b"}
	m.Fields = []*symtab.Symbol{b}
	m.ComputeLayout(func(*symtab.Symbol) int { return 1 }, func(*symtab.Symbol) int { return 1 })
	assert.Equal(t, 4, m.VarSize())
}

func TestVarSizeFinalizesPendingLayout(t *testing.T) {
	m := New("widget", nil)
	require.True(t, m.LayoutPending())
	_ = m.VarSize()
	assert.False(t, m.LayoutPending())
}

func TestIsSubclassOfWalksChain(t *testing.T) {
	base := New("base", nil)
	mid := New("mid", nil)
	mid.SetSuper(base)
	leaf := New("leaf", nil)
	leaf.SetSuper(mid)
	assert.True(t, leaf.IsSubclassOf(base))
	assert.False(t, base.IsSubclassOf(leaf))
	assert.Contains(t, base.Subclasses, mid)
}

func TestImplementsInterfaceInheritsFromSuper(t *testing.T) {
	iface := New("Readable", nil)
	base := New("base", nil)
	base.Interfaces = []*Module{iface}
	leaf := New("leaf", nil)
	leaf.SetSuper(base)
	assert.True(t, leaf.ImplementsInterface(iface))
}

func TestLookupFindsDeclaredFunction(t *testing.T) {
	m := New("widget", nil)
	fn := &Function{Name: "start"}
	m.AddFunction(fn)
	require.NotNil(t, m.Lookup("start"))
	assert.Same(t, m, fn.Module)
	assert.Nil(t, m.Lookup("missing"))
}

func TestRemovableRespectsMethodPointerUses(t *testing.T) {
	fn := &Function{Name: "isr", CallSites: 0, MethodPtrUses: 1}
	assert.False(t, fn.Removable())
	fn.MethodPtrUses = 0
	assert.True(t, fn.Removable())
	fn.CallSites = 2
	assert.False(t, fn.Removable())
}

func TestRemoveUnusedFunctionsKeepsPointerTargets(t *testing.T) {
	m := New("widget", nil)
	m.AddFunction(&Function{Name: "dead"})
	m.AddFunction(&Function{Name: "viaptr", MethodPtrUses: 1})
	m.AddFunction(&Function{Name: "called", CallSites: 1})
	removed := m.RemoveUnusedFunctions()
	assert.Equal(t, 1, removed)
	assert.Nil(t, m.Lookup("dead"))
	require.NotNil(t, m.Lookup("viaptr"))
	require.NotNil(t, m.Lookup("called"))
}

func TestVisitRecursiveFiresOncePerPhase(t *testing.T) {
	top := New("top", nil)
	sub := New("sub", nil)
	top.ObjBlock = ast.ListAppend(nil, ast.KindListHolder, &ast.Node{Kind: ast.KindObject, Data: sub})

	var visits []string
	walk := func(m *Module) { visits = append(visits, m.Name) }
	VisitRecursive(top, VisitInit, walk)
	assert.Equal(t, []string{"top", "sub"}, visits)

	// Same phase again: no revisit.
	VisitRecursive(top, VisitInit, walk)
	assert.Len(t, visits, 2)

	// A different phase fires fresh.
	VisitRecursive(top, VisitEmitDat, walk)
	assert.Len(t, visits, 4)
}

func TestVisitRecursiveRestoresCurrentModule(t *testing.T) {
	outer := New("outer", nil)
	Cur.Module = outer
	m := New("inner", nil)
	VisitRecursive(m, VisitFuncNames, func(mod *Module) {
		assert.Same(t, mod, Cur.Module)
		assert.Nil(t, Cur.Function)
	})
	assert.Same(t, outer, Cur.Module)
	Cur = Current{}
}

func TestWithFunctionNesting(t *testing.T) {
	m := New("widget", nil)
	fn := &Function{Name: "start"}
	m.AddFunction(fn)
	WithFunction(fn, func() {
		assert.Same(t, fn, Cur.Function)
		assert.Same(t, m, Cur.Module)
	})
	assert.Nil(t, Cur.Function)
}

func TestVisitAllFunctionsSetsCurrent(t *testing.T) {
	m := New("widget", nil)
	m.AddFunction(&Function{Name: "a"})
	m.AddFunction(&Function{Name: "b"})
	var names []string
	VisitAllFunctions(m, VisitCompileFuncs, func(f *Function) {
		names = append(names, f.Name)
		assert.Same(t, f, Cur.Function)
	})
	assert.Equal(t, []string{"a", "b"}, names)
}
