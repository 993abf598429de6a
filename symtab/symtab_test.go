package symtab

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddAndLookupInScope(t *testing.T) {
	tab := NewTable(nil, true, "global")
	sym, err := tab.Add("x", KindVariable, nil, "x")
	require.NoError(t, err)
	assert.Equal(t, sym, tab.LookupInScope("x"))
	assert.Nil(t, tab.LookupInScope("y"))
}

func TestAddDuplicateFails(t *testing.T) {
	tab := NewTable(nil, true, "global")
	_, err := tab.Add("x", KindVariable, nil, "x")
	require.NoError(t, err)
	_, err = tab.Add("x", KindVariable, nil, "x")
	require.Error(t, err)
	var dup *DuplicateError
	assert.ErrorAs(t, err, &dup)
}

func TestCaseInsensitiveLookup(t *testing.T) {
	tab := NewTable(nil, false, "spin-module")
	_, err := tab.Add("MyVar", KindVariable, nil, "MyVar")
	require.NoError(t, err)
	assert.NotNil(t, tab.LookupInScope("myvar"))
	assert.NotNil(t, tab.LookupInScope("MYVAR"))
}

func TestCaseSensitiveLookup(t *testing.T) {
	tab := NewTable(nil, true, "c-module")
	_, err := tab.Add("MyVar", KindVariable, nil, "MyVar")
	require.NoError(t, err)
	assert.Nil(t, tab.LookupInScope("myvar"))
}

func TestLookupWalksParentChain(t *testing.T) {
	global := NewTable(nil, true, "global")
	_, err := global.Add("g", KindVariable, nil, "g")
	require.NoError(t, err)

	local := NewTable(global, true, "func")
	_, err = local.Add("l", KindLocalVariable, nil, "l")
	require.NoError(t, err)

	assert.NotNil(t, local.Lookup("g"))
	assert.NotNil(t, local.Lookup("l"))
	assert.Nil(t, global.Lookup("l"), "parent must not see child's locals")
}

func TestWeakAliasIsOverridable(t *testing.T) {
	tab := NewTable(nil, true, "global")
	_, err := tab.DeclareAlias("shortName", true, "longInternalName", nil)
	require.NoError(t, err)
	// Re-declaring over a weak alias must NOT be a duplicate error.
	_, err = tab.Add("shortName", KindVariable, nil, "shortName")
	assert.NoError(t, err)
}

func TestWeakAliasFollowedTransparently(t *testing.T) {
	tab := NewTable(nil, true, "global")
	target, err := tab.Add("REAL", KindVariable, 42, "REAL")
	require.NoError(t, err)
	_, err = tab.DeclareAlias("ALIAS", true, "REAL", nil)
	require.NoError(t, err)

	resolved := tab.Lookup("ALIAS")
	require.NotNil(t, resolved)
	assert.Same(t, target, resolved)
}

func TestAliasToExpression(t *testing.T) {
	tab := NewTable(nil, true, "global")
	expr := "someField.offset"
	sym, err := tab.DeclareAlias("unified", false, expr, nil)
	require.NoError(t, err)
	assert.Equal(t, KindAlias, sym.Kind)
	assert.Equal(t, expr, sym.AliasExpr)
}
