package ast

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestListAppendAndLen(t *testing.T) {
	var list *Node
	for i := 0; i < 3; i++ {
		list = ListAppend(list, KindExprList, New(KindInteger, nil, nil))
	}
	assert.Equal(t, 3, ListLen(list))
	elems := ListElements(list)
	assert.Len(t, elems, 3)
}

func TestListRemove(t *testing.T) {
	a := New(KindInteger, nil, nil)
	b := New(KindInteger, nil, nil)
	c := New(KindInteger, nil, nil)
	var list *Node
	list = ListAppend(list, KindExprList, a)
	list = ListAppend(list, KindExprList, b)
	list = ListAppend(list, KindExprList, c)

	list = ListRemove(list, b)
	elems := ListElements(list)
	assert.Equal(t, []*Node{a, c}, elems)
}

func TestStringPtrByteLen(t *testing.T) {
	var list *Node
	list = ListAppend(list, KindExprList, &Node{Kind: KindString, SVal: "abc"})
	list = ListAppend(list, KindExprList, &Node{Kind: KindInteger, IVal: 42})
	assert.Equal(t, 4, StringPtrByteLen(list))
}

func TestDeepCopyIsIndependentTree(t *testing.T) {
	leaf := &Node{Kind: KindIdentifier, SVal: "x"}
	orig := New(KindAssign, leaf, New(KindInteger, nil, nil))
	cp := DeepCopy(orig)

	assert.True(t, MatchStructural(orig, cp))
	assert.NotSame(t, orig, cp)
	assert.NotSame(t, orig.Left, cp.Left)

	cp.Left.SVal = "y"
	assert.Equal(t, "x", orig.Left.SVal, "deep copy must not alias the original subtree")
}

func TestDeepCopyWithSubstitute(t *testing.T) {
	param := &Node{Kind: KindIdentifier, SVal: "n"}
	body := New(KindOperator, param, &Node{Kind: KindInteger, IVal: 1})
	arg := &Node{Kind: KindInteger, IVal: 7}

	inlined := DeepCopyWithSubstitute(body, param, arg)
	assert.Equal(t, KindInteger, inlined.Left.Kind)
	assert.EqualValues(t, 7, inlined.Left.IVal)
}

func TestMatchStructuralDiffersOnPayload(t *testing.T) {
	a := &Node{Kind: KindInteger, IVal: 1}
	b := &Node{Kind: KindInteger, IVal: 2}
	assert.False(t, MatchStructural(a, b))
	assert.True(t, MatchStructural(a, &Node{Kind: KindInteger, IVal: 1}))
}

func TestMatchBodyIgnoresLocalRenaming(t *testing.T) {
	// `x + 1` vs `y + 1`: structurally different identifiers, but the
	// same body up to renaming the single local.
	a := New(KindOperator, &Node{Kind: KindIdentifier, SVal: "x"}, &Node{Kind: KindInteger, IVal: 1})
	b := New(KindOperator, &Node{Kind: KindIdentifier, SVal: "y"}, &Node{Kind: KindInteger, IVal: 1})
	assert.False(t, MatchStructural(a, b))
	assert.True(t, MatchBody(a, b))
}

func TestMatchBodyRejectsInconsistentRenaming(t *testing.T) {
	// `x + x` vs `y + z`: x would have to map to both y and z.
	a := New(KindOperator, &Node{Kind: KindIdentifier, SVal: "x"}, &Node{Kind: KindIdentifier, SVal: "x"})
	b := New(KindOperator, &Node{Kind: KindIdentifier, SVal: "y"}, &Node{Kind: KindIdentifier, SVal: "z"})
	assert.False(t, MatchBody(a, b))
}

func TestContains(t *testing.T) {
	inner := &Node{Kind: KindInteger, IVal: 5}
	outer := New(KindOperator, inner, &Node{Kind: KindInteger, IVal: 1})
	assert.True(t, Contains(outer, inner))
	assert.True(t, Contains(outer, outer))
	assert.False(t, Contains(outer, &Node{Kind: KindInteger, IVal: 5}))
}

func TestModifiesIdentifier(t *testing.T) {
	target := &Node{Kind: KindIdentifier, SVal: "i"}
	assign := New(KindAssign, target, &Node{Kind: KindInteger, IVal: 0})
	assert.True(t, ModifiesIdentifier(assign, "i"))
	assert.False(t, ModifiesIdentifier(assign, "j"))
}

func TestReportAsAssignsLocation(t *testing.T) {
	done := ReportAs(SourceLoc{File: "synth.spin", Line: 42})
	n := New(KindInteger, nil, nil)
	done()
	assert.Equal(t, SourceLoc{File: "synth.spin", Line: 42}, n.Loc)

	n2 := New(KindInteger, nil, nil)
	assert.Equal(t, SourceLoc{}, n2.Loc, "location must not leak past ReportDone")
}

func TestNullify(t *testing.T) {
	n := New(KindAssign, &Node{Kind: KindIdentifier, SVal: "x"}, &Node{Kind: KindInteger, IVal: 1})
	Nullify(n)
	assert.Equal(t, KindExprStmt, n.Kind)
	assert.Nil(t, n.Left)
	assert.Nil(t, n.Right)
}

func TestReplace(t *testing.T) {
	oldNode := &Node{Kind: KindInteger, IVal: 1}
	newNode := &Node{Kind: KindInteger, IVal: 2}
	body := New(KindOperator, oldNode, &Node{Kind: KindInteger, IVal: 9})
	Replace(body, oldNode, newNode)
	assert.Same(t, newNode, body.Left)
}
