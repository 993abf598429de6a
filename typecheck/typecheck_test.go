package typecheck

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/totalspectrum/propcore/ast"
	"github.com/totalspectrum/propcore/symtab"
	"github.com/totalspectrum/propcore/typesys"
)

func newChecker(t *testing.T) (*Checker, *symtab.Table) {
	t.Helper()
	scope := symtab.NewTable(nil, true, "global")
	return NewChecker(Options{}, nil, scope), scope
}

func TestIntegerLiteralIsLong(t *testing.T) {
	c, _ := newChecker(t)
	n := &ast.Node{Kind: ast.KindInteger, IVal: 5}
	got := c.CheckExpr(n)
	assert.Equal(t, typesys.KindInt, got.Kind)
	assert.Equal(t, typesys.LongSize, got.IntSize)
}

func TestIdentifierLooksUpDeclaredType(t *testing.T) {
	c, scope := newChecker(t)
	scope.Add("x", symtab.KindVariable, typesys.NewInt(4), "x")
	n := &ast.Node{Kind: ast.KindIdentifier, SVal: "x"}
	got := c.CheckExpr(n)
	require.NotNil(t, got)
	assert.Equal(t, typesys.KindInt, got.Kind)
}

func TestUndefinedIdentifierReportsSymbolError(t *testing.T) {
	c, _ := newChecker(t)
	got := c.CheckExpr(&ast.Node{Kind: ast.KindIdentifier, SVal: "missing"})
	assert.Nil(t, got)
}

func mulByLit(x *ast.Node, v uint64) *ast.Node {
	return &ast.Node{Kind: ast.KindOperator, IVal: uint64(ast.OpMul), Left: x, Right: &ast.Node{Kind: ast.KindInteger, IVal: v}}
}

func TestMulByPowerOfTwoBecomesShift(t *testing.T) {
	c, scope := newChecker(t)
	scope.Add("x", symtab.KindVariable, typesys.NewInt(4), "x")
	n := mulByLit(&ast.Node{Kind: ast.KindIdentifier, SVal: "x"}, 8)
	c.CheckExpr(n)
	assert.Equal(t, ast.OpShl, ast.OpKind(n.IVal))
	assert.EqualValues(t, 3, n.Right.IVal)
}

func TestDivByPowerOfTwoBecomesShiftForUnsigned(t *testing.T) {
	c, scope := newChecker(t)
	scope.Add("x", symtab.KindVariable, typesys.NewUInt(4), "x")
	n := &ast.Node{Kind: ast.KindOperator, IVal: uint64(ast.OpDivU),
		Left:  &ast.Node{Kind: ast.KindIdentifier, SVal: "x"},
		Right: &ast.Node{Kind: ast.KindInteger, IVal: 4},
	}
	c.CheckExpr(n)
	assert.Equal(t, ast.OpShr, ast.OpKind(n.IVal))
	assert.EqualValues(t, 2, n.Right.IVal)
}

func TestPointerPlusIntScalesByElementSize(t *testing.T) {
	c, scope := newChecker(t)
	scope.Add("p", symtab.KindVariable, typesys.NewPointer(typesys.NewInt(4)), "p")
	n := &ast.Node{Kind: ast.KindOperator, IVal: uint64(ast.OpAdd),
		Left:  &ast.Node{Kind: ast.KindIdentifier, SVal: "p"},
		Right: &ast.Node{Kind: ast.KindInteger, IVal: 3},
	}
	got := c.CheckExpr(n)
	require.NotNil(t, got)
	assert.Equal(t, typesys.KindPointer, got.Kind)
	require.Equal(t, ast.KindOperator, n.Right.Kind)
	assert.Equal(t, ast.OpMul, ast.OpKind(n.Right.IVal))
	assert.EqualValues(t, 4, n.Right.Right.IVal)
}

func TestFloatArithmeticLowersToHelperCall(t *testing.T) {
	c, scope := newChecker(t)
	scope.Add("a", symtab.KindVariable, typesys.NewFloat(4), "a")
	scope.Add("b", symtab.KindVariable, typesys.NewFloat(4), "b")
	n := &ast.Node{Kind: ast.KindOperator, IVal: uint64(ast.OpAdd),
		Left:  &ast.Node{Kind: ast.KindIdentifier, SVal: "a"},
		Right: &ast.Node{Kind: ast.KindIdentifier, SVal: "b"},
	}
	c.CheckExpr(n)
	assert.Equal(t, ast.KindFuncCall, n.Kind)
	assert.Equal(t, "_float_add", n.Left.SVal)
}

func TestFixedRealModeAvoidsHelperCall(t *testing.T) {
	scope := symtab.NewTable(nil, true, "global")
	c := NewChecker(Options{FixedReal: true}, nil, scope)
	scope.Add("a", symtab.KindVariable, typesys.NewFloat(4), "a")
	scope.Add("b", symtab.KindVariable, typesys.NewFloat(4), "b")
	n := &ast.Node{Kind: ast.KindOperator, IVal: uint64(ast.OpMul),
		Left:  &ast.Node{Kind: ast.KindIdentifier, SVal: "a"},
		Right: &ast.Node{Kind: ast.KindIdentifier, SVal: "b"},
	}
	c.CheckExpr(n)
	assert.NotEqual(t, ast.KindFuncCall, n.Kind, "fixed-real mode must not call a helper")
	assert.Equal(t, ast.OpSar, ast.OpKind(n.IVal))
}

func TestNeZeroFlattensInCondition(t *testing.T) {
	c, scope := newChecker(t)
	scope.Add("x", symtab.KindVariable, typesys.NewInt(4), "x")
	cond := &ast.Node{Kind: ast.KindOperator, IVal: uint64(ast.OpNe),
		Left:  &ast.Node{Kind: ast.KindIdentifier, SVal: "x"},
		Right: &ast.Node{Kind: ast.KindInteger, IVal: 0},
	}
	stmt := &ast.Node{Kind: ast.KindIf, Left: cond,
		Right: &ast.Node{Kind: ast.KindStmtList}}
	c.CheckStmt(stmt)
	assert.Equal(t, ast.KindIdentifier, cond.Kind)
	assert.Equal(t, "x", cond.SVal)
}

func TestNeZeroKeptOutsideCondition(t *testing.T) {
	c, scope := newChecker(t)
	scope.Add("x", symtab.KindVariable, typesys.NewInt(4), "x")
	scope.Add("y", symtab.KindVariable, typesys.NewInt(4), "y")
	// y := (x != 0) stores the comparison's 0/1 result; flattening it
	// to y := x would be wrong for any x outside {0, 1}.
	n := &ast.Node{Kind: ast.KindAssign,
		Left: &ast.Node{Kind: ast.KindIdentifier, SVal: "y"},
		Right: &ast.Node{Kind: ast.KindOperator, IVal: uint64(ast.OpNe),
			Left:  &ast.Node{Kind: ast.KindIdentifier, SVal: "x"},
			Right: &ast.Node{Kind: ast.KindInteger, IVal: 0},
		},
	}
	c.CheckExpr(n)
	require.Equal(t, ast.KindOperator, n.Right.Kind)
	assert.Equal(t, ast.OpNe, ast.OpKind(n.Right.IVal))
}

func TestNeZeroFlattensThroughLogicalAnd(t *testing.T) {
	c, scope := newChecker(t)
	scope.Add("x", symtab.KindVariable, typesys.NewInt(4), "x")
	scope.Add("b", symtab.KindVariable, typesys.NewInt(4), "b")
	neZero := &ast.Node{Kind: ast.KindOperator, IVal: uint64(ast.OpNe),
		Left:  &ast.Node{Kind: ast.KindIdentifier, SVal: "x"},
		Right: &ast.Node{Kind: ast.KindInteger, IVal: 0},
	}
	cond := &ast.Node{Kind: ast.KindOperator, IVal: uint64(ast.OpLogAnd),
		Left:  neZero,
		Right: &ast.Node{Kind: ast.KindIdentifier, SVal: "b"},
	}
	stmt := &ast.Node{Kind: ast.KindWhile, Left: cond,
		Right: &ast.Node{Kind: ast.KindStmtList}}
	c.CheckStmt(stmt)
	assert.Equal(t, ast.KindIdentifier, cond.Left.Kind)
	assert.Equal(t, "x", cond.Left.SVal)
}

func TestCopyReferenceAssignmentBoxesToGCAlloc(t *testing.T) {
	c, scope := newChecker(t)
	bigStruct := typesys.NewArray(typesys.NewInt(4), 10)
	scope.Add("big", symtab.KindVariable, bigStruct, "big")
	target := typesys.NewCopyReference(bigStruct)
	valueNode := &ast.Node{Kind: ast.KindIdentifier, SVal: "big"}
	c.CheckExpr(valueNode)
	valueT := c.TypeOf(valueNode)
	coerceAssign(c, valueNode, valueT, target)
	assert.Equal(t, ast.KindCatch, valueNode.Kind)
}
