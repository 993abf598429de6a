package typecheck

import (
	"github.com/totalspectrum/propcore/ast"
	"github.com/totalspectrum/propcore/compiler"
	"github.com/totalspectrum/propcore/typesys"
)

// int64Helpers names the runtime helpers that 64-bit and float arithmetic
// lower to when the target cannot do the operation natively.
var int64Helpers = map[ast.OpKind]string{
	ast.OpAdd:  "_int64_add",
	ast.OpSub:  "_int64_sub",
	ast.OpMul:  "_int64_muls",
	ast.OpDivS: "_int64_divs",
	ast.OpDivU: "_int64_divu",
	ast.OpModS: "_int64_rems",
	ast.OpModU: "_int64_remu",
}

var floatHelpers = map[ast.OpKind]string{
	ast.OpAdd:  "_float_add",
	ast.OpSub:  "_float_sub",
	ast.OpMul:  "_float_mul",
	ast.OpDivS: "_float_div",
}

// checkOperator implements the binary/unary operator contract:
// promotion to a common width ("any float wins; else widen to 32 bits;
// else widen to 64 bits if either side is 64-bit"), signed-dominant mixed
// sign handling, SAR-vs-SHR selection, pointer arithmetic scaling, 64-bit
// and float lowering to helper calls (or fixed-point ops in FixedReal
// mode), and the constant-folding / strength-reduction peephole rewrites.
func (c *Checker) checkOperator(n *ast.Node, boolCtx bool) *typesys.Type {
	op := ast.OpKind(n.IVal)
	if isUnaryOp(op) {
		var operandT *typesys.Type
		if op == ast.OpNot {
			// Logical not always tests its operand for truthiness, so
			// the operand is a boolean context regardless of where the
			// result goes.
			operandT = c.CheckCond(n.Left)
		} else {
			operandT = c.CheckExpr(n.Left)
		}
		return c.setType(n, c.checkUnary(n, op, operandT))
	}

	var leftT, rightT *typesys.Type
	if boolCtx && (op == ast.OpLogAnd || op == ast.OpLogOr) {
		// && and || distribute the boolean context to both operands.
		leftT = c.CheckCond(n.Left)
		rightT = c.CheckCond(n.Right)
	} else {
		leftT = c.CheckExpr(n.Left)
		rightT = c.CheckExpr(n.Right)
	}
	if leftT == nil || rightT == nil {
		return nil
	}

	if t := c.checkPointerArith(n, op, leftT, rightT); t != nil {
		return c.setType(n, t)
	}

	common := promote(leftT, rightT)

	switch {
	case common.Kind == typesys.KindFloat && typesys.Size(common) == 8:
		return c.setType(n, c.lowerFloatOrHelper(n, op, common, true))
	case common.Kind == typesys.KindFloat:
		if c.Opts.FixedReal {
			return c.setType(n, c.lowerFixedReal(n, op, common))
		}
		return c.setType(n, c.lowerFloatOrHelper(n, op, common, false))
	case typesys.Size(common) == 8:
		return c.setType(n, c.lowerInt64Helper(n, op, common))
	}

	if op == ast.OpShr {
		if common.Kind == typesys.KindInt {
			n.IVal = uint64(ast.OpSar)
		}
	}

	switch op {
	case ast.OpEq, ast.OpNe, ast.OpLt, ast.OpLe, ast.OpGt, ast.OpGe, ast.OpLogAnd, ast.OpLogOr:
		applyOperatorPeephole(n, op, boolCtx)
		return c.setType(n, typesys.NewInt(typesys.LongSize))
	}

	applyOperatorPeephole(n, op, boolCtx)
	return c.setType(n, common)
}

func isUnaryOp(op ast.OpKind) bool {
	switch op {
	case ast.OpBitNot, ast.OpNeg, ast.OpNot:
		return true
	}
	return false
}

func (c *Checker) checkUnary(n *ast.Node, op ast.OpKind, operandT *typesys.Type) *typesys.Type {
	if operandT == nil {
		return nil
	}
	return operandT
}

// checkPointerArith handles the pointer-arithmetic rule: `p + n` scales
// n by sizeof(*p); `p - q` on compatible pointers scales the difference.
// Returns nil (falling through to scalar promotion) if neither operand is
// a pointer.
func (c *Checker) checkPointerArith(n *ast.Node, op ast.OpKind, leftT, rightT *typesys.Type) *typesys.Type {
	leftIsPtr := leftT.Kind == typesys.KindPointer
	rightIsPtr := rightT.Kind == typesys.KindPointer

	if op == ast.OpAdd {
		if leftIsPtr && isIntegral(rightT) {
			scalePointerOffset(n, leftT, true)
			return leftT
		}
		if rightIsPtr && isIntegral(leftT) {
			scalePointerOffset(n, rightT, false)
			return rightT
		}
	}
	if op == ast.OpSub {
		if leftIsPtr && isIntegral(rightT) {
			scalePointerOffset(n, leftT, true)
			return leftT
		}
		if leftIsPtr && rightIsPtr {
			if !typesys.Compatible(leftT, rightT) {
				c.report(compiler.TypeError(n.Loc, "subtracting incompatible pointer types"))
			}
			elemSize := typesys.Size(leftT.Elem)
			if elemSize == 0 {
				elemSize = 1
			}
			// (p - q) / sizeof(*p): wrap the existing subtraction in a
			// division by the element size.
			diff := &ast.Node{Kind: ast.KindOperator, IVal: uint64(ast.OpSub), Left: n.Left, Right: n.Right, Loc: n.Loc}
			*n = *ast.New(ast.KindOperator, diff, &ast.Node{Kind: ast.KindInteger, IVal: uint64(elemSize)})
			n.IVal = uint64(ast.OpDivS)
			return typesys.NewInt(typesys.LongSize)
		}
	}
	return nil
}

// scalePointerOffset multiplies the integer side of a pointer +/- integer
// expression by the pointee size in place.
func scalePointerOffset(n *ast.Node, ptrT *typesys.Type, intIsRight bool) {
	elemSize := typesys.Size(ptrT.Elem)
	if elemSize <= 1 {
		return
	}
	scaleNode := &ast.Node{Kind: ast.KindInteger, IVal: uint64(elemSize)}
	if intIsRight {
		n.Right = ast.New(ast.KindOperator, n.Right, scaleNode)
		n.Right.IVal = uint64(ast.OpMul)
	} else {
		n.Left = ast.New(ast.KindOperator, n.Left, scaleNode)
		n.Left.IVal = uint64(ast.OpMul)
	}
}

// promote implements the common-width rule: "any float wins; else widen
// to 32 bits; else widen to 64 bits if either side is 64-bit." Mixed
// signed/unsigned at the same width is signed-dominant.
func promote(a, b *typesys.Type) *typesys.Type {
	if a.Kind == typesys.KindFloat || b.Kind == typesys.KindFloat {
		size := typesys.LongSize
		if typesys.Size(a) > size {
			size = typesys.Size(a)
		}
		if typesys.Size(b) > size {
			size = typesys.Size(b)
		}
		return typesys.NewFloat(size)
	}
	size := typesys.LongSize
	if typesys.Size(a) > size || typesys.Size(b) > size {
		size = typesys.Long64Size
	}
	signed := a.Kind == typesys.KindInt || b.Kind == typesys.KindInt
	if signed {
		return typesys.NewInt(size)
	}
	return typesys.NewUInt(size)
}

// lowerInt64Helper rewrites a 64-bit binary op into a call to the named
// runtime helper.
func (c *Checker) lowerInt64Helper(n *ast.Node, op ast.OpKind, common *typesys.Type) *typesys.Type {
	name, ok := int64Helpers[op]
	if !ok {
		c.report(compiler.TypeError(n.Loc, "unsupported 64-bit operator"))
		return common
	}
	rewriteToHelperCall(n, name)
	return common
}

// lowerFloatOrHelper rewrites a float binary op into a helper call;
// double-precision always goes through the 64-bit helper set regardless
// of FixedReal mode.
func (c *Checker) lowerFloatOrHelper(n *ast.Node, op ast.OpKind, common *typesys.Type, isDouble bool) *typesys.Type {
	var name string
	var ok bool
	if isDouble {
		name, ok = int64Helpers[op]
	} else {
		name, ok = floatHelpers[op]
	}
	if !ok {
		switch op {
		case ast.OpEq, ast.OpNe, ast.OpLt, ast.OpLe, ast.OpGt, ast.OpGe:
			// Three-way compare helper with an "unordered-result" constant
			// so x<NaN and x>NaN behave consistently: the node becomes
			// `_float_cmp(a, b, u) op 0`, with u = +1 for ==, <>, <, <= and
			// u = -1 for >, >=, so an unordered pair compares false
			// (true for <>).
			unordered := &ast.Node{Kind: ast.KindInteger, IVal: 1}
			if op == ast.OpGt || op == ast.OpGe {
				unordered.IVal = ^uint64(0)
			}
			args := ast.ListAppend(ast.ListAppend(ast.ListAppend(nil, ast.KindExprList, n.Left), ast.KindExprList, n.Right), ast.KindExprList, unordered)
			n.Left = ast.New(ast.KindFuncCall, &ast.Node{Kind: ast.KindIdentifier, SVal: "_float_cmp"}, args)
			n.Right = &ast.Node{Kind: ast.KindInteger}
			return typesys.NewInt(typesys.LongSize)
		}
		c.report(compiler.TypeError(n.Loc, "unsupported float operator"))
		return common
	}
	rewriteToHelperCall(n, name)
	return common
}

// lowerFixedReal rewrites float arithmetic to ordinary integer shifts and
// multiplies against a 16.16 fixed-point representation, avoiding the helper-call path entirely.
func (c *Checker) lowerFixedReal(n *ast.Node, op ast.OpKind, common *typesys.Type) *typesys.Type {
	const fixedShift = 16
	switch op {
	case ast.OpMul:
		// (a * b) >> 16
		mul := &ast.Node{Kind: ast.KindOperator, IVal: uint64(ast.OpMul), Left: n.Left, Right: n.Right, Loc: n.Loc}
		*n = *ast.New(ast.KindOperator, mul, &ast.Node{Kind: ast.KindInteger, IVal: fixedShift})
		n.IVal = uint64(ast.OpSar)
	case ast.OpDivS, ast.OpDivU:
		// (a << 16) / b
		shifted := ast.New(ast.KindOperator, n.Left, &ast.Node{Kind: ast.KindInteger, IVal: fixedShift})
		shifted.IVal = uint64(ast.OpShl)
		*n = *ast.New(ast.KindOperator, shifted, n.Right)
		n.IVal = uint64(op)
	default:
		// add/sub need no scaling in Q16.16.
	}
	return common
}

func rewriteToHelperCall(n *ast.Node, name string) {
	left, right := n.Left, n.Right
	argList := ast.ListAppend(ast.ListAppend(nil, ast.KindExprList, left), ast.KindExprList, right)
	*n = *ast.New(ast.KindFuncCall, &ast.Node{Kind: ast.KindIdentifier, SVal: name}, argList)
}
