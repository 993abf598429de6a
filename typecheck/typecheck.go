// Package typecheck implements the single recursive type-checking /
// coercion walk: it rewrites the AST in place and returns a type for
// every expression. A Checker holds the running symbol/type tables plus
// a diagnostics sink; one big switch over expression kinds returns the
// inferred type.
package typecheck

import (
	"github.com/totalspectrum/propcore/ast"
	"github.com/totalspectrum/propcore/compiler"
	"github.com/totalspectrum/propcore/symtab"
	"github.com/totalspectrum/propcore/typesys"
)

// FixedReal, when set, lowers float arithmetic to 16.16 fixed-point
// shift/multiply sequences instead of _float_* helper calls.
type Options struct {
	FixedReal       bool
	NoVarargsOutput bool
}

// Checker carries the state threaded through one recursive AST walk. It
// holds no module-global state of its own (current module/function are
// owned by the module package's visitor); Types maps an ast.Node to
// its inferred/rewritten type for passes downstream that need it again.
type Checker struct {
	Opts  Options
	Sink  *compiler.ErrorSink
	Types map[*ast.Node]*typesys.Type
	Scope *symtab.Table

	// Interfaces deduplicates interface-conversion skeletons across the
	// whole run; ResolveMethods maps a (class, interface) pair to the
	// concrete method list a skeleton carries.
	Interfaces     *typesys.InterfacePtrTable
	ResolveMethods func(class, iface typesys.Module) []interface{}

	tempN int
}

func NewChecker(opts Options, sink *compiler.ErrorSink, scope *symtab.Table) *Checker {
	return &Checker{Opts: opts, Sink: sink, Types: make(map[*ast.Node]*typesys.Type), Scope: scope}
}

func (c *Checker) setType(n *ast.Node, t *typesys.Type) *typesys.Type {
	c.Types[n] = t
	return t
}

// TypeOf returns the type most recently recorded for n, or nil.
func (c *Checker) TypeOf(n *ast.Node) *typesys.Type { return c.Types[n] }

func (c *Checker) report(d *compiler.Diagnostic) {
	if c.Sink != nil {
		c.Sink.Report(d)
	}
}

// CheckStmt type-checks a statement (or statement list) in place,
// recursing into expression substructure through CheckExpr.
func (c *Checker) CheckStmt(n *ast.Node) {
	if n == nil {
		return
	}
	switch n.Kind {
	case ast.KindStmtList:
		for _, s := range ast.ListElements(n) {
			c.CheckStmt(s)
		}
	case ast.KindExprStmt:
		if n.Left != nil {
			c.CheckExpr(n.Left)
		}
	case ast.KindIf:
		c.CheckCond(n.Left)
		c.CheckStmt(n.Right)
	case ast.KindWhile, ast.KindRepeat:
		c.CheckCond(n.Left)
		c.CheckStmt(n.Right)
	case ast.KindReturn:
		c.checkReturn(n)
	case ast.KindAssign:
		c.CheckExpr(n)
	case ast.KindVarDecl, ast.KindConstDecl:
		if n.Right != nil {
			c.CheckExpr(n.Right)
		}
	default:
		// Labels, gotos, breaks, continues carry no sub-expression to
		// check.
	}
}

func (c *Checker) checkReturn(n *ast.Node) {
	if n.Left == nil {
		return
	}
	c.CheckExpr(n.Left)
}

// CheckCond type-checks a condition expression (an if/while/repeat
// test). Conditions are the one place the x != 0 flattening may fire:
// there the comparison's 0/1 result is only ever tested for truthiness,
// never stored.
func (c *Checker) CheckCond(n *ast.Node) *typesys.Type {
	if n == nil {
		return nil
	}
	if n.Kind == ast.KindOperator {
		return c.checkOperator(n, true)
	}
	return c.CheckExpr(n)
}

// CheckExpr type-checks expr, rewriting it in place where a coercion or
// peephole rewrite applies, and returns its resulting type.
func (c *Checker) CheckExpr(n *ast.Node) *typesys.Type {
	if n == nil {
		return nil
	}
	switch n.Kind {
	case ast.KindInteger:
		return c.setType(n, typesys.NewInt(typesys.LongSize))
	case ast.KindFloat:
		return c.setType(n, typesys.NewFloat(typesys.LongSize))
	case ast.KindString:
		return c.setType(n, typesys.NewArray(typesys.NewUInt(1), len(n.SVal)+1))

	case ast.KindIdentifier:
		sym := c.Scope.Lookup(n.SVal)
		if sym == nil {
			c.report(compiler.SymbolError(n.Loc, "undefined identifier %q", n.SVal))
			return nil
		}
		t, _ := sym.Payload.(*typesys.Type)
		return c.setType(n, t)

	case ast.KindOperator:
		return c.checkOperator(n, false)

	case ast.KindAssign:
		return c.checkAssign(n)

	case ast.KindAddrOf:
		elemT := c.CheckExpr(n.Left)
		if elemT != nil && elemT.Kind == typesys.KindFunction {
			// @func produces a method pointer: either the raw
			// address or a tagged 2-word value, decided by the back end;
			// the node kind records the distinction for it.
			n.Kind = ast.KindMethodPtr
			return c.setType(n, typesys.NewPointer(elemT))
		}
		return c.setType(n, typesys.NewPointer(elemT))

	case ast.KindMethodPtr:
		fnT := c.CheckExpr(n.Left)
		return c.setType(n, typesys.NewPointer(fnT))

	case ast.KindCast:
		c.CheckExpr(n.Left)
		target, _ := n.Data.(*typesys.Type)
		return c.setType(n, target)

	case ast.KindArrayRef:
		return c.checkArrayRef(n)

	case ast.KindFuncCall:
		return c.checkCall(n)

	case ast.KindTupleLit:
		var elems []*typesys.Type
		for _, e := range ast.ListElements(n.Left) {
			elems = append(elems, c.CheckExpr(e))
		}
		return c.setType(n, typesys.NewTuple(elems))

	default:
		if n.Left != nil {
			c.CheckExpr(n.Left)
		}
		if n.Right != nil {
			c.CheckExpr(n.Right)
		}
		return nil
	}
}

func (c *Checker) checkArrayRef(n *ast.Node) *typesys.Type {
	arrT := c.CheckExpr(n.Left)
	idxT := c.CheckExpr(n.Right)
	if arrT == nil {
		return nil
	}
	if idxT != nil && !isIntegral(idxT) {
		c.report(compiler.TypeError(n.Loc, "array index must be an integer type"))
	}
	elem, err := typesys.Dereference(arrT)
	if err != nil {
		c.report(compiler.TypeError(n.Loc, "%s", err.Error()))
		return nil
	}
	return c.setType(n, elem)
}

func (c *Checker) checkCall(n *ast.Node) *typesys.Type {
	fnT := c.CheckExpr(n.Left)
	args := ast.ListElements(n.Right)
	argTypes := make([]*typesys.Type, len(args))
	for i, a := range args {
		argTypes[i] = c.CheckExpr(a)
	}
	if fnT == nil || fnT.Kind != typesys.KindFunction {
		c.report(compiler.TypeError(n.Loc, "called expression is not a function"))
		return nil
	}
	nparams := len(fnT.Params)
	if !fnT.SendArgs && len(args) != nparams {
		c.report(compiler.TypeError(n.Loc, "wrong number of arguments: expected %d, got %d", nparams, len(args)))
	}
	for i := 0; i < len(args) && i < nparams; i++ {
		coerceAssign(c, args[i], argTypes[i], fnT.Params[i])
	}
	if c.Opts.NoVarargsOutput && fnT.SendArgs && len(args) > nparams {
		c.lowerVarargsToBoxedBuffer(n, fnT, args[nparams:])
	}
	return c.setType(n, fnT.Return)
}

// checkAssign implements the assignment coercion contract: array decay
// to pointer, small-integer widening, const-drop warning, copyref
// lowering to gc_alloc_managed+memcpy, and multi-return "pop multiple".
func (c *Checker) checkAssign(n *ast.Node) *typesys.Type {
	lhsT := c.CheckExpr(n.Left)
	rhsT := c.CheckExpr(n.Right)
	if lhsT == nil || rhsT == nil {
		return lhsT
	}
	if rhsT.Kind == typesys.KindTuple {
		c.popMultiple(n, lhsT, rhsT)
		return c.setType(n, lhsT)
	}
	coerceAssign(c, n.Right, rhsT, lhsT)
	return c.setType(n, lhsT)
}

// popMultiple checks a single assignment target against a tuple value:
// the target is matched against the last tuple element only, and the
// other elements are not checked or matched to any target.
func (c *Checker) popMultiple(n *ast.Node, lhsT, tupleT *typesys.Type) {
	if len(tupleT.Elems) == 0 {
		return
	}
	last := tupleT.Elems[len(tupleT.Elems)-1]
	if !typesys.Compatible(lhsT, last) {
		c.report(compiler.TypeError(n.Loc, "incompatible types in multiple assignment"))
	}
}

// coerceAssign applies the assignment contract to one (value, target)
// pair: array decay, widening, const drop, and copyref boxing. It mutates
// valueNode in place when a coercion node must be inserted.
func coerceAssign(c *Checker, valueNode *ast.Node, valueT, targetT *typesys.Type) {
	if valueT == nil || targetT == nil {
		return
	}
	if valueT.Kind == typesys.KindArray && targetT.Kind == typesys.KindPointer {
		valueT = typesys.NewPointer(valueT.Elem) // array-to-pointer decay
	}
	if targetT.Kind == typesys.KindCopyReference {
		boxCopyReference(c, valueNode, valueT)
		return
	}
	if converted := c.convertToInterface(valueNode, valueT, targetT); converted {
		return
	}
	if valueT.Const && !targetT.Const {
		d := compiler.TypeError(valueNode.Loc, "assignment discards const qualifier").WithPrevious(valueNode.Loc, "value declared const here")
		d.Warning = true
		c.report(d)
	}
	if isIntegral(valueT) && isIntegral(targetT) && typesys.Size(valueT) < typesys.Size(targetT) {
		return // implicit widening, no node rewrite needed: back end emits at natural width
	}
	if !typesys.Compatible(valueT, targetT) {
		c.report(compiler.TypeError(valueNode.Loc, "incompatible types in assignment"))
	}
}

// boxCopyReference rewrites valueNode into a gc_alloc_managed+memcpy pair
// feeding a hidden temp, per the copyref contract: passing a large
// struct by value to a copyref parameter allocates a managed temp, copies
// the struct into it, and passes the temp's address instead.
func boxCopyReference(c *Checker, valueNode *ast.Node, valueT *typesys.Type) {
	size := typesys.Size(valueT)
	done := ast.ReportAs(valueNode.Loc)
	defer done()

	origCopy := ast.DeepCopy(valueNode)
	allocCall := ast.New(ast.KindFuncCall,
		&ast.Node{Kind: ast.KindIdentifier, SVal: "_gc_alloc_managed"},
		ast.ListAppend(nil, ast.KindExprList, &ast.Node{Kind: ast.KindInteger, IVal: uint64(size)}),
	)
	memcpyCall := ast.New(ast.KindFuncCall,
		&ast.Node{Kind: ast.KindIdentifier, SVal: "_memcpy"},
		ast.ListAppend(
			ast.ListAppend(nil, ast.KindExprList, allocCall),
			ast.KindExprList,
			ast.New(ast.KindAddrOf, origCopy, nil),
		),
	)
	// valueNode becomes the comma-style "evaluate memcpy, yield the temp
	// pointer" expression; back ends lower KindCatch-shaped pairs like
	// this into a statement + a use of its first operand.
	*valueNode = *ast.New(ast.KindCatch, memcpyCall, allocCall)
}

// lowerVarargsToBoxedBuffer implements the varargs lowering for
// NoVarargsOutput back ends: allocate a heap buffer sized to the pushed
// tail arguments, store each at its natural offset, and pass the buffer
// pointer in place of the tail.
func (c *Checker) lowerVarargsToBoxedBuffer(call *ast.Node, fnT *typesys.Type, tail []*ast.Node) {
	total := 0
	for _, a := range tail {
		total += typesys.Size(c.TypeOf(a))
	}
	done := ast.ReportAs(call.Loc)
	defer done()

	bufAlloc := ast.New(ast.KindFuncCall,
		&ast.Node{Kind: ast.KindIdentifier, SVal: "_gc_alloc_managed"},
		ast.ListAppend(nil, ast.KindExprList, &ast.Node{Kind: ast.KindInteger, IVal: uint64(total)}),
	)
	bufIdent := &ast.Node{Kind: ast.KindIdentifier, SVal: c.newTemp()}
	storeStmts := ast.New(ast.KindAssign, bufIdent, bufAlloc)

	offset := 0
	for _, a := range tail {
		argT := c.TypeOf(a)
		storeStmts = ast.New(ast.KindStmtList, storeStmts,
			ast.New(ast.KindAssign,
				ast.New(ast.KindArrayRef, bufIdent, &ast.Node{Kind: ast.KindInteger, IVal: uint64(offset)}),
				a,
			),
		)
		offset += typesys.Size(argT)
	}
	// Splice the boxed-args prelude ahead of the call and replace the
	// variadic tail with a single pointer argument.
	args := ast.ListElements(call.Right)
	fixed := args[:len(fnT.Params)]
	var newArgs *ast.Node
	for _, a := range fixed {
		newArgs = ast.ListAppend(newArgs, ast.KindExprList, a)
	}
	newArgs = ast.ListAppend(newArgs, ast.KindExprList, bufIdent)
	call.Right = newArgs
	call.Data = storeStmts // back end hoists call.Data ahead of the call statement
}

func (c *Checker) newTemp() string {
	c.tempN++
	return "_vararg_tmp" + itoa(c.tempN)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

func isIntegral(t *typesys.Type) bool {
	return t != nil && (t.Kind == typesys.KindInt || t.Kind == typesys.KindUInt || t.Kind == typesys.KindBool)
}
