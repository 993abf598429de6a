package typecheck

import (
	"github.com/totalspectrum/propcore/ast"
	"github.com/totalspectrum/propcore/compiler"
	"github.com/totalspectrum/propcore/typesys"
)

// convertToInterface rewrites an assignment of a class pointer to an
// interface pointer: materialise (or reuse) the skeleton
// table for the (class, interface) pair, then wrap the value in a
// make_interfaceptrs(instance, @skeleton, n) call producing the two-word
// fat pointer.
func (c *Checker) convertToInterface(valueNode *ast.Node, classT, ifaceT *typesys.Type) bool {
	if c.Interfaces == nil {
		return false
	}
	if classT == nil || ifaceT == nil {
		return false
	}
	if classT.Kind != typesys.KindPointer || ifaceT.Kind != typesys.KindPointer {
		return false
	}
	ce, ie := classT.Elem, ifaceT.Elem
	if ce == nil || ie == nil || ce.Kind != typesys.KindObject || ie.Kind != typesys.KindObject {
		return false
	}
	if ce.Module == nil || ie.Module == nil || !ce.Module.ImplementsInterface(ie.Module) {
		return false
	}

	skel := c.Interfaces.GetOrCreate(ce.Module, ie.Module, func() []interface{} {
		if c.ResolveMethods == nil {
			return nil
		}
		return c.ResolveMethods(ce.Module, ie.Module)
	})
	nMethods := len(skel.Methods)

	done := ast.ReportAs(valueNode.Loc)
	defer done()

	instance := ast.DeepCopy(valueNode)
	skelRef := ast.New(ast.KindAddrOf, &ast.Node{Kind: ast.KindIdentifier, SVal: skeletonName(ce, ie), Data: skel}, nil)
	args := ast.ListAppend(nil, ast.KindExprList, instance)
	args = ast.ListAppend(args, ast.KindExprList, skelRef)
	args = ast.ListAppend(args, ast.KindExprList, &ast.Node{Kind: ast.KindInteger, IVal: uint64(nMethods)})
	*valueNode = *ast.New(ast.KindFuncCall,
		&ast.Node{Kind: ast.KindIdentifier, SVal: "make_interfaceptrs"},
		args,
	)
	return true
}

func skeletonName(class, iface *typesys.Type) string {
	cn, in := "anon", "anon"
	if m, ok := class.Module.(interface{ ModuleName() string }); ok {
		cn = m.ModuleName()
	}
	if m, ok := iface.Module.(interface{ ModuleName() string }); ok {
		in = m.ModuleName()
	}
	return "_skel_" + in + "_" + cn
}

// reportBadInterfaceCast is the diagnostic half of the conversion; kept
// separate so checkAssign stays readable.
func (c *Checker) reportBadInterfaceCast(n *ast.Node) {
	c.report(compiler.TypeError(n.Loc, "class does not implement the target interface"))
}
