package ast

// DeepCopy duplicates n and its entire subtree. The AST is a tree, not a
// DAG: sharing is explicit duplication, never a shared
// pointer into the original subtree.
func DeepCopy(n *Node) *Node {
	return DeepCopyWithSubstitute(n, nil, nil)
}

// DeepCopyWithSubstitute duplicates n's subtree, except that any node
// identical (by pointer) to orig is replaced by replacement in the copy
// (replacement is itself not copied further — it is spliced in as-is,
// matching the source's single-substitution semantics used when inlining
// a call's argument expressions into its body).
func DeepCopyWithSubstitute(n, orig, replacement *Node) *Node {
	if n == nil {
		return nil
	}
	if orig != nil && n == orig {
		return replacement
	}
	cp := &Node{
		Kind: n.Kind,
		IVal: n.IVal,
		SVal: n.SVal,
		Data: n.Data,
		Loc:  n.Loc,
	}
	cp.Left = DeepCopyWithSubstitute(n.Left, orig, replacement)
	cp.Right = DeepCopyWithSubstitute(n.Right, orig, replacement)
	return cp
}
