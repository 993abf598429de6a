package ast

// MatchStructural reports whether a and b are structurally identical:
// same Kind, same payload, and recursively identical children. Used by
// rewriting passes that want to recognize "the same expression written
// twice" (e.g. CSE candidates, loop-invariant bounds).
func MatchStructural(a, b *Node) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Kind != b.Kind || a.IVal != b.IVal || a.SVal != b.SVal {
		return false
	}
	if !MatchStructural(a.Left, b.Left) {
		return false
	}
	return MatchStructural(a.Right, b.Right)
}

// MatchBody reports whether a and b are the same statement/expression tree
// up to a consistent renaming of local identifiers: two function
// bodies "match" if one can be obtained from the other by substituting
// local variable names uniformly. Every identifier is treated as
// renamable; locals and non-locals are not told apart.
//
// renaming is built greedily left-to-right: the first time identifier x
// on the a side lines up against identifier y on the b side, the pair is
// recorded; every subsequent occurrence of x must line up with that same
// y and vice versa.
func MatchBody(a, b *Node) bool {
	renaming := make(map[string]string)
	reverse := make(map[string]string)
	return matchBodyRec(a, b, renaming, reverse)
}

func matchBodyRec(a, b *Node, renaming, reverse map[string]string) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Kind != b.Kind {
		return false
	}
	if a.Kind == KindIdentifier {
		if mapped, ok := renaming[a.SVal]; ok {
			return mapped == b.SVal
		}
		if _, taken := reverse[b.SVal]; taken {
			return false
		}
		renaming[a.SVal] = b.SVal
		reverse[b.SVal] = a.SVal
		return true
	}
	if a.IVal != b.IVal || a.SVal != b.SVal {
		return false
	}
	if !matchBodyRec(a.Left, b.Left, renaming, reverse) {
		return false
	}
	return matchBodyRec(a.Right, b.Right, renaming, reverse)
}

// Contains reports whether inner occurs (by pointer identity) anywhere in
// outer's subtree, including outer itself.
func Contains(outer, inner *Node) bool {
	if outer == nil {
		return false
	}
	if outer == inner {
		return true
	}
	return Contains(outer.Left, inner) || Contains(outer.Right, inner)
}

// ModifiesIdentifier reports whether body contains an assignment (or
// address-of, which might be stored and mutated indirectly) whose target
// identifier is id.
func ModifiesIdentifier(body *Node, id string) bool {
	if body == nil {
		return false
	}
	if body.Kind == KindAssign && body.Left != nil && body.Left.Kind == KindIdentifier && body.Left.SVal == id {
		return true
	}
	if body.Kind == KindAddrOf && body.Left != nil && body.Left.Kind == KindIdentifier && body.Left.SVal == id {
		return true
	}
	return ModifiesIdentifier(body.Left, id) || ModifiesIdentifier(body.Right, id)
}
