package ast

// Lists are right-linear chains of list-cell nodes: Left holds the element,
// Right holds the rest of the list (nil at the end). Both KindListHolder and
// KindExprList use this shape; the distinct Kind only changes how a
// consumer interprets the chain (argument/generic list vs. expression list).

// listCellKind reports whether k is one of the two list-cell kinds.
func listCellKind(k Kind) bool {
	return k == KindListHolder || k == KindExprList
}

// ListAppend appends elem to the end of a list built from cellKind cells.
// A nil list becomes a single-element list.
func ListAppend(list *Node, cellKind Kind, elem *Node) *Node {
	cell := New(cellKind, elem, nil)
	if list == nil {
		return cell
	}
	tail := list
	for tail.Right != nil {
		tail = tail.Right
	}
	tail.Right = cell
	return list
}

// ListPrepend conses elem onto the front of list.
func ListPrepend(list *Node, cellKind Kind, elem *Node) *Node {
	return New(cellKind, elem, list)
}

// ListInsertBefore inserts elem immediately before the cell whose element
// equals target (by pointer identity), returning the (possibly new) head.
// If target is not found the list is unchanged.
func ListInsertBefore(list *Node, cellKind Kind, target, elem *Node) *Node {
	if list == nil {
		return list
	}
	if list.Left == target {
		return New(cellKind, elem, list)
	}
	prev := list
	for cur := list.Right; cur != nil; cur = cur.Right {
		if cur.Left == target {
			prev.Right = New(cellKind, elem, cur)
			return list
		}
		prev = cur
	}
	return list
}

// ListRemove removes the first cell whose element equals target (by
// pointer identity), returning the (possibly new) head.
func ListRemove(list *Node, target *Node) *Node {
	if list == nil {
		return nil
	}
	if list.Left == target {
		return list.Right
	}
	prev := list
	for cur := list.Right; cur != nil; cur = cur.Right {
		if cur.Left == target {
			prev.Right = cur.Right
			return list
		}
		prev = cur
	}
	return list
}

// ListLen counts the cells in a right-linear list chain.
func ListLen(list *Node) int {
	n := 0
	for cur := list; cur != nil; cur = cur.Right {
		n++
	}
	return n
}

// ListElements returns the elements of a right-linear list as a slice,
// in order. Iterative, so deeply nested lists cannot overflow the stack.
func ListElements(list *Node) []*Node {
	var out []*Node
	for cur := list; cur != nil; cur = cur.Right {
		out = append(out, cur.Left)
	}
	return out
}

// StringPtrByteLen walks an EXPRLIST whose leaves are STRING or INTEGER
// nodes and sums the encoded byte length: each STRING leaf
// contributes len(SVal), each INTEGER leaf contributes 1 byte.
func StringPtrByteLen(list *Node) int {
	total := 0
	for cur := list; cur != nil; cur = cur.Right {
		elem := cur.Left
		if elem == nil {
			continue
		}
		switch elem.Kind {
		case KindString, KindStringLit:
			total += len(elem.SVal)
		case KindInteger:
			total++
		}
	}
	return total
}

// Nullify turns n into a no-op expression in place: its kind becomes
// KindExprStmt with nil children, as the source's "nullify" does when a
// rewrite wants to neutralize a statement without unlinking it from its
// containing list (so label/line bookkeeping elsewhere stays valid).
func Nullify(n *Node) {
	if n == nil {
		return
	}
	n.Kind = KindExprStmt
	n.Left = nil
	n.Right = nil
	n.IVal = 0
	n.SVal = ""
	n.Data = nil
}

// Replace walks body and rewrites every occurrence of old (by pointer
// identity) to new, in place.
func Replace(body, old, new *Node) {
	if body == nil {
		return
	}
	if body.Left == old {
		body.Left = new
	} else {
		Replace(body.Left, old, new)
	}
	if body.Right == old {
		body.Right = new
	} else {
		Replace(body.Right, old, new)
	}
}
