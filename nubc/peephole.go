package nubc

// The Nu peephole optimiser: a pattern-matching engine over IR node
// windows, run to a fixed point. Rewrites mark slots deleted and
// recompute positions rather than splicing, so pattern indices stay
// stable within a round.

// elemFlag qualifies one pattern element's match.
type elemFlag int

const (
	matchAny     elemFlag = iota
	matchImm              // instruction's Imm must equal the element's Imm literal
	matchArgOf            // instruction's Imm must equal matched[ArgRef]'s Imm
	matchAnyCB            // CBxx supermatch
	matchAnyAddB          // ADD_xBASE supermatch
)

// patElem is one element of a pattern's match sequence.
type patElem struct {
	Op     Op
	Flag   elemFlag
	Imm    int64
	ArgRef int
}

// repElem is one element of a pattern's replacement sequence. OpFrom /
// ImmFrom / ArgFrom copy fields from the N-th matched instruction, as
// 1-based references (MATCH_OP's "copy the matched opcode into the
// replacement"); 0 means "use the literal Op / clear the field". Xform
// optionally maps the copied opcode (commutation, inversion).
type repElem struct {
	Op      Op
	OpFrom  int
	ImmFrom int
	ArgFrom int
	Xform   func(Op) (Op, bool)
}

type pattern struct {
	match   []patElem
	replace []repElem
}

// peepPatterns is the rewrite table. Order matters: earlier
// patterns win a window.
var peepPatterns = []pattern{
	// DUP; DROP -> nothing
	{match: []patElem{{Op: OpDUP}, {Op: OpDROP}}},
	// PUSHI k; DROP -> nothing
	{match: []patElem{{Op: OpPUSHI}, {Op: OpDROP}}},
	// PUSHI 0; ADD -> nothing
	{match: []patElem{{Op: OpPUSHI, Flag: matchImm, Imm: 0}, {Op: OpADD}}},
	// PUSHI 0; SUB -> nothing
	{match: []patElem{{Op: OpPUSHI, Flag: matchImm, Imm: 0}, {Op: OpSUB}}},
	// PUSHI 1; BZ L -> nothing (branch never taken)
	{match: []patElem{{Op: OpPUSHI, Flag: matchImm, Imm: 1}, {Op: OpBZ}}},
	// LDW x; PUSHI 15; SIGNX -> LDWS x
	{
		match:   []patElem{{Op: OpLDW}, {Op: OpPUSHI, Flag: matchImm, Imm: 15}, {Op: OpSIGNX}},
		replace: []repElem{{Op: OpLDWS, ImmFrom: 1, ArgFrom: 1}},
	},
	// LDB x; PUSHI 7; SIGNX -> LDBS x
	{
		match:   []patElem{{Op: OpLDB}, {Op: OpPUSHI, Flag: matchImm, Imm: 7}, {Op: OpSIGNX}},
		replace: []repElem{{Op: OpLDBS, ImmFrom: 1, ArgFrom: 1}},
	},
	// LDB x; PUSHI 255; AND -> LDB x (already zero-extended)
	{
		match:   []patElem{{Op: OpLDB}, {Op: OpPUSHI, Flag: matchImm, Imm: 255}, {Op: OpAND}},
		replace: []repElem{{Op: OpLDB, ImmFrom: 1, ArgFrom: 1}},
	},
	// LDW x; PUSHI 65535; AND -> LDW x
	{
		match:   []patElem{{Op: OpLDW}, {Op: OpPUSHI, Flag: matchImm, Imm: 65535}, {Op: OpAND}},
		replace: []repElem{{Op: OpLDW, ImmFrom: 1, ArgFrom: 1}},
	},
	// PUSHI 1; SUB -> DEC
	{
		match:   []patElem{{Op: OpPUSHI, Flag: matchImm, Imm: 1}, {Op: OpSUB}},
		replace: []repElem{{Op: OpDEC}},
	},
	// PUSHI 1; ADD -> INC
	{
		match:   []patElem{{Op: OpPUSHI, Flag: matchImm, Imm: 1}, {Op: OpADD}},
		replace: []repElem{{Op: OpINC}},
	},
	// DUP; ADD -> DOUBLE
	{
		match:   []patElem{{Op: OpDUP}, {Op: OpADD}},
		replace: []repElem{{Op: OpDOUBLE}},
	},
	// SWAP; ADD/AND/IOR/XOR -> the op itself (commutes)
	{
		match:   []patElem{{Op: OpSWAP}, {Op: OpADD}},
		replace: []repElem{{OpFrom: 2}},
	},
	{
		match:   []patElem{{Op: OpSWAP}, {Op: OpAND}},
		replace: []repElem{{OpFrom: 2}},
	},
	{
		match:   []patElem{{Op: OpSWAP}, {Op: OpIOR}},
		replace: []repElem{{OpFrom: 2}},
	},
	{
		match:   []patElem{{Op: OpSWAP}, {Op: OpXOR}},
		replace: []repElem{{OpFrom: 2}},
	},
	// SWAP; CBxx L -> CBreversedxx L
	{
		match:   []patElem{{Op: OpSWAP}, {Flag: matchAnyCB}},
		replace: []repElem{{OpFrom: 2, ImmFrom: 2, ArgFrom: 2, Xform: reverseCB}},
	},
	// PUSHI 0; CBNE L -> BNZ L
	{
		match:   []patElem{{Op: OpPUSHI, Flag: matchImm, Imm: 0}, {Op: OpCBNE}},
		replace: []repElem{{Op: OpBNZ, ArgFrom: 2}},
	},
	// PUSHI 0; CBEQ L -> BZ L
	{
		match:   []patElem{{Op: OpPUSHI, Flag: matchImm, Imm: 0}, {Op: OpCBEQ}},
		replace: []repElem{{Op: OpBZ, ArgFrom: 2}},
	},
}

func reverseCB(op Op) (Op, bool) { return ReverseCBxx(op) }

// Optimize runs the peephole pass to a fixed point: pattern table, the
// CBxx-inversion fold, the repeated-load DUP rewrite, the DJNZ_FAST
// loop-tail recognizer, dead-code removal, and the label sweep, repeated
// until a full round changes nothing.
func Optimize(p Program) {
	for {
		changed := false
		if applyPatterns(p) {
			changed = true
		}
		if invertCBxxFolds(p) {
			changed = true
		}
		if dupRepeatedLoads(p) {
			changed = true
		}
		if djnzFastFolds(p) {
			changed = true
		}
		if removeDeadCode(p) {
			changed = true
		}
		if removeDeadLabels(p) {
			changed = true
		}
		if !changed {
			return
		}
	}
}

// applyPatterns scans for the first window matching each table pattern
// and rewrites it: one rewrite per scan position per round.
func applyPatterns(p Program) bool {
	changed := false
	for i := range p {
		if p[i].Deleted {
			continue
		}
		for _, pat := range peepPatterns {
			if tryPattern(p, i, &pat) {
				changed = true
				break
			}
		}
	}
	return changed
}

func tryPattern(p Program, start int, pat *pattern) bool {
	matched := make([]*Instr, 0, len(pat.match))
	idx := start
	for ei := range pat.match {
		if ei > 0 {
			idx = nextInstr(p, idx+1)
			if idx < 0 {
				return false
			}
		}
		ins := p[idx]
		if !elemMatches(&pat.match[ei], ins, matched) {
			return false
		}
		matched = append(matched, ins)
	}

	// Labels between matched instructions would make the window
	// reachable mid-pattern; nextInstr never skips labels since LABEL is
	// a real instruction here, so adjacency is already guaranteed.

	for _, ins := range matched {
		ins.Deleted = true
	}
	out := matched[0]
	for ri, re := range pat.replace {
		var slot *Instr
		if ri == 0 {
			slot = out
			slot.Deleted = false
		} else {
			// Multi-instruction replacements reuse subsequent matched
			// slots; the table currently only emits single replacements.
			slot = matched[ri]
			slot.Deleted = false
		}
		applyReplacement(slot, re, matched)
	}
	return true
}

func elemMatches(e *patElem, ins *Instr, matched []*Instr) bool {
	switch e.Flag {
	case matchAnyCB:
		return IsCBxx(ins.Op)
	case matchAnyAddB:
		return IsAddBase(ins.Op)
	case matchImm:
		return ins.Op == e.Op && ins.Imm == e.Imm
	case matchArgOf:
		return ins.Op == e.Op && e.ArgRef < len(matched) && ins.Imm == matched[e.ArgRef].Imm
	default:
		return ins.Op == e.Op
	}
}

func applyReplacement(slot *Instr, re repElem, matched []*Instr) {
	if re.OpFrom > 0 && re.OpFrom <= len(matched) {
		slot.Op = matched[re.OpFrom-1].Op
	} else {
		slot.Op = re.Op
	}
	if re.Xform != nil {
		if op, ok := re.Xform(slot.Op); ok {
			slot.Op = op
		}
	}
	if re.ImmFrom > 0 && re.ImmFrom <= len(matched) {
		slot.Imm = matched[re.ImmFrom-1].Imm
	} else {
		slot.Imm = 0
	}
	if re.ArgFrom > 0 && re.ArgFrom <= len(matched) {
		slot.Arg = matched[re.ArgFrom-1].Arg
		slot.Label = matched[re.ArgFrom-1].Label
	} else {
		slot.Arg = ""
		slot.Label = ""
	}
	slot.BC = nil
}

// invertCBxxFolds is the CBxx L; BRA M; LABEL L fold: becomes CBnotxx M;
// LABEL L, eliminating the unconditional branch-over-branch.
func invertCBxxFolds(p Program) bool {
	changed := false
	for i := range p {
		if p[i].Deleted || !IsCBxx(p[i].Op) {
			continue
		}
		j := nextInstr(p, i+1)
		if j < 0 || p[j].Op != OpBRA {
			continue
		}
		k := nextInstr(p, j+1)
		if k < 0 || p[k].Op != OpLABEL || p[k].Arg != p[i].Label {
			continue
		}
		inv, ok := InvertCBxx(p[i].Op)
		if !ok {
			continue
		}
		p[i].Op = inv
		p[i].Label = p[j].Label
		p[i].BC = nil
		p[j].Deleted = true
		changed = true
	}
	return changed
}

// dupRepeatedLoads rewrites a repeated `PUSHI off; ADD_DBASE; LDL`
// immediately following the same three-instruction load: the second load
// becomes a DUP of the value already on the stack.
func dupRepeatedLoads(p Program) bool {
	changed := false
	for i := range p {
		first, ok := loadTriple(p, i)
		if !ok {
			continue
		}
		j := nextInstr(p, first[2]+1)
		if j < 0 {
			continue
		}
		second, ok := loadTriple(p, j)
		if !ok {
			continue
		}
		if p[first[0]].Imm != p[second[0]].Imm || p[first[1]].Op != p[second[1]].Op {
			continue
		}
		p[second[0]].Op = OpDUP
		p[second[0]].Imm = 0
		p[second[0]].BC = nil
		p[second[1]].Deleted = true
		p[second[2]].Deleted = true
		changed = true
	}
	return changed
}

// loadTriple matches PUSHI off; ADD_xBASE; LDL starting at i (i must be
// non-deleted), returning the three indices.
func loadTriple(p Program, i int) ([3]int, bool) {
	var idx [3]int
	if i >= len(p) || p[i].Deleted || p[i].Op != OpPUSHI {
		return idx, false
	}
	idx[0] = i
	j := nextInstr(p, i+1)
	if j < 0 || !IsAddBase(p[j].Op) {
		return idx, false
	}
	idx[1] = j
	k := nextInstr(p, j+1)
	if k < 0 || p[k].Op != OpLDL {
		return idx, false
	}
	idx[2] = k
	return idx, true
}

// djnzFastFolds recognizes the loop tail
//
//	PUSHI off; ADD_DBASE; LDL; DEC; DUP; PUSHI off; ADD_DBASE; STL; BNZ L
//
// and, when it can prove no conflicting access to DBASE[off] between the
// loop head L and the tail, rewrites it to DJNZ_FAST keeping the counter
// on the stack.
func djnzFastFolds(p Program) bool {
	changed := false
	for i := range p {
		tail, ok := matchDjnzTail(p, i)
		if !ok {
			continue
		}
		off := p[tail[0]].Imm
		headIdx, found := findLabel(p, p[tail[8]].Label)
		if !found || headIdx >= i {
			continue
		}
		if !regionSafeForCounter(p, headIdx, tail[0], off, p[tail[8]].Label) {
			continue
		}
		// Counter stays on the stack: the load/store traffic goes away
		// and the branch becomes the fast form.
		for _, idx := range tail[:8] {
			p[idx].Deleted = true
		}
		p[tail[8]].Op = OpDJNZ_FAST
		p[tail[8]].Imm = off
		p[tail[8]].BC = nil
		changed = true
	}
	return changed
}

// matchDjnzTail matches the 9-instruction loop tail starting at i.
func matchDjnzTail(p Program, i int) ([9]int, bool) {
	want := []func(*Instr) bool{
		func(n *Instr) bool { return n.Op == OpPUSHI },
		func(n *Instr) bool { return n.Op == OpADD_DBASE },
		func(n *Instr) bool { return n.Op == OpLDL },
		func(n *Instr) bool { return n.Op == OpDEC },
		func(n *Instr) bool { return n.Op == OpDUP },
		func(n *Instr) bool { return n.Op == OpPUSHI },
		func(n *Instr) bool { return n.Op == OpADD_DBASE },
		func(n *Instr) bool { return n.Op == OpSTL },
		func(n *Instr) bool { return n.Op == OpBNZ },
	}
	var idx [9]int
	cur := i
	for w := 0; w < len(want); w++ {
		if w > 0 {
			cur = nextInstr(p, cur+1)
			if cur < 0 {
				return idx, false
			}
		} else if cur >= len(p) || p[cur].Deleted {
			return idx, false
		}
		if !want[w](p[cur]) {
			return idx, false
		}
		idx[w] = cur
	}
	if p[idx[0]].Imm != p[idx[5]].Imm {
		return idx, false
	}
	return idx, true
}

// regionSafeForCounter proves the DBASE[off] slot untouched between the
// loop head and the tail: no branches out of the region, no calls, no
// label with external reach, and no other address producer with the same
// offset.
func regionSafeForCounter(p Program, head, tailStart int, off int64, loopLabel string) bool {
	refs := labelRefCount(p)
	for k := head; k < tailStart; k++ {
		ins := p[k]
		if ins.Deleted {
			continue
		}
		switch {
		case ins.Op == OpCALL || ins.Op == OpCALLA || ins.Op == OpCALLM || ins.Op == OpGOSUB || ins.Op == OpINLINEASM:
			return false
		case ins.Op == OpLABEL:
			if ins.Arg != loopLabel && refs[ins.Arg] > 0 {
				return false // label with external reach
			}
		case IsBranch(ins.Op) && ins.Op != OpLABEL:
			if k != tailStart {
				return false // branch out of the region
			}
		case ins.Op == OpPUSHI && ins.Imm == off:
			j := nextInstr(p, k+1)
			if j >= 0 && j < tailStart && IsAddBase(p[j].Op) {
				return false // another address producer with the same offset
			}
		}
	}
	return true
}

// removeDeadCode drops everything between an unconditional branch or
// return and the next label target, unless the following region is a
// jump table (a BRA3 run following JMPREL).
func removeDeadCode(p Program) bool {
	changed := false
	for i := range p {
		ins := p[i]
		if ins.Deleted {
			continue
		}
		if ins.Op != OpBRA && ins.Op != OpJMP && ins.Op != OpRET && ins.Op != OpLONGJMP {
			continue
		}
		if ins.Op == OpBRA || ins.Op == OpJMP {
			// A JMPREL immediately before makes what follows a jump
			// table of BRA3 entries; leave it alone.
			if prev := prevInstr(p, i-1); prev >= 0 && p[prev].Op == OpJMPREL {
				continue
			}
		}
		for j := i + 1; j < len(p); j++ {
			if p[j].Deleted {
				continue
			}
			if p[j].Op == OpLABEL {
				break
			}
			if p[j].Op == OpBRA3 {
				break // jump table entries are reachable via JMPREL
			}
			p[j].Deleted = true
			changed = true
		}
	}
	return changed
}

func prevInstr(p Program, i int) int {
	for ; i >= 0; i-- {
		if !p[i].Deleted {
			return i
		}
	}
	return -1
}

// removeDeadLabels sweeps labels no branch references.
func removeDeadLabels(p Program) bool {
	refs := labelRefCount(p)
	changed := false
	for _, ins := range p {
		if ins.Deleted || ins.Op != OpLABEL {
			continue
		}
		if refs[ins.Arg] == 0 {
			ins.Deleted = true
			changed = true
		}
	}
	return changed
}
