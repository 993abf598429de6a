package nubc

// Instr is one Nu IR instruction: a mutable slot in a program slice that
// the peephole pass rewrites or marks Deleted in place, rather than
// splicing the slice.
type Instr struct {
	Op      Op
	Imm     int64  // PUSHI / immediate operand
	Arg     string // register/local name operand, when applicable
	Label   string // branch/call target
	Comment string
	Seq     int // sequence number assigned by the pre-pass
	Deleted bool

	// BC is the dispatch-table descriptor that will encode this
	// instruction, assigned by the packer.
	BC *Descriptor
}

// Program is a mutable instruction sequence for one function body.
type Program []*Instr

// Sequence assigns each non-deleted instruction its position; the packer
// relies on the numbering to find adjacent pairs.
func Sequence(p Program) {
	seq := 0
	for _, ins := range p {
		if ins.Deleted {
			continue
		}
		ins.Seq = seq
		seq++
	}
}

// nextInstr returns the index of the next non-deleted instruction at or
// after i, or -1. Deleted slots are skipped before any pattern match.
func nextInstr(p Program, i int) int {
	for ; i < len(p); i++ {
		if !p[i].Deleted {
			return i
		}
	}
	return -1
}

// addrMap assigns each non-deleted instruction a monotonically increasing
// position, recomputed after every rewrite round so BRA/CBxx/DJNZ range
// checks see displacements that survive the folds already applied.
func addrMap(p Program) map[*Instr]int {
	m := make(map[*Instr]int, len(p))
	pos := 0
	for _, ins := range p {
		if ins.Deleted {
			continue
		}
		m[ins] = pos
		pos++
	}
	return m
}

func findLabel(p Program, name string) (int, bool) {
	for i, ins := range p {
		if ins.Deleted {
			continue
		}
		if ins.Op == OpLABEL && ins.Arg == name {
			return i, true
		}
	}
	return 0, false
}

// labelRefCount counts branch references to each label in p, for the
// label-removal sweep.
func labelRefCount(p Program) map[string]int {
	refs := make(map[string]int)
	for _, ins := range p {
		if ins.Deleted || ins.Label == "" {
			continue
		}
		if ins.Op != OpLABEL {
			refs[ins.Label]++
		}
	}
	return refs
}
