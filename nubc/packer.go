package nubc

import "sort"

// The dispatch table is 256 entries; DIRECT, PUSHI, PUSHA, and CALLA are
// reserved, leaving 248 assignable.
const (
	SlotDIRECT = 0
	SlotPUSHI  = 1
	SlotPUSHA  = 2
	SlotCALLA  = 3

	firstFreeSlot = 4
	MaxSlots      = 248

	// macroDepthLimit caps per-instruction macro nesting.
	macroDepthLimit = 4
)

// Descriptor is one candidate dispatch-table entry: a
// plain opcode, an opcode specialized to a concrete immediate (PUSHI and
// PUSHA are keyed by the immediate, so each unique constant can earn its
// own opcode), or a fused macro of two previously assigned entries.
type Descriptor struct {
	Op     Op
	Imm    int64
	HasImm bool

	// Fused macro: the two constituent descriptors, in order.
	First, Second *Descriptor

	Count int // observed usage count
	Slot  int // assigned dispatch slot; -1 means fall through to DIRECT
	Depth int // macro nesting depth (plain opcodes are depth 1)

	// Impl footprint, from the embedded interpreter or synthesized for
	// macros/constants at pack time.
	ImplLongs int
	ImplInHub bool
	ImplAddr  int
}

func (d *Descriptor) IsMacro() bool { return d.First != nil }

type descKey struct {
	op     Op
	imm    int64
	hasImm bool
	first  *Descriptor
	second *Descriptor
}

func (d *Descriptor) key() descKey {
	return descKey{op: d.Op, imm: d.Imm, hasImm: d.HasImm, first: d.First, second: d.Second}
}

// Packer owns one compile run's descriptor table and slot assignment.
// The greedy shape — count uses, sort by frequency, hand the scarce
// resource to the highest-value candidates first, spill the rest — is
// keeping the best candidate under a fixed tie-break.
type Packer struct {
	descs    map[descKey]*Descriptor
	assigned []*Descriptor
	nextSlot int

	// MakeMacros gates step 4's macro synthesis (gl_optimize_flags'
	// MAKE_MACROS bit).
	MakeMacros bool
}

func NewPacker() *Packer {
	return &Packer{descs: make(map[descKey]*Descriptor), nextSlot: firstFreeSlot}
}

// canonicalize returns the descriptor for one IR instruction: PUSHI/PUSHA key on the concrete immediate, everything else on
// opcode identity alone.
func (p *Packer) canonicalize(ins *Instr) *Descriptor {
	d := &Descriptor{Op: ins.Op, Slot: -1, Depth: 1}
	if ins.Op == OpPUSHI || ins.Op == OpPUSHA {
		d.Imm = ins.Imm
		d.HasImm = true
	}
	k := d.key()
	if existing, ok := p.descs[k]; ok {
		return existing
	}
	info := implFor(ins.Op)
	d.ImplLongs = info.Longs
	d.ImplInHub = info.InHub
	d.ImplAddr = info.Offset
	p.descs[k] = d
	return d
}

// Observe canonicalizes every instruction of prog and attaches the
// descriptor back-pointer each IR node carries.
func (p *Packer) Observe(prog Program) {
	for _, ins := range prog {
		if ins.Deleted || ins.Op == OpLABEL || ins.Op == OpALIGN {
			continue
		}
		d := p.canonicalize(ins)
		d.Count++
		ins.BC = d
	}
}

// Pack runs steps 2..4 over every observed program: usage sort, greedy
// slot assignment, then opportunistic constant specialisation and macro
// fusion while slots remain and bytes are still being saved.
func (p *Packer) Pack(progs []Program) *Assignment {
	all := make([]*Descriptor, 0, len(p.descs))
	for _, d := range p.descs {
		all = append(all, d)
	}
	// Step 2: sort by observed usage count; stable tie-break on opcode
	// then immediate keeps regenerated binaries bit-identical.
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].Count != all[j].Count {
			return all[i].Count > all[j].Count
		}
		if all[i].Op != all[j].Op {
			return all[i].Op < all[j].Op
		}
		return all[i].Imm < all[j].Imm
	})

	// Step 3: greedy assignment; overflow falls through to DIRECT.
	for _, d := range all {
		if reservedOp(d.Op) {
			d.Slot = reservedSlot(d.Op)
			continue
		}
		if p.nextSlot < firstFreeSlot+MaxSlots {
			d.Slot = p.nextSlot
			p.assigned = append(p.assigned, d)
			p.nextSlot++
		} else {
			d.Slot = -1
		}
	}

	// Step 4: opportunistic compression.
	for p.nextSlot < firstFreeSlot+MaxSlots {
		constCand, constScore := p.bestConstant()
		var macroCand *macroCandidate
		macroScore := 0
		if p.MakeMacros {
			macroCand, macroScore = p.bestMacro(progs)
		}
		if constScore <= 0 && macroScore <= 0 {
			break
		}
		if constScore >= macroScore {
			p.applyConstant(constCand)
		} else {
			p.applyMacro(macroCand, progs)
		}
	}

	return p.assignment()
}

func reservedOp(op Op) bool {
	switch op {
	case OpDIRECT, OpPUSHI, OpPUSHA, OpCALLA:
		return true
	}
	return false
}

func reservedSlot(op Op) int {
	switch op {
	case OpDIRECT:
		return SlotDIRECT
	case OpPUSHI:
		return SlotPUSHI
	case OpPUSHA:
		return SlotPUSHA
	default:
		return SlotCALLA
	}
}

// immCost is the invocation cost of pushing constant k through the
// generic PUSHI: 4 bytes for a 32-bit k, 2 for 16-bit,
// 1 for 8-bit, 1 for "small" |k| < 512.
func immCost(k int64) int {
	if k > -512 && k < 512 {
		return 1
	}
	if k >= -128 && k < 256 {
		return 1
	}
	if k >= -32768 && k < 65536 {
		return 2
	}
	return 4
}

// constImplLongs is the implementation cost of a specialized constant
// opcode: `call #\impl_DUP; _ret_ mov tos, #k` is 3 LUT longs when k
// fits a 9-bit immediate (an extra AUGS long otherwise).
func constImplLongs(k int64) int {
	if k >= 0 && k < 512 {
		return 3
	}
	return 4
}

// bestConstant finds the unassigned PUSHI descriptor whose
// specialisation saves the most bytes: invocation cost x usage minus
// implementation cost in LUT longs.
func (p *Packer) bestConstant() (*Descriptor, int) {
	var best *Descriptor
	bestScore := 0
	for _, d := range p.descs {
		if d.Op != OpPUSHI || !d.HasImm || d.Slot >= firstFreeSlot {
			continue
		}
		score := immCost(d.Imm)*d.Count - constImplLongs(d.Imm)
		if score > bestScore {
			best, bestScore = d, score
		}
	}
	return best, bestScore
}

func (p *Packer) applyConstant(d *Descriptor) {
	// IR sites already point at this descriptor; the emitter sees the
	// slot and stops emitting the immediate tail.
	d.Slot = p.nextSlot
	d.ImplLongs = constImplLongs(d.Imm)
	p.assigned = append(p.assigned, d)
	p.nextSlot++
}

// macroCandidate is one (A, B) adjacent pair under consideration.
type macroCandidate struct {
	first, second *Descriptor
	count         int
}

// Eligible reports whether an adjacent pair may fuse:
// neither a branch nor inline asm, both already assigned single-byte
// opcodes, and the combined nesting depth under the cap. Extracted as a
// pure predicate so the scoring loop stays declarative.
func Eligible(a, b *Descriptor) bool {
	if a == nil || b == nil {
		return false
	}
	if IsBranch(a.Op) || IsBranch(b.Op) {
		return false
	}
	if a.Op == OpINLINEASM || b.Op == OpINLINEASM {
		return false
	}
	if a.Slot < firstFreeSlot || b.Slot < firstFreeSlot {
		return false
	}
	if a.Depth+b.Depth > macroDepthLimit {
		return false
	}
	return true
}

// MacroScore is the byte saving of fusing a pair observed count times:
// one dispatch byte saved per occurrence, less the implementation cost
// (a concatenation when the combined footprint fits 4 LUT longs, else a
// call+jmp pair). Kept pure so the compression loop stays a plain
// best-candidate sweep.
func MacroScore(a, b *Descriptor, count int) int {
	impl := a.ImplLongs + b.ImplLongs
	if impl > 4 {
		impl = 2 // call+jmp pair
	}
	return count - impl
}

func (p *Packer) bestMacro(progs []Program) (*macroCandidate, int) {
	counts := make(map[[2]*Descriptor]int)
	for _, prog := range progs {
		for i := range prog {
			if prog[i].Deleted {
				continue
			}
			j := nextInstr(prog, i+1)
			if j < 0 {
				break
			}
			a, b := prog[i].BC, prog[j].BC
			if !Eligible(a, b) {
				continue
			}
			counts[[2]*Descriptor{a, b}]++
		}
	}
	var best *macroCandidate
	bestScore := 0
	keys := make([][2]*Descriptor, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		if keys[i][0].Op != keys[j][0].Op {
			return keys[i][0].Op < keys[j][0].Op
		}
		return keys[i][1].Op < keys[j][1].Op
	})
	for _, k := range keys {
		score := MacroScore(k[0], k[1], counts[k])
		if score > bestScore {
			best = &macroCandidate{first: k[0], second: k[1], count: counts[k]}
			bestScore = score
		}
	}
	return best, bestScore
}

// applyMacro creates the fused descriptor, rewrites every adjacent
// (A, B) IR site to reference it, and splices out the consumed
// neighbour.
func (p *Packer) applyMacro(c *macroCandidate, progs []Program) {
	if c == nil {
		return
	}
	m := &Descriptor{
		Op:     c.first.Op,
		First:  c.first,
		Second: c.second,
		Slot:   p.nextSlot,
		Depth:  c.first.Depth + c.second.Depth,
	}
	impl := c.first.ImplLongs + c.second.ImplLongs
	if impl > 4 {
		impl = 2
	}
	m.ImplLongs = impl
	p.descs[m.key()] = m
	p.assigned = append(p.assigned, m)
	p.nextSlot++

	for _, prog := range progs {
		for i := range prog {
			if prog[i].Deleted || prog[i].BC != c.first {
				continue
			}
			j := nextInstr(prog, i+1)
			if j < 0 || prog[j].BC != c.second {
				continue
			}
			prog[i].BC = m
			prog[j].Deleted = true
			m.Count++
			c.first.Count--
			c.second.Count--
		}
	}
}

// Assignment is the finished dispatch table.
type Assignment struct {
	// Slots maps slot number to descriptor for every assigned entry,
	// including the 4 reserved ones.
	Slots map[int]*Descriptor
	// Assigned lists the non-reserved entries in slot order.
	Assigned []*Descriptor
}

func (p *Packer) assignment() *Assignment {
	a := &Assignment{Slots: make(map[int]*Descriptor)}
	for _, d := range p.descs {
		if d.Slot >= 0 {
			a.Slots[d.Slot] = d
		}
	}
	a.Assigned = append(a.Assigned, p.assigned...)
	sort.Slice(a.Assigned, func(i, j int) bool { return a.Assigned[i].Slot < a.Assigned[j].Slot })
	return a
}

// CanFuse reports whether a pair of opcodes is even potentially fusable,
// before descriptor assignment exists; the peephole uses it to avoid
// proposing pairs the packer must reject.
func CanFuse(a, b Op) bool {
	if IsBranch(a) || IsBranch(b) {
		return false
	}
	if a == OpINLINEASM || b == OpINLINEASM {
		return false
	}
	return true
}
