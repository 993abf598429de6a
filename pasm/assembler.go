package pasm

import (
	"github.com/totalspectrum/propcore/internal/flex"
)

// P2 field positions: cond in bits 31..28, dst in 17..9, src in 8..0,
// src-imm at bit 18. A dst immediate borrows the wz bit position, which
// is why some forms refuse a first-operand immediate.
const (
	p2BitImmSrc = 1 << 18
	p2BitImmDst = p2BitWZ
	p2CondShift = 28
)

// Address-space boundaries for branch checks: cog register
// space, LUT, then hub.
const (
	cogTop = 0x1F8
	lutTop = 0x400
)

// Assembler encodes a stream of decoded instructions into bytes plus
// relocations: a single-pass byte-emitting encoder over the 32-bit P1/P2
// instruction stream with AUG prefixes and cog/hub/LUT boundary checks.
type Assembler struct {
	IsP2   bool
	Rev    SiliconRev
	Table  *Table
	Code   *flex.Buffer
	Relocs RelocList
	PC     int // current program counter, in bytes
	InHub  bool
	InLUT  bool

	// Resolve maps a label operand to its address and memory space; nil
	// leaves label operands as zero-valued relocation targets.
	Resolve func(name string) (addr int, inHub bool, ok bool)

	// EnableCompression turns on the speculative 16-bit rotation pass for
	// instructions tagged CompressInstr.
	EnableCompression bool

	errors   []error
	warnings []error
}

func NewAssembler(isP2 bool, table *Table) *Assembler {
	return &Assembler{IsP2: isP2, Rev: RevB, Table: table, Code: flex.New(256)}
}

func (a *Assembler) Errors() []error   { return a.errors }
func (a *Assembler) Warnings() []error { return a.warnings }

func (a *Assembler) fail(err error) {
	a.errors = append(a.errors, err)
}

func (a *Assembler) warn(err error) {
	a.warnings = append(a.warnings, err)
}

// Emit encodes one decoded instruction at the assembler's current PC,
// applying AUG-prefix emission, branch-range computation, and
// cog/hub/LUT boundary checks, then advances PC.
func (a *Assembler) Emit(d *DecodedInstruction) {
	if d.Instr.Mnemonic == "brk" && d.HasCond && d.Cond != condAlways {
		a.warn(&Error{Kind: ErrConditionalBrkDoesNotWork, Mnemonic: "brk", Detail: "conditional brk does not work on this silicon", IsWarning: true})
	}
	if d.Instr.Mnemonic == "rep" {
		a.emitRep(d)
		return
	}
	if d.Instr.BranchRangeBits > 0 && a.resolveBranch(d) {
		return // emitted through the relative or promoted indirect form
	}

	a.emitAugPrefixes(d)

	word := a.encodeWord(d)
	if a.EnableCompression && d.Instr.CompressInstr && a.compressible(d) {
		half := compress32to16(word)
		a.Code.WriteByte(byte(half))
		a.Code.WriteByte(byte(half >> 8))
		a.PC += 2
		return
	}
	a.writeLong(word)
}

// emitAugPrefixes writes the AUGS/AUGD prefix for ## operands, masking
// the operand to 9 bits afterward. A ## whose value already fits 9 bits
// (and carries no relocation) suppresses the prefix entirely. When the
// operand is a relocation target, the relocation kind is promoted to
// AUGS/AUGD and attached at the prefix's offset so the loader patches
// both halves.
func (a *Assembler) emitAugPrefixes(d *DecodedInstruction) {
	if d.BigImmSrc {
		a.emitOneAug(&d.Operands[srcIndex(d)], false)
	}
	if d.BigImmDst {
		a.emitOneAug(&d.Operands[0], true)
	}
}

func (a *Assembler) emitOneAug(op *Operand, isDst bool) {
	if op.Reloc == nil && op.Value >= 0 && op.Value < 512 {
		// AUG followed by nothing: suppressed.
		op.Imm = ImmShort
		return
	}
	mnemonic := "augs"
	kind := RelocAugsImm
	if isDst {
		mnemonic = "augd"
		kind = RelocAugdImm
	}
	tmpl := a.Table.Lookup(mnemonic)
	var word uint32
	if tmpl != nil {
		word = tmpl.Template
	}
	word |= uint32(op.Value>>9) & 0x7FFFFF
	if op.Reloc != nil {
		a.Relocs.Add(Reloc{Kind: kind, Offset: a.Code.Len(), Symbol: op.Reloc, SymbolOffset: op.RelocOffset})
		op.Reloc = nil
	}
	a.writeLong(word)
	op.Value &= 0x1FF
}

// srcIndex returns the operand index that lands in the src field.
func srcIndex(d *DecodedInstruction) int {
	if d.NumOps >= 2 {
		return 1
	}
	return 0
}

// resolveBranch handles relative-branch encoding: compute
// (target - (PC+4))/4, validate range, and promote to the indirect form
// on overflow when the table has one. Returns true if the instruction
// was fully emitted here.
func (a *Assembler) resolveBranch(d *DecodedInstruction) bool {
	var target Operand
	found := false
	for i := 0; i < d.NumOps; i++ {
		if d.Operands[i].Kind == OperandImmediateLabel {
			target = d.Operands[i]
			found = true
			break
		}
	}
	if !found || a.Resolve == nil {
		return false
	}
	addr, inHub, ok := a.Resolve(target.Label)
	if !ok {
		return false
	}
	if err := a.checkBoundarySpaces(a.PC, addr, a.InHub, inHub); err != nil {
		a.fail(err)
		return false
	}

	disp := (addr - (a.PC + 4)) / 4
	limit := 1 << uint(d.Instr.BranchRangeBits-1)
	if disp >= limit || disp < -limit {
		if d.Instr.IndirectForm != "" {
			if ind := a.Table.Lookup(d.Instr.IndirectForm); ind != nil {
				// No error, no warning: the absolute form covers the
				// whole address space. calld to
				// pa/pb/ptra/ptrb auto-selects its loc form the same way.
				word := ind.Template | a.condBits(d) | d.EffectBits
				word |= uint32(addr) & ((1 << 20) - 1)
				a.writeLong(word)
				return true
			}
		}
		a.fail(newErr(ErrBranchOutOfRange, d.Instr.Mnemonic, "branch displacement out of range"))
		return false
	}

	mask := uint32(1)<<uint(d.Instr.BranchRangeBits) - 1
	word := d.Instr.Template | a.condBits(d) | d.EffectBits
	if d.Instr.BranchRangeBits > 9 {
		word |= uint32(disp) & mask
	} else {
		// 9-bit displacement lives in the src field; dst keeps its
		// register operand (djnz/tjz style).
		word |= a.operandField(d, 0, true)
		word |= uint32(disp) & mask
	}
	a.writeLong(word)
	return true
}

// emitRep handles `rep` with an @label operand: the count field is the
// number of 4-byte instruction slots between the current PC and the
// label. No adjustment is made for AUG prefixes: each one in the range is
// counted as an instruction.
func (a *Assembler) emitRep(d *DecodedInstruction) {
	if d.NumOps > 0 && d.Operands[0].Kind == OperandImmediateLabel && a.Resolve != nil {
		if addr, _, ok := a.Resolve(d.Operands[0].Label); ok {
			count := (addr - (a.PC + 4)) / 4
			if count < 0 {
				count = 0
			}
			d.Operands[0] = Operand{Kind: OperandImmediate, Imm: ImmShort, Value: int64(count)}
		}
	}
	a.writeLong(a.encodeWord(d))
}

// encodeWord ORs the decoded operands, condition code, and effect bits
// into the instruction's template.
func (a *Assembler) encodeWord(d *DecodedInstruction) uint32 {
	word := d.Instr.Template
	word = a.applyCond(word, d)
	word |= d.EffectBits

	switch d.Instr.Form {
	case FormNone:
		return word
	case FormSrcOnly:
		word |= a.operandField(d, 0, false)
	case FormDstOnly, FormP2DstConstOK:
		word |= a.operandField(d, 0, true)
	case FormThreeOperandNibble:
		word |= a.operandField(d, 0, true) | a.operandField(d, 1, false)
		word |= uint32(d.Operands[2].Value&0x7) << 19
	case FormThreeOperandByte:
		word |= a.operandField(d, 0, true) | a.operandField(d, 1, false)
		word |= uint32(d.Operands[2].Value&0x3) << 19
	case FormThreeOperandWord:
		word |= a.operandField(d, 0, true) | a.operandField(d, 1, false)
		word |= uint32(d.Operands[2].Value&0x1) << 19
	default:
		if d.NumOps > 0 {
			word |= a.operandField(d, 0, true)
		}
		if d.NumOps > 1 {
			word |= a.operandField(d, 1, false)
		}
	}
	return word
}

// operandField encodes operand i into the dst (bits 17..9) or src (bits
// 8..0) field, setting the appropriate immediate bit and emitting a
// relocation when the operand's value is link-time.
func (a *Assembler) operandField(d *DecodedInstruction, i int, isDst bool) uint32 {
	op := &d.Operands[i]
	var val uint32

	switch op.Kind {
	case OperandHubPtrRegister:
		val = EncodePtrOperand(op, a.Rev)
	case OperandImmediateLabel:
		if op.Reloc != nil {
			a.addInstrReloc(d, op)
		} else if a.Resolve != nil {
			if addr, _, ok := a.Resolve(op.Label); ok {
				val = uint32(addr) & 0x1FF
			}
		}
	default:
		val = uint32(op.Value) & 0x1FF
		if op.Kind == OperandImmediate && (op.Value > 511 || op.Value < 0) && op.Imm == ImmShort {
			a.fail(newErr(ErrOutOfRangeImmediate, d.Instr.Mnemonic, "immediate does not fit 9-bit field; use ##"))
		}
	}

	var field uint32
	if isDst {
		field = val << 9
	} else {
		field = val
	}
	field |= a.immBit(d, op, isDst)
	return field
}

func (a *Assembler) immBit(d *DecodedInstruction, op *Operand, isDst bool) uint32 {
	if op.Imm == ImmNone {
		return 0
	}
	if !a.IsP2 {
		if !isDst {
			return p1BitImm
		}
		return 0
	}
	if isDst {
		switch d.Instr.Form {
		case FormP2TwoOperandsBothImmOK, FormP2DstConstOK, FormDstOnly:
			return p2BitImmDst
		}
		return 0
	}
	return p2BitImmSrc
}

// addInstrReloc records a relocation against the current instruction.
// One instruction cannot carry both a src and a dst relocation.
func (a *Assembler) addInstrReloc(d *DecodedInstruction, op *Operand) {
	for _, r := range a.Relocs.entries {
		if r.Offset == a.Code.Len() {
			a.fail(newErr(ErrDoubleRelocation, d.Instr.Mnemonic, "instruction already carries a relocation"))
			return
		}
	}
	a.Relocs.Add(Reloc{Kind: RelocAbs32, Offset: a.Code.Len(), Symbol: op.Reloc, SymbolOffset: op.RelocOffset})
}

// applyCond replaces the template's condition field when a condition-code
// modifier was given.
func (a *Assembler) applyCond(word uint32, d *DecodedInstruction) uint32 {
	if !d.HasCond {
		return word
	}
	if a.IsP2 {
		word &^= uint32(0xF) << p2CondShift
		word |= uint32(d.Cond) << p2CondShift
	} else {
		word &^= uint32(0xF) << p1CondShift
		word |= uint32(d.Cond) << p1CondShift
	}
	if d.ClearWR {
		word &^= p1BitWR
	}
	return word
}

func (a *Assembler) condBits(d *DecodedInstruction) uint32 {
	if !d.HasCond {
		if a.IsP2 {
			return uint32(condAlways) << p2CondShift
		}
		return uint32(p1CondAlways) << p1CondShift
	}
	if a.IsP2 {
		return uint32(d.Cond) << p2CondShift
	}
	return uint32(d.Cond) << p1CondShift
}

func (a *Assembler) writeLong(word uint32) {
	a.Code.WriteByte(byte(word))
	a.Code.WriteByte(byte(word >> 8))
	a.Code.WriteByte(byte(word >> 16))
	a.Code.WriteByte(byte(word >> 24))
	a.PC += 4
}

// compressible reports whether this instance of an otherwise-compressible
// instruction is actually eligible: condition always, no relocation, no
// AUG prefix needed.
func (a *Assembler) compressible(d *DecodedInstruction) bool {
	if d.HasCond && d.Cond != condAlways {
		return false
	}
	if d.BigImmSrc || d.BigImmDst {
		return false
	}
	for i := 0; i < d.NumOps; i++ {
		if d.Operands[i].Reloc != nil {
			return false
		}
	}
	return true
}

// compress32to16 rotates the 32-bit encoding:
// (val >> 14) | (val << 18), producing a 16-bit emittable form. The
// matching runtime stub rotates back before dispatch.
func compress32to16(val uint32) uint16 {
	return uint16((val >> 14) | (val << 18))
}

// checkBoundarySpaces implements the cog/hub/LUT boundary rule: a
// branch crossing cog<->hub is an error; cog<->LUT inside a cog block is
// accepted with a note (the silicon allows it).
func (a *Assembler) checkBoundarySpaces(fromAddr, toAddr int, fromHub, toHub bool) error {
	if fromHub != toHub {
		return newErr(ErrBranchOutOfRange, "branch", "branch crosses cog/hub boundary")
	}
	if !fromHub {
		fromLUT := fromAddr >= cogTop && fromAddr < lutTop
		toLUT := toAddr >= cogTop && toAddr < lutTop
		if fromLUT != toLUT {
			a.warn(&Error{Kind: ErrBranchOutOfRange, Mnemonic: "branch", Detail: "branch crosses cog/LUT boundary", IsWarning: true})
		}
	}
	return nil
}

// CheckBoundary is the exported form used by the DAT serializer when it
// lays instructions without going through Emit.
func (a *Assembler) CheckBoundary(fromHub, toHub bool) error {
	return a.checkBoundarySpaces(0, 0, fromHub, toHub)
}

// ComputeBranchDisplacement implements the relative-branch rule in
// isolation, for callers that resolve addresses themselves: (target -
// (pc+4))/4, validated against the field width. A zero displacement with
// a nil error means "use the indirect fallback form".
func (a *Assembler) ComputeBranchDisplacement(mnemonic string, targetAddr, pc int, rangeBits int) (int32, error) {
	disp := (targetAddr - (pc + 4)) / 4
	limit := 1 << uint(rangeBits-1)
	if disp >= limit || disp < -limit {
		if instr := a.Table.Lookup(mnemonic); instr != nil && instr.IndirectForm != "" {
			if a.Table.Lookup(instr.IndirectForm) != nil {
				return 0, nil
			}
		}
		return 0, newErr(ErrBranchOutOfRange, mnemonic, "displacement out of range")
	}
	return int32(disp), nil
}
