package nubc

import (
	"fmt"
	"strings"

	"github.com/totalspectrum/propcore/internal/flex"
)

// ConstForm classifies how a constant-specialized opcode's
// implementation loads its value: 0..511 uses the
// plain 9-bit immediate form, 512..65535 a ##-prefixed 2-byte form, and
// everything else the full 4-byte form.
type ConstForm int

const (
	ConstFormSmall ConstForm = iota // mov tos, #k
	ConstFormWord                   // mov tos, ##k (16-bit)
	ConstFormLong                   // mov tos, ##k (32-bit)
)

func ConstFormOf(k int64) ConstForm {
	if k >= 0 && k < 512 {
		return ConstFormSmall
	}
	if k >= 512 && k < 65536 {
		return ConstFormWord
	}
	return ConstFormLong
}

// ConstImplSource renders the implementation of a constant-specialized
// opcode.
func ConstImplSource(k int64) string {
	var b strings.Builder
	fmt.Fprintf(&b, "impl_CONST_%d\n", k)
	b.WriteString("\tcall\t#\\impl_DUP\n")
	switch ConstFormOf(k) {
	case ConstFormSmall:
		fmt.Fprintf(&b, "_ret_\tmov\ttos, #%d\n", k)
	default:
		fmt.Fprintf(&b, "_ret_\tmov\ttos, ##%d\n", k)
	}
	return b.String()
}

// Emitter serializes optimized, packed programs to the bytecode stream.
// Labels resolve in two passes: a sizing pass computes every
// instruction's offset, then the emission pass writes displacement
// fields against those offsets.
type Emitter struct {
	Assignment *Assignment
	Code       *flex.Buffer

	labelAddr map[string]int
	errors    []error
}

func NewEmitter(a *Assignment) *Emitter {
	return &Emitter{Assignment: a, Code: flex.New(256), labelAddr: make(map[string]int)}
}

func (e *Emitter) Errors() []error { return e.errors }

// instrSize returns the encoded size of one instruction under the
// current assignment.
func (e *Emitter) instrSize(ins *Instr) int {
	if ins.Deleted || ins.Op == OpLABEL {
		return 0
	}
	d := ins.BC
	if d != nil && d.Slot >= firstFreeSlot {
		if isRelBranch(ins.Op) {
			return 3 // slot byte + 16-bit displacement
		}
		return 1
	}
	switch ins.Op {
	case OpPUSHI, OpPUSHA:
		return 5 // reserved slot byte + 32-bit immediate
	case OpCALLA:
		return 5
	default:
		if isRelBranch(ins.Op) {
			return 3
		}
		if d == nil || d.Slot < 0 {
			return 3 // DIRECT: opcode byte + 16-bit impl address
		}
		return 1
	}
}

func isRelBranch(op Op) bool {
	switch op {
	case OpBRA, OpBRA3, OpBZ, OpBNZ, OpDJNZ, OpDJNZ_FAST, OpJMP, OpGOSUB:
		return true
	}
	return IsCBxx(op)
}

// EmitProgram serializes one program. By construction every emitted
// dispatch byte is a slot in [0, 256) and each logical descriptor owns
// exactly one slot.
func (e *Emitter) EmitProgram(p Program) {
	base := e.Code.Len()
	off := base
	for _, ins := range p {
		if ins.Deleted {
			continue
		}
		if ins.Op == OpLABEL {
			e.labelAddr[ins.Arg] = off
			continue
		}
		off += e.instrSize(ins)
	}

	for _, ins := range p {
		if ins.Deleted || ins.Op == OpLABEL {
			continue
		}
		e.emitOne(ins)
	}
}

func (e *Emitter) emitOne(ins *Instr) {
	d := ins.BC
	cur := e.Code.Len()
	size := e.instrSize(ins)

	slot := -1
	if d != nil {
		slot = d.Slot
	}

	switch {
	case slot >= firstFreeSlot:
		e.Code.WriteByte(byte(slot))
		if isRelBranch(ins.Op) {
			e.writeDisp(ins, cur+size)
		}
	case ins.Op == OpPUSHI:
		e.Code.WriteByte(SlotPUSHI)
		e.writeLE32(uint32(ins.Imm))
	case ins.Op == OpPUSHA:
		e.Code.WriteByte(SlotPUSHA)
		e.writeLE32(uint32(e.labelAddr[ins.Label]))
	case ins.Op == OpCALLA:
		e.Code.WriteByte(SlotCALLA)
		e.writeLE32(uint32(e.labelAddr[ins.Label]))
	case isRelBranch(ins.Op):
		if slot < 0 {
			e.errors = append(e.errors, fmt.Errorf("nubc: branch opcode %s lost its dispatch slot", ins.Op))
			e.Code.WriteByte(SlotDIRECT)
			e.Code.WriteByte(0)
			e.Code.WriteByte(0)
			return
		}
		e.Code.WriteByte(byte(slot))
		e.writeDisp(ins, cur+size)
	default:
		// DIRECT fallthrough: 3-byte form carrying the implementation's
		// COG/LUT address.
		addr := 0
		if d != nil {
			addr = d.ImplAddr
		}
		e.Code.WriteByte(SlotDIRECT)
		e.Code.WriteByte(byte(addr))
		e.Code.WriteByte(byte(addr >> 8))
	}
}

func (e *Emitter) writeDisp(ins *Instr, nextPC int) {
	target, ok := e.labelAddr[ins.Label]
	disp := 0
	if ok {
		disp = target - nextPC
	}
	if disp > 32767 || disp < -32768 {
		e.errors = append(e.errors, fmt.Errorf("nubc: branch to %q out of 16-bit range", ins.Label))
		disp = 0
	}
	e.Code.WriteByte(byte(disp))
	e.Code.WriteByte(byte(disp >> 8))
}

func (e *Emitter) writeLE32(v uint32) {
	e.Code.WriteByte(byte(v))
	e.Code.WriteByte(byte(v >> 8))
	e.Code.WriteByte(byte(v >> 16))
	e.Code.WriteByte(byte(v >> 24))
}

// TableLongs renders the dispatch table: a 4-entry jump table
// header (DIRECT, PUSHI, PUSHA, CALLA) followed by one long per assigned
// opcode, encoded as (impl_addr<<16)|trampoline when the implementation
// lives in hub memory.
func TableLongs(a *Assignment, trampolineAddr int) []uint32 {
	longs := make([]uint32, 0, 4+len(a.Assigned))
	for _, op := range []Op{OpDIRECT, OpPUSHI, OpPUSHA, OpCALLA} {
		info := implFor(op)
		longs = append(longs, uint32(info.Offset))
	}
	for _, d := range a.Assigned {
		if d.ImplInHub {
			longs = append(longs, uint32(d.ImplAddr)<<16|uint32(trampolineAddr))
		} else {
			longs = append(longs, uint32(d.ImplAddr))
		}
	}
	return longs
}

// InterpreterSource renders the complete Nu output module: interpreter preamble, the dispatch table, the interpreter's
// per-opcode implementations in source order, the synthesized
// constant/macro implementations in slot order, the bytecode stream as
// byte directives, then the interpreter epilogue.
func InterpreterSource(a *Assignment, bytecode []byte) string {
	var b strings.Builder
	preambleEnd := strings.Index(interpSource, "impl_DIRECT")
	if preambleEnd < 0 {
		preambleEnd = len(interpSource)
	}
	b.WriteString(interpSource[:preambleEnd])

	b.WriteString("\n__opcode_table\n")
	for _, l := range TableLongs(a, 0) {
		fmt.Fprintf(&b, "\tlong\t$%08x\n", l)
	}

	epilogueStart := strings.Index(interpSource, "__trampoline")
	implEnd := epilogueStart
	if implEnd < preambleEnd {
		implEnd = len(interpSource)
	}
	b.WriteString("\n")
	b.WriteString(interpSource[preambleEnd:implEnd])

	for _, d := range a.Assigned {
		if d.Op == OpPUSHI && d.HasImm {
			b.WriteString("\n")
			b.WriteString(ConstImplSource(d.Imm))
		}
		if d.IsMacro() {
			fmt.Fprintf(&b, "\nimpl_MACRO_%d\n", d.Slot)
			fmt.Fprintf(&b, "\tcall\t#\\impl_%s\n", d.First.Op)
			fmt.Fprintf(&b, "\tjmp\t#\\impl_%s\n", d.Second.Op)
		}
	}

	b.WriteString("\n__bytecode_start\n")
	for i := 0; i < len(bytecode); i += 16 {
		end := i + 16
		if end > len(bytecode) {
			end = len(bytecode)
		}
		b.WriteString("\tbyte\t")
		for j := i; j < end; j++ {
			if j > i {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "$%02x", bytecode[j])
		}
		b.WriteString("\n")
	}

	if epilogueStart >= preambleEnd {
		b.WriteString("\n")
		b.WriteString(interpSource[epilogueStart:])
	}
	return b.String()
}
