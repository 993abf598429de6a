package pasm

// Modifiers are either condition codes (filling the 4-bit condition
// field) or effect flags (setting wc/wz/... bits). A condition-code
// modifier replaces the condition field; effect modifiers OR into the
// fixed flag nibble, and any operand-shape bits they carry are OR-ed
// into the opcode and validated against the instruction's allowed-flags
// mask.
type Modifier struct {
	Name string

	// Condition-code modifiers.
	IsCond bool
	Cond   uint8 // 4-bit condition value

	// Effect modifiers.
	Flags FlagMask
	// OpcodeBits carries operand-shape bits for modifiers that encode a
	// test kind into the opcode itself (the andc/andz/orc/... family on
	// testp/testb uses the wc/wz bit positions as a 2-bit selector).
	OpcodeBits uint32
}

// P2 condition-field values. The field sits in bits 31..28 of every P2
// instruction; value 0 is _ret_ and value 15 is "always".
const (
	condRet    = 0x0
	condAlways = 0xF
)

var p2CondModifiers = []Modifier{
	{Name: "_ret_", IsCond: true, Cond: condRet},
	{Name: "if_nc_and_nz", IsCond: true, Cond: 0x1},
	{Name: "if_a", IsCond: true, Cond: 0x1},
	{Name: "if_gt", IsCond: true, Cond: 0x1},
	{Name: "if_nc_and_z", IsCond: true, Cond: 0x2},
	{Name: "if_nc", IsCond: true, Cond: 0x3},
	{Name: "if_ae", IsCond: true, Cond: 0x3},
	{Name: "if_ge", IsCond: true, Cond: 0x3},
	{Name: "if_c_and_nz", IsCond: true, Cond: 0x4},
	{Name: "if_nz", IsCond: true, Cond: 0x5},
	{Name: "if_ne", IsCond: true, Cond: 0x5},
	{Name: "if_c_ne_z", IsCond: true, Cond: 0x6},
	{Name: "if_nc_or_nz", IsCond: true, Cond: 0x7},
	{Name: "if_c_and_z", IsCond: true, Cond: 0x8},
	{Name: "if_c_eq_z", IsCond: true, Cond: 0x9},
	{Name: "if_z", IsCond: true, Cond: 0xA},
	{Name: "if_e", IsCond: true, Cond: 0xA},
	{Name: "if_nc_or_z", IsCond: true, Cond: 0xB},
	{Name: "if_c", IsCond: true, Cond: 0xC},
	{Name: "if_b", IsCond: true, Cond: 0xC},
	{Name: "if_lt", IsCond: true, Cond: 0xC},
	{Name: "if_c_or_nz", IsCond: true, Cond: 0xD},
	{Name: "if_c_or_z", IsCond: true, Cond: 0xE},
	{Name: "if_be", IsCond: true, Cond: 0xE},
	{Name: "if_le", IsCond: true, Cond: 0xE},
	{Name: "if_always", IsCond: true, Cond: condAlways},
}

// P2 effect-flag bit positions: C result at bit 20, Z result at bit 19.
const (
	p2BitWC = 1 << 20
	p2BitWZ = 1 << 19
)

var p2EffectModifiers = []Modifier{
	{Name: "wc", Flags: FlagWC, OpcodeBits: p2BitWC},
	{Name: "wz", Flags: FlagWZ, OpcodeBits: p2BitWZ},
	{Name: "wcz", Flags: FlagWCZ, OpcodeBits: p2BitWC | p2BitWZ},
	// The test-kind family: these reuse the wc/wz bit positions as a
	// 2-bit selector, so they can never combine with wc/wz on the same
	// instruction and the table's AllowFlags mask gates them.
	{Name: "andc", Flags: FlagANDC, OpcodeBits: p2BitWC},
	{Name: "andz", Flags: FlagANDZ, OpcodeBits: p2BitWZ},
	{Name: "orc", Flags: FlagORC, OpcodeBits: p2BitWC},
	{Name: "orz", Flags: FlagORZ, OpcodeBits: p2BitWZ},
	{Name: "xorc", Flags: FlagXORC, OpcodeBits: p2BitWC},
	{Name: "xorz", Flags: FlagXORZ, OpcodeBits: p2BitWZ},
}

// P1 bit positions: Z result at bit 25, C result at bit 24, cond field at
// bits 21..18.
const (
	p1BitWZ       = 1 << 25
	p1BitWC       = 1 << 24
	p1BitWR       = 1 << 23
	p1BitImm      = 1 << 22
	p1CondShift   = 18
	p1CondAlways  = 0xF
)

var p1CondModifiers = []Modifier{
	{Name: "if_never", IsCond: true, Cond: 0x0},
	{Name: "if_a", IsCond: true, Cond: 0x1},
	{Name: "if_nc_and_nz", IsCond: true, Cond: 0x1},
	{Name: "if_nc_and_z", IsCond: true, Cond: 0x2},
	{Name: "if_nc", IsCond: true, Cond: 0x3},
	{Name: "if_ae", IsCond: true, Cond: 0x3},
	{Name: "if_c_and_nz", IsCond: true, Cond: 0x4},
	{Name: "if_nz", IsCond: true, Cond: 0x5},
	{Name: "if_ne", IsCond: true, Cond: 0x5},
	{Name: "if_c_ne_z", IsCond: true, Cond: 0x6},
	{Name: "if_nc_or_nz", IsCond: true, Cond: 0x7},
	{Name: "if_c_and_z", IsCond: true, Cond: 0x8},
	{Name: "if_c_eq_z", IsCond: true, Cond: 0x9},
	{Name: "if_z", IsCond: true, Cond: 0xA},
	{Name: "if_e", IsCond: true, Cond: 0xA},
	{Name: "if_nc_or_z", IsCond: true, Cond: 0xB},
	{Name: "if_c", IsCond: true, Cond: 0xC},
	{Name: "if_b", IsCond: true, Cond: 0xC},
	{Name: "if_c_or_nz", IsCond: true, Cond: 0xD},
	{Name: "if_c_or_z", IsCond: true, Cond: 0xE},
	{Name: "if_be", IsCond: true, Cond: 0xE},
	{Name: "if_always", IsCond: true, Cond: p1CondAlways},
}

var p1EffectModifiers = []Modifier{
	{Name: "wc", Flags: FlagWC, OpcodeBits: p1BitWC},
	{Name: "wz", Flags: FlagWZ, OpcodeBits: p1BitWZ},
	{Name: "wr", Flags: 0, OpcodeBits: p1BitWR},
	{Name: "nr", Flags: 0, OpcodeBits: 0}, // clears WR; handled in ApplyModifier
}

// LookupModifier resolves a modifier name for the given target.
func LookupModifier(name string, isP2 bool) (Modifier, bool) {
	conds, effects := p1CondModifiers, p1EffectModifiers
	if isP2 {
		conds, effects = p2CondModifiers, p2EffectModifiers
	}
	for _, m := range conds {
		if m.Name == name {
			return m, true
		}
	}
	for _, m := range effects {
		if m.Name == name {
			return m, true
		}
	}
	return Modifier{}, false
}

// ApplyModifier folds one modifier into a decoded instruction, checking
// effect flags against the instruction's allowed-flags mask.
func ApplyModifier(d *DecodedInstruction, m Modifier) error {
	if m.IsCond {
		d.Cond = m.Cond
		d.HasCond = true
		return nil
	}
	if m.Flags != 0 && d.Instr.AllowFlags&m.Flags != m.Flags {
		return newErr(ErrWcWzNotAllowedHere, d.Instr.Mnemonic, "effect modifier "+m.Name+" not allowed on this instruction")
	}
	if d.Flags&m.Flags != 0 {
		return newErr(ErrWcWzNotAllowedHere, d.Instr.Mnemonic, "duplicate effect modifier "+m.Name)
	}
	// A test-kind modifier and a plain wc/wz share bit positions; both at
	// once would silently corrupt the encoding.
	if d.EffectBits&m.OpcodeBits != 0 && m.OpcodeBits != 0 {
		return newErr(ErrWcWzNotAllowedHere, d.Instr.Mnemonic, "conflicting effect modifiers")
	}
	d.Flags |= m.Flags
	d.EffectBits |= m.OpcodeBits
	if m.Name == "nr" {
		d.EffectBits &^= p1BitWR
		d.ClearWR = true
	}
	return nil
}
