package pasm

// OperandKind tags what an operand is.
type OperandKind int

const (
	OperandNone OperandKind = iota
	OperandImmediate
	OperandImmediateLabel // cog/hub label
	OperandString
	OperandBlob
	OperandHWReg
	OperandRegister // regular/local/temp register
	OperandHubPtrRegister
	OperandArgRegister
	OperandResultRegister
	OperandSubRegister // offset into a composite register
	OperandMemory       // hub or cog memory reference, plus offset/size
	OperandDataDef
	OperandPCRelative
)

// ImmKind records whether an operand used #, ##, or neither.
type ImmKind int

const (
	ImmNone ImmKind = iota
	ImmShort                 // # — fits the instruction's native immediate field
	ImmBigSrc                 // ## on the source operand, needs AUGS
	ImmBigDst                 // ## on the destination operand, needs AUGD
)

// PtrIndexMode enumerates the read/write pointer-indexing forms:
// ptra++[n], ptra[n], ++ptra, --ptra, and the ptrb variants.
type PtrIndexMode int

const (
	PtrIndexNone PtrIndexMode = iota
	PtrIndexPostInc
	PtrIndexPreInc
	PtrIndexPreDec
	PtrIndexAbsolute
)

// Operand is a decoded instruction operand.
type Operand struct {
	Kind  OperandKind
	Imm   ImmKind
	Value int64  // immediate value, register number, or memory offset
	Label string // symbol name for label/memory-reference operands
	Size  int    // OperandMemory: access width in bytes

	// Reloc is non-nil when the operand's value is only known at link
	// time; Emit turns it into a relocation record, promoted to
	// AUGS/AUGD when the operand needed a ## prefix.
	Reloc       *Symbol
	RelocOffset int

	// Pointer-indexing (P2_RDWR_OPERANDS).
	PtrReg   string // "ptra" or "ptrb"
	PtrMode  PtrIndexMode
	PtrIndex int
}

// DecodedInstruction is the result of decode_operands(instr, ast).
type DecodedInstruction struct {
	Instr     *Instruction
	Operands  [3]Operand
	NumOps    int
	Cond       uint8 // 4-bit condition code, from a condition-code modifier
	HasCond    bool
	Flags      FlagMask
	EffectBits uint32 // opcode bits contributed by effect modifiers
	ClearWR    bool   // P1 "nr" modifier: suppress result writeback
	BigImmSrc  bool
	BigImmDst  bool
}

// DefaultOperand fills in the optional/defaulted-operand rules for
// instructions given fewer operands than their form expects:
//   alti x          -> alti x, #0x164
//   modc x          -> modcz x, 0
//   getrnd (none)   -> getrnd 0 (no wc effect is added)
//   three-operand instruction given one operand:
//     SET-style -> (0, op, #0); GET-style -> (op, 0, #0)
func DefaultOperand(instr *Instruction, ops []Operand) []Operand {
	switch instr.Mnemonic {
	case "alti":
		if len(ops) == 1 {
			return []Operand{ops[0], {Kind: OperandImmediate, Imm: ImmShort, Value: 0x164}}
		}
	case "modc":
		if len(ops) == 1 {
			return []Operand{ops[0], {Kind: OperandImmediate, Imm: ImmShort, Value: 0}}
		}
	case "getrnd":
		if len(ops) == 0 {
			return []Operand{{Kind: OperandImmediate, Imm: ImmShort, Value: 0}}
		}
	}
	switch instr.Form {
	case FormThreeOperandNibble, FormThreeOperandByte, FormThreeOperandWord:
		if len(ops) == 1 {
			if isSetForm(instr.Mnemonic) {
				return []Operand{{Kind: OperandImmediate, Value: 0}, ops[0], {Kind: OperandImmediate, Imm: ImmShort, Value: 0}}
			}
			return []Operand{ops[0], {Kind: OperandImmediate, Value: 0}, {Kind: OperandImmediate, Imm: ImmShort, Value: 0}}
		}
	}
	return ops
}

func isSetForm(mnemonic string) bool {
	// SETxxx mnemonics write into the destination field; GETxxx read from
	// it. muxnib/setbyte/setword are all SET-style in this table.
	return len(mnemonic) >= 3 && mnemonic[:3] != "get"
}

// ImmediateBit reports which encoding bit (src or dst) an immediate
// marker (#, ##) sets for the given operand position: P1
// always uses the single IMMEDIATE_INSTR bit; P2 maps to src-imm or
// dst-imm depending on position, and FormP2TwoOperandsBothImmOK allows
// both.
func ImmediateBit(instr *Instruction, isP2 bool, operandIndex int) (srcBit, dstBit bool) {
	if !isP2 {
		return true, false
	}
	switch instr.Form {
	case FormP2TwoOperandsBothImmOK:
		return true, true
	case FormTwoOperands, FormTwoOperandsOptSecond, FormTwoOperandsDefz:
		if operandIndex == 0 {
			return false, true // destination is operand 0
		}
		return true, false
	case FormSrcOnly:
		return true, false
	case FormDstOnly:
		return false, true
	default:
		return true, false
	}
}
