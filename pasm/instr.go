// Package pasm implements the PASM assembler: an instruction table
// driving operand decode/encode, relocation emission, and the
// branch/AUG-prefix/compression machinery needed to turn a stream of
// instruction ASTs into bytes for the P1/P2 32-bit instruction formats.
package pasm

// OperandForm tags how an instruction's operands are shaped and decoded.
type OperandForm int

const (
	FormNone OperandForm = iota
	FormSrcOnly
	FormDstOnly
	FormTwoOperands
	FormTwoOperandsOptSecond
	FormCall
	FormJmpRet
	FormJmp
	FormP2TJZ
	FormP2JINT
	FormP2ReadWrite // allows post-increment operand forms
	FormP2DstConstOK
	FormP2Jump // auto-selects jmp/call/loc/etc.
	FormP2Loc  // dest is pa/pb/ptra/ptrb
	FormP2Calld
	FormP2TwoOperandsBothImmOK
	FormThreeOperandNibble
	FormThreeOperandByte
	FormThreeOperandWord
	FormP2Aug
	FormP2Modcz
	FormTwoOperandsDefz
)

// IROp tags the instruction for the optimiser's pattern matching.
type IROp int

const (
	IROpGeneric IROp = iota
	IROpMov
	IROpAdd
	IROpSub
	IROpCmp
	IROpAnd
	IROpOr
	IROpXor
	IROpShl
	IROpShr
	IROpSar
	IROpNeg
	IROpAbs
	IROpRead
	IROpWrite
	IROpJmp
	IROpCall
	IROpRet
	IROpDjnz
	IROpTest
)

// FlagMask is a bitmask of the wc/wz/wcz/andc/... modifiers an
// instruction accepts.
type FlagMask uint16

const (
	FlagWC FlagMask = 1 << iota
	FlagWZ
	FlagWCZ
	FlagANDC
	FlagANDZ
	FlagORC
	FlagORZ
	FlagXORC
	FlagXORZ
)

// flagsCZ is the common wc/wz/wcz trio most ALU instructions accept.
const flagsCZ = FlagWC | FlagWZ | FlagWCZ

// flagsTest is the full set accepted by the testp/testb family, whose
// effect bits double as a 2-bit test-kind selector.
const flagsTest = flagsCZ | FlagANDC | FlagANDZ | FlagORC | FlagORZ | FlagXORC | FlagXORZ

// Instruction is one entry of the mnemonic table.
type Instruction struct {
	Mnemonic   string
	Template   uint32 // 32-bit binary template with operand fields zeroed
	Form       OperandForm
	IROp       IROp
	AllowFlags FlagMask

	// BranchRangeBits is the width of the relative-displacement field for
	// relative branches; 0 for everything else.
	BranchRangeBits int
	// IndirectForm names the table entry to fall back to when a relative
	// branch overflows its field.
	IndirectForm string

	// CompressInstr marks instructions eligible for the 16-bit rotation
	// compression pass.
	CompressInstr bool
	// P2Only / P1Only restrict a mnemonic to one target; both false means
	// shared.
	P2Only, P1Only bool
}

// Table is the full instruction set, keyed by mnemonic.
type Table struct {
	byName map[string]*Instruction
}

func NewTable() *Table {
	return &Table{byName: make(map[string]*Instruction)}
}

func (t *Table) Add(instr *Instruction) {
	t.byName[instr.Mnemonic] = instr
}

func (t *Table) Lookup(mnemonic string) *Instruction {
	return t.byName[mnemonic]
}

// p2Instrs is the P2 instruction table. Templates have the condition
// field preset to "always" (0xF in bits 31..28) and all operand/effect
// bits zero; Emit fills those in.
var p2Instrs = []Instruction{
	// ALU, two operands, wc/wz/wcz allowed; the hottest compile down to
	// the 16-bit rotated form when the compression tag is set.
	{Mnemonic: "mov", Template: 0xF6000000, Form: FormTwoOperands, IROp: IROpMov, AllowFlags: flagsCZ, CompressInstr: true},
	{Mnemonic: "add", Template: 0xF1000000, Form: FormTwoOperands, IROp: IROpAdd, AllowFlags: flagsCZ, CompressInstr: true},
	{Mnemonic: "addx", Template: 0xF1200000, Form: FormTwoOperands, IROp: IROpAdd, AllowFlags: flagsCZ},
	{Mnemonic: "adds", Template: 0xF1400000, Form: FormTwoOperands, IROp: IROpAdd, AllowFlags: flagsCZ},
	{Mnemonic: "addsx", Template: 0xF1600000, Form: FormTwoOperands, IROp: IROpAdd, AllowFlags: flagsCZ},
	{Mnemonic: "sub", Template: 0xF1800000, Form: FormTwoOperands, IROp: IROpSub, AllowFlags: flagsCZ, CompressInstr: true},
	{Mnemonic: "subx", Template: 0xF1A00000, Form: FormTwoOperands, IROp: IROpSub, AllowFlags: flagsCZ},
	{Mnemonic: "subs", Template: 0xF1C00000, Form: FormTwoOperands, IROp: IROpSub, AllowFlags: flagsCZ},
	{Mnemonic: "subsx", Template: 0xF1E00000, Form: FormTwoOperands, IROp: IROpSub, AllowFlags: flagsCZ},
	{Mnemonic: "cmp", Template: 0xF2000000, Form: FormTwoOperands, IROp: IROpCmp, AllowFlags: flagsCZ, CompressInstr: true},
	{Mnemonic: "cmpx", Template: 0xF2200000, Form: FormTwoOperands, IROp: IROpCmp, AllowFlags: flagsCZ},
	{Mnemonic: "cmps", Template: 0xF2400000, Form: FormTwoOperands, IROp: IROpCmp, AllowFlags: flagsCZ},
	{Mnemonic: "cmpsx", Template: 0xF2600000, Form: FormTwoOperands, IROp: IROpCmp, AllowFlags: flagsCZ},
	{Mnemonic: "and", Template: 0xF5000000, Form: FormTwoOperands, IROp: IROpAnd, AllowFlags: flagsCZ, CompressInstr: true},
	{Mnemonic: "andn", Template: 0xF5200000, Form: FormTwoOperands, IROp: IROpAnd, AllowFlags: flagsCZ},
	{Mnemonic: "or", Template: 0xF5400000, Form: FormTwoOperands, IROp: IROpOr, AllowFlags: flagsCZ, CompressInstr: true},
	{Mnemonic: "xor", Template: 0xF5600000, Form: FormTwoOperands, IROp: IROpXor, AllowFlags: flagsCZ, CompressInstr: true},
	{Mnemonic: "muxc", Template: 0xF5800000, Form: FormTwoOperands, AllowFlags: flagsCZ},
	{Mnemonic: "muxnc", Template: 0xF5A00000, Form: FormTwoOperands, AllowFlags: flagsCZ},
	{Mnemonic: "muxz", Template: 0xF5C00000, Form: FormTwoOperands, AllowFlags: flagsCZ},
	{Mnemonic: "muxnz", Template: 0xF5E00000, Form: FormTwoOperands, AllowFlags: flagsCZ},
	{Mnemonic: "ror", Template: 0xF0000000, Form: FormTwoOperands, AllowFlags: flagsCZ},
	{Mnemonic: "rol", Template: 0xF0200000, Form: FormTwoOperands, AllowFlags: flagsCZ},
	{Mnemonic: "shr", Template: 0xF0400000, Form: FormTwoOperands, IROp: IROpShr, AllowFlags: flagsCZ, CompressInstr: true},
	{Mnemonic: "shl", Template: 0xF0600000, Form: FormTwoOperands, IROp: IROpShl, AllowFlags: flagsCZ, CompressInstr: true},
	{Mnemonic: "rcr", Template: 0xF0800000, Form: FormTwoOperands, AllowFlags: flagsCZ},
	{Mnemonic: "rcl", Template: 0xF0A00000, Form: FormTwoOperands, AllowFlags: flagsCZ},
	{Mnemonic: "sar", Template: 0xF0C00000, Form: FormTwoOperands, IROp: IROpSar, AllowFlags: flagsCZ},
	{Mnemonic: "sal", Template: 0xF0E00000, Form: FormTwoOperands, AllowFlags: flagsCZ},
	{Mnemonic: "mins", Template: 0xF3000000, Form: FormTwoOperands, AllowFlags: flagsCZ},
	{Mnemonic: "maxs", Template: 0xF3200000, Form: FormTwoOperands, AllowFlags: flagsCZ},
	{Mnemonic: "minu", Template: 0xF3400000, Form: FormTwoOperands, AllowFlags: flagsCZ},
	{Mnemonic: "maxu", Template: 0xF3600000, Form: FormTwoOperands, AllowFlags: flagsCZ},
	{Mnemonic: "sumc", Template: 0xF3800000, Form: FormTwoOperands, AllowFlags: flagsCZ},
	{Mnemonic: "sumnc", Template: 0xF3A00000, Form: FormTwoOperands, AllowFlags: flagsCZ},
	{Mnemonic: "sumz", Template: 0xF3C00000, Form: FormTwoOperands, AllowFlags: flagsCZ},
	{Mnemonic: "sumnz", Template: 0xF3E00000, Form: FormTwoOperands, AllowFlags: flagsCZ},
	{Mnemonic: "test", Template: 0xF7000000, Form: FormTwoOperandsDefz, IROp: IROpTest, AllowFlags: flagsTest},
	{Mnemonic: "testn", Template: 0xF7200000, Form: FormTwoOperands, IROp: IROpTest, AllowFlags: flagsTest},
	{Mnemonic: "testb", Template: 0xF4000000, Form: FormTwoOperands, IROp: IROpTest, AllowFlags: flagsTest},
	{Mnemonic: "testbn", Template: 0xF4200000, Form: FormTwoOperands, IROp: IROpTest, AllowFlags: flagsTest},
	{Mnemonic: "mul", Template: 0xFA000000, Form: FormTwoOperands, AllowFlags: FlagWZ},
	{Mnemonic: "muls", Template: 0xFA200000, Form: FormTwoOperands, AllowFlags: FlagWZ},
	{Mnemonic: "sca", Template: 0xFA400000, Form: FormTwoOperands, AllowFlags: FlagWZ},
	{Mnemonic: "scas", Template: 0xFA600000, Form: FormTwoOperands, AllowFlags: FlagWZ},

	// Single-operand ALU; the src field carries a sub-opcode or defaults
	// to the dst register (FormTwoOperandsDefz).
	{Mnemonic: "not", Template: 0xF6200000, Form: FormTwoOperandsDefz, AllowFlags: flagsCZ},
	{Mnemonic: "neg", Template: 0xF6400000, Form: FormTwoOperandsDefz, IROp: IROpNeg, AllowFlags: flagsCZ},
	{Mnemonic: "abs", Template: 0xF6600000, Form: FormTwoOperandsDefz, IROp: IROpAbs, AllowFlags: flagsCZ},
	{Mnemonic: "encod", Template: 0xF7400000, Form: FormTwoOperandsDefz, AllowFlags: flagsCZ},
	{Mnemonic: "decod", Template: 0xF7600000, Form: FormTwoOperandsDefz, AllowFlags: flagsCZ},
	{Mnemonic: "bmask", Template: 0xF7800000, Form: FormTwoOperandsDefz, AllowFlags: flagsCZ},
	{Mnemonic: "ones", Template: 0xF7A00000, Form: FormTwoOperandsDefz, AllowFlags: flagsCZ},
	{Mnemonic: "rev", Template: 0xF7C00000, Form: FormDstOnly},

	// Hub memory; pointer-indexing source forms allowed.
	{Mnemonic: "rdbyte", Template: 0xFAC00000, Form: FormP2ReadWrite, IROp: IROpRead, AllowFlags: flagsCZ},
	{Mnemonic: "rdword", Template: 0xFAE00000, Form: FormP2ReadWrite, IROp: IROpRead, AllowFlags: flagsCZ},
	{Mnemonic: "rdlong", Template: 0xFB000000, Form: FormP2ReadWrite, IROp: IROpRead, AllowFlags: flagsCZ},
	{Mnemonic: "wrbyte", Template: 0xFC400000, Form: FormP2ReadWrite, IROp: IROpWrite},
	{Mnemonic: "wrword", Template: 0xFC600000, Form: FormP2ReadWrite, IROp: IROpWrite},
	{Mnemonic: "wrlong", Template: 0xFC800000, Form: FormP2ReadWrite, IROp: IROpWrite},
	{Mnemonic: "wmlong", Template: 0xFCA00000, Form: FormP2ReadWrite, IROp: IROpWrite},
	{Mnemonic: "rdfast", Template: 0xFC000000, Form: FormP2TwoOperandsBothImmOK},
	{Mnemonic: "wrfast", Template: 0xFC200000, Form: FormP2TwoOperandsBothImmOK},

	// Branches. Relative forms carry a 20-bit displacement field and fall
	// back to the absolute form on overflow.
	{Mnemonic: "jmp", Template: 0xFD900000, Form: FormP2Jump, IROp: IROpJmp, BranchRangeBits: 20, IndirectForm: "jmp.ind"},
	{Mnemonic: "jmp.ind", Template: 0xFD9D0000, Form: FormJmp, IROp: IROpJmp},
	{Mnemonic: "call", Template: 0xFDA00000, Form: FormCall, IROp: IROpCall, BranchRangeBits: 20, IndirectForm: "call.ind"},
	{Mnemonic: "call.ind", Template: 0xFD9D002D, Form: FormSrcOnly, IROp: IROpCall},
	{Mnemonic: "calla", Template: 0xFDB00000, Form: FormCall, IROp: IROpCall, BranchRangeBits: 20},
	{Mnemonic: "callb", Template: 0xFDC00000, Form: FormCall, IROp: IROpCall, BranchRangeBits: 20},
	{Mnemonic: "calld", Template: 0xFB200000, Form: FormP2Calld, IROp: IROpCall, BranchRangeBits: 9, IndirectForm: "calld.loc"},
	{Mnemonic: "calld.loc", Template: 0xFE800000, Form: FormP2Loc, IROp: IROpCall},
	{Mnemonic: "ret", Template: 0xFD64002D, Form: FormNone, IROp: IROpRet},
	{Mnemonic: "reta", Template: 0xFD64002E, Form: FormNone, IROp: IROpRet},
	{Mnemonic: "retb", Template: 0xFD64002F, Form: FormNone, IROp: IROpRet},
	{Mnemonic: "djnz", Template: 0xFB600000, Form: FormP2TJZ, IROp: IROpDjnz, BranchRangeBits: 9},
	{Mnemonic: "djz", Template: 0xFB800000, Form: FormP2TJZ, IROp: IROpDjnz, BranchRangeBits: 9},
	{Mnemonic: "tjz", Template: 0xFBA00000, Form: FormP2TJZ, BranchRangeBits: 9},
	{Mnemonic: "tjnz", Template: 0xFBC00000, Form: FormP2TJZ, BranchRangeBits: 9},
	{Mnemonic: "tjf", Template: 0xFBD00000, Form: FormP2TJZ, BranchRangeBits: 9},
	{Mnemonic: "tjnf", Template: 0xFBE00000, Form: FormP2TJZ, BranchRangeBits: 9},
	{Mnemonic: "tjs", Template: 0xFBF00000, Form: FormP2TJZ, BranchRangeBits: 9},
	{Mnemonic: "jint", Template: 0xFBB00000, Form: FormP2JINT, BranchRangeBits: 9},
	{Mnemonic: "rep", Template: 0xFCC00000, Form: FormTwoOperands},
	{Mnemonic: "loc", Template: 0xFE800000, Form: FormP2Loc},

	// Prefixes and flag surgery.
	{Mnemonic: "augs", Template: 0xF8000000, Form: FormP2Aug},
	{Mnemonic: "augd", Template: 0xFA000000, Form: FormP2Aug},
	{Mnemonic: "modcz", Template: 0xFD640001, Form: FormP2Modcz, AllowFlags: flagsCZ},
	{Mnemonic: "modc", Template: 0xFD640001, Form: FormTwoOperandsOptSecond, AllowFlags: FlagWC},
	{Mnemonic: "modz", Template: 0xFD640001, Form: FormTwoOperandsOptSecond, AllowFlags: FlagWZ},
	{Mnemonic: "alti", Template: 0xFB400000, Form: FormTwoOperandsOptSecond},
	{Mnemonic: "setq", Template: 0xFD600028, Form: FormSrcOnly},
	{Mnemonic: "setq2", Template: 0xFD600029, Form: FormSrcOnly},

	// Pin/test instructions whose dst may be a constant (imm encoded in
	// the src slot).
	{Mnemonic: "testp", Template: 0xFD600040, Form: FormP2DstConstOK, IROp: IROpTest, AllowFlags: flagsTest},
	{Mnemonic: "testpn", Template: 0xFD600041, Form: FormP2DstConstOK, IROp: IROpTest, AllowFlags: flagsTest},
	{Mnemonic: "dirl", Template: 0xFD600040, Form: FormDstOnly, AllowFlags: flagsCZ},
	{Mnemonic: "dirh", Template: 0xFD600041, Form: FormDstOnly, AllowFlags: flagsCZ},
	{Mnemonic: "outl", Template: 0xFD600044, Form: FormDstOnly, AllowFlags: flagsCZ},
	{Mnemonic: "outh", Template: 0xFD600045, Form: FormDstOnly, AllowFlags: flagsCZ},
	{Mnemonic: "fltl", Template: 0xFD600048, Form: FormDstOnly, AllowFlags: flagsCZ},
	{Mnemonic: "flth", Template: 0xFD600049, Form: FormDstOnly, AllowFlags: flagsCZ},
	{Mnemonic: "drvl", Template: 0xFD60004C, Form: FormDstOnly, AllowFlags: flagsCZ},
	{Mnemonic: "drvh", Template: 0xFD60004D, Form: FormDstOnly, AllowFlags: flagsCZ},

	// CORDIC and misc.
	{Mnemonic: "qmul", Template: 0xFD000000, Form: FormP2TwoOperandsBothImmOK},
	{Mnemonic: "qdiv", Template: 0xFD200000, Form: FormP2TwoOperandsBothImmOK},
	{Mnemonic: "qfrac", Template: 0xFD400000, Form: FormP2TwoOperandsBothImmOK},
	{Mnemonic: "qsqrt", Template: 0xFD500000, Form: FormP2TwoOperandsBothImmOK},
	{Mnemonic: "getqx", Template: 0xFD600018, Form: FormDstOnly, AllowFlags: flagsCZ},
	{Mnemonic: "getqy", Template: 0xFD600019, Form: FormDstOnly, AllowFlags: flagsCZ},
	{Mnemonic: "getct", Template: 0xFD60001A, Form: FormDstOnly, AllowFlags: FlagWC},
	{Mnemonic: "getrnd", Template: 0xFD60001B, Form: FormSrcOnly, AllowFlags: flagsCZ},
	{Mnemonic: "waitx", Template: 0xFD60001F, Form: FormDstOnly, AllowFlags: flagsCZ},
	{Mnemonic: "hubset", Template: 0xFD600000, Form: FormDstOnly},
	{Mnemonic: "coginit", Template: 0xFCE00000, Form: FormP2TwoOperandsBothImmOK, AllowFlags: FlagWC},
	{Mnemonic: "cogstop", Template: 0xFD600003, Form: FormDstOnly},
	{Mnemonic: "nop", Template: 0x00000000, Form: FormNone},
	{Mnemonic: "brk", Template: 0xFD600036, Form: FormDstOnly},

	// Three-operand nibble/byte/word field instructions; the third
	// operand is a small immediate shifted into the opcode.
	{Mnemonic: "setnib", Template: 0xF8000000, Form: FormThreeOperandNibble},
	{Mnemonic: "getnib", Template: 0xF8400000, Form: FormThreeOperandNibble},
	{Mnemonic: "rolnib", Template: 0xF8800000, Form: FormThreeOperandNibble},
	{Mnemonic: "muxnib", Template: 0xF8C00000, Form: FormThreeOperandNibble},
	{Mnemonic: "setbyte", Template: 0xF8C80000, Form: FormThreeOperandByte},
	{Mnemonic: "getbyte", Template: 0xF8E00000, Form: FormThreeOperandByte},
	{Mnemonic: "rolbyte", Template: 0xF9000000, Form: FormThreeOperandByte},
	{Mnemonic: "setword", Template: 0xF9200000, Form: FormThreeOperandWord},
	{Mnemonic: "getword", Template: 0xF9400000, Form: FormThreeOperandWord},
	{Mnemonic: "rolword", Template: 0xF9600000, Form: FormThreeOperandWord},
}

// p1Instrs is the P1 instruction table. Templates have the condition
// field preset to "always" (0xF in bits 21..18) and the WR bit set where
// the instruction writes its result by default.
var p1Instrs = []Instruction{
	{Mnemonic: "rdbyte", Template: 0x00BC0000, Form: FormTwoOperands, IROp: IROpRead, AllowFlags: flagsCZ},
	{Mnemonic: "rdword", Template: 0x04BC0000, Form: FormTwoOperands, IROp: IROpRead, AllowFlags: flagsCZ},
	{Mnemonic: "rdlong", Template: 0x08BC0000, Form: FormTwoOperands, IROp: IROpRead, AllowFlags: flagsCZ},
	{Mnemonic: "wrbyte", Template: 0x003C0000, Form: FormTwoOperands, IROp: IROpWrite},
	{Mnemonic: "wrword", Template: 0x043C0000, Form: FormTwoOperands, IROp: IROpWrite},
	{Mnemonic: "wrlong", Template: 0x083C0000, Form: FormTwoOperands, IROp: IROpWrite},
	{Mnemonic: "hubop", Template: 0x0C3C0000, Form: FormTwoOperands, AllowFlags: flagsCZ},
	{Mnemonic: "ror", Template: 0x20BC0000, Form: FormTwoOperands, AllowFlags: flagsCZ},
	{Mnemonic: "rol", Template: 0x24BC0000, Form: FormTwoOperands, AllowFlags: flagsCZ},
	{Mnemonic: "shr", Template: 0x28BC0000, Form: FormTwoOperands, IROp: IROpShr, AllowFlags: flagsCZ},
	{Mnemonic: "shl", Template: 0x2CBC0000, Form: FormTwoOperands, IROp: IROpShl, AllowFlags: flagsCZ},
	{Mnemonic: "rcr", Template: 0x30BC0000, Form: FormTwoOperands, AllowFlags: flagsCZ},
	{Mnemonic: "rcl", Template: 0x34BC0000, Form: FormTwoOperands, AllowFlags: flagsCZ},
	{Mnemonic: "sar", Template: 0x38BC0000, Form: FormTwoOperands, IROp: IROpSar, AllowFlags: flagsCZ},
	{Mnemonic: "mov", Template: 0xA0BC0000, Form: FormTwoOperands, IROp: IROpMov, AllowFlags: flagsCZ},
	{Mnemonic: "movs", Template: 0xD0BC0000, Form: FormTwoOperands, AllowFlags: flagsCZ},
	{Mnemonic: "movd", Template: 0xD4BC0000, Form: FormTwoOperands, AllowFlags: flagsCZ},
	{Mnemonic: "movi", Template: 0xD8BC0000, Form: FormTwoOperands, AllowFlags: flagsCZ},
	{Mnemonic: "add", Template: 0x80BC0000, Form: FormTwoOperands, IROp: IROpAdd, AllowFlags: flagsCZ},
	{Mnemonic: "sub", Template: 0x84BC0000, Form: FormTwoOperands, IROp: IROpSub, AllowFlags: flagsCZ},
	{Mnemonic: "adds", Template: 0xD0BC0000, Form: FormTwoOperands, IROp: IROpAdd, AllowFlags: flagsCZ},
	{Mnemonic: "subs", Template: 0xD4BC0000, Form: FormTwoOperands, IROp: IROpSub, AllowFlags: flagsCZ},
	{Mnemonic: "addx", Template: 0xC8BC0000, Form: FormTwoOperands, IROp: IROpAdd, AllowFlags: flagsCZ},
	{Mnemonic: "subx", Template: 0xCCBC0000, Form: FormTwoOperands, IROp: IROpSub, AllowFlags: flagsCZ},
	{Mnemonic: "cmp", Template: 0x843C0000, Form: FormTwoOperands, IROp: IROpCmp, AllowFlags: flagsCZ},
	{Mnemonic: "cmps", Template: 0xC03C0000, Form: FormTwoOperands, IROp: IROpCmp, AllowFlags: flagsCZ},
	{Mnemonic: "cmpsub", Template: 0xE0BC0000, Form: FormTwoOperands, IROp: IROpCmp, AllowFlags: flagsCZ},
	{Mnemonic: "and", Template: 0x60BC0000, Form: FormTwoOperands, IROp: IROpAnd, AllowFlags: flagsCZ},
	{Mnemonic: "andn", Template: 0x64BC0000, Form: FormTwoOperands, IROp: IROpAnd, AllowFlags: flagsCZ},
	{Mnemonic: "or", Template: 0x68BC0000, Form: FormTwoOperands, IROp: IROpOr, AllowFlags: flagsCZ},
	{Mnemonic: "xor", Template: 0x6CBC0000, Form: FormTwoOperands, IROp: IROpXor, AllowFlags: flagsCZ},
	{Mnemonic: "muxc", Template: 0x70BC0000, Form: FormTwoOperands, AllowFlags: flagsCZ},
	{Mnemonic: "muxnc", Template: 0x74BC0000, Form: FormTwoOperands, AllowFlags: flagsCZ},
	{Mnemonic: "muxz", Template: 0x78BC0000, Form: FormTwoOperands, AllowFlags: flagsCZ},
	{Mnemonic: "muxnz", Template: 0x7CBC0000, Form: FormTwoOperands, AllowFlags: flagsCZ},
	{Mnemonic: "mins", Template: 0x90BC0000, Form: FormTwoOperands, AllowFlags: flagsCZ},
	{Mnemonic: "maxs", Template: 0x94BC0000, Form: FormTwoOperands, AllowFlags: flagsCZ},
	{Mnemonic: "min", Template: 0x98BC0000, Form: FormTwoOperands, AllowFlags: flagsCZ},
	{Mnemonic: "max", Template: 0x9CBC0000, Form: FormTwoOperands, AllowFlags: flagsCZ},
	{Mnemonic: "neg", Template: 0xA4BC0000, Form: FormTwoOperandsDefz, IROp: IROpNeg, AllowFlags: flagsCZ},
	{Mnemonic: "abs", Template: 0xA8BC0000, Form: FormTwoOperandsDefz, IROp: IROpAbs, AllowFlags: flagsCZ},
	{Mnemonic: "absneg", Template: 0xACBC0000, Form: FormTwoOperandsDefz, AllowFlags: flagsCZ},
	{Mnemonic: "sumc", Template: 0x90BC0000, Form: FormTwoOperands, AllowFlags: flagsCZ},
	{Mnemonic: "sumnc", Template: 0x94BC0000, Form: FormTwoOperands, AllowFlags: flagsCZ},
	{Mnemonic: "test", Template: 0x603C0000, Form: FormTwoOperands, IROp: IROpTest, AllowFlags: flagsCZ},
	{Mnemonic: "testn", Template: 0x643C0000, Form: FormTwoOperands, IROp: IROpTest, AllowFlags: flagsCZ},
	{Mnemonic: "jmp", Template: 0x5C3C0000, Form: FormJmp, IROp: IROpJmp},
	{Mnemonic: "jmpret", Template: 0x5CBC0000, Form: FormJmpRet, IROp: IROpCall},
	{Mnemonic: "call", Template: 0x5CFC0000, Form: FormCall, IROp: IROpCall},
	{Mnemonic: "ret", Template: 0x5C7C0000, Form: FormNone, IROp: IROpRet},
	{Mnemonic: "djnz", Template: 0xE4BC0000, Form: FormTwoOperands, IROp: IROpDjnz, AllowFlags: flagsCZ},
	{Mnemonic: "tjz", Template: 0xE83C0000, Form: FormTwoOperands, AllowFlags: flagsCZ},
	{Mnemonic: "tjnz", Template: 0xEC3C0000, Form: FormTwoOperands, AllowFlags: flagsCZ},
	{Mnemonic: "waitcnt", Template: 0xF8BC0000, Form: FormTwoOperands, AllowFlags: flagsCZ},
	{Mnemonic: "waitpeq", Template: 0xF03C0000, Form: FormTwoOperands, AllowFlags: flagsCZ},
	{Mnemonic: "waitpne", Template: 0xF43C0000, Form: FormTwoOperands, AllowFlags: flagsCZ},
	{Mnemonic: "coginit", Template: 0x0C7C0002, Form: FormDstOnly, AllowFlags: flagsCZ},
	{Mnemonic: "cogstop", Template: 0x0C7C0003, Form: FormDstOnly, AllowFlags: flagsCZ},
	{Mnemonic: "nop", Template: 0x00000000, Form: FormNone},
}

// NewP2Table builds the full P2 instruction table.
func NewP2Table() *Table {
	t := NewTable()
	for i := range p2Instrs {
		instr := p2Instrs[i]
		instr.P2Only = true
		t.Add(&instr)
	}
	return t
}

// NewP1Table builds the full P1 instruction table.
func NewP1Table() *Table {
	t := NewTable()
	for i := range p1Instrs {
		instr := p1Instrs[i]
		instr.P1Only = true
		t.Add(&instr)
	}
	return t
}

// NewTableFor returns the instruction table for the selected target.
func NewTableFor(isP2 bool) *Table {
	if isP2 {
		return NewP2Table()
	}
	return NewP1Table()
}

// NewP2BaseTable is retained for callers that only need the P2 table;
// it is now the full table rather than a representative slice.
func NewP2BaseTable() *Table { return NewP2Table() }
