// Package nubc implements the P2 "Nu" register bytecode backend:
// its fixed ~100-opcode enumeration, ENTER/RET frame layout, the greedy
// bytecode-slot packer with constant-specialisation and macro fusion, and
// a peephole optimiser operating over IR node sequences rather than text,
// since Nu IR carries structured opcodes rather than assembly mnemonics.
package nubc

// Op enumerates the Nu IR opcode set. Four values are reserved
// dispatch-table slots (DIRECT, PUSHI, PUSHA, CALLA); the rest fill the
// remaining 248 assignable entries via the packer.
type Op int

const (
	OpDIRECT Op = iota
	OpPUSHI
	OpPUSHA
	OpCALLA

	OpLDB
	OpLDBS
	OpLDW
	OpLDWS
	OpLDL
	OpLDD
	OpSTB
	OpSTW
	OpSTL
	OpSTD

	OpADD_VBASE
	OpADD_DBASE
	OpADD_SP
	OpADD_PC
	OpADD_SUPER

	OpLDREG
	OpSTREG

	OpADD
	OpSUB
	OpAND
	OpIOR
	OpXOR
	OpSHL
	OpSHR
	OpSAR
	OpNEG
	OpNOT
	OpABS
	OpISQRT
	OpREV
	OpDOUBLE
	OpINC
	OpDEC
	OpSIGNX
	OpZEROX
	OpENCODE
	OpENCODE2
	OpMINS
	OpMAXS
	OpMINU
	OpMAXU

	OpMULU
	OpMULS
	OpDIVU
	OpDIVS

	OpDUP
	OpDUP2
	OpDROP
	OpDROP2
	OpSWAP
	OpSWAP2
	OpOVER

	OpCALL
	OpCALLM
	OpENTER
	OpRET
	OpJMP
	OpJMPREL
	OpBRA
	OpBRA3
	OpBZ
	OpBNZ
	OpDJNZ
	OpDJNZ_FAST
	OpCBEQ
	OpCBNE
	OpCBLTS
	OpCBLES
	OpCBLTU
	OpCBLEU
	OpCBGTS
	OpCBGES
	OpCBGTU
	OpCBGEU
	OpSETJMP
	OpLONGJMP
	OpGOSUB
	OpBREAK

	OpPINHI
	OpPINLO
	OpPINNOT
	OpPINRND
	OpPINWR

	OpINLINEASM
	OpUNDEF
	OpDUMMY
	OpLABEL
	OpALIGN
)

// IsCBxx reports whether op is one of the CBxx compare-and-branch
// family.
func IsCBxx(op Op) bool {
	switch op {
	case OpCBEQ, OpCBNE, OpCBLTS, OpCBLES, OpCBLTU, OpCBLEU, OpCBGTS, OpCBGES, OpCBGTU, OpCBGEU:
		return true
	}
	return false
}

// InvertCBxx returns the logical negation of a CBxx opcode, used by the
// peephole's CBxx/BRA/LABEL inversion rewrite.
func InvertCBxx(op Op) (Op, bool) {
	switch op {
	case OpCBEQ:
		return OpCBNE, true
	case OpCBNE:
		return OpCBEQ, true
	case OpCBLTS:
		return OpCBGES, true
	case OpCBGES:
		return OpCBLTS, true
	case OpCBLES:
		return OpCBGTS, true
	case OpCBGTS:
		return OpCBLES, true
	case OpCBLTU:
		return OpCBGEU, true
	case OpCBGEU:
		return OpCBLTU, true
	case OpCBLEU:
		return OpCBGTU, true
	case OpCBGTU:
		return OpCBLEU, true
	}
	return op, false
}

// ReverseCBxx returns the CBxx opcode obtained by swapping its two
// operands: a<b becomes b>a.
func ReverseCBxx(op Op) (Op, bool) {
	switch op {
	case OpCBLTS:
		return OpCBGTS, true
	case OpCBGTS:
		return OpCBLTS, true
	case OpCBLES:
		return OpCBGES, true
	case OpCBGES:
		return OpCBLES, true
	case OpCBLTU:
		return OpCBGTU, true
	case OpCBGTU:
		return OpCBLTU, true
	case OpCBLEU:
		return OpCBGEU, true
	case OpCBGEU:
		return OpCBLEU, true
	case OpCBEQ, OpCBNE:
		return op, true
	}
	return op, false
}

// IsAddBase reports whether op is one of the ADD_xBASE address-producer
// family.
func IsAddBase(op Op) bool {
	switch op {
	case OpADD_VBASE, OpADD_DBASE, OpADD_SP, OpADD_PC, OpADD_SUPER:
		return true
	}
	return false
}

// IsBranch reports whether op transfers control, used by the macro-fusion
// eligibility predicate.
func IsBranch(op Op) bool {
	switch op {
	case OpJMP, OpJMPREL, OpBRA, OpBRA3, OpBZ, OpBNZ, OpDJNZ, OpDJNZ_FAST,
		OpCALL, OpCALLA, OpCALLM, OpRET, OpSETJMP, OpLONGJMP, OpGOSUB, OpLABEL:
		return true
	}
	return IsCBxx(op)
}

// opNames gives each opcode its canonical upper-case name, used both for
// listings and for locating impl_<NAME> labels in the embedded
// interpreter source.
var opNames = map[Op]string{
	OpDIRECT: "DIRECT", OpPUSHI: "PUSHI", OpPUSHA: "PUSHA", OpCALLA: "CALLA",
	OpLDB: "LDB", OpLDBS: "LDBS", OpLDW: "LDW", OpLDWS: "LDWS", OpLDL: "LDL",
	OpLDD: "LDD", OpSTB: "STB", OpSTW: "STW", OpSTL: "STL", OpSTD: "STD",
	OpADD_VBASE: "ADD_VBASE", OpADD_DBASE: "ADD_DBASE", OpADD_SP: "ADD_SP",
	OpADD_PC: "ADD_PC", OpADD_SUPER: "ADD_SUPER",
	OpLDREG: "LDREG", OpSTREG: "STREG",
	OpADD: "ADD", OpSUB: "SUB", OpAND: "AND", OpIOR: "IOR", OpXOR: "XOR",
	OpSHL: "SHL", OpSHR: "SHR", OpSAR: "SAR", OpNEG: "NEG", OpNOT: "NOT",
	OpABS: "ABS", OpISQRT: "ISQRT", OpREV: "REV", OpDOUBLE: "DOUBLE",
	OpINC: "INC", OpDEC: "DEC", OpSIGNX: "SIGNX", OpZEROX: "ZEROX",
	OpENCODE: "ENCODE", OpENCODE2: "ENCODE2",
	OpMINS: "MINS", OpMAXS: "MAXS", OpMINU: "MINU", OpMAXU: "MAXU",
	OpMULU: "MULU", OpMULS: "MULS", OpDIVU: "DIVU", OpDIVS: "DIVS",
	OpDUP: "DUP", OpDUP2: "DUP2", OpDROP: "DROP", OpDROP2: "DROP2",
	OpSWAP: "SWAP", OpSWAP2: "SWAP2", OpOVER: "OVER",
	OpCALL: "CALL", OpCALLM: "CALLM", OpENTER: "ENTER", OpRET: "RET",
	OpJMP: "JMP", OpJMPREL: "JMPREL", OpBRA: "BRA", OpBRA3: "BRA3",
	OpBZ: "BZ", OpBNZ: "BNZ", OpDJNZ: "DJNZ", OpDJNZ_FAST: "DJNZ_FAST",
	OpCBEQ: "CBEQ", OpCBNE: "CBNE", OpCBLTS: "CBLTS", OpCBLES: "CBLES",
	OpCBLTU: "CBLTU", OpCBLEU: "CBLEU", OpCBGTS: "CBGTS", OpCBGES: "CBGES",
	OpCBGTU: "CBGTU", OpCBGEU: "CBGEU",
	OpSETJMP: "SETJMP", OpLONGJMP: "LONGJMP", OpGOSUB: "GOSUB", OpBREAK: "BREAK",
	OpPINHI: "PINHI", OpPINLO: "PINLO", OpPINNOT: "PINNOT", OpPINRND: "PINRND",
	OpPINWR: "PINWR",
	OpINLINEASM: "INLINEASM", OpUNDEF: "UNDEF", OpDUMMY: "DUMMY",
	OpLABEL: "LABEL", OpALIGN: "ALIGN",
}

func (op Op) String() string {
	if s, ok := opNames[op]; ok {
		return s
	}
	return "OP?"
}
