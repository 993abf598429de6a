package pasm

import "github.com/totalspectrum/propcore/ast"

// SiliconRev selects the P2 silicon revision for pointer-index range
// validation: rev A allows a 5-bit signed index on the scaled
// ptr forms, rev B and later a 6-bit signed index.
type SiliconRev int

const (
	RevA SiliconRev = iota
	RevB
)

// DecodeOperands implements decode_operands(instr, ast): it
// reads up to 3 operand ASTs off n's Right chain (a right-linear
// EXPRLIST, like every other argument list in this compiler), applies
// the defaulted-operand rules, and classifies each operand, recording
// whether # or ## was used and which encoding bit that sets.
func DecodeOperands(instr *Instruction, n *ast.Node, isP2 bool) (*DecodedInstruction, error) {
	return DecodeOperandsRev(instr, n, isP2, RevB)
}

// DecodeOperandsRev is DecodeOperands with an explicit silicon revision.
func DecodeOperandsRev(instr *Instruction, n *ast.Node, isP2 bool, rev SiliconRev) (*DecodedInstruction, error) {
	operandNodes := ast.ListElements(n.Right)
	operandNodes = defaultOperandNodes(instr, operandNodes)

	d := &DecodedInstruction{Instr: instr, NumOps: len(operandNodes)}
	if d.NumOps > 3 {
		d.NumOps = 3
	}
	for i := 0; i < d.NumOps; i++ {
		op, err := decodeOne(instr, operandNodes[i], isP2, rev, i)
		if err != nil {
			return nil, err
		}
		d.Operands[i] = op
		switch op.Imm {
		case ImmBigSrc:
			d.BigImmSrc = true
		case ImmBigDst:
			d.BigImmDst = true
		}
	}
	if d.BigImmSrc && d.BigImmDst {
		return nil, newErr(ErrDoubleRelocation, instr.Mnemonic, "instruction cannot carry both src and dst big immediates")
	}
	return d, nil
}

// defaultOperandNodes applies the optional/defaulted-operand rules
// at the AST level, before classification:
//
//	alti x          -> alti x, #$164
//	modc x          -> modcz x, 0
//	getrnd (none)   -> getrnd 0 (no wc effect is added)
//	three-operand instruction given one operand:
//	  SET-style -> (0, op, #0); GET-style -> (op, 0, #0)
func defaultOperandNodes(instr *Instruction, nodes []*ast.Node) []*ast.Node {
	intNode := func(v uint64) *ast.Node { return &ast.Node{Kind: ast.KindInteger, IVal: v} }
	immNode := func(v uint64) *ast.Node {
		return &ast.Node{Kind: ast.KindImm, Left: intNode(v)}
	}
	switch instr.Mnemonic {
	case "alti":
		if len(nodes) == 1 {
			return append(nodes, immNode(0x164))
		}
	case "modc", "modz":
		if len(nodes) == 1 {
			return append(nodes, intNode(0))
		}
	case "getrnd":
		if len(nodes) == 0 {
			return []*ast.Node{intNode(0)}
		}
	}
	switch instr.Form {
	case FormThreeOperandNibble, FormThreeOperandByte, FormThreeOperandWord:
		if len(nodes) == 1 {
			if isSetForm(instr.Mnemonic) {
				return []*ast.Node{intNode(0), nodes[0], immNode(0)}
			}
			return []*ast.Node{nodes[0], intNode(0), immNode(0)}
		}
	case FormTwoOperandsDefz:
		// Single-operand ALU form: src defaults to dst.
		if len(nodes) == 1 {
			return []*ast.Node{nodes[0], ast.DeepCopy(nodes[0])}
		}
	}
	return nodes
}

func decodeOne(instr *Instruction, n *ast.Node, isP2 bool, rev SiliconRev, index int) (Operand, error) {
	op := Operand{}
	if n == nil {
		return op, nil
	}

	// Peel an immediate marker first; the payload below it is decoded
	// normally and the marker only sets the immediate-bit bookkeeping.
	imm := ImmNone
	switch n.Kind {
	case ast.KindImm:
		imm = ImmShort
		n = n.Left
	case ast.KindBigImm:
		if index == 0 {
			imm = ImmBigDst
		} else {
			imm = ImmBigSrc
		}
		n = n.Left
	}

	switch n.Kind {
	case ast.KindInteger:
		op.Kind = OperandImmediate
		op.Value = int64(n.IVal)
		if imm == ImmNone {
			imm = ImmShort
		}
	case ast.KindIdentifier:
		op.Kind = OperandRegister
		op.Label = n.SVal
	case ast.KindHWReg:
		op.Kind = OperandHWReg
		op.Label = n.SVal
		if instr.Form == FormP2ReadWrite && index == 1 {
			decodePtrIndex(n, &op)
		}
	case ast.KindAddrOf:
		// @label: a cog/hub label immediate, resolved at assembly time.
		op.Kind = OperandImmediateLabel
		if n.Left != nil {
			op.Label = n.Left.SVal
		}
		if imm == ImmNone {
			imm = ImmShort
		}
	case ast.KindAbsAddrOf:
		// @@@label: 32-bit absolute, requires ## and a relocation.
		op.Kind = OperandImmediateLabel
		if n.Left != nil {
			op.Label = n.Left.SVal
		}
		op.Reloc = &Symbol{Name: op.Label}
		if imm != ImmBigSrc && imm != ImmBigDst {
			return op, newErr(ErrImmediateHubAddrRequiresDoubleHash, instr.Mnemonic, "absolute hub address needs ##")
		}
	case ast.KindArrayRef, ast.KindPreInc, ast.KindPreDec, ast.KindPostInc, ast.KindPostDec:
		if instr.Form != FormP2ReadWrite {
			return op, newErr(ErrBadOperandKind, instr.Mnemonic, "pointer-indexed operand only valid on read/write instructions")
		}
		if err := decodePtrForm(n, &op, rev); err != nil {
			return op, err
		}
	case ast.KindString:
		op.Kind = OperandString
		op.Label = n.SVal
	default:
		return op, newErr(ErrBadOperandKind, instr.Mnemonic, "unrecognized operand expression")
	}

	if imm != ImmNone {
		if err := validateImmPosition(instr, isP2, index, imm); err != nil {
			return op, err
		}
	}
	op.Imm = imm
	return op, nil
}

// validateImmPosition checks the position rules: P1 has a single
// IMMEDIATE_INSTR bit (source only); P2 maps # to the src-imm or dst-imm
// bit by position, with some forms forbidding a first-operand immediate
// because their wz/wcz modifier occupies that bit.
func validateImmPosition(instr *Instruction, isP2 bool, index int, imm ImmKind) error {
	if !isP2 {
		if index == 0 && twoOperandForm(instr.Form) {
			return newErr(ErrBadOperandKind, instr.Mnemonic, "P1 destination cannot be an immediate")
		}
		return nil
	}
	if index != 0 {
		return nil
	}
	switch instr.Form {
	case FormP2TwoOperandsBothImmOK, FormP2DstConstOK, FormDstOnly, FormP2Jump,
		FormCall, FormJmp, FormP2Loc, FormP2Aug, FormP2Modcz, FormSrcOnly,
		FormP2TJZ, FormP2JINT, FormP2Calld:
		return nil
	case FormP2ReadWrite:
		// The dst-imm bit position is occupied by the wz modifier here.
		return newErr(ErrWcWzNotAllowedHere, instr.Mnemonic, "first operand of a read/write instruction cannot be an immediate")
	default:
		if instr.AllowFlags&(FlagWZ|FlagWCZ) != 0 && imm == ImmShort {
			return newErr(ErrBadOperandKind, instr.Mnemonic, "destination immediate conflicts with wz/wcz encoding; use ##")
		}
		return nil
	}
}

func twoOperandForm(f OperandForm) bool {
	switch f {
	case FormTwoOperands, FormTwoOperandsOptSecond, FormTwoOperandsDefz, FormP2ReadWrite:
		return true
	}
	return false
}

// decodePtrForm recognizes the read/write pointer-indexing forms:
// ptra[n], ptra++[n], ++ptra, --ptra, and the ptrb variants.
func decodePtrForm(n *ast.Node, op *Operand, rev SiliconRev) error {
	base := n.Left
	if !isPtrReg(base) {
		return newErr(ErrBadOperandKind, "", "indexed operand base must be ptra or ptrb")
	}
	op.PtrReg = base.SVal
	switch n.Kind {
	case ast.KindArrayRef:
		op.PtrMode = PtrIndexAbsolute
		op.PtrIndex = int(int64(indexValue(n.Right)))
	case ast.KindPostInc:
		op.PtrMode = PtrIndexPostInc
		op.PtrIndex = 1
		if n.Right != nil {
			op.PtrIndex = int(int64(indexValue(n.Right)))
		}
	case ast.KindPostDec:
		op.PtrMode = PtrIndexPostInc
		op.PtrIndex = -1
		if n.Right != nil {
			op.PtrIndex = -int(int64(indexValue(n.Right)))
		}
	case ast.KindPreInc:
		op.PtrMode = PtrIndexPreInc
		op.PtrIndex = 1
	case ast.KindPreDec:
		op.PtrMode = PtrIndexPreDec
		op.PtrIndex = 1
	}
	op.Kind = OperandHubPtrRegister
	return validatePtrIndex(op, rev)
}

// decodePtrIndex handles a bare ptra/ptrb source (no index expression).
func decodePtrIndex(n *ast.Node, op *Operand) {
	if n.SVal == "ptra" || n.SVal == "ptrb" {
		op.Kind = OperandHubPtrRegister
		op.PtrReg = n.SVal
		op.PtrMode = PtrIndexAbsolute
		op.PtrIndex = 0
	}
}

// validatePtrIndex checks the encoded index range against the silicon
// revision: the scaled absolute form has a 5-bit signed index
// on rev A and 6-bit on rev B; inc/dec forms step 1..16.
func validatePtrIndex(op *Operand, rev SiliconRev) error {
	switch op.PtrMode {
	case PtrIndexAbsolute:
		lo, hi := -32, 31
		if rev == RevA {
			lo, hi = -16, 15
		}
		if op.PtrIndex < lo || op.PtrIndex > hi {
			return newErr(ErrOutOfRangeImmediate, "", "pointer index out of range for this silicon revision")
		}
	case PtrIndexPostInc, PtrIndexPreInc, PtrIndexPreDec:
		step := op.PtrIndex
		if step < 0 {
			step = -step
		}
		if step < 1 || step > 16 {
			return newErr(ErrOutOfRangeImmediate, "", "pointer step out of range")
		}
	}
	return nil
}

// EncodePtrOperand packs a pointer-indexed source operand into the 9-bit
// S field: bit 8 set marks the ptr scheme, bit 7 selects ptrb, bits 6..5
// the update mode, and the low bits the signed index.
func EncodePtrOperand(op *Operand, rev SiliconRev) uint32 {
	enc := uint32(1) << 8
	if op.PtrReg == "ptrb" {
		enc |= 1 << 7
	}
	switch op.PtrMode {
	case PtrIndexAbsolute:
		mask := uint32(0x3F)
		if rev == RevA {
			mask = 0x1F
		}
		enc |= uint32(op.PtrIndex) & mask
	case PtrIndexPostInc:
		enc |= 1 << 6
		enc |= uint32(op.PtrIndex) & 0x1F
	case PtrIndexPreInc:
		enc |= 1<<6 | 1<<5
		enc |= uint32(op.PtrIndex) & 0xF
	case PtrIndexPreDec:
		enc |= 1<<6 | 1<<5
		enc |= uint32(-op.PtrIndex) & 0x1F
	}
	return enc
}

func isPtrReg(n *ast.Node) bool {
	return n != nil && n.Kind == ast.KindHWReg && (n.SVal == "ptra" || n.SVal == "ptrb")
}

func indexValue(n *ast.Node) uint64 {
	if n == nil {
		return 0
	}
	if n.Kind == ast.KindInteger {
		return n.IVal
	}
	if n.Left != nil && n.Left.Kind == ast.KindInteger {
		return n.Left.IVal
	}
	return 0
}

// DecodeModifiers folds a right-linear list of modifier-name identifier
// nodes into d, resolving each against the target's modifier set.
func DecodeModifiers(d *DecodedInstruction, mods *ast.Node, isP2 bool) error {
	for _, mn := range ast.ListElements(mods) {
		if mn == nil || mn.Kind != ast.KindIdentifier {
			continue
		}
		m, ok := LookupModifier(mn.SVal, isP2)
		if !ok {
			return newErr(ErrBadOperandKind, d.Instr.Mnemonic, "unknown modifier "+mn.SVal)
		}
		if err := ApplyModifier(d, m); err != nil {
			return err
		}
	}
	return nil
}
