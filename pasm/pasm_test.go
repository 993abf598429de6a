package pasm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/totalspectrum/propcore/ast"
)

func instrNode(mnemonic string, operands ...*ast.Node) *ast.Node {
	var list *ast.Node
	for _, o := range operands {
		list = ast.ListAppend(list, ast.KindExprList, o)
	}
	return &ast.Node{Kind: ast.KindInstrHolder, SVal: mnemonic, Right: list}
}

func reg(name string) *ast.Node   { return &ast.Node{Kind: ast.KindIdentifier, SVal: name} }
func imm(v uint64) *ast.Node      { return &ast.Node{Kind: ast.KindImm, Left: &ast.Node{Kind: ast.KindInteger, IVal: v}} }
func bigImm(v uint64) *ast.Node   { return &ast.Node{Kind: ast.KindBigImm, Left: &ast.Node{Kind: ast.KindInteger, IVal: v}} }
func hwreg(name string) *ast.Node { return &ast.Node{Kind: ast.KindHWReg, SVal: name} }

func TestTableLookup(t *testing.T) {
	tab := NewP2Table()
	instr := tab.Lookup("mov")
	require.NotNil(t, instr)
	assert.Equal(t, FormTwoOperands, instr.Form)
	assert.Nil(t, tab.Lookup("nonexistent"))

	p1 := NewP1Table()
	require.NotNil(t, p1.Lookup("waitcnt"))
	assert.Nil(t, p1.Lookup("augs"))
}

func TestDefaultOperandAltiAddsImplicitSecond(t *testing.T) {
	tab := NewP2Table()
	instr := tab.Lookup("alti")
	d, err := DecodeOperands(instr, instrNode("alti", reg("x")), true)
	require.NoError(t, err)
	require.Equal(t, 2, d.NumOps)
	assert.EqualValues(t, 0x164, d.Operands[1].Value)
	assert.Equal(t, ImmShort, d.Operands[1].Imm)
}

func TestDefaultOperandGetrndNoOperand(t *testing.T) {
	tab := NewP2Table()
	instr := tab.Lookup("getrnd")
	d, err := DecodeOperands(instr, instrNode("getrnd"), true)
	require.NoError(t, err)
	require.Equal(t, 1, d.NumOps)
	assert.EqualValues(t, 0, d.Operands[0].Value)
}

func TestThreeOperandDefaulting(t *testing.T) {
	tab := NewP2Table()
	set := tab.Lookup("setbyte")
	d, err := DecodeOperands(set, instrNode("setbyte", reg("x")), true)
	require.NoError(t, err)
	require.Equal(t, 3, d.NumOps)
	// SET-style: (0, op, #0).
	assert.Equal(t, OperandRegister, d.Operands[1].Kind)

	get := tab.Lookup("getbyte")
	d, err = DecodeOperands(get, instrNode("getbyte", reg("x")), true)
	require.NoError(t, err)
	assert.Equal(t, OperandRegister, d.Operands[0].Kind)
}

func TestDecodeOperandsTwoOperand(t *testing.T) {
	tab := NewP2Table()
	instr := tab.Lookup("add")
	d, err := DecodeOperands(instr, instrNode("add", reg("x"), imm(5)), true)
	require.NoError(t, err)
	assert.Equal(t, 2, d.NumOps)
	assert.Equal(t, OperandRegister, d.Operands[0].Kind)
	assert.Equal(t, OperandImmediate, d.Operands[1].Kind)
	assert.Equal(t, ImmShort, d.Operands[1].Imm)
}

func TestDecodeBigImmediateMarksAugs(t *testing.T) {
	tab := NewP2Table()
	instr := tab.Lookup("mov")
	d, err := DecodeOperands(instr, instrNode("mov", reg("x"), bigImm(0x12345)), true)
	require.NoError(t, err)
	assert.True(t, d.BigImmSrc)
	assert.False(t, d.BigImmDst)
}

func TestDecodePtrPostIncrement(t *testing.T) {
	tab := NewP2Table()
	instr := tab.Lookup("rdlong")
	ptrInc := &ast.Node{Kind: ast.KindPostInc, Left: hwreg("ptra"), Right: &ast.Node{Kind: ast.KindInteger, IVal: 1}}
	d, err := DecodeOperands(instr, instrNode("rdlong", reg("x"), ptrInc), true)
	require.NoError(t, err)
	op := d.Operands[1]
	assert.Equal(t, OperandHubPtrRegister, op.Kind)
	assert.Equal(t, PtrIndexPostInc, op.PtrMode)
	assert.Equal(t, "ptra", op.PtrReg)
	assert.Equal(t, 1, op.PtrIndex)
}

func TestDecodePtrIndexRangePerRevision(t *testing.T) {
	tab := NewP2Table()
	instr := tab.Lookup("rdlong")
	idx := func(v uint64) *ast.Node {
		return &ast.Node{Kind: ast.KindArrayRef, Left: hwreg("ptrb"), Right: &ast.Node{Kind: ast.KindInteger, IVal: v}}
	}
	_, err := DecodeOperandsRev(instr, instrNode("rdlong", reg("x"), idx(20)), true, RevB)
	assert.NoError(t, err)
	_, err = DecodeOperandsRev(instr, instrNode("rdlong", reg("x"), idx(20)), true, RevA)
	assert.Error(t, err)
}

func TestAbsAddrWithoutDoubleHashIsError(t *testing.T) {
	tab := NewP2Table()
	instr := tab.Lookup("mov")
	abs := &ast.Node{Kind: ast.KindAbsAddrOf, Left: reg("target")}
	_, err := DecodeOperands(instr, instrNode("mov", reg("x"), abs), true)
	require.Error(t, err)
	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, ErrImmediateHubAddrRequiresDoubleHash, perr.Kind)
}

func TestModifierConditionReplacesField(t *testing.T) {
	tab := NewP2Table()
	instr := tab.Lookup("add")
	d := &DecodedInstruction{Instr: instr}
	m, ok := LookupModifier("if_z", true)
	require.True(t, ok)
	require.NoError(t, ApplyModifier(d, m))
	assert.True(t, d.HasCond)
	assert.EqualValues(t, 0xA, d.Cond)

	asm := NewAssembler(true, tab)
	word := asm.encodeWord(d)
	assert.EqualValues(t, 0xA, word>>28)
}

func TestModifierFlagValidation(t *testing.T) {
	tab := NewP2Table()
	// getct allows wc only.
	d := &DecodedInstruction{Instr: tab.Lookup("getct")}
	wz, _ := LookupModifier("wz", true)
	assert.Error(t, ApplyModifier(d, wz))

	// test allows the andc/andz family.
	d = &DecodedInstruction{Instr: tab.Lookup("test")}
	andc, _ := LookupModifier("andc", true)
	assert.NoError(t, ApplyModifier(d, andc))

	// but not two conflicting effect modifiers at once.
	wc, _ := LookupModifier("wc", true)
	assert.Error(t, ApplyModifier(d, wc))
}

func TestEmitLongAdvancesPC(t *testing.T) {
	tab := NewP2Table()
	instr := tab.Lookup("mov")
	asm := NewAssembler(true, tab)
	d := &DecodedInstruction{Instr: instr, NumOps: 2, Operands: [3]Operand{{Kind: OperandRegister, Value: 1}, {Kind: OperandRegister, Value: 2}}}
	asm.Emit(d)
	assert.Equal(t, 4, asm.PC)
	assert.Equal(t, 4, asm.Code.Len())
}

func TestEmitBigImmEmitsAugsPrefix(t *testing.T) {
	tab := NewP2Table()
	instr := tab.Lookup("mov")
	asm := NewAssembler(true, tab)
	d := &DecodedInstruction{
		Instr:     instr,
		NumOps:    2,
		Operands:  [3]Operand{{Kind: OperandRegister, Value: 1}, {Kind: OperandImmediate, Imm: ImmBigSrc, Value: 0x12345}},
		BigImmSrc: true,
	}
	asm.Emit(d)
	// AUGS + instruction: 8 bytes.
	assert.Equal(t, 8, asm.PC)
	// The instruction's src field holds only the low 9 bits.
	assert.EqualValues(t, 0x12345&0x1FF, d.Operands[1].Value)
}

func TestEmitAugsSuppressedWhenImmediateFits(t *testing.T) {
	tab := NewP2Table()
	instr := tab.Lookup("mov")
	asm := NewAssembler(true, tab)
	d := &DecodedInstruction{
		Instr:     instr,
		NumOps:    2,
		Operands:  [3]Operand{{Kind: OperandRegister, Value: 1}, {Kind: OperandImmediate, Imm: ImmBigSrc, Value: 37}},
		BigImmSrc: true,
	}
	asm.Emit(d)
	// boundary: an AUGS whose immediate fits 9 bits is suppressed.
	assert.Equal(t, 4, asm.PC)
}

func TestRelativeBranchNinePlusBoundary(t *testing.T) {
	tab := NewP2Table()
	asm := NewAssembler(true, tab)
	targets := map[string]int{"near": 4 + 255*4, "far": 4 + 256*4}
	asm.Resolve = func(name string) (int, bool, bool) {
		a, ok := targets[name]
		return a, false, ok
	}

	dNear := &DecodedInstruction{
		Instr:    tab.Lookup("tjz"),
		NumOps:   2,
		Operands: [3]Operand{{Kind: OperandRegister, Value: 1}, {Kind: OperandImmediateLabel, Label: "near"}},
	}
	asm.Emit(dNear)
	assert.Empty(t, asm.Errors())

	asm2 := NewAssembler(true, tab)
	asm2.Resolve = asm.Resolve
	dFar := &DecodedInstruction{
		Instr:    tab.Lookup("tjz"),
		NumOps:   2,
		Operands: [3]Operand{{Kind: OperandRegister, Value: 1}, {Kind: OperandImmediateLabel, Label: "far"}},
	}
	asm2.Emit(dFar)
	// boundary: +255 encodes, +256 is rejected (tjz has no indirect
	// fallback form).
	assert.NotEmpty(t, asm2.Errors())
}

func TestOverlongJmpFallsBackToIndirect(t *testing.T) {
	tab := NewP2Table()
	asm := NewAssembler(true, tab)
	asm.Resolve = func(name string) (int, bool, bool) { return 0x400000, false, true }
	d := &DecodedInstruction{
		Instr:    tab.Lookup("jmp"),
		NumOps:   1,
		Operands: [3]Operand{{Kind: OperandImmediateLabel, Label: "target"}},
	}
	asm.Emit(d)
	// No error, no warning: the encoder falls back to the absolute form.
	assert.Empty(t, asm.Errors())
	assert.Empty(t, asm.Warnings())
	assert.Equal(t, 4, asm.PC)
}

func TestConditionalBrkWarns(t *testing.T) {
	tab := NewP2Table()
	asm := NewAssembler(true, tab)
	d := &DecodedInstruction{Instr: tab.Lookup("brk"), NumOps: 1, HasCond: true, Cond: 0x5}
	asm.Emit(d)
	assert.Empty(t, asm.Errors())
	require.Len(t, asm.Warnings(), 1)
}

func TestCompress32To16RotatesBits(t *testing.T) {
	got := compress32to16(0x00004000)
	assert.EqualValues(t, 1, got)
}

func TestRelocListSortsByOffset(t *testing.T) {
	var list RelocList
	list.Add(Reloc{Kind: RelocAbs32, Offset: 8})
	list.Add(Reloc{Kind: RelocAbs32, Offset: 0})
	list.Add(Reloc{Kind: RelocAbs32, Offset: 4})
	sorted := list.Finish()
	require.Len(t, sorted, 3)
	assert.Equal(t, 0, sorted[0].Offset)
	assert.Equal(t, 4, sorted[1].Offset)
	assert.Equal(t, 8, sorted[2].Offset)
}

func TestAugRelocPromotedToPrefix(t *testing.T) {
	tab := NewP2Table()
	asm := NewAssembler(true, tab)
	d := &DecodedInstruction{
		Instr:  tab.Lookup("mov"),
		NumOps: 2,
		Operands: [3]Operand{
			{Kind: OperandRegister, Value: 1},
			{Kind: OperandImmediateLabel, Imm: ImmBigSrc, Label: "tbl", Reloc: &Symbol{Name: "tbl"}},
		},
		BigImmSrc: true,
	}
	asm.Emit(d)
	relocs := asm.Relocs.Finish()
	require.Len(t, relocs, 1)
	// The relocation kind was promoted to AUGS and sits at the prefix.
	assert.Equal(t, RelocAugsImm, relocs[0].Kind)
	assert.Equal(t, 0, relocs[0].Offset)
}

func TestComputeBranchDisplacementInRange(t *testing.T) {
	tab := NewP2Table()
	asm := NewAssembler(true, tab)
	disp, err := asm.ComputeBranchDisplacement("tjz", 1024, 0, 20)
	require.NoError(t, err)
	assert.EqualValues(t, (1024-4)/4, disp)
}

func TestCheckBoundaryRejectsCogHubCross(t *testing.T) {
	tab := NewP2Table()
	asm := NewAssembler(true, tab)
	assert.NoError(t, asm.CheckBoundary(true, true))
	assert.Error(t, asm.CheckBoundary(true, false))
}

func TestRepWithLabelComputesCount(t *testing.T) {
	tab := NewP2Table()
	asm := NewAssembler(true, tab)
	asm.Resolve = func(name string) (int, bool, bool) { return 4 + 3*4, false, true }
	d := &DecodedInstruction{
		Instr:    tab.Lookup("rep"),
		NumOps:   2,
		Operands: [3]Operand{{Kind: OperandImmediateLabel, Label: "end"}, {Kind: OperandImmediate, Imm: ImmShort, Value: 10}},
	}
	asm.Emit(d)
	assert.EqualValues(t, 3, d.Operands[0].Value)
}
