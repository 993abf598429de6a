package nubc

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInvertCBxxRoundTrips(t *testing.T) {
	inv, ok := InvertCBxx(OpCBLTS)
	require.True(t, ok)
	assert.Equal(t, OpCBGES, inv)
	back, ok := InvertCBxx(inv)
	require.True(t, ok)
	assert.Equal(t, OpCBLTS, back)
}

func TestReverseCBxxEquality(t *testing.T) {
	rev, ok := ReverseCBxx(OpCBEQ)
	require.True(t, ok)
	assert.Equal(t, OpCBEQ, rev)
}

func TestIsBranchCoversCBxxAndControlFlow(t *testing.T) {
	assert.True(t, IsBranch(OpCBLTS))
	assert.True(t, IsBranch(OpJMP))
	assert.False(t, IsBranch(OpADD))
}

func TestFrameEnterRetPacking(t *testing.T) {
	f := Frame{NArgs: 2, NLocals: 3, NResults: 1}
	enter := f.Enter()
	assert.Equal(t, OpENTER, enter.Op)
	assert.EqualValues(t, 1, enter.Imm>>24)
	assert.EqualValues(t, 2, (enter.Imm>>16)&0xFF)
	assert.EqualValues(t, 3, enter.Imm&0xFFFF)

	ret := f.Ret()
	assert.Equal(t, OpRET, ret.Op)
	assert.EqualValues(t, 2, ret.Imm>>16)
	assert.EqualValues(t, 1, ret.Imm&0xFFFF)

	assert.Equal(t, 2, f.FrameSlot(0))
}

func progOf(ops ...*Instr) Program { return Program(ops) }

func TestPackerAssignsHighUsageFirst(t *testing.T) {
	p := NewPacker()
	var prog Program
	for i := 0; i < 10; i++ {
		prog = append(prog, &Instr{Op: OpADD})
	}
	prog = append(prog, &Instr{Op: OpSUB})
	p.Observe(prog)

	asn := p.Pack([]Program{prog})
	addDesc := prog[0].BC
	subDesc := prog[10].BC
	require.NotNil(t, addDesc)
	require.NotNil(t, subDesc)
	assert.Less(t, addDesc.Slot, subDesc.Slot)
	assert.GreaterOrEqual(t, addDesc.Slot, 4)
	assert.Same(t, addDesc, asn.Slots[addDesc.Slot])
}

func TestPackerReservedSlots(t *testing.T) {
	p := NewPacker()
	prog := progOf(&Instr{Op: OpPUSHI, Imm: 12345678}, &Instr{Op: OpADD})
	p.Observe(prog)
	p.Pack([]Program{prog})
	// A cold unique constant keeps the generic PUSHI slot rather than
	// earning a specialization.
	assert.Equal(t, SlotPUSHI, prog[0].BC.Slot)
}

func TestPackerSpecializesHotConstant(t *testing.T) {
	p := NewPacker()
	var prog Program
	for i := 0; i < 100; i++ {
		prog = append(prog, &Instr{Op: OpPUSHI, Imm: 65_000})
	}
	p.Observe(prog)
	p.Pack([]Program{prog})
	// 100 uses at 2 bytes each dwarfs the 4-long implementation cost.
	assert.GreaterOrEqual(t, prog[0].BC.Slot, 4)
}

func TestPackerUniqueSlotsPerDescriptor(t *testing.T) {
	p := NewPacker()
	prog := progOf(
		&Instr{Op: OpADD}, &Instr{Op: OpSUB}, &Instr{Op: OpAND},
		&Instr{Op: OpIOR}, &Instr{Op: OpXOR},
	)
	p.Observe(prog)
	asn := p.Pack([]Program{prog})
	seen := map[int]bool{}
	for slot := range asn.Slots {
		assert.False(t, seen[slot], "slot %d assigned twice", slot)
		seen[slot] = true
		assert.GreaterOrEqual(t, slot, 0)
		assert.Less(t, slot, 256)
	}
}

func TestMacroFusionRewritesAdjacentPairs(t *testing.T) {
	p := NewPacker()
	p.MakeMacros = true
	var prog Program
	for i := 0; i < 50; i++ {
		// The RET fence keeps successive pairs from chaining into
		// deeper macros, which is not what this test is about.
		prog = append(prog, &Instr{Op: OpMULS}, &Instr{Op: OpDROP}, &Instr{Op: OpRET})
	}
	p.Observe(prog)
	p.Pack([]Program{prog})

	fused := prog[0].BC
	require.NotNil(t, fused)
	if assert.True(t, fused.IsMacro(), "hot adjacent pair should fuse") {
		assert.Equal(t, OpMULS, fused.First.Op)
		assert.Equal(t, OpDROP, fused.Second.Op)
		assert.True(t, prog[1].Deleted)
	}
}

func TestEligibleRejectsBranchesAndDepth(t *testing.T) {
	a := &Descriptor{Op: OpADD, Slot: 4, Depth: 1}
	b := &Descriptor{Op: OpSUB, Slot: 5, Depth: 1}
	assert.True(t, Eligible(a, b))

	br := &Descriptor{Op: OpJMP, Slot: 6, Depth: 1}
	assert.False(t, Eligible(a, br))

	deep := &Descriptor{Op: OpSUB, Slot: 5, Depth: 4}
	assert.False(t, Eligible(a, deep))

	unassigned := &Descriptor{Op: OpSUB, Slot: -1, Depth: 1}
	assert.False(t, Eligible(a, unassigned))
}

func TestCanFuseRejectsBranchesAndInlineAsm(t *testing.T) {
	assert.True(t, CanFuse(OpADD, OpSUB))
	assert.False(t, CanFuse(OpJMP, OpADD))
	assert.False(t, CanFuse(OpADD, OpINLINEASM))
}

func TestConstFormBoundaries(t *testing.T) {
	assert.Equal(t, ConstFormSmall, ConstFormOf(0))
	assert.Equal(t, ConstFormSmall, ConstFormOf(511))
	assert.Equal(t, ConstFormWord, ConstFormOf(512))
	assert.Equal(t, ConstFormWord, ConstFormOf(65535))
	assert.Equal(t, ConstFormLong, ConstFormOf(65536))
	assert.Equal(t, ConstFormLong, ConstFormOf(-1))
}

func TestScanImplsFindsEveryNamedOpcode(t *testing.T) {
	impls := ScanImpls(interpSource)
	for _, name := range []string{"DUP", "DROP", "ADD", "CBGEU", "DJNZ_FAST", "PUSHI"} {
		info, ok := impls[name]
		require.True(t, ok, "missing impl_%s", name)
		assert.Greater(t, info.Longs, 0)
	}
}

func TestOptimizeCollapsesDupDrop(t *testing.T) {
	prog := progOf(&Instr{Op: OpDUP}, &Instr{Op: OpDROP}, &Instr{Op: OpRET})
	Optimize(prog)
	assert.True(t, prog[0].Deleted)
	assert.True(t, prog[1].Deleted)
}

func TestOptimizeRemovesPushZeroAdd(t *testing.T) {
	prog := progOf(&Instr{Op: OpPUSHI, Imm: 0}, &Instr{Op: OpADD}, &Instr{Op: OpRET})
	Optimize(prog)
	assert.True(t, prog[0].Deleted)
	assert.True(t, prog[1].Deleted)
}

func TestOptimizeNarrowLoadSignExtend(t *testing.T) {
	prog := progOf(
		&Instr{Op: OpLDW, Arg: "x"},
		&Instr{Op: OpPUSHI, Imm: 15},
		&Instr{Op: OpSIGNX},
		&Instr{Op: OpRET},
	)
	Optimize(prog)
	assert.Equal(t, OpLDWS, prog[0].Op)
	assert.Equal(t, "x", prog[0].Arg)
	assert.True(t, prog[1].Deleted)
	assert.True(t, prog[2].Deleted)
}

func TestOptimizePushOneSubBecomesDec(t *testing.T) {
	prog := progOf(&Instr{Op: OpPUSHI, Imm: 1}, &Instr{Op: OpSUB}, &Instr{Op: OpRET})
	Optimize(prog)
	assert.Equal(t, OpDEC, prog[0].Op)
	assert.True(t, prog[1].Deleted)
}

func TestOptimizeDupAddBecomesDouble(t *testing.T) {
	prog := progOf(&Instr{Op: OpDUP}, &Instr{Op: OpADD}, &Instr{Op: OpRET})
	Optimize(prog)
	assert.Equal(t, OpDOUBLE, prog[0].Op)
	assert.True(t, prog[1].Deleted)
}

func TestOptimizeSwapCommutes(t *testing.T) {
	prog := progOf(&Instr{Op: OpSWAP}, &Instr{Op: OpADD}, &Instr{Op: OpRET})
	Optimize(prog)
	assert.Equal(t, OpADD, prog[0].Op)
	assert.True(t, prog[1].Deleted)
}

func TestOptimizeSwapReversesCompareBranch(t *testing.T) {
	prog := progOf(
		&Instr{Op: OpSWAP},
		&Instr{Op: OpCBLTS, Label: "out"},
		&Instr{Op: OpLABEL, Arg: "out"},
	)
	Optimize(prog)
	assert.Equal(t, OpCBGTS, prog[0].Op)
	assert.Equal(t, "out", prog[0].Label)
}

func TestOptimizePushZeroCbneBecomesBnz(t *testing.T) {
	prog := progOf(
		&Instr{Op: OpPUSHI, Imm: 0},
		&Instr{Op: OpCBNE, Label: "loop"},
		&Instr{Op: OpLABEL, Arg: "loop"},
	)
	Optimize(prog)
	assert.Equal(t, OpBNZ, prog[0].Op)
	assert.Equal(t, "loop", prog[0].Label)
}

func TestOptimizeInvertsCBxxOverBranch(t *testing.T) {
	prog := progOf(
		&Instr{Op: OpCBLTS, Label: "skip"},
		&Instr{Op: OpBRA, Label: "loop"},
		&Instr{Op: OpLABEL, Arg: "skip"},
		&Instr{Op: OpLABEL, Arg: "loop"},
		&Instr{Op: OpRET},
	)
	Optimize(prog)
	assert.Equal(t, OpCBGES, prog[0].Op)
	assert.Equal(t, "loop", prog[0].Label)
	assert.True(t, prog[1].Deleted)
}

func TestOptimizeDupsRepeatedDbaseLoad(t *testing.T) {
	prog := progOf(
		&Instr{Op: OpPUSHI, Imm: 8},
		&Instr{Op: OpADD_DBASE},
		&Instr{Op: OpLDL},
		&Instr{Op: OpPUSHI, Imm: 8},
		&Instr{Op: OpADD_DBASE},
		&Instr{Op: OpLDL},
		&Instr{Op: OpADD},
		&Instr{Op: OpRET},
	)
	Optimize(prog)
	assert.Equal(t, OpDOUBLE, prog[3].Op) // DUP; ADD collapses further
	assert.True(t, prog[4].Deleted)
	assert.True(t, prog[5].Deleted)
}

func TestOptimizeRecognizesDjnzFastTail(t *testing.T) {
	prog := progOf(
		&Instr{Op: OpLABEL, Arg: "top"},
		&Instr{Op: OpNEG},
		&Instr{Op: OpPUSHI, Imm: 12},
		&Instr{Op: OpADD_DBASE},
		&Instr{Op: OpLDL},
		&Instr{Op: OpDEC},
		&Instr{Op: OpDUP},
		&Instr{Op: OpPUSHI, Imm: 12},
		&Instr{Op: OpADD_DBASE},
		&Instr{Op: OpSTL},
		&Instr{Op: OpBNZ, Label: "top"},
		&Instr{Op: OpRET},
	)
	Optimize(prog)
	assert.Equal(t, OpDJNZ_FAST, prog[10].Op)
	for i := 2; i < 10; i++ {
		assert.True(t, prog[i].Deleted, "tail instruction %d should be folded", i)
	}
}

func TestOptimizeSkipsDjnzFastWhenSlotAliased(t *testing.T) {
	prog := progOf(
		&Instr{Op: OpLABEL, Arg: "top"},
		&Instr{Op: OpPUSHI, Imm: 12},
		&Instr{Op: OpADD_DBASE},
		&Instr{Op: OpSTL}, // conflicting access to DBASE[12] inside the loop
		&Instr{Op: OpPUSHI, Imm: 12},
		&Instr{Op: OpADD_DBASE},
		&Instr{Op: OpLDL},
		&Instr{Op: OpDEC},
		&Instr{Op: OpDUP},
		&Instr{Op: OpPUSHI, Imm: 12},
		&Instr{Op: OpADD_DBASE},
		&Instr{Op: OpSTL},
		&Instr{Op: OpBNZ, Label: "top"},
		&Instr{Op: OpRET},
	)
	Optimize(prog)
	assert.Equal(t, OpBNZ, prog[12].Op)
}

func TestOptimizeRemovesDeadCodeAfterReturn(t *testing.T) {
	prog := progOf(
		&Instr{Op: OpBZ, Label: "alive"},
		&Instr{Op: OpRET},
		&Instr{Op: OpNEG},
		&Instr{Op: OpABS},
		&Instr{Op: OpLABEL, Arg: "alive"},
		&Instr{Op: OpRET},
	)
	Optimize(prog)
	assert.True(t, prog[2].Deleted)
	assert.True(t, prog[3].Deleted)
	assert.False(t, prog[4].Deleted)
}

func TestOptimizePreservesJumpTables(t *testing.T) {
	prog := progOf(
		&Instr{Op: OpJMPREL},
		&Instr{Op: OpBRA3, Label: "case0"},
		&Instr{Op: OpBRA3, Label: "case1"},
		&Instr{Op: OpLABEL, Arg: "case0"},
		&Instr{Op: OpRET},
		&Instr{Op: OpLABEL, Arg: "case1"},
		&Instr{Op: OpRET},
	)
	Optimize(prog)
	assert.False(t, prog[1].Deleted)
	assert.False(t, prog[2].Deleted)
}

func TestOptimizeSweepsUnreferencedLabels(t *testing.T) {
	prog := progOf(
		&Instr{Op: OpLABEL, Arg: "orphan"},
		&Instr{Op: OpRET},
	)
	Optimize(prog)
	assert.True(t, prog[0].Deleted)
}

// TestOptimizeIsFixedPoint covers the round-trip property: running
// the peephole pass on an already-optimized program changes nothing.
// go-cmp gives a readable diff of the *Instr sequence (down to which
// fields of which node moved) rather than a single bool from
// reflect.DeepEqual, which matters here since a failure means the pass
// isn't converging.
func TestOptimizeIsFixedPoint(t *testing.T) {
	prog := progOf(
		&Instr{Op: OpPUSHI, Imm: 1},
		&Instr{Op: OpSUB},
		&Instr{Op: OpDUP},
		&Instr{Op: OpDROP},
		&Instr{Op: OpCBLTS, Label: "skip"},
		&Instr{Op: OpBRA, Label: "loop"},
		&Instr{Op: OpLABEL, Arg: "skip"},
		&Instr{Op: OpLABEL, Arg: "loop"},
		&Instr{Op: OpRET},
	)
	Optimize(prog)

	snapshot := make(Program, len(prog))
	for i, ins := range prog {
		cp := *ins
		snapshot[i] = &cp
	}

	Optimize(prog)
	opts := cmpopts.IgnoreFields(Instr{}, "BC")
	if diff := cmp.Diff(snapshot, prog, opts); diff != "" {
		t.Fatalf("second Optimize pass was not a fixed point (-before +after):\n%s", diff)
	}
}

func TestEmitterBytecodeWithinDispatchRange(t *testing.T) {
	p := NewPacker()
	prog := progOf(
		&Instr{Op: OpPUSHI, Imm: 5},
		&Instr{Op: OpSTL},
		&Instr{Op: OpLDL},
		&Instr{Op: OpMULS},
		&Instr{Op: OpRET},
	)
	p.Observe(prog)
	asn := p.Pack([]Program{prog})

	e := NewEmitter(asn)
	e.EmitProgram(prog)
	require.Empty(t, e.Errors())
	require.Greater(t, e.Code.Len(), 0)
	assert.Equal(t, byte(SlotPUSHI), e.Code.Bytes()[0])
}

func TestInterpreterSourceContainsTableAndBytecode(t *testing.T) {
	p := NewPacker()
	prog := progOf(&Instr{Op: OpADD}, &Instr{Op: OpRET})
	p.Observe(prog)
	asn := p.Pack([]Program{prog})

	src := InterpreterSource(asn, []byte{0x04, 0x05})
	assert.True(t, strings.Contains(src, "__opcode_table"))
	assert.True(t, strings.Contains(src, "__bytecode_start"))
	assert.True(t, strings.Contains(src, "__trampoline"))
	assert.True(t, strings.Contains(src, "byte\t$04, $05"))
}
