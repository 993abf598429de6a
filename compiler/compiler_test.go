package compiler

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/totalspectrum/propcore/ast"
	"github.com/totalspectrum/propcore/clock"
	"github.com/totalspectrum/propcore/symtab"
)

func TestReplaceExtensionIsIdempotent(t *testing.T) {
	assert.Equal(t, "prog.a", ReplaceExtension("prog.spin2", ".a"))
	assert.Equal(t, "prog.a", ReplaceExtension(ReplaceExtension("prog.spin2", ".a"), ".a"))
	assert.Equal(t, "dir.v1/prog.a", ReplaceExtension("dir.v1/prog", ".a"))
}

func TestErrorSinkCountsAndStops(t *testing.T) {
	var buf bytes.Buffer
	sink := NewErrorSink(&buf, false, 2, false)
	stop := sink.Report(TypeError(ast.SourceLoc{File: "x.spin", Line: 3}, "bad cast"))
	assert.False(t, stop)
	stop = sink.Report(SymbolError(ast.SourceLoc{}, "duplicate"))
	assert.True(t, stop)
	assert.Equal(t, 2, sink.ErrorCount())
	assert.Contains(t, buf.String(), "x.spin:3")
}

func TestWarningsDoNotCountUnlessConfigured(t *testing.T) {
	sink := NewErrorSink(&bytes.Buffer{}, false, 10, false)
	sink.Warn(ResourceError(ast.SourceLoc{}, "image large"))
	assert.Equal(t, 0, sink.ErrorCount())

	strict := NewErrorSink(&bytes.Buffer{}, false, 10, true)
	strict.Warn(ResourceError(ast.SourceLoc{}, "image large"))
	assert.Equal(t, 1, strict.ErrorCount())
}

func TestDriverDeclaresModulesAndFunctions(t *testing.T) {
	d := NewDriver(DefaultOptions())
	d.Sink = NewErrorSink(&bytes.Buffer{}, false, 10, false)
	top := d.NewModule("main.spin2", "spin2")
	assert.True(t, top.IsTop)
	sub := d.NewModule("serial.spin2", "spin2")
	assert.False(t, sub.IsTop)

	fn := d.DeclareFunction(top, nil, true, &ast.Node{Kind: ast.KindFuncDef, SVal: "start"}, nil, nil, nil)
	require.NotNil(t, fn)
	assert.True(t, fn.IsPublic)
	require.NotNil(t, top.Scope.Lookup("start"))

	// Redeclaration is a symbol error.
	d.DeclareFunction(top, nil, false, &ast.Node{Kind: ast.KindFuncDef, SVal: "start"}, nil, nil, nil)
	assert.True(t, d.Sink.HasErrors())
}

func TestResolveClockConfigInjectsConstants(t *testing.T) {
	opts := DefaultOptions()
	opts.P2 = true
	opts.DefaultXtlFreq = 20_000_000
	d := NewDriver(opts)
	d.Sink = NewErrorSink(&bytes.Buffer{}, false, 10, false)
	top := d.NewModule("main.spin2", "spin2")
	_, err := top.Scope.Add("_clkfreq", symtab.KindConstant, int64(160_000_000), "_CLKFREQ")
	require.NoError(t, err)

	cfg, err := d.ResolveClockConfig(top, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 160_000_000, cfg.ClkFreq)
	require.NotNil(t, top.Scope.Lookup("__clkfreq_con"))
	require.NotNil(t, top.Scope.Lookup("__clkmode_con"))
}

func TestResolveClockConfigP1LegacyFlags(t *testing.T) {
	d := NewDriver(DefaultOptions())
	d.Sink = NewErrorSink(&bytes.Buffer{}, false, 10, false)
	top := d.NewModule("main.spin", "spin1")
	_, err := top.Scope.Add("_clkmode", symtab.KindConstant, int64(clock.XTAL1|clock.PLL16X), "_CLKMODE")
	require.NoError(t, err)
	_, err = top.Scope.Add("_xinfreq", symtab.KindConstant, int64(5_000_000), "_XINFREQ")
	require.NoError(t, err)

	cfg, err := d.ResolveClockConfig(top, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 80_000_000, cfg.ClkFreq)
	assert.Equal(t, byte(0x6F), cfg.ClkReg)
}

func TestStackFreeReservationReadsConstants(t *testing.T) {
	d := NewDriver(DefaultOptions())
	top := d.NewModule("main.spin", "spin1")
	top.Scope.Add("_stack", symtab.KindConstant, int64(64), "_STACK")
	top.Scope.Add("_free", symtab.KindConstant, int64(32), "_FREE")
	s, f := StackFreeReservation(top)
	assert.Equal(t, 64, s)
	assert.Equal(t, 32, f)
}

func TestBuildP1HeaderLayout(t *testing.T) {
	h := BuildP1Header(80_000_000, 0x6F, 28)
	require.Len(t, h, P1HeaderSize)
	freq := uint32(h[0]) | uint32(h[1])<<8 | uint32(h[2])<<16 | uint32(h[3])<<24
	assert.EqualValues(t, 80_000_000, freq)
	assert.Equal(t, byte(0x6F), h[4])
	assert.Equal(t, byte(0), h[5]) // checksum filled by postprocess
	pbase := int(h[6]) | int(h[7])<<8
	assert.Equal(t, P1HeaderSize, pbase)
}
