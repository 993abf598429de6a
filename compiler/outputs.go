package compiler

import (
	"os"

	"github.com/totalspectrum/propcore/ast"
	"github.com/totalspectrum/propcore/dat"
	"github.com/totalspectrum/propcore/debugbrk"
	"github.com/totalspectrum/propcore/module"
	"github.com/totalspectrum/propcore/nubc"
	"github.com/totalspectrum/propcore/pasm"
	"github.com/totalspectrum/propcore/postprocess"
	"github.com/totalspectrum/propcore/stackbc"
)

// OutputDatFile serializes m's DAT block and writes the resulting
// image, optionally wrapped in the P1 Spin header and launcher.
func (d *Driver) OutputDatFile(path string, m *module.Module, prefixWithSpinHeader bool) error {
	s := dat.New()
	s.IsP2 = d.Opts.P2
	if m.DatBlock != nil {
		s.Emit(m.DatBlock)
	}
	for _, fn := range m.Functions {
		if fn.Body != nil && fn.Body.Kind == ast.KindStmtList {
			s.Emit(fn.Body)
		}
	}
	for _, err := range s.Errors() {
		d.Sink.Report(LayoutError(ast.SourceLoc{}, "%v", err))
	}
	for _, w := range s.Warnings() {
		d.Sink.Warn(LayoutError(ast.SourceLoc{}, "%v", w))
	}
	if prefixWithSpinHeader {
		body := s.Code.Bytes()
		total := P1HeaderSize + len(body) + P1LauncherSize
		clkFreq := d.constOr(m, symClkFreq, 12_000_000)
		var clkReg byte
		if sym := m.Scope.Lookup(conClkReg); sym != nil {
			if v, ok := constValue(sym); ok {
				clkReg = byte(v)
			}
		}
		out := BuildP1Header(clkFreq, clkReg, total)
		out = append(out, body...)
		out = append(out, P1Launcher()...)
		if d.Sink.HasErrors() {
			return nil
		}
		return os.WriteFile(path, out, 0644)
	}
	return d.flexWriter(path, s.Code)
}

// OutputAsmCode writes optimised PASM for a module: assembles every
// INSTRHOLDER in m's functions through the PASM backend and writes the
// resulting code buffer.
func (d *Driver) OutputAsmCode(path string, m *module.Module, printMain bool) error {
	tab := pasm.NewTableFor(d.Opts.P2)
	asm := pasm.NewAssembler(d.Opts.P2, tab)
	for _, fn := range m.Functions {
		d.assembleBody(asm, tab, fn.Body)
	}
	for _, err := range asm.Errors() {
		d.Sink.Report(AsmError(ast.SourceLoc{}, "%v", err))
	}
	for _, w := range asm.Warnings() {
		d.Sink.Warn(AsmError(ast.SourceLoc{}, "%v", w))
	}
	return d.flexWriter(path, asm.Code)
}

func (d *Driver) assembleBody(asm *pasm.Assembler, tab *pasm.Table, n *ast.Node) {
	if n == nil {
		return
	}
	if n.Kind == ast.KindStmtList {
		for _, e := range ast.ListElements(n) {
			d.assembleBody(asm, tab, e)
		}
		return
	}
	if n.Kind != ast.KindInstrHolder {
		return
	}
	instr := tab.Lookup(n.SVal)
	if instr == nil {
		d.Sink.Report(AsmError(n.Loc, "unknown mnemonic %q", n.SVal))
		return
	}
	decoded, err := pasm.DecodeOperands(instr, n, d.Opts.P2)
	if err != nil {
		d.Sink.Report(AsmError(n.Loc, "%v", err))
		return
	}
	if n.Data != nil {
		if mods, ok := n.Data.(*ast.Node); ok {
			if err := pasm.DecodeModifiers(decoded, mods, d.Opts.P2); err != nil {
				d.Sink.Report(AsmError(n.Loc, "%v", err))
				return
			}
		}
	}
	asm.Emit(decoded)
}

// OutputNuCode writes the Nu-interpreter output module: optimizes
// every function's Nu IR program (attached as Function.BackendData by
// the code-generation phase), packs the dispatch table, serializes the
// bytecode, and writes the interpreter source around it.
func (d *Driver) OutputNuCode(path string, m *module.Module) error {
	var progs []nubc.Program
	module.VisitAllFunctions(m, module.VisitBCOptimize, func(fn *module.Function) {
		prog, ok := fn.BackendData.(nubc.Program)
		if !ok || prog == nil {
			return
		}
		if d.Opts.Has(OptPeephole) {
			nubc.Optimize(prog)
		}
		nubc.Sequence(prog)
		progs = append(progs, prog)
	})

	packer := nubc.NewPacker()
	packer.MakeMacros = d.Opts.Has(OptMakeMacros)
	for _, prog := range progs {
		packer.Observe(prog)
	}
	assignment := packer.Pack(progs)

	emitter := nubc.NewEmitter(assignment)
	for _, prog := range progs {
		emitter.EmitProgram(prog)
	}
	for _, err := range emitter.Errors() {
		d.Sink.Report(AsmError(ast.SourceLoc{}, "%v", err))
	}
	if d.Sink.HasErrors() {
		return nil
	}
	src := nubc.InterpreterSource(assignment, emitter.Code.Bytes())
	return os.WriteFile(path, []byte(src), 0644)
}

// OutputBytecode writes the P1 bytecode image: lowers
// every function body through the P1 stack bytecode compiler and
// concatenates the results behind the per-module method table.
func (d *Driver) OutputBytecode(path string, m *module.Module) error {
	// Method table: one placeholder word per function for its eventual
	// hub address plus its stack-growth field.
	out := make([]byte, 0, 256)
	var bodies [][]byte
	for _, fn := range m.Functions {
		c := stackbc.NewCompiler(len(fn.Params), len(fn.Locals))
		if err := c.CompileFunctionBody(fn.Body); err != nil {
			d.Sink.Report(AsmError(ast.SourceLoc{}, "function %s: %v", fn.Name, err))
			continue
		}
		growth := c.StackGrowth()
		out = append(out, 0, 0, byte(growth), byte(growth>>8))
		bodies = append(bodies, c.Code.Bytes())
	}
	tableSize := len(out)
	off := tableSize
	for i, body := range bodies {
		out[4*i] = byte(off)
		out[4*i+1] = byte(off >> 8)
		off += len(body)
	}
	for _, body := range bodies {
		out = append(out, body...)
	}
	if d.Sink.HasErrors() {
		return nil
	}
	return os.WriteFile(path, out, 0644)
}

// CompileBrkDebugger builds the debugger prepend blob: compiles the
// embedded debug stub's parameter block, patches it, and appends the
// per-breakpoint table.
func (d *Driver) CompileBrkDebugger(appsize int) []byte {
	if d.DebugTable == nil {
		d.DebugTable = &debugbrk.Table{}
	}
	stub := make([]byte, 0x40) // parameter block + stub entry code
	params := postprocess.DebugStubParams{
		ClkFreq: uint32(d.constOrTop(conClkFreq, 160_000_000)),
		ClkMode: uint32(d.constOrTop(conClkMode, 0)),
		AppSize: uint32(appsize),
		CogMask: 0xFF,
		TxPin:   62,
		RxPin:   63,
		Baud:    uint32(d.Opts.DefaultBaud),
	}
	return postprocess.BuildDebuggerBlob(stub, params, d.DebugTable.Serialize().Bytes())
}

func (d *Driver) constOrTop(name string, fallback int64) int64 {
	for _, m := range d.Modules {
		if m.IsTop {
			return d.constOr(m, name, fallback)
		}
	}
	return fallback
}

// CompressExecutable wraps an image for self-extraction via
// postprocess.Pipeline.Compress.
func (d *Driver) CompressExecutable(data []byte) []byte {
	p := &postprocess.Pipeline{Target: postprocess.Target{IsP2: d.Opts.P2}}
	buf := flexFromBytes(data)
	out := p.Compress(buf)
	for _, w := range p.Warnings {
		d.Sink.Warn(ResourceError(ast.SourceLoc{}, "%s", w.Message))
	}
	return out.Bytes()
}

// DoPropellerPostprocess finalises an on-disk image: reads it back,
// applies the pipeline in order, and rewrites the file.
func (d *Driver) DoPropellerPostprocess(path string, eepromSize int) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	buf := flexFromBytes(raw)
	p := &postprocess.Pipeline{Target: postprocess.Target{
		IsP2:           d.Opts.P2,
		EEPROMSize:     eepromSize,
		DebuggerLinked: d.Opts.BrkDebug,
	}}
	p.Pad(buf)
	stackLongs, freeLongs := 0, 0
	for _, m := range d.Modules {
		if m.IsTop {
			stackLongs, freeLongs = StackFreeReservation(m)
			break
		}
	}
	p.CheckReservation(buf, stackLongs, freeLongs)
	p.CheckSize(buf)
	p.Checksum(buf)
	p.EEPROMTail(buf, eepromSize)
	for _, w := range p.Warnings {
		d.Sink.Warn(ResourceError(ast.SourceLoc{}, "%s", w.Message))
	}
	return os.WriteFile(path, buf.Bytes(), 0644)
}
