package compiler

import (
	"os"

	"github.com/sirupsen/logrus"

	"github.com/totalspectrum/propcore/ast"
	"github.com/totalspectrum/propcore/debugbrk"
	"github.com/totalspectrum/propcore/internal/flex"
	"github.com/totalspectrum/propcore/module"
	"github.com/totalspectrum/propcore/symtab"
)

// Driver holds one compile run's options, diagnostics sink, global
// scope, and module list, and exposes the upstream (parser-facing) and
// downstream (output-facing) interfaces, logging each phase boundary.
type Driver struct {
	Opts    Options
	Sink    *ErrorSink
	Log     *logrus.Logger
	Global  *symtab.Table
	Modules []*module.Module

	DebugTable *debugbrk.Table

	errorsSoFar int
}

// flexFromBytes wraps a pre-existing byte slice in a flex.Buffer for
// reuse by the postprocess/dat pipelines.
func flexFromBytes(data []byte) *flex.Buffer {
	buf := flex.New(len(data))
	buf.Write(data)
	return buf
}

// NewDriver wires a fresh run: a text-formatted logrus logger at Info
// level (Debug when Opts.Debug is set), an ErrorSink over stderr, and an
// empty global scope.
func NewDriver(opts Options) *Driver {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if opts.Debug {
		log.SetLevel(logrus.DebugLevel)
	}
	return &Driver{
		Opts:   opts,
		Sink:   NewErrorSink(os.Stderr, true, opts.MaxErrors, false),
		Log:    log,
		Global: symtab.NewTable(nil, opts.CaseSensitive, "<global>"),
	}
}

// NewModule registers a fresh surface-language module. The first
// module of a run is the distinguished top-level module.
func (d *Driver) NewModule(fullname, language string) *module.Module {
	m := module.New(fullname, d.Global)
	m.Language = language
	m.Source = fullname
	if len(d.Modules) == 0 {
		m.IsTop = true
	}
	d.Modules = append(d.Modules, m)
	d.Log.WithField("module", fullname).WithField("language", language).Debug("declared module")
	return m
}

// DeclareFunction attaches a parsed function (declaration, body,
// annotations, doc comment) to its module and local scope.
func (d *Driver) DeclareFunction(m *module.Module, retType *ast.Node, isPublic bool, funcdef, body, annotations, comment *ast.Node) *module.Function {
	name := funcdef.SVal
	fn := &module.Function{
		Name:       name,
		IsPublic:   isPublic,
		Decl:       funcdef,
		Body:       body,
		LocalScope: symtab.NewTable(m.Scope, m.Scope.CaseSensitive, name),
	}
	m.AddFunction(fn)
	if _, err := m.Scope.AddPlaced(name, symtab.KindFunction, fn, name, funcdef); err != nil {
		d.Sink.Report(SymbolError(funcdef.Loc, "%v", err))
	}
	d.Log.WithField("module", m.Name).WithField("func", name).WithField("public", isPublic).Debug("declared function")
	return fn
}

// MakeDeclaration wraps an identifier and its type into the declaration
// node shape the block walkers expect.
func (d *Driver) MakeDeclaration(ident, typeNode, initExpr *ast.Node) *ast.Node {
	decl := ast.New(ast.KindVarDecl, typeNode, initExpr)
	decl.SVal = ident.SVal
	decl.Loc = ident.Loc
	return decl
}

// DeclareConstants walks a right-linear chain of KindConstDecl nodes,
// binding each into the module's scope.
func (d *Driver) DeclareConstants(m *module.Module, conblock *ast.Node) {
	for _, c := range ast.ListElements(conblock) {
		if c.Kind != ast.KindConstDecl {
			continue
		}
		if _, err := m.Scope.Add(c.SVal, symtab.KindConstant, c.Left, c.SVal); err != nil {
			d.Sink.Report(SymbolError(c.Loc, "%v", err))
		}
	}
}

// DeclareOneGlobalVar binds one global variable into the module's
// scope. inDat is not recorded: DAT and non-DAT variables are bound the
// same way.
func (d *Driver) DeclareOneGlobalVar(m *module.Module, ident, typeNode *ast.Node, inDat bool) *symtab.Symbol {
	kind := symtab.KindVariable
	sym, err := m.Scope.Add(ident.SVal, kind, typeNode, ident.SVal)
	if err != nil {
		d.Sink.Report(SymbolError(ident.Loc, "%v", err))
		return nil
	}
	m.Fields = append(m.Fields, sym)
	return sym
}

// DeclareOneMemberVar is the member-variable variant, identical in
// shape to DeclareOneGlobalVar but always in-object (no DAT flag).
func (d *Driver) DeclareOneMemberVar(m *module.Module, ident, typeNode *ast.Node) *symtab.Symbol {
	return d.DeclareOneGlobalVar(m, ident, typeNode, false)
}

// DeclareTypedGlobalVariables is the bulk variant over a right-linear
// list of identifier nodes sharing one type.
func (d *Driver) DeclareTypedGlobalVariables(m *module.Module, idents []*ast.Node, typeNode *ast.Node, inDat bool) []*symtab.Symbol {
	out := make([]*symtab.Symbol, 0, len(idents))
	for _, id := range idents {
		if sym := d.DeclareOneGlobalVar(m, id, typeNode, inDat); sym != nil {
			out = append(out, sym)
		}
	}
	return out
}

// DeclareTypedRegisterVariables is the hardware-register-backed
// variant: same binding, tagged FlagNoAlloc since a register variable's
// storage is the hardware register itself, not a hub/DAT slot.
func (d *Driver) DeclareTypedRegisterVariables(m *module.Module, idents []*ast.Node, typeNode *ast.Node) []*symtab.Symbol {
	out := d.DeclareTypedGlobalVariables(m, idents, typeNode, false)
	for _, sym := range out {
		sym.Flags |= symtab.FlagNoAlloc
	}
	return out
}

// NewObject declares a concrete sub-object: a nested module scoped
// under the parent.
func (d *Driver) NewObject(parent *module.Module, filename string) *module.Module {
	sub := module.New(filename, parent.Scope)
	return sub
}

// NewAbstractObject is a NewObject
// whose concrete backing type is resolved later (generic/interface use).
func (d *Driver) NewAbstractObject(parent *module.Module, filename string) *module.Module {
	return d.NewObject(parent, filename)
}

// NewObjectWithParams / NewAbstractObjectWithParams implement the
// parameterized sub-object forms: a param-override AST is stashed on the
// returned module's scope under a reserved name for later substitution.
func (d *Driver) NewObjectWithParams(parent *module.Module, filename string, params *ast.Node) *module.Module {
	sub := d.NewObject(parent, filename)
	sub.Scope.Add("__params", symtab.KindAlias, params, "__params")
	return sub
}

func (d *Driver) NewAbstractObjectWithParams(parent *module.Module, filename string, params *ast.Node) *module.Module {
	return d.NewObjectWithParams(parent, filename, params)
}

// flexWriter is the common shape OutputDatFile/OutputAsmCode/etc. use to
// hand a finished byte buffer to the filesystem: write-if-no-prior-
// errors, per the "no output files are written past the phase that
// failed".
func (d *Driver) flexWriter(path string, buf *flex.Buffer) error {
	if d.Sink.HasErrors() {
		d.Log.WithField("path", path).Warn("skipping output: earlier phase reported errors")
		return nil
	}
	return os.WriteFile(path, buf.Bytes(), 0644)
}
