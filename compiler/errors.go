// Package compiler ties the AST/symbol/type model and the back ends
// together behind the external interfaces, and owns the ambient
// concerns (error reporting, options, logging) that every pass shares.
package compiler

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/totalspectrum/propcore/ast"
)

// Category classifies a diagnostic per the error taxonomy.
type Category int

const (
	CategoryInternal Category = iota
	CategorySymbol
	CategoryType
	CategoryAsm
	CategoryLayout
	CategoryResource
)

func (c Category) String() string {
	switch c {
	case CategorySymbol:
		return "symbol error"
	case CategoryType:
		return "type error"
	case CategoryAsm:
		return "asm error"
	case CategoryLayout:
		return "layout error"
	case CategoryResource:
		return "resource error"
	case CategoryInternal:
		return "internal error"
	default:
		return "error"
	}
}

// Diagnostic is the common shape for every reported problem; the category
// constructors below (SymbolError, TypeError, …) are thin builders over it.
type Diagnostic struct {
	Category Category
	Loc      ast.SourceLoc
	Message  string
	Warning  bool
	// PrevLoc and PrevMessage carry an optional "previous definition here"
	// note.
	PrevLoc     ast.SourceLoc
	PrevMessage string
	HasPrev     bool
}

func (d *Diagnostic) Error() string {
	if d.Loc.File != "" {
		return fmt.Sprintf("%s:%d: %s: %s", d.Loc.File, d.Loc.Line, d.Category, d.Message)
	}
	return fmt.Sprintf("%s: %s", d.Category, d.Message)
}

func SymbolError(loc ast.SourceLoc, format string, args ...interface{}) *Diagnostic {
	return &Diagnostic{Category: CategorySymbol, Loc: loc, Message: fmt.Sprintf(format, args...)}
}

func TypeError(loc ast.SourceLoc, format string, args ...interface{}) *Diagnostic {
	return &Diagnostic{Category: CategoryType, Loc: loc, Message: fmt.Sprintf(format, args...)}
}

func AsmError(loc ast.SourceLoc, format string, args ...interface{}) *Diagnostic {
	return &Diagnostic{Category: CategoryAsm, Loc: loc, Message: fmt.Sprintf(format, args...)}
}

func LayoutError(loc ast.SourceLoc, format string, args ...interface{}) *Diagnostic {
	return &Diagnostic{Category: CategoryLayout, Loc: loc, Message: fmt.Sprintf(format, args...)}
}

func ResourceError(loc ast.SourceLoc, format string, args ...interface{}) *Diagnostic {
	return &Diagnostic{Category: CategoryResource, Loc: loc, Message: fmt.Sprintf(format, args...)}
}

func InternalError(loc ast.SourceLoc, kind ast.Kind, format string, args ...interface{}) *Diagnostic {
	msg := fmt.Sprintf(format, args...)
	return &Diagnostic{Category: CategoryInternal, Loc: loc, Message: fmt.Sprintf("%s (AST kind %d)", msg, kind)}
}

// WithPrevious attaches a "previous definition here" note and returns d for
// chaining at the call site.
func (d *Diagnostic) WithPrevious(loc ast.SourceLoc, format string, args ...interface{}) *Diagnostic {
	d.HasPrev = true
	d.PrevLoc = loc
	d.PrevMessage = fmt.Sprintf(format, args...)
	return d
}

// ErrorSink accumulates diagnostics for a compile run: a typed,
// colour-aware sink that terminates the run once the error cap is
// reached.
type ErrorSink struct {
	Out              io.Writer
	Colorize         bool
	MaxErrors        int
	WarningsAsErrors bool

	diagnostics []*Diagnostic
	errorCount  int
}

// NewErrorSink builds a sink writing to w. If w is os.Stderr (or nil,
// defaulting to it) and colorize is "auto", colour is enabled only when
// the stream is a terminal.
func NewErrorSink(w io.Writer, colorizeAuto bool, maxErrors int, warningsAsErrors bool) *ErrorSink {
	if w == nil {
		w = os.Stderr
	}
	colorize := false
	if colorizeAuto {
		if f, ok := w.(*os.File); ok {
			colorize = term.IsTerminal(int(f.Fd()))
		}
	}
	return &ErrorSink{Out: w, Colorize: colorize, MaxErrors: maxErrors, WarningsAsErrors: warningsAsErrors}
}

// Report records and immediately prints d.
// It returns true if the run must now terminate (error budget exhausted).
func (s *ErrorSink) Report(d *Diagnostic) (shouldStop bool) {
	s.diagnostics = append(s.diagnostics, d)
	s.print(d)
	if !d.Warning || s.WarningsAsErrors {
		s.errorCount++
	}
	if s.MaxErrors > 0 && s.errorCount >= s.MaxErrors {
		return true
	}
	return false
}

// Warn reports d as a warning regardless of d.Warning's current value.
func (s *ErrorSink) Warn(d *Diagnostic) bool {
	d.Warning = true
	return s.Report(d)
}

func (s *ErrorSink) print(d *Diagnostic) {
	label := d.Category.String()
	prefix := label
	line := d.Error()
	if s.Colorize {
		c := color.New(color.FgRed, color.Bold)
		if d.Warning {
			c = color.New(color.FgYellow, color.Bold)
		}
		prefix = c.Sprint(label)
		if d.Loc.File != "" {
			line = fmt.Sprintf("%s:%d: %s: %s", d.Loc.File, d.Loc.Line, prefix, d.Message)
		} else {
			line = fmt.Sprintf("%s: %s", prefix, d.Message)
		}
	}
	fmt.Fprintln(s.Out, line)
	if d.HasPrev {
		fmt.Fprintf(s.Out, "%s:%d: note: %s\n", d.PrevLoc.File, d.PrevLoc.Line, d.PrevMessage)
	}
}

// ErrorCount returns the number of diagnostics counted as errors so far:
// every non-warning, plus warnings when WarningsAsErrors is set.
func (s *ErrorSink) ErrorCount() int { return s.errorCount }

// HasErrors reports whether any pass should treat the run as failed.
func (s *ErrorSink) HasErrors() bool { return s.errorCount > 0 }

// All returns every diagnostic reported so far, in report order.
func (s *ErrorSink) All() []*Diagnostic { return s.diagnostics }
