package module

// VisitFlag is the phase bitmask: each compilation phase carries
// its own bit, set on a module when the phase's callback has run there,
// so the recursive walk never fires twice for the same (module, phase)
// pair.
type VisitFlag uint32

const (
	VisitInit VisitFlag = 1 << iota
	VisitFuncNames
	VisitCompileFuncs
	VisitExpandInline
	VisitEmitDat
	VisitBCOptimize
	VisitCompileIRCog
	VisitCompileIRHub
	VisitCompileIRLut
)

// Current holds the "current module / current function" globals the
// passes read.
type Current struct {
	Module   *Module
	Function *Function
}

// Cur is the process-wide current-context cell. The compiler is
// single-threaded; passes read it freely and the visitor is the
// only writer.
var Cur Current

// VisitRecursive walks m, all its sub-objects, and all its subclasses,
// calling fn once per module not yet carrying flag. The current
// module is saved and restored around each callback; the current
// function is cleared for the callback's duration since a module-level
// callback is not inside any function.
func VisitRecursive(m *Module, flag VisitFlag, fn func(*Module)) {
	if m == nil || m.Visit&flag != 0 {
		return
	}
	m.Visit |= flag

	saved := Cur
	Cur.Module = m
	Cur.Function = nil
	fn(m)
	Cur = saved

	for _, sub := range m.SubObjects() {
		VisitRecursive(sub, flag, fn)
	}
	for _, sub := range m.Subclasses {
		VisitRecursive(sub, flag, fn)
	}
}

// ClearVisit clears flag on m and everything below it, so a phase can be
// rerun (the worklist passes use this between iterations).
func ClearVisit(m *Module, flag VisitFlag) {
	if m == nil || m.Visit&flag == 0 {
		return
	}
	m.Visit &^= flag
	for _, sub := range m.SubObjects() {
		ClearVisit(sub, flag)
	}
	for _, sub := range m.Subclasses {
		ClearVisit(sub, flag)
	}
}

// WithFunction runs fn with the current function set to f, restoring the
// previous pair afterward; per-function passes (COMPILEFUNCS,
// EXPANDINLINE) wrap each function body walk in this.
func WithFunction(f *Function, fn func()) {
	saved := Cur
	if f != nil {
		Cur.Module = f.Module
	}
	Cur.Function = f
	fn()
	Cur = saved
}

// VisitAllFunctions applies fn to every function of m and its
// sub-objects/subclasses under flag, with the current-context bookkeeping
// handled per function.
func VisitAllFunctions(m *Module, flag VisitFlag, fn func(*Function)) {
	VisitRecursive(m, flag, func(mod *Module) {
		for _, f := range mod.Functions {
			WithFunction(f, func() { fn(f) })
		}
	})
}
