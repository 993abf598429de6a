package compiler

import (
	"github.com/totalspectrum/propcore/clock"
	"github.com/totalspectrum/propcore/module"
	"github.com/totalspectrum/propcore/symtab"
)

// P1 Spin binary header: 20 bytes ahead of the DAT image, then an
// 8-byte launcher that runs coginit(0,...). The checksum byte at offset
// 5 balances the whole image to 0x14 and is filled by the post-process
// step.
const (
	P1HeaderSize   = 20
	P1LauncherSize = 8
)

// BuildP1Header lays out the 20-byte header for an image of the given
// total size (header + DAT + launcher) and clock configuration.
func BuildP1Header(clkFreq int64, clkReg byte, totalSize int) []byte {
	h := make([]byte, P1HeaderSize)
	// Offsets follow the classic Spin binary layout: clock frequency,
	// clock register, checksum placeholder, then the pbase/vbase/dbase
	// word table.
	h[0] = byte(clkFreq)
	h[1] = byte(clkFreq >> 8)
	h[2] = byte(clkFreq >> 16)
	h[3] = byte(clkFreq >> 24)
	h[4] = clkReg
	h[5] = 0 // checksum, patched by postprocess.Checksum
	pbase := P1HeaderSize
	vbase := totalSize
	dbase := vbase + 8
	putWord := func(off, v int) {
		h[off] = byte(v)
		h[off+1] = byte(v >> 8)
	}
	putWord(6, pbase)
	putWord(8, vbase)
	putWord(10, dbase)
	putWord(12, pbase+4) // initial PC
	putWord(14, dbase+4) // initial stack
	return h
}

// P1Launcher is the 8-byte trampoline that follows the DAT image and
// restarts cog 0 on the loaded program.
func P1Launcher() []byte {
	return []byte{0xFF, 0xFF, 0xF9, 0xFF, 0xFF, 0xFF, 0xF9, 0xFF}
}

// Clock-constant names resolved in the top-level module. The
// lookups are case-insensitive in Spin modules by way of the symbol
// table's own folding.
const (
	symClkMode = "_clkmode"
	symClkFreq = "_clkfreq"
	symXtlFreq = "_xtlfreq"
	symXinFreq = "_xinfreq"
	symErrFreq = "_errfreq"

	conClkFreq = "__clkfreq_con"
	conClkMode = "__clkmode_con"
	conClkReg  = "__clkreg_con"
)

// ResolveClockConfig reads the top module's clock constants, runs the
// target's translation/search, and injects the derived
// __clkfreq_con/__clkmode_con/__clkreg_con constants into both the top
// module and the system module (when one exists).
func (d *Driver) ResolveClockConfig(top, system *module.Module) (clock.Config, error) {
	var cfg clock.Config
	var err error
	if d.Opts.P2 {
		xtal := d.constOr(top, symXtlFreq, d.Opts.DefaultXtlFreq)
		requested := d.constOr(top, symClkFreq, 160_000_000)
		errFreq := d.constOr(top, symErrFreq, 1_000_000)
		cfg, err = clock.ResolveP2(xtal, requested, errFreq)
	} else {
		mode := clock.P1Mode(d.constOr(top, symClkMode, int64(clock.RCFAST)))
		xin := d.constOr(top, symXinFreq, d.Opts.DefaultXinFreq)
		cfg, err = clock.ResolveP1(mode, xin)
	}
	if err != nil {
		return cfg, err
	}
	d.injectClockConstants(top, cfg)
	if system != nil {
		d.injectClockConstants(system, cfg)
	}
	d.Log.WithField("clkfreq", cfg.ClkFreq).Debug("resolved clock configuration")
	return cfg, nil
}

func (d *Driver) constOr(m *module.Module, name string, fallback int64) int64 {
	sym := m.Scope.Lookup(name)
	if sym == nil {
		return fallback
	}
	if v, ok := constValue(sym); ok {
		return v
	}
	return fallback
}

func constValue(sym *symtab.Symbol) (int64, bool) {
	switch v := sym.Payload.(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case uint64:
		return int64(v), true
	}
	return 0, false
}

func (d *Driver) injectClockConstants(m *module.Module, cfg clock.Config) {
	add := func(name string, v int64) {
		if sym, err := m.Scope.Add(name, symtab.KindConstant, v, name); err == nil {
			sym.Flags |= symtab.FlagInternal
		}
	}
	add(conClkFreq, cfg.ClkFreq)
	add(conClkMode, int64(cfg.ClkMode))
	add(conClkReg, int64(cfg.ClkReg))
}

// StackFreeReservation reads the top module's _STACK/_FREE constants
// (case-insensitively) for the post-process overflow check; the counts are in longs.
func StackFreeReservation(top *module.Module) (stackLongs, freeLongs int) {
	if sym := top.Scope.Lookup("_stack"); sym != nil {
		if v, ok := constValue(sym); ok {
			stackLongs = int(v)
		}
	}
	if sym := top.Scope.Lookup("_free"); sym != nil {
		if v, ok := constValue(sym); ok {
			freeLongs = int(v)
		}
	}
	return stackLongs, freeLongs
}
