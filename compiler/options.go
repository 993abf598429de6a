package compiler

import (
	"os"

	"github.com/BurntSushi/toml"
)

// OutputKind is gl_output.
type OutputKind int

const (
	OutputCPP OutputKind = iota
	OutputC
	OutputDAT
	OutputASM
	OutputCogSpin
	OutputBytecode
)

// InterpKind is gl_interp_kind.
type InterpKind int

const (
	InterpP1ROM InterpKind = iota
	InterpNuCode
)

// OptimizeFlag is one bit of gl_optimize_flags.
type OptimizeFlag uint32

const (
	OptRemoveUnusedFuncs OptimizeFlag = 1 << iota
	OptPerformCSE
	OptRemoveHubBSS
	OptBasicAsm // peephole
	OptInlineSmallFuncs
	OptInlineSingleUse
	OptPeephole
	OptDeadCode
	OptMakeMacros // enables the Nu packer's macro synthesis step
)

// Options models every behavioural switch the core reads. Front ends and
// cmd/propcore populate this directly; the core never reads environment
// variables or flags itself, keeping the CLI genuinely "a shell around
// the core".
type Options struct {
	P2             bool `toml:"p2"`
	Output         OutputKind
	InterpKind     InterpKind
	OptimizeFlags  OptimizeFlag
	WarnFlags      uint32
	Debug          bool `toml:"debug"`
	BrkDebug       bool `toml:"brkdebug"`
	CompressOutput bool `toml:"compress_output"`
	DatOffset      int  `toml:"dat_offset"`
	HubBase        int  `toml:"hub_base"`
	NoCoginit      bool `toml:"no_coginit"`
	FixedReal      bool `toml:"fixedreal"`
	DefaultBaud    int  `toml:"default_baud"`
	DefaultXtlFreq int64 `toml:"default_xtlfreq"`
	DefaultXinFreq int64 `toml:"default_xinfreq"`
	CaseSensitive  bool  `toml:"case_sensitive"`
	ColorizeOutput bool  `toml:"colorize_output"`
	MaxErrors      int   `toml:"max_errors"`
	Listing        bool  `toml:"listing"`
	ExpandConstants bool `toml:"expand_constants"`
	NoStdlib       bool  `toml:"nostdlib"`
}

// Has reports whether every bit in want is set in the option flags.
func (o Options) Has(want OptimizeFlag) bool { return o.OptimizeFlags&want == want }

// DefaultOptions is the baseline every config layer starts from:
// max-errors capped, case-insensitive, colour auto-detected downstream
// by NewErrorSink.
func DefaultOptions() Options {
	return Options{
		MaxErrors:     100,
		CaseSensitive: false,
		DefaultBaud:   115200,
	}
}

// LoadOptionsTOML layers a TOML config file over DefaultOptions.
func LoadOptionsTOML(path string) (Options, error) {
	opts := DefaultOptions()
	if _, err := os.Stat(path); err != nil {
		return opts, err
	}
	_, err := toml.DecodeFile(path, &opts)
	return opts, err
}
