// Command propcore is a thin illustrative driver over the compiler core.
// It is not the real front end: no lexer/parser lives here. It exists to
// give the external interfaces a runnable shape, wiring the
// gl_* switches to flags and an optional TOML config file.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/totalspectrum/propcore/compiler"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		p2         bool
		output     string
		debug      bool
		brkDebug   bool
		compress   bool
		caseSens   bool
		maxErrors  int
		outPath    string
	)

	root := &cobra.Command{
		Use:   "propcore [module.dat]",
		Short: "Run the Propeller compiler core's back-end passes over a prebuilt DAT image",
		Long: "propcore drives the postprocess pipeline (padding, size check, checksum,\n" +
			"EEPROM padding, optional LZ4 compression) over an already-\n" +
			"assembled image. Parsing/type-checking entry points are exposed on\n" +
			"compiler.Driver for embedding, not wired to flags here.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := compiler.DefaultOptions()
			if configPath != "" {
				loaded, err := compiler.LoadOptionsTOML(configPath)
				if err != nil {
					return fmt.Errorf("loading config %s: %w", configPath, err)
				}
				opts = loaded
			}
			if cmd.Flags().Changed("p2") {
				opts.P2 = p2
			}
			if cmd.Flags().Changed("debug") {
				opts.Debug = debug
			}
			if cmd.Flags().Changed("brkdebug") {
				opts.BrkDebug = brkDebug
			}
			if cmd.Flags().Changed("compress") {
				opts.CompressOutput = compress
			}
			if cmd.Flags().Changed("case-sensitive") {
				opts.CaseSensitive = caseSens
			}
			if cmd.Flags().Changed("max-errors") {
				opts.MaxErrors = maxErrors
			}
			switch output {
			case "dat":
				opts.Output = compiler.OutputDAT
			case "asm":
				opts.Output = compiler.OutputASM
			case "bytecode":
				opts.Output = compiler.OutputBytecode
			case "":
			default:
				return fmt.Errorf("unknown --output %q", output)
			}

			d := compiler.NewDriver(opts)
			in := args[0]
			d.Log.WithField("input", in).WithField("p2", opts.P2).Info("running postprocess over image")

			if err := d.DoPropellerPostprocess(in, 0); err != nil {
				return fmt.Errorf("postprocess: %w", err)
			}
			if opts.CompressOutput {
				raw, err := os.ReadFile(in)
				if err != nil {
					return err
				}
				compressed := d.CompressExecutable(raw)
				target := in
				if outPath != "" {
					target = outPath
				}
				if err := os.WriteFile(target, compressed, 0644); err != nil {
					return err
				}
			}
			if d.Sink.HasErrors() {
				return fmt.Errorf("%d error(s) reported", d.Sink.ErrorCount())
			}
			return nil
		},
	}

	flags := root.Flags()
	flags.StringVar(&configPath, "config", "", "optional TOML config file (BurntSushi/toml) layered under flags")
	flags.BoolVar(&p2, "p2", false, "target Propeller 2 instead of Propeller 1")
	flags.StringVar(&output, "output", "", "output kind: dat|asm|bytecode")
	flags.BoolVar(&debug, "debug", false, "enable per-pass debug logging")
	flags.BoolVar(&brkDebug, "brkdebug", false, "reserve room for the P2 debug-break stub in the size check")
	flags.BoolVar(&compress, "compress", false, "LZ4-wrap the output image (P2 only)")
	flags.BoolVar(&caseSens, "case-sensitive", false, "case-sensitive identifier lookup (BASIC/C dialects)")
	flags.IntVar(&maxErrors, "max-errors", 100, "stop after this many reported errors")
	flags.StringVar(&outPath, "o", "", "output path override (defaults to in-place)")
	flags.SortFlags = false

	return root
}
