package main

import (
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/alecthomas/kong"
	env "github.com/xyproto/env/v2"
	"go.uber.org/zap"
)

const versionString = "dlltool 1.0.0"

// cli is the kong command definition for the dlltool binary: parse a
// .def file, build an import library for one target machine, write it
// out. Flag parsing and process wiring are the one part of this
// repository spec.md treats as an external collaborator (§1); the core
// it calls (Build, in implib.go) stays a pure function.
type cli struct {
	Input   string           `help:"Path to the .def module-definition file." required:""`
	Output  string           `help:"Path to write the import library to." required:""`
	Machine string           `help:"Target machine architecture (i386, amd64, arm64, armnt)." default:"${defaultMachine}"`
	Verbose bool             `help:"Enable structured build diagnostics." default:"${defaultVerbose}"`
	Version kong.VersionFlag `help:"Print the version and exit."`
}

func main() {
	defaultMachine := env.Str("DLLTOOL_MACHINE", "amd64")
	defaultVerbose := "false"
	if env.Bool("DLLTOOL_VERBOSE") {
		defaultVerbose = "true"
	}

	var c cli
	kong.Parse(&c,
		kong.Name("dlltool"),
		kong.Description("Builds a Windows import library from a module-definition file."),
		kong.Vars{
			"defaultMachine": defaultMachine,
			"defaultVerbose": defaultVerbose,
			"version":        versionString,
		},
	)

	logger := newLogger(c.Verbose)
	defer logger.Sync()

	if err := run(c, logger); err != nil {
		fmt.Fprintln(os.Stderr, "dlltool:", err)
		os.Exit(exitCodeFor(err))
	}
}

// newLogger returns a structured zap logger when --verbose is set, and
// a no-op logger otherwise — per SPEC_FULL.md §4.H, diagnostics never
// reach the core (Build and everything it calls take no logger at all).
func newLogger(verbose bool) *zap.Logger {
	if !verbose {
		return zap.NewNop()
	}
	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("dlltool: failed to initialize logger: %v", err)
	}
	return logger
}

func run(c cli, logger *zap.Logger) error {
	arch, err := ParseArchitecture(c.Machine)
	if err != nil {
		return err
	}
	logger.Info("target machine resolved", zap.String("machine", arch.String()))

	data, err := os.ReadFile(c.Input)
	if err != nil {
		return fmt.Errorf("reading %q: %w", c.Input, err)
	}

	def, err := ReadModuleDefinition(string(data))
	if err != nil {
		return fmt.Errorf("parsing %q: %w", c.Input, err)
	}
	logger.Info("module definition parsed",
		zap.String("library", def.LibraryName),
		zap.Int("exports", len(def.Exports)),
	)

	out, err := Build(def, arch)
	if err != nil {
		return err
	}
	logger.Info("import library built", zap.Int("bytes", len(out)))

	if err := os.WriteFile(c.Output, out, 0o644); err != nil {
		return fmt.Errorf("writing %q: %w", c.Output, err)
	}
	return nil
}

// exitCodeFor implements SPEC_FULL.md §6's CLI exit-code contract: core
// errors (the four typed kinds in errors.go) exit 1, anything else
// (bad paths, malformed .def text) exits 2.
func exitCodeFor(err error) int {
	for _, sentinel := range []error{ErrUnsupportedMachine, ErrInvalidExport, ErrNameTooLong, ErrSizeOverflow} {
		if errors.Is(err, sentinel) {
			return 1
		}
	}
	return 2
}
