package config

import (
	"flag"
	"io"
)

// Flags are the command line switches.
type Flags struct {
	ConfigPath string
	Setup      bool
	// AssumeYes skips the interactive production-mode confirmation.
	AssumeYes bool
}

// ParseFlags parses args (without the program name).
func ParseFlags(args []string) (Flags, error) {
	var f Flags

	fs := flag.NewFlagSet("asterbot", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&f.ConfigPath, "config", "", "path to yaml config")
	fs.BoolVar(&f.Setup, "setup", false, "run the configuration wizard and write a yaml config")
	fs.BoolVar(&f.AssumeYes, "yes", false, "start in production mode without confirmation")

	if err := fs.Parse(args); err != nil {
		return Flags{}, err
	}

	return f, nil
}
