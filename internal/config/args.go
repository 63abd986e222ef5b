package config

import (
	"fmt"

	"gopkg.in/alecthomas/kingpin.v2"
)

// Args are the command line options.
type Args struct {
	ConfigPath string
	Debug      bool
}

// ParseArgs parses the command line (without the program name).
func ParseArgs(args []string, version string) (Args, error) {
	var a Args

	app := kingpin.New("ledimmer", "Dim an LED with the up and down arrow keys. Press Esc to quit.")
	app.Version(version)
	app.HelpFlag.Short('h')
	app.VersionFlag.Short('v')
	app.Flag("config", "Path to YAML config (built-in defaults when empty)").Short('c').Default("").StringVar(&a.ConfigPath)
	app.Flag("debug", "Log debug messages").Short('d').Default("false").BoolVar(&a.Debug)

	if _, err := app.Parse(args); err != nil {
		return a, fmt.Errorf("invalid command line arguments: %w", err)
	}
	return a, nil
}
