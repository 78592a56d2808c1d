package cli

import (
	"os"

	"golang.org/x/term"
)

// Globals holds global flags available to all commands
type Globals struct {
	Output      string `help:"Output format" default:"auto" enum:"json,plain,rich,auto" short:"o" env:"MONTHEND_OUTPUT"`
	Verbose     bool   `help:"Debug logging" short:"v" env:"MONTHEND_VERBOSE"`
	LogFormat   string `help:"Log format" name:"log-format" default:"auto" enum:"text,json,auto" env:"MONTHEND_LOG_FORMAT"`
	Backend     string `help:"Where the encrypted blob lives (overrides blob_backend)" default:"" enum:"auto,keyring,file,env," env:"MONTHEND_BLOB_BACKEND"`
	ResultsOnly bool   `help:"Strip JSON envelope, return data array only" env:"MONTHEND_RESULTS_ONLY"`
	NoInput     bool   `help:"Disable interactive prompts (fail instead)" env:"MONTHEND_NO_INPUT"`
	Force       bool   `help:"Skip confirmation prompts for destructive operations" env:"MONTHEND_FORCE"`
}

// ResolvedOutput returns the effective output mode
// "auto" detects TTY: if stdout is TTY -> rich, else -> plain
func (g *Globals) ResolvedOutput() string {
	if g.Output != "auto" && g.Output != "" {
		return g.Output
	}

	if term.IsTerminal(int(os.Stdout.Fd())) {
		return "rich"
	}

	return "plain"
}

func (g *Globals) logLevel() string {
	if g.Verbose {
		return "debug"
	}
	return "info"
}
