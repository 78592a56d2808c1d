package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/kong"
	"github.com/posener/complete"
	"github.com/sirupsen/logrus"
	"github.com/willabides/kongplete"

	"github.com/semmy-space/monthend/internal/config"
	"github.com/semmy-space/monthend/internal/logging"
	"github.com/semmy-space/monthend/internal/output"
	"github.com/semmy-space/monthend/internal/secrets"
)

// FormatterProvider wraps the formatter interface for Kong binding
type FormatterProvider struct {
	Formatter output.Formatter
}

// Deps are the process-level dependencies commands run against.
type Deps struct {
	In      io.Reader
	Out     io.Writer
	Err     io.Writer
	Version string

	LoadConfig func() (*config.Config, error)
	OpenStore  func(backend string) (secrets.Store, error)
}

// DefaultDeps wires the real standard streams, config file, and blob store.
func DefaultDeps(version string) *Deps {
	return &Deps{
		In:         os.Stdin,
		Out:        os.Stdout,
		Err:        os.Stderr,
		Version:    version,
		LoadConfig: config.Load,
		OpenStore:  secrets.NewStore,
	}
}

// CLI is the root command structure
type CLI struct {
	Globals

	Blob    BlobCmd    `cmd:"" help:"Create, rotate, and check the encrypted secrets blob"`
	Store   StoreCmd   `cmd:"" help:"Manage where the encrypted blob is kept"`
	Shell   ShellCmd   `cmd:"" help:"Interactive session: unlock, connect, and use credentials"`
	Serve   ServeCmd   `cmd:"" help:"Serve the session API for concurrent operators"`
	Config  ConfigCmd  `cmd:"" help:"Configuration commands"`
	Schema  SchemaCmd  `cmd:"" help:"Print the command tree as JSON"`
	Version VersionCmd `cmd:"" help:"Show version information"`

	InstallCompletions kongplete.InstallCompletions `cmd:"" help:"Install shell completions"`
}

// AfterApply runs once flag values are in place, before the command runs.
// It loads config, creates formatter and logger, and binds dependencies.
func (c *CLI) AfterApply(ctx *kong.Context, deps *Deps) error {
	cfg, err := deps.LoadConfig()
	if err != nil {
		return output.Errorf(output.ExitConfigError, "%v", err).
			WithHint("Fix or remove " + config.ConfigPath())
	}
	return c.bind(ctx, deps, cfg)
}

func (c *CLI) bind(ctx *kong.Context, deps *Deps, cfg *config.Config) error {
	// Flag > config > auto
	if (c.Output == "" || c.Output == "auto") && cfg.DefaultOutput != "" {
		c.Output = cfg.DefaultOutput
	}
	if c.Backend == "" {
		c.Backend = cfg.Backend()
	}

	var formatter output.Formatter
	if mode := c.ResolvedOutput(); mode == "json" && c.ResultsOnly {
		formatter = output.NewJSON(deps.Out, deps.Err, true)
	} else {
		formatter = output.NewWithWriters(mode, deps.Out, deps.Err)
	}

	log := logging.New(logging.Options{Out: deps.Err, Level: c.logLevel(), Format: c.LogFormat})

	ctx.Bind(cfg)
	ctx.Bind(&FormatterProvider{Formatter: formatter})
	ctx.Bind(&c.Globals)
	ctx.Bind(log)
	ctx.Bind(newPrompter(deps.In, deps.Err, c.NoInput))
	return nil
}

// ConfigCmd holds configuration subcommands
type ConfigCmd struct {
	Get   ConfigGetCmd        `cmd:"" help:"Get a configuration value"`
	Set   ConfigSetCmd        `cmd:"" help:"Set a configuration value"`
	Unset ConfigUnsetCmd      `cmd:"" help:"Remove a configuration value"`
	List  ConfigListConfigCmd `cmd:"" name:"list" help:"List all configuration values"`
	Path  ConfigPathCmd       `cmd:"" help:"Show config file path"`
}

// VersionCmd shows version information
type VersionCmd struct{}

func (cmd *VersionCmd) Run(deps *Deps) error {
	fmt.Fprintf(deps.Out, "monthend version %s\n", deps.Version)
	return nil
}

// Run parses args, runs the selected command, and returns the process exit
// code. Errors are reported through the formatter the command ran with.
func Run(args []string, deps *Deps) int {
	root := &CLI{}
	parser, err := kong.New(root,
		kong.Name("monthend"),
		kong.Description("Password-gated credentials for the month-end close"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Vars{
			"version": deps.Version,
		},
		kong.Writers(deps.Out, deps.Err),
		kong.Bind(deps),
	)
	if err != nil {
		fmt.Fprintf(deps.Err, "error: %v\n", err)
		return output.ExitGeneral
	}

	kongplete.Complete(parser,
		kongplete.WithPredictor("file", complete.PredictFiles("*")),
	)

	ctx, err := parser.Parse(args)
	if err != nil {
		var cliErr *output.CLIError
		if errors.As(err, &cliErr) {
			return output.Report(output.NewWithWriters("plain", deps.Out, deps.Err), cliErr)
		}
		var parseErr *kong.ParseError
		if errors.As(err, &parseErr) {
			fmt.Fprintf(deps.Err, "error: %v\n", err)
			return output.ExitUsage
		}
		fmt.Fprintf(deps.Err, "error: %v\n", err)
		return output.ExitGeneral
	}

	if err := ctx.Run(); err != nil {
		formatter := output.NewWithWriters(root.ResolvedOutput(), deps.Out, deps.Err)
		return output.Report(formatter, asCLIError(err))
	}
	return output.ExitOK
}

// asCLIError leaves CLIErrors alone and maps everything else, vault errors
// included, to one.
func asCLIError(err error) error {
	var cliErr *output.CLIError
	if errors.As(err, &cliErr) {
		return cliErr
	}
	return vaultError(err)
}

func commandLogger(log *logrus.Logger, command string) logrus.FieldLogger {
	return log.WithField("command", command)
}
