package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/semmy-space/monthend/internal/config"
	"github.com/semmy-space/monthend/internal/output"
)

// configError maps config package errors to exit codes
func configError(key string, err error) error {
	if errors.Is(err, config.ErrCredentialKey) {
		return output.NewCLIError(output.ExitUsage, err.Error()).
			WithHint("Credentials belong in the encrypted blob: monthend blob encrypt --edit")
	}
	return output.Errorf(output.ExitUsage, "%s: %v", key, err).
		WithHint("Valid keys: run 'monthend config list'")
}

// ConfigGetCmd implements config get command
type ConfigGetCmd struct {
	Key string `arg:"" help:"Config key to get (e.g., idle_timeout, blob_backend)"`
}

// Run executes the get command
func (cmd *ConfigGetCmd) Run(cfg *config.Config, deps *Deps) error {
	value, err := cfg.Get(cmd.Key)
	if err != nil {
		return configError(cmd.Key, err)
	}

	fmt.Fprintln(deps.Out, value)
	return nil
}

// ConfigSetCmd implements config set command
type ConfigSetCmd struct {
	Key   string `arg:"" help:"Config key to set"`
	Value string `arg:"" help:"Value to set"`
}

// Run executes the set command
func (cmd *ConfigSetCmd) Run(cfg *config.Config, deps *Deps) error {
	if err := cfg.Set(cmd.Key, cmd.Value); err != nil {
		return configError(cmd.Key, err)
	}

	fmt.Fprintf(deps.Err, "Set %s = %s\n", cmd.Key, cmd.Value)
	return nil
}

// ConfigUnsetCmd implements config unset command
type ConfigUnsetCmd struct {
	Key string `arg:"" help:"Config key to remove"`
}

// Run executes the unset command
func (cmd *ConfigUnsetCmd) Run(cfg *config.Config, deps *Deps) error {
	if err := cfg.Unset(cmd.Key); err != nil {
		return configError(cmd.Key, err)
	}

	fmt.Fprintf(deps.Err, "Unset %s\n", cmd.Key)
	return nil
}

type configItem struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// ConfigListConfigCmd implements config list command
type ConfigListConfigCmd struct{}

// Run executes the list command
func (cmd *ConfigListConfigCmd) Run(cfg *config.Config, fp *FormatterProvider) error {
	values := cfg.All()
	items := make([]configItem, 0, len(values))
	for _, key := range config.Keys() {
		items = append(items, configItem{Key: key, Value: values[key]})
	}

	return fp.Formatter.PrintList(items, []output.Column{
		{Name: "Key", Key: "Key"},
		{Name: "Value", Key: "Value"},
	})
}

// ConfigPathCmd implements config path command
type ConfigPathCmd struct{}

// Run executes the path command
func (cmd *ConfigPathCmd) Run(cfg *config.Config, deps *Deps) error {
	path := cfg.Path()

	fmt.Fprintln(deps.Out, path)

	// Print existence hint to stderr
	if _, err := os.Stat(path); os.IsNotExist(err) {
		fmt.Fprintf(deps.Err, "(file does not exist yet - will be created on first write)\n")
	} else {
		fmt.Fprintf(deps.Err, "(file exists)\n")
	}

	return nil
}
