package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/semmy-space/monthend/internal/output"
	"github.com/semmy-space/monthend/internal/secrets"
	"github.com/semmy-space/monthend/internal/vault"
)

// StoreCmd holds blob store subcommands
type StoreCmd struct {
	Set   StoreSetCmd   `cmd:"" help:"Store an encrypted blob"`
	Clear StoreClearCmd `cmd:"" help:"Remove the stored blob"`
	Where StoreWhereCmd `cmd:"" help:"Show which backend holds the blob"`
}

func openStore(deps *Deps, g *Globals) (secrets.Store, error) {
	store, err := deps.OpenStore(g.Backend)
	if err != nil {
		return nil, output.Errorf(output.ExitConfigError, "failed to open blob store: %v", err)
	}
	return store, nil
}

func saveBlob(deps *Deps, g *Globals, encoded string) error {
	store, err := openStore(deps, g)
	if err != nil {
		return err
	}
	if err := secrets.SaveBlob(store, encoded); err != nil {
		return err
	}
	fmt.Fprintf(deps.Err, "Saved to %s\n", store.Describe())
	return nil
}

// StoreSetCmd implements store set
type StoreSetCmd struct {
	Blob string `arg:"" help:"Encrypted blob, or - to read it from stdin"`
}

// Run executes the set command
func (cmd *StoreSetCmd) Run(g *Globals, deps *Deps) error {
	encoded := cmd.Blob
	if encoded == "-" {
		data, err := io.ReadAll(deps.In)
		if err != nil {
			return err
		}
		encoded = string(data)
	}
	// Accept the line printed by blob encrypt as-is.
	if _, rest, ok := strings.Cut(encoded, "="); ok && strings.HasPrefix(strings.TrimSpace(encoded), secrets.BlobKey) {
		encoded = rest
	}
	return saveBlob(deps, g, encoded)
}

// StoreClearCmd implements store clear
type StoreClearCmd struct{}

// Run executes the clear command
func (cmd *StoreClearCmd) Run(g *Globals, p *Prompter, deps *Deps) error {
	store, err := openStore(deps, g)
	if err != nil {
		return err
	}
	ok, err := p.Confirm("Remove the encrypted secrets from "+store.Describe()+"?", g.Force)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintln(deps.Err, "Aborted")
		return nil
	}
	if err := secrets.ClearBlob(store); err != nil {
		return err
	}
	fmt.Fprintf(deps.Err, "Removed from %s\n", store.Describe())
	return nil
}

type storeInfo struct {
	Backend string `json:"backend"`
	Present bool   `json:"present"`
}

// StoreWhereCmd implements store where
type StoreWhereCmd struct{}

// Run executes the where command
func (cmd *StoreWhereCmd) Run(fp *FormatterProvider, g *Globals, deps *Deps) error {
	store, err := openStore(deps, g)
	if err != nil {
		return err
	}
	_, err = secrets.LoadBlob(store)
	if err != nil && !errors.Is(err, vault.ErrNoBlob) {
		return err
	}
	return fp.Formatter.Print(storeInfo{Backend: store.Describe(), Present: err == nil})
}
