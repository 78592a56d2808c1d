package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/awnumar/memguard"
	"github.com/sirupsen/logrus"

	"github.com/semmy-space/monthend/internal/config"
	"github.com/semmy-space/monthend/internal/output"
	"github.com/semmy-space/monthend/internal/secrets"
	"github.com/semmy-space/monthend/internal/vault"
)

// BlobCmd holds blob subcommands
type BlobCmd struct {
	Encrypt BlobEncryptCmd `cmd:"" help:"Encrypt credentials into a new blob"`
	Rekey   BlobRekeyCmd   `cmd:"" help:"Re-encrypt the stored blob under a new password"`
	Inspect BlobInspectCmd `cmd:"" help:"Show blob format and cost parameters without decrypting"`
	Verify  BlobVerifyCmd  `cmd:"" help:"Check a password against the stored blob and list what it holds"`
}

type blobOutput struct {
	EncryptedSecrets string `json:"encrypted_secrets"`
}

// printBlob writes the blob in the form it is pasted into deployment
// settings.
func printBlob(fp *FormatterProvider, g *Globals, deps *Deps, encoded string) error {
	if g.ResolvedOutput() == "json" {
		return fp.Formatter.Print(blobOutput{EncryptedSecrets: encoded})
	}
	_, err := fmt.Fprintf(deps.Out, "encrypted_secrets = %q\n", encoded)
	return err
}

func encryptOptions(cfg *config.Config) ([]vault.EncryptOption, error) {
	params, err := cfg.ScryptParams()
	if err != nil {
		return nil, output.Errorf(output.ExitConfigError, "%v", err).
			WithHint("Check scrypt_n, scrypt_r, and scrypt_p with 'monthend config list'")
	}
	return []vault.EncryptOption{
		vault.WithScryptParams(params),
		vault.WithCipher(cfg.CipherID()),
	}, nil
}

// BlobEncryptCmd implements blob encrypt
type BlobEncryptCmd struct {
	Edit         bool   `help:"Start from the stored blob; blank answers keep current values"`
	GoogleSAFile string `name:"google-sa-file" help:"Google service-account JSON key file" type:"existingfile" predictor:"file"`
	Save         bool   `help:"Save the new blob to the blob store"`
}

// Run executes the encrypt command
func (cmd *BlobEncryptCmd) Run(cfg *config.Config, fp *FormatterProvider, g *Globals, p *Prompter, deps *Deps, log *logrus.Logger) error {
	opts, err := encryptOptions(cfg)
	if err != nil {
		return err
	}

	bundle := &vault.Bundle{}
	if cmd.Edit {
		store, err := openStore(deps, g)
		if err != nil {
			return err
		}
		encoded, err := secrets.LoadBlob(store)
		if err != nil {
			return err
		}
		pw, err := p.Password("Current password: ")
		if err != nil {
			return err
		}
		bundle, err = vault.DecryptString(encoded, pw)
		memguard.WipeBytes(pw)
		if err != nil {
			return err
		}
	}
	defer bundle.Wipe()

	for _, name := range []vault.Name{vault.TestSecret, vault.QBOClientID, vault.QBOClientSecret} {
		prompt := fmt.Sprintf("%s: ", name)
		if cmd.Edit {
			prompt = fmt.Sprintf("%s (blank keeps current): ", name)
		}
		value, err := p.Password(prompt)
		if err != nil {
			return err
		}
		if len(value) > 0 {
			err = bundle.SetText(name, string(value))
		}
		memguard.WipeBytes(value)
		if err != nil {
			return err
		}
	}

	if cmd.GoogleSAFile != "" {
		key, err := readServiceAccountFile(cmd.GoogleSAFile)
		if err != nil {
			return err
		}
		if err := bundle.SetServiceAccount(key); err != nil {
			return output.Errorf(output.ExitUsage, "invalid service-account key: %v", err)
		}
	}

	if len(bundle.Names()) == 0 {
		return output.NewCLIError(output.ExitUsage, "nothing to encrypt: no credentials were entered")
	}

	pw, err := p.NewPassword("New password: ")
	if err != nil {
		return err
	}
	encoded, err := vault.EncryptString(bundle, pw, opts...)
	memguard.WipeBytes(pw)
	if err != nil {
		return err
	}
	commandLogger(log, "blob encrypt").WithField("cipher", cfg.CipherID()).Debug("blob created")

	if err := printBlob(fp, g, deps, encoded); err != nil {
		return err
	}
	if cmd.Save {
		return saveBlob(deps, g, encoded)
	}
	return nil
}

func readServiceAccountFile(path string) (*vault.ServiceAccountKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, output.Errorf(output.ExitUsage, "failed to read service-account file: %v", err)
	}
	defer memguard.WipeBytes(data)
	key, err := vault.ParseServiceAccountKey(data)
	if err != nil {
		return nil, output.Errorf(output.ExitUsage, "invalid service-account key: %v", err)
	}
	return key, nil
}

// BlobRekeyCmd implements blob rekey
type BlobRekeyCmd struct {
	Save bool `help:"Save the re-encrypted blob to the blob store"`
}

// Run executes the rekey command
func (cmd *BlobRekeyCmd) Run(cfg *config.Config, fp *FormatterProvider, g *Globals, p *Prompter, deps *Deps) error {
	opts, err := encryptOptions(cfg)
	if err != nil {
		return err
	}
	store, err := openStore(deps, g)
	if err != nil {
		return err
	}
	encoded, err := secrets.LoadBlob(store)
	if err != nil {
		return err
	}

	oldPw, err := p.Password("Current password: ")
	if err != nil {
		return err
	}
	defer memguard.WipeBytes(oldPw)
	newPw, err := p.NewPassword("New password: ")
	if err != nil {
		return err
	}
	defer memguard.WipeBytes(newPw)

	rekeyed, err := vault.Rekey(encoded, oldPw, newPw, opts...)
	if err != nil {
		return err
	}
	if err := printBlob(fp, g, deps, rekeyed); err != nil {
		return err
	}
	if cmd.Save {
		return saveBlob(deps, g, rekeyed)
	}
	return nil
}

// BlobInspectCmd implements blob inspect
type BlobInspectCmd struct {
	Blob string `arg:"" optional:"" help:"Blob to inspect, or - for stdin (default: the stored blob)"`
}

// Run executes the inspect command
func (cmd *BlobInspectCmd) Run(fp *FormatterProvider, g *Globals, deps *Deps) error {
	encoded, err := cmd.source(deps, g)
	if err != nil {
		return err
	}
	blob, err := vault.ParseBlob(encoded)
	if err != nil {
		return err
	}
	return fp.Formatter.Print(blob.Info())
}

func (cmd *BlobInspectCmd) source(deps *Deps, g *Globals) (string, error) {
	switch cmd.Blob {
	case "":
		store, err := openStore(deps, g)
		if err != nil {
			return "", err
		}
		return secrets.LoadBlob(store)
	case "-":
		data, err := io.ReadAll(deps.In)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(data)), nil
	default:
		return cmd.Blob, nil
	}
}

type nameRow struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
}

// BlobVerifyCmd implements blob verify
type BlobVerifyCmd struct{}

// Run executes the verify command
func (cmd *BlobVerifyCmd) Run(cfg *config.Config, fp *FormatterProvider, g *Globals, p *Prompter, deps *Deps) error {
	store, err := openStore(deps, g)
	if err != nil {
		return err
	}
	sess := vault.NewSession(secrets.BlobSource(store), vault.WithUnlockTimeout(cfg.UnlockTimeoutDuration()))
	defer sess.Close()

	pw, err := p.Password("Password: ")
	if err != nil {
		return err
	}
	if err := sess.Unlock(context.Background(), pw); err != nil {
		return err
	}

	rows, err := nameRows(sess)
	if err != nil {
		return err
	}
	return fp.Formatter.PrintList(rows, []output.Column{
		{Name: "Name", Key: "Name"},
		{Name: "Kind", Key: "Kind"},
	})
}

func nameRows(sess *vault.Session) ([]nameRow, error) {
	names, err := sess.Names()
	if err != nil {
		return nil, err
	}
	rows := make([]nameRow, len(names))
	for i, n := range names {
		kind := "text"
		if n == vault.GoogleServiceAccount {
			kind = "service_account"
		}
		rows[i] = nameRow{Name: string(n), Kind: kind}
	}
	return rows, nil
}
