package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/semmy-space/monthend/internal/auth"
	"github.com/semmy-space/monthend/internal/config"
	"github.com/semmy-space/monthend/internal/output"
	"github.com/semmy-space/monthend/internal/secrets"
	"github.com/semmy-space/monthend/internal/vault"
)

// ShellCmd implements shell
type ShellCmd struct {
	Manual bool `help:"Connect QuickBooks by pasting the redirect URL instead of running a local callback" short:"m"`
}

// Run executes the shell command. It returns when the input ends or on quit.
func (cmd *ShellCmd) Run(cfg *config.Config, fp *FormatterProvider, g *Globals, p *Prompter, deps *Deps, log *logrus.Logger) error {
	store, err := openStore(deps, g)
	if err != nil {
		return err
	}
	logger := commandLogger(log, "shell")
	hook := lockLogger(logger)

	sh := &shell{
		cfg:    cfg,
		g:      g,
		fp:     fp,
		p:      p,
		deps:   deps,
		log:    logger,
		manual: cmd.Manual,
	}
	sh.sess = vault.NewSession(secrets.BlobSource(store),
		vault.WithIdleTimeout(cfg.IdleTimeoutDuration()),
		vault.WithAbsoluteTimeout(cfg.AbsoluteTimeoutDuration()),
		vault.WithUnlockTimeout(cfg.UnlockTimeoutDuration()),
		vault.WithLockHook(func(id string, reason vault.LockReason) {
			hook(id, reason)
			if reason == vault.LockIdle || reason == vault.LockAbsolute {
				fmt.Fprintf(deps.Err, "Session locked (%s). Unlock again to continue.\n", reason)
			}
		}),
	)
	defer sh.sess.Close()

	fmt.Fprintln(deps.Err, "Type 'help' for commands.")
	return sh.loop()
}

type shell struct {
	cfg    *config.Config
	g      *Globals
	fp     *FormatterProvider
	p      *Prompter
	deps   *Deps
	log    logrus.FieldLogger
	sess   *vault.Session
	manual bool
}

type shellCommand struct {
	usage string
	help  string
	run   func(sh *shell, args []string) error
}

var shellCommands = map[string]shellCommand{
	"status":  {"status", "Show the session state", (*shell).status},
	"unlock":  {"unlock", "Unlock the encrypted secrets", (*shell).unlock},
	"lock":    {"lock", "Lock now and wipe credentials and tokens", (*shell).lock},
	"names":   {"names", "List the credentials the blob holds", (*shell).names},
	"get":     {"get <name>", "Describe a credential without printing it", (*shell).get},
	"reveal":  {"reveal <name>", "Print a text credential", (*shell).reveal},
	"connect": {"connect qbo|google", "Authorize a provider with the unlocked credentials", (*shell).connect},
	"tokens":  {"tokens", "List provider tokens for this session", (*shell).tokens},
	"forget":  {"forget <provider>", "Drop a provider token", (*shell).forget},
	"rekey":   {"rekey [save]", "Re-encrypt the credentials under a new password", (*shell).rekey},
}

var errQuit = errors.New("quit")

func (sh *shell) loop() error {
	for {
		line, err := sh.p.Line("monthend> ")
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := sh.exec(line); err != nil {
			if errors.Is(err, errQuit) {
				return nil
			}
			output.Report(sh.fp.Formatter, asCLIError(err))
		}
	}
}

func (sh *shell) exec(line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	name, args := fields[0], fields[1:]
	switch name {
	case "quit", "exit":
		return errQuit
	case "help", "?":
		sh.help()
		return nil
	}
	c, ok := shellCommands[name]
	if !ok {
		return output.Errorf(output.ExitUsage, "unknown command: %s", name).WithHint("Type 'help' for commands")
	}
	return c.run(sh, args)
}

func (sh *shell) help() {
	names := make([]string, 0, len(shellCommands))
	for name := range shellCommands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		c := shellCommands[name]
		fmt.Fprintf(sh.deps.Out, "  %-20s %s\n", c.usage, c.help)
	}
	fmt.Fprintf(sh.deps.Out, "  %-20s %s\n", "quit", "End the session")
}

type sessionStatus struct {
	State      string `json:"state"`
	UnlockedAt string `json:"unlocked_at"`
	Tokens     int    `json:"tokens"`
}

func (sh *shell) status([]string) error {
	st := sessionStatus{State: sh.sess.State().String(), UnlockedAt: "-"}
	if at, ok := sh.sess.UnlockedAt(); ok {
		st.UnlockedAt = at.Format(time.RFC3339)
		st.Tokens = len(sh.sess.Tokens().List())
	}
	return sh.fp.Formatter.Print(st)
}

func (sh *shell) unlock([]string) error {
	pw, err := sh.p.Password("Password: ")
	if err != nil {
		return err
	}
	// Unlock wipes pw.
	if err := sh.sess.Unlock(context.Background(), pw); err != nil {
		sh.log.WithError(err).Debug("unlock failed")
		return err
	}
	names, err := sh.sess.Names()
	if err != nil {
		return err
	}
	fmt.Fprintf(sh.deps.Err, "Unlocked: %s\n", namesList(names))
	return nil
}

func (sh *shell) lock([]string) error {
	sh.sess.Lock()
	fmt.Fprintln(sh.deps.Err, "Locked")
	return nil
}

func (sh *shell) names([]string) error {
	rows, err := nameRows(sh.sess)
	if err != nil {
		return err
	}
	return sh.fp.Formatter.PrintList(rows, []output.Column{
		{Name: "Name", Key: "Name"},
		{Name: "Kind", Key: "Kind"},
	})
}

func nameArg(args []string) (vault.Name, error) {
	if len(args) != 1 {
		return "", output.NewCLIError(output.ExitUsage, "expected exactly one credential name")
	}
	return vault.ParseName(args[0])
}

type credentialInfo struct {
	Name        string `json:"name"`
	Kind        string `json:"kind"`
	Length      int    `json:"length,omitempty"`
	ClientEmail string `json:"client_email,omitempty"`
	ProjectID   string `json:"project_id,omitempty"`
}

func (sh *shell) get(args []string) error {
	name, err := nameArg(args)
	if err != nil {
		return err
	}
	info := credentialInfo{Name: string(name)}
	err = sh.sess.WithSecret(name, func(v vault.Value) error {
		if key, ok := v.ServiceAccount(); ok {
			info.Kind = "service_account"
			info.ClientEmail = key.ClientEmail
			info.ProjectID = key.ProjectID
			return nil
		}
		text, _ := v.Text()
		info.Kind = "text"
		info.Length = len(text)
		return nil
	})
	if err != nil {
		return err
	}
	return sh.fp.Formatter.Print(info)
}

func (sh *shell) reveal(args []string) error {
	name, err := nameArg(args)
	if err != nil {
		return err
	}
	return sh.sess.WithSecret(name, func(v vault.Value) error {
		text, ok := v.Text()
		if !ok {
			return output.Errorf(output.ExitUsage, "%s is a service-account key; use 'get' to describe it", name)
		}
		_, err := fmt.Fprintf(sh.deps.Out, "%s\n", text.Reveal())
		return err
	})
}

func (sh *shell) connect(args []string) error {
	if len(args) != 1 {
		return output.NewCLIError(output.ExitUsage, "usage: connect qbo|google")
	}
	ctx := context.Background()

	var (
		res *auth.ConnectResult
		err error
	)
	switch args[0] {
	case auth.ProviderQBO:
		_, env, envErr := sh.cfg.QBOEnvironment()
		if envErr != nil {
			return output.Errorf(output.ExitConfigError, "%v", envErr)
		}
		opts := auth.ConnectOptions{
			RedirectURL: sh.cfg.RedirectURL(),
			Prompt:      sh.deps.Err,
			Input:       sh.p.in,
		}
		if sh.manual {
			res, err = auth.ManualConnect(ctx, sh.sess, opts)
		} else {
			res, err = auth.InteractiveConnect(ctx, sh.sess, opts)
		}
		if err != nil {
			return err
		}
		if company, err := auth.CompanyName(ctx, sh.sess, env.APIBase); err == nil && company != "" {
			fmt.Fprintf(sh.deps.Err, "Connected to %s\n", company)
		} else if err != nil {
			sh.log.WithError(err).Warn("company lookup failed")
		}
	case auth.ProviderGoogle:
		res, err = auth.ConnectGoogle(ctx, sh.sess, auth.GoogleOptions{})
		if err != nil {
			return err
		}
	default:
		return output.Errorf(output.ExitUsage, "unknown provider: %s", args[0]).WithHint("Use qbo or google")
	}

	sh.log.WithFields(logrus.Fields{"provider": res.Provider, "expires_at": res.ExpiresAt}).Info("provider connected")
	return sh.fp.Formatter.Print(res)
}

func (sh *shell) tokens([]string) error {
	if !sh.sess.IsUnlocked() {
		return vault.ErrVaultLocked
	}
	return sh.fp.Formatter.PrintList(sh.sess.Tokens().List(), []output.Column{
		{Name: "Provider", Key: "Provider"},
		{Name: "Subject", Key: "Subject"},
		{Name: "Expires", Key: "ExpiresAt"},
		{Name: "Expired", Key: "Expired"},
	})
}

func (sh *shell) forget(args []string) error {
	if len(args) != 1 {
		return output.NewCLIError(output.ExitUsage, "usage: forget <provider>")
	}
	if !sh.sess.Tokens().Forget(args[0]) {
		return vault.ErrTokenAbsent
	}
	fmt.Fprintf(sh.deps.Err, "Forgot %s token\n", args[0])
	return nil
}

func (sh *shell) rekey(args []string) error {
	save := len(args) == 1 && args[0] == "save"
	if !sh.sess.IsUnlocked() {
		return vault.ErrVaultLocked
	}
	opts, err := encryptOptions(sh.cfg)
	if err != nil {
		return err
	}
	pw, err := sh.p.NewPassword("New password: ")
	if err != nil {
		return err
	}
	// Rekey wipes pw.
	encoded, err := sh.sess.Rekey(pw, opts...)
	if err != nil {
		return err
	}
	if err := printBlob(sh.fp, sh.g, sh.deps, encoded); err != nil {
		return err
	}
	if save {
		return saveBlob(sh.deps, sh.g, encoded)
	}
	return nil
}
