package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/semmy-space/monthend/internal/config"
	"github.com/semmy-space/monthend/internal/logging"
	"github.com/semmy-space/monthend/internal/secrets"
	"github.com/semmy-space/monthend/internal/server"
	"github.com/semmy-space/monthend/internal/vault"
)

// ServeCmd implements serve
type ServeCmd struct {
	Listen  string        `help:"Listen address (overrides listen_addr)"`
	MaxIdle time.Duration `name:"max-idle" help:"End locked sessions idle this long" default:"30m"`
	Grace   time.Duration `help:"Grace period for in-flight requests on exit" default:"10s"`
}

// Run executes the serve command. It blocks until SIGINT or SIGTERM.
func (cmd *ServeCmd) Run(cfg *config.Config, g *Globals, deps *Deps, log *logrus.Logger) error {
	store, err := openStore(deps, g)
	if err != nil {
		return err
	}
	logger := commandLogger(log, "serve")

	registry := vault.NewRegistry(secrets.BlobSource(store),
		vault.WithIdleTimeout(cfg.IdleTimeoutDuration()),
		vault.WithAbsoluteTimeout(cfg.AbsoluteTimeoutDuration()),
		vault.WithUnlockTimeout(cfg.UnlockTimeoutDuration()),
		vault.WithLockHook(lockLogger(logger)),
	)

	addr := cmd.Listen
	if addr == "" {
		addr = cfg.Listen()
	}
	srv := server.New(registry, server.Options{
		Addr:    addr,
		Log:     logger,
		MaxIdle: cmd.MaxIdle,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if _, err := srv.Start(); err != nil {
		return err
	}
	logger.WithField("backend", store.Describe()).Info("reading encrypted secrets")

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cmd.Grace)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// lockLogger reports session locks.
func lockLogger(log logrus.FieldLogger) func(id string, reason vault.LockReason) {
	return func(id string, reason vault.LockReason) {
		log.WithFields(logrus.Fields{
			"session": logging.SessionID(id),
			"reason":  string(reason),
		}).Info("session locked")
	}
}
