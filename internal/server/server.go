// Package server exposes vault sessions over a local HTTP API so several
// operators can work against one process, each with their own session.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/semmy-space/monthend/internal/logging"
	"github.com/semmy-space/monthend/internal/vault"
)

// Options configure New. Zero values take the defaults below.
type Options struct {
	Addr          string
	Log           logrus.FieldLogger
	SweepInterval time.Duration // default 1m
	MaxIdle       time.Duration // locked sessions idle this long are ended; default 30m
	UnlockEvery   time.Duration // unlock token refill interval; default 12s
	UnlockBurst   int           // default 5
}

// Server is the HTTP API server for vault sessions.
type Server struct {
	registry *vault.Registry
	log      logrus.FieldLogger
	opts     Options

	mux     *http.ServeMux
	handler http.Handler // full chain: headers, body limit, metrics, mux
	server  *http.Server
	metrics *metrics

	mu       sync.Mutex
	limiters map[string]*rate.Limiter

	stopSweep chan struct{}
	sweepDone chan struct{}
}

// New creates a new API server over reg.
func New(reg *vault.Registry, opts Options) *Server {
	if opts.Log == nil {
		opts.Log = logging.Discard()
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = time.Minute
	}
	if opts.MaxIdle <= 0 {
		opts.MaxIdle = 30 * time.Minute
	}
	if opts.UnlockEvery <= 0 {
		opts.UnlockEvery = 12 * time.Second
	}
	if opts.UnlockBurst <= 0 {
		opts.UnlockBurst = 5
	}

	s := &Server{
		registry: reg,
		log:      opts.Log,
		opts:     opts,
		limiters: make(map[string]*rate.Limiter),
		metrics:  newMetrics(reg),
	}
	s.mux = http.NewServeMux()
	s.registerRoutes()
	s.handler = securityHeadersMiddleware(bodySizeMiddleware(s.metrics.instrument(s.mux)))
	s.server = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("POST /sessions", s.handleCreateSession)
	s.mux.Handle("GET /metrics", s.metrics.handler())

	protected := http.NewServeMux()
	protected.HandleFunc("GET /session/status", s.handleStatus)
	protected.HandleFunc("POST /session/unlock", s.handleUnlock)
	protected.HandleFunc("POST /session/lock", s.handleLock)
	protected.HandleFunc("GET /session/names", s.handleNames)
	protected.HandleFunc("GET /session/tokens", s.handleTokens)
	protected.HandleFunc("DELETE /session", s.handleEndSession)

	s.mux.Handle("/session", s.authMiddleware(protected))
	s.mux.Handle("/session/", s.authMiddleware(protected))
}

// Handler returns the full middleware chain, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.handler }

// Start begins listening and sweeping. Returns immediately; use the returned
// listener to get the actual port.
func (s *Server) Start() (net.Listener, error) {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return nil, err
	}
	s.stopSweep = make(chan struct{})
	s.sweepDone = make(chan struct{})
	go s.sweepLoop()
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.WithError(err).Error("http server stopped")
		}
	}()
	s.log.WithField("addr", ln.Addr().String()).Info("session API listening")
	return ln, nil
}

// Shutdown stops accepting requests and ends every session, wiping their
// secrets and tokens.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.stopSweep != nil {
		close(s.stopSweep)
		<-s.sweepDone
	}
	err := s.server.Shutdown(ctx)
	s.registry.Close()
	s.log.Info("all sessions ended")
	return err
}

func (s *Server) sweepLoop() {
	defer close(s.sweepDone)
	ticker := time.NewTicker(s.opts.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopSweep:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *Server) sweep() {
	if n := s.registry.Sweep(s.opts.MaxIdle); n > 0 {
		s.log.WithField("count", n).Info("ended idle sessions")
	}
	s.mu.Lock()
	for id := range s.limiters {
		if _, err := s.registry.Get(id); err != nil {
			delete(s.limiters, id)
		}
	}
	s.mu.Unlock()
}

// unlockLimiter returns the per-session unlock limiter. Limits are per
// session so one operator's typos cannot lock out another.
func (s *Server) unlockLimiter(id string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.limiters[id]
	if !ok {
		l = rate.NewLimiter(rate.Every(s.opts.UnlockEvery), s.opts.UnlockBurst)
		s.limiters[id] = l
	}
	return l
}
