package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/awnumar/memguard"
	"github.com/sirupsen/logrus"

	"github.com/semmy-space/monthend/internal/logging"
	"github.com/semmy-space/monthend/internal/vault"
)

type errorResponse struct {
	Error      string `json:"error"`
	Constraint string `json:"constraint"`
}

type statusResponse struct {
	Session      string    `json:"session"`
	State        string    `json:"state"`
	UnlockedAt   time.Time `json:"unlocked_at,omitzero"`
	LastActivity time.Time `json:"last_activity"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, constraint, msg string) {
	writeJSON(w, status, errorResponse{Error: msg, Constraint: constraint})
}

// statusClientClosedRequest is nginx's code for a client that went away before
// the response was written.
const statusClientClosedRequest = 499

// writeVaultError maps vault sentinels onto HTTP status and a stable
// constraint string, which it returns. The message is the operator-facing text.
func writeVaultError(w http.ResponseWriter, err error) string {
	status, constraint := http.StatusInternalServerError, "internal"
	switch {
	case errors.Is(err, vault.ErrPasswordRequired):
		status, constraint = http.StatusBadRequest, "password_required"
	case errors.Is(err, vault.ErrInvalidPassword):
		status, constraint = http.StatusUnauthorized, "invalid_password"
	case errors.Is(err, vault.ErrSessionClosed):
		status, constraint = http.StatusUnauthorized, "session_ended"
	case errors.Is(err, vault.ErrUnlockInProgress):
		status, constraint = http.StatusConflict, "unlock_in_progress"
	case errors.Is(err, vault.ErrAlreadyUnlocked):
		status, constraint = http.StatusConflict, "already_unlocked"
	case errors.Is(err, vault.ErrVaultLocked):
		status, constraint = http.StatusLocked, "locked"
	case errors.Is(err, vault.ErrNoBlob):
		status, constraint = http.StatusPreconditionFailed, "no_blob"
	case errors.Is(err, vault.ErrCorruptBlob):
		status, constraint = http.StatusUnprocessableEntity, "corrupt_blob"
	case errors.Is(err, vault.ErrUnlockTimeout):
		status, constraint = http.StatusGatewayTimeout, "unlock_timeout"
	case errors.Is(err, vault.ErrWeakParameters):
		status, constraint = http.StatusUnprocessableEntity, "weak_parameters"
	case errors.Is(err, vault.ErrStoreUnavailable):
		status, constraint = http.StatusServiceUnavailable, "store_unavailable"
	case errors.Is(err, context.Canceled):
		status, constraint = statusClientClosedRequest, "cancelled"
	}
	writeError(w, status, constraint, vault.UserMessage(err))
	return constraint
}

func (s *Server) sessionLog(r *http.Request, sess *vault.Session) logrus.FieldLogger {
	return s.log.WithFields(logrus.Fields{
		"session": logging.SessionID(sess.ID()),
		"remote":  r.RemoteAddr,
	})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	sess := s.registry.Create()
	s.sessionLog(r, sess).Info("session created")
	writeJSON(w, http.StatusCreated, map[string]string{"session": sess.ID()})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromRequest(r)
	resp := statusResponse{
		Session:      sess.ID(),
		State:        sess.State().String(),
		LastActivity: sess.LastActivity(),
	}
	if at, ok := sess.UnlockedAt(); ok {
		resp.UnlockedAt = at
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleUnlock(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromRequest(r)
	log := s.sessionLog(r, sess)

	if !s.unlockLimiter(sess.ID()).Allow() {
		s.metrics.unlock("throttled")
		log.Warn("unlock throttled")
		writeError(w, http.StatusTooManyRequests, "rate_limited", "Too many unlock attempts. Wait and try again.")
		return
	}

	body, err := io.ReadAll(r.Body)
	defer memguard.WipeBytes(body)
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "invalid_request", "request body too large")
		return
	}
	var req struct {
		Password vault.Secret `json:"password"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}

	// Unlock wipes the password slice.
	if err := sess.Unlock(r.Context(), req.Password); err != nil {
		log.WithError(err).Warn("unlock failed")
		s.metrics.unlock(writeVaultError(w, err))
		return
	}
	s.metrics.unlock("ok")
	log.Info("session unlocked")
	writeJSON(w, http.StatusOK, map[string]string{"state": vault.StateUnlocked.String()})
}

func (s *Server) handleLock(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromRequest(r)
	sess.Lock()
	s.sessionLog(r, sess).Info("session locked")
	writeJSON(w, http.StatusOK, map[string]string{"state": vault.StateLocked.String()})
}

func (s *Server) handleNames(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromRequest(r)
	names, err := sess.Names()
	if err != nil {
		writeVaultError(w, err)
		return
	}
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = string(n)
	}
	writeJSON(w, http.StatusOK, map[string][]string{"names": out})
}

func (s *Server) handleTokens(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromRequest(r)
	if !sess.IsUnlocked() {
		writeVaultError(w, vault.ErrVaultLocked)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]vault.TokenStatus{"tokens": sess.Tokens().List()})
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromRequest(r)
	s.registry.End(sess.ID())
	s.mu.Lock()
	delete(s.limiters, sess.ID())
	s.mu.Unlock()
	s.sessionLog(r, sess).Info("session ended")
	w.WriteHeader(http.StatusNoContent)
}
