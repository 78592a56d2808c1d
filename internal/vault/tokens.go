package vault

import (
	"errors"
	"sort"
	"time"
)

// Token is a short-lived third-party access token held only in memory.
type Token struct {
	Provider   string
	Subject    string
	Value      Secret
	AcquiredAt time.Time
	ExpiresAt  time.Time
}

func (t *Token) clone() Token {
	cp := *t
	cp.Value = t.Value.Clone()
	return cp
}

// Wipe zeroes the token value.
func (t *Token) Wipe() { t.Value.Wipe() }

// TokenStatus describes a token without its value.
type TokenStatus struct {
	Provider   string    `json:"provider"`
	Subject    string    `json:"subject,omitempty"`
	AcquiredAt time.Time `json:"acquired_at"`
	ExpiresAt  time.Time `json:"expires_at"`
	Expired    bool      `json:"expired"`
}

type tokenOptions struct {
	subject string
}

// TokenOption customises Register.
type TokenOption func(*tokenOptions)

// WithSubject records the account or realm the token was issued for.
func WithSubject(subject string) TokenOption {
	return func(o *tokenOptions) { o.subject = subject }
}

// TokenManager holds a session's tokens, keyed by provider. It shares the
// owning session's mutex so a lock can never race a registration. Tokens are
// never refreshed or persisted.
type TokenManager struct {
	session *Session
	tokens  map[string]*Token
}

// Register stores a copy of value for provider, valid for ttl from now. Any
// previous token for the provider is wiped. The caller keeps ownership of value.
func (m *TokenManager) Register(provider string, value []byte, ttl time.Duration, opts ...TokenOption) error {
	switch {
	case provider == "":
		return errors.New("token provider is required")
	case len(value) == 0:
		return errors.New("token value is required")
	case ttl <= 0:
		return errors.New("token lifetime must be positive")
	}
	var o tokenOptions
	for _, opt := range opts {
		opt(&o)
	}

	s := m.session
	s.mu.Lock()
	reason := s.expireLocked()
	if s.state != StateUnlocked {
		s.mu.Unlock()
		s.notify(reason)
		return ErrVaultLocked
	}
	now := s.now()
	s.lastActivity = now
	if old, ok := m.tokens[provider]; ok {
		old.Wipe()
	}
	m.tokens[provider] = &Token{
		Provider:   provider,
		Subject:    o.subject,
		Value:      append(Secret(nil), value...),
		AcquiredAt: now,
		ExpiresAt:  now.Add(ttl),
	}
	s.mu.Unlock()
	return nil
}

// Get returns a copy of the provider's token. Past its expiry the stored value
// is wiped and ErrTokenExpired is returned until a new token is registered.
func (m *TokenManager) Get(provider string) (Token, error) {
	s := m.session
	s.mu.Lock()
	reason := s.expireLocked()
	defer func() {
		s.mu.Unlock()
		s.notify(reason)
	}()

	t, ok := m.tokens[provider]
	if !ok || s.state != StateUnlocked {
		return Token{}, ErrTokenAbsent
	}
	now := s.now()
	if m.expire(t, now) {
		return Token{}, ErrTokenExpired
	}
	s.lastActivity = now
	return t.clone(), nil
}

// List reports every known token, sorted by provider.
func (m *TokenManager) List() []TokenStatus {
	s := m.session
	s.mu.Lock()
	reason := s.expireLocked()
	now := s.now()
	out := make([]TokenStatus, 0, len(m.tokens))
	for _, t := range m.tokens {
		out = append(out, TokenStatus{
			Provider:   t.Provider,
			Subject:    t.Subject,
			AcquiredAt: t.AcquiredAt,
			ExpiresAt:  t.ExpiresAt,
			Expired:    m.expire(t, now),
		})
	}
	s.mu.Unlock()
	s.notify(reason)

	sort.Slice(out, func(i, j int) bool { return out[i].Provider < out[j].Provider })
	return out
}

// Forget wipes and drops the provider's token. It reports whether one existed.
func (m *TokenManager) Forget(provider string) bool {
	s := m.session
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := m.tokens[provider]
	if !ok {
		return false
	}
	t.Wipe()
	delete(m.tokens, provider)
	return true
}

// expire wipes the value once now is past ExpiresAt. Callers hold the session
// mutex.
func (m *TokenManager) expire(t *Token, now time.Time) bool {
	if !now.After(t.ExpiresAt) {
		return false
	}
	t.Wipe()
	return true
}

// onLock drops every token. Called with the session mutex held.
func (m *TokenManager) onLock() {
	for k, t := range m.tokens {
		t.Wipe()
		delete(m.tokens, k)
	}
}
