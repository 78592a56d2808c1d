package vault

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/awnumar/memguard"
	"github.com/google/uuid"
)

// State is the lifecycle position of a Session.
type State int

const (
	StateLocked State = iota
	StateUnlocking
	StateUnlocked
)

func (s State) String() string {
	switch s {
	case StateUnlocking:
		return "unlocking"
	case StateUnlocked:
		return "unlocked"
	default:
		return "locked"
	}
}

// LockReason says why an Unlocked session went back to Locked.
type LockReason string

const (
	LockManual   LockReason = "manual"
	LockIdle     LockReason = "idle_timeout"
	LockAbsolute LockReason = "absolute_timeout"
	LockClosed   LockReason = "closed"
)

// BlobSource supplies the encoded blob at unlock time.
type BlobSource interface {
	LoadBlob() (string, error)
}

// BlobSourceFunc adapts a function to BlobSource.
type BlobSourceFunc func() (string, error)

func (f BlobSourceFunc) LoadBlob() (string, error) { return f() }

// StaticBlob serves a fixed encoded blob. An empty value reports ErrNoBlob.
func StaticBlob(encoded string) BlobSource {
	return BlobSourceFunc(func() (string, error) {
		if encoded == "" {
			return "", ErrNoBlob
		}
		return encoded, nil
	})
}

var coreDumpsOnce sync.Once

// Session is one operator's view of the vault. Its bundle and tokens are owned
// exclusively by it; nothing is shared between sessions.
type Session struct {
	id       string
	src      BlobSource
	now      func() time.Time
	idle     time.Duration
	absolute time.Duration
	unlockTO time.Duration
	onLock   func(id string, reason LockReason)

	mu           sync.Mutex
	state        State
	closed       bool
	attempt      uint64
	abort        chan struct{}
	bundle       *Bundle
	unlockedAt   time.Time
	lastActivity time.Time
	timer        *time.Timer
	tokens       *TokenManager
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithClock injects the time source used for timeouts and token expiry.
func WithClock(now func() time.Time) SessionOption {
	return func(s *Session) { s.now = now }
}

// WithIdleTimeout locks the session after d without a secret or token access.
// Zero disables it.
func WithIdleTimeout(d time.Duration) SessionOption {
	return func(s *Session) { s.idle = d }
}

// WithAbsoluteTimeout locks the session d after unlock regardless of activity.
// Zero disables it.
func WithAbsoluteTimeout(d time.Duration) SessionOption {
	return func(s *Session) { s.absolute = d }
}

// WithUnlockTimeout bounds how long Unlock waits for key derivation.
func WithUnlockTimeout(d time.Duration) SessionOption {
	return func(s *Session) { s.unlockTO = d }
}

// WithLockHook is called after every transition that discarded secrets. It runs
// outside the session mutex.
func WithLockHook(fn func(id string, reason LockReason)) SessionOption {
	return func(s *Session) { s.onLock = fn }
}

// NewSession returns a Locked session reading its blob from src.
func NewSession(src BlobSource, opts ...SessionOption) *Session {
	s := &Session{
		id:  uuid.NewString(),
		src: src,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.lastActivity = s.now()
	s.tokens = &TokenManager{session: s, tokens: make(map[string]*Token)}
	return s
}

func (s *Session) ID() string { return s.id }

// Tokens returns the session's token manager.
func (s *Session) Tokens() *TokenManager { return s.tokens }

// State reports the current state after applying any elapsed timeout.
func (s *Session) State() State {
	s.mu.Lock()
	reason := s.expireLocked()
	st := s.state
	s.mu.Unlock()
	s.notify(reason)
	return st
}

func (s *Session) IsUnlocked() bool { return s.State() == StateUnlocked }

// Closed reports whether the session has ended.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// UnlockedAt returns when the current unlock happened.
func (s *Session) UnlockedAt() (time.Time, bool) {
	s.mu.Lock()
	reason := s.expireLocked()
	t, ok := s.unlockedAt, s.state == StateUnlocked
	s.mu.Unlock()
	s.notify(reason)
	if !ok {
		return time.Time{}, false
	}
	return t, true
}

// LastActivity is the time of the last unlock, lock, or access.
func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

type unlockResult struct {
	err error
}

// Unlock derives the key from password and decrypts the session's blob. The
// password is wiped before Unlock returns, whatever the outcome.
//
// Derivation runs in its own goroutine. If ctx or the unlock timeout ends the
// wait first, or Lock is called meanwhile, the session is Locked at once and the
// bundle produced later is wiped when it arrives.
func (s *Session) Unlock(ctx context.Context, password []byte) error {
	defer memguard.WipeBytes(password)
	if len(password) == 0 {
		return ErrPasswordRequired
	}

	s.mu.Lock()
	reason := s.expireLocked()
	switch {
	case s.closed:
		s.mu.Unlock()
		return ErrSessionClosed
	case s.state == StateUnlocking:
		s.mu.Unlock()
		return ErrUnlockInProgress
	case s.state == StateUnlocked:
		s.mu.Unlock()
		return ErrAlreadyUnlocked
	}
	s.state = StateUnlocking
	s.attempt++
	gen := s.attempt
	abort := make(chan struct{})
	s.abort = abort
	s.mu.Unlock()
	s.notify(reason)

	if s.unlockTO > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.unlockTO)
		defer cancel()
	}

	encoded, err := s.src.LoadBlob()
	if err != nil {
		s.fail(gen)
		if errors.Is(err, ErrNoBlob) || errors.Is(err, ErrCorruptBlob) {
			return err
		}
		return ErrStoreUnavailable
	}

	select {
	case <-abort:
		return s.abandoned()
	case <-ctx.Done():
		if s.fail(gen) {
			return unlockCtxErr(ctx)
		}
		return s.abandoned()
	default:
	}

	pw := append([]byte(nil), password...)
	done := make(chan unlockResult, 1)
	go func() {
		defer memguard.WipeBytes(pw)
		b, err := DecryptString(encoded, pw)
		done <- unlockResult{err: s.complete(gen, b, err)}
	}()

	select {
	case r := <-done:
		return r.err
	case <-abort:
		return s.abandoned()
	case <-ctx.Done():
		if !s.fail(gen) {
			// Either derivation finished or Lock got there first.
			select {
			case r := <-done:
				return r.err
			case <-abort:
				return s.abandoned()
			}
		}
		return unlockCtxErr(ctx)
	}
}

func unlockCtxErr(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ErrUnlockTimeout
	}
	return ctx.Err()
}

func (s *Session) abandoned() error {
	if s.Closed() {
		return ErrSessionClosed
	}
	return ErrVaultLocked
}

// complete installs a finished derivation if the attempt is still current, and
// wipes it otherwise.
func (s *Session) complete(gen uint64, b *Bundle, err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.attempt != gen || s.state != StateUnlocking {
		b.Wipe()
		if s.closed {
			return ErrSessionClosed
		}
		return ErrVaultLocked
	}
	s.abort = nil
	if err != nil {
		s.state = StateLocked
		return err
	}

	coreDumpsOnce.Do(disableCoreDumps)
	now := s.now()
	s.state = StateUnlocked
	s.bundle = b
	s.unlockedAt = now
	s.lastActivity = now
	s.armLocked()
	return nil
}

// fail returns an in-flight attempt to Locked. It reports false when the
// attempt is no longer current.
func (s *Session) fail(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.attempt != gen || s.state != StateUnlocking {
		return false
	}
	s.attempt++
	s.abort = nil
	s.state = StateLocked
	return true
}

// Lock discards the bundle and every token. Locking a Locked session is a no-op.
func (s *Session) Lock() {
	s.mu.Lock()
	reason := s.lockLocked(LockManual)
	s.mu.Unlock()
	s.notify(reason)
}

// Close locks the session for good. Later unlocks fail with ErrSessionClosed.
func (s *Session) Close() {
	s.mu.Lock()
	reason := s.lockLocked(LockClosed)
	s.closed = true
	s.mu.Unlock()
	s.notify(reason)
}

// lockLocked performs the transition to Locked and returns the reason when
// anything was discarded. Callers hold s.mu.
func (s *Session) lockLocked(reason LockReason) LockReason {
	switch s.state {
	case StateLocked:
		return ""
	case StateUnlocking:
		s.attempt++
		if s.abort != nil {
			close(s.abort)
			s.abort = nil
		}
	}
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.bundle.Wipe()
	s.bundle = nil
	s.tokens.onLock()
	s.state = StateLocked
	s.unlockedAt = time.Time{}
	s.lastActivity = s.now()
	return reason
}

// expireLocked applies the idle and absolute timeouts. Callers hold s.mu.
func (s *Session) expireLocked() LockReason {
	if s.state != StateUnlocked {
		return ""
	}
	now := s.now()
	if s.absolute > 0 && now.After(s.unlockedAt.Add(s.absolute)) {
		return s.lockLocked(LockAbsolute)
	}
	if s.idle > 0 && now.After(s.lastActivity.Add(s.idle)) {
		return s.lockLocked(LockIdle)
	}
	return ""
}

// armLocked schedules a timer for the nearest deadline so memory is wiped even
// when nobody touches the session. Callers hold s.mu.
func (s *Session) armLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	var deadline time.Time
	if s.absolute > 0 {
		deadline = s.unlockedAt.Add(s.absolute)
	}
	if s.idle > 0 {
		if d := s.lastActivity.Add(s.idle); deadline.IsZero() || d.Before(deadline) {
			deadline = d
		}
	}
	if deadline.IsZero() {
		return
	}
	// Fire just past the deadline; expiry is strictly after it.
	wait := deadline.Sub(s.now()) + time.Millisecond
	s.timer = time.AfterFunc(wait, s.tick)
}

func (s *Session) tick() {
	s.mu.Lock()
	reason := s.expireLocked()
	if s.state == StateUnlocked {
		s.armLocked()
	}
	s.mu.Unlock()
	s.notify(reason)
}

func (s *Session) notify(reason LockReason) {
	if reason != "" && s.onLock != nil {
		s.onLock(s.id, reason)
	}
}

// access runs fn against the bundle while the session is Unlocked and counts as
// activity for the idle timeout.
func (s *Session) access(fn func(*Bundle) error) error {
	s.mu.Lock()
	reason := s.expireLocked()
	if s.state != StateUnlocked {
		closed := s.closed
		s.mu.Unlock()
		s.notify(reason)
		if closed {
			return ErrSessionClosed
		}
		return ErrVaultLocked
	}
	s.lastActivity = s.now()
	err := fn(s.bundle)
	s.mu.Unlock()
	return err
}

// GetSecret returns an independent copy of a credential. The caller should Wipe
// it when done.
func (s *Session) GetSecret(name Name) (Value, error) {
	var v Value
	err := s.access(func(b *Bundle) error {
		var err error
		v, err = b.Value(name)
		return err
	})
	return v, err
}

// WithSecret hands fn a copy of the credential and wipes the copy afterwards.
// fn runs without the session mutex held.
func (s *Session) WithSecret(name Name, fn func(Value) error) error {
	v, err := s.GetSecret(name)
	if err != nil {
		return err
	}
	defer v.Wipe()
	return fn(v)
}

// Names lists the credentials present in the unlocked bundle.
func (s *Session) Names() ([]Name, error) {
	var names []Name
	err := s.access(func(b *Bundle) error {
		names = b.Names()
		return nil
	})
	return names, err
}

// Rekey encrypts the unlocked bundle under newPassword and returns the new
// encoded blob. The session stays Unlocked; storing the result is up to the
// caller. newPassword is wiped before returning.
func (s *Session) Rekey(newPassword []byte, opts ...EncryptOption) (string, error) {
	defer memguard.WipeBytes(newPassword)
	if len(newPassword) == 0 {
		return "", ErrPasswordRequired
	}
	var snapshot *Bundle
	if err := s.access(func(b *Bundle) error {
		snapshot = b.Clone()
		return nil
	}); err != nil {
		return "", err
	}
	defer snapshot.Wipe()
	return EncryptString(snapshot, newPassword, opts...)
}
