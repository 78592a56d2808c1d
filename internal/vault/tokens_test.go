package vault

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unlockedSession(t *testing.T, opts ...SessionOption) *Session {
	t.Helper()
	s, _ := newTestSession(t, opts...)
	require.NoError(t, s.Unlock(context.Background(), pw(testPassword)))
	return s
}

func TestTokens_RegisterRequiresUnlocked(t *testing.T) {
	s, _ := newTestSession(t)
	err := s.Tokens().Register("qbo", pw("tok"), time.Hour)
	assert.ErrorIs(t, err, ErrVaultLocked)
}

func TestTokens_RegisterValidation(t *testing.T) {
	m := unlockedSession(t).Tokens()
	assert.Error(t, m.Register("", pw("tok"), time.Hour))
	assert.Error(t, m.Register("qbo", nil, time.Hour))
	assert.Error(t, m.Register("qbo", pw("tok"), 0))
	assert.Error(t, m.Register("qbo", pw("tok"), -time.Second))
}

func TestTokens_GetCopiesValue(t *testing.T) {
	m := unlockedSession(t).Tokens()
	value := pw("access-token")
	require.NoError(t, m.Register("qbo", value, time.Hour, WithSubject("9130355")))

	// Register copied the caller's slice.
	value[0] = 'X'
	tok, err := m.Get("qbo")
	require.NoError(t, err)
	assert.Equal(t, "access-token", tok.Value.Reveal())
	assert.Equal(t, "9130355", tok.Subject)

	tok.Wipe()
	again, err := m.Get("qbo")
	require.NoError(t, err)
	assert.Equal(t, "access-token", again.Value.Reveal())
}

func TestTokens_ExpiryIsSticky(t *testing.T) {
	clock := newFakeClock()
	s := unlockedSession(t, WithClock(clock.Now))
	m := s.Tokens()
	require.NoError(t, m.Register("google", pw("ya29.token"), time.Hour))

	m.session.mu.Lock()
	backing := []byte(m.tokens["google"].Value)
	m.session.mu.Unlock()

	clock.Advance(time.Hour)
	_, err := m.Get("google")
	require.NoError(t, err, "valid through the expiry instant")

	clock.Advance(time.Second)
	_, err = m.Get("google")
	assert.ErrorIs(t, err, ErrTokenExpired)
	assert.Equal(t, make([]byte, len(backing)), backing)

	clock.Advance(time.Hour)
	_, err = m.Get("google")
	assert.ErrorIs(t, err, ErrTokenExpired)

	statuses := m.List()
	require.Len(t, statuses, 1)
	assert.True(t, statuses[0].Expired)

	require.NoError(t, m.Register("google", pw("ya29.fresh"), time.Hour))
	tok, err := m.Get("google")
	require.NoError(t, err)
	assert.Equal(t, "ya29.fresh", tok.Value.Reveal())
}

func TestTokens_AbsentAndForget(t *testing.T) {
	m := unlockedSession(t).Tokens()

	_, err := m.Get("qbo")
	assert.ErrorIs(t, err, ErrTokenAbsent)

	require.NoError(t, m.Register("qbo", pw("tok"), time.Hour))
	assert.True(t, m.Forget("qbo"))
	assert.False(t, m.Forget("qbo"))

	_, err = m.Get("qbo")
	assert.ErrorIs(t, err, ErrTokenAbsent)
}

func TestTokens_List(t *testing.T) {
	clock := newFakeClock()
	m := unlockedSession(t, WithClock(clock.Now)).Tokens()
	require.NoError(t, m.Register("qbo", pw("a"), time.Hour, WithSubject("realm-1")))
	require.NoError(t, m.Register("google", pw("b"), 30*time.Minute))

	statuses := m.List()
	require.Len(t, statuses, 2)
	assert.Equal(t, "google", statuses[0].Provider)
	assert.Equal(t, "qbo", statuses[1].Provider)
	assert.Equal(t, "realm-1", statuses[1].Subject)
	assert.Equal(t, clock.Now().Add(time.Hour), statuses[1].ExpiresAt)
	assert.False(t, statuses[1].Expired)
}

func TestTokens_DroppedOnLock(t *testing.T) {
	s := unlockedSession(t)
	m := s.Tokens()
	require.NoError(t, m.Register("qbo", pw("tok"), time.Hour))

	m.session.mu.Lock()
	backing := []byte(m.tokens["qbo"].Value)
	m.session.mu.Unlock()

	s.Lock()
	assert.Equal(t, make([]byte, len(backing)), backing)
	_, err := m.Get("qbo")
	assert.ErrorIs(t, err, ErrTokenAbsent)

	// Unlocking again does not bring tokens back.
	require.NoError(t, s.Unlock(context.Background(), pw(testPassword)))
	_, err = m.Get("qbo")
	assert.ErrorIs(t, err, ErrTokenAbsent)
}

func TestTokens_AccessResetsIdle(t *testing.T) {
	clock := newFakeClock()
	s := unlockedSession(t, WithClock(clock.Now), WithIdleTimeout(10*time.Minute))
	m := s.Tokens()
	require.NoError(t, m.Register("qbo", pw("tok"), time.Hour))

	clock.Advance(9 * time.Minute)
	_, err := m.Get("qbo")
	require.NoError(t, err)
	clock.Advance(9 * time.Minute)
	assert.True(t, s.IsUnlocked())

	clock.Advance(2 * time.Minute)
	_, err = m.Get("qbo")
	assert.ErrorIs(t, err, ErrTokenAbsent)
	assert.False(t, s.IsUnlocked())
}
