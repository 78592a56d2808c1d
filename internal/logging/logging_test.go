package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedactHook(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Out: &buf, Format: "json"})

	log.WithFields(logrus.Fields{
		"session":       "3f1c",
		"password":      "hunter2",
		"access_token":  "ya29.abc",
		"private_key":   "-----BEGIN",
		"qbo_client_id": "AB123",
		"reason":        "idle_timeout",
	}).Info("session locked")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "3f1c", entry["session"])
	assert.Equal(t, "idle_timeout", entry["reason"])
	assert.Equal(t, "[REDACTED]", entry["password"])
	assert.Equal(t, "[REDACTED]", entry["access_token"])
	assert.Equal(t, "[REDACTED]", entry["private_key"])
	assert.NotContains(t, buf.String(), "hunter2")
	assert.NotContains(t, buf.String(), "ya29")
}

func TestSensitive(t *testing.T) {
	for _, k := range []string{"Password", "encrypted_secrets", "blob", "refresh_token", "KeyID"} {
		assert.True(t, Sensitive(k), k)
	}
	for _, k := range []string{"session", "provider", "realm", "remote"} {
		assert.False(t, Sensitive(k), k)
	}
}

func TestNewDefaults(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Out: &buf, Level: "bogus"})
	assert.Equal(t, logrus.InfoLevel, log.GetLevel())
	_, isJSON := log.Formatter.(*logrus.JSONFormatter)
	assert.True(t, isJSON, "non-terminal output defaults to JSON")

	log = New(Options{Out: &buf, Level: "debug", Format: "text"})
	assert.Equal(t, logrus.DebugLevel, log.GetLevel())
	_, isText := log.Formatter.(*logrus.TextFormatter)
	assert.True(t, isText)
}

func TestSessionID(t *testing.T) {
	assert.Equal(t, "2c316421", SessionID("2c316421-fe5f-4fcf-82a9-a4b2d00be1f3"))
	assert.Equal(t, "short", SessionID("short"))
	assert.Empty(t, SessionID(""))
}
