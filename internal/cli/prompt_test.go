package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/semmy-space/monthend/internal/output"
	"github.com/semmy-space/monthend/internal/secrets"
	"github.com/semmy-space/monthend/internal/vault"
)

func TestPrompter_ReadsLines(t *testing.T) {
	var errOut bytes.Buffer
	p := newPrompter(strings.NewReader("first\r\nsecret-pw\nlast"), &errOut, false)

	line, err := p.Line("Name: ")
	require.NoError(t, err)
	assert.Equal(t, "first", line)

	pw, err := p.Password("Password: ")
	require.NoError(t, err)
	assert.Equal(t, []byte("secret-pw"), pw)

	// A final line without a newline still counts.
	line, err = p.Line("Last: ")
	require.NoError(t, err)
	assert.Equal(t, "last", line)

	_, err = p.Line("More: ")
	assert.ErrorIs(t, err, io.EOF)

	assert.Equal(t, "Name: Password: Last: More: ", errOut.String())
	assert.NotContains(t, errOut.String(), "secret-pw")
}

func TestPrompter_NewPassword(t *testing.T) {
	p := newPrompter(strings.NewReader("longenough\nlongenough\n"), io.Discard, false)
	pw, err := p.NewPassword("New: ")
	require.NoError(t, err)
	assert.Equal(t, []byte("longenough"), pw)

	p = newPrompter(strings.NewReader("1234567\n"), io.Discard, false)
	_, err = p.NewPassword("New: ")
	var cliErr *output.CLIError
	require.ErrorAs(t, err, &cliErr)
	assert.Equal(t, output.ExitUsage, cliErr.ExitCode)

	p = newPrompter(strings.NewReader("longenough\ndifferent1\n"), io.Discard, false)
	_, err = p.NewPassword("New: ")
	require.ErrorAs(t, err, &cliErr)
	assert.Contains(t, cliErr.Message, "do not match")
}

func TestPrompter_NoInput(t *testing.T) {
	p := newPrompter(strings.NewReader("yes\n"), io.Discard, true)

	_, err := p.Line("x: ")
	assert.Equal(t, errNoInput, err)
	_, err = p.Password("x: ")
	assert.Equal(t, errNoInput, err)

	ok, err := p.Confirm("Really?", true)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPrompter_Confirm(t *testing.T) {
	p := newPrompter(strings.NewReader("Y\nno\n\n"), io.Discard, false)
	for _, want := range []bool{true, false, false} {
		ok, err := p.Confirm("Really?", false)
		require.NoError(t, err)
		assert.Equal(t, want, ok)
	}
}

func TestVaultError_ExitCodes(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{vault.ErrInvalidPassword, output.ExitAuth},
		{vault.ErrCorruptBlob, output.ExitCorrupt},
		{vault.ErrNoBlob, output.ExitNotFound},
		{vault.ErrPasswordRequired, output.ExitUsage},
		{vault.ErrUnlockInProgress, output.ExitConflict},
		{vault.ErrAlreadyUnlocked, output.ExitConflict},
		{vault.ErrVaultLocked, output.ExitLocked},
		{vault.ErrSessionClosed, output.ExitLocked},
		{vault.ErrSecretNotSet, output.ExitNotFound},
		{vault.ErrUnknownSecret, output.ExitUsage},
		{vault.ErrTokenAbsent, output.ExitAuth},
		{vault.ErrTokenExpired, output.ExitAuth},
		{vault.ErrUnlockTimeout, output.ExitTimeout},
		{vault.ErrWeakParameters, output.ExitConfigError},
		{vault.ErrStoreUnavailable, output.ExitConfigError},
		{secrets.ErrReadOnly, output.ExitConfigError},
		{&oauth2.RetrieveError{Response: &http.Response{StatusCode: http.StatusBadRequest}, ErrorCode: "invalid_grant"}, output.ExitAuth},
		{&oauth2.RetrieveError{Response: &http.Response{StatusCode: http.StatusBadGateway}}, output.ExitAPIError},
		{&url.Error{Op: "Post", URL: "https://oauth.example", Err: &net.DNSError{Err: "no such host", Name: "oauth.example"}}, output.ExitNetwork},
		{errors.New("boom"), output.ExitGeneral},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%T/%d", tt.err, tt.code), func(t *testing.T) {
			assert.Equal(t, tt.code, vaultError(tt.err).ExitCode)
		})
	}
}

func TestVaultError_KeepsPasswordOut(t *testing.T) {
	err := vaultError(vault.ErrInvalidPassword)
	assert.Equal(t, vault.UserMessage(vault.ErrInvalidPassword), err.Message)
	assert.NotEqual(t, vault.UserMessage(vault.ErrCorruptBlob), err.Message)
}

func TestAsCLIError_PassesThrough(t *testing.T) {
	orig := output.NewCLIError(output.ExitRateLimit, "slow down")
	assert.Same(t, orig, asCLIError(orig))
}
