package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"golang.org/x/oauth2"

	"github.com/semmy-space/monthend/internal/output"
	"github.com/semmy-space/monthend/internal/secrets"
	"github.com/semmy-space/monthend/internal/vault"
)

// vaultError maps vault, store, and connect errors to a CLIError with the
// matching exit code. Messages come from vault.UserMessage so the CLI and the
// session API say the same thing.
func vaultError(err error) *output.CLIError {
	msg := vault.UserMessage(err)
	switch {
	case errors.Is(err, vault.ErrInvalidPassword):
		return output.NewCLIError(output.ExitAuth, msg)
	case errors.Is(err, vault.ErrCorruptBlob):
		return output.NewCLIError(output.ExitCorrupt, msg).
			WithHint("Run 'monthend blob encrypt' with the original credentials and save the result")
	case errors.Is(err, vault.ErrNoBlob):
		return output.NewCLIError(output.ExitNotFound, msg).
			WithHint("Run 'monthend store where' to see which backend is being read")
	case errors.Is(err, vault.ErrStoreUnavailable):
		return output.NewCLIError(output.ExitConfigError, msg).
			WithHint("Run 'monthend store where' to check the selected backend")
	case errors.Is(err, vault.ErrPasswordRequired):
		return output.NewCLIError(output.ExitUsage, msg)
	case errors.Is(err, vault.ErrUnlockInProgress), errors.Is(err, vault.ErrAlreadyUnlocked):
		return output.NewCLIError(output.ExitConflict, msg)
	case errors.Is(err, vault.ErrVaultLocked):
		return output.NewCLIError(output.ExitLocked, msg)
	case errors.Is(err, vault.ErrSessionClosed):
		return output.NewCLIError(output.ExitLocked, msg)
	case errors.Is(err, vault.ErrSecretNotSet):
		return output.NewCLIError(output.ExitNotFound, msg).
			WithHint("Run 'monthend blob encrypt --edit' to add it")
	case errors.Is(err, vault.ErrUnknownSecret):
		return output.NewCLIError(output.ExitUsage, err.Error()).
			WithHint(fmt.Sprintf("Known names: %s", namesList(vault.AllNames())))
	case errors.Is(err, vault.ErrTokenAbsent), errors.Is(err, vault.ErrTokenExpired):
		return output.NewCLIError(output.ExitAuth, msg)
	case errors.Is(err, vault.ErrUnlockTimeout), errors.Is(err, context.DeadlineExceeded):
		return output.NewCLIError(output.ExitTimeout, vault.UserMessage(vault.ErrUnlockTimeout)).
			WithHint("Raise unlock_timeout or lower scrypt_n in the config")
	case errors.Is(err, vault.ErrWeakParameters), errors.Is(err, vault.ErrParamsOutOfRange), errors.Is(err, vault.ErrUnknownCipher):
		return output.NewCLIError(output.ExitConfigError, err.Error())
	case errors.Is(err, secrets.ErrReadOnly):
		return output.NewCLIError(output.ExitConfigError, "the selected blob store is read-only").
			WithHint("Use --backend keyring or --backend file, or set blob_backend")
	}

	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		if retrieveErr.Response != nil && retrieveErr.Response.StatusCode >= 500 {
			return output.Errorf(output.ExitAPIError, "token endpoint failed with HTTP %d", retrieveErr.Response.StatusCode)
		}
		return output.Errorf(output.ExitAuth, "authorization failed: %s", retrieveErr.ErrorCode).
			WithHint("Check the client credentials in the encrypted secrets")
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return output.NewCLIError(output.ExitNetwork, err.Error()).
			WithHint("Check your network connection and try again")
	}
	return output.NewCLIError(output.ExitGeneral, err.Error())
}

func namesList(names []vault.Name) string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = string(n)
	}
	return strings.Join(out, ", ")
}
