package vault

import (
	"context"
	"errors"

	"github.com/semmy-space/monthend/internal/crypto"
)

// Every failure leaving this package collapses to one of these sentinels. None of
// them carries password, key, plaintext, or library detail.
var (
	ErrInvalidPassword   = errors.New("wrong password")
	ErrCorruptBlob       = errors.New("encrypted secrets are corrupt or in an unknown format")
	ErrUnlockInProgress  = errors.New("an unlock attempt is already in progress")
	ErrVaultLocked       = errors.New("vault is locked")
	ErrWeakParameters    = crypto.ErrWeakParameters
	ErrDerivationFailure = crypto.ErrDerivationFailure
	ErrParamsOutOfRange  = crypto.ErrParamsOutOfRange
	ErrUnknownCipher     = crypto.ErrUnknownCipher
	ErrTokenExpired      = errors.New("token expired")
	ErrTokenAbsent       = errors.New("no token registered")

	ErrAlreadyUnlocked  = errors.New("vault is already unlocked")
	ErrPasswordRequired = errors.New("password is required")
	ErrNoBlob           = errors.New("no encrypted secrets configured")
	ErrStoreUnavailable = errors.New("encrypted secrets could not be loaded")
	ErrSecretNotSet     = errors.New("credential is not set")
	ErrUnknownSecret    = errors.New("unknown credential name")
	ErrSessionClosed    = errors.New("session has ended")
	ErrUnlockTimeout    = errors.New("unlock timed out")
)

// Retryable reports whether the operator can simply try again (re-prompt,
// wait, unlock first, or re-acquire a token).
func Retryable(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidPassword),
		errors.Is(err, ErrUnlockInProgress),
		errors.Is(err, ErrVaultLocked),
		errors.Is(err, ErrPasswordRequired),
		errors.Is(err, ErrUnlockTimeout),
		errors.Is(err, ErrStoreUnavailable),
		errors.Is(err, ErrTokenExpired),
		errors.Is(err, ErrTokenAbsent):
		return true
	}
	return false
}

// UserMessage returns operator-facing text. Wrong password and corrupt blob get
// distinct messages because they have different remediation paths.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidPassword):
		return "Wrong password. Try again."
	case errors.Is(err, ErrCorruptBlob):
		return "The stored encrypted secrets could not be read. They may be damaged or tampered with; regenerate them from the original credentials."
	case errors.Is(err, ErrNoBlob):
		return "No encrypted secrets found. Create them with 'monthend blob encrypt'."
	case errors.Is(err, ErrStoreUnavailable):
		return "The encrypted secrets could not be loaded from their store. Check 'monthend store where' and try again."
	case errors.Is(err, ErrPasswordRequired):
		return "Password is required."
	case errors.Is(err, ErrUnlockInProgress):
		return "An unlock is already running. Wait for it to finish and try again."
	case errors.Is(err, ErrAlreadyUnlocked):
		return "Already unlocked."
	case errors.Is(err, ErrVaultLocked):
		return "Secrets are locked. Unlock first."
	case errors.Is(err, ErrSecretNotSet):
		return "That credential is not set in the encrypted secrets."
	case errors.Is(err, ErrTokenExpired):
		return "The authorization has expired. Connect again."
	case errors.Is(err, ErrTokenAbsent):
		return "Not connected. Connect first."
	case errors.Is(err, ErrSessionClosed):
		return "This session has ended. Start a new one."
	case errors.Is(err, ErrUnlockTimeout):
		return "Unlock took too long and was abandoned. Try again."
	case errors.Is(err, context.Canceled):
		return "Unlock was cancelled."
	default:
		return "Unlock failed due to a configuration or environment problem. Try again; if it persists, check the configuration."
	}
}
