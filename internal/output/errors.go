package output

import "fmt"

// Exit codes following sysexits.h convention
const (
	ExitOK          = 0  // Success
	ExitGeneral     = 1  // General error
	ExitUsage       = 2  // Invalid usage / bad arguments
	ExitAuth        = 3  // Wrong password or third-party authorization failure
	ExitNotFound    = 4  // Blob, credential, or token not found
	ExitConflict    = 5  // Conflict (unlock already in progress, already unlocked)
	ExitRateLimit   = 75 // Rate limited (EX_TEMPFAIL from sysexits.h)
	ExitTimeout     = 8  // Unlock or request timeout
	ExitAPIError    = 9  // Third-party API error (non-specific)
	ExitConfigError = 10 // Configuration error
	ExitNetwork     = 11 // Network connectivity error
	ExitLocked      = 12 // Operation needs an unlocked session
	ExitCorrupt     = 13 // Encrypted blob is corrupt or unreadable
)

// CLIError represents a structured error with exit code and optional hint
type CLIError struct {
	ExitCode int
	Message  string
	Hint     string
}

// Error implements the error interface
func (e *CLIError) Error() string {
	return e.Message
}

// NewCLIError creates a new CLIError
func NewCLIError(code int, msg string) *CLIError {
	return &CLIError{
		ExitCode: code,
		Message:  msg,
	}
}

// Errorf creates a CLIError with a formatted message
func Errorf(code int, format string, args ...any) *CLIError {
	return NewCLIError(code, fmt.Sprintf(format, args...))
}

// WithHint adds a user-facing hint to the error
func (e *CLIError) WithHint(hint string) *CLIError {
	e.Hint = hint
	return e
}

// Report prints err (and its hint) through the formatter and returns the exit
// code the process should use.
func Report(formatter Formatter, err error) int {
	if cliErr, ok := err.(*CLIError); ok {
		formatter.PrintError(err)
		if cliErr.Hint != "" {
			formatter.PrintHint(cliErr.Hint)
		}
		return cliErr.ExitCode
	}

	// Unknown error - print as general error
	formatter.PrintError(err)
	return ExitGeneral
}
