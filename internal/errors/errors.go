package errors

import (
	"fmt"
)

// FlowError is the structured error type for flowcheck.
// It provides rich context for error handling, logging, and user presentation.
type FlowError struct {
	// Code is the unique error code (e.g., "ERR_301_CONSISTENCY").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, IO, Index, etc.).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *FlowError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *FlowError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with FlowError.
func (e *FlowError) Is(target error) bool {
	if t, ok := target.(*FlowError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *FlowError) WithDetail(key, value string) *FlowError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
// Returns the error for method chaining.
func (e *FlowError) WithSuggestion(suggestion string) *FlowError {
	e.Suggestion = suggestion
	return e
}

// New creates a new FlowError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *FlowError {
	return &FlowError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a FlowError from an existing error.
// The error's message becomes the FlowError message.
func Wrap(code string, err error) *FlowError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ConsistencyError creates an index consistency error.
// The frontier hash is no longer reachable in history; callers must
// run a full index to recover.
func ConsistencyError(message string, cause error) *FlowError {
	return New(ErrCodeConsistency, message, cause).
		WithSuggestion("run 'flowcheck index --full' to rebuild the index")
}

// CorruptIndexError creates an error for unreadable index state.
// The index must be treated as empty until rebuilt.
func CorruptIndexError(message string, cause error) *FlowError {
	return New(ErrCodeCorruptIndex, message, cause).
		WithSuggestion("run 'flowcheck index --full' to rebuild the index")
}

// AlreadyIndexingError signals that another indexing pass owns the writer.
func AlreadyIndexingError(repoPath string) *FlowError {
	return New(ErrCodeAlreadyIndexing, "an indexing pass is already running", nil).
		WithDetail("repo_path", repoPath).
		WithSuggestion("wait for the running pass to finish and retry")
}

// NotARepositoryError signals that a path is not inside a git work tree.
func NotARepositoryError(repoPath string, cause error) *FlowError {
	return New(ErrCodeNotARepository, "not a git repository: "+repoPath, cause).
		WithDetail("repo_path", repoPath).
		WithSuggestion("pass the path of an initialized git repository")
}

// ConfigInvalidError creates an error for unparseable or out-of-bounds
// configuration.
func ConfigInvalidError(message string, cause error) *FlowError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// ValidationError creates a validation-related error.
func ValidationError(message string, cause error) *FlowError {
	return New(ErrCodeInvalidInput, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *FlowError {
	return New(ErrCodeInternal, message, cause)
}

// IsRetryable checks if an error is retryable.
// Returns true if the error is a FlowError with Retryable flag set.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if fe, ok := err.(*FlowError); ok {
		return fe.Retryable
	}
	return false
}

// IsFatal checks if an error has fatal severity.
// Fatal errors should abort the current operation.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if fe, ok := err.(*FlowError); ok {
		return fe.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from a FlowError.
// Returns empty string if not a FlowError.
func GetCode(err error) string {
	if fe, ok := err.(*FlowError); ok {
		return fe.Code
	}
	return ""
}
