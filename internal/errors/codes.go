// Package errors provides structured error handling for flowcheck.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Repository/IO errors
//   - 3XX: Index state errors
//   - 4XX: Validation errors
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryIO indicates repository and disk I/O errors.
	CategoryIO Category = "IO"
	// CategoryIndex indicates index state errors (consistency, corruption).
	CategoryIndex Category = "INDEX"
	// CategoryValidation indicates input validation errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigInvalid = "ERR_101_CONFIG_INVALID"

	// Repository/IO errors (200-299)
	ErrCodeNotARepository = "ERR_201_NOT_A_REPOSITORY"
	ErrCodeGitLogFailed   = "ERR_202_GIT_LOG_FAILED"

	// Index state errors (300-399)
	ErrCodeConsistency     = "ERR_301_CONSISTENCY"
	ErrCodeCorruptIndex    = "ERR_302_CORRUPT_INDEX"
	ErrCodeAlreadyIndexing = "ERR_303_ALREADY_INDEXING"
	ErrCodeStoreWrite      = "ERR_304_STORE_WRITE"
	ErrCodeEmptyIndex      = "ERR_305_EMPTY_INDEX"

	// Validation errors (400-499)
	ErrCodeInvalidInput = "ERR_401_INVALID_INPUT"
	ErrCodeEmptyVector  = "ERR_402_EMPTY_VECTOR"

	// Internal errors (500-599)
	ErrCodeInternal     = "ERR_501_INTERNAL"
	ErrCodeSearchFailed = "ERR_502_SEARCH_FAILED"
	ErrCodeIndexFailed  = "ERR_503_INDEX_FAILED"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	// Extract numeric portion (e.g., "301" from "ERR_301_CONSISTENCY")
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryIO
	case '3':
		return CategoryIndex
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeCorruptIndex:
		return SeverityFatal
	case ErrCodeAlreadyIndexing:
		return SeverityWarning
	}
	return SeverityError
}

// isRetryableCode checks if an error code represents a retryable error.
// An in-flight indexing pass finishing makes a retry meaningful.
func isRetryableCode(code string) bool {
	return code == ErrCodeAlreadyIndexing
}
