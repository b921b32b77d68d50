// Package mcp implements the Model Context Protocol (MCP) server for
// flowcheck.
package mcp

import (
	"errors"
	"fmt"

	ferrors "github.com/flowcheck/flowcheck/internal/errors"
)

// Custom MCP error codes for flowcheck.
const (
	// ErrCodeConsistency indicates the index frontier is no longer
	// reachable; a full reindex is required.
	ErrCodeConsistency = -32001

	// ErrCodeCorruptIndex indicates unreadable index state.
	ErrCodeCorruptIndex = -32002

	// ErrCodeAlreadyIndexing indicates another indexing pass is running.
	ErrCodeAlreadyIndexing = -32003

	// ErrCodeEmptyIndex indicates no index exists yet.
	ErrCodeEmptyIndex = -32004

	// Standard JSON-RPC error codes.
	ErrCodeInvalidParams = -32602
	ErrCodeInternalError = -32603
)

// MCPError represents an MCP protocol error with code and message.
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// NewInvalidParamsError creates an invalid-params error.
func NewInvalidParamsError(message string) *MCPError {
	return &MCPError{Code: ErrCodeInvalidParams, Message: message}
}

// MapError converts internal errors to MCP errors.
func MapError(err error) *MCPError {
	if err == nil {
		return nil
	}

	var flowErr *ferrors.FlowError
	if errors.As(err, &flowErr) {
		message := flowErr.Message
		if flowErr.Suggestion != "" {
			message = message + " (" + flowErr.Suggestion + ")"
		}

		switch flowErr.Code {
		case ferrors.ErrCodeConsistency:
			return &MCPError{Code: ErrCodeConsistency, Message: message}
		case ferrors.ErrCodeCorruptIndex:
			return &MCPError{Code: ErrCodeCorruptIndex, Message: message}
		case ferrors.ErrCodeAlreadyIndexing:
			return &MCPError{Code: ErrCodeAlreadyIndexing, Message: message}
		case ferrors.ErrCodeEmptyIndex:
			return &MCPError{Code: ErrCodeEmptyIndex, Message: message}
		case ferrors.ErrCodeInvalidInput, ferrors.ErrCodeNotARepository, ferrors.ErrCodeConfigInvalid:
			return &MCPError{Code: ErrCodeInvalidParams, Message: message}
		default:
			return &MCPError{Code: ErrCodeInternalError, Message: message}
		}
	}

	return &MCPError{Code: ErrCodeInternalError, Message: err.Error()}
}
