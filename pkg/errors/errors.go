// SPDX-License-Identifier: Apache-2.0
// Package errors provides typed error handling with rich context for Crewforge.
package errors

import (
	"encoding/json"
	"fmt"
)

// ErrorCode classifies Crewforge errors for monitoring and recovery.
type ErrorCode string

const (
	// CodeInternal indicates an internal system error.
	CodeInternal ErrorCode = "INTERNAL_ERROR"

	// CodeInvalidInput indicates the input was invalid.
	CodeInvalidInput ErrorCode = "INVALID_INPUT"

	// CodeToolFailure indicates an agent tool execution failed.
	CodeToolFailure ErrorCode = "TOOL_FAILURE"

	// CodeLedgerCorrupt indicates the ledger file could not be decoded.
	CodeLedgerCorrupt ErrorCode = "LEDGER_CORRUPT"

	// CodeLockHeld indicates a file lock is held by another agent.
	CodeLockHeld ErrorCode = "LOCK_HELD"

	// CodeNotOwner indicates a lock operation by an agent that does not hold it.
	CodeNotOwner ErrorCode = "NOT_OWNER"

	// CodeTimeout indicates an operation exceeded its time limit.
	CodeTimeout ErrorCode = "TIMEOUT"

	// CodeNotFound indicates a resource was not found.
	CodeNotFound ErrorCode = "NOT_FOUND"

	// CodeLLMError indicates an LLM provider error.
	CodeLLMError ErrorCode = "LLM_ERROR"

	// CodeLaunchError indicates a child process could not be started or supervised.
	CodeLaunchError ErrorCode = "LAUNCH_ERROR"
)

// CrewError is a typed error with rich context for observability.
// It implements the error interface and can be unwrapped with errors.As().
type CrewError struct {
	Code        ErrorCode
	Message     string
	Err         error
	Context     map[string]interface{}
	Attributes  map[string]string
	Recoverable bool
}

// Error implements the error interface.
func (e *CrewError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implements errors.Unwrap for error chain traversal.
func (e *CrewError) Unwrap() error {
	return e.Err
}

// MarshalJSON implements json.Marshaler for structured logging.
func (e *CrewError) MarshalJSON() ([]byte, error) {
	type Alias CrewError
	return json.Marshal(&struct {
		Message     string `json:"message"`
		Code        string `json:"code"`
		Err         string `json:"error,omitempty"`
		Recoverable bool   `json:"recoverable"`
		*Alias
	}{
		Message:     e.Error(),
		Code:        string(e.Code),
		Err:         fmt.Sprintf("%v", e.Err),
		Recoverable: e.Recoverable,
		Alias:       (*Alias)(e),
	})
}

// New creates a new CrewError with the given code, message, and cause.
func New(code ErrorCode, msg string, cause error) *CrewError {
	return &CrewError{
		Code:       code,
		Message:    msg,
		Err:        cause,
		Context:    make(map[string]interface{}),
		Attributes: make(map[string]string),
	}
}

// WithContext adds a key-value pair to the error context.
// Returns the error for method chaining.
func (e *CrewError) WithContext(key string, value interface{}) *CrewError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithAttribute adds a string attribute for OTEL traces.
// Returns the error for method chaining.
func (e *CrewError) WithAttribute(key, value string) *CrewError {
	if e.Attributes == nil {
		e.Attributes = make(map[string]string)
	}
	e.Attributes[key] = value
	return e
}

// WithRecoverable sets whether the error can be recovered from.
// Returns the error for method chaining.
func (e *CrewError) WithRecoverable(recoverable bool) *CrewError {
	e.Recoverable = recoverable
	return e
}

// AsCrewError attempts to convert an error to a CrewError.
// Returns the error as CrewError if it is one, or wraps it otherwise.
func AsCrewError(err error) *CrewError {
	if err == nil {
		return nil
	}
	if ce, ok := err.(*CrewError); ok {
		return ce
	}
	// Wrap unknown error as internal
	return New(CodeInternal, "wrapped error", err)
}

// RecoverableString returns "true" or "false" as a string for observability.
func (e *CrewError) RecoverableString() string {
	if e.Recoverable {
		return "true"
	}
	return "false"
}

// IsCode reports whether err is a CrewError with the given code.
func IsCode(err error, code ErrorCode) bool {
	if err == nil {
		return false
	}
	ce, ok := err.(*CrewError)
	return ok && ce.Code == code
}
