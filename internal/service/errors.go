// Package service provides the manager layer of the mining ledger: task
// lifecycle, earnings recording, and dashboard statistics.
package service

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Error codes carried by MinerError. The API layer maps these to
// user-facing responses.
const (
	CodeTaskCreation      = "TASK_CREATION_ERROR"
	CodeTaskNotFound      = "TASK_NOT_FOUND"
	CodeEarningsCreation  = "EARNINGS_CREATION_ERROR"
	CodeGatewayConnection = "GATEWAY_CONNECTION_ERROR"
)

// MinerError is the common error type for manager-layer failures.
// Context carries the call arguments that produced the failure.
//
// Error handling principles:
//  1. Validation errors are raised synchronously, before any retry or
//     transaction is opened.
//  2. Transient persistence failures are retried; after exhaustion the
//     error is wrapped here and re-thrown, never silently swallowed.
//  3. Callers use errors.Is/errors.As (or the code helpers below) to check
//     for specific conditions.
type MinerError struct {
	Code    string
	Message string
	Context map[string]any
	Err     error
}

// Error implements the error interface for MinerError.
func (e *MinerError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *MinerError) Unwrap() error {
	return e.Err
}

// NewMinerError creates a new MinerError with the given code, message,
// call context, and wrapped error.
func NewMinerError(code, message string, context map[string]any, err error) *MinerError {
	return &MinerError{
		Code:    code,
		Message: message,
		Context: context,
		Err:     err,
	}
}

// NewTaskNotFoundError creates the MinerError raised when an update
// targets a missing task id.
func NewTaskNotFoundError(id uuid.UUID, err error) *MinerError {
	return NewMinerError(CodeTaskNotFound, "task not found",
		map[string]any{"task_id": id}, err)
}

// NewEarningsCreationError creates the MinerError raised on earnings
// validation or ledger-write failures.
func NewEarningsCreationError(message string, context map[string]any, err error) *MinerError {
	return NewMinerError(CodeEarningsCreation, message, context, err)
}

// HasCode reports whether err is (or wraps) a MinerError with the given code.
func HasCode(err error, code string) bool {
	var minerErr *MinerError
	return errors.As(err, &minerErr) && minerErr.Code == code
}

// IsTaskNotFound reports whether err represents a missing task.
func IsTaskNotFound(err error) bool {
	return HasCode(err, CodeTaskNotFound)
}
