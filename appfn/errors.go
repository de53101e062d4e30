// © Copyright 2025-2026, Warting - https://warting.se
// SPDX-License-Identifier: Apache-2.0

package appfn

import (
	"fmt"
)

// ErrorCode is the numeric, forward-compatible wire representation of an
// invocation failure. The thousands digit selects the category, so codes
// minted by newer versions still land in a meaningful bucket for older
// callers.
type ErrorCode int

const (
	// Request errors (caller's fault).
	ErrorDenied               ErrorCode = 1000
	ErrorInvalidArgument      ErrorCode = 1001
	ErrorDisabled             ErrorCode = 1002
	ErrorFunctionNotFound     ErrorCode = 1003
	ErrorElementNotFound      ErrorCode = 1500
	ErrorLimitExceeded        ErrorCode = 1501
	ErrorElementAlreadyExists ErrorCode = 1502

	// System errors (platform/runtime fault).
	ErrorSystemUnknown ErrorCode = 2000
	ErrorCancelled     ErrorCode = 2001

	// App errors (handler fault).
	ErrorAppUnknown         ErrorCode = 3000
	ErrorPermissionRequired ErrorCode = 3001
	ErrorNotSupported       ErrorCode = 3002
)

// ErrorCategory groups error codes by fault owner.
type ErrorCategory int

const (
	CategoryUnknown ErrorCategory = iota
	CategoryRequest
	CategorySystem
	CategoryApp
)

func (c ErrorCategory) String() string {
	switch c {
	case CategoryRequest:
		return "request"
	case CategorySystem:
		return "system"
	case CategoryApp:
		return "app"
	default:
		return "unknown"
	}
}

// Category returns the fault bucket a code belongs to. Codes outside every
// known range report CategoryUnknown.
func (c ErrorCode) Category() ErrorCategory {
	switch {
	case c >= 1000 && c < 2000:
		return CategoryRequest
	case c >= 2000 && c < 3000:
		return CategorySystem
	case c >= 3000 && c < 4000:
		return CategoryApp
	default:
		return CategoryUnknown
	}
}

func (c ErrorCode) String() string {
	switch c {
	case ErrorDenied:
		return "Denied"
	case ErrorInvalidArgument:
		return "InvalidArgument"
	case ErrorDisabled:
		return "Disabled"
	case ErrorFunctionNotFound:
		return "FunctionNotFound"
	case ErrorElementNotFound:
		return "ElementNotFound"
	case ErrorLimitExceeded:
		return "LimitExceeded"
	case ErrorElementAlreadyExists:
		return "ElementAlreadyExists"
	case ErrorSystemUnknown:
		return "SystemUnknown"
	case ErrorCancelled:
		return "Cancelled"
	case ErrorAppUnknown:
		return "AppUnknown"
	case ErrorPermissionRequired:
		return "PermissionRequired"
	case ErrorNotSupported:
		return "NotSupported"
	default:
		return fmt.Sprintf("Unknown(%d)", int(c))
	}
}

// ErrFunction is a sentinel for use with errors.Is to check whether any
// error in a chain is a *FunctionError.
var ErrFunction = &FunctionError{}

// FunctionError is the typed error delivered across the invocation boundary.
// Handlers raise it directly for domain failures; the dispatcher mints it for
// pipeline failures. Anything else is wrapped as AppUnknown at the outermost
// boundary so implementation internals never cross the process boundary.
type FunctionError struct {
	Code    ErrorCode
	Message string
}

// NewFunctionError creates a typed error with a formatted message.
func NewFunctionError(code ErrorCode, format string, args ...any) *FunctionError {
	return &FunctionError{Code: code, Message: fmt.Sprintf(format, args...)}
}

func (e *FunctionError) Error() string {
	if e.Message == "" {
		return e.Code.String()
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is supports errors.Is by matching any *FunctionError target, or a target
// with the same code.
func (e *FunctionError) Is(target error) bool {
	t, ok := target.(*FunctionError)
	if !ok {
		return false
	}
	return t.Code == 0 || t.Code == e.Code
}

// CodeOf extracts the wire code from any error: typed errors report their
// own code, everything else maps to AppUnknown.
func CodeOf(err error) ErrorCode {
	if fe, ok := err.(*FunctionError); ok {
		return fe.Code
	}
	return ErrorAppUnknown
}
