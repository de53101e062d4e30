// © Copyright 2025-2026, Warting - https://warting.se
// SPDX-License-Identifier: Apache-2.0

package appfn

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorCode_Category(t *testing.T) {
	assert.Equal(t, CategoryRequest, ErrorInvalidArgument.Category())
	assert.Equal(t, CategoryRequest, ErrorElementNotFound.Category())
	assert.Equal(t, CategorySystem, ErrorCancelled.Category())
	assert.Equal(t, CategoryApp, ErrorNotSupported.Category())

	// Unallocated codes still land in their thousands bucket.
	assert.Equal(t, CategoryRequest, ErrorCode(1999).Category())
	assert.Equal(t, CategoryApp, ErrorCode(3999).Category())
	assert.Equal(t, CategoryUnknown, ErrorCode(42).Category())
	assert.Equal(t, CategoryUnknown, ErrorCode(5000).Category())
}

func TestFunctionError_Is(t *testing.T) {
	err := NewFunctionError(ErrorElementNotFound, "note %q not found", "n1")

	// The sentinel matches any typed error.
	assert.ErrorIs(t, err, ErrFunction)
	// A target carrying a code matches only that code.
	assert.ErrorIs(t, err, &FunctionError{Code: ErrorElementNotFound})
	assert.NotErrorIs(t, err, &FunctionError{Code: ErrorDisabled})

	// Matching survives wrapping.
	wrapped := fmt.Errorf("handler: %w", err)
	assert.ErrorIs(t, wrapped, ErrFunction)

	assert.NotErrorIs(t, errors.New("plain"), ErrFunction)
}

func TestFunctionError_Error(t *testing.T) {
	assert.Equal(t, "ElementNotFound: gone", NewFunctionError(ErrorElementNotFound, "gone").Error())
	assert.Equal(t, "Cancelled", (&FunctionError{Code: ErrorCancelled}).Error())
	assert.Equal(t, "Unknown(4242)", ErrorCode(4242).String())
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, ErrorDisabled, CodeOf(NewFunctionError(ErrorDisabled, "")))
	assert.Equal(t, ErrorAppUnknown, CodeOf(errors.New("plain")))
}
