// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/jeranaias/rigrun-stream/internal/config"
	"github.com/jeranaias/rigrun-stream/internal/render"
	"github.com/jeranaias/rigrun-stream/internal/source"
	"github.com/jeranaias/rigrun-stream/internal/storage"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	// ExitSuccess indicates successful execution
	ExitSuccess = 0
	// ExitGeneralError indicates a general error
	ExitGeneralError = 1
	// ExitUsageError indicates invalid arguments or flags
	ExitUsageError = 2
	// ExitConfigError indicates a configuration problem
	ExitConfigError = 3
	// ExitInputError indicates unreadable or oversized input
	ExitInputError = 4
	// ExitNotFoundError indicates a resource was not found
	ExitNotFoundError = 7
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// ValidationError represents a validation failure for user input.
type ValidationError struct {
	Field   string
	Value   string
	Reason  string
	Example string
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	if e.Value != "" {
		msg += fmt.Sprintf(" (got: %s)", e.Value)
	}
	if e.Example != "" {
		msg += fmt.Sprintf("\nExample: %s", e.Example)
	}
	return msg
}

// NewValidationError creates a new validation error.
func NewValidationError(field, value, reason string) error {
	return &ValidationError{Field: field, Value: value, Reason: reason}
}

// NewValidationErrorWithExample creates a validation error with an example
// of a valid value.
func NewValidationErrorWithExample(field, value, reason, example string) error {
	return &ValidationError{Field: field, Value: value, Reason: reason, Example: example}
}

// =============================================================================
// ERROR DISPLAY
// =============================================================================

// DisplayError writes err to w, as JSON in JSON mode.
func DisplayError(w io.Writer, err error, jsonMode bool) {
	if err == nil {
		return
	}
	if jsonMode {
		output := map[string]any{
			"success":    false,
			"error":      err.Error(),
			"error_type": errorType(err),
			"exit_code":  GetExitCode(err),
		}
		var validationErr *ValidationError
		if errors.As(err, &validationErr) {
			output["field"] = validationErr.Field
			output["reason"] = validationErr.Reason
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		_ = enc.Encode(output)
		return
	}
	fmt.Fprintf(w, "%s %s\n", errorStyle.Render("[ERROR]"), err.Error())
}

func errorType(err error) string {
	var validationErr *ValidationError
	var configErrs config.ValidateErrors
	switch {
	case errors.As(err, &validationErr), errors.Is(err, render.ErrUnknownSpeed), errors.Is(err, render.ErrNegativeDelay):
		return "validation_error"
	case errors.As(err, &configErrs):
		return "config_error"
	case errors.Is(err, storage.ErrNotFound):
		return "not_found_error"
	case errors.Is(err, source.ErrTooLarge):
		return "input_error"
	default:
		return "generic_error"
	}
}

// GetExitCode maps an error to a process exit code.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	switch errorType(err) {
	case "validation_error":
		return ExitUsageError
	case "config_error":
		return ExitConfigError
	case "not_found_error":
		return ExitNotFoundError
	case "input_error":
		return ExitInputError
	default:
		return ExitGeneralError
	}
}
