// Package errors provides standardized error messaging for segalloc's CLI
// layer (flag/config validation, port-setup failures). The allocator core
// itself has its own sentinel error type (internal/allocator.AllocError)
// matched with errors.Is; this package is for everything above that core
// that still wants the same category+code+context shape.
package errors

import (
	"fmt"
	"runtime"
)

// ErrorCategory represents different categories of CLI-level errors.
type ErrorCategory string

const (
	CategoryValidation ErrorCategory = "VALIDATION"
	CategorySystem     ErrorCategory = "SYSTEM"
)

// StandardError provides a consistent error format: category, stable code,
// message, optional context, and the calling function for diagnostics.
type StandardError struct {
	Category ErrorCategory
	Code     string
	Message  string
	Context  map[string]interface{}
	Caller   string
}

// Error implements the error interface.
func (e *StandardError) Error() string {
	return fmt.Sprintf("[%s:%s] %s (caller: %s)", e.Category, e.Code, e.Message, e.Caller)
}

// NewStandardError creates a new standardized error.
func NewStandardError(category ErrorCategory, code, message string, context map[string]interface{}) *StandardError {
	pc, _, _, ok := runtime.Caller(1)
	caller := "unknown"

	if ok {
		if fn := runtime.FuncForPC(pc); fn != nil {
			caller = fn.Name()
		}
	}

	return &StandardError{
		Category: category,
		Code:     code,
		Message:  message,
		Context:  context,
		Caller:   caller,
	}
}

// InvalidSize flags a CLI flag or config value (e.g. --workers, --iters,
// initial_pages) that fell outside the range the command accepts.
func InvalidSize(size int64, context string) *StandardError {
	return NewStandardError(CategoryValidation, "INVALID_SIZE",
		fmt.Sprintf("invalid size %d in %s", size, context),
		map[string]interface{}{"size": size, "context": context})
}

// PortSetupFailed flags a failure constructing the real OS-backed port
// (e.g. the initial mmap reservation in internal/allocator.newUnixPort).
func PortSetupFailed(reason string) *StandardError {
	return NewStandardError(CategorySystem, "PORT_SETUP_FAILED",
		fmt.Sprintf("failed to set up heap port: %s", reason),
		map[string]interface{}{"reason": reason})
}
