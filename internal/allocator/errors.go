package allocator

import (
	"fmt"
	"log/slog"
	"runtime"
)

// errorCategory groups the allocator's faults into a single namespace,
// separate from internal/errors' CLI-level categories.
type errorCategory string

const categoryMemory errorCategory = "MEMORY"

// AllocError is this package's error type: a category, a stable code, a
// message, and an optional context map, with the calling function captured
// for diagnostics. Every fault the core recognizes is one of these,
// distinguished by Code so callers can match with errors.Is against the
// Err* sentinels below regardless of attached context.
type AllocError struct {
	category errorCategory
	Code     string
	Message  string
	Context  map[string]any
	Caller   string
}

func (e *AllocError) Error() string {
	if len(e.Context) == 0 {
		return fmt.Sprintf("[%s:%s] %s", e.category, e.Code, e.Message)
	}

	return fmt.Sprintf("[%s:%s] %s (caller: %s) %v", e.category, e.Code, e.Message, e.Caller, e.Context)
}

// Is makes errors.Is(err, ErrDoubleFree) (etc.) match any AllocError with
// the same Code, independent of attached context.
func (e *AllocError) Is(target error) bool {
	t, ok := target.(*AllocError)
	if !ok {
		return false
	}

	return e.Code == t.Code
}

func newAllocError(code, message string) *AllocError {
	pc, _, _, ok := runtime.Caller(2)
	caller := "unknown"

	if ok {
		if fn := runtime.FuncForPC(pc); fn != nil {
			caller = fn.Name()
		}
	}

	return &AllocError{
		category: categoryMemory,
		Code:     code,
		Message:  message,
		Caller:   caller,
	}
}

// withContext returns a copy of e carrying one extra context key/value,
// used at the call site that detects the fault so the returned error names
// which side/operation tripped it.
func (e *AllocError) withContext(key string, value any) *AllocError {
	cp := *e
	cp.Context = make(map[string]any, len(e.Context)+1)

	for k, v := range e.Context {
		cp.Context[k] = v
	}

	cp.Context[key] = value

	return &cp
}

// Sentinel error values, one per recognized fault kind.
var (
	// ErrOutOfMemory is returned when Extend fails to grow the heap far
	// enough to service a request.
	ErrOutOfMemory = newAllocError("OUT_OF_MEMORY", "heap extension failed")
	// ErrInvalidPointer is returned by Free/Realloc for an address outside
	// the current heap range.
	ErrInvalidPointer = newAllocError("INVALID_POINTER", "pointer is outside the heap")
	// ErrDoubleFree is returned by Free when the block's allocated bit is
	// already clear.
	ErrDoubleFree = newAllocError("DOUBLE_FREE", "block is already free")
	// ErrHeapCorruption is returned whenever a boundary-tag XOR check
	// fails during allocation, free, coalesce, or list traversal. This
	// condition is terminal: the caller must not continue using the
	// allocator instance afterward.
	ErrHeapCorruption = newAllocError("HEAP_CORRUPTION", "boundary tag check failed")
	// ErrOverflowInCalloc is returned when n*elemSize overflows.
	ErrOverflowInCalloc = newAllocError("CALLOC_OVERFLOW", "n*elemSize overflows")
)

// CorruptionFn is invoked, out of band, whenever HeapCorruption is
// detected, so an embedder can signal the condition beyond the returned
// error (paging an operator, incrementing a metric). The default logs via
// log/slog; set Config.CorruptionFn to override it.
type CorruptionFn func(err error)

func defaultCorruptionFn(err error) {
	slog.Error("heap corruption detected", "error", err)
}
