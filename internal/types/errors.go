package types

import (
	"errors"
	"fmt"
)

// Sentinel errors for the error kinds named in spec.md §7. Callers use
// errors.Is against these; MemoryError carries the contextual fields.
var (
	// ErrNotFound indicates an episode/pattern/heuristic id is not present.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput indicates a validation failure: self-relationship, bad
	// priority, duplicate relationship, bad lambda, malformed config.
	ErrInvalidInput = errors.New("invalid input")
	// ErrCycle indicates an insertion would create a cycle in an
	// acyclic-typed relationship subgraph.
	ErrCycle = errors.New("cycle")
	// ErrCircuitOpen indicates a storage call was rejected because the
	// circuit breaker is open.
	ErrCircuitOpen = errors.New("circuit breaker open")
	// ErrStorage indicates an opaque storage failure.
	ErrStorage = errors.New("storage error")
)

// MemoryError wraps a sentinel kind with contextual detail. It is never used
// for CompressionFailed/DecompressionFailed, which are handled locally at
// the boundary that owns the policy and do not surface to callers unless a
// response decompression fails, in which case they become ErrStorage.
type MemoryError struct {
	Kind    error
	Message string
	Path    []string // populated for ErrCycle: the offending path
}

func (e *MemoryError) Error() string {
	if len(e.Path) > 0 {
		return fmt.Sprintf("%s: %s (path=%v)", e.Kind, e.Message, e.Path)
	}
	if e.Message == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *MemoryError) Unwrap() error {
	return e.Kind
}

// NewNotFound builds a MemoryError of kind ErrNotFound.
func NewNotFound(message string) error {
	return &MemoryError{Kind: ErrNotFound, Message: message}
}

// NewInvalidInput builds a MemoryError of kind ErrInvalidInput.
func NewInvalidInput(message string) error {
	return &MemoryError{Kind: ErrInvalidInput, Message: message}
}

// NewCycle builds a MemoryError of kind ErrCycle, recording the offending path.
func NewCycle(message string, path []string) error {
	return &MemoryError{Kind: ErrCycle, Message: message, Path: path}
}

// NewStorageError builds a MemoryError of kind ErrStorage.
func NewStorageError(message string) error {
	return &MemoryError{Kind: ErrStorage, Message: message}
}

// NewCircuitOpen builds a MemoryError of kind ErrCircuitOpen.
func NewCircuitOpen(message string) error {
	return &MemoryError{Kind: ErrCircuitOpen, Message: message}
}

// IsRecoverable reports whether err represents a transient condition worth
// retrying and counting toward circuit breaker failure thresholds. Only
// ErrStorage qualifies: ErrNotFound/ErrInvalidInput/ErrCycle are deterministic
// outcomes of the input, not service degradation, and ErrCircuitOpen is
// itself produced by the breaker and must not recursively feed it.
func IsRecoverable(err error) bool {
	return errors.Is(err, ErrStorage)
}
