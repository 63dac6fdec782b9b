package manager

import (
	"errors"
	"fmt"
	"strings"

	"ragd/pkg/types"
)

// ErrNotReady is returned by Generate when no model is resident.
var ErrNotReady = errors.New("model runtime not ready")

// Sentinels matched with errors.Is against the typed errors below.
var (
	ErrModelFileMissing      = errors.New("model file missing")
	ErrRuntimeUnavailable    = errors.New("model runtime unavailable")
	ErrInsufficientResources = errors.New("insufficient resources")
)

// Load attempt reasons.
const (
	ReasonNotFound      = "not_found"
	ReasonFileMissing   = "file_missing"
	ReasonInsufficient  = "insufficient_resources"
	ReasonStartFailed   = "start_failed"
	ReasonContextClosed = "canceled"
)

// tooBusyError signals queue timeout/overflow for 429 mapping.
type tooBusyError struct{ modelID string }

func (e tooBusyError) Error() string { return "too busy: " + e.modelID }

// IsTooBusy reports whether err indicates backpressure (return 429).
func IsTooBusy(err error) bool {
	var tb tooBusyError
	return errors.As(err, &tb)
}

type modelNotFoundError struct{ id string }

func (e modelNotFoundError) Error() string { return "model not found: " + e.id }

// ErrModelNotFound returns an error for a model id absent from the catalog.
func ErrModelNotFound(id string) error { return modelNotFoundError{id: id} }

// IsModelNotFound reports whether the error indicates a missing model id.
func IsModelNotFound(err error) bool {
	var nf modelNotFoundError
	return errors.As(err, &nf)
}

// ModelFileMissingError is returned when the catalog entry points at a file
// that does not exist. No fallback is attempted.
type ModelFileMissingError struct {
	ModelID string
	Path    string
}

func (e *ModelFileMissingError) Error() string {
	return fmt.Sprintf("model file missing for %s: %s", e.ModelID, e.Path)
}

func (e *ModelFileMissingError) Is(target error) bool { return target == ErrModelFileMissing }

// InsufficientResourcesError is returned when a model would not fit into the
// configured memory budget.
type InsufficientResourcesError struct {
	ModelID    string
	RequiredMB int
	BudgetMB   int
	MarginMB   int
}

func (e *InsufficientResourcesError) Error() string {
	return fmt.Sprintf("insufficient resources for %s: needs %d MB, budget %d MB (margin %d MB)",
		e.ModelID, e.RequiredMB, e.BudgetMB, e.MarginMB)
}

func (e *InsufficientResourcesError) Is(target error) bool { return target == ErrInsufficientResources }

// RuntimeUnavailableError is returned when neither the requested model nor any
// fallback could be started. Attempts lists what was tried, in order.
type RuntimeUnavailableError struct {
	Attempts []types.LoadAttempt
}

func (e *RuntimeUnavailableError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		s := a.ModelID + ": " + a.Reason
		if a.Error != "" {
			s += " (" + a.Error + ")"
		}
		parts = append(parts, s)
	}
	return "model runtime unavailable: " + strings.Join(parts, "; ")
}

func (e *RuntimeUnavailableError) Is(target error) bool { return target == ErrRuntimeUnavailable }

// dependencyUnavailableError signals a missing external dependency (e.g., llama.cpp).
type dependencyUnavailableError struct{ msg string }

func (e dependencyUnavailableError) Error() string { return e.msg }

// ErrDependencyUnavailable constructs a dependencyUnavailableError.
func ErrDependencyUnavailable(msg string) error { return dependencyUnavailableError{msg: msg} }

// IsDependencyUnavailable reports whether err indicates a missing runtime dependency.
func IsDependencyUnavailable(err error) bool {
	var du dependencyUnavailableError
	return errors.As(err, &du)
}
