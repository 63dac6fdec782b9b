package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/ory/herodot"

	"ragd/internal/chunker"
	"ragd/internal/extract"
	"ragd/internal/ingest"
	"ragd/internal/manager"
	"ragd/internal/vectorstore"
)

// HTTPError allows services to provide an HTTP status code for an error.
type HTTPError interface {
	error
	StatusCode() int
}

var jsonWriter = herodot.NewJSONWriter(nil)

// classify maps domain errors to an HTTP status and a short kind used as a
// metric label.
func classify(err error) (int, string) {
	var he HTTPError
	switch {
	case manager.IsModelNotFound(err):
		return http.StatusNotFound, "model_not_found"
	case errors.Is(err, manager.ErrModelFileMissing):
		return http.StatusConflict, "model_file_missing"
	case errors.Is(err, manager.ErrInsufficientResources):
		return http.StatusInsufficientStorage, "insufficient_resources"
	case manager.IsTooBusy(err):
		return http.StatusTooManyRequests, "too_busy"
	case errors.Is(err, manager.ErrRuntimeUnavailable),
		errors.Is(err, manager.ErrNotReady),
		manager.IsDependencyUnavailable(err):
		return http.StatusServiceUnavailable, "runtime_unavailable"
	case errors.Is(err, extract.ErrPDFToolNotFound):
		return http.StatusServiceUnavailable, "pdf_tool_missing"
	case errors.Is(err, chunker.ErrEmptyInput):
		return http.StatusUnprocessableEntity, "empty_input"
	case errors.Is(err, ingest.ErrExtractionFailure):
		return http.StatusUnprocessableEntity, "extraction_failure"
	case errors.Is(err, vectorstore.ErrInvalidID):
		return http.StatusBadRequest, "invalid_id"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	case errors.Is(err, context.Canceled):
		// only reachable when the server is shutting down
		return http.StatusServiceUnavailable, "shutdown"
	case errors.As(err, &he):
		return he.StatusCode(), "service"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

// writeError renders err as a herodot JSON error with the mapped status.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, kind := classify(err)
	countError(kind)
	if status >= http.StatusInternalServerError {
		logFailure(r, kind, status, err)
	}
	writeJSONError(w, r, status, err.Error())
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	jsonWriter.WriteError(w, r, &herodot.DefaultError{
		CodeField:   status,
		StatusField: http.StatusText(status),
		ErrorField:  msg,
	})
}
