package httpapi

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"ragd/internal/ingest"
	"ragd/internal/manager"
	"ragd/internal/rag"
	"ragd/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	ListModels() []types.Model
	DefaultModel() string
	Status() types.StatusResponse
	Ready() bool
	Switch(ctx context.Context, modelID string) (types.SwitchResponse, error)
	Ingest(ctx context.Context, path, documentID string) (int, error)
	DeleteDocument(ctx context.Context, documentID string) error
	DocumentChunks(ctx context.Context, documentID string) (int, error)
	Answer(ctx context.Context, question string, documentIDs []string) (rag.Result, error)
}

// Engine binds the runtime manager, ingestion pipeline and answer controller
// into a Service.
type Engine struct {
	Manager    *manager.Manager
	Pipeline   *ingest.Pipeline
	Controller *rag.Controller
	// Events, when set, adds the recent runtime events to Status.
	Events *manager.EventLog
	Logger zerolog.Logger
}

var _ Service = (*Engine)(nil)

func (e *Engine) ListModels() []types.Model { return e.Manager.ListModels() }
func (e *Engine) DefaultModel() string      { return e.Manager.DefaultModel() }

func (e *Engine) Status() types.StatusResponse {
	st := e.Manager.Status()
	if e.Events != nil {
		for _, ev := range e.Events.Events() {
			st.RecentEvents = append(st.RecentEvents, types.RuntimeEvent{
				Name: ev.Name, ModelID: ev.ModelID, Fields: ev.Fields, AtUnix: ev.At.Unix(),
			})
		}
	}
	return st
}

// Ready reports whether the process can serve. A model is loaded lazily on the
// first answer, so an unloaded runtime without an error still counts as ready.
func (e *Engine) Ready() bool {
	snap := e.Manager.Snapshot()
	return snap.State == manager.StateReady || (snap.State == manager.StateUnloaded && snap.Err == "")
}

func (e *Engine) Switch(ctx context.Context, modelID string) (types.SwitchResponse, error) {
	op := uuid.NewString()
	e.Logger.Info().Str("op", op).Str("model", modelID).Msg("switch requested")
	if err := e.Manager.Switch(ctx, modelID); err != nil {
		return types.SwitchResponse{}, err
	}
	return types.SwitchResponse{Model: modelID, State: string(e.Manager.Snapshot().State), OpID: op}, nil
}

func (e *Engine) Ingest(ctx context.Context, path, documentID string) (int, error) {
	return e.Pipeline.Ingest(ctx, path, documentID)
}

func (e *Engine) DeleteDocument(ctx context.Context, documentID string) error {
	return e.Pipeline.Delete(ctx, documentID)
}

func (e *Engine) DocumentChunks(ctx context.Context, documentID string) (int, error) {
	return e.Pipeline.Chunks(ctx, documentID)
}

func (e *Engine) Answer(ctx context.Context, question string, documentIDs []string) (rag.Result, error) {
	return e.Controller.Answer(ctx, question, documentIDs)
}
