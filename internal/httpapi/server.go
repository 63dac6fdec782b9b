package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ragd/internal/rag"
	"ragd/internal/vectorstore"
	"ragd/pkg/types"
)

func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	r.Use(middleware.Compress(5))
	if len(corsOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsOrigins,
			AllowedMethods: corsMethods,
			AllowedHeaders: corsHeaders,
			MaxAge:         300,
		}))
	}
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	h := &handlers{svc: svc}
	r.Get("/healthz", h.healthz)
	r.Get("/readyz", h.readyz)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	r.Get("/models", h.models)
	r.Get("/status", h.status)
	r.Post("/switch", h.switchModel)
	r.Route("/documents/{id}", func(r chi.Router) {
		r.Post("/ingest", h.ingest)
		r.Get("/", h.document)
		r.Delete("/", h.deleteDocument)
	})
	r.Post("/answer", h.answer)
	MountSwagger(r)
	return r
}

type handlers struct {
	svc Service
}

// healthz godoc
// @Summary  Liveness probe
// @Tags     health
// @Produce  plain
// @Success  200 {string} string "ok"
// @Router   /healthz [get]
func (h *handlers) healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// readyz godoc
// @Summary  Readiness probe
// @Tags     health
// @Produce  plain
// @Success  200 {string} string "ready"
// @Failure  503 {string} string "loading"
// @Router   /readyz [get]
func (h *handlers) readyz(w http.ResponseWriter, r *http.Request) {
	if h.svc.Ready() {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte("loading"))
}

// models godoc
// @Summary  List the model catalog
// @Tags     models
// @Produce  json
// @Success  200 {object} types.ModelsResponse
// @Router   /models [get]
func (h *handlers) models(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, types.ModelsResponse{Models: h.svc.ListModels(), Default: h.svc.DefaultModel()})
}

// status godoc
// @Summary  Runtime status
// @Tags     models
// @Produce  json
// @Success  200 {object} types.StatusResponse
// @Router   /status [get]
func (h *handlers) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, h.svc.Status())
}

// switchModel godoc
// @Summary  Switch the active model
// @Tags     models
// @Accept   json
// @Produce  json
// @Param    body body types.SwitchRequest true "target model"
// @Success  200 {object} types.SwitchResponse
// @Failure  404 {object} herodot.ErrorContainer
// @Failure  409 {object} herodot.ErrorContainer
// @Failure  429 {object} herodot.ErrorContainer
// @Failure  503 {object} herodot.ErrorContainer
// @Failure  507 {object} herodot.ErrorContainer
// @Router   /switch [post]
func (h *handlers) switchModel(w http.ResponseWriter, r *http.Request) {
	var req types.SwitchRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Model = strings.TrimSpace(req.Model)
	if req.Model == "" {
		writeJSONError(w, r, http.StatusBadRequest, "model is required")
		return
	}
	ctx, cancel := joinContexts(r.Context(), serverBaseCtx)
	defer cancel()
	resp, err := h.svc.Switch(ctx, req.Model)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, resp)
}

// ingest godoc
// @Summary  Ingest a document into its collection
// @Tags     documents
// @Accept   json
// @Produce  json
// @Param    id   path string              true "document id"
// @Param    body body types.IngestRequest true "source file"
// @Success  200 {object} types.IngestResponse
// @Failure  400 {object} herodot.ErrorContainer
// @Failure  422 {object} herodot.ErrorContainer
// @Router   /documents/{id}/ingest [post]
func (h *handlers) ingest(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req types.IngestRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Path) == "" {
		writeJSONError(w, r, http.StatusBadRequest, "path is required")
		return
	}
	ctx, cancel := joinContexts(r.Context(), serverBaseCtx)
	defer cancel()
	n, err := h.svc.Ingest(ctx, req.Path, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, types.IngestResponse{DocumentID: id, Collection: vectorstore.CollectionName(id), Chunks: n})
}

// deleteDocument godoc
// @Summary  Drop a document's collection
// @Tags     documents
// @Param    id path string true "document id"
// @Success  204
// @Failure  400 {object} herodot.ErrorContainer
// @Router   /documents/{id} [delete]
func (h *handlers) deleteDocument(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteDocument(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// document godoc
// @Summary  Report how many chunks a document has
// @Tags     documents
// @Produce  json
// @Param    id path string true "document id"
// @Success  200 {object} types.IngestResponse
// @Failure  400 {object} herodot.ErrorContainer
// @Router   /documents/{id} [get]
func (h *handlers) document(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	n, err := h.svc.DocumentChunks(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, types.IngestResponse{DocumentID: id, Collection: vectorstore.CollectionName(id), Chunks: n})
}

// answer godoc
// @Summary  Answer a question from documents, the model and the web
// @Tags     answer
// @Accept   json
// @Produce  json
// @Param    body body types.AnswerRequest true "question"
// @Success  200 {object} types.AnswerResponse
// @Failure  409 {object} herodot.ErrorContainer
// @Failure  429 {object} herodot.ErrorContainer
// @Failure  503 {object} herodot.ErrorContainer
// @Failure  504 {object} herodot.ErrorContainer
// @Router   /answer [post]
func (h *handlers) answer(w http.ResponseWriter, r *http.Request) {
	var req types.AnswerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeJSONError(w, r, http.StatusBadRequest, "question is required")
		return
	}
	ctx, cancel := joinContexts(r.Context(), serverBaseCtx)
	defer cancel()
	if answerTimeout > 0 {
		var tcancel context.CancelFunc
		ctx, tcancel = context.WithTimeout(ctx, answerTimeout)
		defer tcancel()
	}
	res, err := h.svc.Answer(ctx, req.Question, req.DocumentIDs)
	if err != nil {
		// the client is gone; nobody reads the error
		if r.Context().Err() != nil {
			return
		}
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, answerResponse(res))
}

func answerResponse(res rag.Result) types.AnswerResponse {
	out := types.AnswerResponse{
		Answer:        res.Answer,
		SourceType:    rag.SourceType(res, nil),
		ContextUsed:   res.ContextUsed,
		WebSearchUsed: res.WebSearchUsed,
		Sources:       make([]types.Source, 0, len(res.Sources)),
		WebSources:    append([]string{}, res.WebSources...),
		SourceCount:   len(res.Sources),
	}
	for _, h := range res.Sources {
		out.Sources = append(out.Sources, types.Source{DocumentID: h.DocumentID, ChunkIndex: h.ChunkIndex, Distance: h.Distance})
	}
	return out
}

// decodeJSON enforces the content type and body limit. It writes the error
// response and returns false when the body is unusable.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, r, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSONError(w, r, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeJSONError(w, r, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil && zlog != nil {
		zlog.Error().Err(err).Str("path", r.URL.Path).Msg("encode response")
	}
}
