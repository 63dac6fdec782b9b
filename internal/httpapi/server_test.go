package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ragd/internal/chunker"
	"ragd/internal/extract"
	"ragd/internal/ingest"
	"ragd/internal/manager"
	"ragd/internal/rag"
	"ragd/internal/vectorstore"
	"ragd/pkg/types"
)

type mockService struct {
	models    []types.Model
	def       string
	status    types.StatusResponse
	ready     bool
	switchErr error
	ingestErr error
	ingestN   int
	deleteErr error
	chunks    int
	chunksErr error
	answer    rag.Result
	answerErr error
	block     bool

	gotIngest   [2]string
	gotDelete   string
	gotQuestion string
	gotDocs     []string
}

func (m *mockService) ListModels() []types.Model    { return append([]types.Model(nil), m.models...) }
func (m *mockService) DefaultModel() string         { return m.def }
func (m *mockService) Status() types.StatusResponse { return m.status }
func (m *mockService) Ready() bool                  { return m.ready }

func (m *mockService) Switch(ctx context.Context, id string) (types.SwitchResponse, error) {
	if m.switchErr != nil {
		return types.SwitchResponse{}, m.switchErr
	}
	return types.SwitchResponse{Model: id, State: "ready", OpID: "op-1"}, nil
}

func (m *mockService) Ingest(ctx context.Context, path, id string) (int, error) {
	m.gotIngest = [2]string{path, id}
	return m.ingestN, m.ingestErr
}

func (m *mockService) DeleteDocument(ctx context.Context, id string) error {
	m.gotDelete = id
	return m.deleteErr
}

func (m *mockService) DocumentChunks(ctx context.Context, id string) (int, error) {
	return m.chunks, m.chunksErr
}

func (m *mockService) Answer(ctx context.Context, q string, ids []string) (rag.Result, error) {
	m.gotQuestion, m.gotDocs = q, ids
	if m.block {
		<-ctx.Done()
		return rag.Result{}, ctx.Err()
	}
	return m.answer, m.answerErr
}

type mockHTTPError struct {
	msg  string
	code int
}

func (e mockHTTPError) Error() string   { return e.msg }
func (e mockHTTPError) StatusCode() int { return e.code }

func postJSON(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeErrorBody(t *testing.T, w *httptest.ResponseRecorder) (int, string) {
	t.Helper()
	var body struct {
		Error struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("error body: %v (%s)", err, w.Body.String())
	}
	return body.Error.Code, body.Error.Message
}

func TestModelsHandler(t *testing.T) {
	svc := &mockService{models: []types.Model{{ID: "m1"}, {ID: "m2"}}, def: "m2"}
	r := NewMux(svc)
	req := httptest.NewRequest(http.MethodGet, "/models", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "application/json") {
		t.Fatalf("content-type=%s", ct)
	}
	var body types.ModelsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("json: %v", err)
	}
	if len(body.Models) != 2 || body.Default != "m2" {
		t.Fatalf("body=%+v", body)
	}
}

func TestStatusHandler(t *testing.T) {
	svc := &mockService{status: types.StatusResponse{State: "ready", BudgetMB: 10}}
	r := NewMux(svc)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/status", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	var body types.StatusResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("json: %v", err)
	}
	if body.BudgetMB != 10 || body.State != "ready" {
		t.Fatalf("body=%+v", body)
	}
}

func TestReadyz(t *testing.T) {
	r := NewMux(&mockService{ready: true})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if w.Code != http.StatusOK || w.Body.String() != "ready" {
		t.Fatalf("status=%d body=%q", w.Code, w.Body.String())
	}
}

func TestReadyz_NotReady(t *testing.T) {
	r := NewMux(&mockService{ready: false})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if w.Code != http.StatusServiceUnavailable || w.Body.String() != "loading" {
		t.Fatalf("status=%d body=%q", w.Code, w.Body.String())
	}
}

func TestHealthz(t *testing.T) {
	r := NewMux(&mockService{})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	if w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("missing nosniff header")
	}
}

func TestSwitchOK(t *testing.T) {
	r := NewMux(&mockService{})
	w := postJSON(t, r, "/switch", `{"model":"qwen2.5-3b"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var body types.SwitchResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("json: %v", err)
	}
	if body.Model != "qwen2.5-3b" || body.State != "ready" {
		t.Fatalf("body=%+v", body)
	}
}

func TestSwitchModelRequired(t *testing.T) {
	r := NewMux(&mockService{})
	w := postJSON(t, r, "/switch", `{"model":"  "}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestSwitchErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"not found", manager.ErrModelNotFound("x"), http.StatusNotFound},
		{"file missing", &manager.ModelFileMissingError{ModelID: "x", Path: "/m/x.gguf"}, http.StatusConflict},
		{"insufficient", &manager.InsufficientResourcesError{ModelID: "x", RequiredMB: 9000, BudgetMB: 4000}, http.StatusInsufficientStorage},
		{"unavailable", &manager.RuntimeUnavailableError{Attempts: []types.LoadAttempt{{ModelID: "x", Reason: manager.ReasonStartFailed}}}, http.StatusServiceUnavailable},
		{"dependency", manager.ErrDependencyUnavailable("llama-server not found"), http.StatusServiceUnavailable},
		{"busy", mockHTTPError{msg: "too busy", code: http.StatusTooManyRequests}, http.StatusTooManyRequests},
		{"wrapped", fmt.Errorf("switch: %w", manager.ErrModelNotFound("y")), http.StatusNotFound},
		{"generic", io.EOF, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := NewMux(&mockService{switchErr: tc.err})
			w := postJSON(t, r, "/switch", `{"model":"x"}`)
			if w.Code != tc.want {
				t.Fatalf("status=%d want %d", w.Code, tc.want)
			}
			code, msg := decodeErrorBody(t, w)
			if code != tc.want || msg == "" {
				t.Fatalf("error body code=%d msg=%q", code, msg)
			}
		})
	}
}

func TestIngestOK(t *testing.T) {
	svc := &mockService{ingestN: 4}
	r := NewMux(svc)
	w := postJSON(t, r, "/documents/handbook/ingest", `{"path":"/data/handbook.txt"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var body types.IngestResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("json: %v", err)
	}
	if body.DocumentID != "handbook" || body.Chunks != 4 || body.Collection != vectorstore.CollectionName("handbook") {
		t.Fatalf("body=%+v", body)
	}
	if svc.gotIngest != [2]string{"/data/handbook.txt", "handbook"} {
		t.Fatalf("service got %v", svc.gotIngest)
	}
}

func TestIngestErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"empty", fmt.Errorf("chunk: %w", chunker.ErrEmptyInput), http.StatusUnprocessableEntity},
		{"extraction", &ingest.ExtractionError{Path: "/x.pdf", Err: errors.New("broken")}, http.StatusUnprocessableEntity},
		{"pdf tool", &ingest.ExtractionError{Path: "/x.pdf", Err: extract.ErrPDFToolNotFound}, http.StatusServiceUnavailable},
		{"invalid id", fmt.Errorf("%w: %q", vectorstore.ErrInvalidID, "a b"), http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := NewMux(&mockService{ingestErr: tc.err})
			w := postJSON(t, r, "/documents/doc/ingest", `{"path":"/x.pdf"}`)
			if w.Code != tc.want {
				t.Fatalf("status=%d want %d", w.Code, tc.want)
			}
		})
	}
}

func TestIngestPathRequired(t *testing.T) {
	r := NewMux(&mockService{})
	w := postJSON(t, r, "/documents/doc/ingest", `{}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestDeleteDocument(t *testing.T) {
	svc := &mockService{}
	r := NewMux(svc)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/documents/handbook", nil))
	if w.Code != http.StatusNoContent {
		t.Fatalf("status=%d", w.Code)
	}
	if svc.gotDelete != "handbook" {
		t.Fatalf("deleted %q", svc.gotDelete)
	}
}

func TestDocumentChunks(t *testing.T) {
	r := NewMux(&mockService{chunks: 7})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/documents/handbook", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	var body types.IngestResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("json: %v", err)
	}
	if body.DocumentID != "handbook" || body.Chunks != 7 || body.Collection != "doc_handbook" {
		t.Fatalf("body=%+v", body)
	}

	r = NewMux(&mockService{chunksErr: fmt.Errorf("%w: %q", vectorstore.ErrInvalidID, "a b")})
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/documents/a%20b", nil))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("invalid id status=%d", w.Code)
	}
}

func TestAnswerOK(t *testing.T) {
	svc := &mockService{answer: rag.Result{
		Answer:      "30 Tage.",
		ContextUsed: true,
		Sources: []vectorstore.Hit{
			{DocumentID: "handbook", ChunkIndex: 2, Text: "Urlaub: 30 Tage", Distance: 0.1},
			{DocumentID: "policy", ChunkIndex: 0, Text: "...", Distance: 0.3},
		},
	}}
	r := NewMux(svc)
	w := postJSON(t, r, "/answer", `{"question":"Wie viele Urlaubstage?","document_ids":["handbook","policy"]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var body types.AnswerResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("json: %v", err)
	}
	if body.Answer != "30 Tage." || body.SourceType != rag.SourceRAG || !body.ContextUsed || body.WebSearchUsed {
		t.Fatalf("body=%+v", body)
	}
	if body.SourceCount != 2 || len(body.Sources) != 2 || body.Sources[0].DocumentID != "handbook" || body.Sources[0].ChunkIndex != 2 {
		t.Fatalf("sources=%+v", body.Sources)
	}
	if body.WebSources == nil {
		t.Fatalf("web_sources should encode as an empty list")
	}
	if svc.gotQuestion != "Wie viele Urlaubstage?" || len(svc.gotDocs) != 2 {
		t.Fatalf("service got %q %v", svc.gotQuestion, svc.gotDocs)
	}
}

func TestAnswerHybrid(t *testing.T) {
	svc := &mockService{answer: rag.Result{Answer: "Laut Web-Suche: ja", ContextUsed: true, WebSearchUsed: true, WebSources: []string{rag.WebSourceLabel}}}
	r := NewMux(svc)
	w := postJSON(t, r, "/answer", `{"question":"Was ist neu 2025?"}`)
	var body types.AnswerResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("json: %v", err)
	}
	if body.SourceType != rag.SourceHybrid || len(body.WebSources) != 1 {
		t.Fatalf("body=%+v", body)
	}
}

func TestAnswerBadJSON(t *testing.T) {
	r := NewMux(&mockService{})
	w := postJSON(t, r, "/answer", "{bad")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestAnswerQuestionRequired(t *testing.T) {
	r := NewMux(&mockService{})
	w := postJSON(t, r, "/answer", `{"question":"   "}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestAnswerUnsupportedMediaType(t *testing.T) {
	r := NewMux(&mockService{})
	req := httptest.NewRequest(http.MethodPost, "/answer", strings.NewReader(`{"question":"x"}`))
	req.Header.Set("Content-Type", "text/plain")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestAnswerBodyTooLarge(t *testing.T) {
	SetMaxBodyBytes(64)
	defer SetMaxBodyBytes(0)
	r := NewMux(&mockService{})
	big := `{"question":"` + string(bytes.Repeat([]byte("a"), 200)) + `"}`
	w := postJSON(t, r, "/answer", big)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestAnswerRuntimeUnavailable(t *testing.T) {
	r := NewMux(&mockService{answerErr: &manager.RuntimeUnavailableError{}})
	w := postJSON(t, r, "/answer", `{"question":"x"}`)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestAnswerTimeout(t *testing.T) {
	SetAnswerTimeout(20 * time.Millisecond)
	defer SetAnswerTimeout(0)
	r := NewMux(&mockService{block: true})
	w := postJSON(t, r, "/answer", `{"question":"x"}`)
	if w.Code != http.StatusGatewayTimeout {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestAnswerCanceledByBaseContext(t *testing.T) {
	base, cancel := context.WithCancel(context.Background())
	SetBaseContext(base)
	defer SetBaseContext(nil)
	r := NewMux(&mockService{block: true})
	done := make(chan *httptest.ResponseRecorder, 1)
	go func() { done <- postJSON(t, r, "/answer", `{"question":"x"}`) }()
	time.Sleep(10 * time.Millisecond)
	cancel()
	select {
	case w := <-done:
		if w.Code != http.StatusServiceUnavailable {
			t.Fatalf("status=%d", w.Code)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("answer did not stop on shutdown")
	}
}

func TestCORSHeaders(t *testing.T) {
	SetCORSOrigins([]string{"https://app.example"})
	defer SetCORSOrigins(nil)
	r := NewMux(&mockService{})
	req := httptest.NewRequest(http.MethodOptions, "/answer", nil)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example" {
		t.Fatalf("allow-origin=%q", got)
	}
}

func TestCORSDisabledByDefault(t *testing.T) {
	r := NewMux(&mockService{})
	req := httptest.NewRequest(http.MethodOptions, "/answer", nil)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("unexpected allow-origin=%q", got)
	}
}
