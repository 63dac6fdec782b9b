package httpapi

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ragd/internal/manager"
)

func scrape(t *testing.T) []byte {
	t.Helper()
	rr := httptest.NewRecorder()
	promhttp.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("/metrics status=%d", rr.Code)
	}
	return rr.Body.Bytes()
}

func TestMetricsMiddleware_LabelsByRoutePattern(t *testing.T) {
	r := NewMux(&mockService{chunks: 2})
	for _, id := range []string{"handbook", "faq"} {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/documents/"+id, nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("status=%d", rr.Code)
		}
	}
	body := scrape(t)
	if !bytes.Contains(body, []byte(`route="/documents/{id}`)) {
		t.Fatalf("expected the route pattern label in:\n%s", body)
	}
	if bytes.Contains(body, []byte(`route="/documents/handbook"`)) {
		t.Fatalf("raw paths must not become labels")
	}
}

func TestWriteError_CountsKind(t *testing.T) {
	r := NewMux(&mockService{switchErr: manager.ErrModelNotFound("gamma")})
	w := postJSON(t, r, "/switch", `{"model":"m"}`)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status=%d", w.Code)
	}
	if !bytes.Contains(scrape(t), []byte(`ragd_http_errors_total{kind="model_not_found"}`)) {
		t.Fatalf("model_not_found error not counted")
	}
}
