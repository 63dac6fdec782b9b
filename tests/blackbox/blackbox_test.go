package blackbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

// findFreePort picks an available TCP port on localhost.
func findFreePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

func projectRoot(t *testing.T) string {
	t.Helper()
	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("runtime.Caller failed")
	}
	// <root>/tests/blackbox/blackbox_test.go
	return filepath.Dir(filepath.Dir(filepath.Dir(thisFile)))
}

func buildBinary(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("builds the binary; skipped in -short mode")
	}
	bin := filepath.Join(t.TempDir(), "ragd")
	cmd := exec.Command("go", "build", "-o", bin, "./cmd/ragd")
	cmd.Dir = projectRoot(t)
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("go build failed: %v\n%s", err, out)
	}
	return bin
}

// newOllama stands in for an Ollama daemon. Empty prompts are load requests.
func newOllama(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Prompt string `json:"prompt"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Prompt == "" {
			fmt.Fprintln(w, `{"done":true,"done_reason":"load"}`)
			return
		}
		answer := "Die Hauptstadt von Frankreich ist Paris, sie liegt an der Seine im Norden des Landes."
		if strings.Contains(req.Prompt, "Kaffeemaschine") {
			answer = "Laut Dokument steht die Kaffeemaschine im dritten Stock neben dem Besprechungsraum."
		}
		b, _ := json.Marshal(map[string]any{"response": answer, "done": false})
		fmt.Fprintln(w, string(b))
		fmt.Fprintln(w, `{"response":"","done":true,"done_reason":"stop"}`)
	}))
	t.Cleanup(srv.Close)
	return srv
}

type serverProc struct {
	base string
}

func startServer(t *testing.T, bin, modelsDir, ollamaURL string) *serverProc {
	t.Helper()
	port := findFreePort(t)
	base := fmt.Sprintf("http://127.0.0.1:%d", port)
	cmd := exec.Command(bin, "--env-file=", "serve", "--addr", fmt.Sprintf("127.0.0.1:%d", port))
	cmd.Env = append(os.Environ(),
		"RAGD_MODELS__DIR="+modelsDir,
		"RAGD_RUNTIME__BACKEND=ollama",
		"RAGD_RUNTIME__OLLAMA_URL="+ollamaURL,
		"RAGD_VECTORSTORE__BACKEND=memory",
		"RAGD_EMBEDDING__PROVIDER=hash",
		"RAGD_WEBSEARCH__ENABLED=false",
		"RAGD_LOG__FORMAT=json",
	)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		t.Fatalf("start server: %v", err)
	}
	t.Cleanup(func() { _ = cmd.Process.Kill(); _ = cmd.Wait() })

	deadline := time.Now().Add(10 * time.Second)
	for {
		resp, err := http.Get(base + "/healthz")
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				break
			}
		}
		if time.Now().After(deadline) {
			t.Fatalf("server did not become healthy in time")
		}
		time.Sleep(50 * time.Millisecond)
	}
	return &serverProc{base: base}
}

func do(t *testing.T, method, url string, payload []byte) (*http.Response, []byte) {
	t.Helper()
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(context.Background(), method, url, body)
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	b, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, b
}

func createModelsDir(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, n := range names {
		if err := os.WriteFile(filepath.Join(dir, n), nil, 0o644); err != nil {
			t.Fatalf("write model %s: %v", n, err)
		}
	}
	return dir
}

func TestBlackbox_Flow(t *testing.T) {
	bin := buildBinary(t)
	sp := startServer(t, bin, createModelsDir(t, "alpha.gguf", "beta.gguf"), newOllama(t).URL)

	resp, body := do(t, http.MethodGet, sp.base+"/models", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/models %d %s", resp.StatusCode, body)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "application/json") {
		t.Fatalf("/models content-type=%s", ct)
	}
	var models struct {
		Models []struct {
			ID string `json:"id"`
		} `json:"models"`
		Default string `json:"default"`
	}
	if err := json.Unmarshal(body, &models); err != nil {
		t.Fatalf("/models json: %v body=%s", err, body)
	}
	if len(models.Models) != 2 || models.Default != "alpha.gguf" {
		t.Fatalf("models: %+v", models)
	}

	doc := filepath.Join(t.TempDir(), "office.md")
	if err := os.WriteFile(doc, []byte("# Büro\n\nDie Kaffeemaschine steht im dritten Stock neben dem Besprechungsraum."), 0o644); err != nil {
		t.Fatal(err)
	}
	payload, _ := json.Marshal(map[string]string{"path": doc})
	resp, body = do(t, http.MethodPost, sp.base+"/documents/office/ingest", payload)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("ingest %d %s", resp.StatusCode, body)
	}

	resp, body = do(t, http.MethodPost, sp.base+"/answer", []byte(`{"question":"Wo steht die Kaffeemaschine?","document_ids":["office"]}`))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/answer %d %s", resp.StatusCode, body)
	}
	var ans struct {
		Answer      string `json:"answer"`
		SourceType  string `json:"source_type"`
		ContextUsed bool   `json:"context_used"`
	}
	if err := json.Unmarshal(body, &ans); err != nil {
		t.Fatalf("/answer json: %v body=%s", err, body)
	}
	if ans.SourceType != "rag" || !ans.ContextUsed || !strings.Contains(ans.Answer, "dritten Stock") {
		t.Fatalf("answer: %+v", ans)
	}

	resp, _ = do(t, http.MethodGet, sp.base+"/readyz", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/readyz after answer %d", resp.StatusCode)
	}
	resp, body = do(t, http.MethodGet, sp.base+"/status", nil)
	var st struct {
		State       string `json:"state"`
		ActiveModel string `json:"active_model_id"`
	}
	if err := json.Unmarshal(body, &st); err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("/status %d %v %s", resp.StatusCode, err, body)
	}
	if st.State != "ready" || st.ActiveModel != "alpha.gguf" {
		t.Fatalf("status: %+v", st)
	}
}

func TestBlackbox_Switch_ModelNotFound_404(t *testing.T) {
	bin := buildBinary(t)
	sp := startServer(t, bin, createModelsDir(t, "alpha.gguf"), newOllama(t).URL)

	resp, body := do(t, http.MethodPost, sp.base+"/switch", []byte(`{"model":"missing.gguf"}`))
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d, body=%s", resp.StatusCode, body)
	}
}
