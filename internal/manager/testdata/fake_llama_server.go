package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
)

// Stands in for llama-server. Prompts carrying document excerpts get a
// grounded reply, everything else a greeting; max_tokens truncates by token.
func main() {
	var host, port string
	flag.String("m", "", "model path")
	flag.StringVar(&host, "host", "127.0.0.1", "host")
	flag.StringVar(&port, "port", "0", "port")
	flag.String("c", "", "context size")
	flag.String("t", "", "threads")
	flag.String("ngl", "", "gpu layers")
	flag.Parse()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/models", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"id":"fake","object":"model"}]}`))
	})
	mux.HandleFunc("POST /v1/completions", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Prompt    string `json:"prompt"`
			MaxTokens int    `json:"max_tokens"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		tokens := []string{"Hallo", " Welt"}
		if strings.Contains(req.Prompt, "DOKUMENTEN-AUSZÜGE") {
			tokens = []string{"Laut", " Dokument", " gilt", " das."}
		}
		finish := "stop"
		if req.MaxTokens > 0 && req.MaxTokens < len(tokens) {
			tokens, finish = tokens[:req.MaxTokens], "length"
		}
		w.Header().Set("Content-Type", "text/event-stream")
		for i, tok := range tokens {
			choice := map[string]any{"text": tok}
			if i == len(tokens)-1 {
				choice["finish_reason"] = finish
			}
			b, _ := json.Marshal(map[string]any{"object": "text_completion", "choices": []any{choice}})
			fmt.Fprintf(w, "data: %s\n\n", b)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	})

	srv := &http.Server{Addr: host + ":" + port, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("fake llama-server: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()
	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	os.Exit(0)
}
