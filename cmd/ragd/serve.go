package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"ragd/internal/httpapi"
)

func newServeCmd(c *cli) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				c.cfg.Server.Addr = addr
			}
			return c.serve(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address, overrides server.addr")
	return cmd
}

func (c *cli) serve(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	sigCtx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(sigCtx, c.cfg, c.log)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			c.log.Error().Err(err).Msg("shutdown")
		}
	}()

	// handlers outlive the signal until the drain deadline passes
	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()
	httpapi.SetBaseContext(baseCtx)
	httpapi.SetLogger(c.log)
	httpapi.Configure(httpapi.Options{
		MaxBodyBytes:    c.cfg.Server.MaxBodyBytes,
		AnswerTimeout:   c.cfg.Server.AnswerTimeout,
		CORSOrigins:     c.cfg.Server.CORSOrigins,
		RequestLogLevel: c.cfg.Log.Requests,
	})

	srv := &http.Server{
		Addr:              c.cfg.Server.Addr,
		Handler:           httpapi.NewMux(a.engine()),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		c.log.Info().Str("addr", srv.Addr).Int("models", len(a.catalog.Models)).
			Str("default_model", a.manager.DefaultModel()).Str("vectorstore", c.cfg.VectorStore.Backend).
			Bool("websearch", c.cfg.WebSearch.Enabled).Msg("ragd listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-sigCtx.Done():
	}

	c.log.Info().Dur("drain_timeout", c.cfg.Runtime.DrainTimeout).Msg("shutting down")
	drainCtx, cancel := context.WithTimeout(context.Background(), c.cfg.Runtime.DrainTimeout)
	defer cancel()
	if err := srv.Shutdown(drainCtx); err != nil {
		c.log.Warn().Err(err).Msg("drain timed out, aborting in-flight requests")
		cancelBase()
		_ = srv.Close()
	}
	return nil
}
