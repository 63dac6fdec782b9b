package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"ragd/internal/registry"
	"ragd/pkg/types"
)

func newIngestCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:     "ingest <path> [document-id]",
		Short:   "Ingest a .txt, .md or .pdf file into its own collection",
		Example: "  ragd ingest ./handbook.pdf handbook",
		Args:    cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := uuid.NewString()
			if len(args) == 2 {
				id = args[1]
			}
			a, err := newApp(cmd.Context(), c.cfg, c.log)
			if err != nil {
				return err
			}
			defer a.Close()
			n, err := a.pipeline.Ingest(cmd.Context(), args[0], id)
			if err != nil {
				return err
			}
			printIngest(cmd.OutOrStdout(), id, n)
			return nil
		},
	}
}

func newAskCmd(c *cli) *cobra.Command {
	var docs []string
	cmd := &cobra.Command{
		Use:     "ask <question>",
		Short:   "Answer a question, optionally grounded in ingested documents",
		Example: "  ragd ask \"Wie viele Urlaubstage habe ich?\" --doc handbook",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), c.cfg, c.log)
			if err != nil {
				return err
			}
			defer a.Close()
			ctx, cancel := withOptionalTimeout(cmd.Context(), c.cfg.Server.AnswerTimeout)
			defer cancel()
			res, err := a.controller.Answer(ctx, strings.Join(args, " "), docs)
			if err != nil {
				return err
			}
			printAnswer(cmd.OutOrStdout(), res)
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&docs, "doc", "d", nil, "Document id to search (repeatable or comma separated)")
	return cmd
}

func newModelsCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the model catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := registry.Load(c.cfg.Models.Catalog, c.cfg.Models.Dir)
			if err != nil {
				return err
			}
			def := c.cfg.Models.Default
			if def == "" {
				def = cat.Default
			}
			printModels(cmd.OutOrStdout(), cat.Models, def)
			return nil
		},
	}
}

func newStatusCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the runtime status of a running server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var st types.StatusResponse
			if err := c.call(cmd.Context(), http.MethodGet, "/status", nil, &st); err != nil {
				return err
			}
			printStatus(cmd.OutOrStdout(), st)
			return nil
		},
	}
}

func newSwitchCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "switch <model-id>",
		Short: "Switch the model of a running server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp types.SwitchResponse
			if err := c.call(cmd.Context(), http.MethodPost, "/switch", types.SwitchRequest{Model: args[0]}, &resp); err != nil {
				return err
			}
			printSwitch(cmd.OutOrStdout(), resp)
			return nil
		},
	}
}

// call sends a JSON request to the configured server and decodes the reply
// into out. Error replies are returned with the server's message.
func (c *cli) call(ctx context.Context, method, path string, in, out any) error {
	if ctx == nil {
		ctx = context.Background()
	}
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(c.server, "/")+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	client := &http.Client{Timeout: c.cfg.Server.AnswerTimeout}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("contact %s: %w", c.server, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		var e struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&e) == nil && e.Error.Message != "" {
			return fmt.Errorf("%s %s: %d %s", method, path, resp.StatusCode, e.Error.Message)
		}
		return fmt.Errorf("%s %s: %s", method, path, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func withOptionalTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
