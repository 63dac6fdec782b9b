package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"

	"ragd/internal/rag"
	"ragd/pkg/types"
)

var (
	bold  = color.New(color.Bold)
	faint = color.New(color.Faint)
	good  = color.New(color.FgGreen)
	warn  = color.New(color.FgYellow)
	bad   = color.New(color.FgRed)
)

// sourceColor picks the badge color of an answer's source type.
func sourceColor(st string) *color.Color {
	switch st {
	case rag.SourceRAG:
		return good
	case rag.SourceHybrid:
		return warn
	case rag.SourceError:
		return bad
	default:
		return faint
	}
}

func printAnswer(w io.Writer, res rag.Result) {
	st := rag.SourceType(res, nil)
	sourceColor(st).Fprintf(w, "[%s]", st)
	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.TrimSpace(res.Answer))
	if len(res.Sources) > 0 {
		fmt.Fprintln(w)
		bold.Fprintln(w, "Sources:")
		for _, h := range res.Sources {
			faint.Fprintf(w, "  %s#%d (distance %.3f)\n", h.DocumentID, h.ChunkIndex, h.Distance)
		}
	}
	for _, s := range res.WebSources {
		faint.Fprintf(w, "  %s\n", s)
	}
	if res.Escalation != "" {
		faint.Fprintf(w, "escalated: %s\n", res.Escalation)
	}
}

func printIngest(w io.Writer, id string, chunks int) {
	good.Fprint(w, "ingested ")
	fmt.Fprintf(w, "%s: %d chunks\n", id, chunks)
}

func printModels(w io.Writer, models []types.Model, def string) {
	for _, m := range models {
		marker := "  "
		if m.ID == def {
			marker = good.Sprint("* ")
		}
		fmt.Fprintf(w, "%s%s", marker, bold.Sprint(m.ID))
		if m.Params != "" || m.QualityTier != "" {
			faint.Fprintf(w, "  %s %s", m.Params, m.QualityTier)
		}
		if m.SizeMB > 0 {
			faint.Fprintf(w, "  %d MB", m.SizeMB)
		}
		fmt.Fprintln(w)
		if m.Description != "" {
			faint.Fprintf(w, "    %s\n", m.Description)
		}
	}
}

func printStatus(w io.Writer, st types.StatusResponse) {
	c := faint
	switch st.State {
	case "ready":
		c = good
	case "loading", "switching":
		c = warn
	}
	fmt.Fprintf(w, "state:   %s\n", c.Sprint(st.State))
	if st.ActiveModel != "" {
		fmt.Fprintf(w, "model:   %s\n", st.ActiveModel)
	}
	if st.DesiredModel != "" && st.DesiredModel != st.ActiveModel {
		fmt.Fprintf(w, "desired: %s\n", st.DesiredModel)
	}
	fmt.Fprintf(w, "memory:  %d / %d MB (margin %d MB)\n", st.UsedMB, st.BudgetMB, st.MarginMB)
	fmt.Fprintf(w, "queue:   %d waiting, %d in flight (max %d)\n", st.QueueLen, st.Inflight, st.MaxQueueDepth)
	if st.LastError != "" {
		fmt.Fprintf(w, "error:   %s\n", bad.Sprint(st.LastError))
	}
	for _, a := range st.LastAttempts {
		faint.Fprintf(w, "  tried %s: %s %s\n", a.ModelID, a.Reason, a.Error)
	}
	if len(st.RecentEvents) > 0 {
		fmt.Fprintln(w, "events:")
		for _, e := range st.RecentEvents {
			faint.Fprintf(w, "  %s %s %s\n", time.Unix(e.AtUnix, 0).Format(time.TimeOnly), e.Name, e.ModelID)
		}
	}
}

func printSwitch(w io.Writer, resp types.SwitchResponse) {
	good.Fprint(w, "switched ")
	fmt.Fprintf(w, "to %s (%s)\n", resp.Model, resp.State)
}
