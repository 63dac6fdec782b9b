// Package retrieval queries the collections of the selected documents and
// assembles the context handed to generation.
package retrieval

import (
	"context"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"ragd/internal/vectorstore"
)

const (
	DefaultKPerDoc = 3
	// MaxContextChunks caps the chunks that reach the prompt.
	MaxContextChunks = 5
	defaultFanOut    = 8
)

// Assembly is the result of one retrieval.
type Assembly struct {
	// Hits in caller document order, each document's hits in rank order.
	Hits []vectorstore.Hit
	// Context holds the texts of the first MaxContextChunks hits.
	Context     []string
	ContextUsed bool
}

// Assembler fans queries out over documents. Distances from different
// collections are not comparable, so hits are never re-sorted globally.
type Assembler struct {
	store  vectorstore.Store
	fanOut int
	log    zerolog.Logger
}

// New returns an assembler over store. fanOut bounds concurrent queries
// (8 if <= 0).
func New(store vectorstore.Store, fanOut int, log zerolog.Logger) *Assembler {
	if fanOut <= 0 {
		fanOut = defaultFanOut
	}
	return &Assembler{store: store, fanOut: fanOut, log: log.With().Str("component", "retrieval").Logger()}
}

// Assemble queries every id in docIDs (duplicates are queried twice) for
// kPerDoc hits. A failing document is logged and contributes no hits.
func (a *Assembler) Assemble(ctx context.Context, query string, docIDs []string, kPerDoc int) (Assembly, error) {
	if kPerDoc <= 0 {
		kPerDoc = DefaultKPerDoc
	}
	perDoc := make([][]vectorstore.Hit, len(docIDs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.fanOut)
	for i, id := range docIDs {
		g.Go(func() error {
			hits, err := a.store.Query(gctx, id, query, kPerDoc)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				a.log.Warn().Err(err).Str("doc", id).Msg("query failed, skipping document")
				return nil
			}
			perDoc[i] = hits
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Assembly{}, err
	}

	var out Assembly
	for _, hits := range perDoc {
		out.Hits = append(out.Hits, hits...)
	}
	out.ContextUsed = len(out.Hits) > 0
	for _, h := range out.Hits[:min(len(out.Hits), MaxContextChunks)] {
		out.Context = append(out.Context, h.Text)
	}
	return out, nil
}
