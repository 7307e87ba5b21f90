// Package scorer measures how close each resume chunk is to a job
// description.
package scorer

import (
	"context"
	"errors"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/seanblong/resumematch/internal/ai"
	"github.com/seanblong/resumematch/pkg/models"
)

var (
	// ErrQueryEmbedding means the job description itself could not be
	// embedded, so no chunk can be scored.
	ErrQueryEmbedding = errors.New("job description could not be embedded")

	ErrDimensionMismatch = errors.New("vector dimensions differ")
)

// Failure records a chunk that scored 0 because it could not be embedded.
type Failure struct {
	ChunkID int
	Err     error
}

// Result holds one ScoredChunk per input chunk, in input order.
type Result struct {
	Scored   []models.ScoredChunk
	Failures []Failure
}

type Scorer struct {
	workers int
}

// New returns a Scorer that embeds at most workers chunks at once.
func New(workers int) *Scorer {
	if workers < 1 {
		workers = 1
	}
	return &Scorer{workers: workers}
}

// Score embeds jd and every chunk with enc. A chunk that fails to embed
// scores 0 and is listed in Failures; only a failed job description or a
// done ctx aborts the whole call.
func (s *Scorer) Score(ctx context.Context, enc ai.Encoder, jd string, chunks []models.Chunk) (Result, error) {
	q, err := enc.Embed(ctx, jd)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{}, ctxErr
		}
		return Result{}, fmt.Errorf("%w: %v", ErrQueryEmbedding, err)
	}

	scored := make([]models.ScoredChunk, len(chunks))
	errs := make([]error, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, c := range chunks {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			scored[i] = models.ScoredChunk{Chunk: c}
			v, err := enc.Embed(gctx, c.Text)
			if err == nil {
				scored[i].Similarity, err = Cosine(q, v)
			}
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				errs[i] = err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	res := Result{Scored: scored}
	for i, err := range errs {
		if err != nil {
			res.Failures = append(res.Failures, Failure{ChunkID: chunks[i].ID, Err: err})
		}
	}
	return res, nil
}

// Cosine returns the cosine similarity of a and b clipped to [0, 1]. A zero
// vector on either side gives 0.
func Cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d != %d", ErrDimensionMismatch, len(a), len(b))
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0, nil
	}
	sim := dot / (math.Sqrt(na) * math.Sqrt(nb))
	switch {
	case math.IsNaN(sim) || sim < 0:
		return 0, nil
	case sim > 1:
		return 1, nil
	}
	return sim, nil
}
