// Package match runs one resume through ingestion, normalization, chunking,
// scoring and ranking under a single deadline.
package match

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/seanblong/resumematch/internal/ai"
	"github.com/seanblong/resumematch/internal/chunker"
	"github.com/seanblong/resumematch/internal/ingest"
	"github.com/seanblong/resumematch/internal/ranker"
	"github.com/seanblong/resumematch/internal/scorer"
	"github.com/seanblong/resumematch/internal/textnorm"
	"github.com/seanblong/resumematch/pkg/models"
)

var (
	ErrValidation = errors.New("validation error")
	ErrTimeout    = errors.New("processing timed out")
	ErrInternal   = errors.New("internal processing error")
)

// Options tunes the pipeline. Out of range values fall back to the defaults
// below; a zero Overlap is valid.
type Options struct {
	WindowSize int
	Overlap    float64
	TopK       int
	Timeout    time.Duration
	Workers    int
}

const (
	DefaultWindowSize = 40
	DefaultOverlap    = 0.25
	DefaultTimeout    = 30 * time.Second
	DefaultWorkers    = 4
)

func (o Options) withDefaults() Options {
	if o.WindowSize < 1 {
		o.WindowSize = DefaultWindowSize
	}
	if o.Overlap < 0 || o.Overlap >= 1 {
		o.Overlap = DefaultOverlap
	}
	if o.TopK < 1 {
		o.TopK = ranker.DefaultTopK
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.Workers < 1 {
		o.Workers = DefaultWorkers
	}
	return o
}

// Extractor is the part of *ingest.Ingestor the pipeline needs.
type Extractor interface {
	Extract(ctx context.Context, data []byte, format ingest.Format) (string, error)
}

type Service struct {
	Extractor Extractor
	Client    ai.Client
	opts      Options
	scorer    *scorer.Scorer
}

// NewService creates a new match service with the provided extractor and
// vector client. Both are shared read-only across requests.
func NewService(extractor Extractor, client ai.Client, opts Options) *Service {
	opts = opts.withDefaults()
	return &Service{
		Extractor: extractor,
		Client:    client,
		opts:      opts,
		scorer:    scorer.New(opts.Workers),
	}
}

// Options returns the effective pipeline options.
func (s *Service) Options() Options { return s.opts }

// Match scores the resume in data against jd. Errors wrap ErrValidation,
// ingest.ErrUnsupportedFormat, ingest.ErrEmptyDocument, ErrTimeout or
// ErrInternal; a cancelled ctx is returned as is. No partial result is ever
// returned alongside an error.
func (s *Service) Match(ctx context.Context, jd string, data []byte, format ingest.Format) (models.MatchResult, error) {
	if strings.TrimSpace(jd) == "" {
		return models.MatchResult{}, fmt.Errorf("%w: job description is required", ErrValidation)
	}
	query := textnorm.Normalize(jd)
	if query == "" {
		return models.MatchResult{}, fmt.Errorf("%w: job description has no text", ErrValidation)
	}
	if len(data) == 0 {
		return models.MatchResult{}, fmt.Errorf("%w: resume file is empty", ErrValidation)
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	res, err := s.run(ctx, query, data, format)
	if err != nil {
		return models.MatchResult{}, classify(ctx, err)
	}
	return res, nil
}

// run executes the pipeline for an already normalized query.
func (s *Service) run(ctx context.Context, query string, data []byte, format ingest.Format) (models.MatchResult, error) {
	logger := zerolog.Ctx(ctx)

	start := time.Now()
	raw, err := s.extract(ctx, data, format)
	if err != nil {
		return models.MatchResult{}, err
	}
	logger.Debug().Str("stage", "ingest").Int("bytes", len(raw)).Dur("dur", time.Since(start)).Msg("stage done")

	text := textnorm.Normalize(raw)
	if text == "" {
		return models.MatchResult{}, ingest.ErrEmptyDocument
	}
	chunks, err := chunker.Chunk(text, s.opts.WindowSize, s.opts.Overlap)
	if err != nil {
		return models.MatchResult{}, err
	}
	logger.Debug().Str("stage", "chunk").Int("chunks", len(chunks)).Msg("stage done")
	if err := ctx.Err(); err != nil {
		return models.MatchResult{}, err
	}

	corpus := make([]string, 0, len(chunks)+1)
	corpus = append(corpus, query)
	for _, c := range chunks {
		corpus = append(corpus, c.Text)
	}
	enc, err := s.Client.Prepare(ctx, corpus)
	if err != nil {
		return models.MatchResult{}, err
	}

	start = time.Now()
	scored, err := s.scorer.Score(ctx, enc, query, chunks)
	if err != nil {
		return models.MatchResult{}, err
	}
	for _, f := range scored.Failures {
		logger.Warn().Err(f.Err).Int("chunk", f.ChunkID).Msg("chunk scoring failed, using 0")
	}
	logger.Debug().Str("stage", "score").Int("failures", len(scored.Failures)).Dur("dur", time.Since(start)).Msg("stage done")

	top, score := ranker.Rank(scored.Scored, s.opts.TopK)
	if err := ctx.Err(); err != nil {
		return models.MatchResult{}, err
	}
	logger.Debug().Str("stage", "rank").Int("score", score).Int("top", len(top)).Msg("stage done")

	return models.MatchResult{
		FinalMatchScore:    score,
		TopChunks:          top,
		FilteredResumeText: text,
	}, nil
}

// extract runs ingestion on its own goroutine so a parser that ignores ctx
// still cannot hold the request past its deadline.
func (s *Service) extract(ctx context.Context, data []byte, format ingest.Format) (string, error) {
	type result struct {
		text string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		text, err := s.Extractor.Extract(ctx, data, format)
		done <- result{text, err}
	}()

	select {
	case r := <-done:
		return r.text, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// classify maps a pipeline error onto the error kinds callers switch on.
func classify(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, ErrValidation),
		errors.Is(err, ingest.ErrUnsupportedFormat),
		errors.Is(err, ingest.ErrEmptyDocument):
		return err
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	case errors.Is(err, context.Canceled):
		return err
	default:
		return fmt.Errorf("%w: %v", ErrInternal, err)
	}
}
