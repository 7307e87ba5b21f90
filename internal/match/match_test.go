package match

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/seanblong/resumematch/internal/ai"
	"github.com/seanblong/resumematch/internal/ingest"
	"github.com/seanblong/resumematch/internal/testutil"
)

func init() {
	// Suppress logs during testing
	zerolog.SetGlobalLevel(zerolog.Disabled)
}

const pythonJD = "Looking for a Python developer with experience in Django and REST APIs"

// MockExtractor implements Extractor for testing
type MockExtractor struct {
	ExtractFunc func(ctx context.Context, data []byte, format ingest.Format) (string, error)
	calls       int
}

func (m *MockExtractor) Extract(ctx context.Context, data []byte, format ingest.Format) (string, error) {
	m.calls++
	if m.ExtractFunc != nil {
		return m.ExtractFunc(ctx, data, format)
	}
	return string(data), nil
}

// MockClient implements ai.Client and ai.Encoder for testing
type MockClient struct {
	PrepareFunc func(ctx context.Context, corpus []string) (ai.Encoder, error)
	EmbedFunc   func(ctx context.Context, text string) ([]float32, error)
}

func (m *MockClient) Prepare(ctx context.Context, corpus []string) (ai.Encoder, error) {
	if m.PrepareFunc != nil {
		return m.PrepareFunc(ctx, corpus)
	}
	return m, nil
}

func (m *MockClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if m.EmbedFunc != nil {
		return m.EmbedFunc(ctx, text)
	}
	return []float32{1, 0}, nil
}

func (m *MockClient) Dim() int      { return 2 }
func (m *MockClient) Model() string { return "mock" }

func newTFIDFService(opts Options) *Service {
	return NewService(ingest.New(), ai.NewTFIDFClient(nil), opts)
}

func TestMatch_Scenarios(t *testing.T) {
	tests := []struct {
		name      string
		resume    []byte
		minScore  int
		maxScore  int
		topChunks int
	}{
		{
			name:      "matching python resume",
			resume:    testutil.PDF("4 years building REST APIs in Python using Django."),
			minScore:  60,
			maxScore:  100,
			topChunks: 1,
		},
		{
			name:      "culinary resume",
			resume:    testutil.PDF("Executive chef specializing in French pastry, sauces and kitchen management."),
			minScore:  0,
			maxScore:  20,
			topChunks: 1,
		},
		{
			name:      "short resume is one chunk",
			resume:    testutil.PDF("Python engineer."),
			minScore:  0,
			maxScore:  100,
			topChunks: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTFIDFService(Options{})
			res, err := svc.Match(context.Background(), pythonJD, tt.resume, ingest.FormatPDF)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if res.FinalMatchScore < tt.minScore || res.FinalMatchScore > tt.maxScore {
				t.Errorf("Expected score in [%d, %d], got %d", tt.minScore, tt.maxScore, res.FinalMatchScore)
			}
			if len(res.TopChunks) != tt.topChunks {
				t.Errorf("Expected %d top chunks, got %d", tt.topChunks, len(res.TopChunks))
			}
			for _, c := range res.TopChunks {
				if got := res.FilteredResumeText[c.Start:c.End]; strings.TrimSpace(got) != c.Text {
					t.Errorf("Chunk text %q does not match its span %q", c.Text, got)
				}
			}
		})
	}
}

func TestMatch_ScoreFromText(t *testing.T) {
	svc := NewService(&MockExtractor{}, ai.NewTFIDFClient(nil), Options{})
	res, err := svc.Match(context.Background(), pythonJD,
		[]byte("4 years building REST APIs in Python using Django."), ingest.FormatPDF)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	// cosine 0.669 on a single chunk
	if res.FinalMatchScore != 67 {
		t.Errorf("Expected score 67, got %d", res.FinalMatchScore)
	}
	if res.FilteredResumeText != "4 years building REST APIs in Python using Django." {
		t.Errorf("Unexpected filtered text %q", res.FilteredResumeText)
	}
}

func TestMatch_Errors(t *testing.T) {
	tests := []struct {
		name     string
		jd       string
		data     []byte
		format   ingest.Format
		expected error
	}{
		{"empty job description", "", testutil.PDF("text"), ingest.FormatPDF, ErrValidation},
		{"blank job description", " \n\t ", testutil.PDF("text"), ingest.FormatPDF, ErrValidation},
		{"job description without text", "\u200b\u200b", testutil.PDF("text"), ingest.FormatPDF, ErrValidation},
		{"empty file", pythonJD, nil, ingest.FormatPDF, ErrValidation},
		{"fake pdf", pythonJD, []byte("this is plainly not a pdf"), ingest.FormatPDF, ingest.ErrUnsupportedFormat},
		{"unknown format", pythonJD, []byte("data"), ingest.Format("rtf"), ingest.ErrUnsupportedFormat},
		{"pdf without text", pythonJD, testutil.PDF(""), ingest.FormatPDF, ingest.ErrEmptyDocument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTFIDFService(Options{})
			res, err := svc.Match(context.Background(), tt.jd, tt.data, tt.format)
			if !errors.Is(err, tt.expected) {
				t.Fatalf("Expected %v, got %v", tt.expected, err)
			}
			if res.FinalMatchScore != 0 || res.TopChunks != nil || res.FilteredResumeText != "" {
				t.Errorf("Expected zero result alongside error, got %+v", res)
			}
		})
	}
}

func TestMatch_ValidationRunsNoStages(t *testing.T) {
	tests := []struct {
		name string
		jd   string
		data []byte
	}{
		{name: "empty job description", jd: "", data: []byte("resume")},
		{name: "control characters only", jd: "\x00\x07\x1b\u200b", data: testutil.PDF("Python developer")},
		{name: "empty file", jd: pythonJD, data: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			extractor := &MockExtractor{}
			svc := NewService(extractor, &MockClient{}, Options{})

			_, err := svc.Match(context.Background(), tt.jd, tt.data, ingest.FormatPDF)
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("Expected ErrValidation, got %v", err)
			}
			if extractor.calls != 0 {
				t.Errorf("Expected no extraction, got %d calls", extractor.calls)
			}
		})
	}
}

func TestMatch_NormalizedTextEmpty(t *testing.T) {
	extractor := &MockExtractor{ExtractFunc: func(ctx context.Context, data []byte, format ingest.Format) (string, error) {
		return "\u200b\u00ad", nil
	}}
	svc := NewService(extractor, &MockClient{}, Options{})

	_, err := svc.Match(context.Background(), pythonJD, []byte("x"), ingest.FormatPDF)
	if !errors.Is(err, ingest.ErrEmptyDocument) {
		t.Fatalf("Expected ErrEmptyDocument, got %v", err)
	}
}

func TestMatch_InternalErrors(t *testing.T) {
	tests := []struct {
		name   string
		client *MockClient
	}{
		{
			name: "prepare fails",
			client: &MockClient{PrepareFunc: func(ctx context.Context, corpus []string) (ai.Encoder, error) {
				return nil, errors.New("provider down")
			}},
		},
		{
			name: "job description embedding fails",
			client: &MockClient{EmbedFunc: func(ctx context.Context, text string) ([]float32, error) {
				return nil, errors.New("quota exceeded")
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(&MockExtractor{}, tt.client, Options{})
			_, err := svc.Match(context.Background(), pythonJD, []byte("Go developer"), ingest.FormatPDF)
			if !errors.Is(err, ErrInternal) {
				t.Fatalf("Expected ErrInternal, got %v", err)
			}
		})
	}
}

func TestMatch_ChunkFailureIsRecovered(t *testing.T) {
	client := &MockClient{EmbedFunc: func(ctx context.Context, text string) ([]float32, error) {
		if strings.Contains(text, "broken") {
			return nil, errors.New("encoding failure")
		}
		return []float32{1, 0}, nil
	}}
	resume := "alpha beta gamma delta broken epsilon zeta eta theta"
	svc := NewService(&MockExtractor{}, client, Options{WindowSize: 3, Overlap: 0, TopK: 5})

	res, err := svc.Match(context.Background(), pythonJD, []byte(resume), ingest.FormatPDF)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	// chunks: [alpha beta gamma] [delta broken epsilon] [zeta eta theta]
	if len(res.TopChunks) != 3 {
		t.Fatalf("Expected 3 top chunks, got %d", len(res.TopChunks))
	}
	last := res.TopChunks[2]
	if last.ID != 1 || last.Similarity != 0 {
		t.Errorf("Expected failed chunk 1 ranked last with 0, got id %d sim %f", last.ID, last.Similarity)
	}
	// (3*1 + 2*1 + 1*0) / 6
	if res.FinalMatchScore != 83 {
		t.Errorf("Expected score 83, got %d", res.FinalMatchScore)
	}
}

func TestMatch_Timeout(t *testing.T) {
	tests := []struct {
		name      string
		extractor *MockExtractor
		client    *MockClient
	}{
		{
			name: "slow parser ignoring context",
			extractor: &MockExtractor{ExtractFunc: func(ctx context.Context, data []byte, format ingest.Format) (string, error) {
				time.Sleep(200 * time.Millisecond)
				return "late text", nil
			}},
			client: &MockClient{},
		},
		{
			name:      "slow scoring",
			extractor: &MockExtractor{},
			client: &MockClient{EmbedFunc: func(ctx context.Context, text string) ([]float32, error) {
				if text == pythonJD {
					return []float32{1}, nil
				}
				<-ctx.Done()
				return nil, ctx.Err()
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(tt.extractor, tt.client, Options{Timeout: 20 * time.Millisecond})

			start := time.Now()
			res, err := svc.Match(context.Background(), pythonJD, []byte("Go developer"), ingest.FormatPDF)
			if !errors.Is(err, ErrTimeout) {
				t.Fatalf("Expected ErrTimeout, got %v", err)
			}
			if res.TopChunks != nil || res.FinalMatchScore != 0 {
				t.Errorf("Expected no partial result, got %+v", res)
			}
			if elapsed := time.Since(start); elapsed > 150*time.Millisecond {
				t.Errorf("Expected deadline to cut the request short, took %v", elapsed)
			}
		})
	}
}

func TestMatch_CallerCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	svc := NewService(&MockExtractor{}, &MockClient{}, Options{})
	_, err := svc.Match(ctx, pythonJD, []byte("Go developer"), ingest.FormatPDF)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
	if errors.Is(err, ErrTimeout) || errors.Is(err, ErrInternal) {
		t.Errorf("Expected plain cancellation, got %v", err)
	}
}

func TestMatch_Deterministic(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 60; i++ {
		fmt.Fprintf(&b, "Built REST APIs in Python and Django for project %d. ", i)
		if i%10 == 9 {
			b.WriteString("\n\n")
		}
	}
	resume := []byte(b.String())
	svc := NewService(&MockExtractor{}, ai.NewTFIDFClient(nil), Options{WindowSize: 20, Workers: 8})

	first, err := svc.Match(context.Background(), pythonJD, resume, ingest.FormatPDF)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := svc.Match(context.Background(), pythonJD, resume, ingest.FormatPDF)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if again.FinalMatchScore != first.FinalMatchScore || len(again.TopChunks) != len(first.TopChunks) {
			t.Fatalf("Run %d differs: %d vs %d", i, again.FinalMatchScore, first.FinalMatchScore)
		}
		for j := range first.TopChunks {
			if again.TopChunks[j].ID != first.TopChunks[j].ID ||
				again.TopChunks[j].Similarity != first.TopChunks[j].Similarity {
				t.Fatalf("Run %d: top chunk %d differs", i, j)
			}
		}
	}
}

func TestNewService_Defaults(t *testing.T) {
	svc := NewService(&MockExtractor{}, &MockClient{}, Options{Overlap: 1.5})
	opts := svc.Options()
	if opts.WindowSize != DefaultWindowSize || opts.Overlap != DefaultOverlap ||
		opts.TopK != 5 || opts.Timeout != DefaultTimeout || opts.Workers != DefaultWorkers {
		t.Errorf("Unexpected defaults: %+v", opts)
	}
}
