package ai

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/seanblong/resumematch/internal/textnorm"
)

// ErrInvalidText is returned when text cannot be encoded.
var ErrInvalidText = errors.New("text is not valid UTF-8")

// IDFTable holds document frequencies counted over a reference corpus.
// It is read-only once loaded.
type IDFTable struct {
	Documents int            `yaml:"documents"`
	Terms     map[string]int `yaml:"terms"`
}

// LoadIDFTable reads a table written by SaveIDFTable.
func LoadIDFTable(path string) (*IDFTable, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read idf table: %w", err)
	}
	var t IDFTable
	if err := yaml.Unmarshal(b, &t); err != nil {
		return nil, fmt.Errorf("parse idf table %s: %w", path, err)
	}
	if t.Documents < 0 {
		return nil, fmt.Errorf("idf table %s: negative document count", path)
	}
	if t.Terms == nil {
		t.Terms = map[string]int{}
	}
	return &t, nil
}

// SaveIDFTable writes t as YAML to path.
func SaveIDFTable(path string, t *IDFTable) error {
	b, err := yaml.Marshal(t)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

// TFIDFClient builds a term space per request from the job description and
// resume chunks, optionally seeded with a reference corpus. It needs no
// network and gives identical vectors for identical inputs.
type TFIDFClient struct {
	prior *IDFTable
}

func NewTFIDFClient(prior *IDFTable) *TFIDFClient {
	return &TFIDFClient{prior: prior}
}

func (c *TFIDFClient) Prepare(ctx context.Context, corpus []string) (Encoder, error) {
	df := make(map[string]int)
	for _, text := range corpus {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		seen := make(map[string]struct{})
		for _, t := range textnorm.Terms(text) {
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			df[t]++
		}
	}

	vocab := make([]string, 0, len(df))
	for t := range df {
		vocab = append(vocab, t)
	}
	sort.Strings(vocab)

	n := len(corpus)
	if c.prior != nil {
		n += c.prior.Documents
	}
	space := &tfidfSpace{
		index: make(map[string]int, len(vocab)),
		idf:   make([]float64, len(vocab)),
	}
	for i, t := range vocab {
		d := df[t]
		if c.prior != nil {
			d += c.prior.Terms[t]
		}
		if d > n {
			d = n
		}
		space.index[t] = i
		space.idf[i] = math.Log(float64(1+n)/float64(1+d)) + 1
	}
	return space, nil
}

func (c *TFIDFClient) Dim() int { return 0 }

func (c *TFIDFClient) Model() string { return string(ProviderTFIDF) }

type tfidfSpace struct {
	index map[string]int
	idf   []float64
}

// Embed weights term counts sublinearly by 1+ln(tf). Terms outside the
// prepared vocabulary are ignored.
func (s *tfidfSpace) Embed(ctx context.Context, text string) ([]float32, error) {
	if !utf8.ValidString(text) {
		return nil, ErrInvalidText
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	counts := make(map[int]int)
	for _, t := range textnorm.Terms(text) {
		if i, ok := s.index[t]; ok {
			counts[i]++
		}
	}
	vec := make([]float32, len(s.idf))
	for i, tf := range counts {
		vec[i] = float32((1 + math.Log(float64(tf))) * s.idf[i])
	}
	return vec, nil
}
