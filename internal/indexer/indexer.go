// Package indexer builds a document-frequency table from a directory of
// reference resumes and job descriptions.
package indexer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/karrick/godirwalk"
	"github.com/rs/zerolog/log"

	"github.com/seanblong/resumematch/internal/ai"
	"github.com/seanblong/resumematch/internal/ingest"
	"github.com/seanblong/resumematch/internal/textnorm"
)

// FileSystemWalker defines the interface for walking directories
type FileSystemWalker interface {
	Walk(root string, options *godirwalk.Options) error
}

// FileReader defines the interface for reading files
type FileReader interface {
	ReadFile(filename string) ([]byte, error)
}

// Extractor turns a binary document into text.
type Extractor interface {
	Extract(ctx context.Context, data []byte, format ingest.Format) (string, error)
}

// DefaultFileSystemWalker implements FileSystemWalker using godirwalk
type DefaultFileSystemWalker struct{}

func (d *DefaultFileSystemWalker) Walk(root string, options *godirwalk.Options) error {
	return godirwalk.Walk(root, options)
}

// DefaultFileReader implements FileReader using os
type DefaultFileReader struct{}

func (d *DefaultFileReader) ReadFile(filename string) ([]byte, error) {
	return os.ReadFile(filename)
}

// Indexer counts, for every term, how many corpus documents contain it.
type Indexer struct {
	Root       string
	Workers    int
	Walker     FileSystemWalker
	FileReader FileReader
	Extractor  Extractor
}

// Stats summarises one run.
type Stats struct {
	Indexed int
	Skipped int
	Failed  int
}

// New creates an Indexer over root using the default PDF and DOCX extractors.
func New(root string) *Indexer {
	return NewWithDependencies(root, &DefaultFileSystemWalker{}, &DefaultFileReader{}, ingest.New())
}

// NewWithDependencies creates a new Indexer instance with custom dependencies for testing
func NewWithDependencies(root string, walker FileSystemWalker, fileReader FileReader, extractor Extractor) *Indexer {
	return &Indexer{
		Root:       root,
		Workers:    min(runtime.NumCPU(), 8),
		Walker:     walker,
		FileReader: fileReader,
		Extractor:  extractor,
	}
}

type workItem struct {
	path string
	data []byte
}

// textFormat marks plain text files that need no extraction.
const textFormat ingest.Format = "text"

// terms returns the distinct terms of one document.
func (ix *Indexer) terms(ctx context.Context, item workItem) (map[string]struct{}, error) {
	format, ok := formatFor(item.path)
	if !ok {
		return nil, nil
	}

	var text string
	if format == textFormat {
		text = string(item.data)
	} else {
		var err error
		if text, err = ix.Extractor.Extract(ctx, item.data, format); err != nil {
			return nil, err
		}
	}

	set := make(map[string]struct{})
	for _, t := range textnorm.Terms(textnorm.Normalize(text)) {
		set[t] = struct{}{}
	}
	return set, nil
}

// Run walks Root and returns the resulting table. Documents that cannot be
// read or parsed are logged and skipped.
func (ix *Indexer) Run(ctx context.Context) (*ai.IDFTable, Stats, error) {
	numWorkers := ix.Workers
	if numWorkers < 1 {
		numWorkers = 1
	}
	log.Info().Int("workers", numWorkers).Str("root", ix.Root).Msg("starting corpus indexing")

	table := &ai.IDFTable{Terms: make(map[string]int)}
	var (
		stats Stats
		mu    sync.Mutex
	)

	workChan := make(chan workItem, numWorkers*2)

	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			log.Debug().Int("worker", workerID).Msg("worker started")

			for item := range workChan {
				set, err := ix.terms(ctx, item)

				mu.Lock()
				switch {
				case err != nil:
					stats.Failed++
					log.Warn().Err(err).Str("path", item.path).Msg("failed to extract document")
				case len(set) == 0:
					stats.Skipped++
				default:
					stats.Indexed++
					table.Documents++
					for t := range set {
						table.Terms[t]++
					}
				}
				mu.Unlock()
			}

			log.Debug().Int("worker", workerID).Msg("worker finished")
		}(i)
	}

	walkErr := ix.Walker.Walk(ix.Root, &godirwalk.Options{
		Unsorted: true,
		Callback: func(path string, de *godirwalk.Dirent) error {
			// de is nil when driven by a test walker
			if de != nil && de.IsDir() {
				if shouldSkipDir(path) {
					return godirwalk.SkipThis
				}
				return nil
			}
			if _, ok := formatFor(path); !ok {
				return nil
			}

			b, err := ix.FileReader.ReadFile(path)
			if err != nil {
				log.Warn().Err(err).Str("path", path).Msg("failed to read file")
				mu.Lock()
				stats.Failed++
				mu.Unlock()
				return nil
			}

			select {
			case workChan <- workItem{path: path, data: b}:
			case <-ctx.Done():
				return ctx.Err()
			}
			return nil
		},
	})

	close(workChan)
	wg.Wait()

	if walkErr != nil {
		return nil, stats, walkErr
	}
	if err := ctx.Err(); err != nil {
		return nil, stats, err
	}
	if table.Documents == 0 {
		return nil, stats, errors.New("no documents indexed under " + ix.Root)
	}

	log.Info().Int("documents", table.Documents).
		Int("terms", len(table.Terms)).
		Int("skipped", stats.Skipped).
		Int("failed", stats.Failed).
		Msg("corpus indexed")
	return table, stats, nil
}

func formatFor(path string) (ingest.Format, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return ingest.FormatPDF, true
	case ".docx":
		return ingest.FormatDOCX, true
	case ".txt", ".md":
		return textFormat, true
	}
	return "", false
}

func shouldSkipDir(path string) bool {
	switch filepath.Base(path) {
	case ".git", "node_modules", "vendor", ".cache":
		return true
	}
	return false
}
