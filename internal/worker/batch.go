package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pvdheide/clinform/internal/cache"
	"github.com/pvdheide/clinform/internal/model"
	"github.com/pvdheide/clinform/internal/pipeline"
)

// Processor runs one document through a pipeline.
type Processor interface {
	ProcessText(ctx context.Context, source, text string) (*model.Report, error)
}

// DocResult is the outcome of processing one document file.
type DocResult struct {
	Path   string
	Report *model.Report
	Cached bool
	Error  error
}

// GetError implements the pool result contract.
func (r *DocResult) GetError() error { return r.Error }

// docJob processes one file, consulting the cache first.
type docJob struct {
	path  string
	batch *BatchProcessor
}

// Execute reads the file, serves a cached report when the text and
// configuration are unchanged, and otherwise runs the pipeline.
func (j *docJob) Execute(ctx context.Context) Result {
	if err := j.batch.limiter.Wait(ctx); err != nil {
		return &DocResult{Path: j.path, Error: err}
	}

	text, err := pipeline.ReadDocument(j.path)
	if err != nil {
		return &DocResult{Path: j.path, Error: err}
	}

	var key string
	if j.batch.cache != nil {
		key = cache.Key(text, j.batch.fingerprint)
		if data, found := j.batch.cache.Get(key); found {
			var report model.Report
			if err := json.Unmarshal(data, &report); err == nil {
				return &DocResult{Path: j.path, Report: &report, Cached: true}
			}
		}
	}

	report, err := j.batch.processor.ProcessText(ctx, j.path, text)
	if err != nil {
		return &DocResult{Path: j.path, Error: err}
	}

	if j.batch.cache != nil {
		if data, err := json.Marshal(report); err == nil {
			_ = j.batch.cache.Set(key, data, 0)
		}
	}

	return &DocResult{Path: j.path, Report: report}
}

// BatchProcessor processes many document files concurrently.
type BatchProcessor struct {
	processor   Processor
	workers     int
	limiter     *Limiter
	cache       cache.Cache
	fingerprint string
}

// BatchOptions configure a BatchProcessor.
type BatchOptions struct {
	// Workers processing documents in parallel.
	Workers int

	// DocsPerSecond caps throughput; 0 disables the limiter.
	DocsPerSecond float64

	// Burst allows short bursts above the sustained rate.
	Burst int

	// Cache serves reports for unchanged documents; nil disables caching.
	Cache cache.Cache

	// Fingerprint binds cache entries to the matcher and rule
	// configuration that produced them.
	Fingerprint string
}

// NewBatchProcessor creates a batch processor around a pipeline.
func NewBatchProcessor(processor Processor, opts BatchOptions) *BatchProcessor {
	return &BatchProcessor{
		processor:   processor,
		workers:     opts.Workers,
		limiter:     NewLimiter(opts.DocsPerSecond, opts.Burst),
		cache:       opts.Cache,
		fingerprint: opts.Fingerprint,
	}
}

// ProcessPaths processes the given files concurrently. Results come back
// ordered by path.
func (b *BatchProcessor) ProcessPaths(ctx context.Context, paths []string) []*DocResult {
	if len(paths) == 0 {
		return []*DocResult{}
	}

	pool := NewPool(b.workers)
	pool.Start()

	// Propagate caller cancellation into the pool's own context.
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			pool.Shutdown()
		case <-done:
		}
	}()

	for _, path := range paths {
		pool.Submit(&docJob{path: path, batch: b})
	}

	results := pool.Wait()
	close(done)

	docResults := make([]*DocResult, 0, len(results))
	for _, result := range results {
		docResults = append(docResults, result.(*DocResult))
	}
	sort.Slice(docResults, func(i, j int) bool { return docResults[i].Path < docResults[j].Path })

	return docResults
}

// ProcessDir collects the document files under a directory and processes
// them concurrently.
func (b *BatchProcessor) ProcessDir(ctx context.Context, dir string) ([]*DocResult, error) {
	paths, err := CollectFiles(dir)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no document files (.txt, .html, .htm) under %s", dir)
	}
	return b.ProcessPaths(ctx, paths), nil
}

// CollectFiles walks a directory tree and returns the document files it
// contains, sorted by path.
func CollectFiles(dir string) ([]string, error) {
	var paths []string

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".txt", ".html", ".htm":
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}

	sort.Strings(paths)
	return paths, nil
}

// ReadPathsFromFile reads document paths from a list file, one per line,
// skipping blanks and comment lines.
func ReadPathsFromFile(listPath string) ([]string, error) {
	data, err := os.ReadFile(listPath)
	if err != nil {
		return nil, fmt.Errorf("read list file: %w", err)
	}

	var paths []string
	seen := make(map[string]bool)

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !seen[line] {
			seen[line] = true
			paths = append(paths, line)
		}
	}

	return paths, nil
}
