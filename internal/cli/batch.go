package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pvdheide/clinform/internal/cache"
	"github.com/pvdheide/clinform/internal/model"
	"github.com/pvdheide/clinform/internal/pipeline"
	"github.com/pvdheide/clinform/internal/worker"
)

var (
	batchWorkers  int
	outputDir     string
	batchTimeout  time.Duration
	docsPerSecond float64
	noCache       bool
	cacheDir      string
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <dir|list.txt>",
	Short: "Process multiple documents in parallel",
	Long: `Batch processes many documents concurrently:
- Collect .txt/.html files from a directory, or read paths from a list file
- Process documents in parallel with a configurable worker count
- Serve cached reports for documents that have not changed
- Write one JSON report per document

Example:
  clinform batch ./notes --concepts concepts.yaml
  clinform batch ./notes --concepts concepts.yaml --workers 8 --output-dir ./reports
  clinform batch paths.txt --concepts concepts.yaml --docs-per-second 10`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	// Dictionary and rules (shared variables with the process command)
	batchCmd.Flags().StringVar(&conceptsPath, "concepts", "", "concept dictionary file (yaml, json or csv)")
	batchCmd.Flags().StringVar(&rulesPath, "rules", "", "context rules file (default: embedded Dutch rules)")

	// Concurrency flags
	batchCmd.Flags().IntVar(&batchWorkers, "workers", runtime.NumCPU(), "number of concurrent workers")
	batchCmd.Flags().Float64Var(&docsPerSecond, "docs-per-second", 0, "throughput cap (0 = unlimited)")
	batchCmd.Flags().StringVar(&outputDir, "output-dir", "./clinform-reports", "output directory for reports")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 10*time.Minute, "total timeout for batch processing")

	// Cache flags
	batchCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the report cache")
	batchCmd.Flags().StringVar(&cacheDir, "cache-dir", "", "report cache directory (default: ~/.clinform/cache)")

	// Output flags
	batchCmd.Flags().BoolVar(&nonDefaultOnly, "non-default-only", false, "omit default qualifier values from output")

	// LLM flags
	batchCmd.Flags().StringVar(&llmProvider, "llm", "", "qualifier detector backend (openai; empty for rule-based)")
	batchCmd.Flags().StringVar(&llmModel, "llm-model", "gpt-4o-mini", "LLM model name")
}

func runBatch(cmd *cobra.Command, args []string) error {
	input := args[0]
	ctx, cancel := context.WithTimeout(context.Background(), batchTimeout)
	defer cancel()

	cfg, err := processConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("workers") {
		cfg.Concurrency.Workers = batchWorkers
	}
	if cmd.Flags().Changed("docs-per-second") {
		cfg.Concurrency.DocsPerSecond = docsPerSecond
	}
	if noCache {
		cfg.Cache.Enabled = false
	}
	if cacheDir != "" {
		cfg.Cache.Dir = cacheDir
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Clinform Batch Processing\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Input:        %s\n", input)
	fmt.Fprintf(os.Stderr, "  Concepts:     %s\n", cfg.Concepts.Path)
	fmt.Fprintf(os.Stderr, "  Workers:      %d\n", cfg.Concurrency.Workers)
	fmt.Fprintf(os.Stderr, "  Output dir:   %s\n", outputDir)
	fmt.Fprintf(os.Stderr, "  Timeout:      %v\n", batchTimeout)
	fmt.Fprintf(os.Stderr, "\n")

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	p, err := pipeline.New(cfg)
	if err != nil {
		return err
	}

	processor := worker.NewBatchProcessor(p, worker.BatchOptions{
		Workers:       cfg.Concurrency.Workers,
		DocsPerSecond: cfg.Concurrency.DocsPerSecond,
		Burst:         cfg.Concurrency.Burst,
		Cache:         batchCache(cfg),
		Fingerprint:   configFingerprint(cfg),
	})

	results, err := collectAndProcess(ctx, processor, input)
	if err != nil {
		return err
	}

	renderer := pipeline.NewRenderer(cfg.Output.DefaultsInReport)

	successCount := 0
	failureCount := 0
	cachedCount := 0

	for _, result := range results {
		if result.Error != nil {
			failureCount++
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", result.Path, result.Error)
			continue
		}

		successCount++
		if result.Cached {
			cachedCount++
		}

		jsonPath := filepath.Join(outputDir, reportFilename(result.Path))
		if err := renderer.RenderJSON(result.Report, jsonPath); err != nil {
			fmt.Fprintf(os.Stderr, "✗ %s: failed to write JSON: %v\n", result.Path, err)
			continue
		}

		fmt.Fprintf(os.Stderr, "✓ %s (%d entities)\n", result.Path, len(result.Report.Entities))
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Batch Complete\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Total:     %d documents\n", len(results))
	fmt.Fprintf(os.Stderr, "  Success:   %d (%d from cache)\n", successCount, cachedCount)
	fmt.Fprintf(os.Stderr, "  Failures:  %d\n", failureCount)
	fmt.Fprintf(os.Stderr, "  Output:    %s\n", outputDir)
	fmt.Fprintf(os.Stderr, "\n")

	if failureCount > 0 {
		return fmt.Errorf("%d of %d documents failed", failureCount, len(results))
	}
	return nil
}

// collectAndProcess treats the input as a directory of documents or as a
// list file of paths.
func collectAndProcess(ctx context.Context, processor *worker.BatchProcessor, input string) ([]*worker.DocResult, error) {
	info, err := os.Stat(input)
	if err != nil {
		return nil, fmt.Errorf("stat input: %w", err)
	}

	if info.IsDir() {
		return processor.ProcessDir(ctx, input)
	}

	paths, err := worker.ReadPathsFromFile(input)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no document paths in %s", input)
	}
	return processor.ProcessPaths(ctx, paths), nil
}

// batchCache builds the layered report cache, or nil when disabled.
func batchCache(cfg *model.Config) cache.Cache {
	if !cfg.Cache.Enabled {
		return nil
	}

	dir := cfg.Cache.Dir
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil
		}
		dir = filepath.Join(home, ".clinform", "cache")
	}

	return cache.NewLayeredCache(cfg.Cache.MemoryTTL, dir, cfg.Cache.DiskTTL)
}

// configFingerprint summarizes the settings that affect extraction output,
// so cache entries from a different configuration never match.
func configFingerprint(cfg *model.Config) string {
	return fmt.Sprintf("concepts=%s;rules=%s;attr=%s;prox=%d;fuzzy=%d;fml=%d;overlap=%t;pseudo=%t;llm=%s/%s",
		cfg.Concepts.Path, cfg.Rules.Path,
		cfg.Matching.Attr, cfg.Matching.Proximity, cfg.Matching.Fuzzy, cfg.Matching.FuzzyMinLen,
		cfg.Matching.ResolveOverlap, cfg.Matching.PseudoExact,
		cfg.LLM.Provider, cfg.LLM.Model)
}

// reportFilename derives the report file name from the document path.
func reportFilename(docPath string) string {
	base := filepath.Base(docPath)
	ext := filepath.Ext(base)
	base = strings.TrimSuffix(base, ext)
	return sanitizeFilename(base) + ".json"
}

// sanitizeFilename replaces characters that are unsafe in file names.
func sanitizeFilename(s string) string {
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
		" ", "-",
	)
	s = replacer.Replace(s)

	if len(s) > 100 {
		s = s[:100]
	}
	if s == "" {
		s = "report"
	}
	return s
}
