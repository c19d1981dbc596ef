package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pvdheide/clinform/internal/model"
	"github.com/pvdheide/clinform/internal/pipeline"
)

var (
	conceptsPath   string
	rulesPath      string
	matchAttr      string
	proximity      int
	fuzzy          int
	fuzzyMinLen    int
	resolveOverlap bool
	pseudoExact    bool
	outJSON        string
	outMD          string
	nonDefaultOnly bool
	processTimeout time.Duration
	llmProvider    string
	llmModel       string
)

// processCmd represents the process command
var processCmd = &cobra.Command{
	Use:   "process <file>",
	Short: "Process a single document and extract entities with qualifiers",
	Long: `Process runs one document (plain text or HTML) through the pipeline:
- Tokenize and normalize the text
- Split sentences
- Match entities against the concept dictionary
- Assign qualifiers (presence, temporality, experiencer) from context rules

Example:
  clinform process note.txt --concepts concepts.yaml
  clinform process note.txt --concepts concepts.yaml --fuzzy 1 --proximity 1
  clinform process brief.html --concepts concepts.csv --json report.json --md report.md
  clinform process note.txt --concepts concepts.yaml --llm openai --llm-model gpt-4o-mini`,
	Args: cobra.ExactArgs(1),
	RunE: runProcess,
}

func init() {
	rootCmd.AddCommand(processCmd)

	// Dictionary and rules
	processCmd.Flags().StringVar(&conceptsPath, "concepts", "", "concept dictionary file (yaml, json or csv)")
	processCmd.Flags().StringVar(&rulesPath, "rules", "", "context rules file (default: embedded Dutch rules)")

	// Matching flags
	processCmd.Flags().StringVar(&matchAttr, "attr", "norm", "token attribute to match on (text or norm)")
	processCmd.Flags().IntVar(&proximity, "proximity", 0, "allowed tokens between phrase words")
	processCmd.Flags().IntVar(&fuzzy, "fuzzy", 0, "allowed edit distance per phrase word")
	processCmd.Flags().IntVar(&fuzzyMinLen, "fuzzy-min-len", 2, "minimum word length for fuzzy matching")
	processCmd.Flags().BoolVar(&resolveOverlap, "resolve-overlap", false, "keep only the longest of overlapping entities")
	processCmd.Flags().BoolVar(&pseudoExact, "pseudo-exact", false, "pseudo terms suppress only exact matches, not overlaps")

	// Output flags
	processCmd.Flags().StringVar(&outJSON, "json", "", "output JSON path")
	processCmd.Flags().StringVar(&outMD, "md", "", "output Markdown path")
	processCmd.Flags().BoolVar(&nonDefaultOnly, "non-default-only", false, "omit default qualifier values from output")
	processCmd.Flags().DurationVar(&processTimeout, "timeout", time.Minute, "overall processing timeout")

	// LLM flags
	processCmd.Flags().StringVar(&llmProvider, "llm", "", "qualifier detector backend (openai; empty for rule-based)")
	processCmd.Flags().StringVar(&llmModel, "llm-model", "gpt-4o-mini", "LLM model name")
}

func runProcess(cmd *cobra.Command, args []string) error {
	file := args[0]
	ctx, cancel := context.WithTimeout(context.Background(), processTimeout)
	defer cancel()

	cfg, err := processConfig(cmd)
	if err != nil {
		return err
	}

	if verbose {
		fmt.Fprintf(os.Stderr, "Processing: %s\n", file)
		fmt.Fprintf(os.Stderr, "Concepts: %s\n", cfg.Concepts.Path)
		if cfg.Rules.Path != "" {
			fmt.Fprintf(os.Stderr, "Rules: %s\n", cfg.Rules.Path)
		} else {
			fmt.Fprintf(os.Stderr, "Rules: embedded defaults\n")
		}
		fmt.Fprintln(os.Stderr)
	}

	p, err := pipeline.New(cfg)
	if err != nil {
		return err
	}

	report, err := p.ProcessFile(ctx, file)
	if err != nil {
		return fmt.Errorf("process failed: %w", err)
	}

	if verbose {
		fmt.Fprintf(os.Stderr, "✓ %d tokens, %d sentences\n", report.TokenCount, report.SentenceCount)
		fmt.Fprintf(os.Stderr, "✓ Matched %d entities\n", len(report.Entities))
		fmt.Fprintln(os.Stderr)
	}

	renderer := pipeline.NewRenderer(cfg.Output.DefaultsInReport)

	if outJSON != "" {
		if err := renderer.RenderJSON(report, outJSON); err != nil {
			return fmt.Errorf("render JSON: %w", err)
		}
		if verbose {
			fmt.Fprintf(os.Stderr, "✓ Wrote JSON: %s\n", outJSON)
		}
	}

	if outMD != "" {
		if err := renderer.RenderMarkdown(report, outMD); err != nil {
			return fmt.Errorf("render markdown: %w", err)
		}
		if verbose {
			fmt.Fprintf(os.Stderr, "✓ Wrote Markdown: %s\n", outMD)
		}
	}

	if outJSON == "" && outMD == "" {
		return renderer.WriteJSON(report, os.Stdout)
	}

	renderer.RenderSummary(report)
	return nil
}

// processConfig merges the config file with the process command's flags.
func processConfig(cmd *cobra.Command) (*model.Config, error) {
	cfg := loadConfig()

	if conceptsPath != "" {
		cfg.Concepts.Path = conceptsPath
	}
	if rulesPath != "" {
		cfg.Rules.Path = rulesPath
	}
	if cfg.Concepts.Path == "" {
		return nil, fmt.Errorf("no concept dictionary: pass --concepts or set concepts.path in the config file")
	}

	flags := cmd.Flags()
	if flags.Changed("attr") {
		cfg.Matching.Attr = matchAttr
	}
	if flags.Changed("proximity") {
		cfg.Matching.Proximity = proximity
	}
	if flags.Changed("fuzzy") {
		cfg.Matching.Fuzzy = fuzzy
	}
	if flags.Changed("fuzzy-min-len") {
		cfg.Matching.FuzzyMinLen = fuzzyMinLen
	}
	if flags.Changed("resolve-overlap") {
		cfg.Matching.ResolveOverlap = resolveOverlap
	}
	if flags.Changed("pseudo-exact") {
		cfg.Matching.PseudoExact = pseudoExact
	}
	if nonDefaultOnly {
		cfg.Output.DefaultsInReport = false
	}

	if llmProvider != "" {
		cfg.LLM.Provider = llmProvider
		cfg.LLM.Model = llmModel

		if cfg.LLM.APIKey == "" {
			cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
		}
		if cfg.LLM.APIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY environment variable not set")
		}
		if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" && cfg.LLM.BaseURL == "" {
			cfg.LLM.BaseURL = baseURL
		}
	}

	return cfg, nil
}
