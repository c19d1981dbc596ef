// Package pipeline assembles the processing stages into one document
// pipeline: tokenize, normalize, split sentences, match entities, detect
// qualifiers, and render the result as a report.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/pvdheide/clinform/internal/doc"
	"github.com/pvdheide/clinform/internal/entity"
	"github.com/pvdheide/clinform/internal/model"
	"github.com/pvdheide/clinform/internal/qualifier"
	"github.com/pvdheide/clinform/internal/tokenize"
)

// Stage is one document processing step. Stages run in order and annotate
// the document in place; a stage error aborts the run.
type Stage interface {
	Name() string
	Process(ctx context.Context, d *doc.Document) error
}

// Pipeline runs documents through the configured stages. It is read-only
// after construction and safe for concurrent use across documents.
type Pipeline struct {
	stages  []Stage
	config  *model.Config
	verbose bool
}

// New builds a pipeline from configuration: the concept dictionary is
// loaded into the entity matcher, and the qualifier detector is either the
// rule-based engine (embedded rules or a rule file) or a model-backed one
// when an LLM provider is configured.
func New(cfg *model.Config) (*Pipeline, error) {
	matchAttr, err := doc.ParseAttr(cfg.Matching.Attr)
	if err != nil {
		return nil, fmt.Errorf("matching config: %w", err)
	}

	m := entity.NewMatcher(entity.Options{
		Defaults: entity.Defaults{
			Attr:        matchAttr,
			Proximity:   cfg.Matching.Proximity,
			Fuzzy:       cfg.Matching.Fuzzy,
			FuzzyMinLen: cfg.Matching.FuzzyMinLen,
		},
		ResolveOverlap: cfg.Matching.ResolveOverlap,
		PseudoExact:    cfg.Matching.PseudoExact,
	})

	if cfg.Concepts.Path == "" {
		return nil, fmt.Errorf("no concepts file configured")
	}
	concepts, err := entity.LoadConcepts(cfg.Concepts.Path)
	if err != nil {
		return nil, err
	}
	if err := entity.LoadInto(m, concepts); err != nil {
		return nil, err
	}

	rules, err := loadRules(cfg)
	if err != nil {
		return nil, err
	}

	detector, err := buildDetector(cfg, rules)
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		stages: []Stage{
			tokenize.NewNormalizer(),
			tokenize.NewSentencizer(),
			&entity.Stage{Matcher: m},
			&qualifier.Stage{Detector: detector},
		},
		config:  cfg,
		verbose: cfg.Output.Verbose,
	}, nil
}

func loadRules(cfg *model.Config) (*qualifier.RuleSet, error) {
	if cfg.Rules.Path == "" {
		return qualifier.DefaultRules()
	}

	attr, err := doc.ParseAttr(cfg.Rules.Attr)
	if err != nil {
		return nil, fmt.Errorf("rules config: %w", err)
	}
	return qualifier.LoadRulesFile(cfg.Rules.Path, attr)
}

func buildDetector(cfg *model.Config, rules *qualifier.RuleSet) (qualifier.Detector, error) {
	switch cfg.LLM.Provider {
	case "":
		return qualifier.NewContextAlgorithm(rules)

	case "openai":
		return qualifier.NewLLMDetector(qualifier.LLMConfig{
			Model:     cfg.LLM.Model,
			APIKey:    cfg.LLM.APIKey,
			BaseURL:   cfg.LLM.BaseURL,
			Timeout:   cfg.LLM.Timeout,
			MaxTokens: cfg.LLM.MaxTokens,
		}, rules.Classes())

	default:
		return nil, fmt.Errorf("unknown LLM provider: %s (supported: openai)", cfg.LLM.Provider)
	}
}

// ProcessText runs one document through all stages and builds its report.
func (p *Pipeline) ProcessText(ctx context.Context, source, text string) (*model.Report, error) {
	tokens := tokenize.Tokenize(text)

	d, err := doc.New(text, tokens)
	if err != nil {
		return nil, fmt.Errorf("tokenize %s: %w", source, err)
	}

	for _, stage := range p.stages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := stage.Process(ctx, d); err != nil {
			return nil, fmt.Errorf("stage %s: %w", stage.Name(), err)
		}
		if p.verbose {
			fmt.Fprintf(os.Stderr, "✓ %s: %s\n", source, stage.Name())
		}
	}

	return buildReport(source, d), nil
}

// ProcessFile reads a document file (plain text or HTML) and processes it.
func (p *Pipeline) ProcessFile(ctx context.Context, path string) (*model.Report, error) {
	text, err := ReadDocument(path)
	if err != nil {
		return nil, err
	}
	return p.ProcessText(ctx, path, text)
}

// buildReport flattens a processed document into the report schema.
func buildReport(source string, d *doc.Document) *model.Report {
	report := &model.Report{
		Source:        source,
		ProcessedAt:   time.Now().UTC(),
		TextLength:    len(d.Text),
		TokenCount:    len(d.Tokens),
		SentenceCount: len(d.Sentences),
		Entities:      make([]model.EntityResult, 0, len(d.Entities)),
	}

	for _, ent := range d.Entities {
		result := model.EntityResult{
			Text:       ent.Text(),
			Label:      ent.Label,
			StartChar:  ent.CharStart(),
			EndChar:    ent.CharEnd(),
			StartToken: ent.Start,
			EndToken:   ent.End,
		}
		for _, q := range ent.Qualifiers() {
			result.Qualifiers = append(result.Qualifiers, model.QualifierResult{
				Name:      q.Name,
				Value:     q.Value,
				IsDefault: q.IsDefault,
				Prob:      q.Prob,
			})
		}
		report.Entities = append(report.Entities, result)
	}

	return report
}
