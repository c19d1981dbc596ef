package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pvdheide/clinform/internal/doc"
	"github.com/pvdheide/clinform/internal/entity"
	"github.com/pvdheide/clinform/internal/qualifier"
)

// validateCmd represents the validate command
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a concept dictionary and context rules without processing",
	Long: `Validate loads the concept dictionary and the context rules and
reports every problem a processing run would hit: malformed terms, empty
pattern lists, rules referencing undeclared qualifier values, invalid
scopes or directions.

Example:
  clinform validate --concepts concepts.yaml
  clinform validate --concepts concepts.csv --rules rules.json`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringVar(&conceptsPath, "concepts", "", "concept dictionary file (yaml, json or csv)")
	validateCmd.Flags().StringVar(&rulesPath, "rules", "", "context rules file (default: embedded Dutch rules)")
	validateCmd.Flags().StringVar(&matchAttr, "attr", "norm", "token attribute to match on (text or norm)")
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	if conceptsPath != "" {
		cfg.Concepts.Path = conceptsPath
	}
	if rulesPath != "" {
		cfg.Rules.Path = rulesPath
	}

	failed := false

	if cfg.Concepts.Path == "" {
		fmt.Fprintln(os.Stderr, "- concepts: nothing to validate (pass --concepts)")
	} else if err := validateConcepts(cfg.Concepts.Path, matchAttr); err != nil {
		failed = true
		fmt.Fprintf(os.Stderr, "✗ concepts: %v\n", err)
	}

	if err := validateRules(cfg.Rules.Path); err != nil {
		failed = true
		fmt.Fprintf(os.Stderr, "✗ rules: %v\n", err)
	}

	if failed {
		return fmt.Errorf("validation failed")
	}
	return nil
}

func validateConcepts(path, attrName string) error {
	attr, err := doc.ParseAttr(attrName)
	if err != nil {
		return err
	}

	concepts, err := entity.LoadConcepts(path)
	if err != nil {
		return err
	}

	m := entity.NewMatcher(entity.Options{
		Defaults: entity.Defaults{Attr: attr, FuzzyMinLen: 2},
	})
	if err := entity.LoadInto(m, concepts); err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "✓ concepts: %d concepts, %d terms (%s)\n", len(concepts), m.Len(), path)
	return nil
}

func validateRules(path string) error {
	var (
		rules *qualifier.RuleSet
		err   error
	)

	if path == "" {
		rules, err = qualifier.DefaultRules()
		path = "embedded defaults"
	} else {
		rules, err = qualifier.LoadRulesFile(path, doc.AttrNorm)
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "✓ rules: %d qualifier classes, %d rules (%s)\n",
		len(rules.Classes()), rules.Len(), path)
	return nil
}
