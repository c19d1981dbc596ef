package qualifier

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pvdheide/clinform/internal/doc"
	"github.com/pvdheide/clinform/internal/matcher"
	"github.com/pvdheide/clinform/internal/tokenize"
)

//go:embed data/context_rules.json
var defaultRulesJSON []byte

// Direction states where a trigger's effect extends relative to its match,
// or that the rule is a pseudo (suppression) or termination (scope cutting)
// rule.
type Direction int

const (
	Preceding Direction = iota
	Following
	Bidirectional
	Pseudo
	Termination
)

var directionNames = map[string]Direction{
	"preceding":     Preceding,
	"following":     Following,
	"bidirectional": Bidirectional,
	"pseudo":        Pseudo,
	"termination":   Termination,
}

// ParseDirection parses a rule direction name.
func ParseDirection(s string) (Direction, error) {
	d, ok := directionNames[strings.ToLower(s)]
	if !ok {
		return Preceding, fmt.Errorf("unknown rule direction %q", s)
	}
	return d, nil
}

// String returns the direction name.
func (d Direction) String() string {
	for name, dir := range directionNames {
		if dir == d {
			return name
		}
	}
	return "unknown"
}

// Rule is one compiled context rule: a trigger pattern carrying a qualifier
// value, a direction, and an optional scope limit. Termination rules carry
// the qualifier only to identify which trigger group they bound; they never
// assign it.
type Rule struct {
	Qualifier doc.Qualifier
	Direction Direction
	// MaxScope limits how many tokens the trigger's effect extends over;
	// 0 means bounded by the sentence only.
	MaxScope int

	pattern *matcher.Pattern
}

// RuleSet is the compiled context rule store: qualifier classes plus the
// trigger rules, indexed for the pattern matcher. Read-only after loading
// and safe to share across concurrent document processing.
type RuleSet struct {
	classes  map[string]*Class
	rules    map[string]*Rule
	patterns []*matcher.Pattern
	// Attr is the token attribute phrase triggers match on.
	Attr doc.Attr
}

// NewRuleSet creates an empty rule store whose phrase triggers match on the
// given token attribute.
func NewRuleSet(attr doc.Attr) *RuleSet {
	return &RuleSet{
		classes: make(map[string]*Class),
		rules:   make(map[string]*Rule),
		Attr:    attr,
	}
}

// Classes returns the declared qualifier classes.
func (rs *RuleSet) Classes() map[string]*Class { return rs.classes }

// Len returns the number of compiled rules.
func (rs *RuleSet) Len() int { return len(rs.rules) }

// AddClass declares a qualifier class.
func (rs *RuleSet) AddClass(class *Class) error {
	if _, dup := rs.classes[class.Name]; dup {
		return fmt.Errorf("qualifier class %q declared twice", class.Name)
	}
	rs.classes[class.Name] = class
	return nil
}

// AddPhraseRule compiles a phrase trigger for a qualifier value.
func (rs *RuleSet) AddPhraseRule(q doc.Qualifier, direction Direction, maxScope int, phrase string) error {
	id := rs.nextID()

	words := tokenize.Split(phrase)
	if rs.Attr == doc.AttrNorm {
		for i, w := range words {
			words[i] = tokenize.Normalize(w)
		}
	}

	pattern, err := matcher.CompilePhrase(id, words, matcher.PhraseOpts{Attr: rs.Attr})
	if err != nil {
		return fmt.Errorf("rule %s (%s): %w", q, direction, err)
	}

	return rs.add(id, &Rule{Qualifier: q, Direction: direction, MaxScope: maxScope, pattern: pattern})
}

// AddTokenRule compiles a structured token-pattern trigger.
func (rs *RuleSet) AddTokenRule(q doc.Qualifier, direction Direction, maxScope int, constraints []matcher.Constraint) error {
	id := rs.nextID()

	pattern, err := matcher.CompileTokens(id, constraints)
	if err != nil {
		return fmt.Errorf("rule %s (%s): %w", q, direction, err)
	}

	return rs.add(id, &Rule{Qualifier: q, Direction: direction, MaxScope: maxScope, pattern: pattern})
}

func (rs *RuleSet) add(id string, rule *Rule) error {
	if rule.MaxScope < 0 {
		return fmt.Errorf("rule %s: max_scope must be at least 1", rule.Qualifier)
	}
	rs.rules[id] = rule
	rs.patterns = append(rs.patterns, rule.pattern)
	return nil
}

func (rs *RuleSet) nextID() string {
	return "rule_" + strconv.Itoa(len(rs.rules))
}

// ruleDefinition mirrors the JSON rule file schema.
type ruleDefinition struct {
	Qualifiers []classDefinition `json:"qualifiers"`
	Rules      []struct {
		Qualifier string            `json:"qualifier"`
		Direction string            `json:"direction"`
		MaxScope  *int              `json:"max_scope"`
		Patterns  []json.RawMessage `json:"patterns"`
	} `json:"rules"`
}

type classDefinition struct {
	Name       string         `json:"name"`
	Values     []string       `json:"values"`
	Default    string         `json:"default"`
	Priorities map[string]int `json:"priorities"`
}

// ReadRules parses and compiles a JSON rule definition. All validation is
// fatal here, at build time: a rule referencing an undeclared qualifier
// value, an empty pattern list or a bad scope fails the whole load, so a
// run never starts on a partially valid rule store.
func ReadRules(r io.Reader, attr doc.Attr) (*RuleSet, error) {
	var def ruleDefinition
	decoder := json.NewDecoder(r)
	if err := decoder.Decode(&def); err != nil {
		return nil, fmt.Errorf("parse rules: %w", err)
	}

	rs := NewRuleSet(attr)

	for _, cd := range def.Qualifiers {
		class, err := NewClass(cd.Name, cd.Values, cd.Default, cd.Priorities)
		if err != nil {
			return nil, err
		}
		if err := rs.AddClass(class); err != nil {
			return nil, err
		}
	}

	for i, rd := range def.Rules {
		q, err := rs.resolveQualifier(rd.Qualifier)
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}

		direction, err := ParseDirection(rd.Direction)
		if err != nil {
			return nil, fmt.Errorf("rule %d (%s): %w", i, rd.Qualifier, err)
		}

		// max_scope left out means sentence-bounded.
		maxScope := 0
		if rd.MaxScope != nil {
			if *rd.MaxScope < 1 {
				return nil, fmt.Errorf("rule %d (%s): max_scope must be at least 1", i, rd.Qualifier)
			}
			maxScope = *rd.MaxScope
		}

		if len(rd.Patterns) == 0 {
			return nil, fmt.Errorf("rule %d (%s): empty pattern list", i, rd.Qualifier)
		}

		for _, raw := range rd.Patterns {
			trimmed := strings.TrimSpace(string(raw))
			switch {
			case strings.HasPrefix(trimmed, "\""):
				var phrase string
				if err := json.Unmarshal(raw, &phrase); err != nil {
					return nil, fmt.Errorf("rule %d (%s): %w", i, rd.Qualifier, err)
				}
				if err := rs.AddPhraseRule(q, direction, maxScope, phrase); err != nil {
					return nil, err
				}

			case strings.HasPrefix(trimmed, "["):
				var rcs []matcher.RawConstraint
				if err := json.Unmarshal(raw, &rcs); err != nil {
					return nil, fmt.Errorf("rule %d (%s): %w", i, rd.Qualifier, err)
				}
				constraints := make([]matcher.Constraint, 0, len(rcs))
				for _, rc := range rcs {
					c, err := rc.Compile(attr)
					if err != nil {
						return nil, fmt.Errorf("rule %d (%s): %w", i, rd.Qualifier, err)
					}
					constraints = append(constraints, c)
				}
				if err := rs.AddTokenRule(q, direction, maxScope, constraints); err != nil {
					return nil, err
				}

			default:
				return nil, fmt.Errorf("rule %d (%s): pattern must be a phrase string or a constraint list", i, rd.Qualifier)
			}
		}
	}

	return rs, nil
}

// resolveQualifier parses a "Class.Value" reference against the declared
// classes.
func (rs *RuleSet) resolveQualifier(ref string) (doc.Qualifier, error) {
	name, value, ok := strings.Cut(ref, ".")
	if !ok || name == "" || value == "" {
		return doc.Qualifier{}, fmt.Errorf("cannot parse qualifier %q, expected \"Class.Value\"", ref)
	}

	class, ok := rs.classes[name]
	if !ok {
		return doc.Qualifier{}, fmt.Errorf("qualifier %q references undeclared class %q", ref, name)
	}

	return class.Create(value)
}

// LoadRulesFile reads and compiles a rule file from disk.
func LoadRulesFile(path string, attr doc.Attr) (*RuleSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open rules file: %w", err)
	}
	defer func() { _ = f.Close() }()

	rs, err := ReadRules(f, attr)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rs, nil
}

// DefaultRules compiles the embedded Dutch clinical rule set.
func DefaultRules() (*RuleSet, error) {
	return ReadRules(strings.NewReader(string(defaultRulesJSON)), doc.AttrNorm)
}
