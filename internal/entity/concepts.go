package entity

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/pvdheide/clinform/internal/matcher"
)

// TermSpec is one dictionary entry for a concept: either a term (a phrase
// with optional overrides) or a structured token pattern.
type TermSpec struct {
	Term    *Term
	Pattern []matcher.RawConstraint
}

// Concept is a named collection of term specifications, in file order.
type Concept struct {
	Name  string
	Terms []TermSpec
}

// LoadConcepts reads a concept dictionary from a file, dispatching on the
// extension: .yaml/.yml, .json, or .csv.
func LoadConcepts(path string) ([]Concept, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open concepts file: %w", err)
	}
	defer func() { _ = f.Close() }()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ReadConceptsYAML(f)
	case ".json":
		return ReadConceptsJSON(f)
	case ".csv":
		return ReadConceptsCSV(f)
	default:
		return nil, fmt.Errorf("unsupported concepts file format: %s", path)
	}
}

// LoadInto registers the concepts on a matcher, in order.
func LoadInto(m *Matcher, concepts []Concept) error {
	for _, concept := range concepts {
		if len(concept.Terms) == 0 {
			return fmt.Errorf("concept %q: no terms", concept.Name)
		}
		for _, spec := range concept.Terms {
			var err error
			switch {
			case spec.Term != nil:
				err = m.AddTerm(concept.Name, *spec.Term)
			case spec.Pattern != nil:
				err = m.addRawPattern(concept.Name, spec.Pattern)
			default:
				err = fmt.Errorf("concept %q: empty term specification", concept.Name)
			}
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *Matcher) addRawPattern(concept string, raw []matcher.RawConstraint) error {
	constraints := make([]matcher.Constraint, 0, len(raw))
	for _, rc := range raw {
		c, err := rc.Compile(m.opts.Defaults.Attr)
		if err != nil {
			return fmt.Errorf("concept %q: %w", concept, err)
		}
		constraints = append(constraints, c)
	}
	return m.AddPattern(concept, constraints)
}

// ReadConceptsYAML parses the YAML mapping form: concept names map to
// lists where each entry is a phrase string, a term mapping, or a sequence
// of token constraints. Concepts keep their file order.
func ReadConceptsYAML(r io.Reader) ([]Concept, error) {
	var root yaml.Node
	if err := yaml.NewDecoder(r).Decode(&root); err != nil {
		return nil, fmt.Errorf("parse concepts yaml: %w", err)
	}

	node := &root
	if node.Kind == yaml.DocumentNode && len(node.Content) == 1 {
		node = node.Content[0]
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("concepts yaml: expected a mapping of concept to term list")
	}

	var concepts []Concept

	for i := 0; i+1 < len(node.Content); i += 2 {
		name := node.Content[i].Value
		list := node.Content[i+1]

		if list.Kind != yaml.SequenceNode {
			return nil, fmt.Errorf("concept %q: expected a list of terms", name)
		}

		concept := Concept{Name: name}

		for _, item := range list.Content {
			spec, err := termSpecFromYAML(item)
			if err != nil {
				return nil, fmt.Errorf("concept %q: %w", name, err)
			}
			concept.Terms = append(concept.Terms, spec)
		}

		concepts = append(concepts, concept)
	}

	return concepts, nil
}

func termSpecFromYAML(node *yaml.Node) (TermSpec, error) {
	switch node.Kind {
	case yaml.ScalarNode:
		t := NewTerm(node.Value)
		return TermSpec{Term: &t}, nil

	case yaml.MappingNode:
		var t Term
		if err := node.Decode(&t); err != nil {
			return TermSpec{}, fmt.Errorf("parse term: %w", err)
		}
		if t.Phrase == "" {
			return TermSpec{}, fmt.Errorf("term without phrase")
		}
		return TermSpec{Term: &t}, nil

	case yaml.SequenceNode:
		var raw []matcher.RawConstraint
		if err := node.Decode(&raw); err != nil {
			return TermSpec{}, fmt.Errorf("parse token pattern: %w", err)
		}
		return TermSpec{Pattern: raw}, nil

	default:
		return TermSpec{}, fmt.Errorf("unsupported term entry")
	}
}

// ReadConceptsJSON parses the JSON mapping form. JSON objects have no
// defined key order, so concepts are registered in sorted name order to
// keep tie-breaking deterministic across runs.
func ReadConceptsJSON(r io.Reader) ([]Concept, error) {
	var rawMap map[string][]json.RawMessage
	if err := json.NewDecoder(r).Decode(&rawMap); err != nil {
		return nil, fmt.Errorf("parse concepts json: %w", err)
	}

	names := make([]string, 0, len(rawMap))
	for name := range rawMap {
		names = append(names, name)
	}
	sort.Strings(names)

	var concepts []Concept

	for _, name := range names {
		concept := Concept{Name: name}

		for _, raw := range rawMap[name] {
			spec, err := termSpecFromJSON(raw)
			if err != nil {
				return nil, fmt.Errorf("concept %q: %w", name, err)
			}
			concept.Terms = append(concept.Terms, spec)
		}

		concepts = append(concepts, concept)
	}

	return concepts, nil
}

func termSpecFromJSON(raw json.RawMessage) (TermSpec, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		return TermSpec{}, fmt.Errorf("empty term entry")
	}

	switch trimmed[0] {
	case '"':
		var phrase string
		if err := json.Unmarshal(raw, &phrase); err != nil {
			return TermSpec{}, fmt.Errorf("parse phrase: %w", err)
		}
		t := NewTerm(phrase)
		return TermSpec{Term: &t}, nil

	case '{':
		var t Term
		if err := json.Unmarshal(raw, &t); err != nil {
			return TermSpec{}, fmt.Errorf("parse term: %w", err)
		}
		if t.Phrase == "" {
			return TermSpec{}, fmt.Errorf("term without phrase")
		}
		return TermSpec{Term: &t}, nil

	case '[':
		var rcs []matcher.RawConstraint
		if err := json.Unmarshal(raw, &rcs); err != nil {
			return TermSpec{}, fmt.Errorf("parse token pattern: %w", err)
		}
		return TermSpec{Pattern: rcs}, nil

	default:
		return TermSpec{}, fmt.Errorf("unsupported term entry: %s", trimmed)
	}
}

// ReadConceptsCSV parses the tabular form: one phrase per row, with columns
// concept, phrase and optionally attr, proximity, fuzzy, fuzzy_min_len and
// pseudo. An empty cell means "inherit the matcher default". Rows may come
// in any order; consecutive rows of one concept accumulate.
func ReadConceptsCSV(r io.Reader) ([]Concept, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.TrimSpace(strings.ToLower(name))] = i
	}

	for _, required := range []string{"concept", "phrase"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("csv header misses required column %q", required)
		}
	}

	var concepts []Concept
	index := make(map[string]int)

	for line := 2; ; line++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row: %w", err)
		}

		cell := func(name string) string {
			i, ok := cols[name]
			if !ok || i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}

		name := cell("concept")
		phrase := cell("phrase")
		if name == "" || phrase == "" {
			return nil, fmt.Errorf("csv line %d: concept and phrase must be set", line)
		}

		t := NewTerm(phrase)

		if v := cell("attr"); v != "" {
			t.Attr = &v
		}
		for _, field := range []struct {
			name string
			dst  **int
		}{
			{"proximity", &t.Proximity},
			{"fuzzy", &t.Fuzzy},
			{"fuzzy_min_len", &t.FuzzyMinLen},
		} {
			if v := cell(field.name); v != "" {
				n, err := strconv.Atoi(v)
				if err != nil {
					return nil, fmt.Errorf("csv line %d: column %q: %w", line, field.name, err)
				}
				*field.dst = &n
			}
		}
		if v := cell("pseudo"); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return nil, fmt.Errorf("csv line %d: column \"pseudo\": %w", line, err)
			}
			t.Pseudo = &b
		}

		i, ok := index[name]
		if !ok {
			i = len(concepts)
			index[name] = i
			concepts = append(concepts, Concept{Name: name})
		}
		concepts[i].Terms = append(concepts[i].Terms, TermSpec{Term: &t})
	}

	return concepts, nil
}
