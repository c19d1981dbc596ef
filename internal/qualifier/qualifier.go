// Package qualifier assigns categorical qualifiers (presence, temporality,
// experiencer, ...) to matched entities. The rule-based engine implements
// the Context Algorithm: directional trigger phrases propagate a qualifier
// value over a bounded scope within a sentence.
package qualifier

import (
	"context"
	"fmt"

	"github.com/pvdheide/clinform/internal/doc"
)

// Class is a qualifier dimension: a closed set of mutually exclusive
// values, a default assumed absent explicit triggers, and an explicit
// priority per value used for tie-breaking (lower integer means higher
// priority, 0 is highest).
type Class struct {
	Name         string
	Values       []string
	DefaultValue string

	priorities map[string]int
}

// NewClass creates a qualifier class. When priorities is nil, the declared
// value order is used (first value has priority 0, the highest). When
// defaultValue is empty, the first value is the default.
func NewClass(name string, values []string, defaultValue string, priorities map[string]int) (*Class, error) {
	if name == "" {
		return nil, fmt.Errorf("qualifier class without name")
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("qualifier class %q: no values", name)
	}

	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		if _, dup := seen[v]; dup {
			return nil, fmt.Errorf("qualifier class %q: duplicate value %q", name, v)
		}
		seen[v] = struct{}{}
	}

	if defaultValue == "" {
		defaultValue = values[0]
	}
	if _, ok := seen[defaultValue]; !ok {
		return nil, fmt.Errorf("qualifier class %q: default %q not among values %v", name, defaultValue, values)
	}

	if priorities == nil {
		priorities = make(map[string]int, len(values))
		for i, v := range values {
			priorities[v] = i
		}
	} else {
		for _, v := range values {
			if _, ok := priorities[v]; !ok {
				return nil, fmt.Errorf("qualifier class %q: value %q has no priority", name, v)
			}
		}
	}

	return &Class{
		Name:         name,
		Values:       values,
		DefaultValue: defaultValue,
		priorities:   priorities,
	}, nil
}

// Create builds a qualifier with the given value. An empty value yields
// the class default.
func (c *Class) Create(value string) (doc.Qualifier, error) {
	if value == "" {
		value = c.DefaultValue
	}

	priority, ok := c.priorities[value]
	if !ok {
		return doc.Qualifier{}, fmt.Errorf("qualifier class %q cannot take value %q (one of %v)",
			c.Name, value, c.Values)
	}

	return doc.Qualifier{
		Name:      c.Name,
		Value:     value,
		IsDefault: value == c.DefaultValue,
		Priority:  priority,
	}, nil
}

// Default builds the class's default qualifier.
func (c *Class) Default() doc.Qualifier {
	q, _ := c.Create(c.DefaultValue)
	return q
}

// Detector is the contract every qualifier detector satisfies, rule-based
// or model-backed, so multiple detector types compose on the same entity
// population. Detect leaves every entity with exactly one value per class
// the detector declares.
type Detector interface {
	// Classes returns the qualifier classes the detector assigns.
	Classes() map[string]*Class
	// Detect assigns qualifiers to the document's entities.
	Detect(ctx context.Context, d *doc.Document) error
}

// initDefaults materializes the default qualifier of every declared class
// on every entity, so downstream consumers always see a complete set.
// Explicit trigger assignments overwrite these afterwards.
func initDefaults(d *doc.Document, classes map[string]*Class) {
	for _, ent := range d.Entities {
		for _, class := range classes {
			ent.SetQualifier(class.Default())
		}
	}
}

// Stage adapts a Detector to the pipeline stage contract.
type Stage struct {
	Detector  Detector
	StageName string
}

// Name implements the pipeline stage contract.
func (s *Stage) Name() string {
	if s.StageName != "" {
		return s.StageName
	}
	return "qualifier_detector"
}

// Process runs the detector over the document.
func (s *Stage) Process(ctx context.Context, d *doc.Document) error {
	return s.Detector.Detect(ctx, d)
}
