package model

import "time"

// Report is the complete extraction result for one document: the entities
// that were found, each with its span and the full qualifier set.
type Report struct {
	Source      string    `json:"source"`       // File path or name the text came from
	ProcessedAt time.Time `json:"processed_at"` // When the document was processed

	TextLength    int `json:"text_length"`    // Characters in the input text
	TokenCount    int `json:"token_count"`    // Tokens after tokenization
	SentenceCount int `json:"sentence_count"` // Sentences after sentence splitting

	Entities []EntityResult `json:"entities"`
}

// EntityResult is one matched entity with its span, in both character and
// token coordinates, and its qualifiers.
type EntityResult struct {
	Text  string `json:"text"`  // The matched surface text
	Label string `json:"label"` // Concept identifier

	StartChar  int `json:"start_char"`  // Character offset, inclusive
	EndChar    int `json:"end_char"`    // Character offset, exclusive
	StartToken int `json:"start_token"` // Token index, inclusive
	EndToken   int `json:"end_token"`   // Token index, exclusive

	Qualifiers []QualifierResult `json:"qualifiers"`
}

// QualifierResult is one qualifier assignment on an entity.
type QualifierResult struct {
	Name      string   `json:"name"`           // Class name, e.g. "Presence"
	Value     string   `json:"value"`          // Assigned value, e.g. "Absent"
	IsDefault bool     `json:"is_default"`     // True when no trigger overrode the class default
	Prob      *float64 `json:"prob,omitempty"` // Confidence, when the detector provides one
}

// NonDefault returns the entity's qualifiers that a trigger actually set,
// skipping the materialized defaults.
func (e EntityResult) NonDefault() []QualifierResult {
	var out []QualifierResult
	for _, q := range e.Qualifiers {
		if !q.IsDefault {
			out = append(out, q)
		}
	}
	return out
}
