package qualifier

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/pvdheide/clinform/internal/doc"
)

// LLMConfig holds the connection settings for a model-backed detector.
type LLMConfig struct {
	// Model name, e.g. "gpt-4o-mini".
	Model string

	// APIKey authenticates against the endpoint.
	APIKey string

	// BaseURL overrides the default endpoint, e.g. for a local
	// OpenAI-compatible server.
	BaseURL string

	// Timeout for one API request, in seconds.
	Timeout int

	// MaxTokens limits the response length.
	MaxTokens int
}

// LLMDetector assigns qualifiers by asking a chat model to classify each
// entity in its sentence. It declares the same classes as the rule store it
// is built from, so it can stand in for the rule-based detector in the
// pipeline. Responses that name a value outside a class's declared set are
// rejected; entities keep their defaults on any failure.
type LLMDetector struct {
	client  *openai.Client
	classes map[string]*Class
	config  LLMConfig
}

// NewLLMDetector creates a model-backed detector for the given classes.
func NewLLMDetector(config LLMConfig, classes map[string]*Class) (*LLMDetector, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("llm detector requires an API key")
	}
	if len(classes) == 0 {
		return nil, fmt.Errorf("llm detector requires at least one qualifier class")
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}

	return &LLMDetector{
		client:  openai.NewClientWithConfig(clientConfig),
		classes: classes,
		config:  config,
	}, nil
}

// Classes returns the qualifier classes the detector assigns.
func (d *LLMDetector) Classes() map[string]*Class { return d.classes }

// IsAvailable checks that the endpoint is reachable and the key accepted.
func (d *LLMDetector) IsAvailable(ctx context.Context) bool {
	_, err := d.client.ListModels(ctx)
	return err == nil
}

// llmAssignment is one entity's classification in the model response.
type llmAssignment struct {
	Entity     int               `json:"entity"`
	Qualifiers map[string]string `json:"qualifiers"`
}

// Detect classifies every entity in one request. Entities are numbered in
// document order; the model returns a JSON array of assignments which are
// validated against the declared classes before anything is applied.
func (d *LLMDetector) Detect(ctx context.Context, document *doc.Document) error {
	if len(document.Entities) == 0 {
		return nil
	}

	initDefaults(document, d.classes)

	prompt, err := d.buildPrompt(document)
	if err != nil {
		return err
	}

	model := d.config.Model
	if model == "" {
		model = openai.GPT4oMini
	}
	maxTokens := d.config.MaxTokens
	if maxTokens == 0 {
		maxTokens = 1000
	}
	timeout := time.Duration(d.config.Timeout) * time.Second
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := d.client.CreateChatCompletion(ctxWithTimeout, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You classify clinical entities in Dutch medical text. Answer with JSON only, no prose.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		MaxTokens:   maxTokens,
		Temperature: 0,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return fmt.Errorf("llm qualifier detection: %w", err)
	}
	if len(resp.Choices) == 0 {
		return fmt.Errorf("llm qualifier detection: empty response")
	}

	return d.apply(document, resp.Choices[0].Message.Content)
}

// buildPrompt renders the classification task: the full text, the numbered
// entity list with character offsets, and the closed value set per class.
func (d *LLMDetector) buildPrompt(document *doc.Document) (string, error) {
	var b strings.Builder

	b.WriteString("Classify each entity below on every qualifier class.\n\nClasses:\n")

	names := make([]string, 0, len(d.classes))
	for name := range d.classes {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		class := d.classes[name]
		fmt.Fprintf(&b, "- %s: one of %s (default %s)\n",
			name, strings.Join(class.Values, ", "), class.DefaultValue)
	}

	b.WriteString("\nText:\n")
	b.WriteString(document.Text)
	b.WriteString("\n\nEntities:\n")

	for i, ent := range document.Entities {
		fmt.Fprintf(&b, "%d. %q (chars %d-%d, label %s)\n",
			i, ent.Text(), ent.CharStart(), ent.CharEnd(), ent.Label)
	}

	b.WriteString("\nAnswer with a JSON object of the form ")
	b.WriteString(`{"assignments": [{"entity": 0, "qualifiers": {"Class": "Value"}}, ...]}`)
	b.WriteString(" covering every entity and every class.")

	return b.String(), nil
}

// apply parses the model response and sets validated qualifiers. The whole
// response is validated before the first entity is touched: a value outside
// the declared set or an entity index out of range fails the pass with every
// entity still on its defaults.
func (d *LLMDetector) apply(document *doc.Document, content string) error {
	var parsed struct {
		Assignments []llmAssignment `json:"assignments"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &parsed); err != nil {
		return fmt.Errorf("llm qualifier detection: parse response: %w", err)
	}

	type staged struct {
		ent *doc.Entity
		q   doc.Qualifier
	}
	var validated []staged

	for _, a := range parsed.Assignments {
		if a.Entity < 0 || a.Entity >= len(document.Entities) {
			return fmt.Errorf("llm qualifier detection: entity index %d out of range", a.Entity)
		}
		ent := document.Entities[a.Entity]

		for name, value := range a.Qualifiers {
			class, ok := d.classes[name]
			if !ok {
				return fmt.Errorf("llm qualifier detection: undeclared class %q in response", name)
			}
			q, err := class.Create(value)
			if err != nil {
				return fmt.Errorf("llm qualifier detection: %w", err)
			}
			validated = append(validated, staged{ent: ent, q: q})
		}
	}

	for _, s := range validated {
		s.ent.SetQualifier(s.q)
	}

	return nil
}
