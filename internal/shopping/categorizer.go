package shopping

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"text/template"
	"time"

	"meal-planner/internal/llm"
	"meal-planner/internal/shared"
)

//go:embed categorize_prompt.md
var categorizePrompt string

var categorizeTmpl = template.Must(template.New("Categorize").Parse(categorizePrompt))

// AgentCategorizer is the agent name recorded with the token usage.
const AgentCategorizer = "ShoppingCategorizer"

// Categorizer consolidates raw ingredient lines into categorized items.
type Categorizer interface {
	Categorize(ctx context.Context, ingredients []string) ([]Item, shared.AgentMeta, error)
}

// LLMCategorizer asks a text generator to consolidate the list.
type LLMCategorizer struct {
	textGen llm.TextGenerator
}

// NewLLMCategorizer creates a new LLMCategorizer.
func NewLLMCategorizer(textGen llm.TextGenerator) *LLMCategorizer {
	return &LLMCategorizer{textGen: textGen}
}

func (c *LLMCategorizer) Categorize(ctx context.Context, ingredients []string) ([]Item, shared.AgentMeta, error) {
	start := time.Now()

	var buf bytes.Buffer
	err := categorizeTmpl.Execute(&buf, struct {
		Ingredients []string
		Categories  []Category
	}{ingredients, Categories})
	if err != nil {
		return nil, shared.AgentMeta{}, fmt.Errorf("failed to render shopping prompt: %w", err)
	}

	resp, err := c.textGen.GenerateContent(ctx, buf.String())
	if err != nil {
		return nil, shared.AgentMeta{}, fmt.Errorf("failed to categorize ingredients: %w", err)
	}
	meta := shared.Since(AgentCategorizer, resp.Usage, start)

	items, err := DecodeListPayload(resp.Content)
	return items, meta, err
}
