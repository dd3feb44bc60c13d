package llm

import (
	"context"
	"time"

	"meal-planner/internal/shared"
)

// ContentResponse contains the generated text and metadata like token usage.
type ContentResponse struct {
	Content string
	Usage   shared.TokenUsage
}

// TextGenerator is an interface for generating text from a prompt.
type TextGenerator interface {
	GenerateContent(ctx context.Context, prompt string) (ContentResponse, error)
}

// Closer is an interface for closing resources.
type Closer interface {
	Close() error
}

type timeoutGenerator struct {
	next    TextGenerator
	timeout time.Duration
}

// WithTimeout bounds every call to next. Exceeding the timeout surfaces as
// context.DeadlineExceeded from the underlying client.
func WithTimeout(next TextGenerator, timeout time.Duration) TextGenerator {
	if timeout <= 0 {
		return next
	}
	return &timeoutGenerator{next: next, timeout: timeout}
}

func (g *timeoutGenerator) GenerateContent(ctx context.Context, prompt string) (ContentResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	return g.next.GenerateContent(ctx, prompt)
}
