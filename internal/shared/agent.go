// Package shared holds the AI call bookkeeping used by every component that
// talks to the AI collaborator.
package shared

import "time"

// TokenUsage is what one AI call consumed.
type TokenUsage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	Model            string
}

// AgentMeta describes one AI call made on behalf of a named component.
type AgentMeta struct {
	AgentName string
	Usage     TokenUsage
	Latency   time.Duration
}

// Since builds the AgentMeta of a call that started at start.
func Since(agent string, usage TokenUsage, start time.Time) AgentMeta {
	return AgentMeta{AgentName: agent, Usage: usage, Latency: time.Since(start)}
}
