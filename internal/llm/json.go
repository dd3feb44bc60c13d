package llm

import (
	"fmt"
	"strings"

	"meal-planner/internal/apperr"
)

// ExtractJSON pulls the JSON object out of a model reply. Models often wrap the
// object in markdown fences or surround it with prose, so fences are stripped
// first and then everything from the first '{' to the last '}' is kept.
func ExtractJSON(s string) (string, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```JSON")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end == -1 || end <= start {
		return "", fmt.Errorf("no JSON object found in response: %w", apperr.ErrUpstreamMalformed)
	}
	return s[start : end+1], nil
}
