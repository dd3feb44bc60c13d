package shopping

import (
	"encoding/json"
	"fmt"
	"strings"

	"meal-planner/internal/apperr"
	"meal-planner/internal/llm"
)

// DecodeListPayload turns the raw AI answer into shopping items. The top-level
// "items" array is required; entries without a name are dropped and unknown
// categories become Otros. Every item starts unchecked.
func DecodeListPayload(raw string) ([]Item, error) {
	body, err := llm.ExtractJSON(raw)
	if err != nil {
		return nil, err
	}

	var envelope struct {
		Items []json.RawMessage `json:"items"`
	}
	if err := json.Unmarshal([]byte(body), &envelope); err != nil {
		return nil, fmt.Errorf("decode shopping payload: %v: %w", err, apperr.ErrUpstreamMalformed)
	}
	if envelope.Items == nil {
		return nil, fmt.Errorf("shopping payload has no items: %w", apperr.ErrUpstreamMalformed)
	}

	items := make([]Item, 0, len(envelope.Items))
	for _, rawItem := range envelope.Items {
		var it struct {
			Name     string `json:"name"`
			Quantity any    `json:"quantity"`
			Category string `json:"category"`
		}
		if err := json.Unmarshal(rawItem, &it); err != nil {
			continue
		}
		name := strings.TrimSpace(it.Name)
		if name == "" {
			continue
		}
		items = append(items, Item{
			Name:     name,
			Quantity: quantityString(it.Quantity),
			Category: ParseCategory(it.Category),
		})
	}
	return items, nil
}

// quantityString accepts "500 g" as well as bare numbers.
func quantityString(v any) string {
	switch q := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(q)
	case float64:
		return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.2f", q), "0"), ".")
	default:
		return fmt.Sprint(q)
	}
}
