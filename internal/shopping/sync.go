package shopping

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"meal-planner/internal/apperr"
	"meal-planner/internal/week"
)

// ExternalSyncer writes items to an external shopping-list service and returns the
// id of the list it wrote to. label selects the target list when the service has
// several.
type ExternalSyncer interface {
	Sync(ctx context.Context, items []Item, label string) (string, error)
}

// Syncer pushes stored lists to an ExternalSyncer.
type Syncer struct {
	lists    *Repository
	external ExternalSyncer
	label    string
	logger   *slog.Logger
}

// NewSyncer creates a new Syncer.
func NewSyncer(lists *Repository, external ExternalSyncer, label string, logger *slog.Logger) *Syncer {
	return &Syncer{lists: lists, external: external, label: label, logger: logger}
}

// Push sends the unchecked items of the week's list and marks the list as synced.
// Failures of the external service wrap apperr.ErrExternalSync.
func (s *Syncer) Push(ctx context.Context, weekID week.ID) (string, error) {
	list, err := s.lists.Get(ctx, weekID)
	if err != nil {
		return "", err
	}

	items := list.Unchecked()
	listID, err := s.external.Sync(ctx, items, s.label)
	if err != nil {
		if errors.Is(err, apperr.ErrExternalSync) {
			return "", err
		}
		return "", fmt.Errorf("%w: %w", apperr.ErrExternalSync, err)
	}

	if err := s.lists.MarkSynced(ctx, weekID, listID); err != nil {
		return "", err
	}

	s.logger.Info("shopping list synced", "week", weekID, "items", len(items), "list", listID)
	return listID, nil
}
