package shopping

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"meal-planner/internal/apperr"
	"meal-planner/internal/database"
	"meal-planner/internal/week"
)

// Repository handles persistence of shopping lists.
type Repository struct {
	db database.DBTX
}

// NewRepository creates a new shopping list repository.
func NewRepository(db database.DBTX) *Repository {
	return &Repository{db: db}
}

// Get retrieves the list of a week.
func (r *Repository) Get(ctx context.Context, weekID week.ID) (*List, error) {
	query, args, err := database.Builder.
		Select("week_id", "user_id", "items", "synced_to_bring", "bring_list_id", "generated_at").
		From("shopping_lists").
		Where(sq.Eq{"week_id": string(weekID)}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build shopping list select: %w", err)
	}

	var (
		l     List
		id    string
		items string
	)
	err = r.db.QueryRowContext(ctx, query, args...).
		Scan(&id, &l.UserID, &items, &l.SyncedToBring, &l.BringListID, &l.GeneratedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("shopping list %s: %w", weekID, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get shopping list %s: %w", weekID, err)
	}
	l.WeekID = week.ID(id)

	if err := json.Unmarshal([]byte(items), &l.Items); err != nil {
		return nil, fmt.Errorf("failed to unmarshal shopping list items: %w", err)
	}
	if l.Items == nil {
		l.Items = []Item{}
	}
	return &l, nil
}

// Replace stores the list, discarding any previous items and sync state of the week.
func (r *Repository) Replace(ctx context.Context, l List) error {
	if l.Items == nil {
		l.Items = []Item{}
	}
	items, err := json.Marshal(l.Items)
	if err != nil {
		return fmt.Errorf("failed to marshal shopping list items: %w", err)
	}
	if l.GeneratedAt.IsZero() {
		l.GeneratedAt = time.Now().UTC()
	}

	query, args, err := database.Builder.
		Insert("shopping_lists").
		Columns("week_id", "user_id", "items", "synced_to_bring", "bring_list_id", "generated_at").
		Values(string(l.WeekID), l.UserID, string(items), l.SyncedToBring, l.BringListID, l.GeneratedAt.UTC()).
		Suffix(`ON CONFLICT (week_id) DO UPDATE SET
			user_id = excluded.user_id, items = excluded.items, synced_to_bring = excluded.synced_to_bring,
			bring_list_id = excluded.bring_list_id, generated_at = excluded.generated_at`).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build shopping list upsert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to save shopping list %s: %w", l.WeekID, err)
	}
	return nil
}

// ToggleItem flips the checked flag of the item at index and returns the new value.
// The flip happens in a single statement so concurrent toggles of other items are kept.
func (r *Repository) ToggleItem(ctx context.Context, weekID week.ID, index int) (bool, error) {
	if index < 0 {
		return false, fmt.Errorf("item index %d: %w", index, apperr.ErrInvalidInput)
	}
	path := fmt.Sprintf("$[%d].checked", index)

	query, args, err := database.Builder.
		Update("shopping_lists").
		Set("items", sq.Expr(
			"json_set(items, ?, CASE WHEN json_extract(items, ?) = 1 THEN json('false') ELSE json('true') END)",
			path, path,
		)).
		Where(sq.And{
			sq.Eq{"week_id": string(weekID)},
			sq.Expr("? < json_array_length(items)", index),
		}).
		Suffix("RETURNING json_extract(items, ?)", path).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to build item toggle: %w", err)
	}

	var checked bool
	err = r.db.QueryRowContext(ctx, query, args...).Scan(&checked)
	if err == nil {
		return checked, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("failed to toggle item %d of %s: %w", index, weekID, err)
	}

	if _, err := r.Get(ctx, weekID); err != nil {
		return false, err
	}
	return false, fmt.Errorf("item index %d out of range: %w", index, apperr.ErrInvalidInput)
}

// MarkSynced records that the list was pushed to the external service.
func (r *Repository) MarkSynced(ctx context.Context, weekID week.ID, externalListID string) error {
	query, args, err := database.Builder.
		Update("shopping_lists").
		Set("synced_to_bring", true).
		Set("bring_list_id", externalListID).
		Where(sq.Eq{"week_id": string(weekID)}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build sync update: %w", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to mark %s as synced: %w", weekID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("shopping list %s: %w", weekID, apperr.ErrNotFound)
	}
	return nil
}
