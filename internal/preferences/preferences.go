// Package preferences stores per-user household settings.
package preferences

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"meal-planner/internal/apperr"
	"meal-planner/internal/database"
)

// Preferences are the settings of one user.
type Preferences struct {
	UserID    string
	Portions  int
	CreatedAt time.Time
}

// Repository is a database-backed repository for preferences.
type Repository struct {
	db database.DBTX
}

// NewRepository creates a new Repository.
func NewRepository(db database.DBTX) *Repository {
	return &Repository{db: db}
}

// Save inserts or updates the preferences of a user. CreatedAt is kept on update.
func (r *Repository) Save(ctx context.Context, p Preferences) error {
	if p.UserID == "" {
		return fmt.Errorf("preferences without user: %w", apperr.ErrInvalidInput)
	}
	if p.Portions < 1 {
		return fmt.Errorf("portions must be at least 1: %w", apperr.ErrInvalidInput)
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}

	query, args, err := database.Builder.
		Insert("user_preferences").
		Columns("user_id", "portions", "created_at").
		Values(p.UserID, p.Portions, p.CreatedAt.UTC()).
		Suffix("ON CONFLICT (user_id) DO UPDATE SET portions = excluded.portions").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build preferences upsert: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to save preferences of %s: %w", p.UserID, err)
	}
	return nil
}

// Get returns the preferences of a user.
func (r *Repository) Get(ctx context.Context, userID string) (*Preferences, error) {
	query, args, err := database.Builder.
		Select("user_id", "portions", "created_at").
		From("user_preferences").
		Where(sq.Eq{"user_id": userID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build preferences select: %w", err)
	}

	var p Preferences
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&p.UserID, &p.Portions, &p.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("preferences of %s: %w", userID, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get preferences of %s: %w", userID, err)
	}
	return &p, nil
}

// FirstUserID returns the user whose preferences were created first, or "" when
// there is none.
func (r *Repository) FirstUserID(ctx context.Context) (string, error) {
	query, args, err := database.Builder.
		Select("user_id").
		From("user_preferences").
		OrderBy("created_at ASC", "rowid ASC").
		Limit(1).
		ToSql()
	if err != nil {
		return "", fmt.Errorf("failed to build first user query: %w", err)
	}

	var userID string
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("failed to get first user: %w", err)
	}
	return userID, nil
}
