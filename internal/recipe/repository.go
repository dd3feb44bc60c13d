package recipe

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
)

// Repository is a database-backed repository for recipes.
type Repository struct {
	db database.DBTX
}

// NewRepository creates a new Repository.
func NewRepository(db database.DBTX) *Repository {
	return &Repository{db: db}
}

// WithTx returns a Repository that runs its statements inside tx.
func (r *Repository) WithTx(tx *sql.Tx) *Repository {
	return &Repository{db: tx}
}

// Save inserts or replaces a recipe.
func (r *Repository) Save(ctx context.Context, rec Recipe) error {
	if rec.ID == "" {
		return fmt.Errorf("recipe without id: %w", apperr.ErrInvalidInput)
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal recipe to JSON: %w", err)
	}

	query, args, err := database.Builder.
		Insert("recipes").
		Columns("id", "user_id", "title", "source", "meal_type", "image_url", "data", "created_at").
		Values(rec.ID, rec.UserID, rec.Title, string(rec.Source), rec.MealType, rec.ImageURL, string(data), rec.CreatedAt.UTC()).
		Suffix(`ON CONFLICT (id) DO UPDATE SET
			user_id = excluded.user_id, title = excluded.title, source = excluded.source,
			meal_type = excluded.meal_type, image_url = excluded.image_url, data = excluded.data`).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build recipe insert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to save recipe %s: %w", rec.ID, err)
	}
	return nil
}

// Get retrieves a recipe by its ID.
func (r *Repository) Get(ctx context.Context, id string) (*Recipe, error) {
	query, args, err := database.Builder.
		Select("data", "image_url").
		From("recipes").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build recipe select: %w", err)
	}

	var data, imageURL string
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&data, &imageURL); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("recipe %s: %w", id, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get recipe by ID: %w", err)
	}

	var rec Recipe
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal recipe JSON: %w", err)
	}
	// image_url is backfilled independently of the document.
	rec.ImageURL = imageURL
	return &rec, nil
}

// RecentTitles returns the titles of the most recently created AI recipes, newest first.
// An empty userID means every user.
func (r *Repository) RecentTitles(ctx context.Context, userID string, limit int) ([]string, error) {
	b := database.Builder.
		Select("title").
		From("recipes").
		Where(sq.Eq{"source": string(SourceAI)}).
		OrderBy("created_at DESC", "rowid DESC").
		Limit(uint64(limit))
	if userID != "" {
		b = b.Where(sq.Eq{"user_id": userID})
	}

	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build recent titles query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent titles: %w", err)
	}
	defer rows.Close()

	var titles []string
	for rows.Next() {
		var title string
		if err := rows.Scan(&title); err != nil {
			return nil, fmt.Errorf("failed to scan title: %w", err)
		}
		titles = append(titles, title)
	}
	return titles, rows.Err()
}

// LatestOwner returns the user that owns the newest recipe from source,
// or "" when there is none.
func (r *Repository) LatestOwner(ctx context.Context, source Source) (string, error) {
	query, args, err := database.Builder.
		Select("user_id").
		From("recipes").
		Where(sq.And{sq.Eq{"source": string(source)}, sq.NotEq{"user_id": ""}}).
		OrderBy("created_at DESC", "rowid DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return "", fmt.Errorf("failed to build owner query: %w", err)
	}

	var userID string
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("failed to get latest recipe owner: %w", err)
	}
	return userID, nil
}

// MissingImages lists recipes whose image lookup failed or never ran.
func (r *Repository) MissingImages(ctx context.Context, limit int) ([]Recipe, error) {
	query, args, err := database.Builder.
		Select("data").
		From("recipes").
		Where(sq.Eq{"image_url": ""}).
		OrderBy("created_at DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build missing images query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list recipes without image: %w", err)
	}
	defer rows.Close()

	var recipes []Recipe
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan recipe: %w", err)
		}
		var rec Recipe
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			continue
		}
		recipes = append(recipes, rec)
	}
	return recipes, rows.Err()
}

// SetImageURL stores the image of an existing recipe.
func (r *Repository) SetImageURL(ctx context.Context, id, url string) error {
	query, args, err := database.Builder.
		Update("recipes").
		Set("image_url", url).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build image update: %w", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to set image for recipe %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("recipe %s: %w", id, apperr.ErrNotFound)
	}
	return nil
}
