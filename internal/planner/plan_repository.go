package planner

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

// PlanRepository is a database-backed repository for weekly plans.
//
// Replace writes the whole row. Every slot edit is a single statement that
// rewrites only its own nested key with json_set, so concurrent edits of
// different slots never lose each other.
type PlanRepository struct {
	db database.DBTX
}

// NewPlanRepository creates a new PlanRepository.
func NewPlanRepository(db database.DBTX) *PlanRepository {
	return &PlanRepository{db: db}
}

// WithTx returns a PlanRepository that runs its statements inside tx.
func (r *PlanRepository) WithTx(tx *sql.Tx) *PlanRepository {
	return &PlanRepository{db: tx}
}

// Get retrieves the plan of a week.
func (r *PlanRepository) Get(ctx context.Context, weekID week.ID) (*WeeklyPlan, error) {
	query, args, err := database.Builder.
		Select("week_id", "user_id", "portions", "status", "meals", "generated_at").
		From("weekly_plans").
		Where(sq.Eq{"week_id": string(weekID)}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build plan select: %w", err)
	}

	var (
		p     WeeklyPlan
		id    string
		meals string
	)
	err = r.db.QueryRowContext(ctx, query, args...).
		Scan(&id, &p.UserID, &p.Portions, &p.Status, &meals, &p.GeneratedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("plan %s: %w", weekID, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get plan %s: %w", weekID, err)
	}
	p.WeekID = week.ID(id)

	if err := json.Unmarshal([]byte(meals), &p.Meals); err != nil {
		return nil, fmt.Errorf("failed to unmarshal meals of plan %s: %w", weekID, err)
	}
	if p.Meals == nil {
		p.Meals = Meals{}
	}
	return &p, nil
}

// Exists reports whether a plan is stored for the week.
func (r *PlanRepository) Exists(ctx context.Context, weekID week.ID) (bool, error) {
	query, args, err := database.Builder.
		Select().
		Column(sq.Expr("EXISTS (SELECT 1 FROM weekly_plans WHERE week_id = ?)", string(weekID))).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to build plan exists query: %w", err)
	}

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check plan %s: %w", weekID, err)
	}
	return exists, nil
}

// Replace inserts the plan or overwrites every column of the existing one.
func (r *PlanRepository) Replace(ctx context.Context, p WeeklyPlan) error {
	return r.insert(ctx, p, `ON CONFLICT (week_id) DO UPDATE SET
			user_id = excluded.user_id, portions = excluded.portions, status = excluded.status,
			meals = excluded.meals, generated_at = excluded.generated_at`)
}

// Create inserts the plan and fails with ErrPlanExists when the week already has one.
func (r *PlanRepository) Create(ctx context.Context, p WeeklyPlan) error {
	return r.insert(ctx, p, "ON CONFLICT (week_id) DO NOTHING")
}

func (r *PlanRepository) insert(ctx context.Context, p WeeklyPlan, onConflict string) error {
	if p.Meals == nil {
		p.Meals = Meals{}
	}
	meals, err := json.Marshal(p.Meals)
	if err != nil {
		return fmt.Errorf("failed to marshal meals: %w", err)
	}
	if p.Status == "" {
		p.Status = StatusDraft
	}
	if p.GeneratedAt.IsZero() {
		p.GeneratedAt = time.Now().UTC()
	}

	query, args, err := database.Builder.
		Insert("weekly_plans").
		Columns("week_id", "user_id", "portions", "status", "meals", "generated_at").
		Values(string(p.WeekID), p.UserID, p.Portions, p.Status, string(meals), p.GeneratedAt.UTC()).
		Suffix(onConflict).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build plan insert: %w", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to save plan %s: %w", p.WeekID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrPlanExists
	}
	return nil
}

// SetSlot overwrites a single slot, leaving every other slot untouched.
func (r *PlanRepository) SetSlot(ctx context.Context, weekID week.ID, day Day, meal MealType, slot MealSlot) error {
	value, err := json.Marshal(slot)
	if err != nil {
		return fmt.Errorf("failed to marshal slot: %w", err)
	}

	dayPath := "$." + string(day)
	query, args, err := database.Builder.
		Update("weekly_plans").
		Set("meals", sq.Expr(
			"json_set(meals, ?, json_set(COALESCE(json_extract(meals, ?), '{}'), ?, json(?)))",
			dayPath, dayPath, "$."+string(meal), string(value),
		)).
		Where(sq.Eq{"week_id": string(weekID)}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build slot update: %w", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to set %s %s of plan %s: %w", day, meal, weekID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("plan %s: %w", weekID, apperr.ErrNotFound)
	}
	return nil
}

// ToggleLock flips the lock of an existing slot and returns the new state.
func (r *PlanRepository) ToggleLock(ctx context.Context, weekID week.ID, day Day, meal MealType) (bool, error) {
	slotPath := "$." + string(day) + "." + string(meal)
	lockPath := slotPath + ".locked"

	query, args, err := database.Builder.
		Update("weekly_plans").
		Set("meals", sq.Expr(
			"json_set(meals, ?, CASE WHEN json_extract(meals, ?) = 1 THEN json('false') ELSE json('true') END)",
			lockPath, lockPath,
		)).
		Where(sq.And{
			sq.Eq{"week_id": string(weekID)},
			sq.Expr("json_type(meals, ?) = 'object'", slotPath),
		}).
		Suffix("RETURNING json_extract(meals, ?)", lockPath).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to build lock toggle: %w", err)
	}

	var locked bool
	err = r.db.QueryRowContext(ctx, query, args...).Scan(&locked)
	if err == nil {
		return locked, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("failed to toggle lock of %s %s: %w", day, meal, err)
	}

	exists, err := r.Exists(ctx, weekID)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, fmt.Errorf("plan %s: %w", weekID, apperr.ErrNotFound)
	}
	return false, fmt.Errorf("slot %s %s of plan %s: %w", day, meal, weekID, apperr.ErrNotFound)
}

// ClearMeal turns the slot into a locked free meal.
func (r *PlanRepository) ClearMeal(ctx context.Context, weekID week.ID, day Day, meal MealType) error {
	return r.SetSlot(ctx, weekID, day, meal, MealSlot{RecipeID: "", Locked: true})
}
