package rollover

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"meal-planner/internal/apperr"
	"meal-planner/internal/database"
	"meal-planner/internal/week"
)

// JobWeeklyPlan is the status key of the weekly rollover.
const JobWeeklyPlan = "weekly_plan"

// Status is the outcome of the last run of a job.
type Status struct {
	Job     string    `json:"job"`
	LastRun time.Time `json:"lastRun"`
	WeekID  week.ID   `json:"weekId"`
	Success bool      `json:"success"`
	Error   string    `json:"error,omitempty"`
}

// StatusRepository keeps one status row per job.
type StatusRepository struct {
	db database.DBTX
}

// NewStatusRepository creates a new StatusRepository.
func NewStatusRepository(db database.DBTX) *StatusRepository {
	return &StatusRepository{db: db}
}

// Record overwrites the status of s.Job.
func (r *StatusRepository) Record(ctx context.Context, s Status) error {
	query, args, err := database.Builder.
		Insert("rollover_status").
		Columns("job", "last_run", "week_id", "success", "error").
		Values(s.Job, s.LastRun.UTC(), string(s.WeekID), s.Success, s.Error).
		Suffix(`ON CONFLICT (job) DO UPDATE SET
			last_run = excluded.last_run, week_id = excluded.week_id,
			success = excluded.success, error = excluded.error`).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build status upsert: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to record %s status: %w", s.Job, err)
	}
	return nil
}

// Get returns the last status of job.
func (r *StatusRepository) Get(ctx context.Context, job string) (*Status, error) {
	query, args, err := database.Builder.
		Select("job", "last_run", "week_id", "success", "error").
		From("rollover_status").
		Where(sq.Eq{"job": job}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build status select: %w", err)
	}

	var (
		s      Status
		weekID string
	)
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&s.Job, &s.LastRun, &weekID, &s.Success, &s.Error); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("status of %s: %w", job, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get %s status: %w", job, err)
	}
	s.WeekID = week.ID(weekID)
	return &s, nil
}
