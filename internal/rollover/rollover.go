// Package rollover generates next week's plan on a schedule.
package rollover

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"meal-planner/internal/config"
	"meal-planner/internal/planner"
	"meal-planner/internal/shopping"
	"meal-planner/internal/week"
)

// Report summarizes one run.
type Report struct {
	WeekID         week.ID `json:"weekId"`
	UserID         string  `json:"userId,omitempty"`
	AlreadyExists  bool    `json:"alreadyExists"`
	RecipesCreated int     `json:"recipesCreated"`
	ImagesMissing  int     `json:"imagesMissing"`
	ShoppingItems  int     `json:"shoppingItems"`
	Synced         bool    `json:"synced"`
}

// PlanChecker tells whether a week already has a plan.
type PlanChecker interface {
	Exists(ctx context.Context, weekID week.ID) (bool, error)
}

// TitleSource lists recent AI recipe titles; an empty userID means every user.
type TitleSource interface {
	RecentTitles(ctx context.Context, userID string, limit int) ([]string, error)
}

// PlanGenerator builds a whole plan.
type PlanGenerator interface {
	Generate(ctx context.Context, req planner.GenerateRequest) (*planner.GenerateResult, error)
}

// ListGenerator builds the shopping list of a week.
type ListGenerator interface {
	Generate(ctx context.Context, weekID week.ID) (*shopping.GenerateResult, error)
}

// ListPusher sends a stored list to the external service.
type ListPusher interface {
	Push(ctx context.Context, weekID week.ID) (string, error)
}

// Notifier reports the outcome of a run. runErr is nil on success.
type Notifier interface {
	NotifyRollover(ctx context.Context, report Report, runErr error) error
}

// Deps are the collaborators of a Rollover. Pusher and Notifier are optional.
type Deps struct {
	Plans     PlanChecker
	Titles    TitleSource
	Generator PlanGenerator
	Lists     ListGenerator
	Pusher    ListPusher
	Notifier  Notifier
	Status    *StatusRepository
	Resolvers []UserResolver
}

// Rollover makes sure next week has a plan.
type Rollover struct {
	// mu serializes runs so overlapping triggers see each other's plan.
	mu     sync.Mutex
	deps   Deps
	cfg    config.RolloverConfig
	logger *slog.Logger
	now    func() time.Time
}

// New creates a new Rollover.
func New(deps Deps, cfg config.RolloverConfig, logger *slog.Logger) *Rollover {
	return &Rollover{deps: deps, cfg: cfg, logger: logger, now: time.Now}
}

// Run generates the plan of next week unless it already exists. Shopping list,
// external sync and notification are best effort and never fail the run. The
// status row is written on every exit path.
func (r *Rollover) Run(ctx context.Context) (report *Report, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	startedAt := r.now()
	report = &Report{WeekID: week.Next(startedAt)}

	if r.cfg.Budget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.Budget)
		defer cancel()
	}

	defer func() {
		r.recordStatus(ctx, startedAt, report.WeekID, err)
		if !report.AlreadyExists {
			r.notify(ctx, *report, err)
		}
	}()

	exists, err := r.deps.Plans.Exists(ctx, report.WeekID)
	if err != nil {
		return report, err
	}
	if exists {
		report.AlreadyExists = true
		r.logger.Info("plan already exists", "week", report.WeekID)
		return report, nil
	}

	userID, err := r.resolveUser(ctx)
	if err != nil {
		return report, err
	}
	report.UserID = userID

	titles, err := r.deps.Titles.RecentTitles(ctx, "", r.cfg.RecentTitles)
	if err != nil {
		r.logger.Warn("could not load recent titles", "error", err)
		titles = nil
	}

	res, err := r.deps.Generator.Generate(ctx, planner.GenerateRequest{
		WeekID:       report.WeekID,
		UserID:       userID,
		Portions:     r.portions(),
		RecentTitles: titles,
		CreateOnly:   true,
	})
	if errors.Is(err, planner.ErrPlanExists) {
		// Another process stored the week between the check and the write.
		report.AlreadyExists = true
		r.logger.Info("plan already exists", "week", report.WeekID)
		return report, nil
	}
	if err != nil {
		return report, fmt.Errorf("generate plan %s: %w", report.WeekID, err)
	}
	report.RecipesCreated = res.RecipesCreated
	report.ImagesMissing = res.ImagesMissing

	if report.RecipesCreated > 0 {
		r.shoppingList(ctx, report)
	}

	r.logger.Info("weekly rollover done",
		"week", report.WeekID,
		"user", userID,
		"recipes", report.RecipesCreated,
		"shopping_items", report.ShoppingItems,
		"synced", report.Synced,
		"elapsed", time.Since(startedAt),
	)
	return report, nil
}

func (r *Rollover) shoppingList(ctx context.Context, report *Report) {
	list, err := r.deps.Lists.Generate(ctx, report.WeekID)
	if err != nil {
		r.logger.Warn("shopping list generation failed", "week", report.WeekID, "error", err)
		return
	}
	report.ShoppingItems = len(list.List.Items)

	if r.deps.Pusher == nil {
		return
	}
	if _, err := r.deps.Pusher.Push(ctx, report.WeekID); err != nil {
		r.logger.Warn("shopping list sync failed", "week", report.WeekID, "error", err)
		return
	}
	report.Synced = true
}

// resolveUser asks each strategy in order and returns the first non-empty answer.
func (r *Rollover) resolveUser(ctx context.Context) (string, error) {
	for _, res := range r.deps.Resolvers {
		userID, err := res.Resolve(ctx)
		if err != nil {
			r.logger.Warn("user resolver failed", "resolver", res.Name(), "error", err)
			continue
		}
		if userID != "" {
			r.logger.Debug("user resolved", "resolver", res.Name(), "user", userID)
			return userID, nil
		}
	}
	return "", errors.New("no user resolver returned a user")
}

func (r *Rollover) portions() int {
	if r.cfg.DefaultPortions > 0 {
		return r.cfg.DefaultPortions
	}
	return planner.DefaultPortions
}

func (r *Rollover) recordStatus(ctx context.Context, startedAt time.Time, weekID week.ID, runErr error) {
	s := Status{Job: JobWeeklyPlan, LastRun: startedAt, WeekID: weekID, Success: runErr == nil}
	if runErr != nil {
		s.Error = runErr.Error()
	}
	// The budget may be spent already; the status must still be written.
	if err := r.deps.Status.Record(context.WithoutCancel(ctx), s); err != nil {
		r.logger.Error("failed to record rollover status", "error", err)
	}
}

func (r *Rollover) notify(ctx context.Context, report Report, runErr error) {
	if r.deps.Notifier == nil {
		return
	}
	if err := r.deps.Notifier.NotifyRollover(context.WithoutCancel(ctx), report, runErr); err != nil {
		r.logger.Warn("rollover notification failed", "error", err)
	}
}
