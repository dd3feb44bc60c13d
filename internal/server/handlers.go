package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"meal-planner/internal/apperr"
	"meal-planner/internal/planner"
	"meal-planner/internal/week"
)

type ctxKey int

const weekIDKey ctxKey = iota

func weekIDFromPath(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := week.Parse(chi.URLParam(r, "weekID"))
		if err != nil {
			writeJSON(w, apperr.HTTPStatus(err), map[string]any{"success": false, "error": apperr.UserMessage(err)})
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), weekIDKey, id)))
	})
}

func weekIDOf(r *http.Request) week.ID {
	id, _ := r.Context().Value(weekIDKey).(week.ID)
	return id
}

func slotOf(r *http.Request) (planner.Day, planner.MealType, error) {
	day, err := planner.ParseDay(chi.URLParam(r, "day"))
	if err != nil {
		return "", "", err
	}
	meal, err := planner.ParseMealType(chi.URLParam(r, "meal"))
	if err != nil {
		return "", "", err
	}
	return day, meal, nil
}

// decodeBody accepts an empty body as the zero value.
func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid request body: %v: %w", err, apperr.ErrInvalidInput)
	}
	return nil
}

func (s *Server) handleCron(w http.ResponseWriter, r *http.Request) {
	// The job is bounded by its own budget, not by the caller's connection.
	report, err := s.deps.Rollover.Run(context.WithoutCancel(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if report.AlreadyExists {
		writeJSON(w, http.StatusOK, map[string]any{"message": "Plan already exists", "weekId": report.WeekID})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":        true,
		"weekId":         report.WeekID,
		"recipesCreated": report.RecipesCreated,
		"shoppingItems":  report.ShoppingItems,
		"synced":         report.Synced,
	})
}

func (s *Server) handleGetPlan(w http.ResponseWriter, r *http.Request) {
	plan, err := s.deps.Plans.Get(r.Context(), weekIDOf(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

type generateBody struct {
	UserID         string `json:"userId"`
	Portions       int    `json:"portions"`
	PreserveLocked bool   `json:"preserveLocked"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var body generateBody
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	if body.Portions == 0 {
		body.Portions = s.cfg.Rollover.DefaultPortions
	}

	titles, err := s.deps.Titles.RecentTitles(r.Context(), body.UserID, s.cfg.Rollover.RecentTitles)
	if err != nil {
		s.logger.Warn("could not load recent titles", "error", err)
	}

	res, err := s.deps.Generator.Generate(r.Context(), planner.GenerateRequest{
		WeekID:         weekIDOf(r),
		UserID:         body.UserID,
		Portions:       body.Portions,
		RecentTitles:   titles,
		PreserveLocked: body.PreserveLocked,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":        true,
		"plan":           res.Plan,
		"recipesCreated": res.RecipesCreated,
		"imagesMissing":  res.ImagesMissing,
	})
}

func (s *Server) handleSwap(w http.ResponseWriter, r *http.Request) {
	day, meal, err := slotOf(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var body struct {
		CurrentTitle string `json:"currentTitle"`
	}
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.deps.Swapper.Swap(r.Context(), planner.SwapRequest{
		WeekID:       weekIDOf(r),
		Day:          day,
		MealType:     meal,
		CurrentTitle: body.CurrentTitle,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "recipeId": res.RecipeID, "title": res.Title})
}

func (s *Server) handleToggleLock(w http.ResponseWriter, r *http.Request) {
	day, meal, err := slotOf(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	locked, err := s.deps.Plans.ToggleLock(r.Context(), weekIDOf(r), day, meal)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "locked": locked})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	day, meal, err := slotOf(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.deps.Plans.ClearMeal(r.Context(), weekIDOf(r), day, meal); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleGetList(w http.ResponseWriter, r *http.Request) {
	list, err := s.deps.Lists.Get(r.Context(), weekIDOf(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGenerateList(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.Aggregator.Generate(r.Context(), weekIDOf(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "list": res.List, "skipped": res.Skipped})
}

func (s *Server) handleToggleItem(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		s.writeError(w, r, fmt.Errorf("item index: %w", apperr.ErrInvalidInput))
		return
	}
	checked, err := s.deps.Lists.ToggleItem(r.Context(), weekIDOf(r), index)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "checked": checked})
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	if s.deps.Pusher == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"success": false, "error": "Bring! no está configurado."})
		return
	}
	listID, err := s.deps.Pusher.Push(r.Context(), weekIDOf(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "bringListId": listID})
}
