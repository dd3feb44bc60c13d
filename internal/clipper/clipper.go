// Package clipper imports recipes from web pages into the recipe store.
package clipper

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"text/template"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"

	"meal-planner/internal/apperr"
	"meal-planner/internal/images"
	"meal-planner/internal/llm"
	"meal-planner/internal/planner"
	"meal-planner/internal/recipe"
	"meal-planner/internal/shared"
)

//go:embed clip_prompt.md
var clipPrompt string

var clipTmpl = template.Must(template.New("Clip").Parse(clipPrompt))

// AgentClipper is the agent name recorded with the token usage of an import.
const AgentClipper = "RecipeClipper"

// maxPageRunes caps the page text sent to the model.
const maxPageRunes = 12000

// RecipeSaver persists an imported recipe.
type RecipeSaver interface {
	Save(ctx context.Context, rec recipe.Recipe) error
}

// ImportRequest describes one page to import.
type ImportRequest struct {
	URL      string
	UserID   string
	Portions int
}

// Clipper fetches a page, asks the AI collaborator to structure it and stores the result.
type Clipper struct {
	textGen    llm.TextGenerator
	recipes    RecipeSaver
	images     images.Searcher
	metrics    planner.MetaRecorder
	httpClient *http.Client
	logger     *slog.Logger
	now        func() time.Time
}

// New creates a new Clipper. images and metrics may be nil.
func New(
	textGen llm.TextGenerator,
	recipes RecipeSaver,
	searcher images.Searcher,
	metrics planner.MetaRecorder,
	logger *slog.Logger,
) *Clipper {
	if searcher == nil {
		searcher = images.Noop{}
	}
	return &Clipper{
		textGen:    textGen,
		recipes:    recipes,
		images:     searcher,
		metrics:    metrics,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     logger,
		now:        time.Now,
	}
}

// Import stores the recipe found at req.URL as an imported recipe.
func (c *Clipper) Import(ctx context.Context, req ImportRequest) (*recipe.Recipe, error) {
	u, err := url.Parse(req.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("recipe url %q: %w", req.URL, apperr.ErrInvalidInput)
	}
	if req.Portions < 1 {
		req.Portions = planner.DefaultPortions
	}

	text, err := c.fetchAndCleanHTML(ctx, u.String())
	if err != nil {
		return nil, err
	}

	draft, meal, err := c.extract(ctx, text)
	if err != nil {
		return nil, err
	}

	rec := draft.ToRecipe(uuid.NewString(), req.UserID, meal, req.Portions, c.now().UTC())
	rec.Source = recipe.SourceImported
	rec.ImageURL = c.images.Search(ctx, rec.SearchQuery())

	if err := c.recipes.Save(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to save imported recipe: %w", err)
	}
	c.logger.Info("recipe imported", "id", rec.ID, "title", rec.Title, "url", req.URL)
	return &rec, nil
}

func (c *Clipper) extract(ctx context.Context, text string) (planner.RecipeDraft, planner.MealType, error) {
	start := time.Now()

	var buf bytes.Buffer
	if err := clipTmpl.Execute(&buf, struct{ Text string }{text}); err != nil {
		return planner.RecipeDraft{}, "", fmt.Errorf("failed to render clip prompt: %w", err)
	}

	resp, err := c.textGen.GenerateContent(ctx, buf.String())
	if err != nil {
		return planner.RecipeDraft{}, "", fmt.Errorf("ai extraction failed: %w", err)
	}
	c.recordMeta(ctx, shared.Since(AgentClipper, resp.Usage, start))

	draft, err := planner.DecodeRecipePayload(resp.Content)
	if err != nil {
		return planner.RecipeDraft{}, "", err
	}
	return draft, mealTypeOf(resp.Content), nil
}

// mealTypeOf falls back to dinner when the answer has no usable meal type.
func mealTypeOf(raw string) planner.MealType {
	body, err := llm.ExtractJSON(raw)
	if err != nil {
		return planner.Dinner
	}
	var v struct {
		MealType string `json:"mealType"`
	}
	if err := json.Unmarshal([]byte(body), &v); err != nil {
		return planner.Dinner
	}
	meal, err := planner.ParseMealType(v.MealType)
	if err != nil {
		return planner.Dinner
	}
	return meal
}

func (c *Clipper) fetchAndCleanHTML(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to fetch page: status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to parse page: %w", err)
	}

	// Remove noise to save tokens.
	doc.Find("script, style, nav, footer, iframe, noscript, .ads, #ads").Remove()

	text := strings.Join(strings.Fields(doc.Find("body").Text()), " ")
	if text == "" {
		return "", fmt.Errorf("page has no text: %w", apperr.ErrEmptyInput)
	}
	if r := []rune(text); len(r) > maxPageRunes {
		text = string(r[:maxPageRunes])
	}
	return text, nil
}

func (c *Clipper) recordMeta(ctx context.Context, meta shared.AgentMeta) {
	if c.metrics == nil {
		return
	}
	if err := c.metrics.RecordMeta(ctx, meta); err != nil {
		c.logger.Warn("failed to record agent metrics", "agent", meta.AgentName, "error", err)
	}
}
