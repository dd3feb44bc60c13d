package recipe

import "time"

// Source tells where a recipe came from.
type Source string

const (
	SourceManual   Source = "manual"
	SourceAI       Source = "ai"
	SourceImported Source = "imported"
)

// Macros are per-portion nutrition estimates.
type Macros struct {
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein"`
	Carbs    float64 `json:"carbs"`
	Fat      float64 `json:"fat"`
}

// Recipe is a stored recipe. Recipes created by the planner are never shared between
// slots: every generation or swap produces a new one.
type Recipe struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Diets       []string  `json:"diets"`
	Ingredients []string  `json:"ingredients"`
	Steps       []string  `json:"steps"`
	ImageURL    string    `json:"imageUrl"`
	ImageQuery  string    `json:"imageQuery,omitempty"`
	Macros      *Macros   `json:"macros,omitempty"`
	Source      Source    `json:"source"`
	MealType    string    `json:"mealType,omitempty"`
	Portions    int       `json:"portions,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// SearchQuery is the text used to look up a representative photo.
func (r Recipe) SearchQuery() string {
	if r.ImageQuery != "" {
		return r.ImageQuery
	}
	return r.Title
}
