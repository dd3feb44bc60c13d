package shopping

import (
	"strings"
	"time"

	"meal-planner/internal/week"
)

// Category groups items the way the supermarket does.
type Category string

const (
	Proteinas   Category = "Proteinas"
	Verduras    Category = "Verduras"
	Frutas      Category = "Frutas"
	Lacteos     Category = "Lacteos"
	Condimentos Category = "Condimentos"
	Otros       Category = "Otros"
)

// Categories lists the fixed taxonomy in display order.
var Categories = []Category{Proteinas, Verduras, Frutas, Lacteos, Condimentos, Otros}

var unaccent = strings.NewReplacer("á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u")

// ParseCategory maps s onto the taxonomy, ignoring case and accents.
// Anything unknown becomes Otros.
func ParseCategory(s string) Category {
	key := unaccent.Replace(strings.ToLower(strings.TrimSpace(s)))
	for _, c := range Categories {
		if strings.ToLower(string(c)) == key {
			return c
		}
	}
	return Otros
}

// Item is one consolidated line of a shopping list.
type Item struct {
	Name     string   `json:"name"`
	Quantity string   `json:"quantity"`
	Category Category `json:"category"`
	Checked  bool     `json:"checked"`
}

// List is the shopping list of one week.
type List struct {
	WeekID        week.ID   `json:"weekId"`
	UserID        string    `json:"userId"`
	Items         []Item    `json:"items"`
	SyncedToBring bool      `json:"syncedToBring"`
	BringListID   string    `json:"bringListId"`
	GeneratedAt   time.Time `json:"generatedAt"`
}

// Unchecked returns the items still to buy, in list order.
func (l *List) Unchecked() []Item {
	var out []Item
	for _, it := range l.Items {
		if !it.Checked {
			out = append(out, it)
		}
	}
	return out
}
