package catalog

import (
	"github.com/atmosfood/storefront-backend/pkg/enums"
)

// MenuItem is an immutable catalog entry. Prices are whole Naira.
type MenuItem struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Price       int64          `json:"price"`
	Category    enums.Category `json:"category"`
	Image       string         `json:"image"`
	Rating      float64        `json:"rating"`
	Calories    int            `json:"calories"`
	Tags        []string       `json:"tags"`
}

// Protein is a priced add-on that can be attached to a plate.
type Protein struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Price int64  `json:"price"`
}

// Catalog is one consistent snapshot of the menu.
type Catalog struct {
	Items    []MenuItem `json:"items"`
	Proteins []Protein  `json:"proteins"`
}

// Item finds a menu item by id.
func (c Catalog) Item(id string) (MenuItem, bool) {
	for _, item := range c.Items {
		if item.ID == id {
			return item, true
		}
	}
	return MenuItem{}, false
}

// Protein finds a protein add-on by id.
func (c Catalog) Protein(id string) (Protein, bool) {
	for _, p := range c.Proteins {
		if p.ID == id {
			return p, true
		}
	}
	return Protein{}, false
}

// ByCategory filters items. CategoryAll returns everything except drinks,
// which are sold from the drinks drawer.
func (c Catalog) ByCategory(category enums.Category) []MenuItem {
	out := make([]MenuItem, 0, len(c.Items))
	for _, item := range c.Items {
		switch {
		case category == enums.CategoryAll && item.Category != enums.CategoryDrinks:
			out = append(out, item)
		case item.Category == category:
			out = append(out, item)
		}
	}
	return out
}
