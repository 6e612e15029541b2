package cart

import (
	"github.com/atmosfood/storefront-backend/internal/catalog"
	"github.com/atmosfood/storefront-backend/pkg/enums"
)

// Staging is a detached copy of one category's lines. It is edited freely,
// including down to zero, and only touches the cart through Reconcile.
type Staging struct {
	Category enums.Category `json:"category"`
	Lines    []Line         `json:"lines"`
}

// NewStaging seeds a staging set from the cart's lines in category.
func NewStaging(c Cart, category enums.Category) Staging {
	return Staging{Category: category, Lines: c.LinesIn(category)}
}

func (s Staging) clone() Staging {
	return Staging{Category: s.Category, Lines: Cart{Lines: s.Lines}.Clone().Lines}
}

// Add merges an item into the staging set the same way AddLine does.
func (s Staging) Add(item catalog.MenuItem, quantity int) Staging {
	merged := AddLine(Cart{Lines: s.Lines}, item, nil, quantity)
	return Staging{Category: s.Category, Lines: merged.Lines}
}

// Adjust shifts a staged line by delta. Reaching zero drops the line.
func (s Staging) Adjust(lineID string, delta int) Staging {
	out := s.clone()
	lines := out.Lines[:0]
	for _, line := range out.Lines {
		if line.ID == lineID {
			line.Quantity += delta
			if line.Quantity <= 0 {
				continue
			}
		}
		lines = append(lines, line)
	}
	out.Lines = lines
	return out
}

// ItemCount sums staged quantities.
func (s Staging) ItemCount() int {
	return Cart{Lines: s.Lines}.ItemCount()
}

// Reconcile writes a staging set back into the cart: lines of the staged
// category missing from staging are removed, shared lines take the staged
// quantity and staging-only lines are appended. Other categories are kept.
func Reconcile(c Cart, s Staging) Cart {
	staged := make(map[string]Line, len(s.Lines))
	for _, line := range s.Lines {
		staged[line.ID] = line
	}

	out := Cart{Lines: make([]Line, 0, len(c.Lines)+len(s.Lines))}
	present := make(map[string]struct{}, len(c.Lines))
	for _, line := range c.Clone().Lines {
		if line.Category != s.Category {
			out.Lines = append(out.Lines, line)
			continue
		}
		next, ok := staged[line.ID]
		if !ok {
			continue
		}
		line.Quantity = next.Quantity
		out.Lines = append(out.Lines, line)
		present[line.ID] = struct{}{}
	}
	for _, line := range s.clone().Lines {
		if _, ok := present[line.ID]; ok {
			continue
		}
		if line.Quantity > 0 {
			out.Lines = append(out.Lines, line)
		}
	}
	return out
}
