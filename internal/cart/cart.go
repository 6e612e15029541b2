package cart

import (
	"sort"
	"strings"

	"github.com/atmosfood/storefront-backend/internal/catalog"
	"github.com/atmosfood/storefront-backend/pkg/enums"
)

const (
	noProteinSegment = "no-protein"
	idSeparator      = "-"
)

// Line is one distinct (menu item, protein set) entry. The item fields are a
// snapshot taken when the line was created.
type Line struct {
	ID        string            `json:"lineId"`
	ItemID    string            `json:"itemId"`
	Name      string            `json:"name"`
	Category  enums.Category    `json:"category"`
	Image     string            `json:"image,omitempty"`
	UnitPrice int64             `json:"unitPrice"`
	Quantity  int               `json:"quantity"`
	Proteins  []catalog.Protein `json:"proteins"`
}

// ProteinIDs returns the sorted protein ids of the line.
func (l Line) ProteinIDs() []string {
	ids := make([]string, 0, len(l.Proteins))
	for _, p := range l.Proteins {
		ids = append(ids, p.ID)
	}
	sort.Strings(ids)
	return ids
}

// Cart is an ordered list of lines with unique ids. Operations return a new
// Cart and never modify their input.
type Cart struct {
	Lines []Line `json:"lines"`
}

// LineSpec asks for quantity plates of one item with a protein set.
type LineSpec struct {
	Quantity int               `json:"quantity"`
	Proteins []catalog.Protein `json:"proteins"`
}

// LineID derives the composite identity of an item and protein set. The
// protein ids are sorted so selection order does not matter.
func LineID(itemID string, proteinIDs []string) string {
	if len(proteinIDs) == 0 {
		return itemID + idSeparator + noProteinSegment
	}
	ids := make([]string, len(proteinIDs))
	copy(ids, proteinIDs)
	sort.Strings(ids)
	return itemID + idSeparator + strings.Join(ids, idSeparator)
}

func proteinIDs(proteins []catalog.Protein) []string {
	ids := make([]string, 0, len(proteins))
	for _, p := range proteins {
		ids = append(ids, p.ID)
	}
	return ids
}

// Clone returns a deep copy of c.
func (c Cart) Clone() Cart {
	out := Cart{Lines: make([]Line, len(c.Lines))}
	for i, line := range c.Lines {
		line.Proteins = append([]catalog.Protein(nil), line.Proteins...)
		out.Lines[i] = line
	}
	return out
}

// Find returns the line with id.
func (c Cart) Find(id string) (Line, bool) {
	for _, line := range c.Lines {
		if line.ID == id {
			return line, true
		}
	}
	return Line{}, false
}

// IsEmpty reports whether the cart has no lines.
func (c Cart) IsEmpty() bool {
	return len(c.Lines) == 0
}

// ItemCount sums quantities.
func (c Cart) ItemCount() int {
	total := 0
	for _, line := range c.Lines {
		total += line.Quantity
	}
	return total
}

// AddLine merges item with proteins into the cart. An existing line with the
// same identity gains quantity; otherwise a snapshot line is appended.
// Quantities below 1 are treated as 1.
func AddLine(c Cart, item catalog.MenuItem, proteins []catalog.Protein, quantity int) Cart {
	if quantity < 1 {
		quantity = 1
	}
	out := c.Clone()
	id := LineID(item.ID, proteinIDs(proteins))
	for i := range out.Lines {
		if out.Lines[i].ID == id {
			out.Lines[i].Quantity += quantity
			return out
		}
	}

	sorted := append([]catalog.Protein(nil), proteins...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	out.Lines = append(out.Lines, Line{
		ID:        id,
		ItemID:    item.ID,
		Name:      item.Name,
		Category:  item.Category,
		Image:     item.Image,
		UnitPrice: item.Price,
		Quantity:  quantity,
		Proteins:  sorted,
	})
	return out
}

// AddLines applies AddLine once per line spec, in order.
func AddLines(c Cart, item catalog.MenuItem, specs []LineSpec) Cart {
	out := c
	for _, spec := range specs {
		out = AddLine(out, item, spec.Proteins, spec.Quantity)
	}
	return out
}

// UpdateQuantity shifts a line's quantity by delta, never below 1. Removing a
// line is RemoveLine's job. Unknown ids leave the cart unchanged.
func UpdateQuantity(c Cart, lineID string, delta int) Cart {
	out := c.Clone()
	for i := range out.Lines {
		if out.Lines[i].ID == lineID {
			out.Lines[i].Quantity = max(1, out.Lines[i].Quantity+delta)
			break
		}
	}
	return out
}

// RemoveLine deletes the line if present.
func RemoveLine(c Cart, lineID string) Cart {
	out := Cart{Lines: make([]Line, 0, len(c.Lines))}
	for _, line := range c.Clone().Lines {
		if line.ID != lineID {
			out.Lines = append(out.Lines, line)
		}
	}
	return out
}

// LinesIn returns the lines of one category.
func (c Cart) LinesIn(category enums.Category) []Line {
	out := []Line{}
	for _, line := range c.Clone().Lines {
		if line.Category == category {
			out = append(out, line)
		}
	}
	return out
}
