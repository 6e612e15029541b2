package areas

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	pkgerrors "github.com/atmosfood/storefront-backend/pkg/errors"
	"github.com/atmosfood/storefront-backend/pkg/types"
	"gopkg.in/yaml.v3"
)

//go:embed areas.yaml
var defaultTable []byte

// Area is a delivery area inside an LGA.
type Area struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	LGA       string         `json:"lga"`
	Point     types.GeoPoint `json:"location"`
	Surcharge int64          `json:"surcharge"`
	Keywords  []string       `json:"-"`
	IsKitchen bool           `json:"isKitchen,omitempty"`
}

// LGA groups areas for the two-level picker.
type LGA struct {
	Name      string `json:"name"`
	Surcharge int64  `json:"surcharge"`
	Areas     []Area `json:"areas"`
}

// Bounds is the rectangle the storefront delivers within.
type Bounds struct {
	MinLat float64 `yaml:"min_lat" json:"minLat"`
	MaxLat float64 `yaml:"max_lat" json:"maxLat"`
	MinLng float64 `yaml:"min_lng" json:"minLng"`
	MaxLng float64 `yaml:"max_lng" json:"maxLng"`
}

// Contains reports whether p lies inside b. A zero Bounds contains everything.
func (b Bounds) Contains(p types.GeoPoint) bool {
	if b == (Bounds{}) {
		return true
	}
	return p.Lat >= b.MinLat && p.Lat <= b.MaxLat && p.Lng >= b.MinLng && p.Lng <= b.MaxLng
}

// Table is read-only reference data. It is safe for concurrent use.
type Table struct {
	lgas     []LGA
	byID     map[string]Area
	kitchen  string
	bounds   Bounds
	radiusKm float64
}

type fileArea struct {
	ID        string   `yaml:"id"`
	Name      string   `yaml:"name"`
	Lat       float64  `yaml:"lat"`
	Lng       float64  `yaml:"lng"`
	Surcharge *int64   `yaml:"surcharge"`
	Keywords  []string `yaml:"keywords"`
}

type fileLGA struct {
	Name      string     `yaml:"name"`
	Surcharge int64      `yaml:"surcharge"`
	Areas     []fileArea `yaml:"areas"`
}

type fileTable struct {
	Kitchen         string    `yaml:"kitchen"`
	Bounds          Bounds    `yaml:"bounds"`
	DefaultRadiusKm float64   `yaml:"default_radius_km"`
	LGAs            []fileLGA `yaml:"lgas"`
}

// Default returns the embedded Ilorin table.
func Default() (*Table, error) {
	return Load(bytes.NewReader(defaultTable))
}

// LoadFile reads a table from path, falling back to the embedded table when
// path is empty.
func LoadFile(path string) (*Table, error) {
	if strings.TrimSpace(path) == "" {
		return Default()
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open area table: %w", err)
	}
	defer func() { _ = f.Close() }()
	return Load(f)
}

// Load parses a YAML area table.
func Load(r io.Reader) (*Table, error) {
	var raw fileTable
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode area table: %w", err)
	}

	t := &Table{
		byID:     map[string]Area{},
		kitchen:  strings.TrimSpace(raw.Kitchen),
		bounds:   raw.Bounds,
		radiusKm: raw.DefaultRadiusKm,
	}
	for _, rl := range raw.LGAs {
		if rl.Surcharge < 0 {
			return nil, fmt.Errorf("lga %q: surcharge must be non-negative", rl.Name)
		}
		lga := LGA{Name: rl.Name, Surcharge: rl.Surcharge}
		for _, ra := range rl.Areas {
			id := strings.TrimSpace(ra.ID)
			if id == "" {
				return nil, fmt.Errorf("lga %q: area id is required", rl.Name)
			}
			if _, dup := t.byID[id]; dup {
				return nil, fmt.Errorf("duplicate area id %q", id)
			}
			area := Area{
				ID:        id,
				Name:      ra.Name,
				LGA:       rl.Name,
				Point:     types.GeoPoint{Lat: ra.Lat, Lng: ra.Lng},
				Surcharge: rl.Surcharge,
				Keywords:  normalizeKeywords(ra.Keywords),
				IsKitchen: id == t.kitchen,
			}
			if ra.Surcharge != nil {
				area.Surcharge = *ra.Surcharge
			}
			if area.IsKitchen {
				area.Surcharge = 0
			}
			if area.Surcharge < 0 {
				return nil, fmt.Errorf("area %q: surcharge must be non-negative", id)
			}
			if err := area.Point.Validate(); err != nil {
				return nil, fmt.Errorf("area %q: %w", id, err)
			}
			lga.Areas = append(lga.Areas, area)
			t.byID[id] = area
		}
		t.lgas = append(t.lgas, lga)
	}
	if t.kitchen != "" {
		if _, ok := t.byID[t.kitchen]; !ok {
			return nil, fmt.Errorf("kitchen area %q is not in the table", t.kitchen)
		}
	}
	return t, nil
}

// LGAs returns the districts in table order.
func (t *Table) LGAs() []LGA {
	out := make([]LGA, len(t.lgas))
	copy(out, t.lgas)
	return out
}

// AreasByLGA returns the areas of one district.
func (t *Table) AreasByLGA(name string) ([]Area, bool) {
	for _, lga := range t.lgas {
		if strings.EqualFold(lga.Name, name) {
			out := make([]Area, len(lga.Areas))
			copy(out, lga.Areas)
			return out, true
		}
	}
	return nil, false
}

// Area looks an area up by id.
func (t *Table) Area(id string) (Area, bool) {
	a, ok := t.byID[strings.TrimSpace(id)]
	return a, ok
}

// Kitchen returns the area the kitchen sits in.
func (t *Table) Kitchen() (Area, bool) {
	return t.Area(t.kitchen)
}

// Bounds returns the delivery rectangle.
func (t *Table) Bounds() Bounds {
	return t.bounds
}

// Surcharge returns the flat add-on fee for areaID.
func (t *Table) Surcharge(areaID string) (int64, error) {
	a, ok := t.Area(areaID)
	if !ok {
		return 0, pkgerrors.Newf(pkgerrors.CodeNotFound, "unknown delivery area %q", areaID)
	}
	return a.Surcharge, nil
}

// Point returns the reference coordinate of areaID.
func (t *Table) Point(areaID string) (types.GeoPoint, error) {
	a, ok := t.Area(areaID)
	if !ok {
		return types.GeoPoint{}, pkgerrors.Newf(pkgerrors.CodeNotFound, "unknown delivery area %q", areaID)
	}
	return a.Point, nil
}

// Locate scores free text against area names and keywords and returns the
// best match. A full name match scores 10, its leading segment 5 and every
// keyword 3.
func (t *Table) Locate(text string) (Area, bool) {
	lower := strings.ToLower(strings.TrimSpace(text))
	if lower == "" {
		return Area{}, false
	}

	var best Area
	bestScore := 0
	for _, lga := range t.lgas {
		for _, area := range lga.Areas {
			score := 0
			name := strings.ToLower(area.Name)
			if strings.Contains(lower, name) {
				score += 10
			}
			if head := strings.TrimSpace(strings.SplitN(name, " / ", 2)[0]); head != "" && strings.Contains(lower, head) {
				score += 5
			}
			for _, kw := range area.Keywords {
				if strings.Contains(lower, kw) {
					score += 3
				}
			}
			if score > bestScore {
				bestScore = score
				best = area
			}
		}
	}
	return best, bestScore > 0
}

// Search returns up to limit areas whose name, LGA or keywords contain
// query, in table order.
func (t *Table) Search(query string, limit int) []Area {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" || limit <= 0 {
		return nil
	}
	out := []Area{}
	for _, lga := range t.lgas {
		lgaHit := strings.Contains(strings.ToLower(lga.Name), q)
		for _, area := range lga.Areas {
			if len(out) == limit {
				return out
			}
			if lgaHit || strings.Contains(strings.ToLower(area.Name), q) || matchesKeyword(area.Keywords, q) {
				out = append(out, area)
			}
		}
	}
	return out
}

func matchesKeyword(keywords []string, q string) bool {
	for _, kw := range keywords {
		if strings.Contains(kw, q) {
			return true
		}
	}
	return false
}

// Nearest returns the closest area to p and its distance. ok is false when
// the closest area is farther than the table radius.
func (t *Table) Nearest(p types.GeoPoint) (Area, float64, bool) {
	var best Area
	bestDist := math.Inf(1)
	for _, lga := range t.lgas {
		for _, area := range lga.Areas {
			if d := area.Point.DistanceKm(p); d < bestDist {
				best, bestDist = area, d
			}
		}
	}
	if math.IsInf(bestDist, 1) {
		return Area{}, 0, false
	}
	return best, bestDist, t.radiusKm <= 0 || bestDist <= t.radiusKm
}

func normalizeKeywords(in []string) []string {
	out := make([]string, 0, len(in))
	for _, kw := range in {
		if trimmed := strings.ToLower(strings.TrimSpace(kw)); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
