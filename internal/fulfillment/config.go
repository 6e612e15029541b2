package fulfillment

import (
	"strings"

	"github.com/atmosfood/storefront-backend/internal/address"
	"github.com/atmosfood/storefront-backend/internal/areas"
	"github.com/atmosfood/storefront-backend/internal/pricing"
	"github.com/atmosfood/storefront-backend/pkg/enums"
	"github.com/atmosfood/storefront-backend/pkg/types"
	"github.com/go-playground/validator/v10"
)

const (
	FieldName     = "name"
	FieldPhone    = "phone"
	FieldEmail    = "email"
	FieldAddress  = "address"
	FieldLocation = "location"

	SourceAreaPicker = "area_picker"
)

var validate = validator.New()

// Contact holds who the order is for.
type Contact struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email,omitempty"`
}

// Config is one session's delivery-or-pickup choice. Method changes clear
// any resolved location.
type Config struct {
	Method          enums.DeliveryMethod `json:"method"`
	AreaID          string               `json:"areaId,omitempty"`
	AreaName        string               `json:"areaName,omitempty"`
	LGA             string               `json:"lga,omitempty"`
	Address         string               `json:"address,omitempty"`
	ResolvedAddress string               `json:"resolvedAddress,omitempty"`
	Location        *types.GeoPoint      `json:"location,omitempty"`
	DistanceKm      *float64             `json:"distanceKm,omitempty"`
	Source          string               `json:"source,omitempty"`
	Contact         Contact              `json:"contact"`
}

// New returns the starting configuration. Delivery is preselected.
func New() Config {
	return Config{Method: enums.DeliveryMethodDelivery}
}

// WithMethod switches method. Switching to a different method discards the
// area and location so no stale fee survives.
func (c Config) WithMethod(m enums.DeliveryMethod) Config {
	if m == c.Method {
		return c
	}
	out := c.clearResolution()
	out.Method = m
	return out
}

// WithArea records an area picked from the LGA picker.
func (c Config) WithArea(a areas.Area) Config {
	out := c.clearResolution()
	out.AreaID = a.ID
	out.AreaName = a.Name
	out.LGA = a.LGA
	out.Source = SourceAreaPicker
	return out
}

// WithResolution records a located address.
func (c Config) WithResolution(r address.Resolution) Config {
	out := c.clearResolution()
	out.Address = r.Query
	out.ResolvedAddress = r.DisplayName
	point := r.Point
	out.Location = &point
	km := r.DistanceKm
	out.DistanceKm = &km
	out.Source = r.Source
	if r.Area != nil {
		out.AreaID = r.Area.ID
		out.AreaName = r.Area.Name
		out.LGA = r.Area.LGA
	}
	return out
}

// WithAddress sets the free-text address. A location derived from the old
// text is dropped when the text changes; a picked area is kept.
func (c Config) WithAddress(text string) Config {
	text = strings.TrimSpace(text)
	if text == c.Address {
		return c
	}
	out := c
	if c.Source != "" && c.Source != SourceAreaPicker {
		out = c.clearResolution()
	}
	out.Address = text
	return out
}

// Resolved reports whether a delivery fee can be computed.
func (c Config) Resolved() bool {
	if c.Method == enums.DeliveryMethodPickup {
		return true
	}
	return c.AreaID != "" || c.Location != nil || c.DistanceKm != nil
}

// FeeInput maps the config onto the pricing inputs.
func (c Config) FeeInput() pricing.FeeInput {
	return pricing.FeeInput{
		Method:     c.Method,
		AreaID:     c.AreaID,
		Location:   c.Location,
		DistanceKm: c.DistanceKm,
	}
}

// Missing lists the fields that still block submit. Email is only required
// when requireEmail is set, but a supplied email must be well formed.
func Missing(c Config, requireEmail bool) []string {
	out := []string{}
	if strings.TrimSpace(c.Contact.Name) == "" {
		out = append(out, FieldName)
	}
	if strings.TrimSpace(c.Contact.Phone) == "" {
		out = append(out, FieldPhone)
	}
	email := strings.TrimSpace(c.Contact.Email)
	if (requireEmail && email == "") || (email != "" && validate.Var(email, "email") != nil) {
		out = append(out, FieldEmail)
	}
	if c.Method != enums.DeliveryMethodPickup {
		if strings.TrimSpace(c.Address) == "" {
			out = append(out, FieldAddress)
		}
		if !c.Resolved() {
			out = append(out, FieldLocation)
		}
	}
	return out
}

// CanSubmit is true when nothing is missing.
func CanSubmit(c Config, requireEmail bool) bool {
	return len(Missing(c, requireEmail)) == 0
}

func (c Config) clearResolution() Config {
	out := c
	out.AreaID = ""
	out.AreaName = ""
	out.LGA = ""
	out.ResolvedAddress = ""
	out.Location = nil
	out.DistanceKm = nil
	out.Source = ""
	return out
}
