package cart

import (
	"fmt"

	"github.com/atmosfood/storefront-backend/internal/catalog"
	"github.com/atmosfood/storefront-backend/pkg/config"
	"github.com/atmosfood/storefront-backend/pkg/enums"
)

// Nudge tells the client what to show after an item lands in the cart.
type Nudge struct {
	Toast            string `json:"toast"`
	ToastDurationMs  int64  `json:"toastDurationMs"`
	SuggestNext      bool   `json:"suggestNext"`
	OpenDrinksDrawer bool   `json:"openDrinksDrawer"`
	DrawerDelayMs    int64  `json:"drawerDelayMs,omitempty"`
}

// NudgeFor builds the post-add nudge for item. Grains suggest a drink and
// open the drinks drawer after a short delay.
func NudgeFor(item catalog.MenuItem, cfg config.NudgeConfig) Nudge {
	n := Nudge{ToastDurationMs: cfg.ToastDuration.Milliseconds()}
	switch item.Category {
	case enums.CategoryDrinks:
		n.Toast = fmt.Sprintf("Thirst Quenched! %s added!", item.Name)
	case enums.CategoryGrains:
		n.Toast = "Elite Choice! Adding a drink?"
		n.SuggestNext = true
		n.OpenDrinksDrawer = true
		n.DrawerDelayMs = cfg.DrinksDelay.Milliseconds()
	default:
		n.Toast = fmt.Sprintf("%s added to pack!", item.Name)
	}
	return n
}
