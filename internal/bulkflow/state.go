package bulkflow

import (
	"sort"
	"strings"
	"time"

	"github.com/atmosfood/storefront-backend/internal/catalog"
	"github.com/atmosfood/storefront-backend/pkg/enums"
	pkgerrors "github.com/atmosfood/storefront-backend/pkg/errors"
)

const (
	MinPlates     = 1
	MaxPlates     = 10
	DefaultPlates = 2
)

// ActionType names a transition of the flow.
type ActionType string

const (
	ActionChooseMode    ActionType = "choose_mode"
	ActionSetQuantity   ActionType = "set_quantity"
	ActionToggleProtein ActionType = "toggle_protein"
	ActionBackToChoice  ActionType = "back_to_choice"
)

// Action is one user step. Plate is only read in bulk_diff mode.
type Action struct {
	Type      ActionType     `json:"type" validate:"required,oneof=choose_mode set_quantity toggle_protein back_to_choice"`
	Mode      enums.FlowMode `json:"mode,omitempty"`
	Quantity  int            `json:"quantity,omitempty"`
	Plate     *int           `json:"plate,omitempty"`
	ProteinID string         `json:"proteinId,omitempty"`
}

// State is the whole flow. Shared holds the protein ids of single and
// bulk_same; Plates holds one selection per plate for bulk_diff and always
// has Quantity entries.
type State struct {
	ID        string           `json:"id"`
	SessionID string           `json:"-"`
	Item      catalog.MenuItem `json:"item"`
	Mode      enums.FlowMode   `json:"mode"`
	Quantity  int              `json:"quantity"`
	Shared    []string         `json:"shared"`
	Plates    [][]string       `json:"plates"`
	CreatedAt time.Time        `json:"createdAt"`
}

// storedState keeps the session binding in the persisted document.
type storedState struct {
	State
	Session string `json:"sessionId"`
}

// PlateSpec is one line the flow emits on confirm.
type PlateSpec struct {
	Quantity   int      `json:"quantity"`
	ProteinIDs []string `json:"proteinIds"`
}

// NewState opens a flow for item in the mode choice step.
func NewState(id, sessionID string, item catalog.MenuItem, now time.Time) State {
	s := State{ID: id, SessionID: sessionID, Item: item, CreatedAt: now.UTC()}
	return resetSelections(s)
}

func resetSelections(s State) State {
	s.Mode = enums.FlowModeChoice
	s.Quantity = DefaultPlates
	s.Shared = []string{}
	s.Plates = resizePlates(nil, DefaultPlates)
	return s
}

// Reduce applies a to s and returns the next state. s is not modified.
func Reduce(s State, a Action) (State, error) {
	if s.Mode == enums.FlowModeConfirmed {
		return s, pkgerrors.New(pkgerrors.CodeStateConflict, "flow already confirmed")
	}
	next := s.clone()

	switch a.Type {
	case ActionChooseMode:
		if s.Mode != enums.FlowModeChoice {
			return s, modeConflict(s.Mode, a.Type)
		}
		if !a.Mode.IsActive() {
			return s, pkgerrors.Newf(pkgerrors.CodeValidation, "mode must be one of single, bulk_same, bulk_diff; got %q", a.Mode)
		}
		next.Mode = a.Mode
		if a.Mode == enums.FlowModeSingle {
			next.Quantity = 1
			next.Plates = resizePlates(next.Plates, 1)
		}
		return next, nil

	case ActionSetQuantity:
		if s.Mode != enums.FlowModeBulkSame && s.Mode != enums.FlowModeBulkDiff {
			return s, modeConflict(s.Mode, a.Type)
		}
		next.Quantity = ClampQuantity(a.Quantity)
		next.Plates = resizePlates(next.Plates, next.Quantity)
		return next, nil

	case ActionToggleProtein:
		if !s.Mode.IsActive() {
			return s, modeConflict(s.Mode, a.Type)
		}
		id := strings.TrimSpace(a.ProteinID)
		if id == "" {
			return s, pkgerrors.New(pkgerrors.CodeValidation, "proteinId is required")
		}
		if s.Mode != enums.FlowModeBulkDiff {
			next.Shared = toggle(next.Shared, id)
			return next, nil
		}
		if a.Plate == nil || *a.Plate < 0 || *a.Plate >= next.Quantity {
			return s, pkgerrors.Newf(pkgerrors.CodeValidation, "plate must be between 0 and %d", next.Quantity-1)
		}
		next.Plates[*a.Plate] = toggle(next.Plates[*a.Plate], id)
		return next, nil

	case ActionBackToChoice:
		if !s.Mode.IsActive() {
			return s, modeConflict(s.Mode, a.Type)
		}
		return resetSelections(next), nil
	}

	return s, pkgerrors.Newf(pkgerrors.CodeValidation, "unknown action %q", a.Type)
}

// Specs lists the lines a confirm would emit.
func Specs(s State) ([]PlateSpec, error) {
	switch s.Mode {
	case enums.FlowModeSingle:
		return []PlateSpec{{Quantity: 1, ProteinIDs: sorted(s.Shared)}}, nil
	case enums.FlowModeBulkSame:
		return []PlateSpec{{Quantity: s.Quantity, ProteinIDs: sorted(s.Shared)}}, nil
	case enums.FlowModeBulkDiff:
		out := make([]PlateSpec, 0, s.Quantity)
		for _, plate := range s.Plates[:s.Quantity] {
			out = append(out, PlateSpec{Quantity: 1, ProteinIDs: sorted(plate)})
		}
		return out, nil
	case enums.FlowModeConfirmed:
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "flow already confirmed")
	}
	return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "choose a mode before confirming")
}

// Confirm emits the line specs and moves the flow to its terminal state.
func Confirm(s State) ([]PlateSpec, State, error) {
	specs, err := Specs(s)
	if err != nil {
		return nil, s, err
	}
	next := s.clone()
	next.Mode = enums.FlowModeConfirmed
	return specs, next, nil
}

// ClampQuantity bounds n to [MinPlates, MaxPlates].
func ClampQuantity(n int) int {
	return min(MaxPlates, max(MinPlates, n))
}

func (s State) clone() State {
	out := s
	out.Shared = append([]string{}, s.Shared...)
	out.Plates = make([][]string, len(s.Plates))
	for i, plate := range s.Plates {
		out.Plates[i] = append([]string{}, plate...)
	}
	return out
}

// resizePlates appends empty slots or truncates, keeping existing selections.
func resizePlates(plates [][]string, n int) [][]string {
	if len(plates) >= n {
		return plates[:n]
	}
	out := make([][]string, n)
	copy(out, plates)
	for i := len(plates); i < n; i++ {
		out[i] = []string{}
	}
	return out
}

func toggle(selected []string, id string) []string {
	out := make([]string, 0, len(selected)+1)
	found := false
	for _, existing := range selected {
		if existing == id {
			found = true
			continue
		}
		out = append(out, existing)
	}
	if !found {
		out = append(out, id)
	}
	return out
}

func sorted(ids []string) []string {
	out := append([]string{}, ids...)
	sort.Strings(out)
	return out
}

func modeConflict(mode enums.FlowMode, action ActionType) error {
	return pkgerrors.Newf(pkgerrors.CodeStateConflict, "%s is not allowed in %s mode", action, mode).
		WithDetails(map[string]string{"mode": mode.String(), "action": string(action)})
}
