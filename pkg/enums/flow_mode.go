package enums

import "fmt"

// FlowMode is the active state of a bulk customization flow.
type FlowMode string

const (
	FlowModeChoice    FlowMode = "choice"
	FlowModeSingle    FlowMode = "single"
	FlowModeBulkSame  FlowMode = "bulk_same"
	FlowModeBulkDiff  FlowMode = "bulk_diff"
	FlowModeConfirmed FlowMode = "confirmed"
)

var validFlowModes = []FlowMode{
	FlowModeChoice,
	FlowModeSingle,
	FlowModeBulkSame,
	FlowModeBulkDiff,
	FlowModeConfirmed,
}

// String implements fmt.Stringer.
func (f FlowMode) String() string {
	return string(f)
}

// IsValid reports whether the value is a known FlowMode.
func (f FlowMode) IsValid() bool {
	for _, candidate := range validFlowModes {
		if candidate == f {
			return true
		}
	}
	return false
}

// IsActive reports whether the mode is one of the three selectable modes.
func (f FlowMode) IsActive() bool {
	return f == FlowModeSingle || f == FlowModeBulkSame || f == FlowModeBulkDiff
}

// ParseFlowMode converts raw input into a FlowMode.
func ParseFlowMode(value string) (FlowMode, error) {
	for _, candidate := range validFlowModes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid flow mode %q", value)
}
