package indicator

import (
	"errors"
	"fmt"
)

// ErrUnknownIndicator is returned for keys missing from the catalog.
var ErrUnknownIndicator = errors.New("unknown indicator")

// ValidationError reports a raw input that is missing, non-numeric or outside
// the indicator's domain. It is raised before any standardization arithmetic.
type ValidationError struct {
	Indicator string `json:"indicator"`
	Field     string `json:"field"`
	Reason    string `json:"reason"`
}

func (e *ValidationError) Error() string {
	if e.Indicator == "" {
		return fmt.Sprintf("invalid input %q: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("%s: invalid input %q: %s", e.Indicator, e.Field, e.Reason)
}

func invalid(indicator, field, reason string) *ValidationError {
	return &ValidationError{Indicator: indicator, Field: field, Reason: reason}
}
