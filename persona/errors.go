package persona

import (
	"errors"
	"fmt"
)

var ErrUnknownPersona = errors.New("unknown persona")

// InvalidOverrideError rejects an override payload before anything is persisted.
type InvalidOverrideError struct {
	Persona string
	Field   string
	Reason  string
}

func (e *InvalidOverrideError) Error() string {
	if e == nil {
		return ""
	}
	if e.Persona != "" {
		return fmt.Sprintf("invalid override for %s: %s %s", e.Persona, e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid override: %s %s", e.Field, e.Reason)
}

func invalid(field, reason string) error {
	return &InvalidOverrideError{Field: field, Reason: reason}
}

// withPersona tags a validation error with the persona it belongs to.
func withPersona(err error, name string) error {
	var inv *InvalidOverrideError
	if errors.As(err, &inv) {
		tagged := *inv
		tagged.Persona = name
		return &tagged
	}
	return err
}

func unknownPersona(name string) error {
	return fmt.Errorf("%w: %q", ErrUnknownPersona, name)
}
