/*
Copyright © 2026 GuideVox OÜ.

Released under MIT license.
*/

package admission

import "fmt"

// Priority defines how a request is ordered in the admission queue.
// Lower rank values are served first.
type Priority int

// Supported priorities.
const (
	PriorityHigh Priority = iota
	PriorityNormal
	PriorityLow
)

// String returns the textual form used in configuration and logs.
// Implements fmt.Stringer interface.
func (p Priority) String() string {
	switch p {
	case PriorityHigh:
		return "high"
	case PriorityNormal:
		return "normal"
	case PriorityLow:
		return "low"
	}
	return fmt.Sprintf("unknown(%d)", int(p))
}

// IsValid reports whether the priority is one of the supported values.
func (p Priority) IsValid() bool {
	return p == PriorityHigh || p == PriorityNormal || p == PriorityLow
}

// ParsePriority parses the textual form of a priority.
func ParsePriority(s string) (Priority, error) {
	switch s {
	case "high":
		return PriorityHigh, nil
	case "normal", "":
		return PriorityNormal, nil
	case "low":
		return PriorityLow, nil
	}
	return PriorityNormal, fmt.Errorf("unknown priority %q", s)
}

// UnmarshalText allows decoding from text.
// Implements encoding.TextUnmarshaler interface, which is used by mapstructure.TextUnmarshallerHookFunc.
func (p *Priority) UnmarshalText(text []byte) error {
	parsed, err := ParsePriority(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// MarshalText encodes the priority as text.
// Implements encoding.TextMarshaler interface.
func (p Priority) MarshalText() ([]byte, error) {
	if !p.IsValid() {
		return nil, fmt.Errorf("invalid priority %d", int(p))
	}
	return []byte(p.String()), nil
}
