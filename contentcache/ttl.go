/*
Copyright © 2026 GuideVox OÜ.

Released under MIT license.
*/

package contentcache

import (
	"fmt"
	"time"
)

// Priority defines how long a written entry should live relative to the base TTL.
// It is deliberately separate from admission.Priority: the two components
// compose only at the caller level and do not share state.
type Priority int

// Supported cache priorities.
const (
	PriorityHigh Priority = iota
	PriorityMedium
	PriorityLow
)

// String returns the textual form used in configuration and logs.
// Implements fmt.Stringer interface.
func (p Priority) String() string {
	switch p {
	case PriorityHigh:
		return "high"
	case PriorityMedium:
		return "medium"
	case PriorityLow:
		return "low"
	}
	return fmt.Sprintf("unknown(%d)", int(p))
}

// ParsePriority parses the textual form of a cache priority.
// The empty string maps to PriorityMedium.
func ParsePriority(s string) (Priority, error) {
	switch s {
	case "high":
		return PriorityHigh, nil
	case "medium", "normal", "":
		return PriorityMedium, nil
	case "low":
		return PriorityLow, nil
	}
	return PriorityMedium, fmt.Errorf("unknown priority %q", s)
}

// Access-frequency thresholds shared by TTL extension and priority ranking.
// Centralized here so the read paths cannot drift apart.
const (
	HighAccessThreshold   = 100
	MediumAccessThreshold = 50
	LowAccessThreshold    = 10
)

// Extension steps applied to frequently read entries.
const (
	highAccessExtension   = 4 * time.Hour
	mediumAccessExtension = 2 * time.Hour
	lowAccessExtension    = time.Hour
)

// ExtensionFor returns the TTL extension an entry earns on a read,
// based on its observed access count. Entries read fewer than
// LowAccessThreshold times earn none.
func ExtensionFor(accessCount int64) time.Duration {
	switch {
	case accessCount >= HighAccessThreshold:
		return highAccessExtension
	case accessCount >= MediumAccessThreshold:
		return mediumAccessExtension
	case accessCount >= LowAccessThreshold:
		return lowAccessExtension
	}
	return 0
}

// Strategy is the runtime-updatable cache configuration.
type Strategy struct {
	// DefaultTTL is the relative TTL assigned to medium-priority writes.
	DefaultTTL time.Duration

	// PriorityMultiplier scales how much longer high-priority writes live
	// compared to the base TTL. See TTLFor.
	PriorityMultiplier float64

	// MaxEntries bounds the number of stored entries. Zero means unbounded.
	MaxEntries int
}

// Validate checks the strategy values, failing fast on invalid configuration.
func (s Strategy) Validate() error {
	if s.DefaultTTL <= 0 {
		return fmt.Errorf("defaultTTL must be positive, got %s", s.DefaultTTL)
	}
	if s.PriorityMultiplier <= 0 {
		return fmt.Errorf("priorityMultiplier must be positive, got %v", s.PriorityMultiplier)
	}
	if s.MaxEntries < 0 {
		return fmt.Errorf("maxEntries must not be negative, got %d", s.MaxEntries)
	}
	return nil
}

// TTLFor computes the relative TTL for a write with the given priority:
// high-priority entries live 2×multiplier longer than the base TTL and
// low-priority ones half of it (4×/1×/0.5× with the default multiplier of 2).
func (s Strategy) TTLFor(priority Priority) time.Duration {
	switch priority {
	case PriorityHigh:
		return time.Duration(float64(s.DefaultTTL) * 2 * s.PriorityMultiplier)
	case PriorityLow:
		return s.DefaultTTL / 2
	}
	return s.DefaultTTL
}
