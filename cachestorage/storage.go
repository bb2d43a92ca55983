/*
Copyright © 2026 GuideVox OÜ.

Released under MIT license.
*/

// Package cachestorage defines the storage contract consumed by the content cache.
// Concrete implementations (in-memory, LevelDB-backed, or a managed database
// adapter) decide how entries are persisted; the cache layer above decides
// what to store and for how long.
package cachestorage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when the requested entry is absent or already expired.
// It is a normal empty result for cache lookups, not a failure.
var ErrNotFound = errors.New("cache entry not found")

// Entry represents one persisted content artifact.
// AccessCount and LastAccessedAt are owned by the Store: every successful Get
// updates them, so access accounting and hit-rate tracking live in one place.
type Entry struct {
	ContentID      string    `json:"contentId"`
	OwnerID        string    `json:"ownerId"`
	ContentType    string    `json:"contentType"`
	Language       string    `json:"language"`
	Payload        []byte    `json:"payload"`
	AccessCount    int64     `json:"accessCount"`
	LastAccessedAt time.Time `json:"lastAccessedAt"`
	ExpiresAt      time.Time `json:"expiresAt"`
}

// Expired reports whether the entry is past its expiry at the given moment.
// An entry without expiry never expires.
func (e *Entry) Expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && e.ExpiresAt.Before(now)
}

// AccessStat is an element of the most-accessed ranking in Stats.
type AccessStat struct {
	ContentID   string `json:"contentId"`
	AccessCount int64  `json:"accessCount"`
}

// Stats is a snapshot of storage-level usage statistics.
type Stats struct {
	TotalItems         int          `json:"totalItems"`
	TotalAccessCount   int64        `json:"totalAccessCount"`
	AverageAccessCount float64      `json:"averageAccessCount"`
	TopAccessed        []AccessStat `json:"topAccessed"`
	ExpiringSoonCount  int          `json:"expiringSoonCount"`
	HitRate            float64      `json:"hitRate"`
}

// Store is the minimal persistence contract for cache entries.
//
// Implementations must treat expired entries as absent in Get and make them
// removable by SweepExpired. All methods are safe for concurrent use.
// I/O errors are propagated as is and must not be masked as ErrNotFound.
type Store interface {
	// Get returns the entry stored under contentID, bumping its access
	// accounting. Returns ErrNotFound on absence or expiry.
	Get(ctx context.Context, contentID string) (*Entry, error)

	// GetByOwner returns the entry stored for the (owner, contentType,
	// language) triple without bumping access accounting.
	GetByOwner(ctx context.Context, ownerID, contentType, language string) (*Entry, error)

	// Put stores the entry with the given relative TTL (zero means no expiry),
	// replacing any previous entry under the same content id.
	Put(ctx context.Context, entry *Entry, ttl time.Duration) error

	// Delete removes the entry and returns it. Returns ErrNotFound if absent.
	Delete(ctx context.Context, contentID string) (*Entry, error)

	// DeleteByOwner removes every entry belonging to the owner and
	// returns the number of removed entries.
	DeleteByOwner(ctx context.Context, ownerID string) (int, error)

	// ExtendTTL moves the entry expiry forward by extra. Entries without
	// expiry are left untouched. Returns ErrNotFound if absent.
	ExtendTTL(ctx context.Context, contentID string, extra time.Duration) error

	// Stats returns a usage snapshot. topN bounds the TopAccessed ranking.
	Stats(ctx context.Context, topN int) (Stats, error)

	// SweepExpired physically removes all expired entries and returns the count.
	SweepExpired(ctx context.Context) (int, error)

	// Snapshot lists (contentID, accessCount) pairs for all live entries,
	// ordered by access count ascending with content id as the tie-break,
	// so that eviction decisions are deterministic.
	Snapshot(ctx context.Context) ([]AccessStat, error)
}
