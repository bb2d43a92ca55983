/*
Copyright © 2026 GuideVox OÜ.

Released under MIT license.
*/

package contentcache

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/guidevox/go-loadkit/cachestorage"
)

// ErrNotFound is returned on cache misses. It is an alias for the storage-level
// sentinel so callers can check either package.
var ErrNotFound = cachestorage.ErrNotFound

// defaultTopAccessed bounds the most-accessed ranking surfaced by Metrics.
const defaultTopAccessed = 10

// Scope selects what Invalidate removes.
type Scope int

// Supported invalidation scopes.
const (
	// ScopeContent removes exactly one entry by content id.
	ScopeContent Scope = iota
	// ScopeArtifact removes every entry owned by the artifact.
	ScopeArtifact
	// ScopeSite removes every entry owned by the site.
	ScopeSite
)

// String returns the textual form of the scope.
// Implements fmt.Stringer interface.
func (s Scope) String() string {
	switch s {
	case ScopeContent:
		return "content"
	case ScopeArtifact:
		return "artifact"
	case ScopeSite:
		return "site"
	}
	return fmt.Sprintf("unknown(%d)", int(s))
}

// RefreshRequest describes one Refresh call.
type RefreshRequest struct {
	Entry    *cachestorage.Entry
	Priority Priority

	// Force rewrites the payload unconditionally. Without it an existing
	// entry only gets its TTL extended by the priority-implied TTL.
	Force bool
}

// PriorityRank is one element of the advisory ranking produced by CalculatePriorities.
type PriorityRank struct {
	ContentID string
	Priority  int
	Reason    string
}

// Metrics is a snapshot of cache health derived from storage statistics.
type Metrics struct {
	TotalItems     int
	HitRate        float64
	MissRate       float64
	AvgAccessCount float64
	TopAccessed    []cachestorage.AccessStat
}

// CleanupResult reports what a Cleanup pass removed.
type CleanupResult struct {
	Expired int
	Evicted int
}

// Manager avoids recomputing expensive artifacts by storing them behind a key
// with a priority-adaptive expiry, and keeps the store within a size budget.
//
// The Manager introduces no locking around storage operations beyond what the
// Store itself guarantees: a Get racing an Invalidate of the same key may
// extend a TTL that is about to be deleted, but deletion is authoritative and
// never resurrects payload bytes. Storage I/O errors propagate to the caller
// unhidden: a storage outage must not masquerade as a cache miss.
type Manager struct {
	store            cachestorage.Store
	metricsCollector MetricsCollector

	mu       sync.RWMutex
	strategy Strategy
}

// NewManager creates a new Manager over the given store with the provided configuration.
// Metrics collector can be nil, in this case, metrics will be disabled.
func NewManager(store cachestorage.Store, cfg *Config, metricsCollector MetricsCollector) (*Manager, error) {
	strategy := cfg.Strategy()
	if err := strategy.Validate(); err != nil {
		return nil, err
	}
	if metricsCollector == nil {
		metricsCollector = disabledMetrics{}
	}
	return &Manager{
		store:            store,
		metricsCollector: metricsCollector,
		strategy:         strategy,
	}, nil
}

// MustNewManager is a version of NewManager that panics on error.
func MustNewManager(store cachestorage.Store, cfg *Config, metricsCollector MetricsCollector) *Manager {
	m, err := NewManager(store, cfg, metricsCollector)
	if err != nil {
		panic(err)
	}
	return m
}

// Strategy returns the current cache strategy.
func (m *Manager) Strategy() Strategy {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.strategy
}

// SetStrategy replaces the cache strategy at runtime. Invalid values are
// rejected without touching the current strategy.
func (m *Manager) SetStrategy(strategy Strategy) error {
	if err := strategy.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	m.strategy = strategy
	m.mu.Unlock()
	return nil
}

// Put stores the entry with a TTL derived from the priority.
// If the store is at its size budget, exactly one lowest-access entry is
// evicted first to make room.
func (m *Manager) Put(ctx context.Context, entry *cachestorage.Entry, priority Priority) error {
	strategy := m.Strategy()

	if strategy.MaxEntries > 0 {
		if err := m.evictOneIfFull(ctx, strategy.MaxEntries, entry.ContentID); err != nil {
			return err
		}
	}
	return m.store.Put(ctx, entry, strategy.TTLFor(priority))
}

// Get returns the entry stored under contentID. A miss (absent or expired)
// returns ErrNotFound. On a hit the stored entry's TTL is extended according
// to its access frequency; the returned copy keeps its original expiry.
func (m *Manager) Get(ctx context.Context, contentID string) (*cachestorage.Entry, error) {
	entry, err := m.store.Get(ctx, contentID)
	if err != nil {
		if errors.Is(err, cachestorage.ErrNotFound) {
			m.metricsCollector.IncMisses()
		}
		return nil, err
	}
	m.metricsCollector.IncHits()

	if ext := ExtensionFor(entry.AccessCount); ext > 0 {
		if err = m.store.ExtendTTL(ctx, contentID, ext); err != nil && !errors.Is(err, cachestorage.ErrNotFound) {
			return nil, err
		}
	}
	return entry, nil
}

// GetByOwner is a secondary lookup path scoped by the owning entity plus
// content dimensions. It is read-through only: no TTL extension and no access
// accounting, to avoid double-counting reads that also go through Get.
func (m *Manager) GetByOwner(ctx context.Context, ownerID, contentType, language string) (*cachestorage.Entry, error) {
	entry, err := m.store.GetByOwner(ctx, ownerID, contentType, language)
	if err != nil {
		if errors.Is(err, cachestorage.ErrNotFound) {
			m.metricsCollector.IncMisses()
		}
		return nil, err
	}
	m.metricsCollector.IncHits()
	return entry, nil
}

// Refresh re-arms an entry. With Force set it deletes and rewrites
// unconditionally. Otherwise an absent entry is written fresh and a present
// one only gets its TTL extended by the priority-implied TTL.
func (m *Manager) Refresh(ctx context.Context, req RefreshRequest) error {
	if req.Force {
		if _, err := m.store.Delete(ctx, req.Entry.ContentID); err != nil && !errors.Is(err, cachestorage.ErrNotFound) {
			return err
		}
		return m.Put(ctx, req.Entry, req.Priority)
	}

	err := m.store.ExtendTTL(ctx, req.Entry.ContentID, m.Strategy().TTLFor(req.Priority))
	if errors.Is(err, cachestorage.ErrNotFound) {
		return m.Put(ctx, req.Entry, req.Priority)
	}
	return err
}

// Invalidate removes cached entries by scope and returns the exact count removed.
// A missing target is a normal empty result, not an error.
func (m *Manager) Invalidate(ctx context.Context, scope Scope, id string) (int, error) {
	switch scope {
	case ScopeContent:
		if _, err := m.store.Delete(ctx, id); err != nil {
			if errors.Is(err, cachestorage.ErrNotFound) {
				return 0, nil
			}
			return 0, err
		}
		return 1, nil
	case ScopeArtifact, ScopeSite:
		return m.store.DeleteByOwner(ctx, id)
	}
	return 0, fmt.Errorf("unknown invalidation scope %d", int(scope))
}

// CalculatePriorities assigns an advisory priority tier to every tracked entry
// based on its access count. It mutates nothing; the ranking is input for
// preloading and eviction decisions.
func (m *Manager) CalculatePriorities(ctx context.Context) ([]PriorityRank, error) {
	snapshot, err := m.store.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	ranking := make([]PriorityRank, 0, len(snapshot))
	for _, stat := range snapshot {
		rank := PriorityRank{ContentID: stat.ContentID}
		switch {
		case stat.AccessCount >= HighAccessThreshold:
			rank.Priority, rank.Reason = 3, "high access frequency"
		case stat.AccessCount >= MediumAccessThreshold:
			rank.Priority, rank.Reason = 2, "medium access frequency"
		case stat.AccessCount >= LowAccessThreshold:
			rank.Priority, rank.Reason = 1, "low access frequency"
		default:
			rank.Priority, rank.Reason = 0, "rarely accessed"
		}
		ranking = append(ranking, rank)
	}
	sort.SliceStable(ranking, func(i, j int) bool {
		return ranking[i].Priority > ranking[j].Priority
	})
	return ranking, nil
}

// Preload bulk-writes a batch of entries for an anticipated owner at the
// extended high-priority TTL, warming the cache proactively.
func (m *Manager) Preload(ctx context.Context, ownerID string, entries []*cachestorage.Entry) error {
	for _, entry := range entries {
		entry.OwnerID = ownerID
		if err := m.Put(ctx, entry, PriorityHigh); err != nil {
			return fmt.Errorf("preload %q: %w", entry.ContentID, err)
		}
	}
	return nil
}

// Cleanup runs the two-phase maintenance pass: first all expired entries are
// physically removed, then, if the store still exceeds the size budget, the
// lowest-access-count entries are evicted down to the budget (ties broken by
// content id, so repeated runs are deterministic).
func (m *Manager) Cleanup(ctx context.Context) (CleanupResult, error) {
	var result CleanupResult

	expired, err := m.store.SweepExpired(ctx)
	if err != nil {
		return result, err
	}
	result.Expired = expired
	m.metricsCollector.AddExpirations(expired)

	maxEntries := m.Strategy().MaxEntries
	snapshot, err := m.store.Snapshot(ctx)
	if err != nil {
		return result, err
	}
	if maxEntries > 0 && len(snapshot) > maxEntries {
		for _, stat := range snapshot[:len(snapshot)-maxEntries] {
			if _, err = m.store.Delete(ctx, stat.ContentID); err != nil && !errors.Is(err, cachestorage.ErrNotFound) {
				return result, err
			}
			result.Evicted++
		}
		m.metricsCollector.AddEvictions(result.Evicted)
	}

	m.metricsCollector.SetAmount(len(snapshot) - result.Evicted)
	return result, nil
}

// Metrics returns cache health derived from storage statistics.
func (m *Manager) Metrics(ctx context.Context) (Metrics, error) {
	stats, err := m.store.Stats(ctx, defaultTopAccessed)
	if err != nil {
		return Metrics{}, err
	}
	m.metricsCollector.SetAmount(stats.TotalItems)
	return Metrics{
		TotalItems:     stats.TotalItems,
		HitRate:        stats.HitRate,
		MissRate:       1 - stats.HitRate,
		AvgAccessCount: stats.AverageAccessCount,
		TopAccessed:    stats.TopAccessed,
	}, nil
}

// evictOneIfFull evicts exactly one lowest-access entry when the store is at
// or over the size budget. The entry being written is skipped so that an
// overwrite of an existing key does not evict a neighbor for no gain.
func (m *Manager) evictOneIfFull(ctx context.Context, maxEntries int, incomingContentID string) error {
	snapshot, err := m.store.Snapshot(ctx)
	if err != nil {
		return err
	}
	if len(snapshot) < maxEntries {
		return nil
	}
	for _, stat := range snapshot {
		if stat.ContentID == incomingContentID {
			return nil // overwrite, no extra room needed
		}
	}
	victim := snapshot[0]
	if _, err = m.store.Delete(ctx, victim.ContentID); err != nil && !errors.Is(err, cachestorage.ErrNotFound) {
		return err
	}
	m.metricsCollector.AddEvictions(1)
	return nil
}
