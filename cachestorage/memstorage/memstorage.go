/*
Copyright © 2026 GuideVox OÜ.

Released under MIT license.
*/

// Package memstorage provides an in-memory implementation of cachestorage.Store.
// It is used in tests and in single-process deployments where persistence
// across restarts is not required.
package memstorage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/guidevox/go-loadkit/cachestorage"
)

// ExpiringSoonWindow is the lookahead used for the ExpiringSoonCount statistic.
const ExpiringSoonWindow = 5 * time.Minute

// Store is a mutex-guarded in-memory cachestorage.Store.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*cachestorage.Entry
	byOwner map[string]map[string]struct{} // ownerID -> set of content ids

	hits   int64
	misses int64
}

var _ cachestorage.Store = (*Store)(nil)

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		entries: make(map[string]*cachestorage.Entry),
		byOwner: make(map[string]map[string]struct{}),
	}
}

// Get implements cachestorage.Store.
func (s *Store) Get(_ context.Context, contentID string) (*cachestorage.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[contentID]
	if !ok || entry.Expired(time.Now()) {
		if ok {
			s.removeLocked(entry)
		}
		s.misses++
		return nil, cachestorage.ErrNotFound
	}
	entry.AccessCount++
	entry.LastAccessedAt = time.Now()
	s.hits++
	return copyEntry(entry), nil
}

// GetByOwner implements cachestorage.Store. It does not bump access accounting.
func (s *Store) GetByOwner(_ context.Context, ownerID, contentType, language string) (*cachestorage.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for contentID := range s.byOwner[ownerID] {
		entry := s.entries[contentID]
		if entry == nil || entry.ContentType != contentType || entry.Language != language {
			continue
		}
		if entry.Expired(time.Now()) {
			s.removeLocked(entry)
			continue
		}
		s.hits++
		return copyEntry(entry), nil
	}
	s.misses++
	return nil, cachestorage.ErrNotFound
}

// Put implements cachestorage.Store.
func (s *Store) Put(_ context.Context, entry *cachestorage.Entry, ttl time.Duration) error {
	stored := copyEntry(entry)
	if ttl > 0 {
		stored.ExpiresAt = time.Now().Add(ttl)
	} else {
		stored.ExpiresAt = time.Time{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.entries[stored.ContentID]; ok && old.OwnerID != stored.OwnerID {
		s.unindexLocked(old)
	}
	s.entries[stored.ContentID] = stored
	s.indexLocked(stored)
	return nil
}

// Delete implements cachestorage.Store.
func (s *Store) Delete(_ context.Context, contentID string) (*cachestorage.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[contentID]
	if !ok {
		return nil, cachestorage.ErrNotFound
	}
	s.removeLocked(entry)
	return entry, nil
}

// DeleteByOwner implements cachestorage.Store.
func (s *Store) DeleteByOwner(_ context.Context, ownerID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for contentID := range s.byOwner[ownerID] {
		if entry, ok := s.entries[contentID]; ok {
			delete(s.entries, entry.ContentID)
			removed++
		}
	}
	delete(s.byOwner, ownerID)
	return removed, nil
}

// ExtendTTL implements cachestorage.Store.
func (s *Store) ExtendTTL(_ context.Context, contentID string, extra time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[contentID]
	if !ok || entry.Expired(time.Now()) {
		return cachestorage.ErrNotFound
	}
	if !entry.ExpiresAt.IsZero() {
		entry.ExpiresAt = entry.ExpiresAt.Add(extra)
	}
	return nil
}

// Stats implements cachestorage.Store.
func (s *Store) Stats(_ context.Context, topN int) (cachestorage.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := cachestorage.Stats{TotalItems: len(s.entries)}
	now := time.Now()
	top := make([]cachestorage.AccessStat, 0, len(s.entries))
	for _, entry := range s.entries {
		stats.TotalAccessCount += entry.AccessCount
		if !entry.ExpiresAt.IsZero() && entry.ExpiresAt.Sub(now) <= ExpiringSoonWindow {
			stats.ExpiringSoonCount++
		}
		top = append(top, cachestorage.AccessStat{ContentID: entry.ContentID, AccessCount: entry.AccessCount})
	}
	if stats.TotalItems > 0 {
		stats.AverageAccessCount = float64(stats.TotalAccessCount) / float64(stats.TotalItems)
	}
	sort.Slice(top, func(i, j int) bool {
		if top[i].AccessCount != top[j].AccessCount {
			return top[i].AccessCount > top[j].AccessCount
		}
		return top[i].ContentID < top[j].ContentID
	})
	if topN >= 0 && len(top) > topN {
		top = top[:topN]
	}
	stats.TopAccessed = top
	if total := s.hits + s.misses; total > 0 {
		stats.HitRate = float64(s.hits) / float64(total)
	}
	return stats, nil
}

// SweepExpired implements cachestorage.Store.
func (s *Store) SweepExpired(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	removed := 0
	for _, entry := range s.entries {
		if entry.Expired(now) {
			s.removeLocked(entry)
			removed++
		}
	}
	return removed, nil
}

// Snapshot implements cachestorage.Store.
func (s *Store) Snapshot(_ context.Context) ([]cachestorage.AccessStat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := make([]cachestorage.AccessStat, 0, len(s.entries))
	for _, entry := range s.entries {
		snapshot = append(snapshot, cachestorage.AccessStat{ContentID: entry.ContentID, AccessCount: entry.AccessCount})
	}
	sort.Slice(snapshot, func(i, j int) bool {
		if snapshot[i].AccessCount != snapshot[j].AccessCount {
			return snapshot[i].AccessCount < snapshot[j].AccessCount
		}
		return snapshot[i].ContentID < snapshot[j].ContentID
	})
	return snapshot, nil
}

// Len returns the current number of live entries, expired ones included
// until they are swept.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *Store) removeLocked(entry *cachestorage.Entry) {
	delete(s.entries, entry.ContentID)
	s.unindexLocked(entry)
}

func (s *Store) indexLocked(entry *cachestorage.Entry) {
	ids, ok := s.byOwner[entry.OwnerID]
	if !ok {
		ids = make(map[string]struct{})
		s.byOwner[entry.OwnerID] = ids
	}
	ids[entry.ContentID] = struct{}{}
}

func (s *Store) unindexLocked(entry *cachestorage.Entry) {
	if ids, ok := s.byOwner[entry.OwnerID]; ok {
		delete(ids, entry.ContentID)
		if len(ids) == 0 {
			delete(s.byOwner, entry.OwnerID)
		}
	}
}

func copyEntry(entry *cachestorage.Entry) *cachestorage.Entry {
	clone := *entry
	clone.Payload = append([]byte(nil), entry.Payload...)
	return &clone
}
