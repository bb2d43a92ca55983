/*
Copyright © 2026 GuideVox OÜ.

Released under MIT license.
*/

// Package leveldbstorage provides a cachestorage.Store backed by an embedded
// LevelDB database. It keeps cached artifacts across process restarts, which
// matters for expensive generated content (narration, translations, speech).
package leveldbstorage

import (
	"bytes"
	"context"
	"encoding/gob"
	"sort"
	"sync"
	"time"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/guidevox/go-loadkit/cachestorage"
)

// Key layout: entry records under "e:<contentID>", owner index records under
// "o:<ownerID>:<contentID>" with the content id as the value.
const (
	entryKeyPrefix = "e:"
	ownerKeyPrefix = "o:"
)

// ExpiringSoonWindow is the lookahead used for the ExpiringSoonCount statistic.
const ExpiringSoonWindow = 5 * time.Minute

// Store is a LevelDB-backed cachestorage.Store.
//
// mu serializes the read-modify-write paths (Get, ExtendTTL, Put) with the
// delete paths: a successful delete must never be undone by a concurrent
// access-count write-back. It also guards the hit/miss counters.
type Store struct {
	db *leveldb.DB

	mu     sync.RWMutex
	hits   int64
	misses int64
}

var _ cachestorage.Store = (*Store)(nil)

// Open opens (creating if needed) a LevelDB database at path.
func Open(path string) (*Store, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get implements cachestorage.Store.
func (s *Store) Get(_ context.Context, contentID string) (*cachestorage.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, err := s.read(contentID)
	if err != nil {
		if err == cachestorage.ErrNotFound {
			s.misses++
		}
		return nil, err
	}
	if entry.Expired(time.Now()) {
		if err = s.deleteLocked(entry); err != nil {
			return nil, err
		}
		s.misses++
		return nil, cachestorage.ErrNotFound
	}

	entry.AccessCount++
	entry.LastAccessedAt = time.Now()
	if err = s.write(entry); err != nil {
		return nil, err
	}
	s.hits++
	return entry, nil
}

// GetByOwner implements cachestorage.Store. It does not bump access accounting.
func (s *Store) GetByOwner(_ context.Context, ownerID, contentType, language string) (*cachestorage.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	it := s.db.NewIterator(util.BytesPrefix([]byte(ownerKeyPrefix+ownerID+":")), nil)
	defer it.Release()

	for it.Next() {
		entry, err := s.read(string(it.Value()))
		if err == cachestorage.ErrNotFound {
			continue // stale index record
		}
		if err != nil {
			return nil, err
		}
		// The index record may be stale after a re-put under another owner.
		if entry.OwnerID != ownerID || entry.ContentType != contentType || entry.Language != language {
			continue
		}
		if entry.Expired(time.Now()) {
			continue
		}
		s.hits++
		return entry, nil
	}
	if err := it.Error(); err != nil {
		return nil, err
	}
	s.misses++
	return nil, cachestorage.ErrNotFound
}

// Put implements cachestorage.Store.
func (s *Store) Put(_ context.Context, entry *cachestorage.Entry, ttl time.Duration) error {
	stored := *entry
	if ttl > 0 {
		stored.ExpiresAt = time.Now().Add(ttl)
	} else {
		stored.ExpiresAt = time.Time{}
	}

	encoded, err := encodeEntry(&stored)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batch := new(leveldb.Batch)
	if old, readErr := s.read(stored.ContentID); readErr == nil && old.OwnerID != stored.OwnerID {
		batch.Delete(ownerIndexKey(old.OwnerID, old.ContentID))
	} else if readErr != nil && readErr != cachestorage.ErrNotFound {
		return readErr
	}
	batch.Put(entryKey(stored.ContentID), encoded)
	batch.Put(ownerIndexKey(stored.OwnerID, stored.ContentID), []byte(stored.ContentID))
	return s.db.Write(batch, nil)
}

// Delete implements cachestorage.Store.
func (s *Store) Delete(_ context.Context, contentID string) (*cachestorage.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, err := s.read(contentID)
	if err != nil {
		return nil, err
	}
	if err = s.deleteLocked(entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// DeleteByOwner implements cachestorage.Store.
func (s *Store) DeleteByOwner(_ context.Context, ownerID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	it := s.db.NewIterator(util.BytesPrefix([]byte(ownerKeyPrefix+ownerID+":")), nil)
	defer it.Release()

	batch := new(leveldb.Batch)
	removed := 0
	for it.Next() {
		contentID := string(it.Value())
		if ok, err := s.db.Has(entryKey(contentID), nil); err != nil {
			return 0, err
		} else if ok {
			removed++
		}
		batch.Delete(entryKey(contentID))
		batch.Delete(append([]byte(nil), it.Key()...))
	}
	if err := it.Error(); err != nil {
		return 0, err
	}
	if err := s.db.Write(batch, nil); err != nil {
		return 0, err
	}
	return removed, nil
}

// ExtendTTL implements cachestorage.Store.
func (s *Store) ExtendTTL(_ context.Context, contentID string, extra time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, err := s.read(contentID)
	if err != nil {
		return err
	}
	if entry.Expired(time.Now()) {
		return cachestorage.ErrNotFound
	}
	if entry.ExpiresAt.IsZero() {
		return nil
	}
	entry.ExpiresAt = entry.ExpiresAt.Add(extra)
	return s.write(entry)
}

// Stats implements cachestorage.Store.
func (s *Store) Stats(_ context.Context, topN int) (cachestorage.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stats cachestorage.Stats
	now := time.Now()
	var top []cachestorage.AccessStat

	err := s.walkEntries(func(entry *cachestorage.Entry) error {
		stats.TotalItems++
		stats.TotalAccessCount += entry.AccessCount
		if !entry.ExpiresAt.IsZero() && entry.ExpiresAt.Sub(now) <= ExpiringSoonWindow {
			stats.ExpiringSoonCount++
		}
		top = append(top, cachestorage.AccessStat{ContentID: entry.ContentID, AccessCount: entry.AccessCount})
		return nil
	})
	if err != nil {
		return cachestorage.Stats{}, err
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
	batch := new(leveldb.Batch)
	removed := 0

	err := s.walkEntries(func(entry *cachestorage.Entry) error {
		if entry.Expired(now) {
			batch.Delete(entryKey(entry.ContentID))
			batch.Delete(ownerIndexKey(entry.OwnerID, entry.ContentID))
			removed++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if err = s.db.Write(batch, nil); err != nil {
		return 0, err
	}
	return removed, nil
}

// Snapshot implements cachestorage.Store.
func (s *Store) Snapshot(_ context.Context) ([]cachestorage.AccessStat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var snapshot []cachestorage.AccessStat
	err := s.walkEntries(func(entry *cachestorage.Entry) error {
		snapshot = append(snapshot, cachestorage.AccessStat{ContentID: entry.ContentID, AccessCount: entry.AccessCount})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(snapshot, func(i, j int) bool {
		if snapshot[i].AccessCount != snapshot[j].AccessCount {
			return snapshot[i].AccessCount < snapshot[j].AccessCount
		}
		return snapshot[i].ContentID < snapshot[j].ContentID
	})
	return snapshot, nil
}

func (s *Store) read(contentID string) (*cachestorage.Entry, error) {
	raw, err := s.db.Get(entryKey(contentID), nil)
	if err == leveldb.ErrNotFound {
		return nil, cachestorage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return decodeEntry(raw)
}

func (s *Store) write(entry *cachestorage.Entry) error {
	encoded, err := encodeEntry(entry)
	if err != nil {
		return err
	}
	return s.db.Put(entryKey(entry.ContentID), encoded, nil)
}

// deleteLocked removes the entry record together with its owner index record.
// Callers must hold mu.
func (s *Store) deleteLocked(entry *cachestorage.Entry) error {
	batch := new(leveldb.Batch)
	batch.Delete(entryKey(entry.ContentID))
	batch.Delete(ownerIndexKey(entry.OwnerID, entry.ContentID))
	return s.db.Write(batch, nil)
}

func (s *Store) walkEntries(fn func(entry *cachestorage.Entry) error) error {
	it := s.db.NewIterator(util.BytesPrefix([]byte(entryKeyPrefix)), nil)
	defer it.Release()

	for it.Next() {
		entry, err := decodeEntry(it.Value())
		if err != nil {
			return err
		}
		if err = fn(entry); err != nil {
			return err
		}
	}
	return it.Error()
}

func entryKey(contentID string) []byte {
	return []byte(entryKeyPrefix + contentID)
}

func ownerIndexKey(ownerID, contentID string) []byte {
	return []byte(ownerKeyPrefix + ownerID + ":" + contentID)
}

func encodeEntry(entry *cachestorage.Entry) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(entry); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeEntry(raw []byte) (*cachestorage.Entry, error) {
	var entry cachestorage.Entry
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&entry); err != nil {
		return nil, err
	}
	return &entry, nil
}
