/*
Copyright © 2026 GuideVox OÜ.

Released under MIT license.
*/

package contentcache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/guidevox/go-loadkit/cachestorage"
	"github.com/guidevox/go-loadkit/cachestorage/memstorage"
)

func makeManager(t *testing.T, mutate func(cfg *Config)) (*Manager, *memstorage.Store) {
	t.Helper()
	store := memstorage.New()
	cfg := NewDefaultConfig()
	if mutate != nil {
		mutate(cfg)
	}
	m, err := NewManager(store, cfg, nil)
	require.NoError(t, err)
	return m, store
}

func makeEntry(contentID, ownerID string) *cachestorage.Entry {
	return &cachestorage.Entry{
		ContentID:   contentID,
		OwnerID:     ownerID,
		ContentType: "narration",
		Language:    "en",
		Payload:     []byte("payload of " + contentID),
	}
}

// peek reads the stored entry without going through Manager.Get,
// so expiry and access count can be asserted without side effects.
func peek(t *testing.T, store *memstorage.Store, entry *cachestorage.Entry) *cachestorage.Entry {
	t.Helper()
	stored, err := store.GetByOwner(context.Background(), entry.OwnerID, entry.ContentType, entry.Language)
	require.NoError(t, err)
	return stored
}

func TestManagerPutGet(t *testing.T) {
	ctx := context.Background()
	m, _ := makeManager(t, nil)

	entry := makeEntry("content1", "artifact1")
	require.NoError(t, m.Put(ctx, entry, PriorityMedium))

	got, err := m.Get(ctx, "content1")
	require.NoError(t, err)
	require.Equal(t, entry.Payload, got.Payload)
	require.Equal(t, int64(1), got.AccessCount, "the read itself must be counted")

	got, err = m.Get(ctx, "content1")
	require.NoError(t, err)
	require.Equal(t, int64(2), got.AccessCount)
}

func TestManagerGetMiss(t *testing.T) {
	ctx := context.Background()
	m, _ := makeManager(t, nil)

	_, err := m.Get(ctx, "absent")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestManagerExpiredEntryIsMiss(t *testing.T) {
	ctx := context.Background()
	m, store := makeManager(t, nil)
	require.NoError(t, m.SetStrategy(Strategy{DefaultTTL: 20 * time.Millisecond, PriorityMultiplier: 2}))

	require.NoError(t, m.Put(ctx, makeEntry("content1", "artifact1"), PriorityMedium))
	time.Sleep(40 * time.Millisecond)

	_, err := m.Get(ctx, "content1")
	require.ErrorIs(t, err, ErrNotFound)
	require.Equal(t, 0, store.Len(), "expired entry must be physically removed on access")
}

func TestManagerPriorityTTLSpread(t *testing.T) {
	ctx := context.Background()
	m, store := makeManager(t, nil)

	low := makeEntry("lowContent", "artifact1")
	low.Language = "de"
	high := makeEntry("highContent", "artifact1")

	require.NoError(t, m.Put(ctx, low, PriorityLow))
	require.NoError(t, m.Put(ctx, high, PriorityHigh))

	lowStored := peek(t, store, low)
	highStored := peek(t, store, high)
	require.True(t, lowStored.ExpiresAt.Before(highStored.ExpiresAt),
		"a low-priority entry must expire before a high-priority one written with the same base TTL")

	// 4x/1x/0.5x spread with the default multiplier of 2.
	lowTTL := time.Until(lowStored.ExpiresAt)
	highTTL := time.Until(highStored.ExpiresAt)
	require.InDelta(t, (30 * time.Minute).Seconds(), lowTTL.Seconds(), 5)
	require.InDelta(t, (4 * time.Hour).Seconds(), highTTL.Seconds(), 5)
}

func TestManagerTTLExtensionOnFrequentReads(t *testing.T) {
	ctx := context.Background()
	m, store := makeManager(t, nil)

	entry := makeEntry("hot", "artifact1")
	require.NoError(t, m.Put(ctx, entry, PriorityMedium))
	baseExpiry := peek(t, store, entry).ExpiresAt

	// Reads below the low threshold never change the expiry.
	for i := 0; i < LowAccessThreshold-1; i++ {
		_, err := m.Get(ctx, "hot")
		require.NoError(t, err)
	}
	require.Equal(t, baseExpiry, peek(t, store, entry).ExpiresAt)

	// The read that reaches the low threshold extends by one hour.
	_, err := m.Get(ctx, "hot")
	require.NoError(t, err)
	require.Equal(t, baseExpiry.Add(time.Hour), peek(t, store, entry).ExpiresAt)

	// Past the high threshold every read extends by four hours, monotonically.
	seedAccessCount(t, store, entry, HighAccessThreshold-1)
	beforeHot := peek(t, store, entry).ExpiresAt
	for i := 0; i < 3; i++ {
		_, err = m.Get(ctx, "hot")
		require.NoError(t, err)
		afterHot := peek(t, store, entry).ExpiresAt
		require.Equal(t, beforeHot.Add(4*time.Hour), afterHot)
		beforeHot = afterHot
	}
}

// seedAccessCount fast-forwards the stored access count via repeated raw reads.
func seedAccessCount(t *testing.T, store *memstorage.Store, entry *cachestorage.Entry, target int64) {
	t.Helper()
	for {
		got, err := store.Get(context.Background(), entry.ContentID)
		require.NoError(t, err)
		if got.AccessCount >= target {
			return
		}
	}
}

func TestManagerGetByOwner(t *testing.T) {
	ctx := context.Background()
	m, store := makeManager(t, nil)

	entry := makeEntry("content1", "artifact1")
	require.NoError(t, m.Put(ctx, entry, PriorityMedium))

	got, err := m.GetByOwner(ctx, "artifact1", "narration", "en")
	require.NoError(t, err)
	require.Equal(t, entry.Payload, got.Payload)
	require.Equal(t, int64(0), got.AccessCount, "owner lookups must not bump access accounting")

	baseExpiry := peek(t, store, entry).ExpiresAt
	_, err = m.GetByOwner(ctx, "artifact1", "narration", "en")
	require.NoError(t, err)
	require.Equal(t, baseExpiry, peek(t, store, entry).ExpiresAt, "owner lookups must not extend TTL")

	_, err = m.GetByOwner(ctx, "artifact1", "narration", "fr")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = m.GetByOwner(ctx, "artifact2", "narration", "en")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestManagerRefresh(t *testing.T) {
	ctx := context.Background()

	t.Run("absent entry is written fresh", func(t *testing.T) {
		m, _ := makeManager(t, nil)
		entry := makeEntry("content1", "artifact1")
		require.NoError(t, m.Refresh(ctx, RefreshRequest{Entry: entry, Priority: PriorityMedium}))

		got, err := m.Get(ctx, "content1")
		require.NoError(t, err)
		require.Equal(t, entry.Payload, got.Payload)
	})

	t.Run("present entry gets TTL extended, payload untouched", func(t *testing.T) {
		m, store := makeManager(t, nil)
		entry := makeEntry("content1", "artifact1")
		require.NoError(t, m.Put(ctx, entry, PriorityMedium))
		baseExpiry := peek(t, store, entry).ExpiresAt

		updated := makeEntry("content1", "artifact1")
		updated.Payload = []byte("new payload")
		require.NoError(t, m.Refresh(ctx, RefreshRequest{Entry: updated, Priority: PriorityMedium}))

		stored := peek(t, store, entry)
		require.Equal(t, entry.Payload, stored.Payload, "payload must not be rewritten without force")
		require.Equal(t, baseExpiry.Add(time.Hour), stored.ExpiresAt, "TTL must be extended by the priority-implied TTL")
	})

	t.Run("force deletes and rewrites", func(t *testing.T) {
		m, store := makeManager(t, nil)
		entry := makeEntry("content1", "artifact1")
		require.NoError(t, m.Put(ctx, entry, PriorityMedium))
		_, err := m.Get(ctx, "content1")
		require.NoError(t, err)

		updated := makeEntry("content1", "artifact1")
		updated.Payload = []byte("new payload")
		require.NoError(t, m.Refresh(ctx, RefreshRequest{Entry: updated, Priority: PriorityMedium, Force: true}))

		stored := peek(t, store, entry)
		require.Equal(t, []byte("new payload"), stored.Payload)
		require.Equal(t, int64(0), stored.AccessCount, "force refresh starts access accounting over")
	})
}

func TestManagerInvalidate(t *testing.T) {
	ctx := context.Background()

	t.Run("content scope removes exactly one key", func(t *testing.T) {
		m, _ := makeManager(t, nil)
		require.NoError(t, m.Put(ctx, makeEntry("content1", "artifact1"), PriorityMedium))

		removed, err := m.Invalidate(ctx, ScopeContent, "content1")
		require.NoError(t, err)
		require.Equal(t, 1, removed)

		_, err = m.Get(ctx, "content1")
		require.ErrorIs(t, err, ErrNotFound)

		removed, err = m.Invalidate(ctx, ScopeContent, "content1")
		require.NoError(t, err)
		require.Equal(t, 0, removed, "missing target is a normal empty result")
	})

	t.Run("artifact scope removes all entries sharing the owner", func(t *testing.T) {
		m, _ := makeManager(t, nil)
		for i := 0; i < 4; i++ {
			entry := makeEntry(fmt.Sprintf("content%d", i), "artifact1")
			entry.Language = fmt.Sprintf("lang%d", i)
			require.NoError(t, m.Put(ctx, entry, PriorityMedium))
		}
		require.NoError(t, m.Put(ctx, makeEntry("other", "artifact2"), PriorityMedium))

		removed, err := m.Invalidate(ctx, ScopeArtifact, "artifact1")
		require.NoError(t, err)
		require.Equal(t, 4, removed)

		for i := 0; i < 4; i++ {
			_, err = m.Get(ctx, fmt.Sprintf("content%d", i))
			require.ErrorIs(t, err, ErrNotFound)
		}
		_, err = m.Get(ctx, "other")
		require.NoError(t, err, "entries of other owners must survive")
	})

	t.Run("unknown scope is rejected", func(t *testing.T) {
		m, _ := makeManager(t, nil)
		_, err := m.Invalidate(ctx, Scope(42), "whatever")
		require.Error(t, err)
	})
}

func TestManagerPutEvictsOneWhenFull(t *testing.T) {
	ctx := context.Background()
	m, store := makeManager(t, func(cfg *Config) {
		cfg.MaxEntries = 3
	})

	for i := 0; i < 3; i++ {
		require.NoError(t, m.Put(ctx, makeEntry(fmt.Sprintf("content%d", i), "artifact1"), PriorityMedium))
	}
	// Touch content1 and content2 so content0 has the lowest access count.
	_, err := m.Get(ctx, "content1")
	require.NoError(t, err)
	_, err = m.Get(ctx, "content2")
	require.NoError(t, err)

	require.NoError(t, m.Put(ctx, makeEntry("content3", "artifact1"), PriorityMedium))
	require.Equal(t, 3, store.Len(), "exactly one entry must be evicted to make room")

	_, err = m.Get(ctx, "content0")
	require.ErrorIs(t, err, ErrNotFound, "the lowest-access entry must be the victim")
}

func TestManagerPutOverwriteDoesNotEvict(t *testing.T) {
	ctx := context.Background()
	m, store := makeManager(t, func(cfg *Config) {
		cfg.MaxEntries = 2
	})

	require.NoError(t, m.Put(ctx, makeEntry("content0", "artifact1"), PriorityMedium))
	require.NoError(t, m.Put(ctx, makeEntry("content1", "artifact1"), PriorityMedium))
	require.NoError(t, m.Put(ctx, makeEntry("content1", "artifact1"), PriorityMedium))
	require.Equal(t, 2, store.Len())

	_, err := m.Get(ctx, "content0")
	require.NoError(t, err)
}

func TestManagerCalculatePriorities(t *testing.T) {
	ctx := context.Background()
	m, store := makeManager(t, nil)

	entries := map[string]int64{
		"cold":   0,
		"warm":   LowAccessThreshold,
		"medium": MediumAccessThreshold,
		"hot":    HighAccessThreshold,
	}
	for id := range entries {
		entry := makeEntry(id, "artifact1")
		entry.Language = id
		require.NoError(t, m.Put(ctx, entry, PriorityMedium))
	}
	for id, target := range entries {
		seedAccessCount(t, store, makeEntry(id, "artifact1"), target)
	}

	ranking, err := m.CalculatePriorities(ctx)
	require.NoError(t, err)
	require.Len(t, ranking, 4)

	byID := make(map[string]PriorityRank, len(ranking))
	for _, rank := range ranking {
		byID[rank.ContentID] = rank
	}
	require.Equal(t, 3, byID["hot"].Priority)
	require.Equal(t, 2, byID["medium"].Priority)
	require.Equal(t, 1, byID["warm"].Priority)
	require.Equal(t, 0, byID["cold"].Priority)
	require.NotEmpty(t, byID["hot"].Reason)

	// Ranking is ordered by priority descending.
	for i := 1; i < len(ranking); i++ {
		require.GreaterOrEqual(t, ranking[i-1].Priority, ranking[i].Priority)
	}
}

func TestManagerPreload(t *testing.T) {
	ctx := context.Background()
	m, store := makeManager(t, nil)

	entries := []*cachestorage.Entry{
		makeEntry("content1", ""),
		makeEntry("content2", ""),
	}
	entries[1].Language = "de"
	require.NoError(t, m.Preload(ctx, "site1", entries))

	for _, entry := range entries {
		stored := peek(t, store, entry)
		require.Equal(t, "site1", stored.OwnerID)
		// Preloaded entries get the extended high-priority TTL.
		require.InDelta(t, (4 * time.Hour).Seconds(), time.Until(stored.ExpiresAt).Seconds(), 5)
	}
}

func TestManagerCleanup(t *testing.T) {
	ctx := context.Background()
	m, store := makeManager(t, nil)

	// Two short-lived entries and four long-lived ones. The size budget is
	// applied only for the cleanup pass, so the writes themselves do not evict.
	require.NoError(t, m.SetStrategy(Strategy{DefaultTTL: 20 * time.Millisecond, PriorityMultiplier: 2}))
	require.NoError(t, m.Put(ctx, makeEntry("dead1", "artifact1"), PriorityMedium))
	require.NoError(t, m.Put(ctx, makeEntry("dead2", "artifact1"), PriorityMedium))
	require.NoError(t, m.SetStrategy(Strategy{DefaultTTL: time.Hour, PriorityMultiplier: 2}))
	for i := 0; i < 4; i++ {
		require.NoError(t, m.Put(ctx, makeEntry(fmt.Sprintf("live%d", i), "artifact1"), PriorityMedium))
	}
	// live2 and live3 become the most accessed.
	seedAccessCount(t, store, makeEntry("live2", "artifact1"), 5)
	seedAccessCount(t, store, makeEntry("live3", "artifact1"), 5)

	time.Sleep(40 * time.Millisecond)
	require.NoError(t, m.SetStrategy(Strategy{DefaultTTL: time.Hour, PriorityMultiplier: 2, MaxEntries: 2}))
	result, err := m.Cleanup(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, result.Expired)
	require.Equal(t, 2, result.Evicted, "entries above the budget must be evicted")
	require.Equal(t, 2, store.Len())

	// The lowest-access entries are gone, the hot ones survive.
	for _, id := range []string{"live0", "live1", "dead1", "dead2"} {
		_, err = m.Get(ctx, id)
		require.ErrorIs(t, err, ErrNotFound, "%s should be removed", id)
	}
	for _, id := range []string{"live2", "live3"} {
		_, err = m.Get(ctx, id)
		require.NoError(t, err, "%s should survive", id)
	}
}

func TestManagerMetrics(t *testing.T) {
	ctx := context.Background()
	m, _ := makeManager(t, nil)

	for i := 0; i < 3; i++ {
		entry := makeEntry(fmt.Sprintf("content%d", i), "artifact1")
		entry.Language = fmt.Sprintf("lang%d", i)
		require.NoError(t, m.Put(ctx, entry, PriorityMedium))
	}
	_, err := m.Get(ctx, "content0")
	require.NoError(t, err)
	_, err = m.Get(ctx, "content0")
	require.NoError(t, err)
	_, err = m.Get(ctx, "content1")
	require.NoError(t, err)
	_, err = m.Get(ctx, "absent")
	require.ErrorIs(t, err, ErrNotFound)

	metrics, err := m.Metrics(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, metrics.TotalItems)
	require.InDelta(t, 0.75, metrics.HitRate, 0.001)
	require.InDelta(t, 0.25, metrics.MissRate, 0.001)
	require.InDelta(t, 1.0, metrics.AvgAccessCount, 0.001)
	require.NotEmpty(t, metrics.TopAccessed)
	require.Equal(t, "content0", metrics.TopAccessed[0].ContentID)
}

func TestManagerSetStrategy(t *testing.T) {
	m, _ := makeManager(t, nil)

	require.ErrorContains(t, m.SetStrategy(Strategy{DefaultTTL: time.Hour, PriorityMultiplier: 0}), "priorityMultiplier")
	require.Equal(t, DefaultPriorityMultiplier, m.Strategy().PriorityMultiplier, "invalid update must not apply")

	require.NoError(t, m.SetStrategy(Strategy{DefaultTTL: 2 * time.Hour, PriorityMultiplier: 3, MaxEntries: 5}))
	require.Equal(t, 3.0, m.Strategy().PriorityMultiplier)
}

func TestManagerPrometheusMetrics(t *testing.T) {
	ctx := context.Background()
	store := memstorage.New()
	pm := NewPrometheusMetrics()
	cfg := NewDefaultConfig()
	cfg.MaxEntries = 1
	m, err := NewManager(store, cfg, pm)
	require.NoError(t, err)

	require.NoError(t, m.Put(ctx, makeEntry("content1", "artifact1"), PriorityMedium))
	_, err = m.Get(ctx, "content1")
	require.NoError(t, err)
	_, err = m.Get(ctx, "absent")
	require.ErrorIs(t, err, ErrNotFound)

	entry2 := makeEntry("content2", "artifact1")
	entry2.Language = "de"
	require.NoError(t, m.Put(ctx, entry2, PriorityMedium))

	require.Equal(t, 1, int(testutil.ToFloat64(pm.HitsTotal.With(nil))))
	require.Equal(t, 1, int(testutil.ToFloat64(pm.MissesTotal.With(nil))))
	require.Equal(t, 1, int(testutil.ToFloat64(pm.EvictionsTotal.With(nil))), "put at the budget evicts one entry")
}
