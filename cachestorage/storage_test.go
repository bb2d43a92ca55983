/*
Copyright © 2026 GuideVox OÜ.

Released under MIT license.
*/

package cachestorage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEntryExpired(t *testing.T) {
	now := time.Now()

	entry := Entry{ExpiresAt: now.Add(time.Minute)}
	require.False(t, entry.Expired(now))
	require.True(t, entry.Expired(now.Add(2*time.Minute)))

	eternal := Entry{}
	require.False(t, eternal.Expired(now))
	require.False(t, eternal.Expired(now.Add(1000*time.Hour)))
}
