/*
Copyright © 2026 GuideVox OÜ.

Released under MIT license.
*/

// Package contentcache provides a priority-aware cache for generated content artifacts
// with access-frequency-driven TTL extension, owner-scoped invalidation,
// least-access-count eviction, and Prometheus metrics.
package contentcache
