/*
Copyright © 2026 GuideVox OÜ.

Released under MIT license.
*/

// Package admission provides a request-admission governor with bounded concurrency,
// priority queueing, expiry sweeping, graceful-degradation modes, and Prometheus metrics.
package admission
