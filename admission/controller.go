/*
Copyright © 2026 GuideVox OÜ.

Released under MIT license.
*/

package admission

import (
	"fmt"
	"math"
	"sync"
	"time"
)

// responseTimeWindowSize bounds the rolling history used for the average response time.
const responseTimeWindowSize = 100

// overloadedThresholdPercent is the load percentage at which the controller reports ModeOverloaded.
const overloadedThresholdPercent = 95

// Advisory degradation thresholds (load percentage).
const (
	skipNonEssentialThresholdPercent = 70
	reduceQualityThresholdPercent    = 80
	cacheOnlyThresholdPercent        = 90
)

// RequestContext represents one admitted or queued unit of work.
// Contexts are immutable: they are created on Acquire and replaced, never edited.
type RequestContext struct {
	ID         string
	Priority   Priority
	EnqueuedAt time.Time
	Timeout    time.Duration
}

// Expired reports whether the context aged out at the given moment.
func (rc *RequestContext) Expired(now time.Time) bool {
	return now.Sub(rc.EnqueuedAt) > rc.Timeout
}

// Mode is a discrete service-health state derived from the current load.
type Mode int

// Service modes in order of increasing load.
const (
	ModeNormal Mode = iota
	ModeDegraded
	ModeOverloaded
)

// String returns the textual form of the mode.
// Implements fmt.Stringer interface.
func (m Mode) String() string {
	switch m {
	case ModeNormal:
		return "normal"
	case ModeDegraded:
		return "degraded"
	case ModeOverloaded:
		return "overloaded"
	}
	return fmt.Sprintf("unknown(%d)", int(m))
}

// Metrics is a snapshot of the controller counters.
type Metrics struct {
	ActiveCount     int
	QueuedCount     int
	CompletedCount  int64
	FailedCount     int64
	AvgResponseTime time.Duration
	LoadPercent     int
}

// Recommendations advises which optional work a caller should shed at the current load.
// The controller itself never drops admitted work.
type Recommendations struct {
	SkipNonEssential bool
	ReduceQuality    bool
	CacheOnly        bool
}

// RequestState describes where a request currently is in the admission lifecycle.
type RequestState int

// Possible request states.
const (
	StateAbsent RequestState = iota
	StateActive
	StateQueued
)

// Controller bounds the number of concurrently executing expensive operations,
// queues excess work by priority up to a bounded size, and exposes system health.
//
// Acquire never blocks waiting for capacity: a request is admitted, queued, or
// rejected immediately. Queued requests are promoted on Release, MarkFailed,
// or CleanupExpired. Expired requests are reclaimed only by CleanupExpired,
// which must be invoked periodically (see the maintenance package).
type Controller struct {
	maxConcurrent        int
	maxQueue             int
	defaultTimeout       time.Duration
	degradationEnabled   bool
	degradationThreshold int

	metricsCollector MetricsCollector

	mu        sync.Mutex
	active    map[string]*RequestContext
	queue     requestQueue
	seq       uint64
	completed int64
	failed    int64

	respTimes   [responseTimeWindowSize]time.Duration
	respTimeSum time.Duration
	respTimeLen int
	respTimeIdx int
}

// NewController creates a new Controller with the provided configuration and metrics collector.
// Metrics collector can be nil, in this case, metrics will be disabled.
func NewController(cfg *Config, metricsCollector MetricsCollector) (*Controller, error) {
	if cfg.MaxConcurrentRequests <= 0 {
		return nil, fmt.Errorf("maxConcurrentRequests must be positive, got %d", cfg.MaxConcurrentRequests)
	}
	if cfg.MaxQueueSize < 0 {
		return nil, fmt.Errorf("maxQueueSize must not be negative, got %d", cfg.MaxQueueSize)
	}
	if time.Duration(cfg.RequestTimeout) <= 0 {
		return nil, fmt.Errorf("requestTimeout must be positive, got %s", time.Duration(cfg.RequestTimeout))
	}
	threshold := cfg.GracefulDegradation.ThresholdPercent
	if threshold <= 0 || threshold > 100 {
		return nil, fmt.Errorf("degradation threshold must be in range (0, 100], got %d", threshold)
	}
	if metricsCollector == nil {
		metricsCollector = disabledMetrics{}
	}
	return &Controller{
		maxConcurrent:        cfg.MaxConcurrentRequests,
		maxQueue:             cfg.MaxQueueSize,
		defaultTimeout:       time.Duration(cfg.RequestTimeout),
		degradationEnabled:   cfg.GracefulDegradation.Enabled,
		degradationThreshold: threshold,
		metricsCollector:     metricsCollector,
		active:               make(map[string]*RequestContext),
	}, nil
}

// MustNewController is a version of NewController that panics on error.
func MustNewController(cfg *Config, metricsCollector MetricsCollector) *Controller {
	c, err := NewController(cfg, metricsCollector)
	if err != nil {
		panic(err)
	}
	return c
}

// Acquire asks for a slot with the configured default timeout.
// It returns true if the request was admitted or queued,
// and false if both the active set and the queue are full.
func (c *Controller) Acquire(id string, priority Priority) bool {
	return c.AcquireWithTimeout(id, priority, c.defaultTimeout)
}

// AcquireWithTimeout is a version of Acquire with a per-request queueing timeout.
// The timeout governs only how long the request may stay admitted or queued
// before an expiry sweep reclaims it, not the execution time of the work itself.
func (c *Controller) AcquireWithTimeout(id string, priority Priority, timeout time.Duration) bool {
	if timeout <= 0 {
		timeout = c.defaultTimeout
	}
	ctx := &RequestContext{ID: id, Priority: priority, EnqueuedAt: time.Now(), Timeout: timeout}

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.active) < c.maxConcurrent {
		c.active[id] = ctx
		c.publishGaugesLocked()
		return true
	}
	if c.queue.Len() < c.maxQueue {
		c.seq++
		c.queue.push(ctx, c.seq)
		c.publishGaugesLocked()
		return true
	}
	c.failed++
	c.metricsCollector.IncFailed()
	c.metricsCollector.IncRejected()
	return false
}

// Release frees the slot held by id and counts the request as completed.
// The head of the queue is promoted if capacity allows.
func (c *Controller) Release(id string) {
	c.release(id, 0, false)
}

// ReleaseWithDuration is a version of Release that additionally records the
// observed response time in the bounded rolling window.
func (c *Controller) ReleaseWithDuration(id string, responseTime time.Duration) {
	c.release(id, responseTime, true)
}

func (c *Controller) release(id string, responseTime time.Duration, recordTime bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.removeLocked(id) {
		return
	}
	c.completed++
	c.metricsCollector.IncCompleted()
	if recordTime {
		c.recordResponseTimeLocked(responseTime)
	}
	c.promoteLocked()
	c.publishGaugesLocked()
}

// MarkFailed removes id from the active set or the queue without counting it
// as completed, increments the failed counter, and promotes queued work.
// Callers exposing cancellation should call MarkFailed for abandoned requests.
func (c *Controller) MarkFailed(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.removeLocked(id)
	c.failed++
	c.metricsCollector.IncFailed()
	c.promoteLocked()
	c.publishGaugesLocked()
}

// CleanupExpired sweeps both active and queued requests whose age exceeds
// their timeout. Each expired request increments the failed counter.
// Returns the number of removed requests.
//
// The controller runs no timer of its own: this method must be invoked
// periodically by the caller.
func (c *Controller) CleanupExpired() int {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for id, ctx := range c.active {
		if ctx.Expired(now) {
			delete(c.active, id)
			removed++
		}
	}
	removed += len(c.queue.removeWhere(func(ctx *RequestContext) bool {
		return ctx.Expired(now)
	}))

	for i := 0; i < removed; i++ {
		c.failed++
		c.metricsCollector.IncFailed()
	}
	c.promoteLocked()
	c.publishGaugesLocked()
	return removed
}

// State reports where the request with the given id currently is.
func (c *Controller) State(id string) RequestState {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.active[id]; ok {
		return StateActive
	}
	for _, item := range c.queue.items {
		if item.ctx.ID == id {
			return StateQueued
		}
	}
	return StateAbsent
}

// Metrics returns a snapshot of the controller counters.
func (c *Controller) Metrics() Metrics {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := Metrics{
		ActiveCount:    len(c.active),
		QueuedCount:    c.queue.Len(),
		CompletedCount: c.completed,
		FailedCount:    c.failed,
		LoadPercent:    c.loadPercentLocked(),
	}
	if c.respTimeLen > 0 {
		m.AvgResponseTime = c.respTimeSum / time.Duration(c.respTimeLen)
	}
	return m
}

// ResetMetrics zeroes the completed/failed counters and the response time window.
// The active set and the queue are left untouched.
func (c *Controller) ResetMetrics() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.completed = 0
	c.failed = 0
	c.respTimes = [responseTimeWindowSize]time.Duration{}
	c.respTimeSum = 0
	c.respTimeLen = 0
	c.respTimeIdx = 0
}

// Mode returns the current service-health mode derived from the load.
func (c *Controller) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.modeLocked()
}

// Recommendations returns advisory degradation outputs for the current load.
// All recommendations are off when graceful degradation is disabled.
func (c *Controller) Recommendations() Recommendations {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.degradationEnabled {
		return Recommendations{}
	}
	load := c.loadPercentLocked()
	return Recommendations{
		SkipNonEssential: load >= skipNonEssentialThresholdPercent,
		ReduceQuality:    load >= reduceQualityThresholdPercent,
		CacheOnly:        load >= cacheOnlyThresholdPercent,
	}
}

func (c *Controller) modeLocked() Mode {
	load := c.loadPercentLocked()
	if load >= overloadedThresholdPercent {
		return ModeOverloaded
	}
	if c.degradationEnabled && load >= c.degradationThreshold {
		return ModeDegraded
	}
	return ModeNormal
}

func (c *Controller) loadPercentLocked() int {
	capacity := c.maxConcurrent + c.maxQueue
	return int(math.Round(100 * float64(len(c.active)+c.queue.Len()) / float64(capacity)))
}

// removeLocked removes id from the active set or the queue.
// Returns false if the request is absent in both.
func (c *Controller) removeLocked(id string) bool {
	if _, ok := c.active[id]; ok {
		delete(c.active, id)
		return true
	}
	return len(c.queue.removeWhere(func(ctx *RequestContext) bool { return ctx.ID == id })) > 0
}

func (c *Controller) promoteLocked() {
	for len(c.active) < c.maxConcurrent {
		ctx, ok := c.queue.pop()
		if !ok {
			return
		}
		c.active[ctx.ID] = ctx
	}
}

func (c *Controller) recordResponseTimeLocked(responseTime time.Duration) {
	if c.respTimeLen == responseTimeWindowSize {
		c.respTimeSum -= c.respTimes[c.respTimeIdx]
	} else {
		c.respTimeLen++
	}
	c.respTimes[c.respTimeIdx] = responseTime
	c.respTimeSum += responseTime
	c.respTimeIdx = (c.respTimeIdx + 1) % responseTimeWindowSize
}

func (c *Controller) publishGaugesLocked() {
	c.metricsCollector.SetActive(len(c.active))
	c.metricsCollector.SetQueued(c.queue.Len())
	c.metricsCollector.SetLoadPercent(c.loadPercentLocked())
}
