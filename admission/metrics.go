/*
Copyright © 2026 GuideVox OÜ.

Released under MIT license.
*/

package admission

import "github.com/prometheus/client_golang/prometheus"

// MetricsCollector represents a collector of metrics to analyze how the admission controller behaves under load.
type MetricsCollector interface {
	// SetActive sets the current number of in-flight requests.
	SetActive(int)

	// SetQueued sets the current number of queued requests.
	SetQueued(int)

	// SetLoadPercent sets the current load percentage.
	SetLoadPercent(int)

	// IncCompleted increments the total number of completed requests.
	IncCompleted()

	// IncFailed increments the total number of failed requests.
	IncFailed()

	// IncRejected increments the total number of rejected acquire calls.
	IncRejected()
}

// PrometheusMetricsOpts represents options for PrometheusMetrics.
type PrometheusMetricsOpts struct {
	// Namespace is a namespace for metrics. It will be prepended to all metric names.
	Namespace string

	// ConstLabels is a set of labels that will be applied to all metrics.
	ConstLabels prometheus.Labels

	// CurriedLabelNames is a list of label names that will be curried with the provided labels.
	// See PrometheusMetrics.MustCurryWith method for more details.
	// Keep in mind that if this list is not empty,
	// PrometheusMetrics.MustCurryWith method must be called further with the same labels.
	// Otherwise, the collector will panic.
	CurriedLabelNames []string
}

// PrometheusMetrics represents Prometheus metrics for the admission controller.
type PrometheusMetrics struct {
	ActiveRequests *prometheus.GaugeVec
	QueuedRequests *prometheus.GaugeVec
	LoadPercent    *prometheus.GaugeVec
	CompletedTotal *prometheus.CounterVec
	FailedTotal    *prometheus.CounterVec
	RejectedTotal  *prometheus.CounterVec
}

// NewPrometheusMetrics creates a new instance of PrometheusMetrics with default options.
func NewPrometheusMetrics() *PrometheusMetrics {
	return NewPrometheusMetricsWithOpts(PrometheusMetricsOpts{})
}

// NewPrometheusMetricsWithOpts creates a new instance of PrometheusMetrics with the provided options.
func NewPrometheusMetricsWithOpts(opts PrometheusMetricsOpts) *PrometheusMetrics {
	activeRequests := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace:   opts.Namespace,
			Name:        "admission_active_requests",
			Help:        "Current number of in-flight requests.",
			ConstLabels: opts.ConstLabels,
		},
		opts.CurriedLabelNames,
	)

	queuedRequests := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace:   opts.Namespace,
			Name:        "admission_queued_requests",
			Help:        "Current number of queued requests.",
			ConstLabels: opts.ConstLabels,
		},
		opts.CurriedLabelNames,
	)

	loadPercent := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace:   opts.Namespace,
			Name:        "admission_load_percent",
			Help:        "Current load percentage of the total admission capacity.",
			ConstLabels: opts.ConstLabels,
		},
		opts.CurriedLabelNames,
	)

	completedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Name:        "admission_completed_requests_total",
			Help:        "Number of successfully completed requests.",
			ConstLabels: opts.ConstLabels,
		},
		opts.CurriedLabelNames,
	)

	failedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Name:        "admission_failed_requests_total",
			Help:        "Number of failed or expired requests.",
			ConstLabels: opts.ConstLabels,
		},
		opts.CurriedLabelNames,
	)

	rejectedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Name:        "admission_rejected_requests_total",
			Help:        "Number of acquire calls rejected because the capacity was exhausted.",
			ConstLabels: opts.ConstLabels,
		},
		opts.CurriedLabelNames,
	)

	return &PrometheusMetrics{
		ActiveRequests: activeRequests,
		QueuedRequests: queuedRequests,
		LoadPercent:    loadPercent,
		CompletedTotal: completedTotal,
		FailedTotal:    failedTotal,
		RejectedTotal:  rejectedTotal,
	}
}

// MustCurryWith curries the metrics collector with the provided labels.
func (pm *PrometheusMetrics) MustCurryWith(labels prometheus.Labels) *PrometheusMetrics {
	return &PrometheusMetrics{
		ActiveRequests: pm.ActiveRequests.MustCurryWith(labels),
		QueuedRequests: pm.QueuedRequests.MustCurryWith(labels),
		LoadPercent:    pm.LoadPercent.MustCurryWith(labels),
		CompletedTotal: pm.CompletedTotal.MustCurryWith(labels),
		FailedTotal:    pm.FailedTotal.MustCurryWith(labels),
		RejectedTotal:  pm.RejectedTotal.MustCurryWith(labels),
	}
}

// MustRegister does registration of metrics collector in Prometheus and panics if any error occurs.
func (pm *PrometheusMetrics) MustRegister() {
	prometheus.MustRegister(
		pm.ActiveRequests,
		pm.QueuedRequests,
		pm.LoadPercent,
		pm.CompletedTotal,
		pm.FailedTotal,
		pm.RejectedTotal,
	)
}

// Unregister cancels registration of metrics collector in Prometheus.
func (pm *PrometheusMetrics) Unregister() {
	prometheus.Unregister(pm.ActiveRequests)
	prometheus.Unregister(pm.QueuedRequests)
	prometheus.Unregister(pm.LoadPercent)
	prometheus.Unregister(pm.CompletedTotal)
	prometheus.Unregister(pm.FailedTotal)
	prometheus.Unregister(pm.RejectedTotal)
}

// SetActive sets the current number of in-flight requests.
func (pm *PrometheusMetrics) SetActive(n int) {
	pm.ActiveRequests.With(nil).Set(float64(n))
}

// SetQueued sets the current number of queued requests.
func (pm *PrometheusMetrics) SetQueued(n int) {
	pm.QueuedRequests.With(nil).Set(float64(n))
}

// SetLoadPercent sets the current load percentage.
func (pm *PrometheusMetrics) SetLoadPercent(n int) {
	pm.LoadPercent.With(nil).Set(float64(n))
}

// IncCompleted increments the total number of completed requests.
func (pm *PrometheusMetrics) IncCompleted() {
	pm.CompletedTotal.With(nil).Inc()
}

// IncFailed increments the total number of failed requests.
func (pm *PrometheusMetrics) IncFailed() {
	pm.FailedTotal.With(nil).Inc()
}

// IncRejected increments the total number of rejected acquire calls.
func (pm *PrometheusMetrics) IncRejected() {
	pm.RejectedTotal.With(nil).Inc()
}

type disabledMetrics struct{}

func (disabledMetrics) SetActive(int)      {}
func (disabledMetrics) SetQueued(int)      {}
func (disabledMetrics) SetLoadPercent(int) {}
func (disabledMetrics) IncCompleted()      {}
func (disabledMetrics) IncFailed()         {}
func (disabledMetrics) IncRejected()       {}
