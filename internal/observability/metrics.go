// Package observability holds the Prometheus collectors of the service.
package observability

import "github.com/prometheus/client_golang/prometheus"

// Submission outcomes.
const (
	OutcomeAccepted = "accepted"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

var (
	submissionsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "id_coletivo",
		Subsystem: "form",
		Name:      "submissions_total",
		Help:      "Form submissions grouped by outcome.",
	}, []string{"outcome"})

	sectorsAddedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "id_coletivo",
		Subsystem: "catalog",
		Name:      "sectors_added_total",
		Help:      "Sector names appended to the catalog.",
	})

	storeErrorCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "id_coletivo",
		Subsystem: "store",
		Name:      "errors_total",
		Help:      "Backing store failures grouped by operation.",
	}, []string{"op"})

	cacheLookupCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "id_coletivo",
		Subsystem: "cache",
		Name:      "lookups_total",
		Help:      "Cached read lookups grouped by query and result.",
	}, []string{"query", "result"})

	lastRecordGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "id_coletivo",
		Subsystem: "store",
		Name:      "last_record_appended_timestamp_seconds",
		Help:      "Unix timestamp of the most recent record appended.",
	})
)

func init() {
	prometheus.MustRegister(submissionsCounter, sectorsAddedCounter, storeErrorCounter, cacheLookupCounter, lastRecordGauge)
}

// RecordSubmission counts one form submission.
func RecordSubmission(outcome string) {
	submissionsCounter.WithLabelValues(outcome).Inc()
}

// RecordSectorAdded counts one catalog append.
func RecordSectorAdded() {
	sectorsAddedCounter.Inc()
}

// RecordStoreError counts one failed store operation.
func RecordStoreError(op string) {
	storeErrorCounter.WithLabelValues(op).Inc()
}

// RecordCacheLookup counts one cache lookup.
func RecordCacheLookup(query string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	cacheLookupCounter.WithLabelValues(query, result).Inc()
}

// RecordAppended moves the last-append watermark.
func RecordAppended(unixSeconds int64) {
	if unixSeconds <= 0 {
		return
	}
	lastRecordGauge.Set(float64(unixSeconds))
}
