package metrics

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "droprescue"

// Collectors for the export pipeline, registered with the default registry
var (
	// DropsExportedCounter counts the number of drops saved to disk
	DropsExportedCounter = newCounterVec(
		"drops_exported_count",
		"Number of drops persisted to the local export tree",
	)
	// DropsFailedCounter counts the number of drops whose save failed
	DropsFailedCounter = newCounterVec(
		"drops_failed_count",
		"Number of drops that could not be persisted",
	)
	// BrokenRecordsCounter counts raw records yielded instead of drops
	BrokenRecordsCounter = newCounterVec(
		"broken_record_count",
		"Number of listing records whose detail retrieval failed",
	)
	// PagesFetchedCounter counts listing pages fetched during enumeration
	PagesFetchedCounter = newCounterVec(
		"pages_fetched_count",
		"Number of listing pages fetched from the items endpoint",
	)
	// DetailRetrievalFailedCounter counts non-OK per-drop detail fetches
	DetailRetrievalFailedCounter = newCounterVec(
		"detail_retrieval_failed_count",
		"Number of per-drop detail fetches that returned a non-OK status",
	)
	// ExportDuration observes the duration of each export run
	ExportDuration = newSummaryVec(
		"export_duration_seconds",
		"Duration in seconds of each complete export run",
	)
)

// Summary gathers the current values of the droprescue collectors
// from the default registry, keyed by metric name without the
// namespace prefix. Counters report their total, summaries their
// sample sum.
func Summary() (map[string]float64, error) {
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		return nil, errors.Wrap(err, "failed to gather metrics")
	}

	summary := map[string]float64{}
	for _, family := range families {
		name := family.GetName()
		if !strings.HasPrefix(name, namespace+"_") {
			continue
		}
		value := 0.0
		for _, metric := range family.GetMetric() {
			switch {
			case metric.GetCounter() != nil:
				value += metric.GetCounter().GetValue()
			case metric.GetSummary() != nil:
				value += metric.GetSummary().GetSampleSum()
			}
		}
		summary[strings.TrimPrefix(name, namespace+"_")] = value
	}
	return summary, nil
}

func newSummaryVec(name, help string, labels ...string) *prometheus.SummaryVec {
	vec := prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		}, labels)
	prometheus.MustRegister(vec)
	return vec
}

func newCounterVec(name, help string, labels ...string) *prometheus.CounterVec {
	vec := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		}, labels)
	prometheus.MustRegister(vec)
	return vec
}
