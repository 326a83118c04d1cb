// Run statistics. The counters are Prometheus counters so the
// unsorted-load workers can bump them without extra coordination. A
// run is one-shot, so instead of a scrape endpoint the private
// registry is gathered once at the end and rendered to the stat
// stream in text exposition format.

package gobottleneck

import (
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/common/expfmt"
)

type runStats struct {
	registry       *prometheus.Registry
	recordsScanned prometheus.Counter
	entriesMerged  prometheus.Counter
	pathFailures   prometheus.Counter
	filesSkipped   prometheus.Counter
	anomalies      prometheus.Counter
	binsFlushed    prometheus.Counter
}

func newRunStats() *runStats {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)
	counter := func(name, help string) prometheus.Counter {
		return factory.NewCounter(prometheus.CounterOpts{
			Namespace: "gobottleneck",
			Name:      name,
			Help:      help,
		})
	}
	return &runStats{
		registry:       registry,
		recordsScanned: counter("records_scanned_total", "MRT records read across all input files."),
		entriesMerged:  counter("rib_entries_merged_total", "Per-peer RIB entries whose AS path made it into a path set."),
		pathFailures:   counter("as_path_failures_total", "Per-peer entries skipped because no AS path could be extracted."),
		filesSkipped:   counter("files_skipped_total", "Input files abandoned due to stream or decode errors."),
		anomalies:      counter("anomalous_prefixes_total", "Prefixes dropped because their paths disagree on the origin AS."),
		binsFlushed:    counter("bins_flushed_total", "Leading-byte bins resolved and written."),
	}
}

func (rs *runStats) summarize(w io.Writer) error {
	families, err := rs.registry.Gather()
	if err != nil {
		return err
	}
	for _, family := range families {
		if _, err := expfmt.MetricFamilyToText(w, family); err != nil {
			return err
		}
	}
	return nil
}
