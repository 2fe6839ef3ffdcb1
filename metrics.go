package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricDependencies = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "inclicenses_dependencies_total",
			Help: "Number of external dependencies to look for license files for.",
		},
	)
	metricDependenciesSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "inclicenses_dependencies_skipped_total",
			Help: "Number of external dependencies skipped because their source directory is not available.",
		},
	)
	metricDependenciesEmpty = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "inclicenses_dependencies_without_licenses_total",
			Help: "Number of external dependencies for which no license files were found.",
		},
	)
	metricCandidates = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "inclicenses_candidates_total",
			Help: "Number of license files (or directories) found.",
		},
	)
	metricCopyErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "inclicenses_copy_errors_total",
			Help: "Number of license files that could not be copied, any number > 0 is bad.",
		},
	)
	metricSource = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "inclicenses_source",
			Help: "Source used for listing dependencies.",
		},
		[]string{"source"},
	)
)

// writeMetrics writes all metrics in text format to path, replacing it atomically.
func writeMetrics(path string) error {
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}
