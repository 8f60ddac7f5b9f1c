package metrics

import (
	"emperror.dev/errors"
	"github.com/apex/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "pathkit"
	subsystem = "fs"
)

// Values for the "source" label, identifying which part of the library
// removed (or failed to remove) an entry.
const (
	SourceClean    = "clean"
	SourceShutdown = "shutdown"
)

var (
	EntriesDeleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "entries_deleted_total",
		Help:      "Number of files and directories removed",
	}, []string{"source"})
	DeleteFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "delete_failures_total",
		Help:      "Number of entries that could not be removed",
	}, []string{"source"})
	WalkEntriesSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "walk_entries_skipped_total",
		Help:      "Number of entries skipped during a directory walk because they could not be read",
	})
	ShutdownRegistered = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "shutdown_registered_paths",
		Help:      "Number of paths currently waiting to be deleted on shutdown",
	})
)

// WriteTextfile writes the current value of every metric to the given file in
// the Prometheus text format, for collection by the node exporter textfile
// collector. There is no network listener.
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return errors.Wrap(err, "metrics: failed to write textfile")
	}
	log.WithField("path", path).Debug("wrote metrics textfile")
	return nil
}
