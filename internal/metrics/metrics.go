package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// SamplesInserted counts rows written to the sample store
	SamplesInserted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "homenet",
			Name:      "samples_inserted_total",
			Help:      "Total number of samples written to the store",
		},
		[]string{"family", "outcome"},
	)

	// SampleWriteErrors counts samples dropped because the store rejected them
	SampleWriteErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "homenet",
			Name:      "sample_write_errors_total",
			Help:      "Total number of samples dropped on store write failure",
		},
		[]string{"family"},
	)

	// LinesSkipped counts sampler output lines that produced no row
	LinesSkipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "homenet",
			Name:      "sampler_lines_skipped_total",
			Help:      "Total number of sampler output lines that produced no row",
		},
		[]string{"family"},
	)

	// PushClients tracks open push-channel connections
	PushClients = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "homenet",
			Name:      "push_clients",
			Help:      "Number of connected push-channel clients",
		},
		[]string{"channel"},
	)

	// RowsPruned counts rows removed by retention
	RowsPruned = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "homenet",
			Name:      "rows_pruned_total",
			Help:      "Total number of rows deleted by retention pruning",
		},
		[]string{"family"},
	)

	once sync.Once
)

// Init registers all collectors with the default registry. Safe to call more than once.
func Init() {
	once.Do(func() {
		prometheus.DefaultRegisterer.MustRegister(
			SamplesInserted,
			SampleWriteErrors,
			LinesSkipped,
			PushClients,
			RowsPruned,
		)
	})
}
