package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Reasons an upload is rejected before the pipeline runs.
const (
	ReasonMissingFile = "missing_file"
	ReasonFileType    = "file_type"
	ReasonFileSize    = "file_size"
	ReasonBusy        = "busy"
)

var (
	// RejectedUploadsTotal counts uploads refused by validation or the concurrency limit.
	RejectedUploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mlcompare",
		Subsystem: "server",
		Name:      "rejected_uploads_total",
		Help:      "Uploads rejected before processing, by reason.",
	}, []string{"reason"})

	// ComparisonsInFlight is the number of comparisons holding a slot.
	ComparisonsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "mlcompare",
		Subsystem: "server",
		Name:      "comparisons_in_flight",
		Help:      "Comparisons currently running.",
	})
)
