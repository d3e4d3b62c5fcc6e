package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FramesReadTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vsframes_frames_read_total",
		Help: "Total number of frames decoded, by job kind",
	}, []string{"kind"})

	FramesSavedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vsframes_frames_saved_total",
		Help: "Total number of frames written to storage, by job kind",
	}, []string{"kind"})

	FacesDetectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vsframes_faces_detected_total",
		Help: "Total number of faces detected across all frames",
	})

	ExpressionChangesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vsframes_expression_changes_total",
		Help: "Total number of frames flagged as an expression change",
	})

	JobsProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vsframes_jobs_processed_total",
		Help: "Total number of jobs processed, by status",
	}, []string{"status"})

	FrameProcessingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vsframes_frame_processing_duration_seconds",
		Help:    "Duration of per frame processing",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"streamer"})

	ActiveAgents = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vsframes_active_agents",
		Help: "Number of agents currently processing jobs",
	})
)
