package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// 设备事件
	EventsReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wisefido_exercise_events_received_total",
			Help: "Exercise events received from the wearable, by source and type",
		},
		[]string{"source", "type"},
	)

	EventsDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wisefido_exercise_events_dropped_total",
			Help: "Exercise events that could not be decoded or delivered",
		},
		[]string{"source", "reason"},
	)

	// 聚合
	SamplesObserved = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wisefido_exercise_samples_observed_total",
			Help: "Sensor samples fed into the session aggregator",
		},
		[]string{"kind"},
	)

	SessionsStarted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "wisefido_exercise_sessions_started_total",
			Help: "Exercise sessions started (ended to non-ended transitions)",
		},
	)

	// 命令
	CommandsSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wisefido_exercise_commands_sent_total",
			Help: "Commands relayed to the wearable, by action and result",
		},
		[]string{"action", "result"},
	)

	// 上传
	UploadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wisefido_exercise_uploads_total",
			Help: "Session upload attempts by outcome",
		},
		[]string{"outcome"},
	)

	UploadDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "wisefido_exercise_upload_duration_seconds",
			Help:    "Duration of the login and upload sequence",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
	)

	UploadsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "wisefido_exercise_uploads_in_flight",
			Help: "Upload tasks currently running",
		},
	)
)

func init() {
	prometheus.MustRegister(
		EventsReceived,
		EventsDropped,
		SamplesObserved,
		SessionsStarted,
		CommandsSent,
		UploadsTotal,
		UploadDuration,
		UploadsInFlight,
	)
}
