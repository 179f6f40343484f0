package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	NodeState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lwnnode_state",
		Help: "Current measurement loop state",
	})

	StateTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lwnnode_state_transitions_total",
		Help: "Measurement loop state transitions",
	}, []string{"from", "to"})

	MeasurementsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lwnnode_measurements_total",
		Help: "Total measurement cycles completed",
	})

	UplinksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lwnnode_uplinks_total",
		Help: "Total uplinks handed to the radio",
	})

	UplinkFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lwnnode_uplink_failures_total",
		Help: "Failed uplink cycles by reason",
	}, []string{"reason"})

	FrameBytes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "lwnnode_frame_bytes",
		Help:    "Encoded telemetry frame size",
		Buckets: prometheus.LinearBuckets(2, 2, 10),
	})

	CadenceSeconds = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lwnnode_cadence_seconds",
		Help: "Current uplink interval",
	})

	FastCyclesRemaining = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lwnnode_fast_cycles_remaining",
		Help: "Successful uplinks left before switching to the permanent interval",
	})

	SleepRequests = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lwnnode_sleep_requests_total",
		Help: "Low-power sleep requests issued between polls",
	})

	RadioQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lwnnode_radio_queue_depth",
		Help: "Frames waiting in the radio queue",
	})

	RadioDeliveryDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "lwnnode_radio_delivery_duration_seconds",
		Help:    "Time from send to completion",
		Buckets: prometheus.DefBuckets,
	})

	JournalWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lwnnode_journal_writes_total",
		Help: "Journal writes by result",
	}, []string{"result"})

	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lwnnode_events_published_total",
		Help: "Total events published by type",
	}, []string{"type"})

	EventSubscriptions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lwnnode_event_subscriptions_total",
		Help: "Current number of active event subscriptions",
	})
)
