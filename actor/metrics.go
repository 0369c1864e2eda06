package actor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Every vector is labelled by logger subsystem and actor name.
var (
	aliveActors = promauto.NewGaugeVec(prometheus.GaugeOpts{ //nolint:gochecknoglobals
		Name: "hfsm_actor_alive",
		Help: "Number of running actors",
	}, []string{"subsystem", "actor"})

	actorPanic = promauto.NewCounterVec(prometheus.CounterOpts{ //nolint:gochecknoglobals
		Name: "hfsm_actor_panics_total",
		Help: "Total number of panics recovered while processing a message",
	}, []string{"subsystem", "actor"})

	// enqueuedMessages is sampled on a ticker, so it lags the real inbox length.
	enqueuedMessages = promauto.NewGaugeVec(prometheus.GaugeOpts{ //nolint:gochecknoglobals
		Name: "hfsm_actor_enqueued_messages",
		Help: "Number of messages waiting in an actor inbox",
	}, []string{"subsystem", "actor"})

	processedMessages = promauto.NewCounterVec(prometheus.CounterOpts{ //nolint:gochecknoglobals
		Name: "hfsm_actor_processed_messages_total",
		Help: "Total number of messages processed",
	}, []string{"subsystem", "actor"})

	processingTime = promauto.NewHistogramVec(prometheus.HistogramOpts{ //nolint:gochecknoglobals
		Name: "hfsm_actor_processing_seconds",
		Help: "Time spent processing a message",
		Buckets: []float64{
			0.0001, // 100µs
			0.001,  // 1ms
			0.01,   // 10ms
			0.1,    // 100ms
			1,      // 1s
			10,     // 10s
			60,     // 1m
		},
	}, []string{"subsystem", "actor"})

	// submitTime measures how long a sender waited for room in the inbox.
	submitTime = promauto.NewHistogramVec(prometheus.HistogramOpts{ //nolint:gochecknoglobals
		Name: "hfsm_actor_submit_seconds",
		Help: "Time spent waiting to enqueue a message",
		Buckets: []float64{
			0.0001, // 100µs
			0.001,  // 1ms
			0.01,   // 10ms
			0.1,    // 100ms
			1,      // 1s
			10,     // 10s
			60,     // 1m
		},
	}, []string{"subsystem", "actor"})
)
