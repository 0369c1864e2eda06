package statemachine

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metric definitions with appropriate labels.
var (
	// transitionsTotal counts transition attempts by automaton, transition name and outcome.
	transitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hfsm_transitions_total",
		Help: "Total number of transition attempts by automaton, transition, and outcome",
	}, []string{"automaton", "transition", "outcome"})

	// transitionDuration tracks the wall time of a transition, pauses included.
	transitionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "hfsm_transition_duration_seconds",
		Help:    "Duration of transitions by automaton and outcome, including paused time",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
	}, []string{"automaton", "outcome"})

	pausesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hfsm_pauses_total",
		Help: "Total number of transition pauses by automaton",
	}, []string{"automaton"})

	dispatchedEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hfsm_dispatched_events_total",
		Help: "Total number of queued lifecycle events dispatched by automaton and event kind",
	}, []string{"automaton", "event"})

	// branchDepth is the number of active states below the root.
	branchDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "hfsm_branch_depth",
		Help: "Depth of the current branch by automaton, root excluded",
	}, []string{"automaton"})

	mailboxPending = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "hfsm_mailbox_pending",
		Help: "Number of requests waiting in an automaton mailbox",
	}, []string{"automaton"})

	mailboxPanics = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hfsm_mailbox_panics_total",
		Help: "Total number of handler panics recovered by an automaton mailbox",
	}, []string{"automaton"})
)

// Helper functions for label sanitization.
func sanitizeAutomaton(name string) string {
	if name == "" {
		return "unnamed"
	}

	return name
}

func sanitizeTransition(name string) string {
	if name == "" {
		return "none"
	}

	return name
}

func observeTransition(automaton, transition, outcome string, duration time.Duration) {
	automaton = sanitizeAutomaton(automaton)

	transitionsTotal.WithLabelValues(automaton, sanitizeTransition(transition), outcome).Inc()

	if outcome == OutcomeRejected {
		return
	}

	transitionDuration.WithLabelValues(automaton, outcome).Observe(duration.Seconds())
}

func observePause(automaton string) {
	pausesTotal.WithLabelValues(sanitizeAutomaton(automaton)).Inc()
}

func observeDispatch(automaton string, kind EventKind) {
	dispatchedEventsTotal.WithLabelValues(sanitizeAutomaton(automaton), kind.String()).Inc()
}

func setBranchDepth(automaton string, depth int) {
	if depth < 0 {
		depth = 0
	}

	branchDepth.WithLabelValues(sanitizeAutomaton(automaton)).Set(float64(depth))
}
