package triage

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus metrics for the triage subsystem.
type Metrics struct {
	SessionsStarted   prometheus.Counter
	SessionsCompleted *prometheus.CounterVec
	TurnsTotal        *prometheus.CounterVec
	EscalationsTotal  *prometheus.CounterVec
	ExtractDuration   prometheus.Histogram
	ExtractFailures   prometheus.Counter
	QuestionsAsked    prometheus.Histogram
	SessionsSwept     prometheus.Counter
}

// NewMetrics registers and returns triage metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SessionsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "intake_sessions_started_total",
			Help: "Total triage sessions created.",
		}),
		SessionsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "intake_sessions_completed_total",
			Help: "Total sessions that reached the terminal state, by final urgency.",
		}, []string{"urgency"}),
		TurnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "intake_turns_total",
			Help: "Total processed patient turns by outcome.",
		}, []string{"outcome"}),
		EscalationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "intake_escalations_total",
			Help: "Total urgency escalations by resulting urgency.",
		}, []string{"urgency"}),
		ExtractDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "intake_extract_duration_seconds",
			Help:    "Duration of language-understanding extraction calls.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 0.1s .. ~51s
		}),
		ExtractFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "intake_extract_failures_total",
			Help: "Total failed or timed-out extraction calls.",
		}),
		QuestionsAsked: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "intake_questions_per_session",
			Help:    "Clarification questions asked per completed session.",
			Buckets: prometheus.LinearBuckets(0, 1, 11), // 0 .. 10
		}),
		SessionsSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "intake_sessions_swept_total",
			Help: "Total idle sessions removed by the sweeper.",
		}),
	}

	reg.MustRegister(
		m.SessionsStarted,
		m.SessionsCompleted,
		m.TurnsTotal,
		m.EscalationsTotal,
		m.ExtractDuration,
		m.ExtractFailures,
		m.QuestionsAsked,
		m.SessionsSwept,
	)

	return m
}

// EngineHooks returns hooks that feed engine activity into the metrics.
func (m *Metrics) EngineHooks() EngineHooks {
	return EngineHooks{
		OnExtract: func(seconds float64, failed bool) {
			m.ExtractDuration.Observe(seconds)
			if failed {
				m.ExtractFailures.Inc()
			}
		},
		OnEscalate: func(_, to Urgency) {
			m.EscalationsTotal.WithLabelValues(to.String()).Inc()
		},
		OnComplete: func(e *CompleteEvent) {
			m.SessionsCompleted.WithLabelValues(e.Urgency.String()).Inc()
			m.QuestionsAsked.Observe(float64(e.QuestionsAsked))
		},
	}
}

// ServiceHooks returns hooks that feed service activity into the metrics.
func (m *Metrics) ServiceHooks() ServiceHooks {
	return ServiceHooks{
		OnStart: func() {
			m.SessionsStarted.Inc()
		},
		OnTurn: func(outcome string) {
			m.TurnsTotal.WithLabelValues(outcome).Inc()
		},
		OnSweep: func(deleted int) {
			m.SessionsSwept.Add(float64(deleted))
		},
	}
}
