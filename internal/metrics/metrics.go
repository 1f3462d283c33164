package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the loan engine. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	// Lifecycle transitions by event and outcome ("applied", "rejected", "notify_failed")
	Transitions *prometheus.CounterVec

	// Aging job runs by outcome
	AgingRuns        *prometheus.CounterVec
	AgingRunDuration prometheus.Histogram
	AgingLoans       *prometheus.CounterVec
	AgingRows        *prometheus.CounterVec

	// Outbox relay
	EventsPublished *prometheus.CounterVec
	RelayBacklog    prometheus.Gauge

	ScheduleGenerated *prometheus.CounterVec
}

// New registers every collector with reg. Passing nil registers with the
// default Prometheus registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		Transitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "loan_engine_lifecycle_transitions_total",
			Help: "Loan status transitions by triggering event and outcome",
		}, []string{"event", "outcome"}),

		AgingRuns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "loan_engine_aging_runs_total",
			Help: "Arrears aging job runs by outcome",
		}, []string{"outcome"}),

		AgingRunDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "loan_engine_aging_run_duration_seconds",
			Help:    "Duration of a full arrears aging run",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),

		AgingLoans: f.NewCounterVec(prometheus.CounterOpts{
			Name: "loan_engine_aging_loans_total",
			Help: "Loans processed by the arrears aging job by result",
		}, []string{"result"}), // result: "ok", "failed"

		AgingRows: f.NewCounterVec(prometheus.CounterOpts{
			Name: "loan_engine_aging_rows_total",
			Help: "Arrears aging rows written or deleted",
		}, []string{"op"}),

		EventsPublished: f.NewCounterVec(prometheus.CounterOpts{
			Name: "loan_engine_business_events_published_total",
			Help: "Business events relayed from the outbox by result",
		}, []string{"type", "result"}),

		RelayBacklog: f.NewGauge(prometheus.GaugeOpts{
			Name: "loan_engine_business_events_claimed",
			Help: "Business events claimed by the last relay poll",
		}),

		ScheduleGenerated: f.NewCounterVec(prometheus.CounterOpts{
			Name: "loan_engine_schedules_generated_total",
			Help: "Repayment schedules generated by interest method",
		}, []string{"interest_method"}),
	}
}

func (m *Metrics) IncTransition(event, outcome string) {
	if m != nil {
		m.Transitions.WithLabelValues(event, outcome).Inc()
	}
}

// ObserveAgingRun records the outcome and duration of one aging run.
func (m *Metrics) ObserveAgingRun(outcome string, d time.Duration) {
	if m != nil {
		m.AgingRuns.WithLabelValues(outcome).Inc()
		m.AgingRunDuration.Observe(d.Seconds())
	}
}

func (m *Metrics) AddAgingLoans(result string, n int) {
	if m != nil && n > 0 {
		m.AgingLoans.WithLabelValues(result).Add(float64(n))
	}
}

func (m *Metrics) AddAgingRows(op string, n int) {
	if m != nil && n > 0 {
		m.AgingRows.WithLabelValues(op).Add(float64(n))
	}
}

func (m *Metrics) IncEventPublished(eventType, result string) {
	if m != nil {
		m.EventsPublished.WithLabelValues(eventType, result).Inc()
	}
}

func (m *Metrics) SetRelayBacklog(n int) {
	if m != nil {
		m.RelayBacklog.Set(float64(n))
	}
}

func (m *Metrics) IncScheduleGenerated(method string) {
	if m != nil {
		m.ScheduleGenerated.WithLabelValues(method).Inc()
	}
}
