package metrics

import "github.com/prometheus/client_golang/prometheus"

// ConsultationMetrics exposes counters/histograms for scoring and AI calls.
type ConsultationMetrics struct {
	assessmentsTotal *prometheus.CounterVec
	aiRequestsTotal  *prometheus.CounterVec
	aiAttemptsTotal  *prometheus.CounterVec
	aiLatency        *prometheus.HistogramVec
	alertsTotal      *prometheus.CounterVec
}

func NewConsultationMetrics(reg prometheus.Registerer) *ConsultationMetrics {
	m := &ConsultationMetrics{
		assessmentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cardiovision",
			Subsystem: "risk",
			Name:      "assessments_total",
			Help:      "Total scored assessments by questionnaire and tier",
		}, []string{"kind", "tier"}),
		aiRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cardiovision",
			Subsystem: "ai",
			Name:      "requests_total",
			Help:      "Total chat completion requests by purpose and outcome",
		}, []string{"purpose", "status"}),
		aiAttemptsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cardiovision",
			Subsystem: "ai",
			Name:      "http_attempts_total",
			Help:      "HTTP attempts against the chat completion endpoint, retries included",
		}, []string{"result"}),
		aiLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "cardiovision",
			Subsystem: "ai",
			Name:      "request_duration_seconds",
			Help:      "Latency of chat completion requests including retries",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
		}, []string{"purpose"}),
		alertsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cardiovision",
			Subsystem: "alerts",
			Name:      "high_risk_total",
			Help:      "High-risk alerts by delivery status",
		}, []string{"status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.assessmentsTotal, m.aiRequestsTotal, m.aiAttemptsTotal, m.aiLatency, m.alertsTotal)
	return m
}

func (m *ConsultationMetrics) ObserveAssessment(kind, tier string) {
	if m == nil {
		return
	}
	m.assessmentsTotal.WithLabelValues(kind, tier).Inc()
}

func (m *ConsultationMetrics) ObserveAIRequest(purpose, status string, seconds float64) {
	if m == nil {
		return
	}
	m.aiRequestsTotal.WithLabelValues(purpose, status).Inc()
	m.aiLatency.WithLabelValues(purpose).Observe(seconds)
}

func (m *ConsultationMetrics) ObserveAIAttempt(result string) {
	if m == nil {
		return
	}
	m.aiAttemptsTotal.WithLabelValues(result).Inc()
}

func (m *ConsultationMetrics) ObserveAlert(status string) {
	if m == nil {
		return
	}
	m.alertsTotal.WithLabelValues(status).Inc()
}
