package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

var (
	LinkRequestsStartedTotal prometheus.Counter
	CallbackOutcomesTotal    *prometheus.CounterVec
	WelcomeEventsTotal       *prometheus.CounterVec
	RoleGrantFailuresTotal   prometheus.Counter
)

// InitCustomMetrics initializes and registers the linking metrics.
// It should be called once at application startup.
func InitCustomMetrics(reg prometheus.Registerer) {
	LinkRequestsStartedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "wikilink_requests_started_total",
		Help: "Total number of link requests started.",
	})
	CallbackOutcomesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wikilink_callback_outcomes_total",
		Help: "Callback results by outcome class.",
	}, []string{"outcome"})
	WelcomeEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wikilink_welcome_events_total",
		Help: "Welcome messages sent by template variant.",
	}, []string{"variant"})
	RoleGrantFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "wikilink_role_grant_failures_total",
		Help: "Total number of failed role grants (non-fatal).",
	})

	if reg == nil {
		log.Error().Msg("Prometheus registry is nil, cannot register custom metrics")
		return
	}
	for _, c := range []prometheus.Collector{
		LinkRequestsStartedTotal,
		CallbackOutcomesTotal,
		WelcomeEventsTotal,
		RoleGrantFailuresTotal,
	} {
		if err := reg.Register(c); err != nil {
			log.Warn().Err(err).Msg("Failed to register metric")
		}
	}
}
