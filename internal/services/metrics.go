package services

import "github.com/prometheus/client_golang/prometheus"

// Domain counters. Label values are drawn from small fixed sets so
// cardinality stays bounded.
var (
	// claimsTotal counts Registry.Claim results by outcome
	// (created, already_owned, taken, error).
	claimsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "handle_claims_total",
			Help: "Total number of claim attempts by outcome.",
		},
		[]string{"outcome"},
	)

	// resolutionsTotal counts Registry.Resolve results (found, not_found, error).
	resolutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "handle_resolutions_total",
			Help: "Total number of handle resolutions by result.",
		},
		[]string{"result"},
	)

	// profileLookupsTotal counts external profile lookups (ok, error).
	profileLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "handle_profile_lookups_total",
			Help: "Total number of external profile lookups by result.",
		},
		[]string{"result"},
	)

	// notificationsTotal counts error reports sent to the notifier (ok, error).
	notificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "handle_notifications_total",
			Help: "Total number of error notifications by result.",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(claimsTotal, resolutionsTotal, profileLookupsTotal, notificationsTotal)
}
