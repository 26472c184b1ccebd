package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// StartOutcomes counts start decisions by outcome kind.
var StartOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "clinic_session_start_outcomes_total",
	Help: "Session start decisions by outcome kind.",
}, []string{"outcome"})

// LiveSessions tracks the number of ACTIVE or PAUSED usage sessions.
var LiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "clinic_session_live_sessions",
	Help: "Usage sessions currently ACTIVE or PAUSED.",
})

// SessionMinutes observes the actual duration of completed sessions.
var SessionMinutes = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "clinic_session_actual_minutes",
	Help:    "Actual minutes of completed usage sessions.",
	Buckets: []float64{5, 15, 30, 45, 60, 90, 120, 180},
})
