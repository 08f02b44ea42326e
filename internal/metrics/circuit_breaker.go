// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	circuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "loopcast_circuit_breaker_status",
		Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
	}, []string{"name"})

	circuitBreakerTrips = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "loopcast_circuit_breaker_trips_total",
		Help: "Total number of circuit breaker trips into the open state",
	}, []string{"name", "reason"})
)

// SetCircuitBreakerState accepts the current state label for a named breaker
// and records nothing; SetCircuitBreakerStatus carries the numeric gauge.
func SetCircuitBreakerState(name, state string) {
	_ = state
}

// SetCircuitBreakerStatus records the current numeric state for a named breaker.
func SetCircuitBreakerStatus(name string, state int) {
	circuitBreakerState.WithLabelValues(name).Set(float64(state))
}

// RecordCircuitBreakerTrip increments the trip counter for a named breaker and reason.
func RecordCircuitBreakerTrip(name, reason string) {
	circuitBreakerTrips.WithLabelValues(name, reason).Inc()
}
