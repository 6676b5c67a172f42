package handler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// checkinsTotal counts check-in attempts by outcome
// (confirmed, duplicate, rejected, error).
var checkinsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "gymkiosk_checkins_total",
	Help: "Check-in attempts by outcome.",
}, []string{"result"})
