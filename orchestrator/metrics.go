package orchestrator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mirror_run_total",
		Help: "Finished runs by trigger and outcome",
	}, []string{"trigger", "outcome"})
	runDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mirror_run_duration_seconds",
		Help:    "Wall time of a run including the slave fan-out",
		Buckets: prometheus.ExponentialBuckets(1, 4, 9),
	}, []string{"outcome"})
	slaveCallCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mirror_slave_call_total",
		Help: "Slave instructions by result",
	}, []string{"result"})
)
