package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	reasonConcurrencyCap = "concurrency_cap"
	reasonQueueFull      = "queue_full"
	reasonClosed         = "closed"
)

var (
	jobDroppedCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mirror_job_dropped_total",
		Help: "Due or manual firings that did not run",
	}, []string{"reason"})
	jobFiredCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mirror_job_fired_total",
		Help: "Firings handed to a worker or started manually",
	}, []string{"trigger"})
	scheduledJobsGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mirror_scheduled_jobs",
		Help: "Jobs known to the scheduler",
	})
	queueDepthGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mirror_worker_queue_depth",
		Help: "Firings waiting for a worker",
	})
)
