// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	// TurnsTotal counts answered turns by the route that produced the plan.
	TurnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_turns_total",
			Help: "Conversation turns answered, by route",
		},
		[]string{"route", "action"},
	)

	ModelFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_model_fallbacks_total",
			Help: "Language model calls that fell back to the deterministic responder",
		},
		[]string{"reason"},
	)

	ModelLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "assistant_model_latency_seconds",
			Help:    "Language model call latency",
			Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 16},
		},
		[]string{"provider"},
	)

	ValidationItems = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "validator_items_total",
			Help: "Validation errors and warnings by code",
		},
		[]string{"severity", "code"},
	)

	Validations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "validator_verdicts_total",
			Help: "Validation verdicts by operation and outcome",
		},
		[]string{"operation", "valid"},
	)

	Executions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "executor_actions_total",
			Help: "Executed actions by outcome",
		},
		[]string{"action", "outcome"},
	)
)
