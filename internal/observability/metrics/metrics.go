package metrics

import (
	"context"
	"database/sql"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	"github.com/rs/zerolog"
)

const (
	metricPrefix = "cota_capital_"

	resultSuccess = "success"
	resultError   = "error"

	pushJob = "cota_capital_statements"
)

var (
	registerOnce sync.Once
	registry     *prometheus.Registry

	stageTotal   *prometheus.CounterVec
	stageLatency *prometheus.HistogramVec

	runTotal    *prometheus.CounterVec
	runDuration prometheus.Histogram

	statementsTotal  *prometheus.CounterVec
	warningsTotal    prometheus.Counter
	emailSentTotal   *prometheus.CounterVec
	lastRunTimestamp prometheus.Gauge
)

// Init registers run metrics. A non-nil db adds gauges backed by the run ledger.
func Init(db *sql.DB, logger zerolog.Logger) {
	registerOnce.Do(func() {
		registry = prometheus.NewRegistry()

		stageTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "stage_total",
				Help: "Total pipeline stage executions by stage and result",
			},
			[]string{"stage", "result"},
		)
		stageLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "stage_latency_seconds",
				Help:    "Pipeline stage latency in seconds",
				Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
			},
			[]string{"stage", "result"},
		)

		runTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "runs_total",
				Help: "Total statement runs by result",
			},
			[]string{"result"},
		)
		runDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    metricPrefix + "run_duration_seconds",
			Help:    "Statement run duration in seconds",
			Buckets: []float64{1, 10, 30, 60, 300, 600, 1800, 3600},
		})

		statementsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "statements_total",
				Help: "Total statements generated by branch",
			},
			[]string{"branch"},
		)
		warningsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "record_warnings_total",
			Help: "Total value coercions and reconciliation warnings",
		})
		emailSentTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "notifications_total",
				Help: "Total notification emails by result",
			},
			[]string{"result"},
		)
		lastRunTimestamp = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricPrefix + "last_success_timestamp_seconds",
			Help: "Unix time of the last successful run",
		})

		registry.MustRegister(
			stageTotal,
			stageLatency,
			runTotal,
			runDuration,
			statementsTotal,
			warningsTotal,
			emailSentTotal,
			lastRunTimestamp,
		)

		if db != nil {
			registerDBMetrics(registry, db, logger)
		}
	})
}

// ObserveStage records one stage execution.
func ObserveStage(stage string, err error, duration time.Duration) {
	if stage == "" {
		stage = "unknown"
	}
	result := resultOf(err)
	if stageTotal != nil {
		stageTotal.WithLabelValues(stage, result).Inc()
	}
	if stageLatency != nil {
		stageLatency.WithLabelValues(stage, result).Observe(duration.Seconds())
	}
}

// ObserveRun records a finished run.
func ObserveRun(err error, duration time.Duration, finishedAt time.Time) {
	result := resultOf(err)
	if runTotal != nil {
		runTotal.WithLabelValues(result).Inc()
	}
	if runDuration != nil {
		runDuration.Observe(duration.Seconds())
	}
	if err == nil && lastRunTimestamp != nil {
		lastRunTimestamp.Set(float64(finishedAt.Unix()))
	}
}

// AddStatements adds count generated statements for branch.
func AddStatements(branch, count int) {
	if count <= 0 {
		return
	}
	if statementsTotal != nil {
		statementsTotal.WithLabelValues(strconv.Itoa(branch)).Add(float64(count))
	}
}

// AddWarnings adds record warnings.
func AddWarnings(count int) {
	if count <= 0 {
		return
	}
	if warningsTotal != nil {
		warningsTotal.Add(float64(count))
	}
}

// IncNotification counts a notification attempt.
func IncNotification(err error) {
	if emailSentTotal != nil {
		emailSentTotal.WithLabelValues(resultOf(err)).Inc()
	}
}

// Push sends the registry to a Prometheus Pushgateway. Empty url is a no-op.
func Push(ctx context.Context, url string) error {
	if url == "" || registry == nil {
		return nil
	}
	return push.New(url, pushJob).Gatherer(registry).PushContext(ctx)
}

func resultOf(err error) string {
	if err != nil {
		return resultError
	}
	return resultSuccess
}
