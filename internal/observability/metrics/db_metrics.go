package metrics

import (
	"database/sql"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

func registerDBMetrics(reg *prometheus.Registry, db *sql.DB, logger zerolog.Logger) {
	reg.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "ledger_failed_runs",
			Help: "Failed runs recorded in the run ledger",
		},
		func() float64 {
			return queryCount(db, logger, "SELECT COUNT(*) FROM statement_runs WHERE status = 'failed'")
		},
	))

	reg.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "ledger_undelivered_runs",
			Help: "Runs whose notification email was not sent",
		},
		func() float64 {
			return queryCount(db, logger, "SELECT COUNT(*) FROM statement_runs WHERE status = 'succeeded' AND NOT email_sent")
		},
	))
}

func queryCount(db *sql.DB, logger zerolog.Logger, query string) float64 {
	if db == nil {
		return 0
	}
	var count int64
	if err := db.QueryRow(query).Scan(&count); err != nil {
		logger.Warn().Err(err).Msg("metrics query failed")
		return 0
	}
	if count < 0 {
		return 0
	}
	return float64(count)
}
