package badger_service_registry

import (
	"github.com/dgraph-io/badger"
	"github.com/horockey/go-toolbox/prometheus_helpers"
	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	persistTimeHist  prometheus.Histogram
	persistErrCnt    prometheus.Counter
	dbSizeBytesGauge prometheus.GaugeFunc
}

func newMetrics[T any](repo *badgerServiceRegistry[T], db *badger.DB) *metrics {
	const ss = "badger_service_registry"
	labels := prometheus.Labels{"service": repo.Service().String()}

	histOpts := prometheus_helpers.NewHistOpts(
		"persist_time_hist",
		prometheus_helpers.HistOptsWithSubsystem(ss),
		prometheus_helpers.HistOptsWithHelp("Snapshot persist time distribution"),
	)
	histOpts.ConstLabels = labels

	return &metrics{
		persistTimeHist: prometheus.NewHistogram(*histOpts),
		persistErrCnt: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "persist_err_cnt",
			Subsystem:   ss,
			Help:        "Count of snapshots failed to persist",
			ConstLabels: labels,
		}),
		dbSizeBytesGauge: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name:        "db_size_bytes_gauge",
			Subsystem:   ss,
			Help:        "actual size of badger db in bytes",
			ConstLabels: labels,
		}, func() float64 {
			lsm, vlog := db.Size()
			return float64(lsm + vlog)
		}),
	}
}

func (m *metrics) list() []prometheus.Collector {
	return []prometheus.Collector{
		m.persistTimeHist,
		m.persistErrCnt,
		m.dbSizeBytesGauge,
	}
}
