package updater

import (
	"github.com/horockey/go-toolbox/prometheus_helpers"
	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	cycleTimeHist     prometheus.Histogram
	requestsCnt       prometheus.Counter
	cyclesCnt         prometheus.Counter
	successCyclesCnt  prometheus.Counter
	degradedCyclesCnt prometheus.Counter
	emptyResultsCnt   prometheus.Counter
	panicsCnt         prometheus.Counter
}

func newMetrics(service string) *metrics {
	const ss = "registry_updater"
	labels := prometheus.Labels{"service": service}

	histOpts := prometheus_helpers.NewHistOpts(
		"cycle_time_hist",
		prometheus_helpers.HistOptsWithSubsystem(ss),
		prometheus_helpers.HistOptsWithHelp("Reconciliation cycle time distribution"),
	)
	histOpts.ConstLabels = labels

	return &metrics{
		cycleTimeHist: prometheus.NewHistogram(*histOpts),
		requestsCnt: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "refresh_requests_cnt",
			Subsystem:   ss,
			Help:        "Count of refresh requests received from signals",
			ConstLabels: labels,
		}),
		cyclesCnt: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "cycles_cnt",
			Subsystem:   ss,
			Help:        "Count of reconciliation cycles",
			ConstLabels: labels,
		}),
		successCyclesCnt: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "success_cycles_cnt",
			Subsystem:   ss,
			Help:        "Count of cycles which applied a fresh node list",
			ConstLabels: labels,
		}),
		degradedCyclesCnt: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "degraded_cycles_cnt",
			Subsystem:   ss,
			Help:        "Count of cycles which kept the old node list because data source was down",
			ConstLabels: labels,
		}),
		emptyResultsCnt: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "empty_results_cnt",
			Subsystem:   ss,
			Help:        "Count of cycles where data source had no data",
			ConstLabels: labels,
		}),
		panicsCnt: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "panics_cnt",
			Subsystem:   ss,
			Help:        "Count of cycles aborted by panic",
			ConstLabels: labels,
		}),
	}
}

func (m *metrics) list() []prometheus.Collector {
	return []prometheus.Collector{
		m.cycleTimeHist,
		m.requestsCnt,
		m.cyclesCnt,
		m.successCyclesCnt,
		m.degradedCyclesCnt,
		m.emptyResultsCnt,
		m.panicsCnt,
	}
}
