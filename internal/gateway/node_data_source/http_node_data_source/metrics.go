package http_node_data_source

import (
	"github.com/horockey/go-toolbox/prometheus_helpers"
	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	handleTimeHist    prometheus.Histogram
	requestsCnt       prometheus.Counter
	successProcessCnt prometheus.Counter
	errProcessCnt     prometheus.Counter
}

func newMetrics(service string) *metrics {
	const ss = "http_node_data_source"
	labels := prometheus.Labels{"service": service}

	histOpts := prometheus_helpers.NewHistOpts(
		"handle_time_hist",
		prometheus_helpers.HistOptsWithSubsystem(ss),
		prometheus_helpers.HistOptsWithHelp("Handle time distribution"),
	)
	histOpts.ConstLabels = labels

	return &metrics{
		handleTimeHist: prometheus.NewHistogram(*histOpts),
		requestsCnt: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "requests_cnt",
			Subsystem:   ss,
			Help:        "Count of outgoing requests",
			ConstLabels: labels,
		}),
		successProcessCnt: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "success_responses_cnt",
			Subsystem:   ss,
			Help:        "Count of successfully finished processes",
			ConstLabels: labels,
		}),
		errProcessCnt: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "err_processes_cnt",
			Subsystem:   ss,
			Help:        "Count of processes finished with non-nil error",
			ConstLabels: labels,
		}),
	}
}

func (m *metrics) list() []prometheus.Collector {
	return []prometheus.Collector{
		m.handleTimeHist,
		m.requestsCnt,
		m.successProcessCnt,
		m.errProcessCnt,
	}
}
