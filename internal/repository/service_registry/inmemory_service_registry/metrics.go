package inmemory_service_registry

import (
	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	updatesCnt     prometheus.Counter
	nodesCntGauge  prometheus.GaugeFunc
	refreshedGauge prometheus.GaugeFunc
}

func newMetrics[T any](repo *inmemoryServiceRegistry[T]) *metrics {
	const ss = "inmemory_service_registry"
	labels := prometheus.Labels{"service": repo.service.String()}

	return &metrics{
		updatesCnt: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "updates_cnt",
			Subsystem:   ss,
			Help:        "Count of node list replacements",
			ConstLabels: labels,
		}),
		nodesCntGauge: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name:        "nodes_cnt_gauge",
			Subsystem:   ss,
			Help:        "actual count of nodes in registry",
			ConstLabels: labels,
		}, func() float64 {
			return float64(len(repo.Nodes()))
		}),
		refreshedGauge: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name:        "refreshed_gauge",
			Subsystem:   ss,
			Help:        "1 if registry has been refreshed at least once",
			ConstLabels: labels,
		}, func() float64 {
			if repo.IsRefreshed() {
				return 1
			}
			return 0
		}),
	}
}

func (m *metrics) list() []prometheus.Collector {
	return []prometheus.Collector{
		m.updatesCnt,
		m.nodesCntGauge,
		m.refreshedGauge,
	}
}
