package hub

import (
	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	servicesGauge        prometheus.GaugeFunc
	serviceRefreshErrCnt prometheus.Counter
	addServiceErrCnt     prometheus.Counter
	members              prometheus.Collector
}

func newMetrics[T any](h *Hub[T]) *metrics {
	const ss = "hub"
	return &metrics{
		servicesGauge: prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name:      "services_gauge",
				Subsystem: ss,
				Help:      "Count of services having a running updater",
			},
			func() float64 {
				h.mu.RLock()
				defer h.mu.RUnlock()
				return float64(len(h.entries))
			},
		),
		serviceRefreshErrCnt: prometheus.NewCounter(prometheus.CounterOpts{
			Name:      "service_refresh_err_cnt",
			Subsystem: ss,
			Help:      "Count of failed service list refreshes",
		}),
		addServiceErrCnt: prometheus.NewCounter(prometheus.CounterOpts{
			Name:      "add_service_err_cnt",
			Subsystem: ss,
			Help:      "Count of services failed to be added after start",
		}),
		members: memberCollector[T]{hub: h},
	}
}

func (m *metrics) list() []prometheus.Collector {
	return []prometheus.Collector{
		m.servicesGauge,
		m.serviceRefreshErrCnt,
		m.addServiceErrCnt,
		m.members,
	}
}

// memberCollector exposes metrics of per-service components, which come and go at runtime.
// It describes nothing, so the registry treats it as unchecked.
type memberCollector[T any] struct {
	hub *Hub[T]
}

func (mc memberCollector[T]) Describe(chan<- *prometheus.Desc) {}

func (mc memberCollector[T]) Collect(ch chan<- prometheus.Metric) {
	mc.hub.mu.RLock()
	entries := make([]*entry[T], 0, len(mc.hub.entries))
	for _, e := range mc.hub.entries {
		entries = append(entries, e)
	}
	mc.hub.mu.RUnlock()

	for _, e := range entries {
		for _, c := range e.collectors() {
			c.Collect(ch)
		}
	}
}
