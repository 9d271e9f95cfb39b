package hub

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/horockey/ranger/internal/gateway/node_data_source"
	"github.com/horockey/ranger/internal/gateway/service_data_source"
	"github.com/horockey/ranger/internal/model"
	"github.com/horockey/ranger/internal/repository/service_registry"
	"github.com/horockey/ranger/internal/selector"
	"github.com/horockey/ranger/internal/signal"
	"github.com/horockey/ranger/internal/updater"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

type Intervals struct {
	// NodeRefresh is a period of scheduled refresh of every registry.
	NodeRefresh time.Duration
	// ServiceRefresh is a period of checking the service data source for new services.
	ServiceRefresh time.Duration
	// Poll is a period of checking registry readiness while starting an updater.
	Poll time.Duration
	// InitialRefreshTimeout bounds waiting for the first refresh of a registry. Zero means no bound.
	InitialRefreshTimeout time.Duration
}

// Hub keeps one updater per service of the service data source.
type Hub[T any] struct {
	services        service_data_source.ServiceDataSource
	registryFactory service_registry.Factory[T]
	sourceFactory   node_data_source.Factory[T]
	deserializer    model.Deserializer[T]
	selector        selector.Selector[T]
	intervals       Intervals
	clock           clockwork.Clock
	Logger          zerolog.Logger
	metrics         *metrics

	mu      sync.RWMutex
	entries map[model.Service]*entry[T]
	started bool
	ready   chan struct{}
}

type entry[T any] struct {
	updater *updater.Updater[T]
	source  node_data_source.NodeDataSource[T]
	trigger *signal.ExternalTriggeredSignal
	runners []signal.Runner
}

func New[T any](
	services service_data_source.ServiceDataSource,
	registryFactory service_registry.Factory[T],
	sourceFactory node_data_source.Factory[T],
	deserializer model.Deserializer[T],
	sel selector.Selector[T],
	intervals Intervals,
	clock clockwork.Clock,
	logger zerolog.Logger,
) *Hub[T] {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if sel == nil {
		sel = selector.NewRoundRobin[T]()
	}

	h := Hub[T]{
		services:        services,
		registryFactory: registryFactory,
		sourceFactory:   sourceFactory,
		deserializer:    deserializer,
		selector:        sel,
		intervals:       intervals,
		clock:           clock,
		Logger:          logger,
		entries:         map[model.Service]*entry[T]{},
		ready:           make(chan struct{}),
	}
	h.metrics = newMetrics(&h)

	return &h
}

func (h *Hub[T]) Metrics() []prometheus.Collector {
	return h.metrics.list()
}

// Start creates an updater for every known service and waits until all of their registries are refreshed.
// Then it watches the service data source for new services until ctx is done.
func (h *Hub[T]) Start(ctx context.Context) error {
	h.mu.Lock()
	if h.started {
		h.mu.Unlock()
		return errors.New("hub already started")
	}
	h.started = true
	h.mu.Unlock()

	defer h.stop()

	if err := h.init(ctx); err != nil {
		return fmt.Errorf("initializing services: %w", err)
	}
	close(h.ready)

	if h.intervals.ServiceRefresh <= 0 {
		<-ctx.Done()
		return fmt.Errorf("running context: %w", ctx.Err())
	}

	ticker := h.clock.NewTicker(h.intervals.ServiceRefresh)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("running context: %w", ctx.Err())
		case <-ticker.Chan():
			if err := h.refreshServices(ctx); err != nil {
				h.metrics.serviceRefreshErrCnt.Inc()
				h.Logger.
					Error().
					Err(fmt.Errorf("refreshing services: %w", err)).
					Send()
			}
		}
	}
}

// Ready is closed once every initially known service has a refreshed registry.
func (h *Hub[T]) Ready() <-chan struct{} {
	return h.ready
}

func (h *Hub[T]) init(ctx context.Context) error {
	services, err := h.services.Services(ctx)
	if err != nil {
		return fmt.Errorf("getting services: %w", err)
	}

	eg, egCtx := errgroup.WithContext(ctx)
	for _, svc := range lo.Uniq(services) {
		eg.Go(func() error {
			if err := h.addService(egCtx, svc); err != nil {
				return fmt.Errorf("adding service %s: %w", svc, err)
			}
			return nil
		})
	}

	return eg.Wait()
}

func (h *Hub[T]) refreshServices(ctx context.Context) error {
	services, err := h.services.Services(ctx)
	if err != nil {
		return fmt.Errorf("getting services: %w", err)
	}

	h.mu.RLock()
	fresh := lo.Filter(lo.Uniq(services), func(el model.Service, _ int) bool {
		_, found := h.entries[el]
		return !found
	})
	h.mu.RUnlock()

	if len(fresh) == 0 {
		return nil
	}
	h.Logger.Info().Int("count", len(fresh)).Msg("found new services")

	var eg errgroup.Group
	for _, svc := range fresh {
		eg.Go(func() error {
			addCtx, cancel := context.WithTimeout(ctx, h.lateAddTimeout())
			defer cancel()

			if err := h.addService(addCtx, svc); err != nil {
				h.metrics.addServiceErrCnt.Inc()
				// will be retried on next service refresh
				h.Logger.
					Error().
					Str("service", svc.String()).
					Err(fmt.Errorf("adding service: %w", err)).
					Send()
			}
			return nil
		})
	}

	return eg.Wait()
}

// lateAddTimeout bounds waiting for the first refresh of a service found after start.
func (h *Hub[T]) lateAddTimeout() time.Duration {
	if h.intervals.InitialRefreshTimeout > 0 {
		return h.intervals.InitialRefreshTimeout
	}
	return h.intervals.ServiceRefresh
}

func (h *Hub[T]) addService(ctx context.Context, svc model.Service) error {
	logger := h.Logger.With().Str("service", svc.String()).Logger()

	registry, err := h.registryFactory(svc)
	if err != nil {
		return fmt.Errorf("creating registry: %w", err)
	}

	source, signals, err := h.sourceFactory(svc)
	if err != nil {
		return fmt.Errorf("creating node data source: %w", err)
	}

	e := entry[T]{
		source:  source,
		trigger: signal.NewExternalTriggeredSignal(),
	}
	signals = append(signals, e.trigger)

	if h.intervals.NodeRefresh > 0 {
		scheduled, err := signal.NewScheduledSignal(svc.String(), h.intervals.NodeRefresh, h.clock, logger)
		if err != nil {
			return fmt.Errorf("creating scheduled signal: %w", err)
		}
		signals = append(signals, scheduled)
	}

	e.updater = updater.New(
		registry,
		source,
		h.deserializer,
		signals,
		h.intervals.Poll,
		h.intervals.InitialRefreshTimeout,
		h.clock,
		logger,
	)

	if err := e.updater.Start(ctx); err != nil {
		return fmt.Errorf("starting updater: %w", err)
	}

	for _, s := range signals {
		r, ok := s.(signal.Runner)
		if !ok {
			continue
		}
		// signals outlive the call that added the service
		if err := r.Start(context.WithoutCancel(ctx)); err != nil {
			e.stop()
			return fmt.Errorf("starting signal: %w", err)
		}
		e.runners = append(e.runners, r)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, found := h.entries[svc]; found {
		e.stop()
		return nil
	}
	h.entries[svc] = &e

	return nil
}

func (h *Hub[T]) stop() {
	h.mu.Lock()
	entries := lo.Values(h.entries)
	h.entries = map[model.Service]*entry[T]{}
	h.mu.Unlock()

	var wg sync.WaitGroup
	for _, e := range entries {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.stop()
		}()
	}
	wg.Wait()

	h.Logger.Info().Int("services", len(entries)).Msg("hub stopped")
}

func (e *entry[T]) stop() {
	for _, r := range e.runners {
		r.Stop()
	}
	e.updater.Stop()
	<-e.updater.Done()
}

func (e *entry[T]) collectors() []prometheus.Collector {
	res := slices.Concat(e.updater.Metrics(), e.updater.Registry().Metrics())
	if mp, ok := e.source.(model.MetricsProvider); ok {
		res = append(res, mp.Metrics()...)
	}
	return res
}

// Services returns all services having a running updater, sorted.
func (h *Hub[T]) Services() []model.Service {
	h.mu.RLock()
	res := lo.Keys(h.entries)
	h.mu.RUnlock()

	slices.SortFunc(res, func(a, b model.Service) int {
		return strings.Compare(a.String(), b.String())
	})
	return res
}

// Nodes returns the current snapshot of svc, including unhealthy nodes.
func (h *Hub[T]) Nodes(svc model.Service) ([]model.Node[T], error) {
	e, err := h.entry(svc)
	if err != nil {
		return nil, err
	}
	return e.updater.Registry().Nodes(), nil
}

// Node selects a single healthy node of svc matching criteria.
func (h *Hub[T]) Node(svc model.Service, criteria selector.Criteria[T]) (model.Node[T], error) {
	e, err := h.entry(svc)
	if err != nil {
		return model.Node[T]{}, err
	}
	return h.selector.Select(svc, e.updater.Registry().Nodes(), criteria)
}

// AllNodes returns every healthy node of svc matching criteria.
func (h *Hub[T]) AllNodes(svc model.Service, criteria selector.Criteria[T]) ([]model.Node[T], error) {
	e, err := h.entry(svc)
	if err != nil {
		return nil, err
	}
	return selector.Eligible(e.updater.Registry().Nodes(), criteria), nil
}

// Refresh requests an out-of-schedule refresh of svc. It does not wait for it.
func (h *Hub[T]) Refresh(svc model.Service) error {
	e, err := h.entry(svc)
	if err != nil {
		return err
	}
	e.trigger.Trigger()
	return nil
}

func (h *Hub[T]) entry(svc model.Service) (*entry[T], error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	e, found := h.entries[svc]
	if !found {
		return nil, model.ServiceNotFoundError{Service: svc}
	}
	return e, nil
}
