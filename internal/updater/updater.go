package updater

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/horockey/ranger/internal/gateway/node_data_source"
	"github.com/horockey/ranger/internal/model"
	"github.com/horockey/ranger/internal/repository/service_registry"
	"github.com/horockey/ranger/internal/signal"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

var errNotRefreshed = errors.New("registry is not refreshed yet")

// Updater keeps the registry of one service in sync with its data source.
// Refreshes are driven by signals only; bursts of requests are coalesced into one cycle.
type Updater[T any] struct {
	registry              service_registry.Registry[T]
	source                node_data_source.NodeDataSource[T]
	deserializer          model.Deserializer[T]
	pollInterval          time.Duration
	initialRefreshTimeout time.Duration
	clock                 clockwork.Clock
	logger                zerolog.Logger
	metrics               *metrics

	pending atomic.Bool
	wake    chan struct{}

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
}

func New[T any](
	registry service_registry.Registry[T],
	source node_data_source.NodeDataSource[T],
	deserializer model.Deserializer[T],
	signals []signal.Signal,
	pollInterval time.Duration,
	initialRefreshTimeout time.Duration,
	clock clockwork.Clock,
	logger zerolog.Logger,
) *Updater[T] {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if pollInterval <= 0 {
		pollInterval = time.Second
	}

	svc := registry.Service().String()
	u := Updater[T]{
		registry:              registry,
		source:                source,
		deserializer:          deserializer,
		pollInterval:          pollInterval,
		initialRefreshTimeout: initialRefreshTimeout,
		clock:                 clock,
		logger:                logger.With().Str("service", svc).Logger(),
		metrics:               newMetrics(svc),
		wake:                  make(chan struct{}, 1),
		done:                  make(chan struct{}),
	}

	for _, s := range signals {
		s.RegisterConsumer(u.RequestRefresh)
	}

	return &u
}

func (u *Updater[T]) Metrics() []prometheus.Collector {
	return u.metrics.list()
}

func (u *Updater[T]) Registry() service_registry.Registry[T] {
	return u.registry
}

// Start launches the background loop and blocks until the registry has been refreshed at least once.
// ctx bounds only the wait: the loop itself runs until Stop.
func (u *Updater[T]) Start(ctx context.Context) error {
	u.mu.Lock()
	if u.started {
		u.mu.Unlock()
		return errors.New("updater already started")
	}
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	u.started = true
	u.cancel = cancel
	u.mu.Unlock()

	u.RequestRefresh(nil)
	go u.run(runCtx)

	u.logger.Info().Msg("started updater, waiting for initial update")
	ts := u.clock.Now()

	waitCtx := ctx
	if u.initialRefreshTimeout > 0 {
		var cancelWait context.CancelFunc
		waitCtx, cancelWait = context.WithTimeout(ctx, u.initialRefreshTimeout)
		defer cancelWait()
	}

	if err := backoff.Retry(
		func() error {
			if u.registry.IsRefreshed() {
				return nil
			}
			return errNotRefreshed
		},
		backoff.WithContext(backoff.NewConstantBackOff(u.pollInterval), waitCtx),
	); err != nil {
		u.Stop()
		return model.InitializationError{
			Service: u.registry.Service(),
			Err:     fmt.Errorf("waiting for initial refresh: %w", err),
		}
	}

	u.logger.
		Info().
		Dur("elapsed", u.clock.Since(ts)).
		Int("nodes", len(u.registry.Nodes())).
		Msg("initial node list updated")
	return nil
}

// Stop cancels the background loop without waiting for it. Use Done to wait.
func (u *Updater[T]) Stop() {
	u.mu.Lock()
	cancel := u.cancel
	u.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Done is closed once the background loop has exited.
func (u *Updater[T]) Done() <-chan struct{} {
	return u.done
}

// RequestRefresh schedules a reconciliation cycle. It never blocks.
// Requests made before the loop wakes up collapse into a single cycle.
func (u *Updater[T]) RequestRefresh(payload any) {
	if payload != nil {
		panic(fmt.Sprintf("refresh request must not carry payload, got %T", payload))
	}

	u.metrics.requestsCnt.Inc()
	u.pending.Store(true)

	select {
	case u.wake <- struct{}{}:
	default:
	}
}

func (u *Updater[T]) run(ctx context.Context) {
	defer close(u.done)

	for {
		select {
		case <-ctx.Done():
			u.logger.Info().Msg("updater stopped")
			return
		case <-u.wake:
		}

		// cleared before the cycle so that requests arriving mid-cycle schedule another one
		if !u.pending.Swap(false) {
			continue
		}

		u.cycle(ctx)
	}
}

func (u *Updater[T]) cycle(ctx context.Context) {
	u.metrics.cyclesCnt.Inc()
	defer func(ts time.Time) {
		u.metrics.cycleTimeHist.Observe(float64(time.Since(ts)))
	}(time.Now())

	defer func() {
		if r := recover(); r != nil {
			u.metrics.panicsCnt.Inc()
			u.logger.
				Error().
				Err(fmt.Errorf("registry update panicked: %v", r)).
				Send()
		}
	}()

	u.reconcile(ctx)
}

func (u *Updater[T]) reconcile(ctx context.Context) {
	u.logger.Debug().Msg("checking for updates on data source")

	if u.source.IsActive() {
		nodes, ok, err := u.refresh(ctx)
		switch {
		case ctx.Err() != nil:
			// stopping, the result may be partial
			return
		case err != nil:
			u.logger.
				Error().
				Err(fmt.Errorf("refreshing nodes from data source: %w", err)).
				Send()
		case !ok:
			u.metrics.emptyResultsCnt.Inc()
			u.logger.Warn().Msg("no data returned from node data source, keeping old list")
			return
		default:
			maxAge := u.source.HealthcheckZombieCheckThresholdTime(u.registry.Service())
			valid := model.FilterValidNodes(nodes, u.clock.Now(), maxAge)

			u.logger.
				Debug().
				Int("fetched", len(nodes)).
				Int("valid", len(valid)).
				Msg("updating node list")

			u.registry.UpdateNodes(valid)
			u.metrics.successCyclesCnt.Inc()
			return
		}
	} else {
		u.logger.Debug().Err(model.ErrSourceInactive).Send()
	}

	u.degrade()
}

// refresh turns a panicking source into a failed refresh.
func (u *Updater[T]) refresh(ctx context.Context) (nodes []model.Node[T], ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			u.metrics.panicsCnt.Inc()
			nodes, ok, err = nil, false, fmt.Errorf("node data source panicked: %v", r)
		}
	}()

	return u.source.Refresh(ctx, u.deserializer)
}

// degrade keeps previously known healthy nodes alive while the source is down.
// Nodes of a never refreshed registry were restored from a snapshot
// and have to pass the zombie check before being stamped as fresh.
func (u *Updater[T]) degrade() {
	u.metrics.degradedCyclesCnt.Inc()

	current := u.registry.Nodes()
	if !u.registry.IsRefreshed() {
		maxAge := u.source.HealthcheckZombieCheckThresholdTime(u.registry.Service())
		current = model.FilterValidNodes(current, u.clock.Now(), maxAge)
	}

	if len(current) == 0 {
		u.logger.Warn().Msg("node data source seems to be down and there is no old list to keep")
		return
	}

	now := u.clock.Now().UnixMilli()
	kept := lo.FilterMap(current, func(el model.Node[T], _ int) (model.Node[T], bool) {
		if !el.IsHealthy() {
			return el, false
		}
		el.LastUpdatedTimeStamp = now
		return el, true
	})

	u.logger.
		Warn().
		Int("kept", len(kept)).
		Int("dropped", len(current)-len(kept)).
		Msg("node data source seems to be down, keeping old healthy nodes with refreshed timestamps")

	u.registry.UpdateNodes(kept)
}
