package hub_test

import (
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/horockey/ranger/internal/gateway/node_data_source"
	"github.com/horockey/ranger/internal/gateway/node_data_source/static_node_data_source"
	"github.com/horockey/ranger/internal/hub"
	"github.com/horockey/ranger/internal/model"
	"github.com/horockey/ranger/internal/repository/service_registry/inmemory_service_registry"
	"github.com/horockey/ranger/internal/signal"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	orders = model.Service{Namespace: "shop", Name: "orders"}
	users  = model.Service{Namespace: "shop", Name: "users"}
)

type mockServices struct {
	mu    sync.Mutex
	list  []model.Service
	err   error
	calls atomic.Int32
}

func (m *mockServices) Services(context.Context) ([]model.Service, error) {
	m.calls.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.list), m.err
}

func (m *mockServices) add(svc model.Service) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.list = append(m.list, svc)
}

// countingSource counts refreshes of a wrapped data source.
type countingSource struct {
	node_data_source.NodeDataSource[string]
	calls atomic.Int32
}

func (src *countingSource) Refresh(ctx context.Context, d model.Deserializer[string]) ([]model.Node[string], bool, error) {
	src.calls.Add(1)
	return src.NodeDataSource.Refresh(ctx, d)
}

type fixture struct {
	hub      *hub.Hub[string]
	services *mockServices
	clock    *clockwork.FakeClock

	mu      sync.Mutex
	sources map[model.Service]*countingSource
}

func newFixture(t *testing.T, services ...model.Service) *fixture {
	t.Helper()

	f := fixture{
		services: &mockServices{list: services},
		clock:    clockwork.NewFakeClock(),
		sources:  map[model.Service]*countingSource{},
	}

	sourceFactory := func(svc model.Service) (node_data_source.NodeDataSource[string], []signal.Signal, error) {
		src := &countingSource{NodeDataSource: static_node_data_source.New([]model.Node[string]{
			{Host: svc.Name + "-1", Port: 80, Data: "eu", HealthcheckStatus: model.HealthcheckStatusHealthy},
			{Host: svc.Name + "-2", Port: 80, Data: "us", HealthcheckStatus: model.HealthcheckStatusHealthy},
			{Host: svc.Name + "-3", Port: 80, Data: "eu", HealthcheckStatus: model.HealthcheckStatusUnhealthy},
		}, f.clock)}

		f.mu.Lock()
		f.sources[svc] = src
		f.mu.Unlock()

		return src, nil, nil
	}

	f.hub = hub.New(
		f.services,
		inmemory_service_registry.NewFactory[string](),
		sourceFactory,
		model.JSONDeserializer[string](),
		nil,
		hub.Intervals{
			ServiceRefresh: time.Minute,
			Poll:           5 * time.Millisecond,
		},
		f.clock,
		zerolog.Nop(),
	)

	return &f
}

func (f *fixture) source(svc model.Service) *countingSource {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sources[svc]
}

func (f *fixture) start(t *testing.T) (context.CancelFunc, <-chan error) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	errs := make(chan error, 1)
	go func() {
		errs <- f.hub.Start(ctx)
	}()

	select {
	case <-f.hub.Ready():
	case err := <-errs:
		cancel()
		t.Fatalf("hub start failed: %v", err)
	case <-time.After(time.Second):
		cancel()
		t.Fatal("hub did not become ready")
	}

	return cancel, errs
}

func Test_Hub_Queries(t *testing.T) {
	f := newFixture(t, users, orders, orders)
	cancel, errs := f.start(t)
	defer cancel()

	assert.Equal(t, []model.Service{orders, users}, f.hub.Services())

	nodes, err := f.hub.Nodes(orders)
	require.NoError(t, err)
	assert.Len(t, nodes, 3)

	first, err := f.hub.Node(orders, nil)
	require.NoError(t, err)
	second, err := f.hub.Node(orders, nil)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"orders-1", "orders-2"}, []string{first.Host, second.Host})

	eu, err := f.hub.AllNodes(orders, func(n model.Node[string]) bool { return n.Data == "eu" })
	require.NoError(t, err)
	require.Len(t, eu, 1)
	assert.Equal(t, "orders-1", eu[0].Host)

	_, err = f.hub.Node(orders, func(model.Node[string]) bool { return false })
	assert.ErrorAs(t, err, &model.NoNodesError{})

	cancel()
	select {
	case err := <-errs:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("hub did not stop")
	}
	assert.Empty(t, f.hub.Services())
}

func Test_Hub_UnknownService(t *testing.T) {
	f := newFixture(t, orders)
	cancel, _ := f.start(t)
	defer cancel()

	unknown := model.Service{Namespace: "shop", Name: "unknown"}

	_, err := f.hub.Nodes(unknown)
	assert.ErrorAs(t, err, &model.ServiceNotFoundError{})

	_, err = f.hub.Node(unknown, nil)
	assert.ErrorAs(t, err, &model.ServiceNotFoundError{})

	_, err = f.hub.AllNodes(unknown, nil)
	assert.ErrorAs(t, err, &model.ServiceNotFoundError{})

	assert.ErrorAs(t, f.hub.Refresh(unknown), &model.ServiceNotFoundError{})
}

func Test_Hub_Refresh(t *testing.T) {
	f := newFixture(t, orders)
	cancel, _ := f.start(t)
	defer cancel()

	src := f.source(orders)
	require.EqualValues(t, 1, src.calls.Load())

	require.NoError(t, f.hub.Refresh(orders))
	assert.Eventually(t, func() bool {
		return src.calls.Load() == 2
	}, time.Second, 5*time.Millisecond)
}

func Test_Hub_StartTwice(t *testing.T) {
	f := newFixture(t, orders)
	cancel, _ := f.start(t)
	defer cancel()

	assert.Error(t, f.hub.Start(context.Background()))
}

func Test_Hub_NewServices(t *testing.T) {
	f := newFixture(t, orders)
	cancel, _ := f.start(t)
	defer cancel()

	f.services.add(users)

	ctx, cancelWait := context.WithTimeout(context.Background(), time.Second)
	defer cancelWait()
	require.NoError(t, f.clock.BlockUntilContext(ctx, 1))
	f.clock.Advance(time.Minute)

	assert.Eventually(t, func() bool {
		return len(f.hub.Services()) == 2
	}, time.Second, 5*time.Millisecond)

	nodes, err := f.hub.Nodes(users)
	require.NoError(t, err)
	assert.Len(t, nodes, 3)
}

func Test_Hub_NewServiceNeverRefreshed(t *testing.T) {
	const serviceRefresh = 50 * time.Millisecond

	clock := clockwork.NewFakeClock()
	services := &mockServices{list: []model.Service{orders}}
	h := hub.New(
		services,
		inmemory_service_registry.NewFactory[string](),
		func(svc model.Service) (node_data_source.NodeDataSource[string], []signal.Signal, error) {
			if svc == users {
				return inactiveSource{}, nil, nil
			}
			return static_node_data_source.New([]model.Node[string]{
				{Host: "h1", Port: 80, HealthcheckStatus: model.HealthcheckStatusHealthy},
			}, clock), nil, nil
		},
		model.JSONDeserializer[string](),
		nil,
		hub.Intervals{ServiceRefresh: serviceRefresh, Poll: 5 * time.Millisecond},
		clock,
		zerolog.Nop(),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = h.Start(ctx) }()

	select {
	case <-h.Ready():
	case <-time.After(time.Second):
		t.Fatal("hub did not become ready")
	}
	require.EqualValues(t, 1, services.calls.Load())

	services.add(users)

	// each tick gives up on users and keeps watching for services
	for i := range 2 {
		waitCtx, cancelWait := context.WithTimeout(context.Background(), time.Second)
		require.NoError(t, clock.BlockUntilContext(waitCtx, 1))
		cancelWait()
		clock.Advance(serviceRefresh)

		require.Eventually(t, func() bool {
			return services.calls.Load() == int32(i+2)
		}, time.Second, 5*time.Millisecond)
	}

	assert.Equal(t, []model.Service{orders}, h.Services())
	_, err := h.Nodes(users)
	assert.ErrorAs(t, err, &model.ServiceNotFoundError{})
}

func Test_Hub_InitErrors(t *testing.T) {
	t.Run("service data source", func(t *testing.T) {
		f := newFixture(t)
		f.services.err = errors.New("boom")

		err := f.hub.Start(context.Background())
		assert.ErrorContains(t, err, "boom")
	})

	t.Run("never refreshed", func(t *testing.T) {
		h := hub.New(
			&mockServices{list: []model.Service{orders}},
			inmemory_service_registry.NewFactory[string](),
			func(model.Service) (node_data_source.NodeDataSource[string], []signal.Signal, error) {
				return inactiveSource{}, nil, nil
			},
			model.JSONDeserializer[string](),
			nil,
			hub.Intervals{Poll: 5 * time.Millisecond, InitialRefreshTimeout: 50 * time.Millisecond},
			nil,
			zerolog.Nop(),
		)

		err := h.Start(context.Background())
		assert.ErrorAs(t, err, &model.InitializationError{})

		select {
		case <-h.Ready():
			t.Fatal("hub must not become ready")
		default:
		}
	})
}

func Test_Hub_Metrics(t *testing.T) {
	f := newFixture(t, orders, users)
	cancel, _ := f.start(t)
	defer cancel()

	reg := prometheus.NewRegistry()
	for _, c := range f.hub.Metrics() {
		require.NoError(t, reg.Register(c))
	}

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make([]string, 0, len(families))
	for _, fam := range families {
		names = append(names, fam.GetName())
	}
	assert.Contains(t, names, "hub_services_gauge")
	assert.Contains(t, names, "registry_updater_cycles_cnt")
	assert.Contains(t, names, "inmemory_service_registry_updates_cnt")
}

type inactiveSource struct{}

func (inactiveSource) IsActive() bool { return false }

func (inactiveSource) Refresh(context.Context, model.Deserializer[string]) ([]model.Node[string], bool, error) {
	return nil, false, nil
}

func (inactiveSource) HealthcheckZombieCheckThresholdTime(model.Service) time.Duration { return 0 }
