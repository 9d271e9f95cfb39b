package inmemory_service_registry

import (
	"slices"
	"sync/atomic"

	"github.com/horockey/ranger/internal/model"
	"github.com/horockey/ranger/internal/repository/service_registry"
	"github.com/prometheus/client_golang/prometheus"
)

var _ service_registry.Registry[any] = &inmemoryServiceRegistry[any]{}

type inmemoryServiceRegistry[T any] struct {
	service   model.Service
	nodes     atomic.Pointer[[]model.Node[T]]
	refreshed atomic.Bool
	metrics   *metrics
}

func New[T any](svc model.Service) *inmemoryServiceRegistry[T] {
	repo := inmemoryServiceRegistry[T]{
		service: svc,
	}
	repo.nodes.Store(&[]model.Node[T]{})
	repo.metrics = newMetrics(&repo)

	return &repo
}

func NewFactory[T any]() service_registry.Factory[T] {
	return func(svc model.Service) (service_registry.Registry[T], error) {
		return New[T](svc), nil
	}
}

func (repo *inmemoryServiceRegistry[T]) Service() model.Service {
	return repo.service
}

func (repo *inmemoryServiceRegistry[T]) Nodes() []model.Node[T] {
	return slices.Clone(*repo.nodes.Load())
}

func (repo *inmemoryServiceRegistry[T]) IsRefreshed() bool {
	return repo.refreshed.Load()
}

func (repo *inmemoryServiceRegistry[T]) UpdateNodes(nodes []model.Node[T]) {
	// callers may keep mutating their slice
	snapshot := slices.Clone(nodes)
	if snapshot == nil {
		snapshot = []model.Node[T]{}
	}

	repo.nodes.Store(&snapshot)
	repo.refreshed.Store(true)
	repo.metrics.updatesCnt.Inc()
}

// Restore swaps the snapshot in without marking the registry refreshed.
func (repo *inmemoryServiceRegistry[T]) Restore(nodes []model.Node[T]) {
	snapshot := slices.Clone(nodes)
	if snapshot == nil {
		snapshot = []model.Node[T]{}
	}
	repo.nodes.Store(&snapshot)
}

func (repo *inmemoryServiceRegistry[T]) Metrics() []prometheus.Collector {
	return repo.metrics.list()
}
