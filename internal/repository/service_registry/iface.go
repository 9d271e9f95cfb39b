package service_registry

import (
	"github.com/horockey/ranger/internal/model"
)

// Registry is a per-service cache of nodes.
// Nodes returns a complete snapshot; it is never modified after being handed out.
// Once IsRefreshed reports true it never reverts.
type Registry[T any] interface {
	model.MetricsProvider
	Service() model.Service
	Nodes() []model.Node[T]
	IsRefreshed() bool
	UpdateNodes(nodes []model.Node[T])
}

type Factory[T any] func(svc model.Service) (Registry[T], error)
