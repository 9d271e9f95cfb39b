package node_data_source

import (
	"context"
	"time"

	"github.com/horockey/ranger/internal/model"
	"github.com/horockey/ranger/internal/signal"
)

// NodeDataSource is a source of truth for nodes of a single service.
// Implementations own their connections, call timeouts and circuit breaking:
// IsActive must be cheap and report false while the source is failing fast.
type NodeDataSource[T any] interface {
	IsActive() bool
	// Refresh returns ok=false when no data is available right now,
	// which must not clobber the current node list.
	Refresh(ctx context.Context, deserializer model.Deserializer[T]) (nodes []model.Node[T], ok bool, err error)
	HealthcheckZombieCheckThresholdTime(svc model.Service) time.Duration
}

// Factory builds a data source for svc together with source-specific signals
// (watches, blocking queries) that should trigger its refresh.
type Factory[T any] func(svc model.Service) (NodeDataSource[T], []signal.Signal, error)
