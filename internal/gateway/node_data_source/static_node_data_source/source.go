package static_node_data_source

import (
	"context"
	"time"

	"github.com/horockey/ranger/internal/gateway/node_data_source"
	"github.com/horockey/ranger/internal/model"
	"github.com/jonboulle/clockwork"
	"github.com/samber/lo"
)

var _ node_data_source.NodeDataSource[any] = &staticNodeDataSource[any]{}

// staticNodeDataSource serves a fixed node list. Handy during service integrations.
type staticNodeDataSource[T any] struct {
	nodes []model.Node[T]
	clock clockwork.Clock
}

func New[T any](nodes []model.Node[T], clock clockwork.Clock) *staticNodeDataSource[T] {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &staticNodeDataSource[T]{
		nodes: nodes,
		clock: clock,
	}
}

func (src *staticNodeDataSource[T]) IsActive() bool {
	return true
}

// Refresh stamps every node with the current time, static nodes never go stale.
func (src *staticNodeDataSource[T]) Refresh(
	_ context.Context,
	_ model.Deserializer[T],
) ([]model.Node[T], bool, error) {
	now := src.clock.Now().UnixMilli()
	return lo.Map(src.nodes, func(el model.Node[T], _ int) model.Node[T] {
		el.LastUpdatedTimeStamp = now
		if el.HealthcheckStatus == "" {
			el.HealthcheckStatus = model.HealthcheckStatusHealthy
		}
		return el
	}), true, nil
}

func (src *staticNodeDataSource[T]) HealthcheckZombieCheckThresholdTime(model.Service) time.Duration {
	return 0
}
