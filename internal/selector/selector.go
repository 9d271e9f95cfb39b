package selector

import (
	"math/rand/v2"
	"sync/atomic"

	"github.com/horockey/ranger/internal/model"
	"github.com/samber/lo"
)

// Criteria narrows down nodes eligible for selection. Nil matches any node.
type Criteria[T any] func(model.Node[T]) bool

// Selector picks one node out of a registry snapshot.
// Implementations must be safe for concurrent use.
type Selector[T any] interface {
	Select(svc model.Service, nodes []model.Node[T], criteria Criteria[T]) (model.Node[T], error)
}

var (
	_ Selector[any] = &RoundRobin[any]{}
	_ Selector[any] = Random[any]{}
)

// Eligible returns healthy nodes matching criteria.
func Eligible[T any](nodes []model.Node[T], criteria Criteria[T]) []model.Node[T] {
	return lo.Filter(nodes, func(el model.Node[T], _ int) bool {
		return el.IsHealthy() && (criteria == nil || criteria(el))
	})
}

// RoundRobin walks eligible nodes in order using a shared counter.
type RoundRobin[T any] struct {
	counter atomic.Uint64
}

func NewRoundRobin[T any]() *RoundRobin[T] {
	return &RoundRobin[T]{}
}

func (rr *RoundRobin[T]) Select(svc model.Service, nodes []model.Node[T], criteria Criteria[T]) (model.Node[T], error) {
	eligible := Eligible(nodes, criteria)
	if len(eligible) == 0 {
		return model.Node[T]{}, model.NoNodesError{Service: svc}
	}

	idx := (rr.counter.Add(1) - 1) % uint64(len(eligible))
	return eligible[idx], nil
}

// Random picks a uniformly distributed eligible node.
type Random[T any] struct{}

func (Random[T]) Select(svc model.Service, nodes []model.Node[T], criteria Criteria[T]) (model.Node[T], error) {
	eligible := Eligible(nodes, criteria)
	if len(eligible) == 0 {
		return model.Node[T]{}, model.NoNodesError{Service: svc}
	}

	return eligible[rand.IntN(len(eligible))], nil
}
