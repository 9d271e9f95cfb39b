package consul_node_data_source

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hashicorp/consul/api"
	"github.com/horockey/ranger/internal/gateway/node_data_source"
	"github.com/horockey/ranger/internal/model"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

var _ node_data_source.NodeDataSource[any] = &consulNodeDataSource[any]{}

// HealthClient is satisfied by *api.Health.
type HealthClient interface {
	Service(service, tag string, passingOnly bool, q *api.QueryOptions) ([]*api.ServiceEntry, *api.QueryMeta, error)
}

// consulNodeDataSource reads service instances with their aggregated health from consul.
// Consul has its own health checks, so nodes are stamped with fetch time.
type consulNodeDataSource[T any] struct {
	health  HealthClient
	service model.Service
	tag     string
	clock   clockwork.Clock
	logger  zerolog.Logger
}

// New uses svc.Name as the consul service name. Empty tag matches all instances.
func New[T any](
	health HealthClient,
	svc model.Service,
	tag string,
	clock clockwork.Clock,
	logger zerolog.Logger,
) *consulNodeDataSource[T] {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &consulNodeDataSource[T]{
		health:  health,
		service: svc,
		tag:     tag,
		clock:   clock,
		logger:  logger,
	}
}

// IsActive is always true: the consul client fails fast on its own.
func (src *consulNodeDataSource[T]) IsActive() bool {
	return true
}

func (src *consulNodeDataSource[T]) HealthcheckZombieCheckThresholdTime(model.Service) time.Duration {
	return 0
}

func (src *consulNodeDataSource[T]) Refresh(
	ctx context.Context,
	deserializer model.Deserializer[T],
) ([]model.Node[T], bool, error) {
	entries, _, err := src.health.Service(
		src.service.Name,
		src.tag,
		false,
		(&api.QueryOptions{}).WithContext(ctx),
	)
	if err != nil {
		return nil, false, fmt.Errorf("getting service health from consul: %w", err)
	}

	now := src.clock.Now().UnixMilli()
	res := make([]model.Node[T], 0, len(entries))
	for _, entry := range entries {
		if entry.Service == nil {
			continue
		}

		node, err := entryToModel(entry, deserializer, now)
		if err != nil {
			src.logger.
				Warn().
				Str("service", src.service.String()).
				Str("id", entry.Service.ID).
				Err(fmt.Errorf("converting consul entry to model: %w", err)).
				Msg("skipping malformed node")
			continue
		}
		res = append(res, node)
	}

	return res, true, nil
}

func entryToModel[T any](entry *api.ServiceEntry, deserializer model.Deserializer[T], now int64) (model.Node[T], error) {
	res := model.Node[T]{
		Host:                 entry.Service.Address,
		Port:                 entry.Service.Port,
		HealthcheckStatus:    healthStatus(entry.Checks),
		LastUpdatedTimeStamp: now,
	}
	if res.Host == "" && entry.Node != nil {
		res.Host = entry.Node.Address
	}

	if deserializer != nil && len(entry.Service.Meta) > 0 {
		raw, err := json.Marshal(entry.Service.Meta)
		if err != nil {
			return model.Node[T]{}, fmt.Errorf("marshaling meta: %w", err)
		}
		data, err := deserializer.Deserialize(raw)
		if err != nil {
			return model.Node[T]{}, fmt.Errorf("deserializing meta: %w", err)
		}
		res.Data = data
	}

	return res, nil
}

func healthStatus(checks api.HealthChecks) model.HealthcheckStatus {
	switch checks.AggregatedStatus() {
	case api.HealthPassing, api.HealthWarning:
		return model.HealthcheckStatusHealthy
	case api.HealthCritical, api.HealthMaint:
		return model.HealthcheckStatusUnhealthy
	default:
		return model.HealthcheckStatusUnknown
	}
}
