package etcd_node_data_source

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	controller_dto "github.com/horockey/ranger/internal/controller/http_controller/dto"
	"github.com/horockey/ranger/internal/gateway/node_data_source"
	"github.com/horockey/ranger/internal/model"
	"github.com/horockey/ranger/pkg/breaker"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	clientv3 "go.etcd.io/etcd/client/v3"
)

var _ node_data_source.NodeDataSource[any] = &etcdNodeDataSource[any]{}

// Prefix returns the key prefix under which nodes of svc are stored:
// /ranger/{namespace}/{service}/{host}:{port} -> JSON node.
func Prefix(svc model.Service) string {
	return fmt.Sprintf("/ranger/%s/%s/", svc.Namespace, svc.Name)
}

type etcdNodeDataSource[T any] struct {
	kv              clientv3.KV
	service         model.Service
	breaker         *gobreaker.TwoStepCircuitBreaker
	requestTimeout  time.Duration
	zombieThreshold time.Duration
	logger          zerolog.Logger
}

func New[T any](
	kv clientv3.KV,
	svc model.Service,
	requestTimeout time.Duration,
	zombieThreshold time.Duration,
	brk *gobreaker.TwoStepCircuitBreaker,
	logger zerolog.Logger,
) *etcdNodeDataSource[T] {
	return &etcdNodeDataSource[T]{
		kv:              kv,
		service:         svc,
		breaker:         brk,
		requestTimeout:  requestTimeout,
		zombieThreshold: zombieThreshold,
		logger:          logger,
	}
}

func (src *etcdNodeDataSource[T]) IsActive() bool {
	return !breaker.IsOpen(src.breaker)
}

func (src *etcdNodeDataSource[T]) HealthcheckZombieCheckThresholdTime(model.Service) time.Duration {
	return src.zombieThreshold
}

func (src *etcdNodeDataSource[T]) Refresh(
	ctx context.Context,
	deserializer model.Deserializer[T],
) (res []model.Node[T], ok bool, resErr error) {
	done, err := src.breaker.Allow()
	if err != nil {
		return nil, false, fmt.Errorf("%w: %w", model.ErrSourceInactive, err)
	}
	defer func() { done(resErr == nil) }()

	if src.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, src.requestTimeout)
		defer cancel()
	}

	resp, err := src.kv.Get(ctx, Prefix(src.service), clientv3.WithPrefix())
	if err != nil {
		return nil, false, fmt.Errorf("getting nodes by prefix: %w", err)
	}

	res = make([]model.Node[T], 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		dtoNode := controller_dto.Node{}
		if err := json.Unmarshal(kv.Value, &dtoNode); err != nil {
			src.logger.
				Warn().
				Str("key", string(kv.Key)).
				Err(fmt.Errorf("unmarshaling json: %w", err)).
				Msg("skipping malformed node")
			continue
		}

		node, err := controller_dto.NodeToModel(dtoNode, deserializer)
		if err != nil {
			src.logger.
				Warn().
				Str("key", string(kv.Key)).
				Err(fmt.Errorf("converting dto node to model: %w", err)).
				Msg("skipping malformed node")
			continue
		}
		res = append(res, node)
	}

	return res, true, nil
}
