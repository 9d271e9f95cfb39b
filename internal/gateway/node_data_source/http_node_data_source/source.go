package http_node_data_source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	controller_dto "github.com/horockey/ranger/internal/controller/http_controller/dto"
	"github.com/horockey/ranger/internal/gateway/node_data_source"
	"github.com/horockey/ranger/internal/model"
	"github.com/horockey/ranger/pkg/breaker"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

var _ node_data_source.NodeDataSource[any] = &httpNodeDataSource[any]{}

const nodesPath = "/ranger/nodes/v1/{namespace}/{service}"

type httpNodeDataSource[T any] struct {
	cl              *resty.Client
	service         model.Service
	breaker         *gobreaker.TwoStepCircuitBreaker
	zombieThreshold time.Duration
	metrics         *metrics
	logger          zerolog.Logger
}

// New polls a ranger HTTP server for nodes of svc.
// httpClient may be nil. Per-call timeout is owned by this source, not by the updater.
func New[T any](
	baseURL string,
	svc model.Service,
	httpClient *http.Client,
	requestTimeout time.Duration,
	zombieThreshold time.Duration,
	brk *gobreaker.TwoStepCircuitBreaker,
	logger zerolog.Logger,
) *httpNodeDataSource[T] {
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	return &httpNodeDataSource[T]{
		service:         svc,
		breaker:         brk,
		zombieThreshold: zombieThreshold,
		metrics:         newMetrics(svc.String()),
		logger:          logger,
		cl: resty.NewWithClient(httpClient).
			SetBaseURL(baseURL).
			SetTimeout(requestTimeout).
			SetRetryCount(0),
	}
}

func (src *httpNodeDataSource[T]) Metrics() []prometheus.Collector {
	return src.metrics.list()
}

func (src *httpNodeDataSource[T]) IsActive() bool {
	return !breaker.IsOpen(src.breaker)
}

func (src *httpNodeDataSource[T]) HealthcheckZombieCheckThresholdTime(model.Service) time.Duration {
	return src.zombieThreshold
}

func (src *httpNodeDataSource[T]) Refresh(
	ctx context.Context,
	deserializer model.Deserializer[T],
) (res []model.Node[T], ok bool, resErr error) {
	done, err := src.breaker.Allow()
	if err != nil {
		return nil, false, fmt.Errorf("%w: %w", model.ErrSourceInactive, err)
	}

	defer func(ts time.Time) {
		src.metrics.requestsCnt.Inc()
		src.metrics.handleTimeHist.Observe(float64(time.Since(ts)))

		done(resErr == nil)
		switch resErr {
		case nil:
			src.metrics.successProcessCnt.Inc()
		default:
			src.metrics.errProcessCnt.Inc()
		}
	}(time.Now())

	resp, err := src.cl.R().
		SetContext(ctx).
		SetPathParam("namespace", src.service.Namespace).
		SetPathParam("service", src.service.Name).
		Get(nodesPath)
	if err != nil {
		return nil, false, fmt.Errorf("executing request: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, false, fmt.Errorf("got non-ok response (%s): %s", resp.Status(), resp.String())
	}

	dtoResp := controller_dto.NodesResponse{}
	if err := json.Unmarshal(resp.Body(), &dtoResp); err != nil {
		return nil, false, fmt.Errorf("unmarshaling json: %w", err)
	}

	if !dtoResp.Success {
		src.logger.Warn().Str("service", src.service.String()).Msg("server reported unsuccessful node list")
		return nil, false, nil
	}

	res = make([]model.Node[T], 0, len(dtoResp.Data))
	for _, n := range dtoResp.Data {
		node, err := controller_dto.NodeToModel(n, deserializer)
		if err != nil {
			return nil, false, fmt.Errorf("converting dto node to model: %w", err)
		}
		res = append(res, node)
	}

	return res, true, nil
}
