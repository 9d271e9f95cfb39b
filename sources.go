package ranger

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/hashicorp/consul/api"
	"github.com/horockey/go-toolbox/options"
	"github.com/horockey/ranger/internal/gateway/node_data_source/consul_node_data_source"
	"github.com/horockey/ranger/internal/gateway/node_data_source/etcd_node_data_source"
	"github.com/horockey/ranger/internal/gateway/node_data_source/http_node_data_source"
	"github.com/horockey/ranger/internal/gateway/node_data_source/static_node_data_source"
	"github.com/horockey/ranger/internal/gateway/service_data_source/consul_service_data_source"
	"github.com/horockey/ranger/internal/gateway/service_data_source/http_service_data_source"
	"github.com/horockey/ranger/internal/gateway/service_data_source/static_service_data_source"
	"github.com/horockey/ranger/internal/signal"
	"github.com/horockey/ranger/pkg/breaker"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	clientv3 "go.etcd.io/etcd/client/v3"
)

// SourceOption configures node data source factories.
type SourceOption = options.Option[sourceParams]

type sourceParams struct {
	requestTimeout   time.Duration
	zombieThreshold  time.Duration
	breakerThreshold int
	breakerCooldown  time.Duration
	httpClient       *http.Client
	consulTag        string
	consulWaitTime   time.Duration
	watch            bool
	clock            clockwork.Clock
	logger           zerolog.Logger
}

func defaultSourceParams() sourceParams {
	return sourceParams{
		requestTimeout:   5 * time.Second,  //nolint: mnd
		zombieThreshold:  time.Minute,      //nolint: mnd
		breakerThreshold: 3,                //nolint: mnd
		breakerCooldown:  10 * time.Second, //nolint: mnd
		watch:            true,
		clock:            clockwork.NewRealClock(),
		logger: zerolog.New(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}).With().
			Timestamp().
			Str("scope", "ranger_node_data_source").
			Logger(),
	}
}

func (p sourceParams) breaker(kind string, svc Service) *gobreaker.TwoStepCircuitBreaker {
	return breaker.New(
		kind+":"+svc.String(),
		uint32(p.breakerThreshold), //nolint: gosec
		p.breakerCooldown,
		p.logger,
	)
}

// Sets timeout of a single call to the node data source.
// Default is 5s.
func WithSourceRequestTimeout(to time.Duration) options.Option[sourceParams] {
	return func(target *sourceParams) error {
		if to <= 0 {
			return fmt.Errorf("request timeout must be positive, got: %s", to.String())
		}
		target.requestTimeout = to
		return nil
	}
}

// Sets max age of a node reported by the source. Older nodes are dropped on refresh.
// Zero disables the check. Default is 1m.
func WithZombieThreshold(th time.Duration) options.Option[sourceParams] {
	return func(target *sourceParams) error {
		if th < 0 {
			return fmt.Errorf("zombie threshold must not be negative, got: %s", th.String())
		}
		target.zombieThreshold = th
		return nil
	}
}

// Sets circuit breaker of the source: it opens after threshold consecutive failures
// and lets a single trial call through after cooldown.
// Default is 3 failures and 10s.
func WithCircuitBreaker(threshold int, cooldown time.Duration) options.Option[sourceParams] {
	return func(target *sourceParams) error {
		if threshold <= 0 {
			return fmt.Errorf("breaker threshold must be positive, got: %d", threshold)
		}
		if cooldown <= 0 {
			return fmt.Errorf("breaker cooldown must be positive, got: %s", cooldown.String())
		}
		target.breakerThreshold = threshold
		target.breakerCooldown = cooldown
		return nil
	}
}

// Sets custom http client for HTTP source.
func WithHTTPClient(cl *http.Client) options.Option[sourceParams] {
	return func(target *sourceParams) error {
		if cl == nil {
			return errors.New("got nil http client")
		}
		target.httpClient = cl
		return nil
	}
}

// Sets consul tag to filter service instances by.
func WithConsulTag(tag string) options.Option[sourceParams] {
	return func(target *sourceParams) error {
		target.consulTag = tag
		return nil
	}
}

// Sets max wait time of consul blocking queries.
// Default is 5m.
func WithConsulWaitTime(wt time.Duration) options.Option[sourceParams] {
	return func(target *sourceParams) error {
		if wt <= 0 {
			return fmt.Errorf("wait time must be positive, got: %s", wt.String())
		}
		target.consulWaitTime = wt
		return nil
	}
}

// Disables change notifications (etcd watch, consul blocking queries),
// leaving only scheduled refreshes.
func WithoutWatch() options.Option[sourceParams] {
	return func(target *sourceParams) error {
		target.watch = false
		return nil
	}
}

// Sets custom logger for sources.
// Default is stdout logger.
func WithSourceLogger(l zerolog.Logger) options.Option[sourceParams] {
	return func(target *sourceParams) error {
		target.logger = l
		return nil
	}
}

// Sets custom clock. Used in tests.
func WithSourceClock(c clockwork.Clock) options.Option[sourceParams] {
	return func(target *sourceParams) error {
		if c == nil {
			return errors.New("got nil clock")
		}
		target.clock = c
		return nil
	}
}

// HTTPNodeDataSourceFactory polls other ranger instance (see WithHTTPController) for nodes.
func HTTPNodeDataSourceFactory[T any](
	baseURL string,
	opts ...options.Option[sourceParams],
) (NodeDataSourceFactory[T], error) {
	params := defaultSourceParams()
	if err := options.ApplyOptions(&params, opts...); err != nil {
		return nil, fmt.Errorf("applying opts: %w", err)
	}

	return func(svc Service) (NodeDataSource[T], []Signal, error) {
		return http_node_data_source.New[T](
			baseURL,
			svc,
			params.httpClient,
			params.requestTimeout,
			params.zombieThreshold,
			params.breaker("http", svc),
			params.logger.With().Str("subscope", "http").Logger(),
		), nil, nil
	}, nil
}

// EtcdNodeDataSourceFactory reads nodes stored as JSON under /ranger/{namespace}/{service}/
// and refreshes on every change of that prefix.
func EtcdNodeDataSourceFactory[T any](
	cl *clientv3.Client,
	opts ...options.Option[sourceParams],
) (NodeDataSourceFactory[T], error) {
	if cl == nil {
		return nil, errors.New("got nil etcd client")
	}

	params := defaultSourceParams()
	if err := options.ApplyOptions(&params, opts...); err != nil {
		return nil, fmt.Errorf("applying opts: %w", err)
	}

	return func(svc Service) (NodeDataSource[T], []Signal, error) {
		logger := params.logger.With().Str("subscope", "etcd").Logger()
		src := etcd_node_data_source.New[T](
			cl.KV,
			svc,
			params.requestTimeout,
			params.zombieThreshold,
			params.breaker("etcd", svc),
			logger,
		)
		if !params.watch {
			return src, nil, nil
		}
		return src, []Signal{etcd_node_data_source.NewWatchSignal(cl.Watcher, svc, logger)}, nil
	}, nil
}

// ConsulNodeDataSourceFactory reads healthy and unhealthy instances of a consul service named after Service.Name.
// Instance meta is passed to the deserializer as a JSON object.
func ConsulNodeDataSourceFactory[T any](
	cl *api.Client,
	opts ...options.Option[sourceParams],
) (NodeDataSourceFactory[T], error) {
	if cl == nil {
		return nil, errors.New("got nil consul client")
	}

	params := defaultSourceParams()
	if err := options.ApplyOptions(&params, opts...); err != nil {
		return nil, fmt.Errorf("applying opts: %w", err)
	}

	return func(svc Service) (NodeDataSource[T], []Signal, error) {
		logger := params.logger.With().Str("subscope", "consul").Logger()
		src := consul_node_data_source.New[T](cl.Health(), svc, params.consulTag, params.clock, logger)
		if !params.watch {
			return src, nil, nil
		}
		return src, []Signal{
			consul_node_data_source.NewBlockingQuerySignal(cl.Health(), svc, params.consulTag, params.consulWaitTime, logger),
		}, nil
	}, nil
}

// StaticNodeDataSourceFactory serves the same nodes for every service.
func StaticNodeDataSourceFactory[T any](nodes []Node[T]) NodeDataSourceFactory[T] {
	return func(Service) (NodeDataSource[T], []Signal, error) {
		return static_node_data_source.New(nodes, nil), nil, nil
	}
}

func StaticServiceDataSource(services ...Service) ServiceDataSource {
	return static_service_data_source.New(services...)
}

// HTTPServiceDataSource lists services of namespace known to other ranger instance.
func HTTPServiceDataSource(baseURL, namespace string, requestTimeout time.Duration) ServiceDataSource {
	return http_service_data_source.New(baseURL, namespace, nil, requestTimeout)
}

// ConsulServiceDataSource lists consul services carrying tag as services of namespace.
func ConsulServiceDataSource(cl *api.Client, namespace, tag string) ServiceDataSource {
	return consul_service_data_source.New(cl.Catalog(), namespace, tag)
}

func NewScheduledSignal(name string, interval time.Duration, logger zerolog.Logger) (*ScheduledSignal, error) {
	return signal.NewScheduledSignal(name, interval, nil, logger)
}

func NewExternalTriggeredSignal() *ExternalTriggeredSignal {
	return signal.NewExternalTriggeredSignal()
}
