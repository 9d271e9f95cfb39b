package ranger

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/dgraph-io/badger"
	"github.com/horockey/go-toolbox/options"
	"github.com/horockey/ranger/internal/controller/http_controller"
	"github.com/horockey/ranger/internal/hub"
	"github.com/horockey/ranger/internal/model"
	"github.com/horockey/ranger/internal/repository/service_registry/badger_service_registry"
	"github.com/horockey/ranger/internal/repository/service_registry/inmemory_service_registry"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Client keeps registries of all services of a namespace up to date
// and optionally serves them to other ranger clients over HTTP.
type Client[T any] struct {
	*hub.Hub[T]
	ctrl Controller
	db   *badger.DB
}

type createClientParams[T any] struct {
	services               []string
	serviceDataSource      ServiceDataSource
	nodeRefreshInterval    time.Duration
	serviceRefreshInterval time.Duration
	pollInterval           time.Duration
	initialRefreshTimeout  time.Duration
	deserializer           Deserializer[T]
	selector               Selector[T]
	badgerDir              string
	snapshotTTL            time.Duration
	registryFactory        RegistryFactory[T]
	controllerAddr         string
	apiKey                 string
	refreshRate            rate.Limit
	refreshBurst           int
	clock                  clockwork.Clock
	logger                 zerolog.Logger

	controller Controller
}

func defaultCreateClientParams[T any]() createClientParams[T] {
	return createClientParams[T]{
		nodeRefreshInterval:    10 * time.Second, //nolint: mnd
		serviceRefreshInterval: time.Minute,
		pollInterval:           time.Second,
		snapshotTTL:            24 * time.Hour, //nolint: mnd
		refreshRate:            rate.Every(time.Second),
		refreshBurst:           5, //nolint: mnd
		deserializer:           model.JSONDeserializer[T](),
		clock:                  clockwork.NewRealClock(),
		logger: zerolog.New(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}).With().
			Timestamp().
			Str("scope", "ranger_client").
			Logger(),
	}
}

// NewClient creates client for services of namespace.
// Services are listed either by WithServices or by WithServiceDataSource.
func NewClient[T any](
	namespace string,
	nodeDataSourceFactory NodeDataSourceFactory[T],
	opts ...options.Option[createClientParams[T]],
) (*Client[T], error) {
	if namespace == "" {
		return nil, errors.New("got empty namespace")
	}
	if nodeDataSourceFactory == nil {
		return nil, errors.New("got nil node data source factory")
	}

	params := defaultCreateClientParams[T]()
	if err := options.ApplyOptions(&params, opts...); err != nil {
		return nil, fmt.Errorf("applying opts: %w", err)
	}

	if params.serviceDataSource == nil {
		if len(params.services) == 0 {
			return nil, errors.New("no services given: use WithServices or WithServiceDataSource")
		}

		services := make([]Service, 0, len(params.services))
		for _, name := range params.services {
			services = append(services, Service{Namespace: namespace, Name: name})
		}
		params.serviceDataSource = StaticServiceDataSource(services...)
	}

	cl := Client[T]{}

	if params.registryFactory == nil {
		switch params.badgerDir {
		case "":
			params.registryFactory = inmemory_service_registry.NewFactory[T]()
		default:
			db, err := badger.Open(badger.DefaultOptions(params.badgerDir).WithLogger(nil))
			if err != nil {
				return nil, fmt.Errorf("opening badger db: %w", err)
			}
			cl.db = db
			params.registryFactory = badger_service_registry.NewFactory[T](
				db,
				params.snapshotTTL,
				params.logger.With().Str("subscope", "badger_registry").Logger(),
			)
		}
	}

	cl.Hub = hub.New(
		params.serviceDataSource,
		params.registryFactory,
		nodeDataSourceFactory,
		params.deserializer,
		params.selector,
		hub.Intervals{
			NodeRefresh:           params.nodeRefreshInterval,
			ServiceRefresh:        params.serviceRefreshInterval,
			Poll:                  params.pollInterval,
			InitialRefreshTimeout: params.initialRefreshTimeout,
		},
		params.clock,
		params.logger,
	)

	cl.ctrl = params.controller
	if cl.ctrl == nil && params.controllerAddr != "" {
		cl.ctrl = http_controller.New[T](
			params.controllerAddr,
			params.apiKey,
			cl.Hub,
			params.refreshRate,
			params.refreshBurst,
			params.logger.With().Str("subscope", "http_controller").Logger(),
		)
	}

	return &cl, nil
}

// Start blocks until ctx is done or initialization fails.
// Use Ready to wait for the first refresh of every registry.
func (cl *Client[T]) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		resErr error
	)
	fail := func(err error) {
		mu.Lock()
		resErr = errors.Join(resErr, err)
		mu.Unlock()
		cancel()
	}

	if cl.ctrl != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := cl.ctrl.Start(runCtx); err != nil && !errors.Is(err, context.Canceled) {
				cl.Logger.
					Error().
					Err(fmt.Errorf("running http controller: %w", err)).
					Send()
				fail(err)
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := cl.Hub.Start(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			cl.Logger.
				Error().
				Err(fmt.Errorf("running hub: %w", err)).
				Send()
			fail(err)
		}
	}()

	<-runCtx.Done()
	wg.Wait()

	if cl.db != nil {
		if err := cl.db.Close(); err != nil {
			cl.Logger.
				Error().
				Err(fmt.Errorf("closing badger db: %w", err)).
				Send()
		}
	}

	if resErr != nil {
		return resErr
	}
	return fmt.Errorf("running context: %w", ctx.Err())
}

func (cl *Client[T]) Metrics() []prometheus.Collector {
	if cl.ctrl == nil {
		return cl.Hub.Metrics()
	}
	return slices.Concat(
		cl.Hub.Metrics(),
		cl.ctrl.Metrics(),
	)
}
