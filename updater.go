package ranger

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dgraph-io/badger"
	"github.com/horockey/go-toolbox/options"
	"github.com/horockey/ranger/internal/model"
	"github.com/horockey/ranger/internal/repository/service_registry/badger_service_registry"
	"github.com/horockey/ranger/internal/repository/service_registry/inmemory_service_registry"
	"github.com/horockey/ranger/internal/updater"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

// UpdaterOption configures NewRegistryUpdater.
type UpdaterOption[T any] = options.Option[updaterParams[T]]

type updaterParams[T any] struct {
	deserializer          Deserializer[T]
	pollInterval          time.Duration
	initialRefreshTimeout time.Duration
	clock                 clockwork.Clock
	logger                zerolog.Logger
}

func defaultUpdaterParams[T any]() updaterParams[T] {
	return updaterParams[T]{
		deserializer: model.JSONDeserializer[T](),
		pollInterval: time.Second,
		clock:        clockwork.NewRealClock(),
		logger: zerolog.New(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}).With().
			Timestamp().
			Str("scope", "ranger_updater").
			Logger(),
	}
}

// Sets interval of readiness checks while Start waits for the first refresh.
// Default is 1s.
func WithUpdaterPollInterval[T any](iv time.Duration) options.Option[updaterParams[T]] {
	return func(target *updaterParams[T]) error {
		if iv <= 0 {
			return fmt.Errorf("poll interval must be positive, got: %s", iv.String())
		}
		target.pollInterval = iv
		return nil
	}
}

// Bounds time Start waits for the first refresh.
// By default Start waits until its context is done.
func WithUpdaterInitialRefreshTimeout[T any](to time.Duration) options.Option[updaterParams[T]] {
	return func(target *updaterParams[T]) error {
		if to <= 0 {
			return fmt.Errorf("initial refresh timeout must be positive, got: %s", to.String())
		}
		target.initialRefreshTimeout = to
		return nil
	}
}

// Sets node data deserializer.
// Default is JSON.
func WithUpdaterDeserializer[T any](d Deserializer[T]) options.Option[updaterParams[T]] {
	return func(target *updaterParams[T]) error {
		if d == nil {
			return errors.New("got nil deserializer")
		}
		target.deserializer = d
		return nil
	}
}

// Sets custom logger.
// Default is stdout logger.
func WithUpdaterLogger[T any](l zerolog.Logger) options.Option[updaterParams[T]] {
	return func(target *updaterParams[T]) error {
		target.logger = l
		return nil
	}
}

// Sets custom clock used for node timestamps. Used in tests.
func WithUpdaterClock[T any](c clockwork.Clock) options.Option[updaterParams[T]] {
	return func(target *updaterParams[T]) error {
		if c == nil {
			return errors.New("got nil clock")
		}
		target.clock = c
		return nil
	}
}

// NewRegistryUpdater keeps a single registry in sync with source.
// Every signal is wired to RequestRefresh. Runner signals must be started by the caller.
func NewRegistryUpdater[T any](
	registry Registry[T],
	source NodeDataSource[T],
	signals []Signal,
	opts ...options.Option[updaterParams[T]],
) (*RegistryUpdater[T], error) {
	if registry == nil {
		return nil, errors.New("got nil registry")
	}
	if source == nil {
		return nil, errors.New("got nil node data source")
	}

	params := defaultUpdaterParams[T]()
	if err := options.ApplyOptions(&params, opts...); err != nil {
		return nil, fmt.Errorf("applying opts: %w", err)
	}

	return updater.New(
		registry,
		source,
		params.deserializer,
		signals,
		params.pollInterval,
		params.initialRefreshTimeout,
		params.clock,
		params.logger,
	), nil
}

func NewInMemoryRegistry[T any](svc Service) Registry[T] {
	return inmemory_service_registry.New[T](svc)
}

// NewBadgerRegistry persists every snapshot of svc into db.
// The last persisted snapshot is served until the first refresh, but the registry is not reported as refreshed.
func NewBadgerRegistry[T any](db *badger.DB, svc Service, snapshotTTL time.Duration, logger zerolog.Logger) (Registry[T], error) {
	repo, err := badger_service_registry.New[T](db, svc, snapshotTTL, logger)
	if err != nil {
		return nil, fmt.Errorf("creating badger registry: %w", err)
	}
	return repo, nil
}
