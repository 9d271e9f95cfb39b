package badger_service_registry

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger"
	"github.com/horockey/ranger/internal/model"
	"github.com/horockey/ranger/internal/repository/service_registry"
	"github.com/horockey/ranger/internal/repository/service_registry/inmemory_service_registry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

var _ service_registry.Registry[any] = &badgerServiceRegistry[any]{}

const keyPrefix = "ranger/snapshot/"

// restorableRegistry is an in-memory registry that can be seeded without being marked refreshed.
type restorableRegistry[T any] interface {
	service_registry.Registry[T]
	Restore(nodes []model.Node[T])
}

// badgerServiceRegistry serves reads from an in-memory snapshot
// and writes every snapshot through to badger.
type badgerServiceRegistry[T any] struct {
	restorableRegistry[T]

	db          *badger.DB
	snapshotTTL time.Duration
	logger      zerolog.Logger
	metrics     *metrics
}

// New restores the last persisted snapshot of svc (if any) without marking registry as refreshed.
// Zero snapshotTTL keeps snapshots forever.
func New[T any](
	db *badger.DB,
	svc model.Service,
	snapshotTTL time.Duration,
	logger zerolog.Logger,
) (*badgerServiceRegistry[T], error) {
	repo := badgerServiceRegistry[T]{
		restorableRegistry: inmemory_service_registry.New[T](svc),
		db:                 db,
		snapshotTTL:        snapshotTTL,
		logger:             logger,
	}
	repo.metrics = newMetrics(&repo, db)

	restored, err := repo.load()
	if err != nil {
		return nil, fmt.Errorf("loading persisted snapshot: %w", err)
	}
	repo.Restore(restored)

	if len(restored) > 0 {
		repo.logger.
			Info().
			Str("service", svc.String()).
			Int("nodes", len(restored)).
			Msg("restored persisted snapshot")
	}

	return &repo, nil
}

func NewFactory[T any](
	db *badger.DB,
	snapshotTTL time.Duration,
	logger zerolog.Logger,
) service_registry.Factory[T] {
	return func(svc model.Service) (service_registry.Registry[T], error) {
		repo, err := New[T](db, svc, snapshotTTL, logger)
		if err != nil {
			return nil, err
		}
		return repo, nil
	}
}

func (repo *badgerServiceRegistry[T]) Metrics() []prometheus.Collector {
	return append(repo.restorableRegistry.Metrics(), repo.metrics.list()...)
}

func (repo *badgerServiceRegistry[T]) UpdateNodes(nodes []model.Node[T]) {
	repo.restorableRegistry.UpdateNodes(nodes)

	if err := repo.persist(repo.Nodes()); err != nil {
		repo.metrics.persistErrCnt.Inc()
		repo.logger.
			Error().
			Str("service", repo.Service().String()).
			Err(fmt.Errorf("persisting snapshot: %w", err)).
			Send()
	}
}

func (repo *badgerServiceRegistry[T]) key() []byte {
	return []byte(keyPrefix + repo.Service().String())
}

func (repo *badgerServiceRegistry[T]) persist(nodes []model.Node[T]) error {
	defer func(ts time.Time) {
		repo.metrics.persistTimeHist.Observe(float64(time.Since(ts)))
	}(time.Now())

	buf := bytes.NewBuffer(nil)
	if err := gob.NewEncoder(buf).Encode(nodes); err != nil {
		return fmt.Errorf("encoding gob: %w", err)
	}

	if err := repo.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry(repo.key(), buf.Bytes())
		if repo.snapshotTTL > 0 {
			e = e.WithTTL(repo.snapshotTTL)
		}

		if err := txn.SetEntry(e); err != nil {
			return fmt.Errorf("setting entry: %w", err)
		}
		return nil
	}); err != nil {
		return fmt.Errorf("performing upd txn: %w", err)
	}

	return nil
}

func (repo *badgerServiceRegistry[T]) load() ([]model.Node[T], error) {
	res := []model.Node[T]{}

	if err := repo.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(repo.key())
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return fmt.Errorf("getting item: %w", err)
		}

		if err := item.Value(func(val []byte) error {
			if err := gob.
				NewDecoder(bytes.NewBuffer(val)).
				Decode(&res); err != nil {
				return fmt.Errorf("decoding gob: %w", err)
			}
			return nil
		}); err != nil {
			return fmt.Errorf("getting value: %w", err)
		}

		return nil
	}); err != nil {
		return nil, fmt.Errorf("reading from db: %w", err)
	}

	return res, nil
}
