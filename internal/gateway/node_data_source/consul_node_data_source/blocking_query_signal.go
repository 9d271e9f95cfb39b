package consul_node_data_source

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/consul/api"
	"github.com/horockey/ranger/internal/model"
	"github.com/horockey/ranger/internal/signal"
	"github.com/rs/zerolog"
)

var (
	_ signal.Signal = &BlockingQuerySignal{}
	_ signal.Runner = &BlockingQuerySignal{}
)

const (
	blockQueryWaitTime = 5 * time.Minute
	queryErrDelay      = time.Second
)

// BlockingQuerySignal fires whenever consul reports a new index for the service health.
// https://developer.hashicorp.com/consul/api-docs/features/blocking
type BlockingQuerySignal struct {
	health   HealthClient
	service  model.Service
	tag      string
	waitTime time.Duration
	logger   zerolog.Logger

	mu        sync.RWMutex
	consumers []signal.Consumer
	cancel    context.CancelFunc
	done      chan struct{}
}

func NewBlockingQuerySignal(
	health HealthClient,
	svc model.Service,
	tag string,
	waitTime time.Duration,
	logger zerolog.Logger,
) *BlockingQuerySignal {
	if waitTime <= 0 {
		waitTime = blockQueryWaitTime
	}
	return &BlockingQuerySignal{
		health:   health,
		service:  svc,
		tag:      tag,
		waitTime: waitTime,
		logger:   logger,
	}
}

func (s *BlockingQuerySignal) RegisterConsumer(c signal.Consumer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.consumers = append(s.consumers, c)
}

func (s *BlockingQuerySignal) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return errors.New("blocking query signal already started")
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		s.loop(runCtx)
	}()

	return nil
}

func (s *BlockingQuerySignal) Stop() {
	s.mu.RLock()
	cancel, done := s.cancel, s.done
	s.mu.RUnlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (s *BlockingQuerySignal) loop(ctx context.Context) {
	var waitIndex uint64

	for {
		if ctx.Err() != nil {
			return
		}

		_, meta, err := s.health.Service(
			s.service.Name,
			s.tag,
			false,
			(&api.QueryOptions{WaitIndex: waitIndex, WaitTime: s.waitTime}).WithContext(ctx),
		)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.
				Warn().
				Str("service", s.service.String()).
				Err(fmt.Errorf("running blocking query: %w", err)).
				Send()

			select {
			case <-ctx.Done():
				return
			case <-time.After(queryErrDelay):
			}
			continue
		}

		switch {
		case meta.LastIndex < waitIndex:
			// index went backwards, start over
			waitIndex = 0
		case meta.LastIndex != waitIndex:
			if waitIndex != 0 {
				s.notify()
			}
			waitIndex = meta.LastIndex
		}
	}
}

func (s *BlockingQuerySignal) notify() {
	s.mu.RLock()
	list := s.consumers
	s.mu.RUnlock()

	for _, c := range list {
		c(nil)
	}
}
