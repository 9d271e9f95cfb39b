package etcd_node_data_source

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/horockey/ranger/internal/model"
	"github.com/horockey/ranger/internal/signal"
	"github.com/rs/zerolog"
	clientv3 "go.etcd.io/etcd/client/v3"
)

var (
	_ signal.Signal = &WatchSignal{}
	_ signal.Runner = &WatchSignal{}
)

const rewatchDelay = time.Second

// WatchSignal fires on every change under the service prefix.
type WatchSignal struct {
	watcher clientv3.Watcher
	prefix  string
	logger  zerolog.Logger

	mu        sync.RWMutex
	consumers []signal.Consumer
	cancel    context.CancelFunc
	done      chan struct{}
}

func NewWatchSignal(watcher clientv3.Watcher, svc model.Service, logger zerolog.Logger) *WatchSignal {
	return &WatchSignal{
		watcher: watcher,
		prefix:  Prefix(svc),
		logger:  logger,
	}
}

func (s *WatchSignal) RegisterConsumer(c signal.Consumer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.consumers = append(s.consumers, c)
}

func (s *WatchSignal) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return errors.New("watch signal already started")
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		for {
			s.watch(runCtx)

			select {
			case <-runCtx.Done():
				return
			case <-time.After(rewatchDelay):
				s.logger.Debug().Str("prefix", s.prefix).Msg("re-establishing etcd watch")
			}
		}
	}()

	return nil
}

func (s *WatchSignal) Stop() {
	s.mu.RLock()
	cancel, done := s.cancel, s.done
	s.mu.RUnlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (s *WatchSignal) watch(ctx context.Context) {
	wch := s.watcher.Watch(clientv3.WithRequireLeader(ctx), s.prefix, clientv3.WithPrefix())
	for resp := range wch {
		if err := resp.Err(); err != nil {
			s.logger.
				Error().
				Str("prefix", s.prefix).
				Err(fmt.Errorf("watching prefix: %w", err)).
				Send()
			// the list may have changed while the watch was broken
			s.notify()
			continue
		}
		if resp.Created || resp.IsProgressNotify() {
			continue
		}
		s.notify()
	}
}

func (s *WatchSignal) notify() {
	s.mu.RLock()
	list := s.consumers
	s.mu.RUnlock()

	for _, c := range list {
		c(nil)
	}
}
