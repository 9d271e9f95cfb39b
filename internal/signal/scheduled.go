package signal

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

var (
	_ Signal = &ScheduledSignal{}
	_ Runner = &ScheduledSignal{}
)

// ScheduledSignal fires every interval until stopped.
type ScheduledSignal struct {
	consumers
	name     string
	interval time.Duration
	clock    clockwork.Clock
	logger   zerolog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewScheduledSignal(
	name string,
	interval time.Duration,
	clock clockwork.Clock,
	logger zerolog.Logger,
) (*ScheduledSignal, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("interval must be positive, got: %s", interval.String())
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	return &ScheduledSignal{
		name:     name,
		interval: interval,
		clock:    clock,
		logger:   logger,
	}, nil
}

func (s *ScheduledSignal) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return errors.New("scheduled signal already started")
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	ticker := s.clock.NewTicker(s.interval)
	go func() {
		defer close(s.done)
		defer ticker.Stop()

		for {
			select {
			case <-runCtx.Done():
				s.logger.Debug().Str("signal", s.name).Msg("scheduled signal stopped")
				return
			case <-ticker.Chan():
				s.notify()
			}
		}
	}()

	s.logger.Debug().Str("signal", s.name).Dur("interval", s.interval).Msg("scheduled signal started")
	return nil
}

func (s *ScheduledSignal) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}
