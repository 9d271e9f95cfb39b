package signal

import (
	"context"
	"sync"
)

// Consumer is invoked on every signal. Refreshes are never targeted, so payload is always nil.
type Consumer func(payload any)

type Signal interface {
	RegisterConsumer(c Consumer)
}

// Runner is implemented by signals owning a background goroutine.
type Runner interface {
	Start(ctx context.Context) error
	Stop()
}

// consumers is embedded by concrete signals to fan a notification out.
type consumers struct {
	mu   sync.RWMutex
	list []Consumer
}

func (cs *consumers) RegisterConsumer(c Consumer) {
	if c == nil {
		return
	}

	cs.mu.Lock()
	defer cs.mu.Unlock()

	cs.list = append(cs.list, c)
}

func (cs *consumers) notify() {
	cs.mu.RLock()
	list := cs.list
	cs.mu.RUnlock()

	for _, c := range list {
		c(nil)
	}
}
