package breaker

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

// New builds a breaker that opens after threshold consecutive failures
// and lets a single call through once cooldown has passed.
func New(name string, threshold uint32, cooldown time.Duration, logger zerolog.Logger) *gobreaker.TwoStepCircuitBreaker {
	return gobreaker.NewTwoStepCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.
				Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state changed")
		},
	})
}

// IsOpen reports whether calls are currently rejected.
func IsOpen(b *gobreaker.TwoStepCircuitBreaker) bool {
	return b.State() == gobreaker.StateOpen
}
