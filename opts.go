package ranger

import (
	"errors"
	"fmt"
	"time"

	"github.com/horockey/go-toolbox/options"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// ClientOption configures NewClient.
type ClientOption[T any] = options.Option[createClientParams[T]]

// Sets fixed list of service names within client namespace.
func WithServices[T any](names ...string) options.Option[createClientParams[T]] {
	return func(target *createClientParams[T]) error {
		for _, n := range names {
			if n == "" {
				return errors.New("got empty service name")
			}
		}
		target.services = append(target.services, names...)
		return nil
	}
}

// Sets source of services to keep registries for.
// Overrides WithServices.
func WithServiceDataSource[T any](sds ServiceDataSource) options.Option[createClientParams[T]] {
	return func(target *createClientParams[T]) error {
		if sds == nil {
			return errors.New("got nil service data source")
		}
		target.serviceDataSource = sds
		return nil
	}
}

// Sets period of scheduled refresh of every registry.
// Default is 10s.
func WithNodeRefreshInterval[T any](iv time.Duration) options.Option[createClientParams[T]] {
	return func(target *createClientParams[T]) error {
		if iv <= 0 {
			return fmt.Errorf("node refresh interval must be positive, got: %s", iv.String())
		}
		target.nodeRefreshInterval = iv
		return nil
	}
}

// Sets period of looking for new services.
// Default is 1m.
func WithServiceRefreshInterval[T any](iv time.Duration) options.Option[createClientParams[T]] {
	return func(target *createClientParams[T]) error {
		if iv <= 0 {
			return fmt.Errorf("service refresh interval must be positive, got: %s", iv.String())
		}
		target.serviceRefreshInterval = iv
		return nil
	}
}

// Sets interval of readiness checks while waiting for the first refresh.
// Default is 1s.
func WithPollInterval[T any](iv time.Duration) options.Option[createClientParams[T]] {
	return func(target *createClientParams[T]) error {
		if iv <= 0 {
			return fmt.Errorf("poll interval must be positive, got: %s", iv.String())
		}
		target.pollInterval = iv
		return nil
	}
}

// Bounds waiting for the first refresh of every registry.
// By default client waits until its context is done.
func WithInitialRefreshTimeout[T any](to time.Duration) options.Option[createClientParams[T]] {
	return func(target *createClientParams[T]) error {
		if to <= 0 {
			return fmt.Errorf("initial refresh timeout must be positive, got: %s", to.String())
		}
		target.initialRefreshTimeout = to
		return nil
	}
}

// Sets node data deserializer.
// Default is JSON.
func WithDeserializer[T any](d Deserializer[T]) options.Option[createClientParams[T]] {
	return func(target *createClientParams[T]) error {
		if d == nil {
			return errors.New("got nil deserializer")
		}
		target.deserializer = d
		return nil
	}
}

// Sets node selection strategy used by Node.
// Default is round robin.
func WithSelector[T any](s Selector[T]) options.Option[createClientParams[T]] {
	return func(target *createClientParams[T]) error {
		if s == nil {
			return errors.New("got nil selector")
		}
		target.selector = s
		return nil
	}
}

// Persists registry snapshots into badger at dir, so that they survive restarts.
// By default registries are kept in memory only.
func WithBadgerDir[T any](dir string, snapshotTTL time.Duration) options.Option[createClientParams[T]] {
	return func(target *createClientParams[T]) error {
		if dir == "" {
			return errors.New("got empty badger dir")
		}
		if snapshotTTL < 0 {
			return fmt.Errorf("snapshot ttl must not be negative, got: %s", snapshotTTL.String())
		}
		target.badgerDir = dir
		target.snapshotTTL = snapshotTTL
		return nil
	}
}

// Sets user-defined registry implementation.
// Overrides WithBadgerDir.
//
// WARNING! Apply this opt only if you know what you are doing.
func WithRegistryFactory[T any](f RegistryFactory[T]) options.Option[createClientParams[T]] {
	return func(target *createClientParams[T]) error {
		if f == nil {
			return errors.New("got nil registry factory")
		}
		target.registryFactory = f
		return nil
	}
}

// Serves registries over HTTP at addr, so that other clients can use this one as a node data source.
// Empty apiKey disables auth.
func WithHTTPController[T any](addr, apiKey string) options.Option[createClientParams[T]] {
	return func(target *createClientParams[T]) error {
		if addr == "" {
			return errors.New("got empty controller addr")
		}
		target.controllerAddr = addr
		target.apiKey = apiKey
		return nil
	}
}

// Limits manual refreshes requested through HTTP controller.
// Default is 1 per second with burst of 5.
func WithRefreshRateLimit[T any](every time.Duration, burst int) options.Option[createClientParams[T]] {
	return func(target *createClientParams[T]) error {
		if every <= 0 {
			return fmt.Errorf("refresh rate interval must be positive, got: %s", every.String())
		}
		if burst <= 0 {
			return fmt.Errorf("refresh burst must be positive, got: %d", burst)
		}
		target.refreshRate = rate.Every(every)
		target.refreshBurst = burst
		return nil
	}
}

// Sets user-defined controller.
//
// WARNING! Apply this opt only if you know what you are doing.
func WithController[T any](ctrl Controller) options.Option[createClientParams[T]] {
	return func(target *createClientParams[T]) error {
		if ctrl == nil {
			return errors.New("got nil controller")
		}
		target.controller = ctrl
		return nil
	}
}

// Sets custom clock. Used in tests.
func WithClock[T any](c clockwork.Clock) options.Option[createClientParams[T]] {
	return func(target *createClientParams[T]) error {
		if c == nil {
			return errors.New("got nil clock")
		}
		target.clock = c
		return nil
	}
}

// Sets custom logger.
// Default is stdout logger.
func WithLogger[T any](l zerolog.Logger) options.Option[createClientParams[T]] {
	return func(target *createClientParams[T]) error {
		target.logger = l
		return nil
	}
}
