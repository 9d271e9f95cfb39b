package model

import (
	"time"

	"github.com/samber/lo"
)

type HealthcheckStatus string

const (
	HealthcheckStatusHealthy   HealthcheckStatus = "healthy"
	HealthcheckStatusUnhealthy HealthcheckStatus = "unhealthy"
	HealthcheckStatusUnknown   HealthcheckStatus = "unknown"
)

// Node is a single discovered instance of a service.
// LastUpdatedTimeStamp is in milliseconds since epoch.
type Node[T any] struct {
	Host                 string
	Port                 int
	Data                 T
	HealthcheckStatus    HealthcheckStatus
	LastUpdatedTimeStamp int64
}

func (n Node[T]) IsHealthy() bool {
	return n.HealthcheckStatus == HealthcheckStatusHealthy
}

func (n Node[T]) LastUpdated() time.Time {
	return time.UnixMilli(n.LastUpdatedTimeStamp)
}

func (n Node[T]) Age(now time.Time) time.Duration {
	return now.Sub(n.LastUpdated())
}

// FilterValidNodes drops nodes older than maxAge regardless of their health status.
// Non-positive maxAge disables the check.
func FilterValidNodes[T any](nodes []Node[T], now time.Time, maxAge time.Duration) []Node[T] {
	if maxAge <= 0 {
		return nodes
	}

	return lo.Filter(nodes, func(el Node[T], _ int) bool {
		return el.Age(now) <= maxAge
	})
}
