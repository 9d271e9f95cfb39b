package ranger

import (
	"context"

	"github.com/horockey/ranger/internal/hub"
	"github.com/horockey/ranger/internal/model"
)

type Hub[T any] = hub.Hub[T]

type Controller interface {
	model.MetricsProvider
	Start(ctx context.Context) error
}
