package service_data_source

import (
	"context"

	"github.com/horockey/ranger/internal/model"
)

// ServiceDataSource lists services that should have a registry.
type ServiceDataSource interface {
	Services(ctx context.Context) ([]model.Service, error)
}
