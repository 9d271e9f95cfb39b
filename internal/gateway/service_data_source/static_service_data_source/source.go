package static_service_data_source

import (
	"context"
	"slices"

	"github.com/horockey/ranger/internal/gateway/service_data_source"
	"github.com/horockey/ranger/internal/model"
)

var _ service_data_source.ServiceDataSource = &staticServiceDataSource{}

type staticServiceDataSource struct {
	services []model.Service
}

func New(services ...model.Service) *staticServiceDataSource {
	return &staticServiceDataSource{services: slices.Clone(services)}
}

func (src *staticServiceDataSource) Services(context.Context) ([]model.Service, error) {
	return slices.Clone(src.services), nil
}
