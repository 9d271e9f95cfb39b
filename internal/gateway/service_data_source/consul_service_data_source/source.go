package consul_service_data_source

import (
	"context"
	"fmt"
	"slices"

	"github.com/hashicorp/consul/api"
	"github.com/horockey/ranger/internal/gateway/service_data_source"
	"github.com/horockey/ranger/internal/model"
	"github.com/samber/lo"
)

var _ service_data_source.ServiceDataSource = &consulServiceDataSource{}

// CatalogClient is satisfied by *api.Catalog.
type CatalogClient interface {
	Services(q *api.QueryOptions) (map[string][]string, *api.QueryMeta, error)
}

// consulServiceDataSource maps every consul service carrying tag into namespace.
type consulServiceDataSource struct {
	catalog   CatalogClient
	namespace string
	tag       string
}

// New lists catalog services. Empty tag disables the filter.
func New(catalog CatalogClient, namespace, tag string) *consulServiceDataSource {
	return &consulServiceDataSource{
		catalog:   catalog,
		namespace: namespace,
		tag:       tag,
	}
}

func (src *consulServiceDataSource) Services(ctx context.Context) ([]model.Service, error) {
	services, _, err := src.catalog.Services((&api.QueryOptions{}).WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("getting services from consul catalog: %w", err)
	}

	names := lo.Keys(services)
	slices.Sort(names)

	return lo.FilterMap(names, func(name string, _ int) (model.Service, bool) {
		if src.tag != "" && !slices.Contains(services[name], src.tag) {
			return model.Service{}, false
		}
		return model.Service{Namespace: src.namespace, Name: name}, true
	}), nil
}
