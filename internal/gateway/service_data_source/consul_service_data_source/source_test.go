package consul_service_data_source_test

import (
	"context"
	"testing"

	"github.com/hashicorp/consul/api"
	"github.com/horockey/ranger/internal/gateway/service_data_source/consul_service_data_source"
	"github.com/horockey/ranger/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockCatalog struct {
	services map[string][]string
	err      error
}

func (m mockCatalog) Services(*api.QueryOptions) (map[string][]string, *api.QueryMeta, error) {
	return m.services, &api.QueryMeta{}, m.err
}

func Test_Services(t *testing.T) {
	catalog := mockCatalog{services: map[string][]string{
		"consul": nil,
		"orders": {"ranger", "v2"},
		"users":  {"ranger"},
		"audit":  {"internal"},
	}}

	got, err := consul_service_data_source.New(catalog, "prod", "ranger").Services(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []model.Service{
		{Namespace: "prod", Name: "orders"},
		{Namespace: "prod", Name: "users"},
	}, got)

	got, err = consul_service_data_source.New(catalog, "prod", "").Services(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 4)
	assert.Equal(t, "audit", got[0].Name)
}

func Test_Services_Error(t *testing.T) {
	_, err := consul_service_data_source.New(mockCatalog{err: assert.AnError}, "prod", "").Services(context.Background())
	assert.ErrorIs(t, err, assert.AnError)
}
