package http_controller_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/horockey/ranger/internal/controller/http_controller"
	"github.com/horockey/ranger/internal/controller/http_controller/dto"
	"github.com/horockey/ranger/internal/gateway/node_data_source/http_node_data_source"
	"github.com/horockey/ranger/internal/gateway/service_data_source/http_service_data_source"
	"github.com/horockey/ranger/internal/model"
	"github.com/horockey/ranger/pkg/breaker"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

var svc = model.Service{Namespace: "shop", Name: "orders"}

type info struct {
	Zone string `json:"zone"`
}

type mockHub struct {
	nodes     []model.Node[info]
	refreshes atomic.Int32
}

func (h *mockHub) Services() []model.Service {
	return []model.Service{svc}
}

func (h *mockHub) Nodes(s model.Service) ([]model.Node[info], error) {
	if s != svc {
		return nil, model.ServiceNotFoundError{Service: s}
	}
	return h.nodes, nil
}

func (h *mockHub) Refresh(s model.Service) error {
	if s != svc {
		return model.ServiceNotFoundError{Service: s}
	}
	h.refreshes.Add(1)
	return nil
}

func newServer(t *testing.T, apiKey string, burst int) (*mockHub, *httptest.Server) {
	t.Helper()

	hub := &mockHub{nodes: []model.Node[info]{
		{Host: "h1", Port: 80, Data: info{Zone: "eu"}, HealthcheckStatus: model.HealthcheckStatusHealthy, LastUpdatedTimeStamp: 100},
		{Host: "h2", Port: 81, Data: info{Zone: "us"}, HealthcheckStatus: model.HealthcheckStatusUnhealthy, LastUpdatedTimeStamp: 200},
	}}
	ctrl := http_controller.New[info]("", apiKey, hub, rate.Limit(0), burst, zerolog.Nop())
	assert.Len(t, ctrl.Metrics(), 5)

	srv := httptest.NewServer(ctrl)
	t.Cleanup(srv.Close)

	return hub, srv
}

func do(t *testing.T, method, url, apiKey string) *http.Response {
	t.Helper()

	req, err := http.NewRequestWithContext(context.Background(), method, url, nil)
	require.NoError(t, err)
	if apiKey != "" {
		req.Header.Set("X-Api-Key", apiKey)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	return resp
}

func Test_GetNodes(t *testing.T) {
	_, srv := newServer(t, "", 1)

	resp := do(t, http.MethodGet, srv.URL+"/ranger/nodes/v1/shop/orders", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := dto.NodesResponse{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.True(t, body.Success)
	require.Len(t, body.Data, 2)
	assert.Equal(t, "h1", body.Data[0].Host)
	assert.JSONEq(t, `{"zone":"eu"}`, string(body.Data[0].NodeData))
	assert.Equal(t, "unhealthy", body.Data[1].HealthcheckStatus)

	resp = do(t, http.MethodGet, srv.URL+"/ranger/nodes/v1/shop/unknown", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func Test_GetServices(t *testing.T) {
	_, srv := newServer(t, "", 1)

	resp := do(t, http.MethodGet, srv.URL+"/ranger/services/v1", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := dto.ServicesResponse{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, dto.ServicesResponse{
		Success: true,
		Data:    []dto.Service{{Namespace: "shop", ServiceName: "orders"}},
	}, body)
}

func Test_Refresh_RateLimited(t *testing.T) {
	hub, srv := newServer(t, "", 2)

	assert.Equal(t, http.StatusOK, do(t, http.MethodPost, srv.URL+"/ranger/refresh/v1/shop/orders", "").StatusCode)
	assert.Equal(t, http.StatusNotFound, do(t, http.MethodPost, srv.URL+"/ranger/refresh/v1/shop/unknown", "").StatusCode)
	assert.Equal(t, http.StatusTooManyRequests, do(t, http.MethodPost, srv.URL+"/ranger/refresh/v1/shop/orders", "").StatusCode)

	assert.EqualValues(t, 1, hub.refreshes.Load())
}

func Test_Auth(t *testing.T) {
	_, srv := newServer(t, "secret", 1)

	assert.Equal(t, http.StatusForbidden, do(t, http.MethodGet, srv.URL+"/ranger/services/v1", "").StatusCode)
	assert.Equal(t, http.StatusForbidden, do(t, http.MethodGet, srv.URL+"/ranger/services/v1", "wrong").StatusCode)
	assert.Equal(t, http.StatusOK, do(t, http.MethodGet, srv.URL+"/ranger/services/v1", "secret").StatusCode)
}

func Test_UnknownRoute(t *testing.T) {
	_, srv := newServer(t, "", 1)
	assert.Equal(t, http.StatusNotImplemented, do(t, http.MethodGet, srv.URL+"/kv/key", "").StatusCode)
}

// http data sources must be able to consume what the controller serves.
func Test_DataSourcesRoundTrip(t *testing.T) {
	_, srv := newServer(t, "", 1)

	nodeSrc := http_node_data_source.New[info](srv.URL, svc, nil, 0, 0, breaker.New("test", 1, time.Second, zerolog.Nop()), zerolog.Nop())
	nodes, ok, err := nodeSrc.Refresh(context.Background(), model.JSONDeserializer[info]())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []model.Node[info]{
		{Host: "h1", Port: 80, Data: info{Zone: "eu"}, HealthcheckStatus: model.HealthcheckStatusHealthy, LastUpdatedTimeStamp: 100},
		{Host: "h2", Port: 81, Data: info{Zone: "us"}, HealthcheckStatus: model.HealthcheckStatusUnhealthy, LastUpdatedTimeStamp: 200},
	}, nodes)

	services, err := http_service_data_source.New(srv.URL, "shop", nil, 0).Services(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []model.Service{svc}, services)
}
