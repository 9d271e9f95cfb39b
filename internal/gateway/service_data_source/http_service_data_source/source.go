package http_service_data_source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	controller_dto "github.com/horockey/ranger/internal/controller/http_controller/dto"
	"github.com/horockey/ranger/internal/gateway/service_data_source"
	"github.com/horockey/ranger/internal/model"
	"github.com/samber/lo"
)

var _ service_data_source.ServiceDataSource = &httpServiceDataSource{}

const servicesPath = "/ranger/services/v1"

type httpServiceDataSource struct {
	cl        *resty.Client
	namespace string
}

// New lists services of namespace known to a ranger HTTP server.
// Empty namespace disables the filter.
func New(
	baseURL string,
	namespace string,
	httpClient *http.Client,
	requestTimeout time.Duration,
) *httpServiceDataSource {
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	return &httpServiceDataSource{
		namespace: namespace,
		cl: resty.NewWithClient(httpClient).
			SetBaseURL(baseURL).
			SetTimeout(requestTimeout).
			SetRetryCount(0),
	}
}

func (src *httpServiceDataSource) Services(ctx context.Context) ([]model.Service, error) {
	resp, err := src.cl.R().
		SetContext(ctx).
		Get(servicesPath)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("got non-ok response (%s): %s", resp.Status(), resp.String())
	}

	dtoResp := controller_dto.ServicesResponse{}
	if err := json.Unmarshal(resp.Body(), &dtoResp); err != nil {
		return nil, fmt.Errorf("unmarshaling json: %w", err)
	}
	if !dtoResp.Success {
		return nil, errors.New("server reported unsuccessful service list")
	}

	return lo.FilterMap(dtoResp.Data, func(el controller_dto.Service, _ int) (model.Service, bool) {
		return controller_dto.ServiceToModel(el), src.namespace == "" || el.Namespace == src.namespace
	}), nil
}
