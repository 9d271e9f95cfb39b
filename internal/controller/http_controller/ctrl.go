package http_controller

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/horockey/go-toolbox/http_helpers"
	"github.com/horockey/ranger/internal/controller/http_controller/dto"
	"github.com/horockey/ranger/internal/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"golang.org/x/time/rate"
)

// Hub is a read side of registries served by the controller.
type Hub[T any] interface {
	Services() []model.Service
	Nodes(svc model.Service) ([]model.Node[T], error)
	Refresh(svc model.Service) error
}

type HttpController[T any] struct {
	serv           *http.Server
	apiKey         string
	hub            Hub[T]
	refreshLimiter *rate.Limiter
	logger         zerolog.Logger
	metrics        *metrics
}

// New serves registries of hub in the same wire format http data sources consume.
// Empty apiKey disables auth. refreshRate limits manual refreshes across all services.
func New[T any](
	addr string,
	apiKey string,
	hub Hub[T],
	refreshRate rate.Limit,
	refreshBurst int,
	logger zerolog.Logger,
) *HttpController[T] {
	ctrl := HttpController[T]{
		serv: &http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 5 * time.Second, //nolint: mnd
		},
		apiKey:         apiKey,
		hub:            hub,
		refreshLimiter: rate.NewLimiter(refreshRate, refreshBurst),
		logger:         logger,
		metrics:        newMetrics(),
	}

	router := mux.NewRouter()
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotImplemented)
	})

	router.HandleFunc("/ranger/services/v1", ctrl.getServicesHandler).Methods(http.MethodGet)
	router.HandleFunc("/ranger/nodes/v1/{namespace}/{service}", ctrl.getNodesHandler).Methods(http.MethodGet)
	router.HandleFunc("/ranger/refresh/v1/{namespace}/{service}", ctrl.postRefreshHandler).Methods(http.MethodPost)
	router.Use(ctrl.metricsMW, ctrl.authMW)

	ctrl.serv.Handler = router

	return &ctrl
}

func (ctrl *HttpController[T]) Metrics() []prometheus.Collector {
	return ctrl.metrics.list()
}

func (ctrl *HttpController[T]) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	ctrl.serv.Handler.ServeHTTP(w, req)
}

func (ctrl *HttpController[T]) Start(ctx context.Context) (resErr error) {
	var wg sync.WaitGroup
	defer wg.Wait()

	errCh := make(chan error, 1)

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := ctrl.serv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	ctrl.logger.Info().Str("addr", ctrl.serv.Addr).Msg("http controller started")

	select {
	case <-ctx.Done():
		if ctx.Err() != nil && !errors.Is(ctx.Err(), context.Canceled) {
			resErr = errors.Join(resErr, fmt.Errorf("running context: %w", ctx.Err()))
		}

		sdCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		if err := ctrl.serv.Shutdown(sdCtx); err != nil {
			resErr = errors.Join(resErr, fmt.Errorf("shutting down server: %w", err))
		}
		return resErr

	case err := <-errCh:
		return fmt.Errorf("running server: %w", err)
	}
}

func (ctrl *HttpController[T]) authMW(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if ctrl.apiKey != "" && req.Header.Get("X-Api-Key") != ctrl.apiKey {
			_ = http_helpers.RespondWithErr(w, http.StatusForbidden, errors.New("invalid api key"))
			return
		}
		next.ServeHTTP(w, req)
	})
}

func (ctrl *HttpController[T]) metricsMW(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		defer func(ts time.Time) {
			ctrl.metrics.requestsCnt.Inc()
			ctrl.metrics.handleTimeHist.Observe(float64(time.Since(ts)))
		}(time.Now())

		sw := statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&sw, req)

		switch {
		case sw.status < http.StatusBadRequest:
			ctrl.metrics.successProcessCnt.Inc()
		default:
			ctrl.metrics.errProcessCnt.Inc()
		}
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (sw *statusWriter) WriteHeader(status int) {
	sw.status = status
	sw.ResponseWriter.WriteHeader(status)
}

func (ctrl *HttpController[T]) getServicesHandler(w http.ResponseWriter, _ *http.Request) {
	_ = http_helpers.RespondOK(w, dto.ServicesResponse{
		Success: true,
		Data:    lo.Map(ctrl.hub.Services(), func(el model.Service, _ int) dto.Service { return dto.NewService(el) }),
	})
}

func (ctrl *HttpController[T]) getNodesHandler(w http.ResponseWriter, req *http.Request) {
	svc := serviceFromVars(req)

	nodes, err := ctrl.hub.Nodes(svc)
	if err != nil {
		ctrl.respondHubErr(w, fmt.Errorf("getting nodes from hub: %w", err))
		return
	}

	resp := dto.NodesResponse{
		Success: true,
		Data:    make([]dto.Node, 0, len(nodes)),
	}
	for _, n := range nodes {
		dtoNode, err := dto.NewNode(n)
		if err != nil {
			ctrl.logger.
				Error().
				Err(fmt.Errorf("converting model node to dto: %w", err)).
				Send()
			_ = http_helpers.RespondWithErr(w, http.StatusInternalServerError, nil)
			return
		}
		resp.Data = append(resp.Data, dtoNode)
	}

	_ = http_helpers.RespondOK(w, resp)
}

func (ctrl *HttpController[T]) postRefreshHandler(w http.ResponseWriter, req *http.Request) {
	if !ctrl.refreshLimiter.Allow() {
		ctrl.metrics.throttledCnt.Inc()
		_ = http_helpers.RespondWithErr(w, http.StatusTooManyRequests, errors.New("too many refresh requests"))
		return
	}

	if err := ctrl.hub.Refresh(serviceFromVars(req)); err != nil {
		ctrl.respondHubErr(w, fmt.Errorf("requesting refresh from hub: %w", err))
		return
	}

	_ = http_helpers.RespondOK(w, nil)
}

func (ctrl *HttpController[T]) respondHubErr(w http.ResponseWriter, err error) {
	if errors.As(err, &model.ServiceNotFoundError{}) {
		_ = http_helpers.RespondWithErr(w, http.StatusNotFound, err)
		return
	}

	ctrl.logger.Error().Err(err).Send()
	_ = http_helpers.RespondWithErr(w, http.StatusInternalServerError, nil)
}

func serviceFromVars(req *http.Request) model.Service {
	vars := mux.Vars(req)
	return model.Service{Namespace: vars["namespace"], Name: vars["service"]}
}
