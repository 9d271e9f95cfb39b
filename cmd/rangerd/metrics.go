package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

func metricsRouter(reg *prometheus.Registry) *mux.Router {
	router := mux.NewRouter()
	router.
		Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{})).
		Methods(http.MethodGet)

	return router
}

func serveMetrics(ctx context.Context, addr string, reg *prometheus.Registry, logger zerolog.Logger) error {
	serv := &http.Server{
		Addr:              addr,
		Handler:           metricsRouter(reg),
		ReadHeaderTimeout: 5 * time.Second, //nolint: mnd
	}

	errCh := make(chan error, 1)
	go func() {
		if err := serv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	logger.Info().Str("addr", addr).Msg("metrics server started")

	select {
	case <-ctx.Done():
		sdCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		if err := serv.Shutdown(sdCtx); err != nil {
			return fmt.Errorf("shutting down metrics server: %w", err)
		}
		return nil
	case err, ok := <-errCh:
		if !ok {
			return nil
		}
		return fmt.Errorf("running metrics server: %w", err)
	}
}
