package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/horockey/ranger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// Node data is passed through as is.
type nodeData = json.RawMessage

func main() {
	cmd := &cobra.Command{
		Use:          "rangerd",
		Short:        "Keeps service registries in sync with a discovery backend and serves them over HTTP",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd.Flags())
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			return run(ctx, cfg)
		},
	}
	bindFlags(cmd.Flags())

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config) error {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("parsing log level: %w", err)
	}

	logger := zerolog.New(zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}).
		Level(level).
		With().
		Timestamp().
		Str("scope", "rangerd").
		Logger()

	srcs, err := buildSources(cfg, logger)
	if err != nil {
		return fmt.Errorf("building sources: %w", err)
	}
	defer srcs.close()

	cl, err := ranger.NewClient(cfg.Namespace, srcs.nodes, clientOptions(cfg, srcs.services, logger)...)
	if err != nil {
		return fmt.Errorf("creating client: %w", err)
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return cl.Start(egCtx)
	})

	if cfg.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(cl.Metrics()...)
		eg.Go(func() error {
			return serveMetrics(egCtx, cfg.MetricsAddr, reg, logger)
		})
	}

	eg.Go(func() error {
		select {
		case <-cl.Ready():
			logger.Info().Int("services", len(cl.Services())).Msg("all registries are ready")
		case <-egCtx.Done():
		}
		return nil
	})

	if err := eg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	logger.Info().Msg("rangerd stopped")
	return nil
}

func clientOptions(cfg config, services ranger.ServiceDataSource, logger zerolog.Logger) []ranger.ClientOption[nodeData] {
	opts := []ranger.ClientOption[nodeData]{
		ranger.WithLogger[nodeData](logger.With().Str("subscope", "client").Logger()),
		ranger.WithNodeRefreshInterval[nodeData](cfg.NodeRefreshInterval),
		ranger.WithServiceRefreshInterval[nodeData](cfg.ServiceRefreshInterval),
		ranger.WithHTTPController[nodeData](cfg.ListenAddr, cfg.APIKey),
	}

	if len(cfg.Services) > 0 {
		opts = append(opts, ranger.WithServices[nodeData](cfg.Services...))
	} else {
		opts = append(opts, ranger.WithServiceDataSource[nodeData](services))
	}
	if cfg.InitialRefreshTimeout > 0 {
		opts = append(opts, ranger.WithInitialRefreshTimeout[nodeData](cfg.InitialRefreshTimeout))
	}
	if cfg.BadgerDir != "" {
		opts = append(opts, ranger.WithBadgerDir[nodeData](cfg.BadgerDir, cfg.SnapshotTTL))
	}

	return opts
}
