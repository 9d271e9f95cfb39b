package main

import (
	"fmt"
	"strings"

	"github.com/hashicorp/consul/api"
	"github.com/horockey/ranger"
	"github.com/rs/zerolog"
	clientv3 "go.etcd.io/etcd/client/v3"
)

type sources struct {
	nodes    ranger.NodeDataSourceFactory[nodeData]
	services ranger.ServiceDataSource
	close    func()
}

func buildSources(cfg config, logger zerolog.Logger) (sources, error) {
	srcOpts := []ranger.SourceOption{
		ranger.WithSourceLogger(logger.With().Str("subscope", "source").Logger()),
		ranger.WithSourceRequestTimeout(cfg.RequestTimeout),
		ranger.WithZombieThreshold(cfg.ZombieThreshold),
	}

	switch cfg.Source {
	case sourceConsul:
		cl, err := api.NewClient(&api.Config{Address: strings.TrimPrefix(cfg.Endpoints[0], "http://")})
		if err != nil {
			return sources{}, fmt.Errorf("creating consul client: %w", err)
		}

		factory, err := ranger.ConsulNodeDataSourceFactory[nodeData](cl, append(srcOpts, ranger.WithConsulTag(cfg.ConsulTag))...)
		if err != nil {
			return sources{}, fmt.Errorf("creating consul node data source: %w", err)
		}

		return sources{
			nodes:    factory,
			services: ranger.ConsulServiceDataSource(cl, cfg.Namespace, cfg.ConsulTag),
			close:    func() {},
		}, nil

	case sourceEtcd:
		cl, err := clientv3.New(clientv3.Config{
			Endpoints:   cfg.Endpoints,
			DialTimeout: cfg.RequestTimeout,
		})
		if err != nil {
			return sources{}, fmt.Errorf("creating etcd client: %w", err)
		}

		factory, err := ranger.EtcdNodeDataSourceFactory[nodeData](cl, srcOpts...)
		if err != nil {
			_ = cl.Close()
			return sources{}, fmt.Errorf("creating etcd node data source: %w", err)
		}

		return sources{
			nodes: factory,
			close: func() {
				if err := cl.Close(); err != nil {
					logger.Error().Err(fmt.Errorf("closing etcd client: %w", err)).Send()
				}
			},
		}, nil

	default:
		factory, err := ranger.HTTPNodeDataSourceFactory[nodeData](cfg.Endpoints[0], srcOpts...)
		if err != nil {
			return sources{}, fmt.Errorf("creating http node data source: %w", err)
		}

		return sources{
			nodes:    factory,
			services: ranger.HTTPServiceDataSource(cfg.Endpoints[0], cfg.Namespace, cfg.RequestTimeout),
			close:    func() {},
		}, nil
	}
}
