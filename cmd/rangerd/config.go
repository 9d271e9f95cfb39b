package main

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "RANGERD"

const (
	sourceHTTP   = "http"
	sourceConsul = "consul"
	sourceEtcd   = "etcd"
)

type config struct {
	Namespace string
	Services  []string
	Source    string
	Endpoints []string
	ConsulTag string

	NodeRefreshInterval    time.Duration
	ServiceRefreshInterval time.Duration
	InitialRefreshTimeout  time.Duration
	RequestTimeout         time.Duration
	ZombieThreshold        time.Duration

	ListenAddr  string
	MetricsAddr string
	APIKey      string

	BadgerDir   string
	SnapshotTTL time.Duration

	LogLevel string
}

func bindFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "path to config file")
	fs.String("namespace", "", "namespace of services")
	fs.StringSlice("services", nil, "service names, discovered from the source if empty (http and consul only)")
	fs.String("source", sourceHTTP, "node data source: http|consul|etcd")
	fs.StringSlice("endpoints", []string{"http://127.0.0.1:7070"}, "node data source endpoints")
	fs.String("consul-tag", "", "consul tag to filter instances and services by")
	fs.Duration("node-refresh-interval", 10*time.Second, "period of scheduled registry refresh")
	fs.Duration("service-refresh-interval", time.Minute, "period of looking for new services")
	fs.Duration("initial-refresh-timeout", 0, "max wait for the first refresh, 0 means unbounded")
	fs.Duration("request-timeout", 5*time.Second, "timeout of a single call to the node data source")
	fs.Duration("zombie-threshold", time.Minute, "max node age, 0 disables the check")
	fs.String("listen-addr", "0.0.0.0:7070", "address of http controller")
	fs.String("metrics-addr", "0.0.0.0:9090", "address of prometheus metrics endpoint, empty disables it")
	fs.String("api-key", "", "api key required by http controller, empty disables auth")
	fs.String("badger-dir", "", "dir to persist registry snapshots in, empty keeps them in memory")
	fs.Duration("snapshot-ttl", 24*time.Hour, "ttl of persisted registry snapshots")
	fs.String("log-level", "info", "log level")
}

func loadConfig(fs *pflag.FlagSet) (config, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(fs); err != nil {
		return config{}, fmt.Errorf("binding flags: %w", err)
	}

	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return config{}, fmt.Errorf("reading config file: %w", err)
		}
	}

	cfg := config{
		Namespace:              v.GetString("namespace"),
		Services:               v.GetStringSlice("services"),
		Source:                 v.GetString("source"),
		Endpoints:              v.GetStringSlice("endpoints"),
		ConsulTag:              v.GetString("consul-tag"),
		NodeRefreshInterval:    v.GetDuration("node-refresh-interval"),
		ServiceRefreshInterval: v.GetDuration("service-refresh-interval"),
		InitialRefreshTimeout:  v.GetDuration("initial-refresh-timeout"),
		RequestTimeout:         v.GetDuration("request-timeout"),
		ZombieThreshold:        v.GetDuration("zombie-threshold"),
		ListenAddr:             v.GetString("listen-addr"),
		MetricsAddr:            v.GetString("metrics-addr"),
		APIKey:                 v.GetString("api-key"),
		BadgerDir:              v.GetString("badger-dir"),
		SnapshotTTL:            v.GetDuration("snapshot-ttl"),
		LogLevel:               v.GetString("log-level"),
	}

	return cfg, cfg.validate()
}

func (cfg config) validate() error {
	if cfg.Namespace == "" {
		return errors.New("namespace is required")
	}
	if !slices.Contains([]string{sourceHTTP, sourceConsul, sourceEtcd}, cfg.Source) {
		return fmt.Errorf("unknown source %q", cfg.Source)
	}
	if len(cfg.Endpoints) == 0 {
		return errors.New("at least one endpoint is required")
	}
	if cfg.Source == sourceEtcd && len(cfg.Services) == 0 {
		return errors.New("services are required for etcd source")
	}
	return nil
}
