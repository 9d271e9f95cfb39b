package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFlagSet(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()

	fs := pflag.NewFlagSet("rangerd", pflag.ContinueOnError)
	bindFlags(fs)
	require.NoError(t, fs.Parse(args))

	return fs
}

func Test_LoadConfig_Flags(t *testing.T) {
	cfg, err := loadConfig(newFlagSet(t,
		"--namespace=shop",
		"--services=orders,users",
		"--source=etcd",
		"--endpoints=127.0.0.1:2379",
		"--node-refresh-interval=3s",
	))
	require.NoError(t, err)

	assert.Equal(t, "shop", cfg.Namespace)
	assert.Equal(t, []string{"orders", "users"}, cfg.Services)
	assert.Equal(t, sourceEtcd, cfg.Source)
	assert.Equal(t, 3*time.Second, cfg.NodeRefreshInterval)
	assert.Equal(t, time.Minute, cfg.ServiceRefreshInterval)
	assert.Equal(t, "0.0.0.0:7070", cfg.ListenAddr)
}

func Test_LoadConfig_Env(t *testing.T) {
	t.Setenv("RANGERD_NAMESPACE", "shop")
	t.Setenv("RANGERD_ZOMBIE_THRESHOLD", "30s")

	cfg, err := loadConfig(newFlagSet(t))
	require.NoError(t, err)

	assert.Equal(t, "shop", cfg.Namespace)
	assert.Equal(t, 30*time.Second, cfg.ZombieThreshold)
	assert.Equal(t, sourceHTTP, cfg.Source)
}

func Test_LoadConfig_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rangerd.yaml")
	require.NoError(t, os.WriteFile(path, []byte("namespace: shop\nsource: consul\nconsul-tag: ranger\n"), 0o600))

	cfg, err := loadConfig(newFlagSet(t, "--config="+path))
	require.NoError(t, err)

	assert.Equal(t, "shop", cfg.Namespace)
	assert.Equal(t, sourceConsul, cfg.Source)
	assert.Equal(t, "ranger", cfg.ConsulTag)
}

func Test_LoadConfig_Invalid(t *testing.T) {
	cases := []struct {
		name string
		args []string
	}{
		{name: "no namespace", args: nil},
		{name: "unknown source", args: []string{"--namespace=shop", "--source=zookeeper"}},
		{name: "etcd without services", args: []string{"--namespace=shop", "--source=etcd"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := loadConfig(newFlagSet(t, tc.args...))
			assert.Error(t, err)
		})
	}
}
