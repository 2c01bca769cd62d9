package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, ":9090", cfg.Proxy.MetricsAddr)
	assert.Equal(t, ":9091", cfg.Hub.MetricsAddr)
	assert.Equal(t, ":9092", cfg.Orchestrator.MetricsAddr)
	assert.Equal(t, 5*time.Minute, cfg.Proxy.ElectionTTLDuration())
	assert.Equal(t, time.Hour, cfg.Proxy.ReferenceTTLDuration())
	assert.Zero(t, cfg.Proxy.StaleRetentionDuration())
	assert.Equal(t, 30*time.Second, cfg.Hub.SweepIntervalDuration())
	assert.Equal(t, 100, cfg.Orchestrator.ChunkSize)
	assert.Equal(t, cfg.Proxy.Upstream, cfg.Orchestrator.Upstream)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "electoral.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log:
  level: debug
  json: true
proxy:
  listen: ":7000"
  upstream: reports:50050
  electionTTL: 90s
  maxEntries: 5000
  policy: FIFO
  coalesce: true
  staleRetention: 24h
hub:
  sweepInterval: 10s
  metricsAddr: ":8081"
orchestrator:
  upstream: config:50050
  workers: 8
  sink:
    exportDir: /tmp/mesas
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Log.JSON)
	assert.Equal(t, ":7000", cfg.Proxy.Listen)
	assert.Equal(t, 90*time.Second, cfg.Proxy.ElectionTTLDuration())
	assert.Equal(t, "fifo", cfg.Proxy.Policy)
	assert.True(t, cfg.Proxy.Coalesce)
	assert.Equal(t, 24*time.Hour, cfg.Proxy.StaleRetentionDuration())
	assert.Equal(t, 10*time.Second, cfg.Hub.SweepIntervalDuration())
	assert.Equal(t, ":8081", cfg.Hub.MetricsAddr)
	assert.Equal(t, 5*time.Second, cfg.Hub.DeliveryTimeoutDuration())
	assert.Equal(t, "config:50050", cfg.Orchestrator.Upstream)
	assert.Equal(t, 8, cfg.Orchestrator.Workers)
	assert.Equal(t, "/tmp/mesas", cfg.Orchestrator.Sink.ExportDir)
	assert.Equal(t, "./data/artifacts", cfg.Orchestrator.Sink.LevelDB)
}

func TestParse_Invalid(t *testing.T) {
	cases := map[string]string{
		"bad duration":     "proxy:\n  electionTTL: soon\n",
		"zero ttl":         "proxy:\n  referenceTTL: 0s\n",
		"negative sweep":   "hub:\n  sweepInterval: -1s\n",
		"unknown policy":   "proxy:\n  policy: random\n",
		"unknown level":    "log:\n  level: loud\n",
		"negative workers": "orchestrator:\n  workers: -2\n",
		"not yaml":         "proxy: [\n",
		"shared metrics":   "hub:\n  metricsAddr: \":9090\"\n",
		"metrics on grpc":  "orchestrator:\n  metricsAddr: \":50051\"\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
