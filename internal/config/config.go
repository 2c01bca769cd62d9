// Package config loads the YAML configuration shared by every subcommand.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"electoral-service/internal/store/policy"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/exp/slices"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Log struct {
		Level string `yaml:"level"`
		JSON  bool   `yaml:"json"`
	} `yaml:"log"`

	Proxy        Proxy        `yaml:"proxy"`
	Hub          Hub          `yaml:"hub"`
	Orchestrator Orchestrator `yaml:"orchestrator"`
}

// Each service has its own MetricsAddr serving /metrics, /health and pprof,
// so all of them can run on one host.

type Proxy struct {
	Listen         string `yaml:"listen"`
	MetricsAddr    string `yaml:"metricsAddr"`
	Upstream       string `yaml:"upstream"`
	ElectionTTL    string `yaml:"electionTTL"`
	ReferenceTTL   string `yaml:"referenceTTL"`
	MaxEntries     int    `yaml:"maxEntries"`
	Policy         string `yaml:"policy"`
	Coalesce       bool   `yaml:"coalesce"`
	StaleRetention string `yaml:"staleRetention"`
	FetchTimeout   string `yaml:"fetchTimeout"`

	// compiled
	electionTTL    time.Duration
	referenceTTL   time.Duration
	staleRetention time.Duration
	fetchTimeout   time.Duration
}

func (p Proxy) ElectionTTLDuration() time.Duration    { return p.electionTTL }
func (p Proxy) ReferenceTTLDuration() time.Duration   { return p.referenceTTL }
func (p Proxy) StaleRetentionDuration() time.Duration { return p.staleRetention }
func (p Proxy) FetchTimeoutDuration() time.Duration   { return p.fetchTimeout }

type Hub struct {
	Listen          string `yaml:"listen"`
	MetricsAddr     string `yaml:"metricsAddr"`
	SweepInterval   string `yaml:"sweepInterval"`
	DeliveryTimeout string `yaml:"deliveryTimeout"`

	// compiled
	sweepInterval   time.Duration
	deliveryTimeout time.Duration
}

func (h Hub) SweepIntervalDuration() time.Duration   { return h.sweepInterval }
func (h Hub) DeliveryTimeoutDuration() time.Duration { return h.deliveryTimeout }

type Orchestrator struct {
	Listen        string `yaml:"listen"`
	MetricsAddr   string `yaml:"metricsAddr"`
	Upstream      string `yaml:"upstream"`
	ChunkSize     int    `yaml:"chunkSize"`
	Workers       int    `yaml:"workers"`
	ProgressEvery int    `yaml:"progressEvery"`
	Sink          struct {
		LevelDB   string `yaml:"leveldb"`
		ExportDir string `yaml:"exportDir"`
	} `yaml:"sink"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	cfg, err := Parse(nil)
	if err != nil {
		panic(err)
	}
	return cfg
}

func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg, err := Parse(b)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes b, applies defaults and validates the result.
func Parse(b []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, err
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if hclog.LevelFromString(cfg.Log.Level) == hclog.NoLevel {
		return Config{}, fmt.Errorf("log.level: unknown level %q", cfg.Log.Level)
	}

	p := &cfg.Proxy
	if p.Listen == "" {
		p.Listen = ":50051"
	}
	if p.MetricsAddr == "" {
		p.MetricsAddr = ":9090"
	}
	if p.Upstream == "" {
		p.Upstream = "localhost:50050"
	}
	if p.MaxEntries < 0 {
		return Config{}, fmt.Errorf("proxy.maxEntries must not be negative")
	}
	p.Policy = strings.ToLower(strings.TrimSpace(p.Policy))
	if _, ok := policy.ByName[string](p.Policy); !ok {
		return Config{}, fmt.Errorf("proxy.policy: unknown policy %q", p.Policy)
	}
	var err error
	if p.electionTTL, err = duration("proxy.electionTTL", p.ElectionTTL, 5*time.Minute); err != nil {
		return Config{}, err
	}
	if p.referenceTTL, err = duration("proxy.referenceTTL", p.ReferenceTTL, time.Hour); err != nil {
		return Config{}, err
	}
	if p.staleRetention, err = duration("proxy.staleRetention", p.StaleRetention, 0); err != nil {
		return Config{}, err
	}
	if p.fetchTimeout, err = duration("proxy.fetchTimeout", p.FetchTimeout, 10*time.Second); err != nil {
		return Config{}, err
	}

	h := &cfg.Hub
	if h.Listen == "" {
		h.Listen = ":50052"
	}
	if h.MetricsAddr == "" {
		h.MetricsAddr = ":9091"
	}
	if h.sweepInterval, err = duration("hub.sweepInterval", h.SweepInterval, 30*time.Second); err != nil {
		return Config{}, err
	}
	if h.deliveryTimeout, err = duration("hub.deliveryTimeout", h.DeliveryTimeout, 5*time.Second); err != nil {
		return Config{}, err
	}

	o := &cfg.Orchestrator
	if o.Listen == "" {
		o.Listen = ":50053"
	}
	if o.MetricsAddr == "" {
		o.MetricsAddr = ":9092"
	}
	if o.Upstream == "" {
		o.Upstream = p.Upstream
	}
	if o.ChunkSize == 0 {
		o.ChunkSize = 100
	}
	if o.Workers == 0 {
		o.Workers = 4
	}
	if o.ProgressEvery == 0 {
		o.ProgressEvery = 10
	}
	if o.ChunkSize < 0 || o.Workers < 0 || o.ProgressEvery < 0 {
		return Config{}, fmt.Errorf("orchestrator: chunkSize, workers and progressEvery must be positive")
	}
	if o.Sink.LevelDB == "" {
		o.Sink.LevelDB = "./data/artifacts"
	}
	if o.Sink.ExportDir == "" {
		o.Sink.ExportDir = "./data/export"
	}

	if err := distinctAddrs(map[string]string{
		"proxy.listen":             p.Listen,
		"proxy.metricsAddr":        p.MetricsAddr,
		"hub.listen":               h.Listen,
		"hub.metricsAddr":          h.MetricsAddr,
		"orchestrator.listen":      o.Listen,
		"orchestrator.metricsAddr": o.MetricsAddr,
	}); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// duration parses s, falling back to def when s is empty. Durations must be
// positive, except a zero default which means "disabled".
func duration(field, s string, def time.Duration) (time.Duration, error) {
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", field, err)
	}
	if d < 0 || (d == 0 && def != 0) {
		return 0, fmt.Errorf("%s: must be positive, got %s", field, s)
	}
	return d, nil
}

// distinctAddrs fails when two fields name the same listen address.
func distinctAddrs(fields map[string]string) error {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	slices.Sort(names)
	seen := make(map[string]string, len(fields))
	for _, name := range names {
		addr := fields[name]
		if prev, ok := seen[addr]; ok {
			return fmt.Errorf("%s: address %s already used by %s", name, addr, prev)
		}
		seen[addr] = name
	}
	return nil
}
