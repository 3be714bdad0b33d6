package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/semql/errors"
	"github.com/c360/semql/pkg/cache"
	"github.com/c360/semql/pkg/tlsutil"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoader_LoadYAML(t *testing.T) {
	path := writeFile(t, "semql.yaml", `
catalog:
  file: catalog.yaml
  cache:
    ttl: 2d
dataset:
  file: people.yaml
server:
  bind_address: ":9090"
  timeout: 10s
loader:
  enabled: true
  timeout: 3s
  rate_limit: 5
  retry:
    max_attempts: 4
    initial_delay: 50ms
fragment_cache:
  max_size: 10
resolver:
  max_concurrency: 4
  eager_roots: true
nats:
  handler_timeout: 3s
  ping_interval: 1m
log:
  level: debug
`)

	cfg, err := NewLoader().LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "catalog.yaml", cfg.Catalog.File)
	assert.Equal(t, 48*time.Hour, cfg.Catalog.Cache.TTL)
	assert.True(t, cfg.Catalog.Cache.Enabled, "defaults survive partial overrides")
	assert.Equal(t, ":9090", cfg.Server.BindAddress)
	assert.Equal(t, 10*time.Second, cfg.Server.Timeout())
	assert.Equal(t, "/graphql", cfg.Server.Path)

	assert.True(t, cfg.Loader.Enabled)
	assert.Equal(t, 3*time.Second, cfg.Loader.Timeout)
	assert.Equal(t, 5.0, cfg.Loader.RateLimit)
	assert.Equal(t, 4, cfg.Loader.Retry.MaxAttempts)
	assert.Equal(t, 50*time.Millisecond, cfg.Loader.Retry.InitialDelay)

	assert.Equal(t, 10, cfg.FragmentCache.MaxSize)
	assert.Equal(t, 10*time.Minute, cfg.FragmentCache.TTL)
	assert.Equal(t, cache.StrategyLRU, cfg.FragmentCache.Strategy)

	assert.Equal(t, 4, cfg.Resolver.MaxConcurrency)
	assert.True(t, cfg.Resolver.EagerRoots)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, BackendMemory, cfg.Backend)

	assert.Equal(t, 3*time.Second, cfg.NATS.HandlerTimeout)
	assert.Equal(t, time.Minute, cfg.NATS.PingInterval)
	assert.Equal(t, 5*time.Second, cfg.NATS.DrainTimeout)
}

func TestLoader_Layers(t *testing.T) {
	base := writeFile(t, "base.json", `{
		"backend": "nats",
		"nats": {"url": "nats://base:4222", "timeout": "2s", "prefix": "base.agora"}
	}`)
	override := writeFile(t, "prod.yml", `
nats:
  url: nats://prod:4222
`)

	l := NewLoader()
	l.AddLayer(base)
	l.AddLayer(override)
	cfg, err := l.Load()
	require.NoError(t, err)

	assert.Equal(t, BackendNATS, cfg.Backend)
	assert.Equal(t, "nats://prod:4222", cfg.NATS.URL)
	assert.Equal(t, "base.agora", cfg.NATS.Prefix)
	assert.Equal(t, 2*time.Second, cfg.NATS.Timeout)
	assert.Equal(t, -1, cfg.NATS.MaxReconnects)
}

func TestLoader_EnvOverrides(t *testing.T) {
	path := writeFile(t, "semql.yaml", `
catalog:
  file: catalog.yaml
dataset:
  file: people.yaml
`)
	t.Setenv("SEMQL_NATS_URL", "nats://env:4222")
	t.Setenv("SEMQL_NATS_SERVE", "true")
	t.Setenv("SEMQL_LOG_FORMAT", "json")

	cfg, err := NewLoader().LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "nats://env:4222", cfg.NATS.URL)
	assert.True(t, cfg.NATS.Serve)
	assert.Equal(t, "json", cfg.Log.Format)

	t.Setenv("SEMQL_NATS_SERVE", "maybe")
	_, err = NewLoader().LoadFile(path)
	assert.ErrorIs(t, err, errors.ErrInvalidConfig)
}

func TestLoader_CustomEnvPrefix(t *testing.T) {
	path := writeFile(t, "semql.yaml", "backend: nats\n")
	t.Setenv("OTHER_NATS_PREFIX", "other.agora")

	l := NewLoader()
	l.SetEnvPrefix("OTHER")
	cfg, err := l.LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "other.agora", cfg.NATS.Prefix)
}

func TestLoader_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"bad extension", "semql.toml", "backend = 'memory'"},
		{"bad yaml", "semql.yaml", "catalog: [unclosed"},
		{"bad duration", "semql.yaml", "nats:\n  timeout: soon\n"},
		{"deep json", "semql.json", strings.Repeat("[", maxJSONDepth+1) + strings.Repeat("]", maxJSONDepth+1)},
		{"unknown backend", "semql.yaml", "backend: sparql\n"},
		{"memory without files", "semql.yaml", "backend: memory\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLoader().LoadFile(writeFile(t, tt.file, tt.content))
			require.Error(t, err)
			assert.True(t, errors.IsInvalid(err), "%v", err)
		})
	}
}

func TestLoader_WithoutValidation(t *testing.T) {
	l := NewLoader()
	l.EnableValidation(false)
	cfg, err := l.LoadFile(writeFile(t, "semql.yaml", "backend: memory\n"))
	require.NoError(t, err)
	assert.Empty(t, cfg.Catalog.File)
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		cfg := Default()
		cfg.Catalog.File = "catalog.yaml"
		cfg.Dataset.File = "people.yaml"
		return cfg
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"nats scheme", func(c *Config) { c.Backend = BackendNATS; c.NATS.URL = "http://x" }},
		{"nats wildcard prefix", func(c *Config) { c.Backend = BackendNATS; c.NATS.Prefix = "semql.*" }},
		{"nats empty token", func(c *Config) { c.Backend = BackendNATS; c.NATS.Prefix = "semql..agora" }},
		{"token and password", func(c *Config) { c.NATS.Serve = true; c.NATS.Token = "t"; c.NATS.Username = "u" }},
		{"tls half configured", func(c *Config) {
			c.Backend = BackendNATS
			c.NATS.TLS = tlsutil.ClientConfig{Enabled: true, CertFile: "cert.pem"}
		}},
		{"negative handler timeout", func(c *Config) { c.NATS.Serve = true; c.NATS.HandlerTimeout = -time.Second }},
		{"negative concurrency", func(c *Config) { c.Resolver.MaxConcurrency = -1 }},
		{"log level", func(c *Config) { c.Log.Level = "trace" }},
		{"log format", func(c *Config) { c.Log.Format = "xml" }},
		{"trace exporter", func(c *Config) { c.Tracing = TracingConfig{Enabled: true, Exporter: "jaeger"} }},
		{"loader", func(c *Config) { c.Loader.Enabled = true; c.Loader.Burst = -1 }},
		{"server", func(c *Config) { c.Server.Path = "/metrics" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), errors.ErrInvalidConfig)
		})
	}
}

func TestConfig_NATSBackendNeedsNoFiles(t *testing.T) {
	cfg := Default()
	cfg.Backend = BackendNATS
	assert.NoError(t, cfg.Validate())
}

func TestConfig_StringRedactsSecrets(t *testing.T) {
	cfg := Default()
	cfg.NATS.Password = "hunter2"
	cfg.NATS.Token = "s3cret"

	out := cfg.String()
	assert.NotContains(t, out, "hunter2")
	assert.NotContains(t, out, "s3cret")
	assert.Contains(t, out, "****")
	assert.Equal(t, "hunter2", cfg.NATS.Password)
}

func TestParseDurationWithDays(t *testing.T) {
	d, err := parseDurationWithDays("14d")
	require.NoError(t, err)
	assert.Equal(t, 14*24*time.Hour, d)

	d, err = parseDurationWithDays("90s")
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, d)

	_, err = parseDurationWithDays("xd")
	assert.Error(t, err)
}

func TestValidateConfigPath(t *testing.T) {
	assert.Error(t, validateConfigPath(""))
	assert.Error(t, validateConfigPath("../outside.yaml"))
	assert.Error(t, validateConfigPath("semql.ini"))
	assert.NoError(t, validateConfigPath("semql.yml"))
	assert.NoError(t, validateConfigPath("/etc/semql/semql.yaml"))
}

func TestConfig_ServeRequiresMemoryBackend(t *testing.T) {
	cfg := Default()
	cfg.Backend = BackendNATS
	cfg.NATS.Serve = true
	assert.ErrorIs(t, cfg.Validate(), errors.ErrInvalidConfig)
}
