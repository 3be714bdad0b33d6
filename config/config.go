package config

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/c360/semql/agora/httploader"
	"github.com/c360/semql/errors"
	"github.com/c360/semql/gateway/graphql"
	"github.com/c360/semql/pkg/cache"
	"github.com/c360/semql/pkg/tlsutil"
)

// Backends.
const (
	BackendMemory = "memory"
	BackendNATS   = "nats"
)

// Config is the complete service configuration.
type Config struct {
	Server        graphql.Config `json:"server" yaml:"server"`
	Catalog       CatalogConfig  `json:"catalog" yaml:"catalog"`
	Dataset       DatasetConfig  `json:"dataset" yaml:"dataset"`
	Backend       string         `json:"backend" yaml:"backend"`
	NATS          NATSConfig     `json:"nats" yaml:"nats"`
	Loader        LoaderConfig   `json:"loader" yaml:"loader"`
	FragmentCache cache.Config   `json:"fragment_cache" yaml:"fragment_cache"`
	Resolver      ResolverConfig `json:"resolver" yaml:"resolver"`
	Schema        SchemaConfig   `json:"schema" yaml:"schema"`
	Log           LogConfig      `json:"log" yaml:"log"`
	Tracing       TracingConfig  `json:"tracing" yaml:"tracing"`
}

// CatalogConfig locates the vocabulary catalog. With the nats backend and no
// file, the catalog is read from the remote responder.
type CatalogConfig struct {
	File  string       `json:"file,omitempty" yaml:"file,omitempty"`
	Cache cache.Config `json:"cache" yaml:"cache"`
}

// DatasetConfig locates the data served by the memory backend.
type DatasetConfig struct {
	File string `json:"file,omitempty" yaml:"file,omitempty"`
}

// NATSConfig configures the connection used by the nats backend and by the
// responder.
type NATSConfig struct {
	URL           string        `json:"url" yaml:"url"`
	Prefix        string        `json:"prefix" yaml:"prefix"`
	Timeout       time.Duration `json:"timeout" yaml:"timeout"`
	MaxReconnects int           `json:"max_reconnects" yaml:"max_reconnects"`
	ReconnectWait time.Duration `json:"reconnect_wait" yaml:"reconnect_wait"`
	PageSize      int           `json:"page_size,omitempty" yaml:"page_size,omitempty"`
	PingInterval  time.Duration `json:"ping_interval,omitempty" yaml:"ping_interval,omitempty"`
	DrainTimeout  time.Duration `json:"drain_timeout,omitempty" yaml:"drain_timeout,omitempty"`
	Compression   bool          `json:"compression,omitempty" yaml:"compression,omitempty"`
	ClientName    string        `json:"client_name,omitempty" yaml:"client_name,omitempty"`

	Username string `json:"username,omitempty" yaml:"username,omitempty"`
	Password string `json:"password,omitempty" yaml:"password,omitempty"`
	Token    string `json:"token,omitempty" yaml:"token,omitempty"`

	TLS tlsutil.ClientConfig `json:"tls,omitempty" yaml:"tls,omitempty"`

	// Serve answers gateway requests on Prefix with the local backend.
	Serve bool `json:"serve,omitempty" yaml:"serve,omitempty"`

	// ReplyWorkers answers served requests concurrently; zero answers them
	// one at a time per subject.
	ReplyWorkers int `json:"reply_workers,omitempty" yaml:"reply_workers,omitempty"`
	ReplyQueue   int `json:"reply_queue,omitempty" yaml:"reply_queue,omitempty"`
	// HandlerTimeout bounds each served request.
	HandlerTimeout time.Duration `json:"handler_timeout,omitempty" yaml:"handler_timeout,omitempty"`
}

// LoaderConfig enables dereferencing over HTTP for gateways without a loader.
type LoaderConfig struct {
	Enabled           bool `json:"enabled" yaml:"enabled"`
	httploader.Config `yaml:",inline"`
}

// ResolverConfig tunes field resolution.
type ResolverConfig struct {
	MaxConcurrency int  `json:"max_concurrency" yaml:"max_concurrency"`
	EagerRoots     bool `json:"eager_roots" yaml:"eager_roots"`
	ShareGateways  bool `json:"share_gateways" yaml:"share_gateways"`
}

// SchemaConfig selects a hand-written schema document or tunes synthesis.
type SchemaConfig struct {
	File          string `json:"file,omitempty" yaml:"file,omitempty"`
	IdentityField bool   `json:"identity_field" yaml:"identity_field"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

// TracingConfig configures span export.
type TracingConfig struct {
	Enabled  bool   `json:"enabled" yaml:"enabled"`
	Exporter string `json:"exporter" yaml:"exporter"`
}

// Default returns the configuration used when no file sets a value.
func Default() *Config {
	return &Config{
		Server:  graphql.DefaultConfig(),
		Backend: BackendMemory,
		Catalog: CatalogConfig{
			Cache: cache.Config{Enabled: true, Strategy: cache.StrategyLRU, MaxSize: 10000},
		},
		NATS: NATSConfig{
			URL:            "nats://localhost:4222",
			Prefix:         "semql.agora",
			Timeout:        5 * time.Second,
			MaxReconnects:  -1,
			ReconnectWait:  2 * time.Second,
			ReplyWorkers:   8,
			ReplyQueue:     256,
			PingInterval:   30 * time.Second,
			DrainTimeout:   5 * time.Second,
			HandlerTimeout: 10 * time.Second,
		},
		Loader: LoaderConfig{Config: httploader.DefaultConfig()},
		FragmentCache: cache.Config{
			Enabled:  true,
			Strategy: cache.StrategyLRU,
			MaxSize:  50000,
			TTL:      10 * time.Minute,
		},
		Resolver: ResolverConfig{MaxConcurrency: 16},
		Log:      LogConfig{Level: "info", Format: "text"},
		Tracing:  TracingConfig{Exporter: "stdout"},
	}
}

// Validate checks the configuration and fills defaults left empty.
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return err
	}

	switch c.Backend {
	case "":
		c.Backend = BackendMemory
	case BackendMemory, BackendNATS:
	default:
		return invalid(fmt.Sprintf("unknown backend %q", c.Backend))
	}

	if c.Backend == BackendMemory {
		if c.Catalog.File == "" {
			return invalid("catalog.file is required with the memory backend")
		}
		if c.Dataset.File == "" {
			return invalid("dataset.file is required with the memory backend")
		}
	}
	if c.Backend == BackendNATS && c.NATS.Serve {
		return invalid("nats.serve requires the memory backend")
	}

	if c.Backend == BackendNATS || c.NATS.Serve {
		if err := c.validateNATS(); err != nil {
			return err
		}
	}

	if c.Loader.Enabled {
		if err := c.Loader.Config.Validate(); err != nil {
			return err
		}
	}

	if c.Resolver.MaxConcurrency < 0 {
		return invalid("resolver.max_concurrency must not be negative")
	}

	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return invalid(fmt.Sprintf("unknown log level %q", c.Log.Level))
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		return invalid(fmt.Sprintf("unknown log format %q", c.Log.Format))
	}

	if c.Tracing.Enabled && c.Tracing.Exporter != "stdout" {
		return invalid(fmt.Sprintf("unknown trace exporter %q", c.Tracing.Exporter))
	}
	return nil
}

func (c *Config) validateNATS() error {
	n := &c.NATS
	if n.URL == "" {
		return invalid("nats.url is required")
	}
	if !strings.HasPrefix(n.URL, "nats://") && !strings.HasPrefix(n.URL, "tls://") {
		return invalid(fmt.Sprintf("nats.url %q must use nats:// or tls://", n.URL))
	}
	if n.Prefix == "" {
		return invalid("nats.prefix is required")
	}
	for _, part := range strings.Split(n.Prefix, ".") {
		if !isValidNATSSubjectPart(part) {
			return invalid(fmt.Sprintf("nats.prefix %q is not a valid subject", n.Prefix))
		}
	}
	if n.Timeout < 0 || n.ReconnectWait < 0 || n.PingInterval < 0 || n.DrainTimeout < 0 || n.HandlerTimeout < 0 {
		return invalid("nats durations must not be negative")
	}
	if n.PageSize < 0 || n.ReplyWorkers < 0 || n.ReplyQueue < 0 {
		return invalid("nats page size and reply pool sizes must not be negative")
	}
	if n.Token != "" && (n.Username != "" || n.Password != "") {
		return invalid("nats.token and nats.username/password are exclusive")
	}
	if err := n.TLS.Validate(); err != nil {
		return errors.WrapInvalid(err, "Config", "Validate", "nats.tls")
	}
	return nil
}

// isValidNATSSubjectPart checks one token of a subject without wildcards.
func isValidNATSSubjectPart(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r == '*' || r == '>' || r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			return false
		}
	}
	return true
}

func invalid(msg string) error {
	return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate", msg)
}

// Redacted returns a copy with credentials masked.
func (c *Config) Redacted() *Config {
	out := *c
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		return "****"
	}
	out.NATS.Password = mask(out.NATS.Password)
	out.NATS.Token = mask(out.NATS.Token)
	return &out
}

// String returns the redacted configuration as indented JSON.
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c.Redacted(), "", "  ")
	return string(data)
}
