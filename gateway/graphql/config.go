package graphql

import (
	"fmt"
	"strings"
	"time"

	"github.com/c360/semql/errors"
	"github.com/c360/semql/pkg/tlsutil"
)

// Config holds the HTTP gateway configuration.
type Config struct {
	// BindAddress is the HTTP bind address (default ":8080").
	BindAddress string `json:"bind_address" yaml:"bind_address"`

	// Path is the query endpoint path (default "/graphql").
	Path string `json:"path" yaml:"path"`

	// EnablePlayground serves the playground page at "/".
	EnablePlayground bool `json:"enable_playground" yaml:"enable_playground"`

	// EnableCORS enables CORS headers.
	EnableCORS bool `json:"enable_cors" yaml:"enable_cors"`

	// CORSOrigins lists allowed CORS origins (default ["*"]).
	CORSOrigins []string `json:"cors_origins,omitempty" yaml:"cors_origins,omitempty"`

	// TimeoutStr bounds each query (default "30s").
	TimeoutStr string `json:"timeout,omitempty" yaml:"timeout,omitempty"`

	// MaxQueryDepth limits selection nesting (default 10).
	MaxQueryDepth int `json:"max_query_depth,omitempty" yaml:"max_query_depth,omitempty"`

	// MaxBodyBytes limits request bodies (default 1 MiB).
	MaxBodyBytes int64 `json:"max_body_bytes,omitempty" yaml:"max_body_bytes,omitempty"`

	// TLS serves HTTPS, optionally verifying client certificates.
	TLS tlsutil.ServerConfig `json:"tls,omitempty" yaml:"tls,omitempty"`

	timeout time.Duration
}

// Validate fills defaults and checks ranges.
func (c *Config) Validate() error {
	if c.BindAddress == "" {
		c.BindAddress = ":8080"
	}

	if c.Path == "" {
		c.Path = "/graphql"
	}
	if !strings.HasPrefix(c.Path, "/") {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate", "path must start with /")
	}
	switch c.Path {
	case "/", "/schema", "/health", "/metrics":
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			fmt.Sprintf("path %s collides with a built-in route", c.Path))
	}

	if c.TimeoutStr == "" {
		c.timeout = 30 * time.Second
	} else {
		timeout, err := time.ParseDuration(c.TimeoutStr)
		if err != nil {
			return errors.WrapInvalid(fmt.Errorf("%w: %v", errors.ErrInvalidConfig, err), "Config", "Validate",
				fmt.Sprintf("invalid timeout format: %s", c.TimeoutStr))
		}
		if timeout < 100*time.Millisecond || timeout > 5*time.Minute {
			return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
				"timeout must be between 100ms and 5m")
		}
		c.timeout = timeout
	}

	if c.MaxQueryDepth == 0 {
		c.MaxQueryDepth = 10
	}
	if c.MaxQueryDepth < 1 || c.MaxQueryDepth > 50 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"max_query_depth must be between 1 and 50")
	}

	if c.MaxBodyBytes == 0 {
		c.MaxBodyBytes = 1 << 20
	}
	if c.MaxBodyBytes < 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate", "max_body_bytes must be positive")
	}

	if c.EnableCORS && len(c.CORSOrigins) == 0 {
		c.CORSOrigins = []string{"*"}
	}
	return c.TLS.Validate()
}

// Timeout returns the parsed query timeout. Validate must run first.
func (c *Config) Timeout() time.Duration {
	return c.timeout
}

// DefaultConfig returns the default gateway configuration.
func DefaultConfig() Config {
	return Config{
		BindAddress:      ":8080",
		Path:             "/graphql",
		EnablePlayground: true,
		EnableCORS:       true,
		CORSOrigins:      []string{"*"},
		TimeoutStr:       "30s",
		MaxQueryDepth:    10,
		MaxBodyBytes:     1 << 20,
	}
}
