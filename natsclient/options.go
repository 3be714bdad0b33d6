package natsclient

import (
	"crypto/tls"
	"fmt"
	"log/slog"
	"time"

	"github.com/c360/semql/metric"
)

// ClientOption configures a Client. An option that returns an error makes
// NewClient fail.
type ClientOption func(*Client) error

func nonNegative(name string, d time.Duration) error {
	if d < 0 {
		return fmt.Errorf("%s must not be negative: %v", name, d)
	}
	return nil
}

// Connection

// WithName sets the name the server shows for this connection.
func WithName(name string) ClientOption {
	return func(c *Client) error {
		c.clientName = name
		return nil
	}
}

// WithTimeout bounds connection attempts and requests without a deadline.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) error {
		c.timeout = d
		return nonNegative("timeout", d)
	}
}

// WithMaxReconnects caps reconnection attempts; -1 retries forever.
func WithMaxReconnects(n int) ClientOption {
	return func(c *Client) error {
		c.maxReconnects = n
		return nil
	}
}

// WithReconnectWait sets the pause between reconnection attempts.
func WithReconnectWait(d time.Duration) ClientOption {
	return func(c *Client) error {
		c.reconnectWait = d
		return nonNegative("reconnect wait", d)
	}
}

// WithPingInterval sets how often the server is pinged.
func WithPingInterval(d time.Duration) ClientOption {
	return func(c *Client) error {
		if d > 0 {
			c.pingInterval = d
		}
		return nonNegative("ping interval", d)
	}
}

// WithDrainTimeout bounds the drain performed by Close.
func WithDrainTimeout(d time.Duration) ClientOption {
	return func(c *Client) error {
		if d > 0 {
			c.drainTimeout = d
		}
		return nonNegative("drain timeout", d)
	}
}

// WithCompression asks the server for compressed websocket frames.
func WithCompression(enabled bool) ClientOption {
	return func(c *Client) error {
		c.compression = enabled
		return nil
	}
}

// Security

// WithCredentials authenticates with a username and password.
func WithCredentials(username, password string) ClientOption {
	return func(c *Client) error {
		c.username = username
		c.password = password
		return nil
	}
}

// WithToken authenticates with a token.
func WithToken(token string) ClientOption {
	return func(c *Client) error {
		c.token = token
		return nil
	}
}

// WithTLS secures the connection with cfg. A nil cfg leaves TLS to the URL
// scheme.
func WithTLS(cfg *tls.Config) ClientOption {
	return func(c *Client) error {
		c.tlsConfig = cfg
		return nil
	}
}

// Resilience

// WithCircuitBreakerThreshold opens the circuit after threshold consecutive
// connection failures. Values below one select the default of five.
func WithCircuitBreakerThreshold(threshold int32) ClientOption {
	return func(c *Client) error {
		if threshold < 1 {
			threshold = 5
		}
		c.circuitThreshold = threshold
		return nil
	}
}

// WithMaxBackoff caps the wait before a half-open attempt. Values below one
// second select the default of one minute.
func WithMaxBackoff(d time.Duration) ClientOption {
	return func(c *Client) error {
		if d < time.Second {
			d = time.Minute
		}
		c.maxBackoff = d
		return nil
	}
}

// WithHealthInterval sets how often the connection is probed; zero disables
// probing.
func WithHealthInterval(d time.Duration) ClientOption {
	return func(c *Client) error {
		c.healthInterval = d
		return nonNegative("health interval", d)
	}
}

// WithHealthChangeCallback calls fn whenever the probed health flips. fn runs
// on its own goroutine for connection events.
func WithHealthChangeCallback(fn func(healthy bool)) ClientOption {
	return func(c *Client) error {
		c.onHealthChange = fn
		return nil
	}
}

// Serving

// WithHandlerTimeout bounds the context handed to Reply handlers.
func WithHandlerTimeout(d time.Duration) ClientOption {
	return func(c *Client) error {
		if d > 0 {
			c.handlerTimeout = d
		}
		return nonNegative("handler timeout", d)
	}
}

// WithReplyWorkers processes Reply requests on a pool of workers fed by a
// queue of queueSize. Requests arriving while the queue is full are answered
// with a transient error. Without this option each subscription handles its
// requests one at a time.
func WithReplyWorkers(workers, queueSize int) ClientOption {
	return func(c *Client) error {
		if workers < 0 || queueSize < 0 {
			return fmt.Errorf("reply workers and queue size must not be negative")
		}
		c.replyWorkers = workers
		c.replyQueue = queueSize
		return nil
	}
}

// Observability

// WithLogger sets the client logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) error {
		if logger != nil {
			c.logger = logger
		}
		return nil
	}
}

// WithMetrics counts requests per subject and outcome in registry, and
// registers the reply pool collectors when WithReplyWorkers is set.
func WithMetrics(registry *metric.MetricsRegistry) ClientOption {
	return func(c *Client) error {
		if registry == nil {
			return nil
		}
		metrics, err := newRequestMetrics(registry)
		if err != nil {
			return err
		}
		c.metrics = metrics
		c.registry = registry
		return nil
	}
}
