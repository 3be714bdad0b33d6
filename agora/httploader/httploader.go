// Package httploader dereferences entities over HTTP. An entity IRI is fetched
// with content negotiation for the JSON triple encoding or N-Triples, under a
// client-side rate limit and with retries on transient failures.
package httploader

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"github.com/c360/semql/agora"
	"github.com/c360/semql/errors"
	"github.com/c360/semql/pkg/retry"
	"github.com/c360/semql/pkg/tlsutil"
	"github.com/c360/semql/rdf"
)

// Content types the loader understands.
const (
	ContentTypeJSON     = "application/json"
	ContentTypeNTriples = "application/n-triples"
)

// Config configures a Loader.
type Config struct {
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
	// RateLimit is the sustained request rate per second; zero disables limiting.
	RateLimit    float64      `json:"rate_limit" yaml:"rate_limit"`
	Burst        int          `json:"burst" yaml:"burst"`
	MaxBodyBytes int64        `json:"max_body_bytes" yaml:"max_body_bytes"`
	UserAgent    string       `json:"user_agent" yaml:"user_agent"`
	Retry        retry.Config `json:"retry" yaml:"retry"`
	// TLS customizes trust and client certificates for https fetches.
	TLS tlsutil.ClientConfig `json:"tls,omitempty" yaml:"tls,omitempty"`
}

// DefaultConfig returns a 10s timeout, 50 requests per second, 8 MiB bodies and
// the default retry schedule.
func DefaultConfig() Config {
	return Config{
		Timeout:      10 * time.Second,
		RateLimit:    50,
		Burst:        10,
		MaxBodyBytes: 8 << 20,
		UserAgent:    "semql",
		Retry:        retry.DefaultConfig(),
	}
}

// Validate fills defaults and rejects negative values.
func (c *Config) Validate() error {
	if c.Timeout < 0 || c.RateLimit < 0 || c.Burst < 0 || c.MaxBodyBytes < 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "httploader", "Validate", "negative value")
	}
	d := DefaultConfig()
	if c.Timeout == 0 {
		c.Timeout = d.Timeout
	}
	if c.RateLimit > 0 && c.Burst == 0 {
		c.Burst = 1
	}
	if c.MaxBodyBytes == 0 {
		c.MaxBodyBytes = d.MaxBodyBytes
	}
	if c.UserAgent == "" {
		c.UserAgent = d.UserAgent
	}
	if err := c.TLS.Validate(); err != nil {
		return err
	}
	return c.Retry.Validate()
}

// Loader is an agora.Loader over HTTP.
type Loader struct {
	cfg     Config
	client  *http.Client
	limiter *rate.Limiter
	rewrite func(string) string
	logger  *slog.Logger
}

// Option configures a Loader.
type Option func(*Loader)

// WithHTTPClient replaces the instrumented default client.
func WithHTTPClient(client *http.Client) Option {
	return func(l *Loader) {
		if client != nil {
			l.client = client
		}
	}
}

// WithRewrite maps an entity IRI to the URL actually fetched, for mirrors and
// local proxies.
func WithRewrite(fn func(iri string) string) Option {
	return func(l *Loader) {
		l.rewrite = fn
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// New creates a loader.
func New(cfg Config, opts ...Option) (*Loader, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	tlsConfig, err := tlsutil.LoadClientConfig(cfg.TLS)
	if err != nil {
		return nil, err
	}
	var transport http.RoundTripper = http.DefaultTransport
	if tlsConfig != nil {
		t := http.DefaultTransport.(*http.Transport).Clone()
		t.TLSClientConfig = tlsConfig
		transport = t
	}

	l := &Loader{
		cfg: cfg,
		client: &http.Client{
			Transport: otelhttp.NewTransport(transport),
			Timeout:   cfg.Timeout,
		},
		logger: slog.Default(),
	}
	if cfg.RateLimit > 0 {
		l.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.Burst)
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = l.logger.With("component", "httploader")
	return l, nil
}

// Wrap makes l the fallback of inner. inner is asked first; a dereferenceable
// entity it does not know is fetched over HTTP. With a nil inner every load
// goes to l.
func (l *Loader) Wrap(inner agora.Loader) agora.Loader {
	if inner == nil {
		return l
	}
	return agora.LoaderFunc(func(ctx context.Context, id string) (*rdf.Graph, agora.Metadata, error) {
		g, meta, err := inner.Load(ctx, id)
		if err == nil || !errors.Is(err, errors.ErrEntityNotFound) || !rdf.IsDereferenceable(id) {
			return g, meta, err
		}
		l.logger.Debug("Entity unknown to gateway, dereferencing", "entity", id)
		return l.Load(ctx, id)
	})
}

// Load implements agora.Loader.
func (l *Loader) Load(ctx context.Context, id string) (*rdf.Graph, agora.Metadata, error) {
	if !rdf.IsDereferenceable(id) {
		return nil, nil, errors.WrapInvalid(
			fmt.Errorf("%w: %q is not dereferenceable", errors.ErrEntityNotFound, id), "httploader", "Load", "validate identifier")
	}

	target := id
	if l.rewrite != nil {
		target = l.rewrite(id)
	}
	u, err := url.Parse(target)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, nil, errors.WrapInvalid(
			fmt.Errorf("%w: %q is not an http IRI", errors.ErrEntityNotFound, target), "httploader", "Load", "validate identifier")
	}

	type result struct {
		graph *rdf.Graph
		meta  agora.Metadata
	}
	res, err := retry.DoWithResult(ctx, l.cfg.Retry, func(ctx context.Context) (result, error) {
		g, meta, err := l.fetch(ctx, u.String())
		return result{g, meta}, err
	})
	if err != nil {
		l.logger.Debug("Dereferencing failed", "entity", id, "url", u.String(), "error", err)
		return nil, nil, err
	}
	res.meta["Source"] = u.String()
	return res.graph, res.meta, nil
}

func (l *Loader) fetch(ctx context.Context, target string) (*rdf.Graph, agora.Metadata, error) {
	if l.limiter != nil {
		if err := l.limiter.Wait(ctx); err != nil {
			return nil, nil, errors.WrapTransient(
				fmt.Errorf("%w: %v", errors.ErrRateLimited, err), "httploader", "fetch", "wait for rate limit")
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, nil, errors.WrapInvalid(err, "httploader", "fetch", "build request")
	}
	req.Header.Set("Accept", ContentTypeJSON+", "+ContentTypeNTriples+";q=0.9, text/plain;q=0.5")
	req.Header.Set("User-Agent", l.cfg.UserAgent)

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, nil, errors.WrapTransient(err, "httploader", "fetch", "send request")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return nil, nil, errors.WrapInvalid(
			fmt.Errorf("%w: %s returned %d", errors.ErrEntityNotFound, target, resp.StatusCode), "httploader", "fetch", "dereference")
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, nil, errors.WrapTransient(
			fmt.Errorf("%w: %s", errors.ErrRateLimited, target), "httploader", "fetch", "dereference")
	case resp.StatusCode >= 500:
		return nil, nil, errors.WrapTransient(
			fmt.Errorf("%s returned %d", target, resp.StatusCode), "httploader", "fetch", "dereference")
	case resp.StatusCode >= 300:
		return nil, nil, errors.WrapInvalid(
			fmt.Errorf("%s returned %d", target, resp.StatusCode), "httploader", "fetch", "dereference")
	}

	body := io.LimitReader(resp.Body, l.cfg.MaxBodyBytes)
	contentType := resp.Header.Get("Content-Type")
	g, err := decode(contentType, body)
	if err != nil {
		return nil, nil, errors.WrapInvalid(
			fmt.Errorf("%w: %v", errors.ErrInvalidData, err), "httploader", "fetch", "decode "+contentType)
	}

	meta := agora.Metadata{"Content-Type": contentType}
	for _, h := range []string{"ETag", "Cache-Control", "Last-Modified"} {
		if v := resp.Header.Get(h); v != "" {
			meta[h] = v
		}
	}
	return g, meta, nil
}

func decode(contentType string, body io.Reader) (*rdf.Graph, error) {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.TrimSpace(strings.ToLower(contentType))
	}

	switch mediaType {
	case ContentTypeJSON:
		data, err := io.ReadAll(body)
		if err != nil {
			return nil, err
		}
		g := rdf.NewGraph()
		if err := g.UnmarshalJSON(data); err != nil {
			return nil, err
		}
		return g, nil
	case ContentTypeNTriples, "text/plain", "":
		return rdf.ParseNTriples(body)
	default:
		return nil, fmt.Errorf("unsupported content type %q", contentType)
	}
}

var _ agora.Loader = (*Loader)(nil)
