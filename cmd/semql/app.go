package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/c360/semql/agora"
	"github.com/c360/semql/agora/fragcache"
	"github.com/c360/semql/agora/httploader"
	"github.com/c360/semql/agora/memory"
	"github.com/c360/semql/agora/natsgw"
	"github.com/c360/semql/config"
	"github.com/c360/semql/errors"
	"github.com/c360/semql/fountain"
	"github.com/c360/semql/health"
	"github.com/c360/semql/metric"
	"github.com/c360/semql/natsclient"
	"github.com/c360/semql/pkg/tlsutil"
	"github.com/c360/semql/processor"
	"github.com/c360/semql/resolver"
)

// app holds the wired collaborators of one process.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *metric.MetricsRegistry
	health   *health.Monitor

	nats      *natsclient.Client
	catalog   fountain.Catalog
	gateway   agora.Gateway
	fragments *fragcache.Cache
	processor *processor.Processor
}

// newApp connects and builds everything cfg asks for. Close releases what
// was built even when newApp fails halfway.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (a *app, err error) {
	a = &app{
		cfg:      cfg,
		logger:   logger,
		registry: metric.NewMetricsRegistry(),
		health:   health.NewMonitor(appName),
	}
	defer func() {
		if err != nil {
			_ = a.Close(context.Background())
			a = nil
		}
	}()

	if cfg.Backend == config.BackendNATS || cfg.NATS.Serve {
		if err := a.connectNATS(ctx); err != nil {
			return a, err
		}
	}
	if err := a.buildCatalog(); err != nil {
		return a, err
	}
	if err := a.buildGateway(ctx); err != nil {
		return a, err
	}
	if err := a.buildProcessor(ctx); err != nil {
		return a, err
	}
	return a, nil
}

func (a *app) connectNATS(ctx context.Context) error {
	n := a.cfg.NATS
	opts := []natsclient.ClientOption{
		natsclient.WithLogger(a.logger),
		natsclient.WithMetrics(a.registry),
		natsclient.WithMaxReconnects(n.MaxReconnects),
		natsclient.WithReconnectWait(n.ReconnectWait),
		natsclient.WithName(appName),
		natsclient.WithPingInterval(n.PingInterval),
		natsclient.WithDrainTimeout(n.DrainTimeout),
		natsclient.WithHandlerTimeout(n.HandlerTimeout),
		natsclient.WithCompression(n.Compression),
		natsclient.WithHealthChangeCallback(func(healthy bool) {
			if healthy {
				a.logger.Info("NATS connection healthy")
			} else {
				a.logger.Warn("NATS connection unhealthy")
			}
		}),
	}
	if n.ClientName != "" {
		opts = append(opts, natsclient.WithName(n.ClientName))
	}
	if n.Timeout > 0 {
		opts = append(opts, natsclient.WithTimeout(n.Timeout))
	}
	if n.Username != "" {
		opts = append(opts, natsclient.WithCredentials(n.Username, n.Password))
	}
	if n.Token != "" {
		opts = append(opts, natsclient.WithToken(n.Token))
	}
	if n.ReplyWorkers > 0 {
		opts = append(opts, natsclient.WithReplyWorkers(n.ReplyWorkers, n.ReplyQueue))
	}
	tlsConfig, err := tlsutil.LoadClientConfig(n.TLS)
	if err != nil {
		return errors.Wrap(err, "app", "connectNATS", "load tls")
	}
	if tlsConfig != nil {
		opts = append(opts, natsclient.WithTLS(tlsConfig))
	}

	client, err := natsclient.NewClient(n.URL, opts...)
	if err != nil {
		return errors.Wrap(err, "app", "connectNATS", "create client")
	}
	a.nats = client
	a.health.Register("nats", natsCheck(client))

	a.logger.Info("Connecting to NATS", "url", n.URL)
	if err := client.Connect(ctx); err != nil {
		return errors.Wrap(err, "app", "connectNATS", "connect")
	}
	connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.WaitForConnection(connCtx); err != nil {
		return errors.WrapTransient(err, "app", "connectNATS", "wait for connection")
	}
	return nil
}

func (a *app) remote() *natsgw.Client {
	opts := []natsgw.ClientOption{
		natsgw.WithPrefix(a.cfg.NATS.Prefix),
		natsgw.WithLogger(a.logger),
	}
	if a.cfg.NATS.PageSize > 0 {
		opts = append(opts, natsgw.WithPageSize(a.cfg.NATS.PageSize))
	}
	return natsgw.NewClient(a.nats, opts...)
}

func (a *app) buildCatalog() error {
	var inner fountain.Catalog
	switch {
	case a.cfg.Catalog.File != "":
		m, err := fountain.LoadFile(a.cfg.Catalog.File)
		if err != nil {
			return errors.Wrap(err, "app", "buildCatalog", "load "+a.cfg.Catalog.File)
		}
		inner = m
	case a.cfg.Backend == config.BackendNATS:
		inner = a.remote()
	default:
		return errors.WrapInvalid(errors.ErrMissingConfig, "app", "buildCatalog", "no catalog source")
	}

	if !a.cfg.Catalog.Cache.Enabled {
		a.catalog = inner
		return nil
	}
	cached, err := fountain.NewCached(inner, a.logger, a.cfg.Catalog.Cache)
	if err != nil {
		return errors.Wrap(err, "app", "buildCatalog", "create catalog cache")
	}
	a.catalog = cached
	return nil
}

func (a *app) buildGateway(ctx context.Context) error {
	switch a.cfg.Backend {
	case config.BackendNATS:
		a.gateway = a.remote()
		return nil
	default:
		ds, err := memory.LoadDataset(a.cfg.Dataset.File)
		if err != nil {
			return errors.Wrap(err, "app", "buildGateway", "load "+a.cfg.Dataset.File)
		}
		gw, err := memory.FromDataset(ctx, a.catalog, ds, a.logger)
		if err != nil {
			return errors.Wrap(err, "app", "buildGateway", "index dataset")
		}
		a.gateway = gw
		return nil
	}
}

// natsCheck maps the connection state onto a health status. A reconnecting
// client is degraded; requests fail fast while the circuit is open.
func natsCheck(client *natsclient.Client) health.Check {
	return func(context.Context) health.Status {
		switch st := client.Status(); st {
		case natsclient.StatusConnected:
			return health.NewHealthy("nats", st.String())
		case natsclient.StatusReconnecting, natsclient.StatusConnecting:
			return health.NewDegraded("nats", st.String())
		default:
			return health.NewUnhealthy("nats", st.String())
		}
	}
}

// loaderWrapper chains the HTTP loader under the fragment cache.
func (a *app) loaderWrapper() (func(agora.Loader) agora.Loader, error) {
	var wraps []func(agora.Loader) agora.Loader

	if a.cfg.Loader.Enabled {
		hl, err := httploader.New(a.cfg.Loader.Config, httploader.WithLogger(a.logger))
		if err != nil {
			return nil, errors.Wrap(err, "app", "loaderWrapper", "create http loader")
		}
		wraps = append(wraps, hl.Wrap)
	}

	if a.cfg.FragmentCache.Enabled {
		fc, err := fragcache.New(a.cfg.FragmentCache,
			fragcache.WithLogger(a.logger),
			fragcache.WithMetrics(a.registry))
		if err != nil {
			return nil, errors.Wrap(err, "app", "loaderWrapper", "create fragment cache")
		}
		a.fragments = fc
		a.health.Register("fragment_cache", func(context.Context) health.Status {
			return health.NewHealthy("fragment_cache", fmt.Sprintf("%d fragments", fc.Len()))
		})
		wraps = append(wraps, fc.Wrap)
	}

	return func(l agora.Loader) agora.Loader {
		for _, wrap := range wraps {
			l = wrap(l)
		}
		return l
	}, nil
}

func (a *app) buildProcessor(ctx context.Context) error {
	wrap, err := a.loaderWrapper()
	if err != nil {
		return err
	}

	opts := []processor.Option{
		processor.WithLogger(a.logger),
		processor.WithMetrics(a.registry.CoreMetrics()),
		processor.WithTimeout(a.cfg.Server.Timeout()),
		processor.WithMaxDepth(a.cfg.Server.MaxQueryDepth),
		processor.WithIdentityField(a.cfg.Schema.IdentityField),
		processor.WithSharedGateways(a.cfg.Resolver.ShareGateways),
		processor.WithResolverOptions(
			resolver.WithConcurrency(int64(a.cfg.Resolver.MaxConcurrency)),
			resolver.WithEagerRoots(a.cfg.Resolver.EagerRoots),
			resolver.WithLoaderWrapper(wrap),
		),
	}
	if a.cfg.Schema.File != "" {
		sdl, err := os.ReadFile(a.cfg.Schema.File)
		if err != nil {
			return errors.WrapInvalid(err, "app", "buildProcessor", "read schema "+a.cfg.Schema.File)
		}
		opts = append(opts, processor.WithSchema(string(sdl)))
	}

	p, err := processor.New(ctx, a.catalog, a.gateway, opts...)
	if err != nil {
		return err
	}
	a.processor = p
	a.logger.Info("Schema ready", "backend", a.cfg.Backend, "bytes", len(p.SDL()))
	return nil
}

// serveGateway answers remote gateway requests with the local backend.
func (a *app) serveGateway(ctx context.Context) error {
	if a.nats == nil {
		return errors.WrapFatal(errors.ErrNoConnection, "app", "serveGateway", "nats is not connected")
	}
	r := natsgw.NewResponder(a.nats, a.gateway, a.catalog,
		natsgw.WithResponderPrefix(a.cfg.NATS.Prefix),
		natsgw.WithResponderLogger(a.logger))
	if err := r.Start(ctx); err != nil {
		return err
	}
	a.logger.Info("Answering gateway requests", "prefix", a.cfg.NATS.Prefix)
	return nil
}

// Close releases the fragment cache and the NATS connection.
func (a *app) Close(ctx context.Context) error {
	var errs []error
	if a.fragments != nil {
		if err := a.fragments.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close fragment cache: %w", err))
		}
	}
	if a.nats != nil {
		if err := a.nats.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close nats: %w", err))
		}
	}
	return stderrors.Join(errs...)
}
