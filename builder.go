package authclient

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/tvshows/authclient/guard"
	"github.com/tvshows/authclient/internal/audit"
	"github.com/tvshows/authclient/internal/authapi"
	"github.com/tvshows/authclient/permission"
	"github.com/tvshows/authclient/refresh"
	"github.com/tvshows/authclient/session"
)

// Builder assembles a [Client].
//
// Builder instances are configured during initialization and used once. Build
// performs no network or storage I/O; call [Client.Restore] to load a
// persisted session.
type Builder struct {
	config Config

	persister session.Persister
	redis     redis.UniversalClient
	transport http.RoundTripper
	logger    *zerolog.Logger
	auditSink AuditSink
	roles     *permission.RoleManager
	routes    *guard.Table

	built bool
}

// New returns a builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{config: DefaultConfig()}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithPersister overrides the session backend selected by the configuration.
func (b *Builder) WithPersister(p session.Persister) *Builder {
	b.persister = p
	return b
}

// WithRedis supplies the client used by the redis session backend. The caller
// keeps ownership of client.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithTransport sets the round tripper underneath the dispatcher. Defaults to
// http.DefaultTransport.
func (b *Builder) WithTransport(rt http.RoundTripper) *Builder {
	b.transport = rt
	return b
}

func (b *Builder) WithLogger(logger zerolog.Logger) *Builder {
	b.logger = &logger
	return b
}

// WithAuditSink enables audit events and routes them to sink.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// WithRoles replaces the built-in tier table.
func (b *Builder) WithRoles(rm *permission.RoleManager) *Builder {
	b.roles = rm
	return b
}

// WithRoutes replaces the route table, taking precedence over Routes.File.
func (b *Builder) WithRoutes(table guard.Table) *Builder {
	b.routes = &table
	return b
}

// Build validates the configuration and wires the client.
func (b *Builder) Build() (*Client, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := b.config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse BaseURL: %w", err)
	}

	logger := zerolog.Nop()
	if b.logger != nil {
		logger = *b.logger
	}

	roles := b.roles
	if roles == nil {
		roles = permission.Defaults()
	}

	c := &Client{
		cfg:     cfg,
		log:     logger,
		roles:   roles,
		metrics: NewMetrics(cfg.Metrics),
		now:     time.Now,
	}

	persister, err := b.buildPersister(c)
	if err != nil {
		return nil, err
	}
	c.store = session.NewStore(persister,
		session.WithLogger(logger),
		session.WithPersistErrorHook(func(session.PersistOp, error) {
			c.metrics.Inc(MetricPersistFailure)
		}),
	)

	if b.auditSink != nil || cfg.Audit.Enabled {
		sink := b.auditSink
		if sink == nil {
			sink = NewLogSink(logger)
		}
		c.audit = audit.NewDispatcher(audit.Config{
			Enabled:    true,
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
		}, sink)
	}

	next := b.transport
	if next == nil {
		next = http.DefaultTransport
	}
	if cfg.Tracing.Enabled {
		next = otelhttp.NewTransport(next)
	}

	c.api, err = authapi.New(authapi.Config{
		BaseURL:    cfg.BaseURL,
		APIVersion: cfg.APIVersion,
		Paths: authapi.Paths{
			Login:    cfg.Endpoints.Login,
			Refresh:  cfg.Endpoints.Refresh,
			Register: cfg.Endpoints.Register,
		},
		HTTPClient: &http.Client{Transport: next, Timeout: cfg.RequestTimeout},
	})
	if err != nil {
		return nil, err
	}

	c.refresher = refresh.New(c.store, refresh.ExchangerFunc(c.exchange),
		refresh.WithDeduplication(cfg.Refresh.Deduplicate),
		refresh.WithLogger(logger),
		refresh.WithObserver(c.observeRefresh),
	)

	table := guard.DefaultTable()
	switch {
	case b.routes != nil:
		table = *b.routes
	case cfg.Routes.File != "":
		if table, err = guard.LoadTable(cfg.Routes.File); err != nil {
			return nil, err
		}
	}
	if c.navigator, err = guard.NewNavigator(c.store, roles, table); err != nil {
		return nil, err
	}

	c.dispatcher = &dispatcher{
		next:        next,
		base:        base,
		apiVersion:  cfg.APIVersion,
		timeout:     cfg.RequestTimeout,
		earlyWindow: cfg.Refresh.EarlyRefreshWindow,
		store:       c.store,
		refresher:   c.refresher,
		api:         c.api,
		metrics:     c.metrics,
		audit:       c.audit,
		log:         logger,
		now:         time.Now,
	}
	c.httpClient = &http.Client{Transport: c.dispatcher}

	b.built = true
	return c, nil
}

func (b *Builder) buildPersister(c *Client) (session.Persister, error) {
	if b.persister != nil {
		return b.persister, nil
	}

	sc := b.config.Session
	switch sc.Backend {
	case BackendMemory:
		return session.NewMemoryPersister(), nil
	case BackendRedis:
		client := b.redis
		if client == nil {
			owned := redis.NewClient(&redis.Options{Addr: sc.RedisAddr})
			c.closers = append(c.closers, owned.Close)
			client = owned
		}
		return session.NewRedisPersister(client, sc.RedisPrefix, sc.Key, sc.RedisTTL)
	default:
		dir, err := b.config.sessionDir()
		if err != nil {
			return nil, err
		}
		return session.NewFilePersister(dir, sc.Key)
	}
}
