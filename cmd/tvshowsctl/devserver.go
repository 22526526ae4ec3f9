package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tvshows/authclient/internal/devserver"
)

const devSecretEnv = "TVSHOWS_DEV_SECRET"

type devserverOptions struct {
	addr          string
	metricsAddr   string
	redisAddr     string
	embeddedRedis bool
	maxAttempts   int
	loginWindow   time.Duration
	rpm           int
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

func newDevserverCommand(a *app) *cobra.Command {
	defaults := devserver.DefaultConfig()
	opts := devserverOptions{
		addr:        ":8080",
		maxAttempts: 5,
		loginWindow: 15 * time.Minute,
		accessTTL:   defaults.AccessTTL,
		refreshTTL:  defaults.RefreshTTL,
	}

	cmd := &cobra.Command{
		Use:   "devserver",
		Short: "Run the in-memory auth and user service for local development",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDevserver(cmd.Context(), a, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.addr, "addr", opts.addr, "Listen address")
	flags.StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve Prometheus /metrics on this address")
	flags.StringVar(&opts.redisAddr, "redis-addr", "", "Redis address for the failed-login lockout")
	flags.BoolVar(&opts.embeddedRedis, "embedded-redis", false, "Run the lockout against an in-process Redis")
	flags.IntVar(&opts.maxAttempts, "max-login-attempts", opts.maxAttempts, "Failed logins allowed per window")
	flags.DurationVar(&opts.loginWindow, "login-window", opts.loginWindow, "Failed-login lockout window")
	flags.IntVar(&opts.rpm, "requests-per-minute", 0, "Per-IP request limit; 0 disables it")
	flags.DurationVar(&opts.accessTTL, "access-ttl", opts.accessTTL, "Access credential lifetime")
	flags.DurationVar(&opts.refreshTTL, "refresh-ttl", opts.refreshTTL, "Refresh credential lifetime")
	return cmd
}

func runDevserver(ctx context.Context, a *app, opts devserverOptions) error {
	cfg := devserver.DefaultConfig()
	cfg.Logger = a.log
	cfg.AccessTTL = opts.accessTTL
	cfg.RefreshTTL = opts.refreshTTL
	cfg.MaxLoginAttempts = opts.maxAttempts
	cfg.LoginWindow = opts.loginWindow
	cfg.RequestsPerMinute = opts.rpm
	if secret := os.Getenv(devSecretEnv); secret != "" {
		cfg.Secret = []byte(secret)
	}

	addr := opts.redisAddr
	if addr == "" && opts.embeddedRedis {
		mr, err := miniredis.Run()
		if err != nil {
			return err
		}
		defer mr.Close()
		addr = mr.Addr()
	}
	if addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: addr})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return err
		}
		cfg.Redis = rdb
	}

	srv, err := devserver.New(cfg)
	if err != nil {
		return err
	}

	servers := []*http.Server{{
		Addr:              opts.addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}}
	if opts.metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(devserverRegistry(srv), promhttp.HandlerOpts{}))
		servers = append(servers, &http.Server{
			Addr:              opts.metricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		})
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, hs := range servers {
		g.Go(func() error {
			a.log.Info().Str("addr", hs.Addr).Msg("devserver: listening")
			if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		for _, hs := range servers {
			if err := hs.Shutdown(shutdownCtx); err != nil {
				a.log.Error().Err(err).Str("addr", hs.Addr).Msg("devserver: shutdown")
			}
		}
		return nil
	})
	return g.Wait()
}

// devserverRegistry exposes per-route request counts next to the Go runtime
// collectors.
func devserverRegistry(srv *devserver.Server) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	for _, route := range devserver.RouteNames() {
		reg.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name:        "tvshows_devserver_requests_total",
			Help:        "Requests handled by the development server, by route.",
			ConstLabels: prometheus.Labels{"route": route},
		}, func() float64 { return float64(srv.Calls(route)) }))
	}
	return reg
}
