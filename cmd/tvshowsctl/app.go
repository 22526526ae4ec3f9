package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	authclient "github.com/tvshows/authclient"
	"github.com/tvshows/authclient/internal/logging"
)

// app carries the flags shared by every command and the lazily built client.
type app struct {
	out io.Writer

	envFiles []string
	baseURL  string
	backend  string
	logLevel string
	logJSON  bool
	metrics  string

	log    zerolog.Logger
	client *authclient.Client
}

func newRootCommand(out io.Writer) *cobra.Command {
	a := &app{out: out, log: zerolog.Nop()}

	cmd := &cobra.Command{
		Use:           "tvshowsctl",
		Short:         "Session and authorization client for the TV-show catalog",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.finish(cmd.Context())
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringSliceVar(&a.envFiles, "env-file", nil, "Load variables from these files instead of ./.env")
	flags.StringVar(&a.baseURL, "base-url", "", "API gateway URL (overrides TVSHOWS_BASE_URL)")
	flags.StringVar(&a.backend, "backend", "", "Session backend: file, redis or memory (overrides TVSHOWS_SESSION_BACKEND)")
	flags.StringVar(&a.logLevel, "log-level", "", "Log level (overrides "+logging.LevelEnv+")")
	flags.BoolVar(&a.logJSON, "log-json", false, "Write JSON logs instead of console output")
	flags.StringVar(&a.metrics, "metrics", "", "Print client metrics after the command: prometheus or otel")

	cmd.AddCommand(
		newLoginCommand(a),
		newLogoutCommand(a),
		newWhoamiCommand(a),
		newRefreshCommand(a),
		newUpgradeCommand(a),
		newCanCommand(a),
		newUsersCommand(a),
		newPromoteCommand(a),
		newRequestCommand(a),
		newDevserverCommand(a),
	)
	return cmd
}

func (a *app) setup() error {
	if len(a.envFiles) > 0 {
		if err := godotenv.Load(a.envFiles...); err != nil {
			return fmt.Errorf("load env files: %w", err)
		}
	} else {
		// A missing ./.env is normal.
		_ = godotenv.Load()
	}

	switch a.metrics {
	case "", metricsPrometheus, metricsOTel:
	default:
		return fmt.Errorf("unknown --metrics format %q", a.metrics)
	}

	a.log = logging.New(logging.Options{App: "tvshowsctl", Level: a.logLevel, JSON: a.logJSON})
	return nil
}

// open builds the client and restores the stored session.
func (a *app) open(ctx context.Context) (*authclient.Client, error) {
	if a.client != nil {
		return a.client, nil
	}

	cfg, err := a.config(ctx)
	if err != nil {
		return nil, err
	}

	b := authclient.New().WithConfig(cfg).WithLogger(a.log)
	if a.metrics != "" {
		b = b.WithMetricsEnabled(true).WithLatencyHistograms(true)
	}
	client, err := b.Build()
	if err != nil {
		return nil, err
	}
	client.Restore(ctx)
	a.client = client
	return client, nil
}

func (a *app) config(ctx context.Context) (authclient.Config, error) {
	cfg, err := authclient.LoadConfigFromEnv(ctx)
	if err != nil {
		return authclient.Config{}, err
	}
	if a.baseURL != "" {
		cfg.BaseURL = a.baseURL
	}
	if a.backend != "" {
		cfg.Session.Backend = strings.ToLower(a.backend)
	}
	if err := cfg.Validate(); err != nil {
		return authclient.Config{}, err
	}
	return cfg, nil
}

func (a *app) finish(ctx context.Context) error {
	if a.client == nil {
		return nil
	}
	defer a.client.Close()

	switch a.metrics {
	case metricsPrometheus:
		return writePrometheus(a.out, a.client)
	case metricsOTel:
		return writeOTel(ctx, a.out, a.client)
	}
	return nil
}

func (a *app) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}
