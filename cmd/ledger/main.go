package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/iho/paymentsengine/internal/infrastructure/config"
	"github.com/iho/paymentsengine/internal/infrastructure/idgen"
	"github.com/iho/paymentsengine/internal/infrastructure/logger"
	"github.com/iho/paymentsengine/internal/infrastructure/metrics"
	"github.com/iho/paymentsengine/internal/usecase"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

// app carries the state shared by every subcommand. It is filled in by the
// root command's PersistentPreRunE.
type app struct {
	cfg     *config.Config
	logger  zerolog.Logger
	reg     *prometheus.Registry
	metrics *metrics.Metrics

	stdout io.Writer
	stderr io.Writer
}

// flagOverrides holds the CLI flags that override environment config.
type flagOverrides struct {
	storeDriver      string
	storePath        string
	databaseURL      string
	redisURL         string
	metricsAddr      string
	logLevel         string
	logFormat        string
	freezePolicy     string
	maxActiveClients int
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr}
	var flags flagOverrides

	rootCmd := &cobra.Command{
		Use:   "ledger",
		Short: "Streaming payments engine",
		Long: `Applies deposits, withdrawals, disputes, resolves and chargebacks to client
accounts and reports the final balances as CSV on stdout.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd, flags)
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.storeDriver, "store-driver", "", "ledger store: bolt, postgres or memory (env STORE_DRIVER)")
	pf.StringVar(&flags.storePath, "store-path", "", "bolt database file (env STORE_PATH)")
	pf.StringVar(&flags.databaseURL, "database-url", "", "PostgreSQL URL (env DATABASE_URL)")
	pf.StringVar(&flags.redisURL, "redis-url", "", "Redis URL for the snapshot cache (env REDIS_URL)")
	pf.StringVar(&flags.metricsAddr, "metrics-addr", "", "status server address, e.g. :9090 (env METRICS_ADDR)")
	pf.StringVar(&flags.logLevel, "log-level", "", "debug, info, warn or error (env LOG_LEVEL)")
	pf.StringVar(&flags.logFormat, "log-format", "", "json or console (env LOG_FORMAT)")
	pf.StringVar(&flags.freezePolicy, "freeze-policy", "", "account or none (env FREEZE_POLICY)")
	pf.IntVar(&flags.maxActiveClients, "max-active-clients", 0, "client workers kept alive (env MAX_ACTIVE_CLIENTS)")

	rootCmd.AddCommand(
		a.processCmd(),
		a.consumeCmd(),
		a.reportCmd(),
		a.generateCmd(),
	)

	return rootCmd
}

func (a *app) init(cmd *cobra.Command, flags flagOverrides) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	changed := cmd.Flags().Changed
	if changed("store-driver") {
		cfg.StoreDriver = flags.storeDriver
	}
	if changed("store-path") {
		cfg.StorePath = flags.storePath
	}
	if changed("database-url") {
		cfg.DatabaseURL = flags.databaseURL
	}
	if changed("redis-url") {
		cfg.RedisURL = flags.redisURL
	}
	if changed("metrics-addr") {
		cfg.MetricsAddr = flags.metricsAddr
	}
	if changed("log-level") {
		cfg.LogLevel = flags.logLevel
	}
	if changed("log-format") {
		cfg.LogFormat = flags.logFormat
	}
	if changed("freeze-policy") {
		cfg.FreezePolicy = flags.freezePolicy
	}
	if changed("max-active-clients") {
		cfg.MaxActiveClients = flags.maxActiveClients
	}

	if !usecase.FreezePolicy(cfg.FreezePolicy).IsValid() {
		return fmt.Errorf("invalid freeze policy %q", cfg.FreezePolicy)
	}

	a.cfg = cfg
	a.logger = logger.New(logger.Config{
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		Output:  a.stderr,
		RunID:   idgen.NewULIDGenerator().Generate(),
		Command: cmd.Name(),
	})

	a.reg = prometheus.NewRegistry()
	a.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.metrics = metrics.New(a.reg)

	return nil
}
