package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	httpAdapter "github.com/iho/paymentsengine/internal/adapter/http"
	"github.com/iho/paymentsengine/internal/adapter/http/handler"
	"github.com/iho/paymentsengine/internal/adapter/ingress"
	"github.com/iho/paymentsengine/internal/adapter/report"
	"github.com/iho/paymentsengine/internal/domain"
	"github.com/iho/paymentsengine/internal/generator"
	"github.com/iho/paymentsengine/internal/usecase"
)

// defaultGeneratedFile is where generate writes when --out is not given.
const defaultGeneratedFile = "generated.csv"

func (a *app) processCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "process <file.csv>",
		Short: "Apply a CSV file of events and print the final balances",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runProcess(cmd.Context(), args[0])
		},
	}
}

func (a *app) consumeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "consume",
		Short: "Apply events from Kafka until interrupted, then print the final balances",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runConsume(cmd.Context())
		},
	}
}

func (a *app) reportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "report",
		Short: "Print the balances held in the ledger store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, closeStore, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()

			return report.WriteStore(cmd.Context(), a.stdout, store)
		},
	}
}

func (a *app) generateCmd() *cobra.Command {
	var (
		out  string
		seed uint64
	)

	cmd := &cobra.Command{
		Use:   "generate <count>",
		Short: "Write a random but internally consistent CSV of events",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			count, err := strconv.Atoi(args[0])
			if err != nil || count < 0 {
				return fmt.Errorf("invalid count %q", args[0])
			}
			return a.runGenerate(cmd.Context(), count, out, seed)
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", defaultGeneratedFile, "output file")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "random seed; 0 picks one at random")

	return cmd
}

func (a *app) runProcess(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	stopServer := a.startStatusServer(store)
	defer stopServer()

	source := ingress.NewCSVSource(bufio.NewReader(f))
	if _, err := a.ingest(ctx, store, source.Stream); err != nil {
		return err
	}

	return report.WriteStore(context.WithoutCancel(ctx), a.stdout, store)
}

func (a *app) runConsume(ctx context.Context) error {
	reader, err := ingress.NewKafkaReader(ingress.KafkaConfig{
		Brokers: a.cfg.KafkaBrokers,
		Topic:   a.cfg.KafkaTopic,
		GroupID: a.cfg.KafkaGroupID,
	})
	if err != nil {
		return err
	}

	source := ingress.NewKafkaSource(reader, a.logger)
	defer func() {
		if err := source.Close(); err != nil {
			a.logger.Error().Err(err).Msg("failed to close kafka reader")
		}
	}()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	stopServer := a.startStatusServer(store)
	defer stopServer()

	a.logger.Info().
		Strs("brokers", a.cfg.KafkaBrokers).
		Str("topic", a.cfg.KafkaTopic).
		Msg("consuming events")

	// On failure offsets stay uncommitted and the events are redelivered;
	// replays of already applied events are rejected as duplicates.
	if _, err := a.ingest(ctx, store, source.Stream); err != nil {
		return err
	}

	bg := context.WithoutCancel(ctx)
	if err := source.Commit(bg); err != nil {
		return fmt.Errorf("commit offsets: %w", err)
	}
	if skipped := source.Skipped(); skipped > 0 {
		a.logger.Warn().Int64("skipped", skipped).Msg("undecodable messages skipped")
	}

	return report.WriteStore(bg, a.stdout, store)
}

func (a *app) runGenerate(ctx context.Context, count int, out string, seed uint64) error {
	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	defer f.Close()

	opts := generator.Options{}
	if seed != 0 {
		opts.Rand = rand.New(rand.NewPCG(seed, seed))
	}

	w := ingress.NewCSVWriter(f)
	summary, err := generator.Generate(ctx, count, w, opts)
	if err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}

	a.logger.Info().
		Str("out", out).
		Int("events", summary.Events).
		Int("accepted", summary.Accepted).
		Int("rejected", summary.Rejected).
		Int("clients", summary.Clients).
		Msg("events generated")

	return f.Close()
}

type streamFunc func(ctx context.Context, out chan<- domain.Event) error

// ingest feeds the source into a dispatcher. Cancelling ctx only stops the
// source: every event it already handed over is applied before ingest
// returns.
func (a *app) ingest(ctx context.Context, store usecase.LedgerStore, stream streamFunc) (usecase.RunStats, error) {
	sourceCtx, stopSource := context.WithCancel(ctx)
	defer stopSource()

	events := make(chan domain.Event, a.cfg.IngressBufferSize)
	sourceErr := make(chan error, 1)
	go func() {
		defer close(events)
		sourceErr <- stream(sourceCtx, events)
	}()

	dispatcher := usecase.NewDispatcher(store, usecase.DispatcherOptions{
		MailboxSize:      a.cfg.MailboxSize,
		MaxActiveClients: a.cfg.MaxActiveClients,
		FreezePolicy:     usecase.FreezePolicy(a.cfg.FreezePolicy),
		Logger:           a.logger,
		Metrics:          a.metrics,
	})

	stats, err := dispatcher.Run(context.WithoutCancel(ctx), events)
	stopSource()
	readErr := <-sourceErr
	stats.Interrupted = ctx.Err() != nil

	if err != nil {
		a.logger.Error().Err(err).Int64("events", stats.Events).Msg("ingestion halted")
		return stats, err
	}
	if readErr != nil {
		return stats, fmt.Errorf("read events: %w", readErr)
	}

	event := a.logger.Info()
	if stats.Interrupted {
		event = a.logger.Warn()
	}
	event.
		Int64("events", stats.Events).
		Int64("accepted", stats.Accepted).
		Int64("rejected", stats.Rejected).
		Int("clients", stats.Clients).
		Bool("interrupted", stats.Interrupted).
		Msg("ingestion finished")

	return stats, nil
}

// startStatusServer serves health, metrics and read-only balances on
// METRICS_ADDR. It is a no-op when the address is empty.
func (a *app) startStatusServer(store ledgerStore) (stop func()) {
	if a.cfg.MetricsAddr == "" {
		return func() {}
	}

	router := httpAdapter.NewRouter(httpAdapter.RouterConfig{
		ClientHandler: handler.NewClientHandler(store),
		HealthHandler: handler.NewHealthHandler(store),
		Logger:        a.logger,
		Metrics:       a.metrics,
		Gatherer:      a.reg,
	})

	server := &http.Server{
		Addr:         a.cfg.MetricsAddr,
		Handler:      router,
		ReadTimeout:  a.cfg.HTTPReadTimeout,
		WriteTimeout: a.cfg.HTTPWriteTimeout,
	}

	go func() {
		a.logger.Info().Str("addr", a.cfg.MetricsAddr).Msg("starting status server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error().Err(err).Msg("status server failed")
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTPShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			a.logger.Error().Err(err).Msg("status server forced to shutdown")
		}
	}
}
