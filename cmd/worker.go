/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/trckr/apiserver/config"
	"github.com/trckr/apiserver/internal/db"
	"github.com/trckr/apiserver/internal/events"
	"github.com/trckr/apiserver/internal/logger"
	"github.com/trckr/apiserver/internal/metrics"
	"github.com/trckr/apiserver/internal/mq"
	"github.com/trckr/apiserver/internal/services"
	"github.com/trckr/apiserver/internal/storage"
	"github.com/trckr/apiserver/internal/store"
)

var workerMetricsAddr string

// workerCmd consumes workout events and archives daily summaries.
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Archives daily summaries from workout events",
	Long: `Subscribes to workout events and rewrites the affected daily summaries
in object storage. Requires MQ_BACKEND and STORAGE_BACKEND. Usage:

	trckr worker --metrics-addr :9091
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()

		log, err := logger.New(cfg)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		defer func() { _ = log.Sync() }()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return runWorker(ctx, cfg, log)
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
	workerCmd.Flags().StringVar(&workerMetricsAddr, "metrics-addr", ":9091", "address serving /metrics; empty disables it")
}

func runWorker(ctx context.Context, cfg config.Config, log *zap.Logger) error {
	queue, err := mq.NewFromConfig(ctx, cfg.MQ)
	if err != nil {
		return fmt.Errorf("init mq: %w", err)
	}
	if queue == nil {
		return errors.New("worker requires MQ_BACKEND")
	}
	defer func() { _ = queue.Close() }()

	objects, err := storage.NewFromConfig(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	if objects == nil {
		return errors.New("worker requires STORAGE_BACKEND")
	}
	defer func() { _ = objects.Close() }()

	collector := metrics.New()
	manager := db.NewManager(db.PostgresDialer(cfg.Database), cfg.Timeouts,
		db.WithLogger(log),
		db.WithObserver(collector),
	)
	defer func() { _ = manager.Close() }()

	clock := services.NewClock(cfg.Location())
	workoutRepo := store.NewWorkoutRepository(manager)
	progressService := services.NewProgressService(workoutRepo, store.NewGoalRepository(manager), clock)
	archiveService := services.NewArchiveService(progressService, workoutRepo, objects, clock, collector, log)
	consumer := events.NewConsumer(queue, cfg.MQ.Channel, archiveService.HandleEvent, log, collector)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := consumer.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	if workerMetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", collector.Handler())
		metricsServer := &http.Server{Addr: workerMetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

		g.Go(func() error {
			log.Info("worker metrics listening", zap.String("addr", workerMetricsAddr))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return metricsServer.Shutdown(shutdownCtx)
		})
	}

	return g.Wait()
}
