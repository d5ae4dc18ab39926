package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mkuhn/sortmeister/internal/bootstrap"
	"github.com/mkuhn/sortmeister/internal/config"
	"github.com/mkuhn/sortmeister/internal/infrastructure/cache"
	"github.com/mkuhn/sortmeister/internal/observability/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	slog.SetDefault(logging.NewJSONLogger("worker", cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, "worker", cfg)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	if err := app.RetrainUC.Retrain(ctx); err != nil {
		slog.Warn("initial_fit_failed", "error", err)
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", app.SchedulerMetrics.Handler())
	metricsMux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	metricsServer := &http.Server{
		Addr:        ":" + cfg.WorkerMetricsPort,
		Handler:     metricsMux,
		ReadTimeout: 10 * time.Second,
	}

	g, runCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return app.Scheduler.Run(runCtx)
	})

	prefetcher := cache.NewPrefetcher(app.Scheduler, cfg.InboxRoot, time.Duration(cfg.PrefetchIntervalSeconds)*time.Second)
	g.Go(func() error {
		if cfg.InboxRoot != "" {
			slog.Info("prefetch_started", "root", cfg.InboxRoot, "interval_seconds", cfg.PrefetchIntervalSeconds)
		}
		return prefetcher.Run(runCtx)
	})

	g.Go(func() error {
		slog.Info("worker_subscribed", "subject", cfg.NATSSubject)
		debounce := time.Duration(cfg.RetrainDebounceSeconds) * time.Second
		return app.Queue.SubscribeDecisionRecorded(runCtx, func(handlerCtx context.Context, recordID string) error {
			timer := time.NewTimer(debounce)
			defer timer.Stop()
			select {
			case <-handlerCtx.Done():
				return handlerCtx.Err()
			case <-timer.C:
			}

			refitCtx, cancel := context.WithTimeout(handlerCtx, 2*time.Minute)
			defer cancel()

			start := time.Now()
			err := app.RetrainUC.RetrainIfStale(refitCtx)
			app.SchedulerMetrics.RetrainFinished(time.Since(start), app.Classifier.TrainingCount(), err)
			return err
		})
	})

	g.Go(func() error {
		slog.Info("worker_metrics_listening", "port", cfg.WorkerMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-runCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return metricsServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("worker error: %v", err)
	}
}
