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

	httpadapter "github.com/mkuhn/sortmeister/internal/adapters/http"
	"github.com/mkuhn/sortmeister/internal/bootstrap"
	"github.com/mkuhn/sortmeister/internal/config"
	"github.com/mkuhn/sortmeister/internal/observability/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	slog.SetDefault(logging.NewJSONLogger("api", cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, "api", cfg)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	// Fit from recorded history before serving so restarts keep their
	// learned behavior.
	if err := app.RetrainUC.Retrain(ctx); err != nil {
		slog.Warn("initial_fit_failed", "error", err)
	}

	go func() {
		if err := app.Scheduler.Run(ctx); err != nil {
			slog.Error("scheduler_stopped", "error", err)
		}
	}()
	go subscribeRetrain(ctx, app)

	router := httpadapter.NewRouter(app.Scheduler, app.DecisionUC, app.HTTPMetrics).Handler()
	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("api_listening", "port", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("api server error: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("api_shutdown_error", "error", err)
	}
}

// subscribeRetrain keeps the in-process classifier current. The staleness
// check inside RetrainIfStale collapses decision bursts into one refit.
func subscribeRetrain(ctx context.Context, app *bootstrap.App) {
	debounce := time.Duration(app.Config.RetrainDebounceSeconds) * time.Second
	err := app.Queue.SubscribeDecisionRecorded(ctx, func(handlerCtx context.Context, recordID string) error {
		timer := time.NewTimer(debounce)
		defer timer.Stop()
		select {
		case <-handlerCtx.Done():
			return handlerCtx.Err()
		case <-timer.C:
		}

		refitCtx, cancel := context.WithTimeout(handlerCtx, 2*time.Minute)
		defer cancel()
		return app.RetrainUC.RetrainIfStale(refitCtx)
	})
	if err != nil && ctx.Err() == nil {
		slog.Error("retrain_subscription_failed", "error", err)
	}
}
