// Package bootstrap wires the infrastructure to the core use cases for both
// processes. The API serves suggestion and decision requests; the worker owns
// the analysis pool and classifier retraining.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/mkuhn/sortmeister/internal/classifier/tfidf"
	"github.com/mkuhn/sortmeister/internal/config"
	"github.com/mkuhn/sortmeister/internal/core/usecase"
	"github.com/mkuhn/sortmeister/internal/infrastructure/cache"
	"github.com/mkuhn/sortmeister/internal/infrastructure/extractor/pdfextract"
	"github.com/mkuhn/sortmeister/internal/infrastructure/foldertree/localfs"
	"github.com/mkuhn/sortmeister/internal/infrastructure/llm/openai"
	"github.com/mkuhn/sortmeister/internal/infrastructure/queue/nats"
	"github.com/mkuhn/sortmeister/internal/infrastructure/repository/postgres"
	"github.com/mkuhn/sortmeister/internal/infrastructure/resilience"
	"github.com/mkuhn/sortmeister/internal/observability/metrics"
)

type App struct {
	Config config.Config

	Queue      *nats.Queue
	Classifier *tfidf.Classifier
	Scheduler  *cache.Scheduler

	SuggestUC  *usecase.SuggestUseCase
	DecisionUC *usecase.RecordDecisionUseCase
	RetrainUC  *usecase.RetrainUseCase

	HTTPMetrics      *metrics.HTTPServerMetrics
	SchedulerMetrics *metrics.SchedulerMetrics

	closeFn func()
}

func New(ctx context.Context, service string, cfg config.Config) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	historyRepo := postgres.NewHistoryRepository(db)
	if err := historyRepo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure history schema: %w", err)
	}
	cacheRepo := postgres.NewCacheRepository(db)
	if err := cacheRepo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure cache schema: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig())

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		Group:              service,
		ResilienceExecutor: executor,
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	tree := localfs.NewWithDepth(cfg.FilingRoot, cfg.FolderMaxDepth)
	extractor := pdfextract.New()
	classifier := tfidf.New(cfg.SuggestionTopK)
	external := openai.New(openai.Options{
		BaseURL:     cfg.ExternalBaseURL,
		APIKey:      cfg.ExternalAPIKey,
		Model:       cfg.ExternalModel,
		MaxChars:    cfg.ExternalMaxChars,
		CallTimeout: time.Duration(cfg.ExternalTimeoutSeconds) * time.Second,
		CallsPerMin: cfg.ExternalCallsPerMin,
		Executor:    executor,
	})

	resolver := usecase.NewPathResolver(tree, cfg.MinPathRelevance)
	suggestUC := usecase.NewSuggestUseCase(
		classifier,
		external,
		resolver,
		historyRepo,
		tree,
		cfg.EscalationThreshold,
		cfg.SuggestionTopK,
	)
	analyzeUC := usecase.NewAnalyzeDocumentUseCase(extractor, suggestUC)

	schedulerMetrics := metrics.NewSchedulerMetrics(service)
	suggestUC.SetEscalationObserver(schedulerMetrics.RecordEscalation)
	scheduler := cache.NewScheduler(analyzeUC.Analyze, extractor, cacheRepo, cfg.AnalysisWorkers, schedulerMetrics)

	decisionUC := usecase.NewRecordDecisionUseCase(extractor, historyRepo, tree, queue, cacheRepo)
	retrainUC := usecase.NewRetrainUseCase(historyRepo, classifier)

	return &App{
		Config: cfg,

		Queue:      queue,
		Classifier: classifier,
		Scheduler:  scheduler,

		SuggestUC:  suggestUC,
		DecisionUC: decisionUC,
		RetrainUC:  retrainUC,

		HTTPMetrics:      metrics.NewHTTPServerMetrics(service),
		SchedulerMetrics: schedulerMetrics,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
