package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/document-analyzer/internal/config"
	"github.com/kirillkom/document-analyzer/internal/core/domain"
	"github.com/kirillkom/document-analyzer/internal/core/ports"
	"github.com/kirillkom/document-analyzer/internal/core/usecase"
	"github.com/kirillkom/document-analyzer/internal/infrastructure/extractor/pdftext"
	"github.com/kirillkom/document-analyzer/internal/infrastructure/llm"
	"github.com/kirillkom/document-analyzer/internal/infrastructure/queue/nats"
	"github.com/kirillkom/document-analyzer/internal/infrastructure/ratelimit"
	"github.com/kirillkom/document-analyzer/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/document-analyzer/internal/infrastructure/resilience"
	"github.com/kirillkom/document-analyzer/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/document-analyzer/internal/infrastructure/storage/minio"
)

type RateLimiter interface {
	Allow(ctx context.Context, key string) bool
}

// Observer receives completion latency plus retry and breaker activity of
// every outbound call.
type Observer interface {
	llm.CompletionObserver
	resilience.Observer
}

type App struct {
	Config config.Config

	Queue     *nats.Queue
	Analyzer  *usecase.AnalyzeDocumentUseCase
	History   *usecase.AnalysisHistoryUseCase
	Scheduler *usecase.ReanalysisScheduleUseCase

	closeFns []func()
}

// New wires the pipeline shared by the api and worker processes. observer
// may be nil.
func New(ctx context.Context, cfg config.Config, observer Observer) (*App, error) {
	app := &App{Config: cfg}
	ready := false
	defer func() {
		if !ready {
			app.Close()
		}
	}()

	db, closeDB, err := postgres.OpenDB(ctx, postgres.PoolConfig{
		DSN:      cfg.PostgresDSN,
		MaxConns: int32(cfg.DBMaxConns),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	app.closeFns = append(app.closeFns, closeDB)

	repo := postgres.NewAnalysisRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	storage, err := newObjectStorage(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	var executorOpts []resilience.Option
	var completionObserver llm.CompletionObserver
	if observer != nil {
		executorOpts = append(executorOpts, resilience.WithObserver(observer))
		completionObserver = observer
	}
	completionTimeout := time.Duration(cfg.LLMTimeoutSeconds) * time.Second

	queue, err := nats.NewWithOptions(cfg.NATSURL, nats.Subjects{
		Reanalysis: cfg.NATSReanalysisSubject,
		Events:     cfg.NATSEventsSubject,
	}, nats.Options{
		ResilienceExecutor: resilience.NewExecutor(resilience.PublishPolicy(), executorOpts...),
		HandlerTimeout:     completionTimeout + 30*time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}
	app.Queue = queue
	app.closeFns = append(app.closeFns, queue.Close)

	temperature := cfg.LLMTemperature
	provider, providerID, err := llm.NewProvider(llm.Settings{
		Provider:    cfg.LLMProvider,
		ForceError:  cfg.LLMForceError,
		BaseURL:     cfg.OpenAIBaseURL,
		APIKey:      cfg.OpenAIAPIKey,
		Model:       cfg.LLMModel,
		Temperature: &temperature,
		Executor: resilience.NewExecutor(
			resilience.CompletionPolicy(cfg.LLMRetryMaxAttempts, cfg.LLMBreakerEnabled),
			executorOpts...,
		),
	})
	if err != nil {
		return nil, fmt.Errorf("init completion provider: %w", err)
	}
	provider = llm.Instrument(providerID, provider, completionObserver)

	app.Analyzer = usecase.NewAnalyzeDocumentUseCase(
		repo,
		pdftext.NewExtractor(),
		provider,
		storage,
		queue,
		domain.AnalysisSettings{
			PromptVersion:     cfg.PromptVersion,
			Model:             cfg.LLMModel,
			Temperature:       &temperature,
			CompletionTimeout: completionTimeout,
		},
	)
	app.History = usecase.NewAnalysisHistoryUseCase(repo, storage)
	app.Scheduler = usecase.NewReanalysisScheduleUseCase(repo, queue)

	slog.InfoContext(ctx, "bootstrap_ready",
		"llm_provider", providerID,
		"storage_backend", cfg.StorageBackend,
		"prompt_version", cfg.PromptVersion,
	)
	ready = true
	return app, nil
}

func newObjectStorage(ctx context.Context, cfg config.Config) (ports.ObjectStorage, error) {
	switch cfg.StorageBackend {
	case "minio":
		return minio.New(ctx, minio.Config{
			Endpoint:  cfg.MinIOEndpoint,
			AccessKey: cfg.MinIOAccessKey,
			SecretKey: cfg.MinIOSecretKey,
			Bucket:    cfg.MinIOBucket,
			UseSSL:    cfg.MinIOUseSSL,
		})
	case "", "localfs":
		return localfs.New(cfg.StoragePath)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

// NewRateLimiter builds the per-user limiter of the api process. It prefers
// the shared Redis window and falls back to per-process buckets; a zero
// limit disables limiting and returns a nil limiter. The returned func
// releases the limiter and is never nil.
func NewRateLimiter(cfg config.Config) (RateLimiter, func(), error) {
	if cfg.RateLimitPerMinute <= 0 {
		return nil, func() {}, nil
	}
	if cfg.RedisAddr == "" {
		local := ratelimit.NewLocalLimiter(cfg.RateLimitPerMinute)
		return local, local.Close, nil
	}
	limiter, err := ratelimit.NewRedisFixedWindowLimiter(cfg.RedisAddr, cfg.RedisPassword, "", cfg.RateLimitPerMinute, time.Minute)
	if err != nil {
		return nil, func() {}, err
	}
	return limiter, func() { _ = limiter.Close() }, nil
}

func (a *App) Close() {
	for i := len(a.closeFns) - 1; i >= 0; i-- {
		a.closeFns[i]()
	}
	a.closeFns = nil
}
