package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/workflows/internal/config"
	dbRedis "github.com/kailas-cloud/workflows/internal/db/redis"
	"github.com/kailas-cloud/workflows/internal/domain"
	"github.com/kailas-cloud/workflows/internal/domain/document"
	"github.com/kailas-cloud/workflows/internal/engine"
	logpkg "github.com/kailas-cloud/workflows/internal/logger"
	"github.com/kailas-cloud/workflows/internal/metrics"
	"github.com/kailas-cloud/workflows/internal/operator"
	datasetrepo "github.com/kailas-cloud/workflows/internal/repository/dataset"
	"github.com/kailas-cloud/workflows/internal/repository/embcache"
	jobrepo "github.com/kailas-cloud/workflows/internal/repository/job"
	"github.com/kailas-cloud/workflows/internal/repository/memory"
	chiTransport "github.com/kailas-cloud/workflows/internal/transport/chi"
	openaiEmb "github.com/kailas-cloud/workflows/internal/transport/openai"
	"github.com/kailas-cloud/workflows/internal/version"
	"github.com/kailas-cloud/workflows/internal/workflow"
)

// jobStore is what the runner needs from a status backend.
type jobStore interface {
	workflow.Reporter
	engine.ProgressReporter
	chiTransport.JobReader
}

// dataset is a source dataset that can also be measured by the coverage poller.
type dataset interface {
	engine.Dataset
	workflow.Counter
}

// backend bundles the collaborators a driver provides.
type backend struct {
	source       dataset
	jobs         jobStore
	destinations engine.DestinationResolver
	pinger       chiTransport.Pinger
	cache        *dbRedis.Store
	close        func()
}

func main() {
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	if cfg.Workflow.JobID == "" {
		cfg.Workflow.JobID = uuid.New().String()
	}

	logger.Info("Starting workflow runner",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.String("workflow", cfg.Workflow.Name),
		zap.String("job_id", cfg.Workflow.JobID),
		zap.String("dataset", cfg.Workflow.Dataset),
		zap.String("engine", cfg.Engine.Type),
		zap.String("db_driver", cfg.Database.Driver),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("Workflow failed", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
	logger.Info("Workflow finished")
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	metrics.RegisterEngineMetrics()
	metrics.RegisterEmbeddingMetrics()

	be, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer be.close()

	srv := startStatusServer(cfg, be, logger)
	defer shutdownStatusServer(srv, cfg, logger)

	op, err := buildOperator(cfg, be, logger)
	if err != nil {
		return err
	}

	eng, err := buildEngine(cfg, be, op, logger)
	if err != nil {
		return err
	}

	opts := []workflow.Option{
		workflow.WithJobID(cfg.Workflow.JobID),
		workflow.WithName(cfg.Workflow.Name),
		workflow.WithLogger(logger),
	}
	if cfg.Workflow.SuppressUserErrors {
		opts = append(opts, workflow.WithSuppressUserErrors())
	}
	if p := cfg.Workflow.Polling; p.Enabled {
		opts = append(opts, workflow.WithPoller(workflow.NewPoller(be.source, workflow.PollerConfig{
			MinCoverage: p.MinCoverage,
			Interval:    time.Duration(p.IntervalSec) * time.Second,
			Timeout:     time.Duration(p.TimeoutSec) * time.Second,
			Logger:      logger,
		})))
	}

	wf, err := workflow.New(eng, be.jobs, opts...)
	if err != nil {
		return fmt.Errorf("create workflow: %w", err)
	}
	return wf.Run(ctx)
}

func openBackend(ctx context.Context, cfg config.Config, logger *zap.Logger) (*backend, error) {
	switch cfg.Database.Driver {
	case "memory":
		reg := memory.NewRegistry()
		return &backend{
			source: reg.Dataset(cfg.Workflow.Dataset),
			jobs:   memory.NewJobs(),
			destinations: func(_ context.Context, id string) (engine.Inserter, error) {
				return reg.Dataset(id), nil
			},
			close: func() {},
		}, nil
	case "valkey", "redis":
		store, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Database.Addrs,
			Password: cfg.Database.Password,
		})
		if err != nil {
			return nil, fmt.Errorf("create %s store: %w", cfg.Database.Driver, err)
		}
		timeout := time.Duration(cfg.Database.ReadinessTimeout) * time.Second
		if err := store.WaitForReady(ctx, timeout); err != nil {
			store.Close()
			return nil, fmt.Errorf("database not ready: %w", err)
		}
		logger.Info("Connected to database", zap.Strings("addrs", cfg.Database.Addrs))

		dsOpts := []datasetrepo.Option{
			datasetrepo.WithKeyPrefix(cfg.Database.KeyPrefix),
			datasetrepo.WithLogger(logger),
		}
		return &backend{
			source: datasetrepo.New(store, cfg.Workflow.Dataset, dsOpts...),
			jobs:   jobrepo.New(store, jobrepo.WithKeyPrefix(cfg.Database.KeyPrefix)),
			destinations: func(_ context.Context, id string) (engine.Inserter, error) {
				return datasetrepo.New(store, id, dsOpts...), nil
			},
			pinger: store,
			cache:  store,
			close:  store.Close,
		}, nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
}

// buildOperator assembles the embedder chain (OpenAI -> Cached) and the vectorize operator.
func buildOperator(cfg config.Config, be *backend, logger *zap.Logger) (*operator.Vectorize, error) {
	var emb domain.Embedder = openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Provider:   "openai",
		Logger:     logger,
	})
	if cfg.Embedding.Cache && be.cache != nil {
		emb = embcache.New(emb, be.cache, embcache.Config{
			KeyPrefix: cfg.Database.KeyPrefix,
			Model:     cfg.Embedding.Model,
			TTL:       time.Duration(cfg.Embedding.CacheTTLSec) * time.Second,
		}, metrics.EmbeddingCacheTotal, logger)
	}
	op, err := operator.NewVectorize(emb, operator.VectorizeConfig{
		Field:       cfg.Embedding.SourceField,
		Model:       cfg.Embedding.Model,
		Instruction: cfg.Embedding.Instruction,
		BatchSize:   cfg.Embedding.ChunkSize,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create operator: %w", err)
	}
	return op, nil
}

// buildEngine maps the engine section onto engine options and picks the variant.
func buildEngine(cfg config.Config, be *backend, op *operator.Vectorize, logger *zap.Logger) (*engine.Engine, error) {
	ec := cfg.Engine
	opts := []engine.Option{
		engine.WithPullChunkSize(ec.PullChunkSize),
		engine.WithTransformChunkSize(ec.TransformChunkSize),
		engine.WithTransformThreshold(ec.TransformThreshold),
		engine.WithDocumentLimit(ec.DocumentLimit),
		engine.WithLimit(ec.Limit),
		engine.WithRefresh(ec.Refresh),
		engine.WithCheckMissingFields(*ec.CheckMissingFields),
		engine.WithWorker(cfg.Workflow.WorkerNumber, cfg.Workflow.TotalWorkers),
		engine.WithRetry(ec.MaxRetries, time.Duration(ec.RetryDelaySec*float64(time.Second))),
		engine.WithIngestInBackground(ec.IngestInBackground),
		engine.WithProgress(be.jobs, cfg.Workflow.JobID, cfg.Workflow.Name),
		engine.WithDestinations(be.destinations),
		engine.WithLogger(logger),
	}
	if len(ec.SelectFields) > 0 {
		opts = append(opts, engine.WithSelectFields(ec.SelectFields...))
	}
	if ec.IncludeVector != nil {
		opts = append(opts, engine.WithIncludeVector(*ec.IncludeVector))
	}
	if ec.OutputToStatus {
		opts = append(opts, engine.WithOutputToStatus())
	}

	switch ec.Type {
	case engine.VariantStable:
		return engine.NewStable(be.source, op, opts...)
	case engine.VariantSmallBatch:
		return engine.NewSmallBatch(be.source, op, opts...)
	case engine.VariantMultiPass:
		return engine.NewMultiPass(be.source, []operator.Operator{op}, opts...)
	case engine.VariantDenseOutput:
		return engine.NewDenseOutput(be.source, denseVectors(op, cfg.Workflow.Dataset+"_vectors"), opts...)
	case engine.VariantInMemory:
		return engine.NewInMemory(be.source, op, opts...)
	default:
		return nil, fmt.Errorf("unknown engine type %q", ec.Type)
	}
}

// denseVectors routes the vectorized documents to a separate destination dataset.
func denseVectors(op *operator.Vectorize, destination string) *operator.DenseFunc {
	return operator.NewDenseFunc(op.Name()+"_dense",
		func(ctx context.Context, docs document.List) (map[string]document.List, error) {
			out, err := op.Transform(ctx, docs)
			if err != nil {
				return nil, err
			}
			return map[string]document.List{destination: out}, nil
		},
		operator.WithFields(op.Fields().Input, []string{destination}),
	)
}

func startStatusServer(cfg config.Config, be *backend, logger *zap.Logger) *http.Server {
	if cfg.HTTP.Port == 0 {
		return nil
	}
	server := chiTransport.NewServer(be.jobs, be.pinger, logger)
	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      chiTransport.NewRouter(server, cfg.HTTP.APIKeys, logger),
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}
	go func() {
		logger.Info("Starting status API", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Status API error", zap.Error(err))
		}
	}()
	return srv
}

func shutdownStatusServer(srv *http.Server, cfg config.Config, logger *zap.Logger) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Error during status API shutdown", zap.Error(err))
	}
}
