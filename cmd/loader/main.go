// Parquet loader: streams parquet files into a dataset through a pool of
// bulk insert workers. Database settings come from config/<ENV>.yaml.
//
// Usage:
//
//	loader -data-dir /data -dataset places -id-column place_id -workers 8
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/workflows/internal/config"
	dbRedis "github.com/kailas-cloud/workflows/internal/db/redis"
	"github.com/kailas-cloud/workflows/internal/domain/dataset"
	"github.com/kailas-cloud/workflows/internal/domain/document"
	"github.com/kailas-cloud/workflows/internal/loader"
	logpkg "github.com/kailas-cloud/workflows/internal/logger"
	datasetrepo "github.com/kailas-cloud/workflows/internal/repository/dataset"
)

type flags struct {
	dataDir   string
	dataset   string
	idColumn  string
	maxRows   int
	workers   int
	batchSize int
}

func parseFlags() flags {
	f := flags{}
	flag.StringVar(&f.dataDir, "data-dir", "/data", "directory with parquet files")
	flag.StringVar(&f.dataset, "dataset", "", "destination dataset id (default: workflow.dataset from config)")
	flag.StringVar(&f.idColumn, "id-column", "", "column used as document id (empty: generated ids)")
	flag.IntVar(&f.maxRows, "max-rows", 0, "max rows to load (0=unlimited)")
	flag.IntVar(&f.workers, "workers", datasetrepo.DefaultBulkWorkers, "number of parallel insert workers")
	flag.IntVar(&f.batchSize, "batch-size", 100, "documents per insert")
	flag.Parse()
	return f
}

func main() {
	f := parseFlags()
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}
	if f.dataset == "" {
		f.dataset = cfg.Workflow.Dataset
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	if err := run(ctx, cfg, f, logger); err != nil {
		logger.Error("Load failed", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, f flags, logger *zap.Logger) error {
	start := time.Now()

	files, err := loader.Files(f.dataDir)
	if err != nil {
		return err
	}
	logger.Info("Found parquet files", zap.Int("files", len(files)), zap.String("dir", f.dataDir))

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Password: cfg.Database.Password,
	})
	if err != nil {
		return fmt.Errorf("create store: %w", err)
	}
	defer store.Close()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		return fmt.Errorf("database not ready: %w", err)
	}

	repo := datasetrepo.New(store, f.dataset,
		datasetrepo.WithKeyPrefix(cfg.Database.KeyPrefix),
		datasetrepo.WithBulkWorkers(f.workers),
		datasetrepo.WithLogger(logger),
	)

	var total dataset.UpdateResult
	opts := loader.Options{
		IDColumn:  f.idColumn,
		BatchSize: f.batchSize * max(f.workers, 1),
		MaxRows:   f.maxRows,
	}
	rows, err := loader.ReadFiles(ctx, files, opts, func(ctx context.Context, docs document.List) error {
		res, err := repo.BulkInsert(ctx, docs, f.batchSize)
		total.Add(res)
		if err != nil {
			return err
		}
		logger.Debug("Batch loaded", zap.Int("inserted", res.Inserted), zap.Int("failed", len(res.FailedDocuments)))
		return nil
	})
	elapsed := time.Since(start)
	logger.Info("Load finished",
		zap.String("dataset", f.dataset),
		zap.Int("rows", rows),
		zap.Int("inserted", total.Inserted),
		zap.Int("failed", len(total.FailedDocuments)),
		zap.Duration("elapsed", elapsed.Round(time.Second)),
		zap.Float64("rows_per_sec", float64(rows)/elapsed.Seconds()),
	)
	return err
}
