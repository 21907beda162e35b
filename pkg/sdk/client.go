package workflows

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/workflows/internal/db"
	dbRedis "github.com/kailas-cloud/workflows/internal/db/redis"
	"github.com/kailas-cloud/workflows/internal/domain/job"
	"github.com/kailas-cloud/workflows/internal/engine"
	datasetrepo "github.com/kailas-cloud/workflows/internal/repository/dataset"
	jobrepo "github.com/kailas-cloud/workflows/internal/repository/job"
	"github.com/kailas-cloud/workflows/internal/repository/memory"
	"github.com/kailas-cloud/workflows/internal/workflow"
)

const (
	defaultReadinessTimeout = 10 * time.Second
	defaultKeyPrefix        = "workflows:"
)

// Внутренние интерфейсы для подмены в тестах.
type jobStore interface {
	workflow.Reporter
	engine.ProgressReporter
	Get(ctx context.Context, jobID string) (job.Record, error)
}

// RemoteDataset is a dataset that also accepts fan-out inserts.
type RemoteDataset interface {
	Dataset
	Inserter
}

// Client is the SDK entry point. It hands out datasets and reports workflow
// status to job records in the same backend.
type Client struct {
	store   db.Store
	jobs    jobStore
	open    func(id string) RemoteDataset
	bulk    func(ctx context.Context, id string, docs List, chunkSize int) (UpdateResult, error)
	obs     *observer
	zap     *zap.Logger
	cleanup func()
}

// New creates a Client and connects to the database.
// The provided context is used for the initial readiness check.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := newClientConfig(opts)
	if len(cfg.addrs) == 0 {
		return nil, errors.New("workflows: database address required (use WithValkey or WithRedis)")
	}

	store, err := createStore(cfg)
	if err != nil {
		return nil, err
	}

	if err := store.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
		store.Close()
		return nil, fmt.Errorf("workflows: database not ready: %w", err)
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		store.Close()
		return nil, err
	}
	return wireClient(store, cfg, obs), nil
}

// NewInMemory creates a Client whose datasets and job records live in
// process memory. Datasets are created on first use.
func NewInMemory(opts ...Option) (*Client, error) {
	cfg := newClientConfig(opts)
	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}
	reg := memory.NewRegistry()
	return &Client{
		jobs: memory.NewJobs(),
		open: func(id string) RemoteDataset { return reg.Dataset(id) },
		bulk: func(ctx context.Context, id string, docs List, _ int) (UpdateResult, error) {
			return reg.Dataset(id).Insert(ctx, docs)
		},
		obs:     obs,
		zap:     cfg.zapLogger,
		cleanup: func() {},
	}, nil
}

func newClientConfig(opts []Option) *clientConfig {
	cfg := &clientConfig{keyPrefix: defaultKeyPrefix}
	for _, o := range opts {
		o.apply(cfg)
	}
	if cfg.zapLogger == nil {
		cfg.zapLogger = zap.NewNop()
	}
	return cfg
}

func createStore(cfg *clientConfig) (*dbRedis.Store, error) {
	switch cfg.driver {
	case "valkey", "redis":
		s, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.addrs,
			Password: cfg.password,
		})
		if err != nil {
			return nil, fmt.Errorf("workflows: create %s store: %w", cfg.driver, err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("workflows: unknown driver %q", cfg.driver)
	}
}

func wireClient(store *dbRedis.Store, cfg *clientConfig, obs *observer) *Client {
	dsOpts := []datasetrepo.Option{
		datasetrepo.WithKeyPrefix(cfg.keyPrefix),
		datasetrepo.WithLogger(cfg.zapLogger),
	}
	if cfg.scanSize > 0 {
		dsOpts = append(dsOpts, datasetrepo.WithScanSize(cfg.scanSize))
	}
	if cfg.bulkWorkers > 0 {
		dsOpts = append(dsOpts, datasetrepo.WithBulkWorkers(cfg.bulkWorkers))
	}

	return &Client{
		store: store,
		jobs:  jobrepo.New(store, jobrepo.WithKeyPrefix(cfg.keyPrefix)),
		open: func(id string) RemoteDataset {
			return datasetrepo.New(store, id, dsOpts...)
		},
		bulk: func(ctx context.Context, id string, docs List, chunkSize int) (UpdateResult, error) {
			return datasetrepo.New(store, id, dsOpts...).BulkInsert(ctx, docs, chunkSize)
		},
		obs:     obs,
		zap:     cfg.zapLogger,
		cleanup: store.Close,
	}
}

// Close releases all resources.
func (c *Client) Close() {
	if c.cleanup != nil {
		c.cleanup()
	}
}

// Ping checks database connectivity. In-memory clients always succeed.
func (c *Client) Ping(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("ping", start, err) }()

	if c.store == nil {
		return nil
	}
	if err = c.store.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Dataset returns a handle on the dataset with the given id.
func (c *Client) Dataset(id string) RemoteDataset {
	return c.open(id)
}

// Destinations resolves fan-out destinations to datasets of this client.
func (c *Client) Destinations() DestinationResolver {
	return func(_ context.Context, id string) (engine.Inserter, error) {
		return c.open(id), nil
	}
}

// BulkInsert writes docs into a dataset in chunks of chunkSize. Documents
// without an id get a random one.
func (c *Client) BulkInsert(ctx context.Context, datasetID string, docs List, chunkSize int) (res UpdateResult, err error) {
	start := time.Now()
	defer func() { c.obs.observe("bulk_insert", start, err) }()

	res, err = c.bulk(ctx, datasetID, docs, chunkSize)
	if err != nil {
		return res, fmt.Errorf("bulk insert %s: %w", datasetID, err)
	}
	return res, nil
}

// Job returns the status record of a workflow run.
func (c *Client) Job(ctx context.Context, jobID string) (rec JobRecord, err error) {
	start := time.Now()
	defer func() { c.obs.observe("job", start, err) }()

	rec, err = c.jobs.Get(ctx, jobID)
	if err != nil {
		return JobRecord{}, fmt.Errorf("job %s: %w", jobID, err)
	}
	return rec, nil
}

// Progress makes an engine report its progress to jobID under step.
func (c *Client) Progress(jobID, step string) EngineOption {
	return engine.WithProgress(c.jobs, jobID, step)
}

// Output returns the documents a dense engine wrote to a destination,
// for in-memory clients only.
func (c *Client) Output(datasetID string) (List, bool) {
	ds, ok := c.open(datasetID).(*memory.Dataset)
	if !ok {
		return nil, false
	}
	return ds.Snapshot(), true
}
