package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/workflows/internal/domain"
	"github.com/kailas-cloud/workflows/internal/domain/job"
	"github.com/kailas-cloud/workflows/internal/logger"
)

// Workflow runs one engine under a remote job: it reports in-progress,
// applies the engine, and reports complete or failed with run metadata.
type Workflow struct {
	engine   Engine
	reporter Reporter
	cfg      config
	logger   *zap.Logger
	ran      bool
}

// New creates a workflow.
func New(e Engine, r Reporter, opts ...Option) (*Workflow, error) {
	if e == nil {
		return nil, fmt.Errorf("engine is required: %w", domain.ErrInvalidConfig)
	}
	if r == nil {
		return nil, fmt.Errorf("reporter is required: %w", domain.ErrInvalidConfig)
	}
	cfg := config{registerLineage: true}
	for _, o := range opts {
		o.apply(&cfg)
	}
	if cfg.jobID == "" {
		cfg.jobID = uuid.New().String()
	}
	if cfg.name == "" {
		cfg.name = "workflow"
	}
	if cfg.timer == nil {
		cfg.timer = NewTimer(nil)
	}
	return &Workflow{
		engine:   e,
		reporter: r,
		cfg:      cfg,
		logger:   logger.ForJob(cfg.logger, cfg.jobID, cfg.name),
	}, nil
}

// JobID returns the remote job id.
func (w *Workflow) JobID() string { return w.cfg.jobID }

// Name returns the workflow name.
func (w *Workflow) Name() string { return w.cfg.name }

// Run executes the workflow once.
func (w *Workflow) Run(ctx context.Context) error {
	if w.ran {
		return fmt.Errorf("workflow %s: %w", w.cfg.jobID, domain.ErrEngineConsumed)
	}
	w.ran = true

	ctx, usage := domain.ContextWithUsage(ctx)
	ctx = logger.ContextWithLogger(ctx, w.logger)
	w.cfg.timer.Start()

	if w.cfg.registerLineage {
		if err := w.reporter.RegisterLineage(ctx, w.cfg.jobID, w.engine.Lineage()); err != nil {
			w.logger.Warn("Lineage registration failed", zap.Error(err))
		}
	}

	if err := w.reporter.SetStatus(ctx, w.cfg.jobID, job.StatusUpdate{Status: job.StatusInProgress}); err != nil {
		return fmt.Errorf("set status %s: %w", job.StatusInProgress, err)
	}
	w.logger.Info("Workflow started", zap.String("dataset", w.engine.DatasetID()))

	err := w.engine.Apply(ctx)
	if err == nil && w.cfg.poller != nil {
		err = w.cfg.poller.Wait(ctx, w.engine.OutputFields())
	}
	if err != nil {
		return w.fail(ctx, usage, err)
	}
	return w.complete(ctx, usage)
}

func (w *Workflow) complete(ctx context.Context, usage *domain.Usage) error {
	output := w.engine.Output()
	rows := make([]map[string]any, 0, len(output))
	for _, d := range output {
		rows = append(rows, map[string]any(d))
	}
	meta := w.metadata(usage)
	meta["success_ratio"] = w.engine.SuccessRatio()
	meta["size"] = w.engine.Size()
	meta["failed_chunks"] = len(w.engine.Errors())

	u := job.StatusUpdate{Status: job.StatusComplete, Metadata: meta}
	if len(rows) > 0 {
		u.Output = rows
	}
	if err := w.reporter.SetStatus(ctx, w.cfg.jobID, u); err != nil {
		return fmt.Errorf("set status %s: %w", job.StatusComplete, err)
	}
	w.logger.Info("Workflow complete",
		zap.Float64("success_ratio", w.engine.SuccessRatio()),
		zap.Int("size", w.engine.Size()),
		zap.Duration("elapsed", w.cfg.timer.Elapsed()),
	)
	return nil
}

func (w *Workflow) fail(ctx context.Context, usage *domain.Usage, runErr error) error {
	meta := w.metadata(usage)
	meta["error"] = runErr.Error()
	u := job.StatusUpdate{Status: job.StatusFailed, Metadata: meta}
	msg, isUser := domain.UserMessage(runErr)
	if isUser {
		u.UserMessage = msg
	}

	// Status reporting must not outlive a cancelled run context.
	statusCtx := context.WithoutCancel(ctx)
	if err := w.reporter.SetStatus(statusCtx, w.cfg.jobID, u); err != nil {
		w.logger.Error("Failed to report failure", zap.Error(err))
		runErr = errors.Join(runErr, fmt.Errorf("set status %s: %w", job.StatusFailed, err))
	}
	w.logger.Error("Workflow failed", zap.Error(runErr), zap.Duration("elapsed", w.cfg.timer.Elapsed()))

	if isUser && w.cfg.suppressUserErrors {
		return nil
	}
	return fmt.Errorf("workflow %s: %w", w.cfg.name, runErr)
}

func (w *Workflow) metadata(usage *domain.Usage) map[string]any {
	return map[string]any{
		"elapsed_seconds": w.cfg.timer.Elapsed().Seconds(),
		"tokens":          usage.Tokens(),
		"dataset":         w.engine.DatasetID(),
	}
}
