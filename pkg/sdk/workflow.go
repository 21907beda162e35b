package workflows

import (
	"context"
	"time"

	"github.com/kailas-cloud/workflows/internal/workflow"
)

// WorkflowOption configures a Workflow.
type WorkflowOption = workflow.Option

// Workflow options.
var (
	WithJobID              = workflow.WithJobID
	WithName               = workflow.WithName
	WithoutLineage         = workflow.WithoutLineage
	WithSuppressUserErrors = workflow.WithSuppressUserErrors
	WithWorkflowLogger     = workflow.WithLogger
)

// PollerConfig holds the coverage poller settings; zero values take the defaults.
type PollerConfig = workflow.PollerConfig

// Workflow runs one engine and reports its status to the client's job records.
type Workflow struct {
	wf  *workflow.Workflow
	obs *observer
}

// Workflow wraps e in a status-reporting lifecycle.
func (c *Client) Workflow(e *Engine, opts ...WorkflowOption) (*Workflow, error) {
	all := append([]WorkflowOption{workflow.WithLogger(c.zap)}, opts...)
	wf, err := workflow.New(e, c.jobs, all...)
	if err != nil {
		return nil, err
	}
	return &Workflow{wf: wf, obs: c.obs}, nil
}

// WithCoverage makes the workflow wait until the engine's output fields cover
// the dataset before reporting completion.
func (c *Client) WithCoverage(datasetID string, cfg PollerConfig) WorkflowOption {
	if cfg.Logger == nil {
		cfg.Logger = c.zap
	}
	return workflow.WithPoller(workflow.NewPoller(c.open(datasetID), cfg))
}

// JobID returns the id the workflow reports under.
func (w *Workflow) JobID() string { return w.wf.JobID() }

// Run applies the engine once. See the workflow package for the status
// transitions it reports.
func (w *Workflow) Run(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { w.obs.observe("workflow_run", start, err) }()

	return w.wf.Run(ctx)
}
