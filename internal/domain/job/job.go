package job

import "time"

// Status is the remote lifecycle state of a workflow run.
type Status string

// Workflow statuses.
const (
	StatusInProgress Status = "inprogress"
	StatusComplete   Status = "complete"
	StatusFailed     Status = "failed"
)

// Terminal reports whether the status ends the run.
func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusFailed
}

// Progress is one worker's position within a job step.
type Progress struct {
	JobID        string `json:"job_id"`
	WorkerNumber int    `json:"worker_number"`
	Step         string `json:"step"`
	NProcessed   int    `json:"n_processed"`
	NTotal       int    `json:"n_total"`
}

// FieldLineage links the fields an operator reads to the fields it writes.
type FieldLineage struct {
	Dataset string   `json:"dataset"`
	Inputs  []string `json:"inputs"`
	Outputs []string `json:"outputs"`
}

// Record is the stored state of a job as served by the status API.
type Record struct {
	JobID       string           `json:"job_id"`
	Status      Status           `json:"status"`
	Metadata    map[string]any   `json:"metadata,omitempty"`
	Output      []map[string]any `json:"output,omitempty"`
	UserMessage string           `json:"user_message,omitempty"`
	Progress    []Progress       `json:"progress,omitempty"`
	Lineage     []FieldLineage   `json:"lineage,omitempty"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// StatusUpdate is one status transition reported by a workflow.
type StatusUpdate struct {
	Status      Status
	Metadata    map[string]any
	Output      []map[string]any
	UserMessage string
}
