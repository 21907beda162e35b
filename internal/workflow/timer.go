package workflow

import "time"

// Timer measures one workflow run. It is passed in explicitly so tests and
// pricing can control the clock.
type Timer struct {
	now   func() time.Time
	start time.Time
}

// NewTimer creates a timer on the given clock; nil means time.Now.
func NewTimer(now func() time.Time) *Timer {
	if now == nil {
		now = time.Now
	}
	return &Timer{now: now}
}

// Start marks the beginning of the run.
func (t *Timer) Start() { t.start = t.now() }

// Started returns when the run began.
func (t *Timer) Started() time.Time { return t.start }

// Elapsed returns the time since Start.
func (t *Timer) Elapsed() time.Duration {
	if t.start.IsZero() {
		return 0
	}
	return t.now().Sub(t.start)
}
