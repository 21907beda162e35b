package workflow

import (
	"go.uber.org/zap"
)

// Option configures a workflow.
type Option interface {
	apply(*config)
}

type optionFunc func(*config)

func (f optionFunc) apply(c *config) { f(c) }

type config struct {
	jobID              string
	name               string
	registerLineage    bool
	suppressUserErrors bool
	timer              *Timer
	poller             *Poller
	logger             *zap.Logger
}

// WithJobID sets the remote job id. A random one is generated otherwise.
func WithJobID(id string) Option {
	return optionFunc(func(c *config) { c.jobID = id })
}

// WithName sets the workflow name used in logs and metadata.
func WithName(name string) Option {
	return optionFunc(func(c *config) { c.name = name })
}

// WithoutLineage skips field lineage registration.
func WithoutLineage() Option {
	return optionFunc(func(c *config) { c.registerLineage = false })
}

// WithSuppressUserErrors makes Run return nil for failures carrying a user
// message. The job is still marked failed.
func WithSuppressUserErrors() Option {
	return optionFunc(func(c *config) { c.suppressUserErrors = true })
}

// WithTimer replaces the wall clock timer.
func WithTimer(t *Timer) Option {
	return optionFunc(func(c *config) { c.timer = t })
}

// WithPoller waits for output field coverage before completing.
func WithPoller(p *Poller) Option {
	return optionFunc(func(c *config) { c.poller = p })
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return optionFunc(func(c *config) { c.logger = l })
}
