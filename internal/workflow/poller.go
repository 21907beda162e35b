package workflow

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/workflows/internal/domain"
	"github.com/kailas-cloud/workflows/internal/domain/filter"
)

// Poller defaults.
const (
	DefaultMinCoverage  = 0.95
	DefaultPollInterval = 10 * time.Second
	DefaultPollTimeout  = 10 * time.Minute
)

// Poller waits for written fields to propagate on the backend before a
// workflow is declared complete.
type Poller struct {
	counter     Counter
	base        []filter.Filter
	minCoverage float64
	interval    time.Duration
	timeout     time.Duration
	logger      *zap.Logger
}

// PollerConfig holds the coverage poller settings; zero values take the defaults.
type PollerConfig struct {
	// Filters restrict the population coverage is measured over.
	Filters     []filter.Filter
	MinCoverage float64
	Interval    time.Duration
	Timeout     time.Duration
	Logger      *zap.Logger
}

// NewPoller creates a coverage poller over c.
func NewPoller(c Counter, cfg PollerConfig) *Poller {
	if cfg.MinCoverage <= 0 || cfg.MinCoverage > 1 {
		cfg.MinCoverage = DefaultMinCoverage
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultPollInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultPollTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Poller{
		counter:     c,
		base:        cfg.Filters,
		minCoverage: cfg.MinCoverage,
		interval:    cfg.Interval,
		timeout:     cfg.Timeout,
		logger:      cfg.Logger,
	}
}

// Coverage returns the fraction of documents carrying every field.
// An empty population is fully covered.
func (p *Poller) Coverage(ctx context.Context, fields []string) (float64, error) {
	total, err := p.counter.Count(ctx, p.base)
	if err != nil {
		return 0, fmt.Errorf("count population: %w", err)
	}
	if total == 0 {
		return 1, nil
	}
	withFields := append([]filter.Filter(nil), p.base...)
	for _, f := range fields {
		withFields = append(withFields, filter.Exists(f))
	}
	covered, err := p.counter.Count(ctx, withFields)
	if err != nil {
		return 0, fmt.Errorf("count covered: %w", err)
	}
	return float64(covered) / float64(total), nil
}

// Wait polls until coverage reaches the minimum or the timeout passes.
func (p *Poller) Wait(ctx context.Context, fields []string) error {
	if len(fields) == 0 {
		return nil
	}
	parent := ctx
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	last := 0.0
	for {
		cov, err := p.Coverage(ctx, fields)
		if err != nil && ctx.Err() == nil {
			return err
		}
		if err == nil {
			last = cov
			p.logger.Debug("Field coverage", zap.Strings("fields", fields), zap.Float64("coverage", cov))
			if cov >= p.minCoverage {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			if err := parent.Err(); err != nil {
				return fmt.Errorf("wait for coverage: %w", err)
			}
			return fmt.Errorf("coverage %.2f below %.2f after %s: %w",
				last, p.minCoverage, p.timeout, domain.ErrCoverageTimeout)
		case <-ticker.C:
		}
	}
}
