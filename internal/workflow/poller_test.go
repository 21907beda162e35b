package workflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kailas-cloud/workflows/internal/domain"
	"github.com/kailas-cloud/workflows/internal/domain/filter"
)

func TestPoller_Coverage(t *testing.T) {
	counter := &mockCounter{countFn: func(filters []filter.Filter) (int, error) {
		if len(filters) == 0 {
			return 200, nil
		}
		if filters[0].Type != filter.TypeExists {
			t.Errorf("filter type = %s", filters[0].Type)
		}
		return 50, nil
	}}
	p := NewPoller(counter, PollerConfig{})

	cov, err := p.Coverage(context.Background(), []string{"a"})
	if err != nil {
		t.Fatalf("Coverage: %v", err)
	}
	if cov != 0.25 {
		t.Errorf("coverage = %v, want 0.25", cov)
	}
}

func TestPoller_EmptyPopulationIsCovered(t *testing.T) {
	p := NewPoller(&mockCounter{countFn: func([]filter.Filter) (int, error) { return 0, nil }}, PollerConfig{})
	cov, err := p.Coverage(context.Background(), []string{"a"})
	if err != nil || cov != 1 {
		t.Errorf("coverage = %v, err = %v", cov, err)
	}
}

func TestPoller_WaitsUntilCovered(t *testing.T) {
	rounds := 0
	counter := &mockCounter{countFn: func(filters []filter.Filter) (int, error) {
		if len(filters) == 0 {
			rounds++
			return 10, nil
		}
		if rounds < 3 {
			return 5, nil
		}
		return 10, nil
	}}
	p := NewPoller(counter, PollerConfig{Interval: time.Millisecond, Timeout: time.Second})

	if err := p.Wait(context.Background(), []string{"a"}); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if rounds != 3 {
		t.Errorf("rounds = %d, want 3", rounds)
	}
}

func TestPoller_Timeout(t *testing.T) {
	counter := &mockCounter{countFn: func(filters []filter.Filter) (int, error) {
		if len(filters) == 0 {
			return 10, nil
		}
		return 1, nil
	}}
	p := NewPoller(counter, PollerConfig{Interval: time.Millisecond, Timeout: 10 * time.Millisecond})

	if err := p.Wait(context.Background(), []string{"a"}); !errors.Is(err, domain.ErrCoverageTimeout) {
		t.Errorf("err = %v", err)
	}
}

func TestPoller_ParentCancelIsNotTimeout(t *testing.T) {
	counter := &mockCounter{countFn: func(filters []filter.Filter) (int, error) {
		if len(filters) == 0 {
			return 10, nil
		}
		return 1, nil
	}}
	p := NewPoller(counter, PollerConfig{Interval: time.Millisecond, Timeout: time.Minute})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()

	err := p.Wait(ctx, []string{"a"})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if errors.Is(err, domain.ErrCoverageTimeout) {
		t.Error("cancellation reported as coverage timeout")
	}
}

func TestPoller_CountErrorIsReturned(t *testing.T) {
	boom := errors.New("count failed")
	p := NewPoller(&mockCounter{countFn: func([]filter.Filter) (int, error) { return 0, boom }},
		PollerConfig{Interval: time.Millisecond})
	if err := p.Wait(context.Background(), []string{"a"}); !errors.Is(err, boom) {
		t.Errorf("err = %v", err)
	}
}

func TestPoller_NoFields(t *testing.T) {
	counter := &mockCounter{countFn: func([]filter.Filter) (int, error) { return 0, nil }}
	p := NewPoller(counter, PollerConfig{})
	if err := p.Wait(context.Background(), nil); err != nil {
		t.Errorf("err = %v", err)
	}
	if counter.calls != 0 {
		t.Errorf("calls = %d, want 0", counter.calls)
	}
}

func TestTimer_Elapsed(t *testing.T) {
	timer := NewTimer(stepClock(2 * time.Second))
	if timer.Elapsed() != 0 {
		t.Error("elapsed before start must be zero")
	}
	timer.Start()
	if got := timer.Elapsed(); got != 2*time.Second {
		t.Errorf("elapsed = %v, want 2s", got)
	}
}
