package domain

import (
	"context"
	"sync/atomic"
)

type usageKey struct{}

// Usage collects provider token consumption for one workflow run.
// The workflow puts it into the run context; operators that call paid
// providers add to it; the workflow reports the total with the final status.
type Usage struct {
	tokens atomic.Int64
	calls  atomic.Int64
}

// ContextWithUsage returns a context carrying a fresh usage collector.
func ContextWithUsage(ctx context.Context) (context.Context, *Usage) {
	u := &Usage{}
	return context.WithValue(ctx, usageKey{}, u), u
}

// UsageFromContext extracts the usage collector. Returns nil if not set.
func UsageFromContext(ctx context.Context) *Usage {
	u, _ := ctx.Value(usageKey{}).(*Usage)
	return u
}

// AddTokens records one provider call and its tokens. Safe on a nil receiver.
func (u *Usage) AddTokens(n int) {
	if u == nil {
		return
	}
	u.tokens.Add(int64(n))
	u.calls.Add(1)
}

// Tokens returns the total recorded tokens.
func (u *Usage) Tokens() int64 {
	if u == nil {
		return 0
	}
	return u.tokens.Load()
}

// Calls returns the number of recorded provider calls.
func (u *Usage) Calls() int64 {
	if u == nil {
		return 0
	}
	return u.calls.Load()
}
