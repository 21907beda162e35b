package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/kailas-cloud/workflows/internal/domain"
	"github.com/kailas-cloud/workflows/internal/domain/document"
	"github.com/kailas-cloud/workflows/internal/domain/filter"
	"github.com/kailas-cloud/workflows/internal/domain/schema"
	"github.com/kailas-cloud/workflows/internal/operator"
)

func TestIterate_CursorMonotonicity(t *testing.T) {
	ds := newFakeDataset(23)
	e, err := NewStable(ds, incrementOp(), WithPullChunkSize(5), noRetryDelay())
	if err != nil {
		t.Fatalf("NewStable: %v", err)
	}

	var sizes []int
	total := 0
	for page, err := range e.Iterate(context.Background()) {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(page) > 5 {
			t.Errorf("page of %d exceeds pull chunk size", len(page))
		}
		sizes = append(sizes, len(page))
		total += len(page)
	}

	if total != 23 {
		t.Errorf("total = %d, want 23", total)
	}
	if len(sizes) != 5 {
		t.Errorf("pages = %v, want 5 pages", sizes)
	}
	// five data pages plus the terminating empty one
	if ds.pullCalls != 6 {
		t.Errorf("pull calls = %d, want 6", ds.pullCalls)
	}
	for i := 1; i < len(ds.queries); i++ {
		if ds.queries[i].AfterID <= ds.queries[i-1].AfterID {
			t.Errorf("cursor moved backwards: %q after %q", ds.queries[i].AfterID, ds.queries[i-1].AfterID)
		}
	}
}

func TestIterate_DropsIdentifierOnlyDocuments(t *testing.T) {
	ds := newFakeDataset(4)
	ds.docs["doc-001"] = document.New("doc-001")
	ds.docs["doc-002"] = document.New("doc-002")
	e, _ := NewStable(ds, incrementOp(), WithPullChunkSize(2))

	var ids []string
	for page, err := range e.Iterate(context.Background()) {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		ids = append(ids, page.IDs()...)
	}
	if len(ids) != 2 || ids[0] != "doc-000" || ids[1] != "doc-003" {
		t.Errorf("ids = %v", ids)
	}
}

func TestIterate_Limit(t *testing.T) {
	ds := newFakeDataset(20)
	e, _ := NewStable(ds, incrementOp(), WithPullChunkSize(5), WithLimit(7))

	total := 0
	for page, err := range e.Iterate(context.Background()) {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		total += len(page)
	}
	if total != 7 {
		t.Errorf("total = %d, want 7", total)
	}
	if e.Size() != 7 {
		t.Errorf("Size = %d, want 7", e.Size())
	}
}

func TestPull_RetriesTransientErrors(t *testing.T) {
	ds := newFakeDataset(3)
	ds.pullErrs = []error{errConnection, errConnection}
	e, _ := NewStable(ds, incrementOp(), noRetryDelay())

	if err := e.Apply(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ds.pushedIDs()) != 3 {
		t.Errorf("pushed = %v", ds.pushedIDs())
	}
}

func TestPull_MaxRetriesExceeded(t *testing.T) {
	ds := newFakeDataset(3)
	ds.pullErrs = []error{errConnection, errConnection, errConnection}
	e, _ := NewStable(ds, incrementOp(), noRetryDelay())

	err := e.Apply(context.Background())
	if !errors.Is(err, domain.ErrMaxRetriesExceeded) {
		t.Fatalf("err = %v, want ErrMaxRetriesExceeded", err)
	}
	if !errors.Is(err, errConnection) {
		t.Errorf("err = %v, want last cause kept", err)
	}
	if ds.pullCalls != DefaultMaxRetries {
		t.Errorf("pull calls = %d, want %d", ds.pullCalls, DefaultMaxRetries)
	}
}

func TestPull_MalformedPageIsRetried(t *testing.T) {
	ds := newFakeDataset(3)
	ds.malformedOnce = true
	e, _ := NewStable(ds, incrementOp(), noRetryDelay())

	if err := e.Apply(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ds.pullCalls != 3 {
		t.Errorf("pull calls = %d, want 3 (malformed, good, empty)", ds.pullCalls)
	}
}

func TestPull_ContextCanceled(t *testing.T) {
	ds := newFakeDataset(3)
	ds.pullErrs = []error{errConnection}
	e, _ := NewStable(ds, incrementOp(), WithRetry(3, 0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := e.Apply(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestApply_SchemaUpdateThrottling(t *testing.T) {
	ds := newFakeDataset(10)
	e, _ := NewStable(ds, incrementOp(), WithPullChunkSize(2))

	if err := e.Apply(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ds.updates) != 5 {
		t.Fatalf("pushes = %d, want 5", len(ds.updates))
	}
	for i, u := range ds.updates {
		want := i < MaxSchemaUpdateLimiter
		if u.opts.UpdateSchema != want {
			t.Errorf("push %d UpdateSchema = %v, want %v", i, u.opts.UpdateSchema, want)
		}
	}
}

func TestApply_PerItemIsolation(t *testing.T) {
	ds := newFakeDataset(10)
	boom := errors.New("bad document")
	op := operator.NewFunc("fragile", func(_ context.Context, docs document.List) (document.List, error) {
		for _, d := range docs {
			if d.ID() == "doc-004" {
				return nil, boom
			}
			d["seen"] = true
		}
		return docs, nil
	})
	e, _ := NewStable(ds, op, WithTransformChunkSize(1))

	if err := e.Apply(context.Background()); err != nil {
		t.Fatalf("run must complete, got %v", err)
	}
	if r := e.SuccessRatio(); r >= 1.0 || r != 0.9 {
		t.Errorf("SuccessRatio = %v, want 0.9", r)
	}
	pushed := ds.pushedIDs()
	if len(pushed) != 9 {
		t.Errorf("pushed %d documents, want 9", len(pushed))
	}
	for _, id := range pushed {
		if id == "doc-004" {
			t.Error("failed document was pushed")
		}
	}
	errs := e.Errors()
	if len(errs) != 1 || !errs[0].Contains("doc-004") || !errors.Is(errs[0], boom) {
		t.Errorf("Errors = %v", errs)
	}
}

func TestApply_PanicIsIsolated(t *testing.T) {
	ds := newFakeDataset(4)
	op := operator.NewFunc("panicky", func(_ context.Context, docs document.List) (document.List, error) {
		if docs[0].ID() == "doc-001" {
			panic("nil map")
		}
		docs[0]["ok"] = true
		return docs, nil
	})
	e, _ := NewStable(ds, op, WithTransformChunkSize(1))

	if err := e.Apply(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(e.Errors()) != 1 || len(ds.pushedIDs()) != 3 {
		t.Errorf("errors=%d pushed=%d", len(e.Errors()), len(ds.pushedIDs()))
	}
}

func TestApply_EndToEndStable(t *testing.T) {
	ds := newFakeDataset(100)
	e, _ := NewStable(ds, incrementOp())

	if err := e.Apply(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := range 100 {
		id := fmt.Sprintf("doc-%03d", i)
		n, _ := document.Number(ds.docs[id]["n"])
		if n != float64(i+1) {
			t.Fatalf("%s n = %v, want %d", id, n, i+1)
		}
	}
	if e.SuccessRatio() != 1.0 {
		t.Errorf("SuccessRatio = %v", e.SuccessRatio())
	}

	rerun, _ := NewStable(ds, incrementOp(), WithRefresh(false))
	before := len(ds.updates)
	if err := rerun.Apply(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ds.updates) != before || rerun.Pushes() != 0 {
		t.Errorf("re-run pushed %d times, want 0", len(ds.updates)-before)
	}
	if rerun.SuccessRatio() != 1.0 {
		t.Errorf("empty re-run SuccessRatio = %v, want 1", rerun.SuccessRatio())
	}
}

func TestApply_SingleUse(t *testing.T) {
	e, _ := NewStable(newFakeDataset(1), incrementOp())
	if err := e.Apply(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := e.Apply(context.Background()); !errors.Is(err, domain.ErrEngineConsumed) {
		t.Errorf("err = %v, want ErrEngineConsumed", err)
	}
}

func TestApply_PushError(t *testing.T) {
	ds := newFakeDataset(3)
	ds.updateErr = errors.New("backend 500")
	e, _ := NewStable(ds, incrementOp())
	if err := e.Apply(context.Background()); err == nil {
		t.Error("push error must abort the run")
	}
}

func TestApply_FailedDocumentsReduceSuccess(t *testing.T) {
	ds := newFakeDataset(4)
	ds.failIDs = map[string]bool{"doc-002": true}
	e, _ := NewStable(ds, incrementOp())

	if err := e.Apply(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.SuccessRatio() != 0.75 {
		t.Errorf("SuccessRatio = %v, want 0.75", e.SuccessRatio())
	}
	if f := e.FailedDocuments(); len(f) != 1 || f[0] != "doc-002" {
		t.Errorf("FailedDocuments = %v", f)
	}
}

func TestApply_OutputToStatus(t *testing.T) {
	ds := newFakeDataset(5)
	e, _ := NewStable(ds, incrementOp(), WithOutputToStatus(), WithPullChunkSize(2))

	if err := e.Apply(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ds.updates) != 0 {
		t.Errorf("pushes = %d, want 0", len(ds.updates))
	}
	if len(e.Output()) != 5 {
		t.Errorf("Output = %d documents, want 5", len(e.Output()))
	}
}

func TestApply_Progress(t *testing.T) {
	ds := newFakeDataset(10)
	rep := &mockReporter{err: errors.New("status api down")}
	e, _ := NewStable(ds, incrementOp(), WithPullChunkSize(4), WithProgress(rep, "job-1", "increment"), WithWorker(0, 1))

	if err := e.Apply(context.Background()); err != nil {
		t.Fatalf("progress errors must not fail the run: %v", err)
	}
	if len(rep.progress) != 3 {
		t.Fatalf("progress updates = %d, want 3", len(rep.progress))
	}
	prev := 0
	for _, p := range rep.progress {
		if p.NProcessed < prev || p.NTotal != 10 || p.JobID != "job-1" || p.Step != "increment" {
			t.Errorf("progress = %+v", p)
		}
		prev = p.NProcessed
	}
	if prev != 10 {
		t.Errorf("final progress = %d, want 10", prev)
	}
}

func TestInit_MissingSelectFields(t *testing.T) {
	ds := newFakeDataset(3)
	ds.schema = schema.Schema{"n": schema.TypeNumeric}

	e, _ := NewStable(ds, incrementOp(), WithSelectFields("n", "body"))
	if err := e.Apply(context.Background()); !errors.Is(err, domain.ErrMissingFields) {
		t.Errorf("err = %v, want ErrMissingFields", err)
	}
	if ds.pullCalls != 0 {
		t.Error("nothing must be pulled after a failed init")
	}

	lenient, _ := NewStable(ds, incrementOp(), WithSelectFields("n", "body"), WithCheckMissingFields(false))
	if err := lenient.Apply(context.Background()); err != nil {
		t.Errorf("lenient mode must only warn, got %v", err)
	}
}

func TestInit_RefreshFilter(t *testing.T) {
	ds := newFakeDataset(6)
	for _, id := range []string{"doc-000", "doc-001"} {
		ds.docs[id]["summary"] = "done"
	}
	op := setOp("summarize", "title", "summary", func(d document.Document) any { return "s:" + d.ID() })

	e, _ := NewStable(ds, op, WithRefresh(false))
	if err := e.Apply(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.Size() != 4 {
		t.Errorf("Size = %d, want 4", e.Size())
	}
	if got := ds.pushedIDs(); len(got) != 4 || got[0] != "doc-002" {
		t.Errorf("pushed = %v", got)
	}
	if ds.docs["doc-000"]["summary"] != "done" {
		t.Error("already processed document was reprocessed")
	}
}

func TestInit_RefreshFilterMultipleOperators(t *testing.T) {
	a := setOp("a", "n", "a", func(document.Document) any { return 1 })
	b := setOp("b", "n", "b", func(document.Document) any { return 1 })

	f, ok := refreshFilter([]any{a, b})
	if !ok || f.Type != filter.TypeOr || len(f.Filters) != 2 {
		t.Fatalf("refreshFilter = %+v, %v", f, ok)
	}
	onlyA := document.Document{"_id": "1", "n": 1, "a": 1}
	both := document.Document{"_id": "1", "n": 1, "a": 1, "b": 1}
	if !f.Matches(onlyA) || f.Matches(both) {
		t.Error("document is skipped only when every operator's outputs exist")
	}

	if _, ok := refreshFilter([]any{a, incrementOp(), operator.NewFunc("x", nil)}); ok {
		t.Error("an operator without outputs disables the refresh filter")
	}
}

func TestInit_Sharding(t *testing.T) {
	ds := newFakeDataset(50)
	seen := map[string]int{}
	for w := range 3 {
		e, err := NewStable(ds, incrementOp(), WithWorker(w, 3), WithOutputToStatus())
		if err != nil {
			t.Fatalf("NewStable: %v", err)
		}
		if err := e.Apply(context.Background()); err != nil {
			t.Fatalf("worker %d: %v", w, err)
		}
		for _, id := range e.Output().IDs() {
			seen[id]++
		}
	}
	if len(seen) != 50 {
		t.Errorf("workers covered %d ids, want 50", len(seen))
	}
	for id, n := range seen {
		if n != 1 {
			t.Errorf("%s processed by %d workers", id, n)
		}
	}
}

func TestNew_Validation(t *testing.T) {
	if _, err := NewStable(nil, incrementOp()); !errors.Is(err, domain.ErrInvalidConfig) {
		t.Errorf("nil dataset: err = %v", err)
	}
	if _, err := NewStable(newFakeDataset(1), nil); !errors.Is(err, domain.ErrInvalidConfig) {
		t.Errorf("nil operator: err = %v", err)
	}
	if _, err := NewStable(newFakeDataset(1), incrementOp(), WithWorker(4, 2)); !errors.Is(err, domain.ErrInvalidConfig) {
		t.Errorf("bad worker: err = %v", err)
	}
	if _, err := NewStable(newFakeDataset(1), incrementOp(), WithFilters(filter.Modulo("_id", 0, 0))); !errors.Is(err, domain.ErrInvalidConfig) {
		t.Errorf("bad filter: err = %v", err)
	}
}

func TestSuccessRatio_EmptyDataset(t *testing.T) {
	e, _ := NewStable(newFakeDataset(0), incrementOp())
	if err := e.Apply(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.SuccessRatio() != 1.0 {
		t.Errorf("SuccessRatio = %v, want 1", e.SuccessRatio())
	}
}

func TestLineage(t *testing.T) {
	e, _ := NewStable(newFakeDataset(1), incrementOp())
	l := e.Lineage()
	if len(l) != 1 || l[0].Dataset != "articles" || l[0].Outputs[0] != "n" {
		t.Errorf("Lineage = %+v", l)
	}
	if got := e.OutputFields(); len(got) != 1 || got[0] != "n" {
		t.Errorf("OutputFields = %v", got)
	}
}
