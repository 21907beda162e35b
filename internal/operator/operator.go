package operator

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/kailas-cloud/workflows/internal/domain/document"
)

// Operator transforms one batch into another of the same length, aligned by position.
type Operator interface {
	Transform(ctx context.Context, docs document.List) (document.List, error)
}

// DenseOperator turns one batch into batches for several destination datasets.
type DenseOperator interface {
	TransformDense(ctx context.Context, docs document.List) (map[string]document.List, error)
}

// Fields are the paths an operator reads and writes.
// Inputs must exist for a document to be worth processing; outputs drive
// incremental runs and, for dense operators, name the destinations.
type Fields struct {
	Input  []string
	Output []string
}

// Describer is implemented by operators that declare their fields.
type Describer interface {
	Fields() Fields
}

// Postprocessor is implemented by operators that opt out of diffing.
type Postprocessor interface {
	Postprocess() bool
}

// SetupHook is called once before the first batch.
type SetupHook interface {
	Setup(ctx context.Context) error
}

// TeardownHook is called once after the last batch, even after a failure.
type TeardownHook interface {
	Teardown(ctx context.Context) error
}

// Namer gives an operator a stable name for logs, metrics and errors.
type Namer interface {
	Name() string
}

// FieldsOf returns the declared fields of op, or none.
func FieldsOf(op any) Fields {
	if d, ok := op.(Describer); ok {
		return d.Fields()
	}
	return Fields{}
}

// NameOf returns the operator name, falling back to its type.
func NameOf(op any) string {
	if n, ok := op.(Namer); ok && n.Name() != "" {
		return n.Name()
	}
	return fmt.Sprintf("%T", op)
}

// PostprocessOf reports whether op's output should be diffed. Default true.
func PostprocessOf(op any) bool {
	if p, ok := op.(Postprocessor); ok {
		return p.Postprocess()
	}
	return true
}

// Setup runs the setup hook of every operator that has one.
func Setup(ctx context.Context, ops ...any) error {
	for _, op := range ops {
		h, ok := op.(SetupHook)
		if !ok {
			continue
		}
		if err := h.Setup(ctx); err != nil {
			return fmt.Errorf("setup %s: %w", NameOf(op), err)
		}
	}
	return nil
}

// Teardown runs every teardown hook and returns the first error.
func Teardown(ctx context.Context, ops ...any) error {
	var first error
	for _, op := range ops {
		h, ok := op.(TeardownHook)
		if !ok {
			continue
		}
		if err := h.Teardown(ctx); err != nil && first == nil {
			first = fmt.Errorf("teardown %s: %w", NameOf(op), err)
		}
	}
	return first
}

// Apply transforms a copy of docs and, unless op opts out, returns only what changed.
// A panic inside the transform is returned as an error.
func Apply(ctx context.Context, op Operator, docs document.List) (out document.List, err error) {
	defer recoverTransform(op, &err)

	updated, err := op.Transform(ctx, docs.Clone())
	if err != nil {
		return nil, err
	}
	if !PostprocessOf(op) {
		return updated, nil
	}
	diff, err := document.DiffList(docs, updated)
	if err != nil {
		return nil, fmt.Errorf("postprocess %s: %w", NameOf(op), err)
	}
	return diff, nil
}

// ApplyDense transforms a copy of docs into per-destination batches.
// Documents that carry nothing but an identifier are dropped.
func ApplyDense(ctx context.Context, op DenseOperator, docs document.List) (out map[string]document.List, err error) {
	defer recoverTransform(op, &err)

	byDest, err := op.TransformDense(ctx, docs.Clone())
	if err != nil {
		return nil, err
	}
	out = make(map[string]document.List, len(byDest))
	for dest, list := range byDest {
		if kept := list.WithPayload(); len(kept) > 0 {
			out[dest] = kept
		}
	}
	return out, nil
}

func recoverTransform(op any, err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("%s panicked: %v\n%s", NameOf(op), r, debug.Stack())
	}
}
