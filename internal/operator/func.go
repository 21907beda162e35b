package operator

import (
	"context"

	"github.com/kailas-cloud/workflows/internal/domain/document"
)

// TransformFunc is the signature of a plain batch transform.
type TransformFunc func(ctx context.Context, docs document.List) (document.List, error)

// DenseTransformFunc is the signature of a fan-out transform.
type DenseTransformFunc func(ctx context.Context, docs document.List) (map[string]document.List, error)

// Option configures a function-backed operator.
type Option interface {
	apply(*funcConfig)
}

type optionFunc func(*funcConfig)

func (f optionFunc) apply(c *funcConfig) { f(c) }

type funcConfig struct {
	fields      Fields
	postprocess bool
	setup       func(context.Context) error
	teardown    func(context.Context) error
}

// WithFields declares the paths the operator reads and writes.
func WithFields(input, output []string) Option {
	return optionFunc(func(c *funcConfig) {
		c.fields = Fields{Input: input, Output: output}
	})
}

// WithoutPostprocess returns the transform output as is, without diffing.
func WithoutPostprocess() Option {
	return optionFunc(func(c *funcConfig) {
		c.postprocess = false
	})
}

// WithSetup registers a hook run once before the first batch.
func WithSetup(fn func(context.Context) error) Option {
	return optionFunc(func(c *funcConfig) {
		c.setup = fn
	})
}

// WithTeardown registers a hook run once after the last batch.
func WithTeardown(fn func(context.Context) error) Option {
	return optionFunc(func(c *funcConfig) {
		c.teardown = fn
	})
}

func newFuncConfig(opts []Option) funcConfig {
	cfg := funcConfig{postprocess: true}
	for _, o := range opts {
		o.apply(&cfg)
	}
	return cfg
}

// Func is an Operator built from a function.
type Func struct {
	name string
	fn   TransformFunc
	cfg  funcConfig
}

// NewFunc wraps fn as a named operator.
func NewFunc(name string, fn TransformFunc, opts ...Option) *Func {
	return &Func{name: name, fn: fn, cfg: newFuncConfig(opts)}
}

// Transform implements Operator.
func (f *Func) Transform(ctx context.Context, docs document.List) (document.List, error) {
	return f.fn(ctx, docs)
}

// Name implements Namer.
func (f *Func) Name() string { return f.name }

// Fields implements Describer.
func (f *Func) Fields() Fields { return f.cfg.fields }

// Postprocess implements Postprocessor.
func (f *Func) Postprocess() bool { return f.cfg.postprocess }

// Setup implements SetupHook.
func (f *Func) Setup(ctx context.Context) error {
	if f.cfg.setup == nil {
		return nil
	}
	return f.cfg.setup(ctx)
}

// Teardown implements TeardownHook.
func (f *Func) Teardown(ctx context.Context) error {
	if f.cfg.teardown == nil {
		return nil
	}
	return f.cfg.teardown(ctx)
}

// DenseFunc is a DenseOperator built from a function.
type DenseFunc struct {
	name string
	fn   DenseTransformFunc
	cfg  funcConfig
}

// NewDenseFunc wraps fn as a named fan-out operator.
func NewDenseFunc(name string, fn DenseTransformFunc, opts ...Option) *DenseFunc {
	return &DenseFunc{name: name, fn: fn, cfg: newFuncConfig(opts)}
}

// TransformDense implements DenseOperator.
func (f *DenseFunc) TransformDense(ctx context.Context, docs document.List) (map[string]document.List, error) {
	return f.fn(ctx, docs)
}

// Name implements Namer.
func (f *DenseFunc) Name() string { return f.name }

// Fields implements Describer.
func (f *DenseFunc) Fields() Fields { return f.cfg.fields }

// Setup implements SetupHook.
func (f *DenseFunc) Setup(ctx context.Context) error {
	if f.cfg.setup == nil {
		return nil
	}
	return f.cfg.setup(ctx)
}

// Teardown implements TeardownHook.
func (f *DenseFunc) Teardown(ctx context.Context) error {
	if f.cfg.teardown == nil {
		return nil
	}
	return f.cfg.teardown(ctx)
}
