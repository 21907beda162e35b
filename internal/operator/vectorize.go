package operator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/workflows/internal/domain"
	"github.com/kailas-cloud/workflows/internal/domain/document"
)

// DefaultMaxAPIBatchSize is the maximum number of texts sent in one provider call.
const DefaultMaxAPIBatchSize = 256

// VectorizeConfig holds the settings of a Vectorize operator.
type VectorizeConfig struct {
	// Field is the text path to embed.
	Field string
	// Model names the embedding model in the output field.
	Model string
	// Instruction is prepended to every text before embedding.
	Instruction string
	BatchSize   int
	Logger      *zap.Logger
}

// Vectorize embeds a text field and writes <field>_<model>_vector_.
type Vectorize struct {
	embed       domain.Embedder
	field       string
	output      string
	instruction string
	batchSize   int
	logger      *zap.Logger
}

// NewVectorize creates an embedding operator.
func NewVectorize(embed domain.Embedder, cfg VectorizeConfig) (*Vectorize, error) {
	if embed == nil {
		return nil, fmt.Errorf("vectorize: embedder is required: %w", domain.ErrInvalidConfig)
	}
	if cfg.Field == "" || cfg.Model == "" {
		return nil, fmt.Errorf("vectorize: field and model are required: %w", domain.ErrInvalidConfig)
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultMaxAPIBatchSize
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Vectorize{
		embed:       embed,
		field:       cfg.Field,
		output:      VectorField(cfg.Field, cfg.Model),
		instruction: cfg.Instruction,
		batchSize:   cfg.BatchSize,
		logger:      cfg.Logger,
	}, nil
}

// VectorField builds the output name for a field embedded with model.
func VectorField(field, model string) string {
	model = strings.NewReplacer("/", "-", ".", "-", " ", "-").Replace(model)
	return field + "_" + model + document.VectorSuffix
}

// Name implements Namer.
func (v *Vectorize) Name() string { return "vectorize_" + v.field }

// Fields implements Describer.
func (v *Vectorize) Fields() Fields {
	return Fields{Input: []string{v.field}, Output: []string{v.output}}
}

// OutputField returns the vector field this operator writes.
func (v *Vectorize) OutputField() string { return v.output }

// Transform implements Operator. Documents without a non-empty text value are left untouched.
func (v *Vectorize) Transform(ctx context.Context, docs document.List) (document.List, error) {
	idx := make([]int, 0, len(docs))
	texts := make([]string, 0, len(docs))
	for i, d := range docs {
		raw, ok := d.Get(v.field)
		if !ok {
			continue
		}
		s, ok := raw.(string)
		if !ok || strings.TrimSpace(s) == "" {
			continue
		}
		idx = append(idx, i)
		texts = append(texts, v.instruction+s)
	}
	if len(texts) == 0 {
		return docs, nil
	}

	start := time.Now()
	for offset := 0; offset < len(texts); offset += v.batchSize {
		end := min(offset+v.batchSize, len(texts))

		res, err := domain.EmbedAll(ctx, v.embed, texts[offset:end])
		if err != nil {
			return nil, fmt.Errorf("embed %s (chunk %d): %w", v.field, offset, err)
		}
		if len(res.Embeddings) != end-offset {
			return nil, fmt.Errorf("embed %s: %d vectors for %d texts: %w",
				v.field, len(res.Embeddings), end-offset, domain.ErrMalformedResponse)
		}
		domain.UsageFromContext(ctx).AddTokens(res.TotalTokens)

		for j := range res.Embeddings {
			if err := docs[idx[offset+j]].Set(v.output, res.Vector(j)); err != nil {
				return nil, err
			}
		}
	}

	v.logger.Debug("Vectorized batch",
		zap.String("field", v.field),
		zap.Int("texts", len(texts)),
		zap.Duration("duration", time.Since(start)),
	)
	return docs, nil
}
