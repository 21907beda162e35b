package workflows

import (
	"go.uber.org/zap"

	"github.com/kailas-cloud/workflows/internal/domain"
	"github.com/kailas-cloud/workflows/internal/operator"
	openaiEmb "github.com/kailas-cloud/workflows/internal/transport/openai"
)

// Embedder converts text to vector embeddings.
type Embedder = domain.Embedder

// BatchEmbedder vectorizes multiple texts in a single API call.
// Optional: if the provided Embedder also implements BatchEmbedder,
// the vectorize operator uses it for significantly better throughput.
type BatchEmbedder = domain.BatchEmbedder

// EmbeddingResult carries the embedding vector and token counts.
type EmbeddingResult = domain.EmbeddingResult

// BatchEmbeddingResult carries multiple embedding vectors and aggregate token usage.
type BatchEmbeddingResult = domain.BatchEmbeddingResult

// OpenAIConfig configures an OpenAI-compatible embedding provider.
type OpenAIConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	Dimensions int
	Logger     *zap.Logger
}

// NewOpenAIEmbedder creates an embedder for any OpenAI-compatible API.
func NewOpenAIEmbedder(cfg OpenAIConfig) Embedder {
	return openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     cfg.APIKey,
		BaseURL:    cfg.BaseURL,
		Model:      cfg.Model,
		Dimensions: cfg.Dimensions,
		Provider:   "openai",
		Logger:     cfg.Logger,
	})
}

// VectorizeConfig holds the settings of a vectorize operator.
type VectorizeConfig = operator.VectorizeConfig

// NewVectorize creates an operator that embeds cfg.Field and writes the
// vector to VectorField(cfg.Field, cfg.Model).
func NewVectorize(e Embedder, cfg VectorizeConfig) (Operator, error) {
	v, err := operator.NewVectorize(e, cfg)
	if err != nil {
		return nil, err
	}
	return v, nil
}

// VectorField builds the output name for a field embedded with model.
func VectorField(field, model string) string {
	return operator.VectorField(field, model)
}
