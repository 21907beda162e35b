package engine

import (
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/workflows/internal/domain/filter"
)

// Engine defaults.
const (
	DefaultPullChunkSize      = 3000
	DefaultTransformChunkSize = 20
	DefaultDocumentLimit      = 10000
	DefaultMaxRetries         = 3
	DefaultRetryDelay         = 2 * time.Second

	DefaultSmallBatchPullChunkSize = 5
	DefaultTransformThreshold      = 1000

	// MaxSchemaUpdateLimiter is how many pushes per run may ask the backend to
	// update its schema. The backend fails when every chunk signals schema changes.
	MaxSchemaUpdateLimiter = 1
)

// Option configures an engine.
type Option interface {
	apply(*config)
}

type optionFunc func(*config)

func (f optionFunc) apply(c *config) { f(c) }

type config struct {
	pullChunkSize      int
	transformChunkSize int
	transformThreshold int
	documentLimit      int
	limit              int

	filters            []filter.Filter
	selectFields       []string
	includeVector      bool
	refresh            bool
	checkMissingFields bool

	workerNumber int
	totalWorkers int

	maxRetries int
	retryDelay time.Duration

	ingestInBackground bool
	outputToStatus     bool

	reporter ProgressReporter
	jobID    string
	step     string

	destinations DestinationResolver
	logger       *zap.Logger
}

func defaultConfig() config {
	return config{
		pullChunkSize:      DefaultPullChunkSize,
		transformChunkSize: DefaultTransformChunkSize,
		transformThreshold: DefaultTransformThreshold,
		documentLimit:      DefaultDocumentLimit,
		refresh:            true,
		checkMissingFields: true,
		maxRetries:         DefaultMaxRetries,
		retryDelay:         DefaultRetryDelay,
	}
}

// WithPullChunkSize sets how many documents one pull requests.
func WithPullChunkSize(n int) Option {
	return optionFunc(func(c *config) {
		if n > 0 {
			c.pullChunkSize = n
		}
	})
}

// WithTransformChunkSize sets the mini-batch size handed to one transform call.
func WithTransformChunkSize(n int) Option {
	return optionFunc(func(c *config) {
		if n > 0 {
			c.transformChunkSize = n
		}
	})
}

// WithTransformThreshold sets how many documents the small-batch engine
// accumulates before transforming.
func WithTransformThreshold(n int) Option {
	return optionFunc(func(c *config) {
		if n > 0 {
			c.transformThreshold = n
		}
	})
}

// WithDocumentLimit caps the pull chunk size.
func WithDocumentLimit(n int) Option {
	return optionFunc(func(c *config) {
		if n > 0 {
			c.documentLimit = n
		}
	})
}

// WithLimit caps the total number of documents processed in a run. Zero means no cap.
func WithLimit(n int) Option {
	return optionFunc(func(c *config) {
		if n >= 0 {
			c.limit = n
		}
	})
}

// WithFilters restricts the run to documents matching every filter.
func WithFilters(filters ...filter.Filter) Option {
	return optionFunc(func(c *config) {
		c.filters = append(c.filters, filters...)
	})
}

// WithSelectFields limits pulled documents to the given fields.
func WithSelectFields(fields ...string) Option {
	return optionFunc(func(c *config) {
		c.selectFields = append(c.selectFields, fields...)
	})
}

// WithIncludeVector makes pulls return every vector field. Vectors named in
// the select fields are returned either way.
func WithIncludeVector(include bool) Option {
	return optionFunc(func(c *config) {
		c.includeVector = include
	})
}

// WithRefresh controls reprocessing. With refresh off, documents whose
// operator outputs already exist are skipped.
func WithRefresh(refresh bool) Option {
	return optionFunc(func(c *config) {
		c.refresh = refresh
	})
}

// WithCheckMissingFields makes select fields absent from the schema a hard
// failure (true, the default) or a logged warning (false).
func WithCheckMissingFields(check bool) Option {
	return optionFunc(func(c *config) {
		c.checkMissingFields = check
	})
}

// WithWorker makes this engine process one shard out of total.
func WithWorker(number, total int) Option {
	return optionFunc(func(c *config) {
		c.workerNumber = number
		c.totalWorkers = total
	})
}

// WithRetry sets the pull attempt budget and the fixed delay between attempts.
func WithRetry(maxRetries int, delay time.Duration) Option {
	return optionFunc(func(c *config) {
		if maxRetries > 0 {
			c.maxRetries = maxRetries
		}
		if delay >= 0 {
			c.retryDelay = delay
		}
	})
}

// WithIngestInBackground lets the dataset acknowledge pushes before indexing.
func WithIngestInBackground(background bool) Option {
	return optionFunc(func(c *config) {
		c.ingestInBackground = background
	})
}

// WithOutputToStatus keeps transformed documents in memory for the job record
// instead of pushing them.
func WithOutputToStatus() Option {
	return optionFunc(func(c *config) {
		c.outputToStatus = true
	})
}

// WithProgress reports progress for jobID under the given step name.
func WithProgress(r ProgressReporter, jobID, step string) Option {
	return optionFunc(func(c *config) {
		c.reporter = r
		c.jobID = jobID
		c.step = step
	})
}

// WithDestinations sets how a dense engine opens its output datasets.
func WithDestinations(r DestinationResolver) Option {
	return optionFunc(func(c *config) {
		c.destinations = r
	})
}

// WithLogger sets the engine logger.
func WithLogger(l *zap.Logger) Option {
	return optionFunc(func(c *config) {
		c.logger = l
	})
}
