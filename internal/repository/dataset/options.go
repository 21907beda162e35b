package dataset

import "go.uber.org/zap"

// Repository defaults.
const (
	// DefaultScanSize is how many ids one filtered scan round reads.
	DefaultScanSize    = 500
	DefaultBulkWorkers = 4
)

// Option configures a Repo.
type Option func(*Repo)

// WithKeyPrefix namespaces every key.
func WithKeyPrefix(prefix string) Option {
	return func(r *Repo) { r.prefix = prefix }
}

// WithScanSize sets the id batch read per scan round.
func WithScanSize(n int) Option {
	return func(r *Repo) {
		if n > 0 {
			r.scanSize = n
		}
	}
}

// WithBulkWorkers sets the BulkInsert concurrency.
func WithBulkWorkers(n int) Option {
	return func(r *Repo) {
		if n > 0 {
			r.bulkWorkers = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Repo) {
		if l != nil {
			r.logger = l
		}
	}
}
