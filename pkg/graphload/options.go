package graphload

import "log"

// DefaultChunkSize is the maximum rows sent in one record batch.
const DefaultChunkSize = 10_000

// ProgressFunc is notified each time a chunk is written.
//
// entityType is EntityNode or EntityRelationship, and rows is the size of the chunk.
type ProgressFunc func(entityType string, rows int64)

type config struct {
	chunkSize int64
	progress  ProgressFunc
	logger    *log.Logger
}

type Option func(*config) *config

// WithChunkSize sets the maximum rows in one record batch.
//
// Non-positive values are ignored.
func WithChunkSize(n int) Option {
	return func(c *config) *config {
		if 0 < n {
			c.chunkSize = int64(n)
		}
		return c
	}
}

func WithProgress(f ProgressFunc) Option {
	return func(c *config) *config {
		c.progress = f
		return c
	}
}

func WithLogger(l *log.Logger) Option {
	return func(c *config) *config {
		c.logger = l
		return c
	}
}
