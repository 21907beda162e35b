package batch

import (
	"fmt"
	"strings"
)

// ChunkError is the record of one mini-batch whose transform failed.
type ChunkError struct {
	step string
	ids  []string
	err  error
}

// NewChunkError creates a failed mini-batch record.
func NewChunkError(step string, ids []string, err error) ChunkError {
	return ChunkError{step: step, ids: append([]string(nil), ids...), err: err}
}

// Step returns the operator or pass name the chunk failed in.
func (c ChunkError) Step() string { return c.step }

// IDs returns the identifiers of the documents in the failed chunk.
func (c ChunkError) IDs() []string { return c.ids }

// Err returns the transform error.
func (c ChunkError) Err() error { return c.err }

// Contains reports whether id was part of the failed chunk.
func (c ChunkError) Contains(id string) bool {
	for _, x := range c.ids {
		if x == id {
			return true
		}
	}
	return false
}

func (c ChunkError) Error() string {
	return fmt.Sprintf("%s: chunk [%s]: %v", c.step, strings.Join(c.ids, ","), c.err)
}

func (c ChunkError) Unwrap() error { return c.err }
