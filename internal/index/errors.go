package index

import "errors"

var (
	// ErrNotReady is returned by Search before any generation has been
	// published. Callers must not confuse this with an empty result.
	ErrNotReady = errors.New("index not ready: no generation published")

	// ErrDimensionMismatch is returned when the query vector dimension
	// differs from the published generation's dimension. Failing loudly
	// here prevents garbage similarity scores.
	ErrDimensionMismatch = errors.New("query vector dimension does not match index")

	// ErrNoGeneration is returned by a Store when nothing has been
	// persisted yet.
	ErrNoGeneration = errors.New("no persisted index generation")
)
