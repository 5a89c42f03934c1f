package metricz

import "errors"

var (
	// ErrUnknownSpan is raised when the host cannot resolve a span during a callback.
	ErrUnknownSpan = errors.New("metricz: span does not exist")
	// ErrIncompleteTiming is raised when a record with enters is flushed without both timestamps.
	ErrIncompleteTiming = errors.New("metricz: flush without matching enter and exit")
	// ErrInvalidWorkers is returned for a non-positive worker count.
	ErrInvalidWorkers = errors.New("metricz: workers must be > 0")
	// ErrInvalidQueueSize is returned for a non-positive queue size.
	ErrInvalidQueueSize = errors.New("metricz: queueSize must be > 0")
)
