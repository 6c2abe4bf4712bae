package huddle

import "errors"

var (
	// Store errors.
	ErrNoStore     = errors.New("huddle: no job store configured")
	ErrNoQueue     = errors.New("huddle: no job queue configured")
	ErrStoreClosed = errors.New("huddle: store closed")

	// Not found errors.
	ErrJobNotFound = errors.New("huddle: job not found")

	// Conflict errors.
	ErrJobAlreadyExists = errors.New("huddle: job already exists")

	// State errors.
	ErrMaxRetriesExceeded = errors.New("huddle: max retries exceeded")
	ErrEngineStarted      = errors.New("huddle: engine already started")
)
