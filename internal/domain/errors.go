package domain

import "errors"

var (
	// ErrSessionNotFound means the session id is unknown to the store.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionExists means a session with the same id was already created.
	ErrSessionExists = errors.New("session already exists")

	// ErrExtraction marks a failed or unparsable extraction call. The
	// pipeline degrades it to an empty delta.
	ErrExtraction = errors.New("extraction failed")

	// ErrValidation marks a failed or unparsable stage judgment. The
	// validator degrades it to the deterministic fallback rule.
	ErrValidation = errors.New("stage validation failed")

	// ErrGeneration marks a failed prompt generation. There is no fallback
	// text, so it surfaces to the caller as retryable.
	ErrGeneration = errors.New("prompt generation failed")

	// ErrPersistence marks a store failure.
	ErrPersistence = errors.New("persistence failed")
)
