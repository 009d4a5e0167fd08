package faults

import "errors"

// Failure taxonomy for the ingestion pipeline. Callers classify with
// errors.Is; handlers map each sentinel to an HTTP status.
var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrNotFound          = errors.New("not found")
	ErrIncomplete        = errors.New("upload incomplete")
	ErrAlreadyMerged     = errors.New("already merged")
	ErrResourceExhausted = errors.New("resource exhausted")
	ErrStorageFailure    = errors.New("storage failure")
	ErrExternalService   = errors.New("external service failure")
	ErrStateCorruption   = errors.New("state corruption")
)
