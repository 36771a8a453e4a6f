package model

import "errors"

// Model lifecycle failures surfaced to the command layer.
var (
	// ErrUnknownTier reports a model tier id outside the catalog.
	ErrUnknownTier = errors.New("unknown model tier")

	// ErrStorageDir reports an unusable model storage directory.
	ErrStorageDir = errors.New("model storage directory unavailable")

	// ErrDownloadFailed reports a transport failure or an unexpected
	// HTTP status while fetching a model.
	ErrDownloadFailed = errors.New("model download failed")

	// ErrModelFile reports a model file write or remove failure.
	ErrModelFile = errors.New("model file operation failed")

	// ErrDownloadInProgress reports a duplicate concurrent download of
	// the same tier.
	ErrDownloadInProgress = errors.New("model download already in progress")
)
