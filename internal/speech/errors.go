package speech

import "errors"

// Transcription failures surfaced to the command layer.
var (
	// ErrNoModel reports a transcription attempt with no model on disk.
	ErrNoModel = errors.New("no model downloaded")

	// ErrModelLoad reports a model file that could not be loaded into a
	// recognition context.
	ErrModelLoad = errors.New("model load failed")

	// ErrRecognition reports a failure inside the recognition pass.
	ErrRecognition = errors.New("speech recognition failed")
)
