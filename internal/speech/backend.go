package speech

import "time"

// Segment is one recognized span of speech.
type Segment struct {
	Index int
	Start time.Duration
	End   time.Duration
	Text  string
}

// Recognizer turns mono 16 kHz samples into text segments. Implementations
// need not be safe for concurrent use; the engine serializes access.
type Recognizer interface {
	Recognize(samples []float32) ([]Segment, error)
	Close() error
}

// Backend loads model files into recognizers.
type Backend interface {
	Load(modelPath string) (Recognizer, error)
}
