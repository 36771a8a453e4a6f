package speech

import (
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"voice-scribe/internal/audio"
	"voice-scribe/internal/domain"
	"voice-scribe/internal/logging"
)

// statusProvider reports which model file is currently on disk.
type statusProvider interface {
	Status() (domain.ModelStatus, error)
}

// Engine owns the loaded recognition context. The context is created
// lazily on the first transcription, survives tier changes, and is
// dropped only through Invalidate when a model file is deleted.
type Engine struct {
	models  statusProvider
	backend Backend
	decode  func([]byte) (audio.Buffer, error)
	log     zerolog.Logger

	mu         sync.Mutex
	recognizer Recognizer
	activePath string
}

// NewEngine builds a transcription engine over a model status source and
// a recognition backend.
func NewEngine(models statusProvider, backend Backend) *Engine {
	return &Engine{
		models:  models,
		backend: backend,
		decode:  audio.Decode,
		log:     logging.WithComponent("speech"),
	}
}

// NewEngineForTests creates an engine with an injectable audio decoder.
func NewEngineForTests(models statusProvider, backend Backend, decode func([]byte) (audio.Buffer, error)) *Engine {
	e := NewEngine(models, backend)
	e.decode = decode
	return e
}

// Transcribe decodes a WAV payload and runs it through the recognizer,
// loading the model on first use. Segment texts are joined with single
// spaces and the result is trimmed.
func (e *Engine) Transcribe(data []byte) (domain.TranscriptionResult, error) {
	status, err := e.models.Status()
	if err != nil {
		return domain.TranscriptionResult{}, err
	}
	if !status.IsDownloaded {
		return domain.TranscriptionResult{}, fmt.Errorf("%w: download a model first", ErrNoModel)
	}
	e.RecordModelPath(status.ModelPath)

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.recognizer == nil {
		if e.activePath == "" {
			return domain.TranscriptionResult{}, fmt.Errorf("%w: model was removed", ErrNoModel)
		}
		e.log.Info().Str("path", e.activePath).Msg("loading recognition model")
		rec, err := e.backend.Load(e.activePath)
		if err != nil {
			return domain.TranscriptionResult{}, fmt.Errorf("%w: %v", ErrModelLoad, err)
		}
		e.recognizer = rec
	}

	buf, err := e.decode(data)
	if err != nil {
		return domain.TranscriptionResult{}, err
	}
	if buf.SampleRate != requiredSampleRate {
		return domain.TranscriptionResult{}, fmt.Errorf("%w: sample rate %d Hz, want %d Hz",
			audio.ErrInvalidWAV, buf.SampleRate, requiredSampleRate)
	}

	segments, err := e.recognizer.Recognize(buf.Samples)
	if err != nil {
		return domain.TranscriptionResult{}, fmt.Errorf("%w: %v", ErrRecognition, err)
	}

	parts := make([]string, 0, len(segments))
	for _, seg := range segments {
		parts = append(parts, seg.Text)
	}
	text := strings.TrimSpace(strings.Join(parts, " "))

	return domain.TranscriptionResult{Text: text, Success: true}, nil
}

// RecordModelPath remembers the model file a status check resolved. The
// loaded context is not replaced when the path changes; it lives until
// the file is deleted.
func (e *Engine) RecordModelPath(path string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.activePath = path
}

// Invalidate drops the loaded recognition context and forgets the active
// model path. Called when a model file is about to be removed.
func (e *Engine) Invalidate() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.recognizer != nil {
		if err := e.recognizer.Close(); err != nil {
			e.log.Warn().Err(err).Msg("close recognition context")
		}
		e.log.Info().Str("path", e.activePath).Msg("recognition context dropped")
	}
	e.recognizer = nil
	e.activePath = ""
}
