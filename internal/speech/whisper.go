package speech

import (
	"fmt"
	"io"

	whisper "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
)

// requiredSampleRate is the only sample rate whisper models accept.
const requiredSampleRate = 16000

// recognitionConfig is the fixed decoding setup applied to every new
// context. There are no user-tunable recognition options.
type recognitionConfig struct {
	language  string
	translate bool
	beamWidth int
}

var defaultRecognition = recognitionConfig{language: "en", translate: false, beamWidth: 1}

func (c recognitionConfig) apply(ctx whisper.Context, multilingual bool) error {
	// English-only models reject an explicit language.
	if multilingual {
		if err := ctx.SetLanguage(c.language); err != nil {
			return fmt.Errorf("set language: %w", err)
		}
	}
	ctx.SetTranslate(c.translate)
	ctx.SetBeamSize(c.beamWidth)
	return nil
}

// WhisperBackend loads whisper.cpp models through the Go bindings.
type WhisperBackend struct{}

// NewWhisperBackend returns the production recognition backend.
func NewWhisperBackend() *WhisperBackend {
	return &WhisperBackend{}
}

// Load reads a ggml model file into memory. The returned recognizer keeps
// the model loaded until Close.
func (b *WhisperBackend) Load(modelPath string) (Recognizer, error) {
	model, err := whisper.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("load whisper model %q: %w", modelPath, err)
	}
	return &whisperRecognizer{model: model}, nil
}

type whisperRecognizer struct {
	model whisper.Model
}

// Recognize runs one greedy English decoding pass over the samples.
func (r *whisperRecognizer) Recognize(samples []float32) ([]Segment, error) {
	ctx, err := r.model.NewContext()
	if err != nil {
		return nil, fmt.Errorf("create whisper context: %w", err)
	}
	if err := defaultRecognition.apply(ctx, r.model.IsMultilingual()); err != nil {
		return nil, err
	}

	if err := ctx.Process(samples, nil, nil, nil); err != nil {
		return nil, fmt.Errorf("process audio: %w", err)
	}

	var segments []Segment
	for {
		seg, err := ctx.NextSegment()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read segment: %w", err)
		}
		segments = append(segments, Segment{
			Index: seg.Num,
			Start: seg.Start,
			End:   seg.End,
			Text:  seg.Text,
		})
	}
	return segments, nil
}

func (r *whisperRecognizer) Close() error {
	return r.model.Close()
}
