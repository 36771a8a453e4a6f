package speech

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"voice-scribe/internal/audio"
	"voice-scribe/internal/domain"
)

type fakeStatus struct {
	mu     sync.Mutex
	status domain.ModelStatus
	err    error
}

func (f *fakeStatus) Status() (domain.ModelStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status, f.err
}

func (f *fakeStatus) set(status domain.ModelStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status = status
}

func downloadedStatus(path string) *fakeStatus {
	return &fakeStatus{status: domain.ModelStatus{
		ActiveTier:   domain.ModelTierCompact,
		IsDownloaded: true,
		ModelPath:    path,
		SizeMB:       75,
	}}
}

type fakeBackend struct {
	mu        sync.Mutex
	loads     int
	closes    int
	loadDelay time.Duration
	loadErr   error
	segments  []Segment
	recErr    error
	heard     [][]float32
}

func (b *fakeBackend) Load(path string) (Recognizer, error) {
	b.mu.Lock()
	b.loads++
	err := b.loadErr
	delay := b.loadDelay
	b.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}
	if err != nil {
		return nil, err
	}
	return &fakeRecognizer{backend: b}, nil
}

func (b *fakeBackend) setLoadErr(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.loadErr = err
}

func (b *fakeBackend) loadCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.loads
}

func (b *fakeBackend) closeCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closes
}

func (b *fakeBackend) heardSamples() [][]float32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.heard
}

type fakeRecognizer struct {
	backend *fakeBackend
}

func (r *fakeRecognizer) Recognize(samples []float32) ([]Segment, error) {
	r.backend.mu.Lock()
	r.backend.heard = append(r.backend.heard, samples)
	segments, err := r.backend.segments, r.backend.recErr
	r.backend.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return segments, nil
}

func (r *fakeRecognizer) Close() error {
	r.backend.mu.Lock()
	defer r.backend.mu.Unlock()
	r.backend.closes++
	return nil
}

func staticDecode(samples []float32, rate int) func([]byte) (audio.Buffer, error) {
	return func([]byte) (audio.Buffer, error) {
		return audio.Buffer{Samples: samples, SampleRate: rate, Channels: 1}, nil
	}
}

func buildPCM16WAV(t *testing.T, rate int, values []int) []byte {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create wav: %v", err)
	}
	enc := wav.NewEncoder(f, rate, 16, 1, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: rate},
		SourceBitDepth: 16,
		Data:           values,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("encode wav: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close encoder: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close file: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read wav: %v", err)
	}
	return data
}

func TestTranscribeNoModel(t *testing.T) {
	backend := &fakeBackend{}
	e := NewEngineForTests(&fakeStatus{}, backend, staticDecode(nil, 16000))

	_, err := e.Transcribe([]byte("riff"))
	if !errors.Is(err, ErrNoModel) {
		t.Fatalf("Transcribe() error = %v, want ErrNoModel", err)
	}
	if backend.loadCount() != 0 {
		t.Fatal("backend loaded without a model on disk")
	}
}

func TestTranscribeStatusError(t *testing.T) {
	statErr := errors.New("stat failed")
	e := NewEngineForTests(&fakeStatus{err: statErr}, &fakeBackend{}, staticDecode(nil, 16000))

	_, err := e.Transcribe(nil)
	if !errors.Is(err, statErr) {
		t.Fatalf("Transcribe() error = %v, want status error passed through", err)
	}
}

func TestTranscribeLoadsModelOnce(t *testing.T) {
	backend := &fakeBackend{segments: []Segment{{Text: " hello"}}}
	e := NewEngineForTests(downloadedStatus("/models/m.bin"), backend, staticDecode(make([]float32, 160), 16000))

	for i := 0; i < 3; i++ {
		result, err := e.Transcribe(nil)
		if err != nil {
			t.Fatalf("Transcribe() #%d error = %v", i, err)
		}
		if !result.Success {
			t.Fatalf("Transcribe() #%d reported Success = false", i)
		}
		if result.Text != "hello" {
			t.Fatalf("Transcribe() #%d text = %q, want %q", i, result.Text, "hello")
		}
	}
	if backend.loadCount() != 1 {
		t.Fatalf("backend loads = %d, want 1", backend.loadCount())
	}
}

func TestTranscribeJoinsSegments(t *testing.T) {
	backend := &fakeBackend{segments: []Segment{
		{Index: 0, Text: "hello"},
		{Index: 1, Text: "world"},
		{Index: 2, Text: "today"},
	}}
	e := NewEngineForTests(downloadedStatus("/models/m.bin"), backend, staticDecode(nil, 16000))

	result, err := e.Transcribe(nil)
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	if result.Text != "hello world today" {
		t.Fatalf("Text = %q, want %q", result.Text, "hello world today")
	}
}

func TestTranscribeTrimsEdges(t *testing.T) {
	backend := &fakeBackend{segments: []Segment{{Text: " padded edges "}}}
	e := NewEngineForTests(downloadedStatus("/models/m.bin"), backend, staticDecode(nil, 16000))

	result, err := e.Transcribe(nil)
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	if result.Text != "padded edges" {
		t.Fatalf("Text = %q, want %q", result.Text, "padded edges")
	}
}

func TestTranscribeLoadFailureRetries(t *testing.T) {
	backend := &fakeBackend{segments: []Segment{{Text: "ok"}}}
	backend.setLoadErr(errors.New("corrupt file"))
	e := NewEngineForTests(downloadedStatus("/models/m.bin"), backend, staticDecode(nil, 16000))

	_, err := e.Transcribe(nil)
	if !errors.Is(err, ErrModelLoad) {
		t.Fatalf("Transcribe() error = %v, want ErrModelLoad", err)
	}

	backend.setLoadErr(nil)
	if _, err := e.Transcribe(nil); err != nil {
		t.Fatalf("Transcribe() after repair error = %v", err)
	}
	if backend.loadCount() != 2 {
		t.Fatalf("backend loads = %d, want 2", backend.loadCount())
	}
}

func TestInvalidateDropsContext(t *testing.T) {
	backend := &fakeBackend{segments: []Segment{{Text: "ok"}}}
	e := NewEngineForTests(downloadedStatus("/models/m.bin"), backend, staticDecode(nil, 16000))

	if _, err := e.Transcribe(nil); err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	e.Invalidate()
	if backend.closeCount() != 1 {
		t.Fatalf("recognizer closes = %d, want 1", backend.closeCount())
	}

	// The file is still on disk, so the next call reloads.
	if _, err := e.Transcribe(nil); err != nil {
		t.Fatalf("Transcribe() after invalidate error = %v", err)
	}
	if backend.loadCount() != 2 {
		t.Fatalf("backend loads = %d, want 2", backend.loadCount())
	}
}

func TestInvalidateThenModelDeleted(t *testing.T) {
	backend := &fakeBackend{segments: []Segment{{Text: "ok"}}}
	status := downloadedStatus("/models/m.bin")
	e := NewEngineForTests(status, backend, staticDecode(nil, 16000))

	if _, err := e.Transcribe(nil); err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	e.Invalidate()
	status.set(domain.ModelStatus{})

	_, err := e.Transcribe(nil)
	if !errors.Is(err, ErrNoModel) {
		t.Fatalf("Transcribe() after delete error = %v, want ErrNoModel", err)
	}
	if backend.loadCount() != 1 {
		t.Fatalf("backend loads = %d, want 1", backend.loadCount())
	}
}

func TestLoadedContextSurvivesTierChange(t *testing.T) {
	backend := &fakeBackend{segments: []Segment{{Text: "ok"}}}
	status := downloadedStatus("/models/ggml-tiny.en.bin")
	e := NewEngineForTests(status, backend, staticDecode(nil, 16000))

	if _, err := e.Transcribe(nil); err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}

	status.set(domain.ModelStatus{
		ActiveTier:   domain.ModelTierStandard,
		IsDownloaded: true,
		ModelPath:    "/models/ggml-base.en.bin",
		SizeMB:       142,
	})
	if _, err := e.Transcribe(nil); err != nil {
		t.Fatalf("Transcribe() after tier change error = %v", err)
	}
	if backend.loadCount() != 1 {
		t.Fatalf("backend loads = %d, want 1; context lives until delete", backend.loadCount())
	}
}

func TestTranscribeRejectsWrongSampleRate(t *testing.T) {
	backend := &fakeBackend{segments: []Segment{{Text: "ok"}}}
	e := NewEngineForTests(downloadedStatus("/models/m.bin"), backend, staticDecode(nil, 44100))

	_, err := e.Transcribe(nil)
	if !errors.Is(err, audio.ErrInvalidWAV) {
		t.Fatalf("Transcribe() error = %v, want ErrInvalidWAV", err)
	}
	if len(backend.heardSamples()) != 0 {
		t.Fatal("mismatched sample rate still reached the recognizer")
	}
}

func TestTranscribeRecognitionError(t *testing.T) {
	backend := &fakeBackend{recErr: errors.New("inference blew up")}
	e := NewEngineForTests(downloadedStatus("/models/m.bin"), backend, staticDecode(nil, 16000))

	_, err := e.Transcribe(nil)
	if !errors.Is(err, ErrRecognition) {
		t.Fatalf("Transcribe() error = %v, want ErrRecognition", err)
	}
}

func TestTranscribeDecodeErrorPassesThrough(t *testing.T) {
	backend := &fakeBackend{}
	decode := func([]byte) (audio.Buffer, error) {
		return audio.Buffer{}, audio.ErrInvalidWAV
	}
	e := NewEngineForTests(downloadedStatus("/models/m.bin"), backend, decode)

	_, err := e.Transcribe([]byte("not a wav"))
	if !errors.Is(err, audio.ErrInvalidWAV) {
		t.Fatalf("Transcribe() error = %v, want ErrInvalidWAV", err)
	}
}

func TestTranscribeSingleLoadUnderContention(t *testing.T) {
	backend := &fakeBackend{loadDelay: 20 * time.Millisecond, segments: []Segment{{Text: "ok"}}}
	e := NewEngineForTests(downloadedStatus("/models/m.bin"), backend, staticDecode(nil, 16000))

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = e.Transcribe(nil)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("Transcribe() #%d error = %v", i, err)
		}
	}
	if backend.loadCount() != 1 {
		t.Fatalf("backend loads = %d, want 1", backend.loadCount())
	}
}

func TestTranscribeDecodesWAVPayload(t *testing.T) {
	backend := &fakeBackend{segments: []Segment{
		{Index: 0, Text: "hello"},
		{Index: 1, Text: "world"},
		{Index: 2, Text: "today"},
	}}
	e := NewEngine(downloadedStatus("/models/m.bin"), backend)

	data := buildPCM16WAV(t, 16000, []int{1000, -1000, 0, 16384})
	result, err := e.Transcribe(data)
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	if result.Text != "hello world today" {
		t.Fatalf("Text = %q, want %q", result.Text, "hello world today")
	}

	heard := backend.heardSamples()
	if len(heard) != 1 {
		t.Fatalf("recognizer heard %d payloads, want 1", len(heard))
	}
	samples := heard[0]
	if len(samples) != 4 {
		t.Fatalf("recognizer heard %d samples, want 4", len(samples))
	}
	if samples[0] != 1000.0/32768.0 {
		t.Fatalf("samples[0] = %v, want %v", samples[0], 1000.0/32768.0)
	}
	if samples[3] != 0.5 {
		t.Fatalf("samples[3] = %v, want 0.5", samples[3])
	}
}
