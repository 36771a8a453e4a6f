package bootstrap

import (
	"context"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"

	"voice-scribe/internal/config"
	"voice-scribe/internal/diagnostics"
	"voice-scribe/internal/domain"
	"voice-scribe/internal/events"
	"voice-scribe/internal/history"
	"voice-scribe/internal/logging"
	"voice-scribe/internal/model"
	"voice-scribe/internal/speech"

	wailsruntime "github.com/wailsapp/wails/v2/pkg/runtime"
)

// App wires configuration, model lifecycle, transcription, and UI runtime
// callbacks.
type App struct {
	Settings    domain.Settings
	Store       config.Store
	Models      *model.Manager
	Downloads   *model.Downloader
	Engine      *speech.Engine
	History     *history.Store
	Diagnostics domain.DiagnosticReport

	assets      fs.FS
	checker     *diagnostics.Checker
	historyPath string
	log         zerolog.Logger

	mu         sync.Mutex
	events     *events.Bus
	runtimeCtx context.Context
}

// New builds the application with persisted settings and startup diagnostics.
func New() (*App, error) {
	return NewWithAssets(nil)
}

// NewWithAssets builds the application and optionally configures embedded
// frontend assets.
func NewWithAssets(assets fs.FS) (*App, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve user home: %w", err)
	}
	baseDir := filepath.Join(homeDir, ".voice-scribe")

	store := config.NewJSONStore(filepath.Join(baseDir, "settings.json"))
	settings, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	settings = normalizeSettings(settings)

	initLogging(settings.LogLevel)

	modelsDir := filepath.Join(baseDir, "models")
	catalog := model.DefaultCatalog()
	manager := model.New(catalog, modelsDir)
	engine := speech.NewEngine(manager, speech.NewWhisperBackend())

	app := &App{
		Settings:    settings,
		Store:       store,
		Models:      manager,
		Engine:      engine,
		assets:      assets,
		historyPath: filepath.Join(baseDir, "history.db"),
		log:         logging.WithComponent("app"),
		events:      events.NewBus(1000),
	}
	app.Downloads = model.NewDownloader(catalog, modelsDir, engine, app.publishDownloadProgress)

	if settings.KeepHistory {
		app.History, err = history.Open(context.Background(), app.historyPath, settings.HistoryLimit)
		if err != nil {
			return nil, fmt.Errorf("open transcript history: %w", err)
		}
	} else {
		app.History = history.OpenDisabled()
	}

	app.checker = diagnostics.NewChecker(modelsDir, catalog.FileNames())
	app.Diagnostics = app.checker.Run()

	return app, nil
}

// Run starts the Wails desktop application and binds backend methods.
func (a *App) Run() error {
	assetOptions := &assetserver.Options{}
	if a.assets != nil {
		assetOptions.Assets = a.assets
	} else {
		assetOptions.Handler = http.FileServer(http.Dir("./frontend"))
	}

	return wails.Run(&options.App{
		Title:       "Voice Scribe",
		Width:       960,
		Height:      640,
		AssetServer: assetOptions,
		OnStartup:   a.Startup,
		OnShutdown:  a.Shutdown,
		Bind:        []interface{}{a},
	})
}

// Startup stores Wails runtime context for push events.
func (a *App) Startup(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.runtimeCtx = ctx
}

// Shutdown releases the recognition context and closes the history store.
func (a *App) Shutdown(ctx context.Context) {
	a.Engine.Invalidate()
	if err := a.historyStore().Close(); err != nil {
		a.log.Warn().Err(err).Msg("close history store")
	}

	a.mu.Lock()
	a.runtimeCtx = nil
	a.mu.Unlock()
}

// GetModelStatus reports which model file currently backs transcription.
// The resolved path is recorded so a later lazy load can use it.
func (a *App) GetModelStatus() (domain.ModelStatus, error) {
	status, err := a.Models.Status()
	if err != nil {
		return domain.ModelStatus{}, err
	}

	if status.IsDownloaded {
		a.Engine.RecordModelPath(status.ModelPath)
	}
	return status, nil
}

// ListModels returns catalog presets with download markers for the UI.
func (a *App) ListModels() ([]domain.ModelOption, error) {
	return a.Models.Options()
}

// DownloadModel fetches a tier's model file, reporting progress through
// model events. An already-present file succeeds without network traffic.
func (a *App) DownloadModel(tierID string) (string, error) {
	result, err := a.Downloads.Download(context.Background(), tierID)
	if err != nil {
		a.publishModelEvent(domain.ModelEvent{
			Type:    domain.ModelEventDownloadFailed,
			Tier:    result.Tier,
			Message: err.Error(),
		})
		return "", err
	}

	if result.AlreadyPresent {
		return fmt.Sprintf("Model %s already downloaded", result.Tier), nil
	}

	a.publishModelEvent(domain.ModelEvent{
		Type:    domain.ModelEventDownloadDone,
		Tier:    result.Tier,
		Message: "Download complete",
	})
	return fmt.Sprintf("Model %s downloaded successfully", result.Tier), nil
}

// DeleteModel removes a tier's model file, dropping any loaded recognition
// context first. A file that is already absent is not an error.
func (a *App) DeleteModel(tierID string) (string, error) {
	result, err := a.Downloads.Delete(tierID)
	if err != nil {
		return "", err
	}

	if !result.Existed {
		return fmt.Sprintf("Model %s not found", result.Tier), nil
	}

	a.publishModelEvent(domain.ModelEvent{
		Type: domain.ModelEventModelDeleted,
		Tier: result.Tier,
	})
	return fmt.Sprintf("Model %s deleted successfully", result.Tier), nil
}

// Transcribe converts a WAV payload to text, appends the transcript to
// history when enabled, and announces it through model events.
func (a *App) Transcribe(audioData []byte) (domain.TranscriptionResult, error) {
	a.log.Info().Int("bytes", len(audioData)).Msg("transcription requested")

	status, err := a.Models.Status()
	if err != nil {
		return domain.TranscriptionResult{}, err
	}

	started := time.Now()
	result, err := a.Engine.Transcribe(audioData)
	if err != nil {
		return domain.TranscriptionResult{}, err
	}
	took := time.Since(started)

	a.mu.Lock()
	keep := a.Settings.KeepHistory
	a.mu.Unlock()
	if keep {
		if _, err := a.historyStore().Append(context.Background(), result.Text, status.ActiveTier, took); err != nil {
			a.log.Warn().Err(err).Msg("append transcript history")
		}
	}

	a.publishModelEvent(domain.ModelEvent{
		Type:    domain.ModelEventTranscriptReady,
		Tier:    status.ActiveTier,
		Message: result.Text,
	})
	return result, nil
}

// GetSettings loads and returns the latest persisted settings.
func (a *App) GetSettings() (domain.Settings, error) {
	settings, err := a.Store.Load()
	if err != nil {
		return domain.Settings{}, fmt.Errorf("load settings: %w", err)
	}
	settings = normalizeSettings(settings)

	a.mu.Lock()
	a.Settings = settings
	a.mu.Unlock()

	return settings, nil
}

// SaveSettings normalizes and persists settings, then reconfigures logging
// and history retention to match.
func (a *App) SaveSettings(settings domain.Settings) (domain.Settings, error) {
	normalized := normalizeSettings(settings)
	if err := a.Store.Save(normalized); err != nil {
		return domain.Settings{}, fmt.Errorf("save settings: %w", err)
	}

	a.mu.Lock()
	previous := a.Settings
	a.Settings = normalized
	a.mu.Unlock()

	if normalized.LogLevel != previous.LogLevel {
		initLogging(normalized.LogLevel)
	}
	if normalized.KeepHistory != previous.KeepHistory || normalized.HistoryLimit != previous.HistoryLimit {
		if err := a.reopenHistory(normalized); err != nil {
			a.log.Warn().Err(err).Msg("reopen transcript history")
		}
	}

	return normalized, nil
}

// ListTranscripts returns stored transcripts, newest first.
func (a *App) ListTranscripts(limit int) ([]domain.TranscriptRecord, error) {
	return a.historyStore().List(context.Background(), limit)
}

// ClearTranscripts removes all stored transcripts.
func (a *App) ClearTranscripts() error {
	return a.historyStore().Clear(context.Background())
}

// ModelEvents returns all events with sequence greater than sinceSeq.
func (a *App) ModelEvents(sinceSeq int64) []domain.ModelEvent {
	return a.events.Since(sinceSeq)
}

// GetDiagnostics returns the latest cached diagnostics report.
func (a *App) GetDiagnostics() domain.DiagnosticReport {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.Diagnostics
}

// RunDiagnostics reruns startup checks and caches the fresh report.
func (a *App) RunDiagnostics() domain.DiagnosticReport {
	report := a.checker.Run()

	a.mu.Lock()
	a.Diagnostics = report
	a.mu.Unlock()

	return report
}

// historyStore returns the current transcript store under the app lock;
// SaveSettings may swap it at runtime.
func (a *App) historyStore() *history.Store {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.History
}

// reopenHistory replaces the transcript store after a retention change.
func (a *App) reopenHistory(settings domain.Settings) error {
	next := history.OpenDisabled()
	if settings.KeepHistory {
		opened, err := history.Open(context.Background(), a.historyPath, settings.HistoryLimit)
		if err != nil {
			return err
		}
		next = opened
	}

	a.mu.Lock()
	previous := a.History
	a.History = next
	a.mu.Unlock()

	if previous != nil {
		if err := previous.Close(); err != nil {
			a.log.Warn().Err(err).Msg("close previous history store")
		}
	}
	return nil
}

// publishModelEvent stores event history and emits runtime push
// notifications.
func (a *App) publishModelEvent(event domain.ModelEvent) {
	published := a.events.Publish(event)

	a.mu.Lock()
	ctx := a.runtimeCtx
	a.mu.Unlock()
	if ctx != nil {
		wailsruntime.EventsEmit(ctx, "model:event", published)
	}
}

// publishDownloadProgress forwards downloader progress into model events.
func (a *App) publishDownloadProgress(tier domain.ModelTier, done, total int64, percent int) {
	a.publishModelEvent(domain.ModelEvent{
		Type:       domain.ModelEventDownloadProgress,
		Tier:       tier,
		Percent:    percent,
		BytesDone:  done,
		BytesTotal: total,
	})
}

// initLogging applies the configured level over the default logging setup.
func initLogging(level string) {
	cfg := logging.DefaultConfig()
	cfg.Level = level
	logging.Init(cfg)
}

// normalizeSettings trims inputs and applies defaults for empty fields.
func normalizeSettings(settings domain.Settings) domain.Settings {
	settings.LogLevel = strings.ToLower(strings.TrimSpace(settings.LogLevel))
	if settings.LogLevel == "" {
		settings.LogLevel = config.DefaultSettings().LogLevel
	}
	if settings.HistoryLimit <= 0 {
		settings.HistoryLimit = config.DefaultSettings().HistoryLimit
	}
	return settings
}
