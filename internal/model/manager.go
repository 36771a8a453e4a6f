package model

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"voice-scribe/internal/domain"
	"voice-scribe/internal/logging"
)

// Manager resolves model file locations and computes download status
// directly from the filesystem.
type Manager struct {
	catalog  Catalog
	dir      string
	stat     func(string) (os.FileInfo, error)
	fileSize func(string) (int64, error)
	mkdirAll func(string, os.FileMode) error
	log      zerolog.Logger
}

// New builds a manager over the real filesystem.
func New(catalog Catalog, modelsDir string) *Manager {
	return &Manager{
		catalog:  catalog,
		dir:      modelsDir,
		stat:     os.Stat,
		fileSize: fileSize,
		mkdirAll: os.MkdirAll,
		log:      logging.WithComponent("model"),
	}
}

// NewManagerForTests creates a manager with injectable filesystem hooks.
func NewManagerForTests(
	catalog Catalog,
	modelsDir string,
	stat func(string) (os.FileInfo, error),
	fileSize func(string) (int64, error),
	mkdirAll func(string, os.FileMode) error,
) *Manager {
	return &Manager{
		catalog:  catalog,
		dir:      modelsDir,
		stat:     stat,
		fileSize: fileSize,
		mkdirAll: mkdirAll,
		log:      logging.WithComponent("model"),
	}
}

// Dir returns the model storage directory after ensuring it exists.
func (m *Manager) Dir() (string, error) {
	if err := m.mkdirAll(m.dir, 0o755); err != nil {
		return "", fmt.Errorf("%w: create %s: %v", ErrStorageDir, m.dir, err)
	}
	return m.dir, nil
}

// Status reports which model file is present, preferring the standard
// tier when both exist. The reported size comes from file metadata and
// falls back to the catalog's nominal size when the probe fails.
func (m *Manager) Status() (domain.ModelStatus, error) {
	dir, err := m.Dir()
	if err != nil {
		return domain.ModelStatus{}, err
	}

	for _, entry := range m.catalog.Entries() {
		path := filepath.Join(dir, entry.FileName)
		if _, err := m.stat(path); err != nil {
			continue
		}

		sizeMB := entry.NominalMB
		if size, err := m.fileSize(path); err == nil {
			sizeMB = float64(size) / 1024.0 / 1024.0
		}

		return domain.ModelStatus{
			ActiveTier:   entry.Tier,
			IsDownloaded: true,
			ModelPath:    path,
			SizeMB:       sizeMB,
		}, nil
	}

	return domain.ModelStatus{}, nil
}

// Options returns catalog presets with download markers for the UI.
func (m *Manager) Options() ([]domain.ModelOption, error) {
	dir, err := m.Dir()
	if err != nil {
		return nil, err
	}

	entries := m.catalog.Entries()
	options := make([]domain.ModelOption, 0, len(entries))
	for _, entry := range entries {
		option := domain.ModelOption{
			ID:          string(entry.Tier),
			Name:        entry.Name,
			FileName:    entry.FileName,
			URL:         entry.URL,
			SizeLabel:   entry.SizeLabel,
			Description: entry.Description,
		}

		path := filepath.Join(dir, entry.FileName)
		if info, err := m.stat(path); err == nil && !info.IsDir() {
			option.Downloaded = true
			option.LocalPath = path
		}
		options = append(options, option)
	}
	return options, nil
}

// fileSize reads the on-disk size of one file.
func fileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}
