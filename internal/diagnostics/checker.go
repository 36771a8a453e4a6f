package diagnostics

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"golang.org/x/sys/cpu"

	"voice-scribe/internal/domain"
)

// Checker validates the model storage directory and host capabilities.
type Checker struct {
	modelsDir  string
	modelFiles []string
	goarch     string
	stat       func(string) (os.FileInfo, error)
	mkdirAll   func(string, os.FileMode) error
	createTemp func(string, string) (*os.File, error)
	remove     func(string) error
	hasAVX     func() bool
}

// NewChecker builds a checker using real OS dependencies. modelFiles are
// the known model file names in preference order.
func NewChecker(modelsDir string, modelFiles []string) *Checker {
	return &Checker{
		modelsDir:  modelsDir,
		modelFiles: modelFiles,
		goarch:     runtime.GOARCH,
		stat:       os.Stat,
		mkdirAll:   os.MkdirAll,
		createTemp: os.CreateTemp,
		remove:     os.Remove,
		hasAVX:     func() bool { return cpu.X86.HasAVX },
	}
}

// NewCheckerForTests creates a checker with injectable dependencies.
func NewCheckerForTests(
	modelsDir string,
	modelFiles []string,
	goarch string,
	stat func(string) (os.FileInfo, error),
	mkdirAll func(string, os.FileMode) error,
	createTemp func(string, string) (*os.File, error),
	remove func(string) error,
	hasAVX func() bool,
) *Checker {
	return &Checker{
		modelsDir:  modelsDir,
		modelFiles: modelFiles,
		goarch:     goarch,
		stat:       stat,
		mkdirAll:   mkdirAll,
		createTemp: createTemp,
		remove:     remove,
		hasAVX:     hasAVX,
	}
}

// Run executes all startup checks and returns a combined report. Warnings
// do not count as failures.
func (c *Checker) Run() domain.DiagnosticReport {
	items := []domain.DiagnosticItem{
		c.checkStorageDir(),
		c.checkModelFiles(),
		c.checkCPUFeatures(),
	}

	hasFailures := false
	for _, item := range items {
		if item.Status == domain.DiagnosticStatusFail {
			hasFailures = true
			break
		}
	}

	return domain.DiagnosticReport{
		GeneratedAt: time.Now().UTC(),
		HasFailures: hasFailures,
		Items:       items,
	}
}

// checkStorageDir validates model directory existence and write access.
func (c *Checker) checkStorageDir() domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   "storage_dir",
		Name: "Model storage",
	}

	if err := c.mkdirAll(c.modelsDir, 0o755); err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Cannot create model directory: %s", c.modelsDir)
		item.Hint = "Choose a writable home directory or adjust filesystem permissions."
		return item
	}

	tmpFile, err := c.createTemp(c.modelsDir, ".write-check-*")
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Model directory is not writable: %s", c.modelsDir)
		item.Hint = "Model downloads need write access to this directory."
		return item
	}

	tmpPath := tmpFile.Name()
	_ = tmpFile.Close()
	_ = c.remove(tmpPath)

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Writable directory: %s", c.modelsDir)
	return item
}

// checkModelFiles reports whether any known model file is present. A
// missing model is a warning, not a failure; the app can download one.
func (c *Checker) checkModelFiles() domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   "model_files",
		Name: "Model files",
	}

	for _, name := range c.modelFiles {
		path := filepath.Join(c.modelsDir, name)
		if _, err := c.stat(path); err == nil {
			item.Status = domain.DiagnosticStatusPass
			item.Message = fmt.Sprintf("Model file found: %s", path)
			return item
		}
	}

	item.Status = domain.DiagnosticStatusWarn
	item.Message = "No model downloaded yet."
	item.Hint = "Download a model before the first transcription."
	return item
}

// checkCPUFeatures verifies the instruction sets the recognition library
// needs. Only x86 requires AVX; ARM builds carry NEON unconditionally.
func (c *Checker) checkCPUFeatures() domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   "cpu_features",
		Name: "CPU features",
	}

	if c.goarch != "amd64" && c.goarch != "386" {
		item.Status = domain.DiagnosticStatusPass
		item.Message = fmt.Sprintf("No feature gate on %s.", c.goarch)
		return item
	}

	if c.hasAVX() {
		item.Status = domain.DiagnosticStatusPass
		item.Message = "AVX instructions available."
		return item
	}

	item.Status = domain.DiagnosticStatusFail
	item.Message = "CPU lacks AVX instructions required for recognition."
	item.Hint = "Run on a machine whose CPU supports AVX."
	return item
}
