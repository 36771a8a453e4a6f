package model

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"

	"voice-scribe/internal/domain"
	"voice-scribe/internal/logging"
)

// progressByteStep spaces progress reports when the total size is unknown.
const progressByteStep = 8 << 20

// ProgressFunc receives download progress updates. total is zero when the
// server did not announce a content length, and percent is only meaningful
// when total is known.
type ProgressFunc func(tier domain.ModelTier, done, total int64, percent int)

// CacheInvalidator clears any recognition context loaded from a model file.
type CacheInvalidator interface {
	Invalidate()
}

// DownloadResult describes the outcome of one download request.
type DownloadResult struct {
	Tier           domain.ModelTier
	Path           string
	AlreadyPresent bool
}

// DeleteResult describes the outcome of one delete request.
type DeleteResult struct {
	Tier    domain.ModelTier
	Existed bool
}

// Downloader fetches and removes model files. Downloads are single-flight
// per tier; a file that is already on disk is never fetched again.
type Downloader struct {
	catalog    Catalog
	dir        string
	cache      CacheInvalidator
	onProgress ProgressFunc
	client     *http.Client
	stat       func(string) (os.FileInfo, error)
	mkdirAll   func(string, os.FileMode) error
	writeFile  func(string, []byte, os.FileMode) error
	remove     func(string) error
	log        zerolog.Logger

	mu       sync.Mutex
	inFlight map[domain.ModelTier]bool
}

// NewDownloader builds a downloader over the real filesystem and network.
func NewDownloader(catalog Catalog, modelsDir string, cache CacheInvalidator, onProgress ProgressFunc) *Downloader {
	return &Downloader{
		catalog:    catalog,
		dir:        modelsDir,
		cache:      cache,
		onProgress: onProgress,
		client:     http.DefaultClient,
		stat:       os.Stat,
		mkdirAll:   os.MkdirAll,
		writeFile:  os.WriteFile,
		remove:     os.Remove,
		log:        logging.WithComponent("download"),
		inFlight:   make(map[domain.ModelTier]bool),
	}
}

// NewDownloaderForTests creates a downloader with injectable filesystem hooks.
func NewDownloaderForTests(
	catalog Catalog,
	modelsDir string,
	cache CacheInvalidator,
	onProgress ProgressFunc,
	stat func(string) (os.FileInfo, error),
	mkdirAll func(string, os.FileMode) error,
	writeFile func(string, []byte, os.FileMode) error,
	remove func(string) error,
) *Downloader {
	d := NewDownloader(catalog, modelsDir, cache, onProgress)
	d.stat = stat
	d.mkdirAll = mkdirAll
	d.writeFile = writeFile
	d.remove = remove
	return d
}

// Download fetches the model file for a tier. A file that already exists
// is reported as AlreadyPresent without any network traffic. The response
// body is read in full and written to disk in one operation, so a failed
// write can leave a truncated file behind; it will surface as a load
// failure at transcription time.
func (d *Downloader) Download(ctx context.Context, id string) (DownloadResult, error) {
	tier, err := d.catalog.ParseTier(id)
	if err != nil {
		return DownloadResult{}, err
	}
	entry, _ := d.catalog.Entry(tier)
	result := DownloadResult{Tier: tier}

	if err := d.acquire(tier); err != nil {
		return result, err
	}
	defer d.release(tier)

	if err := d.mkdirAll(d.dir, 0o755); err != nil {
		return result, fmt.Errorf("%w: create %s: %v", ErrStorageDir, d.dir, err)
	}

	dest := filepath.Join(d.dir, entry.FileName)
	result.Path = dest
	if _, err := d.stat(dest); err == nil {
		d.log.Info().Str("tier", string(tier)).Str("path", dest).Msg("model already downloaded")
		result.AlreadyPresent = true
		return result, nil
	}

	d.log.Info().Str("tier", string(tier)).Str("url", entry.URL).Msg("downloading model")
	body, err := d.fetch(ctx, tier, entry.URL)
	if err != nil {
		return result, err
	}

	if err := d.writeFile(dest, body, 0o644); err != nil {
		return result, fmt.Errorf("%w: write %s: %v", ErrModelFile, dest, err)
	}

	d.log.Info().Str("tier", string(tier)).Int("bytes", len(body)).Str("path", dest).Msg("model downloaded")
	return result, nil
}

// Delete removes the model file for a tier. The engine cache is cleared
// first in every case; a loaded context must not outlive its backing file.
// A file that is already absent is not an error.
func (d *Downloader) Delete(id string) (DeleteResult, error) {
	tier, err := d.catalog.ParseTier(id)
	if err != nil {
		return DeleteResult{}, err
	}
	entry, _ := d.catalog.Entry(tier)
	result := DeleteResult{Tier: tier}

	if d.cache != nil {
		d.cache.Invalidate()
	}

	dest := filepath.Join(d.dir, entry.FileName)
	if _, err := d.stat(dest); err != nil {
		d.log.Info().Str("tier", string(tier)).Str("path", dest).Msg("model file not present")
		return result, nil
	}

	if err := d.remove(dest); err != nil {
		result.Existed = true
		return result, fmt.Errorf("%w: remove %s: %v", ErrModelFile, dest, err)
	}

	d.log.Info().Str("tier", string(tier)).Str("path", dest).Msg("model deleted")
	result.Existed = true
	return result, nil
}

// fetch issues one GET and reads the whole body, reporting progress.
func (d *Downloader) fetch(ctx context.Context, tier domain.ModelTier, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrDownloadFailed, err)
	}
	req.Header.Set("User-Agent", "voice-scribe")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected HTTP status %s", ErrDownloadFailed, resp.Status)
	}

	reader := &progressReader{
		r:     resp.Body,
		total: resp.ContentLength,
		report: func(done, total int64, percent int) {
			if d.onProgress != nil {
				d.onProgress(tier, done, total, percent)
			}
		},
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("%w: read response body: %v", ErrDownloadFailed, err)
	}
	return body, nil
}

// acquire marks a tier download in flight, rejecting duplicates.
func (d *Downloader) acquire(tier domain.ModelTier) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.inFlight[tier] {
		return fmt.Errorf("%w: %s", ErrDownloadInProgress, tier)
	}
	d.inFlight[tier] = true
	return nil
}

// release clears the in-flight mark for a tier.
func (d *Downloader) release(tier domain.ModelTier) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.inFlight, tier)
}

// progressReader reports read progress in whole-percent steps when the
// total is known and in fixed byte steps otherwise.
type progressReader struct {
	r           io.Reader
	total       int64
	done        int64
	lastPercent int
	lastMark    int64
	report      func(done, total int64, percent int)
}

func (p *progressReader) Read(buf []byte) (int, error) {
	n, err := p.r.Read(buf)
	if n > 0 {
		p.done += int64(n)
		if p.total > 0 {
			percent := int(p.done * 100 / p.total)
			if percent > p.lastPercent {
				p.lastPercent = percent
				p.report(p.done, p.total, percent)
			}
		} else if p.done-p.lastMark >= progressByteStep {
			p.lastMark = p.done
			p.report(p.done, 0, 0)
		}
	}
	return n, err
}
