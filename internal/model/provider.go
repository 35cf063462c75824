package model

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"local-transcriber/internal/domain"
)

const weightDownloadTimeout = 45 * time.Minute

// TranscribeOptions carries per-call inference tuning.
type TranscribeOptions struct {
	Language   string
	BeamSize   int
	DisableVAD bool
}

// Handle is an opaque loaded model bound to one device and precision.
// Implementations must be safe for concurrent read-only Transcribe calls.
type Handle interface {
	// Transcribe runs inference over one chunk of mono PCM samples and
	// returns chunk-local segments.
	Transcribe(ctx context.Context, samples []int16, sampleRate int, opts TranscribeOptions) ([]domain.Segment, error)
	// Config reports the device and precision the handle is bound to.
	Config() domain.ResolvedConfig
}

// Loader turns downloaded weights into a ready-to-run handle.
type Loader interface {
	Load(ctx context.Context, modelName, weightsPath string, cfg domain.ResolvedConfig) (Handle, error)
}

// cacheKey identifies a process-wide cached handle.
type cacheKey struct {
	model     string
	device    domain.Device
	precision domain.Precision
}

// loadCall tracks one in-flight load so concurrent first-use shares it.
type loadCall struct {
	done   chan struct{}
	handle Handle
	err    error
}

// Provider obtains ready-to-run model handles, downloading weights on first
// use and caching loaded handles per (model, device, precision).
type Provider struct {
	modelDir string
	loader   Loader
	download func(ctx context.Context, url, dest string) error

	mu       sync.Mutex
	handles  map[cacheKey]Handle
	inflight map[cacheKey]*loadCall
}

// NewProvider builds a provider storing weights under modelDir.
func NewProvider(modelDir string, loader Loader) *Provider {
	return &Provider{
		modelDir: modelDir,
		loader:   loader,
		download: downloadURLToFile,
		handles:  map[cacheKey]Handle{},
		inflight: map[cacheKey]*loadCall{},
	}
}

// Acquire returns a handle for the model at the resolved configuration.
// Insertion happens at most once per key: concurrent first-use waits for the
// single in-flight load instead of triggering a second download.
func (p *Provider) Acquire(ctx context.Context, modelName string, cfg domain.ResolvedConfig) (Handle, error) {
	entry, found := CatalogEntryByID(modelName)
	if !found {
		return nil, &domain.ModelUnavailableError{Model: modelName}
	}

	key := cacheKey{model: modelName, device: cfg.Device, precision: cfg.Precision}

	p.mu.Lock()
	if handle, ok := p.handles[key]; ok {
		p.mu.Unlock()
		return handle, nil
	}
	if call, ok := p.inflight[key]; ok {
		p.mu.Unlock()
		<-call.done
		return call.handle, call.err
	}
	call := &loadCall{done: make(chan struct{})}
	p.inflight[key] = call
	p.mu.Unlock()

	handle, err := p.load(ctx, entry, cfg)
	call.handle, call.err = handle, err

	p.mu.Lock()
	delete(p.inflight, key)
	if err == nil {
		p.handles[key] = handle
	}
	p.mu.Unlock()
	close(call.done)

	return handle, err
}

// Download fetches a model's weights ahead of first use and returns their
// on-disk path. Already-present weights are left untouched.
func (p *Provider) Download(ctx context.Context, modelName string) (string, error) {
	entry, found := CatalogEntryByID(modelName)
	if !found {
		return "", &domain.ModelUnavailableError{Model: modelName}
	}
	return p.ensureWeights(ctx, entry)
}

// load ensures weights exist on disk and asks the loader for a handle.
func (p *Provider) load(ctx context.Context, entry CatalogEntry, cfg domain.ResolvedConfig) (Handle, error) {
	weightsPath, err := p.ensureWeights(ctx, entry)
	if err != nil {
		return nil, err
	}

	handle, err := p.loader.Load(ctx, entry.ID, weightsPath, cfg)
	if err != nil {
		var oom *domain.OutOfResourceError
		var unavailable *domain.ModelUnavailableError
		if errors.As(err, &oom) || errors.As(err, &unavailable) {
			return nil, err
		}
		return nil, &domain.ModelUnavailableError{Model: entry.ID, Reason: "load failed", Err: err}
	}
	return handle, nil
}

// ensureWeights downloads the weight file when it is not locally present.
func (p *Provider) ensureWeights(ctx context.Context, entry CatalogEntry) (string, error) {
	if err := os.MkdirAll(p.modelDir, 0o755); err != nil {
		return "", &domain.ModelDownloadError{Model: entry.ID, URL: entry.URL, Err: err}
	}

	weightsPath := filepath.Join(p.modelDir, entry.FileName)
	if info, err := os.Stat(weightsPath); err == nil && !info.IsDir() {
		return weightsPath, nil
	}

	if err := p.download(ctx, entry.URL, weightsPath); err != nil {
		return "", &domain.ModelDownloadError{Model: entry.ID, URL: entry.URL, Err: err}
	}
	return weightsPath, nil
}

// downloadURLToFile fetches a URL into a temp file, then renames it into
// place so a partial download is never observed at the final path.
func downloadURLToFile(ctx context.Context, sourceURL, destinationPath string) error {
	ctx, cancel := context.WithTimeout(ctx, weightDownloadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", sourceURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch %s: unexpected status %s", sourceURL, resp.Status)
	}

	tmp, err := os.CreateTemp(filepath.Dir(destinationPath), filepath.Base(destinationPath)+".part-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write %s: %w", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close %s: %w", tmpPath, err)
	}

	if err := os.Rename(tmpPath, destinationPath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("finalize %s: %w", destinationPath, err)
	}
	return nil
}
