// Package bootstrap wires the application together and exposes the UI API.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	goruntime "runtime"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"

	"local-transcriber/internal/config"
	"local-transcriber/internal/device"
	"local-transcriber/internal/diagnostics"
	"local-transcriber/internal/domain"
	"local-transcriber/internal/engine"
	"local-transcriber/internal/jobs"
	"local-transcriber/internal/logging"
	"local-transcriber/internal/media"
	"local-transcriber/internal/model"
	"local-transcriber/internal/output"

	wailsruntime "github.com/wailsapp/wails/v2/pkg/runtime"
)

var mediaDialogFilter = []wailsruntime.FileFilter{
	{
		DisplayName: "Media files",
		Pattern:     "*.mp4;*.mov;*.mkv;*.avi;*.mp3;*.wav;*.m4a;*.flac;*.aac;*.ogg;*.webm",
	},
	{
		DisplayName: "All files",
		Pattern:     "*",
	},
}

// jobRunner isolates the transcription pipeline behind an interface.
type jobRunner interface {
	Run(ctx context.Context, job domain.TranscriptionJob, hooks jobs.RunHooks) (*jobs.RunResult, error)
}

// App wires configuration, jobs, the pipeline, and UI runtime callbacks.
type App struct {
	Settings    domain.Settings
	Store       config.Store
	Jobs        *jobs.Manager
	Diagnostics domain.DiagnosticReport
	assets      fs.FS
	checker     *diagnostics.Checker
	log         zerolog.Logger
	newRunner   func(settings domain.Settings) jobRunner

	mu          sync.Mutex
	provider    *model.Provider
	providerDir string
	activeJobID string
	cancel      context.CancelFunc
	events      *jobs.EventBus
	runtimeCtx  context.Context
}

// New builds the application with persisted settings and startup diagnostics.
func New() (*App, error) {
	return NewWithAssets(nil)
}

// NewWithAssets builds the application and optionally configures embedded frontend assets.
func NewWithAssets(assets fs.FS) (*App, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve user home: %w", err)
	}
	if err := ensureLocalBinOnPATH(homeDir); err != nil {
		return nil, fmt.Errorf("prepare local tool path: %w", err)
	}

	store := config.NewYAMLStore(config.DefaultPath())
	settings, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	checker := diagnostics.NewChecker()
	report := checker.Run(settings)

	app := &App{
		Settings:    settings,
		Store:       store,
		Jobs:        jobs.NewManager(),
		Diagnostics: report,
		assets:      assets,
		checker:     checker,
		log:         logging.NewDefault(),
		events:      jobs.NewEventBus(1000),
	}
	app.newRunner = app.productionRunner
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
		Title:       "Local Transcriber",
		Width:       1180,
		Height:      780,
		AssetServer: assetOptions,
		OnStartup:   a.Startup,
		OnShutdown: func(ctx context.Context) {
			a.mu.Lock()
			defer a.mu.Unlock()
			a.runtimeCtx = nil
		},
		Bind: []interface{}{a},
	})
}

// Startup stores Wails runtime context for push events.
func (a *App) Startup(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.runtimeCtx = ctx
}

// productionRunner assembles the real pipeline for the given settings.
func (a *App) productionRunner(settings domain.Settings) jobRunner {
	return jobs.NewRunner(
		media.NewDecoder(),
		device.NewResolver(),
		a.providerFor(settings.ModelDir),
		engine.New(engine.Config{}),
		output.NewWriter(),
		a.log,
	)
}

// providerFor returns the shared model provider, rebuilding it when the
// weights directory changed. The handle cache survives across jobs otherwise.
func (a *App) providerFor(modelDir string) *model.Provider {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.provider == nil || a.providerDir != modelDir {
		a.provider = model.NewProvider(modelDir, model.NewCLILoader())
		a.providerDir = modelDir
	}
	return a.provider
}

// GetDiagnostics returns the latest cached diagnostics report.
func (a *App) GetDiagnostics() domain.DiagnosticReport {
	return a.Diagnostics
}

// GetSettings loads and returns the latest persisted settings.
func (a *App) GetSettings() (domain.Settings, error) {
	settings, err := a.Store.Load()
	if err != nil {
		return domain.Settings{}, fmt.Errorf("load settings: %w", err)
	}

	a.mu.Lock()
	a.Settings = settings
	a.mu.Unlock()

	return settings, nil
}

// SaveSettings normalizes and persists settings, then refreshes diagnostics.
func (a *App) SaveSettings(settings domain.Settings) (domain.Settings, error) {
	normalized := config.Normalize(settings)
	if err := a.Store.Save(normalized); err != nil {
		return domain.Settings{}, fmt.Errorf("save settings: %w", err)
	}

	a.mu.Lock()
	a.Settings = normalized
	if a.checker != nil {
		a.Diagnostics = a.checker.Run(normalized)
	}
	a.mu.Unlock()

	return normalized, nil
}

// GetWhisperModels returns the model presets with download markers.
func (a *App) GetWhisperModels() ([]model.CatalogEntry, error) {
	settings, err := a.Store.Load()
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	return model.Catalog(settings.ModelDir), nil
}

// DownloadWhisperModel fetches a model's weights ahead of first use.
func (a *App) DownloadWhisperModel(modelID string) (model.CatalogEntry, error) {
	id := strings.TrimSpace(modelID)
	if id == "" {
		return model.CatalogEntry{}, fmt.Errorf("model id is required")
	}

	settings, err := a.Store.Load()
	if err != nil {
		return model.CatalogEntry{}, fmt.Errorf("load settings: %w", err)
	}

	provider := a.providerFor(settings.ModelDir)
	if _, err := provider.Download(context.Background(), id); err != nil {
		return model.CatalogEntry{}, err
	}

	a.mu.Lock()
	if a.checker != nil {
		a.Diagnostics = a.checker.Run(settings)
	}
	a.mu.Unlock()

	for _, entry := range model.Catalog(settings.ModelDir) {
		if entry.ID == id {
			return entry, nil
		}
	}
	return model.CatalogEntry{}, fmt.Errorf("unknown model id: %s", id)
}

// PickInputFile opens a native file dialog for media selection.
func (a *App) PickInputFile() (string, error) {
	ctx, err := a.runtimeContext()
	if err != nil {
		return "", err
	}

	path, err := wailsruntime.OpenFileDialog(ctx, wailsruntime.OpenDialogOptions{
		Title:   "Select media file",
		Filters: mediaDialogFilter,
	})
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(path), nil
}

// PickModelDirectory opens a native directory picker for the weights folder.
func (a *App) PickModelDirectory() (string, error) {
	ctx, err := a.runtimeContext()
	if err != nil {
		return "", err
	}

	path, err := wailsruntime.OpenDirectoryDialog(ctx, wailsruntime.OpenDialogOptions{
		Title: "Select model directory",
	})
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(path), nil
}

// PickOutputDirectory opens a native directory picker for transcript exports.
func (a *App) PickOutputDirectory() (string, error) {
	ctx, err := a.runtimeContext()
	if err != nil {
		return "", err
	}

	path, err := wailsruntime.OpenDirectoryDialog(ctx, wailsruntime.OpenDialogOptions{
		Title: "Select output directory",
	})
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(path), nil
}

// OpenOutputFolder opens the given path (or configured output dir) in file manager.
func (a *App) OpenOutputFolder(path string) error {
	target := strings.TrimSpace(path)
	if target == "" {
		a.mu.Lock()
		target = a.Settings.OutputDir
		a.mu.Unlock()
	}
	if target == "" {
		return fmt.Errorf("output path is empty")
	}

	info, err := os.Stat(target)
	if err != nil {
		return fmt.Errorf("resolve output path: %w", err)
	}

	openPath := target
	if !info.IsDir() {
		openPath = filepath.Dir(target)
	}

	return openInFileManager(openPath)
}

// RefreshDiagnostics reloads settings and reruns dependency checks.
func (a *App) RefreshDiagnostics() (domain.DiagnosticReport, error) {
	settings, err := a.Store.Load()
	if err != nil {
		return domain.DiagnosticReport{}, fmt.Errorf("load settings: %w", err)
	}

	a.Settings = settings
	a.Diagnostics = a.checker.Run(settings)
	return a.Diagnostics, nil
}

// StartTranscription creates a job and runs it asynchronously.
func (a *App) StartTranscription(inputPath string) (domain.Job, error) {
	settings, err := a.Store.Load()
	if err != nil {
		return domain.Job{}, fmt.Errorf("load settings: %w", err)
	}

	jobID := uuid.NewString()
	if err := a.Jobs.Start(jobID); err != nil {
		return domain.Job{}, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	a.mu.Lock()
	a.activeJobID = jobID
	a.cancel = cancel
	a.Settings = settings
	a.mu.Unlock()

	a.publishStatus(jobID, domain.JobStatusDecoding, "Job started")

	go a.runTranscriptionJob(ctx, jobID, inputPath, settings)
	return a.Jobs.Current(), nil
}

// CancelTranscription cancels the currently running job, if any.
func (a *App) CancelTranscription() error {
	a.mu.Lock()
	cancel := a.cancel
	activeJobID := a.activeJobID
	a.mu.Unlock()

	if cancel == nil {
		return jobs.ErrNoRunningJob
	}

	cancel()
	if err := a.Jobs.Cancel(); err != nil && !errors.Is(err, jobs.ErrNoRunningJob) {
		return err
	}

	if activeJobID != "" {
		a.publishStatus(activeJobID, domain.JobStatusCancelled, "Cancellation requested")
	}
	return nil
}

// CurrentJob returns current job metadata and status.
func (a *App) CurrentJob() domain.Job {
	return a.Jobs.Current()
}

// JobEvents returns all events with sequence greater than sinceSeq.
func (a *App) JobEvents(sinceSeq int64) []jobs.Event {
	return a.events.Since(sinceSeq)
}

// runTranscriptionJob executes the pipeline and maps outcomes to job events.
func (a *App) runTranscriptionJob(ctx context.Context, jobID, inputPath string, settings domain.Settings) {
	job := domain.TranscriptionJob{
		ID:        jobID,
		InputPath: inputPath,
		Model:     settings.Model,
		Language:  settings.Language,
		Device:    domain.Device(settings.Device),
		Precision: domain.Precision(settings.Precision),
		OutputDir: settings.OutputDir,
		KeepWAV:   settings.KeepWAV,
	}

	runner := a.newRunner(settings)
	run, err := runner.Run(ctx, job, jobs.RunHooks{
		OnStatus: func(status domain.JobStatus) {
			if transitionErr := a.Jobs.Transition(status); transitionErr == nil {
				a.publishStatus(jobID, status, "Entered "+string(status)+" stage")
			}
		},
		OnProgress: func(completed, total int) {
			a.publishEvent(jobs.Event{
				JobID:      jobID,
				Type:       jobs.EventTypeProgress,
				Status:     domain.JobStatusTranscribing,
				Message:    fmt.Sprintf("Transcribed chunk %d of %d", completed, total),
				ChunkIndex: completed,
				ChunkTotal: total,
			})
		},
	})
	if err != nil {
		var cancelled *domain.CancelledError
		if errors.As(err, &cancelled) || errors.Is(err, context.Canceled) {
			_ = a.Jobs.Transition(domain.JobStatusCancelled)
			a.publishStatus(jobID, domain.JobStatusCancelled, "Job cancelled")
			a.clearActiveJob(jobID)
			return
		}

		_ = a.Jobs.Transition(domain.JobStatusFailed)
		a.publishStatus(jobID, domain.JobStatusFailed, "Job failed")
		a.publishEvent(jobs.Event{
			JobID:   jobID,
			Type:    jobs.EventTypeError,
			Status:  domain.JobStatusFailed,
			Message: err.Error(),
		})
		a.clearActiveJob(jobID)
		return
	}

	a.publishEvent(jobs.Event{
		JobID:    jobID,
		Type:     jobs.EventTypeResult,
		Status:   domain.JobStatusDone,
		Message:  "Transcript exported",
		TextPath: run.Artifacts.TimestampsPath,
		JSONPath: run.Artifacts.SegmentsPath,
	})
	a.clearActiveJob(jobID)
}

// publishStatus sends a normalized status event.
func (a *App) publishStatus(jobID string, status domain.JobStatus, message string) {
	a.publishEvent(jobs.Event{
		JobID:   jobID,
		Type:    jobs.EventTypeStatus,
		Status:  status,
		Message: message,
	})
}

// publishEvent stores event history and emits runtime push notifications.
func (a *App) publishEvent(event jobs.Event) {
	published := a.events.Publish(event)

	a.mu.Lock()
	ctx := a.runtimeCtx
	a.mu.Unlock()
	if ctx != nil {
		wailsruntime.EventsEmit(ctx, "job:event", published)
	}
}

// clearActiveJob clears cancellation handles for completed job IDs.
func (a *App) clearActiveJob(jobID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.activeJobID == jobID {
		a.activeJobID = ""
		a.cancel = nil
	}
}

// runtimeContext returns current Wails runtime context for dialog APIs.
func (a *App) runtimeContext() (context.Context, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.runtimeCtx == nil {
		return nil, fmt.Errorf("runtime context is not initialized")
	}
	return a.runtimeCtx, nil
}

// ensureLocalBinOnPATH prepends the app-managed tool directory to PATH.
func ensureLocalBinOnPATH(homeDir string) error {
	binDir := filepath.Join(homeDir, ".local-transcriber", "bin")
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return err
	}

	current := os.Getenv("PATH")
	for _, entry := range filepath.SplitList(current) {
		if filepath.Clean(entry) == filepath.Clean(binDir) {
			return nil
		}
	}

	if current == "" {
		return os.Setenv("PATH", binDir)
	}
	return os.Setenv("PATH", binDir+string(os.PathListSeparator)+current)
}

// openInFileManager launches the platform file explorer for the provided path.
func openInFileManager(path string) error {
	var cmd *exec.Cmd
	switch goruntime.GOOS {
	case "darwin":
		cmd = exec.Command("open", path)
	case "windows":
		cmd = exec.Command("explorer", filepath.Clean(path))
	default:
		cmd = exec.Command("xdg-open", path)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("launch file manager: %w", err)
	}
	return nil
}
