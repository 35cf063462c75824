package jobs

import (
	"context"
	"errors"
	"path/filepath"

	"github.com/rs/zerolog"

	"local-transcriber/internal/domain"
	"local-transcriber/internal/engine"
	"local-transcriber/internal/media"
	"local-transcriber/internal/model"
	"local-transcriber/internal/output"
)

// decoder converts input media into a normalized audio stream.
type decoder interface {
	Decode(ctx context.Context, inputPath string) (*media.AudioStream, error)
}

// resolver picks the concrete device and precision for a job.
type resolver interface {
	Resolve(requested domain.Device, precision domain.Precision) (domain.ResolvedConfig, error)
}

// provider yields a ready model handle for a resolved configuration.
type provider interface {
	Acquire(ctx context.Context, modelName string, cfg domain.ResolvedConfig) (model.Handle, error)
}

// transcriber runs chunked inference over a full audio stream.
type transcriber interface {
	Transcribe(ctx context.Context, audio *media.AudioStream, handle model.Handle, opts model.TranscribeOptions, hooks engine.Hooks) (*domain.TranscriptResult, error)
}

// resultWriter persists the final transcript artifacts.
type resultWriter interface {
	Write(result *domain.TranscriptResult, inputPath, outputDir string) (output.Artifacts, error)
}

// RunHooks carries optional per-stage callbacks for UI consumers.
type RunHooks struct {
	OnStatus   func(status domain.JobStatus)
	OnProgress func(completed, total int)
}

// Runner executes one transcription job end to end: decode, resolve the
// backend, acquire the model, transcribe, write artifacts. Cancellation at
// any stage leaves no output files behind.
type Runner struct {
	decoder  decoder
	resolver resolver
	provider provider
	engine   transcriber
	writer   resultWriter
	writeWAV func(path string, samples []int16, sampleRate int) error
	log      zerolog.Logger
}

// NewRunner wires the production pipeline stages.
func NewRunner(dec decoder, res resolver, prov provider, eng transcriber, wr resultWriter, log zerolog.Logger) *Runner {
	return &Runner{
		decoder:  dec,
		resolver: res,
		provider: prov,
		engine:   eng,
		writer:   wr,
		writeWAV: media.WriteWAVFile,
		log:      log,
	}
}

// RunResult bundles the transcript with its on-disk artifacts.
type RunResult struct {
	Result    *domain.TranscriptResult
	Artifacts output.Artifacts
}

// Run executes the job and returns the transcript and artifact paths.
// The input job is normalized first; defaults are applied to empty fields.
func (r *Runner) Run(ctx context.Context, job domain.TranscriptionJob, hooks RunHooks) (*RunResult, error) {
	job = job.Normalized()
	log := r.log.With().Str("job_id", job.ID).Str("input", job.InputPath).Logger()

	setStatus(hooks, domain.JobStatusDecoding)
	log.Info().Str("model", job.Model).Str("device", string(job.Device)).Msg("job started")

	audio, err := r.decoder.Decode(ctx, job.InputPath)
	if err != nil {
		return nil, r.fail(log, "decode", err)
	}
	log.Debug().Float64("duration_s", audio.Duration()).Msg("media decoded")

	cfg, err := r.resolver.Resolve(job.Device, job.Precision)
	if err != nil {
		return nil, r.fail(log, "resolve device", err)
	}
	log.Info().Str("device", string(cfg.Device)).Str("precision", string(cfg.Precision)).Msg("backend resolved")

	handle, err := r.provider.Acquire(ctx, job.Model, cfg)
	if err != nil {
		return nil, r.fail(log, "acquire model", err)
	}

	setStatus(hooks, domain.JobStatusTranscribing)
	opts := model.TranscribeOptions{
		Language:   job.Language,
		BeamSize:   job.BeamSize,
		DisableVAD: job.DisableVAD,
	}
	result, err := r.engine.Transcribe(ctx, audio, handle, opts, engine.Hooks{
		OnProgress: func(completed, total int) {
			log.Debug().Int("completed", completed).Int("total", total).Msg("chunk finished")
			if hooks.OnProgress != nil {
				hooks.OnProgress(completed, total)
			}
		},
	})
	if err != nil {
		return nil, r.fail(log, "transcribe", err)
	}
	result.Metadata.Model = job.Model

	if err := cancelErr(ctx); err != nil {
		return nil, r.fail(log, "transcribe", err)
	}

	setStatus(hooks, domain.JobStatusWriting)
	artifacts, err := r.writer.Write(result, job.InputPath, job.OutputDir)
	if err != nil {
		return nil, r.fail(log, "write artifacts", err)
	}

	if job.KeepWAV {
		wavPath := filepath.Join(job.OutputDir, artifacts.BaseName+".normalized.wav")
		if err := r.writeWAV(wavPath, audio.Samples, audio.SampleRate); err != nil {
			// The transcript is already complete; keep-wav failure is not fatal.
			log.Warn().Err(err).Str("path", wavPath).Msg("cannot keep normalized audio")
		}
	}

	setStatus(hooks, domain.JobStatusDone)
	log.Info().Int("segments", len(result.Segments)).Str("text_path", artifacts.TimestampsPath).Msg("job finished")
	return &RunResult{Result: result, Artifacts: artifacts}, nil
}

// fail logs the stage error and maps cancellation to its terminal status.
func (r *Runner) fail(log zerolog.Logger, stage string, err error) error {
	var cancelled *domain.CancelledError
	if errors.As(err, &cancelled) {
		log.Info().Str("stage", stage).Msg("job cancelled")
		return err
	}
	log.Error().Err(err).Str("stage", stage).Msg("job failed")
	return err
}

// setStatus invokes the status hook when present.
func setStatus(hooks RunHooks, status domain.JobStatus) {
	if hooks.OnStatus != nil {
		hooks.OnStatus(status)
	}
}

// cancelErr maps context termination to the typed cancellation error.
func cancelErr(ctx context.Context) error {
	if ctx.Err() != nil {
		return &domain.CancelledError{}
	}
	return nil
}
