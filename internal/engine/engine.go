// Package engine drives model inference over a full audio stream and
// assembles an ordered, gap-free sequence of timed segments.
package engine

import (
	"context"
	"strings"

	"local-transcriber/internal/domain"
	"local-transcriber/internal/media"
	"local-transcriber/internal/model"
)

const (
	defaultChunkSeconds   = 40.0
	defaultOverlapSeconds = 5.0
)

// Config tunes chunk geometry.
type Config struct {
	ChunkSeconds   float64
	OverlapSeconds float64
}

// Hooks carries optional per-chunk callbacks. Cancelled is consulted only at
// chunk boundaries, never mid-inference.
type Hooks struct {
	OnProgress func(completed, total int)
	Cancelled  func() bool
}

// Engine partitions audio into chunks and reconciles their segments.
type Engine struct {
	cfg Config
}

// New builds an engine, applying default chunk geometry where unset.
func New(cfg Config) *Engine {
	if cfg.ChunkSeconds <= 0 {
		cfg.ChunkSeconds = defaultChunkSeconds
	}
	if cfg.OverlapSeconds < 0 || cfg.OverlapSeconds >= cfg.ChunkSeconds {
		cfg.OverlapSeconds = defaultOverlapSeconds
	}
	return &Engine{cfg: cfg}
}

// Transcribe runs inference chunk by chunk and returns the assembled result.
// Chunk N+1 does not start before chunk N is reconciled. Empty audio yields
// an empty segment sequence. A failing chunk is retried once as two
// half-size chunks before the job fails with InferenceError.
func (e *Engine) Transcribe(ctx context.Context, audio *media.AudioStream, handle model.Handle, opts model.TranscribeOptions, hooks Hooks) (*domain.TranscriptResult, error) {
	duration := audio.Duration()
	chunks := planChunks(duration, e.cfg.ChunkSeconds, e.cfg.OverlapSeconds)

	var accumulated []domain.Segment
	prevEnd := 0.0
	for _, chunk := range chunks {
		if err := checkCancelled(ctx, hooks); err != nil {
			return nil, err
		}

		segments, err := e.runChunk(ctx, audio, handle, opts, chunk)
		if err != nil {
			return nil, err
		}

		if chunk.Index == 0 {
			accumulated = segments
		} else {
			accumulated = ReconcileOverlap(
				accumulated, segments,
				chunk.Start, prevEnd,
				prevChunkStart(chunk, e.cfg), chunk.Start,
			)
		}
		prevEnd = chunk.End

		if hooks.OnProgress != nil {
			hooks.OnProgress(chunk.Index+1, len(chunks))
		}
	}

	final := normalizeSegments(accumulated, duration)

	cfg := handle.Config()
	return &domain.TranscriptResult{
		Segments: final,
		Text:     joinText(final),
		Metadata: domain.ResultMetadata{
			Language:  opts.Language,
			Device:    cfg.Device,
			Precision: cfg.Precision,
		},
	}, nil
}

// runChunk invokes the model for one chunk, retrying once at half size.
func (e *Engine) runChunk(ctx context.Context, audio *media.AudioStream, handle model.Handle, opts model.TranscribeOptions, chunk Chunk) ([]domain.Segment, error) {
	segments, err := e.inferSpan(ctx, audio, handle, opts, chunk.Start, chunk.End)
	if err == nil {
		return segments, nil
	}
	if cancelled := ctxCancelErr(ctx); cancelled != nil {
		return nil, cancelled
	}

	// One retry at a reduced chunk size: the span is re-run as two halves.
	midpoint := chunk.Start + (chunk.End-chunk.Start)/2
	first, err := e.inferSpan(ctx, audio, handle, opts, chunk.Start, midpoint)
	if err != nil {
		return nil, chunkFailure(ctx, chunk.Index, err)
	}
	second, err := e.inferSpan(ctx, audio, handle, opts, midpoint, chunk.End)
	if err != nil {
		return nil, chunkFailure(ctx, chunk.Index, err)
	}
	return append(first, second...), nil
}

// inferSpan transcribes [start, end) and maps local times to stream time.
func (e *Engine) inferSpan(ctx context.Context, audio *media.AudioStream, handle model.Handle, opts model.TranscribeOptions, start, end float64) ([]domain.Segment, error) {
	local, err := handle.Transcribe(ctx, audio.Slice(start, end), audio.SampleRate, opts)
	if err != nil {
		return nil, err
	}

	global := make([]domain.Segment, 0, len(local))
	for _, seg := range local {
		seg.Start += start
		seg.End += start
		if seg.End > end {
			seg.End = end
		}
		if seg.Start >= seg.End {
			continue
		}
		global = append(global, seg)
	}
	return global, nil
}

// prevChunkStart recomputes where the chunk preceding c started.
func prevChunkStart(c Chunk, cfg Config) float64 {
	start := c.Start - (cfg.ChunkSeconds - cfg.OverlapSeconds)
	if start < 0 {
		start = 0
	}
	return start
}

// chunkFailure wraps a final chunk error, honoring cancellation first.
func chunkFailure(ctx context.Context, index int, err error) error {
	if cancelled := ctxCancelErr(ctx); cancelled != nil {
		return cancelled
	}
	return &domain.InferenceError{ChunkIndex: index, Err: err}
}

// checkCancelled consults context and the cooperative cancellation hook.
func checkCancelled(ctx context.Context, hooks Hooks) error {
	if err := ctxCancelErr(ctx); err != nil {
		return err
	}
	if hooks.Cancelled != nil && hooks.Cancelled() {
		return &domain.CancelledError{}
	}
	return nil
}

// ctxCancelErr maps context termination to the typed cancellation error.
func ctxCancelErr(ctx context.Context) error {
	if ctx.Err() != nil {
		return &domain.CancelledError{}
	}
	return nil
}

// joinText concatenates segment texts in order.
func joinText(segments []domain.Segment) string {
	parts := make([]string, 0, len(segments))
	for _, seg := range segments {
		parts = append(parts, seg.Text)
	}
	return strings.Join(parts, " ")
}
