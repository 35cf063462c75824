package engine

import (
	"context"
	"errors"
	"math"
	"testing"

	"local-transcriber/internal/domain"
	"local-transcriber/internal/media"
	"local-transcriber/internal/model"
)

// scriptedHandle replays canned per-call responses in order.
type scriptedHandle struct {
	cfg       domain.ResolvedConfig
	responses []func(samples []int16) ([]domain.Segment, error)
	calls     int
}

func (h *scriptedHandle) Config() domain.ResolvedConfig { return h.cfg }

func (h *scriptedHandle) Transcribe(ctx context.Context, samples []int16, sampleRate int, opts model.TranscribeOptions) ([]domain.Segment, error) {
	if h.calls >= len(h.responses) {
		return nil, nil
	}
	resp := h.responses[h.calls]
	h.calls++
	return resp(samples)
}

// toneStream builds a silent stream of the given duration.
func toneStream(seconds float64) *media.AudioStream {
	return &media.AudioStream{
		Samples:    make([]int16, int(seconds*float64(media.SampleRate))),
		SampleRate: media.SampleRate,
	}
}

// segs is shorthand for building local segment lists.
func segs(list ...domain.Segment) func([]int16) ([]domain.Segment, error) {
	return func([]int16) ([]domain.Segment, error) {
		out := make([]domain.Segment, len(list))
		copy(out, list)
		return out, nil
	}
}

var cpuCfg = domain.ResolvedConfig{Device: domain.DeviceCPU, Precision: domain.PrecisionInt8}

// assertInvariant checks strictly increasing starts, no overlap, bounded end.
func assertInvariant(t *testing.T, segments []domain.Segment, duration float64) {
	t.Helper()
	for i, seg := range segments {
		if seg.Index != i {
			t.Fatalf("segment %d index = %d", i, seg.Index)
		}
		if seg.Start >= seg.End {
			t.Fatalf("segment %d has empty span [%f, %f]", i, seg.Start, seg.End)
		}
		if seg.End > duration+1e-9 {
			t.Fatalf("segment %d end %f exceeds duration %f", i, seg.End, duration)
		}
		if i > 0 {
			if seg.Start <= segments[i-1].Start {
				t.Fatalf("starts not strictly increasing at %d: %f then %f", i, segments[i-1].Start, seg.Start)
			}
			if seg.Start < segments[i-1].End {
				t.Fatalf("segments %d and %d overlap", i-1, i)
			}
		}
	}
}

// TestPlanChunksGeometry checks chunk boundaries for representative durations.
func TestPlanChunksGeometry(t *testing.T) {
	if got := planChunks(0, 40, 5); got != nil {
		t.Fatalf("zero duration chunks = %v, want nil", got)
	}

	single := planChunks(30, 40, 5)
	if len(single) != 1 || single[0].Start != 0 || single[0].End != 30 {
		t.Fatalf("short clip chunks = %+v", single)
	}

	two := planChunks(65, 40, 5)
	if len(two) != 2 {
		t.Fatalf("65s chunks = %+v, want 2", two)
	}
	if two[0].Start != 0 || two[0].End != 40 || two[1].Start != 35 || two[1].End != 65 {
		t.Fatalf("65s chunk bounds = %+v", two)
	}

	long := planChunks(120, 40, 5)
	want := []Chunk{{0, 0, 40}, {1, 35, 75}, {2, 70, 110}, {3, 105, 120}}
	if len(long) != len(want) {
		t.Fatalf("120s chunks = %+v", long)
	}
	for i := range want {
		if long[i] != want[i] {
			t.Fatalf("chunk %d = %+v, want %+v", i, long[i], want[i])
		}
	}
}

// TestTranscribeEmptyAudioSucceeds checks that zero duration is not an error.
func TestTranscribeEmptyAudioSucceeds(t *testing.T) {
	handle := &scriptedHandle{cfg: cpuCfg}
	e := New(Config{})

	result, err := e.Transcribe(context.Background(), toneStream(0), handle, model.TranscribeOptions{Language: "en"}, Hooks{})
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	if len(result.Segments) != 0 {
		t.Fatalf("segments = %d, want 0", len(result.Segments))
	}
	if handle.calls != 0 {
		t.Fatalf("model calls = %d, want 0", handle.calls)
	}
}

// TestTranscribeTwoChunkOverlapReconciliation exercises the 65-second example:
// two 40-second chunks with a 5-second overlap, the duplicate boundary
// reading resolved toward the later chunk.
func TestTranscribeTwoChunkOverlapReconciliation(t *testing.T) {
	handle := &scriptedHandle{
		cfg: cpuCfg,
		responses: []func([]int16) ([]domain.Segment, error){
			segs(
				domain.Segment{Start: 0, End: 10, Text: "first"},
				domain.Segment{Start: 12, End: 30, Text: "second"},
				domain.Segment{Start: 36, End: 39, Text: "boundary early"},
			),
			// Chunk [35, 65): local times.
			segs(
				domain.Segment{Start: 1, End: 4, Text: "boundary late"},
				domain.Segment{Start: 10, End: 29.5, Text: "tail"},
			),
		},
	}

	var progress [][2]int
	e := New(Config{ChunkSeconds: 40, OverlapSeconds: 5})
	result, err := e.Transcribe(context.Background(), toneStream(65), handle, model.TranscribeOptions{Language: "en"}, Hooks{
		OnProgress: func(done, total int) { progress = append(progress, [2]int{done, total}) },
	})
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}

	assertInvariant(t, result.Segments, 65)
	if len(result.Segments) != 4 {
		t.Fatalf("segments = %+v, want 4", result.Segments)
	}
	if result.Segments[2].Text != "boundary late" {
		t.Fatalf("overlap winner = %q, want the later chunk's reading", result.Segments[2].Text)
	}
	if result.Segments[2].Start != 36 || result.Segments[2].End != 39 {
		t.Fatalf("overlap segment span = [%f, %f]", result.Segments[2].Start, result.Segments[2].End)
	}
	if result.Segments[3].Start != 45 || result.Segments[3].End != 64.5 {
		t.Fatalf("tail span = [%f, %f], want chunk offset applied", result.Segments[3].Start, result.Segments[3].End)
	}
	if result.Text != "first second boundary late tail" {
		t.Fatalf("text = %q", result.Text)
	}

	wantProgress := [][2]int{{1, 2}, {2, 2}}
	if len(progress) != len(wantProgress) {
		t.Fatalf("progress calls = %v", progress)
	}
	for i := range wantProgress {
		if progress[i] != wantProgress[i] {
			t.Fatalf("progress[%d] = %v, want %v", i, progress[i], wantProgress[i])
		}
	}

	if result.Metadata.Device != domain.DeviceCPU || result.Metadata.Precision != domain.PrecisionInt8 {
		t.Fatalf("metadata = %+v", result.Metadata)
	}
}

// TestTranscribeRetriesFailedChunkAtHalfSize checks the reduced-size retry.
func TestTranscribeRetriesFailedChunkAtHalfSize(t *testing.T) {
	var sizes []int
	record := func(resp func([]int16) ([]domain.Segment, error)) func([]int16) ([]domain.Segment, error) {
		return func(samples []int16) ([]domain.Segment, error) {
			sizes = append(sizes, len(samples))
			return resp(samples)
		}
	}

	handle := &scriptedHandle{
		cfg: cpuCfg,
		responses: []func([]int16) ([]domain.Segment, error){
			record(func([]int16) ([]domain.Segment, error) { return nil, errors.New("transient") }),
			record(segs(domain.Segment{Start: 0, End: 5, Text: "first half"})),
			record(segs(domain.Segment{Start: 2, End: 8, Text: "second half"})),
		},
	}

	e := New(Config{ChunkSeconds: 40, OverlapSeconds: 5})
	result, err := e.Transcribe(context.Background(), toneStream(20), handle, model.TranscribeOptions{}, Hooks{})
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	if handle.calls != 3 {
		t.Fatalf("model calls = %d, want 3", handle.calls)
	}
	if sizes[1] != sizes[0]/2 || sizes[2] != sizes[0]/2 {
		t.Fatalf("retry sizes = %v, want halves of %d", sizes[1:], sizes[0])
	}

	assertInvariant(t, result.Segments, 20)
	if len(result.Segments) != 2 {
		t.Fatalf("segments = %+v", result.Segments)
	}
	if result.Segments[1].Start != 12 || result.Segments[1].End != 18 {
		t.Fatalf("second half span = [%f, %f], want [12, 18]", result.Segments[1].Start, result.Segments[1].End)
	}
}

// TestTranscribePersistentFailureIsInferenceError checks the give-up path.
func TestTranscribePersistentFailureIsInferenceError(t *testing.T) {
	boom := func([]int16) ([]domain.Segment, error) { return nil, errors.New("backend crash") }
	handle := &scriptedHandle{
		cfg:       cpuCfg,
		responses: []func([]int16) ([]domain.Segment, error){boom, boom, boom},
	}

	e := New(Config{})
	_, err := e.Transcribe(context.Background(), toneStream(10), handle, model.TranscribeOptions{}, Hooks{})
	var inference *domain.InferenceError
	if !errors.As(err, &inference) {
		t.Fatalf("error = %v, want InferenceError", err)
	}
	if inference.ChunkIndex != 0 {
		t.Fatalf("chunk index = %d, want 0", inference.ChunkIndex)
	}
}

// TestTranscribeCancellationBetweenChunks checks the cooperative stop.
func TestTranscribeCancellationBetweenChunks(t *testing.T) {
	ok := segs(domain.Segment{Start: 0, End: 5, Text: "chunk"})
	handle := &scriptedHandle{
		cfg:       cpuCfg,
		responses: []func([]int16) ([]domain.Segment, error){ok, ok, ok, ok, ok},
	}

	completed := 0
	e := New(Config{ChunkSeconds: 40, OverlapSeconds: 5})
	// 180 seconds yields five chunks; cancel after the second completes.
	_, err := e.Transcribe(context.Background(), toneStream(180), handle, model.TranscribeOptions{}, Hooks{
		OnProgress: func(done, total int) {
			completed = done
			if total != 5 {
				t.Fatalf("total = %d, want 5", total)
			}
		},
		Cancelled: func() bool { return completed >= 2 },
	})

	var cancelled *domain.CancelledError
	if !errors.As(err, &cancelled) {
		t.Fatalf("error = %v, want CancelledError", err)
	}
	if handle.calls != 2 {
		t.Fatalf("model calls = %d, want 2 (no mid-chunk interruption)", handle.calls)
	}
}

// TestTranscribeContextCancellation checks context-driven cancellation.
func TestTranscribeContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	handle := &scriptedHandle{cfg: cpuCfg}
	e := New(Config{})
	_, err := e.Transcribe(ctx, toneStream(10), handle, model.TranscribeOptions{}, Hooks{})
	var cancelledErr *domain.CancelledError
	if !errors.As(err, &cancelledErr) {
		t.Fatalf("error = %v, want CancelledError", err)
	}
	if handle.calls != 0 {
		t.Fatalf("model calls = %d, want 0", handle.calls)
	}
}

// TestNormalizeSegmentsEnforcesInvariant checks clamping and re-indexing.
func TestNormalizeSegmentsEnforcesInvariant(t *testing.T) {
	raw := []domain.Segment{
		{Start: 5, End: 9, Text: "b"},
		{Start: 0, End: 6, Text: "a"},
		{Start: 8.5, End: 12, Text: "c"},
		{Start: 9, End: 9, Text: "empty"},
		{Start: 11, End: 20, Text: "d"},
	}

	out := normalizeSegments(raw, 15)
	assertInvariant(t, out, 15)
	if len(out) != 4 {
		t.Fatalf("segments = %+v, want 4", out)
	}
	if out[3].End != 15 {
		t.Fatalf("last end = %f, want clamped to 15", out[3].End)
	}
	if math.Abs(out[1].Start-6) > 1e-9 {
		t.Fatalf("clamped start = %f, want 6", out[1].Start)
	}
}

// TestReconcileOverlapKeepsUncontestedEarlierSegment checks the no-competitor case.
func TestReconcileOverlapKeepsUncontestedEarlierSegment(t *testing.T) {
	earlier := []domain.Segment{{Start: 36, End: 39, Text: "only witness"}}
	later := []domain.Segment{{Start: 45, End: 50, Text: "beyond"}}

	out := ReconcileOverlap(earlier, later, 35, 40, 0, 35)
	if len(out) != 2 {
		t.Fatalf("segments = %+v, want both kept", out)
	}
	if out[0].Text != "only witness" {
		t.Fatalf("kept = %q", out[0].Text)
	}
}

// TestReconcileOverlapTieBreaksTowardCloserChunkStart checks the tie rule.
func TestReconcileOverlapTieBreaksTowardCloserChunkStart(t *testing.T) {
	earlier := []domain.Segment{{Start: 35.5, End: 36.5, Text: "early reading"}}
	later := []domain.Segment{{Start: 35.4, End: 36.6, Text: "late reading"}}

	// Midpoint 36.0 sits closer to the later chunk start (35) than to the
	// earlier chunk start (0): the later reading wins.
	out := ReconcileOverlap(earlier, later, 35, 40, 0, 35)
	if len(out) != 1 || out[0].Text != "late reading" {
		t.Fatalf("segments = %+v, want the later reading", out)
	}

	// With the earlier chunk starting at 36, it is the closer witness.
	out = ReconcileOverlap(earlier, later, 35, 40, 36, 70)
	if len(out) != 1 || out[0].Text != "early reading" {
		t.Fatalf("segments = %+v, want the earlier reading", out)
	}
}
