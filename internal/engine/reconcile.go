package engine

import (
	"math"
	"sort"

	"local-transcriber/internal/domain"
)

// ReconcileOverlap merges the accumulated segments with the next chunk's
// segments across the shared overlap window [overlapStart, overlapEnd).
//
// Policy: a segment of the earlier chunk fully contained in the overlap is a
// duplicate candidate. When the later chunk offers a reading for the same
// span the earlier one is discarded, unless the earlier chunk's start is
// strictly closer to the segment midpoint, in which case the later reading is
// discarded instead. Earlier segments with no competing later reading are
// kept. The function is pure; callers normalize afterwards.
func ReconcileOverlap(earlier, later []domain.Segment, overlapStart, overlapEnd, earlierChunkStart, laterChunkStart float64) []domain.Segment {
	dropLater := map[int]bool{}

	keptEarlier := make([]domain.Segment, 0, len(earlier))
	for _, seg := range earlier {
		if seg.Start < overlapStart || seg.End > overlapEnd {
			keptEarlier = append(keptEarlier, seg)
			continue
		}

		competitors := overlapping(later, seg)
		if len(competitors) == 0 {
			keptEarlier = append(keptEarlier, seg)
			continue
		}

		mid := (seg.Start + seg.End) / 2
		if math.Abs(earlierChunkStart-mid) < math.Abs(laterChunkStart-mid) {
			// Earlier chunk is the better witness for this span.
			keptEarlier = append(keptEarlier, seg)
			for _, idx := range competitors {
				dropLater[idx] = true
			}
			continue
		}
		// Later chunk's reading wins; the earlier segment is dropped.
	}

	merged := keptEarlier
	for idx, seg := range later {
		if dropLater[idx] {
			continue
		}
		merged = append(merged, seg)
	}
	return merged
}

// overlapping returns indices of segments intersecting seg in time.
func overlapping(segments []domain.Segment, seg domain.Segment) []int {
	var out []int
	for i, candidate := range segments {
		if candidate.Start < seg.End && candidate.End > seg.Start {
			out = append(out, i)
		}
	}
	return out
}

// normalizeSegments enforces the output invariant: time-ordered, strictly
// increasing starts, non-overlapping, bounded by duration, re-indexed 0..N-1.
func normalizeSegments(segments []domain.Segment, duration float64) []domain.Segment {
	sort.SliceStable(segments, func(i, j int) bool {
		if segments[i].Start != segments[j].Start {
			return segments[i].Start < segments[j].Start
		}
		return segments[i].End < segments[j].End
	})

	out := make([]domain.Segment, 0, len(segments))
	prevEnd := 0.0
	for _, seg := range segments {
		if seg.Start < prevEnd {
			seg.Start = prevEnd
		}
		if seg.End > duration {
			seg.End = duration
		}
		if seg.Start >= seg.End || seg.Text == "" {
			continue
		}
		seg.Index = len(out)
		out = append(out, seg)
		prevEnd = seg.End
	}
	return out
}
