package engine

// Chunk is a bounded sub-span of the audio stream submitted as one
// inference call.
type Chunk struct {
	Index int
	Start float64
	End   float64
}

// planChunks splits a duration into fixed-length chunks with overlap.
// Consecutive chunks share overlapSec seconds so boundary words can be
// reconciled; the final chunk always ends exactly at the duration.
func planChunks(duration, chunkSec, overlapSec float64) []Chunk {
	if duration <= 0 {
		return nil
	}
	if chunkSec <= 0 {
		chunkSec = defaultChunkSeconds
	}
	if overlapSec < 0 || overlapSec >= chunkSec {
		overlapSec = 0
	}

	if duration <= chunkSec {
		return []Chunk{{Index: 0, Start: 0, End: duration}}
	}

	stride := chunkSec - overlapSec
	chunks := make([]Chunk, 0, int(duration/stride)+1)
	for start := 0.0; ; start += stride {
		end := start + chunkSec
		if end > duration {
			end = duration
		}
		chunks = append(chunks, Chunk{Index: len(chunks), Start: start, End: end})
		if end >= duration {
			return chunks
		}
	}
}
