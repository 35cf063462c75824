package media

// SampleRate is the sample rate the speech model expects.
const SampleRate = 16000

// AudioStream holds normalized mono PCM audio for one pipeline run.
type AudioStream struct {
	Samples    []int16
	SampleRate int
}

// Duration returns the stream length in seconds.
func (a *AudioStream) Duration() float64 {
	if a == nil || a.SampleRate <= 0 {
		return 0
	}
	return float64(len(a.Samples)) / float64(a.SampleRate)
}

// Slice returns the samples covering [start, end) seconds, clamped to bounds.
func (a *AudioStream) Slice(start, end float64) []int16 {
	if a == nil || a.SampleRate <= 0 {
		return nil
	}

	lo := int(start * float64(a.SampleRate))
	hi := int(end * float64(a.SampleRate))
	if lo < 0 {
		lo = 0
	}
	if hi > len(a.Samples) {
		hi = len(a.Samples)
	}
	if lo >= hi {
		return nil
	}
	return a.Samples[lo:hi]
}
