package domain

import "strings"

// Device identifies a compute backend for model execution.
type Device string

const (
	DeviceAuto  Device = "auto"
	DeviceCPU   Device = "cpu"
	DeviceCUDA  Device = "cuda"
	DeviceMetal Device = "metal"
)

// Precision identifies the numeric format used for inference.
type Precision string

const (
	PrecisionAuto    Precision = ""
	PrecisionInt8    Precision = "int8"
	PrecisionFloat16 Precision = "float16"
)

// DefaultLanguage is used when a job does not request a language.
const DefaultLanguage = "en"

// TranscriptionJob describes one media-to-text request. Immutable once built.
type TranscriptionJob struct {
	ID         string    `json:"id"`
	InputPath  string    `json:"inputPath"`
	Model      string    `json:"model"`
	Language   string    `json:"language"`
	Device     Device    `json:"device"`
	Precision  Precision `json:"precision,omitempty"`
	OutputDir  string    `json:"outputDir"`
	BeamSize   int       `json:"beamSize,omitempty"`
	DisableVAD bool      `json:"disableVad,omitempty"`
	KeepWAV    bool      `json:"keepWav,omitempty"`
}

// Normalized returns a copy with defaults applied to empty fields.
func (j TranscriptionJob) Normalized() TranscriptionJob {
	j.InputPath = strings.TrimSpace(j.InputPath)
	j.OutputDir = strings.TrimSpace(j.OutputDir)
	j.Model = strings.TrimSpace(j.Model)
	j.Language = strings.TrimSpace(j.Language)
	if j.Language == "" {
		j.Language = DefaultLanguage
	}
	if j.Device == "" {
		j.Device = DeviceAuto
	}
	if j.BeamSize <= 0 {
		j.BeamSize = 5
	}
	return j
}

// ResolvedConfig is the concrete device and precision chosen for a job.
type ResolvedConfig struct {
	Device    Device    `json:"device"`
	Precision Precision `json:"precision"`
}

// Segment is a contiguous span of audio with its transcribed text.
type Segment struct {
	Index int     `json:"index"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// ResultMetadata records the configuration a transcript was produced with.
type ResultMetadata struct {
	Model     string    `json:"model"`
	Language  string    `json:"language"`
	Device    Device    `json:"device"`
	Precision Precision `json:"precision"`
}

// TranscriptResult is the ordered, immutable output of one job.
type TranscriptResult struct {
	Segments []Segment      `json:"segments"`
	Text     string         `json:"text"`
	Metadata ResultMetadata `json:"metadata"`
}

// JobStatus tracks each pipeline stage for a single transcription job.
type JobStatus string

const (
	JobStatusIdle         JobStatus = "idle"
	JobStatusDecoding     JobStatus = "decoding"
	JobStatusTranscribing JobStatus = "transcribing"
	JobStatusWriting      JobStatus = "writing"
	JobStatusDone         JobStatus = "done"
	JobStatusFailed       JobStatus = "failed"
	JobStatusCancelled    JobStatus = "cancelled"
)

// Settings contains user-selectable runtime configuration.
type Settings struct {
	Model     string `json:"model" yaml:"model"`
	ModelDir  string `json:"modelDir" yaml:"model_dir"`
	OutputDir string `json:"outputDir" yaml:"output_dir"`
	Language  string `json:"language" yaml:"language"`
	Device    string `json:"device" yaml:"device"`
	Precision string `json:"precision" yaml:"precision"`
	KeepWAV   bool   `json:"keepWav" yaml:"keep_wav"`
}

// Job stores the current job identity and lifecycle status.
type Job struct {
	ID     string    `json:"id"`
	Status JobStatus `json:"status"`
}
