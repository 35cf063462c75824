package domain

import "fmt"

// UnsupportedMediaError reports an input the decoder could not read.
type UnsupportedMediaError struct {
	Path   string
	Detail string
	Err    error
}

// Error formats the unreadable input for logs and UI.
func (e *UnsupportedMediaError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("unsupported media %s: %s", e.Path, e.Detail)
	}
	return fmt.Sprintf("unsupported media %s", e.Path)
}

// Unwrap exposes the underlying error for errors.Is / errors.As.
func (e *UnsupportedMediaError) Unwrap() error { return e.Err }

// DecoderUnavailableError reports a missing or broken decoding utility.
type DecoderUnavailableError struct {
	Tool string
	Err  error
}

func (e *DecoderUnavailableError) Error() string {
	return fmt.Sprintf("decoder unavailable: %s not found or not executable", e.Tool)
}

func (e *DecoderUnavailableError) Unwrap() error { return e.Err }

// DeviceUnavailableError reports an explicitly requested device that is unusable.
type DeviceUnavailableError struct {
	Device Device
	Reason string
}

func (e *DeviceUnavailableError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("device %s unavailable: %s", e.Device, e.Reason)
	}
	return fmt.Sprintf("device %s unavailable", e.Device)
}

// ModelUnavailableError reports an unrecognized model name or a model
// runtime that cannot serve it.
type ModelUnavailableError struct {
	Model  string
	Reason string
	Err    error
}

func (e *ModelUnavailableError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("model %s unavailable: %s", e.Model, e.Reason)
	}
	return fmt.Sprintf("unknown model: %s", e.Model)
}

func (e *ModelUnavailableError) Unwrap() error { return e.Err }

// ModelDownloadError reports a failed model weight acquisition.
type ModelDownloadError struct {
	Model string
	URL   string
	Err   error
}

func (e *ModelDownloadError) Error() string {
	return fmt.Sprintf("download model %s: %v", e.Model, e.Err)
}

func (e *ModelDownloadError) Unwrap() error { return e.Err }

// OutOfResourceError reports a device that cannot host the model at the
// requested precision. Callers may retry with a lower precision or the CPU.
type OutOfResourceError struct {
	Model  string
	Config ResolvedConfig
	Err    error
}

func (e *OutOfResourceError) Error() string {
	return fmt.Sprintf(
		"cannot allocate model %s on %s/%s",
		e.Model, e.Config.Device, e.Config.Precision,
	)
}

func (e *OutOfResourceError) Unwrap() error { return e.Err }

// InferenceError reports a chunk that failed even after the reduced-size retry.
type InferenceError struct {
	ChunkIndex int
	Err        error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("inference failed on chunk %d: %v", e.ChunkIndex, e.Err)
}

func (e *InferenceError) Unwrap() error { return e.Err }

// CancelledError reports a cooperative stop honored at a chunk boundary.
type CancelledError struct{}

func (e *CancelledError) Error() string { return "job cancelled" }
