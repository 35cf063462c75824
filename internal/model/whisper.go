package model

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"local-transcriber/internal/domain"
	"local-transcriber/internal/media"
)

// commandResult is an internal process execution response.
type commandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// commandRunner abstracts process execution for testability.
type commandRunner interface {
	Run(ctx context.Context, name string, args ...string) (commandResult, error)
}

// execRunner executes commands via os/exec.
type execRunner struct{}

// Run executes one command and captures stdout/stderr and exit code.
func (r *execRunner) Run(ctx context.Context, name string, args ...string) (commandResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := commandResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: 0,
	}
	if err != nil {
		result.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		}
		return result, err
	}

	return result, nil
}

// CLILoader provisions handles backed by the whisper-cli executable.
type CLILoader struct {
	binName  string
	lookPath func(string) (string, error)
	runner   commandRunner
}

// NewCLILoader builds the production loader using PATH lookup.
func NewCLILoader() *CLILoader {
	return &CLILoader{
		binName:  "whisper-cli",
		lookPath: exec.LookPath,
		runner:   &execRunner{},
	}
}

// Load verifies the runtime and weights exist and returns a bound handle.
func (l *CLILoader) Load(ctx context.Context, modelName, weightsPath string, cfg domain.ResolvedConfig) (Handle, error) {
	binPath, err := l.lookPath(l.binName)
	if err != nil {
		return nil, &domain.ModelUnavailableError{
			Model:  modelName,
			Reason: l.binName + " not found on PATH",
			Err:    err,
		}
	}
	if _, err := os.Stat(weightsPath); err != nil {
		return nil, &domain.ModelUnavailableError{
			Model:  modelName,
			Reason: "weights missing: " + weightsPath,
			Err:    err,
		}
	}

	return &cliHandle{
		model:       modelName,
		binPath:     binPath,
		weightsPath: weightsPath,
		cfg:         cfg,
		runner:      l.runner,
		mkdirTemp:   os.MkdirTemp,
		removeAll:   os.RemoveAll,
		readFile:    os.ReadFile,
	}, nil
}

// cliHandle runs one whisper-cli inference per chunk. The underlying weights
// are never mutated, so a handle is safe for concurrent Transcribe calls.
type cliHandle struct {
	model       string
	binPath     string
	weightsPath string
	cfg         domain.ResolvedConfig
	runner      commandRunner
	mkdirTemp   func(dir, pattern string) (string, error)
	removeAll   func(path string) error
	readFile    func(name string) ([]byte, error)
}

// Config reports the device and precision the handle is bound to.
func (h *cliHandle) Config() domain.ResolvedConfig { return h.cfg }

// Transcribe writes the chunk to a scoped WAV and parses whisper JSON output.
func (h *cliHandle) Transcribe(ctx context.Context, samples []int16, sampleRate int, opts TranscribeOptions) ([]domain.Segment, error) {
	if len(samples) == 0 {
		return nil, nil
	}

	tempDir, err := h.mkdirTemp("", "transcriber-chunk-*")
	if err != nil {
		return nil, fmt.Errorf("create chunk workspace: %w", err)
	}
	defer func() {
		_ = h.removeAll(tempDir)
	}()

	wavPath := filepath.Join(tempDir, "chunk.wav")
	if err := media.WriteWAVFile(wavPath, samples, sampleRate); err != nil {
		return nil, fmt.Errorf("write chunk audio: %w", err)
	}

	outBase := filepath.Join(tempDir, "chunk")
	args := buildWhisperArgs(h.weightsPath, wavPath, outBase, h.cfg, opts)

	result, runErr := h.runner.Run(ctx, h.binPath, args...)
	if runErr != nil {
		if isOutOfMemory(result.Stderr) {
			return nil, &domain.OutOfResourceError{Model: h.model, Config: h.cfg, Err: runErr}
		}
		return nil, fmt.Errorf("whisper-cli failed (exit=%d): %w", result.ExitCode, runErr)
	}

	payload, err := h.readFile(outBase + ".json")
	if err != nil {
		return nil, fmt.Errorf("whisper-cli completed but JSON output is missing: %w", err)
	}
	return parseWhisperJSON(payload)
}

// buildWhisperArgs builds whisper-cli args for JSON transcript export.
func buildWhisperArgs(weightsPath, wavPath, outBase string, cfg domain.ResolvedConfig, opts TranscribeOptions) []string {
	args := []string{
		"-m", weightsPath,
		"-f", wavPath,
		"-of", outBase,
		"-oj",
	}

	if lang := strings.TrimSpace(opts.Language); lang != "" && !strings.EqualFold(lang, "auto") {
		args = append(args, "-l", lang)
	}
	if opts.BeamSize > 0 {
		args = append(args, "-bs", strconv.Itoa(opts.BeamSize))
	}
	if opts.DisableVAD {
		// threshold 1.0 keeps segments the model would flag as silence
		args = append(args, "-nth", "1.0")
	}
	if cfg.Device == domain.DeviceCPU {
		args = append(args, "-ng")
	}

	return args
}

// whisperOutput mirrors the whisper-cli -oj JSON document.
type whisperOutput struct {
	Transcription []struct {
		Offsets struct {
			From int64 `json:"from"`
			To   int64 `json:"to"`
		} `json:"offsets"`
		Text string `json:"text"`
	} `json:"transcription"`
}

// parseWhisperJSON maps whisper-cli output to chunk-local segments.
func parseWhisperJSON(payload []byte) ([]domain.Segment, error) {
	var out whisperOutput
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, fmt.Errorf("parse whisper output: %w", err)
	}

	segments := make([]domain.Segment, 0, len(out.Transcription))
	for _, entry := range out.Transcription {
		text := strings.TrimSpace(entry.Text)
		if text == "" {
			continue
		}
		segments = append(segments, domain.Segment{
			Start: float64(entry.Offsets.From) / 1000.0,
			End:   float64(entry.Offsets.To) / 1000.0,
			Text:  text,
		})
	}
	return segments, nil
}

// isOutOfMemory recognizes allocation failures reported by the runtime.
func isOutOfMemory(stderr string) bool {
	lowered := strings.ToLower(stderr)
	return strings.Contains(lowered, "out of memory") ||
		strings.Contains(lowered, "failed to allocate")
}
