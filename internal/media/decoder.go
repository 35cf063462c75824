package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"local-transcriber/internal/domain"
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

// Decoder extracts a normalized mono PCM stream from arbitrary media files.
type Decoder struct {
	ffmpegName string
	runner     commandRunner
	lookPath   func(string) (string, error)
	mkdirTemp  func(dir, pattern string) (string, error)
	removeAll  func(path string) error
	stat       func(name string) (os.FileInfo, error)
}

// NewDecoder constructs the production decoder with OS dependencies.
func NewDecoder() *Decoder {
	return &Decoder{
		ffmpegName: "ffmpeg",
		runner:     &execRunner{},
		lookPath:   exec.LookPath,
		mkdirTemp:  os.MkdirTemp,
		removeAll:  os.RemoveAll,
		stat:       os.Stat,
	}
}

// Decode converts the input file into a mono stream at the model sample rate.
// WAV inputs with plain PCM content are decoded in process; everything else
// goes through ffmpeg into a scoped temporary file that is always removed.
func (d *Decoder) Decode(ctx context.Context, inputPath string) (*AudioStream, error) {
	if strings.TrimSpace(inputPath) == "" {
		return nil, &domain.UnsupportedMediaError{Path: inputPath, Detail: "input media path is required"}
	}
	if _, err := d.stat(inputPath); err != nil {
		return nil, &domain.UnsupportedMediaError{Path: inputPath, Detail: "cannot access input media", Err: err}
	}

	if strings.EqualFold(filepath.Ext(inputPath), ".wav") {
		if stream, err := decodeWAVInProcess(inputPath); err == nil {
			return stream, nil
		}
		// Compressed or exotic WAV content falls through to ffmpeg.
	}

	ffmpegPath, err := d.lookPath(d.ffmpegName)
	if err != nil {
		return nil, &domain.DecoderUnavailableError{Tool: d.ffmpegName, Err: err}
	}

	tempDir, err := d.mkdirTemp("", "transcriber-*")
	if err != nil {
		return nil, fmt.Errorf("create temporary workspace: %w", err)
	}
	defer func() {
		_ = d.removeAll(tempDir)
	}()

	outPath := filepath.Join(tempDir, "normalized-16k-mono.wav")
	result, runErr := d.runner.Run(ctx, ffmpegPath, buildFFmpegArgs(inputPath, outPath)...)
	if runErr != nil {
		if ctx.Err() != nil {
			return nil, &domain.CancelledError{}
		}
		return nil, &domain.UnsupportedMediaError{
			Path:   inputPath,
			Detail: fmt.Sprintf("ffmpeg conversion failed (exit=%d): %s", result.ExitCode, tailLines(result.Stderr, 3)),
			Err:    runErr,
		}
	}
	if _, err := d.stat(outPath); err != nil {
		return nil, &domain.UnsupportedMediaError{
			Path:   inputPath,
			Detail: "ffmpeg completed but output file is missing",
			Err:    err,
		}
	}

	data, err := decodeWAVFile(outPath)
	if err != nil {
		return nil, &domain.UnsupportedMediaError{Path: inputPath, Detail: "cannot parse normalized audio", Err: err}
	}

	return &AudioStream{
		Samples:    downmixToMono(data.samples, data.channels),
		SampleRate: data.sampleRate,
	}, nil
}

// decodeWAVInProcess reads PCM WAV input and normalizes it without ffmpeg.
func decodeWAVInProcess(path string) (*AudioStream, error) {
	data, err := decodeWAVFile(path)
	if err != nil {
		return nil, err
	}

	mono := downmixToMono(data.samples, data.channels)
	samples, err := resampleMono(mono, data.sampleRate, SampleRate)
	if err != nil {
		return nil, err
	}

	return &AudioStream{Samples: samples, SampleRate: SampleRate}, nil
}

// buildFFmpegArgs builds CLI args for mono PCM WAV output at the model rate.
func buildFFmpegArgs(inputPath, outPath string) []string {
	return []string{
		"-hide_banner",
		"-nostdin",
		"-y",
		"-i", inputPath,
		"-vn",
		"-ac", "1",
		"-ar", fmt.Sprintf("%d", SampleRate),
		"-c:a", "pcm_s16le",
		outPath,
	}
}

// tailLines returns up to n trailing non-empty lines of command output.
func tailLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	kept := make([]string, 0, n)
	for i := len(lines) - 1; i >= 0 && len(kept) < n; i-- {
		line := strings.TrimSpace(lines[i])
		if line != "" {
			kept = append([]string{line}, kept...)
		}
	}
	return strings.Join(kept, " | ")
}
