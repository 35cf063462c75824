package model

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"local-transcriber/internal/domain"
)

// fakeRunner simulates whisper-cli invocations.
type fakeRunner struct {
	run func(ctx context.Context, name string, args ...string) (commandResult, error)
}

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) (commandResult, error) {
	if f.run == nil {
		return commandResult{}, nil
	}
	return f.run(ctx, name, args...)
}

const sampleWhisperJSON = `{
	"result": {"language": "en"},
	"transcription": [
		{"offsets": {"from": 0, "to": 2500}, "text": " Hello there."},
		{"offsets": {"from": 2500, "to": 4000}, "text": "  "},
		{"offsets": {"from": 4000, "to": 6200}, "text": " General remarks."}
	]
}`

// argValue returns value for key-style CLI args.
func argValue(args []string, key string) string {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == key {
			return args[i+1]
		}
	}
	return ""
}

// hasArg reports whether args include the target flag.
func hasArg(args []string, key string) bool {
	for _, arg := range args {
		if arg == key {
			return true
		}
	}
	return false
}

// newTestHandle builds a cliHandle with injected dependencies.
func newTestHandle(runner commandRunner, cfg domain.ResolvedConfig) *cliHandle {
	return &cliHandle{
		model:       "base",
		binPath:     "/usr/bin/whisper-cli",
		weightsPath: "/models/ggml-base.bin",
		cfg:         cfg,
		runner:      runner,
		mkdirTemp:   os.MkdirTemp,
		removeAll:   os.RemoveAll,
		readFile:    os.ReadFile,
	}
}

// TestCLIHandleTranscribeParsesSegments checks the happy path end to end.
func TestCLIHandleTranscribeParsesSegments(t *testing.T) {
	var gotArgs []string
	runner := &fakeRunner{
		run: func(ctx context.Context, name string, args ...string) (commandResult, error) {
			gotArgs = append([]string{}, args...)
			base := argValue(args, "-of")
			if err := os.WriteFile(base+".json", []byte(sampleWhisperJSON), 0o644); err != nil {
				return commandResult{}, err
			}
			return commandResult{Stdout: "ok"}, nil
		},
	}

	cfg := domain.ResolvedConfig{Device: domain.DeviceCPU, Precision: domain.PrecisionInt8}
	handle := newTestHandle(runner, cfg)

	samples := make([]int16, 16000)
	segments, err := handle.Transcribe(context.Background(), samples, 16000, TranscribeOptions{
		Language: "en",
		BeamSize: 5,
	})
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}

	if len(segments) != 2 {
		t.Fatalf("segments = %d, want 2 (blank one dropped)", len(segments))
	}
	if segments[0].Start != 0 || segments[0].End != 2.5 {
		t.Fatalf("segment 0 = [%f, %f], want [0, 2.5]", segments[0].Start, segments[0].End)
	}
	if segments[0].Text != "Hello there." {
		t.Fatalf("segment 0 text = %q", segments[0].Text)
	}
	if segments[1].Start != 4.0 || segments[1].End != 6.2 {
		t.Fatalf("segment 1 = [%f, %f], want [4, 6.2]", segments[1].Start, segments[1].End)
	}

	if argValue(gotArgs, "-l") != "en" {
		t.Fatalf("language arg missing: %v", gotArgs)
	}
	if argValue(gotArgs, "-bs") != "5" {
		t.Fatalf("beam size arg missing: %v", gotArgs)
	}
	if !hasArg(gotArgs, "-ng") {
		t.Fatalf("cpu runs should disable gpu: %v", gotArgs)
	}
	if !hasArg(gotArgs, "-oj") {
		t.Fatalf("expected JSON export flag: %v", gotArgs)
	}
}

// TestCLIHandleTranscribeEmptyChunk checks that no samples mean no exec.
func TestCLIHandleTranscribeEmptyChunk(t *testing.T) {
	runner := &fakeRunner{
		run: func(ctx context.Context, name string, args ...string) (commandResult, error) {
			t.Fatal("runner should not be invoked for empty chunk")
			return commandResult{}, nil
		},
	}

	handle := newTestHandle(runner, domain.ResolvedConfig{Device: domain.DeviceCPU, Precision: domain.PrecisionInt8})
	segments, err := handle.Transcribe(context.Background(), nil, 16000, TranscribeOptions{})
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	if len(segments) != 0 {
		t.Fatalf("segments = %d, want 0", len(segments))
	}
}

// TestCLIHandleTranscribeMapsOutOfMemory checks OutOfResourceError mapping.
func TestCLIHandleTranscribeMapsOutOfMemory(t *testing.T) {
	runner := &fakeRunner{
		run: func(ctx context.Context, name string, args ...string) (commandResult, error) {
			return commandResult{
				Stderr:   "ggml_backend_alloc: failed to allocate buffer",
				ExitCode: 1,
			}, errors.New("exit status 1")
		},
	}

	cfg := domain.ResolvedConfig{Device: domain.DeviceCUDA, Precision: domain.PrecisionFloat16}
	handle := newTestHandle(runner, cfg)

	_, err := handle.Transcribe(context.Background(), make([]int16, 100), 16000, TranscribeOptions{})
	var oom *domain.OutOfResourceError
	if !errors.As(err, &oom) {
		t.Fatalf("error = %v, want OutOfResourceError", err)
	}
	if oom.Config != cfg {
		t.Fatalf("config = %+v, want %+v", oom.Config, cfg)
	}
}

// TestBuildWhisperArgsAutoLanguage verifies no language flag for auto mode.
func TestBuildWhisperArgsAutoLanguage(t *testing.T) {
	cfg := domain.ResolvedConfig{Device: domain.DeviceCUDA, Precision: domain.PrecisionFloat16}
	args := buildWhisperArgs("/m.bin", "/audio.wav", "/out/base", cfg, TranscribeOptions{Language: "auto"})
	if hasArg(args, "-l") {
		t.Fatalf("did not expect -l in args: %v", args)
	}
	if hasArg(args, "-ng") {
		t.Fatalf("gpu runs should not pass -ng: %v", args)
	}
}

// TestBuildWhisperArgsDisableVAD verifies silence suppression is turned off.
func TestBuildWhisperArgsDisableVAD(t *testing.T) {
	cfg := domain.ResolvedConfig{Device: domain.DeviceCPU, Precision: domain.PrecisionInt8}

	args := buildWhisperArgs("/m.bin", "/audio.wav", "/out/base", cfg, TranscribeOptions{})
	if hasArg(args, "-nth") {
		t.Fatalf("did not expect -nth by default: %v", args)
	}

	args = buildWhisperArgs("/m.bin", "/audio.wav", "/out/base", cfg, TranscribeOptions{DisableVAD: true})
	if argValue(args, "-nth") != "1.0" {
		t.Fatalf("expected -nth 1.0 when VAD is disabled: %v", args)
	}
}

// TestCLILoaderMissingBinary checks the missing-runtime path.
func TestCLILoaderMissingBinary(t *testing.T) {
	loader := &CLILoader{
		binName: "whisper-cli",
		lookPath: func(string) (string, error) {
			return "", errors.New("executable file not found in $PATH")
		},
		runner: &fakeRunner{},
	}

	_, err := loader.Load(context.Background(), "base", "/models/ggml-base.bin",
		domain.ResolvedConfig{Device: domain.DeviceCPU, Precision: domain.PrecisionInt8})
	var unavailable *domain.ModelUnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("error = %v, want ModelUnavailableError", err)
	}
}

// TestCLILoaderBindsConfig checks the handle reports its configuration.
func TestCLILoaderBindsConfig(t *testing.T) {
	root := t.TempDir()
	weightsPath := filepath.Join(root, "ggml-base.bin")
	if err := os.WriteFile(weightsPath, []byte("weights"), 0o644); err != nil {
		t.Fatalf("seed weights: %v", err)
	}

	loader := &CLILoader{
		binName:  "whisper-cli",
		lookPath: func(name string) (string, error) { return "/usr/bin/" + name, nil },
		runner:   &fakeRunner{},
	}

	cfg := domain.ResolvedConfig{Device: domain.DeviceMetal, Precision: domain.PrecisionFloat16}
	handle, err := loader.Load(context.Background(), "base", weightsPath, cfg)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if handle.Config() != cfg {
		t.Fatalf("config = %+v, want %+v", handle.Config(), cfg)
	}
}
