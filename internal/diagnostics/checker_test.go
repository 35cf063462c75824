package diagnostics

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"local-transcriber/internal/domain"
)

// TestCheckerRunAllPass validates happy-path diagnostics report.
func TestCheckerRunAllPass(t *testing.T) {
	root := t.TempDir()
	modelDir := filepath.Join(root, "models")
	if err := os.MkdirAll(modelDir, 0o755); err != nil {
		t.Fatalf("mkdir models: %v", err)
	}
	modelFile := filepath.Join(modelDir, "ggml-base.bin")
	if err := os.WriteFile(modelFile, []byte("stub"), 0o644); err != nil {
		t.Fatalf("write model: %v", err)
	}

	outputDir := filepath.Join(root, "output")
	checker := NewCheckerForTests(
		func(name string) (string, error) { return "/usr/local/bin/" + name, nil },
		os.Stat,
		os.ReadDir,
		os.MkdirAll,
		os.CreateTemp,
		os.Remove,
	)

	report := checker.Run(domain.Settings{
		ModelDir:  modelDir,
		OutputDir: outputDir,
		Language:  "en",
	})

	if report.HasFailures {
		t.Fatalf("expected no failures, got %+v", report.Items)
	}
	assertStatusByID(t, report, "tool_ffmpeg", domain.DiagnosticStatusPass)
	assertStatusByID(t, report, "tool_whisper-cli", domain.DiagnosticStatusPass)
	assertStatusByID(t, report, "model_dir", domain.DiagnosticStatusPass)
	assertStatusByID(t, report, "output_dir", domain.DiagnosticStatusPass)
}

// TestCheckerRunMissingToolsAndPaths validates failure reporting.
func TestCheckerRunMissingToolsAndPaths(t *testing.T) {
	checker := NewCheckerForTests(
		func(string) (string, error) { return "", errors.New("not found") },
		os.Stat,
		os.ReadDir,
		os.MkdirAll,
		os.CreateTemp,
		os.Remove,
	)

	report := checker.Run(domain.Settings{
		ModelDir:  "",
		OutputDir: "",
	})

	if !report.HasFailures {
		t.Fatal("expected failures")
	}

	assertStatusByID(t, report, "tool_ffmpeg", domain.DiagnosticStatusFail)
	assertStatusByID(t, report, "tool_whisper-cli", domain.DiagnosticStatusFail)
	assertStatusByID(t, report, "model_dir", domain.DiagnosticStatusFail)
	assertStatusByID(t, report, "output_dir", domain.DiagnosticStatusFail)
}

// TestCheckerMissingModelDirWarns checks that absent weights are not fatal.
func TestCheckerMissingModelDirWarns(t *testing.T) {
	root := t.TempDir()
	checker := NewCheckerForTests(
		func(name string) (string, error) { return "/usr/local/bin/" + name, nil },
		os.Stat,
		os.ReadDir,
		os.MkdirAll,
		os.CreateTemp,
		os.Remove,
	)

	report := checker.Run(domain.Settings{
		ModelDir:  filepath.Join(root, "not-created-yet"),
		OutputDir: filepath.Join(root, "output"),
	})

	if report.HasFailures {
		t.Fatalf("missing model dir should not fail: %+v", report.Items)
	}
	assertStatusByID(t, report, "model_dir", domain.DiagnosticStatusWarn)
}

// TestCheckerModelDirWithoutWeightsWarns validates the empty-dir case.
func TestCheckerModelDirWithoutWeightsWarns(t *testing.T) {
	root := t.TempDir()
	modelDir := filepath.Join(root, "models")
	if err := os.MkdirAll(modelDir, 0o755); err != nil {
		t.Fatalf("mkdir models: %v", err)
	}
	if err := os.WriteFile(filepath.Join(modelDir, "README.txt"), []byte("no model"), 0o644); err != nil {
		t.Fatalf("write readme: %v", err)
	}

	checker := NewCheckerForTests(
		func(name string) (string, error) { return "/usr/local/bin/" + name, nil },
		os.Stat,
		os.ReadDir,
		os.MkdirAll,
		os.CreateTemp,
		os.Remove,
	)
	report := checker.Run(domain.Settings{
		ModelDir:  modelDir,
		OutputDir: filepath.Join(root, "output"),
	})

	assertStatusByID(t, report, "model_dir", domain.DiagnosticStatusWarn)
}

// assertStatusByID checks status for one diagnostic item by ID.
func assertStatusByID(t *testing.T, report domain.DiagnosticReport, id string, want domain.DiagnosticStatus) {
	t.Helper()
	for _, item := range report.Items {
		if item.ID == id {
			if item.Status != want {
				t.Fatalf("item %s: got %s, want %s", id, item.Status, want)
			}
			return
		}
	}
	t.Fatalf("diagnostic item not found: %s", id)
}
