// Package output persists transcript results as deterministic artifacts.
package output

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"local-transcriber/internal/domain"
)

// Artifacts lists the files produced for one job.
type Artifacts struct {
	BaseName       string `json:"baseName"`
	TimestampsPath string `json:"timestampsPath"`
	SegmentsPath   string `json:"segmentsPath"`
}

// Writer serializes a TranscriptResult into the output directory.
type Writer struct {
	mkdirAll   func(path string, perm os.FileMode) error
	createTemp func(dir, pattern string) (*os.File, error)
	rename     func(oldpath, newpath string) error
	remove     func(name string) error
}

// NewWriter constructs the production writer with OS dependencies.
func NewWriter() *Writer {
	return &Writer{
		mkdirAll:   os.MkdirAll,
		createTemp: os.CreateTemp,
		rename:     os.Rename,
		remove:     os.Remove,
	}
}

// Write persists both artifacts. Each file is written to a temporary path in
// the target directory and renamed into place, so a reader never observes a
// partially written file. Re-running the same job overwrites both files with
// identical bytes.
func (w *Writer) Write(result *domain.TranscriptResult, inputPath, outputDir string) (Artifacts, error) {
	if strings.TrimSpace(outputDir) == "" {
		return Artifacts{}, fmt.Errorf("output directory is required")
	}
	if err := w.mkdirAll(outputDir, 0o755); err != nil {
		return Artifacts{}, fmt.Errorf("create output directory: %w", err)
	}

	base := SanitizeFileNameComponent(stem(inputPath))
	artifacts := Artifacts{
		BaseName:       base,
		TimestampsPath: filepath.Join(outputDir, base+".timestamps.txt"),
		SegmentsPath:   filepath.Join(outputDir, base+".segments.json"),
	}

	if err := w.writeAtomic(artifacts.TimestampsPath, renderTimestamps(result.Segments)); err != nil {
		return Artifacts{}, fmt.Errorf("write timestamps artifact: %w", err)
	}

	payload, err := renderSegmentsJSON(result)
	if err != nil {
		return Artifacts{}, err
	}
	if err := w.writeAtomic(artifacts.SegmentsPath, payload); err != nil {
		return Artifacts{}, fmt.Errorf("write segments artifact: %w", err)
	}

	return artifacts, nil
}

// writeAtomic writes content to a temp file in the target dir, then renames.
func (w *Writer) writeAtomic(path string, content []byte) error {
	dir := filepath.Dir(path)
	tmp, err := w.createTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		_ = w.remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = w.remove(tmpPath)
		return err
	}
	if err := w.rename(tmpPath, path); err != nil {
		_ = w.remove(tmpPath)
		return err
	}
	return nil
}

// renderTimestamps formats one `[start → end] text` line per segment.
func renderTimestamps(segments []domain.Segment) []byte {
	var b strings.Builder
	for _, seg := range segments {
		b.WriteString(fmt.Sprintf(
			"[%s → %s] %s\n",
			FormatTimestamp(seg.Start),
			FormatTimestamp(seg.End),
			seg.Text,
		))
	}
	return []byte(b.String())
}

// segmentsDocument is the on-disk shape of the structured artifact.
type segmentsDocument struct {
	Metadata domain.ResultMetadata `json:"metadata"`
	Segments []domain.Segment      `json:"segments"`
}

// renderSegmentsJSON marshals the structured artifact deterministically.
func renderSegmentsJSON(result *domain.TranscriptResult) ([]byte, error) {
	doc := segmentsDocument{
		Metadata: result.Metadata,
		Segments: result.Segments,
	}
	if doc.Segments == nil {
		doc.Segments = []domain.Segment{}
	}

	payload, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal segments: %w", err)
	}
	return append(payload, '\n'), nil
}

// FormatTimestamp renders seconds as HH:MM:SS.mmm.
func FormatTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	totalMs := int64(seconds*1000.0 + 0.5)
	ms := totalMs % 1000
	totalS := totalMs / 1000
	s := totalS % 60
	totalM := totalS / 60
	m := totalM % 60
	h := totalM / 60
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, ms)
}

// stem returns the input file name without directory or extension.
func stem(inputPath string) string {
	base := filepath.Base(inputPath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// windowsReservedNames are device names that cannot be used as file names.
var windowsReservedNames = map[string]struct{}{
	"CON": {}, "PRN": {}, "AUX": {}, "NUL": {},
	"COM1": {}, "COM2": {}, "COM3": {}, "COM4": {}, "COM5": {},
	"COM6": {}, "COM7": {}, "COM8": {}, "COM9": {},
	"LPT1": {}, "LPT2": {}, "LPT3": {}, "LPT4": {}, "LPT5": {},
	"LPT6": {}, "LPT7": {}, "LPT8": {}, "LPT9": {},
}

// SanitizeFileNameComponent makes a string safe as a single file name
// component across Windows, macOS and Linux.
func SanitizeFileNameComponent(name string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case '<', '>', ':', '"', '/', '\\', '|', '?', '*', 0:
			return '_'
		}
		return r
	}, name)

	// Windows forbids trailing spaces and dots.
	cleaned = strings.TrimRight(cleaned, " .")

	if cleaned == "" {
		return "output"
	}
	if _, reserved := windowsReservedNames[strings.ToUpper(cleaned)]; reserved {
		return "_" + cleaned
	}
	return cleaned
}
