package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

// TestNewHonorsLevel checks that messages below the level are dropped.
func TestNewHonorsLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Level: "warn", Out: &buf})

	log.Info().Msg("quiet")
	log.Warn().Msg("loud")

	out := buf.String()
	if strings.Contains(out, "quiet") {
		t.Fatalf("info message was not filtered: %s", out)
	}
	if !strings.Contains(out, "loud") {
		t.Fatalf("warn message missing: %s", out)
	}
}

// TestNewUnknownLevelFallsBack checks the info fallback.
func TestNewUnknownLevelFallsBack(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Level: "shout", Out: &buf})

	if log.GetLevel() != zerolog.InfoLevel {
		t.Fatalf("level = %v, want info", log.GetLevel())
	}
}
