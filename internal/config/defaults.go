package config

import (
	"os"
	"path/filepath"
	"strings"

	"local-transcriber/internal/domain"
)

// DefaultSettings returns the out-of-the-box configuration.
func DefaultSettings() domain.Settings {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}

	return domain.Settings{
		Model:     "base",
		ModelDir:  filepath.Join(home, ".local-transcriber", "models"),
		OutputDir: filepath.Join(home, "Transcripts"),
		Language:  domain.DefaultLanguage,
		Device:    string(domain.DeviceAuto),
	}
}

// DefaultPath returns the settings file location under the user config dir.
func DefaultPath() string {
	base, err := os.UserConfigDir()
	if err != nil {
		home, homeErr := os.UserHomeDir()
		if homeErr != nil {
			home = "."
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "local-transcriber", "settings.yaml")
}

// Normalize fills empty fields with defaults and trims path fields.
func Normalize(cfg domain.Settings) domain.Settings {
	defaults := DefaultSettings()

	cfg.Model = strings.TrimSpace(cfg.Model)
	cfg.ModelDir = strings.TrimSpace(cfg.ModelDir)
	cfg.OutputDir = strings.TrimSpace(cfg.OutputDir)
	cfg.Language = strings.TrimSpace(cfg.Language)
	cfg.Device = strings.TrimSpace(cfg.Device)
	cfg.Precision = strings.TrimSpace(cfg.Precision)

	if cfg.Model == "" {
		cfg.Model = defaults.Model
	}
	if cfg.ModelDir == "" {
		cfg.ModelDir = defaults.ModelDir
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = defaults.OutputDir
	}
	if cfg.Language == "" {
		cfg.Language = defaults.Language
	}
	if cfg.Device == "" {
		cfg.Device = defaults.Device
	}

	return cfg
}
