package commands

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"local-transcriber/internal/config"
	"local-transcriber/internal/domain"
	"local-transcriber/internal/logging"
)

var (
	flagConfigPath string
	flagLogLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "transcriber",
	Short: "Turn media files into timestamped transcripts, fully offline",
	Long: `Transcriber converts audio and video files into timestamped text
using local speech recognition models. Nothing leaves the machine:
decoding runs through ffmpeg and inference through whisper-cli.

Settings are stored in the user config directory and can be
overridden per invocation with flags.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the CLI entry command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "settings file path (default: user config dir)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "log level: debug, info, warn, error")
}

// settingsStore opens the configured (or default) settings store.
func settingsStore() config.Store {
	path := flagConfigPath
	if path == "" {
		path = config.DefaultPath()
	}
	return config.NewYAMLStore(path)
}

// loadSettings reads persisted settings with defaults applied.
func loadSettings() (domain.Settings, error) {
	return settingsStore().Load()
}

// newLogger builds the CLI logger honoring --log-level.
func newLogger() zerolog.Logger {
	return logging.New(logging.Options{Level: flagLogLevel, Console: true})
}
