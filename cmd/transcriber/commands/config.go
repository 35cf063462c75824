package commands

import (
	"fmt"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show and change persisted settings",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective settings as YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := loadSettings()
		if err != nil {
			return fmt.Errorf("load settings: %w", err)
		}

		data, err := yaml.Marshal(settings)
		if err != nil {
			return fmt.Errorf("render settings: %w", err)
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set one settings key and persist it",
	Long: `Set one settings key. Supported keys:

  model, model_dir, output_dir, language, device, precision, keep_wav

Example:
  transcriber config set model small.en
  transcriber config set device cuda`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		store := settingsStore()
		settings, err := store.Load()
		if err != nil {
			return fmt.Errorf("load settings: %w", err)
		}

		key, value := args[0], args[1]
		switch key {
		case "model":
			settings.Model = value
		case "model_dir":
			settings.ModelDir = value
		case "output_dir":
			settings.OutputDir = value
		case "language":
			settings.Language = value
		case "device":
			settings.Device = value
		case "precision":
			settings.Precision = value
		case "keep_wav":
			settings.KeepWAV = value == "true"
		default:
			return fmt.Errorf("unknown settings key: %s", key)
		}

		if err := store.Save(settings); err != nil {
			return fmt.Errorf("save settings: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	rootCmd.AddCommand(configCmd)
}
