package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"local-transcriber/internal/model"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List and download speech recognition models",
}

var modelsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List available model presets",
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := loadSettings()
		if err != nil {
			return fmt.Errorf("load settings: %w", err)
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSIZE\tSTATUS\tDESCRIPTION")
		for _, entry := range model.Catalog(settings.ModelDir) {
			status := "-"
			if entry.Downloaded {
				status = "downloaded"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", entry.ID, entry.SizeLabel, status, entry.Description)
		}
		return w.Flush()
	},
}

var modelsDownloadCmd = &cobra.Command{
	Use:   "download <model-id>",
	Short: "Download a model's weights ahead of first use",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := loadSettings()
		if err != nil {
			return fmt.Errorf("load settings: %w", err)
		}

		provider := model.NewProvider(settings.ModelDir, model.NewCLILoader())
		fmt.Fprintf(cmd.ErrOrStderr(), "Downloading %s to %s...\n", args[0], settings.ModelDir)
		path, err := provider.Download(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), path)
		return nil
	},
}

var modelsRemoveCmd = &cobra.Command{
	Use:   "remove <model-id>",
	Short: "Delete a model's downloaded weights",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := loadSettings()
		if err != nil {
			return fmt.Errorf("load settings: %w", err)
		}

		for _, entry := range model.Catalog(settings.ModelDir) {
			if entry.ID != args[0] {
				continue
			}
			if !entry.Downloaded {
				return fmt.Errorf("model %s is not downloaded", args[0])
			}
			if err := os.Remove(entry.LocalPath); err != nil {
				return fmt.Errorf("remove weights: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", entry.LocalPath)
			return nil
		}
		return fmt.Errorf("unknown model id: %s", args[0])
	},
}

func init() {
	modelsCmd.AddCommand(modelsListCmd)
	modelsCmd.AddCommand(modelsDownloadCmd)
	modelsCmd.AddCommand(modelsRemoveCmd)
	rootCmd.AddCommand(modelsCmd)
}
