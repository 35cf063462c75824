package commands

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"local-transcriber/internal/diagnostics"
	"local-transcriber/internal/domain"
)

var (
	passStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	failStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	hintStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check external tools and configured paths",
	Long: `Run the startup checks a transcription job depends on: ffmpeg and
whisper-cli on PATH, the model weights directory, the output
directory, and GPU availability.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := loadSettings()
		if err != nil {
			return fmt.Errorf("load settings: %w", err)
		}

		report := diagnostics.NewChecker().Run(settings)
		for _, item := range report.Items {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %s\n", statusBadge(item.Status), item.Name, item.Message)
			if item.Hint != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "     %s\n", hintStyle.Render(item.Hint))
			}
		}

		if report.HasFailures {
			return fmt.Errorf("some checks failed")
		}
		return nil
	},
}

// statusBadge renders a colored fixed-width status marker.
func statusBadge(status domain.DiagnosticStatus) string {
	switch status {
	case domain.DiagnosticStatusPass:
		return passStyle.Render("[ok]")
	case domain.DiagnosticStatusWarn:
		return warnStyle.Render("[!!]")
	default:
		return failStyle.Render("[XX]")
	}
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}
