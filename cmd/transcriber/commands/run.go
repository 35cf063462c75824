package commands

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"local-transcriber/internal/device"
	"local-transcriber/internal/domain"
	"local-transcriber/internal/engine"
	"local-transcriber/internal/jobs"
	"local-transcriber/internal/media"
	"local-transcriber/internal/model"
	"local-transcriber/internal/output"
)

var (
	flagModel     string
	flagModelDir  string
	flagLanguage  string
	flagDevice    string
	flagPrecision string
	flagOutputDir string
	flagBeamSize  int
	flagNoVAD     bool
	flagKeepWAV   bool
	flagChunkSec  float64
	flagOverlap   float64
)

var runCmd = &cobra.Command{
	Use:   "run <media-file>",
	Short: "Transcribe a media file into timestamped text",
	Long: `Transcribe one audio or video file. The input is decoded to mono
16 kHz PCM, transcribed chunk by chunk, and written as two artifacts
next to each other in the output directory:

  <name>.timestamps.txt   one "[start → end] text" line per segment
  <name>.segments.json    structured segments plus run metadata

Interrupting with Ctrl-C cancels the job and leaves no output files.

Examples:
  transcriber run talk.mp4
  transcriber run -m small.en --device cpu interview.wav
  transcriber run --language de --keep-wav meeting.mkv`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTranscription(cmd, args[0])
	},
}

func init() {
	runCmd.Flags().StringVarP(&flagModel, "model", "m", "", "model preset (tiny, base, small.en, ...)")
	runCmd.Flags().StringVar(&flagModelDir, "model-dir", "", "directory holding model weights")
	runCmd.Flags().StringVarP(&flagLanguage, "language", "l", "", "spoken language code, or 'auto'")
	runCmd.Flags().StringVar(&flagDevice, "device", "", "compute backend: auto, cpu, cuda, metal")
	runCmd.Flags().StringVar(&flagPrecision, "precision", "", "numeric precision: int8, float16")
	runCmd.Flags().StringVarP(&flagOutputDir, "output-dir", "o", "", "directory for transcript artifacts")
	runCmd.Flags().IntVar(&flagBeamSize, "beam-size", 0, "decoder beam size")
	runCmd.Flags().BoolVar(&flagNoVAD, "no-vad", false, "disable voice activity detection")
	runCmd.Flags().BoolVar(&flagKeepWAV, "keep-wav", false, "also keep the normalized 16 kHz mono WAV")
	runCmd.Flags().Float64Var(&flagChunkSec, "chunk-seconds", 0, "chunk length in seconds")
	runCmd.Flags().Float64Var(&flagOverlap, "overlap-seconds", 0, "chunk overlap in seconds")

	rootCmd.AddCommand(runCmd)
}

// runTranscription assembles the pipeline and executes one job.
func runTranscription(cmd *cobra.Command, inputPath string) error {
	settings, err := loadSettings()
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	settings = applyRunFlags(settings)

	log := newLogger()
	runner := jobs.NewRunner(
		media.NewDecoder(),
		device.NewResolver(),
		model.NewProvider(settings.ModelDir, model.NewCLILoader()),
		engine.New(engine.Config{ChunkSeconds: flagChunkSec, OverlapSeconds: flagOverlap}),
		output.NewWriter(),
		log,
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	job := domain.TranscriptionJob{
		ID:         uuid.NewString(),
		InputPath:  inputPath,
		Model:      settings.Model,
		Language:   settings.Language,
		Device:     domain.Device(settings.Device),
		Precision:  domain.Precision(settings.Precision),
		OutputDir:  settings.OutputDir,
		BeamSize:   flagBeamSize,
		DisableVAD: flagNoVAD,
		KeepWAV:    settings.KeepWAV,
	}

	run, err := runner.Run(ctx, job, jobs.RunHooks{
		OnStatus: func(status domain.JobStatus) {
			fmt.Fprintf(cmd.ErrOrStderr(), "==> %s\n", status)
		},
		OnProgress: func(completed, total int) {
			fmt.Fprintf(cmd.ErrOrStderr(), "    chunk %d/%d\n", completed, total)
		},
	})
	if err != nil {
		var cancelled *domain.CancelledError
		if errors.As(err, &cancelled) {
			return fmt.Errorf("transcription cancelled")
		}
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), run.Artifacts.TimestampsPath)
	fmt.Fprintln(cmd.OutOrStdout(), run.Artifacts.SegmentsPath)
	return nil
}

// applyRunFlags overrides persisted settings with explicit flags.
func applyRunFlags(settings domain.Settings) domain.Settings {
	if flagModel != "" {
		settings.Model = flagModel
	}
	if flagModelDir != "" {
		settings.ModelDir = flagModelDir
	}
	if flagLanguage != "" {
		settings.Language = flagLanguage
	}
	if flagDevice != "" {
		settings.Device = flagDevice
	}
	if flagPrecision != "" {
		settings.Precision = flagPrecision
	}
	if flagOutputDir != "" {
		settings.OutputDir = flagOutputDir
	}
	if flagKeepWAV {
		settings.KeepWAV = true
	}
	return settings
}
