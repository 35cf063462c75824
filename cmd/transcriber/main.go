// Package main provides the headless transcription CLI.
//
// Usage:
//
//	transcriber [flags] <command> [args]
//
// Commands:
//
//	run      - Transcribe a media file into timestamped text
//	models   - List and download speech recognition models
//	doctor   - Check external tools and configured paths
//	version  - Print version information
package main

import (
	"fmt"
	"os"

	"local-transcriber/cmd/transcriber/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
