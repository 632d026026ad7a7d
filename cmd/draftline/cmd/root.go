package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// Version is the release version, overridden at build time via ldflags.
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "draftline",
	Short: "Draftline is a LinkedIn content generation backend",
	Long: `Draftline generates LinkedIn posts through the caller's own AI provider
API key. Keys are held encrypted in memory, scoped to a session, and
destroyed when the session expires or the process exits. Nothing is
persisted to disk.`,
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
