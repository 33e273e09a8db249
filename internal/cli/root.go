// Package cli implements the hang command line interface.
package cli

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command for the hang client
var rootCmd = &cobra.Command{
	Use:   "hang",
	Short: "Create instant meeting links from the command line",
	Long: `hang creates Google Meet and Zoom meeting links through a hang broker
service. The first run opens your browser to link an account; after
that a single command returns a fresh meeting link.

Configuration is taken from the environment:
  HANG_BACKEND_URL   broker service origin (default http://localhost:8080)
  HANG_POLL_INTERVAL interval between authentication polls (default 5s)
  HANG_POLL_ATTEMPTS number of authentication polls (default 24)`,
	SilenceUsage: true,
}

// version will be set by main
var version = "dev"

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "hang version %s\n" .Version}}`)

	// Creating a Meet link is the common case, make it the default
	if len(os.Args) == 1 {
		os.Args = append(os.Args, "meet")
	}

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(newMeetCmd())
	rootCmd.AddCommand(newZoomCmd())
	rootCmd.AddCommand(newVersionCmd())
}
