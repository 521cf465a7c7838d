package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/courtside/rsvpd/cmd/rsvpd/commands"
	"github.com/courtside/rsvpd/logger"
)

var rootCmd = &cobra.Command{
	Use:   "rsvpd",
	Short: "rsvpd - Timed RSVP scheduling daemon for Meetup groups",
	Long: `rsvpd schedules RSVP submissions for Meetup events ahead of the
attendance window, fires them at the computed time, and keeps a bounded
history of outcomes.

Available commands:
  serve    - Start the HTTP control-plane server
  version  - Show build information

Examples:
  rsvpd serve                       # Start with rsvpd.toml from the search path
  rsvpd serve --config ./rsvpd.toml # Start with an explicit config file
  rsvpd version --json              # Machine-readable build info`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		jsonLogs, _ := cmd.Flags().GetBool("json-logs")
		if err := logger.Initialize(jsonLogs); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().Bool("json-logs", false, "Emit logs as JSON instead of console output")

	rootCmd.AddCommand(commands.ServeCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	defer logger.Cleanup()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
