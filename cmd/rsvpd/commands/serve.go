package commands

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/courtside/rsvpd/config"
	"github.com/courtside/rsvpd/errors"
	"github.com/courtside/rsvpd/flags"
	"github.com/courtside/rsvpd/logger"
	"github.com/courtside/rsvpd/meetup"
	"github.com/courtside/rsvpd/schedule"
	"github.com/courtside/rsvpd/server"
	"github.com/courtside/rsvpd/users"
)

// ServeCmd starts the rsvpd control-plane server
var ServeCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"server"},
	Short:   "Start the rsvpd HTTP server",
	Long:    `Launch the rsvpd server: schedule timed RSVP jobs, inspect pending and executed jobs, query upcoming events, and stream job lifecycle events over a websocket.`,
	RunE:    runServe,
}

var serveConfigPath string

func init() {
	ServeCmd.Flags().StringVar(&serveConfigPath, "config", "", "Path to a TOML config file (overrides the search path)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return errors.Wrap(err, "failed to load configuration")
	}

	log := logger.Logger

	userStore := users.NewStore(cfg.Users)
	if userStore.Len() == 0 {
		log.Warnw("No users configured, scheduling requests will be rejected")
	}

	client := meetup.NewClient(cfg.Meetup, log)
	modes := flags.NewController(log)

	schedCfg := schedule.Config{
		Timing: schedule.Timing{
			TestDelay:   time.Duration(cfg.Scheduling.TestDelayMillis) * time.Millisecond,
			RemoveDelay: time.Duration(cfg.Scheduling.RemoveDelayMillis) * time.Millisecond,
			AdvanceDays: cfg.Scheduling.AdvanceDays,
		},
		LedgerSize:  cfg.Scheduling.LedgerSize,
		FireTimeout: time.Duration(cfg.Meetup.TimeoutSeconds) * time.Second,
	}
	scheduler := schedule.NewScheduler(server.NewSubmitter(client), modes, schedCfg, log)

	// Flag file is optional: without it the daemon runs with test mode
	// off and a zero hour offset.
	watcher, err := flags.NewWatcher(cfg.Flags.Path, log)
	if err != nil {
		log.Warnw("Flag watcher unavailable, using flag defaults",
			"path", cfg.Flags.Path,
			"error", err,
		)
	} else {
		watcher.OnUpdate(modes.HandleUpdate)
		watcher.Start()
		defer watcher.Stop()
	}

	srv := server.New(cfg, scheduler, modes, client, userStore, log)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return srv.Start(ctx)
}

func loadConfig() (*config.Config, error) {
	if serveConfigPath != "" {
		return config.LoadFromFile(serveConfigPath)
	}
	return config.Load()
}
