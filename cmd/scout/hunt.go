package main

import (
	"errors"

	"github.com/spf13/cobra"

	"trend-scout/internal/session"
)

var huntClientID string

var huntCmd = &cobra.Command{
	Use:   "hunt",
	Short: "Record the stream and claim the official target",
	Long: `Runs without a dashboard: every creation event is written to the history sink,
and the first token matching the target rule is claimed in the remote store
unless a record already exists. Requires a remote store.`,
	RunE: runHunt,
}

func init() {
	huntCmd.Flags().StringVar(&huntClientID, "client-id", "", "Identifier written with claimed records (random when empty)")
}

func runHunt(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Remote.PostgresDSN == "" {
		return errors.New("hunt requires remote.postgres_dsn (DATABASE_URL)")
	}
	ctx, stop := signalContext()
	defer stop()

	be, err := openBackends(ctx, cfg, true, false, logger)
	if err != nil {
		return err
	}
	defer be.Close()

	notifier, err := newNotifier(cfg)
	if err != nil {
		return err
	}

	h := session.NewHunter(session.HunterOptions{
		Feed:        newFeed(cfg, logger),
		Official:    be.official,
		History:     be.history,
		Target:      targetConfig(cfg),
		Notifier:    notifier,
		ClientID:    clientID(huntClientID),
		IdentityCap: cfg.Groups.IdentityCap,
		Logger:      logger,
	})
	return ignoreCanceled(h.Run(ctx))
}
