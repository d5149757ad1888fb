package main

import (
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var archivedCmd = &cobra.Command{
	Use:   "archived",
	Short: "Refresh the local cache of archived leads from Airtable",
	Long:  "Archived leads never come back into harvest results. This pulls the archived rows from the Airtable base and merges them into the local exclusion cache used by find.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if cfg.Airtable.APIKey == "" {
			return eris.New("airtable credentials required; set airtable.api_key")
		}

		cache, err := initArchivedCache()
		if err != nil {
			return err
		}

		records, err := newAirtableSink().FetchArchived(ctx)
		if err != nil {
			return eris.Wrap(err, "fetch archived leads")
		}

		added, err := cache.Refresh(records)
		if err != nil {
			return eris.Wrap(err, "refresh archived cache")
		}

		zap.L().Info("archived cache refreshed",
			zap.Int("fetched", len(records)),
			zap.Int("added", added),
		)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(archivedCmd)
}
