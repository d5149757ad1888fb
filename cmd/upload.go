package main

import (
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var uploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Upload the most recent result file to the configured sink",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore()
		if err != nil {
			return err
		}

		target, closeSink, err := buildSink(ctx)
		if err != nil {
			return eris.Wrap(err, "init sink")
		}
		defer closeSink()
		if target == nil {
			return eris.New("no sink configured; set airtable, mongo, or database settings")
		}

		leads, err := st.LoadLatest()
		if err != nil {
			return eris.Wrap(err, "load latest results")
		}
		if len(leads) == 0 {
			zap.L().Info("nothing to upload")
			return nil
		}

		n, err := target.Insert(ctx, leads)
		if err != nil {
			return eris.Wrapf(err, "upload to %s", target.Name())
		}

		zap.L().Info("upload finished",
			zap.String("sink", target.Name()),
			zap.Int("loaded", len(leads)),
			zap.Int("inserted", n),
		)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(uploadCmd)
}
