package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var mergeDate string

var mergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Consolidate one day's chunk and partial files into two final CSVs",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := initStore()
		if err != nil {
			return err
		}

		res, err := st.MergeByDate(mergeDate)
		if err != nil {
			return eris.Wrap(err, "merge")
		}

		zap.L().Info("merge finished",
			zap.String("date", mergeDate),
			zap.Int("leads", res.Merged),
			zap.String("with_contact", res.WithContact),
			zap.String("without_contact", res.WithoutContact),
		)
		return nil
	},
}

func init() {
	mergeCmd.Flags().StringVar(&mergeDate, "date", "", "day to merge, YYYY-MM-DD (required)")
	_ = mergeCmd.MarkFlagRequired("date")
	rootCmd.AddCommand(mergeCmd)
}
