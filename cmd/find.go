package main

import (
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Nardjo/leadster/internal/pipeline"
)

var (
	findAreas       []string
	findTypes       []string
	findConcurrency int
	findChunkSize   int
	findRetries     int
	findRetryDelay  int
	findScrapeDelay int
	findMode        string
	findUpload      bool
)

var findCmd = &cobra.Command{
	Use:   "find",
	Short: "Harvest new retail leads for the configured areas",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		applyFindFlags()

		st, err := initStore()
		if err != nil {
			return err
		}

		target, closeSink, err := buildSink(ctx)
		if err != nil {
			return eris.Wrap(err, "init sink")
		}
		defer closeSink()

		archived, err := initArchivedCache()
		if err != nil {
			return err
		}

		opts := []pipeline.Option{pipeline.WithArchivedCache(archived)}
		if target != nil {
			opts = append(opts, pipeline.WithSink(target))
		}
		runner := pipeline.NewRunner(cfg.Pipeline, newGeoClient(), newEnricher(), st, opts...)

		areas := cfg.Search.Areas
		if len(findAreas) > 0 {
			areas = findAreas
		}
		if len(areas) == 0 {
			return eris.New("no search areas configured; set search.areas or pass --areas")
		}

		types := shopTypes()
		if len(findTypes) > 0 {
			types = filterTypes(types, findTypes)
			if len(types) == 0 {
				return eris.New("no configured shop type matches --types")
			}
		}

		result, err := runner.Run(ctx, areas, types, findUpload)
		if err != nil {
			return eris.Wrap(err, "harvest run")
		}

		zap.L().Info("harvest finished",
			zap.Int("candidates", result.Candidates),
			zap.Int("skipped_known", result.SkippedKnown),
			zap.Int("new_leads", result.NewLeads),
			zap.Int("with_contact", result.WithContact),
			zap.Int("uploaded", result.Uploaded),
			zap.Strings("files", result.Files),
		)
		return nil
	},
}

func applyFindFlags() {
	if findConcurrency > 0 {
		cfg.Pipeline.Concurrency = findConcurrency
	}
	if findChunkSize > 0 {
		cfg.Pipeline.ChunkSize = findChunkSize
	}
	if findRetries > 0 {
		cfg.Pipeline.RetryCount = findRetries
	}
	if findRetryDelay > 0 {
		cfg.Pipeline.RetryDelayMs = findRetryDelay
	}
	if findScrapeDelay > 0 {
		cfg.Pipeline.ScrapeDelayMs = findScrapeDelay
	}
	if findMode != "" {
		cfg.Pipeline.Mode = findMode
	}
}

func init() {
	findCmd.Flags().StringSliceVar(&findAreas, "areas", nil, "area names to search (default: configured areas)")
	findCmd.Flags().StringSliceVar(&findTypes, "types", nil, "shop type labels to include (default: all configured)")
	findCmd.Flags().IntVar(&findConcurrency, "concurrency", 0, "parallel website scrapes per chunk")
	findCmd.Flags().IntVar(&findChunkSize, "chunk-size", 0, "leads per checkpoint file")
	findCmd.Flags().IntVar(&findRetries, "retries", 0, "attempts per failing HTTP request")
	findCmd.Flags().IntVar(&findRetryDelay, "retry-delay", 0, "delay between retry attempts, in ms")
	findCmd.Flags().IntVar(&findScrapeDelay, "scrape-delay", 0, "minimum spacing between website fetches, in ms")
	findCmd.Flags().StringVar(&findMode, "mode", "", `"scrape" or "direct" (skip website enrichment)`)
	findCmd.Flags().BoolVar(&findUpload, "upload", false, "upload new leads to the configured sink")
	rootCmd.AddCommand(findCmd)
}
