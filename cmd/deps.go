package main

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/Nardjo/leadster/internal/config"
	"github.com/Nardjo/leadster/internal/enrich"
	"github.com/Nardjo/leadster/internal/geosource"
	"github.com/Nardjo/leadster/internal/model"
	"github.com/Nardjo/leadster/internal/resilience"
	"github.com/Nardjo/leadster/internal/sink"
	"github.com/Nardjo/leadster/internal/store"
	"github.com/Nardjo/leadster/internal/validate"
	"github.com/Nardjo/leadster/pkg/airtable"
)

func initStore() (*store.FileStore, error) {
	st, err := store.NewFileStore(cfg.Store.ResultsDir)
	return st, eris.Wrap(err, "init result store")
}

func initArchivedCache() (*store.ArchivedCache, error) {
	c, err := store.NewArchivedCache(cfg.Store.DataDir)
	return c, eris.Wrap(err, "init archived cache")
}

func newAirtableSink() *sink.AirtableSink {
	var opts []airtable.Option
	if cfg.Airtable.EndpointURL != "" {
		opts = append(opts, airtable.WithBaseURL(cfg.Airtable.EndpointURL))
	}
	client := airtable.NewClient(cfg.Airtable.APIKey, cfg.Airtable.BaseID, cfg.Airtable.Table, opts...)
	return sink.NewAirtableSink(client)
}

// buildSink picks the configured export target. Airtable wins when
// credentials are present; Mongo and the relational drivers are fallbacks
// for self-hosted setups. No configuration means file-only operation.
func buildSink(ctx context.Context) (sink.Sink, func(), error) {
	noop := func() {}
	switch {
	case cfg.Airtable.APIKey != "":
		return newAirtableSink(), noop, nil
	case cfg.Mongo.URI != "":
		s, err := sink.NewMongoSink(ctx, cfg.Mongo.URI, cfg.Mongo.Database, cfg.Mongo.Collection)
		if err != nil {
			return nil, noop, err
		}
		return s, noop, nil
	case cfg.Database.Driver == "postgres" && cfg.Database.DSN != "":
		s, err := sink.NewPostgresSink(ctx, cfg.Database.DSN)
		if err != nil {
			return nil, noop, err
		}
		return s, s.Close, nil
	case cfg.Database.Driver == "sqlite" && cfg.Database.DSN != "":
		s, err := sink.NewSQLiteSink(ctx, cfg.Database.DSN)
		if err != nil {
			return nil, noop, err
		}
		return s, func() { _ = s.Close() }, nil
	}
	return nil, noop, nil
}

func retryConfig() resilience.RetryConfig {
	rc := resilience.DefaultRetryConfig()
	if cfg.Pipeline.RetryCount > 0 {
		rc.MaxAttempts = cfg.Pipeline.RetryCount
	}
	if cfg.Pipeline.RetryDelayMs > 0 {
		rc.Delay = cfg.Pipeline.RetryDelay()
	}
	return rc
}

func newGeoClient() *geosource.Client {
	rc := retryConfig()
	rc.OnRetry = resilience.RetryLogger("overpass", "query")
	return geosource.NewClient(
		cfg.Search.Endpoints,
		cfg.Search.ExcludedBrands,
		cfg.Search.Timeout(),
		validate.IsValidEmail,
		validate.ExtractInstagramHandle,
		geosource.WithRetry(rc),
	)
}

func newEnricher() *enrich.Enricher {
	rc := retryConfig()
	rc.OnRetry = resilience.RetryLogger("website", "fetch")
	opts := []enrich.Option{enrich.WithRetry(rc)}
	if cfg.Enrich.VerifyEmails {
		opts = append(opts, enrich.WithVerifier(enrich.NewMXVerifier(cfg.Enrich.Timeout())))
	}
	return enrich.New(cfg.Enrich.Timeout(), cfg.Enrich.UserAgent, opts...)
}

func shopTypes() []model.ShopType {
	if len(cfg.Search.ShopTypes) > 0 {
		return cfg.Search.ShopTypes
	}
	return config.DefaultShopTypes
}

// filterTypes keeps configured shop types whose label matches one of the
// requested labels, case-insensitively.
func filterTypes(types []model.ShopType, labels []string) []model.ShopType {
	want := make(map[string]bool, len(labels))
	for _, l := range labels {
		want[strings.ToLower(l)] = true
	}
	var out []model.ShopType
	for _, t := range types {
		if want[strings.ToLower(t.Label)] {
			out = append(out, t)
		}
	}
	return out
}
