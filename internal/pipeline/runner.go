// Package pipeline orchestrates a harvest run: load prior knowledge, fetch
// candidates from the geodata source, enrich their websites, filter out
// known shops, and checkpoint results chunk by chunk.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/Nardjo/leadster/internal/config"
	"github.com/Nardjo/leadster/internal/dedup"
	"github.com/Nardjo/leadster/internal/model"
	"github.com/Nardjo/leadster/internal/sink"
	"github.com/Nardjo/leadster/internal/store"
)

// Fetcher produces raw candidates from the geodata source.
type Fetcher interface {
	FetchCandidates(ctx context.Context, areas []string, types []model.ShopType) []model.Candidate
}

// Enricher scrapes one candidate's website for contact signals.
type Enricher interface {
	Enrich(ctx context.Context, c model.Candidate) model.EnrichmentResult
}

// Result summarizes one harvest run.
type Result struct {
	Candidates   int      // enrichable candidates from the geodata source
	SkippedKnown int      // dropped before enrichment by URL pre-filter
	NewLeads     int      // leads surviving full dedup
	WithContact  int      // new leads carrying a handle or email
	Uploaded     int      // rows inserted into the sink, when one is set
	Files        []string // every file written, checkpoints included
}

// Runner drives the harvest. Chunks are processed sequentially; enrichment
// within a chunk runs concurrently behind a shared request pacer.
type Runner struct {
	cfg      config.PipelineConfig
	fetcher  Fetcher
	enricher Enricher
	store    store.Store
	sink     sink.Sink
	archived *store.ArchivedCache
	now      func() time.Time
	log      *zap.Logger
}

type Option func(*Runner)

// WithSink enables remote dedup and upload through the given sink.
func WithSink(s sink.Sink) Option {
	return func(r *Runner) { r.sink = s }
}

// WithArchivedCache adds the local archived-lead cache as a dedup source.
func WithArchivedCache(c *store.ArchivedCache) Option {
	return func(r *Runner) { r.archived = c }
}

// WithClock overrides the timestamp source, for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

func NewRunner(cfg config.PipelineConfig, fetcher Fetcher, enricher Enricher, st store.Store, opts ...Option) *Runner {
	r := &Runner{
		cfg:      cfg,
		fetcher:  fetcher,
		enricher: enricher,
		store:    st,
		now:      time.Now,
		log:      zap.L().Named("pipeline"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes one full harvest. On a mid-run failure the leads gathered so
// far are flushed to a partial file before the error is returned, so a long
// run never loses everything.
func (r *Runner) Run(ctx context.Context, areas []string, types []model.ShopType, upload bool) (*Result, error) {
	stamp := store.Stamp(r.now())
	res := &Result{}

	index := r.loadKnowledge(ctx)

	candidates := r.fetcher.FetchCandidates(ctx, areas, types)
	if err := ctx.Err(); err != nil {
		return res, eris.Wrap(err, "pipeline: fetch candidates")
	}

	enrichable := candidates[:0:0]
	for _, c := range candidates {
		if c.Enrichable() {
			enrichable = append(enrichable, c)
		}
	}
	res.Candidates = len(enrichable)

	pending := enrichable[:0:0]
	for _, c := range enrichable {
		if index.KnownByURL(c.Website, c.ShopType) {
			res.SkippedKnown++
			continue
		}
		pending = append(pending, c)
	}
	r.log.Info("candidates gathered",
		zap.Int("enrichable", res.Candidates),
		zap.Int("skipped_known", res.SkippedKnown),
		zap.Int("pending", len(pending)),
		zap.Int("known_keys", index.Len()))

	var (
		allNew  []model.Lead
		limiter = rate.NewLimiter(rate.Every(r.cfg.ScrapeDelay()), 1)
		chunks  = chunkCandidates(pending, r.cfg.ChunkSize)
	)
	for i, chunk := range chunks {
		leads, err := r.enrichChunk(ctx, chunk, limiter)
		if err != nil {
			r.flushPartial(allNew, stamp, res)
			return res, eris.Wrapf(err, "pipeline: chunk %d/%d", i+1, len(chunks))
		}

		fresh := make([]model.Lead, 0, len(leads))
		for _, l := range leads {
			if index.Known(l) {
				continue
			}
			index.Add(l)
			fresh = append(fresh, l)
		}
		allNew = append(allNew, fresh...)

		if len(fresh) > 0 {
			name := fmt.Sprintf("leads_%s_chunk_%d.csv", stamp, i+1)
			path, err := r.store.WriteCSV(fresh, name)
			if err != nil {
				return res, eris.Wrap(err, "pipeline: write checkpoint")
			}
			res.Files = append(res.Files, path)
		}
		r.log.Info("chunk processed",
			zap.Int("chunk", i+1),
			zap.Int("chunks", len(chunks)),
			zap.Int("new", len(fresh)),
			zap.Int("total_new", len(allNew)))
	}
	res.NewLeads = len(allNew)

	if err := r.writeFinal(allNew, stamp, res); err != nil {
		return res, err
	}

	if upload && r.sink != nil && len(allNew) > 0 {
		n, err := r.sink.Insert(ctx, allNew)
		res.Uploaded = n
		if err != nil {
			return res, eris.Wrapf(err, "pipeline: upload to %s", r.sink.Name())
		}
		r.log.Info("leads uploaded", zap.String("sink", r.sink.Name()), zap.Int("count", n))
	}
	return res, nil
}

// loadKnowledge assembles the dedup index from every available source. A
// source that cannot be read degrades to empty with a warning; dedup quality
// drops but the harvest still runs.
func (r *Runner) loadKnowledge(ctx context.Context) *dedup.Index {
	prior, err := r.store.LoadPriorLeads()
	if err != nil {
		r.log.Warn("prior results unavailable", zap.Error(err))
	}

	var remote []model.Lead
	if r.sink != nil {
		remote, err = r.sink.FetchExisting(ctx)
		if err != nil {
			r.log.Warn("remote leads unavailable, dedup degraded",
				zap.String("sink", r.sink.Name()), zap.Error(err))
		}
	}

	var archived []model.Lead
	if r.archived != nil {
		archived, err = r.archived.Load()
		if err != nil {
			r.log.Warn("archived cache unavailable", zap.Error(err))
		}
	}

	return dedup.NewIndex(prior, remote, archived)
}

// enrichChunk scrapes one chunk concurrently. Results keep candidate order
// so downstream files are deterministic for a fixed input.
func (r *Runner) enrichChunk(ctx context.Context, chunk []model.Candidate, limiter *rate.Limiter) ([]model.Lead, error) {
	leads := make([]model.Lead, len(chunk))

	if r.cfg.Mode == config.ModeDirect {
		for i, c := range chunk {
			leads[i] = model.FromCandidate(c)
		}
		return leads, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Concurrency)
	for i, c := range chunk {
		g.Go(func() error {
			if c.NeedsScrape() {
				if err := limiter.Wait(gctx); err != nil {
					return err
				}
				enriched := r.enricher.Enrich(gctx, c)
				if enriched.InstagramHandle != "" {
					c.InstagramHandle = enriched.InstagramHandle
				}
				if c.Email == "" {
					c.Email = enriched.Email
				}
			}
			leads[i] = model.FromCandidate(c)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return leads, nil
}

// writeFinal splits new leads on contact presence and persists the run.
// The JSON file is what future runs load as prior knowledge.
func (r *Runner) writeFinal(leads []model.Lead, stamp string, res *Result) error {
	withContact := make([]model.Lead, 0, len(leads))
	withoutContact := make([]model.Lead, 0)
	for _, l := range leads {
		if l.HasContact() {
			withContact = append(withContact, l)
		} else {
			withoutContact = append(withoutContact, l)
		}
	}
	res.WithContact = len(withContact)

	writes := []struct {
		leads []model.Lead
		name  string
		csv   bool
	}{
		{leads, fmt.Sprintf("leads_%s.json", stamp), false},
		{withContact, fmt.Sprintf("leads_%s_with_contact.csv", stamp), true},
		{withoutContact, fmt.Sprintf("leads_%s_without_contact.csv", stamp), true},
	}
	for _, w := range writes {
		if len(w.leads) == 0 && w.csv {
			continue
		}
		var (
			path string
			err  error
		)
		if w.csv {
			path, err = r.store.WriteCSV(w.leads, w.name)
		} else {
			path, err = r.store.Write(w.leads, w.name)
		}
		if err != nil {
			return eris.Wrapf(err, "pipeline: write %s", w.name)
		}
		res.Files = append(res.Files, path)
	}

	r.log.Info("run complete",
		zap.Int("new_leads", len(leads)),
		zap.Int("with_contact", len(withContact)),
		zap.Int("without_contact", len(withoutContact)))
	return nil
}

// flushPartial saves what a failed run already gathered.
func (r *Runner) flushPartial(leads []model.Lead, stamp string, res *Result) {
	if len(leads) == 0 {
		return
	}
	name := fmt.Sprintf("leads_%s_partial.csv", stamp)
	path, err := r.store.WriteCSV(leads, name)
	if err != nil {
		r.log.Error("partial save failed", zap.Error(err))
		return
	}
	res.Files = append(res.Files, path)
	res.NewLeads = len(leads)
	r.log.Warn("run interrupted, partial results saved",
		zap.String("file", path), zap.Int("leads", len(leads)))
}

func chunkCandidates(candidates []model.Candidate, size int) [][]model.Candidate {
	if size <= 0 {
		size = len(candidates)
	}
	var chunks [][]model.Candidate
	for start := 0; start < len(candidates); start += size {
		chunks = append(chunks, candidates[start:min(start+size, len(candidates))])
	}
	return chunks
}
