// Package ingest runs fetch cycles over the configured sources.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/bryan-buckman/techpulse/internal/classify"
	"github.com/bryan-buckman/techpulse/internal/database"
	"github.com/bryan-buckman/techpulse/internal/model"
	"github.com/bryan-buckman/techpulse/internal/normalize"
	"github.com/bryan-buckman/techpulse/internal/rss"
)

// DefaultWorkers is the pool size for stores that take concurrent writes.
const DefaultWorkers = 10

// ErrStorageUnavailable means the source list could not be read. The run did
// nothing and the caller should exit non-zero.
var ErrStorageUnavailable = errors.New("ingest: storage unavailable")

// Fetcher downloads a feed document.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// FeedParser parses a feed document.
type FeedParser interface {
	Parse(body []byte) (*rss.Feed, error)
}

// Config configures a Runner. Zero values select defaults.
type Config struct {
	Workers   int
	Location  *time.Location // for naive timestamps
	HostDelay time.Duration  // minimum spacing between requests to one host
	Fetcher   Fetcher
	Parser    FeedParser
	Logger    *slog.Logger
}

// RunOptions selects the sources of a run.
type RunOptions struct {
	SourceID *int64 // nil means every active RSS source
	OnlyDue  bool   // skip sources whose fetch interval has not elapsed
}

// Runner executes fetch cycles. Concurrent Run calls are allowed but overlap
// on the same sources; the scheduler serializes them.
type Runner struct {
	store      database.Store
	fetcher    Fetcher
	parser     FeedParser
	normalizer *normalize.Normalizer
	classifier *classify.Classifier
	hosts      *hostLimiter
	logger     *slog.Logger
	workers    int
	now        func() time.Time
}

// New creates a Runner over store.
func New(store database.Store, cfg Config) *Runner {
	workers := cfg.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if !store.SupportsHighConcurrency() {
		workers = 1
	}
	if cfg.Fetcher == nil {
		cfg.Fetcher = rss.NewClient(rss.ClientConfig{})
	}
	if cfg.Parser == nil {
		cfg.Parser = rss.NewParser()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Runner{
		store:      store,
		fetcher:    cfg.Fetcher,
		parser:     cfg.Parser,
		normalizer: normalize.New(cfg.Location),
		classifier: classify.New(store),
		hosts:      newHostLimiter(cfg.HostDelay),
		logger:     cfg.Logger,
		workers:    workers,
		now:        time.Now,
	}
}

// Run fetches the selected sources and stores their entries. The only error
// is ErrStorageUnavailable; per-source failures are reported in the Summary.
func (r *Runner) Run(ctx context.Context, opts RunOptions) (*Summary, error) {
	sum := &Summary{
		RunID:     uuid.NewString(),
		StartedAt: r.now(),
		Sources:   []SourceResult{},
	}
	log := r.logger.With("run_id", sum.RunID)

	sources, err := r.selectSources(ctx, opts)
	if err != nil {
		log.Error("list sources failed", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	if len(sources) == 0 {
		log.Warn("no active rss sources to fetch")
		sum.FinishedAt = r.now()
		return sum, nil
	}
	log.Info("run started", "sources", len(sources), "workers", r.workers)

	results := make([]SourceResult, len(sources))
	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(r.workers)

	for i, src := range sources {
		if ctx.Err() != nil {
			results[i] = SourceResult{SourceID: src.ID, Source: src.Name, Status: StatusCanceled}
			mu.Lock()
			sum.merge(results[i])
			mu.Unlock()
			continue
		}
		i, src := i, src
		g.Go(func() error {
			res := r.runSource(ctx, log, src)
			results[i] = res
			mu.Lock()
			sum.merge(res)
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	sum.Sources = results
	sum.FinishedAt = r.now()
	log.Info("run finished",
		"seen", sum.Totals.Seen,
		"created", sum.Totals.Created,
		"updated", sum.Totals.Updated,
		"skipped", sum.Totals.Skipped,
		"sources_ok", sum.SourcesOK,
		"sources_failed", sum.SourcesFailed,
		"duration", sum.FinishedAt.Sub(sum.StartedAt),
	)
	return sum, nil
}

func (r *Runner) selectSources(ctx context.Context, opts RunOptions) ([]model.Source, error) {
	rssType := model.SourceRSS
	sources, err := r.store.ListSources(ctx, database.SourceFilter{
		ID:     opts.SourceID,
		Active: database.Bool(true),
		Type:   &rssType,
	})
	if err != nil {
		return nil, err
	}
	if !opts.OnlyDue {
		return sources, nil
	}
	now := r.now()
	due := sources[:0]
	for _, src := range sources {
		if src.Due(now) {
			due = append(due, src)
		}
	}
	return due, nil
}

func (r *Runner) runSource(ctx context.Context, runLog *slog.Logger, src model.Source) SourceResult {
	res := SourceResult{SourceID: src.ID, Source: src.Name}
	log := runLog.With("source_id", src.ID, "source", src.Name)
	if ctx.Err() != nil {
		res.Status = StatusCanceled
		return res
	}

	body, err := r.fetch(ctx, src.URL)
	if errors.Is(err, context.Canceled) {
		res.Status = StatusCanceled
		log.Info("fetch canceled", "url", src.URL)
		return res
	}
	if err != nil {
		res.Status = StatusFetchFailed
		res.Error = err.Error()
		var fe *rss.FetchError
		if errors.As(err, &fe) {
			res.ErrorKind = fe.Kind
			res.HTTPStatus = fe.StatusCode
		}
		log.Warn("fetch failed", "url", src.URL, "kind", res.ErrorKind, "error", err)
		return res
	}

	feed, err := r.parser.Parse(body)
	if err != nil {
		res.Status = StatusParseFailed
		res.Error = err.Error()
		log.Warn("parse failed", "url", src.URL, "error", err)
		return res
	}
	if feed.Malformed != nil {
		res.Malformed = true
		log.Warn("feed is malformed, continuing with recovered entries",
			"entries", len(feed.Entries), "error", feed.Malformed)
	}
	if len(feed.Entries) == 0 {
		res.Status = StatusEmpty
		log.Info("feed has no entries")
		return res
	}

	for _, raw := range feed.Entries {
		if ctx.Err() != nil {
			res.Status = StatusCanceled
			log.Warn("run canceled mid-source", "seen", res.Seen)
			return res
		}
		res.Seen++
		created, err := r.processEntry(ctx, src, raw)
		switch {
		case err != nil:
			res.Skipped++
			log.Warn("entry skipped", "link", entryLink(raw), "error", err)
		case created:
			res.Created++
		default:
			res.Updated++
		}
	}

	if err := r.store.UpdateSourceLastFetched(ctx, src.ID, r.now()); err != nil {
		res.Status = StatusStampFailed
		res.Error = err.Error()
		log.Error("update last_fetched failed", "error", err)
		return res
	}
	res.Status = StatusOK
	log.Info("source fetched", "seen", res.Seen, "created", res.Created,
		"updated", res.Updated, "skipped", res.Skipped)
	return res
}

func (r *Runner) fetch(ctx context.Context, url string) ([]byte, error) {
	host := hostOf(url)
	if err := r.hosts.acquire(ctx, host); err != nil {
		return nil, &rss.FetchError{Kind: rss.KindTimeout, URL: url, Err: err}
	}
	defer r.hosts.release(host)
	return r.fetcher.Fetch(ctx, url)
}

// processEntry stores one entry. A panic is reported as an error.
func (r *Runner) processEntry(ctx context.Context, src model.Source, raw normalize.RawEntry) (created bool, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()

	art, err := r.normalizer.Normalize(raw, src)
	if err != nil {
		return false, err
	}
	cat, err := r.classifier.Classify(ctx, art.Title, art.Content, art.Summary)
	if err != nil {
		return false, err
	}
	if cat != nil {
		art.CategoryID = &cat.ID
	}
	return r.store.UpsertArticle(ctx, &art)
}

func entryLink(raw normalize.RawEntry) string {
	if raw.Link == nil {
		return ""
	}
	return *raw.Link
}
