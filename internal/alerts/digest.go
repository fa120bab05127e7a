package alerts

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Tafsirchy/thikana/internal/metrics"
)

// DigestScheduler sends periodic digests for daily and weekly searches. It
// holds no timer; RunDigest is triggered externally once per period.
type DigestScheduler struct {
	searches  SearchStore
	listings  ListingSource
	directory Directory
	sink      Sink
	opts      options
	logger    *zap.Logger
}

// NewDigestScheduler wires a DigestScheduler.
func NewDigestScheduler(searches SearchStore, listings ListingSource, directory Directory, sink Sink, opts ...Option) *DigestScheduler {
	o := buildOptions(opts)
	return &DigestScheduler{
		searches:  searches,
		listings:  listings,
		directory: directory,
		sink:      sink,
		opts:      o,
		logger:    o.logger.With(zap.String("component", "alerts.digest")),
	}
}

// RunDigest evaluates every active search of the given frequency against the
// listings published inside its window and submits one digest per search
// with the full matching set.
//
// A search is claimed by advancing lastAlertSent with a conditional update
// before its digest is submitted, so two overlapping runs never both dispatch
// the same window. Searches with no matches keep their lastAlertSent.
func (d *DigestScheduler) RunDigest(ctx context.Context, frequency Frequency) (Result, error) {
	var res Result
	if !frequency.IsDigest() {
		return res, fmt.Errorf("%w: %q", ErrUnsupportedFrequency, frequency)
	}

	now := d.opts.clock.Now()
	started := time.Now()
	defer func() { metrics.ObserveDigestRun(string(frequency), time.Since(started)) }()

	all, err := d.searches.ListActive(ctx, frequency)
	if err != nil {
		metrics.ObserveFailure(metrics.FlowDigest, metrics.StageStore)
		return res, fmt.Errorf("list %s searches: %w", frequency, err)
	}
	searches := all[:0:0]
	for _, s := range all {
		if s.Active && s.Frequency == frequency {
			searches = append(searches, s)
		}
	}
	if len(searches) == 0 {
		d.logger.Info("no active searches for digest", zap.String("frequency", string(frequency)))
		return res, nil
	}

	candidates, err := d.listings.GetPublishedSince(ctx, earliestStart(searches, now))
	if err != nil {
		metrics.ObserveFailure(metrics.FlowDigest, metrics.StageStore)
		return res, fmt.Errorf("load published listings: %w", err)
	}
	published := candidates[:0:0]
	for _, l := range candidates {
		if l.Status == StatusPublished {
			published = append(published, l)
		}
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(d.opts.concurrency)
	for _, search := range searches {
		search := search
		g.Go(func() error {
			matched, out := d.process(ctx, search, published, now)
			mu.Lock()
			defer mu.Unlock()
			res.Evaluated++
			if !matched {
				return nil
			}
			res.Matched++
			switch out {
			case outcomeDispatched:
				res.Dispatched++
			case outcomeSkipped:
				res.Skipped++
			case outcomeFailed:
				res.Failed++
			}
			return nil
		})
	}
	_ = g.Wait()

	d.logger.Info("digest run complete",
		zap.String("frequency", string(frequency)),
		zap.Int("listings", len(published)),
		zap.Int("evaluated", res.Evaluated),
		zap.Int("matched", res.Matched),
		zap.Int("dispatched", res.Dispatched),
		zap.Int("skipped", res.Skipped),
		zap.Int("failed", res.Failed),
	)
	return res, nil
}

// matchWindow returns the listings created inside the search's window that satisfy its filter.
func matchWindow(search SavedSearch, listings []ListingSnapshot, now time.Time) []ListingSnapshot {
	start := WindowStart(search, now)
	var out []ListingSnapshot
	for _, l := range listings {
		if InWindow(l.CreatedAt, start, now) && Matches(l, search.Filter) {
			out = append(out, l)
		}
	}
	return out
}

// process handles one search. The returned outcome is only meaningful when matched is true.
func (d *DigestScheduler) process(ctx context.Context, search SavedSearch, listings []ListingSnapshot, now time.Time) (bool, outcome) {
	metrics.ObserveEvaluated(metrics.FlowDigest)
	matches := matchWindow(search, listings, now)
	if len(matches) == 0 {
		return false, outcomeSkipped
	}
	metrics.ObserveMatched(metrics.FlowDigest)

	log := d.logger.With(
		zap.String("search_id", search.ID),
		zap.String("owner_id", search.OwnerID),
		zap.Int("listings", len(matches)),
	)

	contact, err := d.directory.GetContact(ctx, search.OwnerID)
	if err != nil || contact == nil {
		metrics.ObserveFailure(metrics.FlowDigest, metrics.StageContact)
		log.Warn("owner contact lookup failed", zap.Error(err))
		return true, outcomeFailed
	}

	claimed, err := d.searches.UpdateLastAlertSent(ctx, search.ID, search.LastAlertSent, now)
	if err != nil {
		metrics.ObserveFailure(metrics.FlowDigest, metrics.StageStore)
		log.Error("failed to claim search for digest", zap.Error(err))
		return true, outcomeFailed
	}
	if !claimed {
		metrics.ObserveLostRace(metrics.FlowDigest)
		log.Info("search already advanced by another run, skipping")
		return true, outcomeSkipped
	}

	if err := d.sink.SendDigest(ctx, *contact, matches, search.Name); err != nil {
		metrics.ObserveFailure(metrics.FlowDigest, metrics.StageSink)
		log.Error("digest submission failed, releasing window", zap.Error(err))
		d.unclaim(ctx, log, search, now)
		return true, outcomeFailed
	}
	metrics.ObserveDispatched(metrics.FlowDigest)
	return true, outcomeDispatched
}

// unclaim rolls lastAlertSent back so the next run covers the same window.
func (d *DigestScheduler) unclaim(ctx context.Context, log *zap.Logger, search SavedSearch, claimed time.Time) {
	reverted, err := d.searches.RevertLastAlertSent(ctx, search.ID, claimed, search.LastAlertSent)
	switch {
	case err != nil:
		metrics.ObserveFailure(metrics.FlowDigest, metrics.StageStore)
		log.Error("failed to release digest window", zap.Error(err))
	case !reverted:
		log.Warn("digest window changed before release, leaving it")
	}
}
