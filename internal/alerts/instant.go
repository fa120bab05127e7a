package alerts

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Tafsirchy/thikana/internal/metrics"
)

// InstantDispatcher notifies owners of instant searches when a listing is published.
type InstantDispatcher struct {
	searches  SearchStore
	directory Directory
	sink      Sink
	opts      options
	logger    *zap.Logger
}

// NewInstantDispatcher wires an InstantDispatcher.
func NewInstantDispatcher(searches SearchStore, directory Directory, sink Sink, opts ...Option) *InstantDispatcher {
	o := buildOptions(opts)
	return &InstantDispatcher{
		searches:  searches,
		directory: directory,
		sink:      sink,
		opts:      o,
		logger:    o.logger.With(zap.String("component", "alerts.instant")),
	}
}

// OnPublish evaluates every active instant search against listing and submits
// one notification per match. It must be called once per transition into the
// published status. Per-search failures are logged and counted in the Result;
// the returned error only reports that the searches could not be loaded.
func (d *InstantDispatcher) OnPublish(ctx context.Context, listing ListingSnapshot) (Result, error) {
	var res Result
	if listing.Status != StatusPublished {
		d.logger.Debug("ignoring non-published listing",
			zap.String("listing_id", listing.ID), zap.String("status", listing.Status))
		return res, nil
	}

	searches, err := d.searches.ListActive(ctx, FrequencyInstant)
	if err != nil {
		metrics.ObserveFailure(metrics.FlowInstant, metrics.StageStore)
		return res, fmt.Errorf("list instant searches: %w", err)
	}

	now := d.opts.clock.Now()
	for _, search := range searches {
		if !search.Active || search.Frequency != FrequencyInstant {
			continue
		}
		res.Evaluated++
		metrics.ObserveEvaluated(metrics.FlowInstant)
		if !Matches(listing, search.Filter) {
			continue
		}
		res.Matched++
		metrics.ObserveMatched(metrics.FlowInstant)

		switch d.dispatch(ctx, search, listing, now) {
		case outcomeDispatched:
			res.Dispatched++
		case outcomeSkipped:
			res.Skipped++
		case outcomeFailed:
			res.Failed++
		}
	}

	d.logger.Info("instant alerts processed",
		zap.String("listing_id", listing.ID),
		zap.Int("evaluated", res.Evaluated),
		zap.Int("matched", res.Matched),
		zap.Int("dispatched", res.Dispatched),
		zap.Int("skipped", res.Skipped),
		zap.Int("failed", res.Failed),
	)
	return res, nil
}

type outcome int

const (
	outcomeDispatched outcome = iota
	outcomeSkipped
	outcomeFailed
)

func (d *InstantDispatcher) dispatch(ctx context.Context, search SavedSearch, listing ListingSnapshot, now time.Time) outcome {
	log := d.logger.With(
		zap.String("search_id", search.ID),
		zap.String("owner_id", search.OwnerID),
		zap.String("listing_id", listing.ID),
	)

	claimed := false
	if d.opts.dedup != nil {
		first, err := d.opts.dedup.Claim(ctx, listing.ID, search.ID)
		if err != nil {
			// fail open
			metrics.ObserveFailure(metrics.FlowInstant, metrics.StageDedup)
			log.Warn("dedup claim failed, dispatching anyway", zap.Error(err))
		} else if !first {
			log.Info("listing already dispatched for search, skipping")
			return outcomeSkipped
		}
		claimed = err == nil
	}

	contact, err := d.directory.GetContact(ctx, search.OwnerID)
	if err != nil || contact == nil {
		metrics.ObserveFailure(metrics.FlowInstant, metrics.StageContact)
		log.Warn("owner contact lookup failed", zap.Error(err))
		d.release(ctx, log, claimed, listing.ID, search.ID)
		return outcomeFailed
	}

	if err := d.sink.SendInstantMatch(ctx, *contact, listing, search.Name); err != nil {
		metrics.ObserveFailure(metrics.FlowInstant, metrics.StageSink)
		log.Error("instant alert submission failed", zap.Error(err))
		d.release(ctx, log, claimed, listing.ID, search.ID)
		return outcomeFailed
	}
	metrics.ObserveDispatched(metrics.FlowInstant)

	if search.LastAlertSent != nil && !now.After(*search.LastAlertSent) {
		return outcomeDispatched
	}
	updated, err := d.searches.UpdateLastAlertSent(ctx, search.ID, search.LastAlertSent, now)
	switch {
	case err != nil:
		metrics.ObserveFailure(metrics.FlowInstant, metrics.StageStore)
		log.Error("failed to record lastAlertSent", zap.Error(err))
	case !updated:
		metrics.ObserveLostRace(metrics.FlowInstant)
		log.Info("lastAlertSent already advanced by another dispatch")
	}
	return outcomeDispatched
}

// release drops a dedup claim so a replay can retry the pair.
func (d *InstantDispatcher) release(ctx context.Context, log *zap.Logger, claimed bool, listingID, searchID string) {
	if !claimed {
		return
	}
	if err := d.opts.dedup.Release(ctx, listingID, searchID); err != nil {
		log.Warn("failed to release dedup claim", zap.Error(err))
	}
}
