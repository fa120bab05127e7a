package tasks

import (
	"context"

	"go.uber.org/zap"

	"github.com/Tafsirchy/thikana/internal/models"
	"github.com/Tafsirchy/thikana/internal/services"
)

// PublishHook returns a listing publish hook that queues the instant fan-out.
// Enqueue failures are logged; the publish itself has already succeeded.
func PublishHook(client Enqueuer, logger *zap.Logger) services.PublishHook {
	return func(ctx context.Context, listing *models.Listing) {
		task, err := NewListingPublishedTask(listing.ID.Hex())
		if err == nil {
			_, err = Enqueue(ctx, client, task)
		}
		if err != nil {
			logger.Error("failed to enqueue listing published task",
				zap.String("listing_id", listing.ID.Hex()), zap.Error(err))
		}
	}
}
