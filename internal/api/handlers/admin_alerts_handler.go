package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Tafsirchy/thikana/internal/alerts"
	"github.com/Tafsirchy/thikana/internal/services"
)

// DigestRunner runs one digest pass.
type DigestRunner interface {
	RunDigest(ctx context.Context, frequency alerts.Frequency) (alerts.Result, error)
}

// PublishHandler runs the instant flow for one listing.
type PublishHandler interface {
	OnPublish(ctx context.Context, listing alerts.ListingSnapshot) (alerts.Result, error)
}

// AdminAlertsHandler lets operators run the alert flows by hand.
type AdminAlertsHandler struct {
	listingService services.IListingService
	instant        PublishHandler
	digest         DigestRunner
}

func NewAdminAlertsHandler(listingService services.IListingService, instant PublishHandler, digest DigestRunner) *AdminAlertsHandler {
	return &AdminAlertsHandler{listingService: listingService, instant: instant, digest: digest}
}

// RunDigest handles POST /v1/admin/alerts/digest/:frequency and runs the
// digest synchronously.
func (h *AdminAlertsHandler) RunDigest(c *gin.Context) {
	frequency := alerts.Frequency(c.Param("frequency"))
	res, err := h.digest.RunDigest(c.Request.Context(), frequency)
	if err != nil {
		if errors.Is(err, alerts.ErrUnsupportedFrequency) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		respondError(c, err, "Digest run failed")
		return
	}
	c.JSON(http.StatusOK, res)
}

// ReplayInstant handles POST /v1/admin/alerts/instant/:id and re-runs the
// instant flow for a published listing. Pairs already notified are skipped
// by the duplicate guard.
func (h *AdminAlertsHandler) ReplayInstant(c *gin.Context) {
	snapshot, err := h.listingService.FindSnapshot(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "Failed to load listing")
		return
	}
	if snapshot.Status != alerts.StatusPublished {
		c.JSON(http.StatusConflict, gin.H{"error": "listing is not published"})
		return
	}
	res, err := h.instant.OnPublish(c.Request.Context(), *snapshot)
	if err != nil {
		respondError(c, err, "Instant run failed")
		return
	}
	c.JSON(http.StatusOK, res)
}
