package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Tafsirchy/thikana/internal/services"
)

// RestListingHandler handles REST requests for listings.
type RestListingHandler struct {
	listingService services.IListingService
}

// NewRestListingHandler creates a new RestListingHandler.
func NewRestListingHandler(listingService services.IListingService) *RestListingHandler {
	return &RestListingHandler{listingService: listingService}
}

// createListingRequest is the body of POST /v1/listing.
type createListingRequest struct {
	services.ListingInput
	Publish bool `json:"publish"`
}

// GetListingByID handles GET /v1/listing/:id
func (h *RestListingHandler) GetListingByID(c *gin.Context) {
	listingID, ok := pathID(c)
	if !ok {
		return
	}

	listing, err := h.listingService.FindListingByID(c.Request.Context(), listingID)
	if err != nil {
		respondError(c, err, "Failed to retrieve listing")
		return
	}
	c.JSON(http.StatusOK, listing)
}

// GetMyListings handles GET /v1/listing
func (h *RestListingHandler) GetMyListings(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	listings, err := h.listingService.FindListingsByUserID(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err, "Failed to fetch listings")
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": listings})
}

// CreateListing handles POST /v1/listing
func (h *RestListingHandler) CreateListing(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req createListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	listing, err := h.listingService.CreateListing(c.Request.Context(), userID, req.ListingInput, req.Publish)
	if err != nil {
		respondError(c, err, "Failed to create listing")
		return
	}
	c.JSON(http.StatusCreated, listing)
}

// UpdateListing handles PATCH /v1/listing/:id
func (h *RestListingHandler) UpdateListing(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	listingID, ok := pathID(c)
	if !ok {
		return
	}
	var updates map[string]interface{}
	if err := c.ShouldBindJSON(&updates); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	listing, err := h.listingService.UpdateListing(c.Request.Context(), listingID, userID, updates)
	if err != nil {
		respondError(c, err, "Failed to update listing")
		return
	}
	c.JSON(http.StatusOK, listing)
}

// PublishListing handles POST /v1/listing/:id/publish
func (h *RestListingHandler) PublishListing(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	listingID, ok := pathID(c)
	if !ok {
		return
	}

	listing, err := h.listingService.PublishListing(c.Request.Context(), listingID, userID)
	if err != nil {
		respondError(c, err, "Failed to publish listing")
		return
	}
	c.JSON(http.StatusOK, listing)
}

// UnpublishListing handles POST /v1/listing/:id/unpublish
func (h *RestListingHandler) UnpublishListing(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	listingID, ok := pathID(c)
	if !ok {
		return
	}

	if err := h.listingService.UnpublishListing(c.Request.Context(), listingID, userID); err != nil {
		respondError(c, err, "Failed to unpublish listing")
		return
	}
	c.Status(http.StatusNoContent)
}

// DeleteListing handles DELETE /v1/listing/:id
func (h *RestListingHandler) DeleteListing(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	listingID, ok := pathID(c)
	if !ok {
		return
	}

	if err := h.listingService.DeleteListing(c.Request.Context(), listingID, userID); err != nil {
		respondError(c, err, "Failed to delete listing")
		return
	}
	c.Status(http.StatusNoContent)
}
