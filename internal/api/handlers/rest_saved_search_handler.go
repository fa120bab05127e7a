package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Tafsirchy/thikana/internal/services"
)

// RestSavedSearchHandler exposes the owner's saved searches.
type RestSavedSearchHandler struct {
	savedSearchService services.ISavedSearchService
}

func NewRestSavedSearchHandler(savedSearchService services.ISavedSearchService) *RestSavedSearchHandler {
	return &RestSavedSearchHandler{savedSearchService: savedSearchService}
}

// List handles GET /v1/saved-search
func (h *RestSavedSearchHandler) List(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	searches, err := h.savedSearchService.ListByUser(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err, "Failed to fetch saved searches")
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": searches})
}

// Create handles POST /v1/saved-search
func (h *RestSavedSearchHandler) Create(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var input services.SavedSearchInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	search, err := h.savedSearchService.CreateSavedSearch(c.Request.Context(), userID, input)
	if err != nil {
		respondError(c, err, "Failed to create saved search")
		return
	}
	c.JSON(http.StatusCreated, search)
}

// Get handles GET /v1/saved-search/:id
func (h *RestSavedSearchHandler) Get(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	searchID, ok := pathID(c)
	if !ok {
		return
	}

	search, err := h.savedSearchService.GetSavedSearch(c.Request.Context(), searchID, userID)
	if err != nil {
		respondError(c, err, "Failed to fetch saved search")
		return
	}
	c.JSON(http.StatusOK, search)
}

// Update handles PATCH /v1/saved-search/:id
func (h *RestSavedSearchHandler) Update(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	searchID, ok := pathID(c)
	if !ok {
		return
	}
	var input services.SavedSearchInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	search, err := h.savedSearchService.UpdateSavedSearch(c.Request.Context(), searchID, userID, input)
	if err != nil {
		respondError(c, err, "Failed to update saved search")
		return
	}
	c.JSON(http.StatusOK, search)
}

// Delete handles DELETE /v1/saved-search/:id
func (h *RestSavedSearchHandler) Delete(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	searchID, ok := pathID(c)
	if !ok {
		return
	}

	if err := h.savedSearchService.DeleteSavedSearch(c.Request.Context(), searchID, userID); err != nil {
		respondError(c, err, "Failed to delete saved search")
		return
	}
	c.Status(http.StatusNoContent)
}
