package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/Tafsirchy/thikana/internal/alerts"
	"github.com/Tafsirchy/thikana/internal/db"
	"github.com/Tafsirchy/thikana/internal/models"
)

// PublishHook is called once for every transition of a listing into the
// published status, after the write succeeded.
type PublishHook func(ctx context.Context, listing *models.Listing)

// ListingInput carries the fields of a new listing.
type ListingInput struct {
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	ListingType  string   `json:"listing_type"`
	PropertyType string   `json:"property_type"`
	City         string   `json:"city"`
	Area         string   `json:"area"`
	Price        float64  `json:"price"`
	Size         float64  `json:"size"`
	Bedrooms     int      `json:"bedrooms"`
	Bathrooms    int      `json:"bathrooms"`
	Amenities    []string `json:"amenities"`
	Images       []string `json:"images"`
}

// Validate checks the required fields.
func (in ListingInput) Validate() error {
	var missing []string
	if strings.TrimSpace(in.Title) == "" {
		missing = append(missing, "title")
	}
	if strings.TrimSpace(in.City) == "" {
		missing = append(missing, "city")
	}
	if strings.TrimSpace(in.ListingType) == "" {
		missing = append(missing, "listing_type")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidInput, strings.Join(missing, ", "))
	}
	if in.Price < 0 || in.Size < 0 || in.Bedrooms < 0 || in.Bathrooms < 0 {
		return fmt.Errorf("%w: numeric fields must not be negative", ErrInvalidInput)
	}
	return nil
}

// IListingService defines the interface for listing-related operations.
type IListingService interface {
	CreateListing(ctx context.Context, userID primitive.ObjectID, input ListingInput, publish bool) (*models.Listing, error)
	FindListingByID(ctx context.Context, listingID primitive.ObjectID) (*models.Listing, error)
	FindListingsByUserID(ctx context.Context, userID primitive.ObjectID) ([]models.Listing, error)
	UpdateListing(ctx context.Context, listingID, userID primitive.ObjectID, updates map[string]interface{}) (*models.Listing, error)
	PublishListing(ctx context.Context, listingID, userID primitive.ObjectID) (*models.Listing, error)
	UnpublishListing(ctx context.Context, listingID, userID primitive.ObjectID) error
	DeleteListing(ctx context.Context, listingID, userID primitive.ObjectID) error
	GetPublishedSince(ctx context.Context, since time.Time) ([]alerts.ListingSnapshot, error)
	FindSnapshot(ctx context.Context, listingID string) (*alerts.ListingSnapshot, error)
	SetPublishHook(hook PublishHook)
}

// listingService implements IListingService.
type listingService struct {
	db     *mongo.Database
	hook   PublishHook
	logger *zap.Logger
}

// NewListingService creates a new ListingService.
func NewListingService(database *mongo.Database, logger *zap.Logger) IListingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &listingService{db: database, logger: logger.With(zap.String("component", "services.listing"))}
}

func (s *listingService) SetPublishHook(hook PublishHook) {
	s.hook = hook
}

func (s *listingService) firePublished(ctx context.Context, listing *models.Listing) {
	if s.hook == nil {
		return
	}
	s.hook(ctx, listing)
}

// CreateListing inserts a listing as a draft, or directly as published.
func (s *listingService) CreateListing(ctx context.Context, userID primitive.ObjectID, input ListingInput, publish bool) (*models.Listing, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	collection := s.db.Collection(db.CollListings)
	now := time.Now().UTC()

	listing := &models.Listing{
		Base:         models.NewBase(),
		UserID:       userID,
		Title:        strings.TrimSpace(input.Title),
		Description:  input.Description,
		ListingType:  input.ListingType,
		PropertyType: input.PropertyType,
		City:         strings.TrimSpace(input.City),
		Area:         strings.TrimSpace(input.Area),
		Price:        input.Price,
		Size:         input.Size,
		Bedrooms:     input.Bedrooms,
		Bathrooms:    input.Bathrooms,
		Amenities:    nonNil(input.Amenities),
		Images:       nonNil(input.Images),
		Status:       models.ListingStatusDraft,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if publish {
		listing.Status = models.ListingStatusPublished
		listing.PublishedAt = &now
	}

	err := db.Try(ctx, func() error {
		_, insertErr := collection.InsertOne(ctx, listing)
		return insertErr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to insert listing for user %s: %w", userID.Hex(), err)
	}

	if publish {
		s.firePublished(ctx, listing)
	}
	return listing, nil
}

// FindListingByID finds a published, non-deleted listing. It does NOT check ownership.
func (s *listingService) FindListingByID(ctx context.Context, listingID primitive.ObjectID) (*models.Listing, error) {
	var listing models.Listing
	filter := bson.M{
		"_id":     listingID,
		"deleted": false,
		"status":  models.ListingStatusPublished,
	}
	err := s.db.Collection(db.CollListings).FindOne(ctx, filter).Decode(&listing)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error finding listing by ID %s: %w", listingID.Hex(), err)
	}
	return &listing, nil
}

// FindListingsByUserID returns every non-deleted listing of the user, newest first.
func (s *listingService) FindListingsByUserID(ctx context.Context, userID primitive.ObjectID) ([]models.Listing, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := s.db.Collection(db.CollListings).Find(ctx, bson.M{"user_id": userID, "deleted": false}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find listings for user %s: %w", userID.Hex(), err)
	}
	defer cursor.Close(ctx)

	listings := []models.Listing{}
	if err := cursor.All(ctx, &listings); err != nil {
		return nil, fmt.Errorf("failed to decode listings for user %s: %w", userID.Hex(), err)
	}
	return listings, nil
}

var updatableListingFields = map[string]bool{
	"title": true, "description": true, "listing_type": true, "property_type": true,
	"city": true, "area": true, "price": true, "size": true,
	"bedrooms": true, "bathrooms": true, "amenities": true, "images": true,
}

// UpdateListing updates mutable fields of a listing owned by the specified user.
// Status changes go through PublishListing and UnpublishListing.
func (s *listingService) UpdateListing(ctx context.Context, listingID, userID primitive.ObjectID, updates map[string]interface{}) (*models.Listing, error) {
	allowedUpdates := bson.M{}
	for key, value := range updates {
		if !updatableListingFields[key] {
			return nil, fmt.Errorf("%w: field '%s' cannot be updated", ErrInvalidInput, key)
		}
		allowedUpdates[key] = value
	}
	if len(allowedUpdates) == 0 {
		return nil, fmt.Errorf("%w: no valid fields provided for update", ErrInvalidInput)
	}
	allowedUpdates["updated_at"] = time.Now().UTC()

	filter := bson.M{"_id": listingID, "user_id": userID, "deleted": false}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var updated models.Listing
	err := s.db.Collection(db.CollListings).FindOneAndUpdate(ctx, filter, bson.M{"$set": allowedUpdates}, opts).Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, s.explainMiss(ctx, listingID, userID, "")
		}
		return nil, fmt.Errorf("failed to update listing %s: %w", listingID.Hex(), err)
	}
	return &updated, nil
}

// PublishListing moves a draft or hidden listing to published. The status
// filter makes the transition happen at most once, so the publish hook fires
// exactly once per transition even under concurrent requests.
func (s *listingService) PublishListing(ctx context.Context, listingID, userID primitive.ObjectID) (*models.Listing, error) {
	now := time.Now().UTC()
	filter := bson.M{
		"_id":     listingID,
		"user_id": userID,
		"deleted": false,
		"status":  bson.M{"$in": []models.ListingStatus{models.ListingStatusDraft, models.ListingStatusHidden}},
	}
	update := bson.M{"$set": bson.M{
		"status":       models.ListingStatusPublished,
		"published_at": now,
		"updated_at":   now,
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var listing models.Listing
	err := s.db.Collection(db.CollListings).FindOneAndUpdate(ctx, filter, update, opts).Decode(&listing)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, s.explainMiss(ctx, listingID, userID, models.ListingStatusPublished)
		}
		return nil, fmt.Errorf("db error publishing listing %s: %w", listingID.Hex(), err)
	}

	s.logger.Info("listing published", zap.String("listing_id", listingID.Hex()))
	s.firePublished(ctx, &listing)
	return &listing, nil
}

// UnpublishListing hides a published listing.
func (s *listingService) UnpublishListing(ctx context.Context, listingID, userID primitive.ObjectID) error {
	now := time.Now().UTC()
	filter := bson.M{
		"_id":     listingID,
		"user_id": userID,
		"deleted": false,
		"status":  models.ListingStatusPublished,
	}
	update := bson.M{"$set": bson.M{"status": models.ListingStatusHidden, "updated_at": now}}

	result, err := s.db.Collection(db.CollListings).UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("db error unpublishing listing %s: %w", listingID.Hex(), err)
	}
	if result.MatchedCount == 0 {
		return s.explainMiss(ctx, listingID, userID, models.ListingStatusHidden)
	}
	return nil
}

// DeleteListing soft-deletes a listing owned by the user.
func (s *listingService) DeleteListing(ctx context.Context, listingID, userID primitive.ObjectID) error {
	filter := bson.M{"_id": listingID, "user_id": userID, "deleted": false}
	update := bson.M{"$set": bson.M{"deleted": true, "updated_at": time.Now().UTC()}}

	result, err := s.db.Collection(db.CollListings).UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("db error deleting listing %s: %w", listingID.Hex(), err)
	}
	if result.MatchedCount == 0 {
		return s.explainMiss(ctx, listingID, userID, "")
	}
	return nil
}

// explainMiss reports why a conditional write matched nothing.
func (s *listingService) explainMiss(ctx context.Context, listingID, userID primitive.ObjectID, target models.ListingStatus) error {
	var listing models.Listing
	err := s.db.Collection(db.CollListings).FindOne(ctx, bson.M{"_id": listingID}).Decode(&listing)
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return fmt.Errorf("listing %s: %w", listingID.Hex(), ErrNotFound)
	case err != nil:
		return fmt.Errorf("db error checking listing %s: %w", listingID.Hex(), err)
	case listing.Deleted:
		return fmt.Errorf("listing %s is deleted: %w", listingID.Hex(), ErrNotFound)
	case listing.UserID != userID:
		return fmt.Errorf("listing %s does not belong to user %s: %w", listingID.Hex(), userID.Hex(), ErrForbidden)
	case target != "" && listing.Status == target:
		return fmt.Errorf("listing %s is already %s: %w", listingID.Hex(), target, ErrInvalidState)
	}
	return fmt.Errorf("listing %s cannot be changed from status %s: %w", listingID.Hex(), listing.Status, ErrInvalidState)
}

// GetPublishedSince returns published listings created strictly after since, oldest first.
func (s *listingService) GetPublishedSince(ctx context.Context, since time.Time) ([]alerts.ListingSnapshot, error) {
	filter := bson.M{
		"status":     models.ListingStatusPublished,
		"deleted":    false,
		"created_at": bson.M{"$gt": since.UTC()},
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})

	var listings []models.Listing
	err := db.Try(ctx, func() error {
		cursor, err := s.db.Collection(db.CollListings).Find(ctx, filter, opts)
		if err != nil {
			return err
		}
		listings = nil
		return cursor.All(ctx, &listings)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load listings published since %s: %w", since.Format(time.RFC3339), err)
	}

	out := make([]alerts.ListingSnapshot, 0, len(listings))
	for i := range listings {
		out = append(out, listings[i].Snapshot())
	}
	return out, nil
}

// FindSnapshot loads any non-deleted listing regardless of status.
func (s *listingService) FindSnapshot(ctx context.Context, listingID string) (*alerts.ListingSnapshot, error) {
	oid, err := ParseID(listingID)
	if err != nil {
		return nil, err
	}
	var listing models.Listing
	err = s.db.Collection(db.CollListings).FindOne(ctx, bson.M{"_id": oid, "deleted": false}).Decode(&listing)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("listing %s: %w", listingID, ErrNotFound)
		}
		return nil, fmt.Errorf("error finding listing %s: %w", listingID, err)
	}
	snap := listing.Snapshot()
	return &snap, nil
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
