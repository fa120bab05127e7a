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

// SavedSearchInput is the writable part of a saved search. Nil fields are
// left unchanged on update.
type SavedSearchInput struct {
	Name      *string                `json:"name"`
	Filter    map[string]interface{} `json:"filter"`
	Frequency *alerts.Frequency      `json:"frequency"`
	Active    *bool                  `json:"active"`
}

// ISavedSearchService manages saved searches and implements alerts.SearchStore.
type ISavedSearchService interface {
	CreateSavedSearch(ctx context.Context, userID primitive.ObjectID, input SavedSearchInput) (*models.SavedSearch, error)
	ListByUser(ctx context.Context, userID primitive.ObjectID) ([]models.SavedSearch, error)
	GetSavedSearch(ctx context.Context, searchID, userID primitive.ObjectID) (*models.SavedSearch, error)
	UpdateSavedSearch(ctx context.Context, searchID, userID primitive.ObjectID, input SavedSearchInput) (*models.SavedSearch, error)
	DeleteSavedSearch(ctx context.Context, searchID, userID primitive.ObjectID) error
	ListActive(ctx context.Context, frequency alerts.Frequency) ([]alerts.SavedSearch, error)
	UpdateLastAlertSent(ctx context.Context, searchID string, expected *time.Time, next time.Time) (bool, error)
	RevertLastAlertSent(ctx context.Context, searchID string, claimed time.Time, previous *time.Time) (bool, error)
}

type savedSearchService struct {
	db     *mongo.Database
	logger *zap.Logger
}

// NewSavedSearchService creates a new SavedSearchService.
func NewSavedSearchService(database *mongo.Database, logger *zap.Logger) ISavedSearchService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &savedSearchService{db: database, logger: logger.With(zap.String("component", "services.saved_search"))}
}

// CreateSavedSearch stores a new search. The filter is normalised to its
// canonical keys; a missing frequency defaults to daily.
func (s *savedSearchService) CreateSavedSearch(ctx context.Context, userID primitive.ObjectID, input SavedSearchInput) (*models.SavedSearch, error) {
	name := ""
	if input.Name != nil {
		name = strings.TrimSpace(*input.Name)
	}
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	frequency := alerts.FrequencyDaily
	if input.Frequency != nil {
		frequency = *input.Frequency
	}
	if !frequency.Valid() {
		return nil, fmt.Errorf("%w: unknown frequency %q", ErrInvalidInput, frequency)
	}
	active := true
	if input.Active != nil {
		active = *input.Active
	}

	now := time.Now().UTC()
	search := &models.SavedSearch{
		Base:      models.NewBase(),
		UserID:    userID,
		Name:      name,
		Filter:    bson.M(alerts.ParseFilter(input.Filter).ToMap()),
		Frequency: frequency,
		Active:    active,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := db.Try(ctx, func() error {
		_, insertErr := s.db.Collection(db.CollSavedSearches).InsertOne(ctx, search)
		return insertErr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to insert saved search for user %s: %w", userID.Hex(), err)
	}
	return search, nil
}

// ListByUser returns the user's searches, newest first.
func (s *savedSearchService) ListByUser(ctx context.Context, userID primitive.ObjectID) ([]models.SavedSearch, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := s.db.Collection(db.CollSavedSearches).Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list saved searches for user %s: %w", userID.Hex(), err)
	}
	defer cursor.Close(ctx)

	searches := []models.SavedSearch{}
	if err := cursor.All(ctx, &searches); err != nil {
		return nil, fmt.Errorf("failed to decode saved searches: %w", err)
	}
	return searches, nil
}

// GetSavedSearch loads a search owned by the user.
func (s *savedSearchService) GetSavedSearch(ctx context.Context, searchID, userID primitive.ObjectID) (*models.SavedSearch, error) {
	var search models.SavedSearch
	err := s.db.Collection(db.CollSavedSearches).FindOne(ctx, bson.M{"_id": searchID}).Decode(&search)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("saved search %s: %w", searchID.Hex(), ErrNotFound)
		}
		return nil, fmt.Errorf("error finding saved search %s: %w", searchID.Hex(), err)
	}
	if search.UserID != userID {
		return nil, fmt.Errorf("saved search %s: %w", searchID.Hex(), ErrForbidden)
	}
	return &search, nil
}

// UpdateSavedSearch applies the non-nil fields of input.
func (s *savedSearchService) UpdateSavedSearch(ctx context.Context, searchID, userID primitive.ObjectID, input SavedSearchInput) (*models.SavedSearch, error) {
	set := bson.M{}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name cannot be empty", ErrInvalidInput)
		}
		set["name"] = name
	}
	if input.Filter != nil {
		set["filter"] = bson.M(alerts.ParseFilter(input.Filter).ToMap())
	}
	if input.Frequency != nil {
		if !input.Frequency.Valid() {
			return nil, fmt.Errorf("%w: unknown frequency %q", ErrInvalidInput, *input.Frequency)
		}
		set["frequency"] = *input.Frequency
	}
	if input.Active != nil {
		set["active"] = *input.Active
	}
	if len(set) == 0 {
		return nil, fmt.Errorf("%w: no fields to update", ErrInvalidInput)
	}
	set["updated_at"] = time.Now().UTC()

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var updated models.SavedSearch
	err := s.db.Collection(db.CollSavedSearches).
		FindOneAndUpdate(ctx, bson.M{"_id": searchID, "user_id": userID}, bson.M{"$set": set}, opts).
		Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			if _, getErr := s.GetSavedSearch(ctx, searchID, userID); getErr != nil {
				return nil, getErr
			}
			return nil, fmt.Errorf("saved search %s: %w", searchID.Hex(), ErrNotFound)
		}
		return nil, fmt.Errorf("failed to update saved search %s: %w", searchID.Hex(), err)
	}
	return &updated, nil
}

// DeleteSavedSearch removes a search owned by the user.
func (s *savedSearchService) DeleteSavedSearch(ctx context.Context, searchID, userID primitive.ObjectID) error {
	result, err := s.db.Collection(db.CollSavedSearches).DeleteOne(ctx, bson.M{"_id": searchID, "user_id": userID})
	if err != nil {
		return fmt.Errorf("failed to delete saved search %s: %w", searchID.Hex(), err)
	}
	if result.DeletedCount == 0 {
		_, getErr := s.GetSavedSearch(ctx, searchID, userID)
		if getErr != nil {
			return getErr
		}
		return fmt.Errorf("saved search %s: %w", searchID.Hex(), ErrNotFound)
	}
	return nil
}

// ListActive returns every active search with the given frequency.
func (s *savedSearchService) ListActive(ctx context.Context, frequency alerts.Frequency) ([]alerts.SavedSearch, error) {
	var docs []models.SavedSearch
	err := db.Try(ctx, func() error {
		cursor, err := s.db.Collection(db.CollSavedSearches).Find(ctx, bson.M{"active": true, "frequency": frequency})
		if err != nil {
			return err
		}
		docs = nil
		return cursor.All(ctx, &docs)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list active %s searches: %w", frequency, err)
	}

	out := make([]alerts.SavedSearch, 0, len(docs))
	for i := range docs {
		out = append(out, docs[i].ToAlert())
	}
	return out, nil
}

// UpdateLastAlertSent is a compare-and-swap on last_alert_sent: the write
// only applies while the stored value still equals expected (nil matches a
// null or absent field) and next is later than expected. Timestamps are
// stored with millisecond precision.
func (s *savedSearchService) UpdateLastAlertSent(ctx context.Context, searchID string, expected *time.Time, next time.Time) (bool, error) {
	oid, err := ParseID(searchID)
	if err != nil {
		return false, err
	}
	next = next.UTC().Truncate(time.Millisecond)

	filter := bson.M{"_id": oid}
	if expected == nil {
		filter["last_alert_sent"] = nil
	} else {
		if !next.After(*expected) {
			return false, nil
		}
		filter["last_alert_sent"] = expected.UTC()
	}
	update := bson.M{"$set": bson.M{"last_alert_sent": next}}

	result, err := s.db.Collection(db.CollSavedSearches).UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("failed to update last alert time of %s: %w", searchID, err)
	}
	if result.MatchedCount == 0 {
		s.logger.Debug("last alert time changed concurrently", zap.String("search_id", searchID))
		return false, nil
	}
	return true, nil
}

// RevertLastAlertSent puts last_alert_sent back to previous (unset when nil)
// while it still holds claimed.
func (s *savedSearchService) RevertLastAlertSent(ctx context.Context, searchID string, claimed time.Time, previous *time.Time) (bool, error) {
	oid, err := ParseID(searchID)
	if err != nil {
		return false, err
	}
	filter := bson.M{"_id": oid, "last_alert_sent": claimed.UTC().Truncate(time.Millisecond)}
	update := bson.M{"$unset": bson.M{"last_alert_sent": ""}}
	if previous != nil {
		update = bson.M{"$set": bson.M{"last_alert_sent": previous.UTC()}}
	}

	result, err := s.db.Collection(db.CollSavedSearches).UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("failed to revert last alert time of %s: %w", searchID, err)
	}
	return result.MatchedCount == 1, nil
}
