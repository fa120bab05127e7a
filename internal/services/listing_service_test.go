package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/Tafsirchy/thikana/internal/db"
	"github.com/Tafsirchy/thikana/internal/models"
	"github.com/Tafsirchy/thikana/internal/utils"
)

func setupTestDBListing(t *testing.T, dbName string) *mongo.Database {
	return utils.SetupTestDB(t, dbName, db.CollListings, db.CollUsers)
}

func sampleListingInput() ListingInput {
	return ListingInput{
		Title:        "Luxury Flat in Gulshan",
		ListingType:  "sale",
		PropertyType: "apartment",
		City:         "Dhaka",
		Area:         "Gulshan 2",
		Price:        4500000,
		Size:         1450,
		Bedrooms:     3,
		Bathrooms:    2,
		Amenities:    []string{"Parking", "Gym"},
	}
}

func TestListingInput_Validate(t *testing.T) {
	assert.NoError(t, sampleListingInput().Validate())

	missing := sampleListingInput()
	missing.Title = " "
	missing.City = ""
	err := missing.Validate()
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Contains(t, err.Error(), "title, city")

	negative := sampleListingInput()
	negative.Price = -1
	assert.ErrorIs(t, negative.Validate(), ErrInvalidInput)
}

func TestParseID(t *testing.T) {
	id := primitive.NewObjectID()
	parsed, err := ParseID(id.Hex())
	require.NoError(t, err)
	assert.Equal(t, id, parsed)

	_, err = ParseID("not-an-id")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListingService_CRUD(t *testing.T) {
	database := setupTestDBListing(t, "testdb_listing_service_crud")
	svc := NewListingService(database, zap.NewNop())
	ctx := context.Background()
	userID := primitive.NewObjectID()

	listing, err := svc.CreateListing(ctx, userID, sampleListingInput(), false)
	require.NoError(t, err)
	assert.Equal(t, models.ListingStatusDraft, listing.Status)

	// Drafts are not publicly visible
	_, err = svc.FindListingByID(ctx, listing.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	updated, err := svc.UpdateListing(ctx, listing.ID, userID, map[string]interface{}{"title": "Updated Title", "price": 4000000.0})
	require.NoError(t, err)
	assert.Equal(t, "Updated Title", updated.Title)
	assert.Equal(t, 4000000.0, updated.Price)

	_, err = svc.UpdateListing(ctx, listing.ID, userID, map[string]interface{}{"status": "published"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.UpdateListing(ctx, listing.ID, primitive.NewObjectID(), map[string]interface{}{"title": "x"})
	assert.ErrorIs(t, err, ErrForbidden)

	published, err := svc.PublishListing(ctx, listing.ID, userID)
	require.NoError(t, err)
	assert.Equal(t, models.ListingStatusPublished, published.Status)
	assert.NotNil(t, published.PublishedAt)

	found, err := svc.FindListingByID(ctx, listing.ID)
	require.NoError(t, err)
	assert.Equal(t, listing.ID, found.ID)

	_, err = svc.PublishListing(ctx, listing.ID, userID)
	assert.ErrorIs(t, err, ErrInvalidState)

	require.NoError(t, svc.UnpublishListing(ctx, listing.ID, userID))
	assert.ErrorIs(t, svc.UnpublishListing(ctx, listing.ID, userID), ErrInvalidState)

	own, err := svc.FindListingsByUserID(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, own, 1)

	require.NoError(t, svc.DeleteListing(ctx, listing.ID, userID))
	_, err = svc.FindSnapshot(ctx, listing.ID.Hex())
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, svc.DeleteListing(ctx, listing.ID, userID), ErrNotFound)
}

func TestListingService_PublishHookFiresOncePerTransition(t *testing.T) {
	database := setupTestDBListing(t, "testdb_listing_service_hook")
	svc := NewListingService(database, zap.NewNop())
	ctx := context.Background()
	userID := primitive.NewObjectID()

	var fired int32
	svc.SetPublishHook(func(ctx context.Context, l *models.Listing) {
		atomic.AddInt32(&fired, 1)
		assert.Equal(t, models.ListingStatusPublished, l.Status)
	})

	listing, err := svc.CreateListing(ctx, userID, sampleListingInput(), false)
	require.NoError(t, err)
	assert.Zero(t, atomic.LoadInt32(&fired))

	var wg sync.WaitGroup
	var successes int32
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.PublishListing(ctx, listing.ID, userID); err == nil {
				atomic.AddInt32(&successes, 1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), successes)
	assert.Equal(t, int32(1), atomic.LoadInt32(&fired))

	// hidden -> published is a new transition
	require.NoError(t, svc.UnpublishListing(ctx, listing.ID, userID))
	_, err = svc.PublishListing(ctx, listing.ID, userID)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&fired))

	_, err = svc.CreateListing(ctx, userID, sampleListingInput(), true)
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&fired))
}

func TestListingService_GetPublishedSince(t *testing.T) {
	database := setupTestDBListing(t, "testdb_listing_service_since")
	svc := NewListingService(database, zap.NewNop())
	ctx := context.Background()
	userID := primitive.NewObjectID()
	now := time.Now().UTC().Truncate(time.Millisecond)

	insert := func(age time.Duration, status models.ListingStatus, deleted bool) primitive.ObjectID {
		l := models.Listing{
			Base: models.NewBase(), UserID: userID, Title: "L", City: "Dhaka", ListingType: "sale",
			Status: status, Deleted: deleted, CreatedAt: now.Add(-age), UpdatedAt: now,
		}
		_, err := database.Collection(db.CollListings).InsertOne(ctx, l)
		require.NoError(t, err)
		return l.ID
	}
	recent := insert(2*time.Hour, models.ListingStatusPublished, false)
	insert(3*time.Hour, models.ListingStatusDraft, false)
	insert(time.Hour, models.ListingStatusPublished, true)
	insert(30*time.Hour, models.ListingStatusPublished, false)
	newest := insert(time.Minute, models.ListingStatusPublished, false)

	snaps, err := svc.GetPublishedSince(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, recent.Hex(), snaps[0].ID)
	assert.Equal(t, newest.Hex(), snaps[1].ID)
}

func TestListingService_FindSnapshotMalformedID(t *testing.T) {
	database := setupTestDBListing(t, "testdb_listing_service_snapshot")
	svc := NewListingService(database, zap.NewNop())

	_, err := svc.FindSnapshot(context.Background(), "zzz")
	assert.True(t, errors.Is(err, ErrNotFound))

	n, err := database.Collection(db.CollListings).CountDocuments(context.Background(), bson.M{})
	require.NoError(t, err)
	assert.Zero(t, n)
}
