package services

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/Tafsirchy/thikana/internal/alerts"
	"github.com/Tafsirchy/thikana/internal/db"
	"github.com/Tafsirchy/thikana/internal/utils"
)

func strPtr(s string) *string { return &s }

func freqPtr(f alerts.Frequency) *alerts.Frequency { return &f }

func boolPtr(b bool) *bool { return &b }

func newSavedSearchSvc(t *testing.T, dbName string) ISavedSearchService {
	database := utils.SetupTestDB(t, dbName, db.CollSavedSearches)
	return NewSavedSearchService(database, zap.NewNop())
}

func TestSavedSearchService_CRUD(t *testing.T) {
	svc := newSavedSearchSvc(t, "testdb_saved_search_crud")
	ctx := context.Background()
	owner := primitive.NewObjectID()
	stranger := primitive.NewObjectID()

	_, err := svc.CreateSavedSearch(ctx, owner, SavedSearchInput{})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.CreateSavedSearch(ctx, owner, SavedSearchInput{Name: strPtr("x"), Frequency: freqPtr("hourly")})
	assert.ErrorIs(t, err, ErrInvalidInput)

	created, err := svc.CreateSavedSearch(ctx, owner, SavedSearchInput{
		Name:   strPtr("Gulshan flats"),
		Filter: map[string]interface{}{"city": "Dhaka", "max_price": "5000000", "bogus": 1},
	})
	require.NoError(t, err)
	assert.Equal(t, alerts.FrequencyDaily, created.Frequency)
	assert.True(t, created.Active)
	assert.Equal(t, 5000000.0, created.Filter["maxPrice"])
	assert.NotContains(t, created.Filter, "bogus")

	got, err := svc.GetSavedSearch(ctx, created.ID, owner)
	require.NoError(t, err)
	assert.Equal(t, "Gulshan flats", got.Name)

	_, err = svc.GetSavedSearch(ctx, created.ID, stranger)
	assert.ErrorIs(t, err, ErrForbidden)

	updated, err := svc.UpdateSavedSearch(ctx, created.ID, owner, SavedSearchInput{
		Frequency: freqPtr(alerts.FrequencyInstant),
		Active:    boolPtr(false),
	})
	require.NoError(t, err)
	assert.Equal(t, alerts.FrequencyInstant, updated.Frequency)
	assert.False(t, updated.Active)
	assert.Equal(t, "Dhaka", updated.Filter["city"])

	_, err = svc.UpdateSavedSearch(ctx, created.ID, stranger, SavedSearchInput{Name: strPtr("mine")})
	assert.ErrorIs(t, err, ErrForbidden)

	list, err := svc.ListByUser(ctx, owner)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	assert.ErrorIs(t, svc.DeleteSavedSearch(ctx, created.ID, stranger), ErrForbidden)
	require.NoError(t, svc.DeleteSavedSearch(ctx, created.ID, owner))
	assert.ErrorIs(t, svc.DeleteSavedSearch(ctx, created.ID, owner), ErrNotFound)
}

func TestSavedSearchService_ListActive(t *testing.T) {
	svc := newSavedSearchSvc(t, "testdb_saved_search_active")
	ctx := context.Background()
	owner := primitive.NewObjectID()

	mk := func(name string, f alerts.Frequency, active bool) {
		_, err := svc.CreateSavedSearch(ctx, owner, SavedSearchInput{Name: strPtr(name), Frequency: freqPtr(f), Active: boolPtr(active)})
		require.NoError(t, err)
	}
	mk("a", alerts.FrequencyInstant, true)
	mk("b", alerts.FrequencyInstant, false)
	mk("c", alerts.FrequencyDaily, true)

	instant, err := svc.ListActive(ctx, alerts.FrequencyInstant)
	require.NoError(t, err)
	require.Len(t, instant, 1)
	assert.Equal(t, "a", instant[0].Name)
	assert.Equal(t, owner.Hex(), instant[0].OwnerID)
	assert.Nil(t, instant[0].LastAlertSent)
}

// The compare-and-swap rules below run only against a live MongoDB (MONGO_URI):
// a nil expectation matches an absent field, stored values are truncated to
// milliseconds, next must be after expected, and a revert only applies while
// the claimed value is still stored. Without MONGO_URI they are untested here.
func TestSavedSearchService_UpdateLastAlertSentCAS(t *testing.T) {
	svc := newSavedSearchSvc(t, "testdb_saved_search_cas")
	ctx := context.Background()
	created, err := svc.CreateSavedSearch(ctx, primitive.NewObjectID(), SavedSearchInput{Name: strPtr("cas")})
	require.NoError(t, err)
	id := created.ID.Hex()

	t1 := time.Date(2026, 10, 16, 7, 0, 0, 0, time.UTC)
	t2 := t1.Add(24 * time.Hour)

	ok, err := svc.UpdateLastAlertSent(ctx, id, nil, t1)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.UpdateLastAlertSent(ctx, id, nil, t2)
	require.NoError(t, err)
	assert.False(t, ok, "stale nil expectation must lose")

	ok, err = svc.UpdateLastAlertSent(ctx, id, &t1, t1)
	require.NoError(t, err)
	assert.False(t, ok, "next must be after expected")

	ok, err = svc.UpdateLastAlertSent(ctx, id, &t1, t2)
	require.NoError(t, err)
	assert.True(t, ok)

	active, err := svc.ListActive(ctx, alerts.FrequencyDaily)
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.NotNil(t, active[0].LastAlertSent)
	assert.True(t, active[0].LastAlertSent.Equal(t2))

	_, err = svc.UpdateLastAlertSent(ctx, "bad", nil, t2)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSavedSearchService_RevertLastAlertSent(t *testing.T) {
	svc := newSavedSearchSvc(t, "testdb_saved_search_revert")
	ctx := context.Background()
	created, err := svc.CreateSavedSearch(ctx, primitive.NewObjectID(), SavedSearchInput{Name: strPtr("revert")})
	require.NoError(t, err)
	id := created.ID.Hex()

	// Sub-millisecond precision is lost on write and must not break the revert.
	claimed := time.Date(2026, 10, 17, 7, 0, 0, 123456789, time.UTC)
	ok, err := svc.UpdateLastAlertSent(ctx, id, nil, claimed)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = svc.RevertLastAlertSent(ctx, id, claimed.Add(time.Second), nil)
	require.NoError(t, err)
	assert.False(t, ok, "revert must not touch a value it did not claim")

	ok, err = svc.RevertLastAlertSent(ctx, id, claimed, nil)
	require.NoError(t, err)
	assert.True(t, ok)

	active, err := svc.ListActive(ctx, alerts.FrequencyDaily)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Nil(t, active[0].LastAlertSent)

	// The field is absent again, so a fresh nil-expectation claim wins.
	previous := claimed.Truncate(time.Millisecond)
	ok, err = svc.UpdateLastAlertSent(ctx, id, nil, previous)
	require.NoError(t, err)
	require.True(t, ok)
	next := previous.Add(24 * time.Hour)
	ok, err = svc.UpdateLastAlertSent(ctx, id, &previous, next)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = svc.RevertLastAlertSent(ctx, id, next, &previous)
	require.NoError(t, err)
	assert.True(t, ok)
	active, err = svc.ListActive(ctx, alerts.FrequencyDaily)
	require.NoError(t, err)
	require.NotNil(t, active[0].LastAlertSent)
	assert.True(t, active[0].LastAlertSent.Equal(previous))

	_, err = svc.RevertLastAlertSent(ctx, "bad", next, nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSavedSearchService_ConcurrentClaimsHaveOneWinner(t *testing.T) {
	svc := newSavedSearchSvc(t, "testdb_saved_search_race")
	ctx := context.Background()
	created, err := svc.CreateSavedSearch(ctx, primitive.NewObjectID(), SavedSearchInput{Name: strPtr("race")})
	require.NoError(t, err)

	next := time.Now().UTC()
	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ok, err := svc.UpdateLastAlertSent(ctx, created.ID.Hex(), nil, next.Add(time.Duration(i)*time.Second))
			assert.NoError(t, err)
			if ok {
				atomic.AddInt32(&wins, 1)
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins)
}
