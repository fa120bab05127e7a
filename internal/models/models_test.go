package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/Tafsirchy/thikana/internal/alerts"
)

func TestBase_GenIDIfEmpty(t *testing.T) {
	var b Base
	b.GenIDIfEmpty()
	require.False(t, b.ID.IsZero())

	id := b.ID
	b.GenIDIfEmpty()
	assert.Equal(t, id, b.ID)
}

func TestListing_Snapshot(t *testing.T) {
	created := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	l := Listing{
		Base:      NewBase(),
		Title:     "Flat",
		City:      "Dhaka",
		Price:     4500000,
		Bedrooms:  3,
		Amenities: []string{"Parking"},
		Status:    ListingStatusPublished,
		CreatedAt: created,
	}

	snap := l.Snapshot()
	assert.Equal(t, l.ID.Hex(), snap.ID)
	assert.Equal(t, alerts.StatusPublished, snap.Status)
	assert.Equal(t, 3, snap.Bedrooms)
	assert.Equal(t, created, snap.CreatedAt)

	snap.Amenities[0] = "Gym"
	assert.Equal(t, "Parking", l.Amenities[0])
}

func TestSavedSearch_ToAlert(t *testing.T) {
	owner := primitive.NewObjectID()
	sent := time.Date(2026, 10, 16, 7, 0, 0, 0, time.FixedZone("BDT", 6*3600))
	s := SavedSearch{
		Base:          NewBase(),
		UserID:        owner,
		Name:          "Gulshan flats",
		Filter:        bson.M{"city": "Dhaka", "maxPrice": int32(5000000), "minBedrooms": "bogus"},
		Frequency:     alerts.FrequencyDaily,
		Active:        true,
		LastAlertSent: &sent,
	}

	out := s.ToAlert()
	assert.Equal(t, owner.Hex(), out.OwnerID)
	assert.Equal(t, "Dhaka", out.Filter.City)
	require.NotNil(t, out.Filter.MaxPrice)
	assert.Equal(t, 5000000.0, *out.Filter.MaxPrice)
	assert.Nil(t, out.Filter.MinBedrooms)
	require.NotNil(t, out.LastAlertSent)
	assert.True(t, out.LastAlertSent.Equal(sent))
	assert.Equal(t, time.UTC, out.LastAlertSent.Location())
}

func TestUser_Preferences(t *testing.T) {
	u := User{}
	assert.Equal(t, DefaultNotificationPreferences(), u.Preferences())

	u.NotificationPreferences = &NotificationPreferences{EmailAlerts: false, PushAlerts: true}
	assert.False(t, u.Preferences().EmailAlerts)
}
