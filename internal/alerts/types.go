// Package alerts decides, for every saved search, whether a listing qualifies
// and when the owning user should be told about it: immediately when the
// listing is published, or as a periodic digest.
//
// The package holds no I/O of its own. Listings, saved searches, contacts and
// delivery are reached through the small interfaces declared here, which the
// services, cache and notify packages implement.
package alerts

import (
	"context"
	"errors"
	"time"
)

// Frequency is a saved search delivery preference.
type Frequency string

const (
	FrequencyNever   Frequency = "never"
	FrequencyInstant Frequency = "instant"
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
)

// ErrUnsupportedFrequency is returned by RunDigest for frequencies that have no digest.
var ErrUnsupportedFrequency = errors.New("frequency does not support digests")

// Valid reports whether f is one of the known frequencies.
func (f Frequency) Valid() bool {
	switch f {
	case FrequencyNever, FrequencyInstant, FrequencyDaily, FrequencyWeekly:
		return true
	}
	return false
}

// DefaultPeriod is the look-back used when a periodic search has never been dispatched.
func (f Frequency) DefaultPeriod() time.Duration {
	switch f {
	case FrequencyDaily:
		return 24 * time.Hour
	case FrequencyWeekly:
		return 7 * 24 * time.Hour
	}
	return 0
}

// IsDigest reports whether f is served by the DigestScheduler.
func (f Frequency) IsDigest() bool {
	return f == FrequencyDaily || f == FrequencyWeekly
}

// StatusPublished is the only listing status the engine ever evaluates.
const StatusPublished = "published"

// FilterSpec is the user-authored matching criteria. Zero values mean the
// clause is unconstrained.
type FilterSpec struct {
	ListingType  string
	PropertyType string
	City         string
	MinPrice     *float64
	MaxPrice     *float64
	MinArea      *float64
	MaxArea      *float64
	MinBedrooms  *float64
	MinBathrooms *float64
	SearchText   string
	Amenities    []string
}

// ListingSnapshot is the read-only projection of a listing consumed by the engine.
type ListingSnapshot struct {
	ID           string
	Title        string
	Status       string
	ListingType  string
	PropertyType string
	City         string
	Area         string
	Price        float64
	Size         float64
	Bedrooms     int
	Bathrooms    int
	Amenities    []string
	CreatedAt    time.Time
}

// SavedSearch is a stored filter plus its delivery state.
type SavedSearch struct {
	ID            string
	OwnerID       string
	Name          string
	Filter        FilterSpec
	Frequency     Frequency
	Active        bool
	LastAlertSent *time.Time
}

// ContactInfo is how an owner can be reached.
type ContactInfo struct {
	OwnerID      string
	Name         string
	Email        string
	PushTokens   []string
	EmailEnabled bool
	PushEnabled  bool
}

// ListingSource provides published listings for digest windows.
type ListingSource interface {
	GetPublishedSince(ctx context.Context, since time.Time) ([]ListingSnapshot, error)
}

// SearchStore loads saved searches and advances their dispatch state.
type SearchStore interface {
	ListActive(ctx context.Context, frequency Frequency) ([]SavedSearch, error)
	// UpdateLastAlertSent sets lastAlertSent to next only if it still equals
	// expected (nil meaning never sent). It returns false when expected is stale.
	UpdateLastAlertSent(ctx context.Context, searchID string, expected *time.Time, next time.Time) (bool, error)
	// RevertLastAlertSent restores previous only if lastAlertSent still equals
	// claimed. It undoes a claim whose dispatch was never submitted.
	RevertLastAlertSent(ctx context.Context, searchID string, claimed time.Time, previous *time.Time) (bool, error)
}

// Directory resolves an owner's contact details.
type Directory interface {
	GetContact(ctx context.Context, ownerID string) (*ContactInfo, error)
}

// Sink accepts notification requests. Both calls are best-effort submissions;
// a returned error only means the request was not accepted.
type Sink interface {
	SendInstantMatch(ctx context.Context, contact ContactInfo, listing ListingSnapshot, searchName string) error
	SendDigest(ctx context.Context, contact ContactInfo, listings []ListingSnapshot, searchName string) error
}

// Deduper guards against dispatching the same listing to the same search twice.
// Claim returns true the first time a pair is seen. Release forgets a claim
// whose dispatch failed.
type Deduper interface {
	Claim(ctx context.Context, listingID, searchID string) (bool, error)
	Release(ctx context.Context, listingID, searchID string) error
}

// Clock abstracts time for tests.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// Result summarises one OnPublish or RunDigest invocation.
type Result struct {
	Evaluated  int `json:"evaluated"`
	Matched    int `json:"matched"`
	Dispatched int `json:"dispatched"`
	Skipped    int `json:"skipped"`
	Failed     int `json:"failed"`
}
