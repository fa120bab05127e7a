package alerts_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/Tafsirchy/thikana/internal/alerts"
)

// --- Fakes ---

// memSearchStore keeps saved searches in memory and applies the same
// compare-and-swap rule as the Mongo store.
type memSearchStore struct {
	mu        sync.Mutex
	searches  map[string]*alerts.SavedSearch
	order     []string
	listErr   error
	updateErr error
	revertErr error
	updates   int
	reverts   int
}

func newMemSearchStore(searches ...alerts.SavedSearch) *memSearchStore {
	s := &memSearchStore{searches: make(map[string]*alerts.SavedSearch)}
	for i := range searches {
		search := searches[i]
		s.searches[search.ID] = &search
		s.order = append(s.order, search.ID)
	}
	return s
}

func (s *memSearchStore) ListActive(ctx context.Context, frequency alerts.Frequency) ([]alerts.SavedSearch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []alerts.SavedSearch
	for _, id := range s.order {
		search := s.searches[id]
		if search.Active && search.Frequency == frequency {
			cp := *search
			if search.LastAlertSent != nil {
				ts := *search.LastAlertSent
				cp.LastAlertSent = &ts
			}
			out = append(out, cp)
		}
	}
	return out, nil
}

func (s *memSearchStore) UpdateLastAlertSent(ctx context.Context, searchID string, expected *time.Time, next time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates++
	if s.updateErr != nil {
		return false, s.updateErr
	}
	search, ok := s.searches[searchID]
	if !ok {
		return false, nil
	}
	switch {
	case expected == nil && search.LastAlertSent != nil:
		return false, nil
	case expected != nil && (search.LastAlertSent == nil || !search.LastAlertSent.Equal(*expected)):
		return false, nil
	}
	ts := next
	search.LastAlertSent = &ts
	return true, nil
}

func (s *memSearchStore) RevertLastAlertSent(ctx context.Context, searchID string, claimed time.Time, previous *time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reverts++
	if s.revertErr != nil {
		return false, s.revertErr
	}
	search, ok := s.searches[searchID]
	if !ok || search.LastAlertSent == nil || !search.LastAlertSent.Equal(claimed) {
		return false, nil
	}
	if previous == nil {
		search.LastAlertSent = nil
		return true, nil
	}
	ts := *previous
	search.LastAlertSent = &ts
	return true, nil
}

func (s *memSearchStore) lastAlertSent(id string) *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.searches[id].LastAlertSent
}

// memListingSource returns published listings created strictly after since.
type memListingSource struct {
	listings []alerts.ListingSnapshot
	err      error
}

func (m *memListingSource) GetPublishedSince(ctx context.Context, since time.Time) ([]alerts.ListingSnapshot, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []alerts.ListingSnapshot
	for _, l := range m.listings {
		if l.Status == alerts.StatusPublished && l.CreatedAt.After(since) {
			out = append(out, l)
		}
	}
	return out, nil
}

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

// --- Mocks ---

// MockDirectory
type MockDirectory struct {
	mock.Mock
}

func (m *MockDirectory) GetContact(ctx context.Context, ownerID string) (*alerts.ContactInfo, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*alerts.ContactInfo), args.Error(1)
}

// MockSink
type MockSink struct {
	mock.Mock
}

func (m *MockSink) SendInstantMatch(ctx context.Context, contact alerts.ContactInfo, listing alerts.ListingSnapshot, searchName string) error {
	args := m.Called(ctx, contact, listing, searchName)
	return args.Error(0)
}

func (m *MockSink) SendDigest(ctx context.Context, contact alerts.ContactInfo, listings []alerts.ListingSnapshot, searchName string) error {
	args := m.Called(ctx, contact, listings, searchName)
	return args.Error(0)
}

// MockDeduper
type MockDeduper struct {
	mock.Mock
}

func (m *MockDeduper) Claim(ctx context.Context, listingID, searchID string) (bool, error) {
	args := m.Called(ctx, listingID, searchID)
	return args.Bool(0), args.Error(1)
}

func (m *MockDeduper) Release(ctx context.Context, listingID, searchID string) error {
	args := m.Called(ctx, listingID, searchID)
	return args.Error(0)
}

var errBoom = errors.New("boom")

func floatPtr(v float64) *float64 { return &v }

func contactFor(ownerID string) *alerts.ContactInfo {
	return &alerts.ContactInfo{
		OwnerID:      ownerID,
		Name:         "Owner " + ownerID,
		Email:        ownerID + "@example.com",
		EmailEnabled: true,
	}
}
