// Package notify turns alert decisions into queued delivery tasks.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Tafsirchy/thikana/internal/alerts"
	"github.com/Tafsirchy/thikana/internal/email"
	"github.com/Tafsirchy/thikana/internal/push"
	"github.com/Tafsirchy/thikana/internal/tasks"
)

// DefaultDigestMaxListings caps how many listings a digest email shows.
const DefaultDigestMaxListings = 20

// TaskSink implements alerts.Sink by enqueueing one email task per contact
// and one push task per device token. Nothing is delivered inline.
type TaskSink struct {
	client     tasks.Enqueuer
	listingURL string
	maxListing int
	locale     string
	logger     *zap.Logger
}

// NewTaskSink creates a TaskSink. listingURL is the public prefix a listing
// id is appended to.
func NewTaskSink(client tasks.Enqueuer, listingURL string, maxListings int, logger *zap.Logger) *TaskSink {
	if maxListings <= 0 {
		maxListings = DefaultDigestMaxListings
	}
	return &TaskSink{
		client:     client,
		listingURL: strings.TrimRight(listingURL, "/"),
		maxListing: maxListings,
		locale:     email.DefaultLocale,
		logger:     logger.With(zap.String("component", "notify")),
	}
}

var _ alerts.Sink = (*TaskSink)(nil)

func (s *TaskSink) view(l alerts.ListingSnapshot) email.ListingView {
	return email.ListingView{
		ID:        l.ID,
		Title:     l.Title,
		Area:      l.Area,
		City:      l.City,
		Price:     l.Price,
		Size:      l.Size,
		Bedrooms:  l.Bedrooms,
		Bathrooms: l.Bathrooms,
		URL:       s.listingURL + "/" + l.ID,
	}
}

// SendInstantMatch queues the notifications for one newly published match.
func (s *TaskSink) SendInstantMatch(ctx context.Context, contact alerts.ContactInfo, listing alerts.ListingSnapshot, searchName string) error {
	view := s.view(listing)
	data := email.InstantData{Name: contact.Name, SearchName: searchName, Listing: view}

	msg := push.Message{
		Title: fmt.Sprintf("New match for %q", searchName),
		Body:  describe(listing),
		Data:  map[string]string{"listing_id": listing.ID, "url": view.URL},
	}
	return s.submit(ctx, contact, email.TemplateSavedSearchInstant, data, msg)
}

// SendDigest queues one digest for the full set of matches. The email shows
// at most maxListings entries and reports the remainder.
func (s *TaskSink) SendDigest(ctx context.Context, contact alerts.ContactInfo, listings []alerts.ListingSnapshot, searchName string) error {
	if len(listings) == 0 {
		return nil
	}
	shown := listings
	if len(shown) > s.maxListing {
		shown = shown[:s.maxListing]
	}
	views := make([]email.ListingView, 0, len(shown))
	for _, l := range shown {
		views = append(views, s.view(l))
	}
	data := email.DigestData{
		Name:       contact.Name,
		SearchName: searchName,
		Total:      len(listings),
		More:       len(listings) - len(shown),
		Listings:   views,
	}

	noun := "properties"
	if len(listings) == 1 {
		noun = "property"
	}
	msg := push.Message{
		Title: fmt.Sprintf("%d new %s for %q", len(listings), noun, searchName),
		Body:  describe(listings[0]),
		Data:  map[string]string{"listing_id": listings[0].ID, "count": fmt.Sprint(len(listings))},
	}
	return s.submit(ctx, contact, email.TemplateSavedSearchDigest, data, msg)
}

// submit enqueues on every enabled channel. It fails only when a channel was
// enabled and no task at all could be queued. Owners who disabled every
// channel are skipped silently.
func (s *TaskSink) submit(ctx context.Context, contact alerts.ContactInfo, templateID string, data interface{}, msg push.Message) error {
	var (
		queued int
		errs   []error
	)

	if contact.EmailEnabled && contact.Email != "" {
		task, err := tasks.NewEmailDeliveryTask(contact.Email, templateID, s.locale, data)
		if err == nil {
			_, err = tasks.Enqueue(ctx, s.client, task)
		}
		if err != nil {
			errs = append(errs, err)
		} else {
			queued++
		}
	}

	if contact.PushEnabled {
		for _, token := range contact.PushTokens {
			m := msg
			m.Token = token
			task, err := tasks.NewPushDeliveryTask(contact.OwnerID, m)
			if err == nil {
				_, err = tasks.Enqueue(ctx, s.client, task)
			}
			if err != nil {
				errs = append(errs, err)
				continue
			}
			queued++
		}
	}

	if len(errs) > 0 {
		s.logger.Warn("some notification tasks were not queued",
			zap.String("owner_id", contact.OwnerID), zap.Int("queued", queued), zap.Error(errors.Join(errs...)))
	}
	if queued == 0 && len(errs) > 0 {
		return errors.Join(errs...)
	}
	if queued == 0 {
		s.logger.Debug("owner has no enabled channel", zap.String("owner_id", contact.OwnerID))
	}
	return nil
}

func describe(l alerts.ListingSnapshot) string {
	place := l.City
	if l.Area != "" {
		place = l.Area + ", " + l.City
	}
	return fmt.Sprintf("%s in %s", l.Title, place)
}
