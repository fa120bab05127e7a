package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/Tafsirchy/thikana/internal/alerts"
)

// SavedSearch is a user's stored filter with its alert delivery state.
// Filter is kept as a loose document; it is decoded leniently when matched.
type SavedSearch struct {
	Base          `bson:",inline"`
	UserID        primitive.ObjectID `bson:"user_id" json:"user_id"`
	Name          string             `bson:"name" json:"name"`
	Filter        bson.M             `bson:"filter" json:"filter"`
	Frequency     alerts.Frequency   `bson:"frequency" json:"frequency"`
	Active        bool               `bson:"active" json:"active"`
	LastAlertSent *time.Time         `bson:"last_alert_sent" json:"last_alert_sent,omitempty"`
	UpdatedAt     time.Time          `bson:"updated_at" json:"updated_at"`
	CreatedAt     time.Time          `bson:"created_at" json:"created_at"`
}

// ToAlert converts the stored document to the form the alert engine evaluates.
func (s *SavedSearch) ToAlert() alerts.SavedSearch {
	out := alerts.SavedSearch{
		ID:        s.ID.Hex(),
		OwnerID:   s.UserID.Hex(),
		Name:      s.Name,
		Filter:    alerts.ParseFilter(s.Filter),
		Frequency: s.Frequency,
		Active:    s.Active,
	}
	if s.LastAlertSent != nil {
		ts := s.LastAlertSent.UTC()
		out.LastAlertSent = &ts
	}
	return out
}
