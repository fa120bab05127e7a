package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/Tafsirchy/thikana/internal/alerts"
)

// ListingStatus is the publication state of a property listing.
type ListingStatus string

const (
	ListingStatusDraft     ListingStatus = "draft"
	ListingStatusPublished ListingStatus = alerts.StatusPublished
	ListingStatusHidden    ListingStatus = "hidden"
)

// Listing represents a property offered for sale or rent.
type Listing struct {
	Base         `bson:",inline"`
	UserID       primitive.ObjectID `bson:"user_id" json:"user_id"`
	Title        string             `bson:"title" json:"title"`
	Description  string             `bson:"description" json:"description"`
	ListingType  string             `bson:"listing_type" json:"listing_type"`   // e.g. "sale", "rent"
	PropertyType string             `bson:"property_type" json:"property_type"` // e.g. "apartment", "house", "plot"
	City         string             `bson:"city" json:"city"`
	Area         string             `bson:"area" json:"area"` // neighbourhood, e.g. "Gulshan 2"
	Price        float64            `bson:"price" json:"price"`
	Size         float64            `bson:"size" json:"size"` // square feet
	Bedrooms     int                `bson:"bedrooms" json:"bedrooms"`
	Bathrooms    int                `bson:"bathrooms" json:"bathrooms"`
	Amenities    []string           `bson:"amenities" json:"amenities"`
	Images       []string           `bson:"images" json:"images"`
	Status       ListingStatus      `bson:"status" json:"status"`
	UpdatedAt    time.Time          `bson:"updated_at" json:"updated_at"`
	CreatedAt    time.Time          `bson:"created_at" json:"created_at"`
	PublishedAt  *time.Time         `bson:"published_at,omitempty" json:"published_at,omitempty"`
	Deleted      bool               `bson:"deleted" json:"-"` // Soft delete flag
}

// Snapshot projects the listing onto the fields alert matching reads.
func (l *Listing) Snapshot() alerts.ListingSnapshot {
	return alerts.ListingSnapshot{
		ID:           l.ID.Hex(),
		Title:        l.Title,
		Status:       string(l.Status),
		ListingType:  l.ListingType,
		PropertyType: l.PropertyType,
		City:         l.City,
		Area:         l.Area,
		Price:        l.Price,
		Size:         l.Size,
		Bedrooms:     l.Bedrooms,
		Bathrooms:    l.Bathrooms,
		Amenities:    append([]string(nil), l.Amenities...),
		CreatedAt:    l.CreatedAt,
	}
}
