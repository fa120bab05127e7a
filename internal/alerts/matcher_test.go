package alerts_test

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Tafsirchy/thikana/internal/alerts"
)

func baseListing() alerts.ListingSnapshot {
	return alerts.ListingSnapshot{
		ID:           "L1",
		Title:        "Luxury Flat in Gulshan",
		Status:       alerts.StatusPublished,
		ListingType:  "sale",
		PropertyType: "apartment",
		City:         "Dhaka",
		Area:         "Gulshan 2",
		Price:        4500000,
		Size:         1450,
		Bedrooms:     3,
		Bathrooms:    2,
		Amenities:    []string{"Parking", "Gym", "Pool"},
		CreatedAt:    time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC),
	}
}

func TestMatches_Clauses(t *testing.T) {
	tests := []struct {
		name   string
		filter alerts.FilterSpec
		mutate func(*alerts.ListingSnapshot)
		want   bool
	}{
		{"empty filter matches everything", alerts.FilterSpec{}, nil, true},
		{"city exact", alerts.FilterSpec{City: "Dhaka"}, nil, true},
		{"city is case sensitive", alerts.FilterSpec{City: "dhaka"}, nil, false},
		{"listing type mismatch", alerts.FilterSpec{ListingType: "rent"}, nil, false},
		{"property type match", alerts.FilterSpec{PropertyType: "apartment"}, nil, true},
		{"max price inclusive", alerts.FilterSpec{MaxPrice: floatPtr(4500000)}, nil, true},
		{"min price inclusive", alerts.FilterSpec{MinPrice: floatPtr(4500000)}, nil, true},
		{"price above max", alerts.FilterSpec{MaxPrice: floatPtr(4000000)}, nil, false},
		{"price below min", alerts.FilterSpec{MinPrice: floatPtr(5000000)}, nil, false},
		{"area range inclusive", alerts.FilterSpec{MinArea: floatPtr(1450), MaxArea: floatPtr(1450)}, nil, true},
		{"area too small", alerts.FilterSpec{MinArea: floatPtr(2000)}, nil, false},
		{"bedrooms lower bound", alerts.FilterSpec{MinBedrooms: floatPtr(3)}, nil, true},
		{"bedrooms not enough", alerts.FilterSpec{MinBedrooms: floatPtr(4)}, nil, false},
		{"bathrooms not enough", alerts.FilterSpec{MinBathrooms: floatPtr(2.5)}, nil, false},
		{"search text in title", alerts.FilterSpec{SearchText: "gulshan"}, nil, true},
		{"search text in area only", alerts.FilterSpec{SearchText: "GULSHAN 2"}, func(l *alerts.ListingSnapshot) {
			l.Title = "Modern Home"
		}, true},
		{"search text nowhere", alerts.FilterSpec{SearchText: "gulshan"}, func(l *alerts.ListingSnapshot) {
			l.Title = "Modern Home"
			l.Area = "Banani"
		}, false},
		{"amenities subset", alerts.FilterSpec{Amenities: []string{"Parking", "Gym"}}, nil, true},
		{"amenities missing one", alerts.FilterSpec{Amenities: []string{"Parking", "Gym"}}, func(l *alerts.ListingSnapshot) {
			l.Amenities = []string{"Parking"}
		}, false},
		{"amenities against none", alerts.FilterSpec{Amenities: []string{"Parking"}}, func(l *alerts.ListingSnapshot) {
			l.Amenities = nil
		}, false},
		{"conjunction all hold", alerts.FilterSpec{City: "Dhaka", MaxPrice: floatPtr(5000000), MinBedrooms: floatPtr(2), Amenities: []string{"Pool"}}, nil, true},
		{"conjunction one fails", alerts.FilterSpec{City: "Dhaka", MaxPrice: floatPtr(5000000), MinBedrooms: floatPtr(5)}, nil, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			l := baseListing()
			if tc.mutate != nil {
				tc.mutate(&l)
			}
			assert.Equal(t, tc.want, alerts.Matches(l, tc.filter))
		})
	}
}

func TestMatches_AmenitiesScenario(t *testing.T) {
	filter := alerts.FilterSpec{Amenities: []string{"Parking", "Gym"}}

	l := baseListing()
	l.Amenities = []string{"Parking"}
	assert.False(t, alerts.Matches(l, filter))

	l.Amenities = []string{"Parking", "Gym", "Pool"}
	assert.True(t, alerts.Matches(l, filter))
}

func TestMatches_MalformedFilterValuesAreDropped(t *testing.T) {
	raw := map[string]interface{}{
		"city":        "Dhaka",
		"minPrice":    "not-a-number",
		"maxPrice":    "5,000,000",
		"minBedrooms": map[string]interface{}{"$gt": 2},
		"minArea":     true,
		"amenities":   []interface{}{"Parking", 42, nil},
		"unknown":     "ignored",
	}
	filter := alerts.ParseFilter(raw)

	assert.Nil(t, filter.MinPrice)
	assert.Nil(t, filter.MaxPrice)
	assert.Nil(t, filter.MinBedrooms)
	assert.Nil(t, filter.MinArea)
	assert.Equal(t, []string{"Parking"}, filter.Amenities)

	assert.NotPanics(t, func() {
		assert.True(t, alerts.Matches(baseListing(), filter))
	})
}

// Removing any single constraint from a filter that matches must keep it matching.
func TestMatches_MonotonicRelaxation(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	cities := []string{"Dhaka", "Chattogram", "Sylhet"}
	amenities := []string{"Parking", "Gym", "Pool", "Lift", "Generator"}

	for i := 0; i < 500; i++ {
		l := baseListing()
		l.City = cities[rng.Intn(len(cities))]
		l.Price = float64(rng.Intn(10_000_000))
		l.Size = float64(rng.Intn(3000))
		l.Bedrooms = rng.Intn(6)
		l.Bathrooms = rng.Intn(4)
		l.Amenities = nil
		for _, a := range amenities {
			if rng.Intn(2) == 0 {
				l.Amenities = append(l.Amenities, a)
			}
		}

		f := alerts.FilterSpec{
			City:         cities[rng.Intn(len(cities))],
			MinPrice:     floatPtr(float64(rng.Intn(5_000_000))),
			MaxPrice:     floatPtr(float64(5_000_000 + rng.Intn(5_000_000))),
			MinArea:      floatPtr(float64(rng.Intn(1500))),
			MinBedrooms:  floatPtr(float64(rng.Intn(4))),
			MinBathrooms: floatPtr(float64(rng.Intn(3))),
			Amenities:    amenities[:rng.Intn(3)],
		}
		if !alerts.Matches(l, f) {
			continue
		}

		for _, relax := range relaxations() {
			relaxed := f
			relax(&relaxed)
			assert.True(t, alerts.Matches(l, relaxed), "relaxing a satisfied filter must keep the match")
		}
	}
}

func relaxations() []func(*alerts.FilterSpec) {
	return []func(*alerts.FilterSpec){
		func(f *alerts.FilterSpec) { f.City = "" },
		func(f *alerts.FilterSpec) { f.MinPrice = nil },
		func(f *alerts.FilterSpec) { f.MaxPrice = nil },
		func(f *alerts.FilterSpec) { f.MinArea = nil },
		func(f *alerts.FilterSpec) { f.MinBedrooms = nil },
		func(f *alerts.FilterSpec) { f.MinBathrooms = nil },
		func(f *alerts.FilterSpec) { f.Amenities = nil },
	}
}
