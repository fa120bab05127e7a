package alerts

import "strings"

// Matches reports whether listing satisfies every constrained clause of filter.
// It is pure and safe for concurrent use. Callers only pass published listings.
func Matches(listing ListingSnapshot, filter FilterSpec) bool {
	if filter.ListingType != "" && listing.ListingType != filter.ListingType {
		return false
	}
	if filter.PropertyType != "" && listing.PropertyType != filter.PropertyType {
		return false
	}
	if filter.City != "" && listing.City != filter.City {
		return false
	}
	if !withinRange(listing.Price, filter.MinPrice, filter.MaxPrice) {
		return false
	}
	if !withinRange(listing.Size, filter.MinArea, filter.MaxArea) {
		return false
	}
	if !withinRange(float64(listing.Bedrooms), filter.MinBedrooms, nil) {
		return false
	}
	if !withinRange(float64(listing.Bathrooms), filter.MinBathrooms, nil) {
		return false
	}
	if filter.SearchText != "" && !containsText(listing, filter.SearchText) {
		return false
	}
	return hasAllAmenities(listing.Amenities, filter.Amenities)
}

// withinRange checks v against optional inclusive bounds.
func withinRange(v float64, lo, hi *float64) bool {
	if lo != nil && v < *lo {
		return false
	}
	if hi != nil && v > *hi {
		return false
	}
	return true
}

func containsText(listing ListingSnapshot, text string) bool {
	needle := strings.ToLower(text)
	return strings.Contains(strings.ToLower(listing.Title), needle) ||
		strings.Contains(strings.ToLower(listing.Area), needle)
}

func hasAllAmenities(have, want []string) bool {
	if len(want) == 0 {
		return true
	}
	set := make(map[string]struct{}, len(have))
	for _, a := range have {
		set[a] = struct{}{}
	}
	for _, a := range want {
		if _, ok := set[a]; !ok {
			return false
		}
	}
	return true
}
