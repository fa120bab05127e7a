package alerts

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
)

// filter keys as written by the API; the snake_case aliases are accepted on read.
const (
	keyListingType  = "listingType"
	keyPropertyType = "propertyType"
	keyCity         = "city"
	keyMinPrice     = "minPrice"
	keyMaxPrice     = "maxPrice"
	keyMinArea      = "minArea"
	keyMaxArea      = "maxArea"
	keyMinBedrooms  = "minBedrooms"
	keyMinBathrooms = "minBathrooms"
	keySearchText   = "searchText"
	keyAmenities    = "amenities"
)

var snakeAliases = map[string]string{
	keyListingType:  "listing_type",
	keyPropertyType: "property_type",
	keyMinPrice:     "min_price",
	keyMaxPrice:     "max_price",
	keyMinArea:      "min_area",
	keyMaxArea:      "max_area",
	keyMinBedrooms:  "min_bedrooms",
	keyMinBathrooms: "min_bathrooms",
	keySearchText:   "search_text",
}

// ParseFilter decodes a stored filter document. Values that cannot be
// interpreted are dropped, so the corresponding clause becomes unconstrained.
// Unknown keys are ignored. It never fails.
func ParseFilter(raw map[string]interface{}) FilterSpec {
	var f FilterSpec
	if raw == nil {
		return f
	}
	lookup := func(key string) (interface{}, bool) {
		if v, ok := raw[key]; ok && v != nil {
			return v, true
		}
		if alias, ok := snakeAliases[key]; ok {
			if v, ok := raw[alias]; ok && v != nil {
				return v, true
			}
		}
		return nil, false
	}

	if v, ok := lookup(keyListingType); ok {
		f.ListingType = asString(v)
	}
	if v, ok := lookup(keyPropertyType); ok {
		f.PropertyType = asString(v)
	}
	if v, ok := lookup(keyCity); ok {
		f.City = asString(v)
	}
	if v, ok := lookup(keySearchText); ok {
		f.SearchText = strings.TrimSpace(asString(v))
	}
	if v, ok := lookup(keyMinPrice); ok {
		f.MinPrice = asNumber(v)
	}
	if v, ok := lookup(keyMaxPrice); ok {
		f.MaxPrice = asNumber(v)
	}
	if v, ok := lookup(keyMinArea); ok {
		f.MinArea = asNumber(v)
	}
	if v, ok := lookup(keyMaxArea); ok {
		f.MaxArea = asNumber(v)
	}
	if v, ok := lookup(keyMinBedrooms); ok {
		f.MinBedrooms = asNumber(v)
	}
	if v, ok := lookup(keyMinBathrooms); ok {
		f.MinBathrooms = asNumber(v)
	}
	if v, ok := lookup(keyAmenities); ok {
		f.Amenities = asStrings(v)
	}
	return f
}

// ToMap renders the canonical document form of f. Absent fields are omitted.
func (f FilterSpec) ToMap() map[string]interface{} {
	m := make(map[string]interface{})
	setString := func(key, v string) {
		if v != "" {
			m[key] = v
		}
	}
	setNumber := func(key string, v *float64) {
		if v != nil {
			m[key] = *v
		}
	}
	setString(keyListingType, f.ListingType)
	setString(keyPropertyType, f.PropertyType)
	setString(keyCity, f.City)
	setString(keySearchText, f.SearchText)
	setNumber(keyMinPrice, f.MinPrice)
	setNumber(keyMaxPrice, f.MaxPrice)
	setNumber(keyMinArea, f.MinArea)
	setNumber(keyMaxArea, f.MaxArea)
	setNumber(keyMinBedrooms, f.MinBedrooms)
	setNumber(keyMinBathrooms, f.MinBathrooms)
	if len(f.Amenities) > 0 {
		m[keyAmenities] = append([]string(nil), f.Amenities...)
	}
	return m
}

// IsEmpty reports whether f constrains nothing.
func (f FilterSpec) IsEmpty() bool {
	return len(f.ToMap()) == 0
}

func asString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	}
	return ""
}

func asNumber(v interface{}) *float64 {
	var n float64
	switch t := v.(type) {
	case float64:
		n = t
	case float32:
		n = float64(t)
	case int:
		n = float64(t)
	case int32:
		n = float64(t)
	case int64:
		n = float64(t)
	case uint32:
		n = float64(t)
	case uint64:
		n = float64(t)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return nil
		}
		n = parsed
	case fmt.Stringer:
		// Decimal128 and similar wrappers
		parsed, err := strconv.ParseFloat(strings.TrimSpace(t.String()), 64)
		if err != nil {
			return nil
		}
		n = parsed
	default:
		return nil
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return nil
	}
	return &n
}

func asStrings(v interface{}) []string {
	var out []string
	add := func(s string) {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	switch t := v.(type) {
	case string:
		for _, part := range strings.Split(t, ",") {
			add(part)
		}
		return out
	case []string:
		for _, s := range t {
			add(s)
		}
		return out
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil
	}
	for i := 0; i < rv.Len(); i++ {
		if s, ok := rv.Index(i).Interface().(string); ok {
			add(s)
		}
	}
	return out
}
