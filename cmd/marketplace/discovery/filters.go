package discovery

import (
	"math"
	"strings"

	"github.com/vendorlink/marketplace/models/market"
)

// SortKey selects the comparator applied after filtering.
type SortKey string

const (
	SortByRating   SortKey = "rating"
	SortByDistance SortKey = "distance"
	SortByName     SortKey = "name"
)

// ParseSortKey maps free text onto a SortKey. Anything unrecognised sorts by rating.
func ParseSortKey(s string) SortKey {
	switch SortKey(strings.ToLower(strings.TrimSpace(s))) {
	case SortByDistance:
		return SortByDistance
	case SortByName:
		return SortByName
	default:
		return SortByRating
	}
}

// Filters is the ephemeral filter state of a supplier listing. The zero value
// filters nothing.
type Filters struct {
	Search       string           `json:"search,omitempty"`
	Category     string           `json:"category,omitempty"`
	City         string           `json:"city,omitempty"`
	Rating       float64          `json:"rating,omitempty"`
	Distance     float64          `json:"distance,omitempty"`
	VerifiedOnly bool             `json:"verifiedOnly,omitempty"`
	Origin       *market.GeoPoint `json:"origin,omitempty"`
}

func (f Filters) searchActive() bool   { return strings.TrimSpace(f.Search) != "" }
func (f Filters) categoryActive() bool { return f.Category != "" }
func (f Filters) cityActive() bool     { return f.City != "" }
func (f Filters) ratingActive() bool   { return usableThreshold(f.Rating) }
func (f Filters) distanceActive() bool { return usableThreshold(f.Distance) }

// ActiveCount reports how many filter fields currently constrain the listing.
func (f Filters) ActiveCount() int {
	n := 0
	for _, active := range []bool{
		f.searchActive(),
		f.categoryActive(),
		f.cityActive(),
		f.ratingActive(),
		f.distanceActive(),
		f.VerifiedOnly,
	} {
		if active {
			n++
		}
	}
	return n
}

// usableThreshold treats zero, negative and non-finite thresholds as "no filter".
func usableThreshold(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}
