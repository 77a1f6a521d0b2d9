package discovery

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/vendorlink/marketplace/models/market"
	"golang.org/x/exp/slices"
)

// IgnoredParam describes a query parameter that was present but did not
// become part of the filter state.
type IgnoredParam struct {
	Code   string `json:"code"`   // The parameter name (e.g., "rating")
	Value  string `json:"value"`  // The raw value supplied
	Reason string `json:"reason"` // Why it was ignored (e.g., "unknown-parameter", "not-a-number")
}

var validParams = []string{
	"search", "category", "city", "rating", "distance", "verifiedOnly", "sort", "lat", "lng",
}

// ParseFilters builds the filter state and sort key from query parameters.
// Malformed values never fail the request: they are left inactive and
// reported in the ignored list.
func ParseFilters(values url.Values) (Filters, SortKey, []IgnoredParam) {
	var (
		f       Filters
		ignored []IgnoredParam
	)

	for code, vals := range values {
		if !slices.Contains(validParams, code) {
			ignored = append(ignored, IgnoredParam{Code: code, Value: first(vals), Reason: "unknown-parameter"})
		}
	}

	f.Search = strings.TrimSpace(values.Get("search"))
	f.Category = strings.TrimSpace(values.Get("category"))
	f.City = strings.TrimSpace(values.Get("city"))

	if v, ok, bad := parseThreshold(values, "rating"); ok {
		f.Rating = v
	} else if bad != nil {
		ignored = append(ignored, *bad)
	}
	if v, ok, bad := parseThreshold(values, "distance"); ok {
		f.Distance = v
	} else if bad != nil {
		ignored = append(ignored, *bad)
	}

	if raw := values.Get("verifiedOnly"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			ignored = append(ignored, IgnoredParam{Code: "verifiedOnly", Value: raw, Reason: "not-a-boolean"})
		}
		f.VerifiedOnly = err == nil && b
	}

	if origin, bad := parseOrigin(values); origin != nil {
		f.Origin = origin
	} else if bad != nil {
		ignored = append(ignored, *bad)
	}

	sortKey := ParseSortKey(values.Get("sort"))
	if raw := values.Get("sort"); raw != "" && string(sortKey) != strings.ToLower(strings.TrimSpace(raw)) {
		ignored = append(ignored, IgnoredParam{Code: "sort", Value: raw, Reason: "unknown-sort-key"})
	}

	slices.SortFunc(ignored, func(a, b IgnoredParam) int {
		return strings.Compare(a.Code, b.Code)
	})
	return f, sortKey, ignored
}

func parseThreshold(values url.Values, code string) (float64, bool, *IgnoredParam) {
	raw := strings.TrimSpace(values.Get(code))
	if raw == "" {
		return 0, false, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false, &IgnoredParam{Code: code, Value: raw, Reason: "not-a-number"}
	}
	if !usableThreshold(v) {
		return 0, false, &IgnoredParam{Code: code, Value: raw, Reason: "out-of-range"}
	}
	return v, true, nil
}

func parseOrigin(values url.Values) (*market.GeoPoint, *IgnoredParam) {
	rawLat, rawLng := values.Get("lat"), values.Get("lng")
	if rawLat == "" && rawLng == "" {
		return nil, nil
	}
	lat, errLat := strconv.ParseFloat(rawLat, 64)
	lng, errLng := strconv.ParseFloat(rawLng, 64)
	if errLat != nil || errLng != nil || lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return nil, &IgnoredParam{Code: "lat,lng", Value: rawLat + "," + rawLng, Reason: "invalid-coordinate"}
	}
	return &market.GeoPoint{Lat: lat, Lng: lng}, nil
}

func first(vals []string) string {
	if len(vals) == 0 {
		return ""
	}
	return vals[0]
}
