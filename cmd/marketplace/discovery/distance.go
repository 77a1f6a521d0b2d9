package discovery

import (
	"hash/fnv"
	"math"

	"github.com/vendorlink/marketplace/models/market"
)

const earthRadiusKm = 6371.0

// DistanceEstimator assigns a distance in kilometres between the vendor and a
// supplier. ok is false when the distance is unknown.
type DistanceEstimator interface {
	Estimate(origin *market.GeoPoint, s *market.Supplier) (km float64, ok bool)
}

// GeoEstimator measures the great-circle distance between the vendor origin
// and the supplier's position (its own location or its city's center).
type GeoEstimator struct{}

func (GeoEstimator) Estimate(origin *market.GeoPoint, s *market.Supplier) (float64, bool) {
	if origin == nil {
		return 0, false
	}
	pos, ok := s.Position()
	if !ok {
		return 0, false
	}
	return haversine(*origin, pos), true
}

// StubEstimator is a placeholder for deployments without geolocation. It
// derives a fixed pseudo-distance in [0, MaxKm) from the supplier id, so the
// same supplier always gets the same distance. The value has no relation to
// real geography.
type StubEstimator struct {
	MaxKm float64
}

func (e StubEstimator) Estimate(_ *market.GeoPoint, s *market.Supplier) (float64, bool) {
	max := e.MaxKm
	if max <= 0 {
		max = 50
	}
	h := fnv.New32a()
	h.Write([]byte(s.ID))
	return float64(h.Sum32()%10000) / 10000 * max, true
}

func haversine(a, b market.GeoPoint) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(h)))
}
