package market

// GeoPoint is a WGS84 coordinate in decimal degrees.
type GeoPoint struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lng float64 `json:"lng" yaml:"lng"`
}

// City is a served city with the reference coordinate used when a supplier
// has no location of its own.
type City struct {
	Name   string   `json:"name"`
	Center GeoPoint `json:"center"`
}

var Cities = []City{
	{Name: "Mumbai", Center: GeoPoint{Lat: 19.0760, Lng: 72.8777}},
	{Name: "Delhi", Center: GeoPoint{Lat: 28.7041, Lng: 77.1025}},
	{Name: "Bangalore", Center: GeoPoint{Lat: 12.9716, Lng: 77.5946}},
	{Name: "Chennai", Center: GeoPoint{Lat: 13.0827, Lng: 80.2707}},
	{Name: "Kolkata", Center: GeoPoint{Lat: 22.5726, Lng: 88.3639}},
	{Name: "Hyderabad", Center: GeoPoint{Lat: 17.3850, Lng: 78.4867}},
	{Name: "Pune", Center: GeoPoint{Lat: 18.5204, Lng: 73.8567}},
	{Name: "Ahmedabad", Center: GeoPoint{Lat: 23.0225, Lng: 72.5714}},
	{Name: "Jaipur", Center: GeoPoint{Lat: 26.9124, Lng: 75.7873}},
	{Name: "Lucknow", Center: GeoPoint{Lat: 26.8467, Lng: 80.9462}},
}

// CityCenter returns the reference coordinate of a served city.
func CityCenter(name string) (GeoPoint, bool) {
	for _, c := range Cities {
		if c.Name == name {
			return c.Center, true
		}
	}
	return GeoPoint{}, false
}
