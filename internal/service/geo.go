package service

import (
	"math"
	"strconv"
	"strings"
)

// GeoService handles geographic calculations
type GeoService struct{}

// NewGeoService creates a new geo service
func NewGeoService() *GeoService {
	return &GeoService{}
}

// EarthRadiusKm is the Earth's radius in kilometers
const EarthRadiusKm = 6371.0

// Distance units accepted by the geo endpoints
const (
	UnitMiles      = "mi"
	UnitKilometers = "km"

	kmPerMile = 1.609344
)

// HaversineDistance calculates the distance between two points in kilometers
// using the Haversine formula (accounts for Earth's curvature)
func (s *GeoService) HaversineDistance(lat1, lng1, lat2, lng2 float64) float64 {
	lat1Rad := lat1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	deltaLat := (lat2 - lat1) * math.Pi / 180
	deltaLng := (lng2 - lng1) * math.Pi / 180

	a := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(deltaLng/2)*math.Sin(deltaLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusKm * c
}

// IsWithinRadius checks if a point is within a given radius of another point
func (s *GeoService) IsWithinRadius(centerLat, centerLng, pointLat, pointLng, radiusKm float64) bool {
	return s.HaversineDistance(centerLat, centerLng, pointLat, pointLng) <= radiusKm
}

// BoundingBox is a rough prefilter applied in the store before the exact
// Haversine check.
type BoundingBox struct {
	MinLat float64 `json:"min_lat"`
	MaxLat float64 `json:"max_lat"`
	MinLng float64 `json:"min_lng"`
	MaxLng float64 `json:"max_lng"`
}

// GetBoundingBox returns a bounding box around a center point with given
// radius. Near the poles or for huge radii the box widens to every
// longitude.
func (s *GeoService) GetBoundingBox(lat, lng, radiusKm float64) BoundingBox {
	// At equator: 1 degree latitude ≈ 111 km
	latDelta := radiusKm / 111.0
	box := BoundingBox{
		MinLat: math.Max(lat-latDelta, -90),
		MaxLat: math.Min(lat+latDelta, 90),
		MinLng: -180,
		MaxLng: 180,
	}

	cos := math.Cos(lat * math.Pi / 180)
	if cos > 0.01 {
		lngDelta := radiusKm / (111.0 * cos)
		if lngDelta < 180 {
			box.MinLng = math.Max(lng-lngDelta, -180)
			box.MaxLng = math.Min(lng+lngDelta, 180)
		}
	}
	return box
}

// ToKilometers converts a distance in unit to kilometers
func ToKilometers(distance float64, unit string) (float64, error) {
	switch unit {
	case UnitMiles:
		return distance * kmPerMile, nil
	case UnitKilometers:
		return distance, nil
	}
	return 0, ErrInvalidUnit
}

// FromKilometers converts kilometers to unit
func FromKilometers(km float64, unit string) (float64, error) {
	switch unit {
	case UnitMiles:
		return km / kmPerMile, nil
	case UnitKilometers:
		return km, nil
	}
	return 0, ErrInvalidUnit
}

// ParseLatLng parses "lat,lng" into coordinates
func ParseLatLng(s string) (lat, lng float64, err error) {
	latStr, lngStr, ok := strings.Cut(s, ",")
	if !ok {
		return 0, 0, ErrInvalidLatLng
	}
	lat, err = strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err != nil || lat < -90 || lat > 90 {
		return 0, 0, ErrInvalidLatLng
	}
	lng, err = strconv.ParseFloat(strings.TrimSpace(lngStr), 64)
	if err != nil || lng < -180 || lng > 180 {
		return 0, 0, ErrInvalidLatLng
	}
	return lat, lng, nil
}
