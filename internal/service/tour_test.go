package service

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/forgo/trailhead/api/internal/model"
)

// Mock implementations

type mockTourStore struct {
	tours    []*model.Tour
	stats    []model.TourStats
	minStats float64
	err      error
}

func (m *mockTourStore) Stats(ctx context.Context, minRating float64) ([]model.TourStats, error) {
	m.minStats = minRating
	return m.stats, m.err
}

func (m *mockTourStore) FindSchedules(ctx context.Context) ([]*model.Tour, error) {
	return m.tours, m.err
}

func (m *mockTourStore) FindStartsInBox(ctx context.Context, minLat, maxLat, minLng, maxLng float64) ([]*model.Tour, error) {
	if m.err != nil {
		return nil, m.err
	}
	var in []*model.Tour
	for _, t := range m.tours {
		if t.StartLocation == nil {
			continue
		}
		lat, lng := t.StartLocation.Lat(), t.StartLocation.Lng()
		if lat >= minLat && lat <= maxLat && lng >= minLng && lng <= maxLng {
			in = append(in, t)
		}
	}
	return in, nil
}

func (m *mockTourStore) FindStartLocations(ctx context.Context) ([]*model.Tour, error) {
	return m.tours, m.err
}

func startingAt(id, name string, lat, lng float64) *model.Tour {
	return &model.Tour{
		ID:            id,
		Name:          name,
		StartLocation: &model.Location{Type: "Point", Coordinates: []float64{lng, lat}},
	}
}

func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 9, 0, 0, 0, time.UTC)
}

// ============================================================================
// Stats Tests
// ============================================================================

func TestTourService_Stats_UsesTopRatedThreshold(t *testing.T) {
	t.Parallel()
	store := &mockTourStore{}
	svc := NewTourService(store, NewGeoService())

	stats, err := svc.Stats(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if store.minStats != TopRatedThreshold {
		t.Errorf("expected threshold %v, got %v", TopRatedThreshold, store.minStats)
	}
	if stats == nil {
		t.Error("expected empty non-nil stats")
	}
}

// ============================================================================
// MonthlyPlan Tests
// ============================================================================

func TestTourService_MonthlyPlan(t *testing.T) {
	t.Parallel()
	store := &mockTourStore{tours: []*model.Tour{
		{Name: "The Forest Hiker", StartDates: []time.Time{day(2021, time.April, 25), day(2021, time.July, 20), day(2022, time.April, 5)}},
		{Name: "The Sea Explorer", StartDates: []time.Time{day(2021, time.June, 19), day(2021, time.July, 20)}},
		{Name: "The Snow Adventurer", StartDates: []time.Time{day(2021, time.July, 2)}},
	}}
	svc := NewTourService(store, NewGeoService())

	plan, err := svc.MonthlyPlan(context.Background(), 2021)
	if err != nil {
		t.Fatal(err)
	}

	if len(plan) != 3 {
		t.Fatalf("expected 3 months, got %d", len(plan))
	}
	if plan[0].Month != 7 || plan[0].NumTourStarts != 3 {
		t.Errorf("expected July with 3 starts first, got %+v", plan[0])
	}
	if len(plan[0].Tours) != 3 {
		t.Errorf("expected 3 tour names in July, got %v", plan[0].Tours)
	}
	if plan[1].Month != 4 || plan[2].Month != 6 {
		t.Errorf("expected ties ordered by month, got %d then %d", plan[1].Month, plan[2].Month)
	}
}

func TestTourService_MonthlyPlan_InvalidYear(t *testing.T) {
	t.Parallel()
	svc := NewTourService(&mockTourStore{}, NewGeoService())

	for _, year := range []int{0, 999, 10000} {
		if _, err := svc.MonthlyPlan(context.Background(), year); !errors.Is(err, ErrInvalidYear) {
			t.Errorf("year %d: expected ErrInvalidYear, got %v", year, err)
		}
	}
}

// ============================================================================
// ToursWithin / Distances Tests
// ============================================================================

func geoTours() *mockTourStore {
	return &mockTourStore{tours: []*model.Tour{
		startingAt("tour:near", "The Near Walker", 34.05, -118.1),
		startingAt("tour:far", "The Far Rambler", 34.0, -117.0),
		{ID: "tour:nowhere", Name: "The Lost Tour"},
	}}
}

func TestTourService_ToursWithin(t *testing.T) {
	t.Parallel()
	svc := NewTourService(geoTours(), NewGeoService())

	tours, err := svc.ToursWithin(context.Background(), 50, "34.0,-118.0", UnitKilometers)
	if err != nil {
		t.Fatal(err)
	}
	if len(tours) != 1 || tours[0].ID != "tour:near" {
		t.Errorf("expected only tour:near, got %v", tours)
	}

	tours, err = svc.ToursWithin(context.Background(), 100, "34.0,-118.0", UnitMiles)
	if err != nil {
		t.Fatal(err)
	}
	if len(tours) != 2 {
		t.Errorf("expected both located tours within 100mi, got %d", len(tours))
	}
}

func TestTourService_ToursWithin_InvalidInput(t *testing.T) {
	t.Parallel()
	svc := NewTourService(geoTours(), NewGeoService())
	ctx := context.Background()

	tests := []struct {
		name     string
		distance float64
		latlng   string
		unit     string
		want     error
	}{
		{"missing comma", 10, "34.0", UnitMiles, ErrInvalidLatLng},
		{"latitude out of range", 10, "91,0", UnitMiles, ErrInvalidLatLng},
		{"bad unit", 10, "34,-118", "ft", ErrInvalidUnit},
		{"zero distance", 0, "34,-118", UnitMiles, ErrInvalidDistance},
	}
	for _, tt := range tests {
		if _, err := svc.ToursWithin(ctx, tt.distance, tt.latlng, tt.unit); !errors.Is(err, tt.want) {
			t.Errorf("%s: expected %v, got %v", tt.name, tt.want, err)
		}
	}
}

func TestTourService_Distances_NearestFirst(t *testing.T) {
	t.Parallel()
	svc := NewTourService(geoTours(), NewGeoService())

	km, err := svc.Distances(context.Background(), "34.0,-118.0", UnitKilometers)
	if err != nil {
		t.Fatal(err)
	}
	if len(km) != 2 {
		t.Fatalf("expected 2 distances, got %d", len(km))
	}
	if km[0].ID != "tour:near" || km[0].Distance >= km[1].Distance {
		t.Errorf("expected nearest first, got %+v", km)
	}

	mi, err := svc.Distances(context.Background(), "34.0,-118.0", UnitMiles)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(mi[1].Distance*kmPerMile-km[1].Distance) > 1e-6 {
		t.Errorf("expected miles to convert from km, got %v mi vs %v km", mi[1].Distance, km[1].Distance)
	}
}

func TestTourService_Distances_InvalidUnit(t *testing.T) {
	t.Parallel()
	svc := NewTourService(geoTours(), NewGeoService())

	if _, err := svc.Distances(context.Background(), "34,-118", "yd"); !errors.Is(err, ErrInvalidUnit) {
		t.Errorf("expected ErrInvalidUnit, got %v", err)
	}
}
