package service

import (
	"context"
	"sort"

	"github.com/forgo/trailhead/api/internal/model"
)

// TopRatedThreshold is the minimum average rating counted by tour stats.
const TopRatedThreshold = 4.5

// TourStore defines the tour queries behind the aggregate endpoints
type TourStore interface {
	Stats(ctx context.Context, minRating float64) ([]model.TourStats, error)
	FindSchedules(ctx context.Context) ([]*model.Tour, error)
	FindStartsInBox(ctx context.Context, minLat, maxLat, minLng, maxLng float64) ([]*model.Tour, error)
	FindStartLocations(ctx context.Context) ([]*model.Tour, error)
}

// TourService handles the tour endpoints beyond plain CRUD
type TourService struct {
	tours TourStore
	geo   *GeoService
}

// NewTourService creates a new tour service
func NewTourService(tours TourStore, geo *GeoService) *TourService {
	return &TourService{tours: tours, geo: geo}
}

// Stats aggregates well-rated tours per difficulty
func (s *TourService) Stats(ctx context.Context) ([]model.TourStats, error) {
	stats, err := s.tours.Stats(ctx, TopRatedThreshold)
	if err != nil {
		return nil, err
	}
	if stats == nil {
		stats = []model.TourStats{}
	}
	return stats, nil
}

// MonthlyPlan counts tour starts per month of year, busiest month first
func (s *TourService) MonthlyPlan(ctx context.Context, year int) ([]model.MonthlyPlan, error) {
	if year < 1000 || year > 9999 {
		return nil, ErrInvalidYear
	}

	tours, err := s.tours.FindSchedules(ctx)
	if err != nil {
		return nil, err
	}

	byMonth := map[int]*model.MonthlyPlan{}
	for _, t := range tours {
		for _, start := range t.StartDates {
			start = start.UTC()
			if start.Year() != year {
				continue
			}
			month := int(start.Month())
			plan, ok := byMonth[month]
			if !ok {
				plan = &model.MonthlyPlan{Month: month}
				byMonth[month] = plan
			}
			plan.NumTourStarts++
			plan.Tours = append(plan.Tours, t.Name)
		}
	}

	plans := make([]model.MonthlyPlan, 0, len(byMonth))
	for _, p := range byMonth {
		plans = append(plans, *p)
	}
	sort.Slice(plans, func(i, j int) bool {
		if plans[i].NumTourStarts != plans[j].NumTourStarts {
			return plans[i].NumTourStarts > plans[j].NumTourStarts
		}
		return plans[i].Month < plans[j].Month
	})
	if len(plans) > 12 {
		plans = plans[:12]
	}
	return plans, nil
}

// ToursWithin returns tours starting within distance of latlng
func (s *TourService) ToursWithin(ctx context.Context, distance float64, latlng, unit string) ([]*model.Tour, error) {
	lat, lng, err := ParseLatLng(latlng)
	if err != nil {
		return nil, err
	}
	if distance <= 0 {
		return nil, ErrInvalidDistance
	}
	radiusKm, err := ToKilometers(distance, unit)
	if err != nil {
		return nil, err
	}

	box := s.geo.GetBoundingBox(lat, lng, radiusKm)
	candidates, err := s.tours.FindStartsInBox(ctx, box.MinLat, box.MaxLat, box.MinLng, box.MaxLng)
	if err != nil {
		return nil, err
	}

	tours := make([]*model.Tour, 0, len(candidates))
	for _, t := range candidates {
		if t.StartLocation == nil || len(t.StartLocation.Coordinates) != 2 {
			continue
		}
		if s.geo.IsWithinRadius(lat, lng, t.StartLocation.Lat(), t.StartLocation.Lng(), radiusKm) {
			tours = append(tours, t)
		}
	}
	return tours, nil
}

// Distances returns the distance from latlng to every tour start, nearest
// first
func (s *TourService) Distances(ctx context.Context, latlng, unit string) ([]model.TourDistance, error) {
	lat, lng, err := ParseLatLng(latlng)
	if err != nil {
		return nil, err
	}
	if _, err := FromKilometers(0, unit); err != nil {
		return nil, err
	}

	tours, err := s.tours.FindStartLocations(ctx)
	if err != nil {
		return nil, err
	}

	distances := make([]model.TourDistance, 0, len(tours))
	for _, t := range tours {
		if t.StartLocation == nil || len(t.StartLocation.Coordinates) != 2 {
			continue
		}
		km := s.geo.HaversineDistance(lat, lng, t.StartLocation.Lat(), t.StartLocation.Lng())
		d, _ := FromKilometers(km, unit)
		distances = append(distances, model.TourDistance{ID: t.ID, Name: t.Name, Distance: d})
	}
	sort.SliceStable(distances, func(i, j int) bool { return distances[i].Distance < distances[j].Distance })
	return distances, nil
}
