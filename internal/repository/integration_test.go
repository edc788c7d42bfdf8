package repository_test

import (
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/forgo/trailhead/api/internal/database"
	"github.com/forgo/trailhead/api/internal/model"
	"github.com/forgo/trailhead/api/internal/query"
	"github.com/forgo/trailhead/api/internal/service"
	"github.com/forgo/trailhead/api/internal/testing/fixtures"
	"github.com/forgo/trailhead/api/internal/testing/helpers"
	"github.com/forgo/trailhead/api/internal/testing/testdb"
)

// These tests run against a real SurrealDB and are skipped unless
// TEST_DB_HOST is set.

func TestIntegration_TourQueryFeatures(t *testing.T) {
	tdb := testdb.New(t)
	f := fixtures.New(tdb.DB)

	f.CreateTour(t, fixtures.WithPrice(300), fixtures.WithDifficulty(model.DifficultyEasy))
	f.CreateTour(t, fixtures.WithPrice(700), fixtures.WithDifficulty(model.DifficultyEasy))
	f.CreateTour(t, fixtures.WithPrice(900), fixtures.WithDifficulty(model.DifficultyDifficult))
	f.CreateTour(t, fixtures.WithPrice(100), fixtures.Secret())

	params := url.Values{"difficulty": {"easy"}, "price[gte]": {"500"}, "sort": {"-price"}}
	q, err := query.New(query.Query{}, params).Filter().Sort().LimitFields().Paginate().Query()
	if err != nil {
		t.Fatalf("build query: %v", err)
	}

	tours, err := f.Tours.Find(tdb.Ctx(), q)
	if err != nil {
		t.Fatalf("Find() error: %v", err)
	}
	if len(tours) != 1 || tours[0].Price != 700 {
		t.Errorf("Find() = %d tours, want the single easy tour priced 700", len(tours))
	}

	all, err := f.Tours.Find(tdb.Ctx(), query.Query{})
	if err != nil {
		t.Fatalf("Find() error: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("Find() returned %d tours, want 3 (secret tour hidden)", len(all))
	}
}

func TestIntegration_TourNameUnique(t *testing.T) {
	tdb := testdb.New(t)
	f := fixtures.New(tdb.DB)

	tour := f.CreateTour(t)
	helpers.AssertRecordExists(t, tdb.DB, tour.ID)

	_, err := f.Tours.Create(tdb.Ctx(), map[string]interface{}{
		"name": tour.Name, "duration": 3, "max_group_size": 5, "difficulty": "easy",
		"price": 100, "summary": "dup", "image_cover": "c.jpg",
	})
	if !errors.Is(err, database.ErrDuplicate) {
		t.Errorf("Create() error = %v, want ErrDuplicate", err)
	}
}

func TestIntegration_ReviewRatingsAggregate(t *testing.T) {
	tdb := testdb.New(t)
	f := fixtures.New(tdb.DB)

	tour := f.CreateTour(t)
	ratings := service.NewRatingAggregator(f.Reviews, f.Tours)
	reviews := service.NewReviewModel(f.Reviews, ratings)

	var created []*model.Review
	for _, rating := range []float64{4, 5, 5} {
		user := f.CreateUser(t)
		review, err := reviews.Create(tdb.Ctx(), map[string]interface{}{
			"review": "Lovely", "rating": rating, "tour": tour.ID, "user": user.ID,
		})
		if err != nil {
			t.Fatalf("Create() error: %v", err)
		}
		created = append(created, review)
	}

	got, err := f.Tours.FindByID(tdb.Ctx(), tour.ID)
	if err != nil || got == nil {
		t.Fatalf("FindByID() = %v, %v", got, err)
	}
	if got.RatingsQuantity != 3 || got.RatingsAverage != 4.7 {
		t.Errorf("ratings = %d / %v, want 3 / 4.7", got.RatingsQuantity, got.RatingsAverage)
	}

	for _, r := range created {
		if _, err := reviews.FindByIDAndDelete(tdb.Ctx(), r.ID); err != nil {
			t.Fatalf("FindByIDAndDelete() error: %v", err)
		}
	}
	helpers.AssertRecordNotExists(t, tdb.DB, created[0].ID)
	if n := tdb.Count("review"); n != 0 {
		t.Errorf("review count = %d, want 0", n)
	}

	got, _ = f.Tours.FindByID(tdb.Ctx(), tour.ID)
	if got.RatingsQuantity != 0 || got.RatingsAverage != model.DefaultRatingsAverage {
		t.Errorf("ratings after delete = %d / %v, want 0 / %v", got.RatingsQuantity, got.RatingsAverage, model.DefaultRatingsAverage)
	}
}

func TestIntegration_OneReviewPerUserAndTour(t *testing.T) {
	tdb := testdb.New(t)
	f := fixtures.New(tdb.DB)

	tour := f.CreateTour(t)
	user := f.CreateUser(t)
	f.CreateReview(t, tour, user, 4)

	_, err := f.Reviews.Create(tdb.Ctx(), map[string]interface{}{
		"review": "Again", "rating": 2, "tour": tour.ID, "user": user.ID,
	})
	if !errors.Is(err, database.ErrDuplicate) {
		t.Errorf("Create() error = %v, want ErrDuplicate", err)
	}
}

func TestIntegration_DeactivatedUserHidden(t *testing.T) {
	tdb := testdb.New(t)
	f := fixtures.New(tdb.DB)

	user := f.CreateUser(t)
	if err := f.Users.Deactivate(tdb.Ctx(), user.ID); err != nil {
		t.Fatalf("Deactivate() error: %v", err)
	}

	got, err := f.Users.FindByID(tdb.Ctx(), user.ID)
	if err != nil {
		t.Fatalf("FindByID() error: %v", err)
	}
	if got != nil {
		t.Error("deactivated user should not be readable")
	}
	creds, err := f.Users.FindCredentialsByEmail(tdb.Ctx(), user.Email)
	if err != nil || creds != nil {
		t.Errorf("FindCredentialsByEmail() = %v, %v, want nil", creds, err)
	}
}

func TestIntegration_MonthlyPlanAndBookings(t *testing.T) {
	tdb := testdb.New(t)
	f := fixtures.New(tdb.DB)

	day := func(m time.Month, d int) time.Time { return time.Date(2027, m, d, 9, 0, 0, 0, time.UTC) }
	tour := f.CreateTour(t, fixtures.WithStartDates(day(time.July, 1), day(time.July, 20), day(time.March, 2)))
	user := f.CreateUser(t)
	f.CreateBooking(t, tour, user)
	f.CreateBooking(t, tour, user)

	plan, err := service.NewTourService(f.Tours, service.NewGeoService()).MonthlyPlan(tdb.Ctx(), 2027)
	if err != nil {
		t.Fatalf("MonthlyPlan() error: %v", err)
	}
	if len(plan) != 2 || plan[0].Month != 7 || plan[0].NumTourStarts != 2 {
		t.Errorf("MonthlyPlan() = %+v, want July first with 2 starts", plan)
	}

	ids, err := f.Bookings.FindTourIDsByUser(tdb.Ctx(), user.ID)
	if err != nil {
		t.Fatalf("FindTourIDsByUser() error: %v", err)
	}
	if len(ids) != 1 || ids[0] != tour.ID {
		t.Errorf("FindTourIDsByUser() = %v, want [%s]", ids, tour.ID)
	}
}
