package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/resort-scheduler/internal/persistence"
)

type availabilityFixture struct {
	bookings *stubBookingStore
	sessions *stubSessionStore
	catalog  *stubCatalogStore
	service  *AvailabilityService
}

func newAvailabilityFixture() *availabilityFixture {
	f := &availabilityFixture{
		bookings: newStubBookingStore(),
		sessions: newStubSessionStore(),
		catalog:  newStubCatalogStore(),
	}
	f.service = NewAvailabilityService(f.bookings, f.sessions, f.catalog)
	return f
}

func (f *availabilityFixture) seedRoomBooking(id string, status string, checkIn, checkOut time.Time) {
	roomTypeID := "rt1"
	f.bookings.bookings[id] = &persistence.Booking{
		ID:         id,
		Type:       persistence.BookingRoom,
		RoomTypeID: &roomTypeID,
		CheckIn:    &checkIn,
		CheckOut:   &checkOut,
		Status:     status,
	}
}

func TestCheckRoomAvailabilityCountsOverlaps(t *testing.T) {
	f := newAvailabilityFixture()
	f.catalog.roomTypes["rt1"] = &persistence.RoomType{
		ID: "rt1", Slug: "garden-view", Title: "Garden View", Stock: 2, Active: true,
	}
	f.seedRoomBooking("b1", persistence.StatusConfirmed, date(2025, time.November, 1), date(2025, time.November, 3))
	f.seedRoomBooking("b2", persistence.StatusPending, date(2025, time.November, 1), date(2025, time.November, 3))
	f.seedRoomBooking("b3", persistence.StatusCancelled, date(2025, time.November, 1), date(2025, time.November, 3))

	result, err := f.service.CheckRoomAvailability(context.Background(), CheckRoomAvailabilityParams{
		CheckIn:  date(2025, time.November, 2),
		CheckOut: date(2025, time.November, 4),
		Guests:   2,
	})
	if err != nil {
		t.Fatalf("CheckRoomAvailability failed: %v", err)
	}
	if len(result.Rooms) != 1 {
		t.Fatalf("expected 1 room type, got %d", len(result.Rooms))
	}

	// Both live bookings straddle the query window; the cancelled one does not count.
	room := result.Rooms[0]
	if room.OccupiedUnits != 2 {
		t.Errorf("expected 2 occupied units, got %d", room.OccupiedUnits)
	}
	if room.AvailableUnits != 0 {
		t.Errorf("expected 0 available units, got %d", room.AvailableUnits)
	}
	if result.AvailableUnits != 0 {
		t.Errorf("expected aggregate of 0 units, got %d", result.AvailableUnits)
	}
	if got := result.Summary["garden-view"]; got != 0 {
		t.Errorf("expected summary entry of 0 units, got %d", got)
	}
}

func TestCheckRoomAvailabilityBackToBackStays(t *testing.T) {
	f := newAvailabilityFixture()
	f.catalog.roomTypes["rt1"] = &persistence.RoomType{
		ID: "rt1", Slug: "garden-view", Title: "Garden View", Stock: 1, Active: true,
	}
	f.seedRoomBooking("b1", persistence.StatusConfirmed, date(2025, time.November, 1), date(2025, time.November, 3))

	result, err := f.service.CheckRoomAvailability(context.Background(), CheckRoomAvailabilityParams{
		CheckIn:  date(2025, time.November, 3),
		CheckOut: date(2025, time.November, 5),
	})
	if err != nil {
		t.Fatalf("CheckRoomAvailability failed: %v", err)
	}
	if result.Rooms[0].AvailableUnits != 1 {
		t.Errorf("checkout day should not block a new check-in: available=%d", result.Rooms[0].AvailableUnits)
	}
}

func TestCheckRoomAvailabilityClosedRetreatBlackout(t *testing.T) {
	f := newAvailabilityFixture()
	f.catalog.roomTypes["rt1"] = &persistence.RoomType{
		ID: "rt1", Slug: "garden-view", Title: "Garden View", Stock: 4, Active: true,
	}
	f.catalog.retreats["ret1"] = &persistence.Retreat{
		ID: "ret1", Name: "Silent Week",
		StartDate: date(2025, time.November, 10), EndDate: date(2025, time.November, 14),
		Closed: true, Active: true,
	}

	result, err := f.service.CheckRoomAvailability(context.Background(), CheckRoomAvailabilityParams{
		CheckIn:  date(2025, time.November, 12),
		CheckOut: date(2025, time.November, 13),
	})
	if err != nil {
		t.Fatalf("CheckRoomAvailability failed: %v", err)
	}
	if result.Message == "" {
		t.Error("expected a blackout message")
	}
	for _, room := range result.Rooms {
		if room.AvailableUnits != 0 {
			t.Errorf("room %s available during blackout: %d", room.Slug, room.AvailableUnits)
		}
	}
	if result.AvailableUnits != 0 {
		t.Errorf("expected aggregate of 0 units during blackout, got %d", result.AvailableUnits)
	}
	if got, ok := result.Summary["garden-view"]; !ok || got != 0 {
		t.Errorf("expected zeroed summary entry during blackout, got %d (present=%v)", got, ok)
	}

	// Stay ending on the retreat's first day is unaffected.
	clear, err := f.service.CheckRoomAvailability(context.Background(), CheckRoomAvailabilityParams{
		CheckIn:  date(2025, time.November, 8),
		CheckOut: date(2025, time.November, 10),
	})
	if err != nil {
		t.Fatalf("CheckRoomAvailability failed: %v", err)
	}
	if clear.Message != "" {
		t.Errorf("unexpected blackout for adjacent window: %q", clear.Message)
	}
	if clear.Rooms[0].AvailableUnits != 4 {
		t.Errorf("expected full stock, got %d", clear.Rooms[0].AvailableUnits)
	}
}

func TestCheckRoomAvailabilityUnknownRoomType(t *testing.T) {
	f := newAvailabilityFixture()
	_, err := f.service.CheckRoomAvailability(context.Background(), CheckRoomAvailabilityParams{
		RoomType: "penthouse",
		CheckIn:  date(2025, time.November, 1),
		CheckOut: date(2025, time.November, 2),
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCheckRoomAvailabilityFiltersByPartySize(t *testing.T) {
	f := newAvailabilityFixture()
	two := 2
	six := 6
	f.catalog.roomTypes["rt1"] = &persistence.RoomType{
		ID: "rt1", Slug: "single", Title: "Single", MaxGuests: &two, Stock: 3, Active: true,
	}
	f.catalog.roomTypes["rt2"] = &persistence.RoomType{
		ID: "rt2", Slug: "family-suite", Title: "Family Suite", MaxGuests: &six, Stock: 2, Active: true,
	}

	result, err := f.service.CheckRoomAvailability(context.Background(), CheckRoomAvailabilityParams{
		CheckIn:  date(2025, time.November, 1),
		CheckOut: date(2025, time.November, 2),
		Guests:   4,
		Rooms:    1,
	})
	if err != nil {
		t.Fatalf("CheckRoomAvailability failed: %v", err)
	}
	if len(result.Rooms) != 1 || result.Rooms[0].Slug != "family-suite" {
		t.Fatalf("expected only the family suite, got %+v", result.Rooms)
	}

	// Splitting the party across two rooms lets smaller rooms qualify.
	result, err = f.service.CheckRoomAvailability(context.Background(), CheckRoomAvailabilityParams{
		CheckIn:  date(2025, time.November, 1),
		CheckOut: date(2025, time.November, 2),
		Guests:   4,
		Rooms:    2,
	})
	if err != nil {
		t.Fatalf("CheckRoomAvailability failed: %v", err)
	}
	if len(result.Rooms) != 2 {
		t.Fatalf("expected both room types, got %d", len(result.Rooms))
	}
	if result.AvailableUnits != 5 {
		t.Errorf("expected aggregate of 5 free units, got %d", result.AvailableUnits)
	}
	if result.Summary["single"] != 3 || result.Summary["family-suite"] != 2 {
		t.Errorf("unexpected per-slug summary: %v", result.Summary)
	}
}

func TestCheckRoomAvailabilityValidation(t *testing.T) {
	f := newAvailabilityFixture()
	_, err := f.service.CheckRoomAvailability(context.Background(), CheckRoomAvailabilityParams{
		CheckIn:  date(2025, time.November, 3),
		CheckOut: date(2025, time.November, 1),
	})
	var vErr *ValidationError
	if !asValidationError(err, &vErr) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCheckSessionAvailability(t *testing.T) {
	f := newAvailabilityFixture()
	session := persistence.ClassSession{
		ID: "sess1", ClassID: "yoga", Studio: "Main",
		StartAt:  date(2025, time.October, 6).Add(18 * time.Hour),
		Capacity: 10, BookedCount: 7, Status: persistence.SessionScheduled,
	}
	f.sessions.sessions[f.sessions.identity(session)] = &session

	availability, err := f.service.CheckSessionAvailability(context.Background(), "sess1")
	if err != nil {
		t.Fatalf("CheckSessionAvailability failed: %v", err)
	}
	if availability.Remaining != 3 {
		t.Errorf("expected 3 remaining, got %d", availability.Remaining)
	}
	if availability.Status != persistence.SessionScheduled {
		t.Errorf("expected scheduled, got %q", availability.Status)
	}

	session.BookedCount = 12
	availability, err = f.service.CheckSessionAvailability(context.Background(), "sess1")
	if err != nil {
		t.Fatalf("CheckSessionAvailability failed: %v", err)
	}
	if availability.Remaining != 0 {
		t.Errorf("remaining must floor at zero, got %d", availability.Remaining)
	}
	if availability.Status != persistence.SessionFull {
		t.Errorf("expected full, got %q", availability.Status)
	}

	if _, err := f.service.CheckSessionAvailability(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestListSessionsEnrichesAvailability(t *testing.T) {
	f := newAvailabilityFixture()
	session := persistence.ClassSession{
		ID: "sess1", ClassID: "yoga", Studio: "Main",
		StartAt:  date(2025, time.October, 6).Add(18 * time.Hour),
		Capacity: 10, BookedCount: 10, Status: persistence.SessionScheduled,
	}
	f.sessions.sessions[f.sessions.identity(session)] = &session

	listed, err := f.service.ListSessions(context.Background(), persistence.SessionFilter{})
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(listed) != 1 {
		t.Fatalf("expected 1 session, got %d", len(listed))
	}
	if listed[0].Availability.Status != persistence.SessionFull {
		t.Errorf("expected computed full status, got %q", listed[0].Availability.Status)
	}
}
