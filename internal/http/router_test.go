package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/example/resort-scheduler/internal/application"
	"github.com/example/resort-scheduler/internal/persistence"
	"github.com/example/resort-scheduler/internal/schedule"
)

type stubAuthService struct {
	result  application.AuthenticateResult
	authErr error
	revoked []string
}

func (s *stubAuthService) Authenticate(ctx context.Context, params application.AuthenticateParams) (application.AuthenticateResult, error) {
	if s.authErr != nil {
		return application.AuthenticateResult{}, s.authErr
	}
	return s.result, nil
}

func (s *stubAuthService) RevokeSession(ctx context.Context, token string) error {
	s.revoked = append(s.revoked, token)
	return nil
}

type stubValidator struct {
	principals map[string]application.Principal
}

func (s *stubValidator) ValidateSession(ctx context.Context, token string) (application.Principal, error) {
	principal, ok := s.principals[token]
	if !ok {
		return application.Principal{}, application.ErrUnauthorized
	}
	return principal, nil
}

type stubScheduleService struct {
	result application.ScheduleResult
	err    error
}

func (s *stubScheduleService) GetSchedule(ctx context.Context, from, to time.Time) (application.ScheduleResult, error) {
	return s.result, s.err
}

type stubGridService struct {
	grid persistence.WeeklyGrid
	err  error
}

func (s *stubGridService) GetGrid(ctx context.Context, weekKey string) (persistence.WeeklyGrid, error) {
	return s.grid, s.err
}

func (s *stubGridService) SaveGrid(ctx context.Context, principal application.Principal, grid persistence.WeeklyGrid) (persistence.WeeklyGrid, error) {
	if !principal.IsAdmin {
		return persistence.WeeklyGrid{}, application.ErrUnauthorized
	}
	s.grid = grid
	return grid, nil
}

func (s *stubGridService) UpdateCell(ctx context.Context, principal application.Principal, weekKey, day, hour, studio, classID string) (persistence.WeeklyGrid, error) {
	if !principal.IsAdmin {
		return persistence.WeeklyGrid{}, application.ErrUnauthorized
	}
	return s.grid, s.err
}

type stubMaterializer struct {
	result application.MaterializeResult
	err    error
	calls  int
}

func (s *stubMaterializer) Materialize(ctx context.Context, from, to time.Time) (application.MaterializeResult, error) {
	s.calls++
	return s.result, s.err
}

type stubBookingHTTPService struct {
	booking persistence.Booking
	err     error
}

func (s *stubBookingHTTPService) CreateBooking(ctx context.Context, params application.CreateBookingParams) (persistence.Booking, error) {
	return s.booking, s.err
}

func (s *stubBookingHTTPService) ConfirmBooking(ctx context.Context, bookingID string) (persistence.Booking, error) {
	return s.booking, s.err
}

func (s *stubBookingHTTPService) CancelBooking(ctx context.Context, bookingID string) (persistence.Booking, error) {
	return s.booking, s.err
}

func (s *stubBookingHTTPService) GetBooking(ctx context.Context, bookingID string) (persistence.Booking, error) {
	return s.booking, s.err
}

type stubAvailabilityHTTPService struct {
	rooms    application.RoomAvailabilityResult
	sessions []application.SessionWithAvailability
	session  application.SessionAvailability
	err      error
}

func (s *stubAvailabilityHTTPService) CheckRoomAvailability(ctx context.Context, params application.CheckRoomAvailabilityParams) (application.RoomAvailabilityResult, error) {
	return s.rooms, s.err
}

func (s *stubAvailabilityHTTPService) CheckSessionAvailability(ctx context.Context, sessionID string) (application.SessionAvailability, error) {
	return s.session, s.err
}

func (s *stubAvailabilityHTTPService) ListSessions(ctx context.Context, filter persistence.SessionFilter) ([]application.SessionWithAvailability, error) {
	return s.sessions, s.err
}

func newTestRouter(cfg RouterConfig) http.Handler {
	if cfg.Validator == nil {
		cfg.Validator = &stubValidator{principals: map[string]application.Principal{
			"admin-token": {UserID: "admin1", IsAdmin: true},
			"guest-token": {UserID: "guest1"},
		}}
	}
	return NewRouter(cfg)
}

func TestLoginIssuesToken(t *testing.T) {
	expires := time.Date(2025, time.October, 2, 12, 0, 0, 0, time.UTC)
	auth := &stubAuthService{result: application.AuthenticateResult{
		User:    persistence.User{ID: "u1", IsAdmin: true},
		Session: persistence.AuthSession{Token: "tok123", ExpiresAt: expires},
	}}
	router := newTestRouter(RouterConfig{Auth: NewAuthHandler(auth, nil)})

	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{"email":"admin@example.com","password":"pw"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rec.Code)
	}
	if got := rec.Header().Get("X-Session-Token"); got != "tok123" {
		t.Errorf("X-Session-Token = %q", got)
	}

	var resp loginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Token != "tok123" || !resp.Principal.IsAdmin {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	auth := &stubAuthService{authErr: application.ErrInvalidCredentials}
	router := newTestRouter(RouterConfig{Auth: NewAuthHandler(auth, nil)})

	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{"email":"x","password":"y"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestGetScheduleReturnsOccurrences(t *testing.T) {
	start := time.Date(2025, time.October, 1, 18, 0, 0, 0, time.UTC)
	schedules := &stubScheduleService{result: application.ScheduleResult{
		Occurrences: []schedule.Occurrence{{
			Source: schedule.SourceRecurring, Date: "2025-10-01", Hour: "18:00",
			Start: start, End: start.Add(time.Hour), Studio: "Main", ClassID: "yoga",
		}},
		Warnings: []application.ConflictWarning{{Studio: "Main", Start: start, Message: "double booked"}},
	}}
	router := newTestRouter(RouterConfig{
		Schedules: NewScheduleHandler(schedules, &stubGridService{}, &stubMaterializer{}, time.UTC, nil),
	})

	req := httptest.NewRequest(http.MethodGet, "/schedule?from=2025-10-01&to=2025-10-08", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var resp scheduleResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Occurrences) != 1 || resp.Occurrences[0].ClassID != "yoga" {
		t.Errorf("unexpected occurrences %+v", resp.Occurrences)
	}
	if len(resp.Warnings) != 1 {
		t.Errorf("expected 1 warning, got %d", len(resp.Warnings))
	}
}

func TestGetScheduleRequiresWindow(t *testing.T) {
	router := newTestRouter(RouterConfig{
		Schedules: NewScheduleHandler(&stubScheduleService{}, &stubGridService{}, &stubMaterializer{}, time.UTC, nil),
	})

	req := httptest.NewRequest(http.MethodGet, "/schedule?from=2025-10-01", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestGridRoutesRequireSession(t *testing.T) {
	router := newTestRouter(RouterConfig{
		Schedules: NewScheduleHandler(&stubScheduleService{}, &stubGridService{}, &stubMaterializer{}, time.UTC, nil),
	})

	req := httptest.NewRequest(http.MethodGet, "/schedule/grid", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestMaterializeRequiresAdmin(t *testing.T) {
	materializer := &stubMaterializer{result: application.MaterializeResult{Upserts: 4, Skipped: 1}}
	router := newTestRouter(RouterConfig{
		Schedules: NewScheduleHandler(&stubScheduleService{}, &stubGridService{}, materializer, time.UTC, nil),
	})

	req := httptest.NewRequest(http.MethodPost, "/schedule/materialize?from=2025-10-01&to=2025-10-08", nil)
	req.Header.Set("Authorization", "Bearer guest-token")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("guest status = %d, want 403", rec.Code)
	}
	if materializer.calls != 0 {
		t.Fatal("materializer invoked for non-admin")
	}

	req = httptest.NewRequest(http.MethodPost, "/schedule/materialize?from=2025-10-01&to=2025-10-08", nil)
	req.Header.Set("Authorization", "Bearer admin-token")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("admin status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var resp materializeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Upserts != 4 || resp.Skipped != 1 {
		t.Errorf("unexpected counts %+v", resp)
	}
}

func TestCreateBookingReturnsCreated(t *testing.T) {
	roomTypeID := "rt1"
	checkIn := time.Date(2025, time.November, 1, 0, 0, 0, 0, time.UTC)
	checkOut := time.Date(2025, time.November, 3, 0, 0, 0, 0, time.UTC)
	bookings := &stubBookingHTTPService{booking: persistence.Booking{
		ID: "b1", Number: "BK-20251001-ABC123", Type: persistence.BookingRoom,
		Status: persistence.StatusPending, RoomTypeID: &roomTypeID,
		CheckIn: &checkIn, CheckOut: &checkOut, GuestCount: 2, GuestName: "Dana",
	}}
	router := newTestRouter(RouterConfig{Bookings: NewBookingHandler(bookings, time.UTC, nil)})

	body := `{"type":"room","room_type_id":"rt1","check_in":"2025-11-01","check_out":"2025-11-03","guest_count":2,"guest_name":"Dana"}`
	req := httptest.NewRequest(http.MethodPost, "/bookings", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	var resp bookingDTO
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != persistence.StatusPending || resp.CheckIn != "2025-11-01" {
		t.Errorf("unexpected booking %+v", resp)
	}
}

func TestCreateBookingCapacityConflict(t *testing.T) {
	bookings := &stubBookingHTTPService{err: application.ErrCapacityConflict}
	router := newTestRouter(RouterConfig{Bookings: NewBookingHandler(bookings, time.UTC, nil)})

	body := `{"type":"workshop","session_id":"s1","guest_count":1,"guest_name":"Dana"}`
	req := httptest.NewRequest(http.MethodPost, "/bookings", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
}

func TestBookingLifecycleRoutes(t *testing.T) {
	bookings := &stubBookingHTTPService{booking: persistence.Booking{
		ID: "b1", Type: persistence.BookingWorkshop, Status: persistence.StatusConfirmed, GuestCount: 1, GuestName: "Dana",
	}}
	router := newTestRouter(RouterConfig{Bookings: NewBookingHandler(bookings, time.UTC, nil)})

	for _, path := range []string{"/bookings/b1/confirm", "/bookings/b1/cancel"} {
		req := httptest.NewRequest(http.MethodPost, path, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("POST %s = %d, want 200", path, rec.Code)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/bookings/b1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("GET /bookings/b1 = %d, want 200", rec.Code)
	}
}

func TestAvailabilityEndpoint(t *testing.T) {
	availability := &stubAvailabilityHTTPService{rooms: application.RoomAvailabilityResult{
		Rooms:          []application.RoomAvailability{{Slug: "garden-view", TotalStock: 2, OccupiedUnits: 2}},
		AvailableUnits: 0,
		Summary:        map[string]int{"garden-view": 0},
	}}
	router := newTestRouter(RouterConfig{Availability: NewAvailabilityHandler(availability, time.UTC, nil)})

	req := httptest.NewRequest(http.MethodGet, "/availability?check_in=2025-11-02&check_out=2025-11-04&guests=2", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var resp availabilityResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Rooms) != 1 || resp.Rooms[0].AvailableUnits != 0 {
		t.Errorf("unexpected rooms %+v", resp.Rooms)
	}
	if got, ok := resp.Summary["garden-view"]; !ok || got != 0 {
		t.Errorf("unexpected summary %v", resp.Summary)
	}

	req = httptest.NewRequest(http.MethodGet, "/availability?check_in=soon&check_out=2025-11-04", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad date status = %d, want 400", rec.Code)
	}
}

func TestSessionAvailabilityRoute(t *testing.T) {
	availability := &stubAvailabilityHTTPService{session: application.SessionAvailability{
		SessionID: "sess1", Capacity: 10, Booked: 7, Remaining: 3, Status: persistence.SessionScheduled,
	}}
	router := newTestRouter(RouterConfig{Sessions: NewSessionHandler(availability, time.UTC, nil)})

	req := httptest.NewRequest(http.MethodGet, "/sessions/sess1/availability", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp sessionAvailabilityDTO
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Remaining != 3 {
		t.Errorf("remaining = %d, want 3", resp.Remaining)
	}

	req = httptest.NewRequest(http.MethodGet, "/sessions/sess1/extra/availability", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("nested path status = %d, want 404", rec.Code)
	}
}

func TestRulesRoutesRequireSession(t *testing.T) {
	router := newTestRouter(RouterConfig{Rules: NewRuleHandler(nil, time.UTC, nil)})

	req := httptest.NewRequest(http.MethodGet, "/rules", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestNotFoundForUnknownSessionToken(t *testing.T) {
	router := newTestRouter(RouterConfig{
		Schedules: NewScheduleHandler(&stubScheduleService{}, &stubGridService{}, &stubMaterializer{}, time.UTC, nil),
	})

	req := httptest.NewRequest(http.MethodGet, "/schedule/grid", nil)
	req.Header.Set("Authorization", "Bearer bogus")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}
