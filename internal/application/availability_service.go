package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/example/resort-scheduler/internal/persistence"
)

// AvailabilityService answers pure read availability questions. It never
// locks or mutates; write-time re-checks belong to the booking service.
type AvailabilityService struct {
	bookings BookingStore
	sessions SessionStore
	catalog  CatalogStore
	logger   *slog.Logger
}

// NewAvailabilityService constructs an AvailabilityService with the provided dependencies.
func NewAvailabilityService(bookings BookingStore, sessions SessionStore, catalog CatalogStore) *AvailabilityService {
	return NewAvailabilityServiceWithLogger(bookings, sessions, catalog, nil)
}

// NewAvailabilityServiceWithLogger constructs an AvailabilityService with a specified logger.
func NewAvailabilityServiceWithLogger(bookings BookingStore, sessions SessionStore, catalog CatalogStore, logger *slog.Logger) *AvailabilityService {
	return &AvailabilityService{
		bookings: bookings,
		sessions: sessions,
		catalog:  catalog,
		logger:   defaultLogger(logger),
	}
}

func (s *AvailabilityService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "AvailabilityService", operation, attrs...)
}

// CheckRoomAvailability reports, per room type, how many units remain free
// for the half-open [checkIn, checkOut) window. Occupancy counts Pending and
// Confirmed bookings so in-flight checkouts hold their unit. A closed
// retreat overlapping the window blacks out every room type.
func (s *AvailabilityService) CheckRoomAvailability(ctx context.Context, params CheckRoomAvailabilityParams) (RoomAvailabilityResult, error) {
	if s == nil {
		return RoomAvailabilityResult{}, fmt.Errorf("AvailabilityService is nil")
	}

	logger := s.loggerWith(ctx, "CheckRoomAvailability",
		"check_in", params.CheckIn.Format("2006-01-02"),
		"check_out", params.CheckOut.Format("2006-01-02"),
		"guests", params.Guests,
		"rooms", params.Rooms,
	)

	if err := validateRoomQuery(params); err != nil {
		return RoomAvailabilityResult{}, err
	}

	rooms := params.Rooms
	if rooms <= 0 {
		rooms = 1
	}
	// Each requested room must hold its share of the party.
	minCapacityPerRoom := 0
	if params.Guests > 0 {
		minCapacityPerRoom = (params.Guests + rooms - 1) / rooms
	}

	roomTypes, err := s.catalog.ListRoomTypes(ctx, persistence.RoomTypeFilter{
		SlugOrID:    params.RoomType,
		MinCapacity: minCapacityPerRoom,
		OnlyActive:  true,
	})
	if err != nil {
		logger.ErrorContext(ctx, "failed to list room types", "error", err, "error_kind", ErrorKind(err))
		return RoomAvailabilityResult{}, err
	}
	if params.RoomType != "" && len(roomTypes) == 0 {
		return RoomAvailabilityResult{}, ErrNotFound
	}

	retreat, err := s.catalog.FindClosedRetreatOverlapping(ctx, params.CheckIn, params.CheckOut)
	switch {
	case err == nil:
		result := RoomAvailabilityResult{
			Summary: make(map[string]int, len(roomTypes)),
			Message: fmt.Sprintf("the resort is closed for %s during the requested dates", retreat.Name),
		}
		for _, roomType := range roomTypes {
			result.Rooms = append(result.Rooms, RoomAvailability{
				Slug:          roomType.Slug,
				Title:         roomType.Title,
				TotalStock:    roomType.Stock,
				OccupiedUnits: roomType.Stock,
				Currency:      roomType.Currency,
				PriceBase:     roomType.PriceBase,
			})
			result.Summary[roomType.Slug] = 0
		}
		logger.InfoContext(ctx, "room availability blacked out by closed retreat", "retreat_id", retreat.ID)
		return result, nil
	case !errors.Is(err, persistence.ErrNotFound):
		return RoomAvailabilityResult{}, err
	}

	result := RoomAvailabilityResult{
		Rooms:   make([]RoomAvailability, 0, len(roomTypes)),
		Summary: make(map[string]int, len(roomTypes)),
	}
	for _, roomType := range roomTypes {
		occupied, err := s.bookings.CountOverlappingRoomBookings(ctx, roomType.ID, params.CheckIn, params.CheckOut)
		if err != nil {
			logger.ErrorContext(ctx, "failed to count overlapping bookings",
				"room_type", roomType.Slug, "error", err, "error_kind", ErrorKind(err))
			return RoomAvailabilityResult{}, err
		}
		available := roomType.Stock - occupied
		if available < 0 {
			available = 0
		}
		result.Rooms = append(result.Rooms, RoomAvailability{
			Slug:           roomType.Slug,
			Title:          roomType.Title,
			TotalStock:     roomType.Stock,
			OccupiedUnits:  occupied,
			AvailableUnits: available,
			Currency:       roomType.Currency,
			PriceBase:      roomType.PriceBase,
		})
		result.Summary[roomType.Slug] = available
		result.AvailableUnits += available
	}
	return result, nil
}

// CheckSessionAvailability reports remaining seats for one session.
func (s *AvailabilityService) CheckSessionAvailability(ctx context.Context, sessionID string) (SessionAvailability, error) {
	if s == nil {
		return SessionAvailability{}, fmt.Errorf("AvailabilityService is nil")
	}
	if sessionID == "" {
		vErr := &ValidationError{}
		vErr.add("session_id", "is required")
		return SessionAvailability{}, vErr
	}

	session, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return SessionAvailability{}, ErrNotFound
		}
		return SessionAvailability{}, err
	}
	return sessionAvailability(session), nil
}

// ListSessions returns sessions matching the filter, each enriched with its
// computed availability.
func (s *AvailabilityService) ListSessions(ctx context.Context, filter persistence.SessionFilter) ([]SessionWithAvailability, error) {
	if s == nil {
		return nil, fmt.Errorf("AvailabilityService is nil")
	}

	sessions, err := s.sessions.ListSessions(ctx, filter)
	if err != nil {
		return nil, err
	}

	enriched := make([]SessionWithAvailability, len(sessions))
	for i, session := range sessions {
		enriched[i] = SessionWithAvailability{
			Session:      session,
			Availability: sessionAvailability(session),
		}
	}
	return enriched, nil
}

func sessionAvailability(session persistence.ClassSession) SessionAvailability {
	remaining := session.Capacity - session.BookedCount
	if remaining < 0 {
		remaining = 0
	}
	status := session.Status
	if status != persistence.SessionCancelled {
		if remaining == 0 {
			status = persistence.SessionFull
		} else {
			status = persistence.SessionScheduled
		}
	}
	return SessionAvailability{
		SessionID: session.ID,
		Capacity:  session.Capacity,
		Booked:    session.BookedCount,
		Remaining: remaining,
		Status:    status,
	}
}

func validateRoomQuery(params CheckRoomAvailabilityParams) error {
	vErr := &ValidationError{}
	if params.CheckIn.IsZero() {
		vErr.add("check_in", "is required")
	}
	if params.CheckOut.IsZero() {
		vErr.add("check_out", "is required")
	}
	if !params.CheckIn.IsZero() && !params.CheckOut.IsZero() && !params.CheckIn.Before(params.CheckOut) {
		vErr.add("check_out", "must be after check_in")
	}
	if params.Guests < 0 {
		vErr.add("guests", "must not be negative")
	}
	if params.Rooms < 0 {
		vErr.add("rooms", "must not be negative")
	}
	if vErr.HasErrors() {
		return vErr
	}
	return nil
}
