package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/resort-scheduler/internal/persistence"
)

// BookingService validates booking requests against current availability and
// records them. Capacity claims are single conditional updates in the store;
// this service owns the compensation when a claim fails after the booking
// row was tentatively created.
type BookingService struct {
	bookings    BookingStore
	sessions    SessionStore
	catalog     CatalogStore
	notifier    Notifier
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewBookingService constructs a BookingService with the provided dependencies.
func NewBookingService(bookings BookingStore, sessions SessionStore, catalog CatalogStore, notifier Notifier, idGenerator func() string, now func() time.Time) *BookingService {
	return NewBookingServiceWithLogger(bookings, sessions, catalog, notifier, idGenerator, now, nil)
}

// NewBookingServiceWithLogger constructs a BookingService with a specified logger.
func NewBookingServiceWithLogger(bookings BookingStore, sessions SessionStore, catalog CatalogStore, notifier Notifier, idGenerator func() string, now func() time.Time, logger *slog.Logger) *BookingService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &BookingService{
		bookings:    bookings,
		sessions:    sessions,
		catalog:     catalog,
		notifier:    notifier,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

func (s *BookingService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "BookingService", operation, attrs...)
}

// CreateBooking validates the request, re-checks availability at write time,
// and records the booking in Pending status. For counter-backed targets the
// booking row is written first and the conditional counter claim second; a
// failed claim deletes the tentative row and reports a capacity conflict.
func (s *BookingService) CreateBooking(ctx context.Context, params CreateBookingParams) (booking persistence.Booking, err error) {
	if s == nil {
		err = fmt.Errorf("BookingService is nil")
		return
	}

	logger := s.loggerWith(ctx, "CreateBooking", "type", params.Type)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "booking creation failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("booking_id", booking.ID, "booking_number", booking.Number).
			InfoContext(ctx, "booking created")
	}()

	if err = validateBookingParams(params); err != nil {
		return
	}

	booking = s.newBooking(params)
	switch params.Type {
	case persistence.BookingRoom:
		booking, err = s.createRoomBooking(ctx, params, booking)
	case persistence.BookingWorkshop:
		booking, err = s.createWorkshopBooking(ctx, params, booking)
	case persistence.BookingRetreat:
		booking, err = s.createRetreatBooking(ctx, params, booking)
	case persistence.BookingTreatment:
		booking, err = s.createTreatmentBooking(ctx, params, booking)
	default:
		vErr := &ValidationError{}
		vErr.add("type", "must be one of room, workshop, retreat, treatment")
		err = vErr
	}
	return
}

// ConfirmBooking moves a Pending booking to Confirmed. Confirmation changes
// status only; capacity was claimed at creation.
func (s *BookingService) ConfirmBooking(ctx context.Context, bookingID string) (persistence.Booking, error) {
	if s == nil {
		return persistence.Booking{}, fmt.Errorf("BookingService is nil")
	}

	logger := s.loggerWith(ctx, "ConfirmBooking", "booking_id", bookingID)

	err := s.bookings.TransitionStatus(ctx, bookingID, persistence.StatusPending, persistence.StatusConfirmed, s.now())
	if err != nil {
		if !errors.Is(err, persistence.ErrNotFound) {
			return persistence.Booking{}, err
		}
		// Either missing or not Pending anymore.
		booking, getErr := s.bookings.GetBooking(ctx, bookingID)
		if getErr != nil {
			if errors.Is(getErr, persistence.ErrNotFound) {
				return persistence.Booking{}, ErrNotFound
			}
			return persistence.Booking{}, getErr
		}
		vErr := &ValidationError{}
		vErr.add("status", fmt.Sprintf("cannot confirm a %s booking", strings.ToLower(booking.Status)))
		return persistence.Booking{}, vErr
	}

	booking, err := s.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return persistence.Booking{}, err
	}

	s.notify(ctx, logger, "confirmation", func() error {
		return s.notifier.BookingConfirmed(ctx, booking)
	})
	logger.InfoContext(ctx, "booking confirmed")
	return booking, nil
}

// CancelBooking transitions a booking to Cancelled and releases the
// type-specific capacity exactly once. Cancelling an already-cancelled
// booking is a no-op success.
func (s *BookingService) CancelBooking(ctx context.Context, bookingID string) (persistence.Booking, error) {
	if s == nil {
		return persistence.Booking{}, fmt.Errorf("BookingService is nil")
	}

	logger := s.loggerWith(ctx, "CancelBooking", "booking_id", bookingID)

	transitioned, err := s.bookings.CancelBooking(ctx, bookingID, s.now())
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return persistence.Booking{}, ErrNotFound
		}
		return persistence.Booking{}, err
	}

	booking, err := s.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return persistence.Booking{}, err
	}

	if !transitioned {
		logger.InfoContext(ctx, "booking already cancelled")
		return booking, nil
	}

	if err := s.releaseCapacity(ctx, booking); err != nil {
		// The booking is cancelled; a failed release is an operational
		// problem, not a reason to resurrect the booking.
		logger.ErrorContext(ctx, "failed to release capacity after cancellation",
			"error", err, "error_kind", ErrorKind(err))
	}

	s.notify(ctx, logger, "cancellation", func() error {
		return s.notifier.BookingCancelled(ctx, booking)
	})
	logger.InfoContext(ctx, "booking cancelled")
	return booking, nil
}

// GetBooking fetches one booking.
func (s *BookingService) GetBooking(ctx context.Context, bookingID string) (persistence.Booking, error) {
	if s == nil {
		return persistence.Booking{}, fmt.Errorf("BookingService is nil")
	}
	booking, err := s.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return persistence.Booking{}, ErrNotFound
		}
		return persistence.Booking{}, err
	}
	return booking, nil
}

func (s *BookingService) createRoomBooking(ctx context.Context, params CreateBookingParams, booking persistence.Booking) (persistence.Booking, error) {
	roomType, err := s.catalog.GetRoomType(ctx, params.RoomTypeID)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return persistence.Booking{}, ErrNotFound
		}
		return persistence.Booking{}, err
	}
	if !roomType.Active {
		return persistence.Booking{}, ErrNotFound
	}

	// Closed retreats black out the whole resort.
	if _, err := s.catalog.FindClosedRetreatOverlapping(ctx, params.CheckIn, params.CheckOut); err == nil {
		return persistence.Booking{}, ErrCapacityConflict
	} else if !errors.Is(err, persistence.ErrNotFound) {
		return persistence.Booking{}, err
	}

	id := roomType.ID
	booking.RoomTypeID = &id
	checkIn, checkOut := params.CheckIn, params.CheckOut
	booking.CheckIn = &checkIn
	booking.CheckOut = &checkOut
	booking.TotalPrice = roomType.PriceBase * float64(stayNights(checkIn, checkOut))

	// Room stock is never a counter. The overlap re-check and the insert run
	// in one store transaction so the last unit cannot be claimed twice.
	created, err := s.bookings.CreateRoomBooking(ctx, booking, roomType.Stock)
	if err != nil {
		if errors.Is(err, persistence.ErrCapacityExceeded) {
			return persistence.Booking{}, ErrCapacityConflict
		}
		return persistence.Booking{}, err
	}
	return created, nil
}

// createCounterBooking writes the booking row, then runs the conditional
// counter claim. A failed claim compensates by deleting the tentative row so
// no orphaned booking survives.
func (s *BookingService) createCounterBooking(ctx context.Context, booking persistence.Booking, claim func() error) (persistence.Booking, error) {
	created, err := s.bookings.CreateBooking(ctx, booking)
	if err != nil {
		return persistence.Booking{}, err
	}

	if err := claim(); err != nil {
		if delErr := s.bookings.DeleteBooking(ctx, created.ID); delErr != nil {
			s.loggerWith(ctx, "CreateBooking").ErrorContext(ctx,
				"failed to roll back tentative booking",
				"booking_id", created.ID, "error", delErr, "error_kind", ErrorKind(delErr))
		}
		return persistence.Booking{}, err
	}
	return created, nil
}

func (s *BookingService) createWorkshopBooking(ctx context.Context, params CreateBookingParams, booking persistence.Booking) (persistence.Booking, error) {
	session, err := s.sessions.GetSession(ctx, params.SessionID)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return persistence.Booking{}, ErrNotFound
		}
		return persistence.Booking{}, err
	}
	if session.Status == persistence.SessionCancelled {
		return persistence.Booking{}, ErrNotFound
	}

	// Per-seat pricing comes from the catalog class; a session whose class
	// was since removed books at zero.
	if class, err := s.catalog.GetClass(ctx, session.ClassID); err == nil {
		booking.TotalPrice = class.Price * float64(params.GuestCount)
	} else if !errors.Is(err, persistence.ErrNotFound) {
		return persistence.Booking{}, err
	}

	return s.createCounterBooking(ctx, booking, func() error {
		return mapClaimError(s.sessions.ReserveSeats(ctx, params.SessionID, params.GuestCount))
	})
}

func (s *BookingService) createRetreatBooking(ctx context.Context, params CreateBookingParams, booking persistence.Booking) (persistence.Booking, error) {
	retreat, err := s.catalog.GetRetreat(ctx, params.RetreatID)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return persistence.Booking{}, ErrNotFound
		}
		return persistence.Booking{}, err
	}
	if !retreat.Active || retreat.Closed {
		return persistence.Booking{}, ErrNotFound
	}

	booking.TotalPrice = retreat.Price * float64(params.GuestCount)

	return s.createCounterBooking(ctx, booking, func() error {
		return mapClaimError(s.catalog.ReserveRetreatSpots(ctx, params.RetreatID, params.GuestCount))
	})
}

func (s *BookingService) createTreatmentBooking(ctx context.Context, params CreateBookingParams, booking persistence.Booking) (persistence.Booking, error) {
	slot, err := s.catalog.GetTreatmentSlot(ctx, params.SlotID)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return persistence.Booking{}, ErrNotFound
		}
		return persistence.Booking{}, err
	}

	if treatment, err := s.catalog.GetTreatment(ctx, slot.TreatmentID); err == nil {
		booking.TotalPrice = treatment.Price
	} else if !errors.Is(err, persistence.ErrNotFound) {
		return persistence.Booking{}, err
	}

	bookedBy := params.GuestEmail
	if bookedBy == "" {
		bookedBy = params.Principal.UserID
	}
	return s.createCounterBooking(ctx, booking, func() error {
		return mapClaimError(s.catalog.ClaimTreatmentSlot(ctx, params.SlotID, bookedBy))
	})
}

// mapClaimError translates store sentinels from a capacity claim into the
// service error set.
func mapClaimError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, persistence.ErrCapacityExceeded):
		return ErrCapacityConflict
	case errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	}
	return err
}

// stayNights counts calendar nights in a half-open stay window. Rounding
// absorbs daylight saving transitions between the two midnights.
func stayNights(checkIn, checkOut time.Time) int {
	nights := int(checkOut.Sub(checkIn).Round(24*time.Hour) / (24 * time.Hour))
	if nights < 1 {
		nights = 1
	}
	return nights
}

func (s *BookingService) releaseCapacity(ctx context.Context, booking persistence.Booking) error {
	switch booking.Type {
	case persistence.BookingRoom:
		// Derived availability: the cancelled status already frees the unit.
		return nil
	case persistence.BookingWorkshop:
		if booking.SessionID == nil {
			return nil
		}
		return s.sessions.ReleaseSeats(ctx, *booking.SessionID, booking.GuestCount)
	case persistence.BookingRetreat:
		if booking.RetreatID == nil {
			return nil
		}
		return s.catalog.ReleaseRetreatSpots(ctx, *booking.RetreatID, booking.GuestCount)
	case persistence.BookingTreatment:
		if booking.SlotID == nil {
			return nil
		}
		return s.catalog.ReleaseTreatmentSlot(ctx, *booking.SlotID)
	}
	return nil
}

func (s *BookingService) newBooking(params CreateBookingParams) persistence.Booking {
	id := s.idGenerator()
	booking := persistence.Booking{
		ID:         id,
		Number:     bookingNumber(s.now(), id),
		Type:       params.Type,
		GuestCount: params.GuestCount,
		GuestName:  strings.TrimSpace(params.GuestName),
		GuestEmail: strings.TrimSpace(params.GuestEmail),
		GuestPhone: strings.TrimSpace(params.GuestPhone),
		Status:     persistence.StatusPending,
	}
	if params.Principal.UserID != "" {
		userID := params.Principal.UserID
		booking.UserID = &userID
	}
	switch params.Type {
	case persistence.BookingWorkshop:
		sessionID := params.SessionID
		booking.SessionID = &sessionID
	case persistence.BookingRetreat:
		retreatID := params.RetreatID
		booking.RetreatID = &retreatID
	case persistence.BookingTreatment:
		slotID := params.SlotID
		booking.SlotID = &slotID
	}
	return booking
}

func (s *BookingService) notify(ctx context.Context, logger *slog.Logger, event string, send func() error) {
	if s.notifier == nil {
		return
	}
	// Fire-and-forget: delivery problems never fail the booking.
	if err := send(); err != nil {
		logger.WarnContext(ctx, "failed to send booking notification",
			"event", event, "error", err, "error_kind", ErrorKind(err))
	}
}

// bookingNumber derives a short human-facing reference from the creation
// time and the booking ID.
func bookingNumber(at time.Time, id string) string {
	suffix := strings.ToUpper(strings.ReplaceAll(id, "-", ""))
	if len(suffix) > 6 {
		suffix = suffix[:6]
	}
	return fmt.Sprintf("BK-%s-%s", at.UTC().Format("20060102"), suffix)
}

func validateBookingParams(params CreateBookingParams) error {
	vErr := &ValidationError{}

	if params.Type == "" {
		vErr.add("type", "is required")
	}
	if params.GuestCount <= 0 {
		vErr.add("guest_count", "must be positive")
	}
	if strings.TrimSpace(params.GuestName) == "" {
		vErr.add("guest_name", "is required")
	}

	switch params.Type {
	case persistence.BookingRoom:
		if params.RoomTypeID == "" {
			vErr.add("room_type_id", "is required for room bookings")
		}
		if params.CheckIn.IsZero() || params.CheckOut.IsZero() {
			vErr.add("check_in", "check_in and check_out are required for room bookings")
		} else if !params.CheckIn.Before(params.CheckOut) {
			vErr.add("check_out", "must be after check_in")
		}
	case persistence.BookingWorkshop:
		if params.SessionID == "" {
			vErr.add("session_id", "is required for workshop bookings")
		}
	case persistence.BookingRetreat:
		if params.RetreatID == "" {
			vErr.add("retreat_id", "is required for retreat bookings")
		}
	case persistence.BookingTreatment:
		if params.SlotID == "" {
			vErr.add("slot_id", "is required for treatment bookings")
		}
		if params.GuestCount > 1 {
			vErr.add("guest_count", "treatment slots hold one guest")
		}
	}

	if vErr.HasErrors() {
		return vErr
	}
	return nil
}
