package persistence

import (
	"context"
	"time"
)

// RuleRepository stores recurring rules.
type RuleRepository interface {
	CreateRule(ctx context.Context, rule RecurringRule) (RecurringRule, error)
	GetRule(ctx context.Context, id string) (RecurringRule, error)
	ListRules(ctx context.Context, onlyActive bool) ([]RecurringRule, error)
	UpdateRule(ctx context.Context, rule RecurringRule) (RecurringRule, error)
	DeleteRule(ctx context.Context, id string) error
}

// GridRepository stores weekly grid documents keyed by week key.
type GridRepository interface {
	GetGrid(ctx context.Context, weekKey string) (WeeklyGrid, error)
	SaveGrid(ctx context.Context, grid WeeklyGrid) (WeeklyGrid, error)
}

// SessionRepository stores materialized class sessions.
//
// UpsertSession keys on (class_id, studio, start_at): when a session already
// exists only the display fields (title, end_at, capacity, rule_id, source)
// are refreshed and booked_count is left untouched. The returned bool reports
// whether a new row was created.
//
// ReserveSeats and ReleaseSeats are conditional single-statement counter
// updates. ReserveSeats fails with ErrCapacityExceeded when the claim would
// push booked_count past capacity, and with ErrNotFound when the session does
// not exist or is cancelled. ReleaseSeats floors booked_count at zero.
type SessionRepository interface {
	UpsertSession(ctx context.Context, session ClassSession) (ClassSession, bool, error)
	GetSession(ctx context.Context, id string) (ClassSession, error)
	ListSessions(ctx context.Context, filter SessionFilter) ([]ClassSession, error)
	ReserveSeats(ctx context.Context, sessionID string, seats int) error
	ReleaseSeats(ctx context.Context, sessionID string, seats int) error
}

// BookingRepository stores bookings and answers overlap queries.
//
// CreateRoomBooking performs the availability re-check and the insert inside
// one transaction: it counts Pending and Confirmed room bookings overlapping
// the half-open [check_in, check_out) window and rejects the insert with
// ErrCapacityExceeded when the count has reached stock.
//
// TransitionStatus updates the status only when the current status matches
// from; zero rows affected surfaces as ErrNotFound so callers can
// distinguish a lost race from a missing booking via GetBooking.
//
// CancelBooking sets status to Cancelled unless it already is, returning
// whether this call performed the transition. DeleteBooking exists solely for
// the compensating rollback of a failed create.
type BookingRepository interface {
	CreateBooking(ctx context.Context, booking Booking) (Booking, error)
	CreateRoomBooking(ctx context.Context, booking Booking, stock int) (Booking, error)
	GetBooking(ctx context.Context, id string) (Booking, error)
	TransitionStatus(ctx context.Context, id, from, to string, at time.Time) error
	CancelBooking(ctx context.Context, id string, at time.Time) (bool, error)
	DeleteBooking(ctx context.Context, id string) error
	CountOverlappingRoomBookings(ctx context.Context, roomTypeID string, checkIn, checkOut time.Time) (int, error)
}

// CatalogRepository exposes read access to the bookable catalog plus the
// conditional counter updates owned by the booking reconciler.
type CatalogRepository interface {
	GetRoomType(ctx context.Context, slugOrID string) (RoomType, error)
	ListRoomTypes(ctx context.Context, filter RoomTypeFilter) ([]RoomType, error)
	GetClass(ctx context.Context, id string) (Class, error)
	ListClasses(ctx context.Context, onlyActive bool) ([]Class, error)
	GetRetreat(ctx context.Context, id string) (Retreat, error)
	FindClosedRetreatOverlapping(ctx context.Context, from, to time.Time) (Retreat, error)
	ReserveRetreatSpots(ctx context.Context, retreatID string, spots int) error
	ReleaseRetreatSpots(ctx context.Context, retreatID string, spots int) error
	GetTreatment(ctx context.Context, id string) (Treatment, error)
	CreateTreatmentSlots(ctx context.Context, slots []TreatmentSlot) (int, error)
	ListTreatmentSlots(ctx context.Context, treatmentID string, from, to time.Time) ([]TreatmentSlot, error)
	GetTreatmentSlot(ctx context.Context, id string) (TreatmentSlot, error)
	ClaimTreatmentSlot(ctx context.Context, slotID, bookedBy string) error
	ReleaseTreatmentSlot(ctx context.Context, slotID string) error
}

// UserRepository stores user accounts.
type UserRepository interface {
	CreateUser(ctx context.Context, user User) (User, error)
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	CountUsers(ctx context.Context) (int, error)
}

// AuthSessionRepository stores issued bearer-token sessions.
type AuthSessionRepository interface {
	CreateAuthSession(ctx context.Context, session AuthSession) (AuthSession, error)
	GetAuthSession(ctx context.Context, token string) (AuthSession, error)
	RevokeAuthSession(ctx context.Context, token string, revokedAt time.Time) (AuthSession, error)
	DeleteExpiredAuthSessions(ctx context.Context, reference time.Time) error
}
