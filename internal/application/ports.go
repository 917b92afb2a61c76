package application

import (
	"context"
	"time"

	"github.com/example/resort-scheduler/internal/persistence"
)

// The services in this package depend on narrow store ports rather than the
// concrete SQLite repositories so tests can substitute hand-written stubs.
// The SQLite implementations satisfy these directly.

// RuleStore exposes recurring-rule persistence to the scheduling services.
type RuleStore interface {
	CreateRule(ctx context.Context, rule persistence.RecurringRule) (persistence.RecurringRule, error)
	GetRule(ctx context.Context, id string) (persistence.RecurringRule, error)
	ListRules(ctx context.Context, onlyActive bool) ([]persistence.RecurringRule, error)
	UpdateRule(ctx context.Context, rule persistence.RecurringRule) (persistence.RecurringRule, error)
	DeleteRule(ctx context.Context, id string) error
}

// GridStore exposes weekly-grid persistence.
type GridStore interface {
	GetGrid(ctx context.Context, weekKey string) (persistence.WeeklyGrid, error)
	SaveGrid(ctx context.Context, grid persistence.WeeklyGrid) (persistence.WeeklyGrid, error)
}

// SessionStore exposes class-session persistence.
type SessionStore interface {
	UpsertSession(ctx context.Context, session persistence.ClassSession) (persistence.ClassSession, bool, error)
	GetSession(ctx context.Context, id string) (persistence.ClassSession, error)
	ListSessions(ctx context.Context, filter persistence.SessionFilter) ([]persistence.ClassSession, error)
	ReserveSeats(ctx context.Context, sessionID string, seats int) error
	ReleaseSeats(ctx context.Context, sessionID string, seats int) error
}

// BookingStore exposes booking persistence and overlap queries.
type BookingStore interface {
	CreateBooking(ctx context.Context, booking persistence.Booking) (persistence.Booking, error)
	CreateRoomBooking(ctx context.Context, booking persistence.Booking, stock int) (persistence.Booking, error)
	GetBooking(ctx context.Context, id string) (persistence.Booking, error)
	TransitionStatus(ctx context.Context, id, from, to string, at time.Time) error
	CancelBooking(ctx context.Context, id string, at time.Time) (bool, error)
	DeleteBooking(ctx context.Context, id string) error
	CountOverlappingRoomBookings(ctx context.Context, roomTypeID string, checkIn, checkOut time.Time) (int, error)
}

// CatalogStore exposes catalog reads plus the conditional counter updates
// owned by the booking service.
type CatalogStore interface {
	GetRoomType(ctx context.Context, slugOrID string) (persistence.RoomType, error)
	ListRoomTypes(ctx context.Context, filter persistence.RoomTypeFilter) ([]persistence.RoomType, error)
	GetClass(ctx context.Context, id string) (persistence.Class, error)
	ListClasses(ctx context.Context, onlyActive bool) ([]persistence.Class, error)
	GetRetreat(ctx context.Context, id string) (persistence.Retreat, error)
	FindClosedRetreatOverlapping(ctx context.Context, from, to time.Time) (persistence.Retreat, error)
	ReserveRetreatSpots(ctx context.Context, retreatID string, spots int) error
	ReleaseRetreatSpots(ctx context.Context, retreatID string, spots int) error
	GetTreatment(ctx context.Context, id string) (persistence.Treatment, error)
	CreateTreatmentSlots(ctx context.Context, slots []persistence.TreatmentSlot) (int, error)
	ListTreatmentSlots(ctx context.Context, treatmentID string, from, to time.Time) ([]persistence.TreatmentSlot, error)
	GetTreatmentSlot(ctx context.Context, id string) (persistence.TreatmentSlot, error)
	ClaimTreatmentSlot(ctx context.Context, slotID, bookedBy string) error
	ReleaseTreatmentSlot(ctx context.Context, slotID string) error
}

// UserStore exposes account lookup for authentication.
type UserStore interface {
	GetUser(ctx context.Context, id string) (persistence.User, error)
	GetUserByEmail(ctx context.Context, email string) (persistence.User, error)
}

// AuthSessionStore exposes issued-session persistence.
type AuthSessionStore interface {
	CreateAuthSession(ctx context.Context, session persistence.AuthSession) (persistence.AuthSession, error)
	GetAuthSession(ctx context.Context, token string) (persistence.AuthSession, error)
	RevokeAuthSession(ctx context.Context, token string, revokedAt time.Time) (persistence.AuthSession, error)
	DeleteExpiredAuthSessions(ctx context.Context, reference time.Time) error
}

// Notifier delivers booking notifications. Calls are fire-and-forget: a
// delivery failure is logged by the caller and never fails the booking.
type Notifier interface {
	BookingConfirmed(ctx context.Context, booking persistence.Booking) error
	BookingCancelled(ctx context.Context, booking persistence.Booking) error
}
