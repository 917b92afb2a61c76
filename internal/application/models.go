package application

import (
	"time"

	"github.com/example/resort-scheduler/internal/persistence"
	"github.com/example/resort-scheduler/internal/schedule"
)

// Principal identifies the authenticated caller of an operation.
type Principal struct {
	UserID  string
	IsAdmin bool
}

// AuthenticateParams carries a login request.
type AuthenticateParams struct {
	Email    string
	Password string
}

// AuthenticateResult is the outcome of a successful login.
type AuthenticateResult struct {
	User    persistence.User
	Session persistence.AuthSession
}

// ConflictWarning reports a studio double-booking surfaced by the schedule
// read path. The engine never resolves conflicts; admins do.
type ConflictWarning struct {
	Studio  string    `json:"studio"`
	Start   time.Time `json:"start"`
	Message string    `json:"message"`
}

// ScheduleResult is the composed schedule for a window plus its warnings.
type ScheduleResult struct {
	Occurrences []schedule.Occurrence
	Warnings    []ConflictWarning
}

// MaterializeResult reports a materialization batch outcome. Skipped counts
// occurrences dropped by the partial-failure policy.
type MaterializeResult struct {
	Upserts int
	Skipped int
}

// RoomAvailability summarizes one room type for an availability query.
type RoomAvailability struct {
	Slug           string
	Title          string
	TotalStock     int
	OccupiedUnits  int
	AvailableUnits int
	Currency       string
	PriceBase      float64
}

// RoomAvailabilityResult is the full availability answer. AvailableUnits
// totals the free units across every listed room type and Summary breaks the
// same number down per slug. When a closed retreat blacks out the window
// every room reports zero availability and Message explains why.
type RoomAvailabilityResult struct {
	Rooms          []RoomAvailability
	AvailableUnits int
	Summary        map[string]int
	Message        string
}

// SessionAvailability reports remaining seats for one class session.
type SessionAvailability struct {
	SessionID string
	Capacity  int
	Booked    int
	Remaining int
	Status    string
}

// SessionWithAvailability pairs a session with its computed availability.
type SessionWithAvailability struct {
	Session      persistence.ClassSession
	Availability SessionAvailability
}

// CheckRoomAvailabilityParams narrows a room availability query.
type CheckRoomAvailabilityParams struct {
	RoomType string // optional slug or ID
	CheckIn  time.Time
	CheckOut time.Time
	Guests   int
	Rooms    int
}

// CreateBookingParams carries a booking request. The populated target field
// must match Type.
type CreateBookingParams struct {
	Principal  Principal
	Type       string
	RoomTypeID string
	SessionID  string
	RetreatID  string
	SlotID     string
	CheckIn    time.Time
	CheckOut   time.Time
	GuestCount int
	GuestName  string
	GuestEmail string
	GuestPhone string
}
