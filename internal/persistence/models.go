package persistence

import "time"

// RecurringRule is a template describing a repeating weekly class. Rules are
// authored by admins and consumed read-only by the recurrence expander.
type RecurringRule struct {
	ID            string
	ClassID       string
	Studio        string
	Timezone      string
	StartTime     string // "HH:MM" local time-of-day
	DurationMin   int
	RRule         string // e.g. "FREQ=WEEKLY;BYDAY=MO,WE"
	EffectiveFrom time.Time
	EffectiveTo   *time.Time
	Exceptions    []string // "YYYY-MM-DD" date keys dropped from expansion
	Active        bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// WeeklyGrid stores the admin-edited weekly template as a single document per
// week key. The grid maps day -> hour -> studio -> class id and is replaced
// wholesale on every save; cells are never mutated in place.
type WeeklyGrid struct {
	WeekKey   string
	Grid      map[string]map[string]map[string]string
	UpdatedBy *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ClassSession statuses.
const (
	SessionScheduled = "scheduled"
	SessionFull      = "full"
	SessionCancelled = "cancelled"
)

// Occurrence sources recorded on sessions.
const (
	SourceRecurring = "recurring"
	SourceManual    = "manual"
)

// ClassSession is the durable, bookable realization of a computed occurrence.
// Identity is (ClassID, Studio, StartAt); the materializer upserts by that key
// and BookedCount is only mutated through the conditional seat updates.
type ClassSession struct {
	ID          string
	ClassID     string
	RuleID      *string
	Studio      string
	Title       string
	StartAt     time.Time
	EndAt       time.Time
	Capacity    int
	BookedCount int
	Status      string
	Source      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// SessionFilter narrows session listings.
type SessionFilter struct {
	From    *time.Time
	To      *time.Time
	Studio  string
	ClassID string
	Status  string
}

// RoomType is a bookable room category. Stock counts physical units; per-unit
// identity is not tracked and availability is always derived from bookings.
type RoomType struct {
	ID        string
	Slug      string
	Title     string
	MaxGuests *int
	PriceBase float64
	Currency  string
	Stock     int
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RoomTypeFilter narrows room type listings for availability checks.
type RoomTypeFilter struct {
	SlugOrID    string
	MinCapacity int
	OnlyActive  bool
}

// Class is a workshop catalog entry read by the scheduling engine.
type Class struct {
	ID          string
	Slug        string
	Title       string
	Studio      string
	DurationMin int
	Capacity    int
	Price       float64
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Retreat is a dated resort-wide program. Capacity holds the remaining spots
// and is only mutated by the booking reconciler. Closed retreats black out
// room availability for their date range.
type Retreat struct {
	ID        string
	Name      string
	Type      string
	StartDate time.Time
	EndDate   time.Time
	Capacity  int
	Price     float64
	Closed    bool
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Treatment is a spa treatment catalog entry.
type Treatment struct {
	ID          string
	Slug        string
	Title       string
	DurationMin int
	Price       float64
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TreatmentSlot is a single bookable hour for a treatment. Slots are unique
// per (TreatmentID, StartAt) and carry a claimed flag instead of a counter.
type TreatmentSlot struct {
	ID          string
	TreatmentID string
	StartAt     time.Time
	EndAt       time.Time
	Booked      bool
	BookedBy    *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Booking types.
const (
	BookingRoom      = "room"
	BookingWorkshop  = "workshop"
	BookingRetreat   = "retreat"
	BookingTreatment = "treatment"
)

// Booking statuses.
const (
	StatusPending   = "Pending"
	StatusConfirmed = "Confirmed"
	StatusCancelled = "Cancelled"
)

// Booking is a single reservation. Exactly one of RoomTypeID+CheckIn/CheckOut,
// SessionID, RetreatID, or SlotID is populated depending on Type. Bookings are
// never hard-deleted apart from the compensating rollback of a failed create.
type Booking struct {
	ID         string
	Number     string
	Type       string
	UserID     *string
	RoomTypeID *string
	SessionID  *string
	RetreatID  *string
	SlotID     *string
	CheckIn    *time.Time
	CheckOut   *time.Time
	GuestCount int
	GuestName  string
	GuestEmail string
	GuestPhone string
	TotalPrice float64
	Status     string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// User is an account that can authenticate and attach to bookings.
type User struct {
	ID           string
	Email        string
	DisplayName  string
	PasswordHash string
	IsAdmin      bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// AuthSession is a bearer-token session issued to a user.
type AuthSession struct {
	ID        string
	UserID    string
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
	RevokedAt *time.Time
}
