package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/resort-scheduler/internal/persistence"
)

// BookingRepository implements persistence.BookingRepository using SQLite.
type BookingRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewBookingRepository creates a new SQLite booking repository.
func NewBookingRepository(pool *ConnectionPool) *BookingRepository {
	return &BookingRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

const bookingColumns = `id, number, type, user_id, room_type_id, session_id, retreat_id, slot_id,
	check_in, check_out, guest_count, guest_name, guest_email, guest_phone, total_price, status,
	created_at, updated_at`

// Half-open interval overlap: an existing booking conflicts when it starts
// before the query checkout and ends after the query check-in.
const roomOverlapCondition = `room_type_id = ?
	AND type = ?
	AND status IN (?, ?)
	AND check_in < ?
	AND check_out > ?`

// CreateBooking inserts a booking.
func (r *BookingRepository) CreateBooking(ctx context.Context, booking persistence.Booking) (persistence.Booking, error) {
	if booking.ID == "" {
		return persistence.Booking{}, persistence.ErrConstraintViolation
	}

	now := time.Now().UTC()
	booking.CreatedAt = now
	booking.UpdatedAt = now
	if booking.Status == "" {
		booking.Status = persistence.StatusPending
	}

	if err := r.insert(ctx, nil, booking); err != nil {
		return persistence.Booking{}, err
	}
	return booking, nil
}

// CreateRoomBooking re-checks room availability and inserts the booking in
// one transaction: the overlap count against Pending and Confirmed room
// bookings happens next to the insert so two racing requests cannot both
// claim the last unit.
func (r *BookingRepository) CreateRoomBooking(ctx context.Context, booking persistence.Booking, stock int) (persistence.Booking, error) {
	if booking.ID == "" || booking.RoomTypeID == nil || booking.CheckIn == nil || booking.CheckOut == nil {
		return persistence.Booking{}, persistence.ErrConstraintViolation
	}

	now := time.Now().UTC()
	booking.CreatedAt = now
	booking.UpdatedAt = now
	if booking.Status == "" {
		booking.Status = persistence.StatusPending
	}

	err := r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		var occupied int
		err := r.helper.QueryRowTx(tx, `SELECT COUNT(*) FROM bookings WHERE `+roomOverlapCondition,
			*booking.RoomTypeID,
			persistence.BookingRoom,
			persistence.StatusPending, persistence.StatusConfirmed,
			formatTime(*booking.CheckOut), formatTime(*booking.CheckIn),
		).Scan(&occupied)
		if err != nil {
			return err
		}
		if occupied >= stock {
			return persistence.ErrCapacityExceeded
		}
		return r.insert(ctx, tx, booking)
	})
	if err != nil {
		return persistence.Booking{}, err
	}
	return booking, nil
}

// GetBooking fetches a booking by ID.
func (r *BookingRepository) GetBooking(ctx context.Context, id string) (persistence.Booking, error) {
	row := r.helper.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id)
	return r.scanBooking(row)
}

// TransitionStatus moves a booking from one status to another only when the
// current status matches. A lost race or missing booking both surface as
// ErrNotFound; callers distinguish them via GetBooking.
func (r *BookingRepository) TransitionStatus(ctx context.Context, id, from, to string, at time.Time) error {
	result, err := r.helper.Exec(ctx, `
		UPDATE bookings SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		to, formatTime(at), id, from)
	if err != nil {
		return r.mapper.MapError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

// CancelBooking sets the booking status to Cancelled unless it already is.
// The returned bool reports whether this call performed the transition, so
// the caller releases capacity counters exactly once.
func (r *BookingRepository) CancelBooking(ctx context.Context, id string, at time.Time) (bool, error) {
	result, err := r.helper.Exec(ctx, `
		UPDATE bookings SET status = ?, updated_at = ? WHERE id = ? AND status <> ?`,
		persistence.StatusCancelled, formatTime(at), id, persistence.StatusCancelled)
	if err != nil {
		return false, r.mapper.MapError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 1 {
		return true, nil
	}

	// Either already cancelled or missing.
	if _, err := r.GetBooking(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

// DeleteBooking removes a booking row. It exists solely as the compensating
// action for a create whose counter claim failed.
func (r *BookingRepository) DeleteBooking(ctx context.Context, id string) error {
	result, err := r.helper.Exec(ctx, `DELETE FROM bookings WHERE id = ?`, id)
	if err != nil {
		return r.mapper.MapError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

// CountOverlappingRoomBookings counts Pending and Confirmed room bookings
// for the room type whose stay overlaps the half-open [checkIn, checkOut)
// window.
func (r *BookingRepository) CountOverlappingRoomBookings(ctx context.Context, roomTypeID string, checkIn, checkOut time.Time) (int, error) {
	var count int
	err := r.helper.QueryRow(ctx, `SELECT COUNT(*) FROM bookings WHERE `+roomOverlapCondition,
		roomTypeID,
		persistence.BookingRoom,
		persistence.StatusPending, persistence.StatusConfirmed,
		formatTime(checkOut), formatTime(checkIn),
	).Scan(&count)
	if err != nil {
		return 0, r.mapper.MapError(err)
	}
	return count, nil
}

func (r *BookingRepository) insert(ctx context.Context, tx *sql.Tx, booking persistence.Booking) error {
	query := `INSERT INTO bookings (` + bookingColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	args := []any{
		booking.ID,
		booking.Number,
		booking.Type,
		nullString(booking.UserID),
		nullString(booking.RoomTypeID),
		nullString(booking.SessionID),
		nullString(booking.RetreatID),
		nullString(booking.SlotID),
		nullTime(booking.CheckIn),
		nullTime(booking.CheckOut),
		booking.GuestCount,
		booking.GuestName,
		booking.GuestEmail,
		booking.GuestPhone,
		booking.TotalPrice,
		booking.Status,
		formatTime(booking.CreatedAt),
		formatTime(booking.UpdatedAt),
	}

	var err error
	if tx != nil {
		_, err = r.helper.ExecTx(tx, query, args...)
	} else {
		_, err = r.helper.Exec(ctx, query, args...)
	}
	if err != nil {
		return r.mapper.MapError(err)
	}
	return nil
}

func (r *BookingRepository) scanBooking(row rowScanner) (persistence.Booking, error) {
	var (
		booking    persistence.Booking
		userID     sql.NullString
		roomTypeID sql.NullString
		sessionID  sql.NullString
		retreatID  sql.NullString
		slotID     sql.NullString
		checkIn    sql.NullString
		checkOut   sql.NullString
		createdAt  string
		updatedAt  string
	)
	err := row.Scan(
		&booking.ID,
		&booking.Number,
		&booking.Type,
		&userID,
		&roomTypeID,
		&sessionID,
		&retreatID,
		&slotID,
		&checkIn,
		&checkOut,
		&booking.GuestCount,
		&booking.GuestName,
		&booking.GuestEmail,
		&booking.GuestPhone,
		&booking.TotalPrice,
		&booking.Status,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return persistence.Booking{}, r.mapper.MapError(err)
	}

	booking.UserID = stringPtr(userID)
	booking.RoomTypeID = stringPtr(roomTypeID)
	booking.SessionID = stringPtr(sessionID)
	booking.RetreatID = stringPtr(retreatID)
	booking.SlotID = stringPtr(slotID)
	if booking.CheckIn, err = timePtr(checkIn); err != nil {
		return persistence.Booking{}, err
	}
	if booking.CheckOut, err = timePtr(checkOut); err != nil {
		return persistence.Booking{}, err
	}
	if booking.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.Booking{}, err
	}
	if booking.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.Booking{}, err
	}
	return booking, nil
}
