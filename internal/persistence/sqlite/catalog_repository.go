package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/resort-scheduler/internal/persistence"
)

// CatalogRepository implements persistence.CatalogRepository using SQLite.
// Catalog rows are maintained by CRUD tooling outside the engine; this
// repository exposes reads plus the conditional counter updates the booking
// reconciler owns.
type CatalogRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewCatalogRepository creates a new SQLite catalog repository.
func NewCatalogRepository(pool *ConnectionPool) *CatalogRepository {
	return &CatalogRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

const roomTypeColumns = `id, slug, title, max_guests, price_base, currency, stock, active, created_at, updated_at`

// GetRoomType fetches a room type by slug or ID.
func (r *CatalogRepository) GetRoomType(ctx context.Context, slugOrID string) (persistence.RoomType, error) {
	row := r.helper.QueryRow(ctx, `
		SELECT `+roomTypeColumns+` FROM room_types WHERE slug = ? OR id = ?`, slugOrID, slugOrID)
	return r.scanRoomType(row)
}

// ListRoomTypes returns room types matching the filter ordered by slug.
func (r *CatalogRepository) ListRoomTypes(ctx context.Context, filter persistence.RoomTypeFilter) ([]persistence.RoomType, error) {
	query := `SELECT ` + roomTypeColumns + ` FROM room_types WHERE 1 = 1`
	args := make([]any, 0, 3)

	if filter.SlugOrID != "" {
		query += ` AND (slug = ? OR id = ?)`
		args = append(args, filter.SlugOrID, filter.SlugOrID)
	}
	if filter.OnlyActive {
		query += ` AND active = 1`
	}
	if filter.MinCapacity > 0 {
		// A NULL max_guests means the room type has no stated guest limit.
		query += ` AND (max_guests IS NULL OR max_guests >= ?)`
		args = append(args, filter.MinCapacity)
	}
	query += ` ORDER BY slug`

	rows, err := r.helper.Query(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	roomTypes := make([]persistence.RoomType, 0)
	for rows.Next() {
		roomType, err := r.scanRoomType(rows)
		if err != nil {
			return nil, err
		}
		roomTypes = append(roomTypes, roomType)
	}
	return roomTypes, rows.Err()
}

// GetClass fetches a class by ID.
func (r *CatalogRepository) GetClass(ctx context.Context, id string) (persistence.Class, error) {
	row := r.helper.QueryRow(ctx, `
		SELECT id, slug, title, studio, duration_min, capacity, price, active, created_at, updated_at
		FROM classes WHERE id = ?`, id)
	return r.scanClass(row)
}

// ListClasses returns classes, optionally restricted to active ones.
func (r *CatalogRepository) ListClasses(ctx context.Context, onlyActive bool) ([]persistence.Class, error) {
	query := `SELECT id, slug, title, studio, duration_min, capacity, price, active, created_at, updated_at FROM classes`
	if onlyActive {
		query += ` WHERE active = 1`
	}
	query += ` ORDER BY slug`

	rows, err := r.helper.Query(ctx, query)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	classes := make([]persistence.Class, 0)
	for rows.Next() {
		class, err := r.scanClass(rows)
		if err != nil {
			return nil, err
		}
		classes = append(classes, class)
	}
	return classes, rows.Err()
}

const retreatColumns = `id, name, type, start_date, end_date, capacity, price, closed, active, created_at, updated_at`

// GetRetreat fetches a retreat by ID.
func (r *CatalogRepository) GetRetreat(ctx context.Context, id string) (persistence.Retreat, error) {
	row := r.helper.QueryRow(ctx, `SELECT `+retreatColumns+` FROM retreats WHERE id = ?`, id)
	return r.scanRetreat(row)
}

// FindClosedRetreatOverlapping returns a closed retreat whose date range
// overlaps [from, to), or ErrNotFound when the resort is open for the window.
func (r *CatalogRepository) FindClosedRetreatOverlapping(ctx context.Context, from, to time.Time) (persistence.Retreat, error) {
	row := r.helper.QueryRow(ctx, `
		SELECT `+retreatColumns+` FROM retreats
		WHERE closed = 1 AND active = 1 AND start_date < ? AND end_date > ?
		ORDER BY start_date LIMIT 1`,
		formatDate(to), formatDate(from))
	return r.scanRetreat(row)
}

// ReserveRetreatSpots decrements a retreat's remaining capacity with a
// single conditional update; closed retreats do not accept bookings.
func (r *CatalogRepository) ReserveRetreatSpots(ctx context.Context, retreatID string, spots int) error {
	if spots <= 0 {
		return persistence.ErrConstraintViolation
	}

	result, err := r.helper.Exec(ctx, `
		UPDATE retreats SET capacity = capacity - ?, updated_at = ?
		WHERE id = ? AND closed = 0 AND capacity >= ?`,
		spots, formatTime(time.Now().UTC()), retreatID, spots)
	if err != nil {
		return r.mapper.MapError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 1 {
		return nil
	}

	var closed int
	err = r.helper.QueryRow(ctx, `SELECT closed FROM retreats WHERE id = ?`, retreatID).Scan(&closed)
	if err == sql.ErrNoRows {
		return persistence.ErrNotFound
	}
	if err != nil {
		return r.mapper.MapError(err)
	}
	return persistence.ErrCapacityExceeded
}

// ReleaseRetreatSpots returns spots to a retreat.
func (r *CatalogRepository) ReleaseRetreatSpots(ctx context.Context, retreatID string, spots int) error {
	if spots <= 0 {
		return persistence.ErrConstraintViolation
	}

	result, err := r.helper.Exec(ctx, `
		UPDATE retreats SET capacity = capacity + ?, updated_at = ? WHERE id = ?`,
		spots, formatTime(time.Now().UTC()), retreatID)
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

// GetTreatment fetches a treatment by ID.
func (r *CatalogRepository) GetTreatment(ctx context.Context, id string) (persistence.Treatment, error) {
	row := r.helper.QueryRow(ctx, `
		SELECT id, slug, title, duration_min, price, active, created_at, updated_at
		FROM treatments WHERE id = ?`, id)

	var (
		treatment persistence.Treatment
		active    int
		createdAt string
		updatedAt string
	)
	err := row.Scan(&treatment.ID, &treatment.Slug, &treatment.Title, &treatment.DurationMin,
		&treatment.Price, &active, &createdAt, &updatedAt)
	if err != nil {
		return persistence.Treatment{}, r.mapper.MapError(err)
	}
	treatment.Active = active != 0
	if treatment.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.Treatment{}, err
	}
	if treatment.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.Treatment{}, err
	}
	return treatment, nil
}

// CreateTreatmentSlots inserts slots, silently skipping ones that collide
// with an existing (treatment_id, start_at) identity. Returns the number of
// slots actually created.
func (r *CatalogRepository) CreateTreatmentSlots(ctx context.Context, slots []persistence.TreatmentSlot) (int, error) {
	now := time.Now().UTC()
	created := 0

	err := r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		for _, slot := range slots {
			if slot.ID == "" || slot.TreatmentID == "" {
				return persistence.ErrConstraintViolation
			}
			result, err := r.helper.ExecTx(tx, `
				INSERT OR IGNORE INTO treatment_slots
					(id, treatment_id, start_at, end_at, booked, booked_by, created_at, updated_at)
				VALUES (?, ?, ?, ?, 0, NULL, ?, ?)`,
				slot.ID,
				slot.TreatmentID,
				formatTime(slot.StartAt),
				formatTime(slot.EndAt),
				formatTime(now),
				formatTime(now),
			)
			if err != nil {
				return err
			}
			affected, err := result.RowsAffected()
			if err != nil {
				return err
			}
			created += int(affected)
		}
		return nil
	})
	if err != nil {
		return 0, r.mapper.MapError(err)
	}
	return created, nil
}

// ListTreatmentSlots returns a treatment's slots within [from, to) ordered
// by start time.
func (r *CatalogRepository) ListTreatmentSlots(ctx context.Context, treatmentID string, from, to time.Time) ([]persistence.TreatmentSlot, error) {
	rows, err := r.helper.Query(ctx, `
		SELECT id, treatment_id, start_at, end_at, booked, booked_by, created_at, updated_at
		FROM treatment_slots
		WHERE treatment_id = ? AND start_at >= ? AND start_at < ?
		ORDER BY start_at`,
		treatmentID, formatTime(from), formatTime(to))
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	slots := make([]persistence.TreatmentSlot, 0)
	for rows.Next() {
		slot, err := r.scanTreatmentSlot(rows)
		if err != nil {
			return nil, err
		}
		slots = append(slots, slot)
	}
	return slots, rows.Err()
}

// GetTreatmentSlot fetches a slot by ID.
func (r *CatalogRepository) GetTreatmentSlot(ctx context.Context, id string) (persistence.TreatmentSlot, error) {
	row := r.helper.QueryRow(ctx, `
		SELECT id, treatment_id, start_at, end_at, booked, booked_by, created_at, updated_at
		FROM treatment_slots WHERE id = ?`, id)
	return r.scanTreatmentSlot(row)
}

// ClaimTreatmentSlot marks a free slot as booked. The single conditional
// update guarantees one winner between racing claims.
func (r *CatalogRepository) ClaimTreatmentSlot(ctx context.Context, slotID, bookedBy string) error {
	result, err := r.helper.Exec(ctx, `
		UPDATE treatment_slots SET booked = 1, booked_by = ?, updated_at = ?
		WHERE id = ? AND booked = 0`,
		bookedBy, formatTime(time.Now().UTC()), slotID)
	if err != nil {
		return r.mapper.MapError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 1 {
		return nil
	}

	var booked int
	err = r.helper.QueryRow(ctx, `SELECT booked FROM treatment_slots WHERE id = ?`, slotID).Scan(&booked)
	if err == sql.ErrNoRows {
		return persistence.ErrNotFound
	}
	if err != nil {
		return r.mapper.MapError(err)
	}
	return persistence.ErrCapacityExceeded
}

// ReleaseTreatmentSlot frees a previously claimed slot.
func (r *CatalogRepository) ReleaseTreatmentSlot(ctx context.Context, slotID string) error {
	result, err := r.helper.Exec(ctx, `
		UPDATE treatment_slots SET booked = 0, booked_by = NULL, updated_at = ? WHERE id = ?`,
		formatTime(time.Now().UTC()), slotID)
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

func (r *CatalogRepository) scanRoomType(row rowScanner) (persistence.RoomType, error) {
	var (
		roomType  persistence.RoomType
		maxGuests sql.NullInt64
		active    int
		createdAt string
		updatedAt string
	)
	err := row.Scan(&roomType.ID, &roomType.Slug, &roomType.Title, &maxGuests,
		&roomType.PriceBase, &roomType.Currency, &roomType.Stock, &active, &createdAt, &updatedAt)
	if err != nil {
		return persistence.RoomType{}, r.mapper.MapError(err)
	}

	if maxGuests.Valid {
		guests := int(maxGuests.Int64)
		roomType.MaxGuests = &guests
	}
	roomType.Active = active != 0
	if roomType.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.RoomType{}, err
	}
	if roomType.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.RoomType{}, err
	}
	return roomType, nil
}

func (r *CatalogRepository) scanClass(row rowScanner) (persistence.Class, error) {
	var (
		class     persistence.Class
		active    int
		createdAt string
		updatedAt string
	)
	err := row.Scan(&class.ID, &class.Slug, &class.Title, &class.Studio, &class.DurationMin,
		&class.Capacity, &class.Price, &active, &createdAt, &updatedAt)
	if err != nil {
		return persistence.Class{}, r.mapper.MapError(err)
	}
	class.Active = active != 0
	if class.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.Class{}, err
	}
	if class.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.Class{}, err
	}
	return class, nil
}

func (r *CatalogRepository) scanRetreat(row rowScanner) (persistence.Retreat, error) {
	var (
		retreat   persistence.Retreat
		startDate string
		endDate   string
		closed    int
		active    int
		createdAt string
		updatedAt string
	)
	err := row.Scan(&retreat.ID, &retreat.Name, &retreat.Type, &startDate, &endDate,
		&retreat.Capacity, &retreat.Price, &closed, &active, &createdAt, &updatedAt)
	if err != nil {
		return persistence.Retreat{}, r.mapper.MapError(err)
	}

	if retreat.StartDate, err = parseDate(startDate); err != nil {
		return persistence.Retreat{}, err
	}
	if retreat.EndDate, err = parseDate(endDate); err != nil {
		return persistence.Retreat{}, err
	}
	retreat.Closed = closed != 0
	retreat.Active = active != 0
	if retreat.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.Retreat{}, err
	}
	if retreat.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.Retreat{}, err
	}
	return retreat, nil
}

func (r *CatalogRepository) scanTreatmentSlot(row rowScanner) (persistence.TreatmentSlot, error) {
	var (
		slot      persistence.TreatmentSlot
		startAt   string
		endAt     string
		booked    int
		bookedBy  sql.NullString
		createdAt string
		updatedAt string
	)
	err := row.Scan(&slot.ID, &slot.TreatmentID, &startAt, &endAt, &booked, &bookedBy, &createdAt, &updatedAt)
	if err != nil {
		return persistence.TreatmentSlot{}, r.mapper.MapError(err)
	}

	if slot.StartAt, err = parseTime(startAt); err != nil {
		return persistence.TreatmentSlot{}, err
	}
	if slot.EndAt, err = parseTime(endAt); err != nil {
		return persistence.TreatmentSlot{}, err
	}
	slot.Booked = booked != 0
	slot.BookedBy = stringPtr(bookedBy)
	if slot.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.TreatmentSlot{}, err
	}
	if slot.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.TreatmentSlot{}, err
	}
	return slot, nil
}
