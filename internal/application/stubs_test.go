package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/resort-scheduler/internal/persistence"
	"github.com/example/resort-scheduler/internal/testfixtures"
)

func asValidationError(err error, target **ValidationError) bool {
	return errors.As(err, target)
}

func sequentialIDs(prefix string) func() string {
	return testfixtures.NewIDGenerator(prefix).NextFunc()
}

// Hand-written in-memory stubs for the store ports. They implement just
// enough semantics for the service tests, including the conditional counter
// behavior of the real SQLite layer.

type stubRuleStore struct {
	rules   []persistence.RecurringRule
	listErr error
}

func (s *stubRuleStore) CreateRule(ctx context.Context, rule persistence.RecurringRule) (persistence.RecurringRule, error) {
	s.rules = append(s.rules, rule)
	return rule, nil
}

func (s *stubRuleStore) GetRule(ctx context.Context, id string) (persistence.RecurringRule, error) {
	for _, rule := range s.rules {
		if rule.ID == id {
			return rule, nil
		}
	}
	return persistence.RecurringRule{}, persistence.ErrNotFound
}

func (s *stubRuleStore) ListRules(ctx context.Context, onlyActive bool) ([]persistence.RecurringRule, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := make([]persistence.RecurringRule, 0, len(s.rules))
	for _, rule := range s.rules {
		if onlyActive && !rule.Active {
			continue
		}
		out = append(out, rule)
	}
	return out, nil
}

func (s *stubRuleStore) UpdateRule(ctx context.Context, rule persistence.RecurringRule) (persistence.RecurringRule, error) {
	for i := range s.rules {
		if s.rules[i].ID == rule.ID {
			s.rules[i] = rule
			return rule, nil
		}
	}
	return persistence.RecurringRule{}, persistence.ErrNotFound
}

func (s *stubRuleStore) DeleteRule(ctx context.Context, id string) error {
	for i := range s.rules {
		if s.rules[i].ID == id {
			s.rules = append(s.rules[:i], s.rules[i+1:]...)
			return nil
		}
	}
	return persistence.ErrNotFound
}

type stubGridStore struct {
	grids map[string]persistence.WeeklyGrid
	saves int
}

func newStubGridStore() *stubGridStore {
	return &stubGridStore{grids: make(map[string]persistence.WeeklyGrid)}
}

func (s *stubGridStore) GetGrid(ctx context.Context, weekKey string) (persistence.WeeklyGrid, error) {
	grid, ok := s.grids[weekKey]
	if !ok {
		return persistence.WeeklyGrid{}, persistence.ErrNotFound
	}
	return grid, nil
}

func (s *stubGridStore) SaveGrid(ctx context.Context, grid persistence.WeeklyGrid) (persistence.WeeklyGrid, error) {
	s.saves++
	s.grids[grid.WeekKey] = grid
	return grid, nil
}

type stubSessionStore struct {
	sessions   map[string]*persistence.ClassSession
	upsertErrs map[string]error // keyed by class ID
	upserts    int
	created    int
}

func newStubSessionStore() *stubSessionStore {
	return &stubSessionStore{
		sessions:   make(map[string]*persistence.ClassSession),
		upsertErrs: make(map[string]error),
	}
}

func (s *stubSessionStore) identity(session persistence.ClassSession) string {
	return fmt.Sprintf("%s|%s|%s", session.ClassID, session.Studio, session.StartAt.UTC().Format(time.RFC3339))
}

func (s *stubSessionStore) UpsertSession(ctx context.Context, session persistence.ClassSession) (persistence.ClassSession, bool, error) {
	if err := s.upsertErrs[session.ClassID]; err != nil {
		return persistence.ClassSession{}, false, err
	}
	s.upserts++

	key := s.identity(session)
	if existing, ok := s.sessions[key]; ok {
		existing.Title = session.Title
		existing.EndAt = session.EndAt
		existing.RuleID = session.RuleID
		existing.Source = session.Source
		return *existing, false, nil
	}

	s.created++
	stored := session
	s.sessions[key] = &stored
	return stored, true, nil
}

func (s *stubSessionStore) find(id string) *persistence.ClassSession {
	for _, session := range s.sessions {
		if session.ID == id {
			return session
		}
	}
	return nil
}

func (s *stubSessionStore) GetSession(ctx context.Context, id string) (persistence.ClassSession, error) {
	if session := s.find(id); session != nil {
		return *session, nil
	}
	return persistence.ClassSession{}, persistence.ErrNotFound
}

func (s *stubSessionStore) ListSessions(ctx context.Context, filter persistence.SessionFilter) ([]persistence.ClassSession, error) {
	out := make([]persistence.ClassSession, 0, len(s.sessions))
	for _, session := range s.sessions {
		out = append(out, *session)
	}
	return out, nil
}

func (s *stubSessionStore) ReserveSeats(ctx context.Context, sessionID string, seats int) error {
	session := s.find(sessionID)
	if session == nil || session.Status == persistence.SessionCancelled {
		return persistence.ErrNotFound
	}
	if session.BookedCount+seats > session.Capacity {
		return persistence.ErrCapacityExceeded
	}
	session.BookedCount += seats
	if session.BookedCount >= session.Capacity {
		session.Status = persistence.SessionFull
	}
	return nil
}

func (s *stubSessionStore) ReleaseSeats(ctx context.Context, sessionID string, seats int) error {
	session := s.find(sessionID)
	if session == nil {
		return persistence.ErrNotFound
	}
	session.BookedCount -= seats
	if session.BookedCount < 0 {
		session.BookedCount = 0
	}
	if session.Status != persistence.SessionCancelled && session.BookedCount < session.Capacity {
		session.Status = persistence.SessionScheduled
	}
	return nil
}

type stubBookingStore struct {
	bookings map[string]*persistence.Booking
	deletes  []string
}

func newStubBookingStore() *stubBookingStore {
	return &stubBookingStore{bookings: make(map[string]*persistence.Booking)}
}

func (s *stubBookingStore) CreateBooking(ctx context.Context, booking persistence.Booking) (persistence.Booking, error) {
	stored := booking
	if stored.Status == "" {
		stored.Status = persistence.StatusPending
	}
	s.bookings[booking.ID] = &stored
	return stored, nil
}

func (s *stubBookingStore) CreateRoomBooking(ctx context.Context, booking persistence.Booking, stock int) (persistence.Booking, error) {
	occupied, err := s.CountOverlappingRoomBookings(ctx, *booking.RoomTypeID, *booking.CheckIn, *booking.CheckOut)
	if err != nil {
		return persistence.Booking{}, err
	}
	if occupied >= stock {
		return persistence.Booking{}, persistence.ErrCapacityExceeded
	}
	return s.CreateBooking(ctx, booking)
}

func (s *stubBookingStore) GetBooking(ctx context.Context, id string) (persistence.Booking, error) {
	if booking, ok := s.bookings[id]; ok {
		return *booking, nil
	}
	return persistence.Booking{}, persistence.ErrNotFound
}

func (s *stubBookingStore) TransitionStatus(ctx context.Context, id, from, to string, at time.Time) error {
	booking, ok := s.bookings[id]
	if !ok || booking.Status != from {
		return persistence.ErrNotFound
	}
	booking.Status = to
	return nil
}

func (s *stubBookingStore) CancelBooking(ctx context.Context, id string, at time.Time) (bool, error) {
	booking, ok := s.bookings[id]
	if !ok {
		return false, persistence.ErrNotFound
	}
	if booking.Status == persistence.StatusCancelled {
		return false, nil
	}
	booking.Status = persistence.StatusCancelled
	return true, nil
}

func (s *stubBookingStore) DeleteBooking(ctx context.Context, id string) error {
	if _, ok := s.bookings[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(s.bookings, id)
	s.deletes = append(s.deletes, id)
	return nil
}

func (s *stubBookingStore) CountOverlappingRoomBookings(ctx context.Context, roomTypeID string, checkIn, checkOut time.Time) (int, error) {
	count := 0
	for _, booking := range s.bookings {
		if booking.Type != persistence.BookingRoom || booking.RoomTypeID == nil || *booking.RoomTypeID != roomTypeID {
			continue
		}
		if booking.Status != persistence.StatusPending && booking.Status != persistence.StatusConfirmed {
			continue
		}
		if booking.CheckIn.Before(checkOut) && booking.CheckOut.After(checkIn) {
			count++
		}
	}
	return count, nil
}

type stubCatalogStore struct {
	roomTypes  map[string]*persistence.RoomType
	classes    map[string]*persistence.Class
	retreats   map[string]*persistence.Retreat
	treatments map[string]*persistence.Treatment
	slots      map[string]*persistence.TreatmentSlot
}

func newStubCatalogStore() *stubCatalogStore {
	return &stubCatalogStore{
		roomTypes:  make(map[string]*persistence.RoomType),
		classes:    make(map[string]*persistence.Class),
		retreats:   make(map[string]*persistence.Retreat),
		treatments: make(map[string]*persistence.Treatment),
		slots:      make(map[string]*persistence.TreatmentSlot),
	}
}

func (s *stubCatalogStore) GetRoomType(ctx context.Context, slugOrID string) (persistence.RoomType, error) {
	for _, roomType := range s.roomTypes {
		if roomType.ID == slugOrID || roomType.Slug == slugOrID {
			return *roomType, nil
		}
	}
	return persistence.RoomType{}, persistence.ErrNotFound
}

func (s *stubCatalogStore) ListRoomTypes(ctx context.Context, filter persistence.RoomTypeFilter) ([]persistence.RoomType, error) {
	out := make([]persistence.RoomType, 0, len(s.roomTypes))
	for _, roomType := range s.roomTypes {
		if filter.SlugOrID != "" && roomType.ID != filter.SlugOrID && roomType.Slug != filter.SlugOrID {
			continue
		}
		if filter.OnlyActive && !roomType.Active {
			continue
		}
		if filter.MinCapacity > 0 && roomType.MaxGuests != nil && *roomType.MaxGuests < filter.MinCapacity {
			continue
		}
		out = append(out, *roomType)
	}
	return out, nil
}

func (s *stubCatalogStore) GetClass(ctx context.Context, id string) (persistence.Class, error) {
	if class, ok := s.classes[id]; ok {
		return *class, nil
	}
	return persistence.Class{}, persistence.ErrNotFound
}

func (s *stubCatalogStore) ListClasses(ctx context.Context, onlyActive bool) ([]persistence.Class, error) {
	out := make([]persistence.Class, 0, len(s.classes))
	for _, class := range s.classes {
		if onlyActive && !class.Active {
			continue
		}
		out = append(out, *class)
	}
	return out, nil
}

func (s *stubCatalogStore) GetRetreat(ctx context.Context, id string) (persistence.Retreat, error) {
	if retreat, ok := s.retreats[id]; ok {
		return *retreat, nil
	}
	return persistence.Retreat{}, persistence.ErrNotFound
}

func (s *stubCatalogStore) FindClosedRetreatOverlapping(ctx context.Context, from, to time.Time) (persistence.Retreat, error) {
	for _, retreat := range s.retreats {
		if !retreat.Closed || !retreat.Active {
			continue
		}
		if retreat.StartDate.Before(to) && retreat.EndDate.After(from) {
			return *retreat, nil
		}
	}
	return persistence.Retreat{}, persistence.ErrNotFound
}

func (s *stubCatalogStore) ReserveRetreatSpots(ctx context.Context, retreatID string, spots int) error {
	retreat, ok := s.retreats[retreatID]
	if !ok {
		return persistence.ErrNotFound
	}
	if retreat.Closed || retreat.Capacity < spots {
		return persistence.ErrCapacityExceeded
	}
	retreat.Capacity -= spots
	return nil
}

func (s *stubCatalogStore) ReleaseRetreatSpots(ctx context.Context, retreatID string, spots int) error {
	retreat, ok := s.retreats[retreatID]
	if !ok {
		return persistence.ErrNotFound
	}
	retreat.Capacity += spots
	return nil
}

func (s *stubCatalogStore) GetTreatment(ctx context.Context, id string) (persistence.Treatment, error) {
	if treatment, ok := s.treatments[id]; ok {
		return *treatment, nil
	}
	return persistence.Treatment{}, persistence.ErrNotFound
}

func (s *stubCatalogStore) CreateTreatmentSlots(ctx context.Context, slots []persistence.TreatmentSlot) (int, error) {
	created := 0
	for _, slot := range slots {
		key := slot.TreatmentID + "|" + slot.StartAt.UTC().Format(time.RFC3339)
		duplicate := false
		for _, existing := range s.slots {
			if existing.TreatmentID+"|"+existing.StartAt.UTC().Format(time.RFC3339) == key {
				duplicate = true
				break
			}
		}
		if duplicate {
			continue
		}
		stored := slot
		s.slots[slot.ID] = &stored
		created++
	}
	return created, nil
}

func (s *stubCatalogStore) ListTreatmentSlots(ctx context.Context, treatmentID string, from, to time.Time) ([]persistence.TreatmentSlot, error) {
	out := make([]persistence.TreatmentSlot, 0)
	for _, slot := range s.slots {
		if slot.TreatmentID != treatmentID {
			continue
		}
		if slot.StartAt.Before(from) || !slot.StartAt.Before(to) {
			continue
		}
		out = append(out, *slot)
	}
	return out, nil
}

func (s *stubCatalogStore) GetTreatmentSlot(ctx context.Context, id string) (persistence.TreatmentSlot, error) {
	if slot, ok := s.slots[id]; ok {
		return *slot, nil
	}
	return persistence.TreatmentSlot{}, persistence.ErrNotFound
}

func (s *stubCatalogStore) ClaimTreatmentSlot(ctx context.Context, slotID, bookedBy string) error {
	slot, ok := s.slots[slotID]
	if !ok {
		return persistence.ErrNotFound
	}
	if slot.Booked {
		return persistence.ErrCapacityExceeded
	}
	slot.Booked = true
	slot.BookedBy = &bookedBy
	return nil
}

func (s *stubCatalogStore) ReleaseTreatmentSlot(ctx context.Context, slotID string) error {
	slot, ok := s.slots[slotID]
	if !ok {
		return persistence.ErrNotFound
	}
	slot.Booked = false
	slot.BookedBy = nil
	return nil
}

type stubUserStore struct {
	users map[string]persistence.User
}

func (s *stubUserStore) GetUser(ctx context.Context, id string) (persistence.User, error) {
	if user, ok := s.users[id]; ok {
		return user, nil
	}
	return persistence.User{}, persistence.ErrNotFound
}

func (s *stubUserStore) GetUserByEmail(ctx context.Context, email string) (persistence.User, error) {
	for _, user := range s.users {
		if user.Email == email {
			return user, nil
		}
	}
	return persistence.User{}, persistence.ErrNotFound
}

type stubAuthSessionStore struct {
	sessions map[string]persistence.AuthSession
}

func newStubAuthSessionStore() *stubAuthSessionStore {
	return &stubAuthSessionStore{sessions: make(map[string]persistence.AuthSession)}
}

func (s *stubAuthSessionStore) CreateAuthSession(ctx context.Context, session persistence.AuthSession) (persistence.AuthSession, error) {
	s.sessions[session.Token] = session
	return session, nil
}

func (s *stubAuthSessionStore) GetAuthSession(ctx context.Context, token string) (persistence.AuthSession, error) {
	if session, ok := s.sessions[token]; ok {
		return session, nil
	}
	return persistence.AuthSession{}, persistence.ErrNotFound
}

func (s *stubAuthSessionStore) RevokeAuthSession(ctx context.Context, token string, revokedAt time.Time) (persistence.AuthSession, error) {
	session, ok := s.sessions[token]
	if !ok {
		return persistence.AuthSession{}, persistence.ErrNotFound
	}
	session.RevokedAt = &revokedAt
	s.sessions[token] = session
	return session, nil
}

func (s *stubAuthSessionStore) DeleteExpiredAuthSessions(ctx context.Context, reference time.Time) error {
	for token, session := range s.sessions {
		if session.ExpiresAt.Before(reference) {
			delete(s.sessions, token)
		}
	}
	return nil
}

type recordingNotifier struct {
	confirmed []string
	cancelled []string
	err       error
}

func (n *recordingNotifier) BookingConfirmed(ctx context.Context, booking persistence.Booking) error {
	n.confirmed = append(n.confirmed, booking.ID)
	return n.err
}

func (n *recordingNotifier) BookingCancelled(ctx context.Context, booking persistence.Booking) error {
	n.cancelled = append(n.cancelled, booking.ID)
	return n.err
}
