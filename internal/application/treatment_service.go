package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/resort-scheduler/internal/persistence"
)

// Spa operating hours in resort-local time. Slot generation fills whole
// hours from open (inclusive) to close (exclusive).
const (
	spaOpenHour  = 9
	spaCloseHour = 18
)

// TreatmentService generates and lists bookable treatment slots. Slots are
// unique per (treatment, start); regenerating a window only fills gaps.
type TreatmentService struct {
	catalog     CatalogStore
	idGenerator func() string
	location    *time.Location
	logger      *slog.Logger
}

// NewTreatmentService constructs a TreatmentService with the provided dependencies.
func NewTreatmentService(catalog CatalogStore, idGenerator func() string, location *time.Location) *TreatmentService {
	return NewTreatmentServiceWithLogger(catalog, idGenerator, location, nil)
}

// NewTreatmentServiceWithLogger constructs a TreatmentService with a specified logger.
func NewTreatmentServiceWithLogger(catalog CatalogStore, idGenerator func() string, location *time.Location, logger *slog.Logger) *TreatmentService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if location == nil {
		location = time.UTC
	}
	return &TreatmentService{
		catalog:     catalog,
		idGenerator: idGenerator,
		location:    location,
		logger:      defaultLogger(logger),
	}
}

func (s *TreatmentService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "TreatmentService", operation, attrs...)
}

// GenerateSlots creates hourly slots for a treatment across every local day
// in [from, to). Existing slots are left alone, so regeneration never
// touches a claimed slot. Admin only. Returns the number of slots created.
func (s *TreatmentService) GenerateSlots(ctx context.Context, principal Principal, treatmentID string, from, to time.Time) (int, error) {
	if s == nil {
		return 0, fmt.Errorf("TreatmentService is nil")
	}
	if !principal.IsAdmin {
		return 0, ErrUnauthorized
	}

	logger := s.loggerWith(ctx, "GenerateSlots", "treatment_id", treatmentID)

	if !from.Before(to) {
		vErr := &ValidationError{}
		vErr.add("to", "must be after from")
		return 0, vErr
	}

	treatment, err := s.catalog.GetTreatment(ctx, treatmentID)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	if !treatment.Active {
		return 0, ErrNotFound
	}

	slots := make([]persistence.TreatmentSlot, 0)
	start := s.startOfDay(from)
	end := s.startOfDay(to)
	for day := start; day.Before(end); day = day.AddDate(0, 0, 1) {
		for hour := spaOpenHour; hour < spaCloseHour; hour++ {
			slotStart := time.Date(day.Year(), day.Month(), day.Day(), hour, 0, 0, 0, s.location)
			slots = append(slots, persistence.TreatmentSlot{
				ID:          s.idGenerator(),
				TreatmentID: treatment.ID,
				StartAt:     slotStart,
				EndAt:       slotStart.Add(time.Hour),
			})
		}
	}

	created, err := s.catalog.CreateTreatmentSlots(ctx, slots)
	if err != nil {
		logger.ErrorContext(ctx, "failed to generate slots", "error", err, "error_kind", ErrorKind(err))
		return 0, err
	}
	logger.With("generated", created, "candidates", len(slots)).InfoContext(ctx, "treatment slots generated")
	return created, nil
}

// ListSlots returns a treatment's slots within [from, to).
func (s *TreatmentService) ListSlots(ctx context.Context, treatmentID string, from, to time.Time) ([]persistence.TreatmentSlot, error) {
	if s == nil {
		return nil, fmt.Errorf("TreatmentService is nil")
	}
	if _, err := s.catalog.GetTreatment(ctx, treatmentID); err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return s.catalog.ListTreatmentSlots(ctx, treatmentID, from, to)
}

func (s *TreatmentService) startOfDay(t time.Time) time.Time {
	local := t.In(s.location)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.location)
}
