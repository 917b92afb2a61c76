package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/resort-scheduler/internal/persistence"
	"github.com/example/resort-scheduler/internal/schedule"
)

// MaterializerService turns composed occurrences into durable class-session
// rows so bookings can attach to a stable identity.
type MaterializerService struct {
	schedules       *ScheduleService
	sessions        SessionStore
	catalog         CatalogStore
	idGenerator     func() string
	defaultCapacity int
	logger          *slog.Logger
}

// NewMaterializerService constructs a MaterializerService with the provided dependencies.
func NewMaterializerService(schedules *ScheduleService, sessions SessionStore, catalog CatalogStore, idGenerator func() string, defaultCapacity int) *MaterializerService {
	return NewMaterializerServiceWithLogger(schedules, sessions, catalog, idGenerator, defaultCapacity, nil)
}

// NewMaterializerServiceWithLogger constructs a MaterializerService with a specified logger.
func NewMaterializerServiceWithLogger(schedules *ScheduleService, sessions SessionStore, catalog CatalogStore, idGenerator func() string, defaultCapacity int, logger *slog.Logger) *MaterializerService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if defaultCapacity <= 0 {
		defaultCapacity = 12
	}
	return &MaterializerService{
		schedules:       schedules,
		sessions:        sessions,
		catalog:         catalog,
		idGenerator:     idGenerator,
		defaultCapacity: defaultCapacity,
		logger:          defaultLogger(logger),
	}
}

func (s *MaterializerService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "MaterializerService", operation, attrs...)
}

// Materialize upserts a session for every composed occurrence in [from, to).
// The upsert keys on (class, studio, start): existing sessions only get their
// display fields refreshed, so booked counts survive re-materialization. A
// failed upsert is logged and skipped; the batch continues.
func (s *MaterializerService) Materialize(ctx context.Context, from, to time.Time) (MaterializeResult, error) {
	if s == nil {
		return MaterializeResult{}, fmt.Errorf("MaterializerService is nil")
	}

	logger := s.loggerWith(ctx, "Materialize",
		"from", from.Format("2006-01-02"),
		"to", to.Format("2006-01-02"),
	)

	composed, err := s.schedules.GetSchedule(ctx, from, to)
	if err != nil {
		logger.ErrorContext(ctx, "failed to compose schedule", "error", err, "error_kind", ErrorKind(err))
		return MaterializeResult{}, err
	}

	result := MaterializeResult{}
	for _, occ := range composed.Occurrences {
		session, err := s.sessionFor(ctx, occ)
		if err != nil {
			result.Skipped++
			logger.WarnContext(ctx, "skipping occurrence",
				"class_id", occ.ClassID, "studio", occ.Studio, "start", occ.Start,
				"error", err, "error_kind", ErrorKind(err))
			continue
		}

		if _, _, err := s.sessions.UpsertSession(ctx, session); err != nil {
			result.Skipped++
			logger.WarnContext(ctx, "failed to upsert session",
				"class_id", occ.ClassID, "studio", occ.Studio, "start", occ.Start,
				"error", err, "error_kind", ErrorKind(err))
			continue
		}
		result.Upserts++
	}

	logger.With("upserts", result.Upserts, "skipped", result.Skipped).
		InfoContext(ctx, "materialization completed")
	return result, nil
}

func (s *MaterializerService) sessionFor(ctx context.Context, occ schedule.Occurrence) (persistence.ClassSession, error) {
	class, err := s.catalog.GetClass(ctx, occ.ClassID)
	if err != nil {
		return persistence.ClassSession{}, err
	}

	capacity := class.Capacity
	if capacity <= 0 {
		capacity = s.defaultCapacity
	}
	title := occ.ClassTitle
	if title == "" {
		title = class.Title
	}

	session := persistence.ClassSession{
		ID:       s.idGenerator(),
		ClassID:  occ.ClassID,
		Studio:   occ.Studio,
		Title:    title,
		StartAt:  occ.Start,
		EndAt:    occ.End,
		Capacity: capacity,
		Status:   persistence.SessionScheduled,
		Source:   occ.Source,
	}
	if occ.RuleID != "" {
		ruleID := occ.RuleID
		session.RuleID = &ruleID
	}
	return session, nil
}
