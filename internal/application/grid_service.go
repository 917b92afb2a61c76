package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/teambition/rrule-go"

	"github.com/example/resort-scheduler/internal/persistence"
	"github.com/example/resort-scheduler/internal/schedule"
)

var rruleWeekdayNames = map[int]string{
	0: "monday",
	1: "tuesday",
	2: "wednesday",
	3: "thursday",
	4: "friday",
	5: "saturday",
	6: "sunday",
}

// GridService manages the admin-edited weekly template. The grid is an
// immutable value: edits produce a new document that replaces the stored one
// wholesale.
type GridService struct {
	grids     GridStore
	rules     RuleStore
	schedules *ScheduleService
	logger    *slog.Logger
}

// NewGridService constructs a GridService with the provided dependencies.
func NewGridService(grids GridStore, rules RuleStore, schedules *ScheduleService) *GridService {
	return NewGridServiceWithLogger(grids, rules, schedules, nil)
}

// NewGridServiceWithLogger constructs a GridService with a specified logger.
func NewGridServiceWithLogger(grids GridStore, rules RuleStore, schedules *ScheduleService, logger *slog.Logger) *GridService {
	return &GridService{
		grids:     grids,
		rules:     rules,
		schedules: schedules,
		logger:    defaultLogger(logger),
	}
}

func (s *GridService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "GridService", operation, attrs...)
}

// GetGrid returns the stored weekly grid. When no grid exists yet it is
// seeded from the active recurring rules and persisted, so admins start
// editing from the recurring schedule instead of a blank template.
func (s *GridService) GetGrid(ctx context.Context, weekKey string) (persistence.WeeklyGrid, error) {
	if s == nil {
		return persistence.WeeklyGrid{}, fmt.Errorf("GridService is nil")
	}
	if weekKey == "" {
		weekKey = DefaultWeekKey
	}

	logger := s.loggerWith(ctx, "GetGrid", "week_key", weekKey)

	stored, err := s.grids.GetGrid(ctx, weekKey)
	if err == nil {
		return stored, nil
	}
	if !errors.Is(err, persistence.ErrNotFound) {
		return persistence.WeeklyGrid{}, err
	}

	seeded, err := s.seedFromRules(ctx, logger)
	if err != nil {
		return persistence.WeeklyGrid{}, err
	}

	saved, err := s.grids.SaveGrid(ctx, persistence.WeeklyGrid{WeekKey: weekKey, Grid: seeded})
	if err != nil {
		return persistence.WeeklyGrid{}, err
	}
	logger.InfoContext(ctx, "weekly grid seeded from recurring rules")
	return saved, nil
}

// SaveGrid replaces the whole grid document. Admin only.
func (s *GridService) SaveGrid(ctx context.Context, principal Principal, grid persistence.WeeklyGrid) (persistence.WeeklyGrid, error) {
	if s == nil {
		return persistence.WeeklyGrid{}, fmt.Errorf("GridService is nil")
	}
	if !principal.IsAdmin {
		return persistence.WeeklyGrid{}, ErrUnauthorized
	}
	if grid.WeekKey == "" {
		grid.WeekKey = DefaultWeekKey
	}
	if err := validateGrid(schedule.Grid(grid.Grid)); err != nil {
		return persistence.WeeklyGrid{}, err
	}

	if principal.UserID != "" {
		userID := principal.UserID
		grid.UpdatedBy = &userID
	}

	saved, err := s.grids.SaveGrid(ctx, grid)
	if err != nil {
		return persistence.WeeklyGrid{}, err
	}

	s.schedules.InvalidateWarnings()
	s.loggerWith(ctx, "SaveGrid", "week_key", grid.WeekKey).InfoContext(ctx, "weekly grid replaced")
	return saved, nil
}

// UpdateCell replaces a single cell, going through the immutable-copy path
// so concurrent readers never observe a half-edited grid. Admin only.
func (s *GridService) UpdateCell(ctx context.Context, principal Principal, weekKey, day, hour, studio, classID string) (persistence.WeeklyGrid, error) {
	if s == nil {
		return persistence.WeeklyGrid{}, fmt.Errorf("GridService is nil")
	}
	if !principal.IsAdmin {
		return persistence.WeeklyGrid{}, ErrUnauthorized
	}

	current, err := s.GetGrid(ctx, weekKey)
	if err != nil {
		return persistence.WeeklyGrid{}, err
	}

	updated, err := schedule.Grid(current.Grid).WithCell(day, hour, studio, classID)
	if err != nil {
		vErr := &ValidationError{}
		vErr.add("cell", err.Error())
		return persistence.WeeklyGrid{}, vErr
	}

	current.Grid = updated
	return s.SaveGrid(ctx, principal, current)
}

// seedFromRules projects every active rule's weekday pattern onto the grid.
func (s *GridService) seedFromRules(ctx context.Context, logger *slog.Logger) (schedule.Grid, error) {
	rules, err := s.rules.ListRules(ctx, true)
	if err != nil {
		return nil, err
	}

	grid := schedule.Grid{}
	for _, rule := range rules {
		parsed, err := rrule.StrToRRule(rule.RRule)
		if err != nil {
			logger.WarnContext(ctx, "skipping unparseable rule while seeding grid",
				"rule_id", rule.ID, "error", err, "error_kind", ErrorKind(err))
			continue
		}
		studio := rule.Studio
		if studio == "" {
			studio = "Unassigned"
		}
		for _, weekday := range parsed.OrigOptions.Byweekday {
			day, ok := rruleWeekdayNames[weekday.Day()]
			if !ok {
				continue
			}
			next, err := grid.WithCell(day, rule.StartTime, studio, rule.ClassID)
			if err != nil {
				logger.WarnContext(ctx, "skipping rule cell while seeding grid",
					"rule_id", rule.ID, "error", err)
				continue
			}
			grid = next
		}
	}
	return grid, nil
}

func validateGrid(grid schedule.Grid) error {
	vErr := &ValidationError{}
	for day := range grid {
		known := false
		for _, key := range schedule.DayKeys {
			if key == day {
				known = true
				break
			}
		}
		if !known {
			vErr.add("grid", fmt.Sprintf("unknown day key %q", day))
		}
	}
	if vErr.HasErrors() {
		return vErr
	}
	return nil
}
