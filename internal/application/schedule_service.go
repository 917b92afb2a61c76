package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/resort-scheduler/internal/persistence"
	"github.com/example/resort-scheduler/internal/recurrence"
	"github.com/example/resort-scheduler/internal/schedule"
)

// DefaultWeekKey names the single weekly template the resort operates on.
const DefaultWeekKey = "default"

// ScheduleService composes the two scheduling sources into the unified
// read-only schedule view.
type ScheduleService struct {
	rules    RuleStore
	grids    GridStore
	catalog  CatalogStore
	expander *recurrence.Expander
	resolver *schedule.GridResolver
	warnings *warningCache
	logger   *slog.Logger
}

// NewScheduleService constructs a ScheduleService with the provided dependencies.
func NewScheduleService(rules RuleStore, grids GridStore, catalog CatalogStore, expander *recurrence.Expander, resolver *schedule.GridResolver) *ScheduleService {
	return NewScheduleServiceWithLogger(rules, grids, catalog, expander, resolver, nil)
}

// NewScheduleServiceWithLogger constructs a ScheduleService with a specified logger.
func NewScheduleServiceWithLogger(rules RuleStore, grids GridStore, catalog CatalogStore, expander *recurrence.Expander, resolver *schedule.GridResolver, logger *slog.Logger) *ScheduleService {
	return &ScheduleService{
		rules:    rules,
		grids:    grids,
		catalog:  catalog,
		expander: expander,
		resolver: resolver,
		warnings: newWarningCache(30*time.Second, 128, nil),
		logger:   defaultLogger(logger),
	}
}

func (s *ScheduleService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "ScheduleService", operation, attrs...)
}

// InvalidateWarnings drops cached conflict warnings. Grid and rule writes
// call this so the next read recomputes against fresh data.
func (s *ScheduleService) InvalidateWarnings() {
	s.warnings.Invalidate()
}

// GetSchedule returns every occurrence from both sources for the half-open
// day window [from, to), ordered by (start, studio), together with studio
// conflict warnings. The computation is read-only.
func (s *ScheduleService) GetSchedule(ctx context.Context, from, to time.Time) (ScheduleResult, error) {
	if s == nil {
		return ScheduleResult{}, fmt.Errorf("ScheduleService is nil")
	}

	logger := s.loggerWith(ctx, "GetSchedule",
		"from", from.Format("2006-01-02"),
		"to", to.Format("2006-01-02"),
	)

	if !from.Before(to) {
		vErr := &ValidationError{}
		vErr.add("to", "must be after from")
		return ScheduleResult{}, vErr
	}

	classes, err := s.classInfo(ctx)
	if err != nil {
		return ScheduleResult{}, err
	}

	recurring, skipped, err := s.expandRules(ctx, logger, classes, from, to)
	if err != nil {
		return ScheduleResult{}, err
	}
	manual, err := s.resolveGrid(ctx, classes, from, to)
	if err != nil {
		return ScheduleResult{}, err
	}

	composed := schedule.Compose(recurring, manual)

	cacheKey := buildWarningCacheKey(from, to)
	warnings, ok := s.warnings.Get(cacheKey)
	if !ok {
		warnings = conflictWarnings(schedule.DetectStudioConflicts(composed))
		s.warnings.Store(cacheKey, warnings)
	}

	logger.With(
		"occurrences", len(composed),
		"skipped_rules", skipped,
		"conflicts", len(warnings),
	).InfoContext(ctx, "schedule composed")

	return ScheduleResult{Occurrences: composed, Warnings: warnings}, nil
}

// expandRules expands every active rule. A malformed rule is skipped with a
// warning so one bad rule never blocks the rest; a store failure aborts the
// whole read since a partial schedule would misreport availability.
func (s *ScheduleService) expandRules(ctx context.Context, logger *slog.Logger, classes map[string]schedule.ClassInfo, from, to time.Time) ([]schedule.Occurrence, int, error) {
	rules, err := s.rules.ListRules(ctx, true)
	if err != nil {
		logger.ErrorContext(ctx, "failed to list recurring rules", "error", err, "error_kind", ErrorKind(err))
		return nil, 0, err
	}

	occurrences := make([]schedule.Occurrence, 0)
	skipped := 0
	for _, rule := range rules {
		expanded, err := s.expander.Expand(toExpanderRule(rule), from, to)
		if err != nil {
			skipped++
			logger.WarnContext(ctx, "skipping unparseable recurring rule",
				"rule_id", rule.ID, "error", err, "error_kind", ErrorKind(err))
			continue
		}
		for _, occ := range expanded {
			title := ""
			if info, ok := classes[occ.ClassID]; ok {
				title = info.Title
			}
			occurrences = append(occurrences, schedule.Occurrence{
				Source:     schedule.SourceRecurring,
				Date:       occ.Start.Format("2006-01-02"),
				Hour:       occ.Start.Format("15:04"),
				Start:      occ.Start,
				End:        occ.End,
				Studio:     occ.Studio,
				ClassID:    occ.ClassID,
				ClassTitle: title,
				RuleID:     occ.RuleID,
			})
		}
	}
	return occurrences, skipped, nil
}

func (s *ScheduleService) resolveGrid(ctx context.Context, classes map[string]schedule.ClassInfo, from, to time.Time) ([]schedule.Occurrence, error) {
	stored, err := s.grids.GetGrid(ctx, DefaultWeekKey)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return s.resolver.Resolve(schedule.Grid(stored.Grid), classes, from, to)
}

func (s *ScheduleService) classInfo(ctx context.Context) (map[string]schedule.ClassInfo, error) {
	classes, err := s.catalog.ListClasses(ctx, false)
	if err != nil {
		return nil, err
	}
	info := make(map[string]schedule.ClassInfo, len(classes))
	for _, class := range classes {
		info[class.ID] = schedule.ClassInfo{Title: class.Title, DurationMin: class.DurationMin}
	}
	return info, nil
}

func toExpanderRule(rule persistence.RecurringRule) recurrence.Rule {
	return recurrence.Rule{
		ID:            rule.ID,
		ClassID:       rule.ClassID,
		Studio:        rule.Studio,
		StartTime:     rule.StartTime,
		DurationMin:   rule.DurationMin,
		RRule:         rule.RRule,
		EffectiveFrom: rule.EffectiveFrom,
		EffectiveTo:   rule.EffectiveTo,
		Exceptions:    rule.Exceptions,
	}
}

func conflictWarnings(conflicts []schedule.Conflict) []ConflictWarning {
	if len(conflicts) == 0 {
		return nil
	}
	warnings := make([]ConflictWarning, len(conflicts))
	for i, c := range conflicts {
		warnings[i] = ConflictWarning{
			Studio:  c.Studio,
			Start:   c.First.Start,
			Message: c.Message,
		}
	}
	return warnings
}
