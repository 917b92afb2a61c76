package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/example/resort-scheduler/internal/persistence"
)

// RuleService manages recurring-rule definitions. Rules are admin-owned;
// the scheduling engine only ever reads them.
type RuleService struct {
	rules       RuleStore
	catalog     CatalogStore
	schedules   *ScheduleService
	idGenerator func() string
	logger      *slog.Logger
}

// NewRuleService constructs a RuleService with the provided dependencies.
func NewRuleService(rules RuleStore, catalog CatalogStore, schedules *ScheduleService, idGenerator func() string) *RuleService {
	return NewRuleServiceWithLogger(rules, catalog, schedules, idGenerator, nil)
}

// NewRuleServiceWithLogger constructs a RuleService with a specified logger.
func NewRuleServiceWithLogger(rules RuleStore, catalog CatalogStore, schedules *ScheduleService, idGenerator func() string, logger *slog.Logger) *RuleService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	return &RuleService{
		rules:       rules,
		catalog:     catalog,
		schedules:   schedules,
		idGenerator: idGenerator,
		logger:      defaultLogger(logger),
	}
}

func (s *RuleService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "RuleService", operation, attrs...)
}

// ListRules returns all rules, newest last.
func (s *RuleService) ListRules(ctx context.Context, onlyActive bool) ([]persistence.RecurringRule, error) {
	if s == nil {
		return nil, fmt.Errorf("RuleService is nil")
	}
	return s.rules.ListRules(ctx, onlyActive)
}

// CreateRule validates and stores a new rule. Admin only.
func (s *RuleService) CreateRule(ctx context.Context, principal Principal, rule persistence.RecurringRule) (persistence.RecurringRule, error) {
	if s == nil {
		return persistence.RecurringRule{}, fmt.Errorf("RuleService is nil")
	}
	if !principal.IsAdmin {
		return persistence.RecurringRule{}, ErrUnauthorized
	}

	logger := s.loggerWith(ctx, "CreateRule", "class_id", rule.ClassID)

	if err := s.validateRule(ctx, rule); err != nil {
		return persistence.RecurringRule{}, err
	}

	rule.ID = s.idGenerator()
	created, err := s.rules.CreateRule(ctx, rule)
	if err != nil {
		logger.ErrorContext(ctx, "failed to create rule", "error", err, "error_kind", ErrorKind(err))
		return persistence.RecurringRule{}, err
	}

	s.schedules.InvalidateWarnings()
	logger.With("rule_id", created.ID).InfoContext(ctx, "recurring rule created")
	return created, nil
}

// UpdateRule validates and replaces an existing rule. Admin only.
func (s *RuleService) UpdateRule(ctx context.Context, principal Principal, rule persistence.RecurringRule) (persistence.RecurringRule, error) {
	if s == nil {
		return persistence.RecurringRule{}, fmt.Errorf("RuleService is nil")
	}
	if !principal.IsAdmin {
		return persistence.RecurringRule{}, ErrUnauthorized
	}
	if rule.ID == "" {
		vErr := &ValidationError{}
		vErr.add("id", "is required")
		return persistence.RecurringRule{}, vErr
	}

	if err := s.validateRule(ctx, rule); err != nil {
		return persistence.RecurringRule{}, err
	}

	updated, err := s.rules.UpdateRule(ctx, rule)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return persistence.RecurringRule{}, ErrNotFound
		}
		return persistence.RecurringRule{}, err
	}

	s.schedules.InvalidateWarnings()
	s.loggerWith(ctx, "UpdateRule", "rule_id", rule.ID).InfoContext(ctx, "recurring rule updated")
	return updated, nil
}

// DeleteRule removes a rule. Admin only. Sessions already materialized from
// the rule stay; deletion only stops future expansion.
func (s *RuleService) DeleteRule(ctx context.Context, principal Principal, id string) error {
	if s == nil {
		return fmt.Errorf("RuleService is nil")
	}
	if !principal.IsAdmin {
		return ErrUnauthorized
	}

	if err := s.rules.DeleteRule(ctx, id); err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}

	s.schedules.InvalidateWarnings()
	s.loggerWith(ctx, "DeleteRule", "rule_id", id).InfoContext(ctx, "recurring rule deleted")
	return nil
}

func (s *RuleService) validateRule(ctx context.Context, rule persistence.RecurringRule) error {
	vErr := &ValidationError{}

	if rule.ClassID == "" {
		vErr.add("class_id", "is required")
	} else if _, err := s.catalog.GetClass(ctx, rule.ClassID); err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			vErr.add("class_id", "references an unknown class")
		} else {
			return err
		}
	}

	if !validTimeOfDay(rule.StartTime) {
		vErr.add("start_time", "must be HH:MM")
	}
	if rule.DurationMin < 0 {
		vErr.add("duration_min", "must not be negative")
	}

	if rule.RRule == "" {
		vErr.add("rrule", "is required")
	} else if parsed, err := rrule.StrToRRule(rule.RRule); err != nil {
		vErr.add("rrule", "is not a valid recurrence rule")
	} else if parsed.OrigOptions.Freq == rrule.WEEKLY && len(parsed.OrigOptions.Byweekday) == 0 {
		vErr.add("rrule", "weekly rules must name at least one weekday")
	}

	if rule.EffectiveFrom.IsZero() {
		vErr.add("effective_from", "is required")
	}
	if rule.EffectiveTo != nil && rule.EffectiveTo.Before(rule.EffectiveFrom) {
		vErr.add("effective_to", "must not precede effective_from")
	}
	for _, day := range rule.Exceptions {
		if _, err := time.Parse("2006-01-02", day); err != nil {
			vErr.add("exceptions", fmt.Sprintf("%q is not a YYYY-MM-DD date", day))
			break
		}
	}

	if vErr.HasErrors() {
		return vErr
	}
	return nil
}

func validTimeOfDay(value string) bool {
	parts := strings.Split(value, ":")
	if len(parts) != 2 {
		return false
	}
	var hh, mm int
	if _, err := fmt.Sscanf(value, "%d:%d", &hh, &mm); err != nil {
		return false
	}
	return hh >= 0 && hh <= 23 && mm >= 0 && mm <= 59
}
