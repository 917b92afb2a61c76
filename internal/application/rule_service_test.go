package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/resort-scheduler/internal/persistence"
)

func newRuleFixture(rules *stubRuleStore, catalog *stubCatalogStore) *RuleService {
	schedules := newScheduleFixture(rules, newStubGridStore(), catalog)
	return NewRuleService(rules, catalog, schedules, sequentialIDs("rule"))
}

func validRule() persistence.RecurringRule {
	return persistence.RecurringRule{
		ClassID:       "yoga",
		Studio:        "Main",
		StartTime:     "18:00",
		DurationMin:   60,
		RRule:         "FREQ=WEEKLY;BYDAY=MO,WE",
		EffectiveFrom: date(2025, time.October, 1),
		Active:        true,
	}
}

func TestCreateRule(t *testing.T) {
	catalog := newStubCatalogStore()
	catalog.classes["yoga"] = &persistence.Class{ID: "yoga", Title: "Yoga", Active: true}
	rules := &stubRuleStore{}
	svc := newRuleFixture(rules, catalog)

	created, err := svc.CreateRule(context.Background(), adminPrincipal, validRule())
	if err != nil {
		t.Fatalf("CreateRule failed: %v", err)
	}
	if created.ID == "" {
		t.Error("expected a generated rule id")
	}
	if len(rules.rules) != 1 {
		t.Errorf("expected 1 stored rule, got %d", len(rules.rules))
	}
}

func TestCreateRuleRequiresAdmin(t *testing.T) {
	catalog := newStubCatalogStore()
	catalog.classes["yoga"] = &persistence.Class{ID: "yoga", Active: true}
	svc := newRuleFixture(&stubRuleStore{}, catalog)

	_, err := svc.CreateRule(context.Background(), Principal{UserID: "guest"}, validRule())
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestCreateRuleValidation(t *testing.T) {
	catalog := newStubCatalogStore()
	catalog.classes["yoga"] = &persistence.Class{ID: "yoga", Active: true}
	svc := newRuleFixture(&stubRuleStore{}, catalog)

	future := date(2025, time.September, 1)
	cases := []struct {
		name   string
		mutate func(*persistence.RecurringRule)
		field  string
	}{
		{
			name:   "unknown class",
			mutate: func(r *persistence.RecurringRule) { r.ClassID = "ghost" },
			field:  "class_id",
		},
		{
			name:   "bad start time",
			mutate: func(r *persistence.RecurringRule) { r.StartTime = "25:99" },
			field:  "start_time",
		},
		{
			name:   "negative duration",
			mutate: func(r *persistence.RecurringRule) { r.DurationMin = -10 },
			field:  "duration_min",
		},
		{
			name:   "unparseable rrule",
			mutate: func(r *persistence.RecurringRule) { r.RRule = "EVERY MONDAY" },
			field:  "rrule",
		},
		{
			name:   "weekly without weekdays",
			mutate: func(r *persistence.RecurringRule) { r.RRule = "FREQ=WEEKLY" },
			field:  "rrule",
		},
		{
			name:   "missing effective from",
			mutate: func(r *persistence.RecurringRule) { r.EffectiveFrom = time.Time{} },
			field:  "effective_from",
		},
		{
			name:   "inverted effective range",
			mutate: func(r *persistence.RecurringRule) { r.EffectiveTo = &future },
			field:  "effective_to",
		},
		{
			name:   "malformed exception date",
			mutate: func(r *persistence.RecurringRule) { r.Exceptions = []string{"October 6"} },
			field:  "exceptions",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rule := validRule()
			tc.mutate(&rule)
			_, err := svc.CreateRule(context.Background(), adminPrincipal, rule)
			var vErr *ValidationError
			if !asValidationError(err, &vErr) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if _, ok := vErr.FieldErrors[tc.field]; !ok {
				t.Errorf("expected error on field %q, got %v", tc.field, vErr.FieldErrors)
			}
		})
	}
}

func TestUpdateRule(t *testing.T) {
	catalog := newStubCatalogStore()
	catalog.classes["yoga"] = &persistence.Class{ID: "yoga", Active: true}
	stored := validRule()
	stored.ID = "rule1"
	rules := &stubRuleStore{rules: []persistence.RecurringRule{stored}}
	svc := newRuleFixture(rules, catalog)

	stored.StartTime = "19:00"
	updated, err := svc.UpdateRule(context.Background(), adminPrincipal, stored)
	if err != nil {
		t.Fatalf("UpdateRule failed: %v", err)
	}
	if updated.StartTime != "19:00" {
		t.Errorf("start time not updated: %q", updated.StartTime)
	}

	missing := validRule()
	missing.ID = "ghost"
	if _, err := svc.UpdateRule(context.Background(), adminPrincipal, missing); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDeleteRule(t *testing.T) {
	catalog := newStubCatalogStore()
	stored := validRule()
	stored.ID = "rule1"
	rules := &stubRuleStore{rules: []persistence.RecurringRule{stored}}
	svc := newRuleFixture(rules, catalog)

	if err := svc.DeleteRule(context.Background(), adminPrincipal, "rule1"); err != nil {
		t.Fatalf("DeleteRule failed: %v", err)
	}
	if len(rules.rules) != 0 {
		t.Errorf("rule not removed")
	}
	if err := svc.DeleteRule(context.Background(), adminPrincipal, "rule1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := svc.DeleteRule(context.Background(), Principal{}, "rule1"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}
