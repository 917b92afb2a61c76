// Package recurrence expands recurring rule templates into concrete
// occurrences within a query window.
package recurrence

import (
	"fmt"
	"sort"
	"time"

	"github.com/teambition/rrule-go"
)

const defaultDurationMin = 60

// Rule is the expander's view of a recurring class template.
type Rule struct {
	ID            string
	ClassID       string
	Studio        string
	StartTime     string // "HH:MM" local time-of-day
	DurationMin   int
	RRule         string
	EffectiveFrom time.Time
	EffectiveTo   *time.Time
	Exceptions    []string // "YYYY-MM-DD" local date keys
}

// Occurrence is a single expanded instance of a rule.
type Occurrence struct {
	RuleID  string
	ClassID string
	Studio  string
	Start   time.Time
	End     time.Time
}

// Expander expands rules in a fixed resort-local timezone. All occurrence
// times carry that location; day boundaries and exception-date matching are
// evaluated in it, so expansion stays correct across DST transitions.
type Expander struct {
	location *time.Location
}

// NewExpander constructs an Expander for the given location. A nil location
// falls back to UTC.
func NewExpander(loc *time.Location) *Expander {
	if loc == nil {
		loc = time.UTC
	}
	return &Expander{location: loc}
}

// Location returns the expander's timezone.
func (e *Expander) Location() *time.Location {
	return e.location
}

// Expand generates every occurrence of rule whose start falls inside the
// intersection of the rule's effective range and the [from, to) window
// (half-open over calendar days: from is included, to is the first excluded
// day). Exception dates are dropped after expansion. A rule matching nothing
// yields an empty slice and no error; a malformed rule returns an error so
// the caller can skip it.
func (e *Expander) Expand(rule Rule, from, to time.Time) ([]Occurrence, error) {
	if rule.RRule == "" {
		return nil, fmt.Errorf("rule %s: empty recurrence", rule.ID)
	}

	hour, minute, err := parseTimeOfDay(rule.StartTime)
	if err != nil {
		return nil, fmt.Errorf("rule %s: %w", rule.ID, err)
	}

	r, err := rrule.StrToRRule(rule.RRule)
	if err != nil {
		return nil, fmt.Errorf("rule %s: parse rrule %q: %w", rule.ID, rule.RRule, err)
	}

	// Anchor the series at the rule's effective-from date with the rule's
	// time-of-day, in the resort's timezone.
	ef := rule.EffectiveFrom.In(e.location)
	dtstart := time.Date(ef.Year(), ef.Month(), ef.Day(), hour, minute, 0, 0, e.location)
	r.DTStart(dtstart)

	var set rrule.Set
	set.RRule(r)

	windowStart, windowEnd := e.clipWindow(rule, from, to, dtstart)
	if windowEnd.Before(windowStart) {
		return []Occurrence{}, nil
	}

	duration := time.Duration(rule.DurationMin) * time.Minute
	if rule.DurationMin <= 0 {
		duration = defaultDurationMin * time.Minute
	}

	excluded := make(map[string]struct{}, len(rule.Exceptions))
	for _, day := range rule.Exceptions {
		excluded[day] = struct{}{}
	}

	occurrences := make([]Occurrence, 0)
	for _, start := range set.Between(windowStart, windowEnd, true) {
		start = start.In(e.location)
		if _, skip := excluded[start.Format("2006-01-02")]; skip {
			continue
		}
		occurrences = append(occurrences, Occurrence{
			RuleID:  rule.ID,
			ClassID: rule.ClassID,
			Studio:  rule.Studio,
			Start:   start,
			End:     start.Add(duration),
		})
	}

	sort.Slice(occurrences, func(i, j int) bool {
		return occurrences[i].Start.Before(occurrences[j].Start)
	})
	return occurrences, nil
}

// clipWindow intersects the query window with the rule's effective range.
// The query window covers local days [from, to); the effective range covers
// local days [effectiveFrom, effectiveTo] inclusive.
func (e *Expander) clipWindow(rule Rule, from, to, dtstart time.Time) (time.Time, time.Time) {
	start := startOfDay(from.In(e.location))
	if dtstart.After(start) {
		start = dtstart
	}

	end := startOfDay(to.In(e.location)).Add(-time.Second)
	if rule.EffectiveTo != nil {
		et := endOfDay(rule.EffectiveTo.In(e.location))
		if et.Before(end) {
			end = et
		}
	}
	return start, end
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func endOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 0, t.Location())
}

func parseTimeOfDay(value string) (int, int, error) {
	var hour, minute int
	if _, err := fmt.Sscanf(value, "%d:%d", &hour, &minute); err != nil {
		return 0, 0, fmt.Errorf("parse time of day %q: %w", value, err)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("time of day %q out of range", value)
	}
	return hour, minute, nil
}
