package schedule

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

const defaultDurationMin = 60

// Occurrence sources.
const (
	SourceRecurring = "recurring"
	SourceManual    = "manual"
)

// Occurrence is one concrete class slot, from either scheduling source.
type Occurrence struct {
	Source     string
	Date       string // "YYYY-MM-DD" local date key
	Hour       string // "HH:MM" local time key
	Start      time.Time
	End        time.Time
	Studio     string
	ClassID    string
	ClassTitle string
	RuleID     string
}

// ClassInfo carries the catalog fields the resolver needs per class.
type ClassInfo struct {
	Title       string
	DurationMin int
}

// GridResolver replays the weekly grid template across each calendar day of
// a query window, in a fixed timezone.
type GridResolver struct {
	location *time.Location
}

// NewGridResolver constructs a GridResolver for the given location. A nil
// location falls back to UTC.
func NewGridResolver(loc *time.Location) *GridResolver {
	if loc == nil {
		loc = time.UTC
	}
	return &GridResolver{location: loc}
}

// Resolve emits one Occurrence per populated grid cell for every local day
// in [from, to). Cells referencing a class missing from classes are skipped;
// the grid is an admin draft and dangling references are expected after
// catalog edits. Output is ordered by (start, studio).
func (r *GridResolver) Resolve(grid Grid, classes map[string]ClassInfo, from, to time.Time) ([]Occurrence, error) {
	start := r.startOfDay(from)
	end := r.startOfDay(to)
	if end.Before(start) {
		return nil, fmt.Errorf("window end %s before start %s", to.Format("2006-01-02"), from.Format("2006-01-02"))
	}

	occurrences := make([]Occurrence, 0)
	for day := start; day.Before(end); day = day.AddDate(0, 0, 1) {
		dayKey := strings.ToLower(day.Weekday().String())
		hours, ok := grid[dayKey]
		if !ok {
			continue
		}

		for _, hour := range sortedKeys(hours) {
			hh, mm, err := splitHourKey(hour)
			if err != nil {
				continue
			}
			studios := hours[hour]
			for _, studio := range sortedKeys(studios) {
				classID := studios[studio]
				if classID == "" {
					continue
				}
				info, ok := classes[classID]
				if !ok {
					continue
				}

				duration := time.Duration(info.DurationMin) * time.Minute
				if info.DurationMin <= 0 {
					duration = defaultDurationMin * time.Minute
				}

				slotStart := time.Date(day.Year(), day.Month(), day.Day(), hh, mm, 0, 0, r.location)
				occurrences = append(occurrences, Occurrence{
					Source:     SourceManual,
					Date:       slotStart.Format("2006-01-02"),
					Hour:       hour,
					Start:      slotStart,
					End:        slotStart.Add(duration),
					Studio:     studio,
					ClassID:    classID,
					ClassTitle: info.Title,
				})
			}
		}
	}

	sortOccurrences(occurrences)
	return occurrences, nil
}

func (r *GridResolver) startOfDay(t time.Time) time.Time {
	local := t.In(r.location)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, r.location)
}

func splitHourKey(hour string) (int, int, error) {
	var hh, mm int
	if _, err := fmt.Sscanf(hour, "%d:%d", &hh, &mm); err != nil {
		return 0, 0, fmt.Errorf("parse hour key %q: %w", hour, err)
	}
	if hh < 0 || hh > 23 || mm < 0 || mm > 59 {
		return 0, 0, fmt.Errorf("hour key %q out of range", hour)
	}
	return hh, mm, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
