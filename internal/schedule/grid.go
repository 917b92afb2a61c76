// Package schedule computes the composed class schedule from two sources:
// expanded recurring rules and the admin-edited weekly grid.
package schedule

import (
	"fmt"
	"strings"
)

// DayKeys lists the grid's day keys in week order.
var DayKeys = []string{"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday"}

// Grid is the weekly template: day -> hour ("HH:MM") -> studio -> class id.
// A Grid is treated as an immutable value; WithCell returns a modified copy
// and callers replace the whole document on save.
type Grid map[string]map[string]map[string]string

// Cell returns the class id stored at (day, hour, studio), if any.
func (g Grid) Cell(day, hour, studio string) (string, bool) {
	hours, ok := g[normalizeDay(day)]
	if !ok {
		return "", false
	}
	studios, ok := hours[hour]
	if !ok {
		return "", false
	}
	classID, ok := studios[studio]
	if !ok || classID == "" {
		return "", false
	}
	return classID, true
}

// WithCell returns a copy of the grid with (day, hour, studio) set to
// classID. An empty classID clears the cell. The receiver is not modified.
func (g Grid) WithCell(day, hour, studio, classID string) (Grid, error) {
	key := normalizeDay(day)
	if !validDay(key) {
		return nil, fmt.Errorf("unknown day key %q", day)
	}
	if hour == "" || studio == "" {
		return nil, fmt.Errorf("hour and studio are required")
	}

	out := g.Clone()
	if out == nil {
		out = Grid{}
	}
	if classID == "" {
		if hours, ok := out[key]; ok {
			if studios, ok := hours[hour]; ok {
				delete(studios, studio)
				if len(studios) == 0 {
					delete(hours, hour)
				}
			}
			if len(hours) == 0 {
				delete(out, key)
			}
		}
		return out, nil
	}

	if out[key] == nil {
		out[key] = map[string]map[string]string{}
	}
	if out[key][hour] == nil {
		out[key][hour] = map[string]string{}
	}
	out[key][hour][studio] = classID
	return out, nil
}

// Clone returns a deep copy of the grid. A nil grid clones to nil.
func (g Grid) Clone() Grid {
	if g == nil {
		return nil
	}
	out := make(Grid, len(g))
	for day, hours := range g {
		out[day] = make(map[string]map[string]string, len(hours))
		for hour, studios := range hours {
			cells := make(map[string]string, len(studios))
			for studio, classID := range studios {
				cells[studio] = classID
			}
			out[day][hour] = cells
		}
	}
	return out
}

func normalizeDay(day string) string {
	return strings.ToLower(strings.TrimSpace(day))
}

func validDay(day string) bool {
	for _, key := range DayKeys {
		if key == day {
			return true
		}
	}
	return false
}
