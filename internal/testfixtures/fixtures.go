// Package testfixtures provides deterministic clocks, identifier generators,
// and catalog fixtures shared by tests across the repository.
package testfixtures

import (
	"time"

	"github.com/example/resort-scheduler/internal/persistence"
)

// ReferenceTime is the fixed instant tests anchor to: a Wednesday noon UTC.
func ReferenceTime() time.Time {
	return time.Date(2025, time.October, 1, 12, 0, 0, 0, time.UTC)
}

// ReferenceDate returns midnight UTC of the given calendar day.
func ReferenceDate(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// YogaClass returns a workshop catalog entry used across scheduling tests.
func YogaClass() persistence.Class {
	return persistence.Class{
		ID:          "class-yoga",
		Slug:        "vinyasa-yoga",
		Title:       "Vinyasa Yoga",
		Studio:      "Main",
		DurationMin: 60,
		Capacity:    10,
		Active:      true,
	}
}

// GardenViewRoom returns a room type with two physical units.
func GardenViewRoom() persistence.RoomType {
	maxGuests := 2
	return persistence.RoomType{
		ID:        "room-garden",
		Slug:      "garden-view",
		Title:     "Garden View",
		MaxGuests: &maxGuests,
		PriceBase: 450,
		Currency:  "ILS",
		Stock:     2,
		Active:    true,
	}
}

// WeeklyYogaRule returns a Monday/Wednesday evening rule for YogaClass.
func WeeklyYogaRule() persistence.RecurringRule {
	return persistence.RecurringRule{
		ID:            "rule-yoga",
		ClassID:       "class-yoga",
		Studio:        "Main",
		StartTime:     "18:00",
		DurationMin:   60,
		RRule:         "FREQ=WEEKLY;BYDAY=MO,WE",
		EffectiveFrom: ReferenceDate(2025, time.October, 1),
		Active:        true,
	}
}
