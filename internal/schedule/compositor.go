package schedule

import "sort"

// Compose merges the recurring and manual occurrence lists into one list
// ordered by (start, studio). No de-duplication happens between sources; a
// manual cell and a recurring rule occupying the same studio and start are
// both surfaced and reported separately as a conflict. Compose is pure and
// does not modify its inputs.
func Compose(recurring, manual []Occurrence) []Occurrence {
	merged := make([]Occurrence, 0, len(recurring)+len(manual))
	merged = append(merged, recurring...)
	merged = append(merged, manual...)
	sortOccurrences(merged)
	return merged
}

func sortOccurrences(occurrences []Occurrence) {
	sort.SliceStable(occurrences, func(i, j int) bool {
		if !occurrences[i].Start.Equal(occurrences[j].Start) {
			return occurrences[i].Start.Before(occurrences[j].Start)
		}
		return occurrences[i].Studio < occurrences[j].Studio
	})
}
