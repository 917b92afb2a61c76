package schedule

import "fmt"

// Conflict reports two occurrences that overlap in the same studio. The
// schedule read path surfaces conflicts as warnings; it never picks a winner
// between the scheduling sources.
type Conflict struct {
	Studio  string
	First   Occurrence
	Second  Occurrence
	Message string
}

// DetectStudioConflicts scans a (start, studio)-ordered occurrence list and
// reports every pair that overlaps in time within the same studio. Intervals
// are half-open, so an occurrence ending exactly when another starts does
// not conflict.
func DetectStudioConflicts(occurrences []Occurrence) []Conflict {
	byStudio := make(map[string][]Occurrence)
	for _, occ := range occurrences {
		byStudio[occ.Studio] = append(byStudio[occ.Studio], occ)
	}

	conflicts := make([]Conflict, 0)
	for _, studio := range sortedKeys(byStudio) {
		list := byStudio[studio]
		for i := 0; i < len(list); i++ {
			for j := i + 1; j < len(list); j++ {
				a, b := list[i], list[j]
				if !a.Start.Before(b.End) || !b.Start.Before(a.End) {
					continue
				}
				conflicts = append(conflicts, Conflict{
					Studio: studio,
					First:  a,
					Second: b,
					Message: fmt.Sprintf("studio %s double-booked at %s: %s (%s) and %s (%s)",
						studio, a.Start.Format("2006-01-02 15:04"),
						a.ClassID, a.Source, b.ClassID, b.Source),
				})
			}
		}
	}
	return conflicts
}
