package http

import (
	"fmt"
	"net/http"
	"time"
)

// parseDateParam reads a "YYYY-MM-DD" query parameter as local midnight in
// loc. Required parameters report an error when absent.
func parseDateParam(r *http.Request, name string, loc *time.Location, required bool) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		if required {
			return time.Time{}, fmt.Errorf("query parameter %q is required", name)
		}
		return time.Time{}, nil
	}
	parsed, err := time.ParseInLocation("2006-01-02", raw, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("query parameter %q must be a YYYY-MM-DD date", name)
	}
	return parsed, nil
}

// parseWindowParams reads the from/to pair shared by the schedule endpoints.
func parseWindowParams(r *http.Request, loc *time.Location) (time.Time, time.Time, error) {
	from, err := parseDateParam(r, "from", loc, true)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, err := parseDateParam(r, "to", loc, true)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return from, to, nil
}

func formatTimestamp(t time.Time) string {
	return t.Format(time.RFC3339)
}
