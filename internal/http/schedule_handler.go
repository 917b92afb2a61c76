package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/example/resort-scheduler/internal/application"
	"github.com/example/resort-scheduler/internal/persistence"
	"github.com/example/resort-scheduler/internal/schedule"
)

type scheduleService interface {
	GetSchedule(ctx context.Context, from, to time.Time) (application.ScheduleResult, error)
}

type gridService interface {
	GetGrid(ctx context.Context, weekKey string) (persistence.WeeklyGrid, error)
	SaveGrid(ctx context.Context, principal application.Principal, grid persistence.WeeklyGrid) (persistence.WeeklyGrid, error)
	UpdateCell(ctx context.Context, principal application.Principal, weekKey, day, hour, studio, classID string) (persistence.WeeklyGrid, error)
}

type materializerService interface {
	Materialize(ctx context.Context, from, to time.Time) (application.MaterializeResult, error)
}

// ScheduleHandler serves the composed schedule, the weekly grid, and
// materialization.
type ScheduleHandler struct {
	schedules    scheduleService
	grids        gridService
	materializer materializerService
	location     *time.Location
	responder    responder
	logger       *slog.Logger
}

func NewScheduleHandler(schedules scheduleService, grids gridService, materializer materializerService, location *time.Location, logger *slog.Logger) *ScheduleHandler {
	base := defaultLogger(logger)
	if location == nil {
		location = time.UTC
	}
	return &ScheduleHandler{
		schedules:    schedules,
		grids:        grids,
		materializer: materializer,
		location:     location,
		responder:    newResponder(base),
		logger:       base,
	}
}

func (h *ScheduleHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "ScheduleHandler", operation, attrs...)
}

// GetSchedule answers GET /schedule?from&to.
func (h *ScheduleHandler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.schedules == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	from, to, err := parseWindowParams(r, h.location)
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	result, err := h.schedules.GetSchedule(r.Context(), from, to)
	if err != nil {
		h.log(r.Context(), "GetSchedule").ErrorContext(r.Context(), "failed to compose schedule", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toScheduleResponse(result))
}

// GetGrid answers GET /schedule/grid?week_key.
func (h *ScheduleHandler) GetGrid(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.grids == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	grid, err := h.grids.GetGrid(r.Context(), r.URL.Query().Get("week_key"))
	if err != nil {
		h.log(r.Context(), "GetGrid").ErrorContext(r.Context(), "failed to load grid", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toGridResponse(grid))
}

// SaveGrid answers POST /schedule/grid with a wholesale replacement.
func (h *ScheduleHandler) SaveGrid(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.grids == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req gridRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	saved, err := h.grids.SaveGrid(r.Context(), principal, persistence.WeeklyGrid{
		WeekKey: req.WeekKey,
		Grid:    req.Grid,
	})
	if err != nil {
		h.log(r.Context(), "SaveGrid").ErrorContext(r.Context(), "failed to save grid", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.log(r.Context(), "SaveGrid", "week_key", saved.WeekKey).InfoContext(r.Context(), "weekly grid replaced")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toGridResponse(saved))
}

// UpdateCell answers PUT /schedule/grid/cell.
func (h *ScheduleHandler) UpdateCell(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.grids == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req cellRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	updated, err := h.grids.UpdateCell(r.Context(), principal, req.WeekKey, req.Day, req.Hour, req.Studio, req.ClassID)
	if err != nil {
		h.log(r.Context(), "UpdateCell").ErrorContext(r.Context(), "failed to update grid cell", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toGridResponse(updated))
}

// Materialize answers POST /schedule/materialize?from&to. Admin only.
func (h *ScheduleHandler) Materialize(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.materializer == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, ok := PrincipalFromContext(r.Context())
	if !ok || !principal.IsAdmin {
		h.responder.handleServiceError(r.Context(), w, application.ErrUnauthorized)
		return
	}

	from, to, err := parseWindowParams(r, h.location)
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	logger := h.log(r.Context(), "Materialize",
		"from", from.Format("2006-01-02"),
		"to", to.Format("2006-01-02"),
	)

	result, err := h.materializer.Materialize(r.Context(), from, to)
	if err != nil {
		logger.ErrorContext(r.Context(), "materialization failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("upserts", result.Upserts, "skipped", result.Skipped).InfoContext(r.Context(), "materialization completed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, materializeResponse{
		Upserts: result.Upserts,
		Skipped: result.Skipped,
	})
}

type occurrenceDTO struct {
	Source     string `json:"source"`
	Date       string `json:"date"`
	Hour       string `json:"hour"`
	Start      string `json:"start"`
	End        string `json:"end"`
	Studio     string `json:"studio"`
	ClassID    string `json:"class_id"`
	ClassTitle string `json:"class_title,omitempty"`
	RuleID     string `json:"rule_id,omitempty"`
}

type scheduleResponse struct {
	Occurrences []occurrenceDTO               `json:"occurrences"`
	Warnings    []application.ConflictWarning `json:"warnings"`
}

func toScheduleResponse(result application.ScheduleResult) scheduleResponse {
	occurrences := make([]occurrenceDTO, len(result.Occurrences))
	for i, occ := range result.Occurrences {
		occurrences[i] = toOccurrenceDTO(occ)
	}
	warnings := result.Warnings
	if warnings == nil {
		warnings = []application.ConflictWarning{}
	}
	return scheduleResponse{Occurrences: occurrences, Warnings: warnings}
}

func toOccurrenceDTO(occ schedule.Occurrence) occurrenceDTO {
	return occurrenceDTO{
		Source:     occ.Source,
		Date:       occ.Date,
		Hour:       occ.Hour,
		Start:      formatTimestamp(occ.Start),
		End:        formatTimestamp(occ.End),
		Studio:     occ.Studio,
		ClassID:    occ.ClassID,
		ClassTitle: occ.ClassTitle,
		RuleID:     occ.RuleID,
	}
}

type gridRequest struct {
	WeekKey string                                  `json:"week_key"`
	Grid    map[string]map[string]map[string]string `json:"grid"`
}

type cellRequest struct {
	WeekKey string `json:"week_key"`
	Day     string `json:"day"`
	Hour    string `json:"hour"`
	Studio  string `json:"studio"`
	ClassID string `json:"class_id"`
}

type gridResponse struct {
	WeekKey   string                                  `json:"week_key"`
	Grid      map[string]map[string]map[string]string `json:"grid"`
	UpdatedBy *string                                 `json:"updated_by,omitempty"`
}

func toGridResponse(grid persistence.WeeklyGrid) gridResponse {
	cells := grid.Grid
	if cells == nil {
		cells = map[string]map[string]map[string]string{}
	}
	return gridResponse{WeekKey: grid.WeekKey, Grid: cells, UpdatedBy: grid.UpdatedBy}
}

type materializeResponse struct {
	Upserts int `json:"upserts"`
	Skipped int `json:"skipped"`
}
