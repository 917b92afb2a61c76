package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/example/resort-scheduler/internal/application"
	"github.com/example/resort-scheduler/internal/persistence"
)

type availabilityService interface {
	CheckRoomAvailability(ctx context.Context, params application.CheckRoomAvailabilityParams) (application.RoomAvailabilityResult, error)
	CheckSessionAvailability(ctx context.Context, sessionID string) (application.SessionAvailability, error)
	ListSessions(ctx context.Context, filter persistence.SessionFilter) ([]application.SessionWithAvailability, error)
}

// SessionHandler serves materialized class sessions and their availability.
type SessionHandler struct {
	availability availabilityService
	location     *time.Location
	responder    responder
	logger       *slog.Logger
}

func NewSessionHandler(availability availabilityService, location *time.Location, logger *slog.Logger) *SessionHandler {
	base := defaultLogger(logger)
	if location == nil {
		location = time.UTC
	}
	return &SessionHandler{
		availability: availability,
		location:     location,
		responder:    newResponder(base),
		logger:       base,
	}
}

func (h *SessionHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "SessionHandler", operation, attrs...)
}

// List answers GET /sessions?from&to&studio&class_id&status.
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.availability == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	filter := persistence.SessionFilter{
		Studio:  r.URL.Query().Get("studio"),
		ClassID: r.URL.Query().Get("class_id"),
		Status:  r.URL.Query().Get("status"),
	}

	from, err := parseDateParam(r, "from", h.location, false)
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}
	if !from.IsZero() {
		filter.From = &from
	}
	to, err := parseDateParam(r, "to", h.location, false)
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}
	if !to.IsZero() {
		filter.To = &to
	}

	sessions, err := h.availability.ListSessions(r.Context(), filter)
	if err != nil {
		h.log(r.Context(), "List").ErrorContext(r.Context(), "failed to list sessions", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	items := make([]sessionDTO, len(sessions))
	for i, session := range sessions {
		items[i] = toSessionDTO(session)
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, sessionListResponse{Sessions: items})
}

// GetAvailability answers GET /sessions/{id}/availability.
func (h *SessionHandler) GetAvailability(w http.ResponseWriter, r *http.Request, sessionID string) {
	if h == nil || h.availability == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	availability, err := h.availability.CheckSessionAvailability(r.Context(), sessionID)
	if err != nil {
		h.log(r.Context(), "GetAvailability", "session_id", sessionID).ErrorContext(r.Context(), "failed to check session availability", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toSessionAvailabilityDTO(availability))
}

type sessionAvailabilityDTO struct {
	SessionID string `json:"session_id"`
	Capacity  int    `json:"capacity"`
	Booked    int    `json:"booked"`
	Remaining int    `json:"remaining"`
	Status    string `json:"status"`
}

func toSessionAvailabilityDTO(availability application.SessionAvailability) sessionAvailabilityDTO {
	return sessionAvailabilityDTO{
		SessionID: availability.SessionID,
		Capacity:  availability.Capacity,
		Booked:    availability.Booked,
		Remaining: availability.Remaining,
		Status:    availability.Status,
	}
}

type sessionDTO struct {
	ID           string                 `json:"id"`
	ClassID      string                 `json:"class_id"`
	RuleID       *string                `json:"rule_id,omitempty"`
	Studio       string                 `json:"studio"`
	Title        string                 `json:"title"`
	StartAt      string                 `json:"start_at"`
	EndAt        string                 `json:"end_at"`
	Source       string                 `json:"source"`
	Availability sessionAvailabilityDTO `json:"availability"`
}

func toSessionDTO(session application.SessionWithAvailability) sessionDTO {
	return sessionDTO{
		ID:           session.Session.ID,
		ClassID:      session.Session.ClassID,
		RuleID:       session.Session.RuleID,
		Studio:       session.Session.Studio,
		Title:        session.Session.Title,
		StartAt:      formatTimestamp(session.Session.StartAt),
		EndAt:        formatTimestamp(session.Session.EndAt),
		Source:       session.Session.Source,
		Availability: toSessionAvailabilityDTO(session.Availability),
	}
}

type sessionListResponse struct {
	Sessions []sessionDTO `json:"sessions"`
}
