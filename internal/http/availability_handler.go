package http

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/example/resort-scheduler/internal/application"
)

// AvailabilityHandler serves the room availability query.
type AvailabilityHandler struct {
	availability availabilityService
	location     *time.Location
	responder    responder
	logger       *slog.Logger
}

func NewAvailabilityHandler(availability availabilityService, location *time.Location, logger *slog.Logger) *AvailabilityHandler {
	base := defaultLogger(logger)
	if location == nil {
		location = time.UTC
	}
	return &AvailabilityHandler{
		availability: availability,
		location:     location,
		responder:    newResponder(base),
		logger:       base,
	}
}

func (h *AvailabilityHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "AvailabilityHandler", operation, attrs...)
}

// Check answers GET /availability?check_in&check_out&guests&rooms[&room_type].
func (h *AvailabilityHandler) Check(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.availability == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	checkIn, err := parseDateParam(r, "check_in", h.location, true)
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}
	checkOut, err := parseDateParam(r, "check_out", h.location, true)
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}
	guests, err := parseIntParam(r, "guests")
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}
	rooms, err := parseIntParam(r, "rooms")
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	result, err := h.availability.CheckRoomAvailability(r.Context(), application.CheckRoomAvailabilityParams{
		RoomType: r.URL.Query().Get("room_type"),
		CheckIn:  checkIn,
		CheckOut: checkOut,
		Guests:   guests,
		Rooms:    rooms,
	})
	if err != nil {
		h.log(r.Context(), "Check").ErrorContext(r.Context(), "failed to check room availability", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toAvailabilityResponse(result))
}

func parseIntParam(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &paramError{name: name}
	}
	return value, nil
}

type paramError struct {
	name string
}

func (e *paramError) Error() string {
	return "query parameter \"" + e.name + "\" must be an integer"
}

type roomAvailabilityDTO struct {
	Slug           string  `json:"slug"`
	Title          string  `json:"title"`
	TotalStock     int     `json:"total_stock"`
	OccupiedUnits  int     `json:"occupied_units"`
	AvailableUnits int     `json:"available_units"`
	Currency       string  `json:"currency,omitempty"`
	PriceBase      float64 `json:"price_base,omitempty"`
}

type availabilityResponse struct {
	Rooms          []roomAvailabilityDTO `json:"rooms"`
	AvailableUnits int                   `json:"available_units"`
	Summary        map[string]int        `json:"summary"`
	Message        string                `json:"message,omitempty"`
}

func toAvailabilityResponse(result application.RoomAvailabilityResult) availabilityResponse {
	rooms := make([]roomAvailabilityDTO, len(result.Rooms))
	for i, room := range result.Rooms {
		rooms[i] = roomAvailabilityDTO{
			Slug:           room.Slug,
			Title:          room.Title,
			TotalStock:     room.TotalStock,
			OccupiedUnits:  room.OccupiedUnits,
			AvailableUnits: room.AvailableUnits,
			Currency:       room.Currency,
			PriceBase:      room.PriceBase,
		}
	}
	summary := result.Summary
	if summary == nil {
		summary = map[string]int{}
	}
	return availabilityResponse{
		Rooms:          rooms,
		AvailableUnits: result.AvailableUnits,
		Summary:        summary,
		Message:        result.Message,
	}
}
