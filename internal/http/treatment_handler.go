package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/example/resort-scheduler/internal/application"
	"github.com/example/resort-scheduler/internal/persistence"
)

type treatmentService interface {
	GenerateSlots(ctx context.Context, principal application.Principal, treatmentID string, from, to time.Time) (int, error)
	ListSlots(ctx context.Context, treatmentID string, from, to time.Time) ([]persistence.TreatmentSlot, error)
}

// TreatmentHandler serves treatment slot generation and listing.
type TreatmentHandler struct {
	service   treatmentService
	location  *time.Location
	responder responder
	logger    *slog.Logger
}

func NewTreatmentHandler(service treatmentService, location *time.Location, logger *slog.Logger) *TreatmentHandler {
	base := defaultLogger(logger)
	if location == nil {
		location = time.UTC
	}
	return &TreatmentHandler{service: service, location: location, responder: newResponder(base), logger: base}
}

func (h *TreatmentHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "TreatmentHandler", operation, attrs...)
}

// GenerateSlots answers POST /treatments/{id}/slots?from&to. Admin only.
func (h *TreatmentHandler) GenerateSlots(w http.ResponseWriter, r *http.Request, treatmentID string) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	from, to, err := parseWindowParams(r, h.location)
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	created, err := h.service.GenerateSlots(r.Context(), principal, treatmentID, from, to)
	if err != nil {
		h.log(r.Context(), "GenerateSlots", "treatment_id", treatmentID).ErrorContext(r.Context(), "failed to generate slots", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.log(r.Context(), "GenerateSlots", "treatment_id", treatmentID, "created", created).InfoContext(r.Context(), "treatment slots generated")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, slotGenerationResponse{Created: created})
}

// ListSlots answers GET /treatments/{id}/slots?from&to.
func (h *TreatmentHandler) ListSlots(w http.ResponseWriter, r *http.Request, treatmentID string) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	from, to, err := parseWindowParams(r, h.location)
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	slots, err := h.service.ListSlots(r.Context(), treatmentID, from, to)
	if err != nil {
		h.log(r.Context(), "ListSlots", "treatment_id", treatmentID).ErrorContext(r.Context(), "failed to list slots", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	items := make([]slotDTO, len(slots))
	for i, slot := range slots {
		items[i] = slotDTO{
			ID:      slot.ID,
			StartAt: formatTimestamp(slot.StartAt),
			EndAt:   formatTimestamp(slot.EndAt),
			Booked:  slot.Booked,
		}
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, slotListResponse{Slots: items})
}

type slotGenerationResponse struct {
	Created int `json:"created"`
}

type slotDTO struct {
	ID      string `json:"id"`
	StartAt string `json:"start_at"`
	EndAt   string `json:"end_at"`
	Booked  bool   `json:"booked"`
}

type slotListResponse struct {
	Slots []slotDTO `json:"slots"`
}
