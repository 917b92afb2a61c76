package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/example/resort-scheduler/internal/application"
	"github.com/example/resort-scheduler/internal/persistence"
)

type bookingService interface {
	CreateBooking(ctx context.Context, params application.CreateBookingParams) (persistence.Booking, error)
	ConfirmBooking(ctx context.Context, bookingID string) (persistence.Booking, error)
	CancelBooking(ctx context.Context, bookingID string) (persistence.Booking, error)
	GetBooking(ctx context.Context, bookingID string) (persistence.Booking, error)
}

// BookingHandler serves booking creation and lifecycle transitions.
type BookingHandler struct {
	service   bookingService
	location  *time.Location
	responder responder
	logger    *slog.Logger
}

func NewBookingHandler(service bookingService, location *time.Location, logger *slog.Logger) *BookingHandler {
	base := defaultLogger(logger)
	if location == nil {
		location = time.UTC
	}
	return &BookingHandler{service: service, location: location, responder: newResponder(base), logger: base}
}

func (h *BookingHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "BookingHandler", operation, attrs...)
}

// Create answers POST /bookings.
func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req bookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	params := application.CreateBookingParams{
		Type:       req.Type,
		RoomTypeID: req.RoomTypeID,
		SessionID:  req.SessionID,
		RetreatID:  req.RetreatID,
		SlotID:     req.SlotID,
		GuestCount: req.GuestCount,
		GuestName:  req.GuestName,
		GuestEmail: req.GuestEmail,
		GuestPhone: req.GuestPhone,
	}
	if principal, ok := PrincipalFromContext(r.Context()); ok {
		params.Principal = principal
	}

	var err error
	if req.CheckIn != "" {
		params.CheckIn, err = time.ParseInLocation("2006-01-02", req.CheckIn, h.location)
		if err != nil {
			h.responder.writeError(r.Context(), w, http.StatusBadRequest, &paramError{name: "check_in"})
			return
		}
	}
	if req.CheckOut != "" {
		params.CheckOut, err = time.ParseInLocation("2006-01-02", req.CheckOut, h.location)
		if err != nil {
			h.responder.writeError(r.Context(), w, http.StatusBadRequest, &paramError{name: "check_out"})
			return
		}
	}

	logger := h.log(r.Context(), "Create", "type", req.Type)

	booking, err := h.service.CreateBooking(r.Context(), params)
	if err != nil {
		logger.ErrorContext(r.Context(), "failed to create booking", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("booking_id", booking.ID, "booking_number", booking.Number).InfoContext(r.Context(), "booking created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, toBookingDTO(booking))
}

// Confirm answers POST /bookings/{id}/confirm.
func (h *BookingHandler) Confirm(w http.ResponseWriter, r *http.Request, bookingID string) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	booking, err := h.service.ConfirmBooking(r.Context(), bookingID)
	if err != nil {
		h.log(r.Context(), "Confirm", "booking_id", bookingID).ErrorContext(r.Context(), "failed to confirm booking", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toBookingDTO(booking))
}

// Cancel answers POST /bookings/{id}/cancel.
func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request, bookingID string) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	booking, err := h.service.CancelBooking(r.Context(), bookingID)
	if err != nil {
		h.log(r.Context(), "Cancel", "booking_id", bookingID).ErrorContext(r.Context(), "failed to cancel booking", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toBookingDTO(booking))
}

// Get answers GET /bookings/{id}.
func (h *BookingHandler) Get(w http.ResponseWriter, r *http.Request, bookingID string) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	booking, err := h.service.GetBooking(r.Context(), bookingID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toBookingDTO(booking))
}

type bookingRequest struct {
	Type       string `json:"type"`
	RoomTypeID string `json:"room_type_id,omitempty"`
	SessionID  string `json:"session_id,omitempty"`
	RetreatID  string `json:"retreat_id,omitempty"`
	SlotID     string `json:"slot_id,omitempty"`
	CheckIn    string `json:"check_in,omitempty"`
	CheckOut   string `json:"check_out,omitempty"`
	GuestCount int    `json:"guest_count"`
	GuestName  string `json:"guest_name"`
	GuestEmail string `json:"guest_email,omitempty"`
	GuestPhone string `json:"guest_phone,omitempty"`
}

type bookingDTO struct {
	ID         string  `json:"id"`
	Number     string  `json:"number"`
	Type       string  `json:"type"`
	Status     string  `json:"status"`
	RoomTypeID *string `json:"room_type_id,omitempty"`
	SessionID  *string `json:"session_id,omitempty"`
	RetreatID  *string `json:"retreat_id,omitempty"`
	SlotID     *string `json:"slot_id,omitempty"`
	CheckIn    string  `json:"check_in,omitempty"`
	CheckOut   string  `json:"check_out,omitempty"`
	GuestCount int     `json:"guest_count"`
	GuestName  string  `json:"guest_name"`
	GuestEmail string  `json:"guest_email,omitempty"`
	GuestPhone string  `json:"guest_phone,omitempty"`
	TotalPrice float64 `json:"total_price"`
}

func toBookingDTO(booking persistence.Booking) bookingDTO {
	dto := bookingDTO{
		ID:         booking.ID,
		Number:     booking.Number,
		Type:       booking.Type,
		Status:     booking.Status,
		RoomTypeID: booking.RoomTypeID,
		SessionID:  booking.SessionID,
		RetreatID:  booking.RetreatID,
		SlotID:     booking.SlotID,
		GuestCount: booking.GuestCount,
		GuestName:  booking.GuestName,
		GuestEmail: booking.GuestEmail,
		GuestPhone: booking.GuestPhone,
		TotalPrice: booking.TotalPrice,
	}
	if booking.CheckIn != nil {
		dto.CheckIn = booking.CheckIn.Format("2006-01-02")
	}
	if booking.CheckOut != nil {
		dto.CheckOut = booking.CheckOut.Format("2006-01-02")
	}
	return dto
}
