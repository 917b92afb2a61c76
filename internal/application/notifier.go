package application

import (
	"context"
	"log/slog"

	"github.com/example/resort-scheduler/internal/persistence"
)

// LogNotifier is the default Notifier: it records the notification instead
// of delivering it. Real delivery channels plug in behind the same port.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier constructs a LogNotifier.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: defaultLogger(logger)}
}

// BookingConfirmed logs a confirmation notification.
func (n *LogNotifier) BookingConfirmed(ctx context.Context, booking persistence.Booking) error {
	n.logger.InfoContext(ctx, "booking confirmation notification",
		"booking_id", booking.ID,
		"booking_number", booking.Number,
		"guest_email", booking.GuestEmail,
	)
	return nil
}

// BookingCancelled logs a cancellation notification.
func (n *LogNotifier) BookingCancelled(ctx context.Context, booking persistence.Booking) error {
	n.logger.InfoContext(ctx, "booking cancellation notification",
		"booking_id", booking.ID,
		"booking_number", booking.Number,
		"guest_email", booking.GuestEmail,
	)
	return nil
}
