package event

import (
	"context"

	"go.uber.org/zap"
)

// LogPublisher writes events to the log when no broker is configured
type LogPublisher struct {
	log *zap.Logger
}

func NewLogPublisher(log *zap.Logger) *LogPublisher {
	return &LogPublisher{log: log.With(zap.String("publisher", "log"))}
}

func (p *LogPublisher) PublishBookingConfirmed(ctx context.Context, evt BookingConfirmed) error {
	p.log.Info("Booking confirmed",
		zap.String("booking_id", evt.BookingID),
		zap.String("order_id", evt.OrderID),
		zap.Strings("seat_ids", evt.SeatIDs),
	)
	return nil
}

func (p *LogPublisher) PublishRefundRequired(ctx context.Context, evt RefundRequired) error {
	p.log.Error("Refund required",
		zap.String("attempt_id", evt.AttemptID),
		zap.String("gateway_ref", evt.GatewayRef),
		zap.Int64("amount", evt.Amount),
		zap.String("reason", evt.Reason),
	)
	return nil
}

func (p *LogPublisher) Close() error { return nil }
