package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"cinema-checkout/internal/data/entity"
	"cinema-checkout/internal/data/repository"
	"cinema-checkout/internal/event"
	"cinema-checkout/internal/gateway"
	"cinema-checkout/pkg/telemetry"
	"cinema-checkout/pkg/utils"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// PaymentCoordinator drives payment attempts and turns a captured payment into
// a committed booking.
type PaymentCoordinator interface {
	// BeginPayment returns the live attempt for the session, creating one if
	// needed. A pending attempt for the same amount is reused so the gateway
	// sees the same idempotency key on retries.
	BeginPayment(ctx context.Context, req BeginPaymentRequest) (*entity.PaymentAttempt, error)

	// OnGatewayResult is idempotent per attempt: only the first terminal
	// outcome has effect.
	OnGatewayResult(ctx context.Context, attemptID uuid.UUID, outcome entity.GatewayOutcome) (*GatewayResult, error)

	CancelPending(ctx context.Context, sessionID uuid.UUID, reason string) error
	SessionForAttempt(ctx context.Context, attemptID uuid.UUID) (uuid.UUID, error)
	Forget(sessionID uuid.UUID)

	// Operator
	ListRefundRequired(ctx context.Context) ([]*entity.PaymentAttempt, error)
	Refund(ctx context.Context, attemptID uuid.UUID) (*entity.PaymentAttempt, error)
}

type BeginPaymentRequest struct {
	SessionID uuid.UUID
	UserID    string
	Showtime  entity.ShowtimeRef
	Amount    int64
}

type GatewayResult struct {
	Attempt   *entity.PaymentAttempt
	Booking   *entity.Booking
	Duplicate bool
}

// sessionPayments serializes everything payment-related for one session
type sessionPayments struct {
	mu        sync.Mutex
	sessionID uuid.UUID
	userID    string
	showtime  entity.ShowtimeRef
	current   *entity.PaymentAttempt
	attempts  map[uuid.UUID]*entity.PaymentAttempt
	booking   *entity.Booking
}

type paymentCoordinator struct {
	repo      *repository.Repository
	gateway   gateway.PaymentGateway
	publisher event.Publisher
	seats     SeatMap
	ledger    ReservationLedger
	cart      CartService
	config    *utils.Config
	now       Clock
	log       *zap.Logger

	mu       sync.Mutex
	sessions map[uuid.UUID]*sessionPayments
	attempts map[uuid.UUID]uuid.UUID // attempt -> session
}

func NewPaymentCoordinator(
	repo *repository.Repository,
	gw gateway.PaymentGateway,
	publisher event.Publisher,
	seats SeatMap,
	ledger ReservationLedger,
	cart CartService,
	config *utils.Config,
	now Clock,
	log *zap.Logger,
) PaymentCoordinator {
	if now == nil {
		now = time.Now
	}
	return &paymentCoordinator{
		repo:      repo,
		gateway:   gw,
		publisher: publisher,
		seats:     seats,
		ledger:    ledger,
		cart:      cart,
		config:    config,
		now:       now,
		log:       log.With(zap.String("service", "payment")),
		sessions:  make(map[uuid.UUID]*sessionPayments),
		attempts:  make(map[uuid.UUID]uuid.UUID),
	}
}

func (c *paymentCoordinator) session(req BeginPaymentRequest) *sessionPayments {
	c.mu.Lock()
	defer c.mu.Unlock()

	sp, ok := c.sessions[req.SessionID]
	if !ok {
		sp = &sessionPayments{
			sessionID: req.SessionID,
			userID:    req.UserID,
			showtime:  req.Showtime,
			attempts:  make(map[uuid.UUID]*entity.PaymentAttempt),
		}
		c.sessions[req.SessionID] = sp
	}
	return sp
}

func (c *paymentCoordinator) lookup(attemptID uuid.UUID) (*sessionPayments, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sessionID, ok := c.attempts[attemptID]
	if !ok {
		return nil, false
	}
	sp, ok := c.sessions[sessionID]
	return sp, ok
}

func (c *paymentCoordinator) save(ctx context.Context, a *entity.PaymentAttempt) error {
	a.UpdatedAt = c.now()
	if err := c.repo.Payment.Save(ctx, a); err != nil {
		return fmt.Errorf("save payment attempt %s: %w", a.ID, err)
	}
	return nil
}

// update persists change applied to a copy of a, and only then copies it
// back. A failed save leaves the live attempt exactly as it was.
func (c *paymentCoordinator) update(ctx context.Context, a *entity.PaymentAttempt, change func(*entity.PaymentAttempt)) error {
	next := *a
	change(&next)
	if err := c.save(ctx, &next); err != nil {
		return err
	}
	*a = next
	return nil
}

func copyAttempt(a *entity.PaymentAttempt) *entity.PaymentAttempt {
	if a == nil {
		return nil
	}
	cp := *a
	return &cp
}

func (c *paymentCoordinator) BeginPayment(ctx context.Context, req BeginPaymentRequest) (*entity.PaymentAttempt, error) {
	if req.Amount <= 0 {
		return nil, fmt.Errorf("begin payment for session %s: %w", req.SessionID, entity.ErrEmptyCart)
	}

	sp := c.session(req)
	sp.mu.Lock()
	defer sp.mu.Unlock()

	if sp.booking != nil {
		return nil, fmt.Errorf("session %s: %w", req.SessionID, entity.ErrAlreadyPaid)
	}
	for _, a := range sp.attempts {
		if a.Status == entity.PaymentStatusSucceeded {
			return nil, fmt.Errorf("session %s: %w", req.SessionID, entity.ErrAlreadyPaid)
		}
	}

	if cur := sp.current; cur != nil && cur.Status == entity.PaymentStatusPending {
		if cur.Amount == req.Amount {
			if cur.GatewayRef != "" {
				return copyAttempt(cur), nil
			}
			// intent creation failed last time; retry under the same key
			return c.createIntent(ctx, sp, cur)
		}

		if err := c.update(ctx, cur, func(a *entity.PaymentAttempt) {
			a.Status = entity.PaymentStatusCanceled
			a.FailureReason = "superseded by new amount"
		}); err != nil {
			return nil, err
		}
		c.log.Info("Pending payment attempt superseded",
			zap.String("attempt_id", cur.ID.String()),
			zap.Int64("old_amount", cur.Amount),
			zap.Int64("new_amount", req.Amount),
		)
	}

	now := c.now()
	attempt := &entity.PaymentAttempt{
		Base: entity.Base{
			ID:        utils.GenerateUUID(),
			CreatedAt: now,
			UpdatedAt: now,
		},
		SessionID:   sp.sessionID,
		UserID:      sp.userID,
		Amount:      req.Amount,
		Currency:    c.config.Checkout.Currency,
		Status:      entity.PaymentStatusPending,
		Gateway:     c.gateway.Name(),
		RefundState: entity.RefundNone,
	}
	if err := c.save(ctx, attempt); err != nil {
		return nil, err
	}

	sp.attempts[attempt.ID] = attempt
	sp.current = attempt

	c.mu.Lock()
	c.attempts[attempt.ID] = sp.sessionID
	c.mu.Unlock()

	c.log.Info("Payment attempt created",
		zap.String("attempt_id", attempt.ID.String()),
		zap.String("session_id", sp.sessionID.String()),
		zap.Int64("amount", attempt.Amount),
	)

	return c.createIntent(ctx, sp, attempt)
}

// createIntent must be called with sp.mu held. No seat lock is held here.
func (c *paymentCoordinator) createIntent(ctx context.Context, sp *sessionPayments, a *entity.PaymentAttempt) (*entity.PaymentAttempt, error) {
	resp, err := c.gateway.CreatePaymentIntent(ctx, &gateway.IntentRequest{
		AttemptID:      a.ID,
		SessionID:      sp.sessionID,
		Amount:         a.Amount,
		Currency:       a.Currency,
		IdempotencyKey: a.IdempotencyKey(),
		Description:    fmt.Sprintf("Tickets for showtime %s", sp.showtime.ShowtimeID),
	})
	if err != nil {
		c.log.Error("Failed to create payment intent",
			zap.String("attempt_id", a.ID.String()),
			zap.String("gateway", c.gateway.Name()),
			zap.Error(err),
		)
		return nil, fmt.Errorf("create payment intent: %w: %w", entity.ErrPaymentFailed, err)
	}

	if err := c.update(ctx, a, func(a *entity.PaymentAttempt) {
		a.GatewayRef = resp.GatewayRef
		a.ClientSecret = resp.ClientSecret
	}); err != nil {
		return nil, err
	}
	return copyAttempt(a), nil
}

func (c *paymentCoordinator) OnGatewayResult(ctx context.Context, attemptID uuid.UUID, outcome entity.GatewayOutcome) (*GatewayResult, error) {
	if !outcome.Valid() {
		return nil, fmt.Errorf("unknown gateway outcome %q", outcome)
	}

	sp, ok := c.lookup(attemptID)
	if !ok {
		return c.onDetachedResult(ctx, attemptID, outcome)
	}

	sp.mu.Lock()
	defer sp.mu.Unlock()

	a := sp.attempts[attemptID]
	if a.Status.IsTerminal() {
		return c.onClosedAttempt(ctx, sp, a, outcome)
	}

	if err := c.update(ctx, a, func(a *entity.PaymentAttempt) { a.Status = outcome.Status() }); err != nil {
		c.log.Error("Failed to record gateway result, waiting for redelivery",
			zap.String("attempt_id", a.ID.String()),
			zap.String("outcome", string(outcome)),
			zap.Error(err),
		)
		return nil, fmt.Errorf("record %s outcome: %w: %w", outcome, entity.ErrOutcomeNotRecorded, err)
	}

	c.log.Info("Gateway result recorded",
		zap.String("attempt_id", a.ID.String()),
		zap.String("outcome", string(outcome)),
	)

	result := &GatewayResult{Attempt: copyAttempt(a)}
	if outcome != entity.OutcomeSucceeded {
		return result, nil
	}

	booking, err := c.commit(ctx, sp, a)
	result.Attempt = copyAttempt(a)
	if err != nil {
		return result, err
	}
	result.Booking = booking
	return result, nil
}

// onClosedAttempt handles a callback for an attempt that already has a
// terminal status. Must be called with sp.mu held.
func (c *paymentCoordinator) onClosedAttempt(ctx context.Context, sp *sessionPayments, a *entity.PaymentAttempt, outcome entity.GatewayOutcome) (*GatewayResult, error) {
	result := &GatewayResult{Attempt: copyAttempt(a), Duplicate: true}

	// captured earlier but neither booked nor flagged for refund: finish the job
	if outcome == entity.OutcomeSucceeded && a.Status == entity.PaymentStatusSucceeded &&
		sp.booking == nil && a.RefundState == entity.RefundNone {
		result.Duplicate = false
		booking, err := c.commit(ctx, sp, a)
		result.Attempt = copyAttempt(a)
		if err != nil {
			return result, err
		}
		result.Booking = booking
		return result, nil
	}

	if a.Status == outcome.Status() {
		if a.Status == entity.PaymentStatusSucceeded && sp.booking != nil {
			b := *sp.booking
			result.Booking = &b
		}
		c.log.Debug("Duplicate gateway result ignored",
			zap.String("attempt_id", a.ID.String()),
			zap.String("outcome", string(outcome)),
		)
		return result, nil
	}

	// money captured on an attempt we had already closed locally
	if outcome == entity.OutcomeSucceeded && a.RefundState == entity.RefundNone {
		cart, _ := c.cart.Snapshot(sp.sessionID)
		if err := c.flagRefund(ctx, a, cart.SeatIDs(), sp.showtime, "payment captured on closed attempt"); err != nil {
			return nil, err
		}
		result.Attempt = copyAttempt(a)
		return result, nil
	}

	c.log.Warn("Conflicting gateway result ignored",
		zap.String("attempt_id", a.ID.String()),
		zap.String("status", string(a.Status)),
		zap.String("outcome", string(outcome)),
	)
	return result, nil
}

// onDetachedResult handles callbacks for attempts whose session is no longer
// in memory, e.g. after eviction or a restart.
func (c *paymentCoordinator) onDetachedResult(ctx context.Context, attemptID uuid.UUID, outcome entity.GatewayOutcome) (*GatewayResult, error) {
	a, err := c.repo.Payment.FindByID(ctx, attemptID)
	if err != nil {
		return nil, fmt.Errorf("find payment attempt %s: %w", attemptID, err)
	}
	if a == nil {
		return nil, fmt.Errorf("payment attempt %s: %w", attemptID, entity.ErrNotFound)
	}

	if a.Status == outcome.Status() || outcome != entity.OutcomeSucceeded {
		if !a.Status.IsTerminal() {
			a.Status = outcome.Status()
			if err := c.save(ctx, a); err != nil {
				return nil, err
			}
		}
		return &GatewayResult{Attempt: a, Duplicate: a.Status == outcome.Status()}, nil
	}

	a.Status = entity.PaymentStatusSucceeded
	if a.RefundState == entity.RefundNone {
		if err := c.flagRefund(ctx, a, nil, entity.ShowtimeRef{}, "payment captured after checkout session ended"); err != nil {
			return nil, err
		}
	}
	return &GatewayResult{Attempt: a}, nil
}

// commit turns a succeeded attempt into a booking. Must be called with sp.mu held.
func (c *paymentCoordinator) commit(ctx context.Context, sp *sessionPayments, a *entity.PaymentAttempt) (*entity.Booking, error) {
	ctx, span := telemetry.StartSpan(ctx, "payment.commit",
		attribute.String("attempt_id", a.ID.String()),
		attribute.String("session_id", sp.sessionID.String()),
	)
	defer span.End()

	cart, err := c.cart.Snapshot(sp.sessionID)
	if err != nil {
		return nil, c.escalate(ctx, a, nil, sp.showtime, entity.ErrPostPaymentSeatConflict, fmt.Errorf("cart unavailable: %w", err))
	}

	seatIDs := cart.SeatIDs()
	if len(seatIDs) == 0 {
		return nil, c.escalate(ctx, a, nil, cart.Showtime, entity.ErrPostPaymentSeatConflict, entity.ErrEmptyCart)
	}

	totals := cart.Totals()
	if totals.TotalAmount != a.Amount {
		return nil, c.escalate(ctx, a, seatIDs, cart.Showtime, entity.ErrPostPaymentSeatConflict,
			fmt.Errorf("cart total %d does not match captured amount %d", totals.TotalAmount, a.Amount))
	}

	// the session must still own every seat
	for _, seatID := range seatIDs {
		if _, err := c.ledger.TryHold(ctx, sp.sessionID, cart.Showtime, seatID, c.config.Checkout.HoldTTL); err != nil {
			return nil, c.escalate(ctx, a, seatIDs, cart.Showtime, entity.ErrPostPaymentSeatConflict,
				fmt.Errorf("seat %s: %w", seatID, err))
		}
	}

	booking := c.buildBooking(sp, a, cart, totals)

	var stored *entity.Booking
	err = c.seats.MarkBookedWith(ctx, cart.Showtime, seatIDs, func(ctx context.Context) error {
		b, err := c.repo.Booking.Commit(ctx, booking)
		if err != nil {
			return err
		}
		stored = b
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		if errors.Is(err, entity.ErrSeatAlreadyBooked) {
			return nil, c.escalate(ctx, a, seatIDs, cart.Showtime, entity.ErrPostPaymentSeatConflict, err)
		}
		return nil, c.escalate(ctx, a, seatIDs, cart.Showtime, nil, err)
	}

	sp.booking = stored

	if _, err := c.ledger.ReleaseSession(ctx, sp.sessionID); err != nil {
		c.log.Warn("Failed to release holds after commit, they will expire",
			zap.String("session_id", sp.sessionID.String()),
			zap.Error(err),
		)
	}

	c.log.Info("Booking committed",
		zap.String("booking_id", stored.ID.String()),
		zap.String("order_id", stored.OrderID),
		zap.String("attempt_id", a.ID.String()),
		zap.Strings("seat_ids", seatIDs),
		zap.Int64("total", stored.TotalAmount),
	)

	if err := c.publisher.PublishBookingConfirmed(ctx, event.BookingConfirmed{
		BookingID:   stored.ID.String(),
		OrderID:     stored.OrderID,
		UserID:      stored.UserID,
		Showtime:    stored.Showtime,
		SeatIDs:     stored.SeatIDs(),
		TotalAmount: stored.TotalAmount,
		ConfirmedAt: stored.CreatedAt,
	}); err != nil {
		c.log.Warn("Failed to publish booking confirmation",
			zap.String("booking_id", stored.ID.String()),
			zap.Error(err),
		)
	}

	b := *stored
	return &b, nil
}

func (c *paymentCoordinator) buildBooking(sp *sessionPayments, a *entity.PaymentAttempt, cart entity.Cart, totals entity.CartTotals) *entity.Booking {
	now := c.now()
	bookingID := utils.DeriveBookingID(a.ID)

	booking := &entity.Booking{
		Base: entity.Base{
			ID:        bookingID,
			CreatedAt: now,
			UpdatedAt: now,
		},
		OrderID:     utils.GenerateOrderID(bookingID, now),
		SessionID:   sp.sessionID,
		UserID:      sp.userID,
		AttemptID:   a.ID,
		Showtime:    cart.Showtime,
		Seats:       []entity.BookingSeat{},
		Food:        []entity.BookingFood{},
		SeatAmount:  totals.SeatAmount,
		FoodAmount:  totals.FoodAmount,
		TotalAmount: totals.TotalAmount,
		Status:      entity.BookingStatusConfirmed,
	}

	for _, line := range cart.Lines {
		switch line.Kind {
		case entity.CartLineSeat:
			booking.Seats = append(booking.Seats, entity.BookingSeat{
				SeatID: line.SeatID,
				Type:   line.SeatType,
				Price:  line.UnitPrice,
			})
		case entity.CartLineFood:
			booking.Food = append(booking.Food, entity.BookingFood{
				ItemID:    line.FoodItemID,
				Name:      line.Name,
				UnitPrice: line.UnitPrice,
				Quantity:  line.Quantity,
			})
		}
	}
	return booking
}

// escalate flags the captured payment for refund and releases the session's
// holds. kind is ErrPostPaymentSeatConflict for seat loss, nil for storage failures.
func (c *paymentCoordinator) escalate(ctx context.Context, a *entity.PaymentAttempt, seatIDs []string, ref entity.ShowtimeRef, kind, cause error) error {
	if err := c.flagRefund(ctx, a, seatIDs, ref, cause.Error()); err != nil {
		// holds stay so a redelivered result can still book
		c.log.Error("Failed to persist refund flag, waiting for redelivery",
			zap.String("attempt_id", a.ID.String()),
			zap.NamedError("cause", cause),
			zap.Error(err),
		)
		return fmt.Errorf("commit attempt %s: %w: %w", a.ID, entity.ErrOutcomeNotRecorded, errors.Join(cause, err))
	}

	if _, err := c.ledger.ReleaseSession(ctx, a.SessionID); err != nil {
		c.log.Warn("Failed to release holds after failed commit",
			zap.String("session_id", a.SessionID.String()),
			zap.Error(err),
		)
	}

	if kind != nil {
		return fmt.Errorf("commit attempt %s: %w: %w", a.ID, kind, cause)
	}
	return fmt.Errorf("commit attempt %s: %w", a.ID, cause)
}

func (c *paymentCoordinator) flagRefund(ctx context.Context, a *entity.PaymentAttempt, seatIDs []string, ref entity.ShowtimeRef, reason string) error {
	if err := c.update(ctx, a, func(a *entity.PaymentAttempt) {
		a.RefundState = entity.RefundRequired
		a.FailureReason = reason
	}); err != nil {
		return err
	}

	c.log.Error("Payment captured without booking, refund required",
		zap.String("attempt_id", a.ID.String()),
		zap.String("session_id", a.SessionID.String()),
		zap.String("gateway_ref", a.GatewayRef),
		zap.Int64("amount", a.Amount),
		zap.Strings("seat_ids", seatIDs),
		zap.String("reason", reason),
	)

	if err := c.publisher.PublishRefundRequired(ctx, event.RefundRequired{
		AttemptID:  a.ID.String(),
		SessionID:  a.SessionID.String(),
		UserID:     a.UserID,
		GatewayRef: a.GatewayRef,
		Amount:     a.Amount,
		Currency:   a.Currency,
		Showtime:   ref,
		SeatIDs:    seatIDs,
		Reason:     reason,
		RaisedAt:   c.now(),
	}); err != nil {
		c.log.Warn("Failed to publish refund escalation", zap.String("attempt_id", a.ID.String()), zap.Error(err))
	}
	return nil
}

func (c *paymentCoordinator) CancelPending(ctx context.Context, sessionID uuid.UUID, reason string) error {
	c.mu.Lock()
	sp, ok := c.sessions[sessionID]
	c.mu.Unlock()
	if !ok {
		return nil
	}

	sp.mu.Lock()
	defer sp.mu.Unlock()

	cur := sp.current
	if cur == nil || cur.Status != entity.PaymentStatusPending {
		return nil
	}
	return c.update(ctx, cur, func(a *entity.PaymentAttempt) {
		a.Status = entity.PaymentStatusCanceled
		a.FailureReason = reason
	})
}

func (c *paymentCoordinator) SessionForAttempt(ctx context.Context, attemptID uuid.UUID) (uuid.UUID, error) {
	c.mu.Lock()
	sessionID, ok := c.attempts[attemptID]
	c.mu.Unlock()
	if ok {
		return sessionID, nil
	}

	a, err := c.repo.Payment.FindByID(ctx, attemptID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("find payment attempt %s: %w", attemptID, err)
	}
	if a == nil {
		return uuid.Nil, fmt.Errorf("payment attempt %s: %w", attemptID, entity.ErrNotFound)
	}
	return a.SessionID, nil
}

func (c *paymentCoordinator) Forget(sessionID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sp, ok := c.sessions[sessionID]
	if !ok {
		return
	}
	for id := range sp.attempts {
		delete(c.attempts, id)
	}
	delete(c.sessions, sessionID)
}

// ==================== OPERATOR METHODS ====================

func (c *paymentCoordinator) ListRefundRequired(ctx context.Context) ([]*entity.PaymentAttempt, error) {
	attempts, err := c.repo.Payment.FindRefundRequired(ctx)
	if err != nil {
		return nil, fmt.Errorf("list refund-required attempts: %w", err)
	}
	return attempts, nil
}

func (c *paymentCoordinator) Refund(ctx context.Context, attemptID uuid.UUID) (*entity.PaymentAttempt, error) {
	a, err := c.repo.Payment.FindByID(ctx, attemptID)
	if err != nil {
		return nil, fmt.Errorf("find payment attempt %s: %w", attemptID, err)
	}
	if a == nil {
		return nil, fmt.Errorf("payment attempt %s: %w", attemptID, entity.ErrNotFound)
	}
	if a.RefundState != entity.RefundRequired {
		return nil, fmt.Errorf("attempt %s refund state is %s: %w", attemptID, a.RefundState, entity.ErrInvalidTransition)
	}

	if err := c.gateway.Refund(ctx, a.GatewayRef, a.Amount); err != nil {
		return nil, fmt.Errorf("refund attempt %s: %w", attemptID, err)
	}

	a.RefundState = entity.RefundDone
	if err := c.save(ctx, a); err != nil {
		return nil, err
	}

	// keep the in-memory copy in step if the session is still live
	if sp, ok := c.lookup(attemptID); ok {
		sp.mu.Lock()
		if live := sp.attempts[attemptID]; live != nil {
			live.RefundState = entity.RefundDone
		}
		sp.mu.Unlock()
	}

	c.log.Info("Payment refunded",
		zap.String("attempt_id", a.ID.String()),
		zap.String("gateway_ref", a.GatewayRef),
		zap.Int64("amount", a.Amount),
	)
	return a, nil
}
