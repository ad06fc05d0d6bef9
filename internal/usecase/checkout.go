package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"cinema-checkout/internal/data/entity"
	"cinema-checkout/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CheckoutService owns every checkout session and moves it through
// Selecting -> Reviewing -> AwaitingPayment -> Committing -> Confirmed|Failed.
type CheckoutService interface {
	Start(ctx context.Context, userID, showtimeID string) (*entity.CheckoutSession, error)
	Get(ctx context.Context, sessionID uuid.UUID) (*entity.CheckoutSession, error)

	SelectSeat(ctx context.Context, sessionID uuid.UUID, seatID string) (*entity.CheckoutSession, error)
	DeselectSeat(ctx context.Context, sessionID uuid.UUID, seatID string) (*entity.CheckoutSession, error)
	SetFoodQty(ctx context.Context, sessionID uuid.UUID, itemID string, qty int) (*entity.CheckoutSession, error)

	ProceedToReview(ctx context.Context, sessionID uuid.UUID) (*entity.CheckoutSession, error)
	BackToSelecting(ctx context.Context, sessionID uuid.UUID) (*entity.CheckoutSession, error)
	StartPayment(ctx context.Context, sessionID uuid.UUID) (*PaymentStart, error)
	RetryPayment(ctx context.Context, sessionID uuid.UUID) (*PaymentStart, error)
	CancelCheckout(ctx context.Context, sessionID uuid.UUID) (*entity.CheckoutSession, error)

	// HandleGatewayResult routes a gateway callback to its session
	HandleGatewayResult(ctx context.Context, attemptID uuid.UUID, outcome entity.GatewayOutcome) (*entity.CheckoutSession, error)

	// Subscribe streams session snapshots after every change. Slow readers
	// miss intermediate snapshots, never the latest one for long.
	Subscribe(sessionID uuid.UUID) (<-chan entity.CheckoutSession, func(), error)

	// SweepIdle evicts sessions untouched for longer than the retention window
	SweepIdle(ctx context.Context, now time.Time) int
}

type PaymentStart struct {
	Session *entity.CheckoutSession
	Attempt *entity.PaymentAttempt
}

const subscriberBuffer = 8

// workflow is the state of one session; every field is guarded by mu
type workflow struct {
	mu        sync.Mutex
	id        uuid.UUID
	userID    string
	showtime  entity.ShowtimeRef
	state     entity.CheckoutState
	attemptID *uuid.UUID
	bookingID *uuid.UUID
	failure   string
	updatedAt time.Time
	closed    bool

	subs    map[int]chan entity.CheckoutSession
	nextSub int
}

type checkoutService struct {
	seats    SeatMap
	cart     CartService
	payments PaymentCoordinator
	config   *utils.Config
	now      Clock
	log      *zap.Logger

	mu       sync.RWMutex
	sessions map[uuid.UUID]*workflow
}

func NewCheckoutService(seats SeatMap, cart CartService, payments PaymentCoordinator, config *utils.Config, now Clock, log *zap.Logger) CheckoutService {
	if now == nil {
		now = time.Now
	}
	return &checkoutService{
		seats:    seats,
		cart:     cart,
		payments: payments,
		config:   config,
		now:      now,
		log:      log.With(zap.String("service", "checkout")),
		sessions: make(map[uuid.UUID]*workflow),
	}
}

func (s *checkoutService) lookup(sessionID uuid.UUID) (*workflow, error) {
	s.mu.RLock()
	w, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("checkout session %s: %w", sessionID, entity.ErrNotFound)
	}
	return w, nil
}

// acquire locks the session; the caller must unlock
func (s *checkoutService) acquire(sessionID uuid.UUID) (*workflow, error) {
	w, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil, fmt.Errorf("checkout session %s: %w", sessionID, entity.ErrSessionClosed)
	}
	return w, nil
}

func requireState(w *workflow, op string, states ...entity.CheckoutState) error {
	for _, st := range states {
		if w.state == st {
			return nil
		}
	}
	return fmt.Errorf("%s not allowed in state %s: %w", op, w.state, entity.ErrInvalidTransition)
}

// transition must be called with w.mu held
func (s *checkoutService) transition(w *workflow, to entity.CheckoutState) error {
	if !w.state.CanTransition(to) {
		return fmt.Errorf("%s -> %s: %w", w.state, to, entity.ErrInvalidTransition)
	}
	s.log.Info("Checkout state changed",
		zap.String("session_id", w.id.String()),
		zap.String("from", string(w.state)),
		zap.String("to", string(to)),
	)
	w.state = to
	w.updatedAt = s.now()
	return nil
}

// rollback undoes an in-flight step whose side effects never landed.
// It bypasses the transition table on purpose.
func (s *checkoutService) rollback(w *workflow, to entity.CheckoutState) {
	s.log.Warn("Checkout state rolled back",
		zap.String("session_id", w.id.String()),
		zap.String("from", string(w.state)),
		zap.String("to", string(to)),
	)
	w.state = to
	w.updatedAt = s.now()
}

func (s *checkoutService) fail(w *workflow, reason string) {
	if err := s.transition(w, entity.StateFailed); err != nil {
		s.log.Error("Cannot fail checkout", zap.String("session_id", w.id.String()), zap.Error(err))
		return
	}
	w.failure = reason
}

// snapshot must be called with w.mu held
func (s *checkoutService) snapshot(w *workflow) *entity.CheckoutSession {
	session := &entity.CheckoutSession{
		ID:            w.id,
		UserID:        w.userID,
		Showtime:      w.showtime,
		State:         w.state,
		FailureReason: w.failure,
		UpdatedAt:     w.updatedAt,
	}
	if w.attemptID != nil {
		id := *w.attemptID
		session.AttemptID = &id
	}
	if w.bookingID != nil {
		id := *w.bookingID
		session.BookingID = &id
	}

	if cart, err := s.cart.Snapshot(w.id); err == nil {
		session.Cart = cart
		session.Totals = cart.Totals()
	} else {
		session.Cart = entity.Cart{SessionID: w.id, Showtime: w.showtime, Lines: []entity.CartLine{}}
	}
	return session
}

// publish must be called with w.mu held
func (s *checkoutService) publish(w *workflow, session *entity.CheckoutSession) {
	for _, ch := range w.subs {
		select {
		case ch <- *session:
		default:
			// drop the oldest queued snapshot to make room for this one
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- *session:
			default:
			}
		}
	}
}

func (s *checkoutService) changed(w *workflow) *entity.CheckoutSession {
	w.updatedAt = s.now()
	session := s.snapshot(w)
	s.publish(w, session)
	return session
}

// reconcile drops expired seats; must be called with w.mu held
func (s *checkoutService) reconcile(ctx context.Context, w *workflow) ([]string, error) {
	dropped, err := s.cart.Reconcile(ctx, w.id)
	if err != nil {
		return nil, fmt.Errorf("reconcile cart: %w", err)
	}
	return dropped, nil
}

// ==================== SESSION LIFECYCLE ====================

func (s *checkoutService) Start(ctx context.Context, userID, showtimeID string) (*entity.CheckoutSession, error) {
	if userID == "" {
		return nil, fmt.Errorf("user id is required")
	}

	showtime, err := s.seats.Showtime(ctx, showtimeID)
	if err != nil {
		return nil, err
	}

	w := &workflow{
		id:        utils.GenerateUUID(),
		userID:    userID,
		showtime:  showtime.Ref,
		state:     entity.StateSelecting,
		updatedAt: s.now(),
		subs:      make(map[int]chan entity.CheckoutSession),
	}
	s.cart.Open(w.id, w.showtime)

	s.mu.Lock()
	s.sessions[w.id] = w
	s.mu.Unlock()

	s.log.Info("Checkout started",
		zap.String("session_id", w.id.String()),
		zap.String("user_id", userID),
		zap.String("showtime", showtime.Ref.String()),
	)

	w.mu.Lock()
	defer w.mu.Unlock()
	return s.snapshot(w), nil
}

func (s *checkoutService) Get(ctx context.Context, sessionID uuid.UUID) (*entity.CheckoutSession, error) {
	w, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return s.snapshot(w), nil
}

// ==================== SELECTING ====================

func (s *checkoutService) SelectSeat(ctx context.Context, sessionID uuid.UUID, seatID string) (*entity.CheckoutSession, error) {
	w, err := s.acquire(sessionID)
	if err != nil {
		return nil, err
	}
	defer w.mu.Unlock()

	if err := requireState(w, "select seat", entity.StateSelecting); err != nil {
		return nil, err
	}

	dropped, err := s.reconcile(ctx, w)
	if err != nil {
		return nil, err
	}

	if _, err := s.cart.AddSeat(ctx, w.id, seatID); err != nil {
		if len(dropped) > 0 {
			s.changed(w)
		}
		return nil, err
	}

	session := s.changed(w)
	session.ExpiredSeats = dropped
	return session, nil
}

func (s *checkoutService) DeselectSeat(ctx context.Context, sessionID uuid.UUID, seatID string) (*entity.CheckoutSession, error) {
	w, err := s.acquire(sessionID)
	if err != nil {
		return nil, err
	}
	defer w.mu.Unlock()

	if err := requireState(w, "deselect seat", entity.StateSelecting); err != nil {
		return nil, err
	}

	dropped, err := s.reconcile(ctx, w)
	if err != nil {
		return nil, err
	}

	if err := s.cart.RemoveSeat(ctx, w.id, seatID); err != nil {
		return nil, err
	}

	session := s.changed(w)
	session.ExpiredSeats = dropped
	return session, nil
}

func (s *checkoutService) SetFoodQty(ctx context.Context, sessionID uuid.UUID, itemID string, qty int) (*entity.CheckoutSession, error) {
	w, err := s.acquire(sessionID)
	if err != nil {
		return nil, err
	}
	defer w.mu.Unlock()

	if err := requireState(w, "change food", entity.StateSelecting); err != nil {
		return nil, err
	}

	dropped, err := s.reconcile(ctx, w)
	if err != nil {
		return nil, err
	}

	if err := s.cart.SetFoodQty(ctx, w.id, itemID, qty); err != nil {
		return nil, err
	}

	session := s.changed(w)
	session.ExpiredSeats = dropped
	return session, nil
}

// ==================== REVIEW ====================

func (s *checkoutService) ProceedToReview(ctx context.Context, sessionID uuid.UUID) (*entity.CheckoutSession, error) {
	w, err := s.acquire(sessionID)
	if err != nil {
		return nil, err
	}
	defer w.mu.Unlock()

	if err := requireState(w, "review", entity.StateSelecting); err != nil {
		return nil, err
	}

	dropped, err := s.reconcile(ctx, w)
	if err != nil {
		return nil, err
	}
	if len(dropped) > 0 {
		s.changed(w)
		return nil, fmt.Errorf("seats %v: %w", dropped, entity.ErrHoldExpired)
	}

	cart, err := s.cart.Snapshot(w.id)
	if err != nil {
		return nil, err
	}
	if !cart.HasSeats() {
		return nil, fmt.Errorf("review session %s: %w", w.id, entity.ErrEmptyCart)
	}

	if err := s.transition(w, entity.StateReviewing); err != nil {
		return nil, err
	}
	return s.changed(w), nil
}

func (s *checkoutService) BackToSelecting(ctx context.Context, sessionID uuid.UUID) (*entity.CheckoutSession, error) {
	w, err := s.acquire(sessionID)
	if err != nil {
		return nil, err
	}
	defer w.mu.Unlock()

	if err := requireState(w, "back to selecting", entity.StateReviewing); err != nil {
		return nil, err
	}
	if err := s.transition(w, entity.StateSelecting); err != nil {
		return nil, err
	}
	return s.changed(w), nil
}

// ==================== PAYMENT ====================

func (s *checkoutService) StartPayment(ctx context.Context, sessionID uuid.UUID) (*PaymentStart, error) {
	w, err := s.acquire(sessionID)
	if err != nil {
		return nil, err
	}
	defer w.mu.Unlock()

	if err := requireState(w, "start payment", entity.StateReviewing); err != nil {
		return nil, err
	}

	lost, err := s.cart.RefreshHolds(ctx, w.id)
	if err != nil {
		return nil, err
	}
	if len(lost) > 0 {
		if err := s.transition(w, entity.StateSelecting); err != nil {
			return nil, err
		}
		s.changed(w)
		return nil, fmt.Errorf("seats %v: %w", lost, entity.ErrHoldExpired)
	}

	return s.beginPayment(ctx, w, entity.StateAwaitingPayment)
}

func (s *checkoutService) RetryPayment(ctx context.Context, sessionID uuid.UUID) (*PaymentStart, error) {
	w, err := s.acquire(sessionID)
	if err != nil {
		return nil, err
	}
	defer w.mu.Unlock()

	if err := requireState(w, "retry payment", entity.StateAwaitingPayment); err != nil {
		return nil, err
	}

	lost, err := s.cart.RefreshHolds(ctx, w.id)
	if err != nil {
		return nil, err
	}
	if len(lost) > 0 {
		if err := s.payments.CancelPending(ctx, w.id, entity.FailureHoldExpired); err != nil {
			s.log.Warn("Failed to cancel pending attempt", zap.String("session_id", w.id.String()), zap.Error(err))
		}
		s.releaseHolds(ctx, w)
		s.fail(w, entity.FailureHoldExpired)
		s.changed(w)
		return nil, fmt.Errorf("seats %v: %w", lost, entity.ErrHoldExpired)
	}

	return s.beginPayment(ctx, w, entity.StateAwaitingPayment)
}

// beginPayment must be called with w.mu held
func (s *checkoutService) beginPayment(ctx context.Context, w *workflow, to entity.CheckoutState) (*PaymentStart, error) {
	totals, err := s.cart.Totals(w.id)
	if err != nil {
		return nil, err
	}
	if totals.SeatAmount == 0 {
		return nil, fmt.Errorf("start payment for session %s: %w", w.id, entity.ErrEmptyCart)
	}

	attempt, err := s.payments.BeginPayment(ctx, BeginPaymentRequest{
		SessionID: w.id,
		UserID:    w.userID,
		Showtime:  w.showtime,
		Amount:    totals.TotalAmount,
	})
	if err != nil {
		return nil, err
	}

	if w.state != to {
		if err := s.transition(w, to); err != nil {
			return nil, err
		}
	}
	id := attempt.ID
	w.attemptID = &id

	return &PaymentStart{Session: s.changed(w), Attempt: attempt}, nil
}

func (s *checkoutService) CancelCheckout(ctx context.Context, sessionID uuid.UUID) (*entity.CheckoutSession, error) {
	w, err := s.acquire(sessionID)
	if err != nil {
		return nil, err
	}
	defer w.mu.Unlock()

	if err := requireState(w, "cancel", entity.StateSelecting, entity.StateReviewing, entity.StateAwaitingPayment); err != nil {
		return nil, err
	}

	if w.state == entity.StateAwaitingPayment {
		if err := s.payments.CancelPending(ctx, w.id, entity.FailureCheckoutCancel); err != nil {
			return nil, err
		}
	}

	s.releaseHolds(ctx, w)
	s.fail(w, entity.FailureCheckoutCancel)
	return s.changed(w), nil
}

// releaseHolds frees the seats but keeps the cart for the final snapshot
func (s *checkoutService) releaseHolds(ctx context.Context, w *workflow) {
	cart, err := s.cart.Snapshot(w.id)
	if err != nil {
		return
	}
	for _, seatID := range cart.SeatIDs() {
		if err := s.cart.RemoveSeat(ctx, w.id, seatID); err != nil {
			s.log.Warn("Failed to release hold",
				zap.String("session_id", w.id.String()),
				zap.String("seat_id", seatID),
				zap.Error(err),
			)
		}
	}
}

func (s *checkoutService) HandleGatewayResult(ctx context.Context, attemptID uuid.UUID, outcome entity.GatewayOutcome) (*entity.CheckoutSession, error) {
	if !outcome.Valid() {
		return nil, fmt.Errorf("unknown gateway outcome %q", outcome)
	}

	sessionID, err := s.payments.SessionForAttempt(ctx, attemptID)
	if err != nil {
		return nil, err
	}

	w, err := s.lookup(sessionID)
	if err != nil {
		// session evicted; the coordinator still records the outcome and
		// flags a refund if money was taken
		if _, perr := s.payments.OnGatewayResult(ctx, attemptID, outcome); perr != nil {
			return nil, perr
		}
		return nil, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	current := w.state == entity.StateAwaitingPayment && w.attemptID != nil && *w.attemptID == attemptID
	if !current {
		if _, err := s.payments.OnGatewayResult(ctx, attemptID, outcome); err != nil {
			return nil, err
		}
		return s.snapshot(w), nil
	}

	switch outcome {
	case entity.OutcomeSucceeded:
		if err := s.transition(w, entity.StateCommitting); err != nil {
			return nil, err
		}
		s.changed(w)

		result, err := s.payments.OnGatewayResult(ctx, attemptID, outcome)
		if errors.Is(err, entity.ErrOutcomeNotRecorded) {
			// nothing is settled yet; stay payable so the redelivery commits
			s.rollback(w, entity.StateAwaitingPayment)
			s.changed(w)
			return nil, err
		}
		if err != nil {
			reason := entity.FailureCommitError
			if errors.Is(err, entity.ErrPostPaymentSeatConflict) {
				reason = entity.FailureSeatConflict
			}
			s.fail(w, reason)
			s.changed(w)
			return nil, err
		}
		if result.Booking == nil {
			// attempt was already closed locally; the coordinator flagged the refund
			s.releaseHolds(ctx, w)
			s.fail(w, entity.FailureCommitError)
			return s.changed(w), nil
		}

		id := result.Booking.ID
		w.bookingID = &id
		if err := s.transition(w, entity.StateConfirmed); err != nil {
			return nil, err
		}
		return s.changed(w), nil

	case entity.OutcomeFailed:
		if _, err := s.payments.OnGatewayResult(ctx, attemptID, outcome); err != nil {
			return nil, err
		}
		s.releaseHolds(ctx, w)
		s.fail(w, entity.FailurePaymentFailed)
		return s.changed(w), nil

	default:
		// canceled: the user may retry while holds last
		if _, err := s.payments.OnGatewayResult(ctx, attemptID, outcome); err != nil {
			return nil, err
		}
		return s.changed(w), nil
	}
}

// ==================== SUBSCRIPTIONS ====================

func (s *checkoutService) Subscribe(sessionID uuid.UUID) (<-chan entity.CheckoutSession, func(), error) {
	w, err := s.lookup(sessionID)
	if err != nil {
		return nil, nil, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	ch := make(chan entity.CheckoutSession, subscriberBuffer)
	if w.closed {
		close(ch)
		return ch, func() {}, nil
	}

	id := w.nextSub
	w.nextSub++
	w.subs[id] = ch
	ch <- *s.snapshot(w)

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			w.mu.Lock()
			defer w.mu.Unlock()
			if sub, ok := w.subs[id]; ok {
				delete(w.subs, id)
				close(sub)
			}
		})
	}
	return ch, unsubscribe, nil
}

// ==================== SWEEPING ====================

func (s *checkoutService) SweepIdle(ctx context.Context, now time.Time) int {
	retention := s.config.Checkout.SessionRetention

	s.mu.RLock()
	candidates := make([]*workflow, 0)
	for _, w := range s.sessions {
		candidates = append(candidates, w)
	}
	s.mu.RUnlock()

	evicted := 0
	for _, w := range candidates {
		w.mu.Lock()
		idle := now.Sub(w.updatedAt) > retention
		// a committing session is mid-flight; leave it alone
		if !idle || w.state == entity.StateCommitting || w.closed {
			w.mu.Unlock()
			continue
		}

		if w.state == entity.StateAwaitingPayment {
			if err := s.payments.CancelPending(ctx, w.id, "session expired"); err != nil {
				s.log.Warn("Failed to cancel pending attempt", zap.String("session_id", w.id.String()), zap.Error(err))
			}
		}
		if err := s.cart.Discard(ctx, w.id); err != nil {
			s.log.Warn("Failed to discard cart", zap.String("session_id", w.id.String()), zap.Error(err))
		}
		s.payments.Forget(w.id)

		w.closed = true
		for id, ch := range w.subs {
			close(ch)
			delete(w.subs, id)
		}
		state := w.state
		w.mu.Unlock()

		s.mu.Lock()
		delete(s.sessions, w.id)
		s.mu.Unlock()

		s.log.Info("Idle checkout session evicted",
			zap.String("session_id", w.id.String()),
			zap.String("state", string(state)),
		)
		evicted++
	}
	return evicted
}
