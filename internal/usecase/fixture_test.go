package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"cinema-checkout/internal/data/entity"
	"cinema-checkout/internal/data/repository"
	"cinema-checkout/internal/event"
	"cinema-checkout/internal/gateway"
	"cinema-checkout/pkg/utils"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var demoRef = entity.ShowtimeRef{PlaceID: "pvr-forum", ScreenID: "audi-1", ShowtimeID: "st-1001"}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 10, 20, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingPublisher struct {
	mu        sync.Mutex
	confirmed []event.BookingConfirmed
	refunds   []event.RefundRequired
}

func (p *recordingPublisher) PublishBookingConfirmed(ctx context.Context, evt event.BookingConfirmed) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.confirmed = append(p.confirmed, evt)
	return nil
}

func (p *recordingPublisher) PublishRefundRequired(ctx context.Context, evt event.RefundRequired) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.refunds = append(p.refunds, evt)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) counts() (int, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.confirmed), len(p.refunds)
}

// flakyPayments fails the first Save whose attempt matches failOn
type flakyPayments struct {
	repository.PaymentRepository

	mu     sync.Mutex
	failOn func(*entity.PaymentAttempt) bool
	failed int
}

func (p *flakyPayments) Save(ctx context.Context, a *entity.PaymentAttempt) error {
	p.mu.Lock()
	if p.failOn != nil && p.failOn(a) {
		p.failOn = nil
		p.failed++
		p.mu.Unlock()
		return errors.New("connection reset by peer")
	}
	p.mu.Unlock()
	return p.PaymentRepository.Save(ctx, a)
}

// failNextPaymentSave swaps in a payment repository that drops one matching save
func (f *fixture) failNextPaymentSave(failOn func(*entity.PaymentAttempt) bool) *flakyPayments {
	flaky := &flakyPayments{PaymentRepository: f.repo.Payment, failOn: failOn}
	f.repo.Payment = flaky
	return flaky
}

type fixture struct {
	repo   *repository.Repository
	clock  *fakeClock
	gw     *gateway.MockGateway
	pub    *recordingPublisher
	config *utils.Config
	svc    *Service
}

func testConfig() *utils.Config {
	return &utils.Config{
		Checkout: utils.CheckoutConfig{
			HoldTTL:            300 * time.Second,
			SweepInterval:      10 * time.Second,
			SessionRetention:   30 * time.Minute,
			Currency:           "inr",
			CurrencyMinorUnits: 100,
			Ledger:             "memory",
		},
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	repo, err := repository.NewMemoryRepository(repository.DemoSeed(), zap.NewNop())
	require.NoError(t, err)

	f := &fixture{
		repo:   repo,
		clock:  newFakeClock(),
		gw:     gateway.NewMockGateway(),
		pub:    &recordingPublisher{},
		config: testConfig(),
	}

	f.svc, err = NewService(repo, Deps{
		Gateway:   f.gw,
		Publisher: f.pub,
		Clock:     f.clock.Now,
	}, f.config, zap.NewNop())
	require.NoError(t, err)

	return f
}

// paidSession drives a session to AwaitingPayment with the given seats
func (f *fixture) paidSession(t *testing.T, userID string, seats ...string) (*entity.CheckoutSession, *entity.PaymentAttempt) {
	t.Helper()
	ctx := context.Background()

	session, err := f.svc.Checkout.Start(ctx, userID, demoRef.ShowtimeID)
	require.NoError(t, err)

	for _, seat := range seats {
		_, err = f.svc.Checkout.SelectSeat(ctx, session.ID, seat)
		require.NoError(t, err)
	}

	_, err = f.svc.Checkout.ProceedToReview(ctx, session.ID)
	require.NoError(t, err)

	start, err := f.svc.Checkout.StartPayment(ctx, session.ID)
	require.NoError(t, err)
	require.Equal(t, entity.StateAwaitingPayment, start.Session.State)

	return start.Session, start.Attempt
}
