package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// HoldLedger is the part of the reservation ledger the sweeper needs
type HoldLedger interface {
	SweepExpired(ctx context.Context, now time.Time) (int, error)
}

// IdleSessions evicts checkout sessions nobody has touched for a while
type IdleSessions interface {
	SweepIdle(ctx context.Context, now time.Time) int
}

// HoldSweeper reclaims expired holds and idle checkout sessions
type HoldSweeper struct {
	ledger   HoldLedger
	sessions IdleSessions
	interval time.Duration
	now      func() time.Time
	log      *zap.Logger
	stopCh   chan struct{}
	wg       sync.WaitGroup
	mu       sync.Mutex
	running  bool

	// Stats
	totalReclaimed   int64
	totalEvicted     int64
	lastScanTime     time.Time
	lastReclaimCount int
}

type HoldSweeperStats struct {
	IsRunning        bool      `json:"is_running"`
	TotalReclaimed   int64     `json:"total_reclaimed"`
	TotalEvicted     int64     `json:"total_evicted"`
	LastScanTime     time.Time `json:"last_scan_time"`
	LastReclaimCount int       `json:"last_reclaim_count"`
}

func NewHoldSweeper(ledger HoldLedger, sessions IdleSessions, interval time.Duration, log *zap.Logger) *HoldSweeper {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &HoldSweeper{
		ledger:   ledger,
		sessions: sessions,
		interval: interval,
		now:      time.Now,
		log:      log.With(zap.String("worker", "hold_sweeper")),
		stopCh:   make(chan struct{}),
	}
}

// WithClock makes sweeps judge expiry by the same clock the checkout engine uses
func (w *HoldSweeper) WithClock(now func() time.Time) *HoldSweeper {
	if now != nil {
		w.now = now
	}
	return w
}

// Start launches the sweep loop
func (w *HoldSweeper) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("hold sweeper already running")
	}
	w.running = true
	w.mu.Unlock()

	w.log.Info("Starting hold sweeper", zap.Duration("interval", w.interval))

	w.wg.Add(1)
	go w.loop(ctx)

	return nil
}

// Stop stops the loop and waits for an in-flight scan
func (w *HoldSweeper) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	w.wg.Wait()
	w.log.Info("Hold sweeper stopped")
}

func (w *HoldSweeper) loop(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	// Run immediately on start
	w.Sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.Sweep(ctx)
		}
	}
}

// Sweep runs one scan
func (w *HoldSweeper) Sweep(ctx context.Context) {
	now := w.now()

	reclaimed, err := w.ledger.SweepExpired(ctx, now)
	if err != nil {
		w.log.Error("Failed to sweep expired holds", zap.Error(err))
	}

	evicted := 0
	if w.sessions != nil {
		evicted = w.sessions.SweepIdle(ctx, now)
	}

	w.mu.Lock()
	w.lastScanTime = now
	w.lastReclaimCount = reclaimed
	w.totalReclaimed += int64(reclaimed)
	w.totalEvicted += int64(evicted)
	w.mu.Unlock()

	if reclaimed > 0 || evicted > 0 {
		w.log.Info("Sweep finished",
			zap.Int("holds_reclaimed", reclaimed),
			zap.Int("sessions_evicted", evicted),
		)
	}
}

func (w *HoldSweeper) GetStats() *HoldSweeperStats {
	w.mu.Lock()
	defer w.mu.Unlock()

	return &HoldSweeperStats{
		IsRunning:        w.running,
		TotalReclaimed:   w.totalReclaimed,
		TotalEvicted:     w.totalEvicted,
		LastScanTime:     w.lastScanTime,
		LastReclaimCount: w.lastReclaimCount,
	}
}
