// Package balance animates the displayed credit balance and keeps the last
// known value in the host's balance store.
package balance

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/codeready-toolchain/storeassist/pkg/config"
	"github.com/codeready-toolchain/storeassist/pkg/events"
	"github.com/codeready-toolchain/storeassist/pkg/host"
)

// Tracker owns the displayed balance. Only balance updates from the
// remote change it; token usage never does.
type Tracker struct {
	store     host.BalanceStore
	publisher events.Publisher
	duration  time.Duration
	interval  time.Duration
	logger    *slog.Logger

	mu        sync.Mutex
	displayed float64
	known     bool
	running   *animation

	wg sync.WaitGroup
}

type animation struct {
	target float64
	cancel context.CancelFunc
	done   chan struct{}
}

// NewTracker creates a tracker. store may be nil.
func NewTracker(cfg *config.BalanceConfig, store host.BalanceStore, publisher events.Publisher, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	if publisher == nil {
		publisher = events.Discard
	}
	interval := cfg.FrameInterval
	if interval <= 0 {
		interval = config.DefaultBalanceConfig().FrameInterval
	}
	return &Tracker{
		store:     store,
		publisher: publisher,
		duration:  cfg.AnimationDuration,
		interval:  interval,
		logger:    logger.With("component", "balance"),
	}
}

// Load initializes the displayed balance from the store.
func (t *Tracker) Load(ctx context.Context) error {
	if t.store == nil {
		return nil
	}
	value, ok, err := t.store.LoadBalance(ctx)
	if err != nil {
		return fmt.Errorf("load balance: %w", err)
	}
	if ok {
		t.mu.Lock()
		t.displayed, t.known = value, true
		t.mu.Unlock()
	}
	return nil
}

// Displayed returns the value currently shown and whether any value is known.
func (t *Tracker) Displayed() (float64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.displayed, t.known
}

// Update animates the displayed balance towards newBalance and then
// persists it. It returns immediately. A running animation is stopped first;
// it persists its own target before the new one starts.
func (t *Tracker) Update(ctx context.Context, newBalance float64) {
	t.mu.Lock()
	prev := t.running
	t.mu.Unlock()
	if prev != nil {
		prev.cancel()
		<-prev.done
	}

	animCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	a := &animation{target: newBalance, cancel: cancel, done: make(chan struct{})}

	t.mu.Lock()
	from, known := t.displayed, t.known
	t.running = a
	t.mu.Unlock()
	if !known {
		from = newBalance
	}

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		defer close(a.done)
		defer cancel()
		t.animate(animCtx, from, newBalance)
		t.finish(ctx, a)
	}()
}

// Wait blocks until every animation has finished and persisted.
func (t *Tracker) Wait() {
	t.wg.Wait()
}

func (t *Tracker) animate(ctx context.Context, from, to float64) {
	if t.duration <= 0 || from == to {
		return
	}
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	start := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			progress := float64(now.Sub(start)) / float64(t.duration)
			if progress >= 1 {
				return
			}
			t.show(from+(to-from)*EaseOutCubic(progress), false)
		}
	}
}

// finish lands on the exact target and persists it once.
func (t *Tracker) finish(ctx context.Context, a *animation) {
	t.show(a.target, true)

	t.mu.Lock()
	if t.running == a {
		t.running = nil
	}
	t.mu.Unlock()

	if t.store == nil {
		return
	}
	if err := t.store.SaveBalance(context.WithoutCancel(ctx), a.target); err != nil {
		t.logger.Warn("Failed to save balance", "balance", a.target, "error", err)
	}
}

func (t *Tracker) show(value float64, final bool) {
	t.mu.Lock()
	t.displayed, t.known = value, true
	t.mu.Unlock()
	t.publisher.Publish("", events.BalanceFramePayload{Value: value, Final: final})
}

// EaseOutCubic maps linear progress in [0,1] to eased progress.
func EaseOutCubic(p float64) float64 {
	p = math.Max(0, math.Min(1, p))
	return 1 - math.Pow(1-p, 3)
}
