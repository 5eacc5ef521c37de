package unread

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"kpireview/internal/domain/notifications"
	"kpireview/internal/realtime/client"
)

// CountSource answers the authoritative pending-count queries. In production
// it is backed by the REST endpoints; tests fake it.
type CountSource interface {
	PendingEvaluations(ctx context.Context) (int, error)
	PendingInvitations(ctx context.Context) (int, error)
}

// Counters tracks the two unread badges: evaluations awaiting the user's
// action and invitations awaiting their response. Event bursts are debounced
// so each family collapses into a single backend query per window.
type Counters struct {
	source    CountSource
	scheduler client.Scheduler
	debounce  time.Duration

	mu          sync.Mutex
	evaluations int
	invitations int
	evalQueued  bool
	invQueued   bool
	cancelEval  func()
	cancelInv   func()
}

func New(source CountSource, scheduler client.Scheduler, debounce time.Duration) *Counters {
	if scheduler == nil {
		scheduler = client.NewTimerScheduler()
	}
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	return &Counters{source: source, scheduler: scheduler, debounce: debounce}
}

// HandleEvent is registered as a realtime subscriber. Control events never
// trigger refreshes.
func (c *Counters) HandleEvent(event notifications.Event) {
	if event.Control() {
		return
	}
	if notifications.AffectsEvaluations(event.Type) {
		c.queueEvaluationRefresh()
	}
	if notifications.AffectsInvitations(event.Type) {
		c.queueInvitationRefresh()
	}
}

func (c *Counters) queueEvaluationRefresh() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.evalQueued {
		return
	}
	c.evalQueued = true
	c.cancelEval = c.scheduler.Schedule(c.debounce, func() {
		c.mu.Lock()
		c.evalQueued = false
		c.mu.Unlock()
		c.refreshEvaluations(context.Background())
	})
}

func (c *Counters) queueInvitationRefresh() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.invQueued {
		return
	}
	c.invQueued = true
	c.cancelInv = c.scheduler.Schedule(c.debounce, func() {
		c.mu.Lock()
		c.invQueued = false
		c.mu.Unlock()
		c.refreshInvitations(context.Background())
	})
}

func (c *Counters) refreshEvaluations(ctx context.Context) {
	count, err := c.source.PendingEvaluations(ctx)
	if err != nil {
		slog.Warn("pending evaluation count refresh failed", "err", err)
		return
	}
	c.mu.Lock()
	c.evaluations = count
	c.mu.Unlock()
}

func (c *Counters) refreshInvitations(ctx context.Context) {
	count, err := c.source.PendingInvitations(ctx)
	if err != nil {
		slog.Warn("pending invitation count refresh failed", "err", err)
		return
	}
	c.mu.Lock()
	c.invitations = count
	c.mu.Unlock()
}

// Refresh re-queries both counters immediately, bypassing the debounce; used
// once on mount/login.
func (c *Counters) Refresh(ctx context.Context) {
	c.refreshEvaluations(ctx)
	c.refreshInvitations(ctx)
}

// Reset zeroes both counters and drops any queued refresh; used on logout.
func (c *Counters) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.evaluations = 0
	c.invitations = 0
	c.evalQueued = false
	c.invQueued = false
	if c.cancelEval != nil {
		c.cancelEval()
		c.cancelEval = nil
	}
	if c.cancelInv != nil {
		c.cancelInv()
		c.cancelInv = nil
	}
}

func (c *Counters) Snapshot() (evaluations, invitations int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.evaluations, c.invitations
}
