package unread

import (
	"context"
	"sync"
	"testing"
	"time"

	"kpireview/internal/domain/notifications"
)

type fakeSource struct {
	mu           sync.Mutex
	evalQueries  int
	invQueries   int
	pendingEvals int
	pendingInvs  int
}

func (f *fakeSource) PendingEvaluations(ctx context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.evalQueries++
	return f.pendingEvals, nil
}

func (f *fakeSource) PendingInvitations(ctx context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invQueries++
	return f.pendingInvs, nil
}

func (f *fakeSource) queries() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.evalQueries, f.invQueries
}

type scheduled struct {
	fn        func()
	cancelled bool
}

type fakeScheduler struct {
	mu    sync.Mutex
	calls []*scheduled
}

func (s *fakeScheduler) Schedule(delay time.Duration, fn func()) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	call := &scheduled{fn: fn}
	s.calls = append(s.calls, call)
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		call.cancelled = true
	}
}

func (s *fakeScheduler) fireAll() {
	s.mu.Lock()
	calls := s.calls
	s.calls = nil
	s.mu.Unlock()
	for _, call := range calls {
		if !call.cancelled {
			call.fn()
		}
	}
}

func (s *fakeScheduler) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func businessEvent(eventType string) notifications.Event {
	return notifications.New(eventType, notifications.EventData{SubjectID: "x"})
}

func TestBurstCollapsesIntoOneQuery(t *testing.T) {
	source := &fakeSource{pendingEvals: 3}
	scheduler := &fakeScheduler{}
	counters := New(source, scheduler, 500*time.Millisecond)

	for i := 0; i < 10; i++ {
		counters.HandleEvent(businessEvent(notifications.TypeEvaluationStatusChanged))
	}
	if scheduler.count() != 1 {
		t.Fatalf("expected one scheduled refresh, got %d", scheduler.count())
	}

	scheduler.fireAll()
	evalQueries, _ := source.queries()
	if evalQueries != 1 {
		t.Fatalf("expected one backend query, got %d", evalQueries)
	}

	evals, _ := counters.Snapshot()
	if evals != 3 {
		t.Fatalf("expected evaluation counter 3, got %d", evals)
	}
}

func TestEventFamiliesRefreshIndependently(t *testing.T) {
	source := &fakeSource{pendingEvals: 2, pendingInvs: 5}
	scheduler := &fakeScheduler{}
	counters := New(source, scheduler, 500*time.Millisecond)

	counters.HandleEvent(businessEvent(notifications.TypeEvaluationCreated))
	counters.HandleEvent(businessEvent(notifications.TypeInvitationCreated))
	counters.HandleEvent(businessEvent(notifications.TypeInvitationStatusChanged))

	if scheduler.count() != 2 {
		t.Fatalf("expected one refresh per family, got %d", scheduler.count())
	}

	scheduler.fireAll()
	evals, invs := counters.Snapshot()
	if evals != 2 || invs != 5 {
		t.Fatalf("expected counters (2, 5), got (%d, %d)", evals, invs)
	}
}

func TestControlEventsNeverRefresh(t *testing.T) {
	source := &fakeSource{}
	scheduler := &fakeScheduler{}
	counters := New(source, scheduler, 500*time.Millisecond)

	counters.HandleEvent(notifications.Heartbeat())
	counters.HandleEvent(notifications.Connected("u-1"))

	if scheduler.count() != 0 {
		t.Fatalf("control events scheduled %d refreshes", scheduler.count())
	}
}

func TestScoreEventsDoNotTouchCounters(t *testing.T) {
	source := &fakeSource{}
	scheduler := &fakeScheduler{}
	counters := New(source, scheduler, 500*time.Millisecond)

	counters.HandleEvent(businessEvent(notifications.TypeSelfScoreUpdated))
	counters.HandleEvent(businessEvent(notifications.TypeInvitedScoreUpdated))

	if scheduler.count() != 0 {
		t.Fatalf("score events scheduled %d refreshes", scheduler.count())
	}
}

func TestResetZeroesAndCancelsQueuedRefresh(t *testing.T) {
	source := &fakeSource{pendingEvals: 4}
	scheduler := &fakeScheduler{}
	counters := New(source, scheduler, 500*time.Millisecond)

	counters.Refresh(context.Background())
	evals, _ := counters.Snapshot()
	if evals != 4 {
		t.Fatalf("expected 4 after refresh, got %d", evals)
	}

	counters.HandleEvent(businessEvent(notifications.TypeEvaluationUpdated))
	counters.Reset()
	scheduler.fireAll()

	evals, invs := counters.Snapshot()
	if evals != 0 || invs != 0 {
		t.Fatalf("expected zeroed counters, got (%d, %d)", evals, invs)
	}

	evalQueries, _ := source.queries()
	if evalQueries != 1 {
		t.Fatalf("cancelled refresh still queried the backend (%d queries)", evalQueries)
	}
}
