package client

import "time"

// Scheduler defers a function call. Injected so retry and debounce logic can
// be tested without real timers; the returned cancel is safe to call more
// than once.
type Scheduler interface {
	Schedule(delay time.Duration, fn func()) (cancel func())
}

type timerScheduler struct{}

func (timerScheduler) Schedule(delay time.Duration, fn func()) func() {
	timer := time.AfterFunc(delay, fn)
	return func() { timer.Stop() }
}

func NewTimerScheduler() Scheduler {
	return timerScheduler{}
}
