package scheduler

import "time"

// Clock abstracts timer creation so tests can drive scheduling
// deterministically instead of sleeping. Schedulers only arm timers; message
// timestamps belong to the session manager.
type Clock interface {
	// AfterFunc runs f on its own goroutine after d elapses.
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a cancellable pending callback.
type Timer interface {
	// Stop cancels the timer. It reports whether the call prevented the
	// callback from firing.
	Stop() bool
}

type systemClock struct{}

func (systemClock) AfterFunc(d time.Duration, f func()) Timer {
	return systemTimer{time.AfterFunc(d, f)}
}

type systemTimer struct{ t *time.Timer }

func (st systemTimer) Stop() bool { return st.t.Stop() }

// SystemClock returns the wall-clock implementation used outside tests.
func SystemClock() Clock { return systemClock{} }
