package pool

import (
	"sync"
	"time"
)

var timerPool sync.Pool

// GetTimer returns a stopped-and-reset timer firing after d.
//
// Return the timer with PutTimer once it is no longer selected on.
func GetTimer(d time.Duration) *time.Timer {
	v := timerPool.Get()
	if v == nil {
		return time.NewTimer(d)
	}

	t, _ := v.(*time.Timer)
	if t.Reset(d) {
		// a live timer slipped into the pool, drop a stale tick
		select {
		case <-t.C:
		default:
		}
	}

	return t
}

// PutTimer stops t and returns it to the pool. t must not be used afterwards.
func PutTimer(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	timerPool.Put(t)
}
