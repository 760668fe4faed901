package pool

import (
	"sync"
	"time"
)

var timers sync.Pool

// AcquireTimer returns a timer armed for d, reusing a previously released
// timer when one is available.
//
// Hand the timer back with ReleaseTimer once it is no longer needed.
func AcquireTimer(d time.Duration) *time.Timer {
	v := timers.Get()
	if v == nil {
		return time.NewTimer(d)
	}

	t := v.(*time.Timer)
	if t.Reset(d) {
		// recycled timer was still armed, drop the stale tick if it fired
		select {
		case <-t.C:
		default:
		}
	}

	return t
}

// ReleaseTimer stops t and returns it to the pool.
//
// The caller must not touch t or its channel afterwards.
func ReleaseTimer(t *time.Timer) {
	if !t.Stop() {
		// fired already, clear the tick unless the caller consumed it
		select {
		case <-t.C:
		default:
		}
	}

	timers.Put(t)
}
