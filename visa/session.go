package visa

import (
	"io"
	"time"
)

// Session is an open, stateful communication handle to one instrument.
//
// A session is exclusively owned: it is not safe for concurrent use, and
// callers that share one session across goroutines must serialize access.
// Read returns the bytes of one instrument reply as reported by the
// underlying transport; it does not accumulate until the buffer is full.
//
// Close releases the underlying handle. After Close, Read and Write return
// ErrSessionClosed.
type Session interface {
	io.ReadWriteCloser

	// SetTimeout bounds each subsequent Read and Write call. A zero or
	// negative duration removes the bound. Drivers whose transport cannot
	// enforce a deadline implement this as a best-effort no-op.
	SetTimeout(d time.Duration) error
}
