package runtime

import "sync/atomic"

// CancelFlag is a shared cooperative cancellation signal, set by the
// caller (client disconnect, explicit cancel) and polled by the decode
// loop before each token. It is never reset; one flag covers one job.
type CancelFlag struct {
	v atomic.Bool
}

// NewCancelFlag returns an unset flag.
func NewCancelFlag() *CancelFlag { return &CancelFlag{} }

// Cancel sets the flag. Safe to call repeatedly from any goroutine.
func (c *CancelFlag) Cancel() {
	if c != nil {
		c.v.Store(true)
	}
}

// Canceled reports whether the flag is set. A nil flag never cancels.
func (c *CancelFlag) Canceled() bool {
	return c != nil && c.v.Load()
}
