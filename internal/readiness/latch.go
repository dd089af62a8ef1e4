package readiness

import "sync"

// Latch is a [Prober] whose status is set by its owner. Only the first
// transition out of Pending has an effect. The zero value is invalid;
// construct using [NewLatch].
type Latch struct {
	changed chan struct{}
	mu      sync.Mutex
	status  Status
}

var (
	_ Prober   = &Latch{}
	_ Notifier = &Latch{}
)

// NewLatch creates a new pending [Latch].
func NewLatch() *Latch {
	return &Latch{
		changed: make(chan struct{}),
		status:  StatusPending,
	}
}

// PollReady implements [Prober].
func (l *Latch) PollReady() Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.status
}

// Changed implements [Notifier].
func (l *Latch) Changed() <-chan struct{} {
	return l.changed
}

// Set sets the status and returns whether it changed. Setting the
// Pending status is a no-op.
func (l *Latch) Set(status Status) bool {
	if status.State == Pending {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.status.State != Pending {
		return false
	}
	l.status = status
	close(l.changed)
	return true
}
