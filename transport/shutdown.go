package transport

import (
	"context"
	"sync"
	"time"
)

// Drainer counts in-flight exchanges and, once draining starts, refuses
// new ones. Transports call Enter before dispatching and Leave after the
// response is written.
type Drainer struct {
	mu       sync.Mutex
	draining bool
	active   int64
	idle     chan struct{} // closed when draining with nothing active
}

// NewDrainer returns a drainer accepting exchanges.
func NewDrainer() *Drainer {
	return &Drainer{idle: make(chan struct{})}
}

// Enter registers an exchange. It returns false once draining has started,
// in which case Leave must not be called.
func (d *Drainer) Enter() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.draining {
		return false
	}
	d.active++
	return true
}

// Leave marks an exchange registered by Enter as finished.
func (d *Drainer) Leave() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.active--
	d.signalIdle()
}

// Active returns the number of exchanges between Enter and Leave.
func (d *Drainer) Active() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.active
}

// Draining reports whether new exchanges are refused.
func (d *Drainer) Draining() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.draining
}

// Drain keeps accepting exchanges for delay, then refuses new ones and
// waits for the active ones to finish. It returns ctx.Err() if ctx ends
// first; draining has started either way.
func (d *Drainer) Drain(ctx context.Context, delay time.Duration) error {
	if delay > 0 {
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			d.startDraining()
			return ctx.Err()
		case <-timer.C:
		}
	}

	d.startDraining()

	select {
	case <-d.idle:
		return nil
	case <-ctx.Done():
		if d.Active() == 0 {
			return nil
		}
		return ctx.Err()
	}
}

func (d *Drainer) startDraining() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.draining = true
	d.signalIdle()
}

// signalIdle closes idle when draining has emptied. d.mu must be held.
func (d *Drainer) signalIdle() {
	if !d.draining || d.active > 0 {
		return
	}
	select {
	case <-d.idle:
	default:
		close(d.idle)
	}
}

// WithShutdownTimeout sets how long Serve waits for in-flight requests.
func WithShutdownTimeout(d time.Duration) HTTPOption {
	return func(h *HTTP) {
		if d > 0 {
			h.shutdownTimeout = d
		}
	}
}

// WithShutdownDrainDelay sets how long Serve keeps accepting requests
// after its context is canceled, so a proxy in front can stop routing to
// this instance.
func WithShutdownDrainDelay(d time.Duration) HTTPOption {
	return func(h *HTTP) {
		h.drainDelay = d
	}
}
