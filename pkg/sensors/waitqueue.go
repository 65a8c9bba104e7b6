package sensors

import "sync"

// waitQueue lets any number of goroutines sleep until the next wake.
// Every wake closes the current channel, releasing all sleepers at once,
// and the next sleeper lazily installs a fresh one.
type waitQueue struct {
	mu     sync.Mutex
	ch     chan struct{}
	closed bool
}

// channel returns the channel closed by the next wakeAll.
func (w *waitQueue) channel() (<-chan struct{}, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.ch == nil {
		w.ch = make(chan struct{})
		if w.closed {
			close(w.ch)
		}
	}
	return w.ch, w.closed
}

func (w *waitQueue) wakeAll() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.ch != nil && !w.closed {
		close(w.ch)
		w.ch = nil
	}
}

// shutdown wakes everybody and keeps later sleepers from blocking.
func (w *waitQueue) shutdown() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.closed = true
	if w.ch != nil {
		close(w.ch)
	}
}
