package events

import (
	"sync"
	"sync/atomic"
)

// Listener is a payload-less change callback.
type Listener func()

// Subscription is returned by Subscribe. Dispose stops delivery and is safe to
// call any number of times from any goroutine.
type Subscription interface {
	Dispose()
}

// SubscriptionFunc adapts a plain function to Subscription. The function runs
// at most once.
func SubscriptionFunc(fn func()) Subscription {
	return &funcSubscription{fn: fn}
}

type funcSubscription struct {
	once sync.Once
	fn   func()
}

func (s *funcSubscription) Dispose() {
	s.once.Do(func() {
		if s.fn != nil {
			s.fn()
		}
	})
}

// Emitter is an owned publish/subscribe point for a single change signal.
// Listeners run synchronously on the goroutine calling Fire, in subscription
// order, without the emitter's lock held.
type Emitter struct {
	mu        sync.Mutex
	listeners []*subscription
	closed    bool
	fired     atomic.Int64
}

// NewEmitter creates an empty emitter.
func NewEmitter() *Emitter {
	return &Emitter{}
}

type subscription struct {
	emitter  *Emitter
	listener Listener
	active   atomic.Bool
	once     sync.Once
}

func (s *subscription) Dispose() {
	s.once.Do(func() {
		s.active.Store(false)
		s.emitter.remove(s)
	})
}

// Subscribe registers listener. Subscribing to a closed emitter returns a
// subscription that never fires.
func (e *Emitter) Subscribe(listener Listener) Subscription {
	s := &subscription{emitter: e, listener: listener}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || listener == nil {
		return s
	}
	s.active.Store(true)
	e.listeners = append(e.listeners, s)
	return s
}

// Fire notifies every active listener once.
func (e *Emitter) Fire() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	snapshot := make([]*subscription, len(e.listeners))
	copy(snapshot, e.listeners)
	e.mu.Unlock()

	e.fired.Add(1)
	for _, s := range snapshot {
		// A listener disposed by an earlier listener in this round is skipped.
		if s.active.Load() {
			s.listener()
		}
	}
}

// FireCount returns how many times Fire delivered (diagnostics and tests).
func (e *Emitter) FireCount() int64 {
	return e.fired.Load()
}

// ListenerCount returns the number of active subscriptions.
func (e *Emitter) ListenerCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.listeners)
}

// Close drops all listeners; later Fire and Subscribe calls are no-ops.
func (e *Emitter) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, s := range e.listeners {
		s.active.Store(false)
	}
	e.listeners = nil
	e.closed = true
}

func (e *Emitter) remove(target *subscription) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, s := range e.listeners {
		if s == target {
			e.listeners = append(e.listeners[:i:i], e.listeners[i+1:]...)
			return
		}
	}
}
