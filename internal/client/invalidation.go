package client

import (
	"sync"
	"time"
)

// Invalidation is emitted once per failed refresh cycle. The hosting
// application is expected to send the user to SignInURL.
type Invalidation struct {
	SignInURL string
	Reason    error
	At        time.Time
}

// Invalidations fans session-invalidated signals out to subscribers.
// Subscribers run synchronously on the goroutine that ended the refresh cycle
// and must not block.
type Invalidations struct {
	mu   sync.RWMutex
	next uint64
	subs map[uint64]func(Invalidation)
}

func NewInvalidations() *Invalidations {
	return &Invalidations{subs: make(map[uint64]func(Invalidation))}
}

// Subscribe registers fn and returns a func that removes it.
func (b *Invalidations) Subscribe(fn func(Invalidation)) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.next++
	id := b.next
	b.subs[id] = fn

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs, id)
	}
}

func (b *Invalidations) publish(ev Invalidation) {
	if b == nil {
		return
	}

	b.mu.RLock()
	subs := make([]func(Invalidation), 0, len(b.subs))
	for _, fn := range b.subs {
		subs = append(subs, fn)
	}
	b.mu.RUnlock()

	for _, fn := range subs {
		fn(ev)
	}
}
