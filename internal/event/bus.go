package event

import "sync"

// Bus is a synchronous in-process fan-out. Publish delivers to every
// subscriber attached at that moment, in subscription order. There is no
// replay: a subscriber attached after an event fired never sees it.
type Bus struct {
	mu   sync.Mutex
	subs []chan Event
}

func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers a new subscriber with the given channel buffer and
// returns its channel plus an unsubscribe func. Publish blocks once the
// buffer is full, so subscribers must keep draining or size their buffer
// for the burst they expect.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	ch := make(chan Event, buffer)

	b.mu.Lock()
	b.subs = append(b.subs, ch)
	b.mu.Unlock()

	unsubscribe := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, sub := range b.subs {
			if sub == ch {
				b.subs = append(b.subs[:i], b.subs[i+1:]...)
				close(ch)
				return
			}
		}
	}

	return ch, unsubscribe
}

// Publish delivers ev to every current subscriber. The lock is held for
// the duration of the fan-out, which serializes publishes and keeps
// unsubscribe from closing a channel mid-send.
func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.subs {
		ch <- ev
	}
}
