package realtime

import "sync"

// Broadcaster fans out encoded messages to per-connection queues.
type Broadcaster struct {
	mu     sync.Mutex
	subs   map[string]chan []byte
	buffer int
	onDrop func(id string)
}

// NewBroadcaster creates an empty broadcaster whose queues hold buffer messages.
func NewBroadcaster(buffer int) *Broadcaster {
	if buffer <= 0 {
		buffer = 64
	}
	return &Broadcaster{
		subs:   make(map[string]chan []byte),
		buffer: buffer,
	}
}

// OnDrop registers fn, called (outside the lock) with the id of every
// subscriber cut off for lagging.
func (b *Broadcaster) OnDrop(fn func(id string)) {
	b.mu.Lock()
	b.onDrop = fn
	b.mu.Unlock()
}

// Subscribe registers id and returns its message queue. An existing queue for
// id is closed and replaced.
func (b *Broadcaster) Subscribe(id string) <-chan []byte {
	ch := make(chan []byte, b.buffer)
	b.mu.Lock()
	if old, ok := b.subs[id]; ok {
		close(old)
	}
	b.subs[id] = ch
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes id and closes its queue.
func (b *Broadcaster) Unsubscribe(id string) {
	b.mu.Lock()
	if ch, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(ch)
	}
	b.mu.Unlock()
}

// Send queues msg for id. It reports false if id is unknown or was cut off.
func (b *Broadcaster) Send(id string, msg []byte) bool {
	b.mu.Lock()
	ch, ok := b.subs[id]
	if !ok {
		b.mu.Unlock()
		return false
	}
	delivered := b.offerLocked(id, ch, msg)
	fn := b.onDrop
	b.mu.Unlock()
	if !delivered && fn != nil {
		fn(id)
	}
	return delivered
}

// offerLocked never blocks. A full queue means the subscriber is lagging; it
// is removed so it cannot miss events silently and stay out of order.
func (b *Broadcaster) offerLocked(id string, ch chan []byte, msg []byte) bool {
	select {
	case ch <- msg:
		return true
	default:
		delete(b.subs, id)
		close(ch)
		return false
	}
}

func (b *Broadcaster) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
