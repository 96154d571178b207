package realtime

import (
	"context"
	"sync"
	"time"
)

// TickFunc is called by a loop to advance its owner's state. It returns the
// next time it wants to run; stop true ends the loop.
type TickFunc func(now time.Time) (next time.Time, stop bool)

// Loops runs at most one timing loop per id. Each loop owns a single timer,
// which is always stopped before the next one is armed.
type Loops struct {
	mu    sync.Mutex
	loops map[string]context.CancelFunc
	wakes map[string]chan struct{}
	now   func() time.Time
}

// NewLoops creates an empty loop set.
func NewLoops() *Loops {
	return &Loops{
		loops: make(map[string]context.CancelFunc),
		wakes: make(map[string]chan struct{}),
		now:   time.Now,
	}
}

// Run starts a loop for id. If a loop already exists for id, it is not started
// again and Run returns false.
func (l *Loops) Run(id string, tick TickFunc) bool {
	l.mu.Lock()
	if _, ok := l.loops[id]; ok {
		l.mu.Unlock()
		return false
	}
	ctx, cancel := context.WithCancel(context.Background())
	wake := make(chan struct{}, 1)
	l.loops[id] = cancel
	l.wakes[id] = wake
	l.mu.Unlock()

	go func() {
		defer func() {
			l.mu.Lock()
			if l.wakes[id] == wake {
				delete(l.loops, id)
				delete(l.wakes, id)
			}
			l.mu.Unlock()
			cancel()
		}()

		for {
			next, stop := tick(l.now())
			if stop {
				return
			}
			wait := time.Until(next)
			if wait < 0 {
				wait = 0
			}
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			case <-wake:
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
			}
		}
	}()
	return true
}

// Wake unblocks id's loop so it recomputes immediately.
func (l *Loops) Wake(id string) {
	l.mu.Lock()
	wake, ok := l.wakes[id]
	l.mu.Unlock()
	if !ok {
		return
	}
	select {
	case wake <- struct{}{}:
	default:
	}
}

// Stop cancels id's loop. The tick in flight, if any, completes first.
func (l *Loops) Stop(id string) {
	l.mu.Lock()
	cancel, ok := l.loops[id]
	delete(l.loops, id)
	delete(l.wakes, id)
	l.mu.Unlock()
	if ok {
		cancel()
	}
}

// Active reports whether a loop is running for id.
func (l *Loops) Active(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.loops[id]
	return ok
}

// Len returns the number of running loops.
func (l *Loops) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.loops)
}
