package realtime

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestLoops_RunUntilStop(t *testing.T) {
	l := NewLoops()
	var ticks atomic.Int32
	done := make(chan struct{})
	ok := l.Run("r1", func(now time.Time) (time.Time, bool) {
		if ticks.Add(1) == 3 {
			close(done)
			return time.Time{}, true
		}
		return now.Add(5 * time.Millisecond), false
	})
	if !ok {
		t.Fatal("Run returned false for a new id")
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not tick three times")
	}
	waitFor(t, func() bool { return !l.Active("r1") })
}

func TestLoops_RunTwiceIsNoop(t *testing.T) {
	l := NewLoops()
	defer l.Stop("r1")
	block := func(now time.Time) (time.Time, bool) { return now.Add(time.Hour), false }
	if !l.Run("r1", block) {
		t.Fatal("first Run should start")
	}
	if l.Run("r1", block) {
		t.Error("second Run should not start another loop")
	}
	if l.Len() != 1 {
		t.Errorf("Len %d, want 1", l.Len())
	}
}

func TestLoops_WakeRecomputes(t *testing.T) {
	l := NewLoops()
	defer l.Stop("r1")
	calls := make(chan struct{}, 4)
	l.Run("r1", func(now time.Time) (time.Time, bool) {
		calls <- struct{}{}
		return now.Add(time.Hour), false
	})
	<-calls
	l.Wake("r1")
	select {
	case <-calls:
	case <-time.After(2 * time.Second):
		t.Fatal("Wake did not trigger a tick")
	}
}

func TestLoops_Stop(t *testing.T) {
	l := NewLoops()
	l.Run("r1", func(now time.Time) (time.Time, bool) { return now.Add(time.Hour), false })
	l.Stop("r1")
	if l.Active("r1") {
		t.Error("loop should be inactive after Stop")
	}
	l.Wake("r1")
	l.Stop("missing")
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}
