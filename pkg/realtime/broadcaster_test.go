package realtime

import (
	"testing"
)

func TestBroadcaster_SendDeliversToSubscriber(t *testing.T) {
	b := NewBroadcaster(4)
	ch := b.Subscribe("c1")
	defer b.Unsubscribe("c1")

	if !b.Send("c1", []byte("round")) {
		t.Fatal("Send returned false for a live subscriber")
	}
	if got := string(<-ch); got != "round" {
		t.Errorf("got %q, want round", got)
	}
}

func TestBroadcaster_SendUnknown(t *testing.T) {
	b := NewBroadcaster(4)
	if b.Send("nobody", []byte("x")) {
		t.Error("Send to unknown id should return false")
	}
}

func TestBroadcaster_UnsubscribeClosesQueue(t *testing.T) {
	b := NewBroadcaster(4)
	ch := b.Subscribe("c1")
	b.Unsubscribe("c1")
	if _, open := <-ch; open {
		t.Error("queue should be closed after Unsubscribe")
	}
	if b.Len() != 0 {
		t.Errorf("Len %d, want 0", b.Len())
	}
}

func TestBroadcaster_ResubscribeClosesOldQueue(t *testing.T) {
	b := NewBroadcaster(4)
	old := b.Subscribe("c1")
	fresh := b.Subscribe("c1")
	if _, open := <-old; open {
		t.Error("old queue should be closed")
	}
	b.Send("c1", []byte("x"))
	if got := string(<-fresh); got != "x" {
		t.Errorf("got %q, want x", got)
	}
}

func TestBroadcaster_LaggingSubscriberIsCutOff(t *testing.T) {
	b := NewBroadcaster(1)
	var dropped []string
	b.OnDrop(func(id string) { dropped = append(dropped, id) })
	ch := b.Subscribe("slow")

	if !b.Send("slow", []byte("1")) {
		t.Fatal("first send should fit the buffer")
	}
	if b.Send("slow", []byte("2")) {
		t.Error("second send should overflow")
	}
	if len(dropped) != 1 || dropped[0] != "slow" {
		t.Errorf("dropped %v, want [slow]", dropped)
	}
	if got := string(<-ch); got != "1" {
		t.Errorf("got %q, want 1", got)
	}
	if _, open := <-ch; open {
		t.Error("queue should be closed after overflow")
	}
	if b.Len() != 0 {
		t.Errorf("Len %d, want 0", b.Len())
	}
}
