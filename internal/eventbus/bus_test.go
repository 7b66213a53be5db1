package eventbus

import "testing"

func TestPublishFanOut(t *testing.T) {
	t.Parallel()

	b := New()
	a, unsubA := b.Subscribe(2)
	c, unsubC := b.Subscribe(2)
	defer unsubA()
	defer unsubC()

	b.Publish(Event{Type: PollFinished, Data: "BSEU"})

	for i, ch := range []<-chan Event{a, c} {
		e := <-ch
		if e.Type != PollFinished {
			t.Fatalf("sub %d type = %q, want %q", i, e.Type, PollFinished)
		}
		if e.Time.IsZero() {
			t.Fatalf("sub %d time not stamped", i)
		}
	}
}

func TestPublishDropsWhenFull(t *testing.T) {
	t.Parallel()

	b := New()
	ch, unsub := b.Subscribe(1)
	b.Publish(Event{Type: "a"})
	b.Publish(Event{Type: "b"}) // dropped, must not block

	if e := <-ch; e.Type != "a" {
		t.Fatalf("first event = %q, want a", e.Type)
	}
	unsub()
	unsub() // idempotent
	if _, ok := <-ch; ok {
		t.Fatalf("channel still open after unsubscribe")
	}
	b.Publish(Event{Type: "c"}) // no subscribers, no panic
}
