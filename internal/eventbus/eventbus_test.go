package eventbus

import (
	"testing"
	"time"
)

func TestBusPublishSubscribe(t *testing.T) {
	bus := New[TriggerEvent]()
	ch, cancel := bus.Subscribe()
	defer cancel()

	ev := TriggerEvent{Source: "mqtt", Time: time.Now()}
	bus.Publish(ev)

	got := <-ch
	if got.Source != "mqtt" {
		t.Fatalf("got %+v", got)
	}
}

func TestBusCancelStopsDelivery(t *testing.T) {
	bus := New[TriggerEvent]()
	ch, cancel := bus.Subscribe()
	cancel()
	if _, ok := <-ch; ok {
		t.Fatalf("expected closed channel after cancel")
	}
	bus.Publish(TriggerEvent{Source: "schedule"})
}

func TestBusClose(t *testing.T) {
	bus := New[RunCompletedEvent]()
	ch1, cancel1 := bus.Subscribe()
	ch2, _ := bus.Subscribe()
	bus.Close()

	if _, ok := <-ch1; ok {
		t.Fatalf("ch1 should be closed")
	}
	if _, ok := <-ch2; ok {
		t.Fatalf("ch2 should be closed")
	}
	cancel1() // must not panic after Close
	bus.Publish(RunCompletedEvent{RunID: "x"})

	if _, cancel := bus.Subscribe(); cancel == nil {
		t.Fatalf("subscribe after close should still return a cancel func")
	}
}

func TestBusSlowSubscriberDoesNotBlock(t *testing.T) {
	bus := New[TriggerEvent]()
	ch, cancel := bus.Subscribe()
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			bus.Publish(TriggerEvent{Source: "schedule"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("publisher blocked on a slow subscriber")
	}
	// Drain whatever fit in the buffer.
	for len(ch) > 0 {
		<-ch
	}
}
