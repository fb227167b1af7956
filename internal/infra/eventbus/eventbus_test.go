package eventbus

import (
	"testing"
	"time"
)

func TestBus_PublishAndSubscribe(t *testing.T) {
	bus := New()
	ch := bus.Subscribe("image.job")

	bus.Publish("image.job", "submitted")

	select {
	case evt := <-ch:
		if evt.Topic != "image.job" {
			t.Errorf("expected topic 'image.job', got %q", evt.Topic)
		}
		if evt.Payload != "submitted" {
			t.Errorf("expected payload 'submitted', got %v", evt.Payload)
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("timeout: expected event to be received within 100ms")
	}
}

func TestBus_MultipleSubscribers_AllReceive(t *testing.T) {
	bus := New()
	ch1 := bus.Subscribe("multi")
	ch2 := bus.Subscribe("multi")

	bus.Publish("multi", 42)

	for i, ch := range []<-chan Event{ch1, ch2} {
		select {
		case evt := <-ch:
			if evt.Payload != 42 {
				t.Errorf("subscriber %d: expected payload 42, got %v", i, evt.Payload)
			}
		case <-time.After(100 * time.Millisecond):
			t.Errorf("subscriber %d: timeout waiting for event", i)
		}
	}
}

func TestBus_DifferentTopics_NoInterference(t *testing.T) {
	bus := New()
	chA := bus.Subscribe("topic.a")
	chB := bus.Subscribe("topic.b")

	bus.Publish("topic.a", "for-a")

	select {
	case evt := <-chA:
		if evt.Payload != "for-a" {
			t.Errorf("topic.a: unexpected payload %v", evt.Payload)
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("topic.a: timeout waiting for event")
	}

	select {
	case evt := <-chB:
		t.Errorf("topic.b: received unexpected event: %v", evt)
	default:
	}
}

func TestBus_FullBuffer_DropsAndCounts(t *testing.T) {
	bus := New()
	_ = bus.Subscribe("overflow")

	done := make(chan struct{})
	go func() {
		for i := 0; i < defaultBufferSize+10; i++ {
			bus.Publish("overflow", i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("Publish blocked when buffer was full")
	}
	if got := bus.Dropped(); got != 10 {
		t.Errorf("expected 10 dropped events, got %d", got)
	}
}

func TestBus_Unsubscribe_ClosesChannel(t *testing.T) {
	bus := New()
	keep := bus.Subscribe("t")
	gone := bus.Subscribe("t")

	bus.Unsubscribe("t", gone)
	bus.Unsubscribe("t", gone) // second call is a no-op

	if _, ok := <-gone; ok {
		t.Fatal("expected unsubscribed channel to be closed")
	}

	bus.Publish("t", "still delivered")
	select {
	case evt := <-keep:
		if evt.Payload != "still delivered" {
			t.Errorf("unexpected payload %v", evt.Payload)
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("remaining subscriber did not receive event")
	}
}
