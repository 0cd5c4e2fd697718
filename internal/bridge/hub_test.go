package bridge

import (
	"sync"
	"testing"
)

func TestHub_DeliversInOrderWithSeq(t *testing.T) {
	h := NewHub(8, nil)
	a := h.Subscribe()
	b := h.Subscribe()
	defer a.Close()
	defer b.Close()

	h.Publish("onPrintQueueChange", 1)
	h.Publish("onPrintJobUpdate", 2)

	for _, sub := range []*Subscription{a, b} {
		first, second := <-sub.Events(), <-sub.Events()
		if first.Seq != 1 || first.Name != "onPrintQueueChange" || first.Payload != 1 {
			t.Fatalf("unexpected first event %+v", first)
		}
		if second.Seq != 2 || second.Name != "onPrintJobUpdate" {
			t.Fatalf("unexpected second event %+v", second)
		}
	}
	if h.Seq() != 2 {
		t.Fatalf("seq = %d, want 2", h.Seq())
	}
}

func TestHub_SlowSubscriberDropsEvents(t *testing.T) {
	h := NewHub(2, nil)
	slow := h.Subscribe()
	defer slow.Close()

	for i := 0; i < 5; i++ {
		h.Publish("onPrintJobUpdate", i)
	}

	if slow.Dropped() != 3 {
		t.Fatalf("dropped = %d, want 3", slow.Dropped())
	}
	if ev := <-slow.Events(); ev.Seq != 1 {
		t.Fatalf("first kept event seq = %d", ev.Seq)
	}
	if ev := <-slow.Events(); ev.Seq != 2 {
		t.Fatalf("second kept event seq = %d", ev.Seq)
	}

	// Later events still arrive, with a gap in seq.
	h.Publish("onPrintJobUpdate", 5)
	if ev := <-slow.Events(); ev.Seq != 6 {
		t.Fatalf("seq after gap = %d, want 6", ev.Seq)
	}
}

func TestHub_CloseEndsSubscriptions(t *testing.T) {
	h := NewHub(1, nil)
	sub := h.Subscribe()
	gone := h.Subscribe()
	gone.Close()
	gone.Close()

	if h.Subscribers() != 1 {
		t.Fatalf("subscribers = %d, want 1", h.Subscribers())
	}

	h.Close()
	if _, ok := <-sub.Events(); ok {
		t.Fatalf("subscription still open after hub close")
	}
	sub.Close()
	h.Publish("onPrintQueueChange", nil)

	late := h.Subscribe()
	if _, ok := <-late.Events(); ok {
		t.Fatalf("subscribe on a closed hub should return a closed channel")
	}
}

func TestHub_ConcurrentPublishAndUnsubscribe(t *testing.T) {
	h := NewHub(4, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				h.Publish("onPrintJobUpdate", j)
			}
		}()
		go func() {
			defer wg.Done()
			sub := h.Subscribe()
			for j := 0; j < 10; j++ {
				select {
				case <-sub.Events():
				default:
				}
			}
			sub.Close()
		}()
	}
	wg.Wait()

	if h.Seq() != 800 {
		t.Fatalf("seq = %d, want 800", h.Seq())
	}
	if h.Subscribers() != 0 {
		t.Fatalf("subscribers leaked: %d", h.Subscribers())
	}
}
