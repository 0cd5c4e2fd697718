package clock

import (
	"testing"
	"time"
)

func TestFake_FiresInDeadlineOrder(t *testing.T) {
	start := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	clk := NewFake(start)

	var order []string
	var seenAt []time.Time
	clk.AfterFunc(3*time.Second, func() {
		order = append(order, "c")
		seenAt = append(seenAt, clk.Now())
	})
	clk.AfterFunc(time.Second, func() {
		order = append(order, "a")
		seenAt = append(seenAt, clk.Now())
	})
	stopped := clk.AfterFunc(2*time.Second, func() { order = append(order, "b") })

	if !stopped.Stop() {
		t.Fatalf("Stop on an armed timer should return true")
	}
	if stopped.Stop() {
		t.Fatalf("second Stop should return false")
	}

	clk.Advance(5 * time.Second)

	if len(order) != 2 || order[0] != "a" || order[1] != "c" {
		t.Fatalf("unexpected firing order %v", order)
	}
	if !seenAt[0].Equal(start.Add(time.Second)) || !seenAt[1].Equal(start.Add(3*time.Second)) {
		t.Fatalf("callbacks saw wrong times: %v", seenAt)
	}
	if !clk.Now().Equal(start.Add(5 * time.Second)) {
		t.Fatalf("clock did not land on target: %v", clk.Now())
	}
}

func TestFake_TimerScheduledDuringAdvance(t *testing.T) {
	clk := NewFake(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))
	fired := 0
	clk.AfterFunc(time.Second, func() {
		fired++
		clk.AfterFunc(time.Second, func() { fired++ })
	})

	clk.Advance(3 * time.Second)
	if fired != 2 {
		t.Fatalf("expected chained timer to fire within the same advance, got %d", fired)
	}
}

func TestFake_Ticker(t *testing.T) {
	start := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	clk := NewFake(start)
	ticker := clk.NewTicker(time.Second)

	clk.Advance(500 * time.Millisecond)
	select {
	case <-ticker.C():
		t.Fatalf("tick before the period elapsed")
	default:
	}

	clk.Advance(500 * time.Millisecond)
	select {
	case at := <-ticker.C():
		if !at.Equal(start.Add(time.Second)) {
			t.Fatalf("tick at %v", at)
		}
	default:
		t.Fatalf("no tick after one period")
	}

	// Unread ticks are dropped, not queued.
	clk.Advance(3 * time.Second)
	<-ticker.C()
	select {
	case <-ticker.C():
		t.Fatalf("missed ticks were queued")
	default:
	}

	ticker.Stop()
	clk.Advance(5 * time.Second)
	select {
	case <-ticker.C():
		t.Fatalf("tick after Stop")
	default:
	}
	if clk.Pending() != 0 {
		t.Fatalf("stopped ticker left %d timers armed", clk.Pending())
	}
}
