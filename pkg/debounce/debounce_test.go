package debounce

import (
	"testing"
	"time"

	"github.com/sangkips/gstbill-desk/pkg/clock"
)

func TestDebouncer_CoalescesBurst(t *testing.T) {
	clk := clock.NewFake(time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC))
	calls := 0
	d := New(clk, 1500*time.Millisecond, func() { calls++ })

	for i := 0; i < 5; i++ {
		d.Trigger()
		clk.Advance(time.Second)
	}
	if calls != 0 {
		t.Fatalf("expected no call inside the window, got %d", calls)
	}
	if !d.Pending() {
		t.Fatalf("expected pending call")
	}

	clk.Advance(500 * time.Millisecond)
	if calls != 1 {
		t.Fatalf("expected exactly one call, got %d", calls)
	}
	if d.Pending() {
		t.Fatalf("expected nothing pending after fire")
	}

	clk.Advance(time.Minute)
	if calls != 1 {
		t.Fatalf("timer fired twice: %d calls", calls)
	}
}

func TestDebouncer_FlushAndCancel(t *testing.T) {
	clk := clock.NewFake(time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC))
	calls := 0
	d := New(clk, time.Second, func() { calls++ })

	if d.Flush() {
		t.Fatalf("flush with nothing armed should report false")
	}

	d.Trigger()
	if !d.Flush() {
		t.Fatalf("flush should run the armed call")
	}
	if calls != 1 {
		t.Fatalf("expected 1 call after flush, got %d", calls)
	}
	clk.Advance(2 * time.Second)
	if calls != 1 {
		t.Fatalf("flushed timer must not fire again, got %d calls", calls)
	}

	d.Trigger()
	if !d.Cancel() {
		t.Fatalf("cancel should report the armed call")
	}
	clk.Advance(2 * time.Second)
	if calls != 1 {
		t.Fatalf("cancelled call ran: %d calls", calls)
	}
	if clk.Pending() != 0 {
		t.Fatalf("expected no timers left on the clock, got %d", clk.Pending())
	}
}
