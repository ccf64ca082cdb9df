package clock

import (
	"testing"
	"time"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFakeAfterFiresAtDeadline(t *testing.T) {
	c := NewFake(epoch)
	ch := c.After(3 * time.Second)

	c.Advance(2 * time.Second)
	select {
	case <-ch:
		t.Fatal("After fired before deadline")
	default:
	}

	c.Advance(time.Second)
	select {
	case got := <-ch:
		if want := epoch.Add(3 * time.Second); !got.Equal(want) {
			t.Fatalf("After() delivered %v; want %v", got, want)
		}
	default:
		t.Fatal("After did not fire at deadline")
	}
	if got := c.PendingCount(); got != 0 {
		t.Fatalf("PendingCount() = %d; want 0", got)
	}
}

func TestFakeTickerReschedules(t *testing.T) {
	c := NewFake(epoch)
	tk := c.NewTicker(time.Second)
	defer tk.Stop()

	for i := 0; i < 3; i++ {
		c.Advance(time.Second)
		select {
		case <-tk.C:
		default:
			t.Fatalf("tick %d missing", i)
		}
	}
	if got := c.PendingCount(); got != 1 {
		t.Fatalf("PendingCount() = %d; want 1", got)
	}

	tk.Stop()
	if got := c.PendingCount(); got != 0 {
		t.Fatalf("PendingCount() after Stop = %d; want 0", got)
	}
}

func TestFakeWaitForTimers(t *testing.T) {
	c := NewFake(epoch)
	done := make(chan struct{})
	go func() {
		<-c.After(time.Minute)
		close(done)
	}()

	c.WaitForTimers(1)
	c.Advance(time.Minute)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("waiter goroutine not released")
	}
}
