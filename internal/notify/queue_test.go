package notify

import (
	"context"
	"testing"
	"time"
)

func TestPutNowaitNeverBlocks(t *testing.T) {
	q := New()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			q.PutNowait(Event{Action: "tick"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("PutNowait blocked")
	}

	if q.Len() != 1000 {
		t.Fatalf("expected 1000 queued events, got %d", q.Len())
	}
}

func TestGetFIFOOrder(t *testing.T) {
	q := New()

	q.PutNowait(Event{Action: "a"})
	q.PutNowait(Event{Action: "b"})
	q.PutNowait(Event{Action: "c"})

	ctx := context.Background()

	for _, want := range []string{"a", "b", "c"} {
		ev, err := q.Get(ctx)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if ev.Action != want {
			t.Fatalf("Get() = %q, want %q", ev.Action, want)
		}
	}
}

func TestGetBlocksThenDelivers(t *testing.T) {
	q := New()
	ctx := context.Background()

	result := make(chan Event, 1)
	go func() {
		ev, err := q.Get(ctx)
		if err != nil {
			t.Error(err)
			return
		}
		result <- ev
	}()

	time.Sleep(20 * time.Millisecond)
	q.PutNowait(Event{Action: "late"})

	select {
	case ev := <-result:
		if ev.Action != "late" {
			t.Fatalf("got %q, want %q", ev.Action, "late")
		}
	case <-time.After(time.Second):
		t.Fatal("Get never woke up after PutNowait")
	}
}

func TestGetCancellation(t *testing.T) {
	q := New()
	ctx, cancel := context.WithCancel(context.Background())

	errc := make(chan error, 1)
	go func() {
		_, err := q.Get(ctx)
		errc <- err
	}()

	cancel()

	select {
	case err := <-errc:
		if err != context.Canceled {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Get did not observe cancellation")
	}
}
