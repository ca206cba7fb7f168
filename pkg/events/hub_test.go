package events

import (
	"testing"
	"time"
)

func TestHubPublishSubscribe(t *testing.T) {
	h := NewEventHub()
	ch := h.Subscribe()
	defer h.Unsubscribe(ch)

	h.Publish(CalibrationApplied, CalibrationEvent{
		Lepton:   "muon",
		DeltaANF: 5.868421e-10,
		Ts:       time.Now().Unix(),
	})

	select {
	case ev := <-ch:
		if ev.Name != CalibrationApplied {
			t.Fatalf("event name = %q, want %q", ev.Name, CalibrationApplied)
		}
		payload, err := DecodeAs[CalibrationEvent](ev)
		if err != nil {
			t.Fatalf("DecodeAs failed: %v", err)
		}
		if payload.Lepton != "muon" || payload.DeltaANF != 5.868421e-10 {
			t.Fatalf("unexpected payload: %+v", payload)
		}
	case <-time.After(time.Second):
		t.Fatalf("did not receive event in time")
	}
}

func TestHubSlowSubscriberDoesNotBlock(t *testing.T) {
	h := NewEventHub()
	ch := h.Subscribe()
	defer h.Unsubscribe(ch)

	// Overflow the buffered channel; Publish must not block.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 64; i++ {
			h.Publish(PhasesUpdated, PhasesEvent{PhiMuon: float64(i)})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Publish blocked on a slow subscriber")
	}
}

func TestHubUnsubscribeCloses(t *testing.T) {
	h := NewEventHub()
	ch := h.Subscribe()
	h.Unsubscribe(ch)

	if _, ok := <-ch; ok {
		t.Fatalf("channel should be closed after Unsubscribe")
	}

	// Double unsubscribe is a no-op.
	h.Unsubscribe(ch)
}
