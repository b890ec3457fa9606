package cmd

import (
	"testing"
	"time"
)

func TestDrainUntil_UnblocksSender(t *testing.T) {
	events := make(chan interface{}, 1)
	done := make(chan struct{})
	sent := 0
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			events <- i
			sent++
		}
	}()

	returned := make(chan struct{})
	go func() {
		drainUntil(done, events)
		close(returned)
	}()

	select {
	case <-returned:
	case <-time.After(5 * time.Second):
		t.Fatal("drainUntil did not return after the sender finished")
	}
	if sent != 50 {
		t.Errorf("sent = %d, want 50", sent)
	}
}

func TestDrainUntil_WaitsForDone(t *testing.T) {
	events := make(chan interface{})
	done := make(chan struct{})

	returned := make(chan struct{})
	go func() {
		drainUntil(done, events)
		close(returned)
	}()

	select {
	case <-returned:
		t.Fatal("drainUntil returned before done was closed")
	case <-time.After(50 * time.Millisecond):
	}

	close(done)
	select {
	case <-returned:
	case <-time.After(5 * time.Second):
		t.Fatal("drainUntil did not return after done was closed")
	}
}
