package task

import (
	"context"
	"testing"
	"time"
)

func TestSlot_CancelInvalidatesHandleFirst(t *testing.T) {
	var slot Slot
	h := slot.Acquire(context.Background(), "op-1")

	liveAtAbort := make(chan bool, 1)
	go func() {
		<-h.Context().Done()
		liveAtAbort <- h.Live()
	}()

	if !slot.Cancel() {
		t.Fatal("Cancel reported nothing in flight")
	}
	select {
	case live := <-liveAtAbort:
		if live {
			t.Error("handle was still live when its context abort fired")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled handle context never fired")
	}
	if slot.Active() {
		t.Error("slot still active after cancel")
	}
	if slot.Cancel() {
		t.Error("second cancel reported something in flight")
	}
}

func TestSlot_AcquireSupersedes(t *testing.T) {
	var slot Slot
	h1 := slot.Acquire(context.Background(), "op-1")
	h2 := slot.Acquire(context.Background(), "op-2")

	if h1.Live() {
		t.Error("superseded handle still live")
	}
	select {
	case <-h1.Context().Done():
	default:
		t.Error("superseded handle context not cancelled")
	}
	if !h2.Live() {
		t.Error("fresh handle not live")
	}
	if h2.Context().Err() != nil {
		t.Error("fresh handle context already cancelled")
	}
}

func TestSlot_ReleaseOnlyClearsOwner(t *testing.T) {
	var slot Slot
	h1 := slot.Acquire(context.Background(), "op-1")
	h2 := slot.Acquire(context.Background(), "op-2")

	h1.Release()
	if !h2.Live() {
		t.Fatal("release of a superseded handle evicted the current one")
	}

	h2.Release()
	if slot.Active() {
		t.Error("slot still active after owner released")
	}
	if h2.Context().Err() == nil {
		t.Error("released handle context not cancelled")
	}
}

func TestSlot_HandleCarriesParentCancellation(t *testing.T) {
	var slot Slot
	ctx, cancel := context.WithCancel(context.Background())
	h := slot.Acquire(ctx, "op-1")

	cancel()
	select {
	case <-h.Context().Done():
	case <-time.After(2 * time.Second):
		t.Fatal("parent cancellation did not reach the handle")
	}
	// Parent cancellation aborts the transport but does not reassign
	// the slot; the stream consumer notices and settles the operation.
	if !h.Live() {
		t.Error("parent cancellation should not invalidate the handle")
	}
}
