package task

import (
	"context"
	"sync"
)

// Slot owns the single cancellable stream a session may have in
// flight. Acquiring a new handle supersedes the previous one, so at
// most one stream per session is ever live.
type Slot struct {
	mu     sync.Mutex
	active *Handle
}

// Handle ties one network operation to its cancellation. Frame
// delivery checks Live before every application; a handle that lost
// its slot delivers nothing.
type Handle struct {
	slot   *Slot
	opID   string
	ctx    context.Context
	cancel context.CancelFunc
}

// Acquire installs a fresh handle as the slot's active stream and
// cancels whatever it displaced.
func (s *Slot) Acquire(parent context.Context, opID string) *Handle {
	ctx, cancel := context.WithCancel(parent)
	h := &Handle{slot: s, opID: opID, ctx: ctx, cancel: cancel}
	s.mu.Lock()
	prev := s.active
	s.active = h
	s.mu.Unlock()
	if prev != nil {
		prev.cancel()
	}
	return h
}

// Cancel invalidates the active handle first and only then aborts its
// transport. Frames already in flight when the abort lands fail the
// liveness check and are discarded. Returns false when nothing was
// running.
func (s *Slot) Cancel() bool {
	s.mu.Lock()
	h := s.active
	s.active = nil
	s.mu.Unlock()
	if h == nil {
		return false
	}
	h.cancel()
	return true
}

// Active reports whether a stream is currently live.
func (s *Slot) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active != nil
}

func (s *Slot) current() *Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Live reports whether this handle still owns its slot.
func (h *Handle) Live() bool {
	return h.slot.current() == h
}

// Context carries the cancellation signal to the transport layer.
func (h *Handle) Context() context.Context {
	return h.ctx
}

// OpID identifies the operation this handle was acquired for.
func (h *Handle) OpID() string {
	return h.opID
}

// Release clears the slot if this handle still owns it and always
// cancels the context so transport resources are freed. Called when a
// stream finishes on its own.
func (h *Handle) Release() {
	h.slot.mu.Lock()
	if h.slot.active == h {
		h.slot.active = nil
	}
	h.slot.mu.Unlock()
	h.cancel()
}
