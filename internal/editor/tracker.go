package editor

import (
	"sync"
	"time"
)

// Tracker keeps the current selection of an editing surface available
// to the core, independent of how the host learns about changes. Hosts
// with native selection events use PushTracker; hosts without them fall
// back to PollTracker.
type Tracker interface {
	Start()
	Stop()
	Current() (Span, bool)
}

// PushTracker records selection snapshots pushed by the host.
type PushTracker struct {
	mu       sync.Mutex
	span     Span
	has      bool
	onChange func(Span)
}

func NewPushTracker() *PushTracker {
	return &PushTracker{}
}

func (t *PushTracker) Start() {}
func (t *PushTracker) Stop()  {}

// Notify is called by the host on every native selection change.
func (t *PushTracker) Notify(span Span) {
	t.mu.Lock()
	changed := !t.has || span != t.span
	t.span = span
	t.has = true
	fn := t.onChange
	t.mu.Unlock()

	if changed && fn != nil {
		fn(span)
	}
}

// Clear drops the tracked selection (host reported a deselect).
func (t *PushTracker) Clear() {
	t.mu.Lock()
	t.span = Span{}
	t.has = false
	t.mu.Unlock()
}

func (t *PushTracker) Current() (Span, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.span, t.has
}

func (t *PushTracker) SetOnChange(fn func(Span)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onChange = fn
}

// PollTracker samples a surface's selection at a fixed interval. It is
// the fallback strategy for hosts that cannot push selection events;
// prefer PushTracker where native notifications exist.
type PollTracker struct {
	surface  Surface
	interval time.Duration
	onChange func(Span)

	mu       sync.Mutex
	span     Span
	has      bool
	running  bool
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewPollTracker creates a tracker polling surface at the given
// interval; zero or negative means the 200ms default.
func NewPollTracker(surface Surface, interval time.Duration) *PollTracker {
	if interval <= 0 {
		interval = 200 * time.Millisecond
	}
	return &PollTracker{
		surface:  surface,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

func (t *PollTracker) SetOnChange(fn func(Span)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onChange = fn
}

// Start begins polling in a goroutine. Safe to call multiple times;
// subsequent calls are no-ops.
func (t *PollTracker) Start() {
	t.mu.Lock()
	if t.running {
		t.mu.Unlock()
		return
	}
	t.running = true
	t.span, t.has = t.surface.Selection()
	t.mu.Unlock()

	go t.loop()
}

// Stop halts the polling goroutine. Safe to call multiple times and
// concurrently.
func (t *PollTracker) Stop() {
	t.stopOnce.Do(func() {
		t.mu.Lock()
		t.running = false
		t.mu.Unlock()
		close(t.stopCh)
	})
}

func (t *PollTracker) Current() (Span, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.span, t.has
}

func (t *PollTracker) loop() {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-t.stopCh:
			return
		case <-ticker.C:
			t.check()
		}
	}
}

func (t *PollTracker) check() {
	span, has := t.surface.Selection()

	t.mu.Lock()
	changed := has != t.has || span != t.span
	t.span = span
	t.has = has
	fn := t.onChange
	t.mu.Unlock()

	if changed && has && fn != nil {
		fn(span)
	}
}
