package task

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/youruser/quill/internal/action"
	"github.com/youruser/quill/internal/diff"
	"github.com/youruser/quill/internal/editor"
	"github.com/youruser/quill/internal/sse"
)

// Status is the lifecycle position of an operation.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusThinking   Status = "thinking"
	StatusGenerating Status = "generating"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
	StatusCancelled  Status = "cancelled"
)

// Terminal reports whether the status is final. Terminal operations
// never receive further frames; anything arriving late is discarded
// upstream by the handle liveness check.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusError || s == StatusCancelled
}

// Operation is one request/response streaming cycle. The inputs
// (action, prompt, source span, context window) are captured at
// creation and never change, which is what makes regeneration
// possible after the buffer or selection has moved on. Frames mutate
// only the accumulated text, sources, status and error.
type Operation struct {
	ID           string
	Action       action.Action
	CustomPrompt string
	Source       editor.Span
	BaseSum      string
	ContextText  string
	Chat         *ChatMessage
	StartedAt    time.Time

	mu          sync.Mutex
	status      Status
	accumulated string
	sources     []sse.SourceRecord
	err         *Error
}

func newOperation(act action.Action, prompt string, source editor.Span, baseSum, contextText string) *Operation {
	return &Operation{
		ID:           uuid.NewString(),
		Action:       act,
		CustomPrompt: prompt,
		Source:       source,
		BaseSum:      baseSum,
		ContextText:  contextText,
		StartedAt:    time.Now(),
		status:       StatusThinking,
	}
}

// StatusNow returns the current status.
func (o *Operation) StatusNow() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status
}

// ApplyChunk appends streamed content. The first chunk moves the
// operation from thinking to generating.
func (o *Operation) ApplyChunk(content string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	switch o.status {
	case StatusThinking:
		o.status = StatusGenerating
	case StatusGenerating:
	default:
		return fmt.Errorf("%w: chunk while %s", ErrBadTransition, o.status)
	}
	o.accumulated += content
	return nil
}

// ApplyDone finalizes the operation. Legal from thinking as well as
// generating: a response can complete without emitting a single chunk.
func (o *Operation) ApplyDone(sources []sse.SourceRecord) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	switch o.status {
	case StatusThinking, StatusGenerating:
	default:
		return fmt.Errorf("%w: done while %s", ErrBadTransition, o.status)
	}
	o.status = StatusCompleted
	o.sources = sources
	return nil
}

// ApplyError records a failure. Partial accumulated text is kept so
// hosts can show what arrived before the stream broke.
func (o *Operation) ApplyError(kind, message string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.status.Terminal() {
		return fmt.Errorf("%w: error while %s", ErrBadTransition, o.status)
	}
	o.status = StatusError
	o.err = &Error{Kind: kind, Message: message}
	return nil
}

// Cancel marks the operation cancelled. Legal only while in flight.
func (o *Operation) Cancel() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	switch o.status {
	case StatusThinking, StatusGenerating:
	default:
		return fmt.Errorf("%w: cancel while %s", ErrBadTransition, o.status)
	}
	o.status = StatusCancelled
	return nil
}

// Settle consumes a completed operation after accept or reject,
// returning the machine to idle.
func (o *Operation) Settle() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.status != StatusCompleted {
		return fmt.Errorf("%w: settle while %s", ErrBadTransition, o.status)
	}
	o.status = StatusIdle
	return nil
}

// seed preloads already-generated text when reattaching to an
// in-progress task. Must be called before the operation is shared.
func (o *Operation) seed(partial string) {
	o.status = StatusGenerating
	o.accumulated = partial
}

// Diff builds the reviewable result for the current accumulated text.
// Offsets and the base checksum come from the captured source span, so
// the result stays applicable even while chunks keep arriving.
func (o *Operation) Diff() diff.Result {
	o.mu.Lock()
	defer o.mu.Unlock()
	return diff.Result{
		Original:    o.Source.Text,
		Replacement: o.accumulated,
		From:        o.Source.From,
		To:          o.Source.To,
		Sources:     o.sources,
		BaseSum:     o.BaseSum,
	}
}

// View is a read-only copy of an operation's observable state.
type View struct {
	ID          string             `json:"id"`
	Action      action.Action      `json:"action"`
	Status      Status             `json:"status"`
	Accumulated string             `json:"accumulated"`
	From        int                `json:"from"`
	To          int                `json:"to"`
	Sources     []sse.SourceRecord `json:"sources,omitempty"`
	Err         *Error             `json:"error,omitempty"`
}

func (o *Operation) View() View {
	o.mu.Lock()
	defer o.mu.Unlock()
	return View{
		ID:          o.ID,
		Action:      o.Action,
		Status:      o.status,
		Accumulated: o.accumulated,
		From:        o.Source.From,
		To:          o.Source.To,
		Sources:     o.sources,
		Err:         o.err,
	}
}
