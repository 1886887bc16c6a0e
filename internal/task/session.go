package task

import (
	"strings"
	"sync"
	"time"

	"github.com/youruser/quill/internal/editor"
	"github.com/youruser/quill/internal/sse"
)

// Transcript roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one committed transcript entry.
type Message struct {
	Role    string             `json:"role"`
	Content string             `json:"content"`
	Sources []sse.SourceRecord `json:"sources,omitempty"`
	Time    time.Time          `json:"time"`
}

const maxTitleLen = 60

// Session is the logical task a sequence of operations belongs to: a
// chat conversation, an editing target, or both. It exists in two id
// spaces at once. The local id is negative and minted by the registry
// the moment the session is created; the remote id is positive and
// arrives later, when the server first acknowledges the session.
type Session struct {
	localID int64
	slot    Slot

	mu        sync.Mutex
	remoteID  int64
	title     string
	draft     string
	messages  []Message
	op        *Operation
	surface   editor.Surface
	createdAt time.Time
	updatedAt time.Time
}

func newSession(localID int64) *Session {
	now := time.Now()
	return &Session{localID: localID, createdAt: now, updatedAt: now}
}

// LocalID never changes and is always negative.
func (s *Session) LocalID() int64 {
	return s.localID
}

// RemoteID returns the server-assigned id, or zero before promotion.
func (s *Session) RemoteID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remoteID
}

// ID returns the preferred public identifier: the remote id once
// promoted, the local id before that.
func (s *Session) ID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.remoteID != 0 {
		return s.remoteID
	}
	return s.localID
}

func (s *Session) setRemoteID(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.remoteID = id
	s.updatedAt = time.Now()
}

func (s *Session) Title() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.title
}

func (s *Session) SetTitle(title string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.title = title
	s.updatedAt = time.Now()
}

// SetTitleFromMessage derives a title from the first user message.
// Does nothing once a title exists, so explicit renames stick.
func (s *Session) SetTitleFromMessage(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.title != "" {
		return
	}
	t := strings.TrimSpace(msg)
	if i := strings.IndexByte(t, '\n'); i >= 0 {
		t = t[:i]
	}
	if len(t) > maxTitleLen {
		t = t[:maxTitleLen]
	}
	s.title = t
	s.updatedAt = time.Now()
}

// Draft is the uncommitted input text preserved across session
// switches.
func (s *Session) Draft() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft
}

func (s *Session) SetDraft(draft string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draft = draft
	s.updatedAt = time.Now()
}

// Messages returns a copy of the transcript.
func (s *Session) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

func (s *Session) appendMessage(m Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, m)
	s.updatedAt = time.Now()
}

// Op returns the current operation, terminal or not. Nil means idle.
func (s *Session) Op() *Operation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.op
}

func (s *Session) setOp(op *Operation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.op = op
	s.updatedAt = time.Now()
}

func (s *Session) clearOp() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.op = nil
	s.updatedAt = time.Now()
}

// Status reports the session's lifecycle position. Idle when no
// operation has been started or the last one was consumed.
func (s *Session) Status() Status {
	op := s.Op()
	if op == nil {
		return StatusIdle
	}
	return op.StatusNow()
}

// BindSurface attaches the editing surface operations on this session
// read from and apply to. Chat-only sessions leave it nil.
func (s *Session) BindSurface(surface editor.Surface) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.surface = surface
}

func (s *Session) Surface() editor.Surface {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.surface
}

// Slot returns the session's cancellation slot.
func (s *Session) Slot() *Slot {
	return &s.slot
}

func (s *Session) CreatedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createdAt
}

func (s *Session) UpdatedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updatedAt
}

// SessionView is a host-facing snapshot of a session.
type SessionView struct {
	ID       int64     `json:"id"`
	LocalID  int64     `json:"local_id"`
	RemoteID int64     `json:"remote_id,omitempty"`
	Title    string    `json:"title,omitempty"`
	Draft    string    `json:"draft,omitempty"`
	Status   Status    `json:"status"`
	Messages []Message `json:"messages,omitempty"`
	Op       *View     `json:"op,omitempty"`
}

// Snapshot captures the session for serialization. The operation view
// is included whenever one exists, terminal or not.
func Snapshot(s *Session) SessionView {
	v := SessionView{
		ID:       s.ID(),
		LocalID:  s.LocalID(),
		RemoteID: s.RemoteID(),
		Title:    s.Title(),
		Draft:    s.Draft(),
		Status:   s.Status(),
		Messages: s.Messages(),
	}
	if op := s.Op(); op != nil {
		ov := op.View()
		v.Op = &ov
	}
	return v
}
