package task

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/youruser/quill/internal/action"
	"github.com/youruser/quill/internal/api"
	"github.com/youruser/quill/internal/diff"
	"github.com/youruser/quill/internal/editor"
	"github.com/youruser/quill/internal/logging"
	"github.com/youruser/quill/internal/sse"
	"golang.org/x/sync/singleflight"
)

var log = logging.Get()

// Streamer is the backend surface the controller drives. *api.Client
// implements it; tests substitute fakes built on api.NewStream.
type Streamer interface {
	Assist(ctx context.Context, req api.AssistRequest) (*api.Stream, error)
	ChatSend(ctx context.Context, req api.ChatRequest) (*api.Stream, error)
	TaskStatus(ctx context.Context, taskID int64) (api.TaskStatus, error)
	ResumeStream(ctx context.Context, taskID int64) (*api.Stream, error)
}

// ChatMessage is one user turn, captured whole so regeneration can
// replay it.
type ChatMessage struct {
	Text        string
	ModelID     string
	Attachments []string
	Contexts    []api.MessageContext
}

// Options configures a Controller.
type Options struct {
	Backend       Streamer
	Catalog       *action.Catalog
	ContextBudget int
	ApplyChecked  bool
	TeamID        string
	ModelID       string
	KnowledgeBase string
	WebSearch     bool
}

// Controller owns the session registry and drives operations end to
// end: validation, dispatch, frame application, review and
// resumption. Hosts observe it through the event bus and act on it
// through exported methods; the controller itself never touches a UI.
type Controller struct {
	registry *Registry
	backend  Streamer
	catalog  *action.Catalog
	bus      *Bus

	contextBudget int
	applyChecked  bool
	teamID        string
	modelID       string
	knowledgeBase string
	webSearch     bool

	resume singleflight.Group
}

func NewController(opts Options) *Controller {
	catalog := opts.Catalog
	if catalog == nil {
		catalog = action.NewCatalog("")
	}
	budget := opts.ContextBudget
	if budget <= 0 {
		budget = 2000
	}
	return &Controller{
		registry:      NewRegistry(),
		backend:       opts.Backend,
		catalog:       catalog,
		bus:           NewBus(),
		contextBudget: budget,
		applyChecked:  opts.ApplyChecked,
		teamID:        opts.TeamID,
		modelID:       opts.ModelID,
		knowledgeBase: opts.KnowledgeBase,
		webSearch:     opts.WebSearch,
	}
}

func (c *Controller) Registry() *Registry {
	return c.registry
}

func (c *Controller) Events() *Bus {
	return c.bus
}

func (c *Controller) Catalog() *action.Catalog {
	return c.catalog
}

// StartAssist validates and dispatches an editing action. A prior
// non-terminal operation on the session is cancelled first, so a
// session never runs more than one stream. Validation failures return
// synchronously and nothing reaches the network. ctx should outlive
// the call; it parents the stream, not just the dispatch.
func (c *Controller) StartAssist(ctx context.Context, sessionID int64, surface editor.Surface, req action.Request) (*Session, *Operation, error) {
	sess := c.registry.GetOrCreate(sessionID)
	if surface != nil {
		sess.BindSurface(surface)
	}
	surface = sess.Surface()

	if surface != nil {
		if req.Content == "" {
			req.Content = surface.Content()
		}
		if !req.HasSelection {
			if span, ok := surface.Selection(); ok {
				req.Selection = span
				req.HasSelection = true
			}
		}
	}

	prepared, err := c.catalog.Prepare(req)
	if err != nil {
		return nil, nil, err
	}

	span := prepared.TargetSpan()
	var baseSum, contextText string
	if surface != nil {
		baseSum = diff.Checksum(surface.Content())
		contextText = action.SurroundingContext(surface, c.contextBudget)
	}

	c.supersede(sess)

	op := newOperation(prepared.Action, prepared.CustomPrompt, span, baseSum, contextText)
	sess.setOp(op)
	c.publish(sess, op, EventStatus, "", nil)

	h := sess.Slot().Acquire(ctx, op.ID)
	go c.runAssist(h, sess, op)
	return sess, op, nil
}

// StartChat commits the user message to the transcript and streams
// the reply. The first exchange of a session runs under its local id;
// promotion happens when the server announces the task id, in the
// response header or the done frame.
func (c *Controller) StartChat(ctx context.Context, sessionID int64, msg ChatMessage) (*Session, *Operation, error) {
	if err := c.catalog.Validate(action.Request{Action: action.ChatSend, Message: msg.Text}); err != nil {
		return nil, nil, err
	}
	sess := c.registry.GetOrCreate(sessionID)

	c.supersede(sess)

	sess.SetTitleFromMessage(msg.Text)
	sess.appendMessage(Message{Role: RoleUser, Content: msg.Text, Time: time.Now()})
	sess.SetDraft("")

	op := newOperation(action.ChatSend, "", editor.Span{}, "", "")
	op.Chat = &msg
	sess.setOp(op)
	c.publish(sess, op, EventStatus, "", nil)

	h := sess.Slot().Acquire(ctx, op.ID)
	go c.runChat(h, sess, op)
	return sess, op, nil
}

// Cancel aborts the session's in-flight operation. The handle is
// invalidated before the transport aborts, so frames racing the
// cancel are dropped rather than applied. Cancellation is silent:
// hosts get a status event, never an error.
func (c *Controller) Cancel(sessionID int64) bool {
	sess, ok := c.registry.Get(sessionID)
	if !ok {
		return false
	}
	had := sess.Slot().Cancel()
	if op := sess.Op(); op != nil {
		if op.Cancel() == nil {
			c.publish(sess, op, EventStatus, "", nil)
			had = true
		}
	}
	return had
}

// Accept applies the completed operation's result and returns the
// machine to idle. For editing actions the result is spliced into the
// bound surface; for chat the assistant turn is committed to the
// transcript. A failed apply leaves the operation completed so the
// host can retry or reject.
func (c *Controller) Accept(sessionID int64) (diff.Result, error) {
	sess, ok := c.registry.Get(sessionID)
	if !ok {
		return diff.Result{}, ErrSessionNotFound
	}
	op := sess.Op()
	if op == nil {
		return diff.Result{}, ErrNoOperation
	}
	if st := op.StatusNow(); st != StatusCompleted {
		return diff.Result{}, fmt.Errorf("%w: accept while %s", ErrBadTransition, st)
	}

	res := op.Diff()
	if op.Action == action.ChatSend {
		sess.appendMessage(Message{Role: RoleAssistant, Content: res.Replacement, Sources: res.Sources, Time: time.Now()})
	} else if surface := sess.Surface(); surface != nil {
		if err := c.applyResult(surface, res); err != nil {
			return diff.Result{}, err
		}
	}

	if err := op.Settle(); err != nil {
		return diff.Result{}, err
	}
	sess.clearOp()
	c.publish(sess, op, EventStatus, "", nil)
	return res, nil
}

// Reject discards the completed operation's result untouched.
func (c *Controller) Reject(sessionID int64) error {
	sess, ok := c.registry.Get(sessionID)
	if !ok {
		return ErrSessionNotFound
	}
	op := sess.Op()
	if op == nil {
		return ErrNoOperation
	}
	if err := op.Settle(); err != nil {
		return err
	}
	sess.clearOp()
	c.publish(sess, op, EventStatus, "", nil)
	return nil
}

// Regenerate re-dispatches the last operation with its captured
// inputs. Legal from completed and error, which is what lets a host
// retry a failed generation or ask for another take on a finished
// one. The buffer may have changed since; the captured span and
// checksum are reused as-is and revalidated only at accept time.
func (c *Controller) Regenerate(ctx context.Context, sessionID int64) (*Operation, error) {
	sess, ok := c.registry.Get(sessionID)
	if !ok {
		return nil, ErrSessionNotFound
	}
	prev := sess.Op()
	if prev == nil {
		return nil, ErrNoOperation
	}
	if st := prev.StatusNow(); st != StatusCompleted && st != StatusError {
		return nil, fmt.Errorf("%w: regenerate while %s", ErrBadTransition, st)
	}

	op := newOperation(prev.Action, prev.CustomPrompt, prev.Source, prev.BaseSum, prev.ContextText)
	op.Chat = prev.Chat
	sess.setOp(op)
	c.publish(sess, op, EventStatus, "", nil)

	h := sess.Slot().Acquire(ctx, op.ID)
	if op.Chat != nil {
		go c.runChat(h, sess, op)
	} else {
		go c.runAssist(h, sess, op)
	}
	return op, nil
}

// supersede cancels whatever the session is currently streaming.
// Starting over an in-flight operation is not an error.
func (c *Controller) supersede(sess *Session) {
	sess.Slot().Cancel()
	if op := sess.Op(); op != nil {
		if op.Cancel() == nil {
			c.publish(sess, op, EventStatus, "", nil)
		}
	}
}

func (c *Controller) runAssist(h *Handle, sess *Session, op *Operation) {
	req := api.AssistRequest{
		Action:          string(op.Action),
		Content:         op.Source.Text,
		Context:         op.ContextText,
		CustomPrompt:    op.CustomPrompt,
		KnowledgeBaseID: c.knowledgeBase,
		EnableWebSearch: c.webSearch,
		ModelID:         c.modelID,
	}
	stream, err := c.backend.Assist(h.Context(), req)
	if err != nil {
		c.failStart(h, sess, op, err)
		return
	}
	c.consume(h, sess, op, stream)
}

func (c *Controller) runChat(h *Handle, sess *Session, op *Operation) {
	msg := op.Chat
	req := api.ChatRequest{
		Message:         msg.Text,
		TaskID:          sess.RemoteID(),
		TeamID:          c.teamID,
		ModelID:         msg.ModelID,
		KnowledgeBaseID: c.knowledgeBase,
		EnableWebSearch: c.webSearch,
		AttachmentIDs:   msg.Attachments,
		Contexts:        msg.Contexts,
	}
	if req.ModelID == "" {
		req.ModelID = c.modelID
	}
	stream, err := c.backend.ChatSend(h.Context(), req)
	if err != nil {
		c.failStart(h, sess, op, err)
		return
	}
	c.consume(h, sess, op, stream)
}

// failStart records a dial failure, unless the handle was already
// cancelled or superseded, in which case the failure is noise.
func (c *Controller) failStart(h *Handle, sess *Session, op *Operation, err error) {
	defer h.Release()
	if !h.Live() {
		return
	}
	if h.Context().Err() != nil {
		if op.Cancel() == nil {
			c.publish(sess, op, EventStatus, "", nil)
		}
		return
	}
	log.Error("request failed: %v", err)
	if op.ApplyError(KindNetwork, err.Error()) == nil {
		c.publish(sess, op, EventError, "", nil)
	}
}

// consume drains one stream into its operation. Every frame is gated
// on the handle still owning the session's slot; a frame that arrives
// after cancel or supersession is logged and dropped, never applied.
func (c *Controller) consume(h *Handle, sess *Session, op *Operation, stream *api.Stream) {
	defer h.Release()
	defer stream.Close()

	if tid := stream.TaskID(); tid > 0 {
		c.promote(sess, tid)
	}

	for {
		frame, err := stream.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			if !h.Live() {
				return
			}
			if h.Context().Err() != nil {
				if op.Cancel() == nil {
					c.publish(sess, op, EventStatus, "", nil)
				}
				return
			}
			log.Error("stream read failed: %v", err)
			if op.ApplyError(KindNetwork, err.Error()) == nil {
				c.publish(sess, op, EventError, "", nil)
			}
			return
		}
		if !h.Live() {
			log.Debug("dropping %s frame for superseded op %s", frame.Type, op.ID)
			return
		}
		switch frame.Type {
		case sse.FrameChunk:
			if err := op.ApplyChunk(frame.Content); err != nil {
				log.Debug("dropping chunk: %v", err)
				continue
			}
			log.Stream("chunk", frame.Content)
			c.publish(sess, op, EventChunk, frame.Content, nil)
		case sse.FrameDone:
			if frame.TaskID > 0 {
				c.promote(sess, frame.TaskID)
			}
			if err := op.ApplyDone(frame.Sources); err != nil {
				log.Debug("dropping done: %v", err)
				return
			}
			log.Stream("done", "")
			res := op.Diff()
			c.publish(sess, op, EventDone, "", &res)
			return
		case sse.FrameError:
			log.Stream("error", frame.Err)
			if op.ApplyError(KindProtocol, frame.Err) == nil {
				c.publish(sess, op, EventError, "", nil)
			}
			return
		}
	}

	// The stream ended without a terminal frame.
	if !h.Live() {
		return
	}
	if h.Context().Err() != nil {
		if op.Cancel() == nil {
			c.publish(sess, op, EventStatus, "", nil)
		}
		return
	}
	if op.ApplyError(KindProtocol, "stream ended without a done frame") == nil {
		c.publish(sess, op, EventError, "", nil)
	}
}

func (c *Controller) applyResult(surface editor.Surface, res diff.Result) error {
	if !c.applyChecked {
		return surface.ReplaceRange(res.From, res.To, res.Replacement)
	}
	next, err := diff.ApplyChecked(surface.Content(), res)
	if err != nil {
		return err
	}
	surface.SetContent(next)
	return nil
}

// promote binds the session to its server id the moment the peer
// names one, and announces the binding so hosts can rekey their maps.
func (c *Controller) promote(sess *Session, remoteID int64) {
	if cur := sess.RemoteID(); cur != 0 {
		if cur != remoteID {
			log.Error("task id mismatch: session %d got %d", cur, remoteID)
		}
		return
	}
	if _, err := c.registry.Promote(sess.LocalID(), remoteID); err != nil {
		log.Error("promote failed: %v", err)
		return
	}
	log.Debug("session %d promoted to %d", sess.LocalID(), remoteID)
	c.bus.Publish(Event{Type: EventPromoted, SessionID: remoteID, LocalID: sess.LocalID()})
}

func (c *Controller) publish(sess *Session, op *Operation, t EventType, chunk string, res *diff.Result) {
	v := op.View()
	c.bus.Publish(Event{
		Type:      t,
		SessionID: sess.ID(),
		LocalID:   sess.LocalID(),
		OpID:      op.ID,
		Status:    v.Status,
		Chunk:     chunk,
		Result:    res,
		Err:       v.Err,
	})
}
