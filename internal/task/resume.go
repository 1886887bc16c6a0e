package task

import (
	"context"
	"fmt"
	"strconv"

	"github.com/youruser/quill/internal/action"
	"github.com/youruser/quill/internal/editor"
)

// Resume reattaches to a server-side generation that outlived this
// process, typically after an editor restart. The task is probed
// first; when it is still producing, a new operation is seeded with
// the partial text already generated and only then attached to the
// live stream, so no text is lost between probe and attach. Returns
// false when the task has nothing in progress. Concurrent calls for
// the same id collapse into one probe and at most one stream.
func (c *Controller) Resume(ctx context.Context, remoteID int64) (bool, error) {
	if remoteID <= 0 {
		return false, fmt.Errorf("resume needs a server-confirmed id, got %d", remoteID)
	}
	v, err, _ := c.resume.Do(strconv.FormatInt(remoteID, 10), func() (any, error) {
		return c.resumeOnce(ctx, remoteID)
	})
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

func (c *Controller) resumeOnce(ctx context.Context, remoteID int64) (bool, error) {
	sess := c.registry.GetOrCreate(remoteID)
	if sess.Slot().Active() {
		return true, nil
	}

	status, err := c.backend.TaskStatus(ctx, remoteID)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	if !status.InProgress {
		return false, nil
	}

	act := action.Action(status.Action)
	if act == "" {
		act = action.ChatSend
	}
	op := newOperation(act, "", editor.Span{}, "", "")
	op.seed(status.Partial)
	sess.setOp(op)
	if status.Partial != "" {
		c.publish(sess, op, EventChunk, status.Partial, nil)
	} else {
		c.publish(sess, op, EventStatus, "", nil)
	}

	h := sess.Slot().Acquire(ctx, op.ID)
	go func() {
		stream, err := c.backend.ResumeStream(h.Context(), remoteID)
		if err != nil {
			c.failStart(h, sess, op, err)
			return
		}
		c.consume(h, sess, op, stream)
	}()

	log.Info("resumed task %d with %d bytes already generated", remoteID, len(status.Partial))
	return true, nil
}
