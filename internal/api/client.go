package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/youruser/quill/internal/logging"
	"github.com/youruser/quill/internal/sse"
)

var (
	ErrRequestFailed = errors.New("API request failed")
	log              = logging.Get()
)

const defaultProbeTimeout = 30 * time.Second

// taskIDHeader announces the server-assigned session id on the first
// chat response.
const taskIDHeader = "X-Task-Id"

// Client handles communication with the backend API. Streaming
// requests carry cancellation through their context rather than a
// client-wide timeout, so a generation can run as long as the server
// keeps producing.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a new API client. baseURL includes the version
// prefix, e.g. "https://api.quillassist.io/api/v1".
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{},
	}
}

// Stream is a live SSE response. Next yields frames until a terminal
// frame or io.EOF; Close releases the connection.
type Stream struct {
	dec    *sse.Decoder
	body   io.Closer
	taskID int64
}

// NewStream wraps an SSE body. taskID is zero when the response
// carried no task id header.
func NewStream(body io.ReadCloser, taskID int64) *Stream {
	return &Stream{dec: sse.NewDecoder(body), body: body, taskID: taskID}
}

// Next returns the next frame. After a terminal frame every call
// returns io.EOF.
func (s *Stream) Next() (sse.Frame, error) {
	return s.dec.Next()
}

// TaskID returns the id announced in the response header, or zero.
func (s *Stream) TaskID() int64 {
	return s.taskID
}

// Close releases the underlying connection. Safe to call more than
// once.
func (s *Stream) Close() error {
	return s.body.Close()
}

// Assist starts a one-shot editing action and returns its stream.
func (c *Client) Assist(ctx context.Context, req AssistRequest) (*Stream, error) {
	log.Debug("HTTP POST %s/assist/process (action: %s, content: %d bytes)",
		c.baseURL, req.Action, len(req.Content))
	return c.postStream(ctx, "/assist/process", req)
}

// ChatSend posts a conversational message and streams the reply.
func (c *Client) ChatSend(ctx context.Context, req ChatRequest) (*Stream, error) {
	log.Debug("HTTP POST %s/chat/messages (task: %d, message: %d bytes)",
		c.baseURL, req.TaskID, len(req.Message))
	return c.postStream(ctx, "/chat/messages", req)
}

func (c *Client) postStream(ctx context.Context, path string, payload any) (*Stream, error) {
	bodyBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Error("HTTP request failed: %v", err)
		return nil, err
	}

	log.Debug("HTTP response status: %d", resp.StatusCode)

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		log.Error("API error %d: %s", resp.StatusCode, string(body))
		return nil, fmt.Errorf("%w: %d - %s", ErrRequestFailed, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var taskID int64
	if v := resp.Header.Get(taskIDHeader); v != "" {
		taskID, err = strconv.ParseInt(v, 10, 64)
		if err != nil {
			log.Debug("ignoring malformed %s header: %q", taskIDHeader, v)
			taskID = 0
		}
	}

	return NewStream(resp.Body, taskID), nil
}

// TaskStatus probes a background task. Bounded by its own timeout
// when the caller's context has no deadline.
func (c *Client) TaskStatus(ctx context.Context, taskID int64) (TaskStatus, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultProbeTimeout)
		defer cancel()
	}

	url := fmt.Sprintf("%s/tasks/%d/status", c.baseURL, taskID)
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return TaskStatus{}, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	log.Debug("HTTP GET %s", url)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Error("HTTP request failed: %v", err)
		return TaskStatus{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return TaskStatus{}, fmt.Errorf("%w: %d - %s", ErrRequestFailed, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var status TaskStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return TaskStatus{}, fmt.Errorf("failed to decode task status: %w", err)
	}
	return status, nil
}

// ResumeStream reattaches to a task's live stream. The server replays
// nothing; frames continue from the current position, which is why
// callers probe TaskStatus for the partial text first.
func (c *Client) ResumeStream(ctx context.Context, taskID int64) (*Stream, error) {
	url := fmt.Sprintf("%s/tasks/%d/stream", c.baseURL, taskID)
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	log.Debug("HTTP GET %s", url)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Error("HTTP request failed: %v", err)
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		log.Error("API error %d: %s", resp.StatusCode, string(body))
		return nil, fmt.Errorf("%w: %d - %s", ErrRequestFailed, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return NewStream(resp.Body, 0), nil
}
