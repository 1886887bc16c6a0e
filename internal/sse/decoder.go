package sse

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"

	"github.com/youruser/quill/internal/logging"
)

var log = logging.Get()

// Frame type discriminators on the wire.
const (
	FrameChunk = "chunk"
	FrameDone  = "done"
	FrameError = "error"
)

// SourceRecord is a citation attached to a done frame when the backend
// consulted external sources (web search, knowledge base).
type SourceRecord struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet,omitempty"`
}

// Frame is one decoded unit of the streaming protocol.
type Frame struct {
	Type    string         `json:"type"`
	Content string         `json:"content,omitempty"`
	Sources []SourceRecord `json:"sources,omitempty"`
	TaskID  int64          `json:"task_id,omitempty"`
	Err     string         `json:"error,omitempty"`
}

// Decoder turns a text/event-stream body into a sequence of frames.
// The sequence is finite and non-restartable: after a done or error
// frame, or the [DONE] marker, Next returns io.EOF.
type Decoder struct {
	scanner  *bufio.Scanner
	finished bool
}

func NewDecoder(r io.Reader) *Decoder {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &Decoder{scanner: scanner}
}

// Next returns the next well-formed frame. A frame split across network
// reads is completed by later reads; a partial trailing line at stream
// end gets one final parse attempt. Lines that are not data lines,
// payloads that fail to parse, and unknown frame types are skipped so
// that protocol additions never fail the stream.
func (d *Decoder) Next() (Frame, error) {
	if d.finished {
		return Frame{}, io.EOF
	}

	for d.scanner.Scan() {
		line := d.scanner.Text()

		// SSE format: "data: {json}"
		if !strings.HasPrefix(line, "data: ") {
			continue
		}

		data := strings.TrimPrefix(line, "data: ")
		if data == "" {
			continue
		}

		// Stream end marker
		if data == "[DONE]" {
			d.finished = true
			return Frame{}, io.EOF
		}

		var f Frame
		if err := json.Unmarshal([]byte(data), &f); err != nil {
			log.Debug("Skipping malformed frame: %s", data)
			continue // Skip malformed frames
		}

		switch f.Type {
		case FrameChunk:
			return f, nil
		case FrameDone, FrameError:
			// Terminal frames are the last thing delivered; trailing
			// bytes on the wire are never read.
			d.finished = true
			return f, nil
		default:
			log.Debug("Skipping unknown frame type %q", f.Type)
			continue
		}
	}

	d.finished = true
	if err := d.scanner.Err(); err != nil {
		return Frame{}, err
	}
	return Frame{}, io.EOF
}
