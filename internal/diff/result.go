package diff

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/youruser/quill/internal/sse"
)

var (
	ErrRange = errors.New("patch range out of bounds")
	ErrStale = errors.New("buffer changed since diff was computed")
)

// Result is the reviewable outcome of an operation: the captured
// original span, the streamed replacement, and the offsets the
// replacement applies to. Offsets are byte offsets into the owning
// buffer as it was when the operation was created. Replacement may be a
// mid-stream snapshot while the operation is still generating; it is
// immutable once the operation is terminal.
type Result struct {
	Original    string             `json:"original"`
	Replacement string             `json:"replacement"`
	From        int                `json:"from"`
	To          int                `json:"to"`
	Sources     []sse.SourceRecord `json:"sources,omitempty"`
	BaseSum     string             `json:"base_sum,omitempty"`
}

// Checksum returns a stable hex-encoded SHA-256 hash for buffer
// content, recorded as Result.BaseSum at operation creation time.
func Checksum(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// Apply splices the replacement into buffer at the recorded offsets:
// buffer[:From] + Replacement + buffer[To:]. The offsets are not
// revalidated against the current content; if the buffer was edited
// while the operation streamed, the patch lands last-writer-wins.
// ApplyChecked is the strict variant.
func Apply(buffer string, r Result) (string, error) {
	if r.From < 0 || r.To < r.From || r.To > len(buffer) {
		return "", fmt.Errorf("%w: from=%d to=%d len=%d", ErrRange, r.From, r.To, len(buffer))
	}
	return buffer[:r.From] + r.Replacement + buffer[r.To:], nil
}

// ApplyChecked refuses to splice blind when the buffer no longer
// matches the state the diff was computed against. The recorded offsets
// are used when the whole-buffer checksum still matches or the span
// still holds the original text; otherwise the original text is
// relocated as a unique substring. Ambiguous or missing matches fail
// with ErrStale. Pure insertions (empty original) cannot be relocated.
func ApplyChecked(buffer string, r Result) (string, error) {
	if r.BaseSum != "" && Checksum(buffer) == r.BaseSum {
		return Apply(buffer, r)
	}

	// An empty original matches any span vacuously, so insertion points
	// are only ever validated by checksum.
	if r.Original == "" {
		return "", fmt.Errorf("%w: insertion point cannot be relocated", ErrStale)
	}

	if r.From >= 0 && r.From <= r.To && r.To <= len(buffer) && buffer[r.From:r.To] == r.Original {
		return Apply(buffer, r)
	}

	idx := strings.Index(buffer, r.Original)
	if idx < 0 {
		return "", fmt.Errorf("%w: original text not found", ErrStale)
	}
	if strings.LastIndex(buffer, r.Original) != idx {
		return "", fmt.Errorf("%w: original text not unique", ErrStale)
	}

	relocated := r
	relocated.From = idx
	relocated.To = idx + len(r.Original)
	return Apply(buffer, relocated)
}
