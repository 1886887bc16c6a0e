package editor

import (
	"fmt"
	"sync"
)

// MemoryBuffer is a Surface over a plain string. The stdio bridge uses
// it to mirror host buffers, and tests use it as the editing target.
type MemoryBuffer struct {
	mu       sync.Mutex
	content  string
	sel      Span
	hasSel   bool
	onChange func()
}

func NewMemoryBuffer(content string) *MemoryBuffer {
	return &MemoryBuffer{content: content}
}

func (b *MemoryBuffer) Content() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.content
}

func (b *MemoryBuffer) SetContent(content string) {
	b.mu.Lock()
	b.content = content
	b.sel = Span{}
	b.hasSel = false
	fn := b.onChange
	b.mu.Unlock()

	if fn != nil {
		fn()
	}
}

// Select records the selection. Offsets are clamped to the buffer and
// swapped if reversed; the span text is captured at call time.
func (b *MemoryBuffer) Select(from, to int) Span {
	b.mu.Lock()
	defer b.mu.Unlock()

	if from > to {
		from, to = to, from
	}
	from = clamp(from, 0, len(b.content))
	to = clamp(to, 0, len(b.content))

	b.sel = Span{From: from, To: to, Text: b.content[from:to]}
	b.hasSel = true
	return b.sel
}

func (b *MemoryBuffer) ClearSelection() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sel = Span{}
	b.hasSel = false
}

func (b *MemoryBuffer) Selection() (Span, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sel, b.hasSel
}

func (b *MemoryBuffer) ReplaceRange(from, to int, text string) error {
	b.mu.Lock()
	if from < 0 || to < from || to > len(b.content) {
		b.mu.Unlock()
		return fmt.Errorf("%w: from=%d to=%d len=%d", ErrRange, from, to, len(b.content))
	}

	b.content = b.content[:from] + text + b.content[to:]
	// Collapse the selection to the end of the inserted text.
	end := from + len(text)
	b.sel = Span{From: end, To: end}
	b.hasSel = false
	fn := b.onChange
	b.mu.Unlock()

	if fn != nil {
		fn()
	}
	return nil
}

func (b *MemoryBuffer) Context(before, after int) (string, string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	// With no selection the span holds the collapsed cursor, which is
	// still a valid anchor for surrounding context.
	from, to := b.sel.From, b.sel.To

	start := clamp(from-before, 0, len(b.content))
	end := clamp(to+after, 0, len(b.content))
	return b.content[start:from], b.content[to:end]
}

func (b *MemoryBuffer) OnChange(fn func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onChange = fn
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
