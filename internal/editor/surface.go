package editor

import "errors"

var ErrRange = errors.New("range out of bounds")

// Span is a snapshot of a buffer region: byte offsets plus the text
// that occupied them when the snapshot was taken.
type Span struct {
	From int    `json:"from"`
	To   int    `json:"to"`
	Text string `json:"text"`
}

// Surface is the capability set the core needs from whatever owns the
// text being edited. Concrete UIs (an editor component, a chat input)
// implement it; the core never assumes a specific editor library.
type Surface interface {
	Content() string
	SetContent(content string)
	// Selection reports the current selection snapshot; false when
	// nothing is selected.
	Selection() (Span, bool)
	ReplaceRange(from, to int, text string) error
	// Context returns up to before/after bytes of text surrounding the
	// current selection.
	Context(before, after int) (beforeText, afterText string)
	// OnChange registers the single buffer-changed notifier. A
	// successful mutation fires it exactly once.
	OnChange(fn func())
}
