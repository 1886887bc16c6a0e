package action

import (
	"errors"
	"fmt"
	"strings"

	"github.com/youruser/quill/internal/editor"
)

// ErrValidation marks requests rejected before any network call.
var ErrValidation = errors.New("validation failed")

// Action identifies one assist capability. Values are wire-format ids.
type Action string

const (
	Rewrite    Action = "rewrite"
	Expand     Action = "expand"
	Summarize  Action = "summarize"
	FixGrammar Action = "fix_grammar"
	Custom     Action = "custom"
	Continue   Action = "continue"
	Outline    Action = "outline"
	Search     Action = "search"
	ChatSend   Action = "chat-send"
)

// Spec describes one catalog entry as offered to hosts.
type Spec struct {
	ID             Action `json:"id"`
	Label          string `json:"label"`
	NeedsSelection bool   `json:"needs_selection"`
	NeedsPrompt    bool   `json:"needs_prompt"`
}

// Builtins returns the built-in catalog in display order. ChatSend is
// not listed; it is the chat surface's implicit action, not a menu item.
func Builtins() []Spec {
	return []Spec{
		{ID: Rewrite, Label: "Rewrite", NeedsSelection: true},
		{ID: Expand, Label: "Expand", NeedsSelection: true},
		{ID: Summarize, Label: "Summarize"},
		{ID: FixGrammar, Label: "Fix grammar", NeedsSelection: true},
		{ID: Custom, Label: "Custom instruction", NeedsSelection: true, NeedsPrompt: true},
		{ID: Continue, Label: "Continue writing"},
		{ID: Outline, Label: "Outline"},
		{ID: Search, Label: "Search"},
	}
}

// Request is one assist invocation before dispatch.
type Request struct {
	Action       Action
	Selection    editor.Span
	HasSelection bool
	Content      string // full document text, the fallback target for whole-document actions
	CustomPrompt string
	Message      string // chat-send only
}

// TargetSpan resolves the span the action operates on: the selection
// when present, insertion at the document end for continue, or the
// whole document otherwise.
func (r Request) TargetSpan() editor.Span {
	if r.HasSelection && (r.Selection.Text != "" || r.Action == Continue || r.Action == Search) {
		return r.Selection
	}
	if r.Action == Continue || r.Action == Search {
		end := len(r.Content)
		return editor.Span{From: end, To: end}
	}
	return editor.Span{From: 0, To: len(r.Content), Text: r.Content}
}

// Catalog is the action set offered to hosts: builtins plus user
// templates loaded from the actions directory.
type Catalog struct {
	specs     []Spec
	templates map[Action]Template
}

// NewCatalog builds the catalog. dir may be empty or missing; user
// templates are simply absent then.
func NewCatalog(dir string) *Catalog {
	c := &Catalog{templates: make(map[Action]Template)}
	c.specs = Builtins()
	for _, t := range LoadTemplates(dir) {
		id := Action("custom:" + t.Name)
		c.specs = append(c.specs, Spec{
			ID:             id,
			Label:          t.Label,
			NeedsSelection: t.RequiresSelection,
		})
		c.templates[id] = t
	}
	return c
}

// Specs returns the catalog entries in display order.
func (c *Catalog) Specs() []Spec {
	out := make([]Spec, len(c.specs))
	copy(out, c.specs)
	return out
}

func (c *Catalog) lookup(id Action) (Spec, bool) {
	if id == ChatSend {
		return Spec{ID: ChatSend, Label: "Send"}, true
	}
	for _, s := range c.specs {
		if s.ID == id {
			return s, true
		}
	}
	return Spec{}, false
}

// Validate checks a request synchronously, before any network call.
func (c *Catalog) Validate(req Request) error {
	spec, ok := c.lookup(req.Action)
	if !ok {
		return fmt.Errorf("%w: unknown action %q", ErrValidation, req.Action)
	}

	hasSelText := req.HasSelection && req.Selection.Text != ""

	if spec.NeedsSelection && !hasSelText {
		return fmt.Errorf("%w: %s requires a selection", ErrValidation, spec.ID)
	}
	if spec.NeedsPrompt && strings.TrimSpace(req.CustomPrompt) == "" {
		return fmt.Errorf("%w: %s requires a prompt", ErrValidation, spec.ID)
	}

	switch req.Action {
	case ChatSend:
		if strings.TrimSpace(req.Message) == "" {
			return fmt.Errorf("%w: empty message", ErrValidation)
		}
	case Search:
		if !hasSelText && strings.TrimSpace(req.CustomPrompt) == "" {
			return fmt.Errorf("%w: search needs a selection or a query", ErrValidation)
		}
	case Summarize, Outline, Continue:
		if !hasSelText && strings.TrimSpace(req.Content) == "" {
			return fmt.Errorf("%w: nothing to operate on", ErrValidation)
		}
	}
	return nil
}

// Prepare validates the request and lowers template actions into their
// wire form (action=custom plus the template prompt).
func (c *Catalog) Prepare(req Request) (Request, error) {
	if err := c.Validate(req); err != nil {
		return Request{}, err
	}
	if t, ok := c.templates[req.Action]; ok {
		req.Action = Custom
		req.CustomPrompt = t.Prompt
	}
	return req, nil
}
