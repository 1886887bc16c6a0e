package api

// AssistRequest is the payload for a one-shot editing action. Content
// carries the target text; whole-document context travels separately
// so the server can ground the rewrite without receiving the entire
// buffer twice.
type AssistRequest struct {
	Action          string `json:"action"`
	Content         string `json:"content,omitempty"`
	Context         string `json:"context,omitempty"`
	CustomPrompt    string `json:"custom_prompt,omitempty"`
	KnowledgeBaseID string `json:"knowledge_base_id,omitempty"`
	EnableWebSearch bool   `json:"enable_web_search,omitempty"`
	ModelID         string `json:"model_id,omitempty"`
}

// MessageContext is an inline piece of context attached to a chat
// message, like the current selection or a referenced file.
type MessageContext struct {
	Type string `json:"type"`
	Name string `json:"name,omitempty"`
	Text string `json:"text,omitempty"`
}

// ChatRequest is the payload for a conversational message. TaskID is
// zero for the first message of a session; the server answers with an
// X-Task-Id header that promotes the session.
type ChatRequest struct {
	Message         string           `json:"message"`
	TaskID          int64            `json:"task_id,omitempty"`
	TeamID          string           `json:"team_id,omitempty"`
	ModelID         string           `json:"model_id,omitempty"`
	KnowledgeBaseID string           `json:"knowledge_base_id,omitempty"`
	EnableWebSearch bool             `json:"enable_web_search,omitempty"`
	AttachmentIDs   []string         `json:"attachment_ids,omitempty"`
	Contexts        []MessageContext `json:"contexts,omitempty"`
}

// TaskStatus reports whether a background task is still producing
// output and what it has produced so far.
type TaskStatus struct {
	InProgress bool   `json:"in_progress"`
	Partial    string `json:"partial,omitempty"`
	Action     string `json:"action,omitempty"`
}
