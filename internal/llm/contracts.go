package llm

import "context"

// Roles understood by chat/completions backends.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest is one synchronous chat call.
// A non-nil Schema turns it into a structured-output call.
type CompletionRequest struct {
	Messages   []Message
	Schema     map[string]any
	SchemaName string
}

// Completion is the first choice returned by the backend.
type Completion struct {
	Content      string
	Model        string
	FinishReason string
	Raw          []byte // full response body
}

// ChatModel is the backend contract the extraction stages depend on.
// Implementations return errors of kind common.ErrBackend.
type ChatModel interface {
	Complete(ctx context.Context, req CompletionRequest) (Completion, error)
}
