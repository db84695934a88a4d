package llm

import "strings"

// MessageRole represents the role of a message in a conversation.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleSystem    MessageRole = "system"
)

// Message represents a single text message in a conversation.
type Message struct {
	Role MessageRole
	Text string
}

// Request represents a complete completion request.
type Request struct {
	Model       string
	Messages    []Message
	System      string
	MaxTokens   int64
	Temperature *float64 // Optional temperature override
}

// Response represents a complete completion response.
type Response struct {
	// Content holds the text blocks returned by the provider, in order.
	Content    []string
	Usage      *Usage
	StopReason string
}

// Usage represents token usage information from an LLM response.
type Usage struct {
	InputTokens  int64
	OutputTokens int64
	// Provider-specific usage fields can be added here
	CacheCreationInputTokens int64
	CacheReadInputTokens     int64
}

// NewTextMessage creates a new message with text content.
func NewTextMessage(role MessageRole, text string) Message {
	return Message{Role: role, Text: text}
}

// NewPromptRequest builds a single-turn request: one free-text prompt from the user.
func NewPromptRequest(model, prompt string, maxTokens int64) *Request {
	return &Request{
		Model:     model,
		Messages:  []Message{NewTextMessage(RoleUser, prompt)},
		MaxTokens: maxTokens,
	}
}

// Text joins all text blocks of the response.
func (r *Response) Text() string {
	if r == nil {
		return ""
	}
	return strings.Join(r.Content, "")
}
