package upstream

import "encoding/json"

// Message is one turn in a chat conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest is the body for POST {base}/completions.
// History is an opaque provider-specific structure passed through
// untouched from the caller.
type CompletionRequest struct {
	Model       string          `json:"model"`
	Prompt      string          `json:"prompt"`
	Temperature *float64        `json:"temperature,omitempty"`
	TopP        *float64        `json:"top_p,omitempty"`
	History     json.RawMessage `json:"history,omitempty"`
	Stream      bool            `json:"stream"`
}

// ChatRequest is the body for POST {base}/chat/completions.
type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature *float64  `json:"temperature,omitempty"`
	TopP        *float64  `json:"top_p,omitempty"`
	Stream      bool      `json:"stream"`
}

// Response is the provider's non-streaming response shape for both
// endpoints; the completions endpoint fills choices[i].text, the chat
// endpoint choices[i].message.content.
type Response struct {
	ID      string `json:"id,omitempty"`
	Created int64  `json:"created,omitempty"`
	Model   string `json:"model,omitempty"`
	Choices []struct {
		Index        int      `json:"index"`
		Text         string   `json:"text,omitempty"`
		Message      *Message `json:"message,omitempty"`
		FinishReason string   `json:"finish_reason,omitempty"`
	} `json:"choices"`
	Usage *Usage `json:"usage,omitempty"`
}

// Text returns the generated text of the first output slot regardless
// of which endpoint shape produced the response.
func (r *Response) Text() string {
	if len(r.Choices) == 0 {
		return ""
	}
	if r.Choices[0].Text != "" {
		return r.Choices[0].Text
	}
	if r.Choices[0].Message != nil {
		return r.Choices[0].Message.Content
	}
	return ""
}

// FinishReason returns the finish reason of the first output slot.
func (r *Response) FinishReason() string {
	if len(r.Choices) == 0 {
		return ""
	}
	return r.Choices[0].FinishReason
}
