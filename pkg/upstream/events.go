// Package upstream decodes the JiuTian provider's event-stream frames
// into typed events and carries the request/response body types for
// the provider's two endpoints (/completions and /chat/completions).
package upstream

// EventKind discriminates the parsed units of the provider stream.
type EventKind int

const (
	// EventTextDelta is incremental content for one output slot.
	EventTextDelta EventKind = iota
	// EventFinish marks an output slot as completed.
	EventFinish
	// EventUsage carries token accounting, only on the final frame.
	EventUsage
)

func (k EventKind) String() string {
	switch k {
	case EventTextDelta:
		return "text_delta"
	case EventFinish:
		return "finish"
	case EventUsage:
		return "usage"
	}
	return "unknown"
}

// Usage contains the provider's token accounting.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Event is one parsed unit from the provider stream. Index identifies
// the output slot for deltas and finish markers; events arrive in
// strict production order per slot.
type Event struct {
	Kind         EventKind
	Index        int
	Text         string
	FinishReason string
	Usage        *Usage
}
