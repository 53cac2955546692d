package dialect

import "encoding/json"

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatDelta is one non-terminal chat-compat frame.
type chatDelta struct {
	Model     string      `json:"model"`
	CreatedAt string      `json:"created_at"`
	Message   chatMessage `json:"message"`
	Done      bool        `json:"done"`
}

// chatTerminal mirrors the generate dialect's synthesized timing
// fields but omits context and prompt_eval_count; the chat dialect
// does not report prompt length.
type chatTerminal struct {
	Model              string      `json:"model"`
	CreatedAt          string      `json:"created_at"`
	Message            chatMessage `json:"message"`
	Done               bool        `json:"done"`
	TotalDuration      int64       `json:"total_duration"`
	LoadDuration       int64       `json:"load_duration"`
	PromptEvalDuration int64       `json:"prompt_eval_duration"`
	EvalCount          int         `json:"eval_count"`
	EvalDuration       int64       `json:"eval_duration"`
}

type chatEncoder struct{}

func (chatEncoder) Delta(text string, snap Snapshot) ([]byte, error) {
	payload, err := json.Marshal(chatDelta{
		Model:     snap.Model,
		CreatedAt: timestamp(snap.CreatedAt),
		Message:   chatMessage{Role: "assistant", Content: text},
		Done:      false,
	})
	if err != nil {
		return nil, err
	}
	return frame(payload), nil
}

func (e chatEncoder) Terminal(snap Snapshot) ([]byte, error) {
	payload, err := e.object("", snap)
	if err != nil {
		return nil, err
	}
	return frame(payload), nil
}

func (e chatEncoder) Complete(text string, snap Snapshot) ([]byte, error) {
	return e.object(text, snap)
}

func (chatEncoder) object(content string, snap Snapshot) ([]byte, error) {
	return json.Marshal(chatTerminal{
		Model:              snap.Model,
		CreatedAt:          timestamp(snap.CreatedAt),
		Message:            chatMessage{Role: "assistant", Content: content},
		Done:               true,
		TotalDuration:      synthTotalDuration,
		LoadDuration:       synthLoadDuration,
		PromptEvalDuration: synthPromptEvalDuration,
		EvalCount:          snap.EvalCount,
		EvalDuration:       synthEvalDuration,
	})
}
