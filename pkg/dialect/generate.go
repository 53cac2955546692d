package dialect

import "encoding/json"

// generateDelta is one non-terminal generate-compat frame.
type generateDelta struct {
	Model     string `json:"model"`
	CreatedAt string `json:"created_at"`
	Response  string `json:"response"`
	Done      bool   `json:"done"`
}

// generateTerminal is the single terminal generate-compat frame. All
// duration fields are synthesized placeholders; prompt_eval_count and
// eval_count come from the session snapshot.
type generateTerminal struct {
	Model              string `json:"model"`
	CreatedAt          string `json:"created_at"`
	Response           string `json:"response"`
	Done               bool   `json:"done"`
	Context            []int  `json:"context"`
	TotalDuration      int64  `json:"total_duration"`
	LoadDuration       int64  `json:"load_duration"`
	PromptEvalCount    int    `json:"prompt_eval_count"`
	PromptEvalDuration int64  `json:"prompt_eval_duration"`
	EvalCount          int    `json:"eval_count"`
	EvalDuration       int64  `json:"eval_duration"`
}

type generateEncoder struct{}

func (generateEncoder) Delta(text string, snap Snapshot) ([]byte, error) {
	payload, err := json.Marshal(generateDelta{
		Model:     snap.Model,
		CreatedAt: timestamp(snap.CreatedAt),
		Response:  text,
		Done:      false,
	})
	if err != nil {
		return nil, err
	}
	return frame(payload), nil
}

func (e generateEncoder) Terminal(snap Snapshot) ([]byte, error) {
	payload, err := e.object("", snap)
	if err != nil {
		return nil, err
	}
	return frame(payload), nil
}

func (e generateEncoder) Complete(text string, snap Snapshot) ([]byte, error) {
	return e.object(text, snap)
}

func (generateEncoder) object(response string, snap Snapshot) ([]byte, error) {
	return json.Marshal(generateTerminal{
		Model:              snap.Model,
		CreatedAt:          timestamp(snap.CreatedAt),
		Response:           response,
		Done:               true,
		Context:            synthContext,
		TotalDuration:      synthTotalDuration,
		LoadDuration:       synthLoadDuration,
		PromptEvalCount:    snap.PromptEvalCount,
		PromptEvalDuration: synthPromptEvalDuration,
		EvalCount:          snap.EvalCount,
		EvalDuration:       synthEvalDuration,
	})
}
