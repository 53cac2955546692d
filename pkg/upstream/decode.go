package upstream

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrFrameParse indicates one malformed frame. The frame is dropped
// and decoding continues; the upstream has been observed to emit the
// occasional partial write, and a single bad frame must not kill the
// session.
var ErrFrameParse = errors.New("malformed upstream frame")

// DoneSentinel is the non-JSON data payload that closes an upstream
// event stream.
const DoneSentinel = "[DONE]"

// streamFrame covers both upstream endpoint shapes: the completions
// endpoint puts deltas at choices[i].delta.text, the chat endpoint at
// choices[i].delta.content.
type streamFrame struct {
	Choices []struct {
		Index int `json:"index"`
		Delta struct {
			Text    string `json:"text"`
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *Usage `json:"usage"`
}

// Decode maps one event-stream data payload onto typed events. A
// single frame can carry a delta, a finish marker and usage accounting
// at once, so the result is a slice in production order. Malformed
// JSON is reported wrapped in ErrFrameParse.
func Decode(data []byte) ([]Event, error) {
	var frame streamFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFrameParse, err)
	}

	var events []Event
	for _, choice := range frame.Choices {
		text := choice.Delta.Text
		if text == "" {
			text = choice.Delta.Content
		}
		if text != "" {
			events = append(events, Event{
				Kind:  EventTextDelta,
				Index: choice.Index,
				Text:  text,
			})
		}
		if choice.FinishReason != "" {
			events = append(events, Event{
				Kind:         EventFinish,
				Index:        choice.Index,
				FinishReason: choice.FinishReason,
			})
		}
	}
	if frame.Usage != nil {
		usage := *frame.Usage
		events = append(events, Event{Kind: EventUsage, Usage: &usage})
	}

	return events, nil
}
