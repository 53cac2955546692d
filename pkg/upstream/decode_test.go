package upstream_test

import (
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/huxuyf/jiutian/pkg/upstream"
)

var _ = Describe("Decode", func() {
	It("maps completion deltas at choices[0].delta.text", func() {
		events, err := upstream.Decode([]byte(`{"choices":[{"index":0,"delta":{"text":"2"}}]}`))
		Expect(err).NotTo(HaveOccurred())
		Expect(events).To(HaveLen(1))
		Expect(events[0].Kind).To(Equal(upstream.EventTextDelta))
		Expect(events[0].Index).To(Equal(0))
		Expect(events[0].Text).To(Equal("2"))
	})

	It("maps chat deltas at choices[0].delta.content", func() {
		events, err := upstream.Decode([]byte(`{"choices":[{"index":0,"delta":{"content":"hello"}}]}`))
		Expect(err).NotTo(HaveOccurred())
		Expect(events).To(HaveLen(1))
		Expect(events[0].Kind).To(Equal(upstream.EventTextDelta))
		Expect(events[0].Text).To(Equal("hello"))
	})

	It("maps a completion-status marker to a finish event", func() {
		events, err := upstream.Decode([]byte(`{"choices":[{"index":0,"delta":{},"finish_reason":"stop"}]}`))
		Expect(err).NotTo(HaveOccurred())
		Expect(events).To(HaveLen(1))
		Expect(events[0].Kind).To(Equal(upstream.EventFinish))
		Expect(events[0].FinishReason).To(Equal("stop"))
	})

	It("maps a top-level usage object to a usage event", func() {
		events, err := upstream.Decode([]byte(`{"usage":{"prompt_tokens":9,"completion_tokens":5,"total_tokens":14}}`))
		Expect(err).NotTo(HaveOccurred())
		Expect(events).To(HaveLen(1))
		Expect(events[0].Kind).To(Equal(upstream.EventUsage))
		Expect(events[0].Usage.PromptTokens).To(Equal(9))
		Expect(events[0].Usage.CompletionTokens).To(Equal(5))
	})

	It("keeps production order for a final frame carrying delta, finish and usage", func() {
		payload := `{"choices":[{"index":0,"delta":{"text":"6"},"finish_reason":"stop"}],"usage":{"prompt_tokens":9,"completion_tokens":5,"total_tokens":14}}`
		events, err := upstream.Decode([]byte(payload))
		Expect(err).NotTo(HaveOccurred())
		Expect(events).To(HaveLen(3))
		Expect(events[0].Kind).To(Equal(upstream.EventTextDelta))
		Expect(events[1].Kind).To(Equal(upstream.EventFinish))
		Expect(events[2].Kind).To(Equal(upstream.EventUsage))
	})

	It("reports malformed JSON wrapped in ErrFrameParse", func() {
		_, err := upstream.Decode([]byte(`{"choices":[{"delta":`))
		Expect(err).To(MatchError(upstream.ErrFrameParse))
	})

	It("returns no events for an empty but well-formed frame", func() {
		events, err := upstream.Decode([]byte(`{"choices":[{"index":0,"delta":{}}]}`))
		Expect(err).NotTo(HaveOccurred())
		Expect(events).To(BeEmpty())
	})
})

var _ = Describe("Response", func() {
	It("extracts text from the completions shape", func() {
		var resp upstream.Response
		payload := `{"choices":[{"index":0,"text":"answer","finish_reason":"stop"}]}`
		Expect(json.Unmarshal([]byte(payload), &resp)).To(Succeed())
		Expect(resp.Text()).To(Equal("answer"))
		Expect(resp.FinishReason()).To(Equal("stop"))
	})

	It("extracts text from the chat shape", func() {
		var resp upstream.Response
		payload := `{"choices":[{"index":0,"message":{"role":"assistant","content":"hi"},"finish_reason":"stop"}]}`
		Expect(json.Unmarshal([]byte(payload), &resp)).To(Succeed())
		Expect(resp.Text()).To(Equal("hi"))
	})

	It("is empty with no choices", func() {
		var resp upstream.Response
		Expect(resp.Text()).To(Equal(""))
		Expect(resp.FinishReason()).To(Equal(""))
	})
})
