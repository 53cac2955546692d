package proxy

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Non-streaming paths", func() {
	var (
		p        *Proxy
		rec      *upstreamRecorder
		upstream *httptest.Server
	)

	BeforeEach(func() {
		rec = &upstreamRecorder{}
	})

	AfterEach(func() {
		if p != nil {
			p.Close()
			p = nil
		}
		if upstream != nil {
			upstream.Close()
			upstream = nil
		}
	})

	Context("one-shot forward on /api/completions", func() {
		const upstreamBody = `{"id":"cmpl-1","model":"jiutian-lan-64k","choices":[{"index":0,"text":"6","finish_reason":"stop"}],"usage":{"prompt_tokens":9,"completion_tokens":1,"total_tokens":10}}`

		BeforeEach(func() {
			upstream = jsonUpstream(rec, http.StatusOK, upstreamBody)
			p = newTestProxy(upstream.URL)
		})

		It("passes the upstream body through untouched", func() {
			resp, body := postJSON(p, "/api/completions", map[string]any{
				"model":  testModel,
				"prompt": "2*3=?",
			})

			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(body).To(Equal(upstreamBody))

			var sent struct {
				Stream bool `json:"stream"`
			}
			Expect(json.Unmarshal(rec.Body(), &sent)).To(Succeed())
			Expect(sent.Stream).To(BeFalse())
		})

		It("forwards upstream response headers to the client", func() {
			resp, _ := postJSON(p, "/api/completions", map[string]any{
				"model":  testModel,
				"prompt": "2*3=?",
			})

			Expect(resp.Header.Get("X-Request-Id")).To(Equal("upstream-req-1"))
		})
	})

	Context("one-shot generate on /api/generate with stream:false", func() {
		BeforeEach(func() {
			upstream = jsonUpstream(rec, http.StatusOK,
				`{"choices":[{"index":0,"text":"6","finish_reason":"stop"}],"usage":{"prompt_tokens":9,"completion_tokens":1,"total_tokens":10}}`)
			p = newTestProxy(upstream.URL)
		})

		It("returns a single completed object", func() {
			resp, body := postJSON(p, "/api/generate", map[string]any{
				"model":  testModel,
				"prompt": "2*3=?",
				"stream": false,
			})

			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(ContainSubstring("application/json"))

			var obj map[string]any
			Expect(json.Unmarshal([]byte(body), &obj)).To(Succeed())
			Expect(obj["response"]).To(Equal("6"))
			Expect(obj["done"]).To(BeTrue())
			Expect(obj["eval_count"]).To(BeNumerically("==", 1))
			Expect(obj["prompt_eval_count"]).To(BeNumerically("==", 9))
			Expect(obj["context"]).To(Equal([]any{1.0, 2.0, 3.0}))
		})
	})

	Context("one-shot chat on /api/chat with compat markers and stream:false", func() {
		BeforeEach(func() {
			upstream = jsonUpstream(rec, http.StatusOK,
				`{"choices":[{"index":0,"message":{"role":"assistant","content":"6"},"finish_reason":"stop"}],"usage":{"prompt_tokens":9,"completion_tokens":1,"total_tokens":10}}`)
			p = newTestProxy(upstream.URL)
		})

		It("returns a single completed message object", func() {
			resp, body := postJSON(p, "/api/chat", map[string]any{
				"model": testModel,
				"messages": []map[string]string{
					{"role": "user", "content": "2*3=?"},
				},
				"options": map[string]any{},
				"stream":  false,
			})

			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var obj map[string]any
			Expect(json.Unmarshal([]byte(body), &obj)).To(Succeed())
			msg, ok := obj["message"].(map[string]any)
			Expect(ok).To(BeTrue())
			Expect(msg["role"]).To(Equal("assistant"))
			Expect(msg["content"]).To(Equal("6"))
			Expect(obj["done"]).To(BeTrue())
			Expect(obj["eval_count"]).To(BeNumerically("==", 1))
			Expect(obj).NotTo(HaveKey("prompt_eval_count"))
		})
	})

	Context("request validation", func() {
		BeforeEach(func() {
			upstream = jsonUpstream(rec, http.StatusOK, `{}`)
			p = newTestProxy(upstream.URL)
		})

		It("rejects a malformed body with 400", func() {
			req := httptest.NewRequest(http.MethodPost, "/api/generate", strings.NewReader("{not json"))
			req.Header.Set("Content-Type", "application/json")

			resp, err := p.server.Test(req, -1)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			raw, _ := io.ReadAll(resp.Body)
			Expect(string(raw)).To(ContainSubstring(`"error":"invalid request body"`))
			Expect(rec.Calls()).To(BeZero())
		})
	})

	Context("discovery endpoints", func() {
		BeforeEach(func() {
			p = newTestProxy("http://localhost:0")
		})

		get := func(path string) (*http.Response, string) {
			resp, err := p.server.Test(httptest.NewRequest(http.MethodGet, path, nil), -1)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			raw, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			return resp, string(raw)
		}

		It("lists the single fronted model on /api/tags", func() {
			resp, body := get("/api/tags")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var tags struct {
				Models []struct {
					Name  string `json:"name"`
					Model string `json:"model"`
				} `json:"models"`
			}
			Expect(json.Unmarshal([]byte(body), &tags)).To(Succeed())
			Expect(tags.Models).To(HaveLen(1))
			Expect(tags.Models[0].Name).To(Equal(testModel))
			Expect(tags.Models[0].Model).To(Equal(testModel))
		})

		It("reports a version on /api/version", func() {
			resp, body := get("/api/version")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var v struct {
				Version string `json:"version"`
			}
			Expect(json.Unmarshal([]byte(body), &v)).To(Succeed())
			Expect(v.Version).NotTo(BeEmpty())
		})

		It("answers /health", func() {
			resp, body := get("/health")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(body).To(ContainSubstring(`"status":"ok"`))
		})
	})
})

var _ = Describe("New", func() {
	It("requires an upstream URL", func() {
		_, err := New(Config{Model: testModel}, nil)
		Expect(err).To(HaveOccurred())
	})

	It("requires a model", func() {
		_, err := New(Config{UpstreamURL: "http://localhost:0"}, nil)
		Expect(err).To(HaveOccurred())
	})
})
