package header

import (
	"net/http"
	"net/http/httptest"

	"github.com/gofiber/fiber/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("SetUpstreamRequestHeaders", func() {
	var (
		app *fiber.App
		hh  *Handler
	)

	BeforeEach(func() {
		app = fiber.New()
		hh = NewHandler()
	})

	AfterEach(func() {
		app.Shutdown()
	})

	// capture runs one request through the handler and returns the
	// headers that would go upstream.
	capture := func(build func(req *http.Request)) http.Header {
		var got http.Header

		app.Post("/test", func(c *fiber.Ctx) error {
			req, _ := http.NewRequest(http.MethodPost, "http://upstream/test", nil)
			hh.SetUpstreamRequestHeaders(c, req, "minted-token")
			got = req.Header
			return c.SendStatus(fiber.StatusOK)
		})

		req := httptest.NewRequest(http.MethodPost, "/test", nil)
		build(req)

		resp, err := app.Test(req)
		Expect(err).NotTo(HaveOccurred())
		resp.Body.Close()
		return got
	}

	It("forwards standard headers to the upstream request", func() {
		got := capture(func(req *http.Request) {
			req.Header.Set("User-Agent", "some-client/1.0")
			req.Header.Set("X-Request-Id", "abc-123")
		})

		Expect(got.Get("User-Agent")).To(Equal("some-client/1.0"))
		Expect(got.Get("X-Request-Id")).To(Equal("abc-123"))
	})

	It("replaces the client's Authorization with the minted credential", func() {
		got := capture(func(req *http.Request) {
			req.Header.Set("Authorization", "Bearer client-secret")
		})

		Expect(got.Get("Authorization")).To(Equal("Bearer minted-token"))
	})

	It("always sends a JSON content type upstream", func() {
		got := capture(func(req *http.Request) {
			req.Header.Set("Content-Type", "text/plain")
		})

		Expect(got.Get("Content-Type")).To(Equal("application/json"))
	})

	It("strips hop-by-hop and negotiation headers", func() {
		got := capture(func(req *http.Request) {
			req.Header.Set("Connection", "keep-alive")
			req.Header.Set("Accept-Encoding", "gzip, deflate, br")
		})

		Expect(got.Get("Connection")).To(BeEmpty())
		// Go's http.Transport negotiates its own Accept-Encoding.
		Expect(got.Get("Accept-Encoding")).To(BeEmpty())
	})
})

var _ = Describe("SetClientResponseHeaders", func() {
	var (
		app *fiber.App
		hh  *Handler
	)

	BeforeEach(func() {
		app = fiber.New()
		hh = NewHandler()
	})

	AfterEach(func() {
		app.Shutdown()
	})

	capture := func(upstream http.Header) *http.Response {
		app.Get("/test", func(c *fiber.Ctx) error {
			hh.SetClientResponseHeaders(c, &http.Response{Header: upstream})
			return c.SendStatus(fiber.StatusOK)
		})

		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		resp, err := app.Test(req)
		Expect(err).NotTo(HaveOccurred())
		resp.Body.Close()
		return resp
	}

	It("forwards standard upstream response headers to the client", func() {
		resp := capture(http.Header{
			"Content-Type": {"application/json"},
			"X-Request-Id": {"abc-123"},
		})

		Expect(resp.Header.Get("Content-Type")).To(Equal("application/json"))
		Expect(resp.Header.Get("X-Request-Id")).To(Equal("abc-123"))
	})

	It("strips hop-by-hop and stale body metadata headers", func() {
		resp := capture(http.Header{
			"Connection":        {"keep-alive"},
			"Transfer-Encoding": {"chunked"},
			"Content-Encoding":  {"gzip"},
			"Content-Length":    {"1234"},
			"X-Request-Id":      {"abc-123"},
		})

		Expect(resp.Header.Get("Connection")).To(BeEmpty())
		Expect(resp.Header.Get("Transfer-Encoding")).To(BeEmpty())
		Expect(resp.Header.Get("Content-Encoding")).To(BeEmpty())
		Expect(resp.Header.Get("Content-Length")).NotTo(Equal("1234"))
		Expect(resp.Header.Get("X-Request-Id")).To(Equal("abc-123"))
	})

	It("joins multi-value response headers with commas", func() {
		resp := capture(http.Header{
			"X-Multi": {"value1", "value2"},
		})

		Expect(resp.Header.Get("X-Multi")).To(Equal("value1, value2"))
	})
})
