// Package header provides header filtering for the jiutian proxy.
//
// The proxy sits between a client and the upstream JiuTian API like so:
//
//	Client <--> Proxy <--> JiuTian API
//
// and headers are handled accordingly as each leg negotiates
// compression, hops, encoding and authentication independently.
package header

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// Handler manages headers between proxy connections.
type Handler struct{}

// NewHandler creates a new header Handler.
func NewHandler() *Handler {
	return &Handler{}
}

// skipRequest is the set of request headers (client --> proxy --> upstream)
// that are not forwarded to the upstream API.
var skipRequest = map[string]struct{}{
	// Hop-by-hop headers: only meaningful for a single transport-level connection.
	"Connection": {},

	// The Host header is rewritten by Go's http.Transport to match the
	// upstream URL.
	"Host": {},

	// Accept-Encoding is stripped so that Go's http.Transport adds its
	// own "Accept-Encoding: gzip" and transparently decompresses the
	// upstream response.
	"Accept-Encoding": {},

	// The client's own Authorization never reaches the upstream; the
	// proxy authenticates with its minted credential instead.
	"Authorization": {},

	// Content-Length belongs to the client's body, not the remapped
	// body the proxy sends upstream.
	"Content-Length": {},
}

// skipResponse is the set of upstream response headers (client <-- proxy <-- upstream)
// that are not copied back to the downstream client.
var skipResponse = map[string]struct{}{
	// Hop-by-hop headers: only meaningful for a single transport-level connection.
	"Connection": {},

	// fasthttp manages chunked transfer encoding for the client-facing
	// response independently.
	"Transfer-Encoding": {},

	// The proxy always reads a decompressed body (Go's http.Transport
	// strips Content-Encoding after auto-decompression). Fiber's
	// compress middleware sets the correct value when it re-compresses
	// down to the client.
	"Content-Encoding": {},

	// The upstream Content-Length reflects the possibly compressed
	// upstream body; letting fiber compute the final value avoids
	// sending a stale one.
	"Content-Length": {},
}

// SetUpstreamRequestHeaders copies request headers from the fiber
// context to the outgoing http.Request, filtering what the proxy must
// not forward, and sets the minted bearer credential and JSON content
// type the upstream expects.
func (h *Handler) SetUpstreamRequestHeaders(c *fiber.Ctx, req *http.Request, bearer string) {
	c.Request().Header.VisitAll(func(key, value []byte) {
		k := string(key)
		if _, skip := skipRequest[k]; !skip {
			req.Header.Set(k, string(value))
		}
	})
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+bearer)
}

// SetClientResponseHeaders copies response headers from the upstream
// http.Response to the fiber context, filtering what the proxy should
// not forward back down to the client.
func (h *Handler) SetClientResponseHeaders(c *fiber.Ctx, resp *http.Response) {
	for k, v := range resp.Header {
		if _, skip := skipResponse[k]; !skip {
			c.Set(k, strings.Join(v, ", "))
		}
	}
}
