package proxy

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
)

var (
	// ErrUnsupportedModel indicates the caller requested a model this
	// proxy does not front.
	ErrUnsupportedModel = errors.New("unsupported model")

	// ErrUpstreamConnect indicates the upstream was unreachable or
	// rejected the call before a stream was established.
	ErrUpstreamConnect = errors.New("upstream request failed")
)

// errorBody is the structured error response used before any stream
// bytes have been written. Detail is only populated when the proxy is
// configured to expose internal error information.
type errorBody struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

// errorJSON writes a structured error body. Once streaming has begun
// response headers are committed and this must not be used; the relay
// emits an error frame instead.
func (p *Proxy) errorJSON(c *fiber.Ctx, status int, msg string, err error) error {
	body := errorBody{Error: msg}
	if p.config.ExposeErrors && err != nil {
		body.Detail = err.Error()
	}
	return c.Status(status).JSON(body)
}

// modelNotFound writes the not-found error naming both the requested
// and the supported model identifiers.
func (p *Proxy) modelNotFound(c *fiber.Ctx, requested string) error {
	msg := fmt.Sprintf("model '%s' not found, use '%s'", requested, p.config.Model)
	return c.Status(fiber.StatusNotFound).JSON(errorBody{Error: msg})
}
