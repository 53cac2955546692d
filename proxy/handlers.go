package proxy

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/huxuyf/jiutian/pkg/dialect"
	"github.com/huxuyf/jiutian/pkg/upstream"
	"github.com/huxuyf/jiutian/pkg/utils"
)

// completionsRequest is the native prompt-completion body.
type completionsRequest struct {
	Model       string          `json:"model"`
	Prompt      string          `json:"prompt"`
	Temperature *float64        `json:"temperature,omitempty"`
	TopP        *float64        `json:"top_p,omitempty"`
	History     json.RawMessage `json:"history,omitempty"`
	Stream      *bool           `json:"stream,omitempty"`
}

// chatRequest covers both the native chat body and the chat-compat
// body; the compat variant is recognized by its marker fields.
type chatRequest struct {
	Model       string             `json:"model"`
	Messages    []upstream.Message `json:"messages"`
	Temperature *float64           `json:"temperature,omitempty"`
	TopP        *float64           `json:"top_p,omitempty"`
	Stream      *bool              `json:"stream,omitempty"`

	// Compat-only fields, also the markers for dialect selection.
	Options   *compatOptions  `json:"options,omitempty"`
	KeepAlive json.RawMessage `json:"keep_alive,omitempty"`
	Format    string          `json:"format,omitempty"`
}

// isCompat reports whether the body carries compat markers. The
// compat dialect nests generation parameters under options and may
// send keep_alive or format, none of which the native body has.
func (r *chatRequest) isCompat() bool {
	return r.Options != nil || len(r.KeepAlive) > 0 || r.Format != ""
}

// generateRequest is the generate-compat body.
type generateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	System  string         `json:"system,omitempty"`
	Stream  *bool          `json:"stream,omitempty"`
	Options *compatOptions `json:"options,omitempty"`
}

type compatOptions struct {
	Temperature *float64 `json:"temperature,omitempty"`
	TopP        *float64 `json:"top_p,omitempty"`
}

// handleCompletions serves POST /api/completions: raw pass-through
// streaming, or a one-shot forward when stream is absent or false.
func (p *Proxy) handleCompletions(c *fiber.Ctx) error {
	var req completionsRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return p.errorJSON(c, fiber.StatusBadRequest, "invalid request body", err)
	}
	if req.Model != p.config.Model {
		return p.modelNotFound(c, req.Model)
	}

	streaming := req.Stream != nil && *req.Stream
	body := upstream.CompletionRequest{
		Model:       p.config.UpstreamModel,
		Prompt:      req.Prompt,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		History:     req.History,
		Stream:      streaming,
	}

	p.logger.Debug("completions request",
		zap.String("model", req.Model),
		zap.Bool("stream", streaming),
		zap.String("prompt", utils.Truncate(req.Prompt, 128)),
	)

	if !streaming {
		return p.forward(c, "/completions", body)
	}
	return p.relayStream(c, "/completions", body, newSession(dialect.Raw, p.config.Model, req.Prompt))
}

// handleChat serves POST /api/chat. The native body gets raw
// pass-through; a body carrying compat markers gets the chat-compat
// dialect, which also streams by default.
func (p *Proxy) handleChat(c *fiber.Ctx) error {
	var req chatRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return p.errorJSON(c, fiber.StatusBadRequest, "invalid request body", err)
	}
	if req.Model != p.config.Model {
		return p.modelNotFound(c, req.Model)
	}

	compat := req.isCompat()

	temperature, topP := req.Temperature, req.TopP
	if req.Options != nil {
		temperature, topP = req.Options.Temperature, req.Options.TopP
	}

	// Compat clients stream unless they say otherwise; native callers
	// must opt in.
	streaming := compat
	if req.Stream != nil {
		streaming = *req.Stream
	}

	body := upstream.ChatRequest{
		Model:       p.config.UpstreamModel,
		Messages:    req.Messages,
		Temperature: temperature,
		TopP:        topP,
		Stream:      streaming,
	}

	p.logger.Debug("chat request",
		zap.String("model", req.Model),
		zap.Bool("stream", streaming),
		zap.Bool("compat", compat),
		zap.Int("message_count", len(req.Messages)),
	)

	prompt := messagesText(req.Messages)

	switch {
	case compat && streaming:
		return p.relayStream(c, "/chat/completions", body, newSession(dialect.ChatCompat, p.config.Model, prompt))
	case compat:
		return p.completeCompat(c, "/chat/completions", body, newSession(dialect.ChatCompat, p.config.Model, prompt))
	case streaming:
		return p.relayStream(c, "/chat/completions", body, newSession(dialect.Raw, p.config.Model, prompt))
	default:
		return p.forward(c, "/chat/completions", body)
	}
}

// handleGenerate serves POST /api/generate in the generate-compat
// dialect; system prompts are folded into the completion prompt.
func (p *Proxy) handleGenerate(c *fiber.Ctx) error {
	var req generateRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return p.errorJSON(c, fiber.StatusBadRequest, "invalid request body", err)
	}
	if req.Model != p.config.Model {
		return p.modelNotFound(c, req.Model)
	}

	prompt := req.Prompt
	if req.System != "" {
		prompt = req.System + "\n\n" + prompt
	}

	// Generate-compat streams by default when stream is omitted.
	streaming := req.Stream == nil || *req.Stream

	var temperature, topP *float64
	if req.Options != nil {
		temperature, topP = req.Options.Temperature, req.Options.TopP
	}

	body := upstream.CompletionRequest{
		Model:       p.config.UpstreamModel,
		Prompt:      prompt,
		Temperature: temperature,
		TopP:        topP,
		Stream:      streaming,
	}

	p.logger.Debug("generate request",
		zap.String("model", req.Model),
		zap.Bool("stream", streaming),
		zap.String("prompt", utils.Truncate(prompt, 128)),
	)

	sess := newSession(dialect.GenerateCompat, p.config.Model, req.Prompt)
	if !streaming {
		return p.completeCompat(c, "/completions", body, sess)
	}
	return p.relayStream(c, "/completions", body, sess)
}

// tagModel is one entry of the static model listing.
type tagModel struct {
	Name       string    `json:"name"`
	Model      string    `json:"model"`
	ModifiedAt time.Time `json:"modified_at"`
	Size       int64     `json:"size"`
	Digest     string    `json:"digest"`
}

// handleTags serves GET /api/tags with the static single-model
// listing compat clients probe for.
func (p *Proxy) handleTags(c *fiber.Ctx) error {
	return c.JSON(struct {
		Models []tagModel `json:"models"`
	}{
		Models: []tagModel{{
			Name:       p.config.Model,
			Model:      p.config.Model,
			ModifiedAt: time.Now().UTC(),
		}},
	})
}

// handleVersion serves GET /api/version for compat clients that check
// the server version before talking to it.
func (p *Proxy) handleVersion(c *fiber.Ctx) error {
	return c.JSON(struct {
		Version string `json:"version"`
	}{Version: utils.Version})
}

// handleHealth serves GET /health.
func (p *Proxy) handleHealth(c *fiber.Ctx) error {
	return c.JSON(struct {
		Status    string `json:"status"`
		Timestamp string `json:"timestamp"`
	}{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// messagesText concatenates message contents; used only for the
// prompt-length fallback in synthesized counts.
func messagesText(messages []upstream.Message) string {
	var b strings.Builder
	for _, m := range messages {
		b.WriteString(m.Content)
	}
	return b.String()
}
