package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/huxuyf/jiutian/pkg/dialect"
	"github.com/huxuyf/jiutian/pkg/sse"
	"github.com/huxuyf/jiutian/pkg/token"
	"github.com/huxuyf/jiutian/pkg/upstream"
	"github.com/huxuyf/jiutian/pkg/utils"
)

type sessionState int

const (
	stateOpen sessionState = iota
	stateStreaming
	stateFinishing
	stateClosed
	stateFailed
)

func (s sessionState) String() string {
	switch s {
	case stateOpen:
		return "open"
	case stateStreaming:
		return "streaming"
	case stateFinishing:
		return "finishing"
	case stateClosed:
		return "closed"
	case stateFailed:
		return "failed"
	}
	return "unknown"
}

// session is the relay's per-request translation state. It is owned
// exclusively by the goroutine driving that request's stream and is
// never shared across requests.
type session struct {
	id           string
	dialect      dialect.Dialect
	model        string
	promptRunes  int
	startedAt    time.Time
	state        sessionState
	accumulated  strings.Builder
	finishReason string
	usage        *upstream.Usage
}

func newSession(d dialect.Dialect, model, prompt string) *session {
	return &session{
		id:          uuid.NewString(),
		dialect:     d,
		model:       model,
		promptRunes: utf8.RuneCountInString(prompt),
		startedAt:   time.Now(),
		state:       stateOpen,
	}
}

// snapshot builds the read-only view encoders work from. The prompt
// eval count prefers the upstream's own accounting when it was
// observed, falling back to the caller's prompt length.
func (s *session) snapshot() dialect.Snapshot {
	promptEval := s.promptRunes
	if s.usage != nil && s.usage.PromptTokens > 0 {
		promptEval = s.usage.PromptTokens
	}
	return dialect.Snapshot{
		Model:           s.model,
		CreatedAt:       time.Now(),
		PromptEvalCount: promptEval,
		EvalCount:       utf8.RuneCountInString(s.accumulated.String()),
		FinishReason:    s.finishReason,
	}
}

// observe folds decoded events into the accumulation state.
func (s *session) observe(events []upstream.Event) {
	for _, ev := range events {
		switch ev.Kind {
		case upstream.EventTextDelta:
			s.accumulated.WriteString(ev.Text)
		case upstream.EventFinish:
			s.finishReason = ev.FinishReason
		case upstream.EventUsage:
			s.usage = ev.Usage
		}
	}
}

// openUpstream mints a fresh credential and issues the upstream call.
// It does not inspect the response status; callers decide how a
// non-2xx surfaces on their path.
func (p *Proxy) openUpstream(ctx context.Context, c *fiber.Ctx, path string, body any) (*http.Response, error) {
	cred, err := token.Mint(p.config.APIKey, p.config.TokenTTL)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encoding upstream request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.UpstreamURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamConnect, err)
	}
	p.headerHandler.SetUpstreamRequestHeaders(c, req, cred.Token)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamConnect, err)
	}
	return resp, nil
}

// openFailureMessage picks the client-facing message for a failure to
// establish the upstream call.
func openFailureMessage(err error) string {
	if errors.Is(err, token.ErrInvalidCredentialMaterial) || errors.Is(err, token.ErrSigningFailure) {
		return "credential error"
	}
	return "upstream request failed"
}

// relayStream drives a streaming session: open the upstream call,
// then pump decoded events through the session's dialect into the
// downstream connection.
func (p *Proxy) relayStream(c *fiber.Ctx, path string, reqBody any, sess *session) error {
	// fasthttp recycles its RequestCtx once the handler returns, but
	// the pump goroutine keeps streaming, so the upstream call gets
	// its own cancellable context instead of c.Context().
	ctx, cancel := context.WithCancel(context.Background())

	resp, err := p.openUpstream(ctx, c, path, reqBody)
	if err != nil {
		cancel()
		sess.state = stateFailed
		p.logger.Error("opening upstream stream",
			zap.Error(err),
			zap.String("session", sess.id),
			zap.String("dialect", sess.dialect.String()),
		)
		return p.errorJSON(c, fiber.StatusInternalServerError, openFailureMessage(err), err)
	}
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		cancel()
		sess.state = stateFailed
		p.logger.Error("upstream rejected stream",
			zap.Int("status", resp.StatusCode),
			zap.String("body", utils.Truncate(string(respBody), 512)),
			zap.String("session", sess.id),
		)
		return p.errorJSON(c, fiber.StatusInternalServerError, "upstream request failed", errors.New(string(respBody)))
	}

	sess.state = stateStreaming
	setStreamHeaders(c)

	p.logger.Debug("streaming session open",
		zap.String("session", sess.id),
		zap.String("dialect", sess.dialect.String()),
		zap.String("model", sess.model),
	)

	// io.Pipe gives direct backpressure: pw.Write blocks until
	// fasthttp's chunked writer has flushed the previous chunk to the
	// socket, so the relay never reads upstream faster than the
	// client drains.
	pr, pw := io.Pipe()
	go p.pump(resp, pw, cancel, sess)

	// Unknown size (-1) triggers chunked transfer encoding.
	c.Context().Response.SetBodyStream(pr, -1)

	return nil
}

func (p *Proxy) pump(resp *http.Response, pw *io.PipeWriter, cancel context.CancelFunc, sess *session) {
	defer resp.Body.Close()
	defer pw.Close()
	// Cancelling after the pump exits releases the upstream
	// connection immediately when the client went away mid-stream.
	defer cancel()

	if sess.dialect == dialect.Raw {
		p.pumpRaw(resp, pw, sess)
		return
	}
	p.pumpCompat(resp, pw, sess)
}

// pumpRaw forwards upstream bytes verbatim through the tee while
// observing parsed events for accumulation and lifecycle. The
// upstream's own final frame is the session's terminal frame.
func (p *Proxy) pumpRaw(resp *http.Response, pw *io.PipeWriter, sess *session) {
	tr := sse.NewTeeReader(resp.Body, pw)

	for {
		ev, err := tr.Next()
		if err != nil {
			if errors.Is(err, sse.ErrDownstreamWrite) {
				// Client went away; nothing left to tell it.
				sess.state = stateClosed
				p.logger.Debug("client disconnected mid-stream", zap.String("session", sess.id))
				return
			}
			p.logger.Error("reading upstream stream", zap.Error(err), zap.String("session", sess.id))
			p.writeErrorFrame(pw, "upstream stream error")
			sess.state = stateFailed
			return
		}
		if ev == nil {
			break
		}
		if ev.Data == upstream.DoneSentinel {
			continue
		}

		events, derr := upstream.Decode([]byte(ev.Data))
		if derr != nil {
			p.logger.Warn("dropping malformed upstream frame",
				zap.Error(derr),
				zap.String("session", sess.id),
			)
			continue
		}
		sess.observe(events)
	}

	if sess.finishReason == "" {
		// Upstream closed before the finish marker.
		p.writeErrorFrame(pw, "upstream stream truncated")
		sess.state = stateFailed
		return
	}

	sess.state = stateClosed
	p.logStreamDone(sess)
}

// pumpCompat re-encodes each upstream delta into the session's compat
// dialect and synthesizes exactly one terminal frame once the finish
// marker has been observed.
func (p *Proxy) pumpCompat(resp *http.Response, pw *io.PipeWriter, sess *session) {
	enc, ok := dialect.For(sess.dialect)
	if !ok {
		p.writeErrorFrame(pw, "unsupported dialect")
		sess.state = stateFailed
		return
	}

	rd := sse.NewReader(resp.Body)

	for sess.finishReason == "" {
		ev, err := rd.Next()
		if err != nil {
			p.logger.Error("reading upstream stream", zap.Error(err), zap.String("session", sess.id))
			p.writeErrorFrame(pw, "upstream stream error")
			sess.state = stateFailed
			return
		}
		if ev == nil {
			break
		}
		if ev.Data == upstream.DoneSentinel {
			continue
		}

		events, derr := upstream.Decode([]byte(ev.Data))
		if derr != nil {
			p.logger.Warn("dropping malformed upstream frame",
				zap.Error(derr),
				zap.String("session", sess.id),
			)
			continue
		}

		// A final frame can carry delta, finish and usage together;
		// process it whole before checking for the finish marker.
		for _, ue := range events {
			switch ue.Kind {
			case upstream.EventTextDelta:
				sess.accumulated.WriteString(ue.Text)
				frame, ferr := enc.Delta(ue.Text, sess.snapshot())
				if ferr != nil {
					p.logger.Error("encoding delta frame", zap.Error(ferr), zap.String("session", sess.id))
					continue
				}
				if _, werr := pw.Write(frame); werr != nil {
					sess.state = stateClosed
					p.logger.Debug("client disconnected mid-stream", zap.String("session", sess.id))
					return
				}
			case upstream.EventFinish:
				sess.finishReason = ue.FinishReason
			case upstream.EventUsage:
				sess.usage = ue.Usage
			}
		}
	}

	if sess.finishReason == "" {
		p.writeErrorFrame(pw, "upstream stream truncated")
		sess.state = stateFailed
		return
	}

	sess.state = stateFinishing
	frame, err := enc.Terminal(sess.snapshot())
	if err != nil {
		p.logger.Error("encoding terminal frame", zap.Error(err), zap.String("session", sess.id))
		sess.state = stateFailed
		return
	}
	if _, werr := pw.Write(frame); werr != nil {
		sess.state = stateClosed
		return
	}

	sess.state = stateClosed
	p.logStreamDone(sess)
}

// writeErrorFrame emits one event-stream frame carrying an error
// field. Used after headers are committed, when a structured error
// body is no longer possible. Best effort: the client may be gone.
func (p *Proxy) writeErrorFrame(pw *io.PipeWriter, msg string) {
	payload, err := json.Marshal(errorBody{Error: msg})
	if err != nil {
		return
	}
	frame := append([]byte("data: "), payload...)
	frame = append(frame, '\n', '\n')
	_, _ = pw.Write(frame)
}

func (p *Proxy) logStreamDone(sess *session) {
	p.logger.Debug("streaming complete",
		zap.String("session", sess.id),
		zap.String("dialect", sess.dialect.String()),
		zap.String("finish_reason", sess.finishReason),
		zap.Int("eval_count", utf8.RuneCountInString(sess.accumulated.String())),
		zap.Duration("duration", time.Since(sess.startedAt)),
	)
}

// forward is the non-streaming path: a single synchronous forward,
// await, pass-through with no translation state.
func (p *Proxy) forward(c *fiber.Ctx, path string, reqBody any) error {
	resp, err := p.openUpstream(c.Context(), c, path, reqBody)
	if err != nil {
		p.logger.Error("upstream request failed", zap.Error(err))
		return p.errorJSON(c, fiber.StatusInternalServerError, openFailureMessage(err), err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		p.logger.Error("reading upstream response", zap.Error(err))
		return p.errorJSON(c, fiber.StatusInternalServerError, "upstream request failed", err)
	}
	if resp.StatusCode != http.StatusOK {
		p.logger.Error("upstream returned error",
			zap.Int("status", resp.StatusCode),
			zap.String("body", utils.Truncate(string(respBody), 512)),
		)
		return p.errorJSON(c, fiber.StatusInternalServerError, "upstream request failed", errors.New(string(respBody)))
	}

	p.headerHandler.SetClientResponseHeaders(c, resp)
	return c.Status(resp.StatusCode).Send(respBody)
}

// completeCompat is the non-streaming compat path: one synchronous
// upstream call re-serialized as a single compat JSON object.
func (p *Proxy) completeCompat(c *fiber.Ctx, path string, reqBody any, sess *session) error {
	enc, ok := dialect.For(sess.dialect)
	if !ok {
		return p.errorJSON(c, fiber.StatusInternalServerError, "unsupported dialect", nil)
	}

	resp, err := p.openUpstream(c.Context(), c, path, reqBody)
	if err != nil {
		sess.state = stateFailed
		p.logger.Error("upstream request failed", zap.Error(err), zap.String("session", sess.id))
		return p.errorJSON(c, fiber.StatusInternalServerError, openFailureMessage(err), err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		sess.state = stateFailed
		return p.errorJSON(c, fiber.StatusInternalServerError, "upstream request failed", err)
	}
	if resp.StatusCode != http.StatusOK {
		sess.state = stateFailed
		p.logger.Error("upstream returned error",
			zap.Int("status", resp.StatusCode),
			zap.String("body", utils.Truncate(string(respBody), 512)),
			zap.String("session", sess.id),
		)
		return p.errorJSON(c, fiber.StatusInternalServerError, "upstream request failed", errors.New(string(respBody)))
	}

	var ur upstream.Response
	if err := json.Unmarshal(respBody, &ur); err != nil {
		sess.state = stateFailed
		return p.errorJSON(c, fiber.StatusInternalServerError, "invalid upstream response", err)
	}

	text := ur.Text()
	sess.accumulated.WriteString(text)
	sess.usage = ur.Usage
	sess.finishReason = ur.FinishReason()

	obj, err := enc.Complete(text, sess.snapshot())
	if err != nil {
		sess.state = stateFailed
		return p.errorJSON(c, fiber.StatusInternalServerError, "encoding response", err)
	}

	sess.state = stateClosed
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Send(obj)
}
