// Package dialect serializes relay events into the wire formats the
// proxy speaks to its own callers. Encoding is a pure transformation of
// an event plus a read-only session snapshot; encoders retain no state.
//
// The raw dialect has no encoder here: upstream bytes are forwarded
// verbatim by the relay's tee reader.
package dialect

import "time"

// Dialect selects the downstream wire format for a session.
type Dialect int

const (
	// Raw forwards the upstream provider's own protocol unchanged.
	Raw Dialect = iota
	// GenerateCompat speaks the generate-style compatibility format.
	GenerateCompat
	// ChatCompat speaks the chat-style compatibility format.
	ChatCompat
)

func (d Dialect) String() string {
	switch d {
	case Raw:
		return "raw"
	case GenerateCompat:
		return "generate_compat"
	case ChatCompat:
		return "chat_compat"
	}
	return "unknown"
}

// Snapshot is the read-only view of a translation session an encoder
// needs to build a frame.
type Snapshot struct {
	Model           string
	CreatedAt       time.Time
	PromptEvalCount int
	EvalCount       int
	FinishReason    string
}

// The upstream protocol exposes no timing breakdown, so compat
// terminal frames carry fixed synthesized values. These are explicitly
// placeholders, not measurements.
const (
	synthTotalDuration      = int64(1_000_000_000)
	synthLoadDuration       = int64(1_000_000)
	synthPromptEvalDuration = int64(100_000_000)
	synthEvalDuration       = int64(900_000_000)
)

// synthContext is the placeholder context sequence for the generate
// dialect; the upstream exposes no continuation context.
var synthContext = []int{1, 2, 3}

// Encoder serializes deltas and the terminal summary for one compat
// dialect. Delta and Terminal return fully framed event-stream bytes
// ("data: " prefix, blank-line separator); Complete returns the bare
// JSON object used on the non-streaming path.
type Encoder interface {
	Delta(text string, snap Snapshot) ([]byte, error)
	Terminal(snap Snapshot) ([]byte, error)
	Complete(text string, snap Snapshot) ([]byte, error)
}

// For returns the encoder for a compat dialect. ok is false for Raw,
// which needs no encoding.
func For(d Dialect) (Encoder, bool) {
	switch d {
	case GenerateCompat:
		return generateEncoder{}, true
	case ChatCompat:
		return chatEncoder{}, true
	}
	return nil, false
}

// frame wraps one serialized JSON object in event-stream framing so
// downstream clients can reuse their upstream-style parser.
func frame(payload []byte) []byte {
	framed := make([]byte, 0, len(payload)+8)
	framed = append(framed, "data: "...)
	framed = append(framed, payload...)
	framed = append(framed, '\n', '\n')
	return framed
}

func timestamp(t time.Time) string {
	return t.Format(time.RFC3339Nano)
}
