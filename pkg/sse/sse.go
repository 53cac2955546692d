// Package sse parses text event-stream framing ("data: " prefixed
// lines, events separated by a blank line) from an upstream byte
// stream. The reader buffers partial frames split across network reads
// and only yields an event once its blank-line boundary has been seen.
//
// A reader can optionally tee every raw byte verbatim to a destination
// writer while parsing; the raw pass-through dialect of the proxy uses
// this to forward the upstream stream untouched while still observing
// the parsed events for accumulation.
//
// See the SSE specification:
// https://html.spec.whatwg.org/multipage/server-sent-events.html
package sse

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrDownstreamWrite wraps failures writing teed bytes to the
// destination. The relay uses it to tell a vanished client apart from
// a broken upstream read.
var ErrDownstreamWrite = errors.New("downstream write failed")

// Event is a single parsed SSE event, delimited by a blank line in the
// upstream byte stream.
type Event struct {
	// Type is the SSE event type from the "event:" field. Empty means
	// the default "message" type per the SSE spec.
	Type string

	// Data is the concatenated contents of all "data:" lines for this
	// event, joined with "\n" per the SSE spec.
	Data string

	// ID is the last event ID from the "id:" field, if present.
	ID string
}

// Reader reads SSE events from a source stream. Constructed with
// NewTeeReader it additionally writes all raw bytes verbatim to a
// destination writer before each event is yielded.
type Reader struct {
	scanner *bufio.Scanner
	dest    io.Writer

	// current accumulates fields for the event being built.
	current *Event
	hasData bool
}

// NewReader returns a parse-only reader over src.
func NewReader(src io.Reader) *Reader {
	return NewTeeReader(src, io.Discard)
}

// NewTeeReader returns a reader that parses SSE events from src and
// writes all raw bytes through to dest. The dest writer typically
// backs an io.Pipe connected to the downstream HTTP response, so a
// blocked write here is backpressure from a slow client.
func NewTeeReader(src io.Reader, dest io.Writer) *Reader {
	scanner := bufio.NewScanner(src)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	return &Reader{
		scanner: scanner,
		dest:    dest,
		current: &Event{},
	}
}

// Next returns the next parsed SSE event. It blocks until a complete
// event is available (terminated by a blank line) and returns nil, nil
// once the source is exhausted. Write failures to the tee destination
// are reported wrapped in ErrDownstreamWrite; all other errors come
// from the source.
func (r *Reader) Next() (*Event, error) {
	for r.scanner.Scan() {
		raw := r.scanner.Text()

		// bufio.Scanner strips the newline, reinsert it for the tee.
		if _, err := io.WriteString(r.dest, raw+"\n"); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDownstreamWrite, err)
		}

		// A blank line closes the current event.
		if raw == "" {
			if r.hasData {
				ev := r.current
				r.reset()
				return ev, nil
			}
			// Blank line with nothing accumulated: leading blank lines
			// or keep-alive newlines.
			continue
		}

		// Lines starting with ':' are comments.
		if strings.HasPrefix(raw, ":") {
			continue
		}

		r.parseLine(raw)
	}

	if err := r.scanner.Err(); err != nil {
		return nil, err
	}

	// Source exhausted without a trailing blank line: yield the
	// in-progress event if any.
	if r.hasData {
		ev := r.current
		r.reset()
		return ev, nil
	}

	return nil, nil
}

// parseLine accumulates one non-empty, non-comment "field:value" line
// into the current event. The single optional space after the colon is
// stripped per spec.
func (r *Reader) parseLine(line string) {
	var field, value string

	if before, after, ok := strings.Cut(line, ":"); ok {
		field = before
		value = strings.TrimPrefix(after, " ")
	} else {
		// No colon: the entire line is the field name.
		field = line
	}

	switch field {
	case "data":
		if r.hasData && r.current.Data != "" {
			r.current.Data += "\n"
		}
		r.current.Data += value
		r.hasData = true
	case "event":
		r.current.Type = value
		r.hasData = true
	case "id":
		r.current.ID = value
		r.hasData = true
	default:
		// "retry" and unknown fields are ignored per the SSE spec.
	}
}

func (r *Reader) reset() {
	r.current = &Event{}
	r.hasData = false
}
