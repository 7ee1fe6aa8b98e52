// Package stream decodes the remote service's event stream: newline
// delimited "event:"/"data:" line pairs whose data is JSON.
package stream

import (
	"bytes"
	"encoding/json"
	"log/slog"
)

const (
	eventMarker = "event:"
	dataMarker  = "data:"
)

// RawEvent is one decoded (event type, JSON payload) pair.
// Type is empty when neither an event line nor the payload named one.
type RawEvent struct {
	Type string
	Data json.RawMessage
}

// Decoder turns an arbitrarily chunked byte stream into RawEvents.
// The last line of each chunk is held back until its terminator arrives, so
// the output does not depend on how the input was split.
//
// A Decoder is not safe for concurrent use.
type Decoder struct {
	buf     []byte
	pending string
	logger  *slog.Logger
}

// NewDecoder creates a decoder. A nil logger uses slog.Default().
func NewDecoder(logger *slog.Logger) *Decoder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Decoder{logger: logger}
}

// Feed appends chunk to the buffer and returns the events completed by it.
func (d *Decoder) Feed(chunk []byte) []RawEvent {
	d.buf = append(d.buf, chunk...)

	var out []RawEvent
	for {
		i := bytes.IndexByte(d.buf, '\n')
		if i < 0 {
			break
		}
		line := d.buf[:i]
		if ev, ok := d.line(line); ok {
			out = append(out, ev)
		}
		d.buf = d.buf[i+1:]
	}

	return out
}

// Flush processes a trailing line that never received its terminator.
// Call it once the transport signals completion.
func (d *Decoder) Flush() []RawEvent {
	if len(d.buf) == 0 {
		return nil
	}
	line := d.buf
	d.buf = nil
	if ev, ok := d.line(line); ok {
		return []RawEvent{ev}
	}
	return nil
}

// Pending returns the event type waiting for its data line, if any.
func (d *Decoder) Pending() string {
	return d.pending
}

func (d *Decoder) line(line []byte) (RawEvent, bool) {
	line = bytes.TrimSuffix(line, []byte{'\r'})

	switch {
	case bytes.HasPrefix(line, []byte(eventMarker)):
		d.pending = string(bytes.TrimSpace(line[len(eventMarker):]))
		return RawEvent{}, false

	case bytes.HasPrefix(line, []byte(dataMarker)):
		payload := bytes.TrimSpace(line[len(dataMarker):])
		eventType := d.pending
		d.pending = ""

		if !json.Valid(payload) {
			d.logger.Debug("Dropping non-JSON data line",
				"event_type", eventType, "length", len(payload))
			return RawEvent{}, false
		}
		if eventType == "" {
			eventType = payloadType(payload)
		}
		data := make(json.RawMessage, len(payload))
		copy(data, payload)
		return RawEvent{Type: eventType, Data: data}, true
	}

	// Blank lines, ":" comments and fields such as id:/retry: carry nothing
	// for this protocol. The pending type survives them.
	return RawEvent{}, false
}

// payloadType reads a "type" discriminator from an object payload.
func payloadType(payload []byte) string {
	if len(payload) == 0 || payload[0] != '{' {
		return ""
	}
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return ""
	}
	return envelope.Type
}
