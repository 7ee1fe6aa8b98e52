package stream

import (
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleStream = "event: message_start\n" +
	"data: {\"message_id\":\"m1\"}\n\n" +
	"event: content_delta\r\n" +
	"data: {\"delta\":\"Héllo, \"}\r\n\r\n" +
	": keep-alive comment\n" +
	"event: content_delta\n" +
	"data:{\"delta\":\"wörld \\u2603\"}\n\n" +
	"event: usage\n\n\n" +
	"data: {\"tokens\":{\"input\":12,\"output\":7}}\n" +
	"event: content_delta\n" +
	"data: not json at all\n" +
	"data: {\"type\":\"balance_update\",\"new_balance\":850}\n" +
	"event: message_end\n" +
	"data: {\"message_id\":\"m1\",\"content\":\"Héllo, wörld ☃\"}\n\n" +
	"event: done\n" +
	"data: {}\n\n"

func decodeAll(chunks [][]byte) []RawEvent {
	d := NewDecoder(nil)
	var out []RawEvent
	for _, c := range chunks {
		out = append(out, d.Feed(c)...)
	}
	return append(out, d.Flush()...)
}

func eventTypes(events []RawEvent) []string {
	types := make([]string, len(events))
	for i, e := range events {
		types[i] = e.Type
	}
	return types
}

func TestDecoderSingleChunk(t *testing.T) {
	events := decodeAll([][]byte{[]byte(sampleStream)})

	assert.Equal(t, []string{
		"message_start",
		"content_delta",
		"content_delta",
		"usage",
		"balance_update",
		"message_end",
		"done",
	}, eventTypes(events))
	assert.JSONEq(t, `{"delta":"Héllo, "}`, string(events[1].Data))
	assert.JSONEq(t, `{"tokens":{"input":12,"output":7}}`, string(events[3].Data))
}

func TestDecoderChunkSplitInvariance(t *testing.T) {
	input := []byte(sampleStream)
	want := decodeAll([][]byte{input})

	t.Run("every single split point", func(t *testing.T) {
		for i := 0; i <= len(input); i++ {
			got := decodeAll([][]byte{input[:i], input[i:]})
			require.Equal(t, want, got, "split at %d", i)
		}
	})

	t.Run("every pair of split points", func(t *testing.T) {
		for i := 0; i <= len(input); i += 3 {
			for j := i; j <= len(input); j += 5 {
				got := decodeAll([][]byte{input[:i], input[i:j], input[j:]})
				require.Equal(t, want, got, "split at %d and %d", i, j)
			}
		}
	})

	t.Run("byte at a time", func(t *testing.T) {
		chunks := make([][]byte, len(input))
		for i := range input {
			chunks[i] = input[i : i+1]
		}
		assert.Equal(t, want, decodeAll(chunks))
	})

	t.Run("seeded random chunking", func(t *testing.T) {
		rng := rand.New(rand.NewPCG(1, 2))
		for round := 0; round < 200; round++ {
			var chunks [][]byte
			for rest := input; len(rest) > 0; {
				n := 1 + rng.IntN(40)
				if n > len(rest) {
					n = len(rest)
				}
				chunks = append(chunks, rest[:n])
				rest = rest[n:]
			}
			require.Equal(t, want, decodeAll(chunks), "round %d", round)
		}
	})
}

func TestDecoderPendingType(t *testing.T) {
	t.Run("survives blank lines and comments", func(t *testing.T) {
		events := decodeAll([][]byte{[]byte("event: usage\n\n: ping\n\ndata: {}\n")})
		require.Len(t, events, 1)
		assert.Equal(t, "usage", events[0].Type)
	})

	t.Run("resets after a data line", func(t *testing.T) {
		events := decodeAll([][]byte{[]byte("event: usage\ndata: {}\ndata: {\"x\":1}\n")})
		require.Len(t, events, 2)
		assert.Equal(t, "usage", events[0].Type)
		assert.Equal(t, "", events[1].Type)
	})

	t.Run("resets after a malformed data line", func(t *testing.T) {
		events := decodeAll([][]byte{[]byte("event: usage\ndata: {oops\ndata: {\"x\":1}\n")})
		require.Len(t, events, 1)
		assert.Equal(t, "", events[0].Type)
	})

	t.Run("later event line replaces earlier one", func(t *testing.T) {
		events := decodeAll([][]byte{[]byte("event: usage\nevent: done\ndata: {}\n")})
		require.Len(t, events, 1)
		assert.Equal(t, "done", events[0].Type)
	})

	t.Run("type taken from payload when no event line", func(t *testing.T) {
		events := decodeAll([][]byte{[]byte("data: {\"type\":\"content_delta\",\"delta\":\"x\"}\n")})
		require.Len(t, events, 1)
		assert.Equal(t, "content_delta", events[0].Type)
	})

	t.Run("exposes pending type between chunks", func(t *testing.T) {
		d := NewDecoder(nil)
		assert.Empty(t, d.Feed([]byte("event: done\n")))
		assert.Equal(t, "done", d.Pending())
	})
}

func TestDecoderLeniency(t *testing.T) {
	input := strings.Join([]string{
		"data: [DONE]",
		"data:",
		"retry: 3000",
		"id: 7",
		"event: content_delta",
		"data: {\"delta\":\"ok\"}",
	}, "\n")

	events := decodeAll([][]byte{[]byte(input)})

	require.Len(t, events, 1, "non-JSON lines are dropped, final unterminated line is flushed")
	assert.Equal(t, "content_delta", events[0].Type)
}

func TestDecoderHoldsBackPartialLine(t *testing.T) {
	d := NewDecoder(nil)

	assert.Empty(t, d.Feed([]byte("event: content_delta\ndata: {\"delta\":")))
	events := d.Feed([]byte("\"abc\"}\n"))

	require.Len(t, events, 1)
	assert.JSONEq(t, `{"delta":"abc"}`, string(events[0].Data))
	assert.Empty(t, d.Flush())
}

func TestDecoderDataIsCopied(t *testing.T) {
	d := NewDecoder(nil)
	chunk := []byte("event: content_delta\ndata: {\"delta\":\"a\"}\n")
	events := d.Feed(chunk)
	require.Len(t, events, 1)

	for i := range chunk {
		chunk[i] = 'x'
	}
	assert.JSONEq(t, `{"delta":"a"}`, string(events[0].Data))
}
