package mcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/storeassist/pkg/config"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected RecoveryAction
	}{
		{"nil error", nil, NoRetry},
		{"context canceled", context.Canceled, NoRetry},
		{"wrapped deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), NoRetry},
		{"eof", io.EOF, RetryNewSession},
		{"unexpected eof", io.ErrUnexpectedEOF, RetryNewSession},
		{"connection refused", errors.New("dial tcp: Connection Refused"), RetryNewSession},
		{"net op error", &net.OpError{Op: "read", Err: errors.New("reset")}, RetryNewSession},
		{"net timeout", timeoutErr{}, NoRetry},
		{"rate limited", errors.New("429 Too Many Requests"), RetrySameSession},
		{"protocol error", errors.New("invalid params: missing id"), NoRetry},
		{"unknown", errors.New("weird"), NoRetry},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ClassifyError(tt.err))
		})
	}
	assert.Equal(t, "retry_new_session", RetryNewSession.String())
}

func TestSplitToolName(t *testing.T) {
	server, tool, err := SplitToolName("store-data.get_product")
	require.NoError(t, err)
	assert.Equal(t, "store-data", server)
	assert.Equal(t, "get_product", tool)

	for _, bad := range []string{"get_product", ".tool", "server.", "a.b.c", "-x.y"} {
		_, _, err := SplitToolName(bad)
		assert.Error(t, err, bad)
	}

	assert.Equal(t, "a.b", NormalizeToolName("a__b"))
	assert.Equal(t, "a.b__c", NormalizeToolName("a.b__c"))
	assert.True(t, IsQualified("a__b"))
	assert.False(t, IsQualified("get_product"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 100))
	assert.Equal(t, "short", Truncate("short", 0))

	content := strings.Repeat("0123456789\n", 20)
	out := Truncate(content, 50)
	assert.True(t, strings.HasPrefix(out, "0123456789\n0123456789\n0123456789\n0123456789\n"))
	assert.Contains(t, out, "[TRUNCATED: original size 220B, limit 50B]")

	// never splits a multi-byte rune
	out = Truncate(strings.Repeat("é", 10), 5)
	assert.True(t, strings.HasPrefix(out, "éé\n"))
}

func TestCreateTransport(t *testing.T) {
	t.Run("stdio", func(t *testing.T) {
		transport, err := createTransport(config.TransportConfig{
			Type: config.TransportTypeStdio, Command: "store-mcp", Args: []string{"--readonly"},
			Env: map[string]string{"STORE_URL": "https://shop.example"},
		})
		require.NoError(t, err)
		cmd := transport.(*mcpsdk.CommandTransport).Command
		assert.Contains(t, cmd.Args, "--readonly")
		assert.Contains(t, cmd.Env, "STORE_URL=https://shop.example")
	})

	t.Run("http with token", func(t *testing.T) {
		transport, err := createTransport(config.TransportConfig{
			Type: config.TransportTypeHTTP, URL: "https://mcp.example/v1", BearerToken: "secret", Timeout: 5,
		})
		require.NoError(t, err)
		ht := transport.(*mcpsdk.StreamableClientTransport)
		assert.Equal(t, "https://mcp.example/v1", ht.Endpoint)
		require.NotNil(t, ht.HTTPClient)
		assert.IsType(t, &bearerTokenTransport{}, ht.HTTPClient.Transport)
	})

	t.Run("sse default client", func(t *testing.T) {
		transport, err := createTransport(config.TransportConfig{Type: config.TransportTypeSSE, URL: "https://mcp.example/sse"})
		require.NoError(t, err)
		assert.Nil(t, transport.(*mcpsdk.SSEClientTransport).HTTPClient)
	})

	t.Run("errors", func(t *testing.T) {
		for _, cfg := range []config.TransportConfig{
			{Type: config.TransportTypeStdio},
			{Type: config.TransportTypeHTTP},
			{Type: config.TransportTypeSSE},
			{Type: "grpc"},
		} {
			_, err := createTransport(cfg)
			assert.Error(t, err, string(cfg.Type))
		}
	})
}

func TestBearerTokenTransport(t *testing.T) {
	var got string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
	}))
	defer server.Close()

	client := buildHTTPClient(config.TransportConfig{BearerToken: "tok"})
	resp, err := client.Get(server.URL)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, "Bearer tok", got)
}
