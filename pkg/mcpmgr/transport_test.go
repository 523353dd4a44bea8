package mcpmgr

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestBuildStdioTransport(t *testing.T) {
	t.Parallel()

	cfg := &StdioServerConfig{
		BaseServerConfig: BaseServerConfig{Timeout: 5 * time.Second},
		Command:          "npx",
		Args:             []string{"@modelcontextprotocol/server-everything"},
		Env:              map[string]string{"MCP_SERVER_MODE": "stdio"},
		Cwd:              "/tmp",
	}

	transport, err := buildStdioTransport(cfg)
	if err != nil {
		t.Fatalf("buildStdioTransport error: %v", err)
	}
	cmdTransport, ok := transport.(*mcp.CommandTransport)
	if !ok {
		t.Fatalf("expected CommandTransport, got %T", transport)
	}
	expectedArgs := append([]string{cfg.Command}, cfg.Args...)
	if !reflect.DeepEqual(cmdTransport.Command.Args, expectedArgs) {
		t.Fatalf("command args = %v, expected %v", cmdTransport.Command.Args, expectedArgs)
	}
	if !envContains(cmdTransport.Command.Env, "MCP_SERVER_MODE", "stdio") {
		t.Fatalf("env missing MCP_SERVER_MODE from stdio config")
	}
	if cmdTransport.Command.Dir != "/tmp" {
		t.Fatalf("working dir = %q", cmdTransport.Command.Dir)
	}

	if _, err := buildStdioTransport(&StdioServerConfig{}); err == nil {
		t.Fatalf("expected error for empty command")
	}
}

func envContains(env []string, key, value string) bool {
	want := key + "=" + value
	for _, kv := range env {
		if kv == want {
			return true
		}
	}
	return false
}

func TestBuildHeadersSkipsInvalidEntries(t *testing.T) {
	t.Parallel()

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	headers := buildHeaders("remote", "secret", map[string]string{
		"X-Team":     "core",
		"Bad Header": "x",
		"X-Newline":  "a\nb",
	}, logger)

	assert.Equal(t, "Bearer secret", headers.Get("Authorization"))
	assert.Equal(t, "core", headers.Get("X-Team"))
	assert.Empty(t, headers.Values("Bad Header"))
	assert.Empty(t, headers.Get("X-Newline"))
	assert.Equal(t, 2, strings.Count(logs.String(), "skipping invalid header"))
}

func TestBuildHeadersEmpty(t *testing.T) {
	t.Parallel()
	assert.Nil(t, buildHeaders("remote", "", nil, discardLogger()))
	assert.Nil(t, buildHeaders("remote", "", map[string]string{"bad name": "x"}, discardLogger()))
}

func TestDecorateHTTPClientLeavesBaseUntouched(t *testing.T) {
	t.Parallel()

	base := &http.Client{Timeout: time.Second}
	assert.Same(t, base, decorateHTTPClient(base, nil))
	assert.Same(t, http.DefaultClient, decorateHTTPClient(nil, nil))
}

func TestDecorateHTTPClientInjectsHeaders(t *testing.T) {
	t.Parallel()

	var seen http.Header
	base := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		seen = r.Header.Clone()
		return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(strings.NewReader("")), Request: r}, nil
	})}
	client := decorateHTTPClient(base, http.Header{"Authorization": {"Bearer t"}, "X-Team": {"core"}})
	require.NotSame(t, base, client)

	req, err := http.NewRequest(http.MethodPost, "http://example.invalid/mcp", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer stale")
	resp, err := client.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()

	assert.Equal(t, []string{"Bearer t"}, seen.Values("Authorization"))
	assert.Equal(t, "core", seen.Get("X-Team"))
	assert.Equal(t, "Bearer stale", req.Header.Get("Authorization"), "caller's request must not be mutated")
}

// headerRecorder captures request headers seen by the wrapped handler.
type headerRecorder struct {
	mu      sync.Mutex
	headers []http.Header
	methods []string
	next    http.Handler
}

func (h *headerRecorder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	h.headers = append(h.headers, r.Header.Clone())
	h.methods = append(h.methods, r.Method)
	h.mu.Unlock()
	h.next.ServeHTTP(w, r)
}

func (h *headerRecorder) all() []http.Header {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]http.Header(nil), h.headers...)
}

func (h *headerRecorder) seenMethods() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.methods...)
}

func newStreamableServer(t *testing.T, opts *mcp.StreamableHTTPOptions) (*httptest.Server, *headerRecorder) {
	t.Helper()
	server := newEchoServer("remote")
	rec := &headerRecorder{next: mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return server }, opts)}
	ts := httptest.NewServer(rec)
	t.Cleanup(ts.Close)
	return ts, rec
}

func TestEstablishStreamableHTTPWithHeaders(t *testing.T) {
	t.Parallel()
	ts, rec := newStreamableServer(t, nil)

	stateful := false
	est := &TransportEstablisher{Logger: discardLogger(), DefaultTimeout: 10 * time.Second}
	s, err := est.Establish(context.Background(), "remote", &HTTPServerConfig{
		URL:       ts.URL,
		AuthToken: "tok",
		Headers:   map[string]string{"X-Team": "core", "Bad Header": "dropped"},
		Stateless: &stateful,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	assert.Equal(t, TransportHTTP, s.Transport())
	assert.NotEmpty(t, s.ID())

	tools, err := s.Tools(context.Background())
	require.NoError(t, err)
	require.Len(t, tools, 1)

	seen := rec.all()
	require.NotEmpty(t, seen)
	for _, h := range seen {
		assert.Equal(t, "Bearer tok", h.Get("Authorization"))
		assert.Equal(t, "core", h.Get("X-Team"))
	}
}

func TestEstablishSSEWithHeaders(t *testing.T) {
	t.Parallel()
	server := newEchoServer("events")
	rec := &headerRecorder{next: mcp.NewSSEHandler(func(*http.Request) *mcp.Server { return server }, nil)}
	ts := httptest.NewServer(rec)
	t.Cleanup(ts.Close)

	est := &TransportEstablisher{Logger: discardLogger(), DefaultTimeout: 300 * time.Millisecond}
	s, err := est.Establish(context.Background(), "events", &SSEServerConfig{
		URL:       ts.URL,
		AuthToken: "tok",
		Headers:   map[string]string{"X-Team": "core", "Bad Header": "dropped"},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	assert.Equal(t, TransportSSE, s.Transport())

	// The event stream must stay open once the handshake deadline has passed.
	time.Sleep(800 * time.Millisecond)
	select {
	case <-s.Done():
		t.Fatalf("session ended after the handshake deadline: %v", s.Err())
	default:
	}

	tools, err := s.Tools(context.Background())
	require.NoError(t, err)
	require.Len(t, tools, 1)
	assert.Equal(t, "echo", tools[0].Name)

	methods := rec.seenMethods()
	assert.Contains(t, methods, http.MethodGet)
	assert.Contains(t, methods, http.MethodPost)
	for i, h := range rec.all() {
		assert.Equal(t, "Bearer tok", h.Get("Authorization"), "request %d", i)
		assert.Equal(t, "core", h.Get("X-Team"), "request %d", i)
		assert.Empty(t, h.Values("Bad Header"), "request %d", i)
	}
}

func TestEstablishRequiresSessionIDWhenNotStateless(t *testing.T) {
	t.Parallel()
	ts, _ := newStreamableServer(t, &mcp.StreamableHTTPOptions{Stateless: true})

	est := &TransportEstablisher{Logger: discardLogger(), DefaultTimeout: 10 * time.Second}

	stateful := false
	_, err := est.Establish(context.Background(), "remote", &HTTPServerConfig{URL: ts.URL, Stateless: &stateful})
	var connErr *ConnectError
	require.True(t, errors.As(err, &connErr), "got %v", err)
	assert.Equal(t, TransportHTTP, connErr.Transport)
	assert.Contains(t, err.Error(), "session id")

	s, err := est.Establish(context.Background(), "remote", &HTTPServerConfig{URL: ts.URL})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	assert.Empty(t, s.ID())
}

func TestEstablishSSEFailureIsConnectError(t *testing.T) {
	t.Parallel()
	ts := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(ts.Close)

	est := &TransportEstablisher{Logger: discardLogger(), DefaultTimeout: 5 * time.Second}
	_, err := est.Establish(context.Background(), "events", &SSEServerConfig{URL: ts.URL})
	var connErr *ConnectError
	require.True(t, errors.As(err, &connErr), "got %v", err)
	assert.Equal(t, "events", connErr.Server)
	assert.Equal(t, TransportSSE, connErr.Transport)
}

func TestEstablishStdioMissingBinary(t *testing.T) {
	t.Parallel()
	est := &TransportEstablisher{Logger: discardLogger(), DefaultTimeout: 5 * time.Second}
	_, err := est.Establish(context.Background(), "local", &StdioServerConfig{Command: "/nonexistent/mcp-server-binary"})
	var connErr *ConnectError
	require.True(t, errors.As(err, &connErr), "got %v", err)
	assert.Equal(t, TransportStdio, connErr.Transport)
}

func TestEstablishRejectsUnknownConfig(t *testing.T) {
	t.Parallel()
	est := &TransportEstablisher{Logger: discardLogger()}
	_, err := est.Establish(context.Background(), "x", nil)
	require.Error(t, err)
}

func TestLoggingTransportTracesMessages(t *testing.T) {
	t.Parallel()

	var (
		mu   sync.Mutex
		logs bytes.Buffer
	)
	logger := slog.New(slog.NewTextHandler(&lockedWriter{mu: &mu, w: &logs}, &slog.HandlerOptions{Level: slog.LevelDebug}))

	ctx := context.Background()
	clientTransport, serverTransport := mcp.NewInMemoryTransports()
	ss, err := newEchoServer("traced").Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ss.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "c", Version: "v0"}, nil)
	cs, err := client.Connect(ctx, &loggingTransport{server: "traced", delegate: clientTransport, logger: logger}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cs.Close() })

	_, err = cs.ListTools(ctx, &mcp.ListToolsParams{})
	require.NoError(t, err)

	mu.Lock()
	out := logs.String()
	mu.Unlock()
	assert.Contains(t, out, "direction=send")
	assert.Contains(t, out, "direction=recv")
	assert.Contains(t, out, "tools/list")
	assert.Contains(t, out, "server=traced")
}
