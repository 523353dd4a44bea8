package mcpmgr

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"sort"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"golang.org/x/net/http/httpguts"
)

// Establisher turns one server config into a live session.
type Establisher interface {
	Establish(ctx context.Context, name string, cfg ServerConfig) (*Session, error)
}

// EstablisherFunc adapts a function to the Establisher interface.
type EstablisherFunc func(ctx context.Context, name string, cfg ServerConfig) (*Session, error)

func (f EstablisherFunc) Establish(ctx context.Context, name string, cfg ServerConfig) (*Session, error) {
	return f(ctx, name, cfg)
}

// TransportEstablisher connects to servers with the go-sdk transports. One
// path exists per transport kind; all of them finish with the same MCP
// initialize handshake.
type TransportEstablisher struct {
	ClientName     string
	ClientVersion  string
	DefaultTimeout time.Duration
	// LogJSONRPC traces every message in both directions at debug level.
	LogJSONRPC bool
	Logger     *slog.Logger
}

// Establish spawns or dials the server described by cfg and completes the
// handshake. Failures are returned as *ConnectError.
func (e *TransportEstablisher) Establish(ctx context.Context, name string, cfg ServerConfig) (*Session, error) {
	kind := TransportOf(cfg)
	fail := func(err error) (*Session, error) {
		return nil, &ConnectError{Server: name, Transport: kind, Err: err}
	}
	if cfg == nil || kind == "" {
		return fail(errors.New("unsupported server config"))
	}
	base := cfg.base()

	var transport mcp.Transport
	switch c := cfg.(type) {
	case *StdioServerConfig:
		t, err := buildStdioTransport(c)
		if err != nil {
			return fail(err)
		}
		transport = t
	case *SSEServerConfig:
		transport = &streamTransport{delegate: &mcp.SSEClientTransport{
			Endpoint:   c.URL,
			HTTPClient: decorateHTTPClient(c.HTTPClient, buildHeaders(name, c.AuthToken, c.Headers, e.logger())),
		}}
	case *HTTPServerConfig:
		transport = &mcp.StreamableClientTransport{
			Endpoint:   c.URL,
			HTTPClient: decorateHTTPClient(c.HTTPClient, buildHeaders(name, c.AuthToken, c.Headers, e.logger())),
			MaxRetries: c.MaxRetries,
		}
	}
	if e.LogJSONRPC {
		transport = &loggingTransport{server: name, delegate: transport, logger: e.logger()}
	}

	connectCtx, cancel := withTimeout(ctx, e.timeout(base))
	defer cancel()

	client := mcp.NewClient(&mcp.Implementation{
		Name:    e.clientName(),
		Version: e.clientVersion(base),
	}, nil)
	cs, err := client.Connect(connectCtx, transport, nil)
	if err != nil {
		return fail(errors.Wrap(err, "handshake"))
	}

	if c, ok := cfg.(*HTTPServerConfig); ok && !c.StatelessAllowed() && cs.ID() == "" {
		_ = cs.Close()
		return fail(errors.New("server issued no session id and stateless mode is disabled"))
	}
	return NewSession(name, kind, cs), nil
}

func (e *TransportEstablisher) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

func (e *TransportEstablisher) timeout(base *BaseServerConfig) time.Duration {
	if base != nil && base.Timeout > 0 {
		return base.Timeout
	}
	if e.DefaultTimeout > 0 {
		return e.DefaultTimeout
	}
	return DefaultTimeout
}

func (e *TransportEstablisher) clientName() string {
	if e.ClientName != "" {
		return e.ClientName
	}
	return DefaultClientName
}

func (e *TransportEstablisher) clientVersion(base *BaseServerConfig) string {
	if base != nil && base.Version != "" {
		return base.Version
	}
	if e.ClientVersion != "" {
		return e.ClientVersion
	}
	return DefaultClientVersion
}

func buildStdioTransport(cfg *StdioServerConfig) (mcp.Transport, error) {
	if cfg.Command == "" {
		return nil, errors.New("command missing")
	}
	cmd := exec.Command(cfg.Command, cfg.Args...)
	if len(cfg.Env) > 0 {
		env := os.Environ()
		keys := make([]string, 0, len(cfg.Env))
		for k := range cfg.Env {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			env = append(env, fmt.Sprintf("%s=%s", k, cfg.Env[k]))
		}
		cmd.Env = env
	}
	if cfg.Cwd != "" {
		cmd.Dir = cfg.Cwd
	}
	return &mcp.CommandTransport{Command: cmd}, nil
}

// buildHeaders assembles the headers injected into every request. Invalid
// custom headers are logged and dropped.
func buildHeaders(server, token string, custom map[string]string, logger *slog.Logger) http.Header {
	if token == "" && len(custom) == 0 {
		return nil
	}
	headers := http.Header{}
	if token != "" {
		headers.Set("Authorization", "Bearer "+token)
	}
	names := make([]string, 0, len(custom))
	for k := range custom {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		v := custom[k]
		if !httpguts.ValidHeaderFieldName(k) {
			logger.Warn("skipping invalid header name", "server", server, "header", k)
			continue
		}
		if !httpguts.ValidHeaderFieldValue(v) {
			logger.Warn("skipping invalid header value", "server", server, "header", k)
			continue
		}
		headers.Set(k, v)
	}
	if len(headers) == 0 {
		return nil
	}
	return headers
}

// decorateHTTPClient returns base unchanged when there is nothing to inject.
func decorateHTTPClient(base *http.Client, headers http.Header) *http.Client {
	if base == nil {
		base = http.DefaultClient
	}
	if len(headers) == 0 {
		return base
	}
	clone := *base
	clone.Transport = &headerDecorator{
		next:    defaultRoundTripper(base.Transport),
		headers: headers,
	}
	return &clone
}

type headerDecorator struct {
	next    http.RoundTripper
	headers http.Header
}

func (d *headerDecorator) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	for k, values := range d.headers {
		req.Header.Del(k)
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}
	return d.next.RoundTrip(req)
}

func defaultRoundTripper(next http.RoundTripper) http.RoundTripper {
	if next != nil {
		return next
	}
	return http.DefaultTransport
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

// streamTransport opens a long-lived event stream on a context that the
// handshake deadline cannot cancel. ctx still bounds how long Connect waits.
type streamTransport struct {
	delegate mcp.Transport
}

func (t *streamTransport) Connect(ctx context.Context) (mcp.Connection, error) {
	type result struct {
		conn mcp.Connection
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		conn, err := t.delegate.Connect(context.WithoutCancel(ctx))
		ch <- result{conn, err}
	}()
	select {
	case r := <-ch:
		return r.conn, r.err
	case <-ctx.Done():
		go func() {
			if r := <-ch; r.conn != nil {
				_ = r.conn.Close()
			}
		}()
		return nil, ctx.Err()
	}
}

type loggingTransport struct {
	server   string
	delegate mcp.Transport
	logger   *slog.Logger
}

func (t *loggingTransport) Connect(ctx context.Context) (mcp.Connection, error) {
	conn, err := t.delegate.Connect(ctx)
	if err != nil {
		return nil, err
	}
	return &loggingConnection{server: t.server, delegate: conn, logger: t.logger}, nil
}

type loggingConnection struct {
	server   string
	delegate mcp.Connection
	logger   *slog.Logger
	mu       sync.Mutex
}

func (c *loggingConnection) SessionID() string { return c.delegate.SessionID() }

func (c *loggingConnection) Read(ctx context.Context) (jsonrpc.Message, error) {
	msg, err := c.delegate.Read(ctx)
	if err == nil {
		c.emit("recv", msg)
	}
	return msg, err
}

func (c *loggingConnection) Write(ctx context.Context, msg jsonrpc.Message) error {
	if err := c.delegate.Write(ctx, msg); err != nil {
		return err
	}
	c.emit("send", msg)
	return nil
}

func (c *loggingConnection) Close() error { return c.delegate.Close() }

func (c *loggingConnection) emit(direction string, msg jsonrpc.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	encoded, err := json.Marshal(msg)
	if err != nil {
		encoded = []byte(err.Error())
	}
	c.logger.Debug("jsonrpc", "server", c.server, "direction", direction, "message", string(encoded))
}
