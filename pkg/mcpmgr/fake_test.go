package mcpmgr

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/vikashloomba/mcpcs-go/pkg/logging"
)

// fakeConn is an in-process Conn whose capabilities and failures are set by
// the test.
type fakeConn struct {
	id        string
	tools     []*mcp.Tool
	resources []*mcp.Resource
	prompts   []*mcp.Prompt
	// pageSize splits list results into cursor pages when positive.
	pageSize int

	listErr    error
	callErr    error
	toolResult *mcp.CallToolResult
	readResult *mcp.ReadResourceResult

	mu          sync.Mutex
	toolCalls   []*mcp.CallToolParams
	// callDeadlines holds, per tool call, how long the call had left.
	// Zero means the context had no deadline.
	callDeadlines []time.Duration
	reads       []string
	promptCalls []*mcp.GetPromptParams

	closeOnce  sync.Once
	closed     chan struct{}
	closeCount atomic.Int32
}

func newFakeConn() *fakeConn {
	return &fakeConn{closed: make(chan struct{})}
}

func withTools(names ...string) *fakeConn {
	c := newFakeConn()
	for _, n := range names {
		c.tools = append(c.tools, &mcp.Tool{Name: n, Description: "tool " + n})
	}
	return c
}

func (c *fakeConn) ID() string { return c.id }

func page[T any](items []T, cursor string, size int) ([]T, string) {
	if size <= 0 {
		return items, ""
	}
	start := 0
	if cursor != "" {
		start, _ = strconv.Atoi(cursor)
	}
	end := min(start+size, len(items))
	next := ""
	if end < len(items) {
		next = strconv.Itoa(end)
	}
	return items[start:end], next
}

func (c *fakeConn) ListTools(ctx context.Context, p *mcp.ListToolsParams) (*mcp.ListToolsResult, error) {
	if c.listErr != nil {
		return nil, c.listErr
	}
	items, next := page(c.tools, p.Cursor, c.pageSize)
	return &mcp.ListToolsResult{Tools: items, NextCursor: next}, nil
}

func (c *fakeConn) ListResources(ctx context.Context, p *mcp.ListResourcesParams) (*mcp.ListResourcesResult, error) {
	if c.listErr != nil {
		return nil, c.listErr
	}
	items, next := page(c.resources, p.Cursor, c.pageSize)
	return &mcp.ListResourcesResult{Resources: items, NextCursor: next}, nil
}

func (c *fakeConn) ListPrompts(ctx context.Context, p *mcp.ListPromptsParams) (*mcp.ListPromptsResult, error) {
	if c.listErr != nil {
		return nil, c.listErr
	}
	items, next := page(c.prompts, p.Cursor, c.pageSize)
	return &mcp.ListPromptsResult{Prompts: items, NextCursor: next}, nil
}

func (c *fakeConn) CallTool(ctx context.Context, p *mcp.CallToolParams) (*mcp.CallToolResult, error) {
	c.mu.Lock()
	c.toolCalls = append(c.toolCalls, p)
	var left time.Duration
	if deadline, ok := ctx.Deadline(); ok {
		left = time.Until(deadline)
	}
	c.callDeadlines = append(c.callDeadlines, left)
	c.mu.Unlock()
	if c.callErr != nil {
		return nil, c.callErr
	}
	if c.toolResult != nil {
		return c.toolResult, nil
	}
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: "ok"}}}, nil
}

func (c *fakeConn) ReadResource(ctx context.Context, p *mcp.ReadResourceParams) (*mcp.ReadResourceResult, error) {
	c.mu.Lock()
	c.reads = append(c.reads, p.URI)
	c.mu.Unlock()
	if c.callErr != nil {
		return nil, c.callErr
	}
	if c.readResult != nil {
		return c.readResult, nil
	}
	return &mcp.ReadResourceResult{Contents: []*mcp.ResourceContents{{URI: p.URI, Text: "contents of " + p.URI}}}, nil
}

func (c *fakeConn) GetPrompt(ctx context.Context, p *mcp.GetPromptParams) (*mcp.GetPromptResult, error) {
	c.mu.Lock()
	c.promptCalls = append(c.promptCalls, p)
	c.mu.Unlock()
	if c.callErr != nil {
		return nil, c.callErr
	}
	return &mcp.GetPromptResult{
		Description: p.Name,
		Messages:    []*mcp.PromptMessage{{Role: "user", Content: &mcp.TextContent{Text: "rendered " + p.Name}}},
	}, nil
}

func (c *fakeConn) Close() error {
	c.closeCount.Add(1)
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) Wait() error {
	<-c.closed
	return nil
}

func (c *fakeConn) invocations() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.toolCalls) + len(c.reads) + len(c.promptCalls)
}

// fakeEstablisher serves sessions over fakeConns; names listed in failing
// return a connect error instead.
func fakeEstablisher(conns map[string]*fakeConn) Establisher {
	return EstablisherFunc(func(ctx context.Context, name string, cfg ServerConfig) (*Session, error) {
		c, ok := conns[name]
		if !ok || c == nil {
			return nil, &ConnectError{Server: name, Transport: TransportOf(cfg), Err: errors.New("connection refused")}
		}
		return NewSession(name, TransportOf(cfg), c), nil
	})
}

func fakeConfigs(names ...string) map[string]ServerConfig {
	out := make(map[string]ServerConfig, len(names))
	for _, n := range names {
		out[n] = &StdioServerConfig{Command: "fake-" + n}
	}
	return out
}

func discardLogger() *slog.Logger {
	return logging.NewDiscard()
}

// newFakeManager loads one session per conn and closes them when the test
// ends.
func newFakeManager(t *testing.T, conns map[string]*fakeConn, opts *ManagerOptions) *Manager {
	t.Helper()
	if opts == nil {
		opts = &ManagerOptions{}
	}
	opts.Establisher = fakeEstablisher(conns)
	if opts.Logger == nil {
		opts.Logger = discardLogger()
	}
	m := NewManager(opts)
	names := make([]string, 0, len(conns))
	for n := range conns {
		names = append(names, n)
	}
	m.LoadAll(context.Background(), fakeConfigs(names...))
	t.Cleanup(func() { _ = m.Close(context.Background()) })
	return m
}
