package mcpmgr

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Conn is the part of *mcp.ClientSession a Session drives. Tests substitute
// their own implementations.
type Conn interface {
	ID() string
	ListTools(ctx context.Context, params *mcp.ListToolsParams) (*mcp.ListToolsResult, error)
	ListResources(ctx context.Context, params *mcp.ListResourcesParams) (*mcp.ListResourcesResult, error)
	ListPrompts(ctx context.Context, params *mcp.ListPromptsParams) (*mcp.ListPromptsResult, error)
	CallTool(ctx context.Context, params *mcp.CallToolParams) (*mcp.CallToolResult, error)
	ReadResource(ctx context.Context, params *mcp.ReadResourceParams) (*mcp.ReadResourceResult, error)
	GetPrompt(ctx context.Context, params *mcp.GetPromptParams) (*mcp.GetPromptResult, error)
	Close() error
	Wait() error
}

var _ Conn = (*mcp.ClientSession)(nil)

// maxPages bounds cursor pagination against servers that never stop
// returning a cursor.
const maxPages = 1000

// Session is an established channel to one named server. It owns the channel
// until Close is called.
type Session struct {
	name          string
	transport     ConfigTransport
	conn          Conn
	establishedAt time.Time
	timeout       time.Duration

	done      chan struct{}
	waitErr   error
	closing   atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// NewSession wraps an established connection. The returned session watches
// the connection and closes Done when it ends.
func NewSession(name string, transport ConfigTransport, conn Conn) *Session {
	s := &Session{
		name:          name,
		transport:     transport,
		conn:          conn,
		establishedAt: time.Now(),
		done:          make(chan struct{}),
	}
	go func() {
		s.waitErr = conn.Wait()
		close(s.done)
	}()
	return s
}

func (s *Session) Name() string               { return s.name }
func (s *Session) Transport() ConfigTransport { return s.transport }
func (s *Session) EstablishedAt() time.Time   { return s.establishedAt }

// ID returns the protocol session id, empty for stateless channels.
func (s *Session) ID() string { return s.conn.ID() }

// Done is closed once the underlying channel has ended.
func (s *Session) Done() <-chan struct{} { return s.done }

// Err reports why the channel ended. It is only meaningful after Done.
func (s *Session) Err() error {
	select {
	case <-s.done:
		return s.waitErr
	default:
		return nil
	}
}

// Close releases the channel: the process is terminated or the stream and
// HTTP session are ended. Safe to call more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closing.Store(true)
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}

func (s *Session) closedLocally() bool { return s.closing.Load() }

// Tools lists every tool the server exposes, following pagination. A server
// without tool support yields an empty list.
func (s *Session) Tools(ctx context.Context) ([]*mcp.Tool, error) {
	var out []*mcp.Tool
	cursor := ""
	for range maxPages {
		res, err := s.conn.ListTools(ctx, &mcp.ListToolsParams{Cursor: cursor})
		if err != nil {
			if isMethodUnavailableError(err) {
				return nil, nil
			}
			return nil, errors.Wrapf(err, "list tools on %q", s.name)
		}
		out = append(out, res.Tools...)
		if res.NextCursor == "" || res.NextCursor == cursor {
			break
		}
		cursor = res.NextCursor
	}
	return out, nil
}

// Resources lists every resource the server exposes, following pagination.
func (s *Session) Resources(ctx context.Context) ([]*mcp.Resource, error) {
	var out []*mcp.Resource
	cursor := ""
	for range maxPages {
		res, err := s.conn.ListResources(ctx, &mcp.ListResourcesParams{Cursor: cursor})
		if err != nil {
			if isMethodUnavailableError(err) {
				return nil, nil
			}
			return nil, errors.Wrapf(err, "list resources on %q", s.name)
		}
		out = append(out, res.Resources...)
		if res.NextCursor == "" || res.NextCursor == cursor {
			break
		}
		cursor = res.NextCursor
	}
	return out, nil
}

// Prompts lists every prompt the server exposes, following pagination.
func (s *Session) Prompts(ctx context.Context) ([]*mcp.Prompt, error) {
	var out []*mcp.Prompt
	cursor := ""
	for range maxPages {
		res, err := s.conn.ListPrompts(ctx, &mcp.ListPromptsParams{Cursor: cursor})
		if err != nil {
			if isMethodUnavailableError(err) {
				return nil, nil
			}
			return nil, errors.Wrapf(err, "list prompts on %q", s.name)
		}
		out = append(out, res.Prompts...)
		if res.NextCursor == "" || res.NextCursor == cursor {
			break
		}
		cursor = res.NextCursor
	}
	return out, nil
}

// CallTool forwards args to the server unchanged.
func (s *Session) CallTool(ctx context.Context, name string, args any) (*mcp.CallToolResult, error) {
	return s.conn.CallTool(ctx, &mcp.CallToolParams{Name: name, Arguments: args})
}

func (s *Session) ReadResource(ctx context.Context, uri string) (*mcp.ReadResourceResult, error) {
	return s.conn.ReadResource(ctx, &mcp.ReadResourceParams{URI: uri})
}

func (s *Session) GetPrompt(ctx context.Context, name string, args map[string]string) (*mcp.GetPromptResult, error) {
	return s.conn.GetPrompt(ctx, &mcp.GetPromptParams{Name: name, Arguments: args})
}

func isMethodUnavailableError(err error) bool {
	if err == nil {
		return false
	}
	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "method not found") ||
		strings.Contains(lower, "-32601") ||
		strings.Contains(lower, "not implemented") ||
		strings.Contains(lower, "unimplemented")
}
