package mcpgateway

import (
	"log/slog"
	"time"

	"github.com/modelcontextprotocol/go-sdk/auth"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/cors"
)

const (
	DefaultAddr        = "127.0.0.1:8765"
	DefaultPath        = "/mcp"
	DefaultSyncTimeout = 30 * time.Second
)

// Options configure a Gateway. The zero value serves an unauthenticated
// endpoint on DefaultAddr + DefaultPath.
type Options struct {
	// Implementation is what the gateway reports to downstream clients in
	// the initialize handshake.
	Implementation *mcp.Implementation

	// Listener.
	Addr string
	Path string
	CORS *cors.Options

	// Streamable is passed to mcp.NewStreamableHTTPHandler unchanged.
	Streamable mcp.StreamableHTTPOptions

	// TokenVerifier turns on bearer auth for the MCP endpoint. TokenOptions
	// is only valid together with a verifier.
	TokenVerifier auth.TokenVerifier
	TokenOptions  *auth.RequireBearerTokenOptions

	// Namespace names the per-server copies of conflicting names.
	// Defaults to QualifiedNamespace{}.
	Namespace NamespaceStrategy

	Logger *slog.Logger

	// SyncTimeout bounds one pass over every server's listings.
	SyncTimeout time.Duration
	// CallTimeout bounds each forwarded call. Zero uses the manager's
	// CallTimeout, and no deadline when that is zero too.
	CallTimeout time.Duration
}

func (o *Options) withDefaults() Options {
	var opts Options
	if o != nil {
		opts = *o
	}
	impl := mcp.Implementation{Name: "mcpcs-gateway", Title: "mcpcs gateway", Version: "0.1.0"}
	if opts.Implementation != nil {
		impl = *opts.Implementation
	}
	opts.Implementation = &impl
	opts.Addr = orDefault(opts.Addr, DefaultAddr)
	opts.Path = orDefault(opts.Path, DefaultPath)
	if opts.Namespace == nil {
		opts.Namespace = QualifiedNamespace{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.SyncTimeout <= 0 {
		opts.SyncTimeout = DefaultSyncTimeout
	}
	return opts
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
