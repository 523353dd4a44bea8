package mcpgateway

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/modelcontextprotocol/go-sdk/auth"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/cors"
	"github.com/sourcegraph/conc/panics"

	"github.com/vikashloomba/mcpcs-go/pkg/mcpmgr"
)

// Gateway exposes a Streamable MCP server that fronts every session held by
// an mcpmgr.Manager under a single HTTP endpoint.
type Gateway struct {
	manager *mcpmgr.Manager
	opts    Options

	features *featureIndex

	server      *mcp.Server
	mux         *http.ServeMux
	httpHandler http.Handler

	syncMu       sync.Mutex
	httpServerMu sync.Mutex
	httpServer   *http.Server
}

// NewGateway builds a Gateway, synchronizes the initial feature snapshot, and
// resynchronizes after every registry reload.
func NewGateway(mgr *mcpmgr.Manager, opts *Options) (*Gateway, error) {
	if mgr == nil {
		return nil, errors.New("mcpgateway: manager is required")
	}
	options := opts.withDefaults()
	if options.TokenOptions != nil && options.TokenVerifier == nil {
		return nil, errors.WithHint(
			errors.New("mcpgateway: token options require a token verifier"),
			"set Options.TokenVerifier or drop Options.TokenOptions")
	}
	if options.CallTimeout <= 0 {
		options.CallTimeout = mgr.Options().CallTimeout
	}
	g := &Gateway{
		manager:  mgr,
		opts:     options,
		features: newFeatureIndex(options.Namespace, options.Logger),
	}

	g.server = mcp.NewServer(options.Implementation, &mcp.ServerOptions{
		HasTools:     true,
		HasPrompts:   true,
		HasResources: true,
	})
	g.httpHandler = g.mountHandler()

	mgr.OnReload(func(servers []string) {
		go func() {
			if err := g.Sync(context.Background()); err != nil {
				g.logError("resync after reload", err, "servers", servers)
			}
		}()
	})
	if err := g.Sync(context.Background()); err != nil {
		return nil, err
	}
	return g, nil
}

// Options returns the effective options after defaults were applied.
func (g *Gateway) Options() Options { return g.opts }

// Handler exposes the HTTP handler that serves the Streamable endpoint.
func (g *Gateway) Handler() http.Handler {
	return g.httpHandler
}

// ServeMux returns the mux the MCP endpoint is mounted on so callers can add
// routes of their own.
func (g *Gateway) ServeMux() *http.ServeMux {
	return g.mux
}

// ListenAndServe runs an HTTP server until the provided context is cancelled or
// the server stops.
func (g *Gateway) ListenAndServe(ctx context.Context) error {
	g.httpServerMu.Lock()
	if g.httpServer != nil {
		serv := g.httpServer
		g.httpServerMu.Unlock()
		return errors.Newf("mcpgateway: server already running on %s", serv.Addr)
	}
	srv := &http.Server{Addr: g.opts.Addr, Handler: g.Handler(), ReadHeaderTimeout: 10 * time.Second}
	g.httpServer = srv
	g.httpServerMu.Unlock()
	defer func() {
		g.httpServerMu.Lock()
		if g.httpServer == srv {
			g.httpServer = nil
		}
		g.httpServerMu.Unlock()
	}()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), g.opts.SyncTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Shutdown stops the embedded HTTP server if it is running.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.httpServerMu.Lock()
	srv := g.httpServer
	g.httpServer = nil
	g.httpServerMu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// Sync lists every capability kind across the manager's sessions and replaces
// the exposed set. Servers that fail discovery are logged and contribute
// nothing until the next sync.
func (g *Gateway) Sync(ctx context.Context) error {
	g.syncMu.Lock()
	defer g.syncMu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, g.opts.SyncTimeout)
	defer cancel()

	tools := g.manager.ListTools(ctx)
	prompts := g.manager.ListPrompts(ctx)
	resources := g.manager.ListResources(ctx)
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, "mcpgateway: sync")
	}
	for _, warnings := range [][]mcpmgr.DiscoveryWarning{tools.Warnings, prompts.Warnings, resources.Warnings} {
		for _, w := range warnings {
			g.opts.Logger.Warn("sync skipped server", "server", w.Server, "error", w.Err)
		}
	}

	removedTools, addedTools := g.features.UpdateTools(tools)
	if len(removedTools) > 0 {
		g.server.RemoveTools(removedTools...)
	}
	for _, reg := range addedTools {
		g.register("tool", reg.Target, func() { g.server.AddTool(reg.Record, g.toolHandler(reg.Target.Exposed)) })
	}

	removedPrompts, addedPrompts := g.features.UpdatePrompts(prompts)
	if len(removedPrompts) > 0 {
		g.server.RemovePrompts(removedPrompts...)
	}
	for _, reg := range addedPrompts {
		g.register("prompt", reg.Target, func() { g.server.AddPrompt(reg.Record, g.promptHandler(reg.Target.Exposed)) })
	}

	removedResources, addedResources := g.features.UpdateResources(resources)
	if len(removedResources) > 0 {
		g.server.RemoveResources(removedResources...)
	}
	for _, reg := range addedResources {
		g.register("resource", reg.Target, func() { g.server.AddResource(reg.Record, g.resourceHandler(reg.Target.Exposed)) })
	}

	g.opts.Logger.Debug("gateway synced",
		"tools", len(addedTools), "prompts", len(addedPrompts), "resources", len(addedResources))
	return nil
}

// register adds one feature to the MCP server. The SDK panics on records it
// cannot serve, such as tools without an object input schema; those are
// logged and skipped.
func (g *Gateway) register(kind string, t target, add func()) {
	if r := panics.Try(add); r != nil {
		g.logError("skipping upstream "+kind, r.AsError(), "name", t.Exposed, "server", t.ServerID)
	}
}

func (g *Gateway) toolHandler(exposed string) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args any = map[string]any{}
		if req != nil && req.Params != nil {
			if raw := req.Params.Arguments; len(raw) > 0 && string(raw) != "null" {
				args = raw
			}
		}
		var res *mcp.CallToolResult
		err := g.forward(ctx, "tool", exposed, g.features.ToolTarget, func(ctx context.Context, s *mcpmgr.Session, t target) (err error) {
			res, err = s.CallTool(ctx, t.Native, args)
			return err
		})
		return res, err
	}
}

func (g *Gateway) promptHandler(exposed string) mcp.PromptHandler {
	return func(ctx context.Context, req *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
		var args map[string]string
		if req != nil && req.Params != nil {
			args = req.Params.Arguments
		}
		var res *mcp.GetPromptResult
		err := g.forward(ctx, "prompt", exposed, g.features.PromptTarget, func(ctx context.Context, s *mcpmgr.Session, t target) (err error) {
			res, err = s.GetPrompt(ctx, t.Native, args)
			return err
		})
		return res, err
	}
}

func (g *Gateway) resourceHandler(exposed string) mcp.ResourceHandler {
	return func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		var (
			res    *mcp.ReadResourceResult
			native string
		)
		err := g.forward(ctx, "resource", exposed, g.features.ResourceTarget, func(ctx context.Context, s *mcpmgr.Session, t target) (err error) {
			native = t.Native
			res, err = s.ReadResource(ctx, t.Native)
			return err
		})
		if err != nil {
			return nil, err
		}
		if exposed != native {
			for _, c := range res.Contents {
				if c != nil && c.URI == native {
					c.URI = exposed
				}
			}
		}
		return res, nil
	}
}

// forward looks up the current owner of an exposed name and runs call against
// that server's session, bounded by the call timeout.
func (g *Gateway) forward(
	ctx context.Context,
	kind, exposed string,
	lookup func(string) (target, bool),
	call func(context.Context, *mcpmgr.Session, target) error,
) error {
	t, ok := lookup(exposed)
	if !ok {
		return errors.Wrapf(mcpmgr.ErrNotFound, "mcpgateway: %s %q is no longer exposed", kind, exposed)
	}
	s, ok := g.manager.Session(t.ServerID)
	if !ok {
		return errors.Wrapf(mcpmgr.ErrServerNotFound, "mcpgateway: %s %q", kind, exposed)
	}
	if g.opts.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.opts.CallTimeout)
		defer cancel()
	}
	if err := call(ctx, s, t); err != nil {
		g.logError("forward "+kind, err, "name", t.Native, "server", t.ServerID)
		return &mcpmgr.InvocationError{Server: t.ServerID, Kind: kind, Name: t.Native, Err: err}
	}
	return nil
}

func (g *Gateway) mountHandler() http.Handler {
	path := g.opts.Path
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	var endpoint http.Handler = mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return g.server
	}, &g.opts.Streamable)
	if g.opts.TokenVerifier != nil {
		endpoint = auth.RequireBearerToken(g.opts.TokenVerifier, g.opts.TokenOptions)(endpoint)
	}

	g.mux = http.NewServeMux()
	g.mux.Handle(path, endpoint)
	if !strings.HasSuffix(path, "/") {
		g.mux.Handle(path+"/", endpoint)
	}
	if g.opts.CORS != nil {
		return cors.New(*g.opts.CORS).Handler(g.mux)
	}
	return g.mux
}

func (g *Gateway) logError(msg string, err error, args ...any) {
	if err == nil {
		return
	}
	attrs := append([]any{"error", err}, args...)
	g.opts.Logger.Error(msg, attrs...)
}
