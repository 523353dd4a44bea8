package mcpgateway

import (
	"log/slog"
	"maps"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/vikashloomba/mcpcs-go/pkg/mcpmgr"
)

const (
	metaKeyServerID   = "mcpgateway.server_id"
	metaKeyNativeName = "mcpgateway.native_name"
	metaKeyNativeURI  = "mcpgateway.native_uri"
)

// target routes one exposed identifier to the server that owns it.
type target struct {
	Exposed  string
	ServerID string
	Native   string
}

type registration[T any] struct {
	Record T
	Target target
}

// featureIndex maps exposed names and URIs to their upstream owners. Each
// update replaces one kind's table wholesale from a fresh listing.
type featureIndex struct {
	ns     NamespaceStrategy
	logger *slog.Logger

	mu        sync.RWMutex
	tools     map[string]target
	prompts   map[string]target
	resources map[string]target
}

func newFeatureIndex(ns NamespaceStrategy, logger *slog.Logger) *featureIndex {
	if logger == nil {
		logger = slog.Default()
	}
	return &featureIndex{
		ns:        ns,
		logger:    logger,
		tools:     make(map[string]target),
		prompts:   make(map[string]target),
		resources: make(map[string]target),
	}
}

func (f *featureIndex) UpdateTools(l *mcpmgr.Listing[*mcp.Tool]) (removed []string, added []registration[*mcp.Tool]) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var next map[string]target
	next, added = rebuild(f.logger, l,
		func(t *mcp.Tool) string { return t.Name },
		f.ns.ToolName,
		cloneTool)
	removed = stale(f.tools, next)
	f.tools = next
	return removed, added
}

func (f *featureIndex) UpdatePrompts(l *mcpmgr.Listing[*mcp.Prompt]) (removed []string, added []registration[*mcp.Prompt]) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var next map[string]target
	next, added = rebuild(f.logger, l,
		func(p *mcp.Prompt) string { return p.Name },
		f.ns.PromptName,
		clonePrompt)
	removed = stale(f.prompts, next)
	f.prompts = next
	return removed, added
}

func (f *featureIndex) UpdateResources(l *mcpmgr.Listing[*mcp.Resource]) (removed []string, added []registration[*mcp.Resource]) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var next map[string]target
	next, added = rebuild(f.logger, l,
		func(r *mcp.Resource) string { return r.URI },
		f.ns.ResourceURI,
		cloneResource)
	removed = stale(f.resources, next)
	f.resources = next
	return removed, added
}

func (f *featureIndex) ToolTarget(name string) (target, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	t, ok := f.tools[name]
	return t, ok
}

func (f *featureIndex) PromptTarget(name string) (target, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	p, ok := f.prompts[name]
	return p, ok
}

func (f *featureIndex) ResourceTarget(uri string) (target, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	r, ok := f.resources[uri]
	return r, ok
}

// rebuild computes the exposed table for one listing. Keys unique across
// servers keep their native identifier; conflicting keys are namespaced per
// server. Servers whose discovery failed contribute nothing.
func rebuild[T any](
	logger *slog.Logger,
	l *mcpmgr.Listing[T],
	key func(T) string,
	namespaced func(serverID, native string) string,
	clone func(T, string, string) T,
) (map[string]target, []registration[T]) {
	next := make(map[string]target)
	var added []registration[T]
	for _, g := range l.Groups {
		if g.Err != nil {
			continue
		}
		for _, item := range g.Items {
			native := key(item)
			exposed := native
			if l.Conflicting(native) {
				exposed = namespaced(g.Server, native)
			}
			if prev, ok := next[exposed]; ok {
				logger.Warn("exposed name already taken",
					"kind", l.Kind, "name", exposed, "server", g.Server, "owner", prev.ServerID)
				continue
			}
			t := target{Exposed: exposed, ServerID: g.Server, Native: native}
			next[exposed] = t
			added = append(added, registration[T]{Record: clone(item, exposed, g.Server), Target: t})
		}
	}
	return next, added
}

func stale(current, next map[string]target) []string {
	var out []string
	for name := range current {
		if _, ok := next[name]; !ok {
			out = append(out, name)
		}
	}
	return out
}

func cloneTool(tool *mcp.Tool, exposed, serverID string) *mcp.Tool {
	clone := *tool
	clone.Name = exposed
	clone.Meta = withMeta(tool.Meta, map[string]any{
		metaKeyServerID:   serverID,
		metaKeyNativeName: tool.Name,
	})
	return &clone
}

func clonePrompt(prompt *mcp.Prompt, exposed, serverID string) *mcp.Prompt {
	clone := *prompt
	clone.Name = exposed
	clone.Meta = withMeta(prompt.Meta, map[string]any{
		metaKeyServerID:   serverID,
		metaKeyNativeName: prompt.Name,
	})
	return &clone
}

func cloneResource(resource *mcp.Resource, exposed, serverID string) *mcp.Resource {
	clone := *resource
	clone.URI = exposed
	clone.Meta = withMeta(resource.Meta, map[string]any{
		metaKeyServerID:  serverID,
		metaKeyNativeURI: resource.URI,
	})
	return &clone
}

func withMeta(base map[string]any, extras map[string]any) map[string]any {
	out := maps.Clone(base)
	if out == nil {
		out = make(map[string]any)
	}
	for k, v := range extras {
		out[k] = v
	}
	return out
}
