package mcpmgr

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/afero"
)

// ToolCall is the outcome of a tool invocation. A tool that reports IsError
// is still a completed call.
type ToolCall struct {
	Server   string
	Tool     string
	Result   *mcp.CallToolResult
	Warnings []DiscoveryWarning
}

// ResourceRead is the outcome of reading a resource.
type ResourceRead struct {
	Server   string
	URI      string
	Result   *mcp.ReadResourceResult
	Warnings []DiscoveryWarning
}

// ResourceDownload describes a resource written to disk.
type ResourceDownload struct {
	Server   string
	URI      string
	Path     string
	MIMEType string
	Bytes    int
	Warnings []DiscoveryWarning
}

// PromptRender is the outcome of rendering a prompt.
type PromptRender struct {
	Server   string
	Prompt   string
	Result   *mcp.GetPromptResult
	Warnings []DiscoveryWarning
}

// ListTools lists tools on every connected server.
func (m *Manager) ListTools(ctx context.Context) *Listing[*mcp.Tool] {
	return ListAll(ctx, m, Tools)
}

// ListResources lists resources on every connected server.
func (m *Manager) ListResources(ctx context.Context) *Listing[*mcp.Resource] {
	return ListAll(ctx, m, Resources)
}

// ListPrompts lists prompts on every connected server.
func (m *Manager) ListPrompts(ctx context.Context) *Listing[*mcp.Prompt] {
	return ListAll(ctx, m, Prompts)
}

// ToolInfo returns every tool matching spec.
func (m *Manager) ToolInfo(ctx context.Context, spec string) ([]Match[*mcp.Tool], error) {
	matches, _, err := Lookup(ctx, m, Tools, ParseSpec(spec))
	return matches, err
}

// ResourceInfo returns every resource whose URI matches spec.
func (m *Manager) ResourceInfo(ctx context.Context, spec string) ([]Match[*mcp.Resource], error) {
	return m.ResourceInfoSpec(ctx, ParseSpec(spec))
}

// ResourceInfoSpec is ResourceInfo for an already-built Spec.
func (m *Manager) ResourceInfoSpec(ctx context.Context, spec Spec) ([]Match[*mcp.Resource], error) {
	matches, _, err := Lookup(ctx, m, Resources, spec)
	return matches, err
}

// PromptInfo returns every prompt matching spec.
func (m *Manager) PromptInfo(ctx context.Context, spec string) ([]Match[*mcp.Prompt], error) {
	matches, _, err := Lookup(ctx, m, Prompts, ParseSpec(spec))
	return matches, err
}

// CallTool resolves spec to one server and invokes the tool there with args
// passed through unchanged.
func (m *Manager) CallTool(ctx context.Context, spec string, args any) (*ToolCall, error) {
	res, err := Resolve(ctx, m, Tools, ParseSpec(spec))
	if err != nil {
		return nil, err
	}
	if args == nil {
		args = map[string]any{}
	}
	s := res.Session
	name := res.Record.Name
	var result *mcp.CallToolResult
	err = m.invoke(ctx, s, Tools.Name, name, func(ctx context.Context) error {
		var err error
		result, err = s.CallTool(ctx, name, args)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &ToolCall{Server: s.Name(), Tool: name, Result: result, Warnings: res.Warnings}, nil
}

// ReadResource resolves spec by URI and reads the resource.
func (m *Manager) ReadResource(ctx context.Context, spec string) (*ResourceRead, error) {
	return m.ReadResourceSpec(ctx, ParseSpec(spec))
}

// ReadResourceSpec is ReadResource for an already-built Spec. URIs containing
// "://" are never split by ParseSpec, so this is how a caller pins such a
// resource to one server.
func (m *Manager) ReadResourceSpec(ctx context.Context, spec Spec) (*ResourceRead, error) {
	res, err := Resolve(ctx, m, Resources, spec)
	if err != nil {
		return nil, err
	}
	s := res.Session
	uri := res.Record.URI
	var result *mcp.ReadResourceResult
	err = m.invoke(ctx, s, Resources.Name, uri, func(ctx context.Context) error {
		var err error
		result, err = s.ReadResource(ctx, uri)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &ResourceRead{Server: s.Name(), URI: uri, Result: result, Warnings: res.Warnings}, nil
}

// DownloadResource reads the resource and writes its first content item to
// path, creating parent directories. Text is written as-is and blobs as
// their decoded bytes.
func (m *Manager) DownloadResource(ctx context.Context, spec, path string) (*ResourceDownload, error) {
	return m.DownloadResourceSpec(ctx, ParseSpec(spec), path)
}

// DownloadResourceSpec is DownloadResource for an already-built Spec.
func (m *Manager) DownloadResourceSpec(ctx context.Context, spec Spec, path string) (*ResourceDownload, error) {
	read, err := m.ReadResourceSpec(ctx, spec)
	if err != nil {
		return nil, err
	}
	if read.Result == nil || len(read.Result.Contents) == 0 || read.Result.Contents[0] == nil {
		return nil, errors.Newf("resource %q returned no content", read.URI)
	}
	first := read.Result.Contents[0]
	data := first.Blob
	if data == nil {
		data = []byte(first.Text)
	}

	fs := m.fs()
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := fs.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrapf(err, "create %s", dir)
		}
	}
	if err := afero.WriteFile(fs, path, data, 0o644); err != nil {
		return nil, errors.Wrapf(err, "write %s", path)
	}
	m.logger.Info("resource downloaded", "server", read.Server, "uri", read.URI, "path", path, "bytes", len(data))
	return &ResourceDownload{
		Server:   read.Server,
		URI:      read.URI,
		Path:     path,
		MIMEType: first.MIMEType,
		Bytes:    len(data),
		Warnings: read.Warnings,
	}, nil
}

// GetPrompt resolves spec and renders the prompt with args.
func (m *Manager) GetPrompt(ctx context.Context, spec string, args map[string]string) (*PromptRender, error) {
	res, err := Resolve(ctx, m, Prompts, ParseSpec(spec))
	if err != nil {
		return nil, err
	}
	s := res.Session
	name := res.Record.Name
	var result *mcp.GetPromptResult
	err = m.invoke(ctx, s, Prompts.Name, name, func(ctx context.Context) error {
		var err error
		result, err = s.GetPrompt(ctx, name, args)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &PromptRender{Server: s.Name(), Prompt: name, Result: result, Warnings: res.Warnings}, nil
}

// invoke runs one call against a resolved session under CallTimeout and
// tags the log lines with a per-call id.
func (m *Manager) invoke(ctx context.Context, s *Session, kind, name string, call func(context.Context) error) error {
	logger := m.logger.With(slog.String("call_id", uuid.NewString()), slog.String("server", s.Name()), slog.String(kind, name))
	ctx, cancel := withTimeout(ctx, m.options.CallTimeout)
	defer cancel()

	start := time.Now()
	logger.Debug("invoking")
	if err := call(ctx); err != nil {
		logger.Error("invocation failed", "error", err, "elapsed", time.Since(start))
		return &InvocationError{Server: s.Name(), Kind: kind, Name: name, Err: err}
	}
	logger.Debug("invocation complete", "elapsed", time.Since(start))
	return nil
}

func (m *Manager) fs() afero.Fs {
	if m.options.FS != nil {
		return m.options.FS
	}
	return afero.NewOsFs()
}
