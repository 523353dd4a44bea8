package mcpgateway

import (
	"net/url"
	"strings"
)

const (
	defaultSeparator      = "__"
	defaultResourceScheme = "mcpgateway"
)

// NamespaceStrategy names the per-server copies of a conflicting tool,
// prompt, or resource. Results must differ for different servers.
type NamespaceStrategy interface {
	ToolName(serverID, toolName string) string
	PromptName(serverID, promptName string) string
	ResourceURI(serverID, resourceURI string) string
}

// QualifiedNamespace qualifies conflicting names with the owning server.
// Tools and prompts become server + Separator + name; the "/" used on the
// command line is not valid in MCP tool names. Resources are wrapped as
// Scheme+server/resources::uri so the original URI survives intact.
type QualifiedNamespace struct {
	Separator string
	Scheme    string
}

func (q QualifiedNamespace) ToolName(serverID, toolName string) string {
	return q.qualify(serverID, toolName)
}

func (q QualifiedNamespace) PromptName(serverID, promptName string) string {
	return q.qualify(serverID, promptName)
}

func (q QualifiedNamespace) ResourceURI(serverID, resourceURI string) string {
	scheme := q.Scheme
	if scheme == "" {
		scheme = defaultResourceScheme
	}
	return scheme + "+" + url.PathEscape(serverID) + "/resources::" + resourceURI
}

func (q QualifiedNamespace) qualify(serverID, name string) string {
	sep := q.Separator
	if sep == "" {
		sep = defaultSeparator
	}
	var b strings.Builder
	b.Grow(len(serverID) + len(sep) + len(name))
	b.WriteString(serverID)
	b.WriteString(sep)
	b.WriteString(name)
	return b.String()
}
