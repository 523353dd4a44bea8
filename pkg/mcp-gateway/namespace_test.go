package mcpgateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQualifiedNamespaceNames(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "alpha__echo", QualifiedNamespace{}.ToolName("alpha", "echo"))
	assert.Equal(t, "alpha.greet", QualifiedNamespace{Separator: "."}.PromptName("alpha", "greet"))
}

func TestQualifiedNamespaceResourceURI(t *testing.T) {
	t.Parallel()
	ns := QualifiedNamespace{}
	assert.Equal(t, "mcpgateway+my%20server/resources::file:///notes.md", ns.ResourceURI("my server", "file:///notes.md"))
	assert.NotEqual(t, ns.ResourceURI("alpha", "file://foo"), ns.ResourceURI("bravo", "file://foo"))
	assert.Equal(t, "mcpcs+alpha/resources::mem://x", QualifiedNamespace{Scheme: "mcpcs"}.ResourceURI("alpha", "mem://x"))
}
