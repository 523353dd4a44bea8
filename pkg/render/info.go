package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/vikashloomba/mcpcs-go/pkg/mcpmgr"
)

func field(w io.Writer, label, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(w, "%s %s\n", bold.Sprintf("%s:", label), value)
}

func indented(w io.Writer, text string) {
	for _, line := range strings.Split(text, "\n") {
		fmt.Fprintf(w, "  %s\n", line)
	}
}

func section(w io.Writer, title string, lines []string) {
	if len(lines) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%s\n", bold.Sprintf("%s:", title))
	for _, l := range lines {
		fmt.Fprintf(w, "  %s\n", l)
	}
}

// ToolInfo prints one block per server exposing the tool.
func ToolInfo(w io.Writer, matches []mcpmgr.Match[*mcp.Tool]) {
	for i, m := range matches {
		if i > 0 {
			fmt.Fprintln(w)
		}
		rule(w)
		field(w, "Server", cyanB.Sprint(m.Server))
		field(w, "Tool", green.Sprint(m.Record.Name))
		rule(w)
		field(w, "Title", m.Record.Title)
		field(w, "Description", m.Record.Description)
		if m.Record.Annotations != nil {
			section(w, "Annotations", annotationLines(m.Record.Annotations))
		}
		if m.Record.InputSchema != nil {
			fmt.Fprintf(w, "\n%s\n", bold.Sprint("Input Schema:"))
			indented(w, prettyJSON(m.Record.InputSchema))
		}
		if m.Record.OutputSchema != nil {
			fmt.Fprintf(w, "\n%s\n", bold.Sprint("Output Schema:"))
			indented(w, prettyJSON(m.Record.OutputSchema))
		}
		fmt.Fprintf(w, "\n%s mcpcs tools call %s/%s '{...}'\n", dim.Sprint("Usage:"), m.Server, m.Record.Name)
	}
}

// ResourceInfo prints one block per server exposing the URI.
func ResourceInfo(w io.Writer, matches []mcpmgr.Match[*mcp.Resource]) {
	for i, m := range matches {
		if i > 0 {
			fmt.Fprintln(w)
		}
		r := m.Record
		rule(w)
		field(w, "Server", cyanB.Sprint(m.Server))
		field(w, "Resource", green.Sprint(r.Name))
		rule(w)
		field(w, "URI", r.URI)
		field(w, "Title", r.Title)
		field(w, "Description", r.Description)
		field(w, "MIME Type", r.MIMEType)
		if r.Size > 0 {
			field(w, "Size", FormatSize(int64(r.Size)))
		}
		if r.Annotations != nil {
			section(w, "Annotations", annotationLines(r.Annotations))
		}
		fmt.Fprintf(w, "\n%s mcpcs resources read --server %s %s\n", dim.Sprint("Usage:"), m.Server, r.URI)
	}
}

// PromptInfo prints one block per server exposing the prompt, including its
// arguments and an example invocation.
func PromptInfo(w io.Writer, matches []mcpmgr.Match[*mcp.Prompt]) {
	for i, m := range matches {
		if i > 0 {
			fmt.Fprintln(w)
		}
		p := m.Record
		rule(w)
		field(w, "Server", cyanB.Sprint(m.Server))
		field(w, "Prompt", green.Sprint(p.Name))
		rule(w)
		field(w, "Title", p.Title)
		field(w, "Description", p.Description)

		usage := []string{fmt.Sprintf("mcpcs prompts get %s/%s", m.Server, p.Name)}
		if len(p.Arguments) > 0 {
			fmt.Fprintf(w, "\n%s\n", bold.Sprint("Arguments:"))
			for _, arg := range p.Arguments {
				marker := dim.Sprint("(optional)")
				if arg.Required {
					marker = red.Sprint("(required)")
				}
				line := fmt.Sprintf("  - %s %s", yellow.Sprint(arg.Name), marker)
				if arg.Description != "" {
					line += ": " + arg.Description
				}
				fmt.Fprintln(w, line)
				usage = append(usage, fmt.Sprintf("%s=<value>", arg.Name))
			}
		}
		fmt.Fprintf(w, "\n%s %s\n", dim.Sprint("Usage:"), strings.Join(usage, " "))
	}
}
