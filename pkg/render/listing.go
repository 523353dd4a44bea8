package render

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/vikashloomba/mcpcs-go/pkg/mcpmgr"
)

type entry struct {
	key  string
	desc string
}

type listingStyle struct {
	// title names the kind in the conflict header, e.g. "Tool name".
	title string
	empty string
	hint  string
}

// Tools prints every server's tools. Names exposed by several servers are
// summarized up front and flagged inline.
func Tools(w io.Writer, l *mcpmgr.Listing[*mcp.Tool]) {
	printListing(w, l, listingStyle{
		title: "Tool name",
		empty: "(No tools available)",
		hint:  "Use server_name/tool_name to specify which server.",
	}, func(t *mcp.Tool) entry { return entry{t.Name, t.Description} })
}

// Resources prints every server's resources, keyed by URI.
func Resources(w io.Writer, l *mcpmgr.Listing[*mcp.Resource]) {
	printListing(w, l, listingStyle{
		title: "Resource URI",
		empty: "(No resources available)",
		hint:  "Use --server server_name to specify which server.",
	}, func(r *mcp.Resource) entry {
		desc := r.Name
		if r.Description != "" {
			desc = r.Name + " - " + r.Description
		}
		return entry{r.URI, desc}
	})
}

// Prompts prints every server's prompts.
func Prompts(w io.Writer, l *mcpmgr.Listing[*mcp.Prompt]) {
	printListing(w, l, listingStyle{
		title: "Prompt name",
		empty: "(No prompts available)",
		hint:  "Use server_name/prompt_name to specify which server.",
	}, func(p *mcp.Prompt) entry { return entry{p.Name, p.Description} })
}

func printListing[T any](w io.Writer, l *mcpmgr.Listing[T], style listingStyle, describe func(T) entry) {
	if len(l.Groups) == 0 {
		fmt.Fprintln(w, yellow.Sprint("No connected servers."))
		return
	}
	if len(l.Conflicts) > 0 {
		fmt.Fprintln(w, yellowB.Sprintf("WARNING: %s conflicts detected:", style.title))
		keys := make([]string, 0, len(l.Conflicts))
		for k := range l.Conflicts {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(w, "  '%s' exists in: %s\n", red.Sprint(k), cyan.Sprint(strings.Join(l.Conflicts[k], ", ")))
		}
		fmt.Fprintf(w, "  %s\n\n", dim.Sprint(style.hint))
	}

	for _, g := range l.Groups {
		fmt.Fprintf(w, "%s %s\n", bold.Sprint("Server:"), cyanB.Sprint(g.Server))
		if g.Err != nil {
			fmt.Fprintf(w, "  %s %v\n", red.Sprint("Error:"), g.Err)
			continue
		}
		if len(g.Items) == 0 {
			fmt.Fprintf(w, "  %s\n", dim.Sprint(style.empty))
			continue
		}
		for _, item := range g.Items {
			e := describe(item)
			flag := ""
			if l.Conflicting(e.key) {
				flag = " " + redB.Sprint("[CONFLICT]")
			}
			fmt.Fprintf(w, "  %s %s%s: %s\n", dim.Sprint("-"), green.Sprint(e.key), flag, dim.Sprint(e.desc))
		}
	}
}
