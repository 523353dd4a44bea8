package render

import (
	"fmt"
	"io"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/vikashloomba/mcpcs-go/pkg/mcpmgr"
)

// ToolCall prints the content returned by a tool. A result flagged IsError is
// still a completed call and is reported as such.
func ToolCall(w io.Writer, call *mcpmgr.ToolCall) {
	Warnings(w, call.Warnings)
	fmt.Fprintf(w, "%s %s/%s\n", dim.Sprint("Called"), cyan.Sprint(call.Server), green.Sprint(call.Tool))
	if call.Result == nil {
		return
	}
	if call.Result.IsError {
		fmt.Fprintln(w, redB.Sprint("Tool reported an error:"))
	}
	for _, c := range call.Result.Content {
		content(w, c)
	}
	if call.Result.StructuredContent != nil {
		fmt.Fprintf(w, "%s\n%s\n", bold.Sprint("Structured content:"), prettyJSON(call.Result.StructuredContent))
	}
}

// ResourceRead prints every content item of a read. Binary items are
// summarized by size.
func ResourceRead(w io.Writer, read *mcpmgr.ResourceRead) {
	Warnings(w, read.Warnings)
	if read.Result == nil || len(read.Result.Contents) == 0 {
		fmt.Fprintln(w, dim.Sprint("(empty resource)"))
		return
	}
	for i, rc := range read.Result.Contents {
		if i > 0 {
			fmt.Fprintln(w)
		}
		resourceContents(w, rc)
	}
}

func resourceContents(w io.Writer, rc *mcp.ResourceContents) {
	if rc == nil {
		return
	}
	field(w, "URI", rc.URI)
	field(w, "MIME Type", rc.MIMEType)
	if rc.Blob != nil {
		fmt.Fprintf(w, "Binary content: %d bytes\n", len(rc.Blob))
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, rc.Text)
}

// PromptRender prints the messages of a rendered prompt with their roles.
func PromptRender(w io.Writer, render *mcpmgr.PromptRender) {
	Warnings(w, render.Warnings)
	if render.Result == nil {
		return
	}
	field(w, "Prompt", fmt.Sprintf("%s/%s", render.Server, render.Prompt))
	field(w, "Description", render.Result.Description)
	for _, msg := range render.Result.Messages {
		if msg == nil {
			continue
		}
		fmt.Fprintf(w, "\n%s\n", yellowB.Sprintf("[%s]", msg.Role))
		content(w, msg.Content)
	}
}

// Download prints where a resource was written.
func Download(w io.Writer, dl *mcpmgr.ResourceDownload) {
	Warnings(w, dl.Warnings)
	fmt.Fprintf(w, "%s %s from %s to %s (%s)\n",
		green.Sprint("Downloaded"), dl.URI, cyan.Sprint(dl.Server), dl.Path, FormatSize(int64(dl.Bytes)))
}

func content(w io.Writer, c mcp.Content) {
	switch v := c.(type) {
	case *mcp.TextContent:
		fmt.Fprintln(w, v.Text)
	case *mcp.ImageContent:
		fmt.Fprintf(w, "%s %s, %d bytes\n", dim.Sprint("[image]"), v.MIMEType, len(v.Data))
	case *mcp.AudioContent:
		fmt.Fprintf(w, "%s %s, %d bytes\n", dim.Sprint("[audio]"), v.MIMEType, len(v.Data))
	case *mcp.ResourceLink:
		fmt.Fprintf(w, "%s %s\n", dim.Sprint("[resource link]"), v.URI)
	case *mcp.EmbeddedResource:
		resourceContents(w, v.Resource)
	case nil:
	default:
		fmt.Fprintln(w, prettyJSON(v))
	}
}
