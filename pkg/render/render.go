// Package render writes human-readable reports for mcpcs listings, info
// views, and invocation results. Colors follow fatih/color's global NoColor
// switch.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/fatih/color"

	"github.com/vikashloomba/mcpcs-go/pkg/mcpmgr"
)

var (
	bold    = color.New(color.Bold)
	dim     = color.New(color.Faint)
	cyan    = color.New(color.FgCyan)
	cyanB   = color.New(color.FgCyan, color.Bold)
	green   = color.New(color.FgGreen)
	yellow  = color.New(color.FgYellow)
	yellowB = color.New(color.FgYellow, color.Bold)
	red     = color.New(color.FgRed)
	redB    = color.New(color.FgRed, color.Bold)
)

const ruleWidth = 60

func rule(w io.Writer) {
	fmt.Fprintln(w, dim.Sprint(strings.Repeat("━", ruleWidth)))
}

// Servers prints the connected server names.
func Servers(w io.Writer, names []string) {
	if len(names) == 0 {
		fmt.Fprintln(w, yellow.Sprint("No connected servers."))
		return
	}
	for _, n := range names {
		fmt.Fprintf(w, "%s %s\n", dim.Sprint("-"), cyan.Sprint(n))
	}
}

// LoadReport prints which servers connected and which failed.
func LoadReport(w io.Writer, r *mcpmgr.LoadReport) {
	fmt.Fprintf(w, "%s %d connected, %d failed\n", bold.Sprint("Servers:"), len(r.Connected), len(r.Failures))
	for _, name := range r.Failed() {
		fmt.Fprintf(w, "  %s %s: %v\n", red.Sprint("✗"), name, r.Failures[name])
	}
}

// Warnings prints one line per server whose discovery failed.
func Warnings(w io.Writer, warnings []mcpmgr.DiscoveryWarning) {
	for _, dw := range warnings {
		fmt.Fprintf(w, "%s %s: %v\n", yellow.Sprint("warning: could not query"), dw.Server, dw.Err)
	}
}

// FormatSize renders a byte count with binary units.
func FormatSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	units := []string{"KB", "MB", "GB", "TB"}
	value := float64(n) / unit
	i := 0
	for value >= unit && i < len(units)-1 {
		value /= unit
		i++
	}
	return fmt.Sprintf("%.2f %s", value, units[i])
}

func prettyJSON(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

// annotationLines flattens an annotations struct into sorted key: value lines.
func annotationLines(v any) []string {
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var m map[string]any
	if json.Unmarshal(b, &m) != nil || len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, fmt.Sprintf("%s: %v", k, m[k]))
	}
	return out
}
