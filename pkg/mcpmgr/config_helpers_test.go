package mcpmgr

import (
	"testing"
	"time"
)

func TestConfigHelpersDirect(t *testing.T) {
	t.Parallel()

	stdio := &StdioServerConfig{
		BaseServerConfig: BaseServerConfig{Timeout: 5 * time.Second, Version: "1.2.3"},
		Command:          "npx",
		Args:             []string{"@modelcontextprotocol/server-everything"},
		Env:              map[string]string{"A": "B"},
	}
	sse := &SSEServerConfig{URL: "https://example/sse"}
	http := &HTTPServerConfig{
		BaseServerConfig: BaseServerConfig{Timeout: 10 * time.Second, Version: "2.0.0"},
		URL:              "https://example",
		MaxRetries:       3,
	}

	if !IsStdio(stdio) || IsRemote(stdio) {
		t.Fatalf("IsStdio/IsRemote mismatch for stdio")
	}
	if !IsRemote(http) || IsStdio(http) || !IsRemote(sse) {
		t.Fatalf("IsRemote/IsStdio mismatch for remote configs")
	}

	if TransportOf(stdio) != TransportStdio {
		t.Fatalf("TransportOf(stdio) = %q", TransportOf(stdio))
	}
	if TransportOf(sse) != TransportSSE {
		t.Fatalf("TransportOf(sse) = %q", TransportOf(sse))
	}
	if TransportOf(http) != TransportHTTP {
		t.Fatalf("TransportOf(http) = %q", TransportOf(http))
	}
	if TransportOf(nil) != "" {
		t.Fatalf("TransportOf(nil) should be empty")
	}

	if c, ok := AsStdio(stdio); !ok || c.Command != "npx" {
		t.Fatalf("AsStdio failed to narrow stdio: ok=%v cfg=%#v", ok, c)
	}
	if c, ok := AsHTTP(http); !ok || c.URL != "https://example" {
		t.Fatalf("AsHTTP failed to narrow http: ok=%v cfg=%#v", ok, c)
	}
	if c, ok := AsSSE(sse); !ok || c.URL != "https://example/sse" {
		t.Fatalf("AsSSE failed to narrow sse: ok=%v cfg=%#v", ok, c)
	}
	if c, ok := AsStdio(http); ok || c != nil {
		t.Fatalf("AsStdio(http) should not narrow: ok=%v cfg=%#v", ok, c)
	}
	if c, ok := AsHTTP(stdio); ok || c != nil {
		t.Fatalf("AsHTTP(stdio) should not narrow: ok=%v cfg=%#v", ok, c)
	}
}

func TestEndpoint(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		cfg  ServerConfig
		want string
	}{
		"stdio":      {&StdioServerConfig{Command: "npx", Args: []string{"-y", "server"}}, "npx -y server"},
		"stdio bare": {&StdioServerConfig{Command: "server"}, "server"},
		"sse":        {&SSEServerConfig{URL: "http://h/sse"}, "http://h/sse"},
		"http":       {&HTTPServerConfig{URL: "http://h/mcp"}, "http://h/mcp"},
		"nil":        {nil, ""},
	}
	for name, tc := range cases {
		if got := Endpoint(tc.cfg); got != tc.want {
			t.Fatalf("%s: Endpoint() = %q, want %q", name, got, tc.want)
		}
	}
}

func TestStatelessDefault(t *testing.T) {
	t.Parallel()

	if !(&HTTPServerConfig{}).StatelessAllowed() {
		t.Fatalf("stateless should default to true")
	}
	off := false
	if (&HTTPServerConfig{Stateless: &off}).StatelessAllowed() {
		t.Fatalf("explicit false not honored")
	}
}
