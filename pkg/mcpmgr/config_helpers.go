package mcpmgr

// Helpers for narrowing and inspecting ServerConfig values without a type
// switch at every call site.

// ConfigTransport identifies the transport family used by a ServerConfig.
type ConfigTransport string

const (
	TransportStdio ConfigTransport = "stdio"
	TransportSSE   ConfigTransport = "sse"
	TransportHTTP  ConfigTransport = "http"
)

// TransportOf returns the transport kind for a ServerConfig.
// Returns an empty string when the value is nil or an unknown implementation.
func TransportOf(cfg ServerConfig) ConfigTransport {
	switch cfg.(type) {
	case *StdioServerConfig:
		return TransportStdio
	case *SSEServerConfig:
		return TransportSSE
	case *HTTPServerConfig:
		return TransportHTTP
	default:
		return ""
	}
}

// IsStdio reports whether cfg is a *StdioServerConfig.
func IsStdio(cfg ServerConfig) bool {
	_, ok := cfg.(*StdioServerConfig)
	return ok
}

// IsRemote reports whether cfg reaches its server over the network.
func IsRemote(cfg ServerConfig) bool {
	switch cfg.(type) {
	case *SSEServerConfig, *HTTPServerConfig:
		return true
	default:
		return false
	}
}

// AsStdio narrows cfg to *StdioServerConfig, returning (nil, false) when it
// does not match.
func AsStdio(cfg ServerConfig) (*StdioServerConfig, bool) {
	c, ok := cfg.(*StdioServerConfig)
	return c, ok
}

// AsSSE narrows cfg to *SSEServerConfig.
func AsSSE(cfg ServerConfig) (*SSEServerConfig, bool) {
	c, ok := cfg.(*SSEServerConfig)
	return c, ok
}

// AsHTTP narrows cfg to *HTTPServerConfig, returning (nil, false) when it
// does not match.
func AsHTTP(cfg ServerConfig) (*HTTPServerConfig, bool) {
	c, ok := cfg.(*HTTPServerConfig)
	return c, ok
}

// Endpoint returns the command line or URL a config points at, for display.
func Endpoint(cfg ServerConfig) string {
	switch c := cfg.(type) {
	case *StdioServerConfig:
		if len(c.Args) == 0 {
			return c.Command
		}
		out := c.Command
		for _, a := range c.Args {
			out += " " + a
		}
		return out
	case *SSEServerConfig:
		return c.URL
	case *HTTPServerConfig:
		return c.URL
	default:
		return ""
	}
}
