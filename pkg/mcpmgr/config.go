package mcpmgr

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

// BaseServerConfig captures settings shared by all transport types.
type BaseServerConfig struct {
	// Timeout bounds the handshake and every query sent to this server.
	// Zero falls back to ManagerOptions.DefaultTimeout.
	Timeout time.Duration
	// Version overrides the client version advertised to this server.
	Version string
}

// StdioServerConfig describes an MCP server launched as a local process that
// speaks the protocol over its stdin/stdout.
type StdioServerConfig struct {
	BaseServerConfig
	Command string
	Args    []string
	Env     map[string]string
	Cwd     string
}

func (c *StdioServerConfig) base() *BaseServerConfig { return &c.BaseServerConfig }

// SSEServerConfig describes a server reached through a server-sent event
// stream paired with outbound POSTs.
type SSEServerConfig struct {
	BaseServerConfig
	URL       string
	AuthToken string
	Headers   map[string]string
	// HTTPClient is the base client. Nil means http.DefaultClient.
	HTTPClient *http.Client
}

func (c *SSEServerConfig) base() *BaseServerConfig { return &c.BaseServerConfig }

// HTTPServerConfig describes a server reached over the Streamable HTTP
// transport.
type HTTPServerConfig struct {
	BaseServerConfig
	URL       string
	AuthToken string
	Headers   map[string]string
	// Stateless reports whether the server may run without a session id.
	// Nil means true.
	Stateless  *bool
	HTTPClient *http.Client
	MaxRetries int
}

func (c *HTTPServerConfig) base() *BaseServerConfig { return &c.BaseServerConfig }

// StatelessAllowed resolves the Stateless default.
func (c *HTTPServerConfig) StatelessAllowed() bool {
	return c.Stateless == nil || *c.Stateless
}

// ServerConfig is implemented by all transport-specific configurations.
type ServerConfig interface {
	base() *BaseServerConfig
}

// serverDocument is the on-disk shape of one server entry. The transport
// field (or type, as other MCP clients spell it) selects the variant; an
// absent transport is the legacy local-process form. Keys not listed here are
// ignored.
type serverDocument struct {
	Transport string            `json:"transport,omitempty"`
	Type      string            `json:"type,omitempty"`
	Command   string            `json:"command,omitempty"`
	Args      []string          `json:"args,omitempty"`
	Env       map[string]string `json:"env,omitempty"`
	Cwd       string            `json:"cwd,omitempty"`
	URL       string            `json:"url,omitempty"`
	AuthToken string            `json:"auth_token,omitempty"`
	Headers   map[string]string `json:"headers,omitempty"`
	Stateless *bool             `json:"stateless,omitempty"`
}

// ParseServerConfig decodes one JSON server entry.
func ParseServerConfig(data []byte) (ServerConfig, error) {
	var doc serverDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, "decode server entry")
	}
	if doc.Transport == "" {
		doc.Transport = doc.Type
	}
	switch strings.ToLower(strings.TrimSpace(doc.Transport)) {
	case "", "stdio", "child-process":
		if doc.URL != "" {
			return nil, errors.New("local process entries take command, not url")
		}
		if doc.Command == "" {
			return nil, errors.New("command is required")
		}
		return &StdioServerConfig{
			Command: doc.Command,
			Args:    doc.Args,
			Env:     doc.Env,
			Cwd:     doc.Cwd,
		}, nil
	case "sse":
		if err := requireRemote(doc); err != nil {
			return nil, err
		}
		if doc.Stateless != nil {
			return nil, errors.New("stateless only applies to http transport")
		}
		return &SSEServerConfig{URL: doc.URL, AuthToken: doc.AuthToken, Headers: doc.Headers}, nil
	case "http", "streamable-http":
		if err := requireRemote(doc); err != nil {
			return nil, err
		}
		return &HTTPServerConfig{
			URL:       doc.URL,
			AuthToken: doc.AuthToken,
			Headers:   doc.Headers,
			Stateless: doc.Stateless,
		}, nil
	default:
		return nil, errors.Newf("unknown transport %q", doc.Transport)
	}
}

func requireRemote(doc serverDocument) error {
	if doc.URL == "" {
		return errors.New("url is required")
	}
	if doc.Command != "" || len(doc.Args) > 0 || doc.Cwd != "" {
		return errors.Newf("%s entries take url, not command", doc.Transport)
	}
	return nil
}

// ParseServers decodes a name → entry map. Malformed entries are skipped and
// reported as *ConfigError values; the remaining entries are returned.
func ParseServers(raw map[string]json.RawMessage, source string) (map[string]ServerConfig, []error) {
	names := make([]string, 0, len(raw))
	for name := range raw {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make(map[string]ServerConfig, len(raw))
	var errs []error
	for _, name := range names {
		if strings.TrimSpace(name) == "" {
			errs = append(errs, &ConfigError{Server: name, Source: source, Err: errors.New("server name is empty")})
			continue
		}
		if strings.Contains(name, "/") {
			errs = append(errs, &ConfigError{Server: name, Source: source, Err: errors.New("server name must not contain '/'")})
			continue
		}
		cfg, err := ParseServerConfig(raw[name])
		if err != nil {
			errs = append(errs, &ConfigError{Server: name, Source: source, Err: err})
			continue
		}
		out[name] = cfg
	}
	return out, errs
}

// LogConfigErrors writes one error record per config failure.
func LogConfigErrors(logger *slog.Logger, errs []error) {
	if logger == nil {
		logger = slog.Default()
	}
	for _, err := range errs {
		var cfgErr *ConfigError
		if errors.As(err, &cfgErr) {
			logger.Error("skipping server config", "server", cfgErr.Server, "source", cfgErr.Source, "error", cfgErr.Err)
			continue
		}
		logger.Error("skipping server config", "error", err)
	}
}
