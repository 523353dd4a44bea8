package mcpconfig

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/vikashloomba/mcpcs-go/pkg/mcpmgr"
)

// Document is the shape of one server file.
type Document struct {
	MCPServers map[string]json.RawMessage `json:"mcpServers"`
}

// Loaded is the merged result of LoadDir.
type Loaded struct {
	Servers map[string]mcpmgr.ServerConfig
	// Sources maps each server to the file it was taken from.
	Sources map[string]string
	// Files lists the documents read, in merge order.
	Files []string
	// Errors holds one entry per unreadable file or malformed server entry.
	Errors []error
}

// formatOf returns the document format for a file name, or "" when the file
// is not a server document.
func formatOf(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json":
		return "json"
	case ".yaml", ".yml":
		return "yaml"
	case ".toml":
		return "toml"
	default:
		return ""
	}
}

// ParseDocument decodes a server document in the given format ("json",
// "yaml", or "toml") and returns the raw per-server entries.
func ParseDocument(data []byte, format string) (map[string]json.RawMessage, error) {
	var jsonData []byte
	switch format {
	case "json":
		jsonData = data
	case "yaml":
		var doc map[string]any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, errors.Wrap(err, "decode yaml")
		}
		b, err := json.Marshal(stringifyEntries(doc))
		if err != nil {
			return nil, errors.Wrap(err, "convert yaml")
		}
		jsonData = b
	case "toml":
		var doc map[string]any
		if err := toml.Unmarshal(data, &doc); err != nil {
			return nil, errors.Wrap(err, "decode toml")
		}
		b, err := json.Marshal(stringifyEntries(doc))
		if err != nil {
			return nil, errors.Wrap(err, "convert toml")
		}
		jsonData = b
	default:
		return nil, errors.Newf("unsupported document format %q", format)
	}

	if len(bytes.TrimSpace(jsonData)) == 0 {
		return map[string]json.RawMessage{}, nil
	}
	var doc Document
	if err := json.Unmarshal(jsonData, &doc); err != nil {
		return nil, errors.Wrap(err, "decode document")
	}
	if doc.MCPServers == nil {
		return map[string]json.RawMessage{}, nil
	}
	return doc.MCPServers, nil
}

// stringifyEntries turns scalar values under each server's env and headers
// into strings. YAML and TOML type unquoted values such as PORT: 8080, while
// the entries only accept string maps.
func stringifyEntries(doc map[string]any) map[string]any {
	servers, ok := doc["mcpServers"].(map[string]any)
	if !ok {
		return doc
	}
	for _, entry := range servers {
		fields, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		for _, key := range []string{"env", "headers"} {
			values, ok := fields[key].(map[string]any)
			if !ok {
				continue
			}
			for k, v := range values {
				switch v.(type) {
				case string, nil, map[string]any, []any:
				default:
					values[k] = fmt.Sprint(v)
				}
			}
		}
	}
	return doc
}

// LoadDir reads every server document in dir in lexical order. Entries in
// later files replace same-named entries from earlier files. A missing
// directory yields an empty result.
func LoadDir(fsys afero.Fs, dir string, logger *slog.Logger) (*Loaded, error) {
	if logger == nil {
		logger = slog.Default()
	}
	out := &Loaded{
		Servers: map[string]mcpmgr.ServerConfig{},
		Sources: map[string]string{},
	}
	entries, err := afero.ReadDir(fsys, dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger.Debug("config directory missing", "dir", dir)
			return out, nil
		}
		return nil, errors.Wrapf(err, "read config directory %s", dir)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || formatOf(e.Name()) == "" || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		path := filepath.Join(dir, name)
		data, err := afero.ReadFile(fsys, path)
		if err != nil {
			out.Errors = append(out.Errors, &mcpmgr.ConfigError{Source: path, Err: err})
			continue
		}
		raw, err := ParseDocument(data, formatOf(name))
		if err != nil {
			out.Errors = append(out.Errors, &mcpmgr.ConfigError{Source: path, Err: err})
			continue
		}
		out.Files = append(out.Files, path)
		servers, errs := mcpmgr.ParseServers(raw, path)
		out.Errors = append(out.Errors, errs...)
		for server, cfg := range servers {
			if prev, ok := out.Sources[server]; ok {
				logger.Debug("server overridden", "server", server, "previous", prev, "source", path)
			}
			out.Servers[server] = cfg
			out.Sources[server] = path
		}
	}
	return out, nil
}

// NewDocument creates <dir>/<name>.json holding an empty server map and
// returns its path. Existing files are never overwritten.
func NewDocument(fsys afero.Fs, dir, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", errors.Newf("invalid document name %q", name)
	}
	if formatOf(name) != "json" {
		name += ".json"
	}
	path := filepath.Join(dir, name)
	if exists, err := afero.Exists(fsys, path); err != nil {
		return "", errors.Wrapf(err, "stat %s", path)
	} else if exists {
		return "", errors.WithHint(errors.Newf("%s already exists", path), "edit the existing file or choose another name")
	}
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrapf(err, "create %s", dir)
	}
	body, err := json.MarshalIndent(Document{MCPServers: map[string]json.RawMessage{}}, "", "  ")
	if err != nil {
		return "", err
	}
	if err := afero.WriteFile(fsys, path, append(body, '\n'), 0o644); err != nil {
		return "", errors.Wrapf(err, "write %s", path)
	}
	return path, nil
}
