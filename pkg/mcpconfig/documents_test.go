package mcpconfig

import (
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vikashloomba/mcpcs-go/pkg/logging"
	"github.com/vikashloomba/mcpcs-go/pkg/mcpmgr"
)

func writeFile(t *testing.T, fsys afero.Fs, path, body string) {
	t.Helper()
	require.NoError(t, fsys.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, afero.WriteFile(fsys, path, []byte(body), 0o644))
}

func TestParseDocumentFormats(t *testing.T) {
	t.Parallel()

	jsonDoc := `{"mcpServers":{"files":{"command":"npx","args":["-y","fs"]}}}`
	yamlDoc := "mcpServers:\n  files:\n    command: npx\n    args: [\"-y\", \"fs\"]\n"
	tomlDoc := "[mcpServers.files]\ncommand = \"npx\"\nargs = [\"-y\", \"fs\"]\n"

	for format, doc := range map[string]string{"json": jsonDoc, "yaml": yamlDoc, "toml": tomlDoc} {
		raw, err := ParseDocument([]byte(doc), format)
		require.NoError(t, err, format)
		require.Contains(t, raw, "files", format)

		cfg, err := mcpmgr.ParseServerConfig(raw["files"])
		require.NoError(t, err, format)
		stdio, ok := mcpmgr.AsStdio(cfg)
		require.True(t, ok, format)
		assert.Equal(t, "npx", stdio.Command, format)
		assert.Equal(t, []string{"-y", "fs"}, stdio.Args, format)
	}
}

func TestParseDocumentStringifiesScalarMaps(t *testing.T) {
	t.Parallel()

	yamlDoc := "mcpServers:\n  api:\n    command: srv\n    env:\n      PORT: 8080\n      DEBUG: true\n      RATIO: 1.5\n      NAME: api\n"
	tomlDoc := "[mcpServers.api]\ncommand = \"srv\"\n[mcpServers.api.env]\nPORT = 8080\nDEBUG = true\nRATIO = 1.5\nNAME = \"api\"\n"
	remoteDoc := "mcpServers:\n  remote:\n    transport: http\n    url: http://h/mcp\n    headers:\n      X-Retries: 3\n"

	for format, doc := range map[string]string{"yaml": yamlDoc, "toml": tomlDoc} {
		raw, err := ParseDocument([]byte(doc), format)
		require.NoError(t, err, format)
		cfg, err := mcpmgr.ParseServerConfig(raw["api"])
		require.NoError(t, err, format)
		stdio, ok := mcpmgr.AsStdio(cfg)
		require.True(t, ok, format)
		assert.Equal(t, map[string]string{"PORT": "8080", "DEBUG": "true", "RATIO": "1.5", "NAME": "api"}, stdio.Env, format)
	}

	raw, err := ParseDocument([]byte(remoteDoc), "yaml")
	require.NoError(t, err)
	cfg, err := mcpmgr.ParseServerConfig(raw["remote"])
	require.NoError(t, err)
	h, ok := mcpmgr.AsHTTP(cfg)
	require.True(t, ok)
	assert.Equal(t, "3", h.Headers["X-Retries"])
}

func TestParseDocumentEdgeCases(t *testing.T) {
	t.Parallel()

	raw, err := ParseDocument([]byte(`{}`), "json")
	require.NoError(t, err)
	assert.Empty(t, raw)

	raw, err = ParseDocument([]byte(""), "yaml")
	require.NoError(t, err)
	assert.Empty(t, raw)

	_, err = ParseDocument([]byte(`{"mcpServers":`), "json")
	assert.Error(t, err)

	_, err = ParseDocument([]byte(`x`), "ini")
	assert.Error(t, err)
}

func TestLoadDirMergesInLexicalOrder(t *testing.T) {
	t.Parallel()

	fsys := afero.NewMemMapFs()
	dir := "/home/u/.mcpcsrs/mcps"
	writeFile(t, fsys, dir+"/10-base.json", `{"mcpServers":{
		"files":{"command":"old-files"},
		"search":{"transport":"sse","url":"http://search/sse"}
	}}`)
	writeFile(t, fsys, dir+"/20-override.yaml", "mcpServers:\n  files:\n    command: new-files\n  remote:\n    transport: http\n    url: http://remote/mcp\n    stateless: false\n")
	writeFile(t, fsys, dir+"/30-broken.json", `{"mcpServers":{"bad":{"transport":"http"}}}`)
	writeFile(t, fsys, dir+"/40-garbage.toml", `not = [valid`)
	writeFile(t, fsys, dir+"/notes.txt", `ignored`)

	loaded, err := LoadDir(fsys, dir, logging.ForTest(t))
	require.NoError(t, err)

	assert.Len(t, loaded.Servers, 3)
	files, ok := mcpmgr.AsStdio(loaded.Servers["files"])
	require.True(t, ok)
	assert.Equal(t, "new-files", files.Command)
	assert.Equal(t, dir+"/20-override.yaml", loaded.Sources["files"])

	remote, ok := mcpmgr.AsHTTP(loaded.Servers["remote"])
	require.True(t, ok)
	assert.False(t, remote.StatelessAllowed())

	assert.Equal(t, []string{dir + "/10-base.json", dir + "/20-override.yaml", dir + "/30-broken.json"}, loaded.Files)

	require.Len(t, loaded.Errors, 2)
	var cfgErr *mcpmgr.ConfigError
	require.True(t, errors.As(loaded.Errors[0], &cfgErr))
	assert.Equal(t, "bad", cfgErr.Server)
	require.True(t, errors.As(loaded.Errors[1], &cfgErr))
	assert.Equal(t, dir+"/40-garbage.toml", cfgErr.Source)
}

func TestLoadDirMissing(t *testing.T) {
	t.Parallel()
	loaded, err := LoadDir(afero.NewMemMapFs(), "/nope", logging.NewDiscard())
	require.NoError(t, err)
	assert.Empty(t, loaded.Servers)
}

func TestNewDocument(t *testing.T) {
	t.Parallel()
	fsys := afero.NewMemMapFs()

	path, err := NewDocument(fsys, "/cfg/mcps", "work")
	require.NoError(t, err)
	assert.Equal(t, "/cfg/mcps/work.json", path)

	data, err := afero.ReadFile(fsys, path)
	require.NoError(t, err)
	raw, err := ParseDocument(data, "json")
	require.NoError(t, err)
	assert.Empty(t, raw)
	assert.JSONEq(t, `{"mcpServers":{}}`, string(data))

	_, err = NewDocument(fsys, "/cfg/mcps", "work.json")
	require.Error(t, err)
	assert.Contains(t, errors.FlattenHints(err), "choose another name")

	_, err = NewDocument(fsys, "/cfg/mcps", "../escape")
	assert.Error(t, err)
	_, err = NewDocument(fsys, "/cfg/mcps", " ")
	assert.Error(t, err)
}
