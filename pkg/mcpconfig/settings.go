// Package mcpconfig loads mcpcs settings and the server documents kept in
// the config directory (~/.mcpcsrs/mcps by default).
package mcpconfig

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/cockroachdb/errors"
	"github.com/spf13/viper"
)

// AppName names the settings directory under the XDG config home.
const AppName = "mcpcs"

// Setting keys.
const (
	KeyConfigDir       = "config_dir"
	KeyTimeout         = "timeout"
	KeyLogLevel        = "log_level"
	KeyLogFormat       = "log_format"
	KeyStrictDiscovery = "strict_discovery"
	KeyTraceRPC        = "trace_rpc"
	KeyGatewayAddr     = "gateway_addr"
	KeyGatewayToken    = "gateway_token"
)

// Settings are the process-wide options. Values come from flags, MCPCS_*
// environment variables, and an optional config.yaml, in that order.
type Settings struct {
	ConfigDir       string        `mapstructure:"config_dir"`
	Timeout         time.Duration `mapstructure:"timeout"`
	LogLevel        string        `mapstructure:"log_level"`
	LogFormat       string        `mapstructure:"log_format"`
	StrictDiscovery bool          `mapstructure:"strict_discovery"`
	TraceRPC        bool          `mapstructure:"trace_rpc"`
	GatewayAddr     string        `mapstructure:"gateway_addr"`
	// GatewayToken, when set, is the bearer token `mcpcs serve` requires.
	GatewayToken    string        `mapstructure:"gateway_token"`
}

// DefaultConfigDir is where server documents live unless overridden.
func DefaultConfigDir() string {
	return filepath.Join(xdg.Home, ".mcpcsrs", "mcps")
}

// Init registers defaults, the settings file search path, and environment
// binding on v.
func Init(v *viper.Viper) {
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(filepath.Join(xdg.ConfigHome, AppName))

	v.SetEnvPrefix("MCPCS")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	v.SetDefault(KeyConfigDir, DefaultConfigDir())
	v.SetDefault(KeyTimeout, 30*time.Second)
	v.SetDefault(KeyLogLevel, "warn")
	v.SetDefault(KeyLogFormat, "text")
	v.SetDefault(KeyStrictDiscovery, false)
	v.SetDefault(KeyTraceRPC, false)
	v.SetDefault(KeyGatewayAddr, "127.0.0.1:8765")
	v.SetDefault(KeyGatewayToken, "")
}

// Load reads the settings file and returns the merged settings. An explicit
// path must exist; the default search path may be empty.
func Load(v *viper.Viper, path string) (*Settings, error) {
	if path != "" {
		v.SetConfigFile(path)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || path != "" {
			return nil, errors.Wrap(err, "reading settings")
		}
	}
	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, errors.Wrap(err, "decoding settings")
	}
	if s.Timeout <= 0 {
		return nil, errors.Newf("timeout must be positive, got %s", s.Timeout)
	}
	s.ConfigDir = expandHome(s.ConfigDir)
	return &s, nil
}

func expandHome(p string) string {
	if p == "~" {
		return xdg.Home
	}
	if strings.HasPrefix(p, "~/") {
		return filepath.Join(xdg.Home, p[2:])
	}
	return p
}
