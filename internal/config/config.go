// Package config holds the runtime settings of the mosaic binary.
//
// Settings come from, in increasing precedence: built-in defaults, a YAML
// config file, MOSAIC_* environment variables and command-line flags. The
// board geometry itself is not configured here; it is fixed at init time by
// a CUE board definition (see package boardspec).
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. MOSAIC_DB_PATH for
// db.path.
const EnvPrefix = "MOSAIC"

// Config represents the complete mosaic runtime configuration.
type Config struct {
	// Caller is the default caller identity for CLI commands.
	Caller string       `mapstructure:"caller"`
	DB     DBConfig     `mapstructure:"db"`
	Server ServerConfig `mapstructure:"server"`
	Log    LogConfig    `mapstructure:"log"`
	Output OutputConfig `mapstructure:"output"`
	Board  BoardConfig  `mapstructure:"board"`
}

// DBConfig locates the SQLite database.
type DBConfig struct {
	Path string `mapstructure:"path"`
}

// ServerConfig controls mosaic serve.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`

	// ShutdownTimeoutMs bounds graceful HTTP shutdown.
	ShutdownTimeoutMs int `mapstructure:"shutdown_timeout_ms"`

	// Metrics enables GET /metrics.
	Metrics bool `mapstructure:"metrics"`
}

// ShutdownTimeout returns ShutdownTimeoutMs as a time.Duration.
func (c ServerConfig) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutMs) * time.Millisecond
}

// LogConfig controls the slog handler.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// OutputConfig controls CLI output.
type OutputConfig struct {
	Format string `mapstructure:"format"`
}

// BoardConfig names the CUE board definition used by mosaic init.
type BoardConfig struct {
	File string `mapstructure:"file"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		DB: DBConfig{
			Path: "mosaic.db",
		},
		Server: ServerConfig{
			Addr:              "127.0.0.1:8080",
			ShutdownTimeoutMs: 10000,
			Metrics:           true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Output: OutputConfig{
			Format: "text",
		},
	}
}

// SetDefaults registers the built-in configuration on v so every key is
// known to viper even without a config file.
func SetDefaults(v *viper.Viper) {
	defaults := Default()

	v.SetDefault("caller", defaults.Caller)
	v.SetDefault("db.path", defaults.DB.Path)

	v.SetDefault("server.addr", defaults.Server.Addr)
	v.SetDefault("server.shutdown_timeout_ms", defaults.Server.ShutdownTimeoutMs)
	v.SetDefault("server.metrics", defaults.Server.Metrics)

	v.SetDefault("log.level", defaults.Log.Level)
	v.SetDefault("log.format", defaults.Log.Format)

	v.SetDefault("output.format", defaults.Output.Format)

	v.SetDefault("board.file", defaults.Board.File)
}

// Setup prepares v: defaults, environment binding and the config file. An
// explicit cfgFile must exist; otherwise config.yaml is looked up in
// ConfigDir and the working directory and may be absent.
func Setup(v *viper.Viper, cfgFile string) error {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	// MOSAIC_SERVER_ADDR for server.addr
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		return v.ReadInConfig()
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(ConfigDir())
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
	}
	return nil
}

// Load reads the configuration from v into a Config and validates it.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}
	return &cfg, nil
}

// ConfigDir returns the user's mosaic config directory.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "mosaic")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".mosaic"
	}
	return filepath.Join(home, ".config", "mosaic")
}
