package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func newViper(t *testing.T, cfgFile string) *viper.Viper {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	v := viper.New()
	if err := Setup(v, cfgFile); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	return v
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.DB.Path != "mosaic.db" {
		t.Errorf("DB.Path = %q, want %q", cfg.DB.Path, "mosaic.db")
	}
	if cfg.Server.Addr != "127.0.0.1:8080" {
		t.Errorf("Server.Addr = %q, want %q", cfg.Server.Addr, "127.0.0.1:8080")
	}
	if cfg.Server.ShutdownTimeout() != 10*time.Second {
		t.Errorf("ShutdownTimeout() = %v, want 10s", cfg.Server.ShutdownTimeout())
	}
	if !cfg.Server.Metrics {
		t.Error("Server.Metrics should default to true")
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "text" {
		t.Errorf("Log = %+v, want info/text", cfg.Log)
	}
	if errs := cfg.Validate(); len(errs) != 0 {
		t.Errorf("Default().Validate() = %v, want no errors", errs)
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(newViper(t, ""))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if *cfg != *Default() {
		t.Errorf("Load() = %+v, want defaults %+v", cfg, Default())
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mosaic.yaml")
	content := `
caller: alice
db:
  path: /var/lib/mosaic/board.db
server:
  addr: 0.0.0.0:9090
log:
  level: debug
board:
  file: board.cue
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(newViper(t, path))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Caller != "alice" {
		t.Errorf("Caller = %q, want alice", cfg.Caller)
	}
	if cfg.DB.Path != "/var/lib/mosaic/board.db" {
		t.Errorf("DB.Path = %q", cfg.DB.Path)
	}
	if cfg.Server.Addr != "0.0.0.0:9090" {
		t.Errorf("Server.Addr = %q", cfg.Server.Addr)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q", cfg.Log.Level)
	}
	if cfg.Board.File != "board.cue" {
		t.Errorf("Board.File = %q", cfg.Board.File)
	}
	// Keys absent from the file keep their defaults.
	if cfg.Server.ShutdownTimeoutMs != 10000 {
		t.Errorf("ShutdownTimeoutMs = %d, want default", cfg.Server.ShutdownTimeoutMs)
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	v := viper.New()
	err := Setup(v, filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil {
		t.Fatal("Setup() with a missing explicit file should fail")
	}
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("MOSAIC_DB_PATH", "/tmp/env.db")
	t.Setenv("MOSAIC_SERVER_ADDR", "localhost:7000")
	t.Setenv("MOSAIC_CALLER", "bob")

	cfg, err := Load(newViper(t, ""))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.DB.Path != "/tmp/env.db" {
		t.Errorf("DB.Path = %q, want /tmp/env.db", cfg.DB.Path)
	}
	if cfg.Server.Addr != "localhost:7000" {
		t.Errorf("Server.Addr = %q, want localhost:7000", cfg.Server.Addr)
	}
	if cfg.Caller != "bob" {
		t.Errorf("Caller = %q, want bob", cfg.Caller)
	}
}

func TestLoad_Invalid(t *testing.T) {
	v := newViper(t, "")
	v.Set("log.level", "loud")
	v.Set("server.addr", "no-port")

	_, err := Load(v)
	if err == nil {
		t.Fatal("Load() should fail validation")
	}
	errs, ok := err.(ValidationErrors)
	if !ok {
		t.Fatalf("Load() error type = %T, want ValidationErrors", err)
	}
	if len(errs) != 2 {
		t.Errorf("got %d validation errors, want 2: %v", len(errs), errs)
	}
	if !strings.Contains(err.Error(), "log.level") || !strings.Contains(err.Error(), "server.addr") {
		t.Errorf("Error() should name both fields: %s", err)
	}
}

func TestConfigDir(t *testing.T) {
	t.Run("uses XDG_CONFIG_HOME", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "/custom/config")
		if got := ConfigDir(); got != "/custom/config/mosaic" {
			t.Errorf("ConfigDir() = %q, want /custom/config/mosaic", got)
		}
	})

	t.Run("falls back to home", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "")
		home, err := os.UserHomeDir()
		if err != nil {
			t.Skip("no home directory")
		}
		want := filepath.Join(home, ".config", "mosaic")
		if got := ConfigDir(); got != want {
			t.Errorf("ConfigDir() = %q, want %q", got, want)
		}
	})
}
