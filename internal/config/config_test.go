package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("Driver = %q, expected sqlite", cfg.Database.Driver)
	}
	if cfg.Reconcile.Cron == "" {
		t.Error("reconcile cron should have a default")
	}
}

func TestLoad_FileKeepsUnsetDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte("database:\n  driver: postgres\n  dsn: host=db\nios:\n  githubToken: abc\n")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Database.Driver != "postgres" || cfg.Database.DSN != "host=db" {
		t.Errorf("database = %+v", cfg.Database)
	}
	if cfg.Server.Port != "7007" {
		t.Errorf("Port = %q, expected default 7007", cfg.Server.Port)
	}
	if v, ok := cfg.Value("githubToken"); !ok || v != "abc" {
		t.Errorf("Value(githubToken) = %q, %v", v, ok)
	}
}

func TestValue_AcceptsPrefixedKey(t *testing.T) {
	cfg := DefaultConfig()
	cfg.IOS["githubToken"] = "tok"

	tests := []struct {
		key  string
		want string
		ok   bool
	}{
		{"githubToken", "tok", true},
		{"ios.githubToken", "tok", true},
		{"missing", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, ok := cfg.Value(tt.key)
			if got != tt.want || ok != tt.ok {
				t.Errorf("Value(%q) = %q, %v; expected %q, %v", tt.key, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestOverrideFromEnv(t *testing.T) {
	t.Setenv("DB_DRIVER", "mysql")
	t.Setenv("AUTH_ENABLED", "true")
	t.Setenv("IOS_GITHUB_TOKEN", "from-env")
	t.Setenv("REDIS_URL", "redis://:pw@cache:6380/2")

	cfg := DefaultConfig()
	cfg.overrideFromEnv()

	if cfg.Database.Driver != "mysql" {
		t.Errorf("Driver = %q", cfg.Database.Driver)
	}
	if !cfg.Auth.Enabled {
		t.Error("auth should be enabled")
	}
	if cfg.IOS["githubToken"] != "from-env" {
		t.Errorf("githubToken = %q", cfg.IOS["githubToken"])
	}
	if !cfg.Redis.Enabled || cfg.Redis.Addr != "cache:6380" || cfg.Redis.Password != "pw" || cfg.Redis.DB != 2 {
		t.Errorf("redis = %+v", cfg.Redis)
	}
}
