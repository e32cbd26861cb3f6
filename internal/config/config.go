package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig      `yaml:"server"`
	Database  DatabaseConfig    `yaml:"database"`
	Auth      AuthConfig        `yaml:"auth"`
	Redis     RedisConfig       `yaml:"redis"`
	Log       LogConfig         `yaml:"log"`
	Audit     AuditConfig       `yaml:"audit"`
	Reconcile ReconcileConfig   `yaml:"reconcile"`
	IOS       map[string]string `yaml:"ios"` // served read-only by GET /config/:configId
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port string `yaml:"port"`
	Mode string `yaml:"mode"` // debug, release, test

	AllowOrigins []string `yaml:"allow_origins"`
	// Per-IP limit applied to write routes.
	WriteRPS   float64 `yaml:"write_rps"`
	WriteBurst int     `yaml:"write_burst"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"` // sqlite, mysql, postgres
	DSN    string `yaml:"dsn"`
}

// AuthConfig describes how caller identity tokens are verified. Tokens are
// issued by the portal's identity provider with a shared HS256 secret.
type AuthConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Secret      string `yaml:"secret"`
	ExpireHour  int    `yaml:"expire_hour"`
	DefaultUser string `yaml:"default_user"` // identity used when auth is disabled
}

// RedisConfig for optional async task queue
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type AuditConfig struct {
	RetentionDays int `yaml:"retention_days"` // 0 keeps audit rows forever
}

// ReconcileConfig schedules the ledger reconciliation job.
type ReconcileConfig struct {
	Enabled         bool   `yaml:"enabled"`
	Cron            string `yaml:"cron"`
	RecountCounters bool   `yaml:"recount_counters"`
}

var GlobalConfig *Config

func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "config.yaml"
	}

	var cfg *Config

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg = DefaultConfig()
	} else {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, err
		}

		fileCfg := DefaultConfig()
		if err := yaml.Unmarshal(data, fileCfg); err != nil {
			return nil, err
		}
		cfg = fileCfg
	}

	cfg.overrideFromEnv()
	GlobalConfig = cfg
	return cfg, nil
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: "7007",
			Mode: "debug",

			AllowOrigins: []string{"*"},
			WriteRPS:     10,
			WriteBurst:   20,
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "ios.db",
		},
		Auth: AuthConfig{
			Enabled:     false,
			Secret:      "ios-secret-key-change-in-production",
			ExpireHour:  24,
			DefaultUser: "user:default/guest",
		},
		Redis: RedisConfig{
			Enabled: false,
			Addr:    "localhost:6379",
			DB:      0,
		},
		Log: LogConfig{
			Level: "info",
		},
		Audit: AuditConfig{
			RetentionDays: 30,
		},
		Reconcile: ReconcileConfig{
			Enabled:         true,
			Cron:            "30 3 * * *",
			RecountCounters: true,
		},
		IOS: map[string]string{},
	}
}

// Value returns the ios.<key> entry. Keys may be written either as
// "githubToken" or with the "ios." prefix.
func (c *Config) Value(key string) (string, bool) {
	key = strings.TrimPrefix(key, "ios.")
	v, ok := c.IOS[key]
	return v, ok
}

func (c *Config) overrideFromEnv() {
	if host := os.Getenv("SERVER_HOST"); host != "" {
		c.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		c.Server.Port = port
	}
	if mode := os.Getenv("SERVER_MODE"); mode != "" {
		c.Server.Mode = mode
	}
	if driver := os.Getenv("DB_DRIVER"); driver != "" {
		c.Database.Driver = driver
	}
	if dsn := os.Getenv("DB_DSN"); dsn != "" {
		c.Database.DSN = dsn
	}
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		c.Auth.Secret = secret
	}
	if enabled := os.Getenv("AUTH_ENABLED"); enabled != "" {
		if v, err := strconv.ParseBool(enabled); err == nil {
			c.Auth.Enabled = v
		}
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}
	if expr := os.Getenv("RECONCILE_CRON"); expr != "" {
		c.Reconcile.Cron = expr
	}
	if token := os.Getenv("IOS_GITHUB_TOKEN"); token != "" {
		if c.IOS == nil {
			c.IOS = map[string]string{}
		}
		c.IOS["githubToken"] = token
	}
	// Redis URL override (format: redis://:password@host:port/db)
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		c.Redis.Enabled = true
		c.parseRedisURL(redisURL)
	}
}

// parseRedisURL parses a Redis URL and sets config values
// Format: redis://:password@host:port/db
func (c *Config) parseRedisURL(redisURL string) {
	url := strings.TrimPrefix(redisURL, "redis://")

	if atIdx := strings.Index(url, "@"); atIdx != -1 {
		authPart := url[:atIdx]
		url = url[atIdx+1:]
		// :password or user:password
		if colonIdx := strings.Index(authPart, ":"); colonIdx != -1 {
			c.Redis.Password = authPart[colonIdx+1:]
		}
	}

	if slashIdx := strings.LastIndex(url, "/"); slashIdx != -1 {
		dbStr := url[slashIdx+1:]
		url = url[:slashIdx]
		if db, err := strconv.Atoi(dbStr); err == nil {
			c.Redis.DB = db
		}
	}

	c.Redis.Addr = url
}

func (c *Config) Save(configPath string) error {
	if configPath == "" {
		configPath = "config.yaml"
	}

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(configPath, data, 0644)
}
