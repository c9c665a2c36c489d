package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config is the top-level cryams configuration, read from cryams.yaml and
// CRYAMS_* environment variables.
type Config struct {
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	DataDir   string          `yaml:"data_dir" mapstructure:"data_dir"`
	Auth      AuthConfig      `yaml:"auth" mapstructure:"auth"`
	Mail      MailConfig      `yaml:"mail" mapstructure:"mail"`
	RateLimit RateLimitConfig `yaml:"ratelimit" mapstructure:"ratelimit"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
	MCP       MCPConfig       `yaml:"mcp" mapstructure:"mcp"`
}

// ServerConfig controls the HTTP server behavior.
type ServerConfig struct {
	Host string `yaml:"host" mapstructure:"host"`
	Port int    `yaml:"port" mapstructure:"port"`
	// BaseURL is the public origin encoded into QR codes.
	BaseURL         string   `yaml:"base_url" mapstructure:"base_url"`
	ShutdownTimeout string   `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
	CORSOrigins     []string `yaml:"cors_origins" mapstructure:"cors_origins"`
	// TrustProxy takes the client address from X-Forwarded-For or X-Real-IP.
	// Enable it only behind a reverse proxy that overwrites those headers.
	TrustProxy      bool     `yaml:"trust_proxy" mapstructure:"trust_proxy"`
}

// AuthConfig controls the admin account and sessions.
type AuthConfig struct {
	JWTSecret         string `yaml:"jwt_secret" mapstructure:"jwt_secret"`
	SessionTTL        string `yaml:"session_ttl" mapstructure:"session_ttl"`
	BcryptCost        int    `yaml:"bcrypt_cost" mapstructure:"bcrypt_cost"`
	MinPasswordLength int    `yaml:"min_password_length" mapstructure:"min_password_length"`
	StrongPasswords   bool   `yaml:"strong_passwords" mapstructure:"strong_passwords"`
}

// MailConfig holds the SMTP relay settings. An empty host logs messages
// instead of sending them.
type MailConfig struct {
	Host     string `yaml:"host" mapstructure:"host"`
	Port     int    `yaml:"port" mapstructure:"port"`
	Username string `yaml:"username" mapstructure:"username"`
	Password string `yaml:"password" mapstructure:"password"`
	From     string `yaml:"from" mapstructure:"from"`
	// AdminNotify receives a notice for each new profile request.
	AdminNotify string `yaml:"admin_notify" mapstructure:"admin_notify"`
	TLS         string `yaml:"tls" mapstructure:"tls"`
}

// RateLimitConfig sets per-IP request budgets per minute.
type RateLimitConfig struct {
	PublicPerMinute int `yaml:"public_per_minute" mapstructure:"public_per_minute"`
	LoginPerMinute  int `yaml:"login_per_minute" mapstructure:"login_per_minute"`
}

// LogConfig controls log output.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// MCPConfig controls the MCP server started by "cryams mcp".
type MCPConfig struct {
	Transport string `yaml:"transport" mapstructure:"transport"`
	Addr      string `yaml:"addr" mapstructure:"addr"`
}

// Defaults returns a Config pre-filled with sensible defaults.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            3000,
			BaseURL:         "http://localhost:3000",
			ShutdownTimeout: "30s",
			CORSOrigins:     []string{},
		},
		DataDir: "./data",
		Auth: AuthConfig{
			SessionTTL:        "8h",
			BcryptCost:        12,
			MinPasswordLength: 12,
			StrongPasswords:   true,
		},
		Mail: MailConfig{
			Port: 587,
			TLS:  "mandatory",
		},
		RateLimit: RateLimitConfig{
			PublicPerMinute: 10,
			LoginPerMinute:  5,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		MCP: MCPConfig{
			Transport: "stdio",
			Addr:      "127.0.0.1:3001",
		},
	}
}

// SetDefaults registers every key of Defaults with v, so that environment
// variables are honoured even for keys absent from the config file.
func SetDefaults(v *viper.Viper) error {
	data, err := yaml.Marshal(Defaults())
	if err != nil {
		return err
	}
	var m map[string]interface{}
	if err := yaml.Unmarshal(data, &m); err != nil {
		return err
	}
	setDefaults(v, "", m)
	return nil
}

func setDefaults(v *viper.Viper, prefix string, m map[string]interface{}) {
	for k, val := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if sub, ok := val.(map[string]interface{}); ok {
			setDefaults(v, key, sub)
			continue
		}
		v.SetDefault(key, val)
	}
}

// Load decodes the effective configuration from v and validates it.
func Load(v *viper.Viper) (*Config, error) {
	cfg := Defaults()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	if _, err := time.ParseDuration(c.Server.ShutdownTimeout); err != nil {
		return fmt.Errorf("server.shutdown_timeout: %w", err)
	}
	if ttl, err := time.ParseDuration(c.Auth.SessionTTL); err != nil || ttl <= 0 {
		return fmt.Errorf("auth.session_ttl: must be a positive duration, got %q", c.Auth.SessionTTL)
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port: %d out of range", c.Server.Port)
	}
	if c.DataDir == "" {
		return fmt.Errorf("data_dir must not be empty")
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format: want text or json, got %q", c.Log.Format)
	}
	return nil
}

// ShutdownTimeout returns server.shutdown_timeout as a duration.
func (c *Config) ShutdownTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Server.ShutdownTimeout)
	return d
}

// SessionTTL returns auth.session_ttl as a duration.
func (c *Config) SessionTTL() time.Duration {
	d, _ := time.ParseDuration(c.Auth.SessionTTL)
	return d
}

// Addr is the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// BaseURL returns server.base_url without a trailing slash.
func (c *Config) BaseURL() string {
	return strings.TrimRight(c.Server.BaseURL, "/")
}

func (c *Config) ProfilesPath() string   { return filepath.Join(c.DataDir, "profiles.json") }
func (c *Config) RequestsPath() string   { return filepath.Join(c.DataDir, "requests.json") }
func (c *Config) CredentialPath() string { return filepath.Join(c.DataDir, "admin-config.json") }

// EnsureJWTSecret fills an empty auth.jwt_secret with a random value and
// reports whether it did. Sessions signed with a generated secret do not
// survive a restart.
func (c *Config) EnsureJWTSecret() (bool, error) {
	if c.Auth.JWTSecret != "" {
		return false, nil
	}
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return false, fmt.Errorf("generate jwt secret: %w", err)
	}
	c.Auth.JWTSecret = hex.EncodeToString(b)
	return true, nil
}

// WriteDefaultConfig writes the default configuration to a YAML file.
func WriteDefaultConfig(path string) error {
	data, err := yaml.Marshal(Defaults())
	if err != nil {
		return err
	}
	header := "# cryams configuration. Every key can be overridden with CRYAMS_<SECTION>_<KEY>,\n" +
		"# e.g. CRYAMS_AUTH_JWT_SECRET or CRYAMS_MAIL_HOST.\n"
	return os.WriteFile(path, append([]byte(header), data...), 0644)
}
