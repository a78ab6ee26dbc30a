package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const defaultConfigFile = "recall.yaml"

// Config is the server configuration, loaded from a yaml file. A missing
// file is bootstrapped with a generated JWT secret and admin password.
type Config struct {
	Addr                  string `yaml:"addr"`
	SocketPath            string `yaml:"socket_path,omitempty"`
	DBPath                string `yaml:"db_path"`
	JWTSecret             string `yaml:"jwt_secret"`
	AccessTokenTTLMinutes int    `yaml:"access_token_ttl_minutes"`
	RefreshTokenTTLHours  int    `yaml:"refresh_token_ttl_hours"`
	AdminEmail            string `yaml:"admin_email"`
	AdminPassword         string `yaml:"admin_password"`
}

func (c Config) AccessTTL() time.Duration {
	return time.Duration(c.AccessTokenTTLMinutes) * time.Minute
}

func (c Config) RefreshTTL() time.Duration {
	return time.Duration(c.RefreshTokenTTLHours) * time.Hour
}

func ResolveConfigPath() string {
	if v := strings.TrimSpace(os.Getenv("RECALL_CONFIG")); v != "" {
		return v
	}
	return filepath.Join(".", defaultConfigFile)
}

func LoadConfigFromEnv() (Config, error) {
	return LoadConfig(ResolveConfigPath())
}

// LoadConfig reads the config at path, creating it with generated
// credentials on first run.
func LoadConfig(path string) (Config, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		path = defaultConfigFile
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg, err := BootstrapConfig(path)
			if err != nil {
				return Config{}, fmt.Errorf("bootstrap config: %w", err)
			}
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	applyDefaults(&cfg)
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("config %s missing jwt_secret", path)
	}
	return cfg, nil
}

// BootstrapConfig writes a fresh config with a generated JWT secret and
// admin password, mode 0600 since it holds credentials.
func BootstrapConfig(path string) (Config, error) {
	secret, err := GenerateSecret()
	if err != nil {
		return Config{}, err
	}
	password, err := GenerateSecret()
	if err != nil {
		return Config{}, err
	}
	cfg := Config{
		JWTSecret:     secret,
		AdminPassword: password,
	}
	applyDefaults(&cfg)
	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return Config{}, fmt.Errorf("marshal config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return Config{}, fmt.Errorf("create config dir: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return Config{}, fmt.Errorf("write config: %w", err)
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Addr == "" {
		cfg.Addr = ":7348"
	}
	if cfg.DBPath == "" {
		cfg.DBPath = "recall.db"
	}
	if cfg.AccessTokenTTLMinutes <= 0 {
		cfg.AccessTokenTTLMinutes = 60
	}
	if cfg.RefreshTokenTTLHours <= 0 {
		cfg.RefreshTokenTTLHours = 24 * 30
	}
	if cfg.AdminEmail == "" {
		cfg.AdminEmail = "admin@localhost"
	}
}

// GenerateSecret returns a 32-byte random secret, base64url encoded.
func GenerateSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate secret: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
