// Package daemon loads configuration and assembles the running service.
package daemon

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Environment overrides, applied after the config file.
const (
	EnvHome      = "GREENCREDITS_HOME"
	EnvAddr      = "GREENCREDITS_ADDR"
	EnvJWTSecret = "GREENCREDITS_JWT_SECRET"
	EnvStorage   = "GREENCREDITS_STORAGE"
)

// Storage backends.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

// Config is the contents of config.toml.
type Config struct {
	API     APIConfig     `toml:"api"`
	Auth    AuthConfig    `toml:"auth"`
	Storage StorageConfig `toml:"storage"`
	Uploads UploadsConfig `toml:"uploads"`
	Credits CreditsConfig `toml:"credits"`
	Log     LogConfig     `toml:"log"`
	Metrics MetricsConfig `toml:"metrics"`
}

type APIConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// Addr returns host:port.
func (c APIConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

type AuthConfig struct {
	JWTSecret  string   `toml:"jwt_secret"`
	SessionTTL string   `toml:"session_ttl"`
	OrgCodes   []string `toml:"org_codes"`
	BcryptCost int      `toml:"bcrypt_cost"`
	// SecureCookie marks the session cookie Secure (HTTPS only).
	SecureCookie bool `toml:"secure_cookie"`
}

// TTL parses SessionTTL, falling back to 24h.
func (c AuthConfig) TTL() time.Duration {
	d, err := time.ParseDuration(c.SessionTTL)
	if err != nil || d <= 0 {
		return 24 * time.Hour
	}
	return d
}

type StorageConfig struct {
	Backend string `toml:"backend"` // "memory" or "sqlite"
	Dir     string `toml:"dir"`     // SQLite data directory
}

type UploadsConfig struct {
	Dir     string `toml:"dir"`
	MaxSize string `toml:"max_size"` // e.g. "5MB"
}

// MaxBytes parses MaxSize.
func (c UploadsConfig) MaxBytes() int64 {
	return int64(parseStorageSize(c.MaxSize))
}

type CreditsConfig struct {
	QualityThreshold int   `toml:"quality_threshold"`
	BadgeBonus       int64 `toml:"badge_bonus"`
	LeaderboardSize  int   `toml:"leaderboard_size"`
	NextBadges       int   `toml:"next_badges"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

type MetricsConfig struct {
	Enabled bool `toml:"enabled"`
}

// DefaultConfig returns production defaults. Directories are filled in
// relative to the home directory by Load.
func DefaultConfig() Config {
	return Config{
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 3000,
		},
		Auth: AuthConfig{
			SessionTTL: "24h",
			OrgCodes:   []string{"MUNI2024", "ADMIN123", "GREENCITY"},
			BcryptCost: 10,
		},
		Storage: StorageConfig{
			Backend: BackendMemory,
		},
		Uploads: UploadsConfig{
			MaxSize: "5MB",
		},
		Credits: CreditsConfig{
			QualityThreshold: 80,
			BadgeBonus:       50,
			LeaderboardSize:  10,
			NextBadges:       3,
		},
		Log: LogConfig{
			Level: "info",
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Home returns $GREENCREDITS_HOME, or ~/.greencredits.
func Home() string {
	if env := os.Getenv(EnvHome); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".greencredits")
}

// ConfigPath returns the config file inside home.
func ConfigPath(home string) string {
	return filepath.Join(home, "config.toml")
}

// Load reads home/config.toml over the defaults, then applies environment
// overrides. A missing file is not an error.
func Load(home string) (Config, error) {
	cfg := DefaultConfig()

	path := ConfigPath(home)
	if _, err := toml.DecodeFile(path, &cfg); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("parse %s: %w", path, err)
	}

	if err := cfg.applyEnv(os.Getenv); err != nil {
		return Config{}, err
	}

	if cfg.Storage.Dir == "" {
		cfg.Storage.Dir = filepath.Join(home, "data")
	}
	if cfg.Uploads.Dir == "" {
		cfg.Uploads.Dir = filepath.Join(home, "uploads")
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv(getenv func(string) string) error {
	if addr := getenv(EnvAddr); addr != "" {
		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvAddr, err)
		}
		p, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("%s: bad port %q", EnvAddr, port)
		}
		c.API.Host, c.API.Port = host, p
	}
	if secret := getenv(EnvJWTSecret); secret != "" {
		c.Auth.JWTSecret = secret
	}
	if backend := getenv(EnvStorage); backend != "" {
		c.Storage.Backend = backend
	}
	return nil
}

// Validate rejects configurations the service cannot run with.
func (c Config) Validate() error {
	switch c.Storage.Backend {
	case BackendMemory, BackendSQLite:
	default:
		return fmt.Errorf("storage.backend: unknown backend %q", c.Storage.Backend)
	}
	if c.API.Port < 0 || c.API.Port > 65535 {
		return fmt.Errorf("api.port: %d out of range", c.API.Port)
	}
	if c.Credits.QualityThreshold < 1 || c.Credits.QualityThreshold > 100 {
		return fmt.Errorf("credits.quality_threshold: %d not in [1,100]", c.Credits.QualityThreshold)
	}
	return nil
}

// Save writes cfg as TOML to path.
func Save(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(cfg)
}

// parseStorageSize converts "5MB", "1GB" or a bare byte count. Empty or
// unparseable input returns 5MB.
func parseStorageSize(s string) uint64 {
	const fallback = 5 * 1024 * 1024

	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return fallback
	}
	units := []struct {
		suffix string
		mult   uint64
	}{
		{"TB", 1 << 40},
		{"GB", 1 << 30},
		{"MB", 1 << 20},
		{"KB", 1 << 10},
		{"B", 1},
	}
	for _, u := range units {
		if strings.HasSuffix(s, u.suffix) {
			n, err := strconv.ParseUint(strings.TrimSpace(strings.TrimSuffix(s, u.suffix)), 10, 64)
			if err != nil {
				return fallback
			}
			return n * u.mult
		}
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}
