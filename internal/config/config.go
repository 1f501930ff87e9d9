package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/viper"
)

type StoreType string

const (
	StoreTypeMemory StoreType = "memory"
	StoreTypeRedis  StoreType = "redis"
	StoreTypeSQLite StoreType = "sqlite"
)

// Config holds the configuration for the console server and its dependencies.
type Config struct {
	// Listen is the address the console will listen on.
	Listen string `yaml:"listen" mapstructure:"listen"`
	// ServerURL is the external base URL of the console.
	ServerURL string `yaml:"server_url" mapstructure:"server_url"`
	// LogLevel is the default log level. The --log-level flag takes precedence.
	LogLevel string `yaml:"log_level" mapstructure:"log_level"`
	// SessionKey is the key used to sign the browser cookie.
	SessionKey string `yaml:"session_key" mapstructure:"session_key"`
	// SessionMaxAge is the maximum age of a browser session in seconds.
	SessionMaxAge int `yaml:"session_max_age" mapstructure:"session_max_age"`
	// LoginParam is the query parameter carrying the one-time login token.
	LoginParam string `yaml:"login_param" mapstructure:"login_param"`
	// GateIdleTimeout is how long an idle browser keeps its in-memory auth state.
	GateIdleTimeout time.Duration `yaml:"gate_idle_timeout" mapstructure:"gate_idle_timeout"`
	// AdminRoles lists the user roles that are treated as administrators (case-insensitive).
	AdminRoles []string `yaml:"admin_roles" mapstructure:"admin_roles"`
	// Platform holds the configuration of the bot platform backend.
	Platform *PlatformConfig `yaml:"platform" mapstructure:"platform"`
	// CloudPassword holds the secondary password policy.
	CloudPassword *CloudPasswordConfig `yaml:"cloud_password" mapstructure:"cloud_password"`
	// Store holds the persisted session store configuration.
	Store *StoreConfig `yaml:"store" mapstructure:"store"`
	// Gravatar holds the configuration for fallback profile pictures.
	Gravatar *GravatarConfig `yaml:"gravatar" mapstructure:"gravatar"`
}

// PlatformConfig holds the configuration for the platform backend.
type PlatformConfig struct {
	// URL is the base URL of the platform API.
	URL string `yaml:"url" mapstructure:"url"`
	// Timeout bounds every request to the platform.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
	// StatusTimeout bounds the background cloud password status check.
	StatusTimeout time.Duration `yaml:"status_timeout" mapstructure:"status_timeout"`
}

// CloudPasswordConfig holds the secondary password policy.
type CloudPasswordConfig struct {
	// MinLength is the minimum length of a new cloud password.
	MinLength int `yaml:"min_length" mapstructure:"min_length"`
	// MaxAttempts is the number of consecutive failed verifications before a cooldown. 0 disables the limit.
	MaxAttempts int `yaml:"max_attempts" mapstructure:"max_attempts"`
	// Cooldown is how long verification is locked after MaxAttempts failures.
	Cooldown time.Duration `yaml:"cooldown" mapstructure:"cooldown"`
}

// StoreConfig holds the persisted session store configuration.
type StoreConfig struct {
	// Type is the backend type: memory, redis or sqlite.
	Type StoreType `yaml:"type" mapstructure:"type"`
	// RedisURL is the address of the redis server.
	RedisURL string `yaml:"redis_url" mapstructure:"redis_url"`
	// Path is the path to the sqlite database file.
	Path string `yaml:"path" mapstructure:"path"`
	// PurgeInterval is how often expired sqlite records are removed.
	PurgeInterval time.Duration `yaml:"purge_interval" mapstructure:"purge_interval"`
}

// GravatarConfig holds the configuration for Gravatar fallback avatars.
type GravatarConfig struct {
	// Enabled indicates whether Gravatar fallback avatars are enabled.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	// DefaultImage is the generated image style (identicon, retro, robohash, ...).
	DefaultImage string `yaml:"default_image" mapstructure:"default_image"`
	// Rating is the maximum rating of the image.
	Rating string `yaml:"rating" mapstructure:"rating"`
	// Size is the size of the image in pixels.
	Size int `yaml:"size" mapstructure:"size"`
}

// Load reads the configuration from the given file (or the default locations) and the environment.
func Load(path string) (*Config, error) {
	v := viper.New()

	bindNestedEnv(v)

	setDefaults(v)

	v.SetConfigType("yaml")
	v.SetEnvPrefix("BOTCONSOLE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var configFileFound bool
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.botconsole")
		v.AddConfigPath("/etc/botconsole")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		configFileFound = true
	}

	if configFileFound {
		log.Debug("Using config file", "file", v.ConfigFileUsed())
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	sanitizeConfig(&c)

	if err := validateConfig(&c); err != nil {
		return nil, err
	}

	return &c, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listen", "0.0.0.0:3003")
	v.SetDefault("server_url", "http://localhost:3003")
	v.SetDefault("log_level", "info")
	v.SetDefault("session_key", "")
	v.SetDefault("session_max_age", 604800) // 7 days
	v.SetDefault("login_param", "token")
	v.SetDefault("gate_idle_timeout", 2*time.Hour)
	v.SetDefault("admin_roles", []string{"admin", "owner"})

	v.SetDefault("platform.url", "")
	v.SetDefault("platform.timeout", 15*time.Second)
	v.SetDefault("platform.status_timeout", 10*time.Second)

	v.SetDefault("cloud_password.min_length", 8)
	v.SetDefault("cloud_password.max_attempts", 5)
	v.SetDefault("cloud_password.cooldown", 30*time.Second)

	v.SetDefault("store.type", StoreTypeMemory)
	v.SetDefault("store.redis_url", "")
	v.SetDefault("store.path", "./data/botconsole.db")
	v.SetDefault("store.purge_interval", time.Hour)

	v.SetDefault("gravatar.enabled", false)
	v.SetDefault("gravatar.default_image", "identicon")
	v.SetDefault("gravatar.rating", "g")
	v.SetDefault("gravatar.size", 80)
}

func bindNestedEnv(v *viper.Viper) {
	v.MustBindEnv("platform.url", "BOTCONSOLE_PLATFORM_URL")
	v.MustBindEnv("store.type", "BOTCONSOLE_STORE_TYPE")
	v.MustBindEnv("store.redis_url", "BOTCONSOLE_STORE_REDIS_URL")
	v.MustBindEnv("store.path", "BOTCONSOLE_STORE_PATH")
}

func validateConfig(c *Config) error {
	if c == nil {
		return fmt.Errorf("missing botconsole config")
	}

	if c.SessionKey == "" {
		return fmt.Errorf("session key is required")
	}

	if c.SessionMaxAge <= 0 {
		return fmt.Errorf("session max age must be greater than 0")
	}

	if c.LoginParam == "" {
		return fmt.Errorf("login param is required")
	}

	if c.Platform == nil || c.Platform.URL == "" {
		return fmt.Errorf("platform URL is required")
	}

	if c.CloudPassword == nil {
		return fmt.Errorf("missing cloud password config")
	}
	if c.CloudPassword.MinLength < 1 {
		return fmt.Errorf("cloud password min length must be at least 1")
	}
	if c.CloudPassword.MaxAttempts < 0 {
		return fmt.Errorf("cloud password max attempts must not be negative")
	}
	if c.CloudPassword.MaxAttempts > 0 && c.CloudPassword.Cooldown <= 0 {
		return fmt.Errorf("cloud password cooldown is required when max attempts is set")
	}

	if c.Store == nil {
		c.Store = &StoreConfig{Type: StoreTypeMemory}
	}
	switch c.Store.Type {
	case StoreTypeMemory:
	case StoreTypeRedis:
		if c.Store.RedisURL == "" {
			return fmt.Errorf("Redis URL is required when the redis store is enabled") //nolint:staticcheck
		}
	case StoreTypeSQLite:
		if c.Store.Path == "" {
			return fmt.Errorf("database path is required when the sqlite store is enabled")
		}
	default:
		return fmt.Errorf("unknown store type %q", c.Store.Type)
	}

	return nil
}

func sanitizeConfig(c *Config) {
	if c == nil {
		return
	}

	c.Listen = urlSanitize(c.Listen)
	c.LoginParam = strings.TrimSpace(c.LoginParam)

	if c.ServerURL != "" {
		c.ServerURL = urlSanitize(c.ServerURL)
	}

	if c.Platform != nil {
		c.Platform.URL = urlSanitize(c.Platform.URL)
	}

	if c.Store != nil {
		c.Store.Type = StoreType(strings.ToLower(strings.TrimSpace(string(c.Store.Type))))
	}

	roles := c.AdminRoles[:0]
	for _, role := range c.AdminRoles {
		if role = strings.TrimSpace(role); role != "" {
			roles = append(roles, role)
		}
	}
	c.AdminRoles = roles
}

func urlSanitize(url string) string {
	return strings.TrimSuffix(strings.TrimSpace(url), "/")
}

// SessionMaxAgeDuration returns SessionMaxAge as a duration.
func (c *Config) SessionMaxAgeDuration() time.Duration {
	return time.Duration(c.SessionMaxAge) * time.Second
}
