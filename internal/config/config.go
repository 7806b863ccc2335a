// Package config loads the chamber logger configuration from defaults, an
// optional YAML file, a .env file and the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/url"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the complete application configuration
type Config struct {
	MQTT      MQTTConfig      `mapstructure:"mqtt"`
	Chamber   ChamberConfig   `mapstructure:"chamber"`
	KeepAlive KeepAliveConfig `mapstructure:"keepalive"`
	Archive   ArchiveConfig   `mapstructure:"archive"`
	Storage   StorageConfig   `mapstructure:"storage"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// MQTTConfig defines the broker connection and topics
type MQTTConfig struct {
	Broker      string `mapstructure:"broker"`
	Port        int    `mapstructure:"port"`
	Topic       string `mapstructure:"topic"`
	StatusTopic string `mapstructure:"status_topic"`
	ClientID    string `mapstructure:"client_id"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
}

// ChamberConfig defines activity detection and sampling
type ChamberConfig struct {
	LogInterval      time.Duration `mapstructure:"log_interval"`
	TimeoutOff       time.Duration `mapstructure:"timeout_off"`
	TickInterval     time.Duration `mapstructure:"tick_interval"`
	TimezoneOffset   int           `mapstructure:"timezone_offset"` // hours east of UTC
	StartupThreshold time.Duration `mapstructure:"startup_threshold"`
	SessionLookback  time.Duration `mapstructure:"session_lookback"`
	StatusMarkers    bool          `mapstructure:"status_markers"` // write ON markers too
}

// KeepAliveConfig defines the idle-time liveness pinger
type KeepAliveConfig struct {
	URL      string        `mapstructure:"url"`
	Interval time.Duration `mapstructure:"interval"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// ArchiveConfig defines where session archives go
type ArchiveConfig struct {
	Folder       string `mapstructure:"folder"`
	GitPush      bool   `mapstructure:"git_push"`
	GitRemote    string `mapstructure:"git_remote"`
	GitBranch    string `mapstructure:"git_branch"`
	GitUserName  string `mapstructure:"git_user_name"`
	GitUserEmail string `mapstructure:"git_user_email"`
	SSHKey       string `mapstructure:"ssh_key"`
}

// StorageConfig selects and configures the durable store
type StorageConfig struct {
	Type       string           `mapstructure:"type"`
	Redis      RedisConfig      `mapstructure:"redis"`
	ClickHouse ClickHouseConfig `mapstructure:"clickhouse"`
}

// RedisConfig defines the Redis backend
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// ClickHouseConfig defines the ClickHouse backend
type ClickHouseConfig struct {
	Addr     string `mapstructure:"addr"`
	Database string `mapstructure:"database"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// HTTPConfig defines the status server listener
type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
	Port int    `mapstructure:"port"`
}

// LoggingConfig defines logging behavior
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Storage types.
const (
	StorageRedis      = "redis"
	StorageClickHouse = "clickhouse"
	StorageMemory     = "memory"
)

// envNames maps config keys to the environment variables deployments use.
var envNames = map[string]string{
	"mqtt.broker":                 "MQTT_BROKER",
	"mqtt.port":                   "MQTT_PORT",
	"mqtt.topic":                  "MQTT_TOPIC",
	"mqtt.status_topic":           "MQTT_STATUS_TOPIC",
	"mqtt.client_id":              "MQTT_CLIENT_ID",
	"mqtt.username":               "MQTT_USERNAME",
	"mqtt.password":               "MQTT_PASSWORD",
	"chamber.log_interval":        "LOG_INTERVAL",
	"chamber.timeout_off":         "TIMEOUT_OFF",
	"chamber.tick_interval":       "TICK_INTERVAL",
	"chamber.timezone_offset":     "TIMEZONE_OFFSET",
	"chamber.startup_threshold":   "STARTUP_OFF_THRESHOLD",
	"chamber.session_lookback":    "SESSION_LOOKBACK",
	"chamber.status_markers":      "STATUS_MARKERS",
	"keepalive.url":               "REPLIT_PING_URL",
	"keepalive.interval":          "KEEP_ALIVE_INTERVAL_SECONDS",
	"keepalive.timeout":           "KEEP_ALIVE_TIMEOUT",
	"archive.folder":              "ARCHIVE_FOLDER",
	"archive.git_push":            "ARCHIVE_GIT_PUSH",
	"archive.git_remote":          "GIT_REMOTE",
	"archive.git_branch":          "GIT_BRANCH",
	"archive.git_user_name":       "GIT_USER_NAME",
	"archive.git_user_email":      "GIT_USER_EMAIL",
	"archive.ssh_key":             "SSH_PRIVATE_KEY",
	"storage.type":                "STORAGE_TYPE",
	"storage.redis.addr":          "REDIS_ADDR",
	"storage.redis.password":      "REDIS_PASSWORD",
	"storage.redis.db":            "REDIS_DB",
	"storage.redis.prefix":        "REDIS_PREFIX",
	"storage.clickhouse.addr":     "CLICKHOUSE_ADDR",
	"storage.clickhouse.database": "CLICKHOUSE_DB",
	"storage.clickhouse.username": "CLICKHOUSE_USER",
	"storage.clickhouse.password": "CLICKHOUSE_PASS",
	"http.addr":                   "HTTP_ADDR",
	"http.port":                   "PORT",
	"logging.level":               "LOG_LEVEL",
	"logging.format":              "LOG_FORMAT",
}

// Load loads configuration from file and environment variables. An empty
// configPath or a missing file falls back to defaults and the environment.
func Load(configPath string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	for key, env := range envNames {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(durationHook)); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("mqtt.broker", "broker.hivemq.com")
	v.SetDefault("mqtt.port", 1883)
	v.SetDefault("mqtt.topic", "chamber/log")
	v.SetDefault("mqtt.status_topic", "chamber/status")
	v.SetDefault("mqtt.client_id", "")

	v.SetDefault("chamber.log_interval", "60s")
	v.SetDefault("chamber.timeout_off", "180s")
	v.SetDefault("chamber.tick_interval", "1s")
	v.SetDefault("chamber.timezone_offset", 7)
	v.SetDefault("chamber.startup_threshold", "180s")
	v.SetDefault("chamber.session_lookback", "24h")
	v.SetDefault("chamber.status_markers", false)

	v.SetDefault("keepalive.url", "")
	v.SetDefault("keepalive.interval", "120s")
	v.SetDefault("keepalive.timeout", "10s")

	v.SetDefault("archive.folder", "archives")
	v.SetDefault("archive.git_push", false)
	v.SetDefault("archive.git_remote", "origin")
	v.SetDefault("archive.git_branch", "main")

	v.SetDefault("storage.type", StorageRedis)
	v.SetDefault("storage.redis.addr", "localhost:6379")
	v.SetDefault("storage.redis.db", 0)
	v.SetDefault("storage.redis.prefix", "chamber:log")
	v.SetDefault("storage.clickhouse.addr", "localhost:9000")
	v.SetDefault("storage.clickhouse.database", "default")
	v.SetDefault("storage.clickhouse.username", "default")

	v.SetDefault("http.addr", "")
	v.SetDefault("http.port", 5000)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

// validate validates the configuration
func validate(cfg *Config) error {
	c := cfg.Chamber
	durations := []struct {
		name string
		d    time.Duration
	}{
		{"log interval", c.LogInterval},
		{"timeout off", c.TimeoutOff},
		{"tick interval", c.TickInterval},
		{"startup threshold", c.StartupThreshold},
		{"session lookback", c.SessionLookback},
		{"keep-alive interval", cfg.KeepAlive.Interval},
		{"keep-alive timeout", cfg.KeepAlive.Timeout},
	}
	for _, d := range durations {
		if d.d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", d.name, d.d)
		}
	}
	if c.TimeoutOff <= c.LogInterval {
		return fmt.Errorf("timeout off (%s) must exceed log interval (%s)", c.TimeoutOff, c.LogInterval)
	}
	if c.TimezoneOffset < -12 || c.TimezoneOffset > 14 {
		return fmt.Errorf("invalid timezone offset: %d", c.TimezoneOffset)
	}

	switch cfg.Storage.Type {
	case StorageRedis, StorageClickHouse, StorageMemory:
	default:
		return fmt.Errorf("unknown storage type: %q", cfg.Storage.Type)
	}

	if cfg.MQTT.Broker == "" {
		return fmt.Errorf("mqtt broker is required")
	}
	if cfg.MQTT.Topic == "" {
		return fmt.Errorf("mqtt topic is required")
	}
	if cfg.MQTT.Port < 0 || cfg.MQTT.Port > 65535 {
		return fmt.Errorf("invalid MQTT port: %d", cfg.MQTT.Port)
	}
	if cfg.HTTP.Addr == "" && (cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535) {
		return fmt.Errorf("invalid HTTP port: %d", cfg.HTTP.Port)
	}
	return nil
}

// Location returns the fixed display timezone.
func (c ChamberConfig) Location() *time.Location {
	return time.FixedZone(fmt.Sprintf("UTC%+03d", c.TimezoneOffset), c.TimezoneOffset*3600)
}

// BrokerURL returns the broker as a paho URL. A bare host gets the tcp
// scheme, and Port is applied when the broker does not name one.
func (m MQTTConfig) BrokerURL() string {
	b := m.Broker
	if !strings.Contains(b, "://") {
		b = "tcp://" + b
	}
	u, err := url.Parse(b)
	if err != nil || u.Port() != "" || m.Port == 0 {
		return b
	}
	u.Host = net.JoinHostPort(u.Hostname(), strconv.Itoa(m.Port))
	return u.String()
}

// ListenAddr returns the HTTP listen address. HTTP_ADDR wins over PORT.
func (h HTTPConfig) ListenAddr() string {
	if h.Addr != "" {
		return h.Addr
	}
	return ":" + strconv.Itoa(h.Port)
}

var durationType = reflect.TypeOf(time.Duration(0))

// durationHook decodes durations from Go duration strings or from bare
// numbers meaning seconds.
func durationHook(from, to reflect.Type, data interface{}) (interface{}, error) {
	if to != durationType {
		return data, nil
	}
	switch v := data.(type) {
	case string:
		return ParseSeconds(v)
	case int:
		return time.Duration(v) * time.Second, nil
	case int64:
		return time.Duration(v) * time.Second, nil
	case float64:
		return time.Duration(v * float64(time.Second)), nil
	}
	return data, nil
}

// ParseSeconds parses "90s"-style durations and bare integers of seconds.
func ParseSeconds(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	return d, nil
}
