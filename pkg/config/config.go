package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Server struct {
		Address         string        `yaml:"address"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Signal struct {
		PingInterval    time.Duration `yaml:"ping_interval"`
		PongTimeout     time.Duration `yaml:"pong_timeout"`
		DeliverInterval time.Duration `yaml:"deliver_interval"`
	} `yaml:"signal"`

	Room struct {
		TTL          time.Duration `yaml:"ttl"`
		MailboxTTL   time.Duration `yaml:"mailbox_ttl"`
		MailboxLimit int           `yaml:"mailbox_limit"`
	} `yaml:"room"`

	Peer struct {
		PollInterval      time.Duration `yaml:"poll_interval"`
		RequestTimeout    time.Duration `yaml:"request_timeout"`
		ReconnectAttempts int           `yaml:"reconnect_attempts"`
		ReconnectBase     time.Duration `yaml:"reconnect_base_delay"`
		ReconnectMax      time.Duration `yaml:"reconnect_max_delay"`
		LatencyInterval   time.Duration `yaml:"latency_interval"`
	} `yaml:"peer"`

	WebRTC struct {
		ICEServers []struct {
			URLs       []string `yaml:"urls"`
			Username   string   `yaml:"username,omitempty"`
			Credential string   `yaml:"credential,omitempty"`
		} `yaml:"ice_servers"`
	} `yaml:"webrtc"`

	Monitoring struct {
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`

	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		PoolSize int    `yaml:"pool_size"`
	} `yaml:"redis"`

	RateLimiting struct {
		Enabled           bool    `yaml:"enabled"`
		RequestsPerSecond float64 `yaml:"requests_per_second"`
		Burst             int     `yaml:"burst"`
	} `yaml:"rate_limiting"`

	Blob struct {
		Dir string `yaml:"dir"`
	} `yaml:"blob"`
}

// Validate checks that configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	if c.Server.Address == "" {
		return fmt.Errorf("server.address must not be empty")
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server.read_timeout must be > 0")
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server.write_timeout must be > 0")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server.shutdown_timeout must be > 0")
	}

	if c.Signal.PingInterval <= 0 {
		return fmt.Errorf("signal.ping_interval must be > 0")
	}
	if c.Signal.PongTimeout <= 0 {
		return fmt.Errorf("signal.pong_timeout must be > 0")
	}
	if c.Signal.DeliverInterval <= 0 {
		return fmt.Errorf("signal.deliver_interval must be > 0")
	}

	if c.Room.TTL <= 0 {
		return fmt.Errorf("room.ttl must be > 0")
	}
	if c.Room.MailboxTTL < 60*time.Second || c.Room.MailboxTTL > 300*time.Second {
		return fmt.Errorf("room.mailbox_ttl must be between 60s and 300s")
	}
	if c.Room.MailboxTTL >= c.Room.TTL {
		return fmt.Errorf("room.mailbox_ttl must be shorter than room.ttl")
	}
	if c.Room.MailboxLimit <= 0 {
		return fmt.Errorf("room.mailbox_limit must be > 0")
	}

	if c.Peer.PollInterval <= 0 {
		return fmt.Errorf("peer.poll_interval must be > 0")
	}
	if c.Peer.RequestTimeout <= 0 {
		return fmt.Errorf("peer.request_timeout must be > 0")
	}
	if c.Peer.ReconnectAttempts < 0 {
		return fmt.Errorf("peer.reconnect_attempts must be >= 0")
	}
	if c.Peer.ReconnectBase <= 0 || c.Peer.ReconnectMax < c.Peer.ReconnectBase {
		return fmt.Errorf("peer reconnect delays must satisfy 0 < base <= max")
	}
	if c.Peer.LatencyInterval <= 0 {
		return fmt.Errorf("peer.latency_interval must be > 0")
	}

	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort <= 0 {
		return fmt.Errorf("monitoring.prometheus_port must be > 0 when prometheus_enabled=true")
	}

	if c.Logging.Level == "" {
		return fmt.Errorf("logging.level must not be empty")
	}

	if c.Redis.Enabled {
		if c.Redis.Address == "" {
			return fmt.Errorf("redis.address must not be empty when redis.enabled=true")
		}
		if c.Redis.PoolSize <= 0 {
			return fmt.Errorf("redis.pool_size must be > 0 when redis.enabled=true")
		}
	}

	if c.RateLimiting.Enabled {
		if c.RateLimiting.RequestsPerSecond <= 0 {
			return fmt.Errorf("rate_limiting.requests_per_second must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.Burst <= 0 {
			return fmt.Errorf("rate_limiting.burst must be > 0 when rate limiting is enabled")
		}
	}

	return nil
}

// Load reads configuration from YAML file, applies defaults and env overrides.
func Load(configPath string) (*Config, error) {
	// If file does not exist, fall back to defaults
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config yaml: %w", err)
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// DefaultConfig returns configuration with sane defaults.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Server.Address = ":8080"
	cfg.Server.ReadTimeout = 30 * time.Second
	cfg.Server.WriteTimeout = 30 * time.Second
	cfg.Server.ShutdownTimeout = 30 * time.Second

	cfg.Signal.PingInterval = 30 * time.Second
	cfg.Signal.PongTimeout = 60 * time.Second
	cfg.Signal.DeliverInterval = 400 * time.Millisecond

	cfg.Room.TTL = time.Hour
	cfg.Room.MailboxTTL = 120 * time.Second
	cfg.Room.MailboxLimit = 50

	cfg.Peer.PollInterval = 400 * time.Millisecond
	cfg.Peer.RequestTimeout = 5 * time.Second
	cfg.Peer.ReconnectAttempts = 5
	cfg.Peer.ReconnectBase = time.Second
	cfg.Peer.ReconnectMax = 10 * time.Second
	cfg.Peer.LatencyInterval = 2 * time.Second

	cfg.Monitoring.PrometheusEnabled = true
	cfg.Monitoring.PrometheusPort = 9090

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"

	cfg.Redis.Enabled = false
	cfg.Redis.Address = "localhost:6379"
	cfg.Redis.DB = 0
	cfg.Redis.PoolSize = 10

	cfg.RateLimiting.Enabled = false
	cfg.RateLimiting.RequestsPerSecond = 50
	cfg.RateLimiting.Burst = 100

	cfg.Blob.Dir = "roms"

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if addr := os.Getenv("PLAYMESH_SERVER_ADDRESS"); addr != "" {
		c.Server.Address = addr
	}
	if addr := os.Getenv("PLAYMESH_REDIS_ADDRESS"); addr != "" {
		c.Redis.Address = addr
		c.Redis.Enabled = true
	}
	if level := os.Getenv("PLAYMESH_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if dir := os.Getenv("PLAYMESH_BLOB_DIR"); dir != "" {
		c.Blob.Dir = dir
	}
}
