package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		Output string `yaml:"output"`
	} `yaml:"logging"`
	Underlying string `yaml:"underlying"`
	Engine     struct {
		StrikeRangePct    float64       `yaml:"strike_range_pct"`
		GexThreshold      float64       `yaml:"gex_threshold"`
		RecomputeInterval time.Duration `yaml:"recompute_interval"`
		RiskFreeRate      float64       `yaml:"risk_free_rate"`
		DividendYield     float64       `yaml:"dividend_yield"`
	} `yaml:"engine"`
	// Levels toggles are passed through to rendering consumers; the core
	// ignores them.
	Levels struct {
		DrawLines  bool `yaml:"draw_lines"`
		ShowLabels bool `yaml:"show_labels"`
	} `yaml:"levels"`
	Provider struct {
		BaseURL        string        `yaml:"base_url"`
		WebSocketURL   string        `yaml:"websocket_url"`
		APIKey         string        `yaml:"api_key"`
		RequestTimeout time.Duration `yaml:"request_timeout"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay"`
		PingInterval   time.Duration `yaml:"ping_interval"`
	} `yaml:"provider"`
	Alerts struct {
		Kafka struct {
			Enabled      bool          `yaml:"enabled"`
			Brokers      []string      `yaml:"brokers"`
			Topic        string        `yaml:"topic"`
			RequiredAcks int           `yaml:"required_acks"`
			Compression  string        `yaml:"compression"`
			MaxAttempts  int           `yaml:"max_attempts"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
		} `yaml:"kafka"`
	} `yaml:"alerts"`
	History struct {
		ClickHouse struct {
			Enabled      bool          `yaml:"enabled"`
			Host         string        `yaml:"host"`
			Port         int           `yaml:"port"`
			Database     string        `yaml:"database"`
			User         string        `yaml:"user"`
			Password     string        `yaml:"password"`
			DialTimeout  time.Duration `yaml:"dial_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
		} `yaml:"clickhouse"`
	} `yaml:"history"`
	Cache struct {
		VolSeedTTL time.Duration `yaml:"vol_seed_ttl"`
		Redis      struct {
			Enabled  bool   `yaml:"enabled"`
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
		} `yaml:"redis"`
	} `yaml:"cache"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	c.applyDefaults()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("GEXFLOW_API_KEY"); v != "" {
		c.Provider.APIKey = v
	}
	if v := os.Getenv("GEXFLOW_UNDERLYING"); v != "" {
		c.Underlying = v
	}
	if v := os.Getenv("GEXFLOW_GEX_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			c.Engine.GexThreshold = f
		}
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Alerts.Kafka.Brokers = strings.Split(v, ",")
	}

	return c, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
	if c.Engine.StrikeRangePct == 0 {
		c.Engine.StrikeRangePct = 10
	}
	if c.Engine.RecomputeInterval == 0 {
		c.Engine.RecomputeInterval = 30 * time.Second
	}
	if c.Cache.VolSeedTTL == 0 {
		c.Cache.VolSeedTTL = 10 * time.Minute
	}
	if c.Provider.RequestTimeout == 0 {
		c.Provider.RequestTimeout = 10 * time.Second
	}
	if c.Provider.ReconnectDelay == 0 {
		c.Provider.ReconnectDelay = 5 * time.Second
	}
	if c.Provider.PingInterval == 0 {
		c.Provider.PingInterval = 15 * time.Second
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Underlying == "" {
		return fmt.Errorf("underlying is required")
	}
	if c.Engine.GexThreshold <= 0 {
		return fmt.Errorf("engine.gex_threshold must be positive")
	}
	if c.Engine.StrikeRangePct <= 0 || c.Engine.StrikeRangePct > 100 {
		return fmt.Errorf("engine.strike_range_pct must be in (0, 100], got %v", c.Engine.StrikeRangePct)
	}
	if c.Engine.RecomputeInterval <= 0 {
		return fmt.Errorf("engine.recompute_interval must be positive")
	}
	if c.Provider.BaseURL == "" {
		return fmt.Errorf("provider.base_url is required")
	}
	if c.Provider.WebSocketURL == "" {
		return fmt.Errorf("provider.websocket_url is required")
	}
	if c.Alerts.Kafka.Enabled && len(c.Alerts.Kafka.Brokers) == 0 {
		return fmt.Errorf("alerts.kafka.brokers cannot be empty when kafka alerts are enabled")
	}
	if c.History.ClickHouse.Enabled && c.History.ClickHouse.Host == "" {
		return fmt.Errorf("history.clickhouse.host is required when history is enabled")
	}
	return nil
}
