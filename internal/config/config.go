package config

import (
	"time"

	yamlenv "github.com/ifuryst/go-yaml-env"

	"github.com/ifuryst/herald/internal/service/publisher"
	"github.com/ifuryst/herald/pkg/logger"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Logger     logger.Config    `yaml:"logger"`
	Project    ProjectConfig    `yaml:"project"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
	Publisher  PublisherConfig  `yaml:"publisher"`
	Generation GenerationConfig `yaml:"generation"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
}

type ServerConfig struct {
	Port     int    `yaml:"port"`
	Host     string `yaml:"host"`
	Mode     string `yaml:"mode"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
	// CronSecret authenticates POST /api/v1/cron/publish.
	CronSecret string `yaml:"cron_secret"`
}

type DatabaseConfig struct {
	Type     string `yaml:"type"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"ssl_mode"`
	TimeZone string `yaml:"timezone"`
}

type ProjectConfig struct {
	Key string `yaml:"key"`
}

type SchedulerConfig struct {
	Enabled bool `yaml:"enabled"`
	// Spec is a robfig/cron spec, e.g. "@every 1m".
	Spec        string `yaml:"spec"`
	Concurrency int    `yaml:"concurrency"`
}

type PublisherConfig struct {
	Timeout       time.Duration `yaml:"timeout"`
	RatePerSecond float64       `yaml:"rate_per_second"`
	Burst         int           `yaml:"burst"`
	// BaseURLs overrides platform endpoints, keyed by platform.
	BaseURLs    map[string]string  `yaml:"base_urls"`
	Credentials publisher.Settings `yaml:"credentials"`
}

type GenerationConfig struct {
	URL     string        `yaml:"url"`
	Token   string        `yaml:"token"`
	Timeout time.Duration `yaml:"timeout"`
}

type MonitoringConfig struct {
	StatsInterval time.Duration `yaml:"stats_interval"`
	RetentionDays int           `yaml:"retention_days"`
}

func LoadConfig(configPath string) (*Config, error) {
	cfg, err := yamlenv.LoadConfig[Config](configPath)
	if err != nil {
		return nil, err
	}
	ApplyDefaults(cfg)
	return cfg, nil
}

// ApplyDefaults fills every unset value.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 5334
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = "debug"
	}
	if cfg.Database.Type == "" {
		cfg.Database.Type = "postgres"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.TimeZone == "" {
		cfg.Database.TimeZone = "UTC"
	}
	if cfg.Project.Key == "" {
		cfg.Project.Key = "default"
	}
	if cfg.Scheduler.Spec == "" {
		cfg.Scheduler.Spec = "@every 1m"
	}
	if cfg.Scheduler.Concurrency <= 0 {
		cfg.Scheduler.Concurrency = 8
	}
	if cfg.Publisher.Timeout <= 0 {
		cfg.Publisher.Timeout = 60 * time.Second
	}
	if cfg.Publisher.RatePerSecond <= 0 {
		cfg.Publisher.RatePerSecond = 1
	}
	if cfg.Publisher.Burst <= 0 {
		cfg.Publisher.Burst = 3
	}
	if cfg.Generation.Timeout <= 0 {
		cfg.Generation.Timeout = 5 * time.Minute
	}
	if cfg.Monitoring.StatsInterval <= 0 {
		cfg.Monitoring.StatsInterval = time.Hour
	}
	if cfg.Monitoring.RetentionDays <= 0 {
		cfg.Monitoring.RetentionDays = 30
	}
}
