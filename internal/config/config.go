package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/t77yq/nextrun/internal/model"
)

// Config is the server configuration
type Config struct {
	App       AppConfig        `mapstructure:"app"`
	Log       LogConfig        `mapstructure:"log"`
	NATS      NATSConfig       `mapstructure:"nats"`
	Storage   StorageConfig    `mapstructure:"storage"`
	History   HistoryConfig    `mapstructure:"history"`
	Schedules []ScheduleConfig `mapstructure:"schedules"`
}

type AppConfig struct {
	Name string `mapstructure:"name"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

type NATSConfig struct {
	URL            string        `mapstructure:"url"`
	MaxReconnects  int           `mapstructure:"max_reconnects"`
	ReconnectWait  time.Duration `mapstructure:"reconnect_wait"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	PublishRetries int           `mapstructure:"publish_retries"`
}

type StorageConfig struct {
	Path string `mapstructure:"path"`
}

type HistoryConfig struct {
	Retention time.Duration `mapstructure:"retention"`
}

// ScheduleConfig seeds a scheduled job at startup
type ScheduleConfig struct {
	ID       string `mapstructure:"id"`
	Name     string `mapstructure:"name"`
	Type     string `mapstructure:"type"`
	Interval int    `mapstructure:"interval"`
	Hours    []int  `mapstructure:"hours"`
	Days     []int  `mapstructure:"days"`
	Payload  string `mapstructure:"payload"`
}

// Job converts the entry into a scheduled job
func (c ScheduleConfig) Job() *model.ScheduledJob {
	job := &model.ScheduledJob{
		ID:   c.ID,
		Name: c.Name,
		Spec: model.ScheduleSpec{
			Type:     model.ScheduleType(strings.ToLower(c.Type)),
			Interval: c.Interval,
			Hours:    c.Hours,
			Days:     c.Days,
		},
	}
	if c.Payload != "" {
		job.Payload = json.RawMessage(c.Payload)
	}
	return job
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "nextrun")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
	v.SetDefault("nats.url", "nats://127.0.0.1:4222")
	v.SetDefault("nats.max_reconnects", 10)
	v.SetDefault("nats.reconnect_wait", 2*time.Second)
	v.SetDefault("nats.connect_timeout", 5*time.Second)
	v.SetDefault("nats.publish_retries", 3)
	v.SetDefault("storage.path", "nextrun.db")
	v.SetDefault("history.retention", 30*24*time.Hour)
}

// Load reads the configuration file at path. An empty path searches for
// config.yaml in ./config and the working directory; a missing file is not
// an error. NEXTRUN_* environment variables override file values.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("nextrun")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}
