package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/sweeney/door-monitor/internal/announce"
	"github.com/sweeney/door-monitor/internal/logger"
	"github.com/sweeney/door-monitor/internal/mqtt"
	"github.com/sweeney/door-monitor/internal/persist"
	"github.com/sweeney/door-monitor/internal/status"
)

// Monitor configures cmd/door-monitor.
type Monitor struct {
	Listen           string        `mapstructure:"listen"`
	TrackingInterval time.Duration `mapstructure:"tracking_interval"`
	PageSize         int           `mapstructure:"page_size"`
	MaxHistory       int           `mapstructure:"max_history"`
	StateDir         string        `mapstructure:"state_dir"`
	Storage          string        `mapstructure:"storage"`
	Broker           string        `mapstructure:"broker"`
	TopicPrefix      string        `mapstructure:"topic_prefix"`
	ClientID         string        `mapstructure:"client_id"`
	HTTP             string        `mapstructure:"http"`
	HealthThreshold  time.Duration `mapstructure:"health_threshold"`
	Title            string        `mapstructure:"title"`
	LogLevel         string        `mapstructure:"log_level"`
	LogFile          string        `mapstructure:"log_file"`
	Autostart        bool          `mapstructure:"autostart"`
}

// MonitorFlags declares the monitor flags with their defaults.
func MonitorFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("door-monitor", pflag.ContinueOnError)
	fs.String("listen", "localhost:5000", "address the receiver listens on")
	fs.Duration("tracking-interval", announce.DefaultInterval, "status message refresh interval")
	fs.Int("page-size", 10, "history entries per page")
	fs.Int("max-history", 1000, "history entries kept")
	fs.String("state-dir", "state", "directory for persisted state")
	fs.String("storage", persist.BackendFile, "state backend: file or sqlite")
	fs.String("broker", "tcp://localhost:1883", "MQTT broker address")
	fs.String("topic-prefix", mqtt.DefaultTopicPrefix, "MQTT topic prefix for status channels")
	fs.String("client-id", "door-monitor", "MQTT client id")
	fs.String("http", ":8080", "HTTP address (empty to disable)")
	fs.Duration("health-threshold", status.DefaultHealthThreshold, "max push age still considered receiving")
	fs.String("title", announce.DefaultTitle, "status message title")
	fs.String("log-level", logger.InfoLevel, "log level: debug, info, warn, error")
	fs.String("log-file", "", "sensor log file served by /api/logs (empty to disable)")
	fs.Bool("autostart", true, "start monitoring on launch")
	return fs
}

// LoadMonitor resolves the monitor configuration from args and the environment.
func LoadMonitor(args []string) (Monitor, error) {
	v, err := load(MonitorFlags(), args)
	if err != nil {
		return Monitor{}, err
	}
	var c Monitor
	if err := v.Unmarshal(&c); err != nil {
		return Monitor{}, fmt.Errorf("decode config: %w", err)
	}
	return c, c.Validate()
}

// Validate rejects unusable settings.
func (c Monitor) Validate() error {
	var errs []error
	if c.Listen == "" {
		errs = append(errs, errors.New("listen address is required"))
	}
	if c.TrackingInterval <= 0 {
		errs = append(errs, fmt.Errorf("tracking_interval must be positive, got %v", c.TrackingInterval))
	}
	if c.PageSize <= 0 {
		errs = append(errs, fmt.Errorf("page_size must be positive, got %d", c.PageSize))
	}
	if c.MaxHistory <= 0 {
		errs = append(errs, fmt.Errorf("max_history must be positive, got %d", c.MaxHistory))
	}
	if c.HealthThreshold <= 0 {
		errs = append(errs, fmt.Errorf("health_threshold must be positive, got %v", c.HealthThreshold))
	}
	if c.StateDir == "" {
		errs = append(errs, errors.New("state_dir is required"))
	}
	switch c.Storage {
	case persist.BackendFile, persist.BackendSQLite:
	default:
		errs = append(errs, fmt.Errorf("unknown storage %q", c.Storage))
	}
	if c.Broker == "" {
		errs = append(errs, errors.New("broker is required"))
	}
	if !validLogLevel(c.LogLevel) {
		errs = append(errs, fmt.Errorf("unknown log_level %q", c.LogLevel))
	}
	return errors.Join(errs...)
}
