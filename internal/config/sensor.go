package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/sweeney/door-monitor/internal/gpio"
	"github.com/sweeney/door-monitor/internal/logger"
)

// Sensor configures cmd/door-sensor.
type Sensor struct {
	Poll         time.Duration `mapstructure:"poll"`
	Pin          int           `mapstructure:"pin"`
	Simulate     bool          `mapstructure:"simulate"`
	Receiver     string        `mapstructure:"receiver"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	SecondaryURL string        `mapstructure:"secondary_url"`
	Heartbeat    time.Duration `mapstructure:"heartbeat"`
	PrintState   bool          `mapstructure:"print_state"`
	LogLevel     string        `mapstructure:"log_level"`
}

// SensorFlags declares the sensor flags with their defaults.
func SensorFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("door-sensor", pflag.ContinueOnError)
	fs.Duration("poll", 100*time.Millisecond, "sensor polling interval")
	fs.Int("pin", gpio.DefaultPin, "BCM pin number of the door switch")
	fs.Bool("simulate", false, "use a simulated sensor instead of GPIO")
	fs.String("receiver", "localhost:5000", "monitor receiver address")
	fs.Duration("dial-timeout", 5*time.Second, "connect and write timeout for the receiver")
	fs.String("secondary-url", "", "optional HTTP endpoint also notified on change")
	fs.Duration("heartbeat", 15*time.Minute, "heartbeat log interval (0 to disable)")
	fs.Bool("print-state", false, "print the current door state and exit")
	fs.String("log-level", logger.InfoLevel, "log level: debug, info, warn, error")
	return fs
}

// LoadSensor resolves the sensor configuration from args and the environment.
func LoadSensor(args []string) (Sensor, error) {
	v, err := load(SensorFlags(), args)
	if err != nil {
		return Sensor{}, err
	}
	var c Sensor
	if err := v.Unmarshal(&c); err != nil {
		return Sensor{}, fmt.Errorf("decode config: %w", err)
	}
	return c, c.Validate()
}

// Validate rejects unusable settings.
func (c Sensor) Validate() error {
	var errs []error
	if c.Poll <= 0 {
		errs = append(errs, fmt.Errorf("poll must be positive, got %v", c.Poll))
	}
	if c.DialTimeout <= 0 {
		errs = append(errs, fmt.Errorf("dial_timeout must be positive, got %v", c.DialTimeout))
	}
	if c.Heartbeat < 0 {
		errs = append(errs, fmt.Errorf("heartbeat must not be negative, got %v", c.Heartbeat))
	}
	if c.Pin < 0 {
		errs = append(errs, fmt.Errorf("pin must not be negative, got %d", c.Pin))
	}
	if c.Receiver == "" {
		errs = append(errs, errors.New("receiver address is required"))
	}
	if !validLogLevel(c.LogLevel) {
		errs = append(errs, fmt.Errorf("unknown log_level %q", c.LogLevel))
	}
	return errors.Join(errs...)
}
