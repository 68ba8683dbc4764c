// Package config loads process settings from flags, the environment, an
// optional YAML file and a .env file.
//
// Precedence, highest first: flags, DOOR_* environment variables, the config
// file, flag defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/sweeney/door-monitor/internal/logger"
)

// EnvPrefix is prepended to every key when read from the environment.
const EnvPrefix = "DOOR"

// DefaultConfigName is looked up in the working directory when --config is unset.
const DefaultConfigName = "door-monitor"

// EnvFile is loaded into the environment if present. Existing variables win.
var EnvFile = ".env"

// load parses args into fs and layers the environment and config file over
// the flag defaults.
func load(fs *pflag.FlagSet, args []string) (*viper.Viper, error) {
	configPath := fs.String("config", "", "path to a YAML config file")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if err := loadEnvFile(EnvFile); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	var bindErr error
	fs.VisitAll(func(f *pflag.Flag) {
		if f.Name == "config" {
			return
		}
		if err := v.BindPFlag(key(f.Name), f); err != nil {
			bindErr = errors.Join(bindErr, err)
		}
	})
	if bindErr != nil {
		return nil, fmt.Errorf("bind flags: %w", bindErr)
	}

	if *configPath != "" {
		v.SetConfigFile(*configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", *configPath, err)
		}
		return v, nil
	}

	v.SetConfigName(DefaultConfigName)
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return v, nil
}

func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// key maps a flag name to its config key.
func key(flag string) string {
	return strings.ReplaceAll(flag, "-", "_")
}

func validLogLevel(level string) bool {
	switch level {
	case logger.DebugLevel, logger.InfoLevel, logger.WarnLevel, logger.ErrorLevel:
		return true
	}
	return false
}
