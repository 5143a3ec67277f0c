package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

const envPrefix = "STOREFRONT"

var (
	mu           sync.RWMutex
	globalConfig *Config
	globalViper  *viper.Viper
)

// LoadConfig loads configuration from file and environment variables.
// An environment-specific file (config.<env>.yaml next to the main file)
// is merged on top when present.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath("../configs")
		v.AddConfigPath("../../configs")
		v.AddConfigPath("/etc/storefront")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if used := v.ConfigFileUsed(); used != "" {
		envFile := filepath.Join(filepath.Dir(used), fmt.Sprintf("config.%s.yaml", Env()))
		if _, err := os.Stat(envFile); err == nil {
			v.SetConfigFile(envFile)
			if err := v.MergeInConfig(); err != nil {
				return nil, fmt.Errorf("failed to merge env config: %w", err)
			}
			// watch the main file, not the overlay
			v.SetConfigFile(used)
		}
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config.SetDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	mu.Lock()
	globalConfig = config
	globalViper = v
	mu.Unlock()

	return config, nil
}

// MustLoadConfig loads configuration and panics on error
func MustLoadConfig(configPath string) *Config {
	config, err := LoadConfig(configPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}
	return config
}

// GetConfig returns the global configuration instance
func GetConfig() *Config {
	mu.RLock()
	defer mu.RUnlock()
	if globalConfig == nil {
		panic("Config not loaded. Call LoadConfig first.")
	}
	return globalConfig
}

// WatchConfig reloads the configuration when the file changes and hands
// the new value to callback. Invalid edits are reported through onError
// and the previous configuration stays active.
func WatchConfig(callback func(*Config), onError func(error)) {
	mu.RLock()
	v := globalViper
	mu.RUnlock()
	if v == nil || v.ConfigFileUsed() == "" {
		return
	}

	path := v.ConfigFileUsed()
	v.OnConfigChange(func(e fsnotify.Event) {
		if e.Op&(fsnotify.Write|fsnotify.Create) == 0 {
			return
		}
		cfg, err := LoadConfig(path)
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		if callback != nil {
			callback(cfg)
		}
	})
	v.WatchConfig()
}

// Env returns the deployment environment name, "dev" by default
func Env() string {
	if env := os.Getenv(envPrefix + "_ENV"); env != "" {
		return env
	}
	return "dev"
}

// IsProduction returns true if running in production mode
func IsProduction() bool {
	env := Env()
	return env == "prod" || env == "production"
}
