// Package config provides YAML-based configuration loading for gamenet.
package config

import (
    "errors"
    "fmt"
    "os"
    "path/filepath"
    "strings"

    "github.com/spf13/viper"
)

// Config is the root application configuration.
type Config struct {
    // AppName optional logical name of the node/application
    AppName string `mapstructure:"app_name"`

    // Pid pins the local participant id (hex UUID); empty generates one per process
    Pid string `mapstructure:"pid"`

    // Codec names the payload codec for typed messages: json, cbor or proto
    Codec string `mapstructure:"codec"`

    // Log holds logging configuration
    Log LogConfig `mapstructure:"log"`

    // Listen and Connect are the endpoints bound and dialed on startup
    Listen  []EndpointConfig `mapstructure:"listen"`
    Connect []EndpointConfig `mapstructure:"connect"`

    // Net holds transport and scheduling tuning
    Net NetConfig `mapstructure:"net"`

    Metrics MetricsConfig `mapstructure:"metrics"`
}

// LogConfig defines logger settings.
type LogConfig struct {
    // Level: debug, info, warn, error
    Level string `mapstructure:"level"`
    // Format: console or json
    Format string `mapstructure:"format"`
    // Outputs: list of outputs: stdout, stderr, or file paths
    Outputs []string `mapstructure:"outputs"`

    // Rotation controls file rotation when writing to files
    Rotation RotationConfig `mapstructure:"rotation"`
    // Development toggles development-friendly logging options
    Development bool `mapstructure:"development"`
}

// RotationConfig controls log file rotation for file outputs.
type RotationConfig struct {
    Enable     bool   `mapstructure:"enable"`
    Filename   string `mapstructure:"filename"`
    MaxSizeMB  int    `mapstructure:"max_size_mb"`
    MaxBackups int    `mapstructure:"max_backups"`
    MaxAgeDays int    `mapstructure:"max_age_days"`
    Compress   bool   `mapstructure:"compress"`
}

// MetricsConfig controls the periodic metrics dump to the log.
type MetricsConfig struct {
    // LogIntervalS is the dump period in seconds, 0 disables it
    LogIntervalS int `mapstructure:"log_interval_s"`
}

// Default returns a Config populated with sensible defaults.
func Default() *Config {
    return &Config{
        AppName: "gamenet-node",
        Codec:   "json",
        Log: LogConfig{
            Level:       "info",
            Format:      "console",
            Outputs:     []string{"stdout"},
            Development: true,
            Rotation: RotationConfig{
                Enable:     false,
                Filename:   "logs/gamenet.log",
                MaxSizeMB:  50,
                MaxBackups: 3,
                MaxAgeDays: 28,
                Compress:   true,
            },
        },
        Net: NetConfig{
            FlushIntervalMS:      10,
            FlushBandwidth:       1_000_000_000,
            DefaultPort:          14004,
            HandshakeTimeoutMS:   10_000,
            ConnectTimeoutMS:     10_000,
            DisconnectTimeoutMS:  10_000,
            ShutdownTimeoutMS:    120_000,
            AcceptBurst:          16,
        },
    }
}

// Load reads configuration from the provided path (if non-empty),
// otherwise it searches common locations and supports environment overrides.
// Environment variables use the prefix GAMENET and `.`/`-` are replaced with `_`.
// Example: GAMENET_LOG_LEVEL=debug
func Load(path string) (*Config, error) {
    cfg := Default()

    v := viper.New()
    v.SetConfigType("yaml")
    v.SetEnvPrefix("GAMENET")
    v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
    v.AutomaticEnv()

    // seed defaults for viper so env-only configs work
    v.SetDefault("app_name", cfg.AppName)
    v.SetDefault("pid", cfg.Pid)
    v.SetDefault("codec", cfg.Codec)
    v.SetDefault("log.level", cfg.Log.Level)
    v.SetDefault("log.format", cfg.Log.Format)
    v.SetDefault("log.outputs", cfg.Log.Outputs)
    v.SetDefault("log.development", cfg.Log.Development)
    v.SetDefault("log.rotation.enable", cfg.Log.Rotation.Enable)
    v.SetDefault("log.rotation.filename", cfg.Log.Rotation.Filename)
    v.SetDefault("log.rotation.max_size_mb", cfg.Log.Rotation.MaxSizeMB)
    v.SetDefault("log.rotation.max_backups", cfg.Log.Rotation.MaxBackups)
    v.SetDefault("log.rotation.max_age_days", cfg.Log.Rotation.MaxAgeDays)
    v.SetDefault("log.rotation.compress", cfg.Log.Rotation.Compress)
    v.SetDefault("listen", cfg.Listen)
    v.SetDefault("connect", cfg.Connect)
    cfg.Net.setDefaults(v)
    v.SetDefault("metrics.log_interval_s", cfg.Metrics.LogIntervalS)

    // Choose config file
    if path == "" {
        // Allow override via env var
        if envPath := os.Getenv("GAMENET_CONFIG"); envPath != "" {
            path = envPath
        }
    }

    if path != "" {
        v.SetConfigFile(path)
    } else {
        // Search common locations with base name `gamenet`
        v.SetConfigName("gamenet")
        v.AddConfigPath(".")
        v.AddConfigPath("./configs")
        if home, err := os.UserHomeDir(); err == nil {
            v.AddConfigPath(filepath.Join(home, ".gamenet"))
        }
    }

    // Read config file if present; if not found, continue with defaults/env
    if err := v.ReadInConfig(); err != nil {
        var viperConfigFileNotFound viper.ConfigFileNotFoundError
        if !errors.As(err, &viperConfigFileNotFound) {
            return nil, fmt.Errorf("read config: %w", err)
        }
    }

    if err := v.Unmarshal(&cfg); err != nil {
        return nil, fmt.Errorf("decode config: %w", err)
    }

    if err := cfg.validate(); err != nil {
        return nil, err
    }
    return cfg, nil
}

func (c *Config) validate() error {
    lvl := strings.ToLower(strings.TrimSpace(c.Log.Level))
    switch lvl {
    case "debug", "info", "warn", "warning", "error":
        // ok
    default:
        return fmt.Errorf("invalid log.level: %q", c.Log.Level)
    }

    if c.Log.Format == "" {
        c.Log.Format = "console"
    }
    if len(c.Log.Outputs) == 0 {
        c.Log.Outputs = []string{"stdout"}
    }
    c.Codec = strings.ToLower(strings.TrimSpace(c.Codec))
    switch c.Codec {
    case "":
        c.Codec = "json"
    case "json", "cbor", "proto":
    default:
        return fmt.Errorf("invalid codec: %q", c.Codec)
    }
    if _, err := c.LocalPid(); err != nil {
        return err
    }
    if err := validateEndpoints("listen", c.Listen); err != nil {
        return err
    }
    if err := validateEndpoints("connect", c.Connect); err != nil {
        return err
    }
    return c.Net.validate()
}

// MustLoad is a convenience that panics on error.
func MustLoad(path string) *Config {
    cfg, err := Load(path)
    if err != nil {
        panic(err)
    }
    return cfg
}
