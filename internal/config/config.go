package config

import (
	"fmt"
	"os"
	"time"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Config is the mvvm command configuration (mvvm.yaml).
type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	ViewModel ViewModelConfig `mapstructure:"viewmodel"`
	Demo      DemoConfig      `mapstructure:"demo"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Redis     RedisConfig     `mapstructure:"redis"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ViewModelConfig holds the options applied to every view-model.
type ViewModelConfig struct {
	// VerifyPropertyNames overrides the build default when set.
	VerifyPropertyNames *bool  `mapstructure:"verify_property_names"`
	StrictPropertyNames bool   `mapstructure:"strict_property_names"`
	BackgroundMode      string `mapstructure:"background_mode"`
}

type DemoConfig struct {
	Steps    int           `mapstructure:"steps"`
	Interval time.Duration `mapstructure:"interval"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

// RedisConfig enables the requery bridge when Addr is set.
type RedisConfig struct {
	Addr    string `mapstructure:"addr"`
	Channel string `mapstructure:"channel"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		ViewModel: ViewModelConfig{
			BackgroundMode: "worker",
		},
		Demo: DemoConfig{
			Steps:    10,
			Interval: 200 * time.Millisecond,
		},
		HTTP: HTTPConfig{
			Addr: ":8080",
		},
		Redis: RedisConfig{
			Channel: "mvvm:requery",
		},
	}
}

// Load reads a YAML file on top of Default. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return cfg, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if err := Decode(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Decode merges raw into cfg. Strings are accepted for durations, numbers and
// booleans; unknown keys are rejected.
func Decode(raw map[string]any, cfg *Config) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           cfg,
	})
	if err != nil {
		return err
	}
	return dec.Decode(raw)
}

// Validate checks values that cannot be expressed by types alone.
func (c Config) Validate() error {
	if c.Demo.Steps < 0 {
		return fmt.Errorf("demo.steps must not be negative, got %d", c.Demo.Steps)
	}
	if c.Demo.Interval < 0 {
		return fmt.Errorf("demo.interval must not be negative, got %s", c.Demo.Interval)
	}
	return nil
}
