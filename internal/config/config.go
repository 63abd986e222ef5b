package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Input   InputConfig   `yaml:"input"`
	Output  OutputConfig  `yaml:"output"`
	Metrics MetricsConfig `yaml:"metrics"`
	Log     LogConfig     `yaml:"log"`
}

type InputConfig struct {
	// Device is the terminal keys are read from.
	Device       string        `yaml:"device"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

type OutputConfig struct {
	// Backend is one of "gpio", "sysfs" or "ledclass".
	Backend   string `yaml:"backend"`
	SysfsBase string `yaml:"sysfs_base"`
	Chip      string `yaml:"chip"`
	Channel   int    `yaml:"channel"`
	GPIOChip  string `yaml:"gpio_chip"`
	LEDPath   string `yaml:"led_path"`
}

type MetricsConfig struct {
	// Addr is the Prometheus listen address; empty disables the listener.
	Addr string `yaml:"addr"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	var cfg Config
	applyDefaults(&cfg)
	return cfg
}

// Load reads the YAML file at path. An empty path yields Default().
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, err
	}
	applyDefaults(&cfg)

	switch cfg.Output.Backend {
	case "gpio", "sysfs", "ledclass":
	default:
		return Config{}, fmt.Errorf("output.backend must be one of gpio, sysfs, ledclass (got %q)", cfg.Output.Backend)
	}
	if cfg.Output.Channel < 0 {
		return Config{}, fmt.Errorf("output.channel must be >= 0")
	}
	if cfg.Input.PollInterval < 0 {
		return Config{}, fmt.Errorf("input.poll_interval must be >= 0")
	}
	switch cfg.Log.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return Config{}, fmt.Errorf("log.level must be one of debug, info, warn, error (got %q)", cfg.Log.Level)
	}

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Input.Device == "" {
		cfg.Input.Device = "/dev/tty"
	}
	if cfg.Input.PollInterval == 0 {
		cfg.Input.PollInterval = 10 * time.Millisecond
	}
	if cfg.Output.Backend == "" {
		cfg.Output.Backend = "gpio"
	}
	if cfg.Output.SysfsBase == "" {
		cfg.Output.SysfsBase = "/sys/class/pwm"
	}
	if cfg.Output.LEDPath == "" {
		cfg.Output.LEDPath = "/sys/class/leds/led0"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}
