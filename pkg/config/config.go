// Package config loads loom's process configuration: which generation
// backends exist, their credentials and models, and engine defaults.
// Values come from a YAML config file layered under environment variables.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const (
	// AppName is used for the config file name and search paths.
	AppName = "loom"

	// EnvPrefix is the prefix for environment variable overrides,
	// e.g. LOOM_BACKENDS_ANTHROPIC_API_KEY.
	EnvPrefix = "LOOM"
)

// Backend describes one configured generation backend.
type Backend struct {
	// Kind selects the transport: anthropic or openai.
	Kind    string `mapstructure:"kind"`
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"`
}

// Config is the full process configuration.
type Config struct {
	Debug          bool               `mapstructure:"debug"`
	LogFormat      string             `mapstructure:"log_format"` // human, json
	DefaultBackend string             `mapstructure:"default_backend"`
	TraceDir       string             `mapstructure:"trace_dir"`
	Backends       map[string]Backend `mapstructure:"backends"`
}

// Load reads configuration from cfgFile, or from the default search paths
// when cfgFile is empty. A missing config file is not an error; environment
// variables and defaults still apply.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(AppName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/loom")
		v.AddConfigPath("/etc/loom")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("debug", false)
	v.SetDefault("log_format", "human")
	v.SetDefault("default_backend", "")
	v.SetDefault("trace_dir", "")
}

func (c *Config) validate() error {
	for name, b := range c.Backends {
		switch b.Kind {
		case "anthropic", "openai":
		case "":
			return fmt.Errorf("backend %q: kind is required", name)
		default:
			return fmt.Errorf("backend %q: unknown kind %q", name, b.Kind)
		}
	}
	if c.DefaultBackend != "" {
		if _, ok := c.Backends[c.DefaultBackend]; !ok {
			return fmt.Errorf("default_backend %q is not a configured backend", c.DefaultBackend)
		}
	}
	return nil
}
