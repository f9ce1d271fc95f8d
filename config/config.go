package config

import "time"

const (
	APIKeyEnv     = "MT5_WORKER_API_KEY"
	DefaultAPIKey = "change-me"
)

type Config struct {
	Listen      string   `yaml:"listen"`
	LoginPath   string   `yaml:"login_path"`
	MetricsPath string   `yaml:"metrics_path"`
	APIKey      string   `yaml:"api_key"`
	Terminal    Terminal `yaml:"terminal"`
}

func DefaultConfig() Config {
	return Config{
		Listen:      ":8000",
		LoginPath:   "/mt5/login",
		MetricsPath: "/metrics",
		APIKey:      DefaultAPIKey,
		Terminal:    DefaultTerminal(),
	}
}

func DefaultTerminal() Terminal {
	return Terminal{
		Driver:  "bridge",
		Address: "127.0.0.1:8228",
		Timeout: 60,
	}
}

func (c *Config) UnmarshalYAML(unmarshal func(interface{}) error) error {
	*c = DefaultConfig()

	type plain Config
	if err := unmarshal((*plain)(c)); err != nil {
		return err
	}

	return nil
}

// Terminal selects and configures the terminal binding.
type Terminal struct {
	Driver  string  `yaml:"driver"`
	Address string  `yaml:"address"`
	Timeout float64 `yaml:"timeout"`
}

func (t *Terminal) UnmarshalYAML(unmarshal func(interface{}) error) error {
	*t = DefaultTerminal()

	type plain Terminal
	if err := unmarshal((*plain)(t)); err != nil {
		return err
	}

	return nil
}

func (t Terminal) TimeoutDuration() time.Duration {
	return time.Duration(t.Timeout * float64(time.Second))
}
