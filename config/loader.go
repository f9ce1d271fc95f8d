package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/yaml.v3"
)

var (
	configReloadSuccess = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "mt5_worker",
		Name:      "config_last_reload_successful",
		Help:      "MT5 worker config loaded successfully.",
	})

	configReloadSeconds = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "mt5_worker",
		Name:      "config_last_reload_success_timestamp_seconds",
		Help:      "Timestamp of the last successful configuration reload.",
	})
)

func init() {
	prometheus.MustRegister(configReloadSuccess)
	prometheus.MustRegister(configReloadSeconds)
}

type SafeConfig struct {
	sync.RWMutex
	configFile string
	getenv     func(string) string
	c          *Config
}

func (sc *SafeConfig) Get() *Config {
	sc.RLock()
	defer sc.RUnlock()
	return sc.c
}

// APIKey is the shared secret expected in the x-api-key header.
func (sc *SafeConfig) APIKey() string {
	return sc.Get().APIKey
}

func New(configFile string) *SafeConfig {
	c := DefaultConfig()
	return &SafeConfig{
		c:          &c,
		configFile: configFile,
		getenv:     os.Getenv,
	}
}

// LoadConfig reads the config file, if any, and applies the environment
// override for the API key. An empty file name loads the defaults.
func (sc *SafeConfig) LoadConfig() (err error) {
	defer func() {
		if err != nil {
			configReloadSuccess.Set(0)
		} else {
			configReloadSuccess.Set(1)
			configReloadSeconds.SetToCurrentTime()
		}
	}()

	c := DefaultConfig()
	if sc.configFile != "" {
		c, err = readFile(sc.configFile)
		if err != nil {
			return err
		}
	}

	if key := sc.getenv(APIKeyEnv); key != "" {
		c.APIKey = key
	}

	sc.Lock()
	sc.c = &c
	defer sc.Unlock()

	return nil
}

func readFile(configFile string) (Config, error) {
	c := DefaultConfig()

	yamlReader, err := os.Open(configFile)
	if err != nil {
		return c, fmt.Errorf("error reading config file: %w", err)
	}
	defer yamlReader.Close()
	decoder := yaml.NewDecoder(yamlReader)
	decoder.KnownFields(true)

	err = decoder.Decode(&c)
	if err != nil && !errors.Is(err, io.EOF) {
		return c, fmt.Errorf("error parsing config file: %w", err)
	}

	return c, nil
}
