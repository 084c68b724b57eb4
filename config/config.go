package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/CWILDMOUNTAIN/ha-wattwise/core/metrics"
	"github.com/CWILDMOUNTAIN/ha-wattwise/core/model"
	"github.com/CWILDMOUNTAIN/ha-wattwise/core/optimizer"
	"github.com/CWILDMOUNTAIN/ha-wattwise/core/runner"
	"github.com/CWILDMOUNTAIN/ha-wattwise/infra/homeassistant"
	"github.com/CWILDMOUNTAIN/ha-wattwise/infra/mqtt"
)

type Config struct {
	Runner        runner.Config          `json:"runner"`
	Battery       model.DeviceParameters `json:"battery"`
	Optimizer     optimizer.Config       `json:"optimizer"`
	Windows       WindowsConfig          `json:"windows"`
	Store         StoreConfig            `json:"store"`
	HomeAssistant homeassistant.Config   `json:"homeassistant"`
	MQTT          mqtt.Config            `json:"mqtt"`
	Metrics       metrics.Config         `json:"metrics"`
}

// WindowsConfig tunes the cheap/expensive window search.
type WindowsConfig struct {
	// PersistAfterHour is the local hour from which a computed
	// window assignment covering tomorrow is persisted and pinned.
	PersistAfterHour int    `json:"persist_after_hour"`
	CheapKey         string `json:"cheap_key"`
	ExpensiveKey     string `json:"expensive_key"`
}

func (c *WindowsConfig) SetDefaults() {
	if c.PersistAfterHour == 0 {
		c.PersistAfterHour = 16
	}
	if c.CheapKey == "" {
		c.CheapKey = "cheapest_windows"
	}
	if c.ExpensiveKey == "" {
		c.ExpensiveKey = "most_expensive_windows"
	}
}

// StoreConfig locates the on-disk document store.
type StoreConfig struct {
	Dir string `json:"dir"`
}

func (c *StoreConfig) SetDefaults() {
	if c.Dir == "" {
		c.Dir = "data"
	}
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides, e.g. WW_HOMEASSISTANT__TOKEN.
	if err := k.Load(env.Provider("WW_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "ww_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.Runner.SetDefaults()
	cfg.Optimizer.SetDefaults()
	cfg.Windows.SetDefaults()
	cfg.Store.SetDefaults()
	cfg.HomeAssistant.SetDefaults()
	cfg.MQTT.SetDefaults()
	cfg.Metrics.SetDefaults()
	if err := cfg.Battery.Validate(); err != nil {
		return nil, fmt.Errorf("battery: %w", err)
	}
	if err := cfg.Optimizer.Validate(); err != nil {
		return nil, fmt.Errorf("optimizer: %w", err)
	}
	if err := cfg.HomeAssistant.Validate(); err != nil {
		return nil, fmt.Errorf("homeassistant: %w", err)
	}
	return &cfg, nil
}
