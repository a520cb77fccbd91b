// Package config loads the YAML configuration of the flexmon command.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/arloliu/go-flexgui/address"
	"github.com/arloliu/go-flexgui/controller"
	"github.com/arloliu/go-flexgui/flexmsg"
)

type Config struct {
	Controller ControllerConfig `yaml:"controller"`
	Log        LogConfig        `yaml:"log"`
	Monitor    MonitorConfig    `yaml:"monitor"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// ---- CONTROLLER ----

type ControllerConfig struct {
	Host             string `yaml:"host"`
	Port             int    `yaml:"port"` // 0 => controller.DefaultPort
	ReplyTimeoutMs   int    `yaml:"reply_timeout_ms"`
	ConnectTimeoutMs int    `yaml:"connect_timeout_ms"`
}

// ---- LOG ----

type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"` // empty => stderr
}

// ---- MONITOR ----

type MonitorConfig struct {
	Signal    string  `yaml:"signal"`
	MechID    int     `yaml:"mech_id"`
	CycleMs   int     `yaml:"cycle_ms"`
	Threshold float64 `yaml:"threshold"` // 0 => controller.MinThreshold
	Output    string  `yaml:"output"`
	DurationS int     `yaml:"duration_s"`
}

// ---- METRICS ----

type MetricsConfig struct {
	Listen string `yaml:"listen"` // empty => disabled
	Name   string `yaml:"name"`
}

// Default returns the configuration used for every key missing from the file.
func Default() *Config {
	return &Config{
		Controller: ControllerConfig{
			ReplyTimeoutMs:   5000,
			ConnectTimeoutMs: 3000,
		},
		Log: LogConfig{
			Level: "info",
		},
		Monitor: MonitorConfig{
			Signal:    address.AxisTheta,
			MechID:    1,
			CycleMs:   5,
			DurationS: 10,
		},
		Metrics: MetricsConfig{
			Name: "flexmon",
		},
	}
}

// Load reads, parses and validates the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return cfg, nil
}

// Parse parses and validates a YAML document. Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks configuration correctness.
// It MUST NOT mutate configuration.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}

	c := cfg.Controller
	if c.Host == "" {
		return errors.New("controller.host is required")
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("controller.port %d out of range [0, 65535]", c.Port)
	}
	if c.ReplyTimeoutMs < 10 || c.ReplyTimeoutMs > 120000 {
		return fmt.Errorf("controller.reply_timeout_ms %d out of range [10, 120000]", c.ReplyTimeoutMs)
	}
	if c.ConnectTimeoutMs < 100 || c.ConnectTimeoutMs > 30000 {
		return fmt.Errorf("controller.connect_timeout_ms %d out of range [100, 30000]", c.ConnectTimeoutMs)
	}

	switch cfg.Log.Level {
	case "debug", "info", "warn", "warning", "error", "fatal":
	default:
		return fmt.Errorf("log.level %q must be one of debug, info, warn, error, fatal", cfg.Log.Level)
	}

	m := cfg.Monitor
	if _, err := address.Lookup(m.Signal); err != nil {
		return fmt.Errorf("monitor.signal: %w", err)
	}
	if m.MechID < 1 {
		return fmt.Errorf("monitor.mech_id %d must be at least 1", m.MechID)
	}
	if _, err := flexmsg.CycleFromDuration(time.Duration(m.CycleMs) * time.Millisecond); err != nil {
		return fmt.Errorf("monitor.cycle_ms: %w", err)
	}
	if m.Threshold < 0 {
		return fmt.Errorf("monitor.threshold %g must not be negative", m.Threshold)
	}
	if m.Output == "" {
		return errors.New("monitor.output is required")
	}
	if m.DurationS < 1 {
		return fmt.Errorf("monitor.duration_s %d must be at least 1", m.DurationS)
	}

	if cfg.Metrics.Listen != "" && cfg.Metrics.Name == "" {
		return errors.New("metrics.name is required when metrics.listen is set")
	}

	return nil
}

// ConnOptions returns the connection options of the controller section.
func (cfg *Config) ConnOptions() []controller.ConnOption {
	return []controller.ConnOption{
		controller.WithReplyTimeout(time.Duration(cfg.Controller.ReplyTimeoutMs) * time.Millisecond),
		controller.WithConnectTimeout(time.Duration(cfg.Controller.ConnectTimeoutMs) * time.Millisecond),
	}
}

// MonitorParams returns the subscription parameters of the monitor section.
// The duration becomes the Notify timeout.
func (cfg *Config) MonitorParams() (controller.MonitorParams, error) {
	cycle, err := flexmsg.CycleFromDuration(time.Duration(cfg.Monitor.CycleMs) * time.Millisecond)
	if err != nil {
		return controller.MonitorParams{}, err
	}

	threshold := cfg.Monitor.Threshold
	if threshold == 0 {
		threshold = controller.MinThreshold
	}

	return controller.MonitorParams{
		MechID:    cfg.Monitor.MechID,
		Cycle:     cycle,
		Threshold: threshold,
		Timeout:   cfg.Duration(),
	}, nil
}

// Duration returns how long the monitor runs.
func (cfg *Config) Duration() time.Duration {
	return time.Duration(cfg.Monitor.DurationS) * time.Second
}
