package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Heat       HeatConfig       `yaml:"heat"`
	Decay      DecayConfig      `yaml:"decay"`
	Detectors  DetectorsConfig  `yaml:"detectors"`
	Screens    ScreensConfig    `yaml:"screens"`
	Escalation EscalationConfig `yaml:"escalation"`
	Redis      RedisConfig      `yaml:"redis"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
	Env  string `yaml:"env"`
}

type HeatConfig struct {
	QuarantineThreshold float64 `yaml:"quarantine_threshold"`
	TimeoutThreshold    float64 `yaml:"timeout_threshold"`
	HighRiskThreshold   float64 `yaml:"high_risk_threshold"`
}

type DecayConfig struct {
	IntervalMinutes int     `yaml:"interval_minutes"`
	Rate            float64 `yaml:"rate"`
}

type DetectorsConfig struct {
	Message DetectorWindowConfig `yaml:"message"`
	Command DetectorWindowConfig `yaml:"command"`
	// SweepIntervalMinutes controls how often idle detector windows are
	// evicted; RetentionMinutes is how long an idle window survives.
	SweepIntervalMinutes int `yaml:"sweep_interval_minutes"`
	RetentionMinutes     int `yaml:"retention_minutes"`
}

type DetectorWindowConfig struct {
	WindowCapacity   int `yaml:"window_capacity"`
	IntervalSeconds  int `yaml:"interval_seconds"`
	MaxPerInterval   int `yaml:"max_per_interval"`
	MaxIdentical     int `yaml:"max_identical"`
	MentionThreshold int `yaml:"mention_threshold"`
	MaxNewlines      int `yaml:"max_newlines"`
}

type ScreensConfig struct {
	HoneypotChannelID string `yaml:"honeypot_channel_id"`
	InviteLinks       *bool  `yaml:"invite_links"`
	ImageBait         *bool  `yaml:"image_bait"`
	KickUnderDays     int    `yaml:"kick_under_days"`
	FlagUnderDays     int    `yaml:"flag_under_days"`
}

type EscalationConfig struct {
	MessageTimeoutMinutes int   `yaml:"message_timeout_minutes"`
	CommandTimeoutMinutes int   `yaml:"command_timeout_minutes"`
	Warn                  *bool `yaml:"warn"`
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// DefaultConfig returns the built-in tuning. LoadConfig layers file values
// on top of it, so a partial config file is always valid.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr: ":8080",
			Env:  "development",
		},
		Heat: HeatConfig{
			QuarantineThreshold: 75,
			TimeoutThreshold:    50,
			HighRiskThreshold:   50,
		},
		Decay: DecayConfig{
			IntervalMinutes: 60,
			Rate:            2.0,
		},
		Detectors: DetectorsConfig{
			Message: DetectorWindowConfig{
				WindowCapacity:   10,
				IntervalSeconds:  5,
				MaxPerInterval:   5,
				MaxIdentical:     3,
				MentionThreshold: 5,
				MaxNewlines:      30,
			},
			Command: DetectorWindowConfig{
				WindowCapacity:  20,
				IntervalSeconds: 60,
				MaxPerInterval:  10,
				MaxIdentical:    5,
			},
			SweepIntervalMinutes: 5,
			RetentionMinutes:     10,
		},
		Screens: ScreensConfig{
			KickUnderDays: 1,
			FlagUnderDays: 7,
		},
		Escalation: EscalationConfig{
			MessageTimeoutMinutes: 10,
			CommandTimeoutMinutes: 15,
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
	}
}

// LoadConfig reads a YAML config file and merges it over the defaults.
// A missing file is not an error; defaults are returned unchanged.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}
	defer f.Close()

	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (d DecayConfig) Interval() time.Duration {
	return time.Duration(d.IntervalMinutes) * time.Minute
}

func (d DetectorsConfig) SweepInterval() time.Duration {
	return time.Duration(d.SweepIntervalMinutes) * time.Minute
}

func (d DetectorsConfig) Retention() time.Duration {
	return time.Duration(d.RetentionMinutes) * time.Minute
}

func (d DetectorWindowConfig) Interval() time.Duration {
	return time.Duration(d.IntervalSeconds) * time.Second
}

// InviteLinksEnabled resolves the optional invite-link toggle, defaulting to on.
func (s ScreensConfig) InviteLinksEnabled() bool {
	return s.InviteLinks == nil || *s.InviteLinks
}

// ImageBaitEnabled resolves the optional image-bait toggle, defaulting to on.
func (s ScreensConfig) ImageBaitEnabled() bool {
	return s.ImageBait == nil || *s.ImageBait
}

// WarnEnabled resolves the optional courtesy-warning toggle, defaulting to on.
func (e EscalationConfig) WarnEnabled() bool {
	return e.Warn == nil || *e.Warn
}

func (e EscalationConfig) MessageTimeout() time.Duration {
	return time.Duration(e.MessageTimeoutMinutes) * time.Minute
}

func (e EscalationConfig) CommandTimeout() time.Duration {
	return time.Duration(e.CommandTimeoutMinutes) * time.Minute
}
