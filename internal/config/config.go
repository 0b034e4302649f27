package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	FileName = "officesim.yml"

	ClockSimulated = "simulated"
	ClockWall      = "wall"

	CalendarLayout = "2006-01-02"
)

// Config models officesim.yml.
type Config struct {
	Simulation Simulation `yaml:"simulation"`
	Weather    Weather    `yaml:"weather"`
	Scenarios  Scenarios  `yaml:"scenarios"`
	Journal    Journal    `yaml:"journal"`
	Server     Server     `yaml:"server"`
	Webhooks   []Webhook  `yaml:"webhooks"`
	Logging    Logging    `yaml:"logging"`
}

type Simulation struct {
	Seed                     uint64  `yaml:"seed"`
	Workers                  int     `yaml:"workers"`
	DayStart                 string  `yaml:"day_start"`
	DayEnd                   string  `yaml:"day_end"`
	InitialTasks             int     `yaml:"initial_tasks"`
	ScenarioCheckProbability float64 `yaml:"scenario_check_probability"`
	CalendarStart            string  `yaml:"calendar_start"`
	ScenarioClock            string  `yaml:"scenario_clock"`
}

type Weather struct {
	UpdateInterval int    `yaml:"update_interval"`
	Fixed          string `yaml:"fixed"`
}

type Scenarios struct {
	Dir          string `yaml:"dir"`
	TemplatesDir string `yaml:"templates_dir"`
}

type Journal struct {
	Enabled bool `yaml:"enabled"`
}

type Server struct {
	Addr            string `yaml:"addr"`
	BasePath        string `yaml:"base_path"`
	JWTSecret       string `yaml:"jwt_secret"`
	AutoTick        string `yaml:"auto_tick"`
	AutoTickMinutes int    `yaml:"auto_tick_minutes"`
}

// Webhook forwards journal events to an external URL.
type Webhook struct {
	URL            string   `yaml:"url"`
	Events         []string `yaml:"events"`
	Secret         string   `yaml:"secret"`
	Enabled        *bool    `yaml:"enabled"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
}

type Logging struct {
	Level   string `yaml:"level"`
	Format  string `yaml:"format"`
	Service string `yaml:"service"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create one with officesim config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Simulation.Workers < 0 {
		return fmt.Errorf("simulation.workers must not be negative")
	}
	start, err := c.DayStartMinute()
	if err != nil {
		return fmt.Errorf("simulation.day_start: %w", err)
	}
	end, err := c.DayEndMinute()
	if err != nil {
		return fmt.Errorf("simulation.day_end: %w", err)
	}
	if end <= start {
		return fmt.Errorf("simulation.day_end must be after day_start")
	}
	if c.Simulation.InitialTasks < 0 {
		return fmt.Errorf("simulation.initial_tasks must not be negative")
	}
	if p := c.Simulation.ScenarioCheckProbability; p < 0 || p > 1 {
		return fmt.Errorf("simulation.scenario_check_probability must be within [0,1]")
	}
	if _, err := c.CalendarStart(); err != nil {
		return fmt.Errorf("simulation.calendar_start: %w", err)
	}
	switch c.Simulation.ScenarioClock {
	case ClockSimulated, ClockWall:
	default:
		return fmt.Errorf("simulation.scenario_clock must be %q or %q", ClockSimulated, ClockWall)
	}
	if c.Weather.UpdateInterval <= 0 {
		return fmt.Errorf("weather.update_interval must be positive")
	}
	if c.Server.AutoTick != "" {
		if _, err := time.ParseDuration(c.Server.AutoTick); err != nil {
			return fmt.Errorf("server.auto_tick: %w", err)
		}
	}
	for i, hook := range c.Webhooks {
		if strings.TrimSpace(hook.URL) == "" {
			return fmt.Errorf("webhooks[%d].url is required", i)
		}
	}
	return nil
}

// DayStartMinute returns the configured day start as minutes after midnight.
func (c *Config) DayStartMinute() (int, error) {
	return ParseClock(c.Simulation.DayStart)
}

// DayEndMinute returns the configured day end as minutes after midnight.
func (c *Config) DayEndMinute() (int, error) {
	return ParseClock(c.Simulation.DayEnd)
}

// CalendarStart returns the date that simulated day 1 falls on.
func (c *Config) CalendarStart() (time.Time, error) {
	return time.Parse(CalendarLayout, c.Simulation.CalendarStart)
}

// AutoTickInterval returns the server auto-tick period, zero when disabled.
func (c *Config) AutoTickInterval() time.Duration {
	d, err := time.ParseDuration(c.Server.AutoTick)
	if err != nil {
		return 0
	}
	return d
}

// ParseClock converts "HH:MM" into minutes after midnight.
func ParseClock(s string) (int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid clock %q (want HH:MM)", s)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, FileName)
}

// GenerateDefault returns default config YAML.
func GenerateDefault(seed uint64) string {
	return fmt.Sprintf(defaultTemplate, seed)
}

// LoadOptional returns the default config if the file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Default returns the default Config struct.
func Default() *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(GenerateDefault(0))).Decode(&cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes. Keys missing
// from data keep their default values.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `simulation:
  seed: %d
  workers: 8
  day_start: "08:00"
  day_end: "18:00"
  initial_tasks: 20
  scenario_check_probability: 0.05
  calendar_start: "2024-01-01"
  scenario_clock: simulated

weather:
  update_interval: 60

scenarios:
  dir: data/scenarios
  templates_dir: data/tasks

journal:
  enabled: true

server:
  addr: "127.0.0.1:8080"
  base_path: /v0
  auto_tick: ""
  auto_tick_minutes: 1

logging:
  level: info
  format: text
  service: officesim
`
