// Package config loads the heylo-register configuration: site URLs, the
// table of known events, timings and browser settings.
//
// Built-in defaults describe the deployment the tool was written for; a YAML
// file only needs to carry what differs.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pfrederiksen/heylo-register/internal/event"
	"github.com/pfrederiksen/heylo-register/internal/register"
	"github.com/pfrederiksen/heylo-register/internal/scraper"
	"gopkg.in/yaml.v3"
)

// Config is the full run configuration
type Config struct {
	Site     SiteConfig             `yaml:"site"`
	Events   map[string]EventConfig `yaml:"events"`
	Timing   TimingConfig           `yaml:"timing"`
	Browser  BrowserConfig          `yaml:"browser"`
	Steps    []register.Step        `yaml:"steps"`
	Scraper  scraper.Selectors      `yaml:"selectors"`
	Telegram TelegramConfig         `yaml:"telegram"`
}

// SiteConfig holds the Heylo URLs
type SiteConfig struct {
	BaseURL   string `yaml:"base_url"`
	LoginPath string `yaml:"login_path"`
	// EventsURL is the group's event listing page.
	EventsURL string `yaml:"events_url"`
}

// LoginURL is BaseURL joined with LoginPath
func (s SiteConfig) LoginURL() string {
	return strings.TrimRight(s.BaseURL, "/") + "/" + strings.TrimLeft(s.LoginPath, "/")
}

// EventConfig describes one selectable event. Weekday, when set, adds the
// abbreviations of that day in both site languages to Weekdays.
type EventConfig struct {
	Title    string   `yaml:"title"`
	Weekday  string   `yaml:"weekday,omitempty"`
	Weekdays []string `yaml:"weekdays,omitempty"`
}

// Rule converts the entry to a match rule
func (e EventConfig) Rule() (event.Rule, error) {
	rule := event.Rule{Title: e.Title, Weekdays: append([]string(nil), e.Weekdays...)}
	if e.Weekday != "" {
		d, err := event.ParseWeekday(e.Weekday)
		if err != nil {
			return event.Rule{}, err
		}
		for _, tok := range event.WeekdayTokens(d) {
			if !contains(rule.Weekdays, tok) {
				rule.Weekdays = append(rule.Weekdays, tok)
			}
		}
	}
	return rule, rule.Validate()
}

// TimingConfig holds the loop timings
type TimingConfig struct {
	PollInterval     time.Duration `yaml:"poll_interval"`
	RenderTimeout    time.Duration `yaml:"render_timeout"`
	NavigateTimeout  time.Duration `yaml:"navigate_timeout"`
	StepWait         time.Duration `yaml:"step_wait"`
	RetryPause       time.Duration `yaml:"retry_pause"`
	AuthPollInterval time.Duration `yaml:"auth_poll_interval"`
	HoldInterval     time.Duration `yaml:"hold_interval"`
	// HeartbeatEvery logs a progress line every n polls.
	HeartbeatEvery int `yaml:"heartbeat_every"`
}

// BrowserConfig configures the Chrome process
type BrowserConfig struct {
	ExecPath    string `yaml:"exec_path"`
	UserDataDir string `yaml:"user_data_dir"`
	Profile     string `yaml:"profile"`
	Headless    bool   `yaml:"headless"`
}

// TelegramConfig enables success notifications when both fields are set
type TelegramConfig struct {
	BotToken string `yaml:"bot_token"`
	ChatID   string `yaml:"chat_id"`
}

// Enabled reports whether Telegram notifications are configured
func (t TelegramConfig) Enabled() bool {
	return t.BotToken != "" && t.ChatID != ""
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Site: SiteConfig{
			BaseURL:   "https://www.heylo.com",
			LoginPath: "/login",
			EventsURL: "https://www.heylo.com/events/85c6b042-62cd-47f3-a439-1dd9417f4246",
		},
		Events: map[string]EventConfig{
			"montmartre": {Title: "Thursday - Montmartre Stairs Challenge", Weekday: "thursday"},
			"bootcamp":   {Title: "Tuesday Bootcamp Run", Weekday: "tuesday"},
		},
		Timing: TimingConfig{
			PollInterval:     time.Second,
			RenderTimeout:    2 * time.Second,
			NavigateTimeout:  30 * time.Second,
			StepWait:         5 * time.Second,
			RetryPause:       3 * time.Second,
			AuthPollInterval: time.Second,
			HoldInterval:     30 * time.Second,
			HeartbeatEvery:   60,
		},
		Browser: BrowserConfig{
			UserDataDir: defaultUserDataDir(),
			Profile:     "Default",
		},
		Scraper: scraper.DefaultSelectors(),
	}
}

// defaultUserDataDir is the regular Chrome profile location, so a login made
// in everyday browsing is picked up.
func defaultUserDataDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	if _, err := os.Stat(filepath.Join(dir, "Google", "Chrome")); err == nil {
		return filepath.Join(dir, "Google", "Chrome")
	}
	return filepath.Join(dir, "google-chrome")
}

// Load reads path over the defaults. An empty path yields the defaults.
// An events table in the file replaces the built-in one.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, cfg.Validate()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var raw struct {
		Events map[string]EventConfig `yaml:"events"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if raw.Events != nil {
		cfg.Events = nil
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, cfg.Validate()
}

// ApplyEnv overrides secrets from the environment
func (c *Config) ApplyEnv() {
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		c.Telegram.ChatID = v
	}
}

// EventKeys returns the configured event keys, sorted
func (c *Config) EventKeys() []string {
	keys := make([]string, 0, len(c.Events))
	for k := range c.Events {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Rule returns the match rule for key
func (c *Config) Rule(key string) (event.Rule, error) {
	e, ok := c.Events[key]
	if !ok {
		return event.Rule{}, fmt.Errorf("unknown event %q (choose from: %s)", key, strings.Join(c.EventKeys(), ", "))
	}
	rule, err := e.Rule()
	if err != nil {
		return event.Rule{}, fmt.Errorf("event %q: %w", key, err)
	}
	return rule, nil
}

// RegistrationSteps returns the configured steps, or the default flow with
// Timing.StepWait when none are configured.
func (c *Config) RegistrationSteps() []register.Step {
	if len(c.Steps) > 0 {
		return c.Steps
	}
	return register.DefaultSteps(c.Timing.StepWait)
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	var errs []error

	for name, raw := range map[string]string{
		"site.base_url":   c.Site.BaseURL,
		"site.events_url": c.Site.EventsURL,
	} {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("%s must be an absolute URL, got %q", name, raw))
		}
	}

	if len(c.Events) == 0 {
		errs = append(errs, errors.New("events: at least one event is required"))
	}
	for _, key := range c.EventKeys() {
		if _, err := c.Rule(key); err != nil {
			errs = append(errs, err)
		}
	}

	t := c.Timing
	for name, d := range map[string]time.Duration{
		"timing.poll_interval":      t.PollInterval,
		"timing.render_timeout":     t.RenderTimeout,
		"timing.navigate_timeout":   t.NavigateTimeout,
		"timing.step_wait":          t.StepWait,
		"timing.retry_pause":        t.RetryPause,
		"timing.auth_poll_interval": t.AuthPollInterval,
		"timing.hold_interval":      t.HoldInterval,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", name))
		}
	}

	if err := register.ValidateSteps(c.RegistrationSteps()); err != nil {
		errs = append(errs, fmt.Errorf("steps: %w", err))
	}

	return errors.Join(errs...)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
