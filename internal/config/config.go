package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/wb-go/wbf/retry"
	"gopkg.in/yaml.v3"

	"reminderdesk/internal/domain"
)

const (
	PermReminderCreate  = "reminder.create"
	PermReminderRead    = "reminder.read"
	PermReminderUpdate  = "reminder.update"
	PermReminderApprove = "reminder.approve"
	PermReminderReject  = "reminder.reject"
	PermUserRead        = "user.read"
	PermUserManage      = "user.manage"
	PermEventsRead      = "events.read"
)

// Config models reminderdesk.yml.
type Config struct {
	Roles  map[string]RoleConfig `yaml:"roles"`
	Alerts struct {
		EarlySeconds           int    `yaml:"early_seconds"`
		GraceSeconds           int    `yaml:"grace_seconds"`
		AlertIntervalSeconds   int    `yaml:"alert_interval_seconds"`
		RefreshIntervalSeconds int    `yaml:"refresh_interval_seconds"`
		Timezone               string `yaml:"timezone"`
	} `yaml:"alerts"`
	Snooze struct {
		Presets    []int `yaml:"presets"`
		MaxMinutes int   `yaml:"max_minutes"`
	} `yaml:"snooze"`
	Notify struct {
		Email    EmailConfig     `yaml:"email"`
		Webhooks []WebhookConfig `yaml:"webhooks"`
	} `yaml:"notify"`
	Auth struct {
		JWTSecret  string `yaml:"jwt_secret"`
		Issuer     string `yaml:"issuer"`
		Audience   string `yaml:"audience"`
		DevHeaders bool   `yaml:"dev_headers"`
		DevTokens  bool   `yaml:"dev_tokens"`
	} `yaml:"auth"`
}

type RoleConfig struct {
	Description string   `yaml:"description"`
	Permissions []string `yaml:"permissions"`
}

type EmailConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

type WebhookConfig struct {
	ID             string   `yaml:"id"`
	URL            string   `yaml:"url"`
	Secret         string   `yaml:"secret"`
	Events         []string `yaml:"events"`
	Enabled        *bool    `yaml:"enabled"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
	MaxAttempts    int      `yaml:"max_attempts"`
	BackoffMillis  int      `yaml:"backoff_ms"`
	BackoffFactor  float64  `yaml:"backoff_factor"`
}

// Strategy is the delivery retry policy: max_attempts tries, the first retry
// after backoff_ms, each later one backoff_factor times longer.
func (w WebhookConfig) Strategy() retry.Strategy {
	s := retry.Strategy{
		Attempts: w.MaxAttempts,
		Delay:    time.Duration(w.BackoffMillis) * time.Millisecond,
		Backoff:  w.BackoffFactor,
	}
	if s.Attempts < 1 {
		s.Attempts = 1
	}
	if s.Delay <= 0 {
		s.Delay = 500 * time.Millisecond
	}
	if s.Backoff < 1 {
		s.Backoff = 2
	}
	return s
}

// IsEnabled treats a missing enabled flag as on.
func (w WebhookConfig) IsEnabled() bool {
	return (w.Enabled == nil || *w.Enabled) && strings.TrimSpace(w.URL) != ""
}

// Accepts reports whether the hook subscribes to evtType. No filter means all.
func (w WebhookConfig) Accepts(evtType string) bool {
	if len(w.Events) == 0 {
		return true
	}
	for _, e := range w.Events {
		e = strings.TrimSpace(e)
		if e == "*" || e == evtType {
			return true
		}
		if strings.HasSuffix(e, ".*") && strings.HasPrefix(evtType, strings.TrimSuffix(e, "*")) {
			return true
		}
	}
	return false
}

// Key identifies the hook for cursor bookkeeping.
func (w WebhookConfig) Key() string {
	if w.ID != "" {
		return w.ID
	}
	return w.URL
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create one with rd init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional falls back to Default when the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "reminderdesk.yml")
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg, err := FromYAML([]byte(DefaultYAML))
	if err != nil {
		panic(fmt.Sprintf("default config: %v", err))
	}
	return cfg
}

// FromYAML parses, fills defaults and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

func (c *Config) applyDefaults() {
	if c.Alerts.EarlySeconds == 0 {
		c.Alerts.EarlySeconds = 60
	}
	if c.Alerts.GraceSeconds == 0 {
		c.Alerts.GraceSeconds = 300
	}
	if c.Alerts.AlertIntervalSeconds == 0 {
		c.Alerts.AlertIntervalSeconds = 30
	}
	if c.Alerts.RefreshIntervalSeconds == 0 {
		c.Alerts.RefreshIntervalSeconds = 10
	}
	if c.Snooze.MaxMinutes == 0 {
		c.Snooze.MaxMinutes = 24 * 60
	}
	if len(c.Snooze.Presets) == 0 {
		c.Snooze.Presets = []int{5, 10, 15, 30, 60}
	}
	if c.Notify.Email.Port == 0 {
		c.Notify.Email.Port = 587
	}
	for i := range c.Notify.Webhooks {
		if c.Notify.Webhooks[i].TimeoutSeconds == 0 {
			c.Notify.Webhooks[i].TimeoutSeconds = 5
		}
		if c.Notify.Webhooks[i].MaxAttempts == 0 {
			c.Notify.Webhooks[i].MaxAttempts = 3
		}
		if c.Notify.Webhooks[i].BackoffMillis == 0 {
			c.Notify.Webhooks[i].BackoffMillis = 500
		}
		if c.Notify.Webhooks[i].BackoffFactor == 0 {
			c.Notify.Webhooks[i].BackoffFactor = 2
		}
	}
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if len(c.Roles) == 0 {
		return fmt.Errorf("config.roles is required")
	}
	for name, role := range c.Roles {
		if _, err := domain.ParseRole(name); err != nil {
			return fmt.Errorf("config.roles: %w", err)
		}
		for _, perm := range role.Permissions {
			if perm == "" {
				return fmt.Errorf("role %s has empty permission id", name)
			}
		}
	}
	if c.Alerts.EarlySeconds < 0 || c.Alerts.GraceSeconds < 0 {
		return fmt.Errorf("config.alerts window must not be negative")
	}
	if c.Alerts.AlertIntervalSeconds < 0 || c.Alerts.RefreshIntervalSeconds < 0 {
		return fmt.Errorf("config.alerts intervals must be positive")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.Snooze.MaxMinutes < 1 {
		return fmt.Errorf("config.snooze.max_minutes must be at least 1")
	}
	for _, m := range c.Snooze.Presets {
		if m < 1 || m > c.Snooze.MaxMinutes {
			return fmt.Errorf("snooze preset %d outside 1..%d", m, c.Snooze.MaxMinutes)
		}
	}
	if c.Notify.Email.Enabled {
		if c.Notify.Email.Host == "" || c.Notify.Email.From == "" {
			return fmt.Errorf("config.notify.email requires host and from when enabled")
		}
	}
	seen := map[string]bool{}
	for i, wh := range c.Notify.Webhooks {
		if wh.URL == "" {
			return fmt.Errorf("config.notify.webhooks[%d].url is required", i)
		}
		if wh.MaxAttempts < 0 || wh.BackoffMillis < 0 || wh.BackoffFactor < 0 {
			return fmt.Errorf("config.notify.webhooks[%d] retry settings must not be negative", i)
		}
		if wh.ID != "" {
			if seen[wh.ID] {
				return fmt.Errorf("duplicate webhook id %s", wh.ID)
			}
			seen[wh.ID] = true
		}
	}
	return nil
}

// Location resolves alerts.timezone; empty or "Local" means the host zone.
func (c *Config) Location() (*time.Location, error) {
	tz := strings.TrimSpace(c.Alerts.Timezone)
	if tz == "" || strings.EqualFold(tz, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("config.alerts.timezone: %w", err)
	}
	return loc, nil
}

func (c *Config) AlertEarly() time.Duration {
	return time.Duration(c.Alerts.EarlySeconds) * time.Second
}

func (c *Config) AlertGrace() time.Duration {
	return time.Duration(c.Alerts.GraceSeconds) * time.Second
}

func (c *Config) AlertInterval() time.Duration {
	return time.Duration(c.Alerts.AlertIntervalSeconds) * time.Second
}

func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.Alerts.RefreshIntervalSeconds) * time.Second
}

// Permissions returns the permission ids granted to a role.
func (c *Config) Permissions(role domain.Role) []string {
	for name, rc := range c.Roles {
		if strings.EqualFold(name, string(role)) {
			return rc.Permissions
		}
	}
	return nil
}

func (c *Config) HasPermission(role domain.Role, perm string) bool {
	return slices.Contains(c.Permissions(role), perm)
}

// RolesWith lists the roles holding perm.
func (c *Config) RolesWith(perm string) domain.RoleSet {
	var out []domain.Role
	for name, rc := range c.Roles {
		if !slices.Contains(rc.Permissions, perm) {
			continue
		}
		if r, err := domain.ParseRole(name); err == nil {
			out = append(out, r)
		}
	}
	return domain.NewRoleSet(out...)
}

const DefaultYAML = `roles:
  Admin:
    description: "Manages user accounts"
    permissions: [user.read, user.manage, events.read]
  CEO:
    description: "Approves reminders"
    permissions: [reminder.create, reminder.read, reminder.update, reminder.approve, reminder.reject, user.read, events.read]
  CTO:
    description: "Approves reminders"
    permissions: [reminder.create, reminder.read, reminder.update, reminder.approve, reminder.reject, user.read, events.read]
  HR:
    description: "Raises reminders for approval"
    permissions: [reminder.create, reminder.read, reminder.update, user.read]

alerts:
  early_seconds: 60
  grace_seconds: 300
  alert_interval_seconds: 30
  refresh_interval_seconds: 10
  timezone: Local

snooze:
  presets: [5, 10, 15, 30, 60]
  max_minutes: 1440

notify:
  email:
    enabled: false
    host: ""
    port: 587
    from: ""
  webhooks: []

auth:
  jwt_secret: ""
  dev_headers: false
  dev_tokens: false
`
