package config

import (
	"errors"
	"strings"
	"time"
)

type Config struct {
	Discord  DiscordConfig  `json:"discord"`
	Logging  LoggingConfig  `json:"logging"`
	Storage  StorageConfig  `json:"storage"`
	Reminder ReminderConfig `json:"reminder"`
}

type DiscordConfig struct {
	Token string `json:"token"`

	// LogChannelID receives mirrored warn/error log lines when
	// logging.discord.enabled is true.
	LogChannelID string `json:"log_channel_id,omitempty"`
}

type LoggingConfig struct {
	Level   string           `json:"level,omitempty"`
	Console *bool            `json:"console,omitempty"`
	File    LogFileConfig    `json:"file,omitempty"`
	Discord LogDiscordConfig `json:"discord,omitempty"`
}

type LogFileConfig struct {
	Enabled bool   `json:"enabled,omitempty"`
	Path    string `json:"path,omitempty"`
}

type LogDiscordConfig struct {
	Enabled    bool   `json:"enabled,omitempty"`
	MinLevel   string `json:"min_level,omitempty"`
	RatePerSec int    `json:"rate_per_sec,omitempty"`
}

type StorageConfig struct {
	// Path of the sqlite database file.
	Path string `json:"path"`

	// BusyTimeout is a Go duration string (e.g. "5s"). Zero means driver default.
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

// ReminderConfig controls the bump reminder lifecycle.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "2h").
//
// Defaults (when fields are omitted/zero):
//   - delay: "2h" (Disboard bump cooldown)
//   - retention: "720h" (30 days of terminal records)
//   - cleanup_spec: "@hourly"
type ReminderConfig struct {
	// Delay between a detected bump and the reminder firing.
	Delay string `json:"delay,omitempty"`

	// Retention bounds how long sent/cancelled records are kept.
	Retention string `json:"retention,omitempty"`

	// CleanupSpec is the cron schedule of the retention sweep.
	CleanupSpec string `json:"cleanup_spec,omitempty"`

	// MentionRoleID is pinged by the delivery message when set.
	MentionRoleID string `json:"mention_role_id,omitempty"`
}

// Validate checks the static requirements that cannot be defaulted away.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if strings.TrimSpace(c.Discord.Token) == "" {
		return errors.New("discord.token is required")
	}
	if strings.TrimSpace(c.Storage.Path) == "" {
		return errors.New("storage.path is required")
	}
	if _, err := c.ReminderDelay(); err != nil {
		return err
	}
	if _, err := c.ReminderRetention(); err != nil {
		return err
	}
	return nil
}

func (c *Config) ReminderDelay() (time.Duration, error) {
	return ParseDurationOrDefault("reminder.delay", c.Reminder.Delay, 2*time.Hour)
}

func (c *Config) ReminderRetention() (time.Duration, error) {
	return ParseDurationOrDefault("reminder.retention", c.Reminder.Retention, 30*24*time.Hour)
}

func (c *Config) StorageBusyTimeout() (time.Duration, error) {
	return ParseDurationField("storage.busy_timeout", c.Storage.BusyTimeout)
}

func (c *Config) CleanupSpec() string {
	if s := strings.TrimSpace(c.Reminder.CleanupSpec); s != "" {
		return s
	}
	return "@hourly"
}

func (c *Config) ConsoleEnabled() bool {
	if c.Logging.Console == nil {
		return true
	}
	return *c.Logging.Console
}
