// Package config loads the weekly report settings from the environment, an
// optional .env file and an optional YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	ProviderGoogle = "google"
	ProviderICS    = "ics"
	ProviderNone   = "none"
)

type Config struct {
	TZ       string         `yaml:"tz"`
	GitHub   GitHubConfig   `yaml:"github"`
	Calendar CalendarConfig `yaml:"calendar"`
	Email    EmailConfig    `yaml:"email"`
	Output   OutputConfig   `yaml:"output"`
	Schedule string         `yaml:"schedule"`
	Listen   string         `yaml:"listen"`
}

type GitHubConfig struct {
	Tokens            []string `yaml:"tokens"`
	Username          string   `yaml:"username"`
	Actions           bool     `yaml:"actions"`
	Repository        string   `yaml:"repository"`
	Workflow          string   `yaml:"workflow"`
	RequestsPerSecond float64  `yaml:"requests_per_second"`
}

type CalendarConfig struct {
	Provider     string   `yaml:"provider"`
	ClientID     string   `yaml:"client_id"`
	ClientSecret string   `yaml:"client_secret"`
	RefreshToken string   `yaml:"refresh_token"`
	CalendarID   string   `yaml:"calendar_id"`
	ICSURL       string   `yaml:"ics_url"`
	Mode         string   `yaml:"mode"`
	Exclude      []string `yaml:"exclude"`
	TokenDir     string   `yaml:"token_dir"`
}

type EmailConfig struct {
	Enabled  bool     `yaml:"enabled"`
	From     string   `yaml:"from"`
	To       []string `yaml:"to"`
	Subject  string   `yaml:"subject"`
	User     string   `yaml:"user"`
	Password string   `yaml:"password"`
	Host     string   `yaml:"host"`
	Port     int      `yaml:"port"`
}

type OutputConfig struct {
	Directory string   `yaml:"directory"`
	Formats   []string `yaml:"formats"`
	Template  string   `yaml:"template"`
}

// envBindings maps config keys to the environment variables that set them.
var envBindings = map[string]string{
	"tz":                         "TZ",
	"github.tokens":              "GITHUB_TOKENS",
	"github.username":            "GITHUB_USERNAME",
	"github.actions":             "GITHUB_ACTIONS",
	"github.repository":          "GITHUB_REPOSITORY",
	"github.workflow":            "GITHUB_WORKFLOW",
	"github.requests_per_second": "GITHUB_REQUESTS_PER_SECOND",
	"calendar.provider":          "CALENDAR_PROVIDER",
	"calendar.client_id":         "GOOGLE_CALENDAR_CLIENT_ID",
	"calendar.client_secret":     "GOOGLE_CALENDAR_CLIENT_SECRET",
	"calendar.refresh_token":     "GOOGLE_CALENDAR_REFRESH_TOKEN",
	"calendar.calendar_id":       "GOOGLE_CALENDAR_ID",
	"calendar.ics_url":           "CALENDAR_ICS_URL",
	"calendar.mode":              "CALENDAR_MODE",
	"calendar.exclude":           "CALENDAR_EXCLUDE",
	"calendar.token_dir":         "TOKEN_DIR",
	"email.enabled":              "EMAIL_ENABLED",
	"email.from":                 "EMAIL_FROM",
	"email.to":                   "EMAIL_TO",
	"email.subject":              "EMAIL_SUBJECT",
	"email.user":                 "GOOGLE_APP_USER",
	"email.password":             "GOOGLE_EMAIL_APP_PASSWORD",
	"email.host":                 "EMAIL_SMTP_HOST",
	"email.port":                 "EMAIL_SMTP_PORT",
	"output.directory":           "OUTPUT_DIR",
	"output.formats":             "OUTPUT_FORMAT",
	"output.template":            "EMAIL_TEMPLATE",
	"schedule":                   "SCHEDULE",
	"listen":                     "LISTEN_ADDR",
}

// Default returns the settings used when nothing overrides them.
func Default() *Config {
	return &Config{
		TZ: "Etc/UTC",
		GitHub: GitHubConfig{
			RequestsPerSecond: 2,
		},
		Calendar: CalendarConfig{
			Provider:   ProviderGoogle,
			CalendarID: "primary",
			Mode:       "duration",
			TokenDir:   ".weeklyreport",
		},
		Email: EmailConfig{
			Subject: "Weekly Activity Report",
			Host:    "smtp.gmail.com",
			Port:    587,
		},
		Output: OutputConfig{
			Directory: "reports",
		},
		Schedule: "0 8 * * 1",
		Listen:   ":8080",
	}
}

// LoadDotenv loads .env files into the environment. Missing files are not an
// error.
func LoadDotenv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// Load reads the YAML file at path, when given, and applies environment
// variables on top.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{
		TZ: v.GetString("tz"),
		GitHub: GitHubConfig{
			Tokens:            listValue(v, "github.tokens", ";"),
			Username:          v.GetString("github.username"),
			Actions:           v.GetBool("github.actions"),
			Repository:        v.GetString("github.repository"),
			Workflow:          v.GetString("github.workflow"),
			RequestsPerSecond: v.GetFloat64("github.requests_per_second"),
		},
		Calendar: CalendarConfig{
			Provider:     strings.ToLower(v.GetString("calendar.provider")),
			ClientID:     v.GetString("calendar.client_id"),
			ClientSecret: v.GetString("calendar.client_secret"),
			RefreshToken: v.GetString("calendar.refresh_token"),
			CalendarID:   v.GetString("calendar.calendar_id"),
			ICSURL:       v.GetString("calendar.ics_url"),
			Mode:         v.GetString("calendar.mode"),
			Exclude:      listValue(v, "calendar.exclude", ";"),
			TokenDir:     v.GetString("calendar.token_dir"),
		},
		Email: EmailConfig{
			Enabled:  v.GetBool("email.enabled"),
			From:     v.GetString("email.from"),
			To:       listValue(v, "email.to", ";"),
			Subject:  v.GetString("email.subject"),
			User:     v.GetString("email.user"),
			Password: v.GetString("email.password"),
			Host:     v.GetString("email.host"),
			Port:     v.GetInt("email.port"),
		},
		Output: OutputConfig{
			Directory: v.GetString("output.directory"),
			Formats:   listValue(v, "output.formats", ","),
			Template:  v.GetString("output.template"),
		},
		Schedule: v.GetString("schedule"),
		Listen:   v.GetString("listen"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("tz", d.TZ)
	v.SetDefault("github.requests_per_second", d.GitHub.RequestsPerSecond)
	v.SetDefault("calendar.provider", d.Calendar.Provider)
	v.SetDefault("calendar.calendar_id", d.Calendar.CalendarID)
	v.SetDefault("calendar.mode", d.Calendar.Mode)
	v.SetDefault("calendar.token_dir", d.Calendar.TokenDir)
	v.SetDefault("email.subject", d.Email.Subject)
	v.SetDefault("email.host", d.Email.Host)
	v.SetDefault("email.port", d.Email.Port)
	v.SetDefault("output.directory", d.Output.Directory)
	v.SetDefault("schedule", d.Schedule)
	v.SetDefault("listen", d.Listen)
}

// listValue accepts either a YAML list or a single string split on sep, as
// environment variables carry lists.
func listValue(v *viper.Viper, key, sep string) []string {
	if s, ok := v.Get(key).(string); ok {
		return SplitList(s, sep)
	}
	var out []string
	for _, item := range v.GetStringSlice(key) {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// SplitList splits s on sep, trims every part and drops empty ones.
func SplitList(s, sep string) []string {
	var out []string
	for _, part := range strings.Split(s, sep) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate reports every missing or invalid setting in a single error.
func (c *Config) Validate() error {
	var missing []string
	require := func(value, env string) {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, env)
		}
	}

	require(c.TZ, "TZ")
	if len(c.GitHub.Tokens) == 0 {
		missing = append(missing, "GITHUB_TOKENS")
	}
	require(c.GitHub.Username, "GITHUB_USERNAME")
	if c.GitHub.Actions {
		require(c.GitHub.Repository, "GITHUB_REPOSITORY")
		require(c.GitHub.Workflow, "GITHUB_WORKFLOW")
	}

	if c.Email.Enabled {
		require(c.Email.From, "EMAIL_FROM")
		if len(c.Email.To) == 0 {
			missing = append(missing, "EMAIL_TO")
		}
		require(c.Email.User, "GOOGLE_APP_USER")
		require(c.Email.Password, "GOOGLE_EMAIL_APP_PASSWORD")
	}

	var problems []string
	switch c.Calendar.Provider {
	case ProviderGoogle:
		require(c.Calendar.ClientID, "GOOGLE_CALENDAR_CLIENT_ID")
		require(c.Calendar.ClientSecret, "GOOGLE_CALENDAR_CLIENT_SECRET")
		require(c.Calendar.RefreshToken, "GOOGLE_CALENDAR_REFRESH_TOKEN")
		require(c.Calendar.CalendarID, "GOOGLE_CALENDAR_ID")
	case ProviderICS:
		require(c.Calendar.ICSURL, "CALENDAR_ICS_URL")
	case ProviderNone:
	default:
		problems = append(problems, fmt.Sprintf("unknown calendar provider %q", c.Calendar.Provider))
	}

	if c.TZ != "" {
		if _, err := c.Location(); err != nil {
			problems = append(problems, err.Error())
		}
	}

	if len(missing) > 0 {
		problems = append([]string{"missing environment variables: " + strings.Join(missing, ", ")}, problems...)
	}
	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

// Location resolves TZ.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.TZ)
	if err != nil {
		return nil, fmt.Errorf("invalid time zone %q: %w", c.TZ, err)
	}
	return loc, nil
}

// WriteDefault writes a YAML skeleton of the default settings to path. An
// existing file is only replaced when overwrite is set.
func WriteDefault(path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists", path)
		}
	}

	data, err := yaml.Marshal(Default())
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".weeklyreport-*.yaml")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write config: %w", err)
	}
	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to set config permissions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return os.Rename(tmp.Name(), path)
}
