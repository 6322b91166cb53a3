package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Admin       AdminConfig        `yaml:"admin"`
	Build       BuildConfig        `yaml:"build"`
	Publish     PublishConfig      `yaml:"publish"`
	PostPublish PostPublishCommand `yaml:"post_publish"`
	Schedule    ScheduleConfig     `yaml:"schedule"`
	History     HistoryConfig      `yaml:"history"`
	Events      EventsConfig       `yaml:"events"`
	Monitoring  MonitoringConfig   `yaml:"monitoring"`
}

// AdminConfig configures the admin panel HTTP server.
type AdminConfig struct {
	Port  int    `yaml:"port"`
	Token string `yaml:"token,omitempty"`
	// Secret signs the panel's flash cookie. A per-process random secret is
	// generated when unset, which drops pending flashes across restarts.
	Secret string `yaml:"secret,omitempty"`
}

// SessionSecret returns the flash-cookie signing key.
func (a *AdminConfig) SessionSecret() string {
	return a.Secret
}

// BuildConfig configures the external site build command.
type BuildConfig struct {
	// Command is the external build binary. The build mechanics are an
	// opaque collaborator; we only invoke it and relay its output.
	Command    string   `yaml:"command"`
	Args       []string `yaml:"args,omitempty"`
	OutputDir  string   `yaml:"output_dir"`
	SkipStatic bool     `yaml:"skip_static"`
}

// PublishConfig configures the object-storage publish target.
type PublishConfig struct {
	Bucket      string `yaml:"bucket,omitempty"`
	Prefix      string `yaml:"prefix,omitempty"`
	Region      string `yaml:"region,omitempty"`
	DeleteStale bool   `yaml:"delete_stale"`
}

// ScheduleConfig configures optional periodic rebuilds in serve mode.
type ScheduleConfig struct {
	// Interval is a Go duration string ("1h", "30m"). Empty disables scheduling.
	Interval string `yaml:"interval,omitempty"`
	// Publish controls whether scheduled runs also publish.
	Publish bool `yaml:"publish"`
}

// HistoryConfig configures the run-history store.
type HistoryConfig struct {
	// Path is the sqlite database path; ":memory:" keeps history per-process.
	Path string `yaml:"path"`
}

// EventsConfig configures the optional NATS outcome bridge.
type EventsConfig struct {
	NATSURL string `yaml:"nats_url,omitempty"`
	Subject string `yaml:"subject,omitempty"`
}

// MonitoringConfig configures the metrics endpoint.
type MonitoringConfig struct {
	Metrics bool `yaml:"metrics"`
}

// Load reads configuration from a yaml file, applies defaults and the
// environment overlay, and validates the result. A missing file is not an
// error: the environment alone can fully configure the panel.
func Load(path string) (*Config, error) {
	loadDotenv()

	cfg := &Config{}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// Environment-only configuration.
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg.applyDefaults()
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// BucketConfigured reports whether a publish bucket is available.
func (c *Config) BucketConfigured() bool {
	return c.Publish.Bucket != ""
}
