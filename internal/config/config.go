// Package config loads the session configuration file and applies
// environment overrides on top of it.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/AaronLay10/AssemblyEngine/internal/interaction"
)

const (
	defaultAPIPort  = 8080
	defaultTickRate = 60
	defaultMQTTURL  = "tcp://localhost:1883"
)

// SessionConfig is the parsed form of session.yaml.
type SessionConfig struct {
	Version int `yaml:"version"`
	Session struct {
		ID          string `yaml:"id"`
		Name        string `yaml:"name"`
		Description string `yaml:"description"`
	} `yaml:"session"`
	Participant struct {
		ID        int  `yaml:"id"`
		Authority bool `yaml:"authority"`
	} `yaml:"participant"`
	Network struct {
		APIPort int    `yaml:"api_port"`
		MQTTURL string `yaml:"mqtt_url"`
	} `yaml:"network"`
	Sync struct {
		SnapshotInterval time.Duration `yaml:"snapshot_interval"`
		DeltaInterval    time.Duration `yaml:"delta_interval"`
		ClaimTimeout     time.Duration `yaml:"claim_timeout"`
	} `yaml:"sync"`
	Interaction interaction.Options `yaml:"interaction"`
	// TickRate is the number of ticks per second.
	TickRate int `yaml:"tick_rate"`
	Paths    struct {
		Scene  string `yaml:"scene"`
		Tasks  string `yaml:"tasks"`
		Layout string `yaml:"layout"`
	} `yaml:"paths"`

	Database Database `yaml:"-"`
}

// Database holds the Postgres settings. They come from the environment only.
type Database struct {
	Enabled  bool   `env:"ASSEMBLY_POSTGRES" envDefault:"true"`
	Host     string `env:"PGHOST" envDefault:"127.0.0.1"`
	Port     int    `env:"PGPORT" envDefault:"5432"`
	User     string `env:"PGUSER" envDefault:"assembly"`
	Database string `env:"PGDATABASE" envDefault:"assembly"`
	SSLMode  string `env:"PGSSLMODE" envDefault:"disable"`
	Password string `env:"-"`
}

// overrides are the environment variables that replace file settings.
type overrides struct {
	SessionID     string `env:"ASSEMBLY_SESSION_ID"`
	ParticipantID *int   `env:"ASSEMBLY_PARTICIPANT_ID"`
	Authority     *bool  `env:"ASSEMBLY_AUTHORITY"`
	APIPort       int    `env:"ASSEMBLY_API_PORT"`
	MQTTURL       string `env:"MQTT_URL"`
	TickRate      int    `env:"ASSEMBLY_TICK_RATE"`
}

// LoadSessionConfig reads path, applies defaults and environment overrides.
func LoadSessionConfig(path string) (*SessionConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := SessionConfig{Interaction: interaction.DefaultOptions()}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if cfg.Version != 1 {
		return nil, fmt.Errorf("unsupported session.yaml version: %d", cfg.Version)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if cfg.Session.ID == "" {
		return nil, fmt.Errorf("session.id is required")
	}
	if cfg.Participant.ID < 0 {
		return nil, fmt.Errorf("participant.id must not be negative: %d", cfg.Participant.ID)
	}
	return &cfg, nil
}

func (c *SessionConfig) applyEnv() error {
	var o overrides
	if err := env.Parse(&o); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	if o.SessionID != "" {
		c.Session.ID = o.SessionID
	}
	if o.ParticipantID != nil {
		c.Participant.ID = *o.ParticipantID
	}
	if o.Authority != nil {
		c.Participant.Authority = *o.Authority
	}
	if o.APIPort != 0 {
		c.Network.APIPort = o.APIPort
	}
	if o.MQTTURL != "" {
		c.Network.MQTTURL = o.MQTTURL
	}
	if o.TickRate != 0 {
		c.TickRate = o.TickRate
	}

	if err := env.Parse(&c.Database); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	pass, err := ResolveSecret("PGPASSWORD")
	if err != nil {
		return err
	}
	c.Database.Password = pass
	return nil
}

// APIPort returns the configured API port, defaulting to 8080.
func (c *SessionConfig) APIPort() int {
	if c.Network.APIPort == 0 {
		return defaultAPIPort
	}
	return c.Network.APIPort
}

// MQTTURL returns the broker URL, defaulting to a local broker.
func (c *SessionConfig) MQTTURL() string {
	if c.Network.MQTTURL == "" {
		return defaultMQTTURL
	}
	return c.Network.MQTTURL
}

// TickInterval returns the duration of one tick.
func (c *SessionConfig) TickInterval() time.Duration {
	rate := c.TickRate
	if rate <= 0 {
		rate = defaultTickRate
	}
	return time.Second / time.Duration(rate)
}
