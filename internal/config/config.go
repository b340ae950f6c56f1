package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	_ "time/tzdata"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config is read once at startup and treated as read-only afterwards.
type Config struct {
	Port int `env:"PORT" envDefault:"80"`

	// Evolution gateway.
	ServerURL       string        `env:"SERVER_URL"`
	Instance        string        `env:"INSTANCE"`
	APIKey          string        `env:"APIKEY"`
	MessageDelayMS  int           `env:"MESSAGE_DELAY_MS" envDefault:"1200"`
	MessagePresence string        `env:"MESSAGE_PRESENCE" envDefault:"composing"`
	GatewayTimeout  time.Duration `env:"GATEWAY_TIMEOUT" envDefault:"10s"`

	GroupID     string `env:"GROUP_ID"`
	GroupTestID string `env:"GROUP_TEST_ID"`

	DBPath      string `env:"DB_PATH" envDefault:"/app/data/status.db"`
	DatabaseURL string `env:"DATABASE_URL"`

	SideA         string `env:"SIDE_A" envDefault:"Goioerê"`
	SideB         string `env:"SIDE_B" envDefault:"Quarto Centenário"`
	ClosedKeyword string `env:"CLOSED_KEYWORD" envDefault:"fechado"`
	StatusKeyword string `env:"STATUS_KEYWORD" envDefault:"status"`
	// Timezone used when printing update times in replies.
	Timezone string `env:"TIMEZONE" envDefault:"America/Sao_Paulo"`

	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat       string        `env:"LOG_FORMAT" envDefault:"console"`

	loc *time.Location
}

// Load reads .env (when present) and the process environment.
// Variables already set in the environment win over .env entries.
func Load() (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return nil, fmt.Errorf("load .env: %w", err)
		}
	}
	return Parse()
}

// Parse builds a Config from the current environment only.
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.ServerURL) == "" {
		errs = append(errs, errors.New("SERVER_URL is required"))
	}
	if strings.TrimSpace(c.Instance) == "" {
		errs = append(errs, errors.New("INSTANCE is required"))
	}
	if strings.TrimSpace(c.SideA) == "" || strings.TrimSpace(c.SideB) == "" {
		errs = append(errs, errors.New("SIDE_A and SIDE_B must not be empty"))
	} else if strings.EqualFold(c.SideA, c.SideB) {
		errs = append(errs, fmt.Errorf("SIDE_A and SIDE_B must differ, both are %q", c.SideA))
	}
	if strings.TrimSpace(c.ClosedKeyword) == "" || strings.TrimSpace(c.StatusKeyword) == "" {
		errs = append(errs, errors.New("CLOSED_KEYWORD and STATUS_KEYWORD must not be empty"))
	}
	if loc, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("TIMEZONE: %w", err))
	} else {
		c.loc = loc
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT out of range: %d", c.Port))
	}
	return errors.Join(errs...)
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Location is the validated TIMEZONE, UTC when Validate has not run.
func (c *Config) Location() *time.Location {
	if c.loc == nil {
		return time.UTC
	}
	return c.loc
}

// AllowedChats lists the configured group ids, skipping unset ones.
func (c *Config) AllowedChats() []string {
	out := make([]string, 0, 2)
	for _, id := range []string{c.GroupID, c.GroupTestID} {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	return out
}
