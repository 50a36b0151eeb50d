package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error, got %q", c.Logging.Level)
	}
	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	listeners := []struct {
		name string
		cfg  ListenerConfig
	}{
		{"servers.smoke", c.Servers.Smoke},
		{"servers.prime", c.Servers.Prime.ListenerConfig},
		{"servers.means", c.Servers.Means},
	}
	seen := make(map[string]string)
	enabled := 0
	for _, l := range listeners {
		if !l.cfg.IsEnabled() {
			continue
		}
		enabled++
		if l.cfg.Address == "" {
			return fmt.Errorf("%s.address is required", l.name)
		}
		if other, ok := seen[l.cfg.Address]; ok {
			return fmt.Errorf("%s.address %q already used by %s", l.name, l.cfg.Address, other)
		}
		seen[l.cfg.Address] = l.name
	}
	if enabled == 0 {
		return errors.New("at least one server must be enabled")
	}

	if c.Servers.Prime.MaxLineBytes < 1 {
		return errors.New("servers.prime.max_line_bytes must be >= 1")
	}

	if c.Shutdown.GracePeriod < 0 {
		return errors.New("shutdown.grace_period must be >= 0")
	}

	if c.Health.IsEnabled() && (c.Health.Port < 1 || c.Health.Port > 65535) {
		return fmt.Errorf("health.port must be between 1 and 65535, got %d", c.Health.Port)
	}

	if c.Archive.Enabled {
		if c.Archive.BatchSize < 1 {
			return errors.New("archive.batch_size must be >= 1")
		}
		if c.Archive.BufferSize < 1 {
			return errors.New("archive.buffer_size must be >= 1")
		}
		if c.Archive.FlushInterval <= 0 {
			return errors.New("archive.flush_interval must be > 0")
		}
		if err := c.Archive.Database.validate("archive.database"); err != nil {
			return err
		}
	}

	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
