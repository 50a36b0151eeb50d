package config

import "time"

// Config is the root configuration for a protohackers instance.
type Config struct {
	Instance InstanceConfig `yaml:"instance"`
	Logging  LoggingConfig  `yaml:"logging"`
	Servers  ServersConfig  `yaml:"servers"`
	Shutdown ShutdownConfig `yaml:"shutdown"`
	Health   HealthConfig   `yaml:"health"`
	Archive  ArchiveConfig  `yaml:"archive"`
}

// InstanceConfig identifies this instance.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// LoggingConfig controls the process logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// ServersConfig holds one listener per protocol.
type ServersConfig struct {
	Smoke ListenerConfig `yaml:"smoke"`
	Prime PrimeConfig    `yaml:"prime"`
	Means ListenerConfig `yaml:"means"`
}

// ListenerConfig holds settings shared by every protocol listener.
type ListenerConfig struct {
	Enabled *bool  `yaml:"enabled"` // nil means enabled
	Address string `yaml:"address"`
}

// PrimeConfig holds Prime Time listener settings.
type PrimeConfig struct {
	ListenerConfig `yaml:",inline"`
	MaxLineBytes   int `yaml:"max_line_bytes"`
}

// ShutdownConfig controls graceful shutdown.
type ShutdownConfig struct {
	GracePeriod time.Duration `yaml:"grace_period"`
}

// HealthConfig holds the health and session monitor HTTP server settings.
type HealthConfig struct {
	Enabled *bool `yaml:"enabled"` // nil means enabled
	Port    int   `yaml:"port"`
}

// ArchiveConfig holds the optional traffic archive settings.
type ArchiveConfig struct {
	Enabled       bool          `yaml:"enabled"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	BufferSize    int           `yaml:"buffer_size"`
	Database      DBConfig      `yaml:"database"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// IsEnabled reports whether the listener should be started.
func (l ListenerConfig) IsEnabled() bool {
	return l.Enabled == nil || *l.Enabled
}

// IsEnabled reports whether the health server should be started.
func (h HealthConfig) IsEnabled() bool {
	return h.Enabled == nil || *h.Enabled
}
