package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultLogLevel      = "info"
	DefaultLogFormat     = "text"
	DefaultSmokeAddress  = "0.0.0.0:54001"
	DefaultPrimeAddress  = "0.0.0.0:54002"
	DefaultMeansAddress  = "0.0.0.0:54000"
	DefaultMaxLineBytes  = 1 << 20
	DefaultGracePeriod   = 5 * time.Second
	DefaultHealthPort    = 8080
	DefaultBatchSize     = 1000
	DefaultFlushInterval = 1 * time.Second
	DefaultBufferSize    = 10000
	DefaultDBPort        = 5432
	DefaultDBSSLMode     = "prefer"
	DefaultMaxConns      = 4
	DefaultMinConns      = 1
)

// ApplyDefaults fills in zero-valued optional fields.
func (c *Config) ApplyDefaults() {
	// Logging defaults
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}

	// Server defaults
	if c.Servers.Smoke.Address == "" {
		c.Servers.Smoke.Address = DefaultSmokeAddress
	}
	if c.Servers.Prime.Address == "" {
		c.Servers.Prime.Address = DefaultPrimeAddress
	}
	if c.Servers.Prime.MaxLineBytes == 0 {
		c.Servers.Prime.MaxLineBytes = DefaultMaxLineBytes
	}
	if c.Servers.Means.Address == "" {
		c.Servers.Means.Address = DefaultMeansAddress
	}

	if c.Shutdown.GracePeriod == 0 {
		c.Shutdown.GracePeriod = DefaultGracePeriod
	}

	if c.Health.Port == 0 {
		c.Health.Port = DefaultHealthPort
	}

	// Archive defaults
	if c.Archive.BatchSize == 0 {
		c.Archive.BatchSize = DefaultBatchSize
	}
	if c.Archive.FlushInterval == 0 {
		c.Archive.FlushInterval = DefaultFlushInterval
	}
	if c.Archive.BufferSize == 0 {
		c.Archive.BufferSize = DefaultBufferSize
	}
	applyDBDefaults(&c.Archive.Database)
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
