// Package config loads server runtime settings: defaults first, then a
// JSON file (-c/-config), then command-line flags. Later sources win.
package config

import "time"

// Config holds runtime settings for the finsync server.
type Config struct {
	// EndpointAddr is the TCP bind address for the line protocol.
	EndpointAddr string
	// DatabaseDSN is the PostgreSQL DSN (pgx). Empty selects the
	// in-memory store.
	DatabaseDSN string
	// IdleTimeout disconnects a client after this long without a command.
	IdleTimeout time.Duration
}

// LoadDefaults populates c with development defaults.
func (c *Config) LoadDefaults() {
	c.EndpointAddr = ":8085"
	c.DatabaseDSN = ""
	c.IdleTimeout = 5 * time.Minute
}

// LoadConfig constructs a Config, applies defaults, then overlays values
// from JSON (if present) and command-line flags (if present).
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
