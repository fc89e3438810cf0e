// Package config loads client runtime settings: defaults first, then a
// JSON file (-c/-config), then command-line flags. Later sources win.
package config

import "time"

// Config holds runtime settings for the finsync client.
type Config struct {
	// ServerEndpointAddr is host:port of the sync server.
	ServerEndpointAddr string
	// DatabaseDSN is the sqlite DSN of the local store.
	DatabaseDSN string
	// RequestTimeout bounds one command round trip.
	RequestTimeout time.Duration
	// OverlapWindow is subtracted from the last sync timestamp when
	// computing an incremental window, to tolerate clock skew and missed
	// acknowledgements.
	OverlapWindow time.Duration
	// ConflictStrategy selects the default resolution strategy
	// ("last-write-wins", "server-wins", "client-wins", "merge-fields",
	// "user-choice").
	ConflictStrategy string
	// OnlineCheckInterval is how often the client probes server
	// reachability while offline.
	OnlineCheckInterval time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "127.0.0.1:8085"
	c.DatabaseDSN = "finsync.db"
	c.RequestTimeout = 30 * time.Second
	c.OverlapWindow = 24 * time.Hour
	c.ConflictStrategy = "last-write-wins"
	c.OnlineCheckInterval = 10 * time.Second
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
