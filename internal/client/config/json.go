package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/finanzaapp/finsync/internal/flagx"
	"github.com/finanzaapp/finsync/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. It relies on
// timex.Duration so JSON can specify intervals either as strings like "30s"
// or as integer nanoseconds.
type JsonConfig struct {
	ServerEndpointAddr  string         `json:"server_endpoint_addr"`
	DatabaseDSN         string         `json:"database_dsn"`
	RequestTimeout      timex.Duration `json:"request_timeout"`
	OverlapWindow       timex.Duration `json:"overlap_window"`
	ConflictStrategy    string         `json:"conflict_strategy"`
	OnlineCheckInterval timex.Duration `json:"online_check_interval"`
}

// parseJson overlays Config with values loaded from the JSON file named by
// the -c/-config flag. Missing flag means no JSON is loaded. Read or
// unmarshal errors panic; LoadConfig runs before any state exists, so
// failing loudly is the right call.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.ServerEndpointAddr != "" {
		cfg.ServerEndpointAddr = jc.ServerEndpointAddr
	}
	if jc.DatabaseDSN != "" {
		cfg.DatabaseDSN = jc.DatabaseDSN
	}
	if jc.RequestTimeout.Duration != 0 {
		cfg.RequestTimeout = time.Duration(jc.RequestTimeout.Duration)
	}
	if jc.OverlapWindow.Duration != 0 {
		cfg.OverlapWindow = time.Duration(jc.OverlapWindow.Duration)
	}
	if jc.ConflictStrategy != "" {
		cfg.ConflictStrategy = jc.ConflictStrategy
	}
	if jc.OnlineCheckInterval.Duration != 0 {
		cfg.OnlineCheckInterval = time.Duration(jc.OnlineCheckInterval.Duration)
	}
}
