package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/finanzaapp/finsync/internal/flagx"
	"github.com/finanzaapp/finsync/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling.
type JsonConfig struct {
	EndpointAddr string         `json:"endpoint_addr"`
	DatabaseDSN  string         `json:"database_dsn"`
	IdleTimeout  timex.Duration `json:"idle_timeout"`
}

// parseJson overlays cfg with values from the JSON file named by the
// -c/-config flag. Errors panic; LoadConfig runs before any state exists.
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

	if jc.EndpointAddr != "" {
		cfg.EndpointAddr = jc.EndpointAddr
	}
	if jc.DatabaseDSN != "" {
		cfg.DatabaseDSN = jc.DatabaseDSN
	}
	if jc.IdleTimeout.Duration != 0 {
		cfg.IdleTimeout = time.Duration(jc.IdleTimeout.Duration)
	}
}
