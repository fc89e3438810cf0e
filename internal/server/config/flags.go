package config

import (
	"flag"
	"os"

	"github.com/finanzaapp/finsync/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags:
//
//	-a string   TCP bind address
//	-d string   PostgreSQL DSN (empty selects the in-memory store)
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.EndpointAddr, "a", cfg.EndpointAddr, "TCP bind address")
	fs.StringVar(&cfg.DatabaseDSN, "d", cfg.DatabaseDSN, "PostgreSQL DSN (empty selects the in-memory store)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}
