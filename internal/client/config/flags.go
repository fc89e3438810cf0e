package config

import (
	"flag"
	"os"
	"time"

	"github.com/finanzaapp/finsync/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags:
//
//	-a string   address and port of the sync server
//	-d string   sqlite DSN of the local database
//	-t int      request timeout in seconds
//	-w int      incremental overlap window in hours
//	-s string   default conflict strategy
//
// Only the flags listed here are parsed (via flagx.FilterArgs), so other
// components can define their own flags without interference.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-t", "-w", "-s"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerEndpointAddr, "a", cfg.ServerEndpointAddr, "address and port of the sync server")
	fs.StringVar(&cfg.DatabaseDSN, "d", cfg.DatabaseDSN, "sqlite DSN of the local database")
	requestTimeout := fs.Int("t", int(cfg.RequestTimeout.Seconds()), "request timeout (in seconds)")
	overlapWindow := fs.Int("w", int(cfg.OverlapWindow.Hours()), "incremental overlap window (in hours)")
	fs.StringVar(&cfg.ConflictStrategy, "s", cfg.ConflictStrategy, "default conflict strategy")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.RequestTimeout = time.Duration(*requestTimeout) * time.Second
	cfg.OverlapWindow = time.Duration(*overlapWindow) * time.Hour
}
