// migrate walks the database schema up or down using the SQL files compiled
// into the binary. Run through ./scripts/migrate.sh or go run ./cmd/migrate.
package main

import (
	"flag"
	"fmt"
	"os"

	"property-platform/access-core/internal/config"
	"property-platform/access-core/internal/db/migrate"
)

func main() {
	direction := flag.String("direction", migrate.DirectionUp, "up or down")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	if cfg.DatabaseURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is not set; copy .env.example to .env or export it")
		os.Exit(1)
	}

	version, err := migrate.Run(cfg.DatabaseURL, *direction)
	if err != nil {
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}
	fmt.Printf("schema at version %d\n", version)
}
