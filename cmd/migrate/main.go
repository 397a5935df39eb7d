package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"

	"github.com/bogdan-lmk/discord-parer/internal/migrations"

	_ "github.com/mattn/go-sqlite3"
)

// Applies the schema to a database file without starting the relay. Useful
// for provisioning a volume before first run; the main binary applies the
// same schema on startup, so running this is never required.
func main() {
	dbPath := flag.String("db", "./discord-parer.db", "Path to the database file")
	flag.Parse()

	schema, err := migrations.GetInitialSchema()
	if err != nil {
		log.Fatalf("Failed to load schema: %v", err)
	}

	db, err := sql.Open("sqlite3", *dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	if _, err := db.Exec(schema); err != nil {
		log.Fatalf("Failed to apply schema: %v", err)
	}

	fmt.Printf("Schema applied to %s\n", *dbPath)
}
