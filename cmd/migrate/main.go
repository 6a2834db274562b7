package main

import (
	"errors"
	"flag"
	"log"

	"seest/internal/pkg/config"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

func main() {
	dir := flag.String("path", "migrations", "migrations directory")
	down := flag.Bool("down", false, "roll back all migrations")
	steps := flag.Int("steps", 0, "apply n migrations (negative rolls back)")
	force := flag.Int("force", -1, "force the schema version and clear the dirty flag")
	flag.Parse()

	config.LoadConfig()

	m, err := migrate.New("file://"+*dir, config.GlobalConfig.Database.URL())
	if err != nil {
		log.Fatalf("open migrations: %v", err)
	}
	defer m.Close()

	if *force >= 0 {
		if err := m.Force(*force); err != nil {
			log.Fatalf("force version %d: %v", *force, err)
		}
		log.Printf("Forced schema version to %d", *force)
		return
	}

	switch {
	case *steps != 0:
		err = m.Steps(*steps)
	case *down:
		err = m.Down()
	default:
		err = m.Up()
	}

	var dirty migrate.ErrDirty
	switch {
	case errors.Is(err, migrate.ErrNoChange):
		log.Println("Schema is up to date")
	case errors.As(err, &dirty):
		log.Fatalf("database is dirty at version %d, fix it and rerun with -force %d", dirty.Version, dirty.Version-1)
	case err != nil:
		log.Fatal(err)
	default:
		version, _, _ := m.Version()
		log.Printf("Migration successful, schema version %d", version)
	}
}
