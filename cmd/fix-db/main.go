package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"

	"github.com/yourusername/challengequest-api/internal/config"
	"github.com/yourusername/challengequest-api/pkg/database"
)

// fix-db снимает флаг dirty после упавшей миграции, принудительно выставляя версию.
// Пример: go run ./cmd/fix-db -version 1
func main() {
	version := flag.Int("version", -1, "версия миграции, которую нужно выставить принудительно")
	configPath := flag.String("config", "config/config.yaml", "путь к файлу конфигурации")
	source := flag.String("migrations", database.DefaultMigrationsURL, "источник миграций")
	flag.Parse()

	if *version < 0 {
		fmt.Fprintln(os.Stderr, "укажите -version (последняя успешно примененная миграция)")
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := sql.Open("postgres", cfg.Database.PostgresConnectionString())
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatal(err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		log.Fatal(err)
	}

	m, err := migrate.NewWithDatabaseInstance(*source, "postgres", driver)
	if err != nil {
		log.Fatal(err)
	}

	current, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		log.Fatalf("Failed to read current version: %v", err)
	}
	fmt.Printf("Текущая версия: %d (dirty=%t). Выставляем версию %d...\n", current, dirty, *version)

	if err := m.Force(*version); err != nil {
		log.Fatalf("Failed to force version: %v", err)
	}

	fmt.Println("Success! Dirty state cleaned. You can now run the app normally.")
}
