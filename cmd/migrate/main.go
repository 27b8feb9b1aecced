package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/uptrace/bun/migrate"

	"github.com/apexmind/backend/internal/config"
	"github.com/apexmind/backend/internal/db"
	"github.com/apexmind/backend/migrations"
)

func main() {
	cfg := config.Load()

	database := db.NewBunPostgresClient(cfg.DatabaseURL)
	defer database.Close()

	migrator := migrate.NewMigrator(database, migrations.Migrations)

	ctx := context.Background()
	if err := migrator.Init(ctx); err != nil {
		log.Fatalf("Failed to initialize migration tables: %v", err)
	}

	cmd := "up"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	if err := run(ctx, migrator, cmd, os.Args[2:]); err != nil {
		log.Fatalf("%s failed: %v", cmd, err)
	}
}

func run(ctx context.Context, migrator *migrate.Migrator, cmd string, args []string) error {
	switch cmd {
	case "up":
		group, err := migrator.Migrate(ctx)
		if err != nil {
			return err
		}
		if group.IsZero() {
			fmt.Println("Database is up to date")
		} else {
			fmt.Printf("Applied %s\n", group)
		}

	case "down":
		group, err := migrator.Rollback(ctx)
		if err != nil {
			return err
		}
		if group.IsZero() {
			fmt.Println("Nothing to roll back")
		} else {
			fmt.Printf("Rolled back %s\n", group)
		}

	case "status":
		ms, err := migrator.MigrationsWithStatus(ctx)
		if err != nil {
			return err
		}
		for _, m := range ms {
			state := "pending"
			if m.IsApplied() {
				state = "applied"
			}
			fmt.Printf("%-9s %s\n", state, m.Name)
		}

	case "create":
		name := "migration"
		if len(args) > 0 {
			name = strings.Join(args, "_")
		}
		files, err := migrator.CreateTxSQLMigrations(ctx, name)
		if err != nil {
			return err
		}
		for _, f := range files {
			fmt.Printf("Created %s\n", f.Path)
		}

	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", cmd)
		fmt.Fprintln(os.Stderr, "usage: migrate [up|down|status|create <name>]")
		os.Exit(2)
	}
	return nil
}
