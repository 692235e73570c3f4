package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dd0wney/cluso-starter/pkg/config"
	"github.com/dd0wney/cluso-starter/pkg/database"
	"github.com/dd0wney/cluso-starter/pkg/logging"
	"github.com/dd0wney/cluso-starter/pkg/migrations"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	fs := flag.NewFlagSet(command, flag.ExitOnError)
	configPath := fs.String("config", "", "YAML config file (environment variables override it)")
	dir := fs.String("dir", "", "Migrations directory (default from config)")
	fs.Parse(os.Args[2:])

	var err error
	switch command {
	case "new":
		err = runNew(*dir, fs.Args())
	case "up":
		err = runWithDB(*configPath, *dir, func(ctx context.Context, m *migrations.Migrator) error {
			applied, err := m.Up(ctx)
			for _, name := range applied {
				fmt.Println("applied", name)
			}
			return err
		})
	case "plan":
		err = runWithDB(*configPath, *dir, func(ctx context.Context, m *migrations.Migrator) error {
			planned, err := m.Plan(ctx)
			for _, name := range planned {
				fmt.Println("would apply", name)
			}
			if err == nil && len(planned) == 0 {
				fmt.Println("nothing to apply")
			}
			return err
		})
	case "help", "--help", "-h":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	usage := `starter-migrate - schema migrations

Usage:
  starter-migrate <command> [options]

Available Commands:
  new <name>  Create an empty YYYYMMDD_NNN_<name>.sql file
  up          Apply pending migrations
  plan        Run pending migrations in a rolled-back transaction
  help        Show this help message

Options:
  --config PATH  YAML config file
  --dir DIR      Migrations directory
`
	fmt.Print(usage)
}

func runNew(dir string, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: starter-migrate new <name>")
	}
	if dir == "" {
		dir = config.Default().MigrationsDir
		if env := os.Getenv("MIGRATIONS_DIR"); env != "" {
			dir = env
		}
	}

	path, err := migrations.Create(dir, strings.Join(args, " "), time.Now())
	if err != nil {
		return err
	}
	fmt.Println("created", path)
	return nil
}

func runWithDB(configPath, dir string, fn func(context.Context, *migrations.Migrator) error) error {
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.LoadFromEnv()
	}
	if err != nil {
		return err
	}
	if dir == "" {
		dir = cfg.MigrationsDir
	}

	logger := logging.NewJSONLogger(os.Stderr, logging.ParseLevel(cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, cfg, logger, nil)
	if err != nil {
		return err
	}
	defer db.Close()

	return fn(ctx, migrations.NewMigrator(db, dir, db.Runner(), logger, nil))
}
