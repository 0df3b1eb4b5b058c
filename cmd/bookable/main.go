package main

import (
	"fmt"
	"os"

	"github.com/alexanderramin/bookable/internal/cli"
	"github.com/alexanderramin/bookable/internal/cli/formatter"
	"github.com/alexanderramin/bookable/internal/config"
	"github.com/alexanderramin/bookable/internal/db"
	"github.com/alexanderramin/bookable/internal/repository"
	"github.com/alexanderramin/bookable/internal/service"
	"github.com/mattn/go-isatty"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger := cfg.Log.NewLogger(os.Stderr)

	// Open database
	database, err := db.OpenDB(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer database.Close()

	forms := service.NewFormService(
		repository.NewSQLiteFormRepo(database),
		repository.NewSQLiteRevisionRepo(database),
		db.NewSQLiteUnitOfWork(database),
		service.NewSlogUseCaseObserver(logger),
	)

	// Plain output when piped.
	fd := os.Stdout.Fd()
	formatter.SetPlain(!isatty.IsTerminal(fd) && !isatty.IsCygwinTerminal(fd))

	app := &cli.App{
		Forms:  forms,
		Config: cfg,
		Logger: logger,
	}
	return cli.NewRootCmd(app).Execute()
}
