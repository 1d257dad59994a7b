package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/joho/godotenv"
	"github.com/shinyyama/barter-backend/internal/config"
	"github.com/shinyyama/barter-backend/internal/db"
	"github.com/shinyyama/barter-backend/internal/logger"
	"github.com/sirupsen/logrus"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: migrate [up|down|status]\n")
	}
	flag.Parse()
	cmd := "up"
	if flag.NArg() > 0 {
		cmd = flag.Arg(0)
	}
	if err := run(cmd); err != nil {
		logrus.Fatalf("migrate %s failed: %v", cmd, err)
	}
}

func run(cmd string) error {
	ctx := context.Background()
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg.LogLevel)
	gdb, err := db.Connect(cfg, log)
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}

	switch cmd {
	case "up":
		return db.Migrate(ctx, gdb, log)
	case "down":
		return db.MigrateDown(ctx, gdb, log)
	case "status":
		return db.MigrationStatus(ctx, gdb, log)
	}
	return fmt.Errorf("unknown command %q", cmd)
}
