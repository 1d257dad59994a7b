package db

import (
	"context"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

const migrationDir = "migrations"

func prepareGoose(log logrus.FieldLogger) error {
	goose.SetBaseFS(migrationFS)
	goose.SetLogger(gooseLogger{log})
	if err := goose.SetDialect("mysql"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}
	return nil
}

// Migrate applies every pending migration embedded in the binary.
func Migrate(ctx context.Context, gdb *gorm.DB, log logrus.FieldLogger) error {
	sqlDB, err := gdb.DB()
	if err != nil {
		return fmt.Errorf("sql db: %w", err)
	}
	if err := prepareGoose(log); err != nil {
		return err
	}
	if err := goose.UpContext(ctx, sqlDB, migrationDir); err != nil {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

// MigrateDown rolls back the most recent migration.
func MigrateDown(ctx context.Context, gdb *gorm.DB, log logrus.FieldLogger) error {
	sqlDB, err := gdb.DB()
	if err != nil {
		return fmt.Errorf("sql db: %w", err)
	}
	if err := prepareGoose(log); err != nil {
		return err
	}
	if err := goose.DownContext(ctx, sqlDB, migrationDir); err != nil {
		return fmt.Errorf("migrate down: %w", err)
	}
	return nil
}

func MigrationStatus(ctx context.Context, gdb *gorm.DB, log logrus.FieldLogger) error {
	sqlDB, err := gdb.DB()
	if err != nil {
		return fmt.Errorf("sql db: %w", err)
	}
	if err := prepareGoose(log); err != nil {
		return err
	}
	return goose.StatusContext(ctx, sqlDB, migrationDir)
}

type gooseLogger struct {
	log logrus.FieldLogger
}

func (l gooseLogger) Fatalf(format string, v ...interface{}) {
	l.log.Fatalf(format, v...)
}

func (l gooseLogger) Printf(format string, v ...interface{}) {
	l.log.WithField("component", "migrate").Infof(format, v...)
}
