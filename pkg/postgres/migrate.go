package postgres

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"fieldscan/pkg/config"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"go.uber.org/zap"
)

// Migrate applies all pending migrations from the configured folder.
func Migrate(cfg *config.DatabaseConfig, logger *zap.Logger) error {
	folder := resolveMigrationsFolder(cfg.MigrationsPath)
	if _, err := os.Stat(folder); err != nil {
		return fmt.Errorf("migrations folder %s does not exist: %w", folder, err)
	}

	databaseURL := fmt.Sprintf(
		"pgx5://%s:%s@%s:%s/%s?sslmode=%s",
		url.QueryEscape(cfg.User), url.QueryEscape(cfg.Password),
		cfg.Host, cfg.Port, cfg.DBName, cfg.SSLMode,
	)

	m, err := migrate.New("file://"+folder, databaseURL)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Info("No new migrations to apply")
			return nil
		}
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	logger.Info("Database migrations applied", zap.String("folder", folder))
	return nil
}

func resolveMigrationsFolder(path string) string {
	if _, err := os.Stat(path); err == nil {
		return path
	}
	cwd, _ := os.Getwd()
	return filepath.Join(cwd, path)
}
