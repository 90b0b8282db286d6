package di

import (
	"fmt"

	"github.com/aristath/spreadbook/internal/config"
	"github.com/aristath/spreadbook/internal/database"
	"github.com/rs/zerolog"
)

// InitializeDatabase opens the strategy database and applies its schema
func InitializeDatabase(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	db, err := database.New(database.Config{
		Path: cfg.DatabasePath(),
		Name: database.StrategyDB,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize strategy database: %w", err)
	}

	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate strategy database: %w", err)
	}

	log.Info().Str("path", db.Path()).Msg("Strategy database ready")

	return &Container{DB: db}, nil
}
