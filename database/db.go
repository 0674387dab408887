package database

import (
	"database/sql"
	"fmt"

	"checkout-svc/config"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

func InitDB(cfg config.DBConfig, logger *zap.Logger) (*sql.DB, error) {
	psqlInfo := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name)

	db, err := sql.Open("postgres", psqlInfo)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Create orders table if it doesn't exist
	createTableQuery := `
	CREATE TABLE IF NOT EXISTS orders (
		id VARCHAR(64) PRIMARY KEY,
		session_key VARCHAR(255) NOT NULL,
		status VARCHAR(50) NOT NULL DEFAULT 'pending',
		total_amount DECIMAL(10, 2) NOT NULL,
		payment_method VARCHAR(50) NOT NULL,
		payment_ref_id VARCHAR(255),
		items JSONB NOT NULL DEFAULT '[]',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	`

	if _, err := db.Exec(createTableQuery); err != nil {
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	logger.Info("Database connection established")
	return db, nil
}
