package db

import (
	"fmt"

	"gorm.io/gorm"
)

// Statements stay portable between sqlite and postgres.
var migrationStatements = []string{
	`CREATE TABLE IF NOT EXISTS census_datasets (
		session_id VARCHAR(36) PRIMARY KEY,
		source VARCHAR(64) NOT NULL DEFAULT '',
		columns TEXT NOT NULL DEFAULT '[]',
		loaded_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`,
	`CREATE TABLE IF NOT EXISTS census_records (
		session_id VARCHAR(36) NOT NULL,
		position INTEGER NOT NULL,
		record_id BIGINT NOT NULL,
		species TEXT,
		condition TEXT,
		lat DOUBLE PRECISION,
		lng DOUBLE PRECISION,
		attributes TEXT NOT NULL DEFAULT '{}',
		PRIMARY KEY (session_id, position)
	);`,
	`CREATE INDEX IF NOT EXISTS idx_census_records_record_id ON census_records (session_id, record_id);`,
	`CREATE INDEX IF NOT EXISTS idx_census_datasets_updated_at ON census_datasets (updated_at);`,
}

func runMigrations(db *gorm.DB) error {
	for i, stmt := range migrationStatements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
