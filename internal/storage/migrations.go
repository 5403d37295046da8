package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
// If the database cannot be migrated to this version, it's a fatal error.
const ExpectedSchemaVersion = 3

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Upload batches and emissions ledger",
		Up: func(tx *sql.Tx) error {
			return execAll(tx,
				`CREATE TABLE IF NOT EXISTS uploads (
					id TEXT PRIMARY KEY,
					user_id TEXT NOT NULL,
					filename TEXT NOT NULL,
					file_size INTEGER NOT NULL DEFAULT 0,
					status TEXT NOT NULL CHECK (status IN ('processing', 'completed', 'failed')),
					total_rows INTEGER NOT NULL DEFAULT 0,
					processed_rows INTEGER NOT NULL DEFAULT 0,
					error_message TEXT,
					created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
					completed_at DATETIME
				)`,
				`CREATE INDEX idx_uploads_user ON uploads(user_id, created_at)`,

				`CREATE TABLE IF NOT EXISTS ledger_transactions (
					id TEXT PRIMARY KEY,
					hash TEXT NOT NULL,
					user_id TEXT NOT NULL,
					upload_id TEXT NOT NULL,
					description TEXT NOT NULL,
					amount REAL NOT NULL CHECK (amount > 0),
					date DATETIME NOT NULL,
					raw_fields TEXT,
					category TEXT NOT NULL,
					subcategory TEXT NOT NULL DEFAULT '',
					scope INTEGER NOT NULL CHECK (scope IN (1, 2, 3)),
					confidence REAL NOT NULL DEFAULT 0,
					reasoning TEXT,
					emissions_factor REAL NOT NULL DEFAULT 0,
					factor_unit TEXT,
					factor_source TEXT,
					factor_confidence TEXT,
					co2_emissions REAL NOT NULL DEFAULT 0 CHECK (co2_emissions >= 0),
					ai_classified INTEGER NOT NULL DEFAULT 0,
					verified INTEGER NOT NULL DEFAULT 0,
					created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
					FOREIGN KEY (upload_id) REFERENCES uploads(id)
				)`,
				`CREATE INDEX idx_ledger_user_date ON ledger_transactions(user_id, date)`,
				`CREATE INDEX idx_ledger_upload ON ledger_transactions(upload_id)`,
				`CREATE INDEX idx_ledger_hash ON ledger_transactions(hash)`,
			)
		},
	},
	{
		Version:     2,
		Description: "Emission factor catalogue",
		Up: func(tx *sql.Tx) error {
			return execAll(tx,
				`CREATE TABLE IF NOT EXISTS emission_factors (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					category TEXT NOT NULL,
					subcategory TEXT NOT NULL DEFAULT '',
					scope INTEGER NOT NULL CHECK (scope IN (1, 2, 3)),
					factor REAL NOT NULL CHECK (factor > 0),
					unit TEXT NOT NULL,
					source TEXT NOT NULL,
					year INTEGER NOT NULL,
					description TEXT,
					created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
					UNIQUE (category, subcategory, year)
				)`,
				`CREATE INDEX idx_emission_factors_lookup ON emission_factors(category, subcategory, year DESC)`,
			)
		},
	},
	{
		Version:     3,
		Description: "Generated reports",
		Up: func(tx *sql.Tx) error {
			return execAll(tx,
				`CREATE TABLE IF NOT EXISTS reports (
					id TEXT PRIMARY KEY,
					user_id TEXT NOT NULL,
					title TEXT NOT NULL,
					company_name TEXT,
					period_start DATETIME NOT NULL,
					period_end DATETIME NOT NULL,
					status TEXT NOT NULL,
					total_emissions REAL NOT NULL DEFAULT 0,
					scope1_emissions REAL NOT NULL DEFAULT 0,
					scope2_emissions REAL NOT NULL DEFAULT 0,
					scope3_emissions REAL NOT NULL DEFAULT 0,
					narrative TEXT,
					xbrl TEXT,
					valid INTEGER NOT NULL DEFAULT 0,
					error_message TEXT,
					created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_reports_user ON reports(user_id, created_at)`,
			)
		},
	},
}

func execAll(tx *sql.Tx, queries ...string) error {
	for _, query := range queries {
		if _, err := tx.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}
	return nil
}

// Migrate runs all pending database migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	var currentVersion int
	err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	var finalVersion int
	err = s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&finalVersion)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}

	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}

// SchemaVersion reports the schema version recorded in the database.
func (s *SQLiteStorage) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return version, nil
}
