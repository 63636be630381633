package db

import (
	"database/sql"
	"fmt"
	"log/slog"
	"sort"
)

// Migration represents a database migration
type Migration struct {
	Version int
	Name    string
	Up      string
	Down    string
}

// MigrationStatus describes one migration and whether it has run
type MigrationStatus struct {
	Version int
	Name    string
	Applied bool
}

var migrations = []Migration{
	{
		Version: 1,
		Name:    "create_leadimage_documents_table",
		Up: `
			CREATE TABLE IF NOT EXISTS leadimage_documents (
				id BIGINT PRIMARY KEY,
				namespace INTEGER NOT NULL DEFAULT 0,
				title TEXT NOT NULL,
				created_at TIMESTAMPTZ DEFAULT NOW(),
				updated_at TIMESTAMPTZ DEFAULT NOW()
			);
			CREATE UNIQUE INDEX IF NOT EXISTS idx_leadimage_documents_title ON leadimage_documents(namespace, title);
		`,
		Down: `
			DROP INDEX IF EXISTS idx_leadimage_documents_title;
			DROP TABLE IF EXISTS leadimage_documents;
		`,
	},
	{
		Version: 2,
		Name:    "create_leadimage_schema_version_table",
		Up: `
			CREATE TABLE IF NOT EXISTS leadimage_schema_version (
				version INTEGER PRIMARY KEY,
				name TEXT NOT NULL,
				applied_at TIMESTAMPTZ DEFAULT NOW()
			);
		`,
		Down: `
			DROP TABLE IF EXISTS leadimage_schema_version;
		`,
	},
	{
		Version: 3,
		Name:    "create_leadimage_file_links_table",
		Up: `
			CREATE TABLE IF NOT EXISTS leadimage_file_links (
				document_id BIGINT NOT NULL,
				file_key TEXT NOT NULL,
				PRIMARY KEY (document_id, file_key),
				FOREIGN KEY (document_id) REFERENCES leadimage_documents(id) ON DELETE CASCADE
			);
			CREATE INDEX IF NOT EXISTS idx_leadimage_file_links_file_key ON leadimage_file_links(file_key);
		`,
		Down: `
			DROP INDEX IF EXISTS idx_leadimage_file_links_file_key;
			DROP TABLE IF EXISTS leadimage_file_links;
		`,
	},
	{
		Version: 4,
		Name:    "create_leadimage_images_table",
		Up: `
			CREATE TABLE IF NOT EXISTS leadimage_images (
				id TEXT NOT NULL,
				file_key TEXT PRIMARY KEY,
				storage_path TEXT,
				created_at TIMESTAMPTZ DEFAULT NOW(),
				updated_at TIMESTAMPTZ DEFAULT NOW()
			);
		`,
		Down: `
			DROP TABLE IF EXISTS leadimage_images;
		`,
	},
	{
		Version: 5,
		Name:    "add_image_metadata_columns",
		Up: `
			ALTER TABLE leadimage_images ADD COLUMN IF NOT EXISTS width INTEGER;
			ALTER TABLE leadimage_images ADD COLUMN IF NOT EXISTS height INTEGER;
			ALTER TABLE leadimage_images ADD COLUMN IF NOT EXISTS file_size_bytes BIGINT;
			ALTER TABLE leadimage_images ADD COLUMN IF NOT EXISTS content_type TEXT;
			ALTER TABLE leadimage_images ADD COLUMN IF NOT EXISTS exif_data TEXT;
		`,
		Down: `
			ALTER TABLE leadimage_images DROP COLUMN IF EXISTS exif_data;
			ALTER TABLE leadimage_images DROP COLUMN IF EXISTS content_type;
			ALTER TABLE leadimage_images DROP COLUMN IF EXISTS file_size_bytes;
			ALTER TABLE leadimage_images DROP COLUMN IF EXISTS height;
			ALTER TABLE leadimage_images DROP COLUMN IF EXISTS width;
		`,
	},
	{
		Version: 6,
		Name:    "create_leadimage_document_images_table",
		Up: `
			CREATE TABLE IF NOT EXISTS leadimage_document_images (
				document_id BIGINT NOT NULL,
				property TEXT NOT NULL,
				file_key TEXT NOT NULL,
				selected_at TIMESTAMPTZ DEFAULT NOW(),
				PRIMARY KEY (document_id, property)
			);
			CREATE INDEX IF NOT EXISTS idx_leadimage_document_images_file_key ON leadimage_document_images(file_key);
		`,
		Down: `
			DROP INDEX IF EXISTS idx_leadimage_document_images_file_key;
			DROP TABLE IF EXISTS leadimage_document_images;
		`,
	},
	{
		Version: 7,
		Name:    "add_score_to_document_images",
		Up: `
			ALTER TABLE leadimage_document_images ADD COLUMN IF NOT EXISTS score INTEGER NOT NULL DEFAULT 0;
		`,
		Down: `
			ALTER TABLE leadimage_document_images DROP COLUMN IF EXISTS score;
		`,
	},
	{
		Version: 8,
		Name:    "create_leadimage_blacklist_cache_table",
		Up: `
			CREATE TABLE IF NOT EXISTS leadimage_blacklist_cache (
				cache_key TEXT PRIMARY KEY,
				entries TEXT[] NOT NULL DEFAULT '{}',
				fetched_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				expires_at TIMESTAMPTZ NOT NULL
			);
		`,
		Down: `
			DROP TABLE IF EXISTS leadimage_blacklist_cache;
		`,
	},
}

// Migrate runs all pending PostgreSQL migrations
func Migrate(db *sql.DB) error {
	slog.Default().Info("creating leadimage_schema_version table")
	// Ensure migrations table exists
	if err := ensureMigrationsTable(db); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	slog.Default().Info("checking current schema version")
	// Get current version
	currentVersion, err := getCurrentVersion(db)
	if err != nil {
		return fmt.Errorf("failed to get current version: %w", err)
	}
	slog.Default().Info("current schema version", "version", currentVersion)

	// Sort migrations by version
	sortedMigrations := make([]Migration, len(migrations))
	copy(sortedMigrations, migrations)
	sort.Slice(sortedMigrations, func(i, j int) bool {
		return sortedMigrations[i].Version < sortedMigrations[j].Version
	})

	// Run pending migrations
	for _, m := range sortedMigrations {
		if m.Version <= currentVersion {
			slog.Default().Debug("skipping migration (already applied)", "version", m.Version)
			continue
		}

		if err := runMigration(db, m); err != nil {
			return fmt.Errorf("failed to run migration %d (%s): %w", m.Version, m.Name, err)
		}
	}

	slog.Default().Info("all migrations complete")
	return nil
}

// ensureMigrationsTable creates the leadimage_schema_version table if it doesn't exist
func ensureMigrationsTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS leadimage_schema_version (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMPTZ DEFAULT NOW()
		);
	`)
	return err
}

// getCurrentVersion returns the current migration version
func getCurrentVersion(db *sql.DB) (int, error) {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM leadimage_schema_version").Scan(&version)
	if err != nil {
		return 0, err
	}
	return version, nil
}

// runMigration executes a single migration
func runMigration(db *sql.DB, m Migration) error {
	slog.Default().Info("applying migration", "version", m.Version, "name", m.Name)

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Execute migration
	if _, err := tx.Exec(m.Up); err != nil {
		return fmt.Errorf("failed to execute migration SQL: %w", err)
	}

	// Record migration
	if _, err := tx.Exec(
		"INSERT INTO leadimage_schema_version (version, name) VALUES ($1, $2)",
		m.Version, m.Name,
	); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration: %w", err)
	}

	slog.Default().Info("migration applied successfully", "version", m.Version, "name", m.Name)
	return nil
}

// Rollback rolls back the last migration
func Rollback(db *sql.DB) error {
	currentVersion, err := getCurrentVersion(db)
	if err != nil {
		return fmt.Errorf("failed to get current version: %w", err)
	}

	if currentVersion == 0 {
		return fmt.Errorf("no migrations to rollback")
	}

	// Find the migration to rollback
	var targetMigration *Migration
	for _, m := range migrations {
		if m.Version == currentVersion {
			targetMigration = &m
			break
		}
	}

	if targetMigration == nil {
		return fmt.Errorf("migration %d not found", currentVersion)
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Execute rollback
	if _, err := tx.Exec(targetMigration.Down); err != nil {
		return fmt.Errorf("failed to rollback migration: %w", err)
	}

	// Remove migration record
	if _, err := tx.Exec("DELETE FROM leadimage_schema_version WHERE version = $1", currentVersion); err != nil {
		return fmt.Errorf("failed to remove migration record: %w", err)
	}

	return tx.Commit()
}

// GetMigrationStatus returns the current migration status
func GetMigrationStatus(db *sql.DB) ([]MigrationStatus, error) {
	currentVersion, err := getCurrentVersion(db)
	if err != nil {
		return nil, err
	}

	var status []MigrationStatus
	for _, m := range migrations {
		s := MigrationStatus{
			Version: m.Version,
			Name:    m.Name,
			Applied: m.Version <= currentVersion,
		}
		status = append(status, s)
	}

	sort.Slice(status, func(i, j int) bool {
		return status[i].Version < status[j].Version
	})

	return status, nil
}
