package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/docutag/leadimage/models"
)

// DB wraps the database connection and provides data access methods
type DB struct {
	conn *sql.DB
}

// Config contains database configuration
type Config struct {
	DSN string // PostgreSQL connection string
}

// New creates a new database connection
func New(config Config) (*DB, error) {
	conn, err := sql.Open("postgres", config.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection
	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Configure connection pool
	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	db := &DB{conn: conn}

	// Run PostgreSQL migrations
	if err := Migrate(conn); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// DB returns the underlying database connection for metrics collection
func (db *DB) DB() *sql.DB {
	return db.conn
}

// SaveDocument saves a document and its file-namespace links atomically
func (db *DB) SaveDocument(doc *models.Document, fileLinks []string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO leadimage_documents (id, namespace, title, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT(id) DO UPDATE SET
			namespace = excluded.namespace,
			title = excluded.title,
			updated_at = excluded.updated_at
	`

	now := time.Now()
	if _, err := tx.Exec(query, doc.ID, doc.Namespace, doc.Title, now, now); err != nil {
		return fmt.Errorf("failed to save document: %w", err)
	}

	// Replace the document's file links (if re-saved)
	if _, err := tx.Exec("DELETE FROM leadimage_file_links WHERE document_id = $1", doc.ID); err != nil {
		return fmt.Errorf("failed to delete old file links: %w", err)
	}

	for _, fileKey := range fileLinks {
		if fileKey == "" {
			continue
		}

		if _, err := tx.Exec(
			"INSERT INTO leadimage_file_links (document_id, file_key) VALUES ($1, $2) ON CONFLICT DO NOTHING",
			doc.ID, fileKey,
		); err != nil {
			return fmt.Errorf("failed to save file link %s: %w", fileKey, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetDocument retrieves a document by ID
func (db *DB) GetDocument(id int64) (*models.Document, error) {
	var doc models.Document
	var updatedAt sql.NullTime

	query := "SELECT id, namespace, title, updated_at FROM leadimage_documents WHERE id = $1"
	err := db.conn.QueryRow(query, id).Scan(&doc.ID, &doc.Namespace, &doc.Title, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query document: %w", err)
	}

	if updatedAt.Valid {
		doc.UpdatedAt = updatedAt.Time
	}

	return &doc, nil
}

// GetDocumentByTitle retrieves a document by its title
func (db *DB) GetDocumentByTitle(title string) (*models.Document, error) {
	var doc models.Document
	var updatedAt sql.NullTime

	query := "SELECT id, namespace, title, updated_at FROM leadimage_documents WHERE title = $1 LIMIT 1"
	err := db.conn.QueryRow(query, title).Scan(&doc.ID, &doc.Namespace, &doc.Title, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query document by title: %w", err)
	}

	if updatedAt.Valid {
		doc.UpdatedAt = updatedAt.Time
	}

	return &doc, nil
}

// FileLinksByTitle returns the file keys linked from the named document.
// A missing document yields an empty list, not an error.
func (db *DB) FileLinksByTitle(title string) ([]string, error) {
	query := `
		SELECT fl.file_key
		FROM leadimage_file_links fl
		JOIN leadimage_documents d ON d.id = fl.document_id
		WHERE d.title = $1
		ORDER BY fl.file_key
	`

	rows, err := db.conn.Query(query, title)
	if err != nil {
		return nil, fmt.Errorf("failed to query file links: %w", err)
	}
	defer rows.Close()

	links := []string{}
	for rows.Next() {
		var fileKey string
		if err := rows.Scan(&fileKey); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		links = append(links, fileKey)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return links, nil
}

// SaveImage registers image metadata keyed by file key. Re-registering
// an existing key updates the metadata and keeps the original row ID.
func (db *DB) SaveImage(image *models.Image) error {
	if image.ID == "" {
		image.ID = uuid.New().String()
	}

	// Serialize EXIF data to JSON if present
	var exifJSON []byte
	if image.EXIF != nil {
		var err error
		exifJSON, err = json.Marshal(image.EXIF)
		if err != nil {
			return fmt.Errorf("failed to marshal EXIF: %w", err)
		}
	}

	query := `
		INSERT INTO leadimage_images (id, file_key, width, height, content_type, file_size_bytes, storage_path, exif_data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT(file_key) DO UPDATE SET
			width = excluded.width,
			height = excluded.height,
			content_type = excluded.content_type,
			file_size_bytes = excluded.file_size_bytes,
			storage_path = excluded.storage_path,
			exif_data = excluded.exif_data,
			updated_at = excluded.updated_at
	`

	_, err := db.conn.Exec(
		query,
		image.ID,
		image.FileKey,
		image.Width,
		image.Height,
		image.ContentType,
		image.FileSizeBytes,
		image.StoragePath,
		string(exifJSON),
		time.Now(),
		time.Now(),
	)

	if err != nil {
		return fmt.Errorf("failed to save image: %w", err)
	}

	return nil
}

// GetImageByKey retrieves image metadata by file key
func (db *DB) GetImageByKey(fileKey string) (*models.Image, error) {
	var (
		id            string
		key           string
		width         sql.NullInt64
		height        sql.NullInt64
		contentType   sql.NullString
		fileSizeBytes sql.NullInt64
		storagePath   sql.NullString
		exifJSON      sql.NullString
		createdAt     sql.NullTime
		updatedAt     sql.NullTime
	)

	query := "SELECT id, file_key, width, height, content_type, file_size_bytes, storage_path, exif_data, created_at, updated_at FROM leadimage_images WHERE file_key = $1"
	err := db.conn.QueryRow(query, fileKey).Scan(&id, &key, &width, &height, &contentType, &fileSizeBytes, &storagePath, &exifJSON, &createdAt, &updatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query image: %w", err)
	}

	image := &models.Image{
		ID:      id,
		FileKey: key,
	}
	if width.Valid {
		image.Width = int(width.Int64)
	}
	if height.Valid {
		image.Height = int(height.Int64)
	}
	if contentType.Valid {
		image.ContentType = contentType.String
	}
	if fileSizeBytes.Valid {
		image.FileSizeBytes = fileSizeBytes.Int64
	}
	if storagePath.Valid {
		image.StoragePath = storagePath.String
	}
	if exifJSON.Valid && exifJSON.String != "" && exifJSON.String != "null" {
		var exif models.EXIFData
		if err := json.Unmarshal([]byte(exifJSON.String), &exif); err != nil {
			return nil, fmt.Errorf("failed to unmarshal EXIF: %w", err)
		}
		image.EXIF = &exif
	}
	if createdAt.Valid {
		image.CreatedAt = createdAt.Time
	}
	if updatedAt.Valid {
		image.UpdatedAt = updatedAt.Time
	}

	return image, nil
}

// SetDocumentImage records the chosen lead image for a document property
func (db *DB) SetDocumentImage(documentID int64, property, fileKey string, score int) error {
	query := `
		INSERT INTO leadimage_document_images (document_id, property, file_key, score, selected_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT(document_id, property) DO UPDATE SET
			file_key = excluded.file_key,
			score = excluded.score,
			selected_at = excluded.selected_at
	`

	if _, err := db.conn.Exec(query, documentID, property, fileKey, score, time.Now()); err != nil {
		return fmt.Errorf("failed to set document image: %w", err)
	}

	return nil
}

// DeleteDocumentImage clears a document's stored choice. Clearing a
// choice that was never stored is not an error.
func (db *DB) DeleteDocumentImage(documentID int64, property string) error {
	_, err := db.conn.Exec(
		"DELETE FROM leadimage_document_images WHERE document_id = $1 AND property = $2",
		documentID, property,
	)
	if err != nil {
		return fmt.Errorf("failed to delete document image: %w", err)
	}

	return nil
}

// GetDocumentImage retrieves a document's stored choice for a property
func (db *DB) GetDocumentImage(documentID int64, property string) (*models.DocumentImage, error) {
	var di models.DocumentImage
	var selectedAt sql.NullTime

	query := "SELECT document_id, property, file_key, score, selected_at FROM leadimage_document_images WHERE document_id = $1 AND property = $2"
	err := db.conn.QueryRow(query, documentID, property).Scan(&di.DocumentID, &di.Property, &di.FileKey, &di.Score, &selectedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query document image: %w", err)
	}

	if selectedAt.Valid {
		di.SelectedAt = selectedAt.Time
	}

	return &di, nil
}

// GetDocumentImages retrieves stored choices for a batch of documents.
// Documents without a stored choice are simply absent from the result.
func (db *DB) GetDocumentImages(documentIDs []int64, property string) (map[int64]*models.DocumentImage, error) {
	if len(documentIDs) == 0 {
		return map[int64]*models.DocumentImage{}, nil
	}

	query := `
		SELECT document_id, property, file_key, score, selected_at
		FROM leadimage_document_images
		WHERE document_id = ANY($1) AND property = $2
	`

	rows, err := db.conn.Query(query, pq.Array(documentIDs), property)
	if err != nil {
		return nil, fmt.Errorf("failed to query document images: %w", err)
	}
	defer rows.Close()

	results := make(map[int64]*models.DocumentImage)
	for rows.Next() {
		var di models.DocumentImage
		var selectedAt sql.NullTime

		if err := rows.Scan(&di.DocumentID, &di.Property, &di.FileKey, &di.Score, &selectedAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		if selectedAt.Valid {
			di.SelectedAt = selectedAt.Time
		}
		results[di.DocumentID] = &di
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return results, nil
}

// GetBlacklistCache reads the shared blacklist cache row. A missing or
// expired row yields a zero fetchedAt and no error.
func (db *DB) GetBlacklistCache(key string) ([]string, time.Time, error) {
	var entries []string
	var fetchedAt time.Time

	query := "SELECT entries, fetched_at FROM leadimage_blacklist_cache WHERE cache_key = $1 AND expires_at > NOW()"
	err := db.conn.QueryRow(query, key).Scan(pq.Array(&entries), &fetchedAt)
	if err == sql.ErrNoRows {
		return nil, time.Time{}, nil
	}
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to query blacklist cache: %w", err)
	}

	return entries, fetchedAt, nil
}

// PutBlacklistCache overwrites the shared blacklist cache row.
// Concurrent writers race benignly; the last write wins.
func (db *DB) PutBlacklistCache(key string, entries []string, expiry time.Duration) error {
	if entries == nil {
		entries = []string{}
	}

	now := time.Now()
	query := `
		INSERT INTO leadimage_blacklist_cache (cache_key, entries, fetched_at, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT(cache_key) DO UPDATE SET
			entries = excluded.entries,
			fetched_at = excluded.fetched_at,
			expires_at = excluded.expires_at
	`

	if _, err := db.conn.Exec(query, key, pq.Array(entries), now, now.Add(expiry)); err != nil {
		return fmt.Errorf("failed to write blacklist cache: %w", err)
	}

	return nil
}

// Stats contains table counts for Prometheus metrics
type Stats struct {
	Documents       int   // documents known to the system
	Images          int   // registered images
	SelectedImages  int   // stored document -> image choices
	TotalImageBytes int64 // total registered image bytes
}

// GetStats returns table counts for Prometheus metrics
func (db *DB) GetStats() (*Stats, error) {
	stats := &Stats{}

	if err := db.conn.QueryRow("SELECT COUNT(*) FROM leadimage_documents").Scan(&stats.Documents); err != nil {
		return nil, fmt.Errorf("failed to count documents: %w", err)
	}

	if err := db.conn.QueryRow("SELECT COUNT(*) FROM leadimage_images").Scan(&stats.Images); err != nil {
		return nil, fmt.Errorf("failed to count images: %w", err)
	}

	if err := db.conn.QueryRow("SELECT COUNT(*) FROM leadimage_document_images").Scan(&stats.SelectedImages); err != nil {
		return nil, fmt.Errorf("failed to count document images: %w", err)
	}

	if err := db.conn.QueryRow("SELECT COALESCE(SUM(file_size_bytes), 0) FROM leadimage_images").Scan(&stats.TotalImageBytes); err != nil {
		return nil, fmt.Errorf("failed to sum image bytes: %w", err)
	}

	return stats, nil
}
