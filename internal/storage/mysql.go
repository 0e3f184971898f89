package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	"github.com/priyav/docshare/internal/models"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ErrFileNotFound is returned when a file id resolves to nothing.
// Callers fail closed on it; it never falls through to a different file.
var ErrFileNotFound = errors.New("file not found")

// MySQLClient wraps document metadata operations with tracing
type MySQLClient struct {
	db *sql.DB
}

// NewMySQLClient initializes a new MySQL client and ensures the schema exists
func NewMySQLClient(dsn string) (*MySQLClient, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	client := &MySQLClient{db: db}
	if err := client.ensureSchema(); err != nil {
		return nil, err
	}
	return client, nil
}

func (mc *MySQLClient) ensureSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS files (
			id          VARCHAR(36) PRIMARY KEY,
			name        VARCHAR(512) NOT NULL,
			uploaded_by VARCHAR(128) NOT NULL,
			size        BIGINT NOT NULL,
			chunk_count INT NOT NULL,
			created_at  DATETIME(6) NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS chunks (
			id               VARCHAR(36) PRIMARY KEY,
			file_id          VARCHAR(36) NOT NULL,
			order_index      INT NOT NULL,
			hash             CHAR(64) NOT NULL,
			minio_object_key VARCHAR(512) NOT NULL,
			size             BIGINT NOT NULL,
			KEY idx_chunks_file_id (file_id)
		)`,
	}
	for _, stmt := range statements {
		if _, err := mc.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to ensure schema: %w", err)
		}
	}
	return nil
}

// Close closes the database connection
func (mc *MySQLClient) Close() error {
	return mc.db.Close()
}

// CreateFile inserts a file record and all of its chunk records in one
// transaction. Until the transaction commits, nothing is visible to
// listing or download, which is what makes a failed upload invisible.
func (mc *MySQLClient) CreateFile(ctx context.Context, file *models.File, chunks []*models.Chunk) error {
	ctx, span := tracer.Start(ctx, "mysql.create_file",
		trace.WithAttributes(
			attribute.String("file_id", file.ID),
			attribute.String("file_name", file.Name),
			attribute.Int64("file_size", file.Size),
			attribute.Int("chunk_count", len(chunks)),
		),
	)
	defer span.End()

	tx, err := mc.db.BeginTx(ctx, nil)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO files (id, name, uploaded_by, size, chunk_count, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		file.ID, file.Name, file.UploadedBy, file.Size, file.ChunkCount, file.CreatedAt)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to insert file: %w", err)
	}

	for _, chunk := range chunks {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO chunks (id, file_id, order_index, hash, minio_object_key, size)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			chunk.ID, chunk.FileID, chunk.OrderIndex, chunk.Hash, chunk.MinioObjectKey, chunk.Size)
		if err != nil {
			span.RecordError(err)
			return fmt.Errorf("failed to insert chunk %d: %w", chunk.OrderIndex, err)
		}
	}

	if err := tx.Commit(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to commit file metadata: %w", err)
	}

	span.SetAttributes(attribute.Bool("insert_success", true))
	return nil
}

// GetFile retrieves file metadata by ID with tracing
func (mc *MySQLClient) GetFile(ctx context.Context, fileID string) (*models.File, error) {
	ctx, span := tracer.Start(ctx, "mysql.get_file",
		trace.WithAttributes(
			attribute.String("file_id", fileID),
		),
	)
	defer span.End()

	query := `SELECT id, name, uploaded_by, size, chunk_count, created_at FROM files WHERE id = ?`

	var file models.File
	err := mc.db.QueryRowContext(ctx, query, fileID).Scan(
		&file.ID,
		&file.Name,
		&file.UploadedBy,
		&file.Size,
		&file.ChunkCount,
		&file.CreatedAt,
	)

	if err == sql.ErrNoRows {
		span.SetAttributes(attribute.Bool("found", false))
		return nil, ErrFileNotFound
	} else if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to query file: %w", err)
	}

	span.SetAttributes(attribute.Bool("found", true))
	return &file, nil
}

// ListFiles returns all stored files in a stable order (creation time,
// then id as a tiebreaker).
func (mc *MySQLClient) ListFiles(ctx context.Context) ([]*models.File, error) {
	ctx, span := tracer.Start(ctx, "mysql.list_files")
	defer span.End()

	query := `SELECT id, name, uploaded_by, size, chunk_count, created_at
			  FROM files
			  ORDER BY created_at ASC, id ASC`

	rows, err := mc.db.QueryContext(ctx, query)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to query files: %w", err)
	}
	defer rows.Close()

	var files []*models.File
	for rows.Next() {
		var file models.File
		err := rows.Scan(
			&file.ID,
			&file.Name,
			&file.UploadedBy,
			&file.Size,
			&file.ChunkCount,
			&file.CreatedAt,
		)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to scan file: %w", err)
		}
		files = append(files, &file)
	}

	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("error iterating files: %w", err)
	}

	span.SetAttributes(attribute.Int("file_count", len(files)))
	return files, nil
}

// GetChunks retrieves all chunks for a file ordered by order_index with tracing
func (mc *MySQLClient) GetChunks(ctx context.Context, fileID string) ([]*models.Chunk, error) {
	ctx, span := tracer.Start(ctx, "mysql.get_chunks",
		trace.WithAttributes(
			attribute.String("file_id", fileID),
		),
	)
	defer span.End()

	query := `SELECT id, file_id, order_index, hash, minio_object_key, size
			  FROM chunks
			  WHERE file_id = ?
			  ORDER BY order_index ASC`

	rows, err := mc.db.QueryContext(ctx, query, fileID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer rows.Close()

	var chunks []*models.Chunk
	for rows.Next() {
		var chunk models.Chunk
		err := rows.Scan(
			&chunk.ID,
			&chunk.FileID,
			&chunk.OrderIndex,
			&chunk.Hash,
			&chunk.MinioObjectKey,
			&chunk.Size,
		)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		chunks = append(chunks, &chunk)
	}

	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("error iterating chunks: %w", err)
	}

	span.SetAttributes(
		attribute.Int("chunk_count", len(chunks)),
		attribute.Bool("query_success", true),
	)
	return chunks, nil
}
